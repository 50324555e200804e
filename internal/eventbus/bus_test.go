package eventbus

import (
	"context"
	"testing"
	"time"
)

func TestSubscribeEmitOrder(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe("process-output")

	for i := 0; i < 10; i++ {
		b.Emit("process-output", i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 10; i++ {
		v, err := sub.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if v.(int) != i {
			t.Errorf("Recv() = %d, want %d", v, i)
		}
	}
}

func TestEmitOnlyReachesMatchingEventName(t *testing.T) {
	b := New(nil)
	subA := b.Subscribe("process-output")
	subB := b.Subscribe("process-exit")

	b.Emit("process-output", "a")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := subA.Recv(ctx); err != nil {
		t.Fatalf("subA.Recv: %v", err)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, err := subB.Recv(ctx2); err == nil {
		t.Error("subB should not have received a process-output emit")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(nil)
	sub := b.Subscribe("process-exit")
	b.Unsubscribe(sub)
	b.Emit("process-exit", 1)

	ctx := context.Background()
	if _, err := sub.Recv(ctx); err != ErrClosed {
		t.Errorf("Recv after unsubscribe = %v, want ErrClosed", err)
	}
}

func TestBackpressureDropsOldestAndWarnsOnce(t *testing.T) {
	b := New(nil)
	dropped := b.Subscribe(DroppedEvent)
	slow := b.Subscribe("process-output")

	// Overrun the slow subscriber's queue without ever draining it.
	for i := 0; i < MaxQueue+50; i++ {
		b.Emit("process-output", i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	payload, err := dropped.Recv(ctx)
	if err != nil {
		t.Fatalf("expected a dropped advisory, got error: %v", err)
	}
	dp, ok := payload.(DroppedPayload)
	if !ok || dp.EventName != "process-output" {
		t.Errorf("unexpected dropped payload: %#v", payload)
	}

	// Exactly one warning for the whole overrun episode, not one per drop.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel2()
	if _, err := dropped.Recv(ctx2); err == nil {
		t.Error("expected a single one-shot dropped warning, got a second one")
	}

	// Ingestion must have continued: the oldest entries are gone, the
	// newest MaxQueue survive.
	first, err := slow.Recv(context.Background())
	if err != nil {
		t.Fatalf("slow.Recv: %v", err)
	}
	if first.(int) != 50 {
		t.Errorf("oldest surviving entry = %v, want 50", first)
	}
}

func TestDeliveryIndependentPerSubscriber(t *testing.T) {
	b := New(nil)
	sub1 := b.Subscribe("process-state")
	sub2 := b.Subscribe("process-state")

	b.Emit("process-state", "running")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v1, err := sub1.Recv(ctx)
	if err != nil || v1 != "running" {
		t.Errorf("sub1.Recv() = %v, %v", v1, err)
	}
	v2, err := sub2.Recv(ctx)
	if err != nil || v2 != "running" {
		t.Errorf("sub2.Recv() = %v, %v", v2, err)
	}
}
