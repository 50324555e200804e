package netsample

import (
	"context"
	"testing"
	"time"
)

func TestSamplerAccumulatesHistory(t *testing.T) {
	s := New(nil, 20*time.Millisecond, 100, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if s.history.Len() >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("history only reached %d samples", s.history.Len())
		}
		time.Sleep(10 * time.Millisecond)
	}

	snap := s.Current()
	if snap.Timestamp.IsZero() {
		t.Error("Current() returned a zero-value snapshot")
	}
}

func TestSamplerHistoryFiltersByDuration(t *testing.T) {
	s := New(nil, time.Hour, 100, nil) // no ticks will fire during the test
	now := time.Now().UTC()
	s.history.Push(NetworkSnapshot{Timestamp: now.Add(-10 * time.Minute)})
	s.history.Push(NetworkSnapshot{Timestamp: now.Add(-30 * time.Second)})
	s.history.Push(NetworkSnapshot{Timestamp: now})

	recent := s.History(time.Minute)
	if len(recent) != 2 {
		t.Fatalf("History(1m) returned %d entries, want 2", len(recent))
	}
}
