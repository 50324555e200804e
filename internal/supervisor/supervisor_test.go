package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/sentinel-dev/sentinel-core/internal/eventbus"
	"github.com/sentinel-dev/sentinel-core/internal/registry"
)

func newTestSupervisor() (*Supervisor, *registry.Registry, *eventbus.Bus) {
	reg := registry.New()
	bus := eventbus.New(nil)
	return New(nil, reg, bus, 100, nil), reg, bus
}

func waitForExit(t *testing.T, bus *eventbus.Bus, id string) ExitPayload {
	t.Helper()
	sub := bus.Subscribe(EventProcessExit)
	defer bus.Unsubscribe(sub)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		v, err := sub.Recv(ctx)
		if err != nil {
			t.Fatalf("waiting for process-exit: %v", err)
		}
		p := v.(ExitPayload)
		if p.ID == id {
			return p
		}
	}
}

func TestSpawnSimpleCapture(t *testing.T) {
	sup, reg, _ := newTestSupervisor()
	id, err := sup.Spawn(ProcessSpec{
		Name:    "echo",
		Command: "/bin/sh",
		Args:    []string{"-c", "printf 'hello\\nworld\\n'"},
		Cwd:     "/tmp",
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, err := reg.Get(id)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if rec.State.IsTerminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("process did not reach a terminal state in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec, _ := reg.Get(id)
	lines := rec.Logs.Tail(10)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %+v", len(lines), lines)
	}
	if lines[0].Content != "hello" || lines[1].Content != "world" {
		t.Errorf("lines = %q, %q, want hello, world", lines[0].Content, lines[1].Content)
	}
	if rec.ExitCode == nil || *rec.ExitCode != 0 {
		t.Errorf("exit code = %v, want 0", rec.ExitCode)
	}
}

func TestSpawnDuplicateNonTerminalFails(t *testing.T) {
	sup, _, _ := newTestSupervisor()
	spec := ProcessSpec{Name: "sleeper", Command: "/bin/sh", Args: []string{"-c", "sleep 5"}, Cwd: "/tmp"}
	if _, err := sup.Spawn(spec); err != nil {
		t.Fatalf("first spawn: %v", err)
	}
	defer sup.Stop("sleeper")

	if _, err := sup.Spawn(spec); err == nil {
		t.Error("expected duplicate spawn to fail while process is non-terminal")
	}
}

func TestCrashAutoRestartRespectsMaxRestarts(t *testing.T) {
	sup, reg, bus := newTestSupervisor()
	spec := ProcessSpec{
		Name:        "flaky",
		Command:     "/bin/sh",
		Args:        []string{"-c", "exit 1"},
		Cwd:         "/tmp",
		AutoRestart: true,
		MaxRestarts: 2,
	}
	if _, err := sup.Spawn(spec); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	// initial spawn + 2 restarts = 3 crash observations.
	for i := 0; i < 3; i++ {
		waitForExit(t, bus, "flaky")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, err := reg.Get("flaky")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if rec.RestartCount == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("restart_count = %d, want 2", rec.RestartCount)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestStopIsIdempotentOnTerminalRecord(t *testing.T) {
	sup, reg, _ := newTestSupervisor()
	id, err := sup.Spawn(ProcessSpec{Name: "quick", Command: "/bin/sh", Args: []string{"-c", "true"}, Cwd: "/tmp"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, _ := reg.Get(id)
		if rec.State.IsTerminal() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("process did not terminate in time")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := sup.Stop(id); err != nil {
		t.Errorf("Stop on terminal record should be a no-op, got: %v", err)
	}
}
