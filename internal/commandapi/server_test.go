package commandapi

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sentinel-dev/sentinel-core/internal/eventbus"
	"github.com/sentinel-dev/sentinel-core/internal/netsample"
	"github.com/sentinel-dev/sentinel-core/internal/portscan"
	"github.com/sentinel-dev/sentinel-core/internal/registry"
	"github.com/sentinel-dev/sentinel-core/internal/supervisor"
	"github.com/sentinel-dev/sentinel-core/internal/telemetry"
)

func setup(t *testing.T) (*Client, context.CancelFunc) {
	t.Helper()

	metrics, promReg := telemetry.New()

	reg := registry.New()
	bus := eventbus.New(nil)
	sup := supervisor.New(nil, reg, bus, 100, metrics)
	scanner := portscan.New(nil)
	sampler := netsample.New(nil, 50*time.Millisecond, netsample.DefaultHistoryCapacity, metrics)

	sock := filepath.Join(t.TempDir(), "sentinel.sock")
	srv := New(nil, reg, sup, scanner, sampler, metrics, promReg, sock)

	ctx, cancel := context.WithCancel(context.Background())
	sampler.Start(ctx)

	ready := make(chan struct{})
	go func() {
		go func() {
			for {
				if _, err := os.Stat(sock); err == nil {
					close(ready)
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
		}()
		srv.ListenAndServe(ctx)
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("server did not start in time")
	}

	client := NewClient(sock)
	return client, func() {
		sampler.Stop()
		cancel()
	}
}

func TestSpawnLogsStopRoundTrip(t *testing.T) {
	client, cleanup := setup(t)
	defer cleanup()

	id, err := client.SpawnProcess(supervisor.ProcessSpec{
		Name:    "greet",
		Command: "/bin/sh",
		Args:    []string{"-c", "printf 'hello\\nworld\\n'; sleep 5"},
		Cwd:     "/tmp",
	})
	if err != nil {
		t.Fatalf("SpawnProcess: %v", err)
	}
	if id != "greet" {
		t.Fatalf("id = %q, want %q", id, "greet")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := client.GetLogs(id, 0)
		if err != nil {
			t.Fatalf("GetLogs: %v", err)
		}
		if len(got) >= 2 {
			if got[0].Content != "hello" || got[1].Content != "world" {
				t.Fatalf("lines = %+v, want hello/world", got)
			}
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	procs, err := client.ListProcesses()
	if err != nil {
		t.Fatalf("ListProcesses: %v", err)
	}
	if len(procs) != 1 || procs[0].ID != id {
		t.Fatalf("ListProcesses = %+v, want one entry for %q", procs, id)
	}

	if err := client.StopProcess(id); err != nil {
		t.Fatalf("StopProcess: %v", err)
	}

	if err := client.ClearLogs(id); err != nil {
		t.Fatalf("ClearLogs: %v", err)
	}
	got, err := client.GetLogs(id, 0)
	if err != nil {
		t.Fatalf("GetLogs after clear: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("GetLogs after clear = %+v, want empty", got)
	}
}

func TestStopUnknownProcessReturnsNotFound(t *testing.T) {
	client, cleanup := setup(t)
	defer cleanup()

	err := client.StopProcess("does-not-exist")
	if err == nil {
		t.Fatal("expected an error stopping an unknown process")
	}
	if !strings.Contains(err.Error(), "not-found") {
		t.Errorf("StopProcess error = %v, want a not-found error", err)
	}
}

func TestScanPortsAndNetworkStatsRoundTrip(t *testing.T) {
	client, cleanup := setup(t)
	defer cleanup()

	if _, err := client.ScanPorts(); err != nil {
		t.Fatalf("ScanPorts: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := client.GetNetworkStats()
		if err != nil {
			t.Fatalf("GetNetworkStats: %v", err)
		}
		if !snap.Timestamp.IsZero() {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, err := client.GetNetworkInterfaces(); err != nil {
		t.Fatalf("GetNetworkInterfaces: %v", err)
	}
	if _, err := client.GetNetworkHistory(60); err != nil {
		t.Fatalf("GetNetworkHistory: %v", err)
	}
	if err := client.ClearNetworkHistory(); err != nil {
		t.Fatalf("ClearNetworkHistory: %v", err)
	}
}
