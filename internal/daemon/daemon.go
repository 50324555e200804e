// Package daemon wires every core component together and runs the
// supervisor daemon until a signal or an unrecoverable component error
// tells it to stop.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sentinel-dev/sentinel-core/internal/commandapi"
	"github.com/sentinel-dev/sentinel-core/internal/config"
	"github.com/sentinel-dev/sentinel-core/internal/eventbus"
	"github.com/sentinel-dev/sentinel-core/internal/netsample"
	"github.com/sentinel-dev/sentinel-core/internal/portscan"
	"github.com/sentinel-dev/sentinel-core/internal/registry"
	"github.com/sentinel-dev/sentinel-core/internal/supervisor"
	"github.com/sentinel-dev/sentinel-core/internal/telemetry"
)

// RingCapacity bounds each process's log ring buffer, in lines.
const RingCapacity = 10000

// Options configures a daemon run.
type Options struct {
	Log             *slog.Logger
	SocketPath      string
	UserConfigDir   string
	ProjectDir      string
	SampleInterval  time.Duration
	HistoryCapacity int
}

// Run starts every component, loads and spawns the configured
// processes, and blocks until ctx is cancelled or SIGTERM/SIGINT is
// received.
func Run(ctx context.Context, opts Options) error {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	metrics, promReg := telemetry.New()

	reg := registry.New()
	bus := eventbus.New(log)
	sup := supervisor.New(log, reg, bus, RingCapacity, metrics)
	scanner := portscan.New(log)
	sampler := netsample.New(log, opts.SampleInterval, opts.HistoryCapacity, metrics)

	srv := commandapi.New(log, reg, sup, scanner, sampler, metrics, promReg, opts.SocketPath)

	specs, err := config.Load(opts.UserConfigDir, opts.ProjectDir)
	if err != nil {
		return fmt.Errorf("daemon: load process config: %w", err)
	}
	for _, spec := range specs {
		if _, err := sup.Spawn(spec); err != nil {
			log.Error("failed to spawn configured process", "name", spec.Name, "error", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sampler.Start(runCtx)
	defer sampler.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		log.Info("command surface listening", "socket", opts.SocketPath)
		errCh <- srv.ListenAndServe(runCtx)
	}()

	reportRegistry(reg, metrics)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	log.Info("sentinel daemon started", "socket", opts.SocketPath, "processes", len(specs))

	for {
		select {
		case sig := <-sigCh:
			log.Info("received signal, shutting down", "signal", sig.String())
			cancel()
			drainStop(sup, reg)
			<-errCh
			return nil
		case err := <-errCh:
			cancel()
			if err != nil {
				return fmt.Errorf("daemon: command surface: %w", err)
			}
			return nil
		case <-ticker.C:
			reportRegistry(reg, metrics)
		}
	}
}

// drainStop asks every non-terminal supervised process to stop before
// the daemon process itself exits.
func drainStop(sup *supervisor.Supervisor, reg *registry.Registry) {
	for _, rec := range reg.List() {
		if !rec.State.IsTerminal() {
			sup.Stop(rec.ID)
		}
	}
}

func reportRegistry(reg *registry.Registry, metrics *telemetry.Metrics) {
	counts := map[string]int{
		"starting": 0,
		"running":  0,
		"stopping": 0,
		"stopped":  0,
		"crashed":  0,
	}
	for _, rec := range reg.List() {
		counts[rec.State.String()]++
	}
	metrics.ObserveRegistry(counts)
}
