package netsample

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/sentinel-dev/sentinel-core/internal/telemetry"
)

// DefaultInterval is the sampler's default cadence.
const DefaultInterval = time.Second

// Sampler periodically reads per-interface counters and appends a
// NetworkSnapshot to its History.
type Sampler struct {
	log      *slog.Logger
	interval time.Duration
	history  *History
	metrics  *telemetry.Metrics

	mu         sync.RWMutex
	interfaces []InterfaceStats

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Sampler. interval <= 0 selects DefaultInterval;
// historyCapacity <= 0 selects DefaultHistoryCapacity. metrics may be
// nil, in which case failed samples go unreported.
func New(log *slog.Logger, interval time.Duration, historyCapacity int, metrics *telemetry.Metrics) *Sampler {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sampler{
		log:      log,
		interval: interval,
		history:  NewHistory(historyCapacity),
		metrics:  metrics,
	}
}

// Start begins the periodic sampling loop; it runs until ctx is
// cancelled or Stop is called.
func (s *Sampler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.tick()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// Stop halts the sampling loop and waits for it to exit.
func (s *Sampler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

func (s *Sampler) tick() {
	ifaces, err := readInterfaces()
	if err != nil {
		s.log.Warn("netsample: failed to read interface counters", "error", err)
		if s.metrics != nil {
			s.metrics.NetSampleErrorsTotal.Inc()
		}
		return
	}
	if s.log.Enabled(context.Background(), slog.LevelDebug) {
		s.log.Debug("netsample: interface snapshot", "interfaces", spew.Sdump(ifaces))
	}

	var snap NetworkSnapshot
	snap.Timestamp = time.Now().UTC()
	for _, i := range ifaces {
		snap.TotalBytesSent += i.BytesSent
		snap.TotalBytesReceived += i.BytesReceived
		snap.TotalPacketsSent += i.PacketsSent
		snap.TotalPacketsReceived += i.PacketsReceived
	}

	s.mu.Lock()
	s.interfaces = ifaces
	s.mu.Unlock()

	s.history.Push(snap)
}

// Current returns the most recent snapshot, sampling immediately if the
// history is still empty.
func (s *Sampler) Current() NetworkSnapshot {
	if snap, ok := s.history.Current(); ok {
		return snap
	}
	s.tick()
	snap, _ := s.history.Current()
	return snap
}

// History returns every sample within duration of now, oldest-first.
func (s *Sampler) History(duration time.Duration) []NetworkSnapshot {
	cutoff := time.Now().Add(-duration)
	return s.history.Since(func(snap NetworkSnapshot) bool {
		return !snap.Timestamp.Before(cutoff)
	})
}

// Clear empties the rolling history.
func (s *Sampler) Clear() {
	s.history.Clear()
}

// Interfaces returns the current per-interface cumulative values.
func (s *Sampler) Interfaces() []InterfaceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InterfaceStats, len(s.interfaces))
	copy(out, s.interfaces)
	return out
}
