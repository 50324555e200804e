package portscan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/davecgh/go-spew/spew"

	"github.com/sentinel-dev/sentinel-core/internal/sentinelerr"
)

// ScanDeadline bounds a single Scan call; on expiry the partial listing
// accumulated so far is returned instead of an error.
const ScanDeadline = 2 * time.Second

// Scanner enumerates the live socket table.
type Scanner struct {
	log *slog.Logger
}

// New creates a Scanner. log may be nil, in which case slog.Default is
// used (only for the debug-level snapshot dump; Scanner is otherwise
// silent).
func New(log *slog.Logger) *Scanner {
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{log: log}
}

// Scan returns a consistent-within-one-call listing of active TCP/UDP
// endpoints. Same port+pid combinations reachable via multiple local
// addresses are returned as separate entries.
func (s *Scanner) Scan(ctx context.Context) ([]PortEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, ScanDeadline)
	defer cancel()
	entries, err := scanPlatform(ctx)
	if err == nil && s.log.Enabled(ctx, slog.LevelDebug) {
		s.log.Debug("portscan: scan result", "entries", spew.Sdump(entries))
	}
	return entries, err
}

// KillByPort terminates the process that owns port. A listening entry
// is preferred over an established/other-state one on the same port,
// since a listener is the process actually bound to it.
func (s *Scanner) KillByPort(ctx context.Context, port uint16) error {
	entries, err := s.Scan(ctx)
	if err != nil {
		return err
	}
	var fallback *PortEntry
	for i, e := range entries {
		if e.Port != port || e.PID <= 0 {
			continue
		}
		if e.State == StateListen {
			return killPID(e.PID)
		}
		if fallback == nil {
			fallback = &entries[i]
		}
	}
	if fallback != nil {
		return killPID(fallback.PID)
	}
	return sentinelerr.New(sentinelerr.KindNotFound, fmt.Sprintf("no process owns port %d", port))
}
