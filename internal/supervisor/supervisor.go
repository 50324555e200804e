// Package supervisor spawns child processes under a pseudo-terminal,
// frames their combined output into LogLines, pushes them into the
// process registry, and broadcasts output, state, and exit events.
package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"github.com/sentinel-dev/sentinel-core/internal/eventbus"
	"github.com/sentinel-dev/sentinel-core/internal/registry"
	"github.com/sentinel-dev/sentinel-core/internal/ringlog"
	"github.com/sentinel-dev/sentinel-core/internal/sentinelerr"
	"github.com/sentinel-dev/sentinel-core/internal/telemetry"
)

const (
	// GracePeriod is how long Stop waits for a SIGTERM'd child to exit
	// before escalating to SIGKILL.
	GracePeriod = 5 * time.Second

	// BatchSize and BatchDeadline bound process-output event aggregation.
	BatchSize     = 64
	BatchDeadline = 50 * time.Millisecond

	// RestartBackoffBase, RestartBackoffMultiplier, and RestartBackoffCap
	// govern the auto-restart delay schedule.
	RestartBackoffBase       = 500 * time.Millisecond
	RestartBackoffMultiplier = 2
	RestartBackoffCap        = 30 * time.Second
)

// Supervisor owns every running child process task.
type Supervisor struct {
	log     *slog.Logger
	reg     *registry.Registry
	bus     *eventbus.Bus
	metrics *telemetry.Metrics

	ringCapacity int

	mu    sync.Mutex
	procs map[string]*handle
}

// handle is the supervisor's private bookkeeping for one process slot,
// distinct from the registry's public SupervisedProcess record.
type handle struct {
	mu sync.Mutex

	spec ProcessSpec
	cmd  *exec.Cmd
	ptmx *os.File

	// exited is closed by waitLoop once cmd.Wait() has returned, so Stop
	// can wait for reaping without calling Wait a second time itself.
	exited chan struct{}

	stopRequested bool
	restartTimer  *time.Timer
	seq           uint64
}

// New creates a Supervisor backed by reg and bus. ringCapacity configures
// each spawned process's RingBuffer; 0 selects ringlog.DefaultCapacity.
// metrics may be nil, in which case ring-buffer eviction goes unreported.
func New(log *slog.Logger, reg *registry.Registry, bus *eventbus.Bus, ringCapacity int, metrics *telemetry.Metrics) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		log:          log,
		reg:          reg,
		bus:          bus,
		metrics:      metrics,
		ringCapacity: ringCapacity,
		procs:        make(map[string]*handle),
	}
}

// Spawn starts spec as a new supervised process and returns its id.
func (s *Supervisor) Spawn(spec ProcessSpec) (string, error) {
	if spec.Name == "" {
		return "", sentinelerr.New(sentinelerr.KindSpawnError, "process name must not be empty")
	}
	if _, err := os.Stat(spec.Cwd); err != nil {
		return "", sentinelerr.Wrap(sentinelerr.KindSpawnError, fmt.Sprintf("cwd %q does not exist", spec.Cwd), err)
	}
	if _, err := exec.LookPath(spec.Command); err != nil {
		return "", sentinelerr.Wrap(sentinelerr.KindSpawnError, fmt.Sprintf("cannot resolve %q", spec.Command), err)
	}

	rec := &registry.SupervisedProcess{
		ID:        spec.Name,
		State:     registry.Starting,
		StartedAt: time.Now().UTC(),
		Logs:      ringlog.New(s.ringCapacity),
	}
	if err := s.reg.Insert(rec); err != nil {
		return "", err
	}

	s.mu.Lock()
	h := &handle{spec: spec}
	s.procs[spec.Name] = h
	s.mu.Unlock()

	if err := s.start(spec.Name, h, 0); err != nil {
		// A PTY allocation failure leaves no record behind: mark the
		// just-inserted slot terminal so Remove is allowed, then drop it.
		s.reg.Update(spec.Name, func(r *registry.SupervisedProcess) {
			r.State = registry.Crashed
		})
		s.reg.Remove(spec.Name)
		s.mu.Lock()
		delete(s.procs, spec.Name)
		s.mu.Unlock()
		return "", err
	}
	return spec.Name, nil
}

// start resolves the executable, allocates a PTY, and launches the
// reader/waiter tasks. restartCount is recorded on the registry record.
func (s *Supervisor) start(id string, h *handle, restartCount int) error {
	spec := h.spec

	binPath, err := exec.LookPath(spec.Command)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.KindSpawnError, fmt.Sprintf("cannot resolve %q", spec.Command), err)
	}

	cmd := exec.Command(binPath, spec.Args...)
	cmd.Dir = spec.Cwd
	cmd.Env = spec.EnvSlice(os.Environ())

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return sentinelerr.Wrap(sentinelerr.KindSpawnError, "start pty", err)
	}

	h.mu.Lock()
	h.cmd = cmd
	h.ptmx = ptmx
	h.exited = make(chan struct{})
	h.stopRequested = false
	h.seq = 0
	h.mu.Unlock()

	s.reg.Update(id, func(r *registry.SupervisedProcess) {
		r.PID = cmd.Process.Pid
		r.State = registry.Running
		r.StartedAt = time.Now().UTC()
		r.ExitCode = nil
		r.RestartCount = restartCount
	})
	s.emitState(id, registry.Starting)
	s.emitState(id, registry.Running)

	go s.readLoop(id, h)
	go s.waitLoop(id, h)
	return nil
}

func (s *Supervisor) readLoop(id string, h *handle) {
	fr := newFramer(ringlog.MaxLineBytes)
	rec, err := s.reg.Get(id)
	if err != nil {
		return
	}
	logs := rec.Logs

	var batch []ringlog.LogLine
	deadline := time.NewTimer(BatchDeadline)
	deadline.Stop()
	deadlineArmed := false

	flush := func() {
		if len(batch) == 0 {
			return
		}
		out := batch
		batch = nil
		s.bus.Emit(EventProcessOutput, OutputPayload{ID: id, Lines: out})
	}

	buf := make([]byte, 4096)
	linesCh := make(chan []byte, 256)
	doneReading := make(chan struct{})

	go func() {
		defer close(linesCh)
		for {
			n, err := h.ptmx.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				for _, line := range fr.feed(chunk) {
					linesCh <- line
				}
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-linesCh:
			if !ok {
				flush()
				close(doneReading)
				return
			}
			h.mu.Lock()
			h.seq++
			seq := h.seq
			h.mu.Unlock()

			ll := ringlog.NewLine(line, ringlog.Stdout, seq, time.Now().UTC())
			if evicted := logs.Push(ll); evicted && s.metrics != nil {
				s.metrics.RingBufferDroppedTotal.Inc()
			}
			batch = append(batch, ll)
			if !deadlineArmed {
				deadline.Reset(BatchDeadline)
				deadlineArmed = true
			}
			if len(batch) >= BatchSize {
				deadline.Stop()
				deadlineArmed = false
				flush()
			}
		case <-deadline.C:
			deadlineArmed = false
			flush()
		}
	}
}

func (s *Supervisor) waitLoop(id string, h *handle) {
	err := h.cmd.Wait()
	h.mu.Lock()
	close(h.exited)
	h.mu.Unlock()
	h.ptmx.Close()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	h.mu.Lock()
	stopped := h.stopRequested
	h.mu.Unlock()

	finalState := registry.Crashed
	if stopped {
		finalState = registry.Stopped
	}

	s.reg.Update(id, func(r *registry.SupervisedProcess) {
		r.State = finalState
		code := exitCode
		r.ExitCode = &code
	})
	s.emitState(id, finalState)
	s.bus.Emit(EventProcessExit, ExitPayload{ID: id, ExitCode: &exitCode})

	rec, err2 := s.reg.Get(id)
	if err2 != nil {
		return
	}
	if finalState == registry.Crashed && rec.State != registry.Stopped {
		s.maybeScheduleRestart(id, h, rec)
	}
}

func (s *Supervisor) maybeScheduleRestart(id string, h *handle, rec registry.SupervisedProcess) {
	if !h.spec.AutoRestart {
		return
	}
	if rec.RestartCount >= h.spec.MaxRestarts {
		return
	}

	delay := RestartBackoffBase
	for i := 0; i < rec.RestartCount; i++ {
		delay *= RestartBackoffMultiplier
		if delay > RestartBackoffCap {
			delay = RestartBackoffCap
			break
		}
	}

	h.mu.Lock()
	h.restartTimer = time.AfterFunc(delay, func() {
		h.mu.Lock()
		cancelled := h.stopRequested
		h.mu.Unlock()
		if cancelled {
			return
		}
		s.reg.Update(id, func(r *registry.SupervisedProcess) {
			r.State = registry.Starting
		})
		if err := s.start(id, h, rec.RestartCount+1); err != nil {
			s.log.Warn("supervisor: scheduled restart failed", "id", id, "error", err)
			s.reg.Update(id, func(r *registry.SupervisedProcess) {
				r.State = registry.Crashed
			})
			s.emitState(id, registry.Crashed)
		}
	})
	h.mu.Unlock()
}

// Stop terminates the process identified by id, escalating from SIGTERM
// to SIGKILL after GracePeriod. Idempotent on an already-terminal record.
func (s *Supervisor) Stop(id string) error {
	rec, err := s.reg.Get(id)
	if err != nil {
		return err
	}
	if rec.State.IsTerminal() {
		return nil
	}

	s.mu.Lock()
	h, ok := s.procs[id]
	s.mu.Unlock()
	if !ok {
		return sentinelerr.New(sentinelerr.KindNotFound, fmt.Sprintf("process %q not found", id))
	}

	h.mu.Lock()
	h.stopRequested = true
	if h.restartTimer != nil {
		h.restartTimer.Stop()
	}
	cmd := h.cmd
	exited := h.exited
	h.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	s.reg.Update(id, func(r *registry.SupervisedProcess) {
		r.State = registry.Stopping
	})
	s.emitState(id, registry.Stopping)

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return sentinelerr.Wrap(sentinelerr.KindPermissionDenied, "signal process", err)
	}

	// Wait for waitLoop's own cmd.Wait() to reap the child rather than
	// calling Wait a second time ourselves: a second concurrent Wait on
	// the same pid races the OS reaper and can return ECHILD.
	select {
	case <-exited:
	case <-time.After(GracePeriod):
		cmd.Process.Kill()
		<-exited
	}
	return nil
}

// Restart stops the process (if running) and spawns it again under the
// same id, retaining its logs and incrementing restart_count.
func (s *Supervisor) Restart(id string) error {
	rec, err := s.reg.Get(id)
	if err != nil {
		return err
	}
	if !rec.State.IsTerminal() {
		if err := s.Stop(id); err != nil {
			return err
		}
	}

	s.mu.Lock()
	h, ok := s.procs[id]
	s.mu.Unlock()
	if !ok {
		return sentinelerr.New(sentinelerr.KindNotFound, fmt.Sprintf("process %q not found", id))
	}

	s.reg.Update(id, func(r *registry.SupervisedProcess) {
		r.State = registry.Starting
		r.RestartCount++
	})
	rec, _ = s.reg.Get(id)

	if err := s.start(id, h, rec.RestartCount); err != nil {
		s.reg.Update(id, func(r *registry.SupervisedProcess) {
			r.State = registry.Crashed
		})
		return err
	}
	return nil
}

func (s *Supervisor) emitState(id string, state registry.State) {
	s.bus.Emit(EventProcessState, StatePayload{ID: id, State: state.String()})
}
