// Package commandapi is the command surface bridging the core to a
// GUI/CLI front-end: an HTTP API served over a Unix domain socket.
package commandapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentinel-dev/sentinel-core/internal/netsample"
	"github.com/sentinel-dev/sentinel-core/internal/portscan"
	"github.com/sentinel-dev/sentinel-core/internal/registry"
	"github.com/sentinel-dev/sentinel-core/internal/sentinelerr"
	"github.com/sentinel-dev/sentinel-core/internal/supervisor"
	"github.com/sentinel-dev/sentinel-core/internal/telemetry"
)

// Server is the command surface: every supervised-process, port, and
// network-stats operation reachable as one HTTP route over a Unix
// socket.
type Server struct {
	log *slog.Logger

	reg     *registry.Registry
	sup     *supervisor.Supervisor
	scanner *portscan.Scanner
	sampler *netsample.Sampler
	metrics *telemetry.Metrics
	promReg *prometheus.Registry

	socketPath string
}

// New creates a Server bound to socketPath.
func New(log *slog.Logger, reg *registry.Registry, sup *supervisor.Supervisor, scanner *portscan.Scanner, sampler *netsample.Sampler, metrics *telemetry.Metrics, promReg *prometheus.Registry, socketPath string) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		log:        log,
		reg:        reg,
		sup:        sup,
		scanner:    scanner,
		sampler:    sampler,
		metrics:    metrics,
		promReg:    promReg,
		socketPath: socketPath,
	}
}

// ListenAndServe starts the HTTP server on a fresh Unix socket at
// s.socketPath and blocks until ctx is cancelled or Serve fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("commandapi: listen unix %s: %w", s.socketPath, err)
	}
	os.Chmod(s.socketPath, 0600)

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	httpSrv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutCtx)
		os.Remove(s.socketPath)
		return nil
	case err := <-errCh:
		os.Remove(s.socketPath)
		return err
	}
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /processes", s.handleSpawn)
	mux.HandleFunc("GET /processes", s.handleList)
	mux.HandleFunc("POST /processes/{id}/stop", s.handleStop)
	mux.HandleFunc("POST /processes/{id}/restart", s.handleRestart)
	mux.HandleFunc("GET /processes/{id}/logs", s.handleGetLogs)
	mux.HandleFunc("POST /processes/{id}/logs/clear", s.handleClearLogs)

	mux.HandleFunc("GET /ports", s.handleScanPorts)
	mux.HandleFunc("POST /ports/{port}/kill", s.handleKillByPort)

	mux.HandleFunc("GET /network/stats", s.handleNetworkStats)
	mux.HandleFunc("GET /network/history", s.handleNetworkHistory)
	mux.HandleFunc("GET /network/interfaces", s.handleNetworkInterfaces)
	mux.HandleFunc("POST /network/history/clear", s.handleClearNetworkHistory)

	if s.promReg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))
	}
}

func (s *Server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var spec supervisor.ProcessSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, sentinelerr.KindSpawnError, "invalid request body")
		return
	}
	id, err := s.sup.Spawn(spec)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, spawnResponse{ID: id})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, processesResponse{Processes: s.reg.List()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sup.Stop(id); err != nil {
		writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.sup.Restart(id); err != nil {
		writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.reg.Get(id)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, parseErr := strconv.Atoi(v)
		if parseErr == nil {
			limit = n
		}
	}
	writeJSON(w, http.StatusOK, logsResponse{Lines: rec.Logs.Tail(limit)})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.reg.Get(id)
	if err != nil {
		writeCommandError(w, err)
		return
	}
	rec.Logs.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleScanPorts(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	entries, err := s.scanner.Scan(r.Context())
	if s.metrics != nil {
		s.metrics.PortScanDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, portsResponse{Ports: entries})
}

func (s *Server) handleKillByPort(w http.ResponseWriter, r *http.Request) {
	port, err := strconv.ParseUint(r.PathValue("port"), 10, 16)
	if err != nil {
		writeError(w, http.StatusBadRequest, sentinelerr.KindNotFound, "invalid port")
		return
	}
	if err := s.scanner.KillByPort(r.Context(), uint16(port)); err != nil {
		writeCommandError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNetworkStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sampler.Current())
}

func (s *Server) handleNetworkHistory(w http.ResponseWriter, r *http.Request) {
	seconds := 300
	if v := r.URL.Query().Get("duration_seconds"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			seconds = n
		}
	}
	snaps := s.sampler.History(time.Duration(seconds) * time.Second)
	writeJSON(w, http.StatusOK, networkHistoryResponse{Snapshots: snaps})
}

func (s *Server) handleNetworkInterfaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, interfacesResponse{Interfaces: s.sampler.Interfaces()})
}

func (s *Server) handleClearNetworkHistory(w http.ResponseWriter, r *http.Request) {
	s.sampler.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeCommandError(w http.ResponseWriter, err error) {
	kind := sentinelerr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case sentinelerr.KindNotFound:
		status = http.StatusNotFound
	case sentinelerr.KindDuplicate:
		status = http.StatusConflict
	case sentinelerr.KindPermissionDenied:
		status = http.StatusForbidden
	case sentinelerr.KindSpawnError:
		status = http.StatusUnprocessableEntity
	case sentinelerr.KindTimeout:
		status = http.StatusGatewayTimeout
	}
	writeError(w, status, kind, err.Error())
}

func writeError(w http.ResponseWriter, status int, kind sentinelerr.Kind, message string) {
	writeJSON(w, status, errorResponse{Error: kind.String(), Message: message})
}
