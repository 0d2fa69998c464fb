package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"git.home.luguber.info/inful/cdispd/internal/dispatch"
	"git.home.luguber.info/inful/cdispd/internal/logfields"
	"git.home.luguber.info/inful/cdispd/internal/util/sets"
)

// StatusServer serves /metrics, /healthz and /status for one daemon.
type StatusServer struct {
	daemon *Daemon
	srv    *http.Server
}

// healthResponse is the /healthz payload.
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

// statusResponse is the /status payload.
type statusResponse struct {
	Uptime        string        `json:"uptime"`
	PivotID       uint64        `json:"pivot_id"`
	HasPivot      bool          `json:"has_pivot"`
	LastRunFailed bool          `json:"last_run_failed"`
	Markers       []string      `json:"markers,omitempty"`
	LastCycle     *cycleSummary `json:"last_cycle,omitempty"`
}

type cycleSummary struct {
	CycleID    string   `json:"cycle_id"`
	ProfileID  uint64   `json:"profile_id"`
	PivotID    uint64   `json:"pivot_id"`
	Outcome    string   `json:"outcome"`
	Reason     string   `json:"reason"`
	ForcedAll  bool     `json:"forced_all"`
	Dispatched []string `json:"dispatched"`
	Cleared    []string `json:"cleared"`
	DurationMS float64  `json:"duration_ms"`
}

// NewStatusServer builds the server. reg carries the dispatch metrics; the
// standard Go and process collectors are added here.
func NewStatusServer(listen string, d *Daemon, reg *prom.Registry) *StatusServer {
	reg.MustRegister(
		promcollect.NewGoCollector(),
		promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	s := &StatusServer{daemon: d}
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)

	s.srv = &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start runs the listener in the background.
func (s *StatusServer) Start() {
	go func() {
		slog.Info("Starting status server", slog.String("listen", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status server failed", logfields.Error(err))
		}
	}()
}

// Shutdown stops the listener.
func (s *StatusServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *StatusServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    s.daemon.Uptime().Round(time.Second).String(),
	})
}

func (s *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	d := s.daemon
	resp := statusResponse{
		Uptime:        d.Uptime().Round(time.Second).String(),
		LastRunFailed: d.deps.Machine.LastRunFailed(),
	}
	if accepted := d.deps.Machine.Accepted(); accepted != nil {
		resp.HasPivot = true
		resp.PivotID = accepted.ID()
	}
	if d.deps.Markers != nil {
		if names, err := d.deps.Markers.List(); err == nil {
			resp.Markers = names
		}
	}
	if res := d.LastResult(); res != nil {
		resp.LastCycle = summarize(res)
	}
	writeJSON(w, http.StatusOK, resp)
}

func summarize(res *dispatch.CycleResult) *cycleSummary {
	return &cycleSummary{
		CycleID:    res.CycleID,
		ProfileID:  res.ProfileID,
		PivotID:    res.PivotID,
		Outcome:    string(res.Outcome),
		Reason:     res.Reason,
		ForcedAll:  res.ForcedAll,
		Dispatched: sets.Sorted(res.Plan.Dispatch),
		Cleared:    sets.Sorted(res.Plan.Clear),
		DurationMS: float64(res.Duration.Milliseconds()),
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("cannot encode response", logfields.Error(err))
	}
}
