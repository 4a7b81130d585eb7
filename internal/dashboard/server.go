// Package dashboard serves the mission-ops web UI and its JSON API.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"cubesat-nightly/internal/config"
	"cubesat-nightly/internal/metrics"
	"cubesat-nightly/internal/pipeline"
	"cubesat-nightly/internal/telemetry"
)

// Pipeline is the runner surface the dashboard needs. Satisfied by
// *pipeline.Runner.
type Pipeline interface {
	RunAsync(trigger string) error
	Latest() (*pipeline.RunSummary, []pipeline.ScoredPacket, bool)
	Status() pipeline.Status
	Ask(ctx context.Context, question string) (string, error)
	ExplainTop(ctx context.Context) (*pipeline.Explanation, error)
}

// Schedule is the scheduler surface the dashboard needs. Satisfied by
// *scheduler.Scheduler.
type Schedule interface {
	Reschedule(dailyAt string) error
	DailyAt() string
	NextRun() time.Time
}

//go:embed templates/index.html
var content embed.FS

type Server struct {
	cfg    *config.Config
	runner Pipeline
	sched  Schedule
	logger *slog.Logger
	tpl    *template.Template
}

func NewServer(cfg *config.Config, runner Pipeline, sched Schedule, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	return &Server{cfg: cfg, runner: runner, sched: sched, logger: logger, tpl: tpl}
}

// Handler builds the route table. Mutating endpoints are POST-only.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/timeseries", s.handleTimeseries)
	mux.HandleFunc("GET /api/anomalies", s.handleAnomalies)
	mux.HandleFunc("POST /api/run", s.handleRun)
	mux.HandleFunc("POST /api/schedule", s.handleSchedule)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("POST /api/explain", s.handleExplain)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", metrics.Handler())
	return metrics.Middleware(s.logRequests(mux))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Dashboard.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

type scheduleInfo struct {
	DailyAt string `json:"daily_at"`
	NextRun string `json:"next_run,omitempty"`
}

func (s *Server) scheduleInfo() scheduleInfo {
	info := scheduleInfo{}
	if s.sched != nil {
		info.DailyAt = s.sched.DailyAt()
		if next := s.sched.NextRun(); !next.IsZero() {
			info.NextRun = next.Format(time.RFC3339)
		}
	}
	return info
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	latest, _, ok := s.runner.Latest()
	data := struct {
		HasRun   bool
		Latest   *pipeline.RunSummary
		Status   pipeline.Status
		Schedule scheduleInfo
	}{
		HasRun:   ok,
		Latest:   latest,
		Status:   s.runner.Status(),
		Schedule: s.scheduleInfo(),
	}
	if err := s.tpl.Execute(w, data); err != nil {
		s.logger.Error("render dashboard", "error", err)
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	latest, _, ok := s.runner.Latest()
	resp := struct {
		Status   pipeline.Status      `json:"status"`
		Schedule scheduleInfo         `json:"schedule"`
		Latest   *pipeline.RunSummary `json:"latest"`
	}{
		Status:   s.runner.Status(),
		Schedule: s.scheduleInfo(),
	}
	if ok {
		resp.Latest = latest
	}
	writeJSON(w, http.StatusOK, resp)
}

// timeseriesResponse is shaped for direct consumption by the chart code:
// one x axis and parallel y series.
type timeseriesResponse struct {
	RunID      string               `json:"run_id"`
	Timestamps []uint32             `json:"timestamps"`
	Series     map[string][]float64 `json:"series"`
	Scores     []float64            `json:"scores"`
	Flagged    []int                `json:"flagged_indexes"`
}

func (s *Server) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	sum, scored, ok := s.runner.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no completed run yet")
		return
	}

	resp := timeseriesResponse{
		RunID:      sum.RunID,
		Timestamps: make([]uint32, len(scored)),
		Series:     make(map[string][]float64, len(telemetry.FeatureNames)),
		Scores:     make([]float64, len(scored)),
	}
	for _, name := range telemetry.FeatureNames {
		resp.Series[name] = make([]float64, len(scored))
	}
	for i, sp := range scored {
		resp.Timestamps[i] = sp.Timestamp
		resp.Scores[i] = sp.Score
		feats := sp.Features()
		for j, name := range telemetry.FeatureNames {
			resp.Series[name][i] = feats[j]
		}
		if sp.Flagged {
			resp.Flagged = append(resp.Flagged, i)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type anomalyRow struct {
	Index  int                `json:"index"`
	Score  float64            `json:"anomaly_score"`
	Mode   string             `json:"mode"`
	Fields map[string]float64 `json:"fields"`
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	sum, scored, ok := s.runner.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no completed run yet")
		return
	}

	rows := []anomalyRow{}
	for i, sp := range scored {
		if !sp.Flagged {
			continue
		}
		fields := make(map[string]float64, len(telemetry.FeatureNames))
		feats := sp.Features()
		for j, name := range telemetry.FeatureNames {
			fields[name] = feats[j]
		}
		rows = append(rows, anomalyRow{
			Index:  i,
			Score:  sp.Score,
			Mode:   telemetry.ModeName(sp.Mode),
			Fields: fields,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })

	writeJSON(w, http.StatusOK, struct {
		RunID     string       `json:"run_id"`
		Anomalies []anomalyRow `json:"anomalies"`
	}{RunID: sum.RunID, Anomalies: rows})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	err := s.runner.RunAsync(pipeline.TriggerManual)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		writeError(w, http.StatusConflict, "a run is already in progress")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	}
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DailyAt string `json:"daily_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if s.sched == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running")
		return
	}
	if err := s.sched.Reschedule(req.DailyAt); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid schedule time: %v", err))
		return
	}
	// Persist so the new time survives a restart. The reschedule already took
	// effect, so a persistence failure only costs durability.
	if err := config.SaveSchedule(s.cfg.ScheduleFile(), req.DailyAt); err != nil {
		s.logger.Error("persist schedule", "error", err)
	}
	s.logger.Info("schedule updated", "daily_at", req.DailyAt)
	writeJSON(w, http.StatusOK, s.scheduleInfo())
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question must not be empty")
		return
	}

	answer, err := s.runner.Ask(r.Context(), req.Question)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	exp, err := s.runner.ExplainTop(r.Context())
	switch {
	case errors.Is(err, pipeline.ErrNoRun):
		writeError(w, http.StatusNotFound, "no completed run yet")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, exp)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
