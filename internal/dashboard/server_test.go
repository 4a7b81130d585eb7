package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cubesat-nightly/internal/config"
	"cubesat-nightly/internal/logging"
	"cubesat-nightly/internal/pipeline"
	"cubesat-nightly/internal/telemetry"
)

type fakePipeline struct {
	latest   *pipeline.RunSummary
	scored   []pipeline.ScoredPacket
	status   pipeline.Status
	runErr   error
	runCalls int
}

func (f *fakePipeline) RunAsync(trigger string) error {
	f.runCalls++
	return f.runErr
}

func (f *fakePipeline) Latest() (*pipeline.RunSummary, []pipeline.ScoredPacket, bool) {
	return f.latest, f.scored, f.latest != nil
}

func (f *fakePipeline) Status() pipeline.Status { return f.status }

func (f *fakePipeline) Ask(ctx context.Context, question string) (string, error) {
	return "answer: " + question, nil
}

func (f *fakePipeline) ExplainTop(ctx context.Context) (*pipeline.Explanation, error) {
	if f.latest == nil {
		return nil, pipeline.ErrNoRun
	}
	return &pipeline.Explanation{PacketIndex: 1, Score: 0.97, Explanation: "gyro spike"}, nil
}

type fakeSchedule struct {
	dailyAt string
	err     error
}

func (f *fakeSchedule) Reschedule(dailyAt string) error {
	if f.err != nil {
		return f.err
	}
	f.dailyAt = dailyAt
	return nil
}

func (f *fakeSchedule) DailyAt() string    { return f.dailyAt }
func (f *fakeSchedule) NextRun() time.Time { return time.Now().Add(time.Hour) }

func completedRun() (*pipeline.RunSummary, []pipeline.ScoredPacket) {
	sum := &pipeline.RunSummary{
		RunID:              "run-1",
		Trigger:            pipeline.TriggerScheduled,
		TotalPackets:       3,
		AnomalyCount:       1,
		AnomalyRatePercent: 33.3,
		TimestampReadable:  "2026-08-23 02:00:00",
		Briefing:           "- all nominal",
		Actions:            "- no action required",
	}
	scored := []pipeline.ScoredPacket{
		{Packet: telemetry.Packet{Timestamp: 100, BatteryV: 7.4, Mode: telemetry.ModeNominal}, Score: 0.1},
		{Packet: telemetry.Packet{Timestamp: 101, BatteryV: 2.1, Mode: telemetry.ModeSafe}, Score: 0.97, Flagged: true},
		{Packet: telemetry.Packet{Timestamp: 102, BatteryV: 7.5, Mode: telemetry.ModeNominal}, Score: 0.2},
	}
	return sum, scored
}

func newTestServer(t *testing.T, p *fakePipeline, sched Schedule) *Server {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		DataDir:    filepath.Join(root, "data"),
		ReportsDir: filepath.Join(root, "reports"),
		LogsDir:    filepath.Join(root, "logs"),
		Dashboard:  config.DashboardConfig{Listen: ":0"},
	}
	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	return NewServer(cfg, p, sched, logging.New())
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	resp := w.Result()

	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestIndexRendersLatestRun(t *testing.T) {
	sum, scored := completedRun()
	p := &fakePipeline{latest: sum, scored: scored, status: pipeline.Status{State: pipeline.StateIdle}}
	h := newTestServer(t, p, &fakeSchedule{dailyAt: "02:00"}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET / = %d", w.Code)
	}
	page := w.Body.String()
	for _, want := range []string{"all nominal", "no action required", "02:00", "Run Now"} {
		if !strings.Contains(page, want) {
			t.Errorf("index page missing %q", want)
		}
	}
}

func TestIndexWithoutRuns(t *testing.T) {
	p := &fakePipeline{status: pipeline.Status{State: pipeline.StateIdle}}
	h := newTestServer(t, p, &fakeSchedule{dailyAt: "02:00"}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("GET / = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "No completed run yet") {
		t.Error("empty-state message missing")
	}
}

func TestSummary(t *testing.T) {
	sum, scored := completedRun()
	p := &fakePipeline{latest: sum, scored: scored, status: pipeline.Status{State: pipeline.StateIdle, LastOutcome: pipeline.OutcomeSuccess}}
	h := newTestServer(t, p, &fakeSchedule{dailyAt: "02:00"}).Handler()

	resp, body := doJSON(t, h, http.MethodGet, "/api/summary", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	latest, ok := body["latest"].(map[string]any)
	if !ok || latest["run_id"] != "run-1" {
		t.Errorf("latest missing or wrong: %v", body["latest"])
	}
	sched, ok := body["schedule"].(map[string]any)
	if !ok || sched["daily_at"] != "02:00" {
		t.Errorf("schedule missing or wrong: %v", body["schedule"])
	}
}

func TestTimeseriesAndAnomalies(t *testing.T) {
	sum, scored := completedRun()
	p := &fakePipeline{latest: sum, scored: scored}
	h := newTestServer(t, p, &fakeSchedule{}).Handler()

	resp, body := doJSON(t, h, http.MethodGet, "/api/timeseries", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("timeseries status = %d", resp.StatusCode)
	}
	series := body["series"].(map[string]any)
	if len(series["battery_v"].([]any)) != 3 {
		t.Errorf("battery_v series length wrong: %v", series["battery_v"])
	}
	flagged := body["flagged_indexes"].([]any)
	if len(flagged) != 1 || flagged[0].(float64) != 1 {
		t.Errorf("flagged_indexes = %v, want [1]", flagged)
	}

	resp, body = doJSON(t, h, http.MethodGet, "/api/anomalies", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("anomalies status = %d", resp.StatusCode)
	}
	rows := body["anomalies"].([]any)
	if len(rows) != 1 {
		t.Fatalf("got %d anomalies, want 1", len(rows))
	}
	row := rows[0].(map[string]any)
	if row["index"].(float64) != 1 || row["mode"] != "SAFE" {
		t.Errorf("anomaly row wrong: %v", row)
	}
}

func TestTimeseriesWithoutRuns(t *testing.T) {
	h := newTestServer(t, &fakePipeline{}, &fakeSchedule{}).Handler()
	resp, _ := doJSON(t, h, http.MethodGet, "/api/timeseries", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRunTrigger(t *testing.T) {
	p := &fakePipeline{}
	h := newTestServer(t, p, &fakeSchedule{}).Handler()

	resp, _ := doJSON(t, h, http.MethodPost, "/api/run", "")
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
	if p.runCalls != 1 {
		t.Errorf("runCalls = %d, want 1", p.runCalls)
	}

	// GET on a POST-only route is rejected by the mux.
	resp, _ = doJSON(t, h, http.MethodGet, "/api/run", "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/run = %d, want 405", resp.StatusCode)
	}
}

func TestRunTriggerConflict(t *testing.T) {
	p := &fakePipeline{runErr: pipeline.ErrRunInProgress}
	h := newTestServer(t, p, &fakeSchedule{}).Handler()

	resp, body := doJSON(t, h, http.MethodPost, "/api/run", "")
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Error("conflict response has no error message")
	}
}

func TestScheduleUpdate(t *testing.T) {
	sched := &fakeSchedule{dailyAt: "02:00"}
	srv := newTestServer(t, &fakePipeline{}, sched)
	h := srv.Handler()

	resp, body := doJSON(t, h, http.MethodPost, "/api/schedule", `{"daily_at":"05:30"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %v", resp.StatusCode, body)
	}
	if sched.dailyAt != "05:30" {
		t.Errorf("scheduler not updated: %q", sched.dailyAt)
	}

	// The new time is persisted for the next process start.
	saved, err := config.LoadSavedSchedule(srv.cfg.ScheduleFile())
	if err != nil {
		t.Fatalf("LoadSavedSchedule: %v", err)
	}
	if saved != "05:30" {
		t.Errorf("persisted schedule = %q, want 05:30", saved)
	}
}

func TestScheduleRejectsBadTime(t *testing.T) {
	sched := &fakeSchedule{dailyAt: "02:00", err: errors.New("want HH:MM")}
	h := newTestServer(t, &fakePipeline{}, sched).Handler()

	resp, _ := doJSON(t, h, http.MethodPost, "/api/schedule", `{"daily_at":"25:99"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	if sched.dailyAt != "02:00" {
		t.Errorf("schedule changed on invalid input: %q", sched.dailyAt)
	}
}

func TestAsk(t *testing.T) {
	sum, scored := completedRun()
	h := newTestServer(t, &fakePipeline{latest: sum, scored: scored}, &fakeSchedule{}).Handler()

	resp, body := doJSON(t, h, http.MethodPost, "/api/ask", `{"question":"battery ok?"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["answer"] != "answer: battery ok?" {
		t.Errorf("answer = %v", body["answer"])
	}

	resp, _ = doJSON(t, h, http.MethodPost, "/api/ask", `{"question":""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty question status = %d, want 400", resp.StatusCode)
	}
}

func TestExplain(t *testing.T) {
	sum, scored := completedRun()
	h := newTestServer(t, &fakePipeline{latest: sum, scored: scored}, &fakeSchedule{}).Handler()

	resp, body := doJSON(t, h, http.MethodPost, "/api/explain", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["explanation"] != "gyro spike" {
		t.Errorf("explanation = %v", body["explanation"])
	}

	h = newTestServer(t, &fakePipeline{}, &fakeSchedule{}).Handler()
	resp, _ = doJSON(t, h, http.MethodPost, "/api/explain", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("explain without runs = %d, want 404", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, &fakePipeline{}, &fakeSchedule{}).Handler()
	resp, body := doJSON(t, h, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("healthz = %d %v", resp.StatusCode, body)
	}
}
