// Pipeline run sequencing with a single-flight run lock
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"cubesat-nightly/internal/anomaly"
	"cubesat-nightly/internal/config"
	"cubesat-nightly/internal/metrics"
	"cubesat-nightly/internal/narrative"
	"cubesat-nightly/internal/report"
	"cubesat-nightly/internal/telemetry"
)

// ErrRunInProgress is returned when a run is requested while another run
// holds the lock. The caller is expected to reject the trigger, not queue it.
var ErrRunInProgress = errors.New("pipeline: run already in progress")

// ErrNoRun is returned by queries that need a completed run.
var ErrNoRun = errors.New("pipeline: no run has completed yet")

// Runner owns the full generate → decode → score → narrate → report chain.
// Scheduled and manual triggers serialize through its run lock; only the
// run that holds the lock mutates the output files and the latest-run state.
type Runner struct {
	cfg    *config.Config
	gen    *telemetry.Generator
	det    *anomaly.Detector
	nar    narrative.Generator
	rep    *report.Builder
	sinks  ScoredSink
	logger *slog.Logger
	now    func() time.Time

	runMu sync.Mutex // the single-flight run lock

	stateMu sync.RWMutex
	latest  *RunSummary
	scored  []ScoredPacket
	status  Status
}

// NewRunner wires a runner from config. sinks may be nil.
func NewRunner(cfg *config.Config, nar narrative.Generator, sinks ScoredSink, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg: cfg,
		gen: telemetry.NewGenerator(cfg.Generator.FaultRate, cfg.Generator.Seed),
		det: anomaly.New(anomaly.Config{
			Trees:          cfg.Detector.Trees,
			SampleFraction: cfg.Detector.SampleFraction,
			Contamination:  cfg.Detector.Contamination,
			Threshold:      cfg.Detector.Threshold,
			Seed:           cfg.Detector.Seed,
		}),
		nar:    nar,
		rep:    report.NewBuilder(cfg.ReportsDir),
		sinks:  sinks,
		logger: logger,
		now:    time.Now,
		status: Status{State: StateIdle},
	}
}

// Run executes one full pipeline run, blocking until it finishes. It returns
// ErrRunInProgress immediately when another run holds the lock.
func (r *Runner) Run(ctx context.Context, trigger string) (*RunSummary, error) {
	if !r.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.runMu.Unlock()
	return r.run(ctx, trigger)
}

// RunAsync starts a run in the background after synchronously acquiring the
// run lock, so callers learn about a rejected trigger immediately while the
// caller's thread (e.g. an HTTP handler) stays responsive.
func (r *Runner) RunAsync(trigger string) error {
	if !r.runMu.TryLock() {
		return ErrRunInProgress
	}
	go func() {
		defer r.runMu.Unlock()
		if _, err := r.run(context.Background(), trigger); err != nil {
			r.logger.Error("background pipeline run failed", "trigger", trigger, "error", err)
		}
	}()
	return nil
}

// run executes the pipeline. The caller must hold runMu.
func (r *Runner) run(ctx context.Context, trigger string) (*RunSummary, error) {
	start := r.now()
	runID := uuid.NewString()
	log := r.logger.With("run_id", runID, "trigger", trigger)
	log.Info("pipeline run starting")

	r.setRunning()

	sum, scored, err := r.execute(ctx, trigger, runID, start, log)
	elapsed := time.Since(start)
	if err != nil {
		r.setFailure(start, err)
		metrics.ObserveRun(trigger, OutcomeFailure, elapsed)
		log.Error("pipeline run failed", "error", err)
		return nil, err
	}

	outcome := OutcomeSuccess
	if sum.Degraded {
		outcome = OutcomeDegraded
	}
	r.setLatest(sum, scored, outcome)
	metrics.ObserveRun(trigger, outcome, elapsed)
	metrics.SetLastRunAnomalies(sum.AnomalyCount)
	log.Info("pipeline run finished",
		"packets", sum.TotalPackets,
		"anomalies", sum.AnomalyCount,
		"degraded", sum.Degraded,
		"report", sum.ReportPDF,
		"duration", elapsed)
	return sum, nil
}

func (r *Runner) execute(ctx context.Context, trigger, runID string, start time.Time, log *slog.Logger) (*RunSummary, []ScoredPacket, error) {
	if err := r.cfg.EnsureDirs(); err != nil {
		return nil, nil, err
	}

	// 1. Generate a fresh binary telemetry file.
	packets := r.gen.Generate(r.cfg.Generator.PacketCount)
	if err := telemetry.WriteFile(r.cfg.BinFile(), packets); err != nil {
		return nil, nil, err
	}

	// 2. Decode it back; the file is the source of truth for the batch.
	batch, err := telemetry.ReadFile(r.cfg.BinFile())
	if err != nil {
		return nil, nil, err
	}
	if err := telemetry.WriteCSV(r.cfg.CSVFile(), batch); err != nil {
		return nil, nil, err
	}

	// 3. Fit on a sample, score every packet.
	result, err := r.det.FitScore(batch)
	if err != nil {
		return nil, nil, err
	}

	// 4. Baseline statistics over the non-flagged packets.
	stats := anomaly.Stats(batch, result)

	sum := &RunSummary{
		RunID:              runID,
		Trigger:            trigger,
		Timestamp:          start,
		TimestampReadable:  start.Format(readableTimeLayout),
		TotalPackets:       stats.TotalPackets,
		AnomalyCount:       stats.AnomalyCount,
		AnomalyRatePercent: ratePercent(stats.AnomalyCount, stats.TotalPackets),
		Stats:              stats,
		BinFile:            r.cfg.BinFile(),
		CSVFile:            r.cfg.CSVFile(),
	}
	if len(batch) > 0 {
		sum.FirstTimestamp = batch[0].Timestamp
		sum.LastTimestamp = batch[len(batch)-1].Timestamp
	}

	// 5. Narrative sections; failures degrade rather than abort.
	facts := r.facts(sum)
	briefing, err := r.nar.Briefing(ctx, facts)
	if err != nil {
		log.Warn("briefing unavailable, using placeholder", "error", err)
		sum.Degraded = true
		briefing = narrative.PlaceholderBriefing(facts)
	}
	sum.Briefing = briefing

	actions := ""
	if !sum.Degraded {
		actions, err = r.nar.Actions(ctx, facts, briefing)
		if err != nil {
			log.Warn("actions unavailable, using placeholder", "error", err)
			sum.Degraded = true
		}
	}
	if actions == "" {
		actions = narrative.PlaceholderActions()
	}
	sum.Actions = actions

	// 6. Report. A failed write keeps the previous report as "latest".
	reportPath, err := r.rep.Build(report.Data{
		GeneratedAt:        start,
		TotalPackets:       sum.TotalPackets,
		AnomalyCount:       sum.AnomalyCount,
		AnomalyRatePercent: sum.AnomalyRatePercent,
		Fields:             stats.Fields,
		Briefing:           sum.Briefing,
		Actions:            sum.Actions,
	})
	if err != nil {
		return nil, nil, err
	}
	sum.ReportPDF = reportPath
	sum.DurationSeconds = time.Since(start).Seconds()

	scored := make([]ScoredPacket, len(batch))
	for i, p := range batch {
		scored[i] = ScoredPacket{Packet: p, Score: result.Scores[i], Flagged: result.Flags[i]}
	}

	// 7. Best-effort bookkeeping: history log, last-run pointer, sinks.
	if err := AppendRunLine(r.cfg.RunLogFile(), sum); err != nil {
		log.Warn("could not append run log", "error", err)
	}
	if err := WriteLastRun(r.cfg.LastRunFile(), sum); err != nil {
		log.Warn("could not write last-run pointer", "error", err)
	}
	if r.sinks != nil {
		if err := r.sinks.WriteScored(runID, scored); err != nil {
			log.Warn("scored-packet sink failed", "error", err)
		}
	}

	return sum, scored, nil
}

// facts converts a summary into the structured input for narrative prompts.
func (r *Runner) facts(sum *RunSummary) narrative.RunFacts {
	return narrative.RunFacts{
		Timestamp:          sum.TimestampReadable,
		TotalPackets:       sum.TotalPackets,
		AnomalyCount:       sum.AnomalyCount,
		AnomalyRatePercent: sum.AnomalyRatePercent,
		Fields:             sum.Stats.Fields,
	}
}

func ratePercent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100.0
}

// Latest returns the most recent successful run and its scored packets.
func (r *Runner) Latest() (*RunSummary, []ScoredPacket, bool) {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	if r.latest == nil {
		return nil, nil, false
	}
	return r.latest, r.scored, true
}

// Status reports the runner state for the dashboard status area.
func (r *Runner) Status() Status {
	r.stateMu.RLock()
	defer r.stateMu.RUnlock()
	return r.status
}

func (r *Runner) setRunning() {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.status.State = StateRunning
}

func (r *Runner) setFailure(at time.Time, err error) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	// The previous latest summary stays untouched; only status changes.
	r.status = Status{
		State:       StateIdle,
		LastRunAt:   at,
		LastOutcome: OutcomeFailure,
		LastError:   err.Error(),
	}
}

func (r *Runner) setLatest(sum *RunSummary, scored []ScoredPacket, outcome string) {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.latest = sum
	r.scored = scored
	r.status = Status{
		State:       StateIdle,
		LastRunAt:   sum.Timestamp,
		LastOutcome: outcome,
	}
}

// RestoreLatest loads the persisted last-run summary on process start so the
// dashboard has something to show before the first run. Scored packets are
// not persisted; charts stay empty until a run completes.
func (r *Runner) RestoreLatest() {
	sum, err := ReadLastRun(r.cfg.LastRunFile())
	if err != nil {
		return
	}
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	r.latest = sum
	r.status = Status{
		State:       StateIdle,
		LastRunAt:   sum.Timestamp,
		LastOutcome: OutcomeSuccess,
	}
	if sum.Degraded {
		r.status.LastOutcome = OutcomeDegraded
	}
}

// Ask forwards a free-text question to the narrative generator with the
// latest run's statistics as context. Service failures degrade to a
// placeholder answer instead of propagating.
func (r *Runner) Ask(ctx context.Context, question string) (string, error) {
	if question == "" {
		return "", fmt.Errorf("pipeline: empty question")
	}
	sum, _, ok := r.Latest()
	runContext := "No telemetry run has completed yet."
	if ok {
		runContext = r.contextSummary(sum)
	}
	answer, err := r.nar.Answer(ctx, question, runContext)
	if err != nil {
		if errors.Is(err, narrative.ErrUnavailable) {
			return narrative.PlaceholderAnswer(), nil
		}
		return "", err
	}
	return answer, nil
}

// contextSummary builds the compact text context for Q&A prompts.
func (r *Runner) contextSummary(sum *RunSummary) string {
	out := fmt.Sprintf("Total packets: %d, anomalies: %d (%.1f%%), run at %s.\n",
		sum.TotalPackets, sum.AnomalyCount, sum.AnomalyRatePercent, sum.TimestampReadable)
	out += "Per-field statistics over normal packets:\n"
	for _, name := range telemetry.FeatureNames {
		if s, ok := sum.Stats.Fields[name]; ok {
			out += fmt.Sprintf("  %s: min=%.3f, max=%.3f, mean=%.3f, std=%.3f\n",
				name, s.Min, s.Max, s.Mean, s.Std)
		}
	}
	return out
}

// Explanation is the result of explaining the most anomalous packet.
type Explanation struct {
	Message     string             `json:"message,omitempty"` // set when there is nothing to explain
	PacketIndex int                `json:"packet_index"`
	Score       float64            `json:"anomaly_score"`
	Packet      map[string]float64 `json:"packet,omitempty"`
	Explanation string             `json:"explanation,omitempty"`
}

// ExplainTop asks the narrative generator to explain the most anomalous
// flagged packet of the latest run.
func (r *Runner) ExplainTop(ctx context.Context) (*Explanation, error) {
	sum, scored, ok := r.Latest()
	if !ok || len(scored) == 0 {
		return nil, ErrNoRun
	}

	topIdx, topScore := -1, 0.0
	for i, sp := range scored {
		if sp.Flagged && (topIdx == -1 || sp.Score > topScore) {
			topIdx, topScore = i, sp.Score
		}
	}
	if topIdx == -1 {
		return &Explanation{Message: "No anomalies detected in the current dataset."}, nil
	}

	fields := make(map[string]float64, len(telemetry.FeatureNames))
	features := scored[topIdx].Features()
	for i, name := range telemetry.FeatureNames {
		fields[name] = features[i]
	}

	packet := narrative.PacketFacts{Index: topIdx, Score: topScore, Fields: fields}
	text, err := r.nar.ExplainAnomaly(ctx, packet, r.facts(sum))
	if err != nil {
		if errors.Is(err, narrative.ErrUnavailable) {
			text = narrative.PlaceholderAnswer()
		} else {
			return nil, err
		}
	}

	return &Explanation{
		PacketIndex: topIdx,
		Score:       topScore,
		Packet:      fields,
		Explanation: text,
	}, nil
}
