package pipeline

import (
	"time"

	"cubesat-nightly/internal/anomaly"
	"cubesat-nightly/internal/telemetry"
)

// readableTimeLayout is used for log lines and the report meta block.
const readableTimeLayout = "2006-01-02 15:04:05"

// ScoredPacket pairs one decoded packet with its anomaly score and flag.
type ScoredPacket struct {
	telemetry.Packet
	Score   float64 `json:"anomaly_score"`
	Flagged bool    `json:"is_anomaly"`
}

// RunSummary is the immutable record of one pipeline run.
type RunSummary struct {
	RunID              string           `json:"run_id"`
	Trigger            string           `json:"trigger"`
	Timestamp          time.Time        `json:"timestamp"`
	TimestampReadable  string           `json:"timestamp_readable"`
	DurationSeconds    float64          `json:"duration_seconds"`
	TotalPackets       int              `json:"total_packets"`
	AnomalyCount       int              `json:"anomaly_count"`
	AnomalyRatePercent float64          `json:"anomaly_rate_percent"`
	FirstTimestamp     uint32           `json:"first_timestamp"`
	LastTimestamp      uint32           `json:"last_timestamp"`
	Stats              anomaly.RunStats `json:"stats"`
	Briefing           string           `json:"briefing"`
	Actions            string           `json:"actions"`
	Degraded           bool             `json:"degraded"`
	BinFile            string           `json:"bin_file"`
	CSVFile            string           `json:"csv_file"`
	ReportPDF          string           `json:"report_pdf"`
}

// Status describes the runner for the dashboard status area.
type Status struct {
	State       string    `json:"state"` // "idle" or "running"
	LastRunAt   time.Time `json:"last_run_at,omitempty"`
	LastOutcome string    `json:"last_outcome,omitempty"` // "success", "degraded", "failure"
	LastError   string    `json:"last_error,omitempty"`
}

// Run status and outcome values.
const (
	StateIdle    = "idle"
	StateRunning = "running"

	OutcomeSuccess  = "success"
	OutcomeDegraded = "degraded"
	OutcomeFailure  = "failure"
)

// Triggers for a pipeline run.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)
