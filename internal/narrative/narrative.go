// Package narrative turns run statistics into prose via a hosted
// language-model service. The Generator interface keeps the pipeline
// testable with a deterministic stub; the OpenAI implementation lives in
// openai.go.
package narrative

import (
	"context"
	"errors"
	"fmt"

	"cubesat-nightly/internal/anomaly"
)

// ErrUnavailable wraps any transport, auth, rate-limit, or timeout failure
// from the narrative service. Callers degrade to placeholder text instead
// of failing the run.
var ErrUnavailable = errors.New("narrative service unavailable")

// RunFacts is the structured summary handed to the generator. Keeping this
// flat keeps prompts reproducible and the interface free of live pipeline
// types.
type RunFacts struct {
	Timestamp          string                        `json:"timestamp"`
	TotalPackets       int                           `json:"total_packets"`
	AnomalyCount       int                           `json:"anomaly_count"`
	AnomalyRatePercent float64                       `json:"anomaly_rate_percent"`
	Fields             map[string]anomaly.FieldStats `json:"fields"`
}

// PacketFacts describes one anomalous packet for explanation prompts.
type PacketFacts struct {
	Index  int                `json:"index"`
	Score  float64            `json:"score"`
	Fields map[string]float64 `json:"fields"`
}

// Generator produces narrative text from structured run data. Responses are
// neither idempotent nor deterministic between calls with the same input.
type Generator interface {
	// Briefing writes a bullet-point mission briefing for one run.
	Briefing(ctx context.Context, facts RunFacts) (string, error)
	// Actions extracts key findings and recommended checks from a briefing.
	Actions(ctx context.Context, facts RunFacts, briefing string) (string, error)
	// ExplainAnomaly explains why one packet was flagged.
	ExplainAnomaly(ctx context.Context, packet PacketFacts, facts RunFacts) (string, error)
	// Answer answers a free-text telemetry question given run context.
	Answer(ctx context.Context, question, context string) (string, error)
}

// Disabled is the generator used when no API credential is configured.
// Every call reports the service as unavailable so the pipeline degrades.
type Disabled struct{}

func (Disabled) Briefing(context.Context, RunFacts) (string, error) {
	return "", fmt.Errorf("%w: no API key configured", ErrUnavailable)
}

func (Disabled) Actions(context.Context, RunFacts, string) (string, error) {
	return "", fmt.Errorf("%w: no API key configured", ErrUnavailable)
}

func (Disabled) ExplainAnomaly(context.Context, PacketFacts, RunFacts) (string, error) {
	return "", fmt.Errorf("%w: no API key configured", ErrUnavailable)
}

func (Disabled) Answer(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("%w: no API key configured", ErrUnavailable)
}

// PlaceholderBriefing is the degraded briefing used when the service fails.
// It is always non-empty so reports never ship with blank sections.
func PlaceholderBriefing(facts RunFacts) string {
	return fmt.Sprintf(
		"AI summary unavailable for this run.\n"+
			"- Packets processed: %d\n"+
			"- Anomalies flagged: %d (%.1f%%)\n"+
			"- Narrative service could not be reached; numbers above are from the detector only.",
		facts.TotalPackets, facts.AnomalyCount, facts.AnomalyRatePercent)
}

// PlaceholderActions is the degraded findings/actions section.
func PlaceholderActions() string {
	return "Key Findings:\n" +
		"- AI summary unavailable; findings could not be generated.\n" +
		"Recommended Checks / Actions:\n" +
		"- Verify narrative service credentials and connectivity, then re-run the pipeline."
}

// PlaceholderAnswer is the degraded response for dashboard questions.
func PlaceholderAnswer() string {
	return "AI summary unavailable: the narrative service could not be reached. " +
		"Try again once connectivity is restored."
}
