package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
)

// ScoredSink receives the scored packets of a finished run. Sinks are
// best-effort: a sink failure is logged but does not fail the run.
type ScoredSink interface {
	WriteScored(runID string, packets []ScoredPacket) error
}

// MultiSink fans scored packets out to multiple sinks.
type MultiSink []ScoredSink

// WriteScored sends the batch to every sink, returning the first error.
func (m MultiSink) WriteScored(runID string, packets []ScoredPacket) error {
	for _, s := range m {
		if err := s.WriteScored(runID, packets); err != nil {
			return err
		}
	}
	return nil
}

type scoredRecord struct {
	RunID string `json:"run_id"`
	ScoredPacket
}

// JSONLSink appends scored packets to a JSONL file, one object per packet.
type JSONLSink struct {
	Path string
}

// WriteScored implements ScoredSink.
func (s *JSONLSink) WriteScored(runID string, packets []ScoredPacket) error {
	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open scored sink: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, p := range packets {
		if err := enc.Encode(scoredRecord{RunID: runID, ScoredPacket: p}); err != nil {
			return fmt.Errorf("write scored packet: %w", err)
		}
	}
	return nil
}
