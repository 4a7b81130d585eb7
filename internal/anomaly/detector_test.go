package anomaly

import (
	"errors"
	"testing"

	"cubesat-nightly/internal/telemetry"
)

// uniformBatch builds packets with tiny variation around nominal values.
func uniformBatch(n int) []telemetry.Packet {
	packets := make([]telemetry.Packet, 0, n)
	for i := 0; i < n; i++ {
		packets = append(packets, telemetry.Packet{
			Timestamp: 1700000000 + uint32(i),
			BatteryV:  7.4 + float32(i%7)*0.01,
			PanelI:    1.2 + float32(i%5)*0.01,
			TempC:     35.0 + float32(i%9)*0.1,
			GyroX:     0.01,
			GyroY:     -0.01,
			GyroZ:     0.005,
			Mode:      telemetry.ModeNominal,
		})
	}
	return packets
}

func TestFitScoreTooFewPackets(t *testing.T) {
	d := New(Config{})
	_, err := d.FitScore(uniformBatch(MinBatchSize - 1))
	if !errors.Is(err, ErrTooFewPackets) {
		t.Fatalf("got err=%v, want ErrTooFewPackets", err)
	}
}

func TestFitScoreUniformBatchFlagsNearZero(t *testing.T) {
	d := New(Config{Threshold: 0.9, Seed: 42})
	res, err := d.FitScore(uniformBatch(400))
	if err != nil {
		t.Fatalf("FitScore: %v", err)
	}
	if got := res.AnomalyCount(); got > 400/20 {
		t.Errorf("uniform batch flagged %d packets, want near zero", got)
	}
}

func TestFitScoreFlagsInjectedOutlier(t *testing.T) {
	batch := uniformBatch(400)
	outlier := 123
	batch[outlier].BatteryV *= 100 // battery voltage 100x normal

	d := New(Config{Threshold: 0.9, Seed: 42})
	res, err := d.FitScore(batch)
	if err != nil {
		t.Fatalf("FitScore: %v", err)
	}
	if !res.Flags[outlier] {
		t.Fatalf("outlier packet not flagged (score=%.3f)", res.Scores[outlier])
	}
	idx, score, ok := res.Top()
	if !ok || idx != outlier {
		t.Errorf("Top() = (%d, %.3f, %v), want index %d", idx, score, ok, outlier)
	}
}

func TestFitScoreScoresNormalized(t *testing.T) {
	d := New(Config{Seed: 42})
	res, err := d.FitScore(uniformBatch(100))
	if err != nil {
		t.Fatalf("FitScore: %v", err)
	}
	if len(res.Scores) != 100 || len(res.Flags) != 100 {
		t.Fatalf("result not index-aligned: %d scores, %d flags", len(res.Scores), len(res.Flags))
	}
	for i, s := range res.Scores {
		if s < 0 || s > 1 {
			t.Errorf("score %d = %v outside [0,1]", i, s)
		}
	}
}

func TestFitScoreDeterministicWithSeed(t *testing.T) {
	batch := uniformBatch(200)
	a, err := New(Config{Seed: 42}).FitScore(batch)
	if err != nil {
		t.Fatalf("FitScore: %v", err)
	}
	b, err := New(Config{Seed: 42}).FitScore(batch)
	if err != nil {
		t.Fatalf("FitScore: %v", err)
	}
	for i := range a.Scores {
		if a.Scores[i] != b.Scores[i] {
			t.Fatalf("score %d differs between identically seeded detectors", i)
		}
	}
}

func TestStats(t *testing.T) {
	batch := uniformBatch(100)
	batch[0].TempC = 500 // flagged packet must not pollute the baseline
	res := Result{Scores: make([]float64, 100), Flags: make([]bool, 100)}
	res.Scores[0] = 1
	res.Flags[0] = true

	stats := Stats(batch, res)
	if stats.TotalPackets != 100 || stats.AnomalyCount != 1 {
		t.Fatalf("totals = %d/%d, want 100/1", stats.TotalPackets, stats.AnomalyCount)
	}
	temp, ok := stats.Fields["temp_c"]
	if !ok {
		t.Fatal("missing temp_c stats")
	}
	if temp.Max >= 500 {
		t.Errorf("flagged outlier leaked into baseline: max temp %v", temp.Max)
	}
	if temp.Mean < 30 || temp.Mean > 40 {
		t.Errorf("temp mean %v outside nominal band", temp.Mean)
	}
	if temp.Std < 0 {
		t.Errorf("negative std %v", temp.Std)
	}
}

func TestStatsEmptyResult(t *testing.T) {
	batch := uniformBatch(10)
	stats := Stats(batch, Result{})
	if stats.TotalPackets != 10 || stats.AnomalyCount != 0 {
		t.Fatalf("totals = %d/%d, want 10/0", stats.TotalPackets, stats.AnomalyCount)
	}
	if len(stats.Fields) != len(telemetry.FeatureNames) {
		t.Errorf("got %d fields, want %d", len(stats.Fields), len(telemetry.FeatureNames))
	}
}
