package anomaly

import (
	"math"

	"cubesat-nightly/internal/telemetry"
)

// FieldStats summarizes one telemetry field over the non-flagged packets.
type FieldStats struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// RunStats is the baseline statistics bundle handed to the narrative
// generator and the report builder.
type RunStats struct {
	Fields       map[string]FieldStats `json:"fields"`
	TotalPackets int                   `json:"total_packets"`
	AnomalyCount int                   `json:"anomaly_count"`
}

// Stats computes per-field baselines over the packets NOT flagged as
// anomalous, so the baseline reflects normal operation. Falls back to the
// whole batch when everything is flagged.
func Stats(batch []telemetry.Packet, res Result) RunStats {
	normal := make([]telemetry.Packet, 0, len(batch))
	for i, p := range batch {
		if i >= len(res.Flags) || !res.Flags[i] {
			normal = append(normal, p)
		}
	}
	if len(normal) == 0 {
		normal = batch
	}

	fields := make(map[string]FieldStats, len(telemetry.FeatureNames))
	for col, name := range telemetry.FeatureNames {
		values := make([]float64, len(normal))
		for i, p := range normal {
			values[i] = p.Features()[col]
		}
		fields[name] = fieldStats(values)
	}

	return RunStats{
		Fields:       fields,
		TotalPackets: len(batch),
		AnomalyCount: res.AnomalyCount(),
	}
}

// fieldStats computes mean, sample standard deviation, min, and max.
func fieldStats(values []float64) FieldStats {
	if len(values) == 0 {
		return FieldStats{}
	}
	sum := 0.0
	fs := FieldStats{Min: values[0], Max: values[0]}
	for _, v := range values {
		sum += v
		fs.Min = math.Min(fs.Min, v)
		fs.Max = math.Max(fs.Max, v)
	}
	fs.Mean = sum / float64(len(values))

	if len(values) > 1 {
		ss := 0.0
		for _, v := range values {
			d := v - fs.Mean
			ss += d * d
		}
		fs.Std = math.Sqrt(ss / float64(len(values)-1))
	}
	return fs
}
