package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cubesat-nightly/internal/anomaly"
	"cubesat-nightly/internal/narrative"
	"cubesat-nightly/internal/telemetry"
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Explain the most anomalous packet in the current batch",
	Long: "explain re-scores the current telemetry batch and asks the narrative service\n" +
		"why the highest-scoring packet was flagged.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		packets, err := telemetry.ReadFile(cfg.BinFile())
		if err != nil {
			return err
		}

		det := anomaly.New(anomaly.Config{
			Trees:          cfg.Detector.Trees,
			SampleFraction: cfg.Detector.SampleFraction,
			Contamination:  cfg.Detector.Contamination,
			Threshold:      cfg.Detector.Threshold,
			Seed:           cfg.Detector.Seed,
		})
		res, err := det.FitScore(packets)
		if err != nil {
			return err
		}

		idx, score, ok := res.Top()
		if !ok {
			fmt.Println("No anomalies detected in the current dataset.")
			return nil
		}

		fields := make(map[string]float64, len(telemetry.FeatureNames))
		features := packets[idx].Features()
		for i, name := range telemetry.FeatureNames {
			fields[name] = features[i]
		}

		stats := anomaly.Stats(packets, res)
		facts := narrative.RunFacts{
			Timestamp:          time.Now().Format("2006-01-02 15:04:05"),
			TotalPackets:       len(packets),
			AnomalyCount:       res.AnomalyCount(),
			AnomalyRatePercent: 100 * float64(res.AnomalyCount()) / float64(len(packets)),
			Fields:             stats.Fields,
		}
		packet := narrative.PacketFacts{Index: idx, Score: score, Fields: fields}

		text, err := newNarrative(cfg).ExplainAnomaly(cmd.Context(), packet, facts)
		if err != nil {
			return err
		}
		fmt.Printf("packet #%d score=%.3f\n\n%s\n", idx, score, text)
		return nil
	},
}
