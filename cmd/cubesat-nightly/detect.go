package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cubesat-nightly/internal/anomaly"
	"cubesat-nightly/internal/telemetry"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Score the binary telemetry file for anomalies",
	Long: "detect fits an isolation forest on the current telemetry batch, scores every\n" +
		"packet, and prints the flagged packets with their scores.",
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

		count := res.AnomalyCount()
		fmt.Printf("scored %d packets, %d anomalies (%.2f%%) at threshold %.2f\n",
			len(packets), count, 100*float64(count)/float64(len(packets)), cfg.Detector.Threshold)

		for i, p := range packets {
			if !res.Flags[i] {
				continue
			}
			fmt.Printf("  #%d score=%.3f ts=%d battery_v=%.2f panel_i=%.2f temp_c=%.1f gyro=(%.3f,%.3f,%.3f) mode=%s\n",
				i, res.Scores[i], p.Timestamp, p.BatteryV, p.PanelI, p.TempC,
				p.GyroX, p.GyroY, p.GyroZ, telemetry.ModeName(p.Mode))
		}
		return nil
	},
}
