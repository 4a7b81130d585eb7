package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cubesat-nightly/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one full pipeline run",
	Long: "run executes the complete chain once: generate telemetry, decode it, score it\n" +
		"for anomalies, write the AI mission briefing, and render the PDF report.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := newLogger()
		r, err := newRunner(cfg, logger)
		if err != nil {
			return err
		}

		sum, err := r.Run(cmd.Context(), pipeline.TriggerManual)
		if err != nil {
			return err
		}

		fmt.Printf("run %s finished: %d packets, %d anomalies (%.2f%%)\n",
			sum.RunID, sum.TotalPackets, sum.AnomalyCount, sum.AnomalyRatePercent)
		if sum.Degraded {
			fmt.Println("narrative service unavailable; report contains placeholder text")
		}
		fmt.Printf("report: %s\n", sum.ReportPDF)
		return nil
	},
}
