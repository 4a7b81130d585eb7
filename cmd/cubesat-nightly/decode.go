package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cubesat-nightly/internal/telemetry"
)

var decodeLimit int

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode the binary telemetry file to CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		packets, err := telemetry.ReadFile(cfg.BinFile())
		if err != nil {
			return err
		}
		if err := telemetry.WriteCSV(cfg.CSVFile(), packets); err != nil {
			return err
		}
		fmt.Printf("decoded %d packets to %s\n", len(packets), cfg.CSVFile())

		limit := decodeLimit
		if limit > len(packets) {
			limit = len(packets)
		}
		for _, p := range packets[:limit] {
			fmt.Printf("ts=%d battery_v=%.2f panel_i=%.2f temp_c=%.1f gyro=(%.3f,%.3f,%.3f) mode=%s\n",
				p.Timestamp, p.BatteryV, p.PanelI, p.TempC,
				p.GyroX, p.GyroY, p.GyroZ, telemetry.ModeName(p.Mode))
		}
		return nil
	},
}

func init() {
	decodeCmd.Flags().IntVar(&decodeLimit, "limit", 0, "Also print the first N decoded packets")
}
