package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cubesat-nightly/internal/telemetry"
)

var (
	generateCount     int
	generateFaultRate float64
	generateOut       string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a batch of synthetic telemetry packets",
	Long: "generate produces one batch of synthetic CubeSat telemetry with injected\n" +
		"fault scenarios and writes it as fixed-layout binary records.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.EnsureDirs(); err != nil {
			return err
		}

		count := generateCount
		if count <= 0 {
			count = cfg.Generator.PacketCount
		}
		faultRate := generateFaultRate
		if faultRate < 0 {
			faultRate = cfg.Generator.FaultRate
		}
		out := generateOut
		if out == "" {
			out = cfg.BinFile()
		}

		gen := telemetry.NewGenerator(faultRate, cfg.Generator.Seed)
		packets := gen.Generate(count)
		if err := telemetry.WriteFile(out, packets); err != nil {
			return err
		}

		fmt.Printf("wrote %d packets (%d bytes) to %s\n",
			len(packets), len(packets)*telemetry.PacketSize, out)
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVar(&generateCount, "count", 0, "Packets to generate (0 = config value)")
	generateCmd.Flags().Float64Var(&generateFaultRate, "fault-rate", -1, "Fault injection probability (negative = config value)")
	generateCmd.Flags().StringVar(&generateOut, "out", "", "Output file (default: configured bin file)")
}
