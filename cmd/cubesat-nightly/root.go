package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"cubesat-nightly/internal/config"
	"cubesat-nightly/internal/logging"
	"cubesat-nightly/internal/narrative"
	"cubesat-nightly/internal/pipeline"
)

var (
	configPath string
	schemaPath string
)

var rootCmd = &cobra.Command{
	Use:   "cubesat-nightly",
	Short: "CubeSat nightly telemetry pipeline",
	Long: "cubesat-nightly generates synthetic CubeSat telemetry, scores it for anomalies,\n" +
		"writes an AI-assisted PDF mission report, and serves a web dashboard over the results.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/pipeline.yaml", "Path to pipeline configuration YAML")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "schemas/pipeline.cue", "Path to CUE schema file")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(consoleCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath, schemaPath)
}

// newNarrative builds the narrative generator. With no API key configured
// it returns the disabled generator and every caller degrades gracefully.
func newNarrative(cfg *config.Config) narrative.Generator {
	return narrative.NewOpenAI(cfg.OpenAIKey, cfg.Narrative.Model, cfg.Narrative.Timeout())
}

// newRunner wires the full pipeline: narrative generator plus scored-packet
// sinks. The JSONL sink is always on; GreptimeDB is added when an endpoint
// is configured.
func newRunner(cfg *config.Config, logger *slog.Logger) (*pipeline.Runner, error) {
	sinks := pipeline.MultiSink{&pipeline.JSONLSink{Path: cfg.ScoredFile()}}
	if cfg.GreptimeEndpoint != "" {
		gs, err := pipeline.NewGreptimeSink(cfg.GreptimeEndpoint, "public")
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, gs)
		logger.Info("greptimedb sink enabled", "endpoint", cfg.GreptimeEndpoint)
	}

	r := pipeline.NewRunner(cfg, newNarrative(cfg), sinks, logger)
	r.RestoreLatest()
	return r, nil
}

func newLogger() *slog.Logger {
	return logging.New()
}
