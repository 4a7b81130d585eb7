// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// GeneratorConfig controls synthetic packet generation.
type GeneratorConfig struct {
	PacketCount int     `yaml:"packet_count"`
	FaultRate   float64 `yaml:"fault_rate"`
	Seed        int64   `yaml:"seed"`
}

// DetectorConfig controls the isolation-forest detector.
type DetectorConfig struct {
	Trees          int     `yaml:"trees"`
	SampleFraction float64 `yaml:"sample_fraction"`
	Contamination  float64 `yaml:"contamination"`
	Threshold      float64 `yaml:"threshold"`
	// Seed fixes training-sample selection and forest initialization so
	// repeated runs over the same batch produce the same scores.
	Seed int64 `yaml:"seed"`
}

// NarrativeConfig controls the hosted language-model client.
type NarrativeConfig struct {
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the per-call deadline for narrative requests.
func (n NarrativeConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// ScheduleConfig holds the daily trigger time as "HH:MM" local time.
type ScheduleConfig struct {
	DailyAt string `yaml:"daily_at"`
}

// DashboardConfig holds the web UI listen address.
type DashboardConfig struct {
	Listen string `yaml:"listen"`
}

// Config is the root configuration for the telemetry pipeline.
type Config struct {
	DataDir    string          `yaml:"data_dir"`
	ReportsDir string          `yaml:"reports_dir"`
	LogsDir    string          `yaml:"logs_dir"`
	Generator  GeneratorConfig `yaml:"generator"`
	Detector   DetectorConfig  `yaml:"detector"`
	Narrative  NarrativeConfig `yaml:"narrative"`
	Schedule   ScheduleConfig  `yaml:"schedule"`
	Dashboard  DashboardConfig `yaml:"dashboard"`

	// Credentials and endpoints come from the environment, never from YAML.
	OpenAIKey        string `yaml:"-"`
	GreptimeEndpoint string `yaml:"-"`
}

// Load loads YAML config, validates it against a CUE schema, applies
// defaults and environment overrides, and folds in a dashboard-persisted
// schedule time if one exists.
func Load(configPath, cueSchemaPath string) (*Config, error) {
	if err := ValidateWithCue(configPath, cueSchemaPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	if m := os.Getenv("OPENAI_MODEL"); m != "" {
		cfg.Narrative.Model = m
	}
	cfg.GreptimeEndpoint = os.Getenv("GREPTIMEDB_ENDPOINT")

	// A schedule saved from the dashboard wins over the YAML value.
	if saved, err := LoadSavedSchedule(cfg.ScheduleFile()); err == nil && saved != "" {
		cfg.Schedule.DailyAt = saved
	}

	if _, _, err := ParseDailyAt(cfg.Schedule.DailyAt); err != nil {
		return nil, fmt.Errorf("invalid schedule.daily_at: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.ReportsDir == "" {
		c.ReportsDir = "reports"
	}
	if c.LogsDir == "" {
		c.LogsDir = "logs"
	}
	if c.Generator.PacketCount == 0 {
		c.Generator.PacketCount = 500
	}
	if c.Generator.FaultRate == 0 {
		c.Generator.FaultRate = 0.02
	}
	if c.Detector.Trees == 0 {
		c.Detector.Trees = 200
	}
	if c.Detector.SampleFraction == 0 {
		c.Detector.SampleFraction = 0.6
	}
	if c.Detector.Contamination == 0 {
		c.Detector.Contamination = 0.03
	}
	if c.Detector.Threshold == 0 {
		c.Detector.Threshold = 0.9
	}
	if c.Detector.Seed == 0 {
		c.Detector.Seed = 42
	}
	if c.Narrative.Model == "" {
		c.Narrative.Model = "gpt-4.1-mini"
	}
	if c.Narrative.TimeoutSeconds == 0 {
		c.Narrative.TimeoutSeconds = 60
	}
	if c.Schedule.DailyAt == "" {
		c.Schedule.DailyAt = "02:00"
	}
	if c.Dashboard.Listen == "" {
		c.Dashboard.Listen = ":8080"
	}
}

// EnsureDirs creates the data, reports, and logs directories.
func (c *Config) EnsureDirs() error {
	for _, d := range []string{c.DataDir, c.ReportsDir, c.LogsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// BinFile is the flat binary telemetry record file, rewritten each run.
func (c *Config) BinFile() string { return filepath.Join(c.DataDir, "telemetry_packets.bin") }

// CSVFile is the decoded CSV written alongside the binary file.
func (c *Config) CSVFile() string { return filepath.Join(c.DataDir, "telemetry_packets.csv") }

// LastRunFile points at the most recent run summary for the console and UI.
func (c *Config) LastRunFile() string { return filepath.Join(c.DataDir, "last_run.json") }

// ScheduleFile persists dashboard schedule updates across restarts.
func (c *Config) ScheduleFile() string { return filepath.Join(c.DataDir, "schedule.json") }

// RunLogFile is the append-only one-line-per-run history log.
func (c *Config) RunLogFile() string { return filepath.Join(c.LogsDir, "nightly_runs.log") }

// ScoredFile is the JSONL sink of scored packets from the latest runs.
func (c *Config) ScoredFile() string { return filepath.Join(c.DataDir, "scored_packets.jsonl") }

// ParseDailyAt parses an "HH:MM" time-of-day value.
func ParseDailyAt(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("want HH:MM, got %q: %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}
