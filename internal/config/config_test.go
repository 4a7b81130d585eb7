package config

import (
	"os"
	"path/filepath"
	"testing"
)

const schemaPath = "../../schemas/pipeline.cue"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
data_dir: `+filepath.Join(t.TempDir(), "data")+`
generator:
  packet_count: 100
  fault_rate: 0.05
detector:
  threshold: 0.85
schedule:
  daily_at: "03:30"
`)

	cfg, err := Load(path, schemaPath)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Generator.PacketCount != 100 {
		t.Errorf("PacketCount = %d, want 100", cfg.Generator.PacketCount)
	}
	if cfg.Detector.Threshold != 0.85 {
		t.Errorf("Threshold = %v, want 0.85", cfg.Detector.Threshold)
	}
	if cfg.Schedule.DailyAt != "03:30" {
		t.Errorf("DailyAt = %q, want 03:30", cfg.Schedule.DailyAt)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "data_dir: "+filepath.Join(t.TempDir(), "d")+"\n")

	cfg, err := Load(path, schemaPath)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Generator.PacketCount != 500 {
		t.Errorf("default PacketCount = %d, want 500", cfg.Generator.PacketCount)
	}
	if cfg.Detector.Trees != 200 || cfg.Detector.Seed != 42 {
		t.Errorf("unexpected detector defaults: %+v", cfg.Detector)
	}
	if cfg.Detector.Threshold != 0.9 {
		t.Errorf("default Threshold = %v, want 0.9", cfg.Detector.Threshold)
	}
	if cfg.Schedule.DailyAt != "02:00" {
		t.Errorf("default DailyAt = %q, want 02:00", cfg.Schedule.DailyAt)
	}
	if cfg.Narrative.Model != "gpt-4.1-mini" || cfg.Narrative.TimeoutSeconds != 60 {
		t.Errorf("unexpected narrative defaults: %+v", cfg.Narrative)
	}
}

func TestLoad_RejectsBadSchedule(t *testing.T) {
	cases := []string{"25:00", "2:0", "nope", "12:61"}
	for _, c := range cases {
		path := writeConfig(t, "schedule:\n  daily_at: \""+c+"\"\n")
		if _, err := Load(path, schemaPath); err == nil {
			t.Errorf("Load() accepted daily_at=%q", c)
		}
	}
}

func TestLoad_RejectsBadFaultRate(t *testing.T) {
	path := writeConfig(t, "generator:\n  fault_rate: 1.5\n")
	if _, err := Load(path, schemaPath); err == nil {
		t.Error("Load() accepted fault_rate=1.5")
	}
}

func TestLoad_SavedScheduleOverridesYAML(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, "data_dir: "+dataDir+"\nschedule:\n  daily_at: \"02:00\"\n")

	if err := SaveSchedule(filepath.Join(dataDir, "schedule.json"), "04:15"); err != nil {
		t.Fatalf("SaveSchedule: %v", err)
	}

	cfg, err := Load(path, schemaPath)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Schedule.DailyAt != "04:15" {
		t.Errorf("DailyAt = %q, want saved value 04:15", cfg.Schedule.DailyAt)
	}
}

func TestParseDailyAt(t *testing.T) {
	h, m, err := ParseDailyAt("23:45")
	if err != nil {
		t.Fatalf("ParseDailyAt: %v", err)
	}
	if h != 23 || m != 45 {
		t.Errorf("got %02d:%02d, want 23:45", h, m)
	}
	if _, _, err := ParseDailyAt("24:00"); err == nil {
		t.Error("ParseDailyAt accepted 24:00")
	}
}

func TestSaveScheduleRejectsInvalid(t *testing.T) {
	if err := SaveSchedule(filepath.Join(t.TempDir(), "s.json"), "99:99"); err == nil {
		t.Error("SaveSchedule accepted 99:99")
	}
}
