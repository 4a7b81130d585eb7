package config

import (
	"encoding/json"
	"fmt"
	"os"
)

type savedSchedule struct {
	DailyAt string `json:"daily_at"`
}

// SaveSchedule persists a dashboard-chosen daily trigger time so it survives
// process restarts. The value must already be validated.
func SaveSchedule(path, dailyAt string) error {
	if _, _, err := ParseDailyAt(dailyAt); err != nil {
		return err
	}
	data, err := json.MarshalIndent(savedSchedule{DailyAt: dailyAt}, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write schedule: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadSavedSchedule reads a persisted schedule time. A missing file is not an
// error; it returns an empty value.
func LoadSavedSchedule(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	var s savedSchedule
	if err := json.Unmarshal(data, &s); err != nil {
		return "", fmt.Errorf("parse schedule file: %w", err)
	}
	return s.DailyAt, nil
}
