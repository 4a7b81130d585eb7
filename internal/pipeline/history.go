package pipeline

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// AppendRunLine appends one human-readable line per run to the history log.
func AppendRunLine(path string, sum *RunSummary) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%s | packets=%d anomalies=%d | pdf=%s\n",
		sum.TimestampReadable, sum.TotalPackets, sum.AnomalyCount, sum.ReportPDF)
	return err
}

// RunRecord is one parsed history-log line.
type RunRecord struct {
	When      string
	Packets   int
	Anomalies int
	ReportPDF string
}

// ReadRunLog parses the history log, newest last. A missing file yields an
// empty history. Unparseable lines are skipped.
func ReadRunLog(path string) ([]RunRecord, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []RunRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), " | ")
		if len(parts) != 3 {
			continue
		}
		var rec RunRecord
		rec.When = parts[0]
		if _, err := fmt.Sscanf(parts[1], "packets=%d anomalies=%d", &rec.Packets, &rec.Anomalies); err != nil {
			continue
		}
		rec.ReportPDF = strings.TrimPrefix(parts[2], "pdf=")
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// WriteLastRun persists the latest run summary for the console and for
// restarts. Written via temp file + rename so readers never see a partial
// document.
func WriteLastRun(path string, sum *RunSummary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write last run: %w", err)
	}
	return os.Rename(tmp, path)
}

// ReadLastRun loads the persisted summary of the most recent run.
func ReadLastRun(path string) (*RunSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sum RunSummary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("parse last run: %w", err)
	}
	return &sum, nil
}
