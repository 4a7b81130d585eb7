// PDF report rendering
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"

	"cubesat-nightly/internal/anomaly"
)

// keyNumberFields are the stats rendered in the "Key Numbers" section, in
// fixed order. Their absence fails the build.
var keyNumberFields = []struct {
	key   string
	label string
}{
	{"battery_v", "Battery voltage (V)"},
	{"panel_i", "Panel current (A)"},
	{"temp_c", "Temperature (°C)"},
}

// Data is everything one report needs. All fields are required.
type Data struct {
	GeneratedAt        time.Time
	TotalPackets       int
	AnomalyCount       int
	AnomalyRatePercent float64
	Fields             map[string]anomaly.FieldStats
	Briefing           string
	Actions            string
}

func (d Data) validate() error {
	if d.GeneratedAt.IsZero() {
		return fmt.Errorf("report: missing run timestamp")
	}
	if d.TotalPackets <= 0 {
		return fmt.Errorf("report: no packets in run")
	}
	for _, f := range keyNumberFields {
		if _, ok := d.Fields[f.key]; !ok {
			return fmt.Errorf("report: missing required statistic %q", f.key)
		}
	}
	if d.Briefing == "" || d.Actions == "" {
		return fmt.Errorf("report: missing narrative sections")
	}
	return nil
}

// Builder renders nightly reports into a directory.
type Builder struct {
	dir string
}

// NewBuilder creates a builder writing into dir.
func NewBuilder(dir string) *Builder {
	return &Builder{dir: dir}
}

// Filename returns the report name for a run timestamp.
func Filename(ts time.Time) string {
	return fmt.Sprintf("nightly_%s.pdf", ts.Format("20060102_150405"))
}

// Build renders the report and returns its path. The document is written to
// a temporary file and renamed into place, so a failed build never leaves a
// partial report behind.
func (b *Builder) Build(data Data) (string, error) {
	if err := data.validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", fmt.Errorf("report: create dir: %w", err)
	}

	path := filepath.Join(b.dir, Filename(data.GeneratedAt))
	tmp := path + ".tmp"

	if err := render(data, tmp); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("report: rename into place: %w", err)
	}
	return path, nil
}

func render(data Data, path string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	// Title
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Nightly Telemetry Report")
	pdf.Ln(14)

	// Meta
	pdf.SetFont("Helvetica", "", 10)
	meta := []string{
		fmt.Sprintf("Timestamp: %s", data.GeneratedAt.Format("2006-01-02 15:04:05 MST")),
		fmt.Sprintf("Total packets: %d", data.TotalPackets),
		fmt.Sprintf("Anomalies detected: %d", data.AnomalyCount),
		fmt.Sprintf("Anomaly rate: %.1f%%", data.AnomalyRatePercent),
	}
	for _, line := range meta {
		pdf.Cell(0, 5, line)
		pdf.Ln(5)
	}
	pdf.Ln(4)

	// Key numbers
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 6, "Key Numbers")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	for _, f := range keyNumberFields {
		s := data.Fields[f.key]
		line := fmt.Sprintf("- %s: min=%.2f, max=%.2f, mean=%.2f, std=%.2f",
			f.label, s.Min, s.Max, s.Mean, s.Std)
		pdf.Cell(0, 5, tr(line))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	// Briefing
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 6, "AI Mission Briefing")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, tr(data.Briefing), "", "L", false)

	// Findings and actions on their own page
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 6, "Key Findings & Recommended Checks")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, tr(data.Actions), "", "L", false)

	if err := pdf.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("report: render pdf: %w", err)
	}
	return nil
}
