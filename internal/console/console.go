// Package console renders run history and the latest briefing in a
// terminal UI.
package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"cubesat-nightly/internal/config"
	"cubesat-nightly/internal/pipeline"
)

const refreshInterval = 5 * time.Second

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Bold(true)
)

type tickMsg time.Time

// refreshMsg carries freshly loaded run history.
type refreshMsg struct {
	records []pipeline.RunRecord
	latest  *pipeline.RunSummary
	err     error
}

type model struct {
	cfg    *config.Config
	table  table.Model
	vp     viewport.Model
	latest *pipeline.RunSummary
	loaded bool
	err    error
	width  int
	height int
}

func newModel(cfg *config.Config) model {
	cols := []table.Column{
		{Title: "Time", Width: 19},
		{Title: "Packets", Width: 8},
		{Title: "Anomalies", Width: 10},
		{Title: "Report", Width: 40},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(8), table.WithFocused(true))

	st := table.DefaultStyles()
	st.Header = st.Header.Foreground(lipgloss.Color("8")).Bold(true)
	st.Selected = st.Selected.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12"))
	t.SetStyles(st)

	return model{cfg: cfg, table: t, vp: viewport.New(0, 0)}
}

// Run starts the console and blocks until the user quits.
func Run(cfg *config.Config) error {
	p := tea.NewProgram(newModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.load, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// load reads run history from disk. The console never writes anything.
func (m model) load() tea.Msg {
	records, err := pipeline.ReadRunLog(m.cfg.RunLogFile())
	if err != nil {
		return refreshMsg{err: err}
	}
	latest, err := pipeline.ReadLastRun(m.cfg.LastRunFile())
	if err != nil {
		// A missing or unreadable summary still leaves the history usable.
		latest = nil
	}
	return refreshMsg{records: records, latest: latest}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		vpHeight := msg.Height - m.table.Height() - 6
		if vpHeight < 3 {
			vpHeight = 3
		}
		m.vp.Height = vpHeight
		m.refreshViewport()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.load
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	case tickMsg:
		return m, tea.Batch(m.load, tickCmd())
	case refreshMsg:
		m.loaded = true
		m.err = msg.err
		if msg.err == nil {
			m.latest = msg.latest
			m.table.SetRows(historyRows(msg.records))
			m.refreshViewport()
		}
	}
	return m, nil
}

// historyRows converts log records to table rows, newest first.
func historyRows(records []pipeline.RunRecord) []table.Row {
	rows := make([]table.Row, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		rows = append(rows, table.Row{
			r.When,
			fmt.Sprintf("%d", r.Packets),
			fmt.Sprintf("%d", r.Anomalies),
			r.ReportPDF,
		})
	}
	return rows
}

func (m *model) refreshViewport() {
	if m.latest == nil {
		m.vp.SetContent(dimStyle.Render("No completed run yet."))
		return
	}
	var b strings.Builder
	degraded := ""
	if m.latest.Degraded {
		degraded = warnStyle.Render(" (AI unavailable)")
	}
	fmt.Fprintf(&b, "%s%s\n\n", headerStyle.Render("Mission Briefing"), degraded)
	b.WriteString(m.latest.Briefing)
	b.WriteString("\n\n")
	b.WriteString(headerStyle.Render("Key Findings & Recommended Checks"))
	b.WriteString("\n\n")
	b.WriteString(m.latest.Actions)

	width := m.vp.Width
	if width <= 0 {
		width = 80
	}
	m.vp.SetContent(wordwrap.String(b.String(), width))
	m.vp.GotoTop()
}

func (m model) View() string {
	title := titleStyle.Render("CubeSat Nightly Telemetry")
	status := dimStyle.Render("loading…")
	if m.err != nil {
		status = warnStyle.Render("error: " + m.err.Error())
	} else if m.loaded {
		if m.latest != nil {
			status = fmt.Sprintf("last run %s  packets=%d anomalies=%d (%.2f%%)",
				m.latest.TimestampReadable, m.latest.TotalPackets,
				m.latest.AnomalyCount, m.latest.AnomalyRatePercent)
		} else {
			status = dimStyle.Render("no runs recorded")
		}
	}

	divider := dimStyle.Render(strings.Repeat("─", max(m.width, 1)))
	help := dimStyle.Render("q quit · r refresh · ↑/↓ browse runs")

	sections := []string{
		title,
		status,
		divider,
		m.table.View(),
		divider,
		m.vp.View(),
		divider,
		help,
	}
	return strings.Join(sections, "\n")
}
