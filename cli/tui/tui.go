package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/flint/device"
)

// ScanFunc lists the current candidate devices.
type ScanFunc func() []device.Candidate

// scanMsg carries the result of one scan.
type scanMsg struct {
	candidates []device.Candidate
	at         time.Time
}

// tickMsg triggers the next scheduled scan.
type tickMsg struct{}

// DevicesModel is a live view of candidate serial devices. It rescans on
// a fixed interval so plugging an adapter in shows up without restarting.
type DevicesModel struct {
	scan       ScanFunc
	interval   time.Duration
	spinner    spinner.Model
	candidates []device.Candidate
	scans      int
	lastScan   time.Time
	quitting   bool
}

// NewDevicesModel creates the model. interval must be positive.
func NewDevicesModel(scan ScanFunc, interval time.Duration) DevicesModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = MutedStyle
	return DevicesModel{scan: scan, interval: interval, spinner: sp}
}

func (m DevicesModel) scanCmd() tea.Cmd {
	return func() tea.Msg {
		return scanMsg{candidates: m.scan(), at: time.Now()}
	}
}

func (m DevicesModel) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

// Init implements tea.Model.
func (m DevicesModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.scanCmd())
}

// Update implements tea.Model.
func (m DevicesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Rescan):
			return m, m.scanCmd()
		}

	case scanMsg:
		m.candidates = msg.candidates
		m.lastScan = msg.at
		m.scans++
		return m, m.tickCmd()

	case tickMsg:
		return m, m.scanCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m DevicesModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Serial devices"))
	b.WriteString("\n")

	switch {
	case m.scans == 0:
		b.WriteString(m.spinner.View() + " scanning...\n")
	case len(m.candidates) == 0:
		b.WriteString(m.spinner.View() + " no adapter found; plug one in\n")
	default:
		b.WriteString(HeaderStyle.Render(fmt.Sprintf("  %-28s %-6s %-10s %s", "PATH", "CLASS", "VID:PID", "PRODUCT")))
		b.WriteString("\n")
		for _, c := range m.candidates {
			ids := ""
			if c.VID != "" {
				ids = c.VID + ":" + c.PID
			}
			line := fmt.Sprintf("%-28s %-6s %-10s %s", c.Path, c.Class, ids, c.Product)
			if c.Preferred {
				b.WriteString(PreferredStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}

	if !m.lastScan.IsZero() {
		b.WriteString(MutedStyle.Render("last scan " + m.lastScan.Format("15:04:05")))
		b.WriteString("\n")
	}
	b.WriteString(HelpStyle.Render("r rescan • q quit"))
	return b.String()
}

// RunDevices runs the live devices view until the operator quits or ctx
// is done.
func RunDevices(ctx context.Context, scan ScanFunc, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("rescan interval must be positive, got %s", interval)
	}
	p := tea.NewProgram(NewDevicesModel(scan, interval), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
