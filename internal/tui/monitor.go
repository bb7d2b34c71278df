package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/EchoingVesper/vespera-atelier-sub002/internal/orchestrator"
	"github.com/EchoingVesper/vespera-atelier-sub002/pkg/models"
)

// StatusProvider supplies the status report the monitor renders. The
// coordinator satisfies it.
type StatusProvider interface {
	GetStatus(ctx context.Context, includeCompleted bool) (*orchestrator.StatusReport, error)
}

// StatusMsg delivers a fresh status report to the monitor.
type StatusMsg struct {
	Report *orchestrator.StatusReport
	Err    error
}

// tickMsg triggers the next status poll.
type tickMsg time.Time

// Monitor is the bubbletea model for the live status view.
type Monitor struct {
	provider StatusProvider
	refresh  time.Duration

	report           *orchestrator.StatusReport
	err              error
	includeCompleted bool
	lastUpdated      time.Time

	spinner  spinner.Model
	width    int
	height   int
	quitting bool

	// Styles
	headerStyle lipgloss.Style
	labelStyle  lipgloss.Style
	countStyle  lipgloss.Style
	pathStyle   lipgloss.Style
	errStyle    lipgloss.Style
	footStyle   lipgloss.Style
	statusStyle map[models.TaskStatus]lipgloss.Style
}

// NewMonitor creates a monitor polling the provider at the given interval.
func NewMonitor(provider StatusProvider, refresh time.Duration) *Monitor {
	if refresh <= 0 {
		refresh = time.Second
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &Monitor{
		provider: provider,
		refresh:  refresh,
		spinner:  sp,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),

		countStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		pathStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		errStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		footStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1),

		statusStyle: map[models.TaskStatus]lipgloss.Style{
			models.TaskStatusPending:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			models.TaskStatusActive:     lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
			models.TaskStatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
			models.TaskStatusBlocked:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			models.TaskStatusCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
			models.TaskStatusFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
			models.TaskStatusCancelled:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
			models.TaskStatusArchived:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		},
	}
}

// Init implements tea.Model.
func (m *Monitor) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

// Update implements tea.Model.
func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "c":
			m.includeCompleted = !m.includeCompleted
			return m, m.fetch()
		case "r":
			return m, m.fetch()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case StatusMsg:
		m.err = msg.Err
		if msg.Err == nil {
			m.report = msg.Report
			m.lastUpdated = time.Now()
		}
		return m, m.scheduleRefresh()

	case tickMsg:
		return m, m.fetch()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *Monitor) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.headerStyle.Render(fmt.Sprintf("%s vespera monitor", m.spinner.View())))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(m.errStyle.Render(fmt.Sprintf("status unavailable: %v", m.err)))
		b.WriteString("\n")
		return b.String()
	}
	if m.report == nil {
		b.WriteString(m.labelStyle.Render("loading..."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.renderCounts())
	b.WriteString("\n\n")
	b.WriteString(m.renderTasks())
	b.WriteString(m.footStyle.Render(fmt.Sprintf(
		"updated %s  ·  c: toggle completed  r: refresh  q: quit",
		m.lastUpdated.Format("15:04:05"))))
	b.WriteString("\n")
	return b.String()
}

// statusOrder fixes the count line ordering so the display is stable
// across refreshes.
var statusOrder = []models.TaskStatus{
	models.TaskStatusPending,
	models.TaskStatusActive,
	models.TaskStatusInProgress,
	models.TaskStatusBlocked,
	models.TaskStatusCompleted,
	models.TaskStatusFailed,
	models.TaskStatusCancelled,
	models.TaskStatusArchived,
}

func (m *Monitor) renderCounts() string {
	parts := make([]string, 0, len(statusOrder))
	for _, status := range statusOrder {
		count, ok := m.report.Counts[status]
		if !ok || count == 0 {
			continue
		}
		parts = append(parts,
			m.labelStyle.Render(string(status)+" ")+m.countStyle.Render(fmt.Sprintf("%d", count)))
	}
	if len(parts) == 0 {
		return m.labelStyle.Render("no tasks")
	}
	return strings.Join(parts, "   ")
}

func (m *Monitor) renderTasks() string {
	if len(m.report.Tasks) == 0 {
		return m.labelStyle.Render("no active tasks") + "\n"
	}

	var b strings.Builder
	for _, task := range m.report.Tasks {
		indent := strings.Repeat("  ", strings.Count(task.HierarchyPath, "/")-1)
		style, ok := m.statusStyle[task.Status]
		if !ok {
			style = m.labelStyle
		}

		line := fmt.Sprintf("%s%s %s", indent, style.Render(statusGlyph(task.Status)), task.Title)
		if task.SpecialistType != "" {
			line += m.pathStyle.Render(" · " + task.SpecialistType)
		}
		if task.Progress > 0 && task.Status != models.TaskStatusCompleted {
			line += m.pathStyle.Render(fmt.Sprintf(" · %d%%", task.Progress))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// statusGlyph maps a task status to its one-character marker.
func statusGlyph(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusCompleted:
		return "✓"
	case models.TaskStatusActive, models.TaskStatusInProgress:
		return "▶"
	case models.TaskStatusBlocked:
		return "⏸"
	case models.TaskStatusFailed:
		return "✗"
	case models.TaskStatusCancelled, models.TaskStatusArchived:
		return "·"
	default:
		return "○"
	}
}

func (m *Monitor) fetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		report, err := m.provider.GetStatus(ctx, m.includeCompleted)
		return StatusMsg{Report: report, Err: err}
	}
}

func (m *Monitor) scheduleRefresh() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
