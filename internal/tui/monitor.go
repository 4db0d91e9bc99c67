package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kelsos/genjobs/internal/async"
	"github.com/kelsos/genjobs/internal/models"
	"github.com/kelsos/genjobs/internal/sweeper"
)

const (
	maxLogs      = 10
	maxTaskLines = 15
)

type Model struct {
	tasks       []models.Task
	logs        []string
	lastSweep   *sweeper.Result
	reclaimed   int
	activePolls int
	spinner     spinner.Model
	progress    progress.Model
	width       int
	height      int
	quit        bool
	now         func() time.Time
}

// SnapshotMsg replaces the task table.
type SnapshotMsg struct {
	Tasks       []models.Task
	ActivePolls int
}

// WorkerEventMsg carries a polling worker event.
type WorkerEventMsg struct {
	Event async.Event
}

// SweepMsg reports a finished storage sweep.
type SweepMsg struct {
	Result sweeper.Result
}

type LogMessage struct {
	Message string
}

func NewModel() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	pr := progress.New(progress.WithDefaultGradient())

	return Model{
		tasks:    []models.Task{},
		logs:     []string{},
		spinner:  sp,
		progress: pr,
		width:    80,
		height:   24,
		now:      time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.handleKeyMsg(msg) {
			m.quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m = m.handleWindowSizeMsg(msg)

	case SnapshotMsg:
		m.tasks = msg.Tasks
		m.activePolls = msg.ActivePolls

	case WorkerEventMsg:
		m = m.handleWorkerEvent(msg.Event)

	case SweepMsg:
		m = m.handleSweep(msg.Result)

	case LogMessage:
		m = m.addLog(msg.Message)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		if progressModel, ok := progressModel.(progress.Model); ok {
			m.progress = progressModel
		}
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "q", "ctrl+c":
		return true
	}
	return false
}

func (m Model) handleWindowSizeMsg(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.progress.Width = msg.Width - 40
	return m
}

func (m Model) handleWorkerEvent(ev async.Event) Model {
	switch ev.Kind {
	case async.EventStarted:
		return m.addLog(fmt.Sprintf("🚀 Polling task %s for %s", ev.TaskID, ev.OwnerID))
	case async.EventPolled:
		return m.addLog(fmt.Sprintf("🔄 Task %s poll %d: %s", ev.TaskID, ev.Attempt, ev.Provider))
	case async.EventSucceeded:
		return m.addLog(fmt.Sprintf("✅ Task %s delivered: %s", ev.TaskID, ev.Path))
	case async.EventFailed:
		return m.addLog(fmt.Sprintf("❌ Task %s failed at the provider", ev.TaskID))
	case async.EventQueryFailed:
		return m.addLog(fmt.Sprintf("⚠️ Query for task %s failed: %v", ev.TaskID, ev.Err))
	case async.EventDeliveryFailed:
		return m.addLog(fmt.Sprintf("📦 Task %s finished but delivery failed: %v", ev.TaskID, ev.Err))
	case async.EventStopped:
		return m.addLog(fmt.Sprintf("⏹ Stopped polling task %s", ev.TaskID))
	}
	return m
}

func (m Model) handleSweep(result sweeper.Result) Model {
	m.lastSweep = &result
	m.reclaimed += len(result.Removed)
	if result.Skipped {
		return m.addLog("🧹 Sweep skipped: storage root missing")
	}
	return m.addLog(fmt.Sprintf("🧹 Sweep removed %d files, kept %d", len(result.Removed), result.Kept))
}

func (m Model) addLog(message string) Model {
	m.logs = append(m.logs, fmt.Sprintf("[%s] %s",
		m.now().Format("15:04:05"), message))
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
	return m
}

// counts returns processing, succeeded and failed task totals.
func (m Model) counts() (processing, succeeded, failed int) {
	for _, task := range m.tasks {
		switch task.Status {
		case models.TaskStatusSuccess:
			succeeded++
		case models.TaskStatusFail:
			failed++
		default:
			processing++
		}
	}
	return processing, succeeded, failed
}

func (m Model) View() string {
	if m.quit {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		MarginBottom(1)

	s.WriteString(headerStyle.Render("🎬 Generation Job Monitor"))
	s.WriteString("\n\n")

	// Summary
	summaryStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("244"))

	processing, succeeded, failed := m.counts()
	summary := fmt.Sprintf("Tasks: %d | ⏳ Processing: %d | ✅ Success: %d | ❌ Failed: %d | 🔁 Pollers: %d | 🧹 Reclaimed: %d",
		len(m.tasks), processing, succeeded, failed, m.activePolls, m.reclaimed)
	s.WriteString(summaryStyle.Render(summary))
	s.WriteString("\n")

	if len(m.tasks) > 0 {
		done := float64(succeeded+failed) / float64(len(m.tasks))
		s.WriteString(m.progress.ViewAs(done))
	}
	s.WriteString("\n\n")

	// Task table
	taskSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1).
		Width(m.width - 2)

	var table strings.Builder
	table.WriteString("📊 Tasks\n")
	table.WriteString(strings.Repeat("─", 60) + "\n")

	tasks := m.tasks
	if len(tasks) > maxTaskLines {
		tasks = tasks[len(tasks)-maxTaskLines:]
	}
	for _, task := range tasks {
		line := fmt.Sprintf("%s %-24s %-15s %-10s %s",
			m.statusIcon(task.Status),
			truncate(string(task.ID), 24),
			truncate(task.OwnerID, 15),
			task.Status,
			m.age(task).Round(time.Second))

		statusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(getStatusColor(task.Status)))
		table.WriteString(statusStyle.Render(line) + "\n")
	}
	if len(m.tasks) == 0 {
		table.WriteString("No tasks yet\n")
	}

	s.WriteString(taskSectionStyle.Render(table.String()))
	s.WriteString("\n\n")

	// Logs section
	logSectionStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(m.width - 2).
		Height(maxLogs + 1)

	var logSection strings.Builder
	logSection.WriteString("📝 Recent Events\n")
	for _, log := range m.logs {
		logSection.WriteString(log + "\n")
	}

	s.WriteString(logSectionStyle.Render(logSection.String()))
	s.WriteString("\n\n")

	// Footer
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	footer := "Press 'q' to quit | Logs: logs/genjobs_*.log"
	if m.lastSweep != nil {
		footer += fmt.Sprintf(" | Last sweep: %s", m.lastSweep.At.Format("15:04:05"))
	}
	s.WriteString(footerStyle.Render(footer))

	return s.String()
}

func (m Model) statusIcon(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusSuccess:
		return "✅"
	case models.TaskStatusFail:
		return "❌"
	case models.TaskStatusProcessing:
		return m.spinner.View()
	default:
		return "⏸"
	}
}

func (m Model) age(task models.Task) time.Duration {
	if !task.FinishedAt.IsZero() {
		return task.FinishedAt.Sub(task.CreatedAt)
	}
	return m.now().Sub(task.CreatedAt)
}

func getStatusColor(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusSuccess:
		return "82"
	case models.TaskStatusFail:
		return "196"
	default:
		return "39"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
