package progress

import (
	"context"
	"fmt"
	"strings"

	"github.com/Digital-Shane/reelrunner/internal/core"
	"github.com/Digital-Shane/reelrunner/internal/media"
	"github.com/Digital-Shane/reelrunner/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

type pipelineEventMsg struct {
	event core.Event
	done  bool
}

// headerLines is the fixed height above the error block: header, progress
// bar, counters, panel border and stats.
const headerLines = 8

// PipelineModel displays progress while movies move through the pipeline.
type PipelineModel struct {
	pipeline *core.Pipeline
	movies   []media.MovieCandidate
	title    string

	events  <-chan core.Event
	summary core.Summary
	errors  []string

	width  int
	height int

	progress progress.Model
	theme    theme.Theme

	parent context.Context
	cancel context.CancelFunc

	done     bool
	canceled bool
}

// NewPipelineModel builds a model that starts pipeline on movies once the
// program runs. Canceling ctx or pressing ctrl+c stops the run.
func NewPipelineModel(ctx context.Context, pipeline *core.Pipeline, movies []media.MovieCandidate, title string, th theme.Theme) *PipelineModel {
	runewidth.DefaultCondition.EastAsianWidth = false
	runewidth.DefaultCondition.StrictEmojiNeutral = true

	from, to := th.ProgressGradient()
	prog := progress.New(progress.WithGradient(from, to))
	prog.Width = 50

	return &PipelineModel{
		pipeline: pipeline,
		movies:   movies,
		title:    title,
		summary:  core.Summary{Total: len(movies)},
		width:    80,
		height:   16,
		progress: prog,
		theme:    th,
		parent:   ctx,
	}
}

func (m *PipelineModel) Init() tea.Cmd {
	if len(m.movies) == 0 {
		m.done = true
		return tea.Quit
	}
	ctx, cancel := context.WithCancel(m.parent)
	m.cancel = cancel
	m.events = m.pipeline.Start(ctx, m.movies)
	return m.waitForEvent()
}

func (m *PipelineModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-m.events
		if !ok {
			return pipelineEventMsg{done: true}
		}
		return pipelineEventMsg{event: evt}
	}
}

func (m *PipelineModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.progress.Width = max(msg.Width-4, 10)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.canceled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case pipelineEventMsg:
		return m.handleEvent(msg)
	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		m.progress = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *PipelineModel) handleEvent(msg pipelineEventMsg) (tea.Model, tea.Cmd) {
	if msg.done {
		m.finish()
		return m, tea.Quit
	}

	m.summary = msg.event.Summary
	if res := msg.event.Result; res != nil && res.Err != nil {
		m.errors = append(m.errors, fmt.Sprintf("%s: %v", res.Movie.Label(), res.Err))
	}

	ratio := 0.0
	if m.summary.Total > 0 {
		ratio = float64(m.summary.Processed) / float64(m.summary.Total)
	}
	cmd := m.progress.SetPercent(ratio)
	if m.summary.Done || m.summary.Canceled {
		m.finish()
		return m, tea.Batch(cmd, tea.Quit)
	}
	return m, tea.Batch(cmd, m.waitForEvent())
}

func (m *PipelineModel) finish() {
	m.done = !m.summary.Canceled && !m.canceled
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *PipelineModel) View() string {
	if m.summary.Total == 0 {
		return "No movies to process.\n"
	}

	percent := 100 * m.summary.Processed / m.summary.Total
	header := m.theme.HeaderStyle().Width(m.width).Render(m.title)

	counters := strings.Join([]string{
		m.counter(theme.BadgeInfo, "resolved", "Resolved", m.summary.Resolved),
		m.counter(theme.BadgeSuccess, "cached", "Cached", m.summary.Cached),
		m.counter(theme.BadgeMuted, "skipped", "Skipped", m.summary.Skipped),
		m.counter(theme.BadgeError, "failed", "Failed", m.summary.Failed),
	}, " ")

	stats := []string{
		fmt.Sprintf("Movies: %d/%d", m.summary.Processed, m.summary.Total),
		fmt.Sprintf("Progress: %d%%", percent),
		fmt.Sprintf("%s Workers: %d/%d", m.theme.Icon("worker"), m.summary.ActiveWorkers, m.summary.WorkerLimit),
	}
	if block := m.errorBlock(); block != "" {
		stats = append(stats, block)
	}
	panel := m.theme.PanelStyle()
	body := panel.Width(max(m.width-panel.GetHorizontalFrameSize(), 20)).Render(strings.Join(stats, "\n"))

	statusText := "Resolving and caching... press esc to stop"
	switch {
	case m.canceled || m.summary.Canceled:
		statusText = "Canceled"
	case m.summary.Done:
		statusText = "Done"
	case m.summary.LastItem != "":
		statusText = m.theme.Icon("movie") + " " + m.summary.LastItem
	}
	status := m.theme.StatusBarStyle().Width(m.width).Render(statusText)

	return lipgloss.JoinVertical(lipgloss.Left, header, m.progress.View(), counters, body, status)
}

func (m *PipelineModel) counter(kind theme.BadgeKind, icon, label string, n int) string {
	return m.theme.BadgeStyle(kind).Render(fmt.Sprintf("%s %s: %d", m.theme.Icon(icon), label, n))
}

// errorBlock renders the most recent errors that fit in the window.
func (m *PipelineModel) errorBlock() string {
	if len(m.errors) == 0 {
		return ""
	}

	maxLines := max(m.height-headerLines-1, 1)
	show := min(len(m.errors), maxLines)
	width := max(m.width-6, 10)

	lines := make([]string, 0, show+2)
	lines = append(lines, fmt.Sprintf("Errors: %d", len(m.errors)))
	for _, msg := range m.errors[len(m.errors)-show:] {
		lines = append(lines, "• "+runewidth.Truncate(msg, width, "..."))
	}
	if len(m.errors) > show {
		lines = append(lines, fmt.Sprintf("... and %d more", len(m.errors)-show))
	}
	return lipgloss.NewStyle().Foreground(m.theme.Colors().Error).Render(strings.Join(lines, "\n"))
}

// Summary returns the last summary the model saw.
func (m *PipelineModel) Summary() core.Summary {
	return m.summary
}

// Done reports whether every movie finished without cancellation.
func (m *PipelineModel) Done() bool {
	return m.done
}

// Canceled reports whether the user stopped the run.
func (m *PipelineModel) Canceled() bool {
	return m.canceled || m.summary.Canceled
}
