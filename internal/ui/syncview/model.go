// Package syncview renders sync runs in the terminal: a spinner while a
// run is in flight, a live log in watch mode and summary panels.
package syncview

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/rfp-inbound/internal/model"
	"github.com/nhle/rfp-inbound/internal/sync"
	"github.com/nhle/rfp-inbound/internal/theme"
)

// runDoneMsg carries the summary of a finished run.
type runDoneMsg struct {
	summary model.RunSummary
}

// RunModel shows a spinner while a single run executes and the summary
// once it returns.
type RunModel struct {
	runner  sync.Runner
	ctx     context.Context
	cancel  context.CancelFunc
	spinner spinner.Model

	summary *model.RunSummary
}

// NewRunModel creates a model that runs r once when started.
func NewRunModel(ctx context.Context, r sync.Runner) RunModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	ctx, cancel := context.WithCancel(ctx)
	return RunModel{runner: r, ctx: ctx, cancel: cancel, spinner: sp}
}

// Init starts the spinner and the run.
func (m RunModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.run())
}

func (m RunModel) run() tea.Cmd {
	return func() tea.Msg {
		return runDoneMsg{summary: m.runner.Run(m.ctx)}
	}
}

// Update handles messages.
func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runDoneMsg:
		m.summary = &msg.summary
		m.cancel()
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			// Cancelling aborts the protocol calls; the run still reports.
			m.cancel()
		}
		return m, nil

	case spinner.TickMsg:
		if m.summary != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the spinner or the summary.
func (m RunModel) View() string {
	if m.summary != nil {
		return RenderSummary(*m.summary) + "\n"
	}
	return m.spinner.View() + " Syncing vendor replies...\n"
}

// Summary returns the finished run's summary, or false while running.
func (m RunModel) Summary() (model.RunSummary, bool) {
	if m.summary == nil {
		return model.RunSummary{}, false
	}
	return *m.summary, true
}
