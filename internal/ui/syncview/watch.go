package syncview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/rfp-inbound/internal/keys"
	"github.com/nhle/rfp-inbound/internal/model"
	"github.com/nhle/rfp-inbound/internal/theme"
	"github.com/nhle/rfp-inbound/internal/ui"
)

// historySize bounds the number of summaries kept on screen.
const historySize = 10

// Poller is the part of sync.Poller the watch view drives.
type Poller interface {
	Trigger()
	Results() <-chan model.RunSummary
}

// resultMsg wraps a summary received from the poller.
type resultMsg struct {
	summary model.RunSummary
	ok      bool
}

// WatchModel shows the summaries produced by a running poller, newest
// first.
type WatchModel struct {
	poller  Poller
	keys    *keys.KeyMap
	layout  ui.Layout
	history []model.RunSummary
	pending bool
}

// NewWatchModel creates a watch view over p. The poller must already be
// started.
func NewWatchModel(p Poller, k *keys.KeyMap) WatchModel {
	if k == nil {
		k = keys.DefaultKeyMap()
	}
	return WatchModel{poller: p, keys: k, pending: true}
}

// Init subscribes to results.
func (m WatchModel) Init() tea.Cmd {
	return m.waitForResult()
}

// waitForResult returns a command that blocks until the next summary.
func (m WatchModel) waitForResult() tea.Cmd {
	ch := m.poller.Results()
	return func() tea.Msg {
		s, ok := <-ch
		return resultMsg{summary: s, ok: ok}
	}
}

// Update handles messages.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		return m, nil

	case resultMsg:
		if !msg.ok {
			return m, tea.Quit
		}
		m.pending = false
		m.history = append([]model.RunSummary{msg.summary}, m.history...)
		if len(m.history) > historySize {
			m.history = m.history[:historySize]
		}
		return m, m.waitForResult()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Trigger):
			m.pending = true
			m.poller.Trigger()
			return m, nil
		}
	}

	return m, nil
}

// View renders the run log.
func (m WatchModel) View() string {
	status := "idle"
	if m.pending {
		status = "syncing..."
	} else if len(m.history) > 0 {
		status = "last run " + m.history[0].FinishedAt.Local().Format("15:04:05")
	}
	header := m.layout.RenderHeader("RFP inbound: watching mailbox", status)

	var b strings.Builder
	if m.pending {
		b.WriteString(theme.HelpStyle.Render("sync in progress..."))
		b.WriteString("\n")
	}

	rows := m.history
	if h := m.layout.ContentHeight(); h > 0 && len(rows) > h {
		rows = rows[:h]
	}
	for _, s := range rows {
		line := fmt.Sprintf("%s  %s  processed=%d",
			s.FinishedAt.Local().Format("15:04:05"),
			theme.RunStatusStyle(s.Status).Width(10).Render(string(s.Status)),
			s.ProcessedCount)
		switch {
		case s.Error != "":
			line += "  " + theme.ErrorStyle.Render(s.Error)
		case s.Reason != "":
			line += "  " + s.Reason
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	help := make([]string, 0, 2)
	for _, binding := range m.keys.ShortHelp() {
		h := binding.Help()
		help = append(help, h.Key+" "+h.Desc)
	}

	return m.layout.RenderWithFrame(header, b.String(), m.layout.RenderStatusBar(strings.Join(help, " • ")))
}

// History returns the summaries on screen, newest first.
func (m WatchModel) History() []model.RunSummary {
	return m.history
}
