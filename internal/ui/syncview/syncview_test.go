package syncview

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/rfp-inbound/internal/model"
)

func TestRenderSummary(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		summary model.RunSummary
		want    []string
	}{
		{
			name: "completed",
			summary: model.RunSummary{
				Status: model.RunCompleted, ProcessedCount: 2, Fetched: 3, Acknowledged: 3,
				StartedAt: started, FinishedAt: started.Add(1500 * time.Millisecond),
			},
			want: []string{"Completed", "Processed", "2", "Fetched", "Acknowledged", "1.5s"},
		},
		{
			name:    "skipped",
			summary: model.RunSummary{Status: model.RunSkipped, Reason: "mailbox credentials not configured"},
			want:    []string{"Skipped", "mailbox credentials not configured"},
		},
		{
			name:    "failed",
			summary: model.RunSummary{Status: model.RunFailed, Error: "authenticating to imap.gmail.com:993"},
			want:    []string{"Failed", "authenticating to imap.gmail.com:993"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RenderSummary(tt.summary)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("RenderSummary() missing %q:\n%s", w, got)
				}
			}
		})
	}
}

func TestRenderProposals(t *testing.T) {
	got := RenderProposals("abc123", []model.Proposal{
		{VendorName: "Acme", Price: "$1200", Timeline: "2 weeks", Terms: "Net 30"},
		{VendorID: "v-2", Price: "Unknown", Timeline: "Unknown", Terms: "Check email"},
	})

	for _, w := range []string{"abc123", "Acme", "$1200", "Net 30", "v-2", "Check email"} {
		if !strings.Contains(got, w) {
			t.Errorf("RenderProposals() missing %q:\n%s", w, got)
		}
	}

	if empty := RenderProposals("abc123", nil); !strings.Contains(empty, "No proposals yet.") {
		t.Errorf("RenderProposals(nil) = %q", empty)
	}
}

func TestRenderRuns(t *testing.T) {
	got := RenderRuns([]model.RunRecord{
		{Status: "Completed", ProcessedCount: 3, Fetched: 4, Acknowledged: 4},
		{Status: "Failed", Error: "connecting to imap.gmail.com:993: timeout"},
	})

	for _, w := range []string{"Completed", "processed=3", "Failed", "timeout"} {
		if !strings.Contains(got, w) {
			t.Errorf("RenderRuns() missing %q:\n%s", w, got)
		}
	}
}

type stubRunner struct {
	summary model.RunSummary
}

func (r stubRunner) Run(context.Context) model.RunSummary { return r.summary }

func TestRunModel(t *testing.T) {
	want := model.RunSummary{Status: model.RunCompleted, ProcessedCount: 1}
	m := NewRunModel(context.Background(), stubRunner{summary: want})

	if _, ok := m.Summary(); ok {
		t.Fatal("Summary() reported a result before the run finished")
	}
	if !strings.Contains(m.View(), "Syncing") {
		t.Errorf("View() while running = %q", m.View())
	}

	msg := m.run()()
	next, cmd := m.Update(msg)
	if cmd == nil {
		t.Fatal("Update(runDone) should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("Update(runDone) cmd = %T, want tea.QuitMsg", cmd())
	}

	got, ok := next.(RunModel).Summary()
	if !ok || got.ProcessedCount != 1 {
		t.Errorf("Summary() = %+v, %v", got, ok)
	}
	if !strings.Contains(next.View(), "Completed") {
		t.Errorf("View() after run = %q", next.View())
	}
}

type fakePoller struct {
	ch       chan model.RunSummary
	triggers int
}

func (p *fakePoller) Trigger()                         { p.triggers++ }
func (p *fakePoller) Results() <-chan model.RunSummary { return p.ch }

func TestWatchModel(t *testing.T) {
	p := &fakePoller{ch: make(chan model.RunSummary, historySize+5)}
	var m tea.Model = NewWatchModel(p, nil)

	for i := 1; i <= historySize+2; i++ {
		p.ch <- model.RunSummary{Status: model.RunCompleted, ProcessedCount: i}
		msg := m.(WatchModel).waitForResult()()
		var cmd tea.Cmd
		m, cmd = m.Update(msg)
		if cmd == nil {
			t.Fatal("Update(result) should keep listening")
		}
	}

	history := m.(WatchModel).History()
	if len(history) != historySize {
		t.Fatalf("history has %d entries, want %d", len(history), historySize)
	}
	if history[0].ProcessedCount != historySize+2 {
		t.Errorf("newest entry = %+v, want the last summary first", history[0])
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	if p.triggers != 1 {
		t.Errorf("Trigger called %d times, want 1", p.triggers)
	}
	if !strings.Contains(m.View(), "sync in progress") {
		t.Errorf("View() after trigger = %q", m.View())
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("q cmd = %T, want tea.QuitMsg", cmd())
	}

	close(p.ch)
	_, cmd = m.Update(m.(WatchModel).waitForResult()())
	if cmd == nil {
		t.Fatal("closed results channel should quit")
	}
}
