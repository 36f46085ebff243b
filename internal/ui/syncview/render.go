package syncview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/rfp-inbound/internal/model"
	"github.com/nhle/rfp-inbound/internal/theme"
)

// RenderSummary renders a run summary as a bordered panel.
func RenderSummary(s model.RunSummary) string {
	lines := []string{
		row("Status", theme.RunStatusStyle(s.Status).Render(string(s.Status))),
		row("Processed", fmt.Sprintf("%d", s.ProcessedCount)),
	}

	switch s.Status {
	case model.RunCompleted:
		lines = append(lines,
			row("Fetched", fmt.Sprintf("%d", s.Fetched)),
			row("Acknowledged", fmt.Sprintf("%d", s.Acknowledged)),
		)
	case model.RunSkipped:
		lines = append(lines, row("Reason", s.Reason))
	case model.RunFailed:
		lines = append(lines, row("Error", theme.ErrorStyle.Render(s.Error)))
	}

	if !s.StartedAt.IsZero() && !s.FinishedAt.IsZero() {
		lines = append(lines, row("Duration", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String()))
	}

	return theme.BorderStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// RenderProposals lists the proposals admitted for a request.
func RenderProposals(requestID string, proposals []model.Proposal) string {
	var b strings.Builder
	b.WriteString(theme.HeaderStyle.Render("Proposals for " + requestID))
	b.WriteString("\n\n")

	if len(proposals) == 0 {
		b.WriteString(theme.HelpStyle.Render("No proposals yet."))
		b.WriteString("\n")
		return b.String()
	}

	for _, p := range proposals {
		vendor := p.VendorName
		if vendor == "" {
			vendor = p.VendorID
		}
		panel := lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().Bold(true).Render(vendor),
			row("Price", p.Price),
			row("Timeline", p.Timeline),
			row("Terms", p.Terms),
			row("Received", p.CreatedAt.Local().Format("Jan 02, 2006 15:04")),
		)
		b.WriteString(theme.BorderStyle.Render(panel))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderRuns lists recorded runs, one per line.
func RenderRuns(runs []model.RunRecord) string {
	var b strings.Builder
	b.WriteString(theme.HeaderStyle.Render("Recent sync runs"))
	b.WriteString("\n\n")

	if len(runs) == 0 {
		b.WriteString(theme.HelpStyle.Render("No runs recorded."))
		b.WriteString("\n")
		return b.String()
	}

	for _, r := range runs {
		status := theme.RunStatusStyle(model.RunStatus(r.Status)).Width(10).Render(r.Status)
		line := fmt.Sprintf("%s  %s  processed=%d fetched=%d acknowledged=%d",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), status,
			r.ProcessedCount, r.Fetched, r.Acknowledged)
		if r.Error != "" {
			line += "  " + theme.ErrorStyle.Render(r.Error)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func row(label, value string) string {
	return theme.LabelStyle.Render(label) + value
}
