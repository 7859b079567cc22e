package watch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/popgate/internal/events"
)

// PopRow is one dispatched (or suppressed/failed) pop as shown in the table.
type PopRow struct {
	At     time.Time
	JobID  string
	URL    string
	Action string
	Status string
	Error  string
}

func newPopTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Time", Width: 8},
			{Title: "Status", Width: 10},
			{Title: "Action", Width: 11},
			{Title: "URL", Width: 52},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

// popRowFromEvent converts a pipeline event into a table row, or returns
// false for event types that are not pops.
func popRowFromEvent(e events.Event) (PopRow, bool) {
	var status string
	switch e.Type {
	case events.TypePopQueued:
		status = "queued"
	case events.TypePopLaunched:
		status = "launched"
	case events.TypePopSuppressed:
		status = "suppressed"
	case events.TypePopFailed:
		status = "failed"
	default:
		return PopRow{}, false
	}

	var data struct {
		JobID  string `json:"job_id"`
		URL    string `json:"url"`
		Action string `json:"action"`
		Error  string `json:"error"`
	}
	_ = json.Unmarshal(e.Data, &data)

	return PopRow{
		At:     e.At,
		JobID:  data.JobID,
		URL:    data.URL,
		Action: data.Action,
		Status: status,
		Error:  data.Error,
	}, true
}

func popTableRows(rows []PopRow) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		url := r.URL
		if len(url) > 50 {
			url = url[:50] + "…"
		}
		out = append(out, table.Row{
			r.At.Format("15:04:05"),
			r.Status,
			r.Action,
			url,
		})
	}
	return out
}

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENT STREAM"),
			theme.Dim.Render("  Waiting for events..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= 8 {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	eventsText := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENT STREAM"),
		eventsText,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch e.Type {
	case events.TypePopLaunched:
		typeStyle = theme.StatusOK
	case events.TypePopFailed:
		typeStyle = theme.StatusFailed
	case events.TypePopSuppressed:
		typeStyle = theme.StatusSuppressed
	case events.TypePlacementReset:
		typeStyle = theme.Highlight
	default:
		typeStyle = theme.Dim
	}

	typeName := typeStyle.Render(fmt.Sprintf("%-18s", e.Type))
	desc := extractEventDesc(e)

	return fmt.Sprintf("%s %s %s", ts, typeName, desc)
}

func extractEventDesc(e events.Event) string {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	var parts []string

	if jobID, ok := data["job_id"].(string); ok {
		if len(jobID) > 8 {
			jobID = jobID[:8]
		}
		parts = append(parts, fmt.Sprintf("[%s]", jobID))
	}
	if url, ok := data["url"].(string); ok {
		if len(url) > 48 {
			url = url[:48] + "…"
		}
		parts = append(parts, url)
	}
	if errText, ok := data["error"].(string); ok && errText != "" {
		parts = append(parts, errText)
	}

	if len(parts) == 0 {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}

	return strings.Join(parts, " ")
}
