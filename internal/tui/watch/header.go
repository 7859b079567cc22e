package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StatsState tracks daemon counters from /stats polling.
type StatsState struct {
	Enqueued        int64
	Processed       int64
	Failed          int64
	Suppressed      int64
	LastError       string
	QueueSize       int
	Mode            string
	FirstWindowDone bool
	Connected       bool
	LastCheck       time.Time
}

func renderHeader(st StatsState, ticker Ticker, spinner Spinner, theme Theme, width int) string {
	innerWidth := width - 4

	statusText := theme.StatusOK.Render("CONNECTED")
	statusIcon := "✅"
	if !st.Connected {
		statusText = theme.StatusFailed.Render("CONNECTING")
		statusIcon = "🔌"
	}

	lastEventStr := "never"
	if !spinner.LastEvent().IsZero() {
		ago := time.Since(spinner.LastEvent()).Round(time.Second)
		lastEventStr = fmt.Sprintf("%s ago", ago)
	}

	tickerStr := theme.Highlight.Render(ticker.Current())
	clock := theme.Dim.Render(time.Now().Format("15:04:05"))
	titleText := fmt.Sprintf(" POPGATE WATCH %s", tickerStr)

	titleWidth := lipgloss.Width(titleText)
	clockWidth := lipgloss.Width(clock)
	pad := innerWidth - titleWidth - clockWidth - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	placement := "pending"
	if st.FirstWindowDone {
		placement = "done"
	}
	statsLine := fmt.Sprintf(" %s %s  Queue: %d  Mode: %s  First window: %s",
		statusIcon, statusText,
		st.QueueSize,
		st.Mode,
		placement,
	)

	countsLine := fmt.Sprintf(" Enqueued: %d  Launched: %d  Suppressed: %d  Failed: %d",
		st.Enqueued, st.Processed, st.Suppressed, st.Failed,
	)

	activityLine := fmt.Sprintf(" Last event: %s %s",
		lastEventStr,
		spinner.Render(theme),
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleLine,
		statsLine,
		countsLine,
		activityLine,
	)

	return theme.Border.Width(innerWidth).Render(content)
}
