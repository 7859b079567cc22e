package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/popgate/internal/events"
)

const maxPopRows = 50

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	baseURL string

	width  int
	height int

	// State
	stats    StatsState
	pops     []PopRow
	eventLog []events.Event

	// Live indicators
	ticker  Ticker
	spinner Spinner

	// UI state
	theme    Theme
	popTable table.Model

	// Communication
	hubEvents chan events.Event

	// Error display
	lastError string
}

// New creates a new watch TUI model pointed at the daemon's base URL.
func New(baseURL string) *Model {
	return &Model{
		baseURL:   baseURL,
		pops:      make([]PopRow, 0),
		eventLog:  make([]events.Event, 0),
		hubEvents: make(chan events.Event, 100),
		ticker:    NewTicker(),
		spinner:   NewSpinner(),
		theme:     NewDefaultTheme(),
		popTable:  newPopTable(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.baseURL, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchStats(m.baseURL) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		default:
			var cmd tea.Cmd
			m.popTable, cmd = m.popTable.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.ticker.Tick()
		m.spinner.Decay()
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := events.Event(msg)

		// Event log, newest first.
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > 50 {
			m.eventLog = m.eventLog[:50]
		}

		m.spinner.OnEvent()

		if row, ok := popRowFromEvent(e); ok {
			m.pops = append([]PopRow{row}, m.pops...)
			if len(m.pops) > maxPopRows {
				m.pops = m.pops[:maxPopRows]
			}
			m.popTable.SetRows(popTableRows(m.pops))
		}
		if e.Type == events.TypePlacementReset {
			m.stats.FirstWindowDone = false
		}

		m.stats.Connected = true
		m.lastError = ""

		return m, receiveNextEvent(m.hubEvents)

	case statsMsg:
		m.stats.Enqueued = msg.Enqueued
		m.stats.Processed = msg.Processed
		m.stats.Failed = msg.Failed
		m.stats.Suppressed = msg.Suppressed
		m.stats.LastError = msg.LastError
		m.stats.QueueSize = msg.QueueSize
		m.stats.Mode = msg.Mode
		m.stats.FirstWindowDone = msg.FirstWindowDone
		m.stats.Connected = true
		m.stats.LastCheck = time.Now()
		m.lastError = ""

		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchStats(m.baseURL)
		})

	case sseDisconnectedMsg:
		m.stats.Connected = false
		m.lastError = "SSE disconnected, reconnecting..."
		// Reconnect after a short delay; the existing receiveNextEvent
		// goroutine is still waiting on the channel and will pick up
		// events from the new subscription.
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.baseURL, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchStats(m.baseURL)
		})
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing watch..."
	}

	header := renderHeader(m.stats, m.ticker, m.spinner, m.theme, m.width)

	popsPanel := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render("RECENT POPS"),
			m.popTable.View(),
		),
	)

	eventStream := renderEventStream(m.eventLog, m.theme, m.width)

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [↑/↓] Scroll Pops")

	parts := []string{header, popsPanel, eventStream}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
