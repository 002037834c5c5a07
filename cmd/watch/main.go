// Command watch is a terminal viewer over a running simulator's
// WebSocket feed: a live quote board plus the headline stream.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/ndrandal/stocksim/internal/feed"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#374151")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#9CA3AF"))

	rowStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9FAFB"))
	selectedRowStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#F9FAFB")).
				Background(lipgloss.Color("#374151")).
				Bold(true)

	upStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	downStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
)

type keyMap struct {
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

var keys = keyMap{
	Up:   key.NewBinding(key.WithKeys("up", "k")),
	Down: key.NewBinding(key.WithKeys("down", "j")),
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c")),
}

// quote is one symbol's live row on the board.
type quote struct {
	symbol   string
	price    float64
	prev     float64 // price before the latest tick
	dayOpen  float64 // first price seen this session, reset on close
	lastDate string  // most recent close date seen
}

type eventMsg feed.Event

type connClosedMsg struct{ err error }

type model struct {
	conn *websocket.Conn

	quotes   map[string]*quote
	order    []string // symbols in display order
	selected int

	headlines viewport.Model
	articles  []string

	width  int
	height int
	ready  bool
	status string
}

func newModel(conn *websocket.Conn) model {
	return model{
		conn:      conn,
		quotes:    make(map[string]*quote),
		headlines: viewport.New(0, 0),
		status:    "connected, waiting for ticks...",
	}
}

func (m model) Init() tea.Cmd {
	return readEvent(m.conn)
}

// readEvent blocks on the socket for one feed event.
func readEvent(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		var ev feed.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return connClosedMsg{err: err}
		}
		return eventMsg(ev)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.conn.Close()
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, keys.Down):
			if m.selected < len(m.order)-1 {
				m.selected++
			}
		default:
			var cmd tea.Cmd
			m.headlines, cmd = m.headlines.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true

	case eventMsg:
		m.apply(feed.Event(msg))
		return m, readEvent(m.conn)

	case connClosedMsg:
		m.status = fmt.Sprintf("feed closed: %v (q to quit)", msg.err)
		return m, nil
	}
	return m, nil
}

func (m *model) resize() {
	boardHeight := (m.height - 4) * 2 / 3
	if boardHeight < 3 {
		boardHeight = 3
	}
	m.headlines.Width = m.width - 4
	m.headlines.Height = m.height - boardHeight - 7
	if m.headlines.Height < 2 {
		m.headlines.Height = 2
	}
}

func (m *model) apply(ev feed.Event) {
	switch ev.Type {
	case "price":
		if ev.Price == nil {
			return
		}
		q := m.ensureQuote(ev.Symbol)
		q.prev = ev.Price.Prev
		q.price = ev.Price.Current
		if q.dayOpen == 0 {
			q.dayOpen = ev.Price.Prev
		}
		m.status = fmt.Sprintf("last tick %s", ev.At.Format("2006-01-02 15:04"))

	case "close":
		if ev.Close == nil {
			return
		}
		q := m.ensureQuote(ev.Symbol)
		q.lastDate = ev.Close.Date
		q.dayOpen = 0 // next tick starts a fresh day change

	case "headline":
		if ev.News == nil {
			return
		}
		line := fmt.Sprintf("%s  %s", ev.At.Format("15:04"), ev.News.Headline)
		m.articles = append(m.articles, line)
		if len(m.articles) > 200 {
			m.articles = m.articles[len(m.articles)-200:]
		}
		m.headlines.SetContent(strings.Join(m.articles, "\n"))
		m.headlines.GotoBottom()
	}
}

func (m *model) ensureQuote(symbol string) *quote {
	q, ok := m.quotes[symbol]
	if !ok {
		q = &quote{symbol: symbol}
		m.quotes[symbol] = q
		m.order = append(m.order, symbol)
		sort.Strings(m.order)
	}
	return q
}

func (m model) View() string {
	if !m.ready {
		return "Connecting..."
	}

	var board strings.Builder
	board.WriteString(headerStyle.Render(fmt.Sprintf("%-8s %12s %10s %10s",
		"Ticker", "Price", "Tick", "Day")))
	board.WriteString("\n")

	for i, sym := range m.order {
		q := m.quotes[sym]
		// Pad before styling; ANSI escapes would throw off the columns.
		row := fmt.Sprintf("%-8s %12.2f ", q.symbol, q.price) +
			changeCell(q.price-q.prev) + " " + dayCell(q)

		style := rowStyle
		if i == m.selected {
			style = selectedRowStyle
		}
		board.WriteString(style.Render(row))
		board.WriteString("\n")
	}
	if len(m.order) == 0 {
		board.WriteString(mutedStyle.Render("no quotes yet"))
	}

	top := panelStyle.Width(m.width - 2).Render(
		titleStyle.Render("Quotes") + "\n" + board.String())
	bottom := panelStyle.Width(m.width - 2).Render(
		titleStyle.Render("Headlines") + "\n" + m.headlines.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		top, bottom, statusStyle.Render(" "+m.status))
}

func changeCell(delta float64) string {
	switch {
	case delta > 0:
		return upStyle.Render(fmt.Sprintf("%10s", fmt.Sprintf("+%.2f", delta)))
	case delta < 0:
		return downStyle.Render(fmt.Sprintf("%10.2f", delta))
	default:
		return mutedStyle.Render(fmt.Sprintf("%10s", "0.00"))
	}
}

func dayCell(q *quote) string {
	if q.dayOpen == 0 {
		return mutedStyle.Render(fmt.Sprintf("%10s", "-"))
	}
	pct := (q.price - q.dayOpen) / q.dayOpen * 100
	s := fmt.Sprintf("%10s", fmt.Sprintf("%+.2f%%", pct))
	if pct < 0 {
		return downStyle.Render(s)
	}
	return upStyle.Render(s)
}

func main() {
	addr := flag.String("addr", "localhost:8200", "simulator host:port")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/feed"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("dial %s: %v", u.String(), err)
	}

	p := tea.NewProgram(newModel(conn), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		os.Exit(1)
	}
}
