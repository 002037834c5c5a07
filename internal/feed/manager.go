// Package feed fans simulation events out to WebSocket viewers: per-tick
// price updates, daily closes, and unlocked headlines. The feed is
// strictly read-only; nothing a viewer sends can touch the simulation.
package feed

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ndrandal/stocksim/internal/engine"
	"github.com/ndrandal/stocksim/internal/news"
)

// Event is the JSON envelope for everything the feed emits.
type Event struct {
	Type   string    `json:"type"` // "price", "close", "headline"
	At     time.Time `json:"at"`
	Symbol string    `json:"symbol,omitempty"`

	Price *PricePayload `json:"price,omitempty"`
	Close *ClosePayload `json:"close,omitempty"`
	News  *news.Article `json:"news,omitempty"`
}

// PricePayload carries one stock's tick outcome.
type PricePayload struct {
	StockID int     `json:"stockId"`
	Prev    float64 `json:"prev"`
	Current float64 `json:"current"`
}

// ClosePayload carries one stock's day-rollover snapshot.
type ClosePayload struct {
	StockID    int      `json:"stockId"`
	Date       string   `json:"date"`
	Open       float64  `json:"open"`
	ClosePrice *float64 `json:"close"`
	High       float64  `json:"high"`
	Low        float64  `json:"low"`
	RollingAvg float64  `json:"rollingAvg"`
}

// Manager handles client registration, subscriptions, and event fan-out.
type Manager struct {
	mu         sync.RWMutex
	clients    map[uint64]*Client
	bufferSize int
}

// NewManager creates a feed manager.
func NewManager(bufferSize int) *Manager {
	return &Manager{
		clients:    make(map[uint64]*Client),
		bufferSize: bufferSize,
	}
}

// Register adds a new client. Returns the client for further use.
func (m *Manager) Register(conn *websocket.Conn) *Client {
	c := NewClient(conn, m.bufferSize)

	m.mu.Lock()
	m.clients[c.ID] = c
	m.mu.Unlock()

	log.Printf("feed: client %d connected (%s)", c.ID, conn.RemoteAddr())
	return c
}

// Unregister removes a client.
func (m *Manager) Unregister(c *Client) {
	m.mu.Lock()
	delete(m.clients, c.ID)
	m.mu.Unlock()

	c.Close()
	log.Printf("feed: client %d disconnected", c.ID)
}

// BroadcastPrices fans one tick's updates out to subscribed clients.
// Each event is encoded once and shared across clients.
func (m *Manager) BroadcastPrices(now time.Time, updates []engine.PriceUpdate) {
	if len(updates) == 0 {
		return
	}
	events := make([]broadcastItem, 0, len(updates))
	for _, u := range updates {
		data, err := json.Marshal(Event{
			Type: "price", At: now, Symbol: u.Symbol,
			Price: &PricePayload{StockID: u.StockID, Prev: u.Prev, Current: u.Price},
		})
		if err != nil {
			continue
		}
		events = append(events, broadcastItem{symbol: u.Symbol, data: data})
	}
	m.fanOut(events)
}

// BroadcastCloses fans a day rollover out to subscribed clients.
func (m *Manager) BroadcastCloses(now time.Time, closes []engine.DailyClose) {
	events := make([]broadcastItem, 0, len(closes))
	for _, dc := range closes {
		data, err := json.Marshal(Event{
			Type: "close", At: now, Symbol: dc.Symbol,
			Close: &ClosePayload{
				StockID:    dc.StockID,
				Date:       dc.Data.Date.Format(time.DateOnly),
				Open:       dc.Data.Open,
				ClosePrice: dc.Data.Close,
				High:       dc.Data.High,
				Low:        dc.Data.Low,
				RollingAvg: dc.RollingAvg,
			},
		})
		if err != nil {
			continue
		}
		events = append(events, broadcastItem{symbol: dc.Symbol, data: data})
	}
	m.fanOut(events)
}

// BroadcastHeadlines fans unlocked articles out to subscribed clients.
func (m *Manager) BroadcastHeadlines(now time.Time, articles []news.Article) {
	events := make([]broadcastItem, 0, len(articles))
	for i := range articles {
		a := articles[i]
		data, err := json.Marshal(Event{
			Type: "headline", At: now, Symbol: a.Symbol, News: &a,
		})
		if err != nil {
			continue
		}
		events = append(events, broadcastItem{symbol: a.Symbol, data: data})
	}
	m.fanOut(events)
}

type broadcastItem struct {
	symbol string
	data   []byte
}

func (m *Manager) fanOut(events []broadcastItem) {
	if len(events) == 0 {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.clients {
		for _, e := range events {
			if !c.IsSubscribed(e.symbol) {
				continue
			}
			c.Send(e.data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}
