// Package news turns trend notifications into delayed headlines. The
// market reports every trend it starts; the queue holds the resulting
// article until its unlock time so the in-world press lags the move it
// is reporting on.
package news

import (
	"fmt"
	"sync"
	"time"

	"github.com/ndrandal/stocksim/internal/engine"
)

// publishDelay is how long a headline sits in the queue before it is
// released. The press reacts to a trend, it does not announce it.
const publishDelay = 2 * time.Hour

// Article is one queued headline.
type Article struct {
	Headline  string    `json:"headline"`
	Symbol    string    `json:"symbol"`
	Company   string    `json:"company"`
	CreatedAt time.Time `json:"createdAt"`
	UnlocksAt time.Time `json:"unlocksAt"`
}

// Headline templates are cycled round-robin rather than drawn from the
// shared RNG: pulling randomness here would shift the engine's draw
// sequence and break save replays.
var (
	risingTemplates = []string{
		"%s stock surges as investors pile into %s",
		"Analysts upbeat on %s after strong quarter at %s",
		"%s rallies on takeover chatter around %s",
	}
	fallingTemplates = []string{
		"%s slides as doubts grow over %s",
		"Investors dump %s amid trouble at %s",
		"%s under pressure after downbeat outlook from %s",
	}
	murderTemplates = []string{
		"Violence at %s rattles %s shareholders",
		"Deadly incident at %s sends %s tumbling",
	}
)

// Generator queues articles and releases them on the hour. Safe for
// concurrent use; the market notifies from the tick loop while the feed
// drains from its own.
type Generator struct {
	mu      sync.Mutex
	pending []Article

	risingIdx  int
	fallingIdx int
	murderIdx  int
}

// NewGenerator creates an empty headline queue.
func NewGenerator() *Generator {
	return &Generator{}
}

var _ engine.NewsNotifier = (*Generator)(nil)

// TrendStarted queues a routine headline for a freshly allocated trend.
func (g *Generator) TrendStarted(s *engine.Stock, t engine.Trend, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var tmpl string
	if t.Percentage >= 0 {
		tmpl = risingTemplates[g.risingIdx%len(risingTemplates)]
		g.risingIdx++
	} else {
		tmpl = fallingTemplates[g.fallingIdx%len(fallingTemplates)]
		g.fallingIdx++
	}
	g.enqueue(s, tmpl, now)
}

// MurderTrendStarted queues the murder-flavored variant for an injected
// trend.
func (g *Generator) MurderTrendStarted(s *engine.Stock, t engine.Trend, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tmpl := murderTemplates[g.murderIdx%len(murderTemplates)]
	g.murderIdx++

	// The murder templates lead with the company, not the ticker.
	g.pending = append(g.pending, Article{
		Headline:  fmt.Sprintf(tmpl, s.Name, s.Symbol),
		Symbol:    s.Symbol,
		Company:   s.Name,
		CreatedAt: now,
		UnlocksAt: now.Add(publishDelay),
	})
}

// enqueue appends a routine article. Caller holds the mutex.
func (g *Generator) enqueue(s *engine.Stock, tmpl string, now time.Time) {
	g.pending = append(g.pending, Article{
		Headline:  fmt.Sprintf(tmpl, s.Symbol, s.Name),
		Symbol:    s.Symbol,
		Company:   s.Name,
		CreatedAt: now,
		UnlocksAt: now.Add(publishDelay),
	})
}

// OnHourChanged releases every article whose unlock time has passed, in
// the order they were queued.
func (g *Generator) OnHourChanged(now time.Time) []Article {
	g.mu.Lock()
	defer g.mu.Unlock()

	var due []Article
	kept := g.pending[:0]
	for _, a := range g.pending {
		if !a.UnlocksAt.After(now) {
			due = append(due, a)
			continue
		}
		kept = append(kept, a)
	}
	g.pending = kept
	return due
}

// Pending reports how many articles are still waiting to unlock.
func (g *Generator) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// Reset drops queued articles and restarts the template rotation.
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = nil
	g.risingIdx, g.fallingIdx, g.murderIdx = 0, 0, 0
}
