package engine

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/ndrandal/stocksim/internal/company"
	"github.com/ndrandal/stocksim/internal/symbol"
)

// maxTrendMagnitudePct bounds the random percentage drawn for a routine
// trend, in either direction.
const maxTrendMagnitudePct = 25.0

// InitSource identifies which world-ready signal triggered market
// finalization. Several fire during world generation; only the first one
// does any work.
type InitSource int

const (
	InitCompaniesPopulated InitSource = iota
	InitInteriorsGenerated
	InitCityConstructed
	InitCitizensPopulated
)

func (s InitSource) String() string {
	switch s {
	case InitCompaniesPopulated:
		return "companies-populated"
	case InitInteriorsGenerated:
		return "interiors-generated"
	case InitCityConstructed:
		return "city-constructed"
	case InitCitizensPopulated:
		return "citizens-populated"
	}
	return fmt.Sprintf("init-source-%d", int(s))
}

type initState int

const (
	stateUninitialized initState = iota
	stateInitializing
	stateInitialized
)

// MarketConfig holds the tunables the orchestrator runs under. Values out
// of range are clamped, not rejected; the simulation favors self-correction
// over refusing to start.
type MarketConfig struct {
	OpeningHour    int
	ClosingHour    int
	ClosedWeekdays []time.Weekday

	TrendChancePct float64
	MaxTrends      int // -1 = unlimited
	MinTrendHours  int
	MaxTrendHours  int

	FluctuationPct float64
	TicksPerHour   int

	RetentionDays       int
	BootstrapDays       int
	BootstrapVolatility float64
}

// DefaultMarketConfig returns the stock market defaults.
func DefaultMarketConfig() MarketConfig {
	return MarketConfig{
		OpeningHour:         9,
		ClosingHour:         17,
		ClosedWeekdays:      []time.Weekday{time.Saturday, time.Sunday},
		TrendChancePct:      1.5,
		MaxTrends:           5,
		MinTrendHours:       2,
		MaxTrendHours:       24,
		FluctuationPct:      0.35,
		TicksPerHour:        60,
		RetentionDays:       30,
		BootstrapDays:       14,
		BootstrapVolatility: 1.2,
	}
}

// Clamp forces out-of-range values back into valid bounds, logging each
// correction.
func (c *MarketConfig) Clamp() {
	clampInt := func(name string, v *int, lo, hi int) {
		if *v < lo {
			log.Printf("config: %s %d below %d, clamped", name, *v, lo)
			*v = lo
		} else if hi >= lo && *v > hi {
			log.Printf("config: %s %d above %d, clamped", name, *v, hi)
			*v = hi
		}
	}
	clampFloat := func(name string, v *float64, lo, hi float64) {
		if *v < lo {
			log.Printf("config: %s %.2f below %.2f, clamped", name, *v, lo)
			*v = lo
		} else if *v > hi {
			log.Printf("config: %s %.2f above %.2f, clamped", name, *v, hi)
			*v = hi
		}
	}

	clampInt("opening hour", &c.OpeningHour, 0, 23)
	clampInt("closing hour", &c.ClosingHour, c.OpeningHour+1, 24)
	clampFloat("trend chance", &c.TrendChancePct, 0, 100)
	if c.MaxTrends < -1 {
		log.Printf("config: max trends %d invalid, clamped to -1 (unlimited)", c.MaxTrends)
		c.MaxTrends = -1
	}
	clampInt("min trend hours", &c.MinTrendHours, 1, math.MaxInt)
	clampInt("max trend hours", &c.MaxTrendHours, c.MinTrendHours, math.MaxInt)
	clampFloat("fluctuation", &c.FluctuationPct, 0.01, 100)
	clampInt("ticks per hour", &c.TicksPerHour, 1, 3600)
	clampInt("retention days", &c.RetentionDays, 1, math.MaxInt)
	clampInt("bootstrap days", &c.BootstrapDays, 0, c.RetentionDays)
	clampFloat("bootstrap volatility", &c.BootstrapVolatility, 0, 100)
}

// NewsNotifier receives trend-creation events. The market never calls it
// while in simulation mode.
type NewsNotifier interface {
	TrendStarted(s *Stock, t Trend, now time.Time)
	MurderTrendStarted(s *Stock, t Trend, now time.Time)
}

// PriceUpdate is one stock's tick outcome, for feed broadcasting.
type PriceUpdate struct {
	StockID int
	Symbol  string
	Prev    float64
	Price   float64
}

// DailyClose is one stock's day-rollover outcome, for the recorder.
type DailyClose struct {
	StockID    int
	Symbol     string
	Name       string
	Data       HistoricalData
	RollingAvg float64
	Pruned     int
}

// Market owns the full stock roster and drives the simulation: one-time
// startup gating, open-hours ticking, trend allocation under caps, day
// rollover, and external trend injection.
//
// Stocks are kept in an ID-ordered slice and always iterated in that
// order; iterating a map here would randomize the order of RNG draws and
// break save/reload determinism.
//
// All access goes through the mutex: the tick loop, the autosave cron,
// and HTTP handlers run on different goroutines.
type Market struct {
	mu     sync.RWMutex
	cfg    MarketConfig
	rng    *RNG
	news   NewsNotifier
	symgen *symbol.Generator

	stocks    []*Stock
	byID      map[int]*Stock
	byCompany map[int]*Stock
	nextID    int

	state      initState
	simulation bool
}

// NewMarket creates an empty market. The config is clamped in place.
func NewMarket(cfg MarketConfig, rng *RNG, news NewsNotifier) *Market {
	cfg.Clamp()
	return &Market{
		cfg:       cfg,
		rng:       rng,
		news:      news,
		symgen:    symbol.NewGenerator(),
		byID:      make(map[int]*Stock),
		byCompany: make(map[int]*Stock),
		nextID:    1,
	}
}

// InitStock registers a stock for a live company during world
// construction. Companies that never receive tradable stock (and
// companies already listed) are skipped with a nil result.
func (m *Market) InitStock(c *company.Company) (*Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !c.Tradable() {
		return nil, nil
	}
	if _, ok := m.byCompany[c.ID]; ok {
		return nil, nil
	}

	st := NewStock(m.nextID, c, m.symgen.Next(c.Name), 0)
	if err := st.Initialize(c); err != nil {
		return nil, fmt.Errorf("initialize stock for %q: %w", c.Name, err)
	}
	m.nextID++
	m.stocks = append(m.stocks, st)
	m.byID[st.ID] = st
	m.byCompany[st.CompanyID] = st
	return st, nil
}

// PostStocksInitialization is the idempotent finalize step. Any of the
// world-ready signals may call it, from any number of call sites; a single
// shared latch ensures the work runs exactly once. Returns whether this
// call was the one that performed it.
func (m *Market) PostStocksInitialization(src InitSource, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateUninitialized {
		return false
	}
	m.state = stateInitializing
	log.Printf("market: initializing %d stocks (triggered by %s)", len(m.stocks), src)

	if m.cfg.BootstrapDays > 0 {
		for _, st := range m.stocks {
			m.bootstrapHistory(st, now)
		}
	}

	m.state = stateInitialized
	return true
}

// bootstrapHistory synthesizes pre-history so charts are not empty on a
// brand-new game: a backward random walk from the opening price using the
// bootstrap volatility, all draws from the shared RNG.
func (m *Market) bootstrapHistory(st *Stock, now time.Time) {
	days := m.cfg.BootstrapDays
	closes := make([]float64, days)

	price := st.Price()
	for i := days - 1; i >= 0; i-- {
		span := price * m.cfg.BootstrapVolatility / 100
		price = roundCents(price + m.rng.FloatRange(-span, span))
		if price < minPrice {
			price = minPrice
		}
		closes[i] = price
	}

	entries := make([]HistoricalData, 0, days)
	for i := 0; i < days; i++ {
		date := Day(now).AddDate(0, 0, i-days)
		open := closes[i]
		if i > 0 {
			open = closes[i-1]
		}
		c := closes[i]
		high := math.Max(open, c)
		low := math.Min(open, c)
		entries = append(entries, HistoricalData{
			Date:  date,
			Open:  open,
			Close: &c,
			High:  roundCents(high * (1 + m.rng.Float64()*m.cfg.BootstrapVolatility/200)),
			Low:   roundCents(low * (1 - m.rng.Float64()*m.cfg.BootstrapVolatility/200)),
		})
	}
	st.SeedHistory(entries)
}

// OnMinuteChanged is the per-tick entry point. Ticks are ignored until the
// market is initialized and while it is closed. Returns the price updates
// produced, in stock ID order.
func (m *Market) OnMinuteChanged(now time.Time) []PriceUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateInitialized || !m.IsOpen(now) {
		return nil
	}

	m.allocateTrends(now)

	updates := make([]PriceUpdate, 0, len(m.stocks))
	for _, st := range m.stocks {
		prev := st.Price()
		st.DeterminePrice(m.rng, m.cfg.FluctuationPct)
		updates = append(updates, PriceUpdate{
			StockID: st.ID,
			Symbol:  st.Symbol,
			Prev:    prev,
			Price:   st.Price(),
		})
	}
	return updates
}

// allocateTrends rolls each untrended stock against the trend chance. The
// roll happens for every candidate even when the cap is reached, so the
// RNG draw sequence does not depend on the cap state.
func (m *Market) allocateTrends(now time.Time) {
	active := m.activeTrends()
	for _, st := range m.stocks {
		if st.Trend() != nil {
			continue
		}
		if !m.rng.Chance(m.cfg.TrendChancePct) {
			continue
		}
		if m.cfg.MaxTrends >= 0 && active >= m.cfg.MaxTrends {
			continue
		}

		hours := m.rng.IntRange(m.cfg.MinTrendHours, m.cfg.MaxTrendHours)
		pct := m.rng.FloatRange(-maxTrendMagnitudePct, maxTrendMagnitudePct)
		tr := NewTrend(pct, st.Price(), hours*m.cfg.TicksPerHour)
		if !st.SetTrend(tr) {
			continue
		}
		active++

		if !m.simulation && m.news != nil {
			m.news.TrendStarted(st, tr, now)
		}
	}
}

// OnDayChanged freezes every stock's daily snapshot and prunes stale
// history. Returns the closes for recording.
func (m *Market) OnDayChanged(now time.Time) []DailyClose {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateInitialized {
		return nil
	}
	closes := make([]DailyClose, 0, len(m.stocks))
	for _, st := range m.stocks {
		entry := st.CreateHistoricalData(now)
		pruned := st.CleanUpHistoricalData(now, m.cfg.RetentionDays)
		if pruned > 0 {
			log.Printf("market: %s pruned %d stale history entries", st.Symbol, pruned)
		}
		closes = append(closes, DailyClose{
			StockID:    st.ID,
			Symbol:     st.Symbol,
			Name:       st.Name,
			Data:       entry,
			RollingAvg: st.RollingAverage(),
			Pruned:     pruned,
		})
	}
	return closes
}

// InjectTrend forces a trend onto the stock of the given company,
// replacing any active one (last writer wins). Used by outside events —
// a reported murder at a company tanks its stock. The percentage is drawn
// uniformly from [minPct, maxPct].
func (m *Market) InjectTrend(companyID int, minPct, maxPct float64, now time.Time) (*Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.byCompany[companyID]
	if !ok {
		return nil, fmt.Errorf("no stock listed for company %d", companyID)
	}

	st.RemoveTrend()
	pct := m.rng.FloatRange(minPct, maxPct)
	hours := m.rng.IntRange(m.cfg.MinTrendHours, m.cfg.MaxTrendHours)
	tr := NewTrend(pct, st.Price(), hours*m.cfg.TicksPerHour)
	st.SetTrend(tr)

	if !m.simulation && m.news != nil {
		m.news.MurderTrendStarted(st, tr, now)
	}
	return st, nil
}

// IsOpen reports whether the market trades at the given time.
func (m *Market) IsOpen(t time.Time) bool {
	for _, wd := range m.cfg.ClosedWeekdays {
		if t.Weekday() == wd {
			return false
		}
	}
	h := t.Hour()
	return h >= m.cfg.OpeningHour && h < m.cfg.ClosingHour
}

// InstallStocks atomically replaces the roster with stocks reconstructed
// from a save file and marks the market initialized. The symbol
// generator's collision counters are replayed from the loaded names so
// later listings cannot collide with restored tickers.
func (m *Market) InstallStocks(states []StockState, nextID int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stocks = m.stocks[:0]
	m.byID = make(map[int]*Stock, len(states))
	m.byCompany = make(map[int]*Stock, len(states))
	m.symgen.Reset()

	for _, st := range states {
		s := RestoreStock(st)
		m.stocks = append(m.stocks, s)
		m.byID[s.ID] = s
		m.byCompany[s.CompanyID] = s
		m.symgen.Next(s.Name)
	}
	if nextID < 1 {
		nextID = 1
	}
	m.nextID = nextID
	m.state = stateInitialized
}

// Reset tears the market down for a new game.
func (m *Market) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stocks = nil
	m.byID = make(map[int]*Stock)
	m.byCompany = make(map[int]*Stock)
	m.nextID = 1
	m.state = stateUninitialized
	m.simulation = false
	m.symgen.Reset()
}

// Stocks returns the roster in ID order.
func (m *Market) Stocks() []*Stock {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Stock, len(m.stocks))
	copy(out, m.stocks)
	return out
}

// SnapshotStates captures every stock's full state plus the ID counter
// under one lock, so a save taken mid-tick is internally consistent.
func (m *Market) SnapshotStates() ([]StockState, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	states := make([]StockState, 0, len(m.stocks))
	for _, st := range m.stocks {
		states = append(states, st.Snapshot())
	}
	return states, m.nextID
}

// ByID returns the stock with the given ID.
func (m *Market) ByID(id int) (*Stock, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.byID[id]
	return st, ok
}

// ByCompany returns the stock listed for the given company.
func (m *Market) ByCompany(companyID int) (*Stock, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.byCompany[companyID]
	return st, ok
}

// ActiveTrends counts stocks with a trend in progress.
func (m *Market) ActiveTrends() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeTrends()
}

// activeTrends counts without locking. Caller holds the mutex.
func (m *Market) activeTrends() int {
	n := 0
	for _, st := range m.stocks {
		if st.Trend() != nil {
			n++
		}
	}
	return n
}

// Initialized reports whether startup finalization has run.
func (m *Market) Initialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == stateInitialized
}

// SetSimulation toggles catch-up replay mode. While set, trend creation
// raises no news and collaborators are expected to stay quiet.
func (m *Market) SetSimulation(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.simulation = on
}

// Simulation reports whether the market is fast-forwarding offline time.
func (m *Market) Simulation() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.simulation
}

// NextID exposes the ID counter for save metadata.
func (m *Market) NextID() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextID
}

// Config returns the clamped configuration in effect.
func (m *Market) Config() MarketConfig { return m.cfg }
