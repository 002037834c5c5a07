package engine

import (
	"errors"
	"math"
	"time"

	"github.com/ndrandal/stocksim/internal/company"
)

const (
	// minPrice is the floor a price is clamped to; a stock can never
	// trade at or below zero.
	minPrice = 0.01

	// noChangeChancePct is the chance a tick leaves the price untouched
	// when no trend is driving it.
	noChangeChancePct = 10.0
)

// ErrImportedStock is returned when Initialize is called on a stock that
// was reconstructed from a save file and already carries price state.
var ErrImportedStock = errors.New("stock was imported from persisted data")

// Stock is one tradable instrument tied to an in-world company. It owns
// the price-update algorithm and a bounded window of daily history.
type Stock struct {
	ID        int
	CompanyID int
	Name      string
	Symbol    string

	price        float64
	openingPrice float64
	closingPrice *float64
	highPrice    float64
	lowPrice     float64
	volatility   float64
	rollingAvg   float64

	trend     *Trend
	trendStep int

	history  []HistoricalData
	imported bool
}

// StockState is the full serializable state of a Stock, used both for
// save capture and for reconstructing an imported stock.
type StockState struct {
	ID         int
	CompanyID  int
	Name       string
	Symbol     string
	Price      float64
	Open       float64
	Close      *float64
	High       float64
	Low        float64
	Volatility float64
	RollingAvg float64
	Trend      *Trend
	TrendStep  int
	History    []HistoricalData
}

// NewStock creates a fresh (non-imported) stock for a live company.
// basePriceOverride > 0 fixes the opening price; otherwise Initialize
// derives it from the company's economics.
func NewStock(id int, c *company.Company, symbol string, basePriceOverride float64) *Stock {
	return &Stock{
		ID:         id,
		CompanyID:  c.ID,
		Name:       c.Name,
		Symbol:     symbol,
		price:      basePriceOverride,
		volatility: volatilityFor(c),
	}
}

// RestoreStock reconstructs a stock from persisted state. The result is
// marked imported: Initialize must not be called on it.
func RestoreStock(st StockState) *Stock {
	return &Stock{
		ID:           st.ID,
		CompanyID:    st.CompanyID,
		Name:         st.Name,
		Symbol:       st.Symbol,
		price:        st.Price,
		openingPrice: st.Open,
		closingPrice: st.Close,
		highPrice:    st.High,
		lowPrice:     st.Low,
		volatility:   st.Volatility,
		rollingAvg:   st.RollingAvg,
		trend:        st.Trend,
		trendStep:    st.TrendStep,
		history:      st.History,
		imported:     true,
	}
}

// Snapshot captures the full state of the stock.
func (s *Stock) Snapshot() StockState {
	history := make([]HistoricalData, len(s.history))
	copy(history, s.history)
	return StockState{
		ID:         s.ID,
		CompanyID:  s.CompanyID,
		Name:       s.Name,
		Symbol:     s.Symbol,
		Price:      s.price,
		Open:       s.openingPrice,
		Close:      s.closingPrice,
		High:       s.highPrice,
		Low:        s.lowPrice,
		Volatility: s.volatility,
		RollingAvg: s.rollingAvg,
		Trend:      s.trend,
		TrendStep:  s.trendStep,
		History:    history,
	}
}

// Initialize derives the opening price for a freshly created stock and
// seeds the day's low/high range. Calling it on an imported stock is a
// programming error.
func (s *Stock) Initialize(c *company.Company) error {
	if s.imported {
		return ErrImportedStock
	}
	if s.price <= 0 {
		s.price = basePriceFor(c)
	}
	s.price = roundCents(s.price)
	s.openingPrice = s.price
	s.lowPrice = s.price
	s.highPrice = s.price
	return nil
}

// DeterminePrice advances the price by one tick: a linear trend step if a
// trend is active, otherwise a bounded random walk scaled by the market's
// fluctuation percentage and the stock's volatility. The result is always
// positive, rounded to cents, and tracked against the day's low/high.
func (s *Stock) DeterminePrice(rng *RNG, fluctuationPct float64) {
	// A trend restored with no steps left is finalized without moving;
	// the detach consumes the tick.
	if s.trend != nil && s.trendStep >= s.trend.Steps {
		s.RemoveTrend()
		return
	}

	if s.trend == nil && rng.Chance(noChangeChancePct) {
		return
	}

	var price float64
	havePrice := false
	if s.trend != nil {
		s.trendStep++
		price = s.trend.priceAt(s.trendStep)
		havePrice = true
		if s.trendStep >= s.trend.Steps {
			s.RemoveTrend()
		}
	}

	if !havePrice {
		span := s.price * (fluctuationPct * s.volatility) / 100
		price = s.price + rng.FloatRange(-span, span)
	}

	if math.IsNaN(price) || price <= 0 {
		// A trend cannot walk a stock through zero.
		price = minPrice
		s.RemoveTrend()
	}

	s.price = roundCents(price)
	if s.price > s.highPrice {
		s.highPrice = s.price
	}
	if s.price < s.lowPrice {
		s.lowPrice = s.price
	}
}

// SetTrend attaches a trend unless one is already active (first writer
// wins). Returns whether the trend was applied.
func (s *Stock) SetTrend(t Trend) bool {
	if s.trend != nil {
		return false
	}
	s.trend = &t
	s.trendStep = 0
	return true
}

// RemoveTrend clears any active trend and resets the step counter.
func (s *Stock) RemoveTrend() {
	s.trend = nil
	s.trendStep = 0
}

// CreateHistoricalData freezes the day's snapshot, appends it to the
// history, and resets the open/low/high range to the closing price so the
// next day starts fresh.
func (s *Stock) CreateHistoricalData(date time.Time) HistoricalData {
	closePrice := s.price
	s.closingPrice = &closePrice

	entry := HistoricalData{
		Date:  Day(date),
		Open:  s.openingPrice,
		Close: &closePrice,
		High:  s.highPrice,
		Low:   s.lowPrice,
	}
	if s.trend != nil {
		snap := *s.trend
		entry.Trend = &snap
	}
	s.history = append(s.history, entry)

	s.openingPrice = closePrice
	s.lowPrice = closePrice
	s.highPrice = closePrice
	s.closingPrice = nil
	s.rollingAvg = rollingAverage(s.history)

	return entry
}

// SeedHistory installs synthetic pre-history on a fresh stock, replacing
// whatever was there. Entries must already be in date order.
func (s *Stock) SeedHistory(entries []HistoricalData) {
	s.history = entries
	s.rollingAvg = rollingAverage(s.history)
}

// CleanUpHistoricalData drops entries older than the retention window
// (entries aged exactly retentionDays are kept) and returns how many were
// removed. The count is telemetry, not a correctness signal.
func (s *Stock) CleanUpHistoricalData(now time.Time, retentionDays int) int {
	cutoff := Day(now).AddDate(0, 0, -retentionDays)
	kept := s.history[:0]
	removed := 0
	for _, h := range s.history {
		if h.Date.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, h)
	}
	s.history = kept
	if removed > 0 {
		s.rollingAvg = rollingAverage(s.history)
	}
	return removed
}

// Price returns the current price.
func (s *Stock) Price() float64 { return s.price }

// OpeningPrice returns the day's opening price.
func (s *Stock) OpeningPrice() float64 { return s.openingPrice }

// ClosingPrice returns the day's closing price, or nil before day end.
func (s *Stock) ClosingPrice() *float64 { return s.closingPrice }

// HighPrice returns the day's high.
func (s *Stock) HighPrice() float64 { return s.highPrice }

// LowPrice returns the day's low.
func (s *Stock) LowPrice() float64 { return s.lowPrice }

// Volatility returns the company-derived fluctuation scale.
func (s *Stock) Volatility() float64 { return s.volatility }

// RollingAverage returns the mean of the retained closing prices.
func (s *Stock) RollingAverage() float64 { return s.rollingAvg }

// Trend returns a copy of the active trend, or nil.
func (s *Stock) Trend() *Trend {
	if s.trend == nil {
		return nil
	}
	t := *s.trend
	return &t
}

// TrendStep returns how many steps of the active trend have elapsed.
func (s *Stock) TrendStep() int { return s.trendStep }

// History returns a copy of the retained daily snapshots, oldest first.
func (s *Stock) History() []HistoricalData {
	out := make([]HistoricalData, len(s.history))
	copy(out, s.history)
	return out
}

// Imported reports whether the stock was reconstructed from a save file.
func (s *Stock) Imported() bool { return s.imported }

// basePriceFor derives an opening price from company economics: average
// daily sales scaled by the salary band.
func basePriceFor(c *company.Company) float64 {
	band := (c.MinSalary + c.TopSalary) / 2
	price := c.AverageSales * (1 + band/100) / 10
	if price < minPrice {
		price = minPrice
	}
	return roundCents(price)
}

// volatilityFor maps the company's salary spread onto a small positive
// fluctuation multiplier.
func volatilityFor(c *company.Company) float64 {
	vol := 0.1 + (c.TopSalary-c.MinSalary)/80
	if vol > 0.6 {
		vol = 0.6
	}
	return vol
}

func rollingAverage(history []HistoricalData) float64 {
	if len(history) == 0 {
		return 0
	}
	sum := 0.0
	n := 0
	for _, h := range history {
		if h.Close == nil {
			continue
		}
		sum += *h.Close
		n++
	}
	if n == 0 {
		return 0
	}
	return roundCents(sum / float64(n))
}

// roundCents rounds a price to money precision (2 decimal places).
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
