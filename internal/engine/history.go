package engine

import "time"

// HistoricalData is one frozen end-of-day price snapshot. Entries are
// keyed by date; identity is the date alone.
type HistoricalData struct {
	Date  time.Time // midnight, in-game calendar
	Open  float64
	Close *float64 // nil until the day actually closed
	High  float64
	Low   float64
	Trend *Trend // snapshot of any trend active that day
}

// Day truncates a timestamp to its in-game calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
