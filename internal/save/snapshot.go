package save

import (
	"fmt"
	"sort"
	"time"

	"github.com/ndrandal/stocksim/internal/engine"
)

// Capture builds a snapshot of the market and the shared RNG.
func Capture(m *engine.Market, rng *engine.RNG, gameDate time.Time) *Snapshot {
	states, nextID := m.SnapshotStates()
	index, words := rng.State()
	snap := &Snapshot{
		RNG: RNGState{Index: index, Words: words},
		Meta: Meta{
			SavedAt:     time.Now(),
			GameDate:    engine.Day(gameDate),
			NextStockID: nextID,
		},
	}

	for _, state := range states {
		for _, h := range state.History {
			snap.Rows = append(snap.Rows, historyRow(state, h))
		}
		snap.Rows = append(snap.Rows, liveRow(state, snap.Meta.GameDate))
	}
	return snap
}

func historyRow(st engine.StockState, h engine.HistoricalData) Row {
	price := h.Open
	if h.Close != nil {
		price = *h.Close
	}
	r := Row{
		ID:         st.ID,
		CompanyID:  st.CompanyID,
		Name:       st.Name,
		Symbol:     st.Symbol,
		Date:       h.Date,
		Price:      price,
		Open:       h.Open,
		Close:      h.Close,
		High:       h.High,
		Low:        h.Low,
		Volatility: st.Volatility,
		RollingAvg: st.RollingAvg,
	}
	setTrendFields(&r, h.Trend)
	return r
}

func liveRow(st engine.StockState, gameDate time.Time) Row {
	r := Row{
		ID:         st.ID,
		CompanyID:  st.CompanyID,
		Name:       st.Name,
		Symbol:     st.Symbol,
		Date:       gameDate,
		Price:      st.Price,
		Open:       st.Open,
		Close:      st.Close,
		High:       st.High,
		Low:        st.Low,
		Volatility: st.Volatility,
		RollingAvg: st.RollingAvg,
	}
	setTrendFields(&r, st.Trend)
	if st.Trend != nil {
		step := st.TrendStep
		r.TrendStep = &step
	}
	return r
}

func setTrendFields(r *Row, t *engine.Trend) {
	if t == nil {
		return
	}
	pct, start, end, steps := t.Percentage, t.StartPrice, t.EndPrice, t.Steps
	r.TrendPct = &pct
	r.TrendStart = &start
	r.TrendEnd = &end
	r.TrendSteps = &steps
}

// Restore applies a snapshot: the RNG checkpoint is installed first, then
// the rows are grouped back into stocks and the roster is swapped in
// atomically. On error nothing is installed.
func Restore(snap *Snapshot, m *engine.Market, rng *engine.RNG) error {
	states, err := rowsToStocks(snap)
	if err != nil {
		return err
	}
	if err := rng.Restore(snap.RNG.Index, snap.RNG.Words); err != nil {
		return fmt.Errorf("restore rng: %w", err)
	}
	m.InstallStocks(states, snap.Meta.NextStockID)
	return nil
}

// rowsToStocks groups rows by stock ID, in first-seen order. Within a
// stock, the row dated on the save's game date is the live state; every
// other row becomes a historical entry.
func rowsToStocks(snap *Snapshot) ([]engine.StockState, error) {
	var order []int
	grouped := make(map[int][]Row)
	for _, r := range snap.Rows {
		if _, ok := grouped[r.ID]; !ok {
			order = append(order, r.ID)
		}
		grouped[r.ID] = append(grouped[r.ID], r)
	}

	gameDate := engine.Day(snap.Meta.GameDate)
	states := make([]engine.StockState, 0, len(order))
	for _, id := range order {
		rows := grouped[id]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })

		var live *Row
		var history []engine.HistoricalData
		for i := range rows {
			r := &rows[i]
			if engine.Day(r.Date).Equal(gameDate) {
				live = r
				continue
			}
			history = append(history, rowToHistory(r))
		}
		if live == nil {
			return nil, fmt.Errorf("stock %d: no row for game date %s", id, gameDate.Format(time.DateOnly))
		}

		st := engine.StockState{
			ID:         live.ID,
			CompanyID:  live.CompanyID,
			Name:       live.Name,
			Symbol:     live.Symbol,
			Price:      live.Price,
			Open:       live.Open,
			Close:      live.Close,
			High:       live.High,
			Low:        live.Low,
			Volatility: live.Volatility,
			RollingAvg: live.RollingAvg,
			History:    history,
		}
		if tr := rowTrend(live); tr != nil {
			st.Trend = tr
			if live.TrendStep != nil {
				st.TrendStep = *live.TrendStep
			} else {
				// Older saves carry no progress column; the price-derived
				// step is approximate for shallow trends.
				st.TrendStep = engine.DeriveTrendStep(*tr, live.Price)
			}
		}
		states = append(states, st)
	}
	return states, nil
}

func rowToHistory(r *Row) engine.HistoricalData {
	return engine.HistoricalData{
		Date:  engine.Day(r.Date),
		Open:  r.Open,
		Close: r.Close,
		High:  r.High,
		Low:   r.Low,
		Trend: rowTrend(r),
	}
}

func rowTrend(r *Row) *engine.Trend {
	if r.TrendPct == nil || r.TrendStart == nil || r.TrendEnd == nil || r.TrendSteps == nil {
		return nil
	}
	return &engine.Trend{
		Percentage: *r.TrendPct,
		StartPrice: *r.TrendStart,
		EndPrice:   *r.TrendEnd,
		Steps:      *r.TrendSteps,
	}
}

// Write captures the market and writes it with the converter selected by
// the path's extension.
func Write(path string, m *engine.Market, rng *engine.RNG, gameDate time.Time) error {
	conv, err := ForPath(path)
	if err != nil {
		return err
	}
	return conv.Save(path, Capture(m, rng, gameDate))
}

// Read loads a save file and installs it into the market, restoring the
// RNG before any stock state. Returns the save's game date.
func Read(path string, m *engine.Market, rng *engine.RNG) (time.Time, error) {
	conv, err := ForPath(path)
	if err != nil {
		return time.Time{}, err
	}
	snap, err := conv.Load(path)
	if err != nil {
		return time.Time{}, err
	}
	if err := Restore(snap, m, rng); err != nil {
		return time.Time{}, err
	}
	return snap.Meta.GameDate, nil
}
