package engine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ndrandal/stocksim/internal/company"
)

func testCompany() *company.Company {
	return &company.Company{
		ID:           7,
		Name:         "Vantage Optics",
		AverageSales: 590.00,
		MinSalary:    11.50,
		TopSalary:    30.00,
		PublicFacing: true,
	}
}

func newTestStock(t *testing.T) *Stock {
	t.Helper()
	c := testCompany()
	st := NewStock(1, c, "VO01", 0)
	if err := st.Initialize(c); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return st
}

func TestInitializeDerivesPrice(t *testing.T) {
	st := newTestStock(t)
	if st.Price() <= 0 {
		t.Fatalf("derived price %v, want > 0", st.Price())
	}
	if st.OpeningPrice() != st.Price() || st.HighPrice() != st.Price() || st.LowPrice() != st.Price() {
		t.Errorf("open/high/low not seeded from price: open=%v high=%v low=%v price=%v",
			st.OpeningPrice(), st.HighPrice(), st.LowPrice(), st.Price())
	}

	c := testCompany()
	fixed := NewStock(2, c, "VO02", 123.45)
	if err := fixed.Initialize(c); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if fixed.Price() != 123.45 {
		t.Errorf("override price = %v, want 123.45", fixed.Price())
	}
}

func TestInitializeImportedFails(t *testing.T) {
	st := RestoreStock(StockState{ID: 1, Price: 10, Open: 10, High: 10, Low: 10})
	if err := st.Initialize(testCompany()); !errors.Is(err, ErrImportedStock) {
		t.Fatalf("Initialize on imported stock = %v, want ErrImportedStock", err)
	}
}

func TestDeterminePriceStaysPositiveAndRounded(t *testing.T) {
	st := newTestStock(t)
	rng := NewRNG(11)
	for i := 0; i < 20000; i++ {
		st.DeterminePrice(rng, 5.0)
		p := st.Price()
		if p <= 0 {
			t.Fatalf("tick %d: price %v, want > 0", i, p)
		}
		if math.Round(p*100)/100 != p {
			t.Fatalf("tick %d: price %v not rounded to cents", i, p)
		}
		if p > st.HighPrice() || p < st.LowPrice() {
			t.Fatalf("tick %d: price %v outside tracked range [%v, %v]",
				i, p, st.LowPrice(), st.HighPrice())
		}
	}
}

func TestTrendWalksToEndPrice(t *testing.T) {
	c := testCompany()
	st := NewStock(1, c, "VO01", 100.00)
	if err := st.Initialize(c); err != nil {
		t.Fatal(err)
	}

	if !st.SetTrend(NewTrend(20, 100.00, 10)) {
		t.Fatal("SetTrend refused a trend on an untrended stock")
	}
	rng := NewRNG(3)
	for i := 1; i <= 10; i++ {
		st.DeterminePrice(rng, 0.35)
		want := 100.00 + 2.00*float64(i)
		if st.Price() != want {
			t.Fatalf("step %d: price = %v, want %v", i, st.Price(), want)
		}
	}
	if st.Trend() != nil {
		t.Error("trend still attached after its final step")
	}

	// The next tick is an ordinary random walk off 120.00.
	st.DeterminePrice(rng, 0.35)
	if diff := math.Abs(st.Price() - 120.00); diff > 120.00*0.01 {
		t.Errorf("post-trend tick moved price to %v, too far from 120.00", st.Price())
	}
}

func TestTrendCannotCrossZero(t *testing.T) {
	c := testCompany()
	st := NewStock(1, c, "VO01", 10.00)
	if err := st.Initialize(c); err != nil {
		t.Fatal(err)
	}
	st.SetTrend(NewTrend(-300, 10.00, 4))

	rng := NewRNG(8)
	for i := 0; i < 4; i++ {
		st.DeterminePrice(rng, 0.35)
		if st.Price() <= 0 {
			t.Fatalf("step %d: price %v", i, st.Price())
		}
	}
	if st.Trend() != nil {
		t.Error("zero-crossing trend was not detached")
	}
}

func TestSetTrendFirstWriterWins(t *testing.T) {
	st := newTestStock(t)
	first := NewTrend(10, st.Price(), 5)
	if !st.SetTrend(first) {
		t.Fatal("first SetTrend refused")
	}
	if st.SetTrend(NewTrend(-10, st.Price(), 5)) {
		t.Fatal("second SetTrend replaced an active trend")
	}
	if tr := st.Trend(); tr == nil || tr.Percentage != 10 {
		t.Errorf("active trend = %+v, want the first one", tr)
	}

	st.RemoveTrend()
	if st.Trend() != nil || st.TrendStep() != 0 {
		t.Error("RemoveTrend left state behind")
	}
}

func TestRestoredSpentTrendFinalizesWithoutMoving(t *testing.T) {
	st := RestoreStock(StockState{
		ID: 1, Price: 120.00, Open: 118.00, High: 121.00, Low: 117.50,
		Volatility: 0.2,
		Trend:      &Trend{Percentage: 20, StartPrice: 100, EndPrice: 120, Steps: 10},
		TrendStep:  10,
	})

	rng := NewRNG(6)
	before, _ := rng.State()
	st.DeterminePrice(rng, 0.35)
	after, _ := rng.State()

	if st.Trend() != nil {
		t.Error("spent trend not cleared")
	}
	// Finalizing a spent trend consumes the tick: price holds and no
	// random draw happens, so replays stay aligned.
	if st.Price() != 120.00 {
		t.Errorf("price = %v, want 120.00 unchanged", st.Price())
	}
	if before != after {
		t.Error("finalizing a spent trend drew from the rng")
	}
}

func TestCreateHistoricalDataFreezesAndResets(t *testing.T) {
	st := newTestStock(t)
	rng := NewRNG(21)
	for i := 0; i < 200; i++ {
		st.DeterminePrice(rng, 2.0)
	}
	open, high, low, price := st.OpeningPrice(), st.HighPrice(), st.LowPrice(), st.Price()

	day := time.Date(2026, 3, 3, 23, 59, 0, 0, time.UTC)
	entry := st.CreateHistoricalData(day)

	if !entry.Date.Equal(Day(day)) {
		t.Errorf("entry date = %v, want %v", entry.Date, Day(day))
	}
	if entry.Open != open || entry.High != high || entry.Low != low {
		t.Errorf("entry = open %v high %v low %v, want %v/%v/%v",
			entry.Open, entry.High, entry.Low, open, high, low)
	}
	if entry.Close == nil || *entry.Close != price {
		t.Fatalf("entry close = %v, want %v", entry.Close, price)
	}

	if st.OpeningPrice() != price || st.HighPrice() != price || st.LowPrice() != price {
		t.Error("day range not reset to the closing price")
	}
	if st.ClosingPrice() != nil {
		t.Error("closing price not cleared for the new day")
	}
	if len(st.History()) != 1 {
		t.Fatalf("history has %d entries, want 1", len(st.History()))
	}
	if st.RollingAverage() != price {
		t.Errorf("rolling average = %v, want %v", st.RollingAverage(), price)
	}
}

func TestCleanUpHistoricalDataKeepsRetentionBoundary(t *testing.T) {
	st := newTestStock(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	var entries []HistoricalData
	for age := 10; age >= 0; age-- {
		c := 10.0 + float64(age)
		entries = append(entries, HistoricalData{
			Date:  Day(now).AddDate(0, 0, -age),
			Open:  c, Close: &c, High: c, Low: c,
		})
	}
	st.SeedHistory(entries)

	removed := st.CleanUpHistoricalData(now, 7)
	if removed != 3 {
		t.Fatalf("removed %d entries, want 3", removed)
	}
	kept := st.History()
	if len(kept) != 8 {
		t.Fatalf("kept %d entries, want 8", len(kept))
	}
	// The entry aged exactly the retention window survives.
	if want := Day(now).AddDate(0, 0, -7); !kept[0].Date.Equal(want) {
		t.Errorf("oldest kept entry dated %v, want %v", kept[0].Date, want)
	}

	if st.CleanUpHistoricalData(now, 7) != 0 {
		t.Error("second cleanup removed entries again")
	}
}

func TestRollingAverageIgnoresOpenDays(t *testing.T) {
	st := newTestStock(t)
	c1, c2 := 10.0, 20.0
	st.SeedHistory([]HistoricalData{
		{Date: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Open: 10, Close: &c1, High: 10, Low: 10},
		{Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Open: 10, Close: &c2, High: 20, Low: 10},
		{Date: time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), Open: 20, High: 20, Low: 20}, // never closed
	})
	if st.RollingAverage() != 15.0 {
		t.Errorf("rolling average = %v, want 15.0", st.RollingAverage())
	}
}

func TestDeriveTrendStep(t *testing.T) {
	tr := Trend{Percentage: 20, StartPrice: 100, EndPrice: 120, Steps: 10}
	cases := []struct {
		price float64
		want  int
	}{
		{100, 0}, {102, 1}, {110, 5}, {120, 10},
		{90, 0},  // clamped below
		{150, 10}, // clamped above
	}
	for _, c := range cases {
		if got := DeriveTrendStep(tr, c.price); got != c.want {
			t.Errorf("DeriveTrendStep(%v) = %d, want %d", c.price, got, c.want)
		}
	}
	if got := DeriveTrendStep(Trend{StartPrice: 50, EndPrice: 50, Steps: 10}, 50); got != 0 {
		t.Errorf("flat trend step = %d, want 0", got)
	}
}
