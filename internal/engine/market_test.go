package engine

import (
	"testing"
	"time"

	"github.com/ndrandal/stocksim/internal/company"
)

// recordingNews counts notifications for assertions.
type recordingNews struct {
	trends  int
	murders int
}

func (n *recordingNews) TrendStarted(*Stock, Trend, time.Time)       { n.trends++ }
func (n *recordingNews) MurderTrendStarted(*Stock, Trend, time.Time) { n.murders++ }

// A Tuesday inside trading hours under the default config.
var openTime = time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

func newTestMarket(t *testing.T, seed int64, news NewsNotifier) *Market {
	t.Helper()
	m := NewMarket(DefaultMarketConfig(), NewRNG(seed), news)
	for _, c := range company.DemoCompanies() {
		if _, err := m.InitStock(c); err != nil {
			t.Fatalf("InitStock(%q): %v", c.Name, err)
		}
	}
	return m
}

func TestInitStockSkipsNonTradable(t *testing.T) {
	m := newTestMarket(t, 1, nil)

	// The demo roster carries one illegal, one self-employed, and one
	// non-public-facing company.
	want := 0
	for _, c := range company.DemoCompanies() {
		if c.Tradable() {
			want++
		}
	}
	if got := len(m.Stocks()); got != want {
		t.Fatalf("listed %d stocks, want %d", got, want)
	}

	// Relisting an already-listed company is a silent no-op.
	st, err := m.InitStock(company.DemoCompanies()[0])
	if err != nil {
		t.Fatalf("duplicate InitStock: %v", err)
	}
	if st != nil {
		t.Error("duplicate InitStock created a second stock")
	}
	if got := len(m.Stocks()); got != want {
		t.Errorf("duplicate listing grew the roster to %d", got)
	}
}

func TestStocksKeptInIDOrder(t *testing.T) {
	m := newTestMarket(t, 1, nil)
	prev := 0
	for _, st := range m.Stocks() {
		if st.ID <= prev {
			t.Fatalf("roster out of ID order: %d after %d", st.ID, prev)
		}
		prev = st.ID
	}
}

func TestPostStocksInitializationRunsOnce(t *testing.T) {
	m := newTestMarket(t, 2, nil)
	if m.Initialized() {
		t.Fatal("market initialized before finalization")
	}

	sources := []InitSource{
		InitCompaniesPopulated, InitInteriorsGenerated,
		InitCityConstructed, InitCitizensPopulated,
	}
	ran := 0
	for _, src := range sources {
		if m.PostStocksInitialization(src, openTime) {
			ran++
		}
	}
	if ran != 1 {
		t.Fatalf("finalization ran %d times, want 1", ran)
	}
	if !m.Initialized() {
		t.Fatal("market not initialized after finalization")
	}

	days := m.Config().BootstrapDays
	for _, st := range m.Stocks() {
		if got := len(st.History()); got != days {
			t.Fatalf("%s bootstrapped %d history days, want %d", st.Symbol, got, days)
		}
	}
}

func TestTicksIgnoredBeforeInitialization(t *testing.T) {
	m := newTestMarket(t, 3, nil)
	if updates := m.OnMinuteChanged(openTime); updates != nil {
		t.Fatalf("uninitialized market produced %d updates", len(updates))
	}
	if closes := m.OnDayChanged(openTime); closes != nil {
		t.Fatalf("uninitialized market produced %d closes", len(closes))
	}
}

func TestIsOpenHonorsHoursAndWeekdays(t *testing.T) {
	m := newTestMarket(t, 4, nil)
	cases := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), true},   // Tuesday open
		{time.Date(2026, 3, 3, 16, 59, 0, 0, time.UTC), true}, // last trading minute
		{time.Date(2026, 3, 3, 17, 0, 0, 0, time.UTC), false}, // closing hour
		{time.Date(2026, 3, 3, 8, 59, 0, 0, time.UTC), false}, // before open
		{time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC), false}, // Saturday
		{time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC), false}, // Sunday
	}
	for _, c := range cases {
		if got := m.IsOpen(c.at); got != c.want {
			t.Errorf("IsOpen(%v) = %v, want %v", c.at, got, c.want)
		}
	}

	m.PostStocksInitialization(InitCompaniesPopulated, openTime)
	closed := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	if updates := m.OnMinuteChanged(closed); updates != nil {
		t.Errorf("closed market produced %d updates", len(updates))
	}
}

func TestTrendCapHolds(t *testing.T) {
	cfg := DefaultMarketConfig()
	cfg.TrendChancePct = 100 // every roll wants a trend
	cfg.MaxTrends = 3
	m := NewMarket(cfg, NewRNG(5), nil)
	for _, c := range company.DemoCompanies() {
		if _, err := m.InitStock(c); err != nil {
			t.Fatal(err)
		}
	}
	m.PostStocksInitialization(InitCompaniesPopulated, openTime)

	for i := 0; i < 50; i++ {
		m.OnMinuteChanged(openTime.Add(time.Duration(i) * time.Minute))
		if got := m.ActiveTrends(); got > 3 {
			t.Fatalf("tick %d: %d active trends, cap is 3", i, got)
		}
	}
	if m.ActiveTrends() != 3 {
		t.Errorf("active trends = %d, want the cap to be reached", m.ActiveTrends())
	}
}

func TestTrendCapUnlimited(t *testing.T) {
	cfg := DefaultMarketConfig()
	cfg.TrendChancePct = 100
	cfg.MaxTrends = -1
	m := NewMarket(cfg, NewRNG(6), nil)
	for _, c := range company.DemoCompanies() {
		if _, err := m.InitStock(c); err != nil {
			t.Fatal(err)
		}
	}
	m.PostStocksInitialization(InitCompaniesPopulated, openTime)
	m.OnMinuteChanged(openTime)

	if got, want := m.ActiveTrends(), len(m.Stocks()); got != want {
		t.Errorf("active trends = %d, want all %d stocks trending", got, want)
	}
}

func TestTrendNewsRaisedOutsideSimulation(t *testing.T) {
	news := &recordingNews{}
	cfg := DefaultMarketConfig()
	cfg.TrendChancePct = 100
	m := NewMarket(cfg, NewRNG(7), news)
	for _, c := range company.DemoCompanies() {
		if _, err := m.InitStock(c); err != nil {
			t.Fatal(err)
		}
	}
	m.PostStocksInitialization(InitCompaniesPopulated, openTime)

	m.OnMinuteChanged(openTime)
	if news.trends == 0 {
		t.Fatal("no trend news raised in live mode")
	}

	raised := news.trends
	m.SetSimulation(true)
	for _, st := range m.Stocks() {
		st.RemoveTrend()
	}
	m.OnMinuteChanged(openTime.Add(time.Minute))
	if news.trends != raised {
		t.Errorf("simulation mode raised %d extra trend news", news.trends-raised)
	}
}

func TestInjectTrendReplacesActive(t *testing.T) {
	news := &recordingNews{}
	m := newTestMarket(t, 8, news)
	m.PostStocksInitialization(InitCompaniesPopulated, openTime)

	st, ok := m.ByCompany(1)
	if !ok {
		t.Fatal("company 1 has no stock")
	}
	st.SetTrend(NewTrend(15, st.Price(), 100))

	injected, err := m.InjectTrend(1, -30, -10, openTime)
	if err != nil {
		t.Fatalf("InjectTrend: %v", err)
	}
	if injected != st {
		t.Fatal("InjectTrend returned a different stock")
	}
	tr := st.Trend()
	if tr == nil {
		t.Fatal("no trend after injection")
	}
	if tr.Percentage < -30 || tr.Percentage > -10 {
		t.Errorf("injected percentage %v outside [-30, -10]", tr.Percentage)
	}
	if news.murders != 1 {
		t.Errorf("murder news raised %d times, want 1", news.murders)
	}

	if _, err := m.InjectTrend(9999, -30, -10, openTime); err == nil {
		t.Error("InjectTrend accepted an unlisted company")
	}

	m.SetSimulation(true)
	if _, err := m.InjectTrend(2, -30, -10, openTime); err != nil {
		t.Fatal(err)
	}
	if news.murders != 1 {
		t.Error("simulation mode raised murder news")
	}
}

func TestOnDayChangedClosesAndPrunes(t *testing.T) {
	m := newTestMarket(t, 9, nil)
	m.PostStocksInitialization(InitCompaniesPopulated, openTime)

	day := openTime
	retention := m.Config().RetentionDays
	bootstrap := m.Config().BootstrapDays

	for i := 0; i < retention+5; i++ {
		day = day.AddDate(0, 0, 1)
		closes := m.OnDayChanged(day)
		if len(closes) != len(m.Stocks()) {
			t.Fatalf("day %d: %d closes, want %d", i, len(closes), len(m.Stocks()))
		}
		for _, c := range closes {
			if c.Data.Close == nil {
				t.Fatalf("day %d: %s closed with nil price", i, c.Symbol)
			}
		}
	}

	// After running past the window, history is capped at retention+1
	// entries (ages 0 through retentionDays inclusive).
	for _, st := range m.Stocks() {
		if got := len(st.History()); got > retention+1 {
			t.Fatalf("%s retains %d entries, want <= %d", st.Symbol, got, retention+1)
		}
		if got := len(st.History()); got < retention {
			t.Fatalf("%s retains only %d entries after %d bootstrap + %d days",
				st.Symbol, got, bootstrap, retention+5)
		}
	}
}

func TestIdenticalSeedsReplayIdentically(t *testing.T) {
	run := func() []float64 {
		m := newTestMarket(t, 1234, nil)
		m.PostStocksInitialization(InitCompaniesPopulated, openTime)
		for i := 0; i < 200; i++ {
			m.OnMinuteChanged(openTime.Add(time.Duration(i) * time.Minute))
		}
		var prices []float64
		for _, st := range m.Stocks() {
			prices = append(prices, st.Price())
		}
		return prices
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("stock %d diverged: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestResetReturnsToUninitialized(t *testing.T) {
	m := newTestMarket(t, 10, nil)
	m.PostStocksInitialization(InitCompaniesPopulated, openTime)
	m.Reset()

	if m.Initialized() || len(m.Stocks()) != 0 || m.NextID() != 1 {
		t.Fatal("Reset left market state behind")
	}
	if !m.PostStocksInitialization(InitCityConstructed, openTime) {
		t.Error("finalization could not run again after Reset")
	}
}

func TestClampCorrectsConfig(t *testing.T) {
	cfg := MarketConfig{
		OpeningHour:    -3,
		ClosingHour:    30,
		TrendChancePct: 150,
		MaxTrends:      -7,
		MinTrendHours:  0,
		MaxTrendHours:  -1,
		FluctuationPct: 0,
		TicksPerHour:   0,
		RetentionDays:  0,
		BootstrapDays:  99,
	}
	cfg.Clamp()

	if cfg.OpeningHour != 0 || cfg.ClosingHour != 24 {
		t.Errorf("hours clamped to %d-%d, want 0-24", cfg.OpeningHour, cfg.ClosingHour)
	}
	if cfg.TrendChancePct != 100 {
		t.Errorf("trend chance = %v, want 100", cfg.TrendChancePct)
	}
	if cfg.MaxTrends != -1 {
		t.Errorf("max trends = %d, want -1", cfg.MaxTrends)
	}
	if cfg.MinTrendHours != 1 || cfg.MaxTrendHours != 1 {
		t.Errorf("trend hours = %d-%d, want 1-1", cfg.MinTrendHours, cfg.MaxTrendHours)
	}
	if cfg.FluctuationPct != 0.01 {
		t.Errorf("fluctuation = %v, want 0.01", cfg.FluctuationPct)
	}
	if cfg.TicksPerHour != 1 {
		t.Errorf("ticks per hour = %d, want 1", cfg.TicksPerHour)
	}
	if cfg.RetentionDays != 1 {
		t.Errorf("retention = %d, want 1", cfg.RetentionDays)
	}
	if cfg.BootstrapDays != cfg.RetentionDays {
		t.Errorf("bootstrap days = %d, want capped at retention %d",
			cfg.BootstrapDays, cfg.RetentionDays)
	}
}
