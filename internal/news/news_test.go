package news

import (
	"strings"
	"testing"
	"time"

	"github.com/ndrandal/stocksim/internal/company"
	"github.com/ndrandal/stocksim/internal/engine"
)

func testStock(t *testing.T) *engine.Stock {
	t.Helper()
	c := &company.Company{
		ID: 1, Name: "Kaizen Electronics",
		AverageSales: 840, MinSalary: 9.5, TopSalary: 32, PublicFacing: true,
	}
	st := engine.NewStock(1, c, "KE01", 0)
	if err := st.Initialize(c); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestArticlesUnlockAfterDelay(t *testing.T) {
	g := NewGenerator()
	st := testStock(t)
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	g.TrendStarted(st, engine.NewTrend(12, st.Price(), 100), now)
	if g.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", g.Pending())
	}

	if due := g.OnHourChanged(now.Add(time.Hour)); len(due) != 0 {
		t.Fatalf("article released %d early", len(due))
	}
	due := g.OnHourChanged(now.Add(publishDelay))
	if len(due) != 1 {
		t.Fatalf("released %d articles, want 1", len(due))
	}
	if due[0].Symbol != "KE01" || due[0].Company != "Kaizen Electronics" {
		t.Errorf("article = %+v", due[0])
	}
	if !strings.Contains(due[0].Headline, "KE01") {
		t.Errorf("headline %q does not name the ticker", due[0].Headline)
	}
	if g.Pending() != 0 {
		t.Errorf("pending = %d after release", g.Pending())
	}
}

func TestRisingAndFallingReadDifferently(t *testing.T) {
	g := NewGenerator()
	st := testStock(t)
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	g.TrendStarted(st, engine.NewTrend(12, st.Price(), 100), now)
	g.TrendStarted(st, engine.NewTrend(-12, st.Price(), 100), now)
	due := g.OnHourChanged(now.Add(publishDelay))
	if len(due) != 2 {
		t.Fatalf("released %d, want 2", len(due))
	}
	if due[0].Headline == due[1].Headline {
		t.Error("rising and falling trends produced the same headline")
	}
}

func TestTemplatesRotate(t *testing.T) {
	g := NewGenerator()
	st := testStock(t)
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	for i := 0; i < len(risingTemplates); i++ {
		g.TrendStarted(st, engine.NewTrend(10, st.Price(), 100), now)
	}
	due := g.OnHourChanged(now.Add(publishDelay))
	seen := make(map[string]bool)
	for _, a := range due {
		if seen[a.Headline] {
			t.Fatalf("headline repeated before the rotation wrapped: %q", a.Headline)
		}
		seen[a.Headline] = true
	}
}

func TestMurderHeadlineIsDistinct(t *testing.T) {
	g := NewGenerator()
	st := testStock(t)
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	g.TrendStarted(st, engine.NewTrend(-20, st.Price(), 100), now)
	g.MurderTrendStarted(st, engine.NewTrend(-20, st.Price(), 100), now)
	due := g.OnHourChanged(now.Add(publishDelay))
	if len(due) != 2 {
		t.Fatalf("released %d, want 2", len(due))
	}
	if due[0].Headline == due[1].Headline {
		t.Error("murder variant matched the routine headline")
	}
}

// Every murder template names the company as the scene and the ticker as
// the thing that moves, never the other way round.
func TestMurderHeadlinesReadCompanyAsVenue(t *testing.T) {
	g := NewGenerator()
	st := testStock(t)
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	for i := 0; i < len(murderTemplates); i++ {
		g.MurderTrendStarted(st, engine.NewTrend(-20, st.Price(), 100), now)
	}
	for _, a := range g.OnHourChanged(now.Add(publishDelay)) {
		at := strings.Index(a.Headline, "at "+st.Name)
		if at < 0 {
			t.Errorf("headline %q does not place the incident at the company", a.Headline)
		}
		sym := strings.Index(a.Headline, st.Symbol)
		if sym < 0 {
			t.Errorf("headline %q does not name the ticker", a.Headline)
		}
	}
}

func TestResetDropsQueue(t *testing.T) {
	g := NewGenerator()
	st := testStock(t)
	now := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	g.TrendStarted(st, engine.NewTrend(10, st.Price(), 100), now)
	g.Reset()
	if g.Pending() != 0 {
		t.Errorf("pending = %d after Reset", g.Pending())
	}
}
