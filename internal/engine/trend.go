package engine

import "math"

// Trend is a scripted, time-bounded directional price move. It is a pure
// value: once attached to a Stock, the Stock walks it forward with its own
// step counter until Steps ticks have elapsed.
type Trend struct {
	Percentage float64 // signed magnitude of the intended move
	StartPrice float64
	EndPrice   float64
	Steps      int
}

// NewTrend builds a trend anchored at startPrice moving pct percent over
// the given number of ticks.
func NewTrend(pct, startPrice float64, steps int) Trend {
	if steps < 1 {
		steps = 1
	}
	return Trend{
		Percentage: pct,
		StartPrice: startPrice,
		EndPrice:   roundCents(startPrice * (1 + pct/100)),
		Steps:      steps,
	}
}

// priceAt returns the interpolated price after the given number of steps.
func (t Trend) priceAt(step int) float64 {
	f := float64(step) / float64(t.Steps)
	return t.StartPrice + (t.EndPrice-t.StartPrice)*f
}

// DeriveTrendStep estimates how far along a trend a price sits. It is a
// fallback for save rows that carry no explicit progress: cent rounding
// makes the estimate exact only while the per-step increment exceeds
// half a cent, so it can be off by up to Steps*0.005/|span| ticks.
func DeriveTrendStep(t Trend, price float64) int {
	span := t.EndPrice - t.StartPrice
	if span == 0 {
		return 0
	}
	step := int(math.Round(float64(t.Steps) * (price - t.StartPrice) / span))
	if step < 0 {
		step = 0
	}
	if step > t.Steps {
		step = t.Steps
	}
	return step
}
