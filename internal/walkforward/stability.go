package walkforward

import (
	"math"

	"strategy-lab/internal/domain"
)

// Stability aggregates test-slice metrics across all computed windows.
// WindowCount counts windows whose test run actually computed; the score
// is 0-100, higher meaning the strategy held up out of sample.
type Stability struct {
	WindowCount int // windows with a computed test run

	MeanReturnPct   float64
	StdReturnPct    float64
	MeanSharpe      float64
	StdSharpe       float64
	MeanDrawdownPct float64
	StdDrawdownPct  float64
	MeanWinRate     float64
	StdWinRate      float64

	Score float64
	Grade string
	Label string
}

// Fixed rubric weights.
const (
	returnWeight   = 0.30
	sharpeWeight   = 0.40
	drawdownWeight = 0.20
	winRateWeight  = 0.10
)

// Component ramp bounds. Each component maps linearly onto 0-100 between
// its floor and ceiling and is clamped outside them.
const (
	returnFloorPct   = -5.0 // mean test return at or below this scores 0
	returnCeilingPct = 5.0  // at or above this scores 100
	sharpeFloor      = -1.0
	sharpeCeiling    = 3.0
	drawdownFloorPct = -30.0 // mean drawdown at or past this scores 0
)

// grades maps a minimum score to its letter and qualitative label.
var grades = []struct {
	min   float64
	grade string
	label string
}{
	{95, "A+", "excellent"},
	{90, "A", "excellent"},
	{85, "B+", "good"},
	{80, "B", "good"},
	{70, "C+", "fair"},
	{60, "C", "fair"},
	{50, "D", "weak"},
	{0, "F", "poor"},
}

// computeStability aggregates windows whose test run computed. Zero such
// windows leaves the zero value: no grade is assigned, because missing data
// is not a failing strategy.
func computeStability(windows []domain.WalkForwardWindow) Stability {
	returns := make([]float64, 0, len(windows))
	sharpes := make([]float64, 0, len(windows))
	drawdowns := make([]float64, 0, len(windows))
	winRates := make([]float64, 0, len(windows))

	for _, w := range windows {
		if w.TestStatus != domain.RunOK {
			continue
		}
		returns = append(returns, w.TestMetrics.TotalReturnPct)
		sharpes = append(sharpes, w.TestMetrics.SharpeRatio)
		drawdowns = append(drawdowns, w.TestMetrics.MaxDrawdownPct)
		winRates = append(winRates, w.TestMetrics.WinRate)
	}

	s := Stability{WindowCount: len(returns)}
	if s.WindowCount == 0 {
		return s
	}

	s.MeanReturnPct, s.StdReturnPct = meanStd(returns)
	s.MeanSharpe, s.StdSharpe = meanStd(sharpes)
	s.MeanDrawdownPct, s.StdDrawdownPct = meanStd(drawdowns)
	s.MeanWinRate, s.StdWinRate = meanStd(winRates)

	s.Score = returnWeight*ramp(s.MeanReturnPct, returnFloorPct, returnCeilingPct) +
		sharpeWeight*ramp(s.MeanSharpe, sharpeFloor, sharpeCeiling) +
		drawdownWeight*ramp(s.MeanDrawdownPct, drawdownFloorPct, 0) +
		winRateWeight*(clamp01(s.MeanWinRate)*100)

	for _, g := range grades {
		if s.Score >= g.min {
			s.Grade = g.grade
			s.Label = g.label
			break
		}
	}

	return s
}

// ramp maps v linearly onto 0-100 between floor and ceiling, clamped.
func ramp(v, floor, ceiling float64) float64 {
	return clamp01((v-floor)/(ceiling-floor)) * 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// meanStd computes the mean and sample standard deviation (n-1).
func meanStd(values []float64) (float64, float64) {
	n := len(values)
	if n == 0 {
		return 0, 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	if n < 2 {
		return mean, 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return mean, math.Sqrt(sumSq / float64(n-1))
}
