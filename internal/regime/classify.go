package regime

import (
	"math"

	"strategy-lab/internal/domain"
)

// WindowBars is the number of bars a classification reads and the sample
// count of each change-detection window.
const WindowBars = 24

// Classification thresholds. Volatility thresholds are annualized percent;
// slope is percent per bar; the short-horizon return is measured over
// shortHorizonBars.
const (
	highVolPct       = 90.0
	lowVolPct        = 35.0
	trendSlopePct    = 0.08
	shortReturnPct   = 1.0
	volumeSurgeRatio = 1.5
	volumeQuietRatio = 1.1
	shortHorizonBars = 6
)

// candidateOrder fixes the tie-break priority: when two regimes score the
// same, the earlier entry wins.
var candidateOrder = []string{
	domain.RegimeTrendingUp,
	domain.RegimeTrendingDown,
	domain.RegimeHighVolatility,
	domain.RegimeLowVolatility,
	domain.RegimeRanging,
}

// features holds the characteristic metrics computed over one window.
type features struct {
	annualizedVol float64 // percent
	trendSlope    float64 // percent per bar
	volumeRatio   float64 // recent mean volume / window mean volume
	shortReturn   float64 // percent over shortHorizonBars
}

// Classify scores the last WindowBars of the series against each candidate
// regime and returns the winner with confidence = score / max possible.
// Fewer than WindowBars bars yields the insufficient-data category with
// confidence 0; callers must not act on it.
func Classify(instrument string, bars []domain.PriceBar, periodsPerYear float64) domain.RegimeSnapshot {
	if len(bars) < WindowBars {
		ts := int64(0)
		if len(bars) > 0 {
			ts = bars[len(bars)-1].TimestampMs
		}
		return domain.RegimeSnapshot{
			TimestampMs: ts,
			Instrument:  instrument,
			Regime:      domain.RegimeInsufficientData,
			Confidence:  0,
		}
	}

	window := bars[len(bars)-WindowBars:]
	f := computeFeatures(window, periodsPerYear)

	best := domain.RegimeInsufficientData
	bestScore, bestMax := 0.0, 1.0
	for _, regime := range candidateOrder {
		score, max := scoreRegime(regime, f)
		if score > bestScore {
			best, bestScore, bestMax = regime, score, max
		}
	}
	if bestScore == 0 {
		// Nothing scored; a directionless window defaults to ranging with
		// minimal confidence.
		best, bestScore, bestMax = domain.RegimeRanging, 1, 4
	}

	return domain.RegimeSnapshot{
		TimestampMs:          window[len(window)-1].TimestampMs,
		Instrument:           instrument,
		Regime:               best,
		Confidence:           bestScore / bestMax,
		AnnualizedVolatility: f.annualizedVol,
		TrendSlope:           f.trendSlope,
		VolumeRatio:          f.volumeRatio,
		ShortHorizonReturn:   f.shortReturn,
	}
}

// scoreRegime awards threshold-based points to one candidate regime and
// returns the earned and maximum possible points.
func scoreRegime(regime string, f features) (score, max float64) {
	switch regime {
	case domain.RegimeTrendingUp:
		max = 4
		if f.trendSlope > trendSlopePct {
			score += 2
		}
		if f.shortReturn > shortReturnPct {
			score++
		}
		if f.volumeRatio > volumeQuietRatio {
			score++
		}
	case domain.RegimeTrendingDown:
		max = 4
		if f.trendSlope < -trendSlopePct {
			score += 2
		}
		if f.shortReturn < -shortReturnPct {
			score++
		}
		if f.volumeRatio > volumeQuietRatio {
			score++
		}
	case domain.RegimeHighVolatility:
		max = 5
		if f.annualizedVol > highVolPct {
			score += 3
		}
		if f.volumeRatio > volumeSurgeRatio {
			score++
		}
		if math.Abs(f.shortReturn) > 2*shortReturnPct {
			score++
		}
	case domain.RegimeLowVolatility:
		max = 4
		if f.annualizedVol < lowVolPct {
			score += 2
		}
		if f.volumeRatio < volumeQuietRatio {
			score++
		}
		if math.Abs(f.trendSlope) <= trendSlopePct {
			score++
		}
	case domain.RegimeRanging:
		max = 4
		if math.Abs(f.trendSlope) <= trendSlopePct {
			score += 2
		}
		if math.Abs(f.shortReturn) <= shortReturnPct {
			score++
		}
		if f.annualizedVol <= highVolPct {
			score++
		}
	}
	return score, max
}

// computeFeatures derives the rolling statistics behind a classification.
func computeFeatures(window []domain.PriceBar, periodsPerYear float64) features {
	returns := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		prev := window[i-1].Close
		if prev == 0 {
			continue
		}
		returns = append(returns, (window[i].Close-prev)/prev)
	}

	var f features
	f.annualizedVol = stddev(returns) * math.Sqrt(periodsPerYear) * 100
	f.trendSlope = normalizedSlope(window) * 100
	f.volumeRatio = volumeRatio(window)

	last := window[len(window)-1].Close
	refIdx := len(window) - 1 - shortHorizonBars
	if ref := window[refIdx].Close; ref != 0 {
		f.shortReturn = (last/ref - 1) * 100
	}
	return f
}

// normalizedSlope fits closes against bar index by least squares and
// divides the per-bar slope by the mean close, yielding a scale-free
// fraction per bar.
func normalizedSlope(window []domain.PriceBar) float64 {
	n := float64(len(window))
	var sumX, sumY, sumXY, sumXX float64
	for i, bar := range window {
		x := float64(i)
		sumX += x
		sumY += bar.Close
		sumXY += x * bar.Close
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (n*sumXY - sumX*sumY) / denom
	mean := sumY / n
	if mean == 0 {
		return 0
	}
	return slope / mean
}

// volumeRatio compares recent volume to the window mean.
func volumeRatio(window []domain.PriceBar) float64 {
	var total float64
	for _, bar := range window {
		total += bar.Volume
	}
	mean := total / float64(len(window))
	if mean == 0 {
		return 0
	}

	recent := window[len(window)-shortHorizonBars:]
	var recentTotal float64
	for _, bar := range recent {
		recentTotal += bar.Volume
	}
	return recentTotal / float64(len(recent)) / mean
}

// stddev computes the sample standard deviation (n-1 denominator).
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}
