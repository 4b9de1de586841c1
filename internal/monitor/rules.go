package monitor

import (
	"fmt"

	"strategy-lab/internal/domain"
)

// cycleState is the per-cycle input to the alert rules: the key's sample
// history (newest last, current cycle included) and the global regime
// events the key has not seen yet.
type cycleState struct {
	history      []Sample
	regimeEvents []domain.RegimeChange
}

// ruleFunc evaluates one alert condition. Rules are independent: each
// sees the same cycle state and any number of them may fire.
type ruleFunc func(cfg Config, c cycleState) []domain.Alert

// ruleTable registers every alert rule; the cycle evaluates each row in
// order. The monitor stamps ID, timestamp and key onto whatever a rule
// returns.
var ruleTable = []struct {
	name string
	eval ruleFunc
}{
	{domain.AlertPerformanceDegradation, evalPerformanceDegradation},
	{domain.AlertSharpeDegradation, evalSharpeDegradation},
	{domain.AlertDrawdownIncrease, evalDrawdownIncrease},
	{domain.AlertRegimeChange, evalRegimeImpact},
}

// evalPerformanceDegradation compares the recent mean return with the
// baseline mean immediately preceding it. The drop escalates to critical
// at twice the threshold.
func evalPerformanceDegradation(cfg Config, c cycleState) []domain.Alert {
	recent, baseline := splitWindows(c.history, cfg.RecentSamples, cfg.BaselineSamples)
	if recent == nil {
		return nil
	}
	recentMean := meanOf(recent, func(s Sample) float64 { return s.ReturnPct })
	baselineMean := meanOf(baseline, func(s Sample) float64 { return s.ReturnPct })
	drop := recentMean - baselineMean
	if drop > cfg.ReturnDropThreshold {
		return nil
	}

	severity := domain.SeverityWarning
	recommendation := "reduce position size until returns recover"
	if drop <= 2*cfg.ReturnDropThreshold {
		severity = domain.SeverityCritical
		recommendation = "pause the strategy and review recent trades"
	}
	return []domain.Alert{{
		Type:     domain.AlertPerformanceDegradation,
		Severity: severity,
		Message:  fmt.Sprintf("mean return fell %.1f points below baseline", -drop),
		Metrics: map[string]float64{
			"recent_mean":   recentMean,
			"baseline_mean": baselineMean,
			"drop":          drop,
		},
		Recommendations: []string{recommendation},
	}}
}

// evalSharpeDegradation mirrors the return rule over the Sharpe ratio.
func evalSharpeDegradation(cfg Config, c cycleState) []domain.Alert {
	recent, baseline := splitWindows(c.history, cfg.RecentSamples, cfg.BaselineSamples)
	if recent == nil {
		return nil
	}
	recentMean := meanOf(recent, func(s Sample) float64 { return s.Sharpe })
	baselineMean := meanOf(baseline, func(s Sample) float64 { return s.Sharpe })
	drop := recentMean - baselineMean
	if drop > cfg.SharpeDropThreshold {
		return nil
	}

	severity := domain.SeverityWarning
	recommendation := "review signal quality for the pair"
	if drop <= 2*cfg.SharpeDropThreshold {
		severity = domain.SeverityCritical
		recommendation = "pause the strategy pending a parameter re-fit"
	}
	return []domain.Alert{{
		Type:     domain.AlertSharpeDegradation,
		Severity: severity,
		Message:  fmt.Sprintf("mean Sharpe fell %.2f below baseline", -drop),
		Metrics: map[string]float64{
			"recent_mean":   recentMean,
			"baseline_mean": baselineMean,
			"drop":          drop,
		},
		Recommendations: []string{recommendation},
	}}
}

// evalDrawdownIncrease fires when the latest drawdown is deeper than the
// previous observation and beyond the warning depth. Severity escalates
// with depth; past the hard ceiling it is an emergency.
func evalDrawdownIncrease(cfg Config, c cycleState) []domain.Alert {
	n := len(c.history)
	if n == 0 {
		return nil
	}
	current := c.history[n-1].DrawdownPct
	previous := 0.0
	if n > 1 {
		previous = c.history[n-2].DrawdownPct
	}
	if current >= previous || current > cfg.DrawdownWarningPct {
		return nil
	}

	severity := domain.SeverityWarning
	recommendation := "reduce position size"
	switch {
	case current < cfg.DrawdownCeilingPct:
		severity = domain.SeverityEmergency
		recommendation = "halt trading for this pair immediately"
	case current <= cfg.DrawdownCriticalPct:
		severity = domain.SeverityCritical
		recommendation = "pause the strategy"
	}
	return []domain.Alert{{
		Type:     domain.AlertDrawdownIncrease,
		Severity: severity,
		Message:  fmt.Sprintf("drawdown deepened to %.1f%%", current),
		Metrics: map[string]float64{
			"drawdown": current,
			"previous": previous,
		},
		Recommendations: []string{recommendation},
	}}
}

// evalRegimeImpact raises one strategy-agnostic warning per unseen
// high-agreement regime transition.
func evalRegimeImpact(_ Config, c cycleState) []domain.Alert {
	if len(c.regimeEvents) == 0 {
		return nil
	}
	alerts := make([]domain.Alert, 0, len(c.regimeEvents))
	for _, ev := range c.regimeEvents {
		alerts = append(alerts, domain.Alert{
			Type:     domain.AlertRegimeChange,
			Severity: domain.SeverityWarning,
			Message:  fmt.Sprintf("market regime changed from %s to %s", ev.From, ev.To),
			Metrics:  map[string]float64{"agreement": ev.Agreement},
			Recommendations: []string{
				"re-evaluate strategy fit for the new regime",
			},
		})
	}
	return alerts
}

// splitWindows returns the trailing recent window and the baseline window
// right before it, or nils when history is too short for both.
func splitWindows(history []Sample, recentN, baselineN int) (recent, baseline []Sample) {
	if len(history) < recentN+baselineN {
		return nil, nil
	}
	cut := len(history) - recentN
	return history[cut:], history[cut-baselineN : cut]
}

func meanOf(samples []Sample, f func(Sample) float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += f(s)
	}
	return sum / float64(len(samples))
}
