// Package reporting turns comparison and walk-forward results into
// renderable views and serializes them as Markdown or CSV. It never
// recomputes metrics; it only reshapes what the evaluators produced.
package reporting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"strategy-lab/internal/compare"
	"strategy-lab/internal/walkforward"
)

// Generator builds report views.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// BuildComparison reshapes a comparison report into its renderable view.
// Rows follow the composite ranking; outcomes that could not be ranked
// come after, in input order.
func (g *Generator) BuildComparison(report *compare.Report) *ComparisonReport {
	out := &ComparisonReport{
		GeneratedAt:   g.now(),
		Instrument:    report.Instrument,
		StrategyCount: len(report.Outcomes),
		Best:          report.Best,
		ByReturn:      rankingRows(report.ByReturn),
		BySharpe:      rankingRows(report.BySharpe),
		ByDrawdown:    rankingRows(report.ByDrawdown),
		Composite:     rankingRows(report.Composite),
	}

	byStrategy := make(map[string]compare.Outcome, len(report.Outcomes))
	for _, o := range report.Outcomes {
		byStrategy[o.Strategy] = o
		if o.Ranked() {
			out.RankedCount++
		}
		if o.Err != "" {
			out.Failures = append(out.Failures, FailureRow{Strategy: o.Strategy, Err: o.Err})
		}
	}

	// Ranked rows first, in composite order.
	inRows := make(map[string]struct{}, len(report.Outcomes))
	for _, e := range report.Composite {
		out.Rows = append(out.Rows, comparisonRow(byStrategy[e.Strategy]))
		inRows[e.Strategy] = struct{}{}
	}
	for _, o := range report.Outcomes {
		if _, ok := inRows[o.Strategy]; !ok {
			out.Rows = append(out.Rows, comparisonRow(o))
		}
	}

	return out
}

// BuildStability reshapes a walk-forward result into its renderable view.
func (g *Generator) BuildStability(res *walkforward.Result) *StabilityReport {
	out := &StabilityReport{
		GeneratedAt:     g.now(),
		RunID:           res.RunID,
		Instrument:      res.Instrument,
		StrategyID:      res.StrategyID,
		Objective:       res.Objective,
		Status:          string(res.Status),
		TotalWindows:    len(res.Windows),
		ComputedWindows: res.Stability.WindowCount,
		Stability:       res.Stability,
		Windows:         make([]WindowRow, 0, len(res.Windows)),
	}

	for _, w := range res.Windows {
		out.Windows = append(out.Windows, WindowRow{
			Index:           w.Index,
			TrainStartMs:    w.TrainStartMs,
			TrainEndMs:      w.TrainEndMs,
			TestStartMs:     w.TestStartMs,
			TestEndMs:       w.TestEndMs,
			Params:          FormatParams(w.Params),
			TrainScore:      w.TrainScore,
			TestStatus:      string(w.TestStatus),
			TestReturnPct:   w.TestMetrics.TotalReturnPct,
			TestSharpe:      w.TestMetrics.SharpeRatio,
			TestDrawdownPct: w.TestMetrics.MaxDrawdownPct,
			TestWinRate:     w.TestMetrics.WinRate,
			TestTrades:      w.TestMetrics.TotalTrades,
		})
	}

	return out
}

func comparisonRow(o compare.Outcome) ComparisonRow {
	return ComparisonRow{
		Strategy:            o.Strategy,
		RunID:               o.RunID,
		Status:              string(o.Status),
		TotalReturnPct:      o.Metrics.TotalReturnPct,
		AnnualizedReturnPct: o.Metrics.AnnualizedReturnPct,
		SharpeRatio:         o.Metrics.SharpeRatio,
		SortinoRatio:        o.Metrics.SortinoRatio,
		MaxDrawdownPct:      o.Metrics.MaxDrawdownPct,
		WinRate:             o.Metrics.WinRate,
		ProfitFactor:        o.Metrics.ProfitFactor,
		TotalTrades:         o.Metrics.TotalTrades,
		FinalEquity:         o.Metrics.FinalEquity,
		TotalFeesPaid:       o.Metrics.TotalFeesPaid,
	}
}

func rankingRows(entries []compare.Entry) []RankingRow {
	rows := make([]RankingRow, len(entries))
	for i, e := range entries {
		rows[i] = RankingRow{Rank: i + 1, Strategy: e.Strategy, Value: e.Value}
	}
	return rows
}

// FormatParams renders a parameter combination as sorted "name=value"
// pairs joined with spaces, so two identical combinations always render
// identically.
func FormatParams(params map[string]float64) string {
	if len(params) == 0 {
		return ""
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%g", name, params[name])
	}
	return strings.Join(parts, " ")
}
