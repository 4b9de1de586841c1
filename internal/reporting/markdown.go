package reporting

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// RenderComparisonMarkdown renders a comparison report as Markdown.
func RenderComparisonMarkdown(r *ComparisonReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Strategy Comparison: %s\n\n", r.Instrument))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Strategies: %d | Ranked: %d\n\n", r.StrategyCount, r.RankedCount))
	if r.Best != "" {
		sb.WriteString(fmt.Sprintf("**Best strategy (composite): %s**\n\n", r.Best))
	}

	// Per-strategy metrics
	sb.WriteString("## Strategy Metrics\n\n")
	if len(r.Rows) > 0 {
		sb.WriteString("| Strategy | Status | Return% | Annualized% | Sharpe | Sortino | MaxDD% | WinRate | ProfitFactor | Trades | Fees |\n")
		sb.WriteString("|----------|--------|---------|-------------|--------|---------|--------|---------|--------------|--------|------|\n")
		for _, row := range r.Rows {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.2f | %.2f | %.3f | %.3f | %.2f | %.4f | %s | %d | %.2f |\n",
				row.Strategy, row.Status,
				row.TotalReturnPct, row.AnnualizedReturnPct,
				row.SharpeRatio, row.SortinoRatio, row.MaxDrawdownPct,
				row.WinRate, formatRatio(row.ProfitFactor),
				row.TotalTrades, row.TotalFeesPaid))
		}
	} else {
		sb.WriteString("No strategy metrics available.\n")
	}
	sb.WriteString("\n")

	// Rankings
	sb.WriteString("## Rankings\n\n")
	writeRankingTable(&sb, "By Total Return", "Return%", r.ByReturn)
	writeRankingTable(&sb, "By Sharpe Ratio", "Sharpe", r.BySharpe)
	writeRankingTable(&sb, "By Max Drawdown", "MaxDD%", r.ByDrawdown)
	writeRankingTable(&sb, "Composite", "Score", r.Composite)

	// Failures
	if len(r.Failures) > 0 {
		sb.WriteString("## Failed Strategies\n\n")
		for _, f := range r.Failures {
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", f.Strategy, f.Err))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderStabilityMarkdown renders a walk-forward sweep report as Markdown.
func RenderStabilityMarkdown(r *StabilityReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Walk-Forward Sweep: %s / %s\n\n", r.StrategyID, r.Instrument))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: %s | Objective: %s | Status: %s\n\n",
		r.RunID, r.Objective, r.Status))
	sb.WriteString(fmt.Sprintf("Windows: %d total, %d computed\n\n",
		r.TotalWindows, r.ComputedWindows))

	// Stability
	sb.WriteString("## Stability\n\n")
	if r.ComputedWindows > 0 {
		s := r.Stability
		sb.WriteString(fmt.Sprintf("**Score: %.1f / 100 (%s, %s)**\n\n", s.Score, s.Grade, s.Label))
		sb.WriteString("| Metric | Mean | Stddev |\n")
		sb.WriteString("|--------|------|--------|\n")
		sb.WriteString(fmt.Sprintf("| Test Return %% | %.2f | %.2f |\n", s.MeanReturnPct, s.StdReturnPct))
		sb.WriteString(fmt.Sprintf("| Sharpe | %.3f | %.3f |\n", s.MeanSharpe, s.StdSharpe))
		sb.WriteString(fmt.Sprintf("| Max Drawdown %% | %.2f | %.2f |\n", s.MeanDrawdownPct, s.StdDrawdownPct))
		sb.WriteString(fmt.Sprintf("| Win Rate | %.4f | %.4f |\n", s.MeanWinRate, s.StdWinRate))
	} else {
		sb.WriteString("No window produced a computed test run; no score assigned.\n")
	}
	sb.WriteString("\n")

	// Windows
	sb.WriteString("## Windows\n\n")
	if len(r.Windows) > 0 {
		sb.WriteString("| # | Train Start (ms) | Test Start (ms) | Params | TrainScore | TestStatus | Return% | Sharpe | MaxDD% | Trades |\n")
		sb.WriteString("|---|------------------|-----------------|--------|------------|------------|---------|--------|--------|--------|\n")
		for _, w := range r.Windows {
			sb.WriteString(fmt.Sprintf("| %d | %d | %d | %s | %.4f | %s | %.2f | %.3f | %.2f | %d |\n",
				w.Index, w.TrainStartMs, w.TestStartMs, w.Params,
				w.TrainScore, w.TestStatus,
				w.TestReturnPct, w.TestSharpe, w.TestDrawdownPct, w.TestTrades))
		}
	} else {
		sb.WriteString("No windows produced.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func writeRankingTable(sb *strings.Builder, title, valueHeader string, rows []RankingRow) {
	sb.WriteString(fmt.Sprintf("### %s\n\n", title))
	if len(rows) == 0 {
		sb.WriteString("No ranked strategies.\n\n")
		return
	}
	sb.WriteString(fmt.Sprintf("| Rank | Strategy | %s |\n", valueHeader))
	sb.WriteString("|------|----------|-------|\n")
	for _, row := range rows {
		sb.WriteString(fmt.Sprintf("| %d | %s | %.4f |\n", row.Rank, row.Strategy, row.Value))
	}
	sb.WriteString("\n")
}

// formatRatio renders a ratio that may be +Inf when a run had no losses.
func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.3f", v)
}
