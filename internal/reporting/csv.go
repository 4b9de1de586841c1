package reporting

import (
	"fmt"
	"strings"

	"strategy-lab/internal/domain"
)

// RenderTradesCSV renders a trade list as CSV string.
func RenderTradesCSV(trades []*domain.Trade) string {
	var sb strings.Builder

	// Header
	sb.WriteString("trade_id,run_id,instrument,strategy_id,")
	sb.WriteString("entry_time_ms,entry_price,size,exit_time_ms,exit_price,exit_reason,")
	sb.WriteString("fees,pnl,pnl_pct,outcome_class,hold_duration_ms,regime\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%s,%s,%d,%s,%s,%s,%s,%.6f,%s,%d,%s\n",
			t.TradeID,
			t.RunID,
			t.Instrument,
			t.StrategyID,
			t.EntryTimeMs,
			t.EntryPrice.String(),
			t.Size.String(),
			t.ExitTimeMs,
			t.ExitPrice.String(),
			t.ExitReason,
			t.Fees.String(),
			t.PnL.String(),
			t.PnLPct,
			t.OutcomeClass,
			t.HoldDurationMs,
			t.Regime,
		))
	}

	return sb.String()
}

// RenderWindowsCSV renders walk-forward windows as CSV string.
func RenderWindowsCSV(windows []domain.WalkForwardWindow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("run_id,window_index,instrument,strategy_id,")
	sb.WriteString("train_start_ms,train_end_ms,test_start_ms,test_end_ms,")
	sb.WriteString("params,train_score,test_status,")
	sb.WriteString("test_return_pct,test_sharpe,test_max_drawdown_pct,test_win_rate,test_trades\n")

	// Rows
	for _, w := range windows {
		sb.WriteString(fmt.Sprintf("%s,%d,%s,%s,%d,%d,%d,%d,%q,%.6f,%s,%.6f,%.6f,%.6f,%.6f,%d\n",
			w.RunID,
			w.Index,
			w.Instrument,
			w.StrategyID,
			w.TrainStartMs,
			w.TrainEndMs,
			w.TestStartMs,
			w.TestEndMs,
			FormatParams(w.Params),
			w.TrainScore,
			w.TestStatus,
			w.TestMetrics.TotalReturnPct,
			w.TestMetrics.SharpeRatio,
			w.TestMetrics.MaxDrawdownPct,
			w.TestMetrics.WinRate,
			w.TestMetrics.TotalTrades,
		))
	}

	return sb.String()
}
