// Package compare runs the simulator once per strategy over one instrument
// and ranks the outcomes. One strategy failing never invalidates the rest.
package compare

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/signal"
	"strategy-lab/internal/sim"
)

// ErrNoStrategies is returned when the input names no strategies and the
// registry is empty.
var ErrNoStrategies = errors.New("no strategies to compare")

// Composite score weights over min-max-normalized metrics.
const (
	compositeReturnWeight   = 0.40
	compositeSharpeWeight   = 0.40
	compositeDrawdownWeight = 0.20
)

// defaultWorkers bounds the comparison pool when the caller does not.
const defaultWorkers = 4

// Input is one comparison request. Strategies defaults to every registered
// strategy. Regimes are optional context for signals and trade records.
type Input struct {
	Instrument string
	Frame      *domain.IndicatorFrame
	Regimes    []domain.RegimeSnapshot
	Strategies []string
	SimConfig  sim.Config
}

// Outcome is one strategy's result within a comparison. Err is the error
// text when the strategy failed; such outcomes are excluded from ranking
// but retained so the report shows what broke.
type Outcome struct {
	Strategy string
	RunID    string
	Status   domain.RunStatus
	Metrics  domain.PerformanceMetrics
	Trades   []*domain.Trade
	Err      string
}

// Ranked reports whether the outcome may participate in rankings.
func (o Outcome) Ranked() bool {
	return o.Err == "" && o.Status == domain.RunOK
}

// Entry is one row of a ranking table.
type Entry struct {
	Strategy string
	Value    float64
}

// Report is the full comparison output. Outcomes keep the input order;
// ranking tables hold only rankable outcomes, best first.
type Report struct {
	Instrument string
	Outcomes   []Outcome

	ByReturn   []Entry // total return, descending
	BySharpe   []Entry // sharpe ratio, descending
	ByDrawdown []Entry // max drawdown, smallest magnitude first
	Composite  []Entry // weighted normalized score, descending

	Best string // winner of the composite ranking, empty when nothing ranked
}

// Comparator fans simulations out over a bounded worker pool.
type Comparator struct {
	registry   *signal.Registry
	vectorizer *signal.Vectorizer
	logger     *zap.Logger
	workers    int
}

// NewComparator creates a comparator over the given registry. A nil logger
// is replaced with a no-op logger; workers < 1 falls back to the default.
func NewComparator(registry *signal.Registry, logger *zap.Logger, workers int) *Comparator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers < 1 {
		workers = defaultWorkers
	}
	return &Comparator{
		registry:   registry,
		vectorizer: signal.NewVectorizer(registry, logger),
		logger:     logger,
		workers:    workers,
	}
}

// Run executes one simulation per strategy and assembles the ranked report.
// Configuration problems fail eagerly before any simulation starts; a
// single strategy failing mid-run is recorded on its outcome instead.
func (c *Comparator) Run(ctx context.Context, in Input) (*Report, error) {
	if err := in.SimConfig.Validate(); err != nil {
		return nil, err
	}

	strategies := in.Strategies
	if len(strategies) == 0 {
		strategies = c.registry.List()
	}
	if len(strategies) == 0 {
		return nil, ErrNoStrategies
	}

	outcomes := make([]Outcome, len(strategies))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, strategyID := range strategies {
		g.Go(func() error {
			outcomes[i] = c.evaluate(ctx, in, strategyID)
			return nil
		})
	}
	// Tasks never return errors; failures live on their outcome.
	_ = g.Wait()

	report := &Report{Instrument: in.Instrument, Outcomes: outcomes}
	rank(report)

	if ctx.Err() != nil {
		return report, ctx.Err()
	}
	return report, nil
}

// evaluate runs one strategy end to end: signals, then simulation. Any
// failure is captured as text so siblings continue. Vote functions are
// caller-supplied code, so a panic here is downgraded to a failed outcome.
func (c *Comparator) evaluate(ctx context.Context, in Input, strategyID string) (out Outcome) {
	out.Strategy = strategyID
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("strategy panicked",
				zap.String("strategy", strategyID),
				zap.String("instrument", in.Instrument),
				zap.Any("panic", r),
			)
			out.Err = fmt.Sprintf("strategy panic: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		out.Err = err.Error()
		return out
	}

	vec, err := c.vectorizer.Vectorize(signal.Input{Frame: in.Frame, Regimes: in.Regimes}, strategyID, nil)
	if err != nil {
		c.logger.Warn("strategy signal generation failed",
			zap.String("strategy", strategyID),
			zap.String("instrument", in.Instrument),
			zap.Error(err),
		)
		out.Err = err.Error()
		return out
	}
	if vec.Status != domain.RunOK {
		out.Status = vec.Status
		return out
	}

	started := time.Now()
	res, err := sim.Run(sim.Input{
		Instrument: in.Instrument,
		StrategyID: strategyID,
		Bars:       in.Frame.Bars,
		Signals:    vec.Signals,
		Regimes:    in.Regimes,
		Params:     vec.Params,
		Config:     in.SimConfig,
	})
	if err != nil {
		c.logger.Warn("strategy simulation failed",
			zap.String("strategy", strategyID),
			zap.String("instrument", in.Instrument),
			zap.Error(err),
		)
		observability.RecordSimulation(strategyID, "error", 0, time.Since(started).Seconds())
		out.Err = err.Error()
		return out
	}
	observability.RecordSimulation(strategyID, string(res.Status), len(res.Trades), time.Since(started).Seconds())

	out.RunID = res.RunID
	out.Status = res.Status
	out.Metrics = res.Metrics
	out.Trades = res.Trades
	return out
}

// rank fills the report's ranking tables and best pick from the rankable
// outcomes.
func rank(report *Report) {
	ranked := make([]Outcome, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		if o.Ranked() {
			ranked = append(ranked, o)
		}
	}
	if len(ranked) == 0 {
		return
	}

	report.ByReturn = rankBy(ranked, func(m domain.PerformanceMetrics) float64 { return m.TotalReturnPct })
	report.BySharpe = rankBy(ranked, func(m domain.PerformanceMetrics) float64 { return m.SharpeRatio })
	report.ByDrawdown = rankBy(ranked, func(m domain.PerformanceMetrics) float64 { return m.MaxDrawdownPct })
	report.Composite = compositeRanking(ranked)
	report.Best = report.Composite[0].Strategy
}

// rankBy sorts descending on the metric; drawdown is non-positive, so
// descending puts the smallest magnitude first there too. Ties break toward
// higher trade count, then name for a stable order.
func rankBy(ranked []Outcome, metric func(domain.PerformanceMetrics) float64) []Entry {
	idx := make([]int, len(ranked))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		va, vb := metric(ranked[idx[a]].Metrics), metric(ranked[idx[b]].Metrics)
		if va != vb {
			return va > vb
		}
		ta, tb := ranked[idx[a]].Metrics.TotalTrades, ranked[idx[b]].Metrics.TotalTrades
		if ta != tb {
			return ta > tb
		}
		return ranked[idx[a]].Strategy < ranked[idx[b]].Strategy
	})

	entries := make([]Entry, len(idx))
	for i, j := range idx {
		entries[i] = Entry{Strategy: ranked[j].Strategy, Value: metric(ranked[j].Metrics)}
	}
	return entries
}

// compositeRanking scores each outcome as a weighted sum of min-max
// normalized total return, sharpe and drawdown. Drawdown is normalized on
// its signed value, so less drawdown scores higher.
func compositeRanking(ranked []Outcome) []Entry {
	returns := make([]float64, len(ranked))
	sharpes := make([]float64, len(ranked))
	drawdowns := make([]float64, len(ranked))
	for i, o := range ranked {
		returns[i] = o.Metrics.TotalReturnPct
		sharpes[i] = o.Metrics.SharpeRatio
		drawdowns[i] = o.Metrics.MaxDrawdownPct
	}

	normReturns := normalize(returns)
	normSharpes := normalize(sharpes)
	normDrawdowns := normalize(drawdowns)

	entries := make([]Entry, len(ranked))
	for i, o := range ranked {
		score := compositeReturnWeight*normReturns[i] +
			compositeSharpeWeight*normSharpes[i] +
			compositeDrawdownWeight*normDrawdowns[i]
		entries[i] = Entry{Strategy: o.Strategy, Value: score}
	}

	byStrategy := make(map[string]int, len(ranked))
	for i, o := range ranked {
		byStrategy[o.Strategy] = i
	}
	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].Value != entries[b].Value {
			return entries[a].Value > entries[b].Value
		}
		ta := ranked[byStrategy[entries[a].Strategy]].Metrics.TotalTrades
		tb := ranked[byStrategy[entries[b].Strategy]].Metrics.TotalTrades
		if ta != tb {
			return ta > tb
		}
		return entries[a].Strategy < entries[b].Strategy
	})

	return entries
}

// normalize min-max scales values into [0,1]. A zero span maps everything
// to the neutral 0.5.
func normalize(values []float64) []float64 {
	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make([]float64, len(values))
	span := max - min
	for i, v := range values {
		if span == 0 {
			out[i] = 0.5
			continue
		}
		out[i] = (v - min) / span
	}
	return out
}
