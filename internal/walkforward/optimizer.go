// Package walkforward slides adjacent train/test windows over an indicator
// frame, grid-searches strategy parameters on each train slice, and
// validates the winning combination on the immediately following test
// slice. Aggregate test metrics become a 0-100 stability score.
package walkforward

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/series"
	"strategy-lab/internal/signal"
	"strategy-lab/internal/sim"
)

// Sweep configuration errors, all rejected before any simulation starts.
var (
	ErrNonPositiveSpan  = errors.New("train, test and step spans must be positive")
	ErrUnknownObjective = errors.New("unknown objective")
	ErrEmptyGrid        = errors.New("parameter grid is empty")
)

const (
	dayMs = int64(24 * 60 * 60 * 1000)

	// defaultWorkers bounds grid-search parallelism within a window.
	defaultWorkers = 4
)

// Config controls one sweep. Spans are calendar days converted to
// millisecond offsets over the bar timestamps.
type Config struct {
	TrainDays int    // length of each train span
	TestDays  int    // length of each test span
	StepDays  int    // how far the window advances per step
	Objective string // objective name, empty selects the default
	Workers   int    // grid-search parallelism, <1 selects the default
}

// StepFunc is invoked after each completed window, typically to persist it.
// A failing adapter is logged and never discards computed windows.
type StepFunc func(ctx context.Context, w domain.WalkForwardWindow) error

// Input is one sweep request.
type Input struct {
	Instrument string
	StrategyID string
	Frame      *domain.IndicatorFrame
	Regimes    []domain.RegimeSnapshot
	Config     Config
	Sim        sim.Config
	Step       StepFunc // optional
}

// Result holds the sweep output. Status is RunInsufficientData when no
// window produced a computed test run; Stability is only meaningful when
// Status is RunOK.
type Result struct {
	RunID      string
	Instrument string
	StrategyID string
	Objective  string
	Status     domain.RunStatus
	Windows    []domain.WalkForwardWindow
	Stability  Stability
}

// Optimizer runs walk-forward sweeps. It holds no per-sweep state.
type Optimizer struct {
	registry   *signal.Registry
	vectorizer *signal.Vectorizer
	logger     *zap.Logger
}

// New creates an optimizer over the given registry. A nil logger is
// replaced with a no-op logger.
func New(registry *signal.Registry, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		registry:   registry,
		vectorizer: signal.NewVectorizer(registry, logger),
		logger:     logger,
	}
}

// Run executes one sweep.
// Steps:
//  1. Validate config, objective, simulation economics
//  2. Expand the strategy's parameter grid
//  3. Build adjacent half-open train/test windows over the bar timestamps
//  4. Per window: grid-search train, pick best by objective, evaluate once
//     on test, hand the window to the step adapter
//  5. Aggregate test metrics into the stability score
//
// Cancellation is honored at window boundaries only; already-computed
// windows are returned together with the context error.
func (o *Optimizer) Run(ctx context.Context, in Input) (*Result, error) {
	cfg := in.Config
	if cfg.TrainDays <= 0 || cfg.TestDays <= 0 || cfg.StepDays <= 0 {
		return nil, fmt.Errorf("%w: train=%d test=%d step=%d",
			ErrNonPositiveSpan, cfg.TrainDays, cfg.TestDays, cfg.StepDays)
	}
	objectiveName, objective, err := lookupObjective(cfg.Objective)
	if err != nil {
		return nil, err
	}
	if err := in.Sim.Validate(); err != nil {
		return nil, err
	}
	desc, err := o.registry.Get(in.StrategyID)
	if err != nil {
		return nil, err
	}
	grid, err := expandGrid(desc.Params)
	if err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = defaultWorkers
	}

	res := &Result{
		Instrument: in.Instrument,
		StrategyID: in.StrategyID,
		Objective:  objectiveName,
		Status:     domain.RunInsufficientData,
	}

	frame := in.Frame
	if frame == nil || frame.Len() == 0 {
		res.RunID = sweepRunID(in, objectiveName, 0, 0)
		return res, nil
	}

	firstMs := frame.Bars[0].TimestampMs
	lastMs := frame.Bars[frame.Len()-1].TimestampMs
	res.RunID = sweepRunID(in, objectiveName, firstMs, lastMs)

	o.logger.Info("walk-forward sweep starting",
		zap.String("strategy", in.StrategyID),
		zap.String("instrument", in.Instrument),
		zap.String("objective", objectiveName),
		zap.Int("grid_size", len(grid)),
	)

	index := 0
	for trainStartMs := firstMs; ; trainStartMs += int64(cfg.StepDays) * dayMs {
		trainEndMs := trainStartMs + int64(cfg.TrainDays)*dayMs
		testEndMs := trainEndMs + int64(cfg.TestDays)*dayMs
		if testEndMs > lastMs+1 {
			break
		}

		if err := ctx.Err(); err != nil {
			o.finish(res)
			return res, err
		}

		w := o.runWindow(ctx, in, grid, objective, workers, windowSpan{
			index:      index,
			trainStart: trainStartMs,
			trainEnd:   trainEndMs,
			testEnd:    testEndMs,
		})
		if w == nil {
			index++
			continue
		}
		w.RunID = res.RunID
		res.Windows = append(res.Windows, *w)
		index++

		if in.Step != nil {
			if err := in.Step(ctx, *w); err != nil {
				o.logger.Warn("window persistence failed, keeping in-memory result",
					zap.String("run_id", idhash.Short(res.RunID)),
					zap.Int("window", w.Index),
					zap.Error(err),
				)
			}
		}
	}

	o.finish(res)
	return res, nil
}

// windowSpan is one step's millisecond boundaries.
type windowSpan struct {
	index      int
	trainStart int64
	trainEnd   int64 // exclusive; test starts here
	testEnd    int64 // exclusive
}

// runWindow grid-searches the train slice and evaluates the winner on the
// test slice. Returns nil when a data gap leaves either slice empty.
func (o *Optimizer) runWindow(ctx context.Context, in Input, grid []signal.Params, objective Objective, workers int, span windowSpan) *domain.WalkForwardWindow {
	trainFrame := series.Slice(in.Frame, span.trainStart, span.trainEnd)
	testFrame := series.Slice(in.Frame, span.trainEnd, span.testEnd)
	if trainFrame.Len() == 0 || testFrame.Len() == 0 {
		o.logger.Warn("skipping window over data gap",
			zap.Int("window", span.index),
			zap.Int64("train_start_ms", span.trainStart),
			zap.Int("train_bars", trainFrame.Len()),
			zap.Int("test_bars", testFrame.Len()),
		)
		return nil
	}

	w := &domain.WalkForwardWindow{
		Index:        span.index,
		Instrument:   in.Instrument,
		StrategyID:   in.StrategyID,
		TrainStartMs: span.trainStart,
		TrainEndMs:   span.trainEnd,
		TestStartMs:  span.trainEnd,
		TestEndMs:    span.testEnd,
		TestStatus:   domain.RunInsufficientData,
	}

	// Grid search on the train slice. Scores are collected per slot so the
	// sequential argmax keeps grid-order tie-breaking deterministic under
	// concurrency. A window in flight always completes, even on cancel.
	scores := make([]float64, len(grid))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, combo := range grid {
		g.Go(func() error {
			scores[i] = o.trainScore(in, trainFrame, combo, objective)
			return nil
		})
	}
	_ = g.Wait()

	best := -1
	for i, s := range scores {
		if math.IsInf(s, -1) {
			continue
		}
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	if best < 0 {
		// Every combination lacked usable train data.
		return w
	}

	w.Params = grid[best]
	w.TrainScore = scores[best]

	status, metrics := o.testEvaluate(in, testFrame, grid[best])
	w.TestStatus = status
	w.TestMetrics = metrics
	return w
}

// trainScore runs one parameter combination on the train slice and scores
// it. Unusable runs score -Inf so they are never selected.
func (o *Optimizer) trainScore(in Input, trainFrame *domain.IndicatorFrame, combo signal.Params, objective Objective) float64 {
	vec, err := o.vectorizer.Vectorize(signal.Input{Frame: trainFrame, Regimes: in.Regimes}, in.StrategyID, combo)
	if err != nil {
		o.logger.Warn("train vectorize failed", zap.String("strategy", in.StrategyID), zap.Error(err))
		return math.Inf(-1)
	}
	if vec.Status != domain.RunOK {
		return math.Inf(-1)
	}

	res, err := sim.Run(sim.Input{
		Instrument: in.Instrument,
		StrategyID: in.StrategyID,
		Bars:       trainFrame.Bars,
		Signals:    vec.Signals,
		Regimes:    in.Regimes,
		Params:     combo,
		Config:     in.Sim,
	})
	if err != nil {
		o.logger.Warn("train simulation failed", zap.String("strategy", in.StrategyID), zap.Error(err))
		return math.Inf(-1)
	}
	if res.Status != domain.RunOK {
		return math.Inf(-1)
	}
	return objective(res.Metrics)
}

// testEvaluate runs the chosen combination once on the test slice.
func (o *Optimizer) testEvaluate(in Input, testFrame *domain.IndicatorFrame, combo signal.Params) (domain.RunStatus, domain.PerformanceMetrics) {
	vec, err := o.vectorizer.Vectorize(signal.Input{Frame: testFrame, Regimes: in.Regimes}, in.StrategyID, combo)
	if err != nil {
		o.logger.Warn("test vectorize failed", zap.String("strategy", in.StrategyID), zap.Error(err))
		return domain.RunInsufficientData, domain.PerformanceMetrics{}
	}
	if vec.Status != domain.RunOK {
		return vec.Status, domain.PerformanceMetrics{}
	}

	res, err := sim.Run(sim.Input{
		Instrument: in.Instrument,
		StrategyID: in.StrategyID,
		Bars:       testFrame.Bars,
		Signals:    vec.Signals,
		Regimes:    in.Regimes,
		Params:     combo,
		Config:     in.Sim,
	})
	if err != nil {
		o.logger.Warn("test simulation failed", zap.String("strategy", in.StrategyID), zap.Error(err))
		return domain.RunInsufficientData, domain.PerformanceMetrics{}
	}
	return res.Status, res.Metrics
}

// finish computes the aggregate stability block and final status.
func (o *Optimizer) finish(res *Result) {
	res.Stability = computeStability(res.Windows)
	if res.Stability.WindowCount > 0 {
		res.Status = domain.RunOK
	}

	o.logger.Info("walk-forward sweep finished",
		zap.String("run_id", idhash.Short(res.RunID)),
		zap.String("status", string(res.Status)),
		zap.Int("windows", len(res.Windows)),
		zap.Int("computed", res.Stability.WindowCount),
		zap.Float64("score", res.Stability.Score),
		zap.String("grade", res.Stability.Grade),
	)
}

// sweepRunID derives the deterministic sweep identity.
func sweepRunID(in Input, objectiveName string, firstMs, lastMs int64) string {
	fp := fmt.Sprintf("wf;train=%d;test=%d;step=%d;obj=%s;cap=%s;fee=%g;slip=%g;frac=%g;ppy=%g",
		in.Config.TrainDays,
		in.Config.TestDays,
		in.Config.StepDays,
		objectiveName,
		in.Sim.InitialCapital.String(),
		in.Sim.Frictions.FeeRate,
		in.Sim.Frictions.SlippageRate,
		in.Sim.Frictions.MaxPositionFraction,
		in.Sim.PeriodsPerYear,
	)
	return idhash.ComputeRunID(in.StrategyID, in.Instrument, firstMs, lastMs, fp)
}

// expandGrid enumerates every combination of the parameter schema. A
// strategy without parameters yields exactly one empty combination.
func expandGrid(specs []signal.ParamSpec) ([]signal.Params, error) {
	combos := []signal.Params{{}}
	for _, spec := range specs {
		values := gridValues(spec)
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: parameter %q yields no grid values", ErrEmptyGrid, spec.Name)
		}
		next := make([]signal.Params, 0, len(combos)*len(values))
		for _, combo := range combos {
			for _, v := range values {
				merged := make(signal.Params, len(combo)+1)
				for k, val := range combo {
					merged[k] = val
				}
				merged[spec.Name] = v
				next = append(next, merged)
			}
		}
		combos = next
	}
	return combos, nil
}

// gridValues expands one spec into Min, Min+Step, ... capped at Max. Values
// are index-scaled rather than accumulated, and the last one is clamped, so
// float drift can neither skip Max nor step past it.
func gridValues(spec signal.ParamSpec) []float64 {
	if spec.Step <= 0 || spec.Max < spec.Min {
		return nil
	}
	n := int(math.Floor((spec.Max-spec.Min)/spec.Step+1e-9)) + 1
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		v := spec.Min + float64(i)*spec.Step
		if v > spec.Max {
			v = spec.Max
		}
		out = append(out, v)
	}
	return out
}
