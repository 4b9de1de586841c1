package signal

import (
	"go.uber.org/zap"

	"strategy-lab/internal/domain"
)

// Input carries the series a vectorize run reads. Regimes are optional;
// when present they must be time-ordered and are matched to bars with
// at-or-before semantics.
type Input struct {
	Frame   *domain.IndicatorFrame
	Regimes []domain.RegimeSnapshot
}

// Result is the outcome of one vectorize run. Signals are aligned 1:1 with
// the input bars; an insufficient-data run still yields hold signals of the
// full length so downstream alignment never breaks.
type Result struct {
	StrategyID string
	Status     domain.RunStatus
	Params     Params          // resolved effective parameters
	Signals    []domain.Signal // one per input bar

	MissingColumns       []string // indicator columns the frame lacked
	DataQualityConflicts int      // bars where buy and sell both fired
}

// Vectorizer turns indicator frames into signal series using the strategy
// capability table. It holds no per-run state; runs are pure functions of
// their input.
type Vectorizer struct {
	registry *Registry
	logger   *zap.Logger
}

// NewVectorizer creates a vectorizer over the given registry. A nil logger
// is replaced with a no-op logger.
func NewVectorizer(registry *Registry, logger *zap.Logger) *Vectorizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Vectorizer{registry: registry, logger: logger}
}

// Vectorize produces the signal series for one strategy over one frame.
// Unknown strategies and invalid parameters return an error before any bar
// is evaluated. Short or malformed input is not an error: the result status
// is RunInsufficientData and every signal is a hold.
func (v *Vectorizer) Vectorize(in Input, strategyID string, overrides Params) (*Result, error) {
	desc, err := v.registry.Get(strategyID)
	if err != nil {
		return nil, err
	}
	params, err := desc.ResolveParams(overrides)
	if err != nil {
		return nil, err
	}

	res := &Result{
		StrategyID: strategyID,
		Status:     domain.RunOK,
		Params:     params,
	}

	frame := in.Frame
	if frame == nil || frame.Len() == 0 {
		res.Status = domain.RunInsufficientData
		res.Signals = []domain.Signal{}
		return res, nil
	}

	res.Signals = holdSeries(frame)

	for _, col := range desc.Columns {
		if _, ok := frame.Column(col); !ok {
			res.MissingColumns = append(res.MissingColumns, col)
		}
	}
	if len(res.MissingColumns) > 0 {
		v.logger.Warn("frame missing indicator columns, holding entire series",
			zap.String("strategy", strategyID),
			zap.String("instrument", frame.Instrument),
			zap.Strings("columns", res.MissingColumns),
		)
		res.Status = domain.RunInsufficientData
		return res, nil
	}
	if frame.Len() <= desc.WarmupBars {
		res.Status = domain.RunInsufficientData
		return res, nil
	}

	regimeIdx := -1
	for i := desc.WarmupBars; i < frame.Len(); i++ {
		ctx := VoteContext{Frame: frame, Index: i, Params: params}

		// Advance the regime cursor to the snapshot at or before this bar.
		for regimeIdx+1 < len(in.Regimes) &&
			in.Regimes[regimeIdx+1].TimestampMs <= frame.Bars[i].TimestampMs {
			regimeIdx++
		}
		if regimeIdx >= 0 {
			ctx.Regime = in.Regimes[regimeIdx]
		}

		vote := desc.Vote(ctx)
		res.Signals[i] = v.resolve(res, frame, i, vote)
	}

	if res.DataQualityConflicts > 0 {
		v.logger.Warn("rule table fired buy and sell on the same bar; sell took precedence",
			zap.String("strategy", strategyID),
			zap.String("instrument", frame.Instrument),
			zap.Int("occurrences", res.DataQualityConflicts),
		)
	}

	return res, nil
}

// resolve turns a raw vote into an exclusive signal. When both sides fire,
// sell wins and the bar is counted as a data-quality conflict.
func (v *Vectorizer) resolve(res *Result, frame *domain.IndicatorFrame, i int, vote Vote) domain.Signal {
	sig := domain.Signal{TimestampMs: frame.Bars[i].TimestampMs}

	buy := clampConfidence(vote.BuyPoints)
	sell := clampConfidence(vote.SellPoints)

	switch {
	case buy > 0 && sell > 0:
		res.DataQualityConflicts++
		v.logger.Debug("buy/sell conflict on bar",
			zap.String("strategy", res.StrategyID),
			zap.Int64("timestamp_ms", sig.TimestampMs),
			zap.Float64("buy_points", buy),
			zap.Float64("sell_points", sell),
		)
		sig.Sell = true
		sig.Confidence = sell
		sig.Reasons = append(append([]string{}, vote.SellReasons...), "sell_override")
	case sell > 0:
		sig.Sell = true
		sig.Confidence = sell
		sig.Reasons = vote.SellReasons
	case buy > 0:
		sig.Buy = true
		sig.Confidence = buy
		sig.Reasons = vote.BuyReasons
	}

	return sig
}

// holdSeries builds an all-hold signal series aligned with the frame bars.
func holdSeries(frame *domain.IndicatorFrame) []domain.Signal {
	signals := make([]domain.Signal, frame.Len())
	for i, bar := range frame.Bars {
		signals[i] = domain.Signal{TimestampMs: bar.TimestampMs}
	}
	return signals
}
