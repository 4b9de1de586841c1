package signal

import (
	"math"
	"testing"

	"strategy-lab/internal/domain"
)

// syntheticFrame builds a frame carrying every built-in indicator column.
// Values follow fixed deterministic patterns so each base strategy fires
// somewhere in the series.
func syntheticFrame(n int) *domain.IndicatorFrame {
	bars := make([]domain.PriceBar, n)
	rsi := make([]float64, n)
	macd := make([]float64, n)
	macdSig := make([]float64, n)
	macdHist := make([]float64, n)
	bbUpper := make([]float64, n)
	bbMiddle := make([]float64, n)
	bbLower := make([]float64, n)
	smaFast := make([]float64, n)
	smaSlow := make([]float64, n)

	price := 100.0
	for i := 0; i < n; i++ {
		// Sawtooth drift: four bars up, four bars down.
		if i%8 < 4 {
			price += 1.5
		} else {
			price -= 1.2
		}
		bars[i] = domain.PriceBar{
			TimestampMs: int64(i+1) * 60_000,
			Open:        price - 0.5,
			High:        price + 1,
			Low:         price - 1,
			Close:       price,
			Volume:      1000 + float64(i%5)*100,
		}

		rsi[i] = 50 + 28*sign(i%16 < 8)          // swings 22..78
		macd[i] = 0.6 * sign(i%10 < 5)           // crosses zero every 5 bars
		macdSig[i] = 0.2
		macdHist[i] = macd[i] - macdSig[i]
		bbMiddle[i] = price
		bbUpper[i] = price + 2
		bbLower[i] = price - 2
		smaFast[i] = price + 0.8*sign(i%12 < 6) // crosses the slow line
		smaSlow[i] = price
	}

	return &domain.IndicatorFrame{
		Instrument: "TEST-USD",
		Bars:       bars,
		Columns: map[string][]float64{
			"rsi":         rsi,
			"macd":        macd,
			"macd_signal": macdSig,
			"macd_hist":   macdHist,
			"bb_upper":    bbUpper,
			"bb_middle":   bbMiddle,
			"bb_lower":    bbLower,
			"sma_fast":    smaFast,
			"sma_slow":    smaSlow,
		},
	}
}

func sign(positive bool) float64 {
	if positive {
		return 1
	}
	return -1
}

func TestVectorize_SignalExclusivityAndBounds(t *testing.T) {
	reg := DefaultRegistry()
	v := NewVectorizer(reg, nil)
	frame := syntheticFrame(120)

	for _, name := range reg.List() {
		res, err := v.Vectorize(Input{Frame: frame}, name, nil)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if len(res.Signals) != frame.Len() {
			t.Fatalf("%s: expected %d signals, got %d", name, frame.Len(), len(res.Signals))
		}
		for i, sig := range res.Signals {
			if sig.Buy && sig.Sell {
				t.Errorf("%s: bar %d has buy and sell both set", name, i)
			}
			if sig.Confidence < 0 || sig.Confidence > 100 {
				t.Errorf("%s: bar %d confidence %f outside [0,100]", name, i, sig.Confidence)
			}
		}
	}
}

func TestVectorize_Deterministic(t *testing.T) {
	v := NewVectorizer(DefaultRegistry(), nil)
	frame := syntheticFrame(100)

	a, err := v.Vectorize(Input{Frame: frame}, "rsi_reversion", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := v.Vectorize(Input{Frame: frame}, "rsi_reversion", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range a.Signals {
		if a.Signals[i].Buy != b.Signals[i].Buy ||
			a.Signals[i].Sell != b.Signals[i].Sell ||
			a.Signals[i].Confidence != b.Signals[i].Confidence {
			t.Fatalf("bar %d differs between identical runs", i)
		}
	}
}

func TestVectorize_WarmupHolds(t *testing.T) {
	v := NewVectorizer(DefaultRegistry(), nil)
	frame := syntheticFrame(60)

	res, err := v.Vectorize(Input{Frame: frame}, "rsi_reversion", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 15; i++ {
		sig := res.Signals[i]
		if sig.Buy || sig.Sell || sig.Confidence != 0 {
			t.Errorf("warmup bar %d is not a hold: %+v", i, sig)
		}
	}
}

func TestVectorize_EmptyFrame(t *testing.T) {
	v := NewVectorizer(DefaultRegistry(), nil)

	res, err := v.Vectorize(Input{Frame: &domain.IndicatorFrame{}}, "rsi_reversion", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.RunInsufficientData {
		t.Errorf("expected insufficient data status, got %s", res.Status)
	}
	if len(res.Signals) != 0 {
		t.Errorf("expected no signals, got %d", len(res.Signals))
	}
}

func TestVectorize_TooShortSeries(t *testing.T) {
	v := NewVectorizer(DefaultRegistry(), nil)
	frame := syntheticFrame(10) // rsi_reversion warmup is 15

	res, err := v.Vectorize(Input{Frame: frame}, "rsi_reversion", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != domain.RunInsufficientData {
		t.Errorf("expected insufficient data status, got %s", res.Status)
	}
	if len(res.Signals) != 10 {
		t.Errorf("expected aligned hold signals, got %d", len(res.Signals))
	}
	for i, sig := range res.Signals {
		if sig.Action() != domain.ActionHold {
			t.Errorf("bar %d: expected hold, got %s", i, sig.Action())
		}
	}
}

func TestVectorize_MissingColumn(t *testing.T) {
	v := NewVectorizer(DefaultRegistry(), nil)
	frame := syntheticFrame(60)
	delete(frame.Columns, "rsi")

	res, err := v.Vectorize(Input{Frame: frame}, "rsi_reversion", nil)
	if err != nil {
		t.Fatalf("missing column must not be an error, got: %v", err)
	}
	if res.Status != domain.RunInsufficientData {
		t.Errorf("expected insufficient data status, got %s", res.Status)
	}
	if len(res.MissingColumns) != 1 || res.MissingColumns[0] != "rsi" {
		t.Errorf("expected missing column rsi, got %v", res.MissingColumns)
	}
}

func TestVectorize_UnknownStrategy(t *testing.T) {
	v := NewVectorizer(DefaultRegistry(), nil)

	_, err := v.Vectorize(Input{Frame: syntheticFrame(60)}, "nope", nil)
	if err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestVectorize_ConflictResolvesToSell(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Descriptor{
		Name: "conflicted",
		Vote: func(c VoteContext) Vote {
			return Vote{
				BuyPoints: 80, BuyReasons: []string{"buy_rule"},
				SellPoints: 40, SellReasons: []string{"sell_rule"},
			}
		},
	})

	v := NewVectorizer(reg, nil)
	frame := syntheticFrame(5)

	res, err := v.Vectorize(Input{Frame: frame}, "conflicted", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DataQualityConflicts != 5 {
		t.Errorf("expected 5 conflicts, got %d", res.DataQualityConflicts)
	}
	for i, sig := range res.Signals {
		if !sig.Sell || sig.Buy {
			t.Errorf("bar %d: conflict must resolve to sell, got %+v", i, sig)
		}
		if sig.Confidence != 40 {
			t.Errorf("bar %d: expected sell confidence 40, got %f", i, sig.Confidence)
		}
	}
}

func TestVectorize_RSIOversoldBuys(t *testing.T) {
	v := NewVectorizer(DefaultRegistry(), nil)
	frame := syntheticFrame(40)

	rsi := frame.Columns["rsi"]
	for i := range rsi {
		rsi[i] = 50
	}
	rsi[39] = 20

	res, err := v.Vectorize(Input{Frame: frame}, "rsi_reversion", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := res.Signals[39]
	if !last.Buy {
		t.Fatalf("expected buy on oversold bar, got %+v", last)
	}
	// 50 base + 50*(30-20)/30 depth bonus.
	want := 50 + 50*(30.0-20.0)/30.0
	if math.Abs(last.Confidence-want) > 1e-9 {
		t.Errorf("expected confidence %f, got %f", want, last.Confidence)
	}
	for i := 15; i < 39; i++ {
		if res.Signals[i].Buy || res.Signals[i].Sell {
			t.Errorf("neutral bar %d should hold, got %+v", i, res.Signals[i])
		}
	}
}

func TestVectorize_ConfidenceClamped(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Descriptor{
		Name: "loud",
		Vote: func(c VoteContext) Vote {
			return Vote{BuyPoints: 500, BuyReasons: []string{"overdrive"}}
		},
	})

	v := NewVectorizer(reg, nil)
	res, err := v.Vectorize(Input{Frame: syntheticFrame(3)}, "loud", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, sig := range res.Signals {
		if sig.Confidence != 100 {
			t.Errorf("bar %d: expected clamp to 100, got %f", i, sig.Confidence)
		}
	}
}
