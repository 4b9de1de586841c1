package walkforward

import (
	"math"
	"testing"

	"strategy-lab/internal/domain"
)

func okWindow(returnPct, sharpe, drawdownPct, winRate float64) domain.WalkForwardWindow {
	return domain.WalkForwardWindow{
		TestStatus: domain.RunOK,
		TestMetrics: domain.PerformanceMetrics{
			TotalReturnPct: returnPct,
			SharpeRatio:    sharpe,
			MaxDrawdownPct: drawdownPct,
			WinRate:        winRate,
		},
	}
}

func TestComputeStabilityPerfectSweep(t *testing.T) {
	windows := []domain.WalkForwardWindow{
		okWindow(10, 5, 0, 1),
		okWindow(10, 5, 0, 1),
		okWindow(10, 5, 0, 1),
	}

	s := computeStability(windows)

	if s.WindowCount != 3 {
		t.Fatalf("expected 3 windows counted, got %d", s.WindowCount)
	}
	if s.Score != 100 {
		t.Errorf("expected score 100, got %v", s.Score)
	}
	if s.Grade != "A+" || s.Label != "excellent" {
		t.Errorf("expected A+/excellent, got %s/%s", s.Grade, s.Label)
	}
	if s.StdReturnPct != 0 {
		t.Errorf("identical windows must have zero spread, got %v", s.StdReturnPct)
	}
}

func TestComputeStabilityFailingSweep(t *testing.T) {
	windows := []domain.WalkForwardWindow{
		okWindow(-10, -3, -50, 0),
		okWindow(-12, -2, -40, 0),
	}

	s := computeStability(windows)

	if s.Score != 0 {
		t.Errorf("expected score 0, got %v", s.Score)
	}
	if s.Grade != "F" || s.Label != "poor" {
		t.Errorf("expected F/poor, got %s/%s", s.Grade, s.Label)
	}
}

func TestComputeStabilityMidpoints(t *testing.T) {
	// Each component sits exactly mid-ramp: 0% return, Sharpe 1,
	// drawdown -15%, win rate 0.5.
	s := computeStability([]domain.WalkForwardWindow{
		okWindow(0, 1, -15, 0.5),
		okWindow(0, 1, -15, 0.5),
	})

	// 0.30*50 + 0.40*50 + 0.20*50 + 0.10*50 = 50.
	if math.Abs(s.Score-50) > 1e-9 {
		t.Errorf("expected score 50, got %v", s.Score)
	}
	if s.Grade != "D" || s.Label != "weak" {
		t.Errorf("expected D/weak, got %s/%s", s.Grade, s.Label)
	}
}

func TestComputeStabilitySkipsInsufficientWindows(t *testing.T) {
	windows := []domain.WalkForwardWindow{
		okWindow(10, 5, 0, 1),
		{TestStatus: domain.RunInsufficientData},
		okWindow(20, 5, 0, 1),
	}

	s := computeStability(windows)

	if s.WindowCount != 2 {
		t.Errorf("expected only computed windows counted, got %d", s.WindowCount)
	}
	if s.MeanReturnPct != 15 {
		t.Errorf("expected mean return 15, got %v", s.MeanReturnPct)
	}
}

func TestComputeStabilityEmpty(t *testing.T) {
	for _, windows := range [][]domain.WalkForwardWindow{
		nil,
		{{TestStatus: domain.RunInsufficientData}},
	} {
		s := computeStability(windows)
		if s.WindowCount != 0 {
			t.Errorf("expected zero windows, got %d", s.WindowCount)
		}
		if s.Grade != "" || s.Label != "" || s.Score != 0 {
			t.Errorf("empty sweep must carry no verdict, got %+v", s)
		}
	}
}

func TestRampClamps(t *testing.T) {
	if got := ramp(10, -5, 5); got != 100 {
		t.Errorf("above ceiling: expected 100, got %v", got)
	}
	if got := ramp(-10, -5, 5); got != 0 {
		t.Errorf("below floor: expected 0, got %v", got)
	}
	if got := ramp(0, -5, 5); got != 50 {
		t.Errorf("midpoint: expected 50, got %v", got)
	}
}

func TestMeanStd(t *testing.T) {
	mean, std := meanStd([]float64{1, 3})
	if mean != 2 {
		t.Errorf("expected mean 2, got %v", mean)
	}
	if math.Abs(std-math.Sqrt2) > 1e-12 {
		t.Errorf("expected sample stddev sqrt(2), got %v", std)
	}

	mean, std = meanStd([]float64{7})
	if mean != 7 || std != 0 {
		t.Errorf("single sample: expected (7, 0), got (%v, %v)", mean, std)
	}

	mean, std = meanStd(nil)
	if mean != 0 || std != 0 {
		t.Errorf("empty: expected zeros, got (%v, %v)", mean, std)
	}
}
