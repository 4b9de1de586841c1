package regime

import (
	"strategy-lab/internal/domain"
)

// Config holds detector tuning. Zero values are replaced by defaults.
type Config struct {
	AgreementThreshold float64 // change-event agreement bound, default 0.7
	HistoryCapMs       int64   // snapshot retention horizon, default 7 days
	PeriodsPerYear     float64 // volatility annualization, default 8760
}

// DefaultConfig returns the standard detector configuration.
func DefaultConfig() Config {
	return Config{
		AgreementThreshold: 0.7,
		HistoryCapMs:       7 * 24 * 60 * 60 * 1000,
		PeriodsPerYear:     8760,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AgreementThreshold <= 0 {
		c.AgreementThreshold = d.AgreementThreshold
	}
	if c.HistoryCapMs <= 0 {
		c.HistoryCapMs = d.HistoryCapMs
	}
	if c.PeriodsPerYear <= 0 {
		c.PeriodsPerYear = d.PeriodsPerYear
	}
	return c
}

// Detector owns the rolling bar window and the bounded snapshot history
// for one instrument. It is not safe for concurrent use; each instrument
// gets its own detector.
type Detector struct {
	cfg        Config
	instrument string

	bars        []domain.PriceBar       // last WindowBars bars
	snapshots   []domain.RegimeSnapshot // bounded by HistoryCapMs
	lastEventTo string                  // suppresses repeat events while a transition persists
}

// NewDetector creates a detector for one instrument.
func NewDetector(instrument string, cfg Config) *Detector {
	return &Detector{
		cfg:        cfg.withDefaults(),
		instrument: instrument,
	}
}

// Update ingests the next bar, classifies the current window, appends the
// snapshot to the history, and reports a regime change when one completed.
// The returned change is nil in the common case.
func (d *Detector) Update(bar domain.PriceBar) (domain.RegimeSnapshot, *domain.RegimeChange) {
	d.bars = append(d.bars, bar)
	if len(d.bars) > WindowBars {
		d.bars = d.bars[len(d.bars)-WindowBars:]
	}

	snap := Classify(d.instrument, d.bars, d.cfg.PeriodsPerYear)
	d.snapshots = append(d.snapshots, snap)
	d.evict(snap.TimestampMs)

	return snap, d.detectChange()
}

// Snapshots returns a copy of the retained history, oldest first.
func (d *Detector) Snapshots() []domain.RegimeSnapshot {
	out := make([]domain.RegimeSnapshot, len(d.snapshots))
	copy(out, d.snapshots)
	return out
}

// evict drops snapshots older than the retention horizon, keeping at least
// the two change-detection windows.
func (d *Detector) evict(nowMs int64) {
	cutoff := nowMs - d.cfg.HistoryCapMs
	for len(d.snapshots) > 2*WindowBars && d.snapshots[0].TimestampMs < cutoff {
		d.snapshots = d.snapshots[1:]
	}
}

// detectChange compares the dominant regime of the latest WindowBars
// snapshots against the prior WindowBars. A change fires only when the
// dominants differ, the latest window's agreement exceeds the threshold,
// and the same transition has not already been reported.
func (d *Detector) detectChange() *domain.RegimeChange {
	if len(d.snapshots) < 2*WindowBars {
		return nil
	}

	latest := d.snapshots[len(d.snapshots)-WindowBars:]
	prior := d.snapshots[len(d.snapshots)-2*WindowBars : len(d.snapshots)-WindowBars]

	latestDominant, agreement := dominant(latest)
	priorDominant, _ := dominant(prior)

	if latestDominant == priorDominant ||
		latestDominant == domain.RegimeInsufficientData ||
		priorDominant == domain.RegimeInsufficientData {
		return nil
	}
	if agreement <= d.cfg.AgreementThreshold {
		return nil
	}
	if latestDominant == d.lastEventTo {
		return nil
	}

	d.lastEventTo = latestDominant
	return &domain.RegimeChange{
		TimestampMs: latest[len(latest)-1].TimestampMs,
		Instrument:  d.instrument,
		From:        priorDominant,
		To:          latestDominant,
		Agreement:   agreement,
	}
}

// dominant returns the most frequent regime of a snapshot window and the
// fraction of the window agreeing on it. Frequency ties resolve by the
// fixed candidate priority.
func dominant(snaps []domain.RegimeSnapshot) (string, float64) {
	counts := make(map[string]int, len(candidateOrder)+1)
	for _, s := range snaps {
		counts[s.Regime]++
	}

	best := domain.RegimeInsufficientData
	bestCount := counts[domain.RegimeInsufficientData]
	for _, regime := range candidateOrder {
		if counts[regime] > bestCount {
			best = regime
			bestCount = counts[regime]
		}
	}
	return best, float64(bestCount) / float64(len(snaps))
}
