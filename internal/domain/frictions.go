package domain

import "errors"

// Friction validation errors.
var (
	ErrNegativeFee      = errors.New("fee rate must be non-negative")
	ErrNegativeSlippage = errors.New("slippage rate must be non-negative")
	ErrInvalidFraction  = errors.New("max position fraction must be in (0,1]")
)

// Frictions represents simulated trading costs applied on execution.
// Rates are fractions: 0.001 means 0.1%.
type Frictions struct {
	FeeRate             float64 // fee charged on entry and exit notional
	SlippageRate        float64 // adverse price adjustment on execution
	MaxPositionFraction float64 // fraction of current capital committed per entry
}

// Validate rejects friction parameters that would make a simulation
// meaningless. Called eagerly, before any run starts.
func (f Frictions) Validate() error {
	if f.FeeRate < 0 {
		return ErrNegativeFee
	}
	if f.SlippageRate < 0 {
		return ErrNegativeSlippage
	}
	if f.MaxPositionFraction <= 0 || f.MaxPositionFraction > 1 {
		return ErrInvalidFraction
	}
	return nil
}

// Predefined friction profiles.
var (
	// ZeroFrictions disables all costs; used for invariant checks.
	ZeroFrictions = Frictions{
		FeeRate:             0,
		SlippageRate:        0,
		MaxPositionFraction: 1.0,
	}

	// StandardFrictions approximates a liquid spot venue.
	StandardFrictions = Frictions{
		FeeRate:             0.001,
		SlippageRate:        0.0005,
		MaxPositionFraction: 0.95,
	}

	// StressedFrictions models a thin market under load.
	StressedFrictions = Frictions{
		FeeRate:             0.002,
		SlippageRate:        0.003,
		MaxPositionFraction: 0.5,
	}
)
