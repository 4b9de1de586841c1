package walkforward

import (
	"fmt"

	"strategy-lab/internal/domain"
)

// Objective scores one train-slice result; the grid combination with the
// highest score wins the window.
type Objective func(m domain.PerformanceMetrics) float64

// Registered objective names.
const (
	ObjectiveSortino      = "sortino"
	ObjectiveSharpe       = "sharpe"
	ObjectiveTotalReturn  = "total_return"
	ObjectiveProfitFactor = "profit_factor"

	// DefaultObjective is used when the config names none.
	DefaultObjective = ObjectiveSortino
)

// objectives is the selection table. New objectives extend the table.
var objectives = map[string]Objective{
	ObjectiveSortino:      func(m domain.PerformanceMetrics) float64 { return m.SortinoRatio },
	ObjectiveSharpe:       func(m domain.PerformanceMetrics) float64 { return m.SharpeRatio },
	ObjectiveTotalReturn:  func(m domain.PerformanceMetrics) float64 { return m.TotalReturnPct },
	ObjectiveProfitFactor: func(m domain.PerformanceMetrics) float64 { return m.ProfitFactor },
}

// lookupObjective resolves a name to its scoring function. An empty name
// selects the default.
func lookupObjective(name string) (string, Objective, error) {
	if name == "" {
		name = DefaultObjective
	}
	obj, ok := objectives[name]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q", ErrUnknownObjective, name)
	}
	return name, obj, nil
}

// ObjectiveNames lists the registered objectives, for flag help text.
func ObjectiveNames() []string {
	return []string{ObjectiveSortino, ObjectiveSharpe, ObjectiveTotalReturn, ObjectiveProfitFactor}
}
