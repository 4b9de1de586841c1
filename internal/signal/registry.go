package signal

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry errors.
var (
	ErrDuplicateStrategy = errors.New("strategy already registered")
	ErrNilVoteFunc       = errors.New("strategy has no vote function")
	ErrUnknownParam      = errors.New("unknown strategy parameter")
	ErrParamOutOfRange   = errors.New("strategy parameter out of range")
)

// ParamSpec declares one tunable strategy parameter: its bounds for grid
// search and the default used when a caller does not override it.
type ParamSpec struct {
	Name    string  // parameter name
	Min     float64 // inclusive lower bound
	Max     float64 // inclusive upper bound
	Step    float64 // grid step, > 0
	Default float64 // value used when not overridden
}

// Params holds runtime parameter values keyed by name.
type Params map[string]float64

// Get returns the named value or def when absent.
func (p Params) Get(name string, def float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Descriptor is one row of the strategy capability table: the name, the
// indicator columns the strategy reads, its warm-up requirement, its
// parameter schema, and the vote function holding the decision rules.
type Descriptor struct {
	Name        string      // unique strategy identifier
	Description string      // one-line summary for reports
	Columns     []string    // required indicator columns
	WarmupBars  int         // bars to skip before the first decision
	Params      []ParamSpec // tunable parameter schema
	Vote        VoteFunc    // decision rules
}

// Defaults builds the parameter set from the schema defaults.
func (d Descriptor) Defaults() Params {
	p := make(Params, len(d.Params))
	for _, spec := range d.Params {
		p[spec.Name] = spec.Default
	}
	return p
}

// ResolveParams overlays caller values on the schema defaults, rejecting
// unknown names and out-of-range values. Rejection happens before any
// simulation starts.
func (d Descriptor) ResolveParams(overrides Params) (Params, error) {
	specs := make(map[string]ParamSpec, len(d.Params))
	for _, spec := range d.Params {
		specs[spec.Name] = spec
	}

	resolved := d.Defaults()
	for name, value := range overrides {
		spec, ok := specs[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no parameter %q", ErrUnknownParam, d.Name, name)
		}
		if value < spec.Min || value > spec.Max {
			return nil, fmt.Errorf("%w: %s.%s=%v outside [%v, %v]",
				ErrParamOutOfRange, d.Name, name, value, spec.Min, spec.Max)
		}
		resolved[name] = value
	}
	return resolved, nil
}

// Registry is a thread-safe strategy capability table. New strategies
// extend the table instead of any control flow.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Descriptor)}
}

// Register adds a strategy descriptor to the table.
func (r *Registry) Register(d Descriptor) error {
	if d.Vote == nil {
		return fmt.Errorf("%w: %s", ErrNilVoteFunc, d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateStrategy, d.Name)
	}
	r.strategies[d.Name] = d
	return nil
}

// MustRegister panics on registration failure. Used for built-in tables
// assembled at startup.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Get returns the descriptor for name.
func (r *Registry) Get(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.strategies[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("strategy %q: not registered", name)
	}
	return d, nil
}

// List returns all registered strategy names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry assembles the built-in strategy table: the four base
// strategies plus the regime-weighted ensemble over them.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	bases := []Descriptor{
		rsiReversion(),
		macdCross(),
		bollingerReversion(),
		maTrend(),
	}
	for _, d := range bases {
		r.MustRegister(d)
	}
	r.MustRegister(ensemble(bases))

	return r
}
