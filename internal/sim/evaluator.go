package sim

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gabibrouze/evolving-resilience/internal/genome"
)

// Evaluator scores one aspect of a decoded building design. Implementations
// must be deterministic for identical inputs, free of side effects, and
// return scores in [0,1] with higher meaning better. A physically invalid
// design scores 0 rather than producing an error, so the search can still
// rank it; errors are reserved for evaluator-internal failures and are
// recovered by the fitness pipeline.
type Evaluator interface {
	Name() string
	Evaluate(design genome.BuildingDesign) (float64, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Evaluator{}
)

// Register adds an evaluator under its name. Registering a duplicate name
// is an error so objective order stays unambiguous.
func Register(e Evaluator) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := e.Name()
	if name == "" {
		return fmt.Errorf("evaluator name is required")
	}
	if _, exists := registry[name]; exists {
		return fmt.Errorf("evaluator already registered: %s", name)
	}
	registry[name] = e
	return nil
}

// Lookup returns the evaluator registered under name.
func Lookup(name string) (Evaluator, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	e, ok := registry[name]
	return e, ok
}

// Names lists registered evaluator names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps objective names to evaluators, preserving order.
func Resolve(names []string) ([]Evaluator, error) {
	out := make([]Evaluator, 0, len(names))
	for _, name := range names {
		e, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown objective: %s", name)
		}
		out = append(out, e)
	}
	return out, nil
}

// DefaultObjectives is the fixed core objective order. Supplemental
// evaluators (safety, blast, evacuation) register alongside these and can
// be opted into a run.
func DefaultObjectives() []string {
	return []string{"structural", "energy", "livability", "cost"}
}

func init() {
	for _, e := range []Evaluator{
		StructuralIntegrity{},
		EnergyEfficiency{},
		Livability{},
		CostEfficiency{},
		SafetyAssessment{},
		BlastResistance{},
		EvacuationEfficiency{},
	} {
		if err := Register(e); err != nil {
			panic(err)
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// degenerate reports geometry an evaluator cannot reason about.
func degenerate(d genome.BuildingDesign) bool {
	return d.Envelope.Height <= 0 ||
		d.Envelope.Width <= 0 ||
		d.Envelope.Length <= 0 ||
		d.Floors.Count <= 0 ||
		d.Floors.Height <= 0
}
