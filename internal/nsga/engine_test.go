package nsga

import (
	"context"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/gabibrouze/evolving-resilience/internal/genome"
	"github.com/gabibrouze/evolving-resilience/internal/model"
	"github.com/gabibrouze/evolving-resilience/internal/sim"
	"github.com/gabibrouze/evolving-resilience/internal/surrogate"
)

// brittleTower scores zero whenever the envelope is taller than 95 m,
// regardless of everything else.
type brittleTower struct{}

func (brittleTower) Name() string { return "brittle-tower-test" }

func (brittleTower) Evaluate(d genome.BuildingDesign) (float64, error) {
	if d.Envelope.Height > 95 {
		return 0, nil
	}
	return 1 - d.Envelope.Height/100, nil
}

var registerBrittle sync.Once

func TestEvolveKeepsPopulationSizeAndParetoBest(t *testing.T) {
	engine, err := New(Config{
		PopulationSize: 20,
		Generations:    5,
		CrossoverRate:  0.9,
		MutationRate:   0.1,
		Seed:           42,
		Workers:        4,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.Evolve(context.Background())
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if result.Stopped {
		t.Fatal("uncancelled run must not report stopped")
	}
	if len(result.Population) != 20 {
		t.Fatalf("expected final population of 20, got %d", len(result.Population))
	}
	if len(result.History) != 6 {
		t.Fatalf("expected 6 history entries including generation 0, got %d", len(result.History))
	}

	for _, ind := range result.Population {
		if Dominates(ind.Fitness, result.BestFitness) {
			t.Fatalf("best genome is dominated by %s: %v > %v",
				ind.Genome.ID, ind.Fitness, result.BestFitness)
		}
	}
}

func TestEvolveReproducibleForSameSeed(t *testing.T) {
	run := func() *Result {
		engine, err := New(Config{
			PopulationSize: 16,
			Generations:    4,
			CrossoverRate:  0.9,
			MutationRate:   0.2,
			Seed:           1234,
			Workers:        3,
		})
		if err != nil {
			t.Fatalf("new engine: %v", err)
		}
		result, err := engine.Evolve(context.Background())
		if err != nil {
			t.Fatalf("evolve: %v", err)
		}
		return result
	}

	a := run()
	b := run()

	if diff := cmp.Diff(a.Best, b.Best); diff != "" {
		t.Fatalf("best genome differs between identical runs:\n%s", diff)
	}
	ignoreTiming := cmpopts.IgnoreFields(model.GenerationStats{}, "ElapsedMillis")
	if diff := cmp.Diff(a.History, b.History, ignoreTiming); diff != "" {
		t.Fatalf("history differs between identical runs:\n%s", diff)
	}
}

func TestEvolveDifferentSeedsDiverge(t *testing.T) {
	run := func(seed int64) model.Genome {
		engine, err := New(Config{
			PopulationSize: 16,
			Generations:    3,
			CrossoverRate:  0.9,
			MutationRate:   0.3,
			Seed:           seed,
		})
		if err != nil {
			t.Fatalf("new engine: %v", err)
		}
		result, err := engine.Evolve(context.Background())
		if err != nil {
			t.Fatalf("evolve: %v", err)
		}
		return result.Best
	}

	if diff := cmp.Diff(run(1), run(2)); diff == "" {
		t.Fatal("expected different seeds to produce different best genomes")
	}
}

func TestEvolveSurvivesWorstCaseIndividuals(t *testing.T) {
	registerBrittle.Do(func() {
		if err := sim.Register(brittleTower{}); err != nil {
			t.Fatalf("register: %v", err)
		}
	})

	engine, err := New(Config{
		PopulationSize: 12,
		Generations:    4,
		CrossoverRate:  0.9,
		MutationRate:   0.3,
		Seed:           7,
		Objectives:     []string{"structural", "brittle-tower-test"},
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.Evolve(context.Background())
	if err != nil {
		t.Fatalf("run must survive minimum-score individuals: %v", err)
	}
	if len(result.Population) != 12 {
		t.Fatalf("expected 12 survivors, got %d", len(result.Population))
	}
}

func TestEvolveContinuesWhenSurrogateLacksData(t *testing.T) {
	// The minimum is far above anything a short run can accumulate, so
	// every retraining attempt fails and every generation stays on the
	// simulators.
	model2, err := surrogate.New(surrogate.Config{
		Objectives: sim.DefaultObjectives(),
		MinSamples: 100000,
	})
	if err != nil {
		t.Fatalf("new surrogate: %v", err)
	}

	observed := map[int][]string{}
	engine, err := New(Config{
		PopulationSize:    10,
		Generations:       3,
		CrossoverRate:     0.9,
		MutationRate:      0.1,
		Seed:              3,
		SurrogateInterval: 2,
		Surrogate:         model2,
		Observer: ObserverFunc(func(s model.GenerationStats) {
			observed[s.Generation] = s.Warnings
		}),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.Evolve(context.Background())
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}

	sawWarning := false
	for _, gen := range result.History {
		if gen.Source != model.SourceSimulator {
			t.Fatalf("generation %d used %s without a trained surrogate", gen.Generation, gen.Source)
		}
		if len(gen.Warnings) > 0 {
			sawWarning = true
		}
	}
	if !sawWarning {
		t.Fatal("expected insufficient-data warnings in the history")
	}
	// The first retraining attempt happens after generation 0's simulator
	// pass, so its warning must already be visible to the observer.
	if len(result.History[0].Warnings) == 0 {
		t.Fatal("expected a deferred-training warning on generation 0")
	}
	if len(observed[0]) == 0 {
		t.Fatal("generation 0 warnings never reached the observer")
	}
	if model2.Trained() {
		t.Fatal("surrogate must stay untrained below the sample minimum")
	}
}

func TestEvolveUsesSurrogateBetweenTrueGenerations(t *testing.T) {
	model2, err := surrogate.New(surrogate.Config{
		Objectives: sim.DefaultObjectives(),
		MinSamples: 10,
	})
	if err != nil {
		t.Fatalf("new surrogate: %v", err)
	}

	engine, err := New(Config{
		PopulationSize:    16,
		Generations:       6,
		CrossoverRate:     0.9,
		MutationRate:      0.2,
		Seed:              11,
		SurrogateInterval: 2,
		Surrogate:         model2,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.Evolve(context.Background())
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if !model2.Trained() {
		t.Fatal("surrogate should have trained from generation-0 samples")
	}

	sawSurrogate := false
	for _, gen := range result.History {
		if gen.Generation == 0 && gen.Source != model.SourceSimulator {
			t.Fatal("generation 0 must always use the simulators")
		}
		if gen.Generation > 0 && gen.Generation%2 == 0 && gen.Source != model.SourceSimulator {
			t.Fatalf("generation %d is a recalibration point, got %s", gen.Generation, gen.Source)
		}
		if gen.Source == model.SourceSurrogate {
			sawSurrogate = true
		}
	}
	if !sawSurrogate {
		t.Fatal("expected at least one surrogate-served generation")
	}
}

func TestEvolveCancellationReturnsBestSoFar(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	engine, err := New(Config{
		PopulationSize: 12,
		Generations:    50,
		CrossoverRate:  0.9,
		MutationRate:   0.1,
		Seed:           5,
		Observer: ObserverFunc(func(s model.GenerationStats) {
			if s.Generation >= 2 {
				cancel()
			}
		}),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.Evolve(ctx)
	if err != nil {
		t.Fatalf("cancellation must not be an error: %v", err)
	}
	if !result.Stopped {
		t.Fatal("expected stopped result")
	}
	if len(result.Best.Values) == 0 {
		t.Fatal("stopped result must still carry the best genome so far")
	}
	if len(result.History) >= 51 {
		t.Fatal("run should have stopped early")
	}
}

func TestEvolveStallStopsEarly(t *testing.T) {
	// With no variation operators the front cannot move, so the stall
	// check fires on the first repeat.
	engine, err := New(Config{
		PopulationSize:   10,
		Generations:      40,
		CrossoverRate:    0,
		MutationRate:     0,
		Seed:             9,
		StallGenerations: 2,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	result, err := engine.Evolve(context.Background())
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if result.Stopped {
		t.Fatal("stall is a normal completion, not a cancellation")
	}
	if len(result.History) >= 41 {
		t.Fatal("expected the stall check to end the run early")
	}
}

func TestObserverPanicDoesNotAbortRun(t *testing.T) {
	engine, err := New(Config{
		PopulationSize: 8,
		Generations:    3,
		CrossoverRate:  0.9,
		MutationRate:   0.1,
		Seed:           13,
		Observer: ObserverFunc(func(model.GenerationStats) {
			panic("progress sink is broken")
		}),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	if _, err := engine.Evolve(context.Background()); err != nil {
		t.Fatalf("a panicking observer must not fail the run: %v", err)
	}
}

func TestEvolveRunsWithTwoMemberPopulation(t *testing.T) {
	engine, err := New(Config{
		PopulationSize: 2,
		Generations:    3,
		CrossoverRate:  0.9,
		MutationRate:   0.1,
		Seed:           31,
		Objectives:     []string{"structural", "cost"},
	})
	if err != nil {
		t.Fatalf("a two-member population must be accepted: %v", err)
	}

	result, err := engine.Evolve(context.Background())
	if err != nil {
		t.Fatalf("evolve: %v", err)
	}
	if len(result.Population) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(result.Population))
	}
	if result.Best.ID == "" || len(result.BestFitness) != 2 {
		t.Fatalf("missing best state: %+v", result)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	base := Config{
		PopulationSize: 10,
		Generations:    5,
		CrossoverRate:  0.9,
		MutationRate:   0.1,
		Seed:           1,
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"population below tournament floor", func(c *Config) { c.PopulationSize = 1 }},
		{"zero generations", func(c *Config) { c.Generations = 0 }},
		{"crossover above one", func(c *Config) { c.CrossoverRate = 1.5 }},
		{"negative mutation", func(c *Config) { c.MutationRate = -0.1 }},
		{"negative strength", func(c *Config) { c.MutationStrength = -1 }},
		{"interval without surrogate", func(c *Config) { c.SurrogateInterval = 3 }},
		{"negative stall", func(c *Config) { c.StallGenerations = -1 }},
		{"unknown objective", func(c *Config) { c.Objectives = []string{"bogus"} }},
		{"negative weight", func(c *Config) { c.Weights = map[string]float64{"structural": -1} }},
	}

	for _, tc := range cases {
		cfg := base
		tc.mutate(&cfg)
		if _, err := New(cfg); err == nil {
			t.Fatalf("%s: expected configuration error", tc.name)
		}
	}
}

func TestDeriveSeedStreamsIndependent(t *testing.T) {
	seen := map[int64]bool{}
	for gen := 0; gen < 10; gen++ {
		for idx := 0; idx < 10; idx++ {
			s := deriveSeed(42, gen, idx)
			if seen[s] {
				t.Fatalf("seed collision at generation %d index %d", gen, idx)
			}
			seen[s] = true
		}
	}
	if deriveSeed(1, 2, 3) == deriveSeed(2, 2, 3) {
		t.Fatal("different run seeds must derive different streams")
	}
}
