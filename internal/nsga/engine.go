package nsga

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/gabibrouze/evolving-resilience/internal/fitness"
	"github.com/gabibrouze/evolving-resilience/internal/genome"
	"github.com/gabibrouze/evolving-resilience/internal/model"
	"github.com/gabibrouze/evolving-resilience/internal/surrogate"
)

// SurrogateModel is the trainable predictor the engine can interleave with
// the simulators. *surrogate.Model satisfies it.
type SurrogateModel interface {
	Trained() bool
	Predict(model.Genome) (model.FitnessVector, error)
	Train(samples []surrogate.Sample) error
}

// Observer receives per-generation progress. Observers run synchronously on
// the engine goroutine; a panicking observer is recovered and logged, never
// fatal to the run.
type Observer interface {
	Observe(stats model.GenerationStats)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(stats model.GenerationStats)

func (f ObserverFunc) Observe(stats model.GenerationStats) { f(stats) }

type Config struct {
	PopulationSize   int
	Generations      int
	CrossoverRate    float64
	MutationRate     float64
	MutationStrength float64
	// Seed fixes every random decision of the run. Zero picks a clock seed.
	Seed       int64
	Objectives []string
	// Weights bias reporting only, never selection pressure.
	Weights map[string]float64
	Workers int
	// SurrogateInterval is the cadence of ground-truth generations when a
	// surrogate is configured: every interval-th generation runs the
	// simulators, the rest are predicted. Zero keeps every generation on
	// the simulators.
	SurrogateInterval int
	Surrogate         SurrogateModel
	// StallGenerations stops the run early once the first front's
	// per-objective maxima have not moved for this many consecutive
	// generations. Zero disables the check.
	StallGenerations int
	Observer         Observer
	Logger           logr.Logger
}

// Result is the outcome of a completed or cancelled run.
type Result struct {
	Best        model.Genome
	BestFitness model.FitnessVector
	BestOverall float64
	Population  []*Individual
	History     []model.GenerationStats
	// Stopped marks a cooperative cancellation; the result still carries
	// the best state reached before the stop.
	Stopped bool
}

// Engine runs the generational loop. One Engine drives one run.
type Engine struct {
	cfg      Config
	pipeline *fitness.Pipeline
}

func New(cfg Config) (*Engine, error) {
	if cfg.PopulationSize < 2 {
		return nil, fmt.Errorf("population size must be at least 2, got %d", cfg.PopulationSize)
	}
	if cfg.Generations < 1 {
		return nil, fmt.Errorf("generations must be at least 1, got %d", cfg.Generations)
	}
	if cfg.CrossoverRate < 0 || cfg.CrossoverRate > 1 {
		return nil, fmt.Errorf("crossover rate must be in [0,1], got %v", cfg.CrossoverRate)
	}
	if cfg.MutationRate < 0 || cfg.MutationRate > 1 {
		return nil, fmt.Errorf("mutation rate must be in [0,1], got %v", cfg.MutationRate)
	}
	if cfg.MutationStrength < 0 {
		return nil, fmt.Errorf("mutation strength must be >= 0, got %v", cfg.MutationStrength)
	}
	if cfg.MutationStrength == 0 {
		cfg.MutationStrength = 0.1
	}
	if cfg.SurrogateInterval < 0 {
		return nil, fmt.Errorf("surrogate interval must be >= 0, got %d", cfg.SurrogateInterval)
	}
	if cfg.SurrogateInterval > 0 && cfg.Surrogate == nil {
		return nil, fmt.Errorf("surrogate interval %d set without a surrogate model", cfg.SurrogateInterval)
	}
	if cfg.StallGenerations < 0 {
		return nil, fmt.Errorf("stall generations must be >= 0, got %d", cfg.StallGenerations)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}

	pipeline, err := fitness.NewPipeline(fitness.Config{
		Objectives: cfg.Objectives,
		Workers:    cfg.Workers,
		Weights:    cfg.Weights,
		Surrogate:  cfg.Surrogate,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, err
	}
	cfg.Objectives = pipeline.Objectives()
	return &Engine{cfg: cfg, pipeline: pipeline}, nil
}

// Pipeline exposes the engine's evaluation pipeline for reporting helpers.
func (e *Engine) Pipeline() *fitness.Pipeline {
	return e.pipeline
}

// Objectives returns the resolved objective order for this run.
func (e *Engine) Objectives() []string {
	return append([]string(nil), e.cfg.Objectives...)
}

// Evolve runs the full generational loop. Cancelling the context stops the
// run cooperatively: the returned Result carries the best state so far with
// Stopped set and a nil error.
func (e *Engine) Evolve(ctx context.Context) (*Result, error) {
	log := e.cfg.Logger

	pop, history, err := e.initialGeneration(ctx)
	if err != nil {
		if canceled(err) {
			return e.finish(pop, history, true), nil
		}
		return nil, err
	}

	stallStreak := 0
	var stallMark model.FitnessVector

	for gen := 1; gen <= e.cfg.Generations; gen++ {
		if ctx.Err() != nil {
			log.Info("run cancelled", "generation", gen)
			return e.finish(pop, history, true), nil
		}
		start := time.Now()

		offspring := e.makeOffspring(pop, gen)
		useSurrogate := e.cfg.SurrogateInterval > 0 &&
			gen%e.cfg.SurrogateInterval != 0 &&
			e.cfg.Surrogate.Trained()

		res, err := e.pipeline.Evaluate(ctx, offspringGenomes(offspring), useSurrogate)
		if err != nil {
			if canceled(err) {
				log.Info("run cancelled during evaluation", "generation", gen)
				return e.finish(pop, history, true), nil
			}
			return nil, err
		}
		for i, ind := range offspring {
			ind.Fitness = res.Vectors[i]
			ind.Source = res.Source
		}

		pop = e.selectNext(append(pop, offspring...))

		var genWarnings []string
		if res.Source == model.SourceSimulator {
			genWarnings = e.maybeTrainSurrogate()
		}

		stats := e.generationStats(gen, pop, res.Source, len(offspring), res.Failures, genWarnings, start)
		history = append(history, stats)
		e.notify(stats)
		log.V(1).Info("generation complete",
			"generation", gen, "front_size", stats.FrontSize,
			"best_overall", stats.BestOverall, "source", string(res.Source))

		mark := frontMaxima(pop)
		if stallMark != nil && vectorsEqual(mark, stallMark) {
			stallStreak++
		} else {
			stallStreak = 0
		}
		stallMark = mark
		if e.cfg.StallGenerations > 0 && stallStreak >= e.cfg.StallGenerations {
			log.Info("front stalled, stopping early",
				"generation", gen, "stall_generations", e.cfg.StallGenerations)
			break
		}
	}

	return e.finish(pop, history, false), nil
}

func (e *Engine) initialGeneration(ctx context.Context) ([]*Individual, []model.GenerationStats, error) {
	start := time.Now()
	rng := rand.New(rand.NewSource(deriveSeed(e.cfg.Seed, 0, 0)))

	pop := make([]*Individual, e.cfg.PopulationSize)
	for i := range pop {
		pop[i] = &Individual{Genome: genome.Random(rng, genomeID(0, i)), Generation: 0}
	}

	res, err := e.pipeline.Evaluate(ctx, offspringGenomes(pop), false)
	if err != nil {
		return nil, nil, err
	}
	for i, ind := range pop {
		ind.Fitness = res.Vectors[i]
		ind.Source = res.Source
	}

	fronts := FastNonDominatedSort(pop)
	for _, front := range fronts {
		CrowdingDistance(front)
	}

	warnings := e.maybeTrainSurrogate()
	stats := e.generationStats(0, pop, res.Source, len(pop), res.Failures, warnings, start)
	e.notify(stats)
	return pop, []model.GenerationStats{stats}, nil
}

// makeOffspring produces exactly PopulationSize children. Each parent pair
// draws from its own seeded stream so the offspring of generation g are
// identical across runs and worker counts.
func (e *Engine) makeOffspring(pop []*Individual, gen int) []*Individual {
	size := e.cfg.PopulationSize
	children := make([]*Individual, 0, size)
	for pair := 0; len(children) < size; pair++ {
		rng := rand.New(rand.NewSource(deriveSeed(e.cfg.Seed, gen, pair)))

		p1 := e.tournament(rng, pop)
		p2 := e.tournament(rng, pop)

		idA := genomeID(gen, len(children))
		idB := genomeID(gen, len(children)+1)
		c1, c2 := genome.Crossover(rng, p1.Genome, p2.Genome, e.cfg.CrossoverRate, idA, idB)
		c1 = genome.Mutate(rng, c1, e.cfg.MutationRate, e.cfg.MutationStrength, idA)
		c2 = genome.Mutate(rng, c2, e.cfg.MutationRate, e.cfg.MutationStrength, idB)

		children = append(children, &Individual{Genome: c1, Generation: gen})
		if len(children) < size {
			children = append(children, &Individual{Genome: c2, Generation: gen})
		}
	}
	return children
}

// tournament picks the crowded-comparison winner of two uniform draws. A
// full tie keeps the first draw.
func (e *Engine) tournament(rng *rand.Rand, pop []*Individual) *Individual {
	a := pop[rng.Intn(len(pop))]
	b := pop[rng.Intn(len(pop))]
	if Crowded(b, a) {
		return b
	}
	return a
}

// selectNext reduces the combined parent and offspring pool back to the
// population size: whole fronts first, then the split front by descending
// crowding distance.
func (e *Engine) selectNext(combined []*Individual) []*Individual {
	size := e.cfg.PopulationSize
	fronts := FastNonDominatedSort(combined)

	next := make([]*Individual, 0, size)
	for _, front := range fronts {
		CrowdingDistance(front)
		if len(next)+len(front) <= size {
			next = append(next, front...)
			continue
		}
		sort.SliceStable(front, func(a, b int) bool {
			return front[a].Crowding > front[b].Crowding
		})
		next = append(next, front[:size-len(next)]...)
		break
	}
	return next
}

func (e *Engine) generationStats(gen int, pop []*Individual, source model.FitnessSource,
	evaluations, failures int, warnings []string, start time.Time) model.GenerationStats {

	best := bestOf(pop)
	objectives := len(e.cfg.Objectives)

	mean := make(model.FitnessVector, objectives)
	for _, ind := range pop {
		for k := 0; k < objectives && k < len(ind.Fitness); k++ {
			mean[k] += ind.Fitness[k]
		}
	}
	for k := range mean {
		mean[k] /= float64(len(pop))
	}

	frontSize := 0
	for _, ind := range pop {
		if ind.Rank == 0 {
			frontSize++
		}
	}

	return model.GenerationStats{
		Generation:    gen,
		FrontSize:     frontSize,
		Best:          best.Fitness.Clone(),
		Mean:          mean,
		BestOverall:   e.pipeline.WeightedScore(best.Fitness),
		Source:        source,
		Evaluations:   evaluations,
		Failures:      failures,
		Warnings:      warnings,
		ElapsedMillis: time.Since(start).Milliseconds(),
	}
}

// maybeTrainSurrogate retrains on the accumulated simulator samples.
// Training failures never abort the run: the prior model stays in place and
// the condition surfaces as a warning.
func (e *Engine) maybeTrainSurrogate() []string {
	if e.cfg.Surrogate == nil {
		return nil
	}
	err := e.cfg.Surrogate.Train(e.pipeline.Samples())
	if err == nil {
		return nil
	}
	if errors.Is(err, surrogate.ErrInsufficientData) || errors.Is(err, surrogate.ErrDegenerateVariance) {
		e.cfg.Logger.V(1).Info("surrogate training deferred", "reason", err.Error())
		return []string{fmt.Sprintf("surrogate training deferred: %v", err)}
	}
	e.cfg.Logger.Info("surrogate training failed, keeping previous model", "error", err.Error())
	return []string{fmt.Sprintf("surrogate training failed: %v", err)}
}

func (e *Engine) notify(stats model.GenerationStats) {
	if e.cfg.Observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.cfg.Logger.Info("observer panicked", "generation", stats.Generation, "panic", fmt.Sprint(r))
		}
	}()
	e.cfg.Observer.Observe(stats)
}

func (e *Engine) finish(pop []*Individual, history []model.GenerationStats, stopped bool) *Result {
	result := &Result{History: history, Stopped: stopped}
	if len(pop) == 0 {
		return result
	}
	best := bestOf(pop)
	result.Best = best.Genome.Clone(best.Genome.ID)
	result.BestFitness = best.Fitness.Clone()
	result.BestOverall = e.pipeline.WeightedScore(best.Fitness)
	result.Population = pop
	return result
}

// bestOf picks the first-front member with the largest sum of min-max
// normalised objectives. Ties break on genome ID so the choice is stable.
func bestOf(pop []*Individual) *Individual {
	var front []*Individual
	for _, ind := range pop {
		if ind.Rank == 0 {
			front = append(front, ind)
		}
	}
	if len(front) == 0 {
		front = pop
	}
	if len(front) == 1 {
		return front[0]
	}

	objectives := len(front[0].Fitness)
	lo := make([]float64, objectives)
	hi := make([]float64, objectives)
	for k := 0; k < objectives; k++ {
		lo[k] = math.Inf(1)
		hi[k] = math.Inf(-1)
		for _, ind := range front {
			if ind.Fitness[k] < lo[k] {
				lo[k] = ind.Fitness[k]
			}
			if ind.Fitness[k] > hi[k] {
				hi[k] = ind.Fitness[k]
			}
		}
	}

	score := func(ind *Individual) float64 {
		total := 0.0
		for k := 0; k < objectives; k++ {
			span := hi[k] - lo[k]
			if span == 0 {
				total += 1
				continue
			}
			total += (ind.Fitness[k] - lo[k]) / span
		}
		return total
	}

	best := front[0]
	bestScore := score(best)
	for _, ind := range front[1:] {
		s := score(ind)
		if s > bestScore || (s == bestScore && ind.Genome.ID < best.Genome.ID) {
			best = ind
			bestScore = s
		}
	}
	return best
}

// frontMaxima is the stall signature: the per-objective maxima over the
// first front.
func frontMaxima(pop []*Individual) model.FitnessVector {
	var maxima model.FitnessVector
	for _, ind := range pop {
		if ind.Rank != 0 {
			continue
		}
		if maxima == nil {
			maxima = ind.Fitness.Clone()
			continue
		}
		for k := range maxima {
			if k < len(ind.Fitness) && ind.Fitness[k] > maxima[k] {
				maxima[k] = ind.Fitness[k]
			}
		}
	}
	return maxima
}

func vectorsEqual(a, b model.FitnessVector) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if a[k] != b[k] {
			return false
		}
	}
	return true
}

func offspringGenomes(inds []*Individual) []model.Genome {
	out := make([]model.Genome, len(inds))
	for i, ind := range inds {
		out[i] = ind.Genome
	}
	return out
}

func genomeID(gen, idx int) string {
	return fmt.Sprintf("g%d-i%d", gen, idx)
}

func canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// deriveSeed mixes the run seed with generation and stream indexes so every
// parent pair gets an independent, reproducible random stream.
func deriveSeed(seed int64, generation, index int) int64 {
	z := uint64(seed)
	z ^= uint64(generation+1) * 0x9e3779b97f4a7c15
	z ^= uint64(index+1) * 0xbf58476d1ce4e5b9
	z ^= z >> 30
	z *= 0xbf58476d1ce4e5b9
	z ^= z >> 27
	z *= 0x94d049bb133111eb
	z ^= z >> 31
	return int64(z)
}
