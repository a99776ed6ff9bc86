// Package fitness routes genomes to the objective simulators or the trained
// surrogate, assembles fixed-order fitness vectors, and accumulates the
// training-sample buffer the surrogate learns from.
package fitness

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/go-logr/logr"

	"github.com/gabibrouze/evolving-resilience/internal/genome"
	"github.com/gabibrouze/evolving-resilience/internal/model"
	"github.com/gabibrouze/evolving-resilience/internal/sim"
	"github.com/gabibrouze/evolving-resilience/internal/surrogate"
)

// Predictor is the surrogate capability the pipeline consumes.
type Predictor interface {
	Trained() bool
	Predict(model.Genome) (model.FitnessVector, error)
}

type Config struct {
	// Objectives fixes the fitness vector order. Each name must be a
	// registered evaluator.
	Objectives []string
	// Workers bounds the parallel simulator evaluations.
	Workers int
	// Weights bias reporting and persistence summaries only. They must
	// never reach the raw vectors non-dominated sorting consumes.
	Weights map[string]float64
	// Surrogate, when set and trained, can serve whole generations.
	Surrogate Predictor
	Logger    logr.Logger
}

// Result is the outcome of evaluating one batch of genomes.
type Result struct {
	Vectors []model.FitnessVector
	// Source records which backend produced every vector in this batch.
	Source model.FitnessSource
	// Failures counts genomes that received worst-case fitness after a
	// simulator error.
	Failures int
}

// Pipeline owns the accumulated training-sample buffer. The buffer is
// append-only during a run and mutated by nothing else.
type Pipeline struct {
	cfg        Config
	evaluators []sim.Evaluator

	mu      sync.Mutex
	samples []surrogate.Sample
}

func NewPipeline(cfg Config) (*Pipeline, error) {
	if len(cfg.Objectives) == 0 {
		cfg.Objectives = sim.DefaultObjectives()
	}
	evaluators, err := sim.Resolve(cfg.Objectives)
	if err != nil {
		return nil, err
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	for name, w := range cfg.Weights {
		if w < 0 || math.IsNaN(w) {
			return nil, fmt.Errorf("objective weight must be >= 0: %s", name)
		}
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}
	return &Pipeline{cfg: cfg, evaluators: evaluators}, nil
}

// Objectives returns the fitness vector order.
func (p *Pipeline) Objectives() []string {
	return append([]string(nil), p.cfg.Objectives...)
}

// Evaluate scores every genome in the batch. With preferSurrogate set and a
// trained surrogate available the batch is served by prediction; otherwise
// the simulators run under the bounded worker pool and the results feed the
// training buffer.
func (p *Pipeline) Evaluate(ctx context.Context, genomes []model.Genome, preferSurrogate bool) (Result, error) {
	if len(genomes) == 0 {
		return Result{Source: model.SourceSimulator}, nil
	}
	if preferSurrogate && p.cfg.Surrogate != nil && p.cfg.Surrogate.Trained() {
		return p.predictBatch(ctx, genomes)
	}
	return p.simulateBatch(ctx, genomes)
}

func (p *Pipeline) predictBatch(ctx context.Context, genomes []model.Genome) (Result, error) {
	vectors := make([]model.FitnessVector, len(genomes))
	for i, g := range genomes {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		vec, err := p.cfg.Surrogate.Predict(g)
		if err != nil {
			// The surrogate went away mid-batch; ground truth still works.
			p.cfg.Logger.V(1).Info("surrogate predict failed, reverting batch to simulators", "error", err.Error())
			return p.simulateBatch(ctx, genomes)
		}
		vectors[i] = vec
	}
	return Result{Vectors: vectors, Source: model.SourceSurrogate}, nil
}

func (p *Pipeline) simulateBatch(ctx context.Context, genomes []model.Genome) (Result, error) {
	type job struct {
		idx int
	}
	type outcome struct {
		idx    int
		vector model.FitnessVector
		failed bool
		err    error
	}

	jobs := make(chan job)
	outcomes := make(chan outcome, len(genomes))

	workerCount := p.cfg.Workers
	if workerCount > len(genomes) {
		workerCount = len(genomes)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if err := ctx.Err(); err != nil {
					outcomes <- outcome{idx: j.idx, err: err}
					continue
				}
				vector, failed := p.evaluateOne(genomes[j.idx])
				outcomes <- outcome{idx: j.idx, vector: vector, failed: failed}
			}
		}()
	}

	for i := range genomes {
		jobs <- job{idx: i}
	}
	close(jobs)

	wg.Wait()
	close(outcomes)

	vectors := make([]model.FitnessVector, len(genomes))
	failures := 0
	for res := range outcomes {
		if res.err != nil {
			return Result{}, res.err
		}
		vectors[res.idx] = res.vector
		if res.failed {
			failures++
		}
	}

	p.mu.Lock()
	for i, g := range genomes {
		p.samples = append(p.samples, surrogate.Sample{Genome: g, Fitness: vectors[i].Clone()})
	}
	p.mu.Unlock()

	return Result{Vectors: vectors, Source: model.SourceSimulator, Failures: failures}, nil
}

// evaluateOne assembles the fixed-order vector for a single genome. A
// failing or non-finite evaluator demotes the whole individual to worst-case
// fitness instead of aborting the run.
func (p *Pipeline) evaluateOne(g model.Genome) (model.FitnessVector, bool) {
	design := genome.Decode(g)
	vector := make(model.FitnessVector, len(p.evaluators))
	for k, evaluator := range p.evaluators {
		score, err := evaluator.Evaluate(design)
		if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
			if err != nil {
				p.cfg.Logger.V(1).Info("evaluator failed, demoting individual to worst-case fitness",
					"objective", evaluator.Name(), "genome", g.ID, "error", err.Error())
			}
			return make(model.FitnessVector, len(p.evaluators)), true
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		vector[k] = score
	}
	return vector, false
}

// Samples returns a copy of the accumulated training buffer.
func (p *Pipeline) Samples() []surrogate.Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]surrogate.Sample(nil), p.samples...)
}

// SampleCount reports the training buffer size.
func (p *Pipeline) SampleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.samples)
}

// WeightedScore condenses a vector with the configured reporting weights.
// Missing weights default to 1 so an empty mapping averages all objectives.
// The result is for reporting and persistence ordering only.
func (p *Pipeline) WeightedScore(v model.FitnessVector) float64 {
	var total, weightSum float64
	for k, name := range p.cfg.Objectives {
		if k >= len(v) {
			break
		}
		w := 1.0
		if configured, ok := p.cfg.Weights[name]; ok {
			w = configured
		}
		total += w * v[k]
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return total / weightSum
}
