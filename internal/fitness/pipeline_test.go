package fitness

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/gabibrouze/evolving-resilience/internal/genome"
	"github.com/gabibrouze/evolving-resilience/internal/model"
	"github.com/gabibrouze/evolving-resilience/internal/sim"
)

type faultyEvaluator struct{}

func (faultyEvaluator) Name() string { return "faulty-test-objective" }

func (faultyEvaluator) Evaluate(genome.BuildingDesign) (float64, error) {
	return 0, errors.New("simulator blew up")
}

var registerFaulty sync.Once

func withFaultyObjective(t *testing.T) {
	t.Helper()
	registerFaulty.Do(func() {
		if err := sim.Register(faultyEvaluator{}); err != nil {
			t.Fatalf("register faulty evaluator: %v", err)
		}
	})
}

type stubPredictor struct {
	trained bool
	vector  model.FitnessVector
	err     error
	calls   int
}

func (s *stubPredictor) Trained() bool { return s.trained }

func (s *stubPredictor) Predict(model.Genome) (model.FitnessVector, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector.Clone(), nil
}

func randomGenomes(n int, seed int64) []model.Genome {
	rng := rand.New(rand.NewSource(seed))
	out := make([]model.Genome, n)
	for i := range out {
		out[i] = genome.Random(rng, "g")
	}
	return out
}

func TestSimulatorBatchProducesOrderedVectors(t *testing.T) {
	p, err := NewPipeline(Config{Workers: 4})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	genomes := randomGenomes(20, 5)
	res, err := p.Evaluate(context.Background(), genomes, false)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Source != model.SourceSimulator {
		t.Fatalf("expected simulator source, got %s", res.Source)
	}
	if len(res.Vectors) != len(genomes) {
		t.Fatalf("expected %d vectors, got %d", len(genomes), len(res.Vectors))
	}

	objectives := p.Objectives()
	evaluators, err := sim.Resolve(objectives)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for i, g := range genomes {
		design := genome.Decode(g)
		for k, evaluator := range evaluators {
			want, err := evaluator.Evaluate(design)
			if err != nil {
				t.Fatalf("direct evaluate: %v", err)
			}
			if res.Vectors[i][k] != want {
				t.Fatalf("vector %d objective %s: got %v want %v", i, objectives[k], res.Vectors[i][k], want)
			}
		}
	}
}

func TestParallelEvaluationMatchesSerial(t *testing.T) {
	genomes := randomGenomes(30, 9)

	serial, err := NewPipeline(Config{Workers: 1})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	parallel, err := NewPipeline(Config{Workers: 8})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	a, err := serial.Evaluate(context.Background(), genomes, false)
	if err != nil {
		t.Fatalf("serial: %v", err)
	}
	b, err := parallel.Evaluate(context.Background(), genomes, false)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}

	for i := range a.Vectors {
		for k := range a.Vectors[i] {
			if a.Vectors[i][k] != b.Vectors[i][k] {
				t.Fatalf("worker count changed result at %d/%d", i, k)
			}
		}
	}
}

func TestFailingEvaluatorYieldsWorstCase(t *testing.T) {
	withFaultyObjective(t)

	p, err := NewPipeline(Config{
		Objectives: []string{"structural", "faulty-test-objective"},
		Workers:    2,
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	genomes := randomGenomes(5, 13)
	res, err := p.Evaluate(context.Background(), genomes, false)
	if err != nil {
		t.Fatalf("evaluate must not abort on evaluator failure: %v", err)
	}
	if res.Failures != len(genomes) {
		t.Fatalf("expected %d failures, got %d", len(genomes), res.Failures)
	}
	for i, v := range res.Vectors {
		if v[0] != 0 || v[1] != 0 {
			t.Fatalf("vector %d: failed individual must carry worst-case fitness, got %v", i, v)
		}
	}
}

func TestSurrogateBatchSkipsSamples(t *testing.T) {
	predictor := &stubPredictor{trained: true, vector: model.FitnessVector{0.5, 0.5, 0.5, 0.5}}
	p, err := NewPipeline(Config{Workers: 2, Surrogate: predictor})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	genomes := randomGenomes(8, 17)
	res, err := p.Evaluate(context.Background(), genomes, true)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Source != model.SourceSurrogate {
		t.Fatalf("expected surrogate source, got %s", res.Source)
	}
	if predictor.calls != len(genomes) {
		t.Fatalf("expected %d predictions, got %d", len(genomes), predictor.calls)
	}
	if p.SampleCount() != 0 {
		t.Fatalf("surrogate scores must not enter the training buffer, have %d", p.SampleCount())
	}
}

func TestUntrainedSurrogateFallsBackToSimulators(t *testing.T) {
	predictor := &stubPredictor{trained: false}
	p, err := NewPipeline(Config{Workers: 2, Surrogate: predictor})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	genomes := randomGenomes(6, 19)
	res, err := p.Evaluate(context.Background(), genomes, true)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Source != model.SourceSimulator {
		t.Fatalf("expected simulator fallback, got %s", res.Source)
	}
	if predictor.calls != 0 {
		t.Fatalf("untrained surrogate must not be queried, got %d calls", predictor.calls)
	}
	if p.SampleCount() != len(genomes) {
		t.Fatalf("expected %d buffered samples, got %d", len(genomes), p.SampleCount())
	}
}

func TestSampleBufferAccumulates(t *testing.T) {
	p, err := NewPipeline(Config{Workers: 2})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if _, err := p.Evaluate(context.Background(), randomGenomes(4, 23), false); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if _, err := p.Evaluate(context.Background(), randomGenomes(6, 29), false); err != nil {
		t.Fatalf("second batch: %v", err)
	}

	samples := p.Samples()
	if len(samples) != 10 {
		t.Fatalf("expected 10 samples, got %d", len(samples))
	}
	for _, s := range samples {
		if len(s.Fitness) != len(p.Objectives()) {
			t.Fatalf("sample fitness has %d objectives, want %d", len(s.Fitness), len(p.Objectives()))
		}
	}
}

func TestWeightedScoreReportsOnly(t *testing.T) {
	p, err := NewPipeline(Config{
		Weights: map[string]float64{"structural": 3, "energy": 1, "livability": 0, "cost": 0},
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	v := model.FitnessVector{1.0, 0.5, 0.2, 0.2}
	got := p.WeightedScore(v)
	want := (3*1.0 + 1*0.5) / 4.0
	if got != want {
		t.Fatalf("weighted score: got %v want %v", got, want)
	}

	unweighted, err := NewPipeline(Config{})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	mean := unweighted.WeightedScore(model.FitnessVector{0.2, 0.4, 0.6, 0.8})
	if mean != 0.5 {
		t.Fatalf("expected plain mean with no weights, got %v", mean)
	}

	if _, err := NewPipeline(Config{Weights: map[string]float64{"structural": -1}}); err == nil {
		t.Fatal("expected error for negative weight")
	}
}

func TestCancelledContextStopsEvaluation(t *testing.T) {
	p, err := NewPipeline(Config{Workers: 2})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Evaluate(ctx, randomGenomes(10, 31), false)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
