// Package surrogate fits one ridge regressor per objective over standardized
// genome features, giving the engine a cheap approximation of the simulator
// pipeline between recalibration generations.
package surrogate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gabibrouze/evolving-resilience/internal/genome"
	"github.com/gabibrouze/evolving-resilience/internal/model"
)

var (
	// ErrInsufficientData reports a training set below the configured minimum.
	ErrInsufficientData = errors.New("insufficient training samples")
	// ErrDegenerateVariance reports an objective whose targets carry no signal.
	ErrDegenerateVariance = errors.New("degenerate fitness variance")
	// ErrNotTrained reports a prediction attempt before a successful Train.
	ErrNotTrained = errors.New("model is not trained")
)

const (
	defaultMinSamples = 20
	defaultDamping    = 1e-3
	varianceFloor     = 1e-12
)

// Sample pairs a genome with its simulator-produced fitness vector.
type Sample struct {
	Genome  model.Genome
	Fitness model.FitnessVector
}

type Config struct {
	// Objectives fixes the number and order of regressors.
	Objectives []string
	// MinSamples is the smallest training set Train accepts.
	MinSamples int
	// Damping is the Tikhonov regularization weight.
	Damping float64
	Logger  logr.Logger
}

type regressor struct {
	weights   []float64 // standardized feature space
	intercept float64
}

// Model holds the trained per-objective regressors. Train replaces the whole
// regressor set atomically; a failed Train leaves the previous model intact.
type Model struct {
	cfg Config

	mu      sync.RWMutex
	trained bool
	means   []float64
	scales  []float64
	regs    []regressor
}

func New(cfg Config) (*Model, error) {
	if len(cfg.Objectives) == 0 {
		return nil, fmt.Errorf("objectives are required")
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = defaultMinSamples
	}
	if cfg.Damping <= 0 {
		cfg.Damping = defaultDamping
	}
	if cfg.Logger.GetSink() == nil {
		cfg.Logger = logr.Discard()
	}
	return &Model{cfg: cfg}, nil
}

// Trained reports whether a successful Train has completed.
func (m *Model) Trained() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trained
}

// Train fits one regressor per objective on the given samples. It fails with
// ErrInsufficientData below the configured minimum and ErrDegenerateVariance
// when an objective's targets are effectively constant; in both cases any
// previously trained model keeps serving predictions.
func (m *Model) Train(samples []Sample) error {
	if len(samples) < m.cfg.MinSamples {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientData, len(samples), m.cfg.MinSamples)
	}

	n := len(samples)
	d := genome.Len()

	features := mat.NewDense(n, d, nil)
	for i, s := range samples {
		clamped := genome.Clamp(s.Genome)
		features.SetRow(i, clamped.Values)
	}

	means := make([]float64, d)
	scales := make([]float64, d)
	col := make([]float64, n)
	standardized := mat.NewDense(n, d, nil)
	for j := 0; j < d; j++ {
		mat.Col(col, j, features)
		mean, stddev := stat.MeanStdDev(col, nil)
		means[j] = mean
		if stddev < varianceFloor {
			// Constant feature: center it out of the regression.
			stddev = 1
		}
		scales[j] = stddev
		for i := 0; i < n; i++ {
			standardized.Set(i, j, (col[i]-mean)/stddev)
		}
	}

	regs := make([]regressor, len(m.cfg.Objectives))
	targets := make([]float64, n)
	for k, objective := range m.cfg.Objectives {
		for i, s := range samples {
			if k >= len(s.Fitness) {
				return fmt.Errorf("sample %d fitness has %d objectives, want %d", i, len(s.Fitness), len(m.cfg.Objectives))
			}
			targets[i] = s.Fitness[k]
		}
		if stat.Variance(targets, nil) < varianceFloor {
			return fmt.Errorf("%w: objective %s", ErrDegenerateVariance, objective)
		}

		reg, err := fitRidge(standardized, targets, m.cfg.Damping)
		if err != nil {
			return fmt.Errorf("fit objective %s: %w", objective, err)
		}
		regs[k] = reg
	}

	m.mu.Lock()
	m.means = means
	m.scales = scales
	m.regs = regs
	m.trained = true
	m.mu.Unlock()

	m.cfg.Logger.V(1).Info("surrogate retrained", "samples", n, "objectives", len(regs))
	return nil
}

// fitRidge solves (Z'Z + lambda*n*I) w = Z'y via Cholesky.
func fitRidge(z *mat.Dense, y []float64, damping float64) (regressor, error) {
	n, d := z.Dims()

	var gram mat.Dense
	gram.Mul(z.T(), z)
	sym := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			v := gram.At(i, j)
			if i == j {
				v += damping * float64(n)
			}
			sym.SetSym(i, j, v)
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return regressor{}, fmt.Errorf("normal equations are not positive definite")
	}

	intercept := stat.Mean(y, nil)
	centered := make([]float64, n)
	for i, v := range y {
		centered[i] = v - intercept
	}

	var rhs mat.VecDense
	rhs.MulVec(z.T(), mat.NewVecDense(n, centered))

	var weights mat.VecDense
	if err := chol.SolveVecTo(&weights, &rhs); err != nil {
		return regressor{}, err
	}
	return regressor{weights: weights.RawVector().Data, intercept: intercept}, nil
}

// Predict estimates the fitness vector for a genome without invoking the
// simulators. Scores are clamped to [0,1].
func (m *Model) Predict(g model.Genome) (model.FitnessVector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, ErrNotTrained
	}

	values := genome.Clamp(g).Values
	out := make(model.FitnessVector, len(m.regs))
	for k, reg := range m.regs {
		score := reg.intercept
		for j, w := range reg.weights {
			score += w * (values[j] - m.means[j]) / m.scales[j]
		}
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		out[k] = score
	}
	return out, nil
}

// FeatureImportance reports, per objective and per gene, the relative weight
// the regressor assigns to that gene, normalized to sum to one. The mapping
// is informational only and never influences the search.
func (m *Model) FeatureImportance() (map[string]map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, ErrNotTrained
	}

	names := genome.Names()
	out := make(map[string]map[string]float64, len(m.cfg.Objectives))
	for k, objective := range m.cfg.Objectives {
		weights := m.regs[k].weights
		total := 0.0
		for _, w := range weights {
			total += abs(w)
		}
		byGene := make(map[string]float64, len(names))
		for j, name := range names {
			if total > 0 {
				byGene[name] = abs(weights[j]) / total
			} else {
				byGene[name] = 1 / float64(len(names))
			}
		}
		out[objective] = byGene
	}
	return out, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
