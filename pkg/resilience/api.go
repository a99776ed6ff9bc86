// Package resilience is the embedding API for the building design
// optimiser: it wires the evolutionary engine, the surrogate, persistence
// and run artifacts behind a single client.
package resilience

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/gabibrouze/evolving-resilience/internal/bim"
	"github.com/gabibrouze/evolving-resilience/internal/genome"
	"github.com/gabibrouze/evolving-resilience/internal/model"
	"github.com/gabibrouze/evolving-resilience/internal/nsga"
	"github.com/gabibrouze/evolving-resilience/internal/sim"
	"github.com/gabibrouze/evolving-resilience/internal/stats"
	"github.com/gabibrouze/evolving-resilience/internal/storage"
	"github.com/gabibrouze/evolving-resilience/internal/surrogate"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultDBPath       = "resilience.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	Logger       logr.Logger
}

type Client struct {
	store        storage.Store
	artifactsDir string
	log          logr.Logger
}

// ProgressUpdate is the per-generation callback payload.
type ProgressUpdate struct {
	Generation  int
	FrontSize   int
	BestOverall float64
	Source      string
	Evaluations int
	Failures    int
	Warnings    []string
}

type RunRequest struct {
	Objectives  []string
	Weights     map[string]float64
	Population  int
	Generations int
	// CrossoverRate and MutationRate are optional: nil picks the defaults
	// (0.9 and 0.1). A pointer to zero disables the operator.
	CrossoverRate     *float64
	MutationRate      *float64
	MutationStrength  float64
	Seed              int64
	Workers           int
	SurrogateInterval int
	SurrogateSamples  int
	StallGenerations  int
	Progress          func(ProgressUpdate)
}

type RunSummary struct {
	RunID        string
	ArtifactsDir string
	Objectives   []string
	BestDesignID string
	BestFitness  map[string]float64
	BestOverall  float64
	Generations  int
	FrontSize    int
	Stopped      bool
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Objectives       []string
	Population       int
	Generations      int
	Seed             int64
	SurrogateEnabled bool
	BestOverall      float64
	Stopped          bool
}

type HistoryItem struct {
	Generation    int
	FrontSize     int
	Best          map[string]float64
	Mean          map[string]float64
	BestOverall   float64
	Source        string
	Evaluations   int
	Failures      int
	Warnings      []string
	ElapsedMillis int64
}

type DesignItem struct {
	ID           string
	RunID        string
	Generation   int
	OverallScore float64
	Fitness      map[string]float64
	Source       string
	Design       genome.BuildingDesign
}

// DesignReport is the outcome of importing and scoring an external design.
type DesignReport struct {
	DesignID string
	Fitness  map[string]float64
	Overall  float64
	Design   genome.BuildingDesign
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	log := opts.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		artifactsDir: artifactsDir,
		log:          log,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Objectives lists every registered objective evaluator.
func (c *Client) Objectives() []string {
	return sim.Names()
}

// Run executes one optimization run, persists its outcome and writes the
// artifact directory. A cancelled context still returns the best state
// reached, marked Stopped.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if len(req.Objectives) == 0 {
		req.Objectives = sim.DefaultObjectives()
	}
	if req.Population <= 0 {
		req.Population = 50
	}
	if req.Generations <= 0 {
		req.Generations = 100
	}
	crossoverRate := 0.9
	if req.CrossoverRate != nil {
		crossoverRate = *req.CrossoverRate
	}
	mutationRate := 0.1
	if req.MutationRate != nil {
		mutationRate = *req.MutationRate
	}
	if req.MutationStrength == 0 {
		req.MutationStrength = 0.1
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}

	var surrogateModel *surrogate.Model
	var engineSurrogate nsga.SurrogateModel
	if req.SurrogateInterval > 0 {
		m, err := surrogate.New(surrogate.Config{
			Objectives: req.Objectives,
			MinSamples: req.SurrogateSamples,
			Logger:     c.log.WithName("surrogate"),
		})
		if err != nil {
			return RunSummary{}, err
		}
		surrogateModel = m
		engineSurrogate = m
	}

	var observer nsga.Observer
	if req.Progress != nil {
		progress := req.Progress
		observer = nsga.ObserverFunc(func(s model.GenerationStats) {
			progress(ProgressUpdate{
				Generation:  s.Generation,
				FrontSize:   s.FrontSize,
				BestOverall: s.BestOverall,
				Source:      string(s.Source),
				Evaluations: s.Evaluations,
				Failures:    s.Failures,
				Warnings:    s.Warnings,
			})
		})
	}

	engine, err := nsga.New(nsga.Config{
		PopulationSize:    req.Population,
		Generations:       req.Generations,
		CrossoverRate:     crossoverRate,
		MutationRate:      mutationRate,
		MutationStrength:  req.MutationStrength,
		Seed:              req.Seed,
		Objectives:        req.Objectives,
		Weights:           req.Weights,
		Workers:           req.Workers,
		SurrogateInterval: req.SurrogateInterval,
		Surrogate:         engineSurrogate,
		StallGenerations:  req.StallGenerations,
		Observer:          observer,
		Logger:            c.log.WithName("engine"),
	})
	if err != nil {
		return RunSummary{}, err
	}
	objectives := engine.Objectives()

	result, err := engine.Evolve(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	runID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)

	run := model.RunRecord{
		VersionedRecord:  storage.Stamp(),
		RunID:            runID,
		CreatedAtUTC:     now,
		Objectives:       objectives,
		PopulationSize:   req.Population,
		Generations:      req.Generations,
		Seed:             req.Seed,
		SurrogateEnabled: req.SurrogateInterval > 0,
		BestGenome:       result.Best,
		BestFitness:      result.BestFitness,
		Stopped:          result.Stopped,
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, err
	}

	frontSize := 0
	for _, ind := range result.Population {
		record := model.DesignRecord{
			VersionedRecord: storage.Stamp(),
			ID:              runID + "/" + ind.Genome.ID,
			RunID:           runID,
			Generation:      ind.Generation,
			Genome:          ind.Genome,
			Fitness:         ind.Fitness,
			Objectives:      objectives,
			OverallScore:    engine.Pipeline().WeightedScore(ind.Fitness),
			Source:          ind.Source,
			CreatedAtUTC:    now,
		}
		if ind.Rank == 0 {
			frontSize++
		}
		if err := c.store.SaveDesign(ctx, record); err != nil {
			return RunSummary{}, err
		}
	}
	if err := c.store.SaveHistory(ctx, runID, result.History); err != nil {
		return RunSummary{}, err
	}

	runCfg := stats.RunConfig{
		RunID:             runID,
		Objectives:        objectives,
		Weights:           req.Weights,
		PopulationSize:    req.Population,
		Generations:       req.Generations,
		CrossoverRate:     crossoverRate,
		MutationRate:      mutationRate,
		MutationStrength:  req.MutationStrength,
		Seed:              req.Seed,
		Workers:           req.Workers,
		SurrogateInterval: req.SurrogateInterval,
		StallGenerations:  req.StallGenerations,
	}
	runDir, err := c.writeArtifacts(runCfg, now, result, surrogateModel, engine)
	if err != nil {
		return RunSummary{}, err
	}

	return RunSummary{
		RunID:        runID,
		ArtifactsDir: runDir,
		Objectives:   objectives,
		BestDesignID: runID + "/" + result.Best.ID,
		BestFitness:  fitnessMap(objectives, result.BestFitness),
		BestOverall:  result.BestOverall,
		Generations:  len(result.History) - 1,
		FrontSize:    frontSize,
		Stopped:      result.Stopped,
	}, nil
}

func (c *Client) writeArtifacts(cfg stats.RunConfig, createdAt string,
	result *nsga.Result, surrogateModel *surrogate.Model, engine *nsga.Engine) (string, error) {

	var front []stats.FrontEntry
	for _, ind := range result.Population {
		if ind.Rank != 0 {
			continue
		}
		front = append(front, stats.FrontEntry{
			Rank:     ind.Rank,
			GenomeID: ind.Genome.ID,
			Genome:   ind.Genome,
			Fitness:  fitnessMap(cfg.Objectives, ind.Fitness),
			Overall:  engine.Pipeline().WeightedScore(ind.Fitness),
		})
	}

	var importance map[string]map[string]float64
	if surrogateModel != nil && surrogateModel.Trained() {
		imp, err := surrogateModel.FeatureImportance()
		if err == nil {
			importance = imp
		} else {
			c.log.V(1).Info("feature importance unavailable", "error", err.Error())
		}
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config:            cfg,
		History:           result.History,
		Front:             front,
		FeatureImportance: importance,
		FinalBestOverall:  result.BestOverall,
		Stopped:           result.Stopped,
	})
	if err != nil {
		return "", err
	}

	err = stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            cfg.RunID,
		Objectives:       strings.Join(cfg.Objectives, ","),
		PopulationSize:   cfg.PopulationSize,
		Generations:      cfg.Generations,
		Seed:             cfg.Seed,
		SurrogateEnabled: cfg.SurrogateInterval > 0,
		FinalBestOverall: result.BestOverall,
		Stopped:          result.Stopped,
		CreatedAtUTC:     createdAt,
	})
	if err != nil {
		return "", err
	}
	return runDir, nil
}

// Runs lists persisted runs, newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]RunItem, error) {
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	items := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		items = append(items, RunItem{
			RunID:            run.RunID,
			CreatedAtUTC:     run.CreatedAtUTC,
			Objectives:       run.Objectives,
			Population:       run.PopulationSize,
			Generations:      run.Generations,
			Seed:             run.Seed,
			SurrogateEnabled: run.SurrogateEnabled,
			BestOverall:      overallOf(run),
			Stopped:          run.Stopped,
		})
	}
	return items, nil
}

// History returns a run's per-generation progress. An empty runID resolves
// to the latest run.
func (c *Client) History(ctx context.Context, runID string, limit int) ([]HistoryItem, error) {
	run, err := c.resolveRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	history, ok, err := c.store.GetHistory(ctx, run.RunID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no history for run %s", run.RunID)
	}
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	items := make([]HistoryItem, 0, len(history))
	for _, gen := range history {
		items = append(items, HistoryItem{
			Generation:    gen.Generation,
			FrontSize:     gen.FrontSize,
			Best:          fitnessMap(run.Objectives, gen.Best),
			Mean:          fitnessMap(run.Objectives, gen.Mean),
			BestOverall:   gen.BestOverall,
			Source:        string(gen.Source),
			Evaluations:   gen.Evaluations,
			Failures:      gen.Failures,
			Warnings:      gen.Warnings,
			ElapsedMillis: gen.ElapsedMillis,
		})
	}
	return items, nil
}

// Top returns a run's highest-scoring persisted designs.
func (c *Client) Top(ctx context.Context, runID string, limit int) ([]DesignItem, error) {
	run, err := c.resolveRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	designs, err := c.store.TopDesigns(ctx, run.RunID, limit)
	if err != nil {
		return nil, err
	}

	items := make([]DesignItem, 0, len(designs))
	for _, d := range designs {
		items = append(items, DesignItem{
			ID:           d.ID,
			RunID:        d.RunID,
			Generation:   d.Generation,
			OverallScore: d.OverallScore,
			Fitness:      fitnessMap(d.Objectives, d.Fitness),
			Source:       string(d.Source),
			Design:       genome.Decode(d.Genome),
		})
	}
	return items, nil
}

// ExportParetoChart renders a run's Pareto front projected onto two
// objectives as an HTML scatter chart and returns the output path.
func (c *Client) ExportParetoChart(ctx context.Context, runID, xObjective, yObjective, outPath string) (string, error) {
	run, err := c.resolveRun(ctx, runID)
	if err != nil {
		return "", err
	}

	front, ok, err := stats.ReadFront(c.artifactsDir, run.RunID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no artifacts for run %s", run.RunID)
	}

	if xObjective == "" && len(run.Objectives) > 0 {
		xObjective = run.Objectives[0]
	}
	if yObjective == "" && len(run.Objectives) > 1 {
		yObjective = run.Objectives[1]
	}
	if outPath == "" {
		outPath = filepath.Join(c.artifactsDir, run.RunID, "pareto_front.html")
	}
	if err := stats.PlotFront(front, xObjective, yObjective, outPath); err != nil {
		return "", err
	}
	return outPath, nil
}

// ImportDesign loads an external design-exchange document, scores it with
// the default objectives and returns the report. The design is not
// persisted; it exists to benchmark hand-made designs against evolved ones.
func (c *Client) ImportDesign(ctx context.Context, path string) (DesignReport, error) {
	g, err := bim.ReadFile(path, "imported-"+uuid.NewString()[:8])
	if err != nil {
		return DesignReport{}, err
	}

	objectives := sim.DefaultObjectives()
	evaluators, err := sim.Resolve(objectives)
	if err != nil {
		return DesignReport{}, err
	}

	design := genome.Decode(g)
	fitness := make(map[string]float64, len(evaluators))
	total := 0.0
	for _, evaluator := range evaluators {
		if err := ctx.Err(); err != nil {
			return DesignReport{}, err
		}
		score, err := evaluator.Evaluate(design)
		if err != nil {
			return DesignReport{}, fmt.Errorf("evaluate %s: %w", evaluator.Name(), err)
		}
		fitness[evaluator.Name()] = score
		total += score
	}

	return DesignReport{
		DesignID: g.ID,
		Fitness:  fitness,
		Overall:  total / float64(len(evaluators)),
		Design:   design,
	}, nil
}

// ExportDesign writes a persisted design as a design-exchange document. An
// empty designID exports the latest run's best genome.
func (c *Client) ExportDesign(ctx context.Context, designID, outPath string) (string, error) {
	var g model.Genome
	var fitness map[string]float64

	if designID == "" {
		run, err := c.resolveRun(ctx, "")
		if err != nil {
			return "", err
		}
		g = run.BestGenome
		fitness = fitnessMap(run.Objectives, run.BestFitness)
		if outPath == "" {
			outPath = filepath.Join(c.artifactsDir, run.RunID, "best_design.json")
		}
	} else {
		design, ok, err := c.store.GetDesign(ctx, designID)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("design not found: %s", designID)
		}
		g = design.Genome
		fitness = fitnessMap(design.Objectives, design.Fitness)
		if outPath == "" {
			outPath = filepath.Join(c.artifactsDir, design.RunID, "design_"+g.ID+".json")
		}
	}

	if err := bim.WriteFile(outPath, g, fitness); err != nil {
		return "", err
	}
	return outPath, nil
}

func (c *Client) resolveRun(ctx context.Context, runID string) (model.RunRecord, error) {
	if runID != "" {
		run, ok, err := c.store.GetRun(ctx, runID)
		if err != nil {
			return model.RunRecord{}, err
		}
		if !ok {
			return model.RunRecord{}, fmt.Errorf("run not found: %s", runID)
		}
		return run, nil
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return model.RunRecord{}, err
	}
	if len(runs) == 0 {
		return model.RunRecord{}, fmt.Errorf("no runs recorded")
	}
	return runs[0], nil
}

func fitnessMap(objectives []string, v model.FitnessVector) map[string]float64 {
	out := make(map[string]float64, len(objectives))
	for k, name := range objectives {
		if k < len(v) {
			out[name] = v[k]
		}
	}
	return out
}

func overallOf(run model.RunRecord) float64 {
	if len(run.BestFitness) == 0 {
		return 0
	}
	total := 0.0
	for _, score := range run.BestFitness {
		total += score
	}
	return total / float64(len(run.BestFitness))
}
