package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"

	"github.com/gabibrouze/evolving-resilience/internal/storage"
	"github.com/gabibrouze/evolving-resilience/pkg/resilience"
)

const artifactsDir = "artifacts"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "objectives":
		return runObjectives(ctx, args[1:])
	case "pareto":
		return runPareto(ctx, args[1:])
	case "import":
		return runImport(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func newClient(storeKind, dbPath string) (*resilience.Client, error) {
	return resilience.New(resilience.Options{
		StoreKind:    storeKind,
		DBPath:       dbPath,
		ArtifactsDir: artifactsDir,
		Logger:       klog.Background(),
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "resilience.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	objectives := fs.String("objectives", "", "comma-separated objective names (default structural,energy,livability,cost)")
	weights := fs.String("weights", "", "reporting weights as name=value pairs, comma-separated")
	population := fs.Int("population", 50, "population size")
	generations := fs.Int("generations", 100, "number of generations")
	crossover := fs.Float64("crossover-rate", 0.9, "crossover rate")
	mutation := fs.Float64("mutation-rate", 0.1, "mutation rate")
	strength := fs.Float64("mutation-strength", 0.1, "mutation strength as a fraction of each gene span")
	seed := fs.Int64("seed", 0, "random seed (0 picks a clock seed)")
	workers := fs.Int("workers", 4, "parallel evaluation workers")
	surrogate := fs.Int("surrogate-interval", 0, "run simulators every Nth generation, predict the rest (0 disables)")
	surrogateSamples := fs.Int("surrogate-samples", 0, "minimum training samples before the surrogate activates")
	stall := fs.Int("stall", 0, "stop after this many generations without front improvement (0 disables)")
	quiet := fs.Bool("quiet", false, "suppress per-generation progress")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "resilience.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	weightMap, err := parseWeights(*weights)
	if err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	req := resilience.RunRequest{
		Objectives:        splitList(*objectives),
		Weights:           weightMap,
		Population:        *population,
		Generations:       *generations,
		CrossoverRate:     crossover,
		MutationRate:      mutation,
		MutationStrength:  *strength,
		Seed:              *seed,
		Workers:           *workers,
		SurrogateInterval: *surrogate,
		SurrogateSamples:  *surrogateSamples,
		StallGenerations:  *stall,
	}
	if !*quiet {
		req.Progress = func(u resilience.ProgressUpdate) {
			fmt.Printf("gen=%d front=%d best=%.4f source=%s evals=%d", u.Generation, u.FrontSize, u.BestOverall, u.Source, u.Evaluations)
			if u.Failures > 0 {
				fmt.Printf(" failures=%d", u.Failures)
			}
			fmt.Println()
			for _, warning := range u.Warnings {
				fmt.Printf("  warning: %s\n", warning)
			}
		}
	}

	started := time.Now()
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	if summary.Stopped {
		fmt.Println("run stopped before completion, best state preserved")
	}
	fmt.Printf("run_id=%s generations=%d front=%d elapsed=%s\n",
		summary.RunID, summary.Generations, summary.FrontSize, time.Since(started).Round(time.Millisecond))
	fmt.Printf("best design=%s overall=%.4f\n", summary.BestDesignID, summary.BestOverall)
	for _, name := range summary.Objectives {
		fmt.Printf("  %s=%.4f\n", name, summary.BestFitness[name])
	}
	fmt.Printf("artifacts: %s\n", summary.ArtifactsDir)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit runs as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "resilience.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	runs, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	for _, run := range runs {
		age := run.CreatedAtUTC
		if created, err := time.Parse(time.RFC3339, run.CreatedAtUTC); err == nil {
			age = humanize.Time(created)
		}
		fmt.Printf("run_id=%s created=%s objectives=%s pop=%d gens=%d seed=%d surrogate=%t best=%.4f\n",
			run.RunID, age, strings.Join(run.Objectives, ","),
			run.Population, run.Generations, run.Seed, run.SurrogateEnabled, run.BestOverall)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id (empty for the latest run)")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit history as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "resilience.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	history, err := client.History(ctx, *runID, *limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	for _, gen := range history {
		fmt.Printf("gen=%d front=%d best=%.4f source=%s evals=%d failures=%d elapsed=%dms\n",
			gen.Generation, gen.FrontSize, gen.BestOverall, gen.Source,
			gen.Evaluations, gen.Failures, gen.ElapsedMillis)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id (empty for the latest run)")
	limit := fs.Int("limit", 10, "max designs to print")
	jsonOut := fs.Bool("json", false, "emit designs as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "resilience.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	designs, err := client.Top(ctx, *runID, *limit)
	if err != nil {
		return err
	}
	if len(designs) == 0 {
		fmt.Println("no designs recorded")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(designs)
	}

	for rank, d := range designs {
		fmt.Printf("#%d id=%s overall=%.4f source=%s floors=%d footprint=%sx%s material=%s\n",
			rank+1, d.ID, d.OverallScore, d.Source,
			d.Design.Floors.Count,
			humanize.FtoaWithDigits(d.Design.Envelope.Width, 1),
			humanize.FtoaWithDigits(d.Design.Envelope.Length, 1),
			d.Design.Structure.Material)
	}
	return nil
}

func runObjectives(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("objectives", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient("memory", "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	for _, name := range client.Objectives() {
		fmt.Println(name)
	}
	return nil
}

func runPareto(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("pareto", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id (empty for the latest run)")
	xObjective := fs.String("x", "", "objective on the x axis (default: first run objective)")
	yObjective := fs.String("y", "", "objective on the y axis (default: second run objective)")
	out := fs.String("out", "", "output HTML path (default: inside the run's artifacts directory)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "resilience.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	path, err := client.ExportParetoChart(ctx, *runID, *xObjective, *yObjective, *out)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	path := fs.String("file", "", "design-exchange document to score")
	jsonOut := fs.Bool("json", false, "emit the report as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("import requires --file")
	}

	client, err := newClient("memory", "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	report, err := client.ImportDesign(ctx, *path)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Printf("design=%s overall=%.4f\n", report.DesignID, report.Overall)
	for name, score := range report.Fitness {
		fmt.Printf("  %s=%.4f\n", name, score)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	designID := fs.String("design-id", "", "design id (empty exports the latest run's best design)")
	out := fs.String("out", "", "output path (default: inside the run's artifacts directory)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "resilience.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	path, err := client.ExportDesign(ctx, *designID, *out)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseWeights(value string) (map[string]float64, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	weights := make(map[string]float64)
	for _, pair := range strings.Split(value, ",") {
		name, raw, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("invalid weight %q, want name=value", pair)
		}
		weight, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight value %q: %w", raw, err)
		}
		weights[strings.TrimSpace(name)] = weight
	}
	return weights, nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: resilictl <init|run|runs|history|top|objectives|pareto|import|export> [flags]", msg)
}
