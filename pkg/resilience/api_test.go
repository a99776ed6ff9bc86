package resilience

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gabibrouze/evolving-resilience/internal/stats"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func runSmall(t *testing.T, client *Client) RunSummary {
	t.Helper()
	summary, err := client.Run(context.Background(), RunRequest{
		Objectives:  []string{"structural", "cost"},
		Population:  10,
		Generations: 3,
		Seed:        1234,
		Workers:     2,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return summary
}

func TestClientRunPersistsAndSummarises(t *testing.T) {
	client := newTestClient(t)
	var updates []ProgressUpdate

	summary, err := client.Run(context.Background(), RunRequest{
		Objectives:  []string{"structural", "cost"},
		Population:  10,
		Generations: 3,
		Seed:        1234,
		Workers:     2,
		Progress:    func(u ProgressUpdate) { updates = append(updates, u) },
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if summary.RunID == "" {
		t.Fatal("missing run id")
	}
	if summary.Generations != 3 {
		t.Fatalf("expected 3 generations, got %d", summary.Generations)
	}
	if summary.FrontSize < 1 {
		t.Fatalf("expected a non-empty front, got %d", summary.FrontSize)
	}
	if summary.Stopped {
		t.Fatal("run should have completed")
	}
	for _, name := range []string{"structural", "cost"} {
		score, ok := summary.BestFitness[name]
		if !ok || score < 0 || score > 1 {
			t.Fatalf("best fitness for %s out of range: %v (present %v)", name, score, ok)
		}
	}

	// One progress update per generation including the initial one.
	if len(updates) != 4 {
		t.Fatalf("expected 4 progress updates, got %d", len(updates))
	}
	if updates[0].Generation != 0 || updates[3].Generation != 3 {
		t.Fatalf("unexpected progress generations: %+v", updates)
	}

	// Artifact files land in the run directory.
	for _, name := range []string{"run_config.json", "fitness_history.json", "fitness_history.csv", "pareto_front.json"} {
		if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, name)); err != nil {
			t.Fatalf("missing artifact %s: %v", name, err)
		}
	}
}

func TestClientRunsHistoryAndTop(t *testing.T) {
	client := newTestClient(t)
	summary := runSmall(t, client)
	ctx := context.Background()

	runs, err := client.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID {
		t.Fatalf("unexpected runs listing: %+v", runs)
	}
	if runs[0].Population != 10 || runs[0].Seed != 1234 {
		t.Fatalf("run metadata lost: %+v", runs[0])
	}

	// Empty run id resolves to the latest run.
	history, err := client.History(ctx, "", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(history))
	}
	if history[0].Generation != 0 || history[0].Source != "simulator" {
		t.Fatalf("unexpected first history entry: %+v", history[0])
	}

	limited, err := client.History(ctx, summary.RunID, 2)
	if err != nil {
		t.Fatalf("limited history: %v", err)
	}
	if len(limited) != 2 || limited[1].Generation != 3 {
		t.Fatalf("limit should keep the tail: %+v", limited)
	}

	top, err := client.Top(ctx, summary.RunID, 3)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) == 0 || len(top) > 3 {
		t.Fatalf("unexpected top size: %d", len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i].OverallScore > top[i-1].OverallScore {
			t.Fatalf("top not sorted by score: %+v", top)
		}
	}
	if !strings.HasPrefix(top[0].ID, summary.RunID+"/") {
		t.Fatalf("design id not namespaced by run: %s", top[0].ID)
	}

	if _, err := client.History(ctx, "no-such-run", 0); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestClientRunHonoursZeroVariationRates(t *testing.T) {
	client := newTestClient(t)
	zero := 0.0

	summary, err := client.Run(context.Background(), RunRequest{
		Objectives:       []string{"structural", "cost"},
		Population:       8,
		Generations:      30,
		CrossoverRate:    &zero,
		MutationRate:     &zero,
		Seed:             99,
		Workers:          2,
		StallGenerations: 2,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	cfg, ok, err := stats.ReadRunConfig(filepath.Dir(summary.ArtifactsDir), summary.RunID)
	if err != nil || !ok {
		t.Fatalf("read run config: ok=%v err=%v", ok, err)
	}
	if cfg.CrossoverRate != 0 || cfg.MutationRate != 0 {
		t.Fatalf("zero rates were replaced by defaults: crossover=%v mutation=%v",
			cfg.CrossoverRate, cfg.MutationRate)
	}

	// Zero rates clone the parents, so the front stalls immediately.
	if summary.Generations >= 30 {
		t.Fatalf("identical offspring must trigger the stall stop, ran %d generations", summary.Generations)
	}
	if summary.Stopped {
		t.Fatal("a stall is a normal stop, not a cancellation")
	}
}

func TestPersistedDesignGenerationsMatchGenomeIDs(t *testing.T) {
	client := newTestClient(t)
	summary := runSmall(t, client)

	top, err := client.Top(context.Background(), summary.RunID, 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) == 0 {
		t.Fatal("expected persisted designs")
	}

	for _, d := range top {
		genomeID := strings.TrimPrefix(d.ID, summary.RunID+"/")
		head, _, found := strings.Cut(genomeID, "-")
		if !found || !strings.HasPrefix(head, "g") {
			t.Fatalf("unexpected genome id format: %s", genomeID)
		}
		born, err := strconv.Atoi(head[1:])
		if err != nil {
			t.Fatalf("unexpected genome id format: %s", genomeID)
		}
		if d.Generation != born {
			t.Fatalf("design %s records generation %d, id says %d", d.ID, d.Generation, born)
		}
	}
}

func TestClientExportImportRoundTrip(t *testing.T) {
	client := newTestClient(t)
	runSmall(t, client)
	ctx := context.Background()

	outPath, err := client.ExportDesign(ctx, "", "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("exported file missing: %v", err)
	}

	report, err := client.ImportDesign(ctx, outPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if report.DesignID == "" {
		t.Fatal("missing design id")
	}
	if len(report.Fitness) == 0 {
		t.Fatal("imported design was not scored")
	}
	for name, score := range report.Fitness {
		if score < 0 || score > 1 {
			t.Fatalf("score for %s out of range: %v", name, score)
		}
	}
	if report.Overall < 0 || report.Overall > 1 {
		t.Fatalf("overall out of range: %v", report.Overall)
	}
}

func TestClientExportParetoChart(t *testing.T) {
	client := newTestClient(t)
	summary := runSmall(t, client)
	ctx := context.Background()

	chartPath, err := client.ExportParetoChart(ctx, summary.RunID, "", "", "")
	if err != nil {
		t.Fatalf("chart: %v", err)
	}
	data, err := os.ReadFile(chartPath)
	if err != nil {
		t.Fatalf("read chart: %v", err)
	}
	if !strings.Contains(string(data), "Pareto front") {
		t.Fatal("chart output missing title")
	}

	if _, err := client.ExportParetoChart(ctx, summary.RunID, "structural", "unknown", ""); err == nil {
		t.Fatal("expected error for unknown objective")
	}
}

func TestClientObjectivesListsRegistry(t *testing.T) {
	client := newTestClient(t)
	names := client.Objectives()
	if len(names) != 7 {
		t.Fatalf("expected 7 objectives, got %d: %v", len(names), names)
	}
	for _, want := range []string{"structural", "energy", "livability", "cost", "safety", "blast", "evacuation"} {
		found := false
		for _, name := range names {
			if name == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("objective %s missing from %v", want, names)
		}
	}
}
