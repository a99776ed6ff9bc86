// Package stats writes per-run artifact directories: configuration, fitness
// history, the final Pareto front and surrogate feature importances, plus a
// browsable index across runs.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gabibrouze/evolving-resilience/internal/model"
)

const runIndexFile = "run_index.json"

type RunConfig struct {
	RunID             string             `json:"run_id"`
	Objectives        []string           `json:"objectives"`
	Weights           map[string]float64 `json:"weights,omitempty"`
	PopulationSize    int                `json:"population_size"`
	Generations       int                `json:"generations"`
	CrossoverRate     float64            `json:"crossover_rate"`
	MutationRate      float64            `json:"mutation_rate"`
	MutationStrength  float64            `json:"mutation_strength"`
	Seed              int64              `json:"seed"`
	Workers           int                `json:"workers"`
	SurrogateInterval int                `json:"surrogate_interval"`
	StallGenerations  int                `json:"stall_generations"`
}

// FrontEntry is one non-dominated design in the exported Pareto front.
type FrontEntry struct {
	Rank     int                `json:"rank"`
	GenomeID string             `json:"genome_id"`
	Genome   model.Genome       `json:"genome"`
	Fitness  map[string]float64 `json:"fitness"`
	Overall  float64            `json:"overall"`
}

type RunArtifacts struct {
	Config            RunConfig                     `json:"config"`
	History           []model.GenerationStats       `json:"history"`
	Front             []FrontEntry                  `json:"front"`
	FeatureImportance map[string]map[string]float64 `json:"feature_importance,omitempty"`
	FinalBestOverall  float64                       `json:"final_best_overall"`
	Stopped           bool                          `json:"stopped"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Objectives       string  `json:"objectives"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
	SurrogateEnabled bool    `json:"surrogate_enabled"`
	FinalBestOverall float64 `json:"final_best_overall"`
	Stopped          bool    `json:"stopped"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// WriteRunArtifacts materialises one run's directory under baseDir and
// returns its path.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if strings.TrimSpace(artifacts.Config.RunID) == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "run_config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), map[string]any{
		"history":            artifacts.History,
		"final_best_overall": artifacts.FinalBestOverall,
		"stopped":            artifacts.Stopped,
	}); err != nil {
		return "", err
	}
	if err := writeHistoryCSV(filepath.Join(runDir, "fitness_history.csv"), artifacts.Config.Objectives, artifacts.History); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "pareto_front.json"), artifacts.Front); err != nil {
		return "", err
	}
	if artifacts.FeatureImportance != nil {
		if err := writeJSON(filepath.Join(runDir, "feature_importance.json"), artifacts.FeatureImportance); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

func writeHistoryCSV(path string, objectives []string, history []model.GenerationStats) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"generation", "front_size", "best_overall", "source", "evaluations", "failures"}
	for _, name := range objectives {
		header = append(header, "best_"+name)
	}
	for _, name := range objectives {
		header = append(header, "mean_"+name)
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, gen := range history {
		row := []string{
			strconv.Itoa(gen.Generation),
			strconv.Itoa(gen.FrontSize),
			strconv.FormatFloat(gen.BestOverall, 'f', -1, 64),
			string(gen.Source),
			strconv.Itoa(gen.Evaluations),
			strconv.Itoa(gen.Failures),
		}
		for k := range objectives {
			row = append(row, formatScore(gen.Best, k))
		}
		for k := range objectives {
			row = append(row, formatScore(gen.Mean, k))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatScore(v model.FitnessVector, k int) string {
	if k >= len(v) {
		return ""
	}
	return strconv.FormatFloat(v[k], 'f', -1, 64)
}

// AppendRunIndex upserts the run into baseDir's index file.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index sorted newest-first. A missing index reads
// as empty.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

// ReadFront loads a run's exported Pareto front.
func ReadFront(baseDir, runID string) ([]FrontEntry, bool, error) {
	path := filepath.Join(baseDir, runID, "pareto_front.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var front []FrontEntry
	if err := json.Unmarshal(data, &front); err != nil {
		return nil, false, err
	}
	return front, true, nil
}

// ReadRunConfig loads a run's recorded configuration.
func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, "run_config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
