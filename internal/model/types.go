package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Genome is an ordered sequence of design parameter values. The meaning and
// domain of each position is fixed by the gene table in the genome package.
// Genomes are immutable once created; operators always return new instances.
type Genome struct {
	VersionedRecord
	ID     string    `json:"id"`
	Values []float64 `json:"values"`
}

// Clone returns a deep copy with the given ID.
func (g Genome) Clone(id string) Genome {
	out := g
	out.ID = id
	out.Values = append([]float64(nil), g.Values...)
	return out
}

// FitnessVector is a fixed-length tuple of objective scores. Order matches
// the objective set configured for the run; higher is better for every
// objective, and scores are normalized to [0,1].
type FitnessVector []float64

// Clone returns a copy of the vector.
func (v FitnessVector) Clone() FitnessVector {
	return append(FitnessVector(nil), v...)
}

// FitnessSource records which backend produced a fitness vector.
type FitnessSource string

const (
	SourceSimulator FitnessSource = "simulator"
	SourceSurrogate FitnessSource = "surrogate"
)

// DesignRecord is one persisted candidate design.
type DesignRecord struct {
	VersionedRecord
	ID           string        `json:"id"`
	RunID        string        `json:"run_id"`
	Generation   int           `json:"generation"`
	Genome       Genome        `json:"genome"`
	Fitness      FitnessVector `json:"fitness"`
	Objectives   []string      `json:"objectives"`
	OverallScore float64       `json:"overall_score"`
	Source       FitnessSource `json:"source"`
	CreatedAtUTC string        `json:"created_at_utc"`
}

// GenerationStats is the per-generation progress payload handed to observers
// and stored as run history.
type GenerationStats struct {
	Generation    int           `json:"generation"`
	FrontSize     int           `json:"front_size"`
	Best          FitnessVector `json:"best"`
	Mean          FitnessVector `json:"mean"`
	BestOverall   float64       `json:"best_overall"`
	Source        FitnessSource `json:"source"`
	Evaluations   int           `json:"evaluations"`
	Failures      int           `json:"failures"`
	Warnings      []string      `json:"warnings,omitempty"`
	ElapsedMillis int64         `json:"elapsed_ms"`
}

// RunRecord summarizes one optimization run.
type RunRecord struct {
	VersionedRecord
	RunID            string        `json:"run_id"`
	CreatedAtUTC     string        `json:"created_at_utc"`
	Objectives       []string      `json:"objectives"`
	PopulationSize   int           `json:"population_size"`
	Generations      int           `json:"generations"`
	Seed             int64         `json:"seed"`
	SurrogateEnabled bool          `json:"surrogate_enabled"`
	BestGenome       Genome        `json:"best_genome"`
	BestFitness      FitnessVector `json:"best_fitness"`
	Stopped          bool          `json:"stopped"`
}
