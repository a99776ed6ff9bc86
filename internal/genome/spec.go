package genome

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/gabibrouze/evolving-resilience/internal/model"
)

// GeneKind distinguishes continuous parameters from integer-valued ones.
// Integer genes are stored as float64 but snap to whole values on clamp.
type GeneKind int

const (
	Real GeneKind = iota
	Integer
)

// Gene declares one position of the genome: its name and closed domain.
type Gene struct {
	Name string
	Kind GeneKind
	Min  float64
	Max  float64
}

// Gene table indices. The order is part of the persistent format.
const (
	GeneHeight = iota
	GeneWidth
	GeneLength
	GeneShape
	GeneMaterial
	GeneFrame
	GeneFloors
	GeneFloorHeight
	GeneHVAC
	GeneLighting
	GenePlumbing
	GeneRenewable
	GeneWindowRatio
	GeneFacadeMaterial
	geneCount
)

var geneTable = [geneCount]Gene{
	GeneHeight:         {Name: "height", Kind: Real, Min: 10, Max: 100},
	GeneWidth:          {Name: "width", Kind: Real, Min: 10, Max: 50},
	GeneLength:         {Name: "length", Kind: Real, Min: 10, Max: 50},
	GeneShape:          {Name: "shape", Kind: Integer, Min: 0, Max: 2},
	GeneMaterial:       {Name: "material", Kind: Integer, Min: 0, Max: 2},
	GeneFrame:          {Name: "frame_type", Kind: Integer, Min: 0, Max: 2},
	GeneFloors:         {Name: "num_floors", Kind: Integer, Min: 1, Max: 20},
	GeneFloorHeight:    {Name: "floor_height", Kind: Real, Min: 2.5, Max: 4},
	GeneHVAC:           {Name: "hvac_type", Kind: Integer, Min: 0, Max: 2},
	GeneLighting:       {Name: "lighting_type", Kind: Integer, Min: 0, Max: 2},
	GenePlumbing:       {Name: "plumbing_type", Kind: Integer, Min: 0, Max: 1},
	GeneRenewable:      {Name: "renewable_energy", Kind: Integer, Min: 0, Max: 1},
	GeneWindowRatio:    {Name: "window_ratio", Kind: Real, Min: 0.1, Max: 0.6},
	GeneFacadeMaterial: {Name: "facade_material", Kind: Integer, Min: 0, Max: 2},
}

// Spec returns the gene table in genome order.
func Spec() []Gene {
	out := make([]Gene, geneCount)
	copy(out[:], geneTable[:])
	return out
}

// Len returns the number of genes in a genome.
func Len() int {
	return geneCount
}

// Names returns the gene names in genome order.
func Names() []string {
	names := make([]string, geneCount)
	for i, g := range geneTable {
		names[i] = g.Name
	}
	return names
}

// Random draws every gene uniformly from its domain.
func Random(rng *rand.Rand, id string) model.Genome {
	values := make([]float64, geneCount)
	for i, g := range geneTable {
		switch g.Kind {
		case Integer:
			span := int(g.Max-g.Min) + 1
			values[i] = g.Min + float64(rng.Intn(span))
		default:
			values[i] = g.Min + rng.Float64()*(g.Max-g.Min)
		}
	}
	return model.Genome{ID: id, Values: values}
}

// ClampValue forces one value into the domain of gene i, snapping integer
// genes to the nearest whole value.
func ClampValue(i int, v float64) float64 {
	g := geneTable[i]
	if math.IsNaN(v) {
		return g.Min
	}
	if g.Kind == Integer {
		v = math.Round(v)
	}
	if v < g.Min {
		return g.Min
	}
	if v > g.Max {
		return g.Max
	}
	return v
}

// Clamp returns a copy of the genome with every gene inside its domain. A
// genome with the wrong length is padded or truncated against the table so
// downstream decoding is total.
func Clamp(g model.Genome) model.Genome {
	values := make([]float64, geneCount)
	for i := range values {
		v := geneTable[i].Min
		if i < len(g.Values) {
			v = g.Values[i]
		}
		values[i] = ClampValue(i, v)
	}
	out := g
	out.Values = values
	return out
}

// Validate reports the first gene outside its declared domain.
func Validate(g model.Genome) error {
	if len(g.Values) != geneCount {
		return fmt.Errorf("genome %s has %d genes, want %d", g.ID, len(g.Values), geneCount)
	}
	for i, v := range g.Values {
		spec := geneTable[i]
		if v < spec.Min || v > spec.Max {
			return fmt.Errorf("gene %s out of domain: %v not in [%v, %v]", spec.Name, v, spec.Min, spec.Max)
		}
	}
	return nil
}
