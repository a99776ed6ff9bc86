package sim

import (
	"math"

	"github.com/gabibrouze/evolving-resilience/internal/genome"
)

// StructuralIntegrity models lateral stability, vertical load capacity,
// foundation stability, seismic performance and wind resistance, combined
// with fixed weights.
type StructuralIntegrity struct{}

func (StructuralIntegrity) Name() string { return "structural" }

func (s StructuralIntegrity) Evaluate(d genome.BuildingDesign) (float64, error) {
	if degenerate(d) {
		return 0, nil
	}

	lateral := s.lateralStability(d)
	vertical := s.verticalLoadCapacity(d)
	foundation := s.foundationStability(d)
	seismic := s.seismicPerformance(d)
	wind := s.windResistance(d)

	score := lateral*0.25 + vertical*0.25 + foundation*0.2 + seismic*0.15 + wind*0.15
	return clamp01(score), nil
}

func (StructuralIntegrity) lateralStability(d genome.BuildingDesign) float64 {
	aspect := d.Envelope.Height / math.Min(d.Envelope.Width, d.Envelope.Length)
	base := 0.9
	switch {
	case aspect > 5:
		base = 0.5
	case aspect > 3:
		base = 0.7
	}
	return clamp01(base * frameFactor(d.Structure.Frame) * materialFactor(d.Structure.Material))
}

func (StructuralIntegrity) verticalLoadCapacity(d genome.BuildingDesign) float64 {
	volume := d.Envelope.Height * d.Envelope.Width * d.Envelope.Length
	density, strength := materialProperties(d.Structure.Material)
	mass := volume * density
	capacity := strength * d.Envelope.Width * d.Envelope.Length
	// Ideal safety factor of 3 against gravity load.
	safety := capacity / (mass * 9.81)
	return clamp01(safety / 3)
}

func (StructuralIntegrity) foundationStability(d genome.BuildingDesign) float64 {
	area := d.Envelope.Width * d.Envelope.Length
	var basePressure float64
	switch d.Structure.Material {
	case genome.MaterialConcrete:
		basePressure = 300e3
	case genome.MaterialSteel:
		basePressure = 250e3
	default:
		basePressure = 150e3
	}
	capacity := area * basePressure
	estimatedWeight := area * 5000 // N/m^2 service load estimate
	return clamp01(capacity / estimatedWeight / 2)
}

func (StructuralIntegrity) seismicPerformance(d genome.BuildingDesign) float64 {
	var base float64
	switch d.Structure.Frame {
	case genome.FrameMoment:
		base = 0.7
	case genome.FrameBraced:
		base = 0.8
	default:
		base = 0.9
	}
	heightFactor := math.Max(0, 1-(d.Envelope.Height-20)*0.005)
	return clamp01(base * materialFactor(d.Structure.Material) * heightFactor)
}

func (StructuralIntegrity) windResistance(d genome.BuildingDesign) float64 {
	aspect := d.Envelope.Height / math.Min(d.Envelope.Width, d.Envelope.Length)
	base := 1.0
	switch {
	case aspect > 5:
		base = 0.6
	case aspect > 3:
		base = 0.8
	}
	return clamp01(base * frameFactor(d.Structure.Frame) * materialFactor(d.Structure.Material))
}

func frameFactor(f genome.FrameType) float64 {
	switch f {
	case genome.FrameMoment:
		return 0.9
	case genome.FrameBraced:
		return 1.0
	default:
		return 1.1
	}
}

func materialFactor(m genome.Material) float64 {
	switch m {
	case genome.MaterialSteel:
		return 1.1
	case genome.MaterialConcrete:
		return 1.0
	default:
		return 0.8
	}
}

// materialProperties returns density (kg/m^3) and compressive strength (Pa).
func materialProperties(m genome.Material) (float64, float64) {
	switch m {
	case genome.MaterialConcrete:
		return 2400, 30e6
	case genome.MaterialSteel:
		return 7850, 250e6
	default:
		return 500, 20e6
	}
}
