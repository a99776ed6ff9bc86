package sim

import (
	"math"

	"github.com/gabibrouze/evolving-resilience/internal/genome"
)

// SafetyAssessment combines fire, structural, emergency-exit, hazardous
// material, security, earthquake, flood and wind safety with fixed weights.
// The hazmat and security components carry assumed baseline practice levels
// so the score stays deterministic.
type SafetyAssessment struct{}

func (SafetyAssessment) Name() string { return "safety" }

func (s SafetyAssessment) Evaluate(d genome.BuildingDesign) (float64, error) {
	if degenerate(d) {
		return 0, nil
	}

	const (
		hazmatBaseline   = 0.85
		securityBaseline = 0.80
	)

	score := s.fireSafety(d)*0.3 +
		s.structuralSafety(d)*0.3 +
		s.exitSafety(d)*0.1 +
		hazmatBaseline*0.1 +
		securityBaseline*0.05 +
		s.earthquakeSafety(d)*0.05 +
		s.floodSafety(d)*0.05 +
		s.windSafety(d)*0.05
	return clamp01(score), nil
}

func (SafetyAssessment) fireSafety(d genome.BuildingDesign) float64 {
	var base float64
	switch d.Structure.Material {
	case genome.MaterialConcrete:
		base = 0.8
	case genome.MaterialSteel:
		base = 0.7
	default:
		base = 0.5
	}
	floorFactor := math.Max(0, 1-float64(d.Floors.Count-5)*0.02)
	return base * floorFactor
}

func (SafetyAssessment) structuralSafety(d genome.BuildingDesign) float64 {
	var base float64
	switch d.Structure.Material {
	case genome.MaterialConcrete:
		base = 0.8
	case genome.MaterialSteel:
		base = 0.9
	default:
		base = 0.6
	}
	heightFactor := math.Max(0, 1-(d.Envelope.Height-20)*0.005)
	return base * frameFactor(d.Structure.Frame) * heightFactor
}

func (SafetyAssessment) exitSafety(d genome.BuildingDesign) float64 {
	area := d.Envelope.Width * d.Envelope.Length
	exits := math.Max(2, math.Floor(math.Sqrt(area)/10))
	// Two exits per floor is the target provision.
	return math.Min(1, exits/(float64(d.Floors.Count)/2))
}

func (SafetyAssessment) earthquakeSafety(d genome.BuildingDesign) float64 {
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
	return base * heightFactor
}

func (SafetyAssessment) floodSafety(d genome.BuildingDesign) float64 {
	// 20 m design flood height.
	return math.Min(1, d.Envelope.Height/20)
}

func (SafetyAssessment) windSafety(d genome.BuildingDesign) float64 {
	var base float64
	switch d.Envelope.Shape {
	case genome.ShapeRectangular:
		base = 0.7
	case genome.ShapeLShaped:
		base = 0.8
	default:
		base = 0.9
	}
	heightFactor := math.Max(0, 1-(d.Envelope.Height-50)*0.005)
	return base * heightFactor
}
