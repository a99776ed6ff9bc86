package sim

import (
	"math"

	"github.com/gabibrouze/evolving-resilience/internal/genome"
)

// BlastResistance models the building as a single-degree-of-freedom
// oscillator under a triangular blast pulse and maps the peak displacement
// to a damage index. The response is integrated with a fixed-step
// semi-implicit Euler scheme so results are deterministic.
type BlastResistance struct{}

func (BlastResistance) Name() string { return "blast" }

func (b BlastResistance) Evaluate(d genome.BuildingDesign) (float64, error) {
	if degenerate(d) {
		return 0, nil
	}

	const (
		peakPressure = 1000e3 // Pa
		pulseLength  = 0.02   // s
		duration     = 0.5    // s
		steps        = 1000
	)

	mass := b.mass(d)
	stiffness := b.stiffness(d)
	if mass <= 0 || stiffness <= 0 {
		return 0, nil
	}

	loadedArea := d.Envelope.Width * d.Envelope.Length
	dt := duration / steps
	var x, v, maxDisplacement float64
	for i := 0; i < steps; i++ {
		t := float64(i) * dt
		var f float64
		if t <= pulseLength {
			f = peakPressure * (1 - t/pulseLength) * loadedArea
		}
		a := (f - stiffness*x) / mass
		v += a * dt
		x += v * dt
		if abs := math.Abs(x); abs > maxDisplacement {
			maxDisplacement = abs
		}
	}

	return clamp01(1 - damageIndex(maxDisplacement)), nil
}

func (BlastResistance) mass(d genome.BuildingDesign) float64 {
	volume := d.Envelope.Height * d.Envelope.Width * d.Envelope.Length
	density, _ := materialProperties(d.Structure.Material)
	return volume * density
}

func (BlastResistance) stiffness(d genome.BuildingDesign) float64 {
	var elasticModulus float64
	switch d.Structure.Material {
	case genome.MaterialConcrete:
		elasticModulus = 30e9
	case genome.MaterialSteel:
		elasticModulus = 200e9
	default:
		elasticModulus = 11e9
	}

	momentOfInertia := d.Envelope.Width * math.Pow(d.Envelope.Length, 3) / 12
	var frame float64
	switch d.Structure.Frame {
	case genome.FrameMoment:
		frame = 1
	case genome.FrameBraced:
		frame = 1.5
	default:
		frame = 2
	}
	return frame * 3 * elasticModulus * momentOfInertia / math.Pow(d.Envelope.Height, 3)
}

func damageIndex(maxDisplacement float64) float64 {
	const (
		yieldDisplacement    = 0.1
		ultimateDisplacement = 0.5
	)
	switch {
	case maxDisplacement < yieldDisplacement:
		return 0
	case maxDisplacement > ultimateDisplacement:
		return 1
	default:
		return (maxDisplacement - yieldDisplacement) / (ultimateDisplacement - yieldDisplacement)
	}
}
