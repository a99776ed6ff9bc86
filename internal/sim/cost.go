package sim

import (
	"math"

	"github.com/gabibrouze/evolving-resilience/internal/genome"
)

// CostEfficiency estimates material, labour, MEP and finishing costs per
// square metre of floor area and scores against a 2000/m^2 baseline.
type CostEfficiency struct{}

func (CostEfficiency) Name() string { return "cost" }

func (c CostEfficiency) Evaluate(d genome.BuildingDesign) (float64, error) {
	if degenerate(d) {
		return 0, nil
	}

	volume := d.Envelope.Height * d.Envelope.Width * d.Envelope.Length
	floorArea := d.Envelope.Width * d.Envelope.Length * float64(d.Floors.Count)
	if floorArea <= 0 {
		return 0, nil
	}

	total := c.materialCost(volume, d.Structure.Material) +
		c.labourCost(volume, d.Structure.Frame) +
		c.mepCost(volume, d.MEP) +
		volume*100 // finishing

	perSqm := total / floorArea
	return clamp01(math.Max(0, 1-(perSqm-2000)/1000)), nil
}

func (CostEfficiency) materialCost(volume float64, m genome.Material) float64 {
	switch m {
	case genome.MaterialSteel:
		// Roughly 100 kg of steel per cubic metre of building.
		return volume * 0.1 * 2000
	case genome.MaterialWood:
		return volume * 500
	default:
		return volume * 100
	}
}

func (CostEfficiency) labourCost(volume float64, f genome.FrameType) float64 {
	const hourlyRate = 50
	var hours float64
	switch f {
	case genome.FrameMoment:
		hours = volume * 0.5
	case genome.FrameBraced:
		hours = volume * 0.4
	default:
		hours = volume * 0.3
	}
	return hours * hourlyRate
}

func (CostEfficiency) mepCost(volume float64, mep genome.MEP) float64 {
	base := volume * 50
	var hvacFactor float64
	switch mep.HVAC {
	case genome.HVACCentral:
		hvacFactor = 1.2
	case genome.HVACDistributed:
		hvacFactor = 1.0
	default:
		hvacFactor = 1.1
	}
	renewableFactor := 1.0
	if mep.Renewable {
		renewableFactor = 1.3
	}
	return base * hvacFactor * renewableFactor
}
