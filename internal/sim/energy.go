package sim

import "github.com/gabibrouze/evolving-resilience/internal/genome"

// EnergyEfficiency estimates annual consumption from envelope volume,
// window ratio and MEP choices, scored against a worst-case budget.
type EnergyEfficiency struct{}

func (EnergyEfficiency) Name() string { return "energy" }

func (EnergyEfficiency) Evaluate(d genome.BuildingDesign) (float64, error) {
	if degenerate(d) {
		return 0, nil
	}

	volume := d.Envelope.Height * d.Envelope.Width * d.Envelope.Length

	// Baseline kWh/year, then adjust for glazing losses.
	consumption := volume * 100
	consumption *= 1 + d.Facade.WindowRatio

	switch d.MEP.HVAC {
	case genome.HVACCentral:
		consumption *= 0.9
	case genome.HVACDistributed:
		consumption *= 1.1
	}

	switch d.MEP.Lighting {
	case genome.LightingLED:
		consumption *= 0.8
	case genome.LightingFluorescent:
		consumption *= 1.2
	}

	if d.MEP.Plumbing == genome.PlumbingCentral {
		consumption *= 0.95
	}

	if d.MEP.Renewable {
		consumption *= 0.7
	}

	maxEnergy := volume * 150
	return clamp01(1 - consumption/maxEnergy), nil
}
