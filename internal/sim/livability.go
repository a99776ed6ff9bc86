package sim

import (
	"math"

	"github.com/gabibrouze/evolving-resilience/internal/genome"
)

// Livability averages spatial quality, natural light, thermal comfort,
// acoustic comfort and air quality.
type Livability struct{}

func (Livability) Name() string { return "livability" }

func (l Livability) Evaluate(d genome.BuildingDesign) (float64, error) {
	if degenerate(d) {
		return 0, nil
	}

	score := (l.spatialQuality(d) +
		l.naturalLight(d) +
		l.thermalComfort(d) +
		l.acousticComfort(d) +
		l.airQuality(d)) / 5
	return clamp01(score), nil
}

func (Livability) spatialQuality(d genome.BuildingDesign) float64 {
	area := d.Envelope.Width * d.Envelope.Length
	volume := area * d.Floors.Height

	// Ideal floor area 50-200 m^2, ideal volume 150-600 m^3.
	areaScore := 1 - math.Min(math.Abs(area-125)/75, 1)
	volumeScore := 1 - math.Min(math.Abs(volume-375)/225, 1)

	var shapeScore float64
	switch d.Envelope.Shape {
	case genome.ShapeRectangular:
		shapeScore = 0.8
	case genome.ShapeLShaped:
		shapeScore = 0.9
	default:
		shapeScore = 1.0
	}
	return (areaScore + volumeScore + shapeScore) / 3
}

func (Livability) naturalLight(d genome.BuildingDesign) float64 {
	lightScore := 1 - math.Min(math.Abs(d.Facade.WindowRatio-0.45)/0.15, 1)
	var shapeScore float64
	switch d.Envelope.Shape {
	case genome.ShapeRectangular:
		shapeScore = 0.9
	case genome.ShapeLShaped:
		shapeScore = 0.8
	default:
		shapeScore = 0.7
	}
	return (lightScore + shapeScore) / 2
}

func (Livability) thermalComfort(d genome.BuildingDesign) float64 {
	var hvacScore float64
	switch d.MEP.HVAC {
	case genome.HVACCentral:
		hvacScore = 0.9
	case genome.HVACDistributed:
		hvacScore = 0.8
	default:
		hvacScore = 1.0
	}
	windowScore := 1 - math.Min(math.Abs(d.Facade.WindowRatio-0.4)/0.1, 1)
	return (hvacScore + windowScore) / 2
}

func (Livability) acousticComfort(d genome.BuildingDesign) float64 {
	floorFactor := math.Max(0, 1-float64(d.Floors.Count-5)*0.05)
	var shapeScore float64
	switch d.Envelope.Shape {
	case genome.ShapeRectangular:
		shapeScore = 0.8
	case genome.ShapeLShaped:
		shapeScore = 0.9
	default:
		// U-shape shelters quieter inner spaces.
		shapeScore = 1.0
	}
	return (floorFactor + shapeScore) / 2
}

func (Livability) airQuality(d genome.BuildingDesign) float64 {
	var hvacScore float64
	switch d.MEP.HVAC {
	case genome.HVACCentral:
		hvacScore = 0.8
	case genome.HVACDistributed:
		hvacScore = 0.7
	default:
		hvacScore = 0.9
	}
	windowScore := math.Min(d.Facade.WindowRatio/0.5, 1)
	return (hvacScore + windowScore) / 2
}
