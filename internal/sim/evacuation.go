package sim

import (
	"math"

	"github.com/gabibrouze/evolving-resilience/internal/genome"
)

// EvacuationEfficiency estimates how quickly occupants can clear the
// building, comparing an exit-capacity evacuation time against the ideal
// unobstructed walking time across the floor diagonal.
type EvacuationEfficiency struct{}

func (EvacuationEfficiency) Name() string { return "evacuation" }

func (EvacuationEfficiency) Evaluate(d genome.BuildingDesign) (float64, error) {
	if degenerate(d) {
		return 0, nil
	}

	const (
		occupantsPerFloor = 80.0
		walkingSpeed      = 1.4 // m/s
		exitFlowRate      = 1.3 // persons per second per exit
	)

	area := d.Envelope.Width * d.Envelope.Length
	exits := math.Max(2, math.Floor(math.Sqrt(area)/8))

	// Travel to the furthest exit plus queueing at the doors, then surcharge
	// per storey for stair descent.
	diagonal := math.Hypot(d.Envelope.Width, d.Envelope.Length)
	travelTime := diagonal / walkingSpeed
	queueTime := occupantsPerFloor / (exits * exitFlowRate)
	stairFactor := 1 + 0.15*float64(d.Floors.Count-1)

	evacuationTime := (travelTime + queueTime) * stairFactor
	idealTime := diagonal / walkingSpeed
	if evacuationTime <= 0 {
		return 1, nil
	}
	return clamp01(idealTime / evacuationTime), nil
}
