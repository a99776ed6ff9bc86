package nsga

import (
	"math"
	"testing"

	"github.com/gabibrouze/evolving-resilience/internal/model"
)

func individuals(vectors ...model.FitnessVector) []*Individual {
	pop := make([]*Individual, len(vectors))
	for i, v := range vectors {
		pop[i] = &Individual{Fitness: v}
	}
	return pop
}

func TestDominates(t *testing.T) {
	cases := []struct {
		name string
		a, b model.FitnessVector
		want bool
	}{
		{"strictly better everywhere", model.FitnessVector{0.9, 0.9}, model.FitnessVector{0.5, 0.5}, true},
		{"better on one equal on other", model.FitnessVector{0.9, 0.5}, model.FitnessVector{0.5, 0.5}, true},
		{"equal vectors", model.FitnessVector{0.5, 0.5}, model.FitnessVector{0.5, 0.5}, false},
		{"trade-off", model.FitnessVector{0.9, 0.1}, model.FitnessVector{0.1, 0.9}, false},
		{"worse on one", model.FitnessVector{0.9, 0.4}, model.FitnessVector{0.5, 0.5}, false},
	}
	for _, tc := range cases {
		if got := Dominates(tc.a, tc.b); got != tc.want {
			t.Fatalf("%s: Dominates(%v, %v) = %t, want %t", tc.name, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestFastNonDominatedSortPartitionsFronts(t *testing.T) {
	pop := individuals(
		model.FitnessVector{0.9, 0.1}, // front 0
		model.FitnessVector{0.1, 0.9}, // front 0
		model.FitnessVector{0.5, 0.5}, // front 0
		model.FitnessVector{0.4, 0.4}, // front 1, dominated by {0.5,0.5}
		model.FitnessVector{0.1, 0.1}, // front 2
	)

	fronts := FastNonDominatedSort(pop)
	if len(fronts) != 3 {
		t.Fatalf("expected 3 fronts, got %d", len(fronts))
	}
	if len(fronts[0]) != 3 || len(fronts[1]) != 1 || len(fronts[2]) != 1 {
		t.Fatalf("unexpected front sizes: %d %d %d", len(fronts[0]), len(fronts[1]), len(fronts[2]))
	}

	total := 0
	for rank, front := range fronts {
		total += len(front)
		for _, ind := range front {
			if ind.Rank != rank {
				t.Fatalf("individual in front %d carries rank %d", rank, ind.Rank)
			}
		}
	}
	if total != len(pop) {
		t.Fatalf("fronts cover %d individuals, want %d", total, len(pop))
	}
}

func TestWorstIndividualLandsInLastFront(t *testing.T) {
	pop := individuals(
		model.FitnessVector{0.8, 0.6},
		model.FitnessVector{0.6, 0.8},
		model.FitnessVector{0.7, 0.7},
		model.FitnessVector{0, 0},
	)

	fronts := FastNonDominatedSort(pop)
	last := fronts[len(fronts)-1]
	if len(last) != 1 || last[0].Fitness[0] != 0 {
		t.Fatalf("expected the all-zero individual alone in the last front, got %+v", last)
	}
}

func TestCrowdingDistanceBoundaries(t *testing.T) {
	front := individuals(
		model.FitnessVector{0.1, 0.9},
		model.FitnessVector{0.5, 0.5},
		model.FitnessVector{0.9, 0.1},
		model.FitnessVector{0.3, 0.7},
	)
	CrowdingDistance(front)

	if !math.IsInf(front[0].Crowding, 1) || !math.IsInf(front[2].Crowding, 1) {
		t.Fatal("objective extremes must have infinite crowding distance")
	}
	if math.IsInf(front[1].Crowding, 1) || front[1].Crowding <= 0 {
		t.Fatalf("interior member must have finite positive crowding, got %v", front[1].Crowding)
	}
}

func TestCrowdingDistanceSmallFronts(t *testing.T) {
	pair := individuals(model.FitnessVector{0.2, 0.8}, model.FitnessVector{0.8, 0.2})
	CrowdingDistance(pair)
	for _, ind := range pair {
		if !math.IsInf(ind.Crowding, 1) {
			t.Fatal("fronts of two are all boundary")
		}
	}

	solo := individuals(model.FitnessVector{0.5, 0.5})
	CrowdingDistance(solo)
	if !math.IsInf(solo[0].Crowding, 1) {
		t.Fatal("singleton front member must be boundary")
	}
}

func TestCrowdedComparison(t *testing.T) {
	a := &Individual{Rank: 0, Crowding: 0.1}
	b := &Individual{Rank: 1, Crowding: math.Inf(1)}
	if !Crowded(a, b) {
		t.Fatal("lower rank must win regardless of crowding")
	}

	c := &Individual{Rank: 0, Crowding: 0.9}
	if !Crowded(c, a) {
		t.Fatal("larger crowding must win within a rank")
	}
}
