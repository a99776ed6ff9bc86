// Package nsga implements the elitist multi-objective evolutionary engine:
// fast non-dominated sorting, crowding distance, binary tournaments and the
// generational loop that drives the building optimiser.
package nsga

import (
	"math"
	"sort"

	"github.com/gabibrouze/evolving-resilience/internal/model"
)

// Individual is one candidate in the evolving population.
type Individual struct {
	Genome  model.Genome
	Fitness model.FitnessVector
	Source  model.FitnessSource
	// Generation is the generation the individual was created in. Elitist
	// selection keeps survivors across generations, so this can lag the
	// current one.
	Generation int
	Rank       int
	Crowding   float64
}

// Dominates reports whether fitness a dominates fitness b. All objectives
// are maximised: a must be at least as good everywhere and strictly better
// somewhere.
func Dominates(a, b model.FitnessVector) bool {
	strictly := false
	for k := range a {
		if a[k] < b[k] {
			return false
		}
		if a[k] > b[k] {
			strictly = true
		}
	}
	return strictly
}

// FastNonDominatedSort partitions the population into Pareto fronts and
// stamps each individual's Rank. Front 0 is the non-dominated set; each
// later front is non-dominated once the earlier fronts are removed. Every
// individual lands in exactly one front.
func FastNonDominatedSort(pop []*Individual) [][]*Individual {
	n := len(pop)
	if n == 0 {
		return nil
	}

	dominated := make([][]int, n)
	dominationCount := make([]int, n)

	var fronts [][]*Individual
	var current []int

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if Dominates(pop[i].Fitness, pop[j].Fitness) {
				dominated[i] = append(dominated[i], j)
			} else if Dominates(pop[j].Fitness, pop[i].Fitness) {
				dominationCount[i]++
			}
		}
		if dominationCount[i] == 0 {
			pop[i].Rank = 0
			current = append(current, i)
		}
	}

	rank := 0
	for len(current) > 0 {
		front := make([]*Individual, len(current))
		for k, idx := range current {
			front[k] = pop[idx]
		}
		fronts = append(fronts, front)

		rank++
		var next []int
		for _, idx := range current {
			for _, j := range dominated[idx] {
				dominationCount[j]--
				if dominationCount[j] == 0 {
					pop[j].Rank = rank
					next = append(next, j)
				}
			}
		}
		current = next
	}
	return fronts
}

// CrowdingDistance stamps each front member's Crowding value: +Inf for the
// per-objective extremes, and for interior members the sum of normalised
// gaps between their neighbours along every objective. Fronts of one or two
// members are all boundary.
func CrowdingDistance(front []*Individual) {
	n := len(front)
	if n == 0 {
		return
	}
	for _, ind := range front {
		ind.Crowding = 0
	}
	if n <= 2 {
		for _, ind := range front {
			ind.Crowding = math.Inf(1)
		}
		return
	}

	objectives := len(front[0].Fitness)
	order := make([]*Individual, n)
	copy(order, front)

	for k := 0; k < objectives; k++ {
		k := k
		sort.SliceStable(order, func(a, b int) bool {
			return order[a].Fitness[k] < order[b].Fitness[k]
		})
		order[0].Crowding = math.Inf(1)
		order[n-1].Crowding = math.Inf(1)

		span := order[n-1].Fitness[k] - order[0].Fitness[k]
		if span == 0 {
			continue
		}
		for i := 1; i < n-1; i++ {
			if math.IsInf(order[i].Crowding, 1) {
				continue
			}
			order[i].Crowding += (order[i+1].Fitness[k] - order[i-1].Fitness[k]) / span
		}
	}
}

// Crowded is the NSGA-II partial order: lower rank wins, then larger
// crowding distance.
func Crowded(a, b *Individual) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.Crowding > b.Crowding
}
