package genome

import (
	"math"
	"math/rand"

	"github.com/gabibrouze/evolving-resilience/internal/model"
)

// Distribution index for simulated binary crossover. Larger values keep
// children closer to their parents.
const sbxEta = 15.0

// Crossover recombines two parents into two children. Each gene is
// considered independently with probability rate: real genes blend via
// simulated binary crossover, integer genes swap. Children stay within the
// gene domains. The caller supplies the random stream so outcomes are
// reproducible.
func Crossover(rng *rand.Rand, a, b model.Genome, rate float64, idA, idB string) (model.Genome, model.Genome) {
	va := append([]float64(nil), a.Values...)
	vb := append([]float64(nil), b.Values...)

	for i := 0; i < geneCount && i < len(va) && i < len(vb); i++ {
		if rng.Float64() >= rate {
			continue
		}
		if geneTable[i].Kind == Integer {
			va[i], vb[i] = vb[i], va[i]
			continue
		}
		c1, c2 := sbxPair(rng, va[i], vb[i])
		va[i] = ClampValue(i, c1)
		vb[i] = ClampValue(i, c2)
	}

	childA := Clamp(model.Genome{ID: idA, Values: va})
	childB := Clamp(model.Genome{ID: idB, Values: vb})
	return childA, childB
}

func sbxPair(rng *rand.Rand, x, y float64) (float64, float64) {
	if math.Abs(x-y) < 1e-12 {
		return x, y
	}
	u := rng.Float64()
	var beta float64
	if u <= 0.5 {
		beta = math.Pow(2*u, 1/(sbxEta+1))
	} else {
		beta = math.Pow(1/(2*(1-u)), 1/(sbxEta+1))
	}
	c1 := 0.5 * ((1+beta)*x + (1-beta)*y)
	c2 := 0.5 * ((1-beta)*x + (1+beta)*y)
	return c1, c2
}

// Mutate perturbs each gene independently with probability rate. Real genes
// receive a gaussian delta scaled by strength times the domain span; integer
// genes step to a neighbouring value. The result is clamped into domain.
func Mutate(rng *rand.Rand, g model.Genome, rate, strength float64, id string) model.Genome {
	values := append([]float64(nil), g.Values...)
	for i := 0; i < geneCount && i < len(values); i++ {
		if rng.Float64() >= rate {
			continue
		}
		spec := geneTable[i]
		if spec.Kind == Integer {
			if rng.Float64() < 0.5 {
				values[i]--
			} else {
				values[i]++
			}
		} else {
			span := spec.Max - spec.Min
			values[i] += rng.NormFloat64() * strength * span
		}
		values[i] = ClampValue(i, values[i])
	}
	return Clamp(model.Genome{ID: id, Values: values})
}
