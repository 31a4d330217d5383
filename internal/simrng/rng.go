// Package simrng provides the single seeded random source every sampling
// call in the engine draws from. It wraps math/rand the way the teacher's
// generator packages do (rand.New(rand.NewSource(seed))): a single,
// explicitly-threaded generator per logical stream, never the package-level
// rand funcs, so that two runs constructed with the same seed draw bit-
// identical sequences regardless of what else is running in the process.
package simrng

import "math/rand"

// RNG is a seeded, forkable pseudo-random source. It is total: every
// operation is defined for all valid inputs and never errors.
type RNG struct {
	seed int64
	r    *rand.Rand
}

// New returns an RNG seeded deterministically from seed.
func New(seed int64) *RNG {
	return &RNG{seed: seed, r: rand.New(rand.NewSource(seed))}
}

// Seed returns the seed this RNG was constructed with.
func (g *RNG) Seed() int64 { return g.seed }

// Float64 returns a random float64 in [0, 1).
func (g *RNG) Float64() float64 { return g.r.Float64() }

// Uniform returns a random float64 N such that a <= N <= b.
func (g *RNG) Uniform(a, b float64) float64 {
	if a > b {
		a, b = b, a
	}
	return a + g.r.Float64()*(b-a)
}

// Gauss returns a sample from a Gaussian distribution with the given mean and stddev.
func (g *RNG) Gauss(mu, sigma float64) float64 {
	return mu + g.r.NormFloat64()*sigma
}

// IntRange returns a random integer N such that a <= N <= b.
func (g *RNG) IntRange(a, b int) int {
	if a > b {
		a, b = b, a
	}
	return a + g.r.Intn(b-a+1)
}

// Choice returns a random element from a non-empty slice of indices [0, n).
// Callers index their own slice with the returned value; this keeps the
// RNG free of generics while still drawing exactly one random value.
func (g *RNG) Choice(n int) int {
	if n <= 0 {
		return 0
	}
	return g.r.Intn(n)
}

// WeightedChoice returns an index into weights chosen proportionally to the
// (non-negative) weight values. If all weights are zero or weights is empty,
// it falls back to a uniform choice over len(weights) (or 0 if empty).
func (g *RNG) WeightedChoice(weights []float64) int {
	if len(weights) == 0 {
		return 0
	}
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return g.Choice(len(weights))
	}
	target := g.r.Float64() * total
	var cumulative float64
	for i, w := range weights {
		if w > 0 {
			cumulative += w
		}
		if target < cumulative {
			return i
		}
	}
	return len(weights) - 1
}

// SampleWithoutReplacement returns k distinct indices drawn uniformly at
// random from [0, n), in draw order. If k >= n, it returns a random
// permutation of [0, n).
func (g *RNG) SampleWithoutReplacement(n, k int) []int {
	if k > n {
		k = n
	}
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	g.ShuffleInts(pool)
	return pool[:k]
}

// ShuffleInts shuffles a slice of ints in place using the Fisher-Yates algorithm.
func (g *RNG) ShuffleInts(s []int) {
	g.r.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
}

// Noise applies multiplicative noise to a base value:
// base * (1 + U[-variance, variance]).
func (g *RNG) Noise(base, variance float64) float64 {
	return base * (1 + g.Uniform(-variance, variance))
}

// Bernoulli returns true with probability p (clamped to [0,1]).
func (g *RNG) Bernoulli(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return g.r.Float64() < p
}

// Fork derives an independent RNG stream from this one, consuming one draw
// from the parent to do so. Used to give a sub-component (e.g. one
// segment's query synthesis) its own stream without disturbing the parent's
// sequence position in a way that depends on how much the child consumes.
func (g *RNG) Fork(offset int64) *RNG {
	derived := g.seed + offset + int64(g.r.Intn(1<<31))
	return New(derived)
}

// DayRNG returns the RNG for day N of a run with the given base seed, such
// that simulating {day 1 .. day N} produces the same day-N results whether
// or not prior days were executed in the same process.
func DayRNG(baseSeed int64, day int) *RNG {
	return New(baseSeed*1_000_000 + int64(day))
}
