package xval

import (
	"math"
	"math/rand"
	"sort"

	"golang.org/x/exp/constraints"
)

//////
// Const, vars, types.
//////

// probTolerance is how far a probability vector may sum away from one.
const probTolerance = 1e-8

// Distribution describes the domain of one hyperparameter.
//
// The set of implementations is closed: Discrete, DiscreteUniform, Uniform,
// LogUniform and Normal.
type Distribution interface {
	// Sample draws one value.
	Sample(rng *rand.Rand) any

	// Bounds returns the lower and upper bound of the domain. Discrete kinds
	// report 1-based index bounds (1, Len); continuous kinds their interval.
	Bounds() (lo, hi float64)

	// Neighbor draws a value near at, no further than step away, clamped to
	// the domain. Discrete kinds measure step in positions.
	//
	// Returns ErrBounds if at is not a value of the domain.
	Neighbor(rng *rand.Rand, at any, step float64) (any, error)
}

// Finite is a Distribution over an enumerable, ordered set of values.
type Finite interface {
	Distribution

	// Len returns the number of values.
	Len() int

	// Value returns the i-th value, 0-based.
	Value(i int) any

	// Index returns the position of v, if present.
	Index(v any) (int, bool)
}

// Discrete is a distribution over explicit values with explicit
// probabilities.
type Discrete[T comparable] struct {
	values []T
	probs  []float64
	cdf    []float64
}

// DiscreteUniform is a distribution over explicit values, each equally
// likely.
type DiscreteUniform[T comparable] struct {
	values []T
}

// Uniform is the continuous uniform distribution on [A, B].
//
// Type Parameter:
//   - F: The floating point precision of sampled values.
type Uniform[F constraints.Float] struct {
	A, B F
}

// LogUniform is the distribution on [A, B] whose logarithm is uniform.
type LogUniform[F constraints.Float] struct {
	A, B F
}

// Normal is the normal distribution with the given mean and standard
// deviation. It is unbounded.
type Normal[F constraints.Float] struct {
	Mean, Std F
}

//////
// Factory.
//////

// NewDiscrete returns a distribution drawing values[i] with probability
// probs[i].
//
// Returns ErrValidation if values is empty, the lengths differ, a
// probability is negative, or the probabilities do not sum to one.
//
// Usage example:
//
//	d, err := xval.NewDiscrete([]string{"gini", "entropy"}, []float64{0.7, 0.3})
func NewDiscrete[T comparable](values []T, probs []float64) (*Discrete[T], error) {
	if len(values) == 0 {
		return nil, validationf("discrete distribution needs at least one value")
	}

	if len(values) != len(probs) {
		return nil, validationf("%d values but %d probabilities", len(values), len(probs))
	}

	cdf := make([]float64, len(probs))

	var sum float64

	for i, p := range probs {
		if p < 0 || math.IsNaN(p) {
			return nil, validationf("probability %v at position %d is negative", p, i)
		}

		sum += p
		cdf[i] = sum
	}

	if math.Abs(sum-1) > probTolerance {
		return nil, validationf("probabilities sum to %v, not 1", sum)
	}

	return &Discrete[T]{
		values: append([]T(nil), values...),
		probs:  append([]float64(nil), probs...),
		cdf:    cdf,
	}, nil
}

// NewDiscreteUniform returns a distribution drawing each of values with
// equal probability.
//
// Returns ErrValidation if values is empty.
func NewDiscreteUniform[T comparable](values ...T) (*DiscreteUniform[T], error) {
	if len(values) == 0 {
		return nil, validationf("discrete distribution needs at least one value")
	}

	return &DiscreteUniform[T]{values: append([]T(nil), values...)}, nil
}

// NewUniform returns the uniform distribution on [a, b].
//
// Returns ErrValidation unless a < b.
func NewUniform[F constraints.Float](a, b F) (Uniform[F], error) {
	if !(a < b) {
		return Uniform[F]{}, validationf("uniform lower bound %v is not below upper bound %v", a, b)
	}

	return Uniform[F]{A: a, B: b}, nil
}

// NewLogUniform returns the log-uniform distribution on [a, b].
//
// Returns ErrValidation unless 0 < a < b.
func NewLogUniform[F constraints.Float](a, b F) (LogUniform[F], error) {
	if !(a < b) {
		return LogUniform[F]{}, validationf("log-uniform lower bound %v is not below upper bound %v", a, b)
	}

	if a <= 0 {
		return LogUniform[F]{}, validationf("log-uniform lower bound %v is not positive", a)
	}

	return LogUniform[F]{A: a, B: b}, nil
}

// NewNormal returns the normal distribution N(mean, std²).
//
// Returns ErrValidation unless std > 0.
func NewNormal[F constraints.Float](mean, std F) (Normal[F], error) {
	if !(std > 0) {
		return Normal[F]{}, validationf("normal standard deviation %v is not positive", std)
	}

	return Normal[F]{Mean: mean, Std: std}, nil
}

//////
// Methods.
//////

// Sample implements Distribution by inverse-CDF lookup. If rounding leaves
// the draw above the last cumulative probability, the last value is
// returned.
func (d *Discrete[T]) Sample(rng *rand.Rand) any {
	u := rng.Float64()

	i := sort.Search(len(d.cdf), func(i int) bool { return d.cdf[i] > u })
	if i == len(d.cdf) {
		i--
	}

	return d.values[i]
}

// Bounds implements Distribution.
func (d *Discrete[T]) Bounds() (lo, hi float64) { return 1, float64(len(d.values)) }

// Neighbor implements Distribution.
func (d *Discrete[T]) Neighbor(rng *rand.Rand, at any, step float64) (any, error) {
	return neighborIndex[T](rng, d, d.values, at, step)
}

// Len implements Finite.
func (d *Discrete[T]) Len() int { return len(d.values) }

// Value implements Finite.
func (d *Discrete[T]) Value(i int) any { return d.values[i] }

// Index implements Finite.
func (d *Discrete[T]) Index(v any) (int, bool) { return indexOf(d.values, v) }

// Probs returns a copy of the probability vector.
func (d *Discrete[T]) Probs() []float64 { return append([]float64(nil), d.probs...) }

// Sample implements Distribution.
func (d *DiscreteUniform[T]) Sample(rng *rand.Rand) any { return d.values[rng.Intn(len(d.values))] }

// Bounds implements Distribution.
func (d *DiscreteUniform[T]) Bounds() (lo, hi float64) { return 1, float64(len(d.values)) }

// Neighbor implements Distribution.
func (d *DiscreteUniform[T]) Neighbor(rng *rand.Rand, at any, step float64) (any, error) {
	return neighborIndex[T](rng, d, d.values, at, step)
}

// Len implements Finite.
func (d *DiscreteUniform[T]) Len() int { return len(d.values) }

// Value implements Finite.
func (d *DiscreteUniform[T]) Value(i int) any { return d.values[i] }

// Index implements Finite.
func (d *DiscreteUniform[T]) Index(v any) (int, bool) { return indexOf(d.values, v) }

// Sample implements Distribution.
func (d Uniform[F]) Sample(rng *rand.Rand) any {
	return d.A + F(rng.Float64())*(d.B-d.A)
}

// Bounds implements Distribution.
func (d Uniform[F]) Bounds() (lo, hi float64) { return float64(d.A), float64(d.B) }

// Neighbor implements Distribution.
func (d Uniform[F]) Neighbor(rng *rand.Rand, at any, step float64) (any, error) {
	return neighborInterval(rng, d.A, d.B, at, step)
}

// Sample implements Distribution.
func (d LogUniform[F]) Sample(rng *rand.Rand) any {
	lo, hi := math.Log(float64(d.A)), math.Log(float64(d.B))

	v := F(math.Exp(lo + rng.Float64()*(hi-lo)))

	// exp(log(x)) may land a hair outside the interval.
	return min(max(v, d.A), d.B)
}

// Bounds implements Distribution.
func (d LogUniform[F]) Bounds() (lo, hi float64) { return float64(d.A), float64(d.B) }

// Neighbor implements Distribution.
func (d LogUniform[F]) Neighbor(rng *rand.Rand, at any, step float64) (any, error) {
	return neighborInterval(rng, d.A, d.B, at, step)
}

// Sample implements Distribution.
func (d Normal[F]) Sample(rng *rand.Rand) any {
	return d.Mean + d.Std*F(rng.NormFloat64())
}

// Bounds implements Distribution. A normal distribution has no hard bounds.
func (d Normal[F]) Bounds() (lo, hi float64) { return math.Inf(-1), math.Inf(1) }

// Neighbor implements Distribution.
func (d Normal[F]) Neighbor(rng *rand.Rand, at any, step float64) (any, error) {
	return neighborInterval(rng, F(math.Inf(-1)), F(math.Inf(1)), at, step)
}

//////
// Helper functions.
//////

// indexOf finds v in values.
func indexOf[T comparable](values []T, v any) (int, bool) {
	t, ok := v.(T)
	if !ok {
		return 0, false
	}

	for i, x := range values {
		if x == t {
			return i, true
		}
	}

	return 0, false
}

// neighborIndex draws a position within step positions of at's position.
// Any positive step reaches at least the adjacent positions.
func neighborIndex[T comparable](rng *rand.Rand, d Finite, values []T, at any, step float64) (any, error) {
	i, ok := d.Index(at)
	if !ok {
		return nil, boundsf("%v is not one of the %d values of the distribution", at, len(values))
	}

	k := max(1, int(step))
	lo, hi := max(0, i-k), min(len(values)-1, i+k)

	return values[lo+rng.Intn(hi-lo+1)], nil
}

// neighborInterval draws uniformly from [at-step, at+step] clamped to [a, b].
func neighborInterval[F constraints.Float](rng *rand.Rand, a, b F, at any, step float64) (any, error) {
	v, ok := at.(F)
	if !ok {
		return nil, boundsf("%v (%T) is not a %T", at, at, a)
	}

	if math.IsNaN(float64(v)) || v < a || v > b {
		return nil, boundsf("%v is outside [%v, %v]", v, a, b)
	}

	lo, hi := max(a, v-F(step)), min(b, v+F(step))

	return lo + F(rng.Float64())*(hi-lo), nil
}
