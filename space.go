package xval

import (
	"fmt"
	"iter"
	"math"
	"math/rand"
	"strings"
)

//////
// Const, vars, types.
//////

// Params is one named hyperparameter combination.
type Params map[string]any

// Args are named extra arguments handed to Trainer.Fit, such as a training
// budget.
type Args map[string]any

// Dim is one named dimension of a parameter space.
type Dim struct {
	Name string
	Dist Distribution
}

// Space is a named product of distributions.
//
// The set of implementations is closed: *FiniteSpace, when every dimension
// is Finite, and *InfiniteSpace otherwise.
type Space interface {
	// Names returns the dimension names in order.
	Names() []string

	// Sample draws one combination, each dimension independently.
	Sample(rng *rand.Rand) Params

	// SampleN draws n independent combinations, with replacement.
	SampleN(rng *rand.Rand, n int) []Params

	// Neighbors draws n combinations near at, perturbing every dimension by
	// at most step. Returns ErrBounds if at lies outside the space.
	Neighbors(rng *rand.Rand, at Params, step float64, n int) ([]Params, error)

	// Key returns a canonical string for p, equal for equal combinations.
	Key(p Params) string
}

// dims is the part shared by every Space.
type dims struct {
	names []string
	dists []Distribution
}

// FiniteSpace is a product of Finite distributions. Its combinations can be
// enumerated in mixed-radix order with the first dimension varying fastest.
type FiniteSpace struct {
	dims

	radix []int
	n     int
}

// InfiniteSpace is a product containing at least one continuous dimension.
// It can only be sampled.
type InfiniteSpace struct {
	dims
}

//////
// Factory.
//////

// P is shorthand for Dim{Name: name, Dist: dist}.
func P(name string, dist Distribution) Dim { return Dim{Name: name, Dist: dist} }

// NewSpace builds a FiniteSpace if every dimension is Finite and an
// InfiniteSpace otherwise.
//
// Returns ErrValidation if a name is empty or repeated, a distribution is
// nil, or a finite space has more combinations than an int can count.
//
// Usage example:
//
//	depth, _ := xval.NewDiscreteUniform(2, 4, 8)
//	lr, _ := xval.NewLogUniform(1e-4, 1e-1)
//	space, err := xval.NewSpace(xval.P("depth", depth), xval.P("lr", lr))
func NewSpace(ds ...Dim) (Space, error) {
	d, finite, err := newDims(ds)
	if err != nil {
		return nil, err
	}

	if finite {
		return newFinite(d)
	}

	return &InfiniteSpace{dims: d}, nil
}

// NewFiniteSpace is NewSpace restricted to Finite dimensions.
//
// Returns ErrValidation if any dimension is not Finite.
func NewFiniteSpace(ds ...Dim) (*FiniteSpace, error) {
	d, finite, err := newDims(ds)
	if err != nil {
		return nil, err
	}

	if !finite {
		return nil, validationf("finite space needs discrete dimensions only")
	}

	return newFinite(d)
}

// NewInfiniteSpace is NewSpace that never enumerates, even if every
// dimension happens to be Finite.
func NewInfiniteSpace(ds ...Dim) (*InfiniteSpace, error) {
	d, _, err := newDims(ds)
	if err != nil {
		return nil, err
	}

	return &InfiniteSpace{dims: d}, nil
}

//////
// Methods.
//////

// Float returns the named value as a float64. Every built-in integer and
// float kind is converted; anything else yields 0.
func (p Params) Float(name string) float64 {
	f, _ := toFloat(p[name])

	return f
}

// Int returns the named value as an int. Every built-in integer kind is
// converted and float kinds are truncated; anything else yields 0.
func (p Params) Int(name string) int {
	switch v := p[name].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	case uint64:
		return int(v)
	case uintptr:
		return int(v)
	default:
		f, _ := toFloat(v)

		return int(f)
	}
}

// Text returns the named value as a string, formatting non-strings with %v.
func (p Params) Text(name string) string {
	if s, ok := p[name].(string); ok {
		return s
	}

	return fmt.Sprint(p[name])
}

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}

	return out
}

// With returns a copy of a with name set to value.
func (a Args) With(name string, value any) Args {
	out := make(Args, len(a)+1)
	for k, v := range a {
		out[k] = v
	}

	out[name] = value

	return out
}

// Names implements Space.
func (d dims) Names() []string { return append([]string(nil), d.names...) }

// Sample implements Space.
func (d dims) Sample(rng *rand.Rand) Params {
	p := make(Params, len(d.names))
	for i, name := range d.names {
		p[name] = d.dists[i].Sample(rng)
	}

	return p
}

// SampleN implements Space.
func (d dims) SampleN(rng *rand.Rand, n int) []Params {
	out := make([]Params, n)
	for i := range out {
		out[i] = d.Sample(rng)
	}

	return out
}

// Neighbors implements Space.
func (d dims) Neighbors(rng *rand.Rand, at Params, step float64, n int) ([]Params, error) {
	out := make([]Params, n)

	for i := range out {
		p := make(Params, len(d.names))

		for j, name := range d.names {
			v, err := d.dists[j].Neighbor(rng, at[name], step)
			if err != nil {
				return nil, fmt.Errorf("dimension %q: %w", name, err)
			}

			p[name] = v
		}

		out[i] = p
	}

	return out, nil
}

// Key implements Space.
func (d dims) Key(p Params) string {
	var b strings.Builder
	for _, name := range d.names {
		fmt.Fprintf(&b, "%s=%v;", name, p[name])
	}

	return b.String()
}

// Dist returns the distribution of the named dimension.
func (d dims) Dist(name string) (Distribution, bool) {
	for i, n := range d.names {
		if n == name {
			return d.dists[i], true
		}
	}

	return nil, false
}

// Len returns the number of combinations: the product of every dimension's
// cardinality, or 0 for a space without dimensions.
func (s *FiniteSpace) Len() int { return s.n }

// At decodes the 0-based index i into its combination. The first dimension
// varies fastest: with cardinalities (2, 3), At(0) = (a0, b0),
// At(1) = (a1, b0), At(2) = (a0, b1), and so on.
//
// Returns ErrBounds unless 0 <= i < Len().
func (s *FiniteSpace) At(i int) (Params, error) {
	if i < 0 || i >= s.Len() {
		return nil, boundsf("index %d is outside 0..%d", i, s.Len()-1)
	}

	return s.at(i), nil
}

// All yields every combination exactly once, in At order.
func (s *FiniteSpace) All() iter.Seq[Params] {
	return func(yield func(Params) bool) {
		for i := 0; i < s.Len(); i++ {
			if !yield(s.at(i)) {
				return
			}
		}
	}
}

// Candidates returns every combination, in At order.
func (s *FiniteSpace) Candidates() []Params {
	out := make([]Params, 0, s.Len())
	for p := range s.All() {
		out = append(out, p)
	}

	return out
}

func (s *FiniteSpace) at(i int) Params {
	p := make(Params, len(s.names))

	for j, name := range s.names {
		f := s.dists[j].(Finite)
		p[name] = f.Value(i % s.radix[j])
		i /= s.radix[j]
	}

	return p
}

//////
// Helper functions.
//////

// newDims validates dimensions and reports whether they are all Finite.
func newDims(ds []Dim) (d dims, finite bool, err error) {
	seen := make(map[string]bool, len(ds))
	finite = true

	for i, dim := range ds {
		if dim.Name == "" {
			return dims{}, false, validationf("dimension %d has an empty name", i)
		}

		if seen[dim.Name] {
			return dims{}, false, validationf("duplicate dimension %q", dim.Name)
		}

		seen[dim.Name] = true

		if dim.Dist == nil {
			return dims{}, false, validationf("dimension %q has no distribution", dim.Name)
		}

		if _, ok := dim.Dist.(Finite); !ok {
			finite = false
		}

		d.names = append(d.names, dim.Name)
		d.dists = append(d.dists, dim.Dist)
	}

	return d, finite, nil
}

func newFinite(d dims) (*FiniteSpace, error) {
	if len(d.dists) == 0 {
		return &FiniteSpace{dims: d}, nil
	}

	radix := make([]int, len(d.dists))
	n := 1

	for i, dist := range d.dists {
		radix[i] = dist.(Finite).Len()

		if radix[i] > 0 && n > math.MaxInt/radix[i] {
			return nil, validationf("space has more than %d combinations", math.MaxInt)
		}

		n *= radix[i]
	}

	return &FiniteSpace{dims: d, radix: radix, n: n}, nil
}
