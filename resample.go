package xval

import (
	"iter"
	"math"
	"math/rand"
)

//////
// Const, vars, types.
//////

// Resampler splits a dataset into a finite sequence of (train, test) pairs.
//
// A Resampler is immutable once built. Randomized policies draw their
// permutation at construction, so every traversal of All (and every call to
// Split) reproduces exactly the same pairs.
type Resampler[D Dataset[D]] interface {
	// Len returns the number of (train, test) pairs.
	Len() int

	// Split returns the 0-based observation indices of pair i, for
	// 0 <= i < Len(). Out-of-range i panics.
	Split(i int) (train, test []int)

	// Pair materializes pair i. Every call returns fresh copies, so callers
	// may mutate them. Out-of-range i panics.
	Pair(i int) (train, test D)

	// All lazily yields every (train, test) pair in order. The sequence is
	// restartable.
	All() iter.Seq2[D, D]
}

// indexSplitter is the index-level part of a Resampler.
type indexSplitter interface {
	Len() int
	Split(i int) (train, test []int)
}

// FixedSplit holds out everything after the first m observations.
type FixedSplit[D Dataset[D]] struct {
	data D
	n, m int
}

// RandomSplit is a FixedSplit applied through a random permutation drawn
// once at construction.
type RandomSplit[D Dataset[D]] struct {
	data D
	m    int
	perm []int
}

// LeaveOneOut holds out each observation in turn.
type LeaveOneOut[D Dataset[D]] struct {
	data D
	n    int
}

// KFold partitions a fixed random permutation into k contiguous folds and
// holds out each fold in turn.
type KFold[D Dataset[D]] struct {
	data D
	k    int
	perm []int
}

// ForwardChaining trains on a growing prefix and tests on the block that
// follows it.
type ForwardChaining[D Dataset[D]] struct {
	data         D
	n, init, out int
	partial      bool
}

// SlidingWindow trains on a fixed-size window that slides forward by out
// observations each round and tests on the block that follows it.
type SlidingWindow[D Dataset[D]] struct {
	data           D
	n, window, out int
	partial        bool
}

//////
// Factory.
//////

// NewFixedSplit returns a single pair: the first m observations for training
// and the rest for testing, in original order.
//
// Returns ErrValidation unless 0 < m < data.NObs().
//
// Usage example:
//
//	r, err := xval.NewFixedSplit(xval.Vector[int]{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 4)
//	// train = [1 2 3 4], test = [5 6 7 8 9 10]
func NewFixedSplit[D Dataset[D]](data D, m int) (*FixedSplit[D], error) {
	n := data.NObs()
	if err := checkSize("train size", m, n); err != nil {
		return nil, err
	}

	return &FixedSplit[D]{data: data, n: n, m: m}, nil
}

// NewFixedSplitRatio is NewFixedSplit with m = floor(ratio * NObs).
func NewFixedSplitRatio[D Dataset[D]](data D, ratio float64) (*FixedSplit[D], error) {
	return NewFixedSplit(data, ratioSize(ratio, data.NObs()))
}

// NewRandomSplit draws one permutation of all observations from rng and
// splits it after m entries. A nil rng is replaced by a time-seeded one.
//
// Returns ErrValidation unless 0 < m < data.NObs().
func NewRandomSplit[D Dataset[D]](data D, m int, rng *rand.Rand) (*RandomSplit[D], error) {
	n := data.NObs()
	if err := checkSize("train size", m, n); err != nil {
		return nil, err
	}

	return &RandomSplit[D]{data: data, m: m, perm: resolveRand(rng).Perm(n)}, nil
}

// NewRandomSplitRatio is NewRandomSplit with m = floor(ratio * NObs).
func NewRandomSplitRatio[D Dataset[D]](data D, ratio float64, rng *rand.Rand) (*RandomSplit[D], error) {
	return NewRandomSplit(data, ratioSize(ratio, data.NObs()), rng)
}

// NewLeaveOneOut returns one pair per observation.
//
// Returns ErrValidation if the dataset has fewer than two observations.
func NewLeaveOneOut[D Dataset[D]](data D) (*LeaveOneOut[D], error) {
	n := data.NObs()
	if n < 2 {
		return nil, validationf("leave-one-out needs at least 2 observations, got %d", n)
	}

	return &LeaveOneOut[D]{data: data, n: n}, nil
}

// NewKFold draws one permutation from rng and cuts it into k folds of size
// floor(n/k) or floor(n/k)+1; the first n mod k folds get the extra
// observation. A nil rng is replaced by a time-seeded one.
//
// Returns ErrValidation unless 1 < k <= data.NObs().
func NewKFold[D Dataset[D]](data D, k int, rng *rand.Rand) (*KFold[D], error) {
	n := data.NObs()
	if k <= 1 || k > n {
		return nil, validationf("number of folds %d is not in 2..%d", k, n)
	}

	return &KFold[D]{data: data, k: k, perm: resolveRand(rng).Perm(n)}, nil
}

// NewForwardChaining starts with the first init observations and grows the
// training prefix by out each round, testing on the out observations that
// follow. With partial set, a final undersized test block is kept.
//
// Returns ErrValidation unless init and out are positive and init+out does
// not exceed data.NObs().
func NewForwardChaining[D Dataset[D]](data D, init, out int, partial bool) (*ForwardChaining[D], error) {
	n := data.NObs()
	if err := checkWindow("initial window", init, out, n); err != nil {
		return nil, err
	}

	return &ForwardChaining[D]{data: data, n: n, init: init, out: out, partial: partial}, nil
}

// NewSlidingWindow trains on window observations starting at round*out and
// tests on the out observations that follow. With partial set, a final
// undersized test block is kept.
//
// Returns ErrValidation unless window and out are positive and window+out
// does not exceed data.NObs().
func NewSlidingWindow[D Dataset[D]](data D, window, out int, partial bool) (*SlidingWindow[D], error) {
	n := data.NObs()
	if err := checkWindow("window", window, out, n); err != nil {
		return nil, err
	}

	return &SlidingWindow[D]{data: data, n: n, window: window, out: out, partial: partial}, nil
}

//////
// Methods.
//////

// Len implements Resampler.
func (r *FixedSplit[D]) Len() int { return 1 }

// Split implements Resampler.
func (r *FixedSplit[D]) Split(i int) (train, test []int) {
	mustPair(i, 1)

	return span(0, r.m), span(r.m, r.n)
}

// Pair implements Resampler.
func (r *FixedSplit[D]) Pair(i int) (train, test D) { return pairAt(r.data, r, i) }

// All implements Resampler.
func (r *FixedSplit[D]) All() iter.Seq2[D, D] { return pairs(r.data, r) }

// Len implements Resampler.
func (r *RandomSplit[D]) Len() int { return 1 }

// Split implements Resampler.
func (r *RandomSplit[D]) Split(i int) (train, test []int) {
	mustPair(i, 1)

	return clone(r.perm[:r.m]), clone(r.perm[r.m:])
}

// Pair implements Resampler.
func (r *RandomSplit[D]) Pair(i int) (train, test D) { return pairAt(r.data, r, i) }

// All implements Resampler.
func (r *RandomSplit[D]) All() iter.Seq2[D, D] { return pairs(r.data, r) }

// Len implements Resampler.
func (r *LeaveOneOut[D]) Len() int { return r.n }

// Split implements Resampler.
func (r *LeaveOneOut[D]) Split(i int) (train, test []int) {
	mustPair(i, r.n)

	train = make([]int, 0, r.n-1)
	train = append(train, span(0, i)...)
	train = append(train, span(i+1, r.n)...)

	return train, []int{i}
}

// Pair implements Resampler.
func (r *LeaveOneOut[D]) Pair(i int) (train, test D) { return pairAt(r.data, r, i) }

// All implements Resampler.
func (r *LeaveOneOut[D]) All() iter.Seq2[D, D] { return pairs(r.data, r) }

// Len implements Resampler.
func (r *KFold[D]) Len() int { return r.k }

// Split implements Resampler.
func (r *KFold[D]) Split(i int) (train, test []int) {
	mustPair(i, r.k)

	n := len(r.perm)
	size, extra := n/r.k, n%r.k

	start := i*size + min(i, extra)
	end := start + size
	if i < extra {
		end++
	}

	train = make([]int, 0, n-(end-start))
	train = append(train, r.perm[:start]...)
	train = append(train, r.perm[end:]...)

	return train, clone(r.perm[start:end])
}

// Pair implements Resampler.
func (r *KFold[D]) Pair(i int) (train, test D) { return pairAt(r.data, r, i) }

// All implements Resampler.
func (r *KFold[D]) All() iter.Seq2[D, D] { return pairs(r.data, r) }

// Len implements Resampler.
func (r *ForwardChaining[D]) Len() int { return rounds(r.n-r.init, r.out, r.partial) }

// Split implements Resampler.
func (r *ForwardChaining[D]) Split(i int) (train, test []int) {
	mustPair(i, r.Len())

	end := r.init + i*r.out

	return span(0, end), span(end, min(end+r.out, r.n))
}

// Pair implements Resampler.
func (r *ForwardChaining[D]) Pair(i int) (train, test D) { return pairAt(r.data, r, i) }

// All implements Resampler.
func (r *ForwardChaining[D]) All() iter.Seq2[D, D] { return pairs(r.data, r) }

// Len implements Resampler.
func (r *SlidingWindow[D]) Len() int { return rounds(r.n-r.window, r.out, r.partial) }

// Split implements Resampler.
func (r *SlidingWindow[D]) Split(i int) (train, test []int) {
	mustPair(i, r.Len())

	start := i * r.out
	end := start + r.window

	return span(start, end), span(end, min(end+r.out, r.n))
}

// Pair implements Resampler.
func (r *SlidingWindow[D]) Pair(i int) (train, test D) { return pairAt(r.data, r, i) }

// All implements Resampler.
func (r *SlidingWindow[D]) All() iter.Seq2[D, D] { return pairs(r.data, r) }

//////
// Helper functions.
//////

// pairs materializes each split of s lazily, one pair per iteration step.
func pairs[D Dataset[D]](data D, s indexSplitter) iter.Seq2[D, D] {
	return func(yield func(D, D) bool) {
		for i := 0; i < s.Len(); i++ {
			if !yield(pairAt(data, s, i)) {
				return
			}
		}
	}
}

// pairAt materializes split i of s.
func pairAt[D Dataset[D]](data D, s indexSplitter, i int) (train, test D) {
	tr, te := s.Split(i)

	return data.Subset(tr), data.Subset(te)
}

// checkSize validates 0 < m < n.
func checkSize(what string, m, n int) error {
	if m <= 0 || m >= n {
		return validationf("%s %d is not in 1..%d", what, m, n-1)
	}

	return nil
}

// checkWindow validates positive sizes whose sum fits in n observations.
func checkWindow(what string, size, out, n int) error {
	if size <= 0 || size >= n {
		return validationf("%s %d is not in 1..%d", what, size, n-1)
	}

	if out <= 0 || out >= n {
		return validationf("out-of-sample size %d is not in 1..%d", out, n-1)
	}

	if size+out > n {
		return validationf("%s %d plus out-of-sample size %d exceeds %d observations", what, size, out, n)
	}

	return nil
}

// ratioSize converts a training ratio into an observation count.
func ratioSize(ratio float64, n int) int {
	return int(math.Floor(ratio * float64(n)))
}

// rounds counts how many blocks of out fit in rest, rounding up if partial.
func rounds(rest, out int, partial bool) int {
	if partial {
		return (rest + out - 1) / out
	}

	return rest / out
}

// mustPair panics if i is not a valid pair index.
func mustPair(i, n int) {
	if i < 0 || i >= n {
		panic("xval: pair index out of range")
	}
}

// span returns the indices a, a+1, ..., b-1.
func span(a, b int) []int {
	if b <= a {
		return []int{}
	}

	out := make([]int, b-a)
	for i := range out {
		out[i] = a + i
	}

	return out
}

// clone copies an index slice.
func clone(s []int) []int { return append([]int(nil), s...) }
