package xval

import (
	"math"
	"math/rand"
	"sort"
	"time"
)

//////
// Helper functions.
//////

// logTolerance absorbs floating point error when comparing powers.
const logTolerance = 1e-9

// resolveRand returns rng, or a new time-seeded generator if rng is nil.
//
// This is only ever called at an API boundary; algorithms receive the
// resolved generator explicitly.
func resolveRand(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}

	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// ceilLog returns the smallest r >= 1 with rate^r >= x.
func ceilLog(x, rate float64) int {
	r, p := 1, rate
	for p*(1+logTolerance) < x {
		p *= rate
		r++
	}

	return r
}

// floorLog returns the largest r >= 0 with rate^r <= x, or 0 if x < 1.
func floorLog(x, rate float64) int {
	r, p := 0, rate
	for p <= x*(1+logTolerance) {
		p *= rate
		r++
	}

	return r
}

// ceilDiv returns ceil(a/b), ignoring floating point noise.
func ceilDiv(a, b float64) int {
	return int(math.Ceil(a/b - logTolerance))
}

// floorDiv returns floor(a/b), ignoring floating point noise.
func floorDiv(a, b float64) int {
	return int(math.Floor(a/b + logTolerance))
}

// isIntegral reports whether T is an integer type.
func isIntegral[T Number]() bool {
	var zero T

	switch any(zero).(type) {
	case float32, float64:
		return false
	default:
		return true
	}
}

// toFloat converts any built-in integer or float kind to float64.
func toFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case uintptr:
		return float64(v), true
	default:
		return 0, false
	}
}

// floorTo converts x to T, rounding down for integer types.
func floorTo[T Number](x float64) T {
	if isIntegral[T]() {
		return T(math.Floor(x))
	}

	return T(x)
}

// roundTo converts x to T, rounding to nearest for integer types.
func roundTo[T Number](x float64) T {
	if isIntegral[T]() {
		return T(math.Round(x))
	}

	return T(x)
}

// mean returns the arithmetic mean of xs.
func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}

	return sum / float64(len(xs))
}

// better reports whether loss a beats loss b in the given direction.
func better(a, b float64, maximize bool) bool {
	if maximize {
		return a > b
	}

	return a < b
}

// argbest returns the index of the best loss; the first one wins ties.
func argbest(losses []float64, maximize bool) int {
	best := 0
	for i := 1; i < len(losses); i++ {
		if better(losses[i], losses[best], maximize) {
			best = i
		}
	}

	return best
}

// rank returns the indices of losses ordered best first. The sort is
// stable, so equal losses keep their original order.
func rank(losses []float64, maximize bool) []int {
	idx := make([]int, len(losses))
	for i := range idx {
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		return better(losses[idx[a]], losses[idx[b]], maximize)
	})

	return idx
}
