package xval

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/constraints"
)

//////
// Const, vars, types.
//////

// Number is the set of numeric types a Budget can be expressed in.
type Number interface {
	constraints.Integer | constraints.Float
}

// Budget is a quantity of training effort, such as epochs or boosting
// rounds, injected into Trainer.Fit as the keyword argument Name.
//
// Type Parameter:
//   - T: The numeric type of the budget. Integer budgets are rounded when
//     divided across rounds and arms; float budgets are not.
type Budget[T Number] struct {
	// Name is the key under which a per-round share is passed in Args.
	Name string `yaml:"name"`

	// Value is the total amount of effort.
	Value T `yaml:"value"`
}

// Mode is a budget allocation schedule.
type Mode int

// Allocation schedules.
const (
	// GeometricAllocation splits the budget evenly across rounds, so arms
	// receive geometrically more effort as the pool shrinks.
	GeometricAllocation Mode = iota

	// ConstantAllocation gives every arm the same effort in every round.
	ConstantAllocation

	// HyperbandAllocation gives the last round the full budget and each
	// earlier round 1/rate of the next one.
	HyperbandAllocation
)

// Round is one step of an allocation schedule.
type Round[T Number] struct {
	// Arms is the number of arms fitted this round.
	Arms int

	// Survivors is the number of arms kept after this round.
	Survivors int

	// Budget is the effort given to each arm this round.
	Budget T
}

//////
// Factory.
//////

// NewBudget returns a named budget.
//
// Returns ErrValidation if name is empty or value is not positive.
func NewBudget[T Number](name string, value T) (Budget[T], error) {
	b := Budget[T]{Name: name, Value: value}

	return b, b.validate()
}

// ParseMode parses "geometric", "constant" or "hyperband".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "geometric", "":
		return GeometricAllocation, nil
	case "constant":
		return ConstantAllocation, nil
	case "hyperband":
		return HyperbandAllocation, nil
	default:
		return 0, validationf("unknown allocation mode %q", s)
	}
}

//////
// Exported functionalities.
//////

// Allocate computes the schedule for arms arms shrinking by rate per round.
// The number of rounds is the smallest r >= 1 with rate^r >= arms, so the
// pool always ends with a single survivor. This differs from the textbook
// floor(log_rate(arms)) + 1 whenever arms is an exact power of rate: 9 arms
// at rate 3 run 2 rounds (9, 3), not 3. Use AllocateRounds to force a count.
//
// Returns ErrValidation if the budget is invalid, arms < 1 or rate <= 1.
//
// Usage example:
//
//	b, _ := xval.NewBudget("epochs", 81)
//	schedule, err := xval.Allocate(b, xval.GeometricAllocation, 8, 2)
//	// survivors: 4, 2, 1
func Allocate[T Number](budget Budget[T], mode Mode, arms int, rate float64) ([]Round[T], error) {
	if err := checkArms(arms, rate); err != nil {
		return nil, err
	}

	return AllocateRounds(budget, mode, arms, rate, ceilLog(float64(arms), rate))
}

// AllocateRounds is Allocate with an explicit number of rounds.
//
// Per round i = 1..rounds:
//   - Geometric: survivors ceil(arms/rate^i); each arm gets
//     budget / (ceil(arms/rate^(i-1)) * rounds), rounded down.
//   - Constant: survivors as Geometric; each arm gets
//     budget * (rate-1) * rate^(rounds-1) / (arms * (rate^rounds - 1)),
//     rounded down.
//   - Hyperband: survivors max(floor(arms/rate^i), 1); each arm gets
//     budget / rate^(rounds-i), rounded to nearest.
func AllocateRounds[T Number](budget Budget[T], mode Mode, arms int, rate float64, rounds int) ([]Round[T], error) {
	if err := budget.validate(); err != nil {
		return nil, err
	}

	if err := checkArms(arms, rate); err != nil {
		return nil, err
	}

	if rounds < 1 {
		return nil, validationf("number of rounds %d is not positive", rounds)
	}

	total := float64(budget.Value)
	n := float64(arms)
	out := make([]Round[T], rounds)

	switch mode {
	case GeometricAllocation:
		for i := range out {
			fitted := ceilDiv(n, math.Pow(rate, float64(i)))
			out[i] = Round[T]{
				Arms:      fitted,
				Survivors: ceilDiv(n, math.Pow(rate, float64(i+1))),
				Budget:    floorTo[T](total / float64(fitted*rounds)),
			}
		}
	case ConstantAllocation:
		r := float64(rounds)
		each := floorTo[T](total * (rate - 1) * math.Pow(rate, r-1) / (n * (math.Pow(rate, r) - 1)))

		for i := range out {
			out[i] = Round[T]{
				Arms:      ceilDiv(n, math.Pow(rate, float64(i))),
				Survivors: ceilDiv(n, math.Pow(rate, float64(i+1))),
				Budget:    each,
			}
		}
	case HyperbandAllocation:
		// Round to nearest, unlike the other schedules.
		for i := range out {
			out[i] = Round[T]{
				Arms:      max(floorDiv(n, math.Pow(rate, float64(i))), 1),
				Survivors: max(floorDiv(n, math.Pow(rate, float64(i+1))), 1),
				Budget:    roundTo[T](total / math.Pow(rate, float64(rounds-i-1))),
			}
		}
	default:
		return nil, validationf("unknown allocation mode %d", int(mode))
	}

	return out, nil
}

//////
// Methods.
//////

// Args returns a copy of base with the budget name set to share.
func (b Budget[T]) Args(base Args, share T) Args { return base.With(b.Name, share) }

func (b Budget[T]) validate() error {
	if b.Name == "" {
		return validationf("budget needs a name")
	}

	if !(b.Value > 0) {
		return validationf("budget %q value %v is not positive", b.Name, b.Value)
	}

	return nil
}

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case GeometricAllocation:
		return "geometric"
	case ConstantAllocation:
		return "constant"
	case HyperbandAllocation:
		return "hyperband"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}

	*m = v

	return nil
}

// Set implements pflag.Value so a Mode can be bound to a CLI flag.
func (m *Mode) Set(s string) error { return m.UnmarshalText([]byte(s)) }

// Type implements pflag.Value.
func (m *Mode) Type() string { return "mode" }

//////
// Helper functions.
//////

// checkArms validates an arm count and survival rate.
func checkArms(arms int, rate float64) error {
	if arms < 1 {
		return validationf("number of arms %d is not positive", arms)
	}

	if !(rate > 1) || math.IsInf(rate, 1) {
		return validationf("rate %v is not a finite number above 1", rate)
	}

	return nil
}
