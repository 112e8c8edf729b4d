package xval

import (
	"context"
	"log/slog"
	"math/rand"
)

// Trainer is the capability set a model type must provide to be validated
// and searched over.
//
// Type Parameters:
//   - M: The model type. A model returned by Fit may be passed to Fit again
//     to continue training it (successive halving does this between rounds).
//   - D: The dataset type produced by the resampler.
//
// Errors returned by Trainer methods reach the caller unmodified: nothing is
// retried, and a failed fit fails the whole round.
//
// Usage example:
//
//	type ridge struct{ lambda float64; w []float64 }
//
//	type ridgeTrainer struct{}
//
//	func (ridgeTrainer) New(p xval.Params) (*ridge, error) {
//	    return &ridge{lambda: p.Float("lambda")}, nil
//	}
//
//	func (ridgeTrainer) Fit(ctx context.Context, m *ridge, train xval.Table, args xval.Args) (*ridge, error) {
//	    // ... solve for m.w ...
//	    return m, nil
//	}
//
//	func (ridgeTrainer) Loss(ctx context.Context, m *ridge, test xval.Table) (float64, error) {
//	    // ... mean squared error ...
//	}
type Trainer[M any, D any] interface {
	// New builds an unfitted model from one parameter combination.
	New(params Params) (M, error)

	// Fit trains model on train. args carries Config.Args plus, for budgeted
	// searches, the budget share of the current round.
	Fit(ctx context.Context, model M, train D, args Args) (M, error)

	// Loss scores a fitted model on test. Lower is better unless the search
	// maximizes.
	Loss(ctx context.Context, model M, test D) (float64, error)
}

// Funcs adapts three functions to the Trainer interface.
type Funcs[M any, D any] struct {
	NewFunc  func(params Params) (M, error)
	FitFunc  func(ctx context.Context, model M, train D, args Args) (M, error)
	LossFunc func(ctx context.Context, model M, test D) (float64, error)
}

// New implements Trainer.
func (f Funcs[M, D]) New(params Params) (M, error) { return f.NewFunc(params) }

// Fit implements Trainer.
func (f Funcs[M, D]) Fit(ctx context.Context, model M, train D, args Args) (M, error) {
	return f.FitFunc(ctx, model, train, args)
}

// Loss implements Trainer.
func (f Funcs[M, D]) Loss(ctx context.Context, model M, test D) (float64, error) {
	return f.LossFunc(ctx, model, test)
}

// EvalFunc fits on train and scores on test in one step.
type EvalFunc[D any] func(ctx context.Context, train, test D) (float64, error)

// Result is the outcome of a search that returns a fitted model.
type Result[M any] struct {
	// Params is the winning combination.
	Params Params

	// Model is the winning model, fitted as the search left it.
	Model M

	// Loss is the winning model's last validation loss.
	Loss float64
}

// ProgressUpdate represents the state of a search after one batch of
// evaluations.
type ProgressUpdate struct {
	// RunID identifies the search call that emitted the update.
	RunID string

	// Algorithm is the search being run, e.g. "sha" or "hyperband".
	Algorithm string

	// Round is the 1-based round, step or bracket number.
	Round int

	// Arms is the number of candidates evaluated in this round.
	Arms int

	// BestParams holds the best combination found so far.
	BestParams Params

	// BestLoss holds the loss of BestParams.
	BestLoss float64
}

// Config holds the settings shared by every search.
//
// Usage example:
//
//	config := xval.DefaultConfig()
//	config.Rate = 3
//	config.Rand = rand.New(rand.NewSource(42))
//	config.Dispatcher = xval.Pool{MaxGoroutines: 8}
//
// Note:
// - Create separate configs for concurrent searches.
type Config struct {
	// Args are extra arguments passed to every Trainer.Fit call.
	Args Args `yaml:"args"`

	// Maximize selects the highest loss instead of the lowest.
	Maximize bool `yaml:"maximize"`

	// Mode is the allocation schedule of SHA.
	Mode Mode `yaml:"mode"`

	// Rate is the factor by which halving searches shrink the pool.
	// Must be above 1.
	Rate float64 `yaml:"rate"`

	// N is the number of neighbors drawn per hill-climbing step.
	N int `yaml:"n"`

	// NStart is the number of random hill-climbing starting points. Zero
	// means N.
	NStart int `yaml:"nstart"`

	// Step is the hill-climbing neighborhood radius.
	Step float64 `yaml:"step"`

	// MaxIter caps hill-climbing steps. Zero means no cap.
	MaxIter int `yaml:"max_iter"`

	// Temp is the SASHA annealing temperature. Must not be negative.
	Temp float64 `yaml:"temp"`

	// Seed seeds the random source when Rand is nil. Zero means time-based.
	Seed int64 `yaml:"seed"`

	// Rand is the random source. It takes precedence over Seed.
	Rand *rand.Rand `yaml:"-"`

	// Dispatcher runs independent fit/score tasks. Nil means Sequential.
	Dispatcher Dispatcher `yaml:"-"`

	// Logger receives debug records per round. Nil means slog.Default().
	Logger *slog.Logger `yaml:"-"`

	// ProgressChan receives an update after every round. Updates are dropped
	// when the channel is full. If nil, no updates are sent.
	ProgressChan chan<- ProgressUpdate `yaml:"-"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Mode:       GeometricAllocation,
		Rate:       2,
		N:          4,
		Step:       1,
		Temp:       1,
		Dispatcher: Sequential{},
	}
}
