// Package xval provides model validation and hyperparameter search building
// blocks: resampling policies that split a dataset into (train, test) pairs,
// declarative parameter spaces, budget schedules, and search drivers that fit
// and score models through a caller-supplied Trainer.
//
// # Features
//
// The package includes the following key features:
//
//   - Generic datasets: anything with an observation axis (Vector, Matrix,
//     Table, or your own type) keeps its concrete type through every split
//   - Resampling: FixedSplit, RandomSplit, LeaveOneOut, KFold,
//     ForwardChaining and SlidingWindow, all restartable and reproducible
//   - Parameter spaces: discrete, uniform, log-uniform and normal dimensions,
//     enumerated in a fixed order when every dimension is discrete
//   - Searches: exhaustive (Brute), hill climbing (HC), successive halving
//     (SHA), Hyperband and simulated-annealing halving (SASHA)
//   - Pluggable dispatch: Sequential, Pool or Group runs independent fits
//   - Progress monitoring: per-round updates via channels, slog records and
//     OpenTelemetry spans
//
// # Resampling
//
// Every resampler exposes its pairs both as index lists and as lazily
// materialized datasets:
//
//	folds, _ := xval.NewKFold(data, 5, rand.New(rand.NewSource(42)))
//
//	for train, test := range folds.All() {
//	    // ...
//	}
//
// # Searches
//
// A search needs a Trainer, the candidates or space to explore, a resampler
// and a Config:
//
//	config := xval.DefaultConfig()
//	config.Seed = 42
//	config.Dispatcher = xval.Pool{MaxGoroutines: 8}
//
//	best, err := xval.Brute(ctx, trainer, space.Candidates(), folds, config)
//
// Brute and HC score candidates by their mean loss over every pair. The Fit
// variants (BruteFit, HCFit, SHAFit, HyperbandFit, SASHAFit) use the first
// pair only and also return the fitted model. SHA, Hyperband and SASHA keep
// training the same model across rounds, so a Trainer's Fit must accept a
// model it returned earlier.
//
// # Budgets
//
// Budgeted searches split a named budget across rounds and pass each round's
// share to Fit in Args:
//
//	budget, _ := xval.NewBudget("epochs", 81)
//	schedule, _ := xval.Allocate(budget, xval.GeometricAllocation, 27, 3)
//
// # Configuration
//
// Searches can be described in YAML and loaded with LoadConfig. See File.
//
// # Thread Safety
//
// Resamplers, spaces and distributions are immutable after construction and
// safe for concurrent use. A *rand.Rand is not: create separate configs for
// concurrent searches.
package xval
