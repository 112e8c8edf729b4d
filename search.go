package xval

import (
	"context"
	"time"
)

//////
// Const, vars, types.
//////

// scorer evaluates candidates in one batch. Fitting scorers also return the
// fitted models, in candidate order.
type scorer[M any] func(ctx context.Context, candidates []Params) ([]float64, []M, error)

//////
// Exported functionalities.
//////

// Validate runs fn on every (train, test) pair of r and returns the losses
// in pair order. There is no search and no pruning.
func Validate[D Dataset[D]](ctx context.Context, r Resampler[D], fn EvalFunc[D], cfg Config) (losses []float64, err error) {
	ctx, rn := startRun(ctx, "validate", cfg)
	defer func() { rn.end(err) }()

	idx := span(0, r.Len())

	losses, err = mapTasks(ctx, rn.dispatch, idx, func(ctx context.Context, i int) (float64, error) {
		train, test := r.Pair(i)

		return fn(ctx, train, test)
	})
	if err != nil {
		return nil, err
	}

	rn.fitted(ctx, len(idx))

	return losses, nil
}

// ValidateModel builds a model from params with t, fits it on every training
// split of r and returns its loss on each matching test split.
func ValidateModel[M any, D Dataset[D]](ctx context.Context, t Trainer[M, D], params Params, r Resampler[D], cfg Config) ([]float64, error) {
	return Validate(ctx, r, func(ctx context.Context, train, test D) (float64, error) {
		_, loss, err := fitScore(ctx, t, params, train, test, cfg.Args)

		return loss, err
	}, cfg)
}

// Brute evaluates every candidate on every pair of r and returns the
// candidate with the best mean loss. Ties go to the earliest candidate.
//
// Returns ErrValidation if candidates is empty.
//
// Usage example:
//
//	space, _ := xval.NewFiniteSpace(xval.P("depth", depth), xval.P("leaves", leaves))
//	folds, _ := xval.NewKFold(data, 5, rng)
//	best, err := xval.Brute(ctx, trainer, space.Candidates(), folds, xval.DefaultConfig())
func Brute[M any, D Dataset[D]](ctx context.Context, t Trainer[M, D], candidates []Params, r Resampler[D], cfg Config) (best Params, err error) {
	if len(candidates) == 0 {
		return nil, validationf("brute search needs at least one candidate")
	}

	ctx, rn := startRun(ctx, "brute", cfg)
	defer func() { rn.end(err) }()

	res, err := brute(ctx, rn, candidates, crossScorer(rn, t, r))
	if err != nil {
		return nil, err
	}

	return res.Params, nil
}

// BruteFit fits every candidate on the first pair of r, scores it on the
// matching test split and returns the best fitted model.
//
// Returns ErrValidation if candidates is empty.
func BruteFit[M any, D Dataset[D]](ctx context.Context, t Trainer[M, D], candidates []Params, r Resampler[D], cfg Config) (res Result[M], err error) {
	if len(candidates) == 0 {
		return res, validationf("brute search needs at least one candidate")
	}

	ctx, rn := startRun(ctx, "brutefit", cfg)
	defer func() { rn.end(err) }()

	return brute(ctx, rn, candidates, holdoutScorer(rn, t, r))
}

// HC hill-climbs space: it evaluates NStart random points (mean loss over
// every pair of r), then repeatedly evaluates N neighbors of the best point
// within Step, moving only on strict improvement. It stops when no neighbor
// improves, when every neighbor drawn was already evaluated, or after
// MaxIter steps if MaxIter is set.
//
// Returns ErrValidation if N < 1, NStart < 0 or Step is not positive.
func HC[M any, D Dataset[D]](ctx context.Context, t Trainer[M, D], space Space, r Resampler[D], cfg Config) (best Params, err error) {
	if err := checkHC(cfg); err != nil {
		return nil, err
	}

	ctx, rn := startRun(ctx, "hc", cfg)
	defer func() { rn.end(err) }()

	res, err := hillClimb(ctx, rn, space, crossScorer(rn, t, r))
	if err != nil {
		return nil, err
	}

	return res.Params, nil
}

// HCFit is HC scored on the first pair of r only; it returns the best
// fitted model.
func HCFit[M any, D Dataset[D]](ctx context.Context, t Trainer[M, D], space Space, r Resampler[D], cfg Config) (res Result[M], err error) {
	if err := checkHC(cfg); err != nil {
		return res, err
	}

	ctx, rn := startRun(ctx, "hcfit", cfg)
	defer func() { rn.end(err) }()

	return hillClimb(ctx, rn, space, holdoutScorer(rn, t, r))
}

//////
// Helper functions.
//////

func brute[M any](ctx context.Context, rn *run, candidates []Params, score scorer[M]) (Result[M], error) {
	start := time.Now()

	losses, models, err := score(ctx, candidates)
	if err != nil {
		return Result[M]{}, err
	}

	i := argbest(losses, rn.cfg.Maximize)
	res := pick(candidates, models, losses, i)

	rn.round(ctx, 1, len(candidates), start, res.Params, res.Loss)

	return res, nil
}

func hillClimb[M any](ctx context.Context, rn *run, space Space, score scorer[M]) (Result[M], error) {
	nstart := rn.cfg.NStart
	if nstart == 0 {
		nstart = rn.cfg.N
	}

	seen := make(map[string]bool)
	start := time.Now()

	candidates := unseen(space, seen, space.SampleN(rn.rng, nstart))

	losses, models, err := score(ctx, candidates)
	if err != nil {
		return Result[M]{}, err
	}

	best := pick(candidates, models, losses, argbest(losses, rn.cfg.Maximize))
	rn.round(ctx, 1, len(candidates), start, best.Params, best.Loss)

	for step := 2; rn.cfg.MaxIter == 0 || step <= rn.cfg.MaxIter+1; step++ {
		start = time.Now()

		neighbors, err := space.Neighbors(rn.rng, best.Params, rn.cfg.Step, rn.cfg.N)
		if err != nil {
			return Result[M]{}, err
		}

		candidates = unseen(space, seen, neighbors)
		if len(candidates) == 0 {
			rn.log.Debug("no unseen neighbors left", "step", step)
			break
		}

		losses, models, err = score(ctx, candidates)
		if err != nil {
			return Result[M]{}, err
		}

		i := argbest(losses, rn.cfg.Maximize)
		if !better(losses[i], best.Loss, rn.cfg.Maximize) {
			rn.log.Debug("no improving neighbor", "step", step)
			break
		}

		best = pick(candidates, models, losses, i)
		rn.round(ctx, step, len(candidates), start, best.Params, best.Loss)
	}

	return best, nil
}

// crossScorer scores each candidate by its mean loss over every pair of r,
// fitting candidates x pairs independent models in one batch. Every task
// slices its own pair.
func crossScorer[M any, D Dataset[D]](rn *run, t Trainer[M, D], r Resampler[D]) scorer[M] {
	npairs := r.Len()

	type task struct{ cand, pair int }

	return func(ctx context.Context, candidates []Params) ([]float64, []M, error) {
		tasks := make([]task, 0, len(candidates)*npairs)
		for c := range candidates {
			for p := range npairs {
				tasks = append(tasks, task{cand: c, pair: p})
			}
		}

		losses, err := mapTasks(ctx, rn.dispatch, tasks, func(ctx context.Context, tk task) (float64, error) {
			train, test := r.Pair(tk.pair)
			_, loss, err := fitScore(ctx, t, candidates[tk.cand], train, test, rn.cfg.Args)

			return loss, err
		})
		if err != nil {
			return nil, nil, err
		}

		rn.fitted(ctx, len(tasks))

		means := make([]float64, len(candidates))
		for c := range candidates {
			means[c] = mean(losses[c*npairs : (c+1)*npairs])
		}

		return means, nil, nil
	}
}

// holdoutScorer fits each candidate on the first training split of r and
// scores it on the first test split. Every task slices its own pair.
func holdoutScorer[M any, D Dataset[D]](rn *run, t Trainer[M, D], r Resampler[D]) scorer[M] {
	type scored struct {
		model M
		loss  float64
	}

	return func(ctx context.Context, candidates []Params) ([]float64, []M, error) {
		out, err := mapTasks(ctx, rn.dispatch, candidates, func(ctx context.Context, p Params) (scored, error) {
			train, test := r.Pair(0)
			m, loss, err := fitScore(ctx, t, p, train, test, rn.cfg.Args)

			return scored{model: m, loss: loss}, err
		})
		if err != nil {
			return nil, nil, err
		}

		rn.fitted(ctx, len(candidates))

		losses := make([]float64, len(out))
		models := make([]M, len(out))

		for i, s := range out {
			losses[i], models[i] = s.loss, s.model
		}

		return losses, models, nil
	}
}

// fitScore builds, fits and scores one model.
func fitScore[M any, D any](ctx context.Context, t Trainer[M, D], p Params, train, test D, args Args) (M, float64, error) {
	m, err := t.New(p)
	if err != nil {
		return m, 0, err
	}

	return refit(ctx, t, m, train, test, args)
}

// refit continues training m and scores it.
func refit[M any, D any](ctx context.Context, t Trainer[M, D], m M, train, test D, args Args) (M, float64, error) {
	m, err := t.Fit(ctx, m, train, args)
	if err != nil {
		return m, 0, err
	}

	loss, err := t.Loss(ctx, m, test)
	if err != nil {
		return m, 0, err
	}

	return m, loss, nil
}

// unseen drops already-evaluated and duplicate combinations and marks the
// rest as seen.
func unseen(space Space, seen map[string]bool, candidates []Params) []Params {
	out := candidates[:0:0]

	for _, p := range candidates {
		k := space.Key(p)
		if seen[k] {
			continue
		}

		seen[k] = true
		out = append(out, p)
	}

	return out
}

// pick assembles the Result for candidate i. models may be nil.
func pick[M any](candidates []Params, models []M, losses []float64, i int) Result[M] {
	res := Result[M]{Params: candidates[i].Clone(), Loss: losses[i]}
	if models != nil {
		res.Model = models[i]
	}

	return res
}

func checkHC(cfg Config) error {
	if cfg.N < 1 {
		return validationf("hill climbing needs at least one neighbor per step, got %d", cfg.N)
	}

	if cfg.NStart < 0 {
		return validationf("number of starting points %d is negative", cfg.NStart)
	}

	if !(cfg.Step > 0) {
		return validationf("hill climbing step %v is not positive", cfg.Step)
	}

	return nil
}
