package xval

import (
	"context"
	"math"
	"time"
)

//////
// Const, vars, types.
//////

// arm is one candidate under evaluation together with its model.
type arm[M any] struct {
	params Params
	model  M
	loss   float64
}

//////
// Exported functionalities.
//////

// SHA runs successive halving on the first pair of r: every candidate starts
// as an arm, each round fits the current arms with that round's share of
// budget (continuing from the previous round's model), and the best
// Survivors arms move on. The schedule comes from Allocate with cfg.Mode and
// cfg.Rate, so exactly one arm remains after the last round.
//
// Returns ErrValidation if candidates is empty, cfg.Rate <= 1 or the budget
// is invalid.
//
// Usage example:
//
//	budget, _ := xval.NewBudget("epochs", 81)
//	config := xval.DefaultConfig()
//	config.Rate = 3
//	best, err := xval.SHA(ctx, trainer, space.SampleN(rng, 27), holdout, budget, config)
func SHA[M any, D Dataset[D], T Number](ctx context.Context, t Trainer[M, D], candidates []Params, r Resampler[D], budget Budget[T], cfg Config) (Params, error) {
	res, err := sha(ctx, "sha", t, candidates, r, budget, cfg)
	if err != nil {
		return nil, err
	}

	return res.Params, nil
}

// SHAFit is SHA returning the surviving fitted model.
func SHAFit[M any, D Dataset[D], T Number](ctx context.Context, t Trainer[M, D], candidates []Params, r Resampler[D], budget Budget[T], cfg Config) (Result[M], error) {
	return sha(ctx, "shafit", t, candidates, r, budget, cfg)
}

// Hyperband runs brackets i = n..1 with n = floor(log_rate(budget)) + 1.
// Bracket i samples ceil(n * rate^(i-1) / i) random candidates from space
// and runs successive halving on them over i rounds with the Hyperband
// schedule. The best final arm across brackets wins; earlier brackets win
// ties.
//
// Returns ErrValidation if cfg.Rate <= 1 or the budget is invalid.
func Hyperband[M any, D Dataset[D], T Number](ctx context.Context, t Trainer[M, D], space Space, r Resampler[D], budget Budget[T], cfg Config) (Params, error) {
	res, err := hyperband(ctx, "hyperband", t, space, r, budget, cfg)
	if err != nil {
		return nil, err
	}

	return res.Params, nil
}

// HyperbandFit is Hyperband returning the best fitted model.
func HyperbandFit[M any, D Dataset[D], T Number](ctx context.Context, t Trainer[M, D], space Space, r Resampler[D], budget Budget[T], cfg Config) (Result[M], error) {
	return hyperband(ctx, "hyperbandfit", t, space, r, budget, cfg)
}

// SASHA runs simulated-annealing successive halving on the first pair of r.
// Each round fits every arm with cfg.Args, then keeps arm j with probability
// exp(-k * |loss_j - best| / Temp) where k is the round number and best the
// round's best loss, until one arm remains. The best arm always survives.
// If every surviving arm ties with the best loss, the earliest is kept.
//
// Returns ErrValidation if candidates is empty or cfg.Temp is negative.
func SASHA[M any, D Dataset[D]](ctx context.Context, t Trainer[M, D], candidates []Params, r Resampler[D], cfg Config) (Params, error) {
	res, err := sasha(ctx, "sasha", t, candidates, r, cfg)
	if err != nil {
		return nil, err
	}

	return res.Params, nil
}

// SASHAFit is SASHA returning the surviving fitted model.
func SASHAFit[M any, D Dataset[D]](ctx context.Context, t Trainer[M, D], candidates []Params, r Resampler[D], cfg Config) (Result[M], error) {
	return sasha(ctx, "sashafit", t, candidates, r, cfg)
}

//////
// Helper functions.
//////

func sha[M any, D Dataset[D], T Number](ctx context.Context, algo string, t Trainer[M, D], candidates []Params, r Resampler[D], budget Budget[T], cfg Config) (res Result[M], err error) {
	if len(candidates) == 0 {
		return res, validationf("successive halving needs at least one candidate")
	}

	schedule, err := Allocate(budget, cfg.Mode, len(candidates), cfg.Rate)
	if err != nil {
		return res, err
	}

	ctx, rn := startRun(ctx, algo, cfg)
	defer func() { rn.end(err) }()

	arms, err := newArms(t, candidates)
	if err != nil {
		return res, err
	}

	arms, err = halve(ctx, rn, t, arms, r, budget, schedule,
		func(i, fitted int, start time.Time, best arm[M]) {
			rn.round(ctx, i, fitted, start, best.params, best.loss)
		})
	if err != nil {
		return res, err
	}

	return arms[0].result(), nil
}

func hyperband[M any, D Dataset[D], T Number](ctx context.Context, algo string, t Trainer[M, D], space Space, r Resampler[D], budget Budget[T], cfg Config) (res Result[M], err error) {
	if err := budget.validate(); err != nil {
		return res, err
	}

	if err := checkArms(1, cfg.Rate); err != nil {
		return res, err
	}

	ctx, rn := startRun(ctx, algo, cfg)
	defer func() { rn.end(err) }()

	n := floorLog(float64(budget.Value), cfg.Rate) + 1

	var best *arm[M]

	for i := n; i >= 1; i-- {
		start := time.Now()
		narms := int(math.Ceil(float64(n)*math.Pow(cfg.Rate, float64(i-1))/float64(i) - logTolerance))

		schedule, err := AllocateRounds(budget, HyperbandAllocation, narms, cfg.Rate, i)
		if err != nil {
			return res, err
		}

		arms, err := newArms(t, space.SampleN(rn.rng, narms))
		if err != nil {
			return res, err
		}

		arms, err = halve(ctx, rn, t, arms, r, budget, schedule, nil)
		if err != nil {
			return res, err
		}

		if best == nil || better(arms[0].loss, best.loss, cfg.Maximize) {
			best = &arms[0]
		}

		rn.log.Debug("bracket finished", "bracket", i, "arms", narms, "loss", arms[0].loss)
		rn.round(ctx, n-i+1, narms, start, best.params, best.loss)
	}

	return best.result(), nil
}

func sasha[M any, D Dataset[D]](ctx context.Context, algo string, t Trainer[M, D], candidates []Params, r Resampler[D], cfg Config) (res Result[M], err error) {
	if len(candidates) == 0 {
		return res, validationf("sasha needs at least one candidate")
	}

	if !(cfg.Temp >= 0) {
		return res, validationf("temperature %v is negative", cfg.Temp)
	}

	ctx, rn := startRun(ctx, algo, cfg)
	defer func() { rn.end(err) }()

	arms, err := newArms(t, candidates)
	if err != nil {
		return res, err
	}

	for k := 1; ; k++ {
		start := time.Now()
		fitted := len(arms)

		arms, err = fitArms(ctx, rn, t, arms, r, rn.cfg.Args)
		if err != nil {
			return res, err
		}

		losses := lossesOf(arms)
		bestLoss := losses[argbest(losses, cfg.Maximize)]

		kept := arms[:0:0]
		for j, a := range arms {
			if rn.rng.Float64() < survival(losses[j], bestLoss, k, cfg) {
				kept = append(kept, a)
			}
		}

		switch {
		case len(kept) == 0:
			// Only possible with NaN losses.
			kept = append(kept, arms[argbest(losses, cfg.Maximize)])
		case allTied(kept, bestLoss):
			kept = kept[:1]
		}

		arms = kept
		best := arms[argbest(lossesOf(arms), cfg.Maximize)]
		rn.round(ctx, k, fitted, start, best.params, best.loss)

		if len(arms) == 1 {
			return arms[0].result(), nil
		}
	}
}

// halve runs a successive halving schedule. After each round the arms are
// ranked best first and cut to that round's survivors.
func halve[M any, D Dataset[D], T Number](
	ctx context.Context,
	rn *run,
	t Trainer[M, D],
	arms []arm[M],
	r Resampler[D],
	budget Budget[T],
	schedule []Round[T],
	onRound func(i, fitted int, start time.Time, best arm[M]),
) ([]arm[M], error) {
	for i, rd := range schedule {
		start := time.Now()
		fitted := len(arms)

		var err error

		arms, err = fitArms(ctx, rn, t, arms, r, budget.Args(rn.cfg.Args, rd.Budget))
		if err != nil {
			return nil, err
		}

		order := rank(lossesOf(arms), rn.cfg.Maximize)
		keep := make([]arm[M], min(rd.Survivors, len(arms)))

		for j := range keep {
			keep[j] = arms[order[j]]
		}

		arms = keep

		rn.log.Debug("halving round",
			"round", i+1,
			"arms", fitted,
			"survivors", len(arms),
			"budget", rd.Budget,
		)

		if onRound != nil {
			onRound(i+1, fitted, start, arms[0])
		}
	}

	return arms, nil
}

// newArms builds one unfitted arm per candidate.
func newArms[M any, D any](t Trainer[M, D], candidates []Params) ([]arm[M], error) {
	arms := make([]arm[M], len(candidates))

	for i, p := range candidates {
		m, err := t.New(p)
		if err != nil {
			return nil, err
		}

		arms[i] = arm[M]{params: p, model: m}
	}

	return arms, nil
}

// fitArms continues training every arm on the first pair of r and rescores
// it, in one batch. Each arm gets a freshly sliced pair every round.
func fitArms[M any, D Dataset[D]](ctx context.Context, rn *run, t Trainer[M, D], arms []arm[M], r Resampler[D], args Args) ([]arm[M], error) {
	out, err := mapTasks(ctx, rn.dispatch, arms, func(ctx context.Context, a arm[M]) (arm[M], error) {
		train, test := r.Pair(0)
		m, loss, err := refit(ctx, t, a.model, train, test, args)

		return arm[M]{params: a.params, model: m, loss: loss}, err
	})
	if err != nil {
		return nil, err
	}

	rn.fitted(ctx, len(arms))

	return out, nil
}

// survival is the probability that an arm with the given loss survives
// round k of SASHA.
func survival(loss, best float64, k int, cfg Config) float64 {
	if cfg.Temp == 0 {
		if loss == best {
			return 1
		}

		return 0
	}

	sign := -1.0
	if cfg.Maximize {
		sign = 1
	}

	return math.Exp(sign * float64(k) * (loss - best) / cfg.Temp)
}

// allTied reports whether more than one arm is left and all of them share
// the best loss, in which case further rounds could never separate them.
func allTied[M any](arms []arm[M], best float64) bool {
	if len(arms) < 2 {
		return false
	}

	for _, a := range arms {
		if a.loss != best {
			return false
		}
	}

	return true
}

func lossesOf[M any](arms []arm[M]) []float64 {
	out := make([]float64, len(arms))
	for i, a := range arms {
		out[i] = a.loss
	}

	return out
}

func (a arm[M]) result() Result[M] {
	return Result[M]{Params: a.params.Clone(), Model: a.model, Loss: a.loss}
}
