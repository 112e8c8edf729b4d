package xval

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//////
// Test trainer.
//////

// toyModel scores |x - target|, however long it trains.
type toyModel struct {
	x       float64
	trained int
	fits    int
}

// toyTrainer builds toyModels. Fit adds the "epochs" argument, if any, to
// the model's training total.
type toyTrainer struct {
	target float64
	failX  float64

	news, fits atomic.Int64

	mu       sync.Mutex
	budgets  []int
	lastArgs Args
}

func newToyTrainer(target float64) *toyTrainer {
	return &toyTrainer{target: target, failX: math.NaN()}
}

func (tt *toyTrainer) New(p Params) (*toyModel, error) {
	tt.news.Add(1)

	return &toyModel{x: p.Float("x")}, nil
}

func (tt *toyTrainer) Fit(_ context.Context, m *toyModel, train Vector[float64], args Args) (*toyModel, error) {
	tt.fits.Add(1)

	if m.x == tt.failX {
		return nil, errBoom
	}

	if train.NObs() == 0 {
		return nil, errBoom
	}

	m.fits++

	tt.mu.Lock()
	defer tt.mu.Unlock()

	tt.lastArgs = args

	if e, ok := args["epochs"].(int); ok {
		m.trained += e
		tt.budgets = append(tt.budgets, e)
	}

	return m, nil
}

func (tt *toyTrainer) Loss(_ context.Context, m *toyModel, _ Vector[float64]) (float64, error) {
	return math.Abs(m.x - tt.target), nil
}

func toyData() Vector[float64] {
	return Vector[float64]{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
}

func toyCandidates(xs ...float64) []Params {
	out := make([]Params, len(xs))
	for i, x := range xs {
		out[i] = Params{"x": x}
	}

	return out
}

func seeded(seed int64) Config {
	cfg := DefaultConfig()
	cfg.Rand = rand.New(rand.NewSource(seed))

	return cfg
}

//////
// Validate.
//////

func TestValidate(t *testing.T) {
	folds, err := NewKFold(toyData(), 5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	losses, err := Validate[Vector[float64]](context.Background(), folds,
		func(_ context.Context, train, test Vector[float64]) (float64, error) {
			return float64(train.NObs()*100 + test.NObs()), nil
		}, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []float64{802, 802, 802, 802, 802}, losses)
}

func TestValidateModel(t *testing.T) {
	r, err := NewLeaveOneOut(Vector[float64]{1, 2, 3})
	require.NoError(t, err)

	tt := newToyTrainer(1)
	cfg := DefaultConfig()
	cfg.Args = Args{"epochs": 2}

	losses, err := ValidateModel[*toyModel, Vector[float64]](context.Background(), tt, Params{"x": 4.0}, r, cfg)
	require.NoError(t, err)

	assert.Equal(t, []float64{3, 3, 3}, losses)
	assert.Equal(t, int64(3), tt.news.Load())
	assert.Equal(t, int64(3), tt.fits.Load())
	assert.Equal(t, []int{2, 2, 2}, tt.budgets)
}

func TestValidatePropagatesErrors(t *testing.T) {
	r, err := NewFixedSplit(toyData(), 5)
	require.NoError(t, err)

	_, err = Validate[Vector[float64]](context.Background(), r,
		func(context.Context, Vector[float64], Vector[float64]) (float64, error) {
			return 0, errBoom
		}, DefaultConfig())

	assert.ErrorIs(t, err, errBoom)
}

//////
// Brute.
//////

func TestBrute(t *testing.T) {
	folds, err := NewKFold(toyData(), 3, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	tt := newToyTrainer(2)
	candidates := toyCandidates(0, 2)

	best, err := Brute[*toyModel, Vector[float64]](context.Background(), tt, candidates, folds, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, Params{"x": 2.0}, best)

	// Every candidate on every fold.
	assert.Equal(t, int64(6), tt.fits.Load())

	cfg := DefaultConfig()
	cfg.Maximize = true

	best, err = Brute[*toyModel, Vector[float64]](context.Background(), tt, candidates, folds, cfg)
	require.NoError(t, err)
	assert.Equal(t, Params{"x": 0.0}, best)
}

func TestBruteTiesGoToEarliest(t *testing.T) {
	r, err := NewFixedSplit(toyData(), 5)
	require.NoError(t, err)

	best, err := Brute[*toyModel, Vector[float64]](context.Background(), newToyTrainer(5),
		toyCandidates(3, 7, 5, 5), r, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, Params{"x": 5.0}, best)

	best, err = Brute[*toyModel, Vector[float64]](context.Background(), newToyTrainer(5),
		toyCandidates(3, 7), r, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, Params{"x": 3.0}, best)
}

func TestBruteFit(t *testing.T) {
	r, err := NewKFold(toyData(), 5, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	tt := newToyTrainer(4)

	space, err := NewFiniteSpace(P("x", mustDiscrete(t, 1.0, 3.0, 4.0, 8.0)))
	require.NoError(t, err)

	res, err := BruteFit[*toyModel, Vector[float64]](context.Background(), tt, space.Candidates(), r, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, Params{"x": 4.0}, res.Params)
	assert.Equal(t, 0.0, res.Loss)
	require.NotNil(t, res.Model)
	assert.Equal(t, 4.0, res.Model.x)
	assert.Equal(t, 1, res.Model.fits)

	// First pair only.
	assert.Equal(t, int64(4), tt.fits.Load())
}

func TestBruteErrors(t *testing.T) {
	r, err := NewFixedSplit(toyData(), 5)
	require.NoError(t, err)

	_, err = Brute[*toyModel, Vector[float64]](context.Background(), newToyTrainer(0), nil, r, DefaultConfig())
	assert.ErrorIs(t, err, ErrValidation)

	for name, d := range dispatchers() {
		t.Run(name, func(t *testing.T) {
			tt := newToyTrainer(0)
			tt.failX = 2

			cfg := DefaultConfig()
			cfg.Dispatcher = d

			_, err := Brute[*toyModel, Vector[float64]](context.Background(), tt, toyCandidates(1, 2, 3), r, cfg)
			assert.ErrorIs(t, err, errBoom)
		})
	}
}

func TestBruteParallelMatchesSequential(t *testing.T) {
	folds, err := NewKFold(toyData(), 5, rand.New(rand.NewSource(3)))
	require.NoError(t, err)

	candidates := toyCandidates(9, 1, 6, 4, 7, 2, 5)

	want, err := Brute[*toyModel, Vector[float64]](context.Background(), newToyTrainer(4.4), candidates, folds, DefaultConfig())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Dispatcher = Pool{MaxGoroutines: 4}

	got, err := Brute[*toyModel, Vector[float64]](context.Background(), newToyTrainer(4.4), candidates, folds, cfg)
	require.NoError(t, err)

	assert.Equal(t, want, got)
	assert.Equal(t, Params{"x": 4.0}, got)
}

//////
// Hill climbing.
//////

func lineSpace(t *testing.T, n int) *FiniteSpace {
	t.Helper()

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}

	s, err := NewFiniteSpace(P("x", mustDiscrete(t, xs...)))
	require.NoError(t, err)

	return s
}

func mustDiscrete(t *testing.T, values ...float64) *DiscreteUniform[float64] {
	t.Helper()

	d, err := NewDiscreteUniform(values...)
	require.NoError(t, err)

	return d
}

func TestHCConverges(t *testing.T) {
	r, err := NewFixedSplit(toyData(), 5)
	require.NoError(t, err)

	updates := make(chan ProgressUpdate, 100)

	cfg := seeded(42)
	cfg.N = 50
	cfg.NStart = 1
	cfg.ProgressChan = updates

	best, err := HC[*toyModel, Vector[float64]](context.Background(), newToyTrainer(7), lineSpace(t, 11), r, cfg)
	require.NoError(t, err)
	assert.Equal(t, Params{"x": 7.0}, best)

	close(updates)

	// Accepted steps never regress.
	prev := math.Inf(1)
	for u := range updates {
		assert.Equal(t, "hc", u.Algorithm)
		assert.LessOrEqual(t, u.BestLoss, prev)
		prev = u.BestLoss
	}

	assert.Equal(t, 0.0, prev)
}

func TestHCMaximize(t *testing.T) {
	r, err := NewFixedSplit(toyData(), 5)
	require.NoError(t, err)

	cfg := seeded(1)
	cfg.N = 50
	cfg.NStart = 1
	cfg.Maximize = true
	cfg.Step = 3

	// The farthest point from -1 on 0..10 is 10.
	res, err := HCFit[*toyModel, Vector[float64]](context.Background(), newToyTrainer(-1), lineSpace(t, 11), r, cfg)
	require.NoError(t, err)
	assert.Equal(t, Params{"x": 10.0}, res.Params)
	assert.Equal(t, 11.0, res.Loss)
	assert.Equal(t, 10.0, res.Model.x)
}

func TestHCMaxIter(t *testing.T) {
	r, err := NewFixedSplit(toyData(), 5)
	require.NoError(t, err)

	updates := make(chan ProgressUpdate, 100)

	cfg := seeded(42)
	cfg.N = 50
	cfg.NStart = 1
	cfg.MaxIter = 1
	cfg.ProgressChan = updates

	_, err = HC[*toyModel, Vector[float64]](context.Background(), newToyTrainer(100), lineSpace(t, 101), r, cfg)
	require.NoError(t, err)

	close(updates)
	assert.LessOrEqual(t, len(updates), 2)
}

func TestHCNeverReevaluates(t *testing.T) {
	r, err := NewFixedSplit(toyData(), 5)
	require.NoError(t, err)

	tt := newToyTrainer(0)

	cfg := seeded(5)
	cfg.N = 20
	cfg.NStart = 10

	// Three points: at most three fits whatever N and NStart are.
	_, err = HC[*toyModel, Vector[float64]](context.Background(), tt, lineSpace(t, 3), r, cfg)
	require.NoError(t, err)
	assert.LessOrEqual(t, tt.fits.Load(), int64(3))
}

func TestHCContinuous(t *testing.T) {
	r, err := NewFixedSplit(toyData(), 5)
	require.NoError(t, err)

	u, err := NewUniform(0.0, 10.0)
	require.NoError(t, err)

	space, err := NewSpace(P("x", u))
	require.NoError(t, err)

	cfg := seeded(8)
	cfg.N = 20
	cfg.NStart = 5
	cfg.Step = 0.5
	cfg.MaxIter = 200

	res, err := HCFit[*toyModel, Vector[float64]](context.Background(), newToyTrainer(6), space, r, cfg)
	require.NoError(t, err)
	assert.InDelta(t, 6, res.Params.Float("x"), 0.5)
}

func TestHCValidation(t *testing.T) {
	r, err := NewFixedSplit(toyData(), 5)
	require.NoError(t, err)

	for name, mutate := range map[string]func(*Config){
		"no neighbors":    func(c *Config) { c.N = 0 },
		"negative starts": func(c *Config) { c.NStart = -1 },
		"zero step":       func(c *Config) { c.Step = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)

			_, err := HC[*toyModel, Vector[float64]](context.Background(), newToyTrainer(0), lineSpace(t, 3), r, cfg)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

//////
// Data isolation.
//////

// scrubber records the sum of every split it sees and then zeroes the split
// in place, the way an in-place preprocessing step would.
type scrubber struct {
	mu        sync.Mutex
	trainSums []float64
	testSums  []float64
}

func (s *scrubber) trainer() Funcs[*toyModel, Vector[float64]] {
	return Funcs[*toyModel, Vector[float64]]{
		NewFunc: func(p Params) (*toyModel, error) { return &toyModel{x: p.Float("x")}, nil },
		FitFunc: func(_ context.Context, m *toyModel, train Vector[float64], _ Args) (*toyModel, error) {
			s.mu.Lock()
			s.trainSums = append(s.trainSums, sum(train))
			s.mu.Unlock()

			clear(train)
			m.fits++

			return m, nil
		},
		LossFunc: func(_ context.Context, m *toyModel, test Vector[float64]) (float64, error) {
			s.mu.Lock()
			s.testSums = append(s.testSums, sum(test))
			s.mu.Unlock()

			clear(test)

			return math.Abs(m.x - 3), nil
		},
	}
}

func sum(v Vector[float64]) float64 {
	var total float64
	for _, x := range v {
		total += x
	}

	return total
}

// repeat lists every value of xs n times.
func repeat(xs []float64, n int) []float64 {
	out := make([]float64, 0, len(xs)*n)
	for range n {
		out = append(out, xs...)
	}

	return out
}

func TestSearchesSliceEveryFitSeparately(t *testing.T) {
	candidates := toyCandidates(1, 2, 3)

	budget, err := NewBudget("epochs", 81)
	require.NoError(t, err)

	for name, d := range dispatchers() {
		t.Run(name, func(t *testing.T) {
			cfg := seeded(1)
			cfg.Dispatcher = d

			data := toyData()

			folds, err := NewKFold(data, 2, rand.New(rand.NewSource(4)))
			require.NoError(t, err)

			foldTrain, foldTest := make([]float64, 2), make([]float64, 2)
			for i := range 2 {
				train, test := folds.Pair(i)
				foldTrain[i], foldTest[i] = sum(train), sum(test)
			}

			s := &scrubber{}

			best, err := Brute[*toyModel, Vector[float64]](context.Background(), s.trainer(), candidates, folds, cfg)
			require.NoError(t, err)
			assert.Equal(t, Params{"x": 3.0}, best)
			assert.ElementsMatch(t, repeat(foldTrain, 3), s.trainSums)
			assert.ElementsMatch(t, repeat(foldTest, 3), s.testSums)

			split, err := NewFixedSplit(data, 5)
			require.NoError(t, err)

			s = &scrubber{}

			res, err := BruteFit[*toyModel, Vector[float64]](context.Background(), s.trainer(), candidates, split, cfg)
			require.NoError(t, err)
			assert.Equal(t, Params{"x": 3.0}, res.Params)
			assert.Equal(t, []float64{15, 15, 15}, s.trainSums)
			assert.Equal(t, []float64{40, 40, 40}, s.testSums)

			// Halving refits survivors on fresh slices every round.
			s = &scrubber{}

			res, err = SHAFit[*toyModel, Vector[float64]](context.Background(), s.trainer(), candidates, split, budget, cfg)
			require.NoError(t, err)
			assert.Equal(t, Params{"x": 3.0}, res.Params)
			require.Greater(t, len(s.trainSums), len(candidates))
			assert.Equal(t, repeat([]float64{15}, len(s.trainSums)), s.trainSums)
			assert.Equal(t, repeat([]float64{40}, len(s.testSums)), s.testSums)

			s = &scrubber{}

			res, err = SASHAFit[*toyModel, Vector[float64]](context.Background(), s.trainer(), candidates, split, cfg)
			require.NoError(t, err)
			assert.Equal(t, Params{"x": 3.0}, res.Params)
			assert.Equal(t, repeat([]float64{15}, len(s.trainSums)), s.trainSums)
			assert.Equal(t, repeat([]float64{40}, len(s.testSums)), s.testSums)

			assert.Equal(t, toyData(), data)
		})
	}
}
