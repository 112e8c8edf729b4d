package xval

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

//////
// Const, vars, types.
//////

// Package-level tracer and meter for search operations. Both are no-ops
// until the application installs global providers.
var (
	tracer = otel.Tracer("github.com/thalesfsp/xval")
	meter  = otel.Meter("github.com/thalesfsp/xval")
)

// Metrics for search operations.
var (
	fitTotal      metric.Int64Counter
	roundDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// run is the state of one search call, resolved once at the API boundary
// and handed down explicitly.
type run struct {
	id       string
	algo     string
	cfg      Config
	rng      *rand.Rand
	dispatch Dispatcher
	log      *slog.Logger
	span     trace.Span
	started  time.Time
}

//////
// Factory.
//////

// startRun resolves the random source, dispatcher and logger of cfg and
// opens a span for the call.
func startRun(ctx context.Context, algo string, cfg Config) (context.Context, *run) {
	id := uuid.NewString()

	rng := cfg.Rand
	if rng == nil && cfg.Seed != 0 {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}

	dispatch := cfg.Dispatcher
	if dispatch == nil {
		dispatch = Sequential{}
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	ctx, span := tracer.Start(ctx, "xval."+algo,
		trace.WithAttributes(
			attribute.String("xval.run_id", id),
			attribute.String("xval.algorithm", algo),
			attribute.Bool("xval.maximize", cfg.Maximize),
		),
	)

	return ctx, &run{
		id:       id,
		algo:     algo,
		cfg:      cfg,
		rng:      resolveRand(rng),
		dispatch: dispatch,
		log:      log.With("run_id", id, "algorithm", algo),
		span:     span,
		started:  time.Now(),
	}
}

//////
// Methods.
//////

// end closes the run span, marking it failed if err is not nil.
func (r *run) end(err error) {
	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
		r.log.Debug("search failed", "error", err)
	} else {
		r.log.Debug("search finished", "duration", time.Since(r.started))
	}

	r.span.End()
}

// fitted counts n completed fits.
func (r *run) fitted(ctx context.Context, n int) {
	if err := initMetrics(); err != nil {
		return
	}

	fitTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("algorithm", r.algo)))
}

// round reports the end of one batch of evaluations: a debug record, a span
// event, a duration sample and a progress update.
func (r *run) round(ctx context.Context, round, arms int, start time.Time, best Params, loss float64) {
	r.log.Debug("round finished",
		"round", round,
		"arms", arms,
		"best_loss", loss,
		"best_params", best,
	)

	r.span.AddEvent("round", trace.WithAttributes(
		attribute.Int("xval.round", round),
		attribute.Int("xval.arms", arms),
		attribute.Float64("xval.best_loss", loss),
	))

	if err := initMetrics(); err == nil {
		roundDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("algorithm", r.algo)))
	}

	if r.cfg.ProgressChan == nil {
		return
	}

	select {
	case r.cfg.ProgressChan <- ProgressUpdate{
		RunID:      r.id,
		Algorithm:  r.algo,
		Round:      round,
		Arms:       arms,
		BestParams: best.Clone(),
		BestLoss:   loss,
	}:
	default:
		// Skip update if channel is full.
	}
}

//////
// Helper functions.
//////

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		fitTotal, err = meter.Int64Counter(
			"xval_fits_total",
			metric.WithDescription("Total number of model fits issued by searches"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		roundDuration, err = meter.Float64Histogram(
			"xval_round_duration_seconds",
			metric.WithDescription("Duration of one search round"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})

	return metricsErr
}
