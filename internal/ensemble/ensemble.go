package ensemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/potability/internal/params"
)

var tracer = otel.Tracer("potability/ensemble")

// #region errors

// ErrIncompleteSet is returned when a base slot or the meta predictor is missing.
var ErrIncompleteSet = errors.New("incomplete predictor set")

// ErrInference marks a predictor failure on a well-formed request.
var ErrInference = errors.New("inference failed")

// InferenceError records which stage of the ensemble failed.
type InferenceError struct {
	Stage string // base artifact name or "meta"
	Err   error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrInference, e.Stage, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInference) hold for any *InferenceError.
func (e *InferenceError) Is(target error) bool {
	return target == ErrInference
}

// #endregion errors

// #region context

// Context is the immutable inference context: the four base predictors and
// the meta predictor, built once at startup and shared across requests.
type Context struct {
	base     BaseSet
	meta     Predictor
	parallel bool
	observer Observer
	logger   *slog.Logger
}

// Option configures a Context.
type Option func(*Context)

// WithParallelBase runs the base predictors concurrently.
func WithParallelBase(enabled bool) Option {
	return func(c *Context) { c.parallel = enabled }
}

// WithObserver attaches a telemetry observer.
func WithObserver(o Observer) Option {
	return func(c *Context) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithLogger sets the logger used for inference failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewContext validates that every slot is populated and returns the context.
func NewContext(base BaseSet, meta Predictor, opts ...Option) (*Context, error) {
	for _, s := range Slots() {
		if base[s] == nil {
			return nil, fmt.Errorf("%w: base slot %s", ErrIncompleteSet, s)
		}
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: meta predictor", ErrIncompleteSet)
	}
	c := &Context{
		base:     base,
		meta:     meta,
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// #endregion context

// #region infer

// Infer validates s and, when valid, runs the base predictors and the meta
// predictor. Validation failures are returned as Result.Violations with a nil
// error; shape and predictor failures are returned as errors.
func (c *Context) Infer(ctx context.Context, s params.Set) (Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "ensemble.Infer")
	defer span.End()

	violations, err := params.Validate(s)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.observer.ObserveInference(OutcomeShape, time.Since(start))
		return Result{}, err
	}
	if len(violations) > 0 {
		span.SetAttributes(attribute.Int("potability.violations", len(violations)))
		c.observer.ObserveInference(OutcomeRejected, time.Since(start))
		return Result{Violations: violations}, nil
	}

	features := params.Project(s)
	res, err := c.Predict(ctx, features)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("inference failed", "error", err)
		c.observer.ObserveInference(OutcomeError, time.Since(start))
		return Result{}, err
	}

	span.SetAttributes(attribute.String("potability.verdict", string(res.Verdict)))
	c.observer.ObserveVotes(res.Votes, res.Label)
	c.observer.ObserveInference(OutcomeVerdict, time.Since(start))
	return res, nil
}

// Predict runs the ensemble on an already validated feature vector.
func (c *Context) Predict(ctx context.Context, features params.Vector) (Result, error) {
	votes, err := c.runBase(ctx, features)
	if err != nil {
		return Result{}, err
	}

	_, span := tracer.Start(ctx, "ensemble.meta")
	label, err := c.meta.Predict(ctx, MetaFeatures(votes))
	span.End()
	if err != nil {
		return Result{}, &InferenceError{Stage: MetaArtifact, Err: err}
	}

	return Result{
		Verdict:  VerdictFor(label),
		Label:    label,
		Votes:    votes,
		Features: features,
	}, nil
}

// #endregion infer

// #region base

// runBase fills votes by slot index, never by completion order.
func (c *Context) runBase(ctx context.Context, features params.Vector) (Votes, error) {
	var votes Votes

	if !c.parallel {
		for _, s := range Slots() {
			l, err := c.predictSlot(ctx, s, features)
			if err != nil {
				return Votes{}, err
			}
			votes[s] = l
		}
		return votes, nil
	}

	g, gCtx := errgroup.WithContext(ctx)
	for _, s := range Slots() {
		g.Go(func() error {
			l, err := c.predictSlot(gCtx, s, features)
			if err != nil {
				return err
			}
			votes[s] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Votes{}, err
	}
	return votes, nil
}

func (c *Context) predictSlot(ctx context.Context, s Slot, features params.Vector) (Label, error) {
	ctx, span := tracer.Start(ctx, "ensemble.base",
		trace.WithAttributes(attribute.String("potability.model", s.ArtifactName())))
	defer span.End()

	// Each predictor gets its own copy of the features.
	l, err := c.base[s].Predict(ctx, features.Slice())
	if err != nil {
		span.RecordError(err)
		return 0, &InferenceError{Stage: s.ArtifactName(), Err: err}
	}
	return l, nil
}

// #endregion base
