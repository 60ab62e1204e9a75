package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domainagg "github.com/yungbote/wayfarer-backend/internal/domain/aggregates"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
)

type State string

const (
	StateIdle         State = "idle"
	StateSelecting    State = "selecting"
	StatePartitioning State = "partitioning"
	StateTraining     State = "training"
	StateRecording    State = "recording"
	StateConsuming    State = "consuming"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusNoData    Status = "no_data"
)

type Summary struct {
	Status                 Status             `json:"status"`
	Version                string             `json:"version,omitempty"`
	ArtifactURI            string             `json:"artifact_uri,omitempty"`
	Metrics                map[string]float64 `json:"metrics,omitempty"`
	SelectedCount          int                `json:"selected_count"`
	TrainingExampleCount   int                `json:"training_example_count"`
	ValidationExampleCount int                `json:"validation_example_count"`
	ExampleIDs             []uint64           `json:"example_ids,omitempty"`
	StartedAt              time.Time          `json:"started_at"`
	FinishedAt             time.Time          `json:"finished_at"`
}

type Options struct {
	MinScore           float64
	Limit              int
	ValidationFraction float64
	Seed               int64
	BaseModel          string
}

func DefaultOptions() Options {
	return Options{
		MinScore:           DefaultMinScore,
		Limit:              DefaultLimit,
		ValidationFraction: DefaultValidationFraction,
		Seed:               DefaultSeed,
		BaseModel:          "baseline",
	}
}

// Observer is told about every state the driver enters, in order.
type Observer func(ctx context.Context, state State)

type DriverDeps struct {
	Log      *logger.Logger
	Selector *Selector
	Trainer  Trainer
	Registry domainagg.ModelRegistryAggregate
	Feedback domainagg.FeedbackAggregate
	Locker   Locker
	Tracer   trace.Tracer

	Now        func() time.Time
	NewVersion func(time.Time) string
}

// Driver runs the pipeline: select, partition, train, record, consume.
// Only one run executes at a time; a second caller gets ErrRunInProgress.
type Driver struct {
	deps DriverDeps
	opts Options
	log  *logger.Logger

	mu    sync.Mutex
	state State
}

func NewDriver(deps DriverDeps, opts Options) (*Driver, error) {
	switch {
	case deps.Selector == nil:
		return nil, errors.New("training driver: missing selector")
	case deps.Trainer == nil:
		return nil, errors.New("training driver: missing trainer")
	case deps.Registry == nil:
		return nil, errors.New("training driver: missing model registry")
	case deps.Feedback == nil:
		return nil, errors.New("training driver: missing feedback aggregate")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Locker == nil {
		deps.Locker = &ProcessLocker{}
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("wayfarer/training")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewVersion == nil {
		deps.NewVersion = NewVersion
	}
	return &Driver{
		deps:  deps,
		opts:  opts.withDefaults(),
		log:   deps.Log.With("component", "TrainingDriver"),
		state: StateIdle,
	}, nil
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Limit == 0 {
		o.Limit = def.Limit
	}
	if o.ValidationFraction == 0 {
		o.ValidationFraction = def.ValidationFraction
	}
	if strings.TrimSpace(o.BaseModel) == "" {
		o.BaseModel = def.BaseModel
	}
	return o
}

func (d *Driver) Options() Options { return d.opts }

// State is the state of the current (or last) run.
func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Run executes one pipeline run with the driver's configured options.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	return d.Execute(ctx, d.opts, nil)
}

// Execute runs the pipeline once with opts, reporting states to obs.
//
// Zero selected examples ends the run with StatusNoData and no writes. If ctx
// is canceled by the time training returns, nothing is recorded or consumed.
// The pipeline runs under the context held by the Locker, so losing the
// lock counts as a cancel.
// Once recording starts the run completes even if ctx is canceled, so a
// promoted model is not left with unconsumed examples by a late cancel.
func (d *Driver) Execute(ctx context.Context, opts Options, obs Observer) (*Summary, error) {
	ctx, release, err := d.deps.Locker.TryAcquire(ctx)
	if err != nil {
		if errors.Is(err, ErrLockBusy) {
			return nil, newError(KindRunInProgress, StateIdle, err)
		}
		return nil, newError(KindStoreUnavailable, StateIdle, fmt.Errorf("acquire training lock: %w", err))
	}
	defer release()

	ctx, span := d.deps.Tracer.Start(ctx, "training.run")
	defer span.End()

	started := d.deps.Now().UTC()
	sum, err := d.execute(ctx, opts.withDefaults(), obs)
	if err != nil {
		d.enter(ctx, obs, StateFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		d.log.Warn("training run failed", "kind", KindOf(err), "error", err)
		return nil, err
	}
	sum.StartedAt = started
	sum.FinishedAt = d.deps.Now().UTC()
	d.enter(ctx, obs, StateDone)
	span.SetAttributes(
		attribute.String("training.status", string(sum.Status)),
		attribute.Int("training.selected", sum.SelectedCount),
	)
	d.log.Info("training run finished",
		"status", sum.Status,
		"version", sum.Version,
		"selected", sum.SelectedCount,
		"train", sum.TrainingExampleCount,
		"validation", sum.ValidationExampleCount,
	)
	return sum, nil
}

func (d *Driver) execute(ctx context.Context, opts Options, obs Observer) (*Summary, error) {
	// selecting
	d.enter(ctx, obs, StateSelecting)
	stageCtx, span := d.deps.Tracer.Start(ctx, "training.select")
	examples, err := d.deps.Selector.Select(stageCtx, opts.MinScore, opts.Limit)
	endSpan(span, err)
	if err != nil {
		return nil, err
	}
	if len(examples) == 0 {
		return &Summary{Status: StatusNoData}, nil
	}
	ids := IDs(examples)

	// partitioning
	d.enter(ctx, obs, StatePartitioning)
	train, validation := Partition(examples, opts.ValidationFraction, opts.Seed)

	// training
	d.enter(ctx, obs, StateTraining)
	version := d.deps.NewVersion(d.deps.Now())
	stageCtx, span = d.deps.Tracer.Start(ctx, "training.train", trace.WithAttributes(
		attribute.String("training.version", version),
		attribute.Int("training.train_examples", len(train)),
		attribute.Int("training.validation_examples", len(validation)),
	))
	res, err := d.deps.Trainer.Train(stageCtx, TrainRequest{
		Version:    version,
		BaseModel:  opts.BaseModel,
		Train:      train,
		Validation: validation,
	})
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		endSpan(span, cause)
		return nil, newError(KindCanceled, StateTraining, cause)
	}
	if err == nil && res == nil {
		err = errors.New("trainer returned no result")
	}
	endSpan(span, err)
	if err != nil {
		return nil, newError(KindTraining, StateTraining, err)
	}
	metrics := d.finiteMetrics(res.Metrics)

	commitCtx := context.WithoutCancel(ctx)

	// recording
	d.enter(ctx, obs, StateRecording)
	stageCtx, span = d.deps.Tracer.Start(commitCtx, "training.record")
	_, err = d.deps.Registry.Promote(stageCtx, domainagg.PromoteInput{
		Version:         version,
		BaseModel:       opts.BaseModel,
		ArtifactURI:     res.ArtifactURI,
		TrainingCount:   len(train),
		ValidationCount: len(validation),
		Metrics:         metrics,
		CreatedAt:       d.deps.Now().UTC(),
	})
	endSpan(span, err)
	if err != nil {
		return nil, newError(KindStoreUnavailable, StateRecording, err)
	}

	// consuming
	d.enter(ctx, obs, StateConsuming)
	stageCtx, span = d.deps.Tracer.Start(commitCtx, "training.consume")
	_, err = d.deps.Feedback.Consume(stageCtx, ids)
	endSpan(span, err)
	if err != nil {
		return nil, &Error{
			Kind:       KindPartialFailure,
			Stage:      StateConsuming,
			Version:    version,
			ExampleIDs: ids,
			Cause:      err,
		}
	}

	return &Summary{
		Status:                 StatusSucceeded,
		Version:                version,
		ArtifactURI:            res.ArtifactURI,
		Metrics:                metrics,
		SelectedCount:          len(examples),
		TrainingExampleCount:   len(train),
		ValidationExampleCount: len(validation),
		ExampleIDs:             ids,
	}, nil
}

// Consume marks ids as used for training. Repeating it is harmless; it is
// the recovery path for a PartialFailure.
func (d *Driver) Consume(ctx context.Context, ids []uint64) (int64, error) {
	n, err := d.deps.Feedback.Consume(ctx, ids)
	if err != nil {
		return 0, newError(KindStoreUnavailable, StateConsuming, err)
	}
	return n, nil
}

func (d *Driver) enter(ctx context.Context, obs Observer, s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
	trace.SpanFromContext(ctx).AddEvent("state", trace.WithAttributes(attribute.String("training.state", string(s))))
	if obs != nil {
		obs(ctx, s)
	}
}

// finiteMetrics drops NaN and Inf values, which the metrics column cannot hold.
func (d *Driver) finiteMetrics(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	var dropped []string
	for k, v := range in {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			dropped = append(dropped, k)
			continue
		}
		out[k] = v
	}
	if len(dropped) > 0 {
		slices.Sort(dropped)
		d.log.Warn("dropping non-finite metrics", "metrics", strings.Join(dropped, ","))
	}
	return out
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
