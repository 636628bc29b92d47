// Package pipeline runs the training workflow: ingest, prepare, train and
// evaluate, then persist the result as a run artifact.
//
// A Pipeline is built explicitly with New and executes once per Run; nothing
// happens at import time.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/tabflow/artifact"
	"github.com/YuminosukeSato/tabflow/dataset"
	"github.com/YuminosukeSato/tabflow/evaluate"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/pkg/log"
	"github.com/YuminosukeSato/tabflow/preprocessing"
	"github.com/YuminosukeSato/tabflow/trainer"
)

// Result is returned by a completed run.
type Result struct {
	RunID    string
	Metric   evaluate.Metric
	Artifact *artifact.RunArtifact
	Duration time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver registers fn to be called on every state transition.
func WithObserver(fn func(from, to State)) Option {
	return func(p *Pipeline) {
		p.observers = append(p.observers, fn)
	}
}

// WithLogger sets the logger. Defaults to the global "Pipeline" logger.
func WithLogger(l log.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithIDGenerator replaces the UUIDv7 run id generator.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(p *Pipeline) {
		p.newID = fn
	}
}

// WithClock replaces time.Now for artifact timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// Pipeline executes one training run.
type Pipeline struct {
	cfg       Config
	store     artifact.Store
	logger    log.Logger
	observers []func(from, to State)
	newID     func() (string, error)
	now       func() time.Time

	mu    sync.Mutex
	state State
	ran   bool
}

// New validates cfg and returns an idle pipeline writing to store.
func New(cfg Config, store artifact.Store, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.NewValidationError("store", "must not be nil", nil)
	}
	p := &Pipeline{
		cfg:   cfg,
		store: store,
		newID: newRunID,
		now:   time.Now,
		state: Idle,
	}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = log.GetLoggerWithName("Pipeline")
	}
	return p, nil
}

// newRunID returns a time ordered UUIDv7.
func newRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", errors.Wrap(err, "generate run id")
	}
	return id.String(), nil
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) transition(to State) {
	p.mu.Lock()
	from := p.state
	p.state = to
	p.mu.Unlock()

	p.logger.Debug("pipeline state changed", log.FromStageKey, from.String(), log.StageKey, to.String())
	for _, fn := range p.observers {
		fn(from, to)
	}
}

// Run executes every stage in order. On failure the pipeline ends in Failed,
// no run id is issued and nothing is stored. Run may be called once.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	if p.ran {
		p.mu.Unlock()
		return nil, errors.NewValueError("Pipeline.Run", "pipeline has already run")
	}
	p.ran = true
	p.mu.Unlock()

	start := p.now()
	res, err := p.run(ctx)
	if err != nil {
		stage := p.State()
		p.transition(Failed)
		p.logger.Error("pipeline run failed", err,
			log.StageKey, stage.String(),
			log.PathKey, p.cfg.DataPath,
		)
		return nil, err
	}
	res.Duration = p.now().Sub(start)
	p.transition(Completed)
	p.logger.Info("pipeline run completed",
		log.RunIDKey, res.RunID,
		log.MetricKey, res.Metric.Name,
		log.MetricValueKey, res.Metric.Value,
		log.DurationMsKey, res.Duration.Milliseconds(),
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context) (*Result, error) {
	cfg := p.cfg

	p.transition(Ingesting)
	ingestor := dataset.NewIngestor(dataset.WithWorkDir(cfg.WorkDir), dataset.WithLogger(p.logger))
	ds, err := ingestor.Ingest(ctx, cfg.DataPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	p.transition(Preparing)
	prepOpts := []preprocessing.PrepareOption{preprocessing.WithPrepareLogger(p.logger)}
	if task, ok, _ := cfg.ParsedTask(); ok {
		prepOpts = append(prepOpts, preprocessing.WithTask(task))
	}
	split, err := preprocessing.Prepare(ds, cfg.Target, cfg.TestRatio, cfg.Seed, prepOpts...)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	p.transition(Training)
	strategy, err := trainer.New(cfg.Strategy, trainer.Params{Task: split.Task, Values: cfg.Params})
	if err != nil {
		return nil, err
	}
	m, err := trainer.Train(strategy, split.TrainX, split.TrainY)
	if err != nil {
		return nil, err
	}
	p.logger.Info("model trained",
		log.OperationKey, log.OperationFit,
		log.StrategyKey, cfg.Strategy,
		log.HyperParamsKey, cfg.Params,
	)
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	p.transition(Evaluating)
	metric, err := evaluate.Evaluate(m, split.TestX, split.TestY, split.Task)
	if err != nil {
		return nil, err
	}

	id, err := p.newID()
	if err != nil {
		return nil, err
	}
	a := &artifact.RunArtifact{
		ID:           id,
		CreatedAt:    p.now().UTC(),
		Task:         split.Task,
		Strategy:     cfg.Strategy,
		Params:       cfg.Params,
		Metric:       metric,
		Mapping:      split.Mapping,
		Features:     split.Features,
		Target:       split.Target,
		DataPath:     cfg.DataPath,
		Seed:         split.Seed,
		TestRatio:    split.TestRatio,
		TrainSamples: len(split.TrainRows),
		TestSamples:  len(split.TestRows),
		Model:        m,
	}
	if err := p.store.Put(ctx, a); err != nil {
		return nil, err
	}
	return &Result{RunID: id, Metric: metric, Artifact: a}, nil
}
