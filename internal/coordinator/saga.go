package coordinator

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/FranciscoTerron/ma-piscinas-sub000/internal/coordinator/journal"
)

// Step represents a single unit of work in a mutation.
// Each step must have a compensating action to undo its effects.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

type funcStep struct {
	name string
	exec func(ctx context.Context) error
	comp func(ctx context.Context) error
}

// NewStep builds a Step from plain functions. A nil comp means the step
// has nothing to undo.
func NewStep(name string, exec, comp func(ctx context.Context) error) Step {
	return &funcStep{name: name, exec: exec, comp: comp}
}

func (s *funcStep) Name() string { return s.name }

func (s *funcStep) Execute(ctx context.Context) error { return s.exec(ctx) }

func (s *funcStep) Compensate(ctx context.Context) error {
	if s.comp == nil {
		return nil
	}
	return s.comp(ctx)
}

// Orchestrator runs a sequence of Steps for one subject and journals every
// transition when a repository is configured.
type Orchestrator struct {
	subject   string
	operation string
	steps     []Step
	repo      journal.Repository
	clock     clockwork.Clock
	logger    *slog.Logger
}

type Option func(*Orchestrator)

// WithLogger overrides slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock sets the clock journal entries are stamped with.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// NewOrchestrator builds an orchestrator. repo may be nil.
func NewOrchestrator(subject, operation string, steps []Step, repo journal.Repository, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		subject:   subject,
		operation: operation,
		steps:     steps,
		repo:      repo,
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start runs the steps sequentially. If a step fails, every previously
// successful step is compensated in reverse order and the step error is
// returned.
func (o *Orchestrator) Start(ctx context.Context, payload string) error {
	log := o.logger.With(
		slog.String("subject", o.subject),
		slog.String("operation", o.operation),
	)
	o.record(ctx, journal.StatusStarted, "", payload, nil)

	var done []Step
	for _, step := range o.steps {
		log.DebugContext(ctx, "executing step", slog.String("step", step.Name()))
		if err := step.Execute(ctx); err != nil {
			log.WarnContext(ctx, "step failed, rolling back",
				slog.String("step", step.Name()),
				slog.Any("error", err),
			)
			o.record(ctx, journal.StatusCompensating, step.Name(), "", []string{err.Error()})

			compErrs := o.rollback(ctx, log, done)
			msgs := []string{err.Error()}
			for _, ce := range compErrs {
				msgs = append(msgs, ce.Error())
			}
			o.record(ctx, journal.StatusFailed, step.Name(), "", msgs)
			return err
		}
		done = append(done, step)
		o.record(ctx, journal.StatusStepDone, step.Name(), "", nil)
	}

	o.record(ctx, journal.StatusCompleted, "", "", nil)
	log.DebugContext(ctx, "mutation completed")
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, log *slog.Logger, steps []Step) []error {
	var errs []error
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		log.DebugContext(ctx, "compensating step", slog.String("step", step.Name()))
		if err := step.Compensate(ctx); err != nil {
			log.ErrorContext(ctx, "compensation failed",
				slog.String("step", step.Name()),
				slog.Any("error", err),
			)
			errs = append(errs, err)
		}
	}
	return errs
}

// record is best effort: a journal failure never fails the mutation.
func (o *Orchestrator) record(ctx context.Context, status journal.Status, step, payload string, errs []string) {
	if o.repo == nil {
		return
	}
	e := journal.NewEntry(ctx, o.clock.Now(), o.subject, o.operation, status, step, payload, errs)
	if err := o.repo.Save(context.WithoutCancel(ctx), e); err != nil {
		o.logger.WarnContext(ctx, "journal write failed",
			slog.String("subject", o.subject),
			slog.String("status", string(status)),
			slog.Any("error", err),
		)
	}
}
