package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"animesync/internal/aggregate"
	"animesync/internal/catalog"
	"animesync/internal/config"
	"animesync/internal/history"
	"animesync/internal/logging"
	"animesync/internal/notifications"
	"animesync/internal/publish"
	"animesync/internal/services"
)

// Assembler produces the entries for a run.
type Assembler interface {
	Run(ctx context.Context, sources []aggregate.Source) (*aggregate.Run, error)
}

// Publisher stores the assembled entries.
type Publisher interface {
	Publish(ctx context.Context, entries []catalog.Entry) (publish.Result, error)
}

// Recorder persists run summaries.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Dependencies are the collaborators a Runner drives.
type Dependencies struct {
	Assembler Assembler
	Publisher Publisher
	// History is optional; a nil recorder skips run history.
	History  Recorder
	Notifier notifications.Service
}

// Options select per-run behaviour.
type Options struct {
	// DryRun assembles and encodes the document without publishing it.
	DryRun bool
}

// Outcome summarizes a finished run.
type Outcome struct {
	RunID    string
	Status   history.Status
	Message  string
	Assembly *aggregate.Run
	Publish  *publish.Result
	// Document holds the encoded document of a dry run.
	Document []byte
}

// Runner executes update runs.
type Runner struct {
	cfg       *config.Config
	assembler Assembler
	publisher Publisher
	history   Recorder
	notifier  notifications.Service
	logger    *slog.Logger
	lock      *RunLock
	newID     func() string
	now       func() time.Time
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithClock overrides the time source used for history timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(newID func() string) RunnerOption {
	return func(r *Runner) {
		if newID != nil {
			r.newID = newID
		}
	}
}

// NewRunner constructs a runner around explicit dependencies.
func NewRunner(cfg *config.Config, deps Dependencies, logger *slog.Logger, opts ...RunnerOption) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("workflow requires config")
	}
	if deps.Assembler == nil || deps.Publisher == nil {
		return nil, errors.New("workflow requires assembler and publisher")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil, nil)
	}
	r := &Runner{
		cfg:       cfg,
		assembler: deps.Assembler,
		publisher: deps.Publisher,
		history:   deps.History,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		lock:      NewRunLock(cfg.LockPath()),
		newID:     uuid.NewString,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run performs one update. The returned outcome is non-nil whenever a run ID
// was assigned, including failed runs; the error reports why the run aborted.
func (r *Runner) Run(ctx context.Context, opts Options) (*Outcome, error) {
	runID := r.newID()
	ctx = services.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, r.logger)
	outcome := &Outcome{RunID: runID}
	record := history.Run{ID: runID, StartedAt: r.now()}

	if err := r.checkConfig(opts); err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			r.notify(logger, r.notifier.NotifyConfigProblems(ctx, cfgErr.Messages()))
		}
		wrapped := services.Wrap(services.ErrConfiguration, "preflight", "check config", "", err)
		r.finish(ctx, logger, outcome, &record, history.StatusConfigError, err.Error())
		return outcome, wrapped
	}

	acquired, err := r.lock.TryLock()
	if err != nil {
		return outcome, services.Wrap(services.ErrTransient, "preflight", "acquire run lock", "", err)
	}
	if !acquired {
		return outcome, ErrRunInProgress
	}
	defer func() {
		if err := r.lock.Unlock(); err != nil {
			logger.Warn("failed to release run lock", logging.Error(err))
		}
	}()

	logger.Info("run started", logging.Bool("dry_run", opts.DryRun))

	assembleCtx := services.WithStage(ctx, "assemble")
	assembly, err := r.assembler.Run(assembleCtx, aggregate.SourcesFromConfig(r.cfg))
	if err != nil {
		return r.abort(ctx, logger, outcome, &record, services.Wrap(services.ErrTransient, "assemble", "", "", err))
	}
	outcome.Assembly = assembly
	record.Entries = len(assembly.Entries)
	record.ProviderFailures = len(assembly.ProviderFailures)
	record.ItemFailures = len(assembly.ItemFailures)
	record.Failures = failuresFor(assembly)

	if opts.DryRun {
		document, err := publish.Encode(assembly.Entries)
		if err != nil {
			return r.abort(ctx, logger, outcome, &record, err)
		}
		outcome.Document = document
		r.notify(logger, r.notifier.NotifyDryRun(ctx, len(assembly.Entries)))
		r.finish(ctx, logger, outcome, &record, history.StatusDryRun, fmt.Sprintf("dry run assembled %d entries", len(assembly.Entries)))
		return outcome, nil
	}

	if assembly.Empty() {
		r.notify(logger, r.notifier.NotifyNothingToUpdate(ctx))
		r.finish(ctx, logger, outcome, &record, history.StatusNothingToUpdate, "No anime data to update.")
		return outcome, nil
	}

	publishCtx := services.WithStage(ctx, "publish")
	result, err := r.publisher.Publish(publishCtx, assembly.Entries)
	if err != nil {
		return r.abort(ctx, logger, outcome, &record, err)
	}
	outcome.Publish = &result
	record.SHA = result.SHA
	r.notify(logger, r.notifier.NotifyPublished(ctx, result.Path, result.Entries))
	r.finish(ctx, logger, outcome, &record, history.StatusPublished, fmt.Sprintf("Successfully updated %s on GitHub.", result.Path))
	return outcome, nil
}

// checkConfig reports missing configuration. A dry run never touches the
// store, so store settings are not required for one.
func (r *Runner) checkConfig(opts Options) error {
	err := r.cfg.CheckRequired()
	if err == nil || !opts.DryRun {
		return err
	}
	var cfgErr *config.Error
	if !errors.As(err, &cfgErr) {
		return err
	}
	var remaining []config.Problem
	for _, problem := range cfgErr.Problems {
		if strings.HasPrefix(problem.Field, "store.") {
			continue
		}
		remaining = append(remaining, problem)
	}
	if len(remaining) == 0 {
		return nil
	}
	return &config.Error{Problems: remaining}
}

func (r *Runner) abort(ctx context.Context, logger *slog.Logger, outcome *Outcome, record *history.Run, err error) (*Outcome, error) {
	status := services.FailureStatus(err)
	reason := abortReason(err)
	logging.ErrorWithContext(logger, "run aborted", "run_aborted",
		logging.String("status", string(status)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, abortHint(err)),
	)
	// The caller's context may already be cancelled; the final message and
	// history row still go out.
	finalCtx := context.WithoutCancel(ctx)
	r.notify(logger, r.notifier.NotifyRunAborted(finalCtx, reason))
	r.finish(finalCtx, logger, outcome, record, status, reason)
	return outcome, err
}

func (r *Runner) finish(ctx context.Context, logger *slog.Logger, outcome *Outcome, record *history.Run, status history.Status, message string) {
	record.Status = status
	record.Message = message
	record.FinishedAt = r.now()
	outcome.Status = status
	outcome.Message = message

	logger.Info("run finished",
		logging.String("status", string(status)),
		logging.Int("entries", record.Entries),
		logging.Int("provider_failures", record.ProviderFailures),
		logging.Int("item_failures", record.ItemFailures),
		logging.Duration("elapsed", record.Duration()),
	)

	if r.history == nil {
		return
	}
	if err := r.history.Record(context.WithoutCancel(ctx), *record); err != nil {
		logging.WarnWithContext(logger, "failed to record run history", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run missing from animesync history"),
		)
	}
}

func (r *Runner) notify(logger *slog.Logger, err error) {
	if err != nil {
		logger.Debug("notification failed", logging.Error(err))
	}
}

func failuresFor(run *aggregate.Run) []history.Failure {
	failures := make([]history.Failure, 0, len(run.ProviderFailures)+len(run.ItemFailures))
	for _, failure := range run.ProviderFailures {
		failures = append(failures, history.Failure{Scope: history.ScopeProvider, Provider: failure.Provider.String(), Reason: failure.Reason})
	}
	for _, failure := range run.ItemFailures {
		failures = append(failures, history.Failure{Scope: history.ScopeItem, Provider: failure.Provider.String(), Item: failure.Item, Reason: failure.Reason})
	}
	return failures
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "run cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "run timed out"
	case errors.Is(err, services.ErrConflict):
		return "the document was changed by someone else during this run; run again to publish"
	case errors.Is(err, services.ErrNotFound):
		return "the configured repository, branch or document path was not found"
	default:
		return err.Error()
	}
}

func abortHint(err error) string {
	switch {
	case errors.Is(err, services.ErrConflict):
		return "rerun animesync; the next run reads the new version"
	case errors.Is(err, services.ErrConfiguration):
		return "check store.token and repository permissions"
	case errors.Is(err, services.ErrNotFound):
		return "check store.owner, store.repo, store.branch and store.path"
	default:
		return "check logs for details"
	}
}
