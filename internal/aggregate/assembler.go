package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"animesync/internal/catalog"
	"animesync/internal/config"
	"animesync/internal/fetch"
	"animesync/internal/jikan"
	"animesync/internal/logging"
	"animesync/internal/notifications"
	"animesync/internal/providers"
	"animesync/internal/services"
)

// Fetcher retrieves a provider listing.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, header http.Header) (fetch.Response, error)
}

// Enricher resolves metadata for a folder name. A nil result with a nil
// error means the service has no match.
type Enricher interface {
	Enrich(ctx context.Context, name string) (*jikan.Metadata, error)
}

// Source is one provider and its configured listing endpoint.
type Source struct {
	Provider providers.Provider
	Endpoint string
}

// SourcesFromConfig returns one source per provider in configuration order.
func SourcesFromConfig(cfg *config.Config) []Source {
	if cfg == nil {
		return nil
	}
	endpoints := cfg.ProviderEndpoints()
	sources := make([]Source, 0, len(endpoints))
	for _, endpoint := range endpoints {
		sources = append(sources, Source{Provider: endpoint.Provider, Endpoint: endpoint.URL})
	}
	return sources
}

// Failure is a contained provider or item failure. Reason never contains the
// provider access key.
type Failure struct {
	Provider providers.Provider
	// Item is the folder name; empty for provider failures.
	Item   string
	Reason string
}

// Run is the outcome of one assembly pass.
type Run struct {
	Entries          []catalog.Entry
	ProviderFailures []Failure
	ItemFailures     []Failure
	// Unmatched counts folders the lookup service had no match for.
	Unmatched  int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Empty reports whether the run produced no entries.
func (r *Run) Empty() bool {
	return r == nil || len(r.Entries) == 0
}

// Assembler drives the per-provider listing and enrichment.
type Assembler struct {
	fetcher       Fetcher
	enricher      Enricher
	notifier      notifications.Service
	logger        *slog.Logger
	concurrency   int
	keepUnmatched bool
	now           func() time.Time
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithConcurrency bounds how many providers are processed at once.
func WithConcurrency(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithKeepUnmatched controls whether folders without a lookup match are kept
// with empty metadata.
func WithKeepUnmatched(keep bool) Option {
	return func(a *Assembler) {
		a.keepUnmatched = keep
	}
}

// WithLogger sets the assembler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAssembler constructs an assembler. A nil notifier discards progress.
func NewAssembler(fetcher Fetcher, enricher Enricher, notifier notifications.Service, opts ...Option) *Assembler {
	if notifier == nil {
		notifier = notifications.NewService(nil, nil)
	}
	a := &Assembler{
		fetcher:       fetcher,
		enricher:      enricher,
		notifier:      notifier,
		logger:        logging.NewNop(),
		concurrency:   1,
		keepUnmatched: true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.NewComponentLogger(a.logger, "aggregate")
	return a
}

// providerResult collects one provider's contribution. Each provider owns its
// slot, so no locking is needed while providers run concurrently.
type providerResult struct {
	entries      []catalog.Entry
	providerFail *Failure
	itemFails    []Failure
	unmatched    int
}

// Run processes every source and returns the merged result in source order.
// Cancellation returns ctx's error and no entries.
func (a *Assembler) Run(ctx context.Context, sources []Source) (*Run, error) {
	run := &Run{StartedAt: a.now()}
	results := make([]providerResult, len(sources))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(a.concurrency)
	for i, source := range sources {
		i, source := i, source
		group.Go(func() error {
			result, err := a.assembleProvider(gctx, source)
			results[i] = result
			return err
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run.Entries = []catalog.Entry{}
	for _, result := range results {
		run.Entries = append(run.Entries, result.entries...)
		if result.providerFail != nil {
			run.ProviderFailures = append(run.ProviderFailures, *result.providerFail)
		}
		run.ItemFailures = append(run.ItemFailures, result.itemFails...)
		run.Unmatched += result.unmatched
	}
	run.FinishedAt = a.now()

	a.logger.Info("assembly complete",
		logging.Int("entries", len(run.Entries)),
		logging.Int("provider_failures", len(run.ProviderFailures)),
		logging.Int("item_failures", len(run.ItemFailures)),
		logging.Int("unmatched", run.Unmatched),
		logging.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	)
	return run, nil
}

// assembleProvider returns a non-nil error only when ctx is done.
func (a *Assembler) assembleProvider(ctx context.Context, source Source) (providerResult, error) {
	var result providerResult
	ctx = services.WithProvider(ctx, source.Provider.String())
	logger := logging.WithContext(ctx, a.logger)

	key, err := providers.AccessKey(source.Endpoint)
	if err != nil {
		reason := "endpoint is not configured"
		if strings.TrimSpace(source.Endpoint) != "" {
			reason = "endpoint has no access key"
		}
		a.failProvider(ctx, logger, &result, source.Provider, reason)
		return result, nil
	}

	resp, err := a.fetcher.Fetch(ctx, source.Endpoint, nil)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}
	if err != nil {
		a.failProvider(ctx, logger, &result, source.Provider, providers.Redact(err.Error(), key))
		return result, nil
	}

	folders, err := providers.Normalize(source.Provider, resp.Value)
	if err != nil {
		a.failProvider(ctx, logger, &result, source.Provider, providers.Redact(err.Error(), key))
		return result, nil
	}
	logger.Debug("folders listed", logging.Int("folders", len(folders)))

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if !folder.Complete() {
			logger.Debug("skipping incomplete folder",
				logging.String("folder_id", folder.ID),
				logging.String("folder_name", folder.Name),
			)
			continue
		}
		name := strings.TrimSpace(folder.Name)

		meta, err := a.enricher.Enrich(ctx, name)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		if err != nil {
			reason := providers.Redact(err.Error(), key)
			result.itemFails = append(result.itemFails, Failure{Provider: source.Provider, Item: name, Reason: reason})
			logging.WarnWithContext(logger, "metadata lookup failed", "item_failed",
				logging.String("item", name),
				logging.String("reason", reason),
				logging.String(logging.FieldErrorHint, "the folder is left out of this run; it is retried on the next run"),
				logging.String(logging.FieldImpact, "entry missing from published document"),
			)
			a.notify(logger, a.notifier.NotifyItemFailed(ctx, source.Provider.String(), name, reason))
			continue
		}
		if meta == nil {
			result.unmatched++
			if !a.keepUnmatched {
				logger.Info("no metadata match; skipping folder", logging.String("item", name))
				continue
			}
			logger.Debug("no metadata match; keeping bare folder", logging.String("item", name))
		}

		entry, err := catalog.NewEntry(source.Provider, folder, meta)
		if err != nil {
			continue
		}
		result.entries = append(result.entries, entry)
		a.notify(logger, a.notifier.NotifyItemUpdated(ctx, source.Provider.String(), entry.Name))
	}

	logger.Info("provider assembled", logging.Int("entries", len(result.entries)), logging.Int("item_failures", len(result.itemFails)))
	return result, nil
}

func (a *Assembler) failProvider(ctx context.Context, logger *slog.Logger, result *providerResult, provider providers.Provider, reason string) {
	result.providerFail = &Failure{Provider: provider, Reason: reason}
	logging.WarnWithContext(logger, "provider skipped", "provider_failed",
		logging.String("reason", reason),
		logging.String(logging.FieldErrorHint, "check the provider endpoint and access key"),
		logging.String(logging.FieldImpact, "provider entries missing from published document"),
	)
	a.notify(logger, a.notifier.NotifyProviderFailed(ctx, provider.String(), reason))
}

// notify logs delivery failures; progress is best effort.
func (a *Assembler) notify(logger *slog.Logger, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	logger.Debug("progress notification failed", logging.Error(err))
}
