package workflow

import (
	"fmt"
	"io"
	"log/slog"

	"animesync/internal/aggregate"
	"animesync/internal/config"
	"animesync/internal/docstore"
	"animesync/internal/fetch"
	"animesync/internal/history"
	"animesync/internal/jikan"
	"animesync/internal/logging"
	"animesync/internal/notifications"
	"animesync/internal/publish"
)

// NewFromConfig wires the production collaborators: a shared resilient
// fetcher for providers and lookups, the GitHub document store, and
// notifications to out and the configured ntfy topic. store may be nil.
func NewFromConfig(cfg *config.Config, store *history.Store, out io.Writer, logger *slog.Logger, opts ...RunnerOption) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := notifications.NewService(cfg, out)

	fetcher := fetch.NewFromConfig(cfg, logging.NewComponentLogger(logger, "fetch"))
	assembler := aggregate.NewAssembler(
		fetcher,
		jikan.NewClient(cfg.Lookup.BaseURL, fetcher),
		notifier,
		aggregate.WithConcurrency(cfg.Pipeline.Concurrency),
		aggregate.WithKeepUnmatched(cfg.Pipeline.KeepUnmatched),
		aggregate.WithLogger(logger),
	)

	docs := docstore.NewClient(docstore.SettingsFromConfig(cfg))
	publisher, err := publish.NewPublisher(docs, cfg.Store.CommitMessage, logger)
	if err != nil {
		return nil, err
	}

	deps := Dependencies{
		Assembler: assembler,
		Publisher: publisher,
		Notifier:  notifier,
	}
	if store != nil {
		deps.History = store
	}
	return NewRunner(cfg, deps, logger, opts...)
}
