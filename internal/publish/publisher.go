package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"animesync/internal/catalog"
	"animesync/internal/docstore"
	"animesync/internal/logging"
	"animesync/internal/services"
)

// Store is the subset of docstore.Client the publisher needs.
type Store interface {
	Path() string
	Read(ctx context.Context) (docstore.Document, error)
	Write(ctx context.Context, content []byte, sha, message string) (docstore.WriteResult, error)
}

// Result describes a completed publish.
type Result struct {
	Path        string
	PreviousSHA string
	SHA         string
	CommitSHA   string
	Entries     int
	Message     string
}

// MessageData is available to the commit message template.
type MessageData struct {
	Count int
	RunID string
	Date  string
}

// Publisher replaces the stored document with a freshly encoded one.
type Publisher struct {
	store   Store
	message *template.Template
	logger  *slog.Logger
	now     func() time.Time
}

// Option customizes a Publisher.
type Option func(*Publisher)

// WithClock overrides the time source for the {{.Date}} template field.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPublisher parses the commit message template and returns a publisher.
func NewPublisher(store Store, commitMessage string, logger *slog.Logger, opts ...Option) (*Publisher, error) {
	commitMessage = strings.TrimSpace(commitMessage)
	if commitMessage == "" {
		commitMessage = "Update anime data"
	}
	tmpl, err := template.New("commit").Option("missingkey=error").Parse(commitMessage)
	if err != nil {
		return nil, fmt.Errorf("parse commit message: %w", err)
	}
	p := &Publisher{
		store:   store,
		message: tmpl,
		logger:  logging.NewComponentLogger(logger, "publish"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Encode renders and validates the document without touching the store.
func Encode(entries []catalog.Entry) ([]byte, error) {
	data, err := catalog.Encode(entries)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "publish", "encode", "encode document", err)
	}
	if err := catalog.Validate(data); err != nil {
		return nil, services.Wrap(services.ErrValidation, "publish", "validate", "document failed schema validation", err)
	}
	return data, nil
}

// Publish reads the current version token and writes the new document against
// it exactly once. A conflicting concurrent update aborts the publish; the
// caller decides whether to run again.
func (p *Publisher) Publish(ctx context.Context, entries []catalog.Entry) (Result, error) {
	logger := logging.WithContext(ctx, p.logger)
	result := Result{Path: p.store.Path(), Entries: len(entries)}

	data, err := Encode(entries)
	if err != nil {
		return result, err
	}
	message, err := p.commitMessage(ctx, len(entries))
	if err != nil {
		return result, err
	}
	result.Message = message

	current, err := p.store.Read(ctx)
	if err != nil {
		return result, wrapStoreError("read", err)
	}
	result.PreviousSHA = current.SHA
	attrs := []logging.Attr{logging.String("sha", current.SHA)}
	if current.Content != nil {
		attrs = append(attrs,
			logging.Int("bytes", len(current.Content)),
			logging.Bool("unchanged", bytes.Equal(current.Content, data)),
		)
	}
	logger.Debug("current document read", logging.Args(attrs...)...)

	written, err := p.store.Write(ctx, data, current.SHA, message)
	if err != nil {
		return result, wrapStoreError("write", err)
	}
	result.SHA = written.ContentSHA
	result.CommitSHA = written.CommitSHA

	logger.Info("document published",
		logging.String("path", result.Path),
		logging.Int("entries", result.Entries),
		logging.String("previous_sha", result.PreviousSHA),
		logging.String("sha", result.SHA),
		logging.String("commit", result.CommitSHA),
	)
	return result, nil
}

func (p *Publisher) commitMessage(ctx context.Context, count int) (string, error) {
	runID, _ := services.RunIDFromContext(ctx)
	var buf bytes.Buffer
	data := MessageData{Count: count, RunID: runID, Date: p.now().UTC().Format("2006-01-02")}
	if err := p.message.Execute(&buf, data); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "publish", "commit message", "render store.commit_message", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func wrapStoreError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	marker := services.ErrTransient
	switch {
	case errors.Is(err, docstore.ErrConflict):
		marker = services.ErrConflict
	case errors.Is(err, docstore.ErrNotFound):
		marker = services.ErrNotFound
	case errors.Is(err, docstore.ErrUnauthorized):
		marker = services.ErrConfiguration
	}
	return services.Wrap(marker, "publish", op, "", err)
}
