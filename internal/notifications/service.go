package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"animesync/internal/config"
)

const userAgent = "animesync/1.0"

// Service defines the progress and status surface exposed to the run pipeline.
// Implementations are safe for concurrent use.
type Service interface {
	NotifyItemUpdated(ctx context.Context, provider, name string) error
	NotifyItemFailed(ctx context.Context, provider, name, reason string) error
	NotifyProviderFailed(ctx context.Context, provider, reason string) error
	NotifyPublished(ctx context.Context, path string, entries int) error
	NotifyNothingToUpdate(ctx context.Context) error
	NotifyDryRun(ctx context.Context, entries int) error
	NotifyRunAborted(ctx context.Context, reason string) error
	NotifyConfigProblems(ctx context.Context, problems []string) error
	NotifyListingChunk(ctx context.Context, part, total int, text string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service that fans out to ntfy when a topic
// is configured and to out when it is non-nil. With neither, a noop
// implementation is returned.
func NewService(cfg *config.Config, out io.Writer) Service {
	var sinks []sink
	if out != nil {
		sinks = append(sinks, &writerSink{w: out})
	}
	if cfg != nil {
		if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
			timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			sinks = append(sinks, &ntfySink{
				endpoint: topic,
				client:   &http.Client{Timeout: timeout},
				progress: cfg.Notifications.Progress,
			})
		}
	}
	if len(sinks) == 0 {
		return noopService{}
	}
	return &fanout{sinks: sinks}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
	// progress marks per-item messages that ntfy may suppress.
	progress bool
}

type sink interface {
	send(ctx context.Context, data payload) error
}

type fanout struct {
	sinks []sink
}

func (f *fanout) NotifyItemUpdated(ctx context.Context, provider, name string) error {
	return f.dispatch(ctx, payload{
		title:    "animesync - Updated",
		message:  fmt.Sprintf("Successfully updated %s from %s", strings.TrimSpace(name), strings.TrimSpace(provider)),
		tags:     []string{"animesync", "item", "updated"},
		progress: true,
	})
}

func (f *fanout) NotifyItemFailed(ctx context.Context, provider, name, reason string) error {
	return f.dispatch(ctx, payload{
		title:    "animesync - Lookup Failed",
		message:  fmt.Sprintf("Failed to update %s from %s: %s", strings.TrimSpace(name), strings.TrimSpace(provider), reasonText(reason)),
		tags:     []string{"animesync", "item", "failed"},
		progress: true,
	})
}

func (f *fanout) NotifyProviderFailed(ctx context.Context, provider, reason string) error {
	return f.dispatch(ctx, payload{
		title:    "animesync - Provider Failed",
		message:  fmt.Sprintf("Failed to update %s: %s", strings.TrimSpace(provider), reasonText(reason)),
		tags:     []string{"animesync", "provider", "failed"},
		priority: "high",
		progress: true,
	})
}

func (f *fanout) NotifyPublished(ctx context.Context, path string, entries int) error {
	return f.dispatch(ctx, payload{
		title:   "animesync - Published",
		message: fmt.Sprintf("Successfully updated %s on GitHub.", strings.TrimSpace(path)),
		tags:    []string{"animesync", "publish", fmt.Sprintf("entries-%d", entries)},
	})
}

func (f *fanout) NotifyNothingToUpdate(ctx context.Context) error {
	return f.dispatch(ctx, payload{
		title:   "animesync - Nothing To Update",
		message: "No anime data to update.",
		tags:    []string{"animesync", "publish", "empty"},
	})
}

func (f *fanout) NotifyDryRun(ctx context.Context, entries int) error {
	return f.dispatch(ctx, payload{
		title:   "animesync - Dry Run",
		message: fmt.Sprintf("Dry run assembled %d entries; nothing was published.", entries),
		tags:    []string{"animesync", "dry-run"},
	})
}

func (f *fanout) NotifyRunAborted(ctx context.Context, reason string) error {
	return f.dispatch(ctx, payload{
		title:    "animesync - Aborted",
		message:  fmt.Sprintf("Update aborted: %s", reasonText(reason)),
		tags:     []string{"animesync", "error", "alert"},
		priority: "high",
	})
}

func (f *fanout) NotifyConfigProblems(ctx context.Context, problems []string) error {
	var builder strings.Builder
	builder.WriteString("The following errors were detected:")
	for _, problem := range problems {
		builder.WriteString("\n- ")
		builder.WriteString(strings.TrimSpace(problem))
	}
	return f.dispatch(ctx, payload{
		title:    "animesync - Configuration Incomplete",
		message:  builder.String(),
		tags:     []string{"animesync", "config", "alert"},
		priority: "high",
	})
}

func (f *fanout) NotifyListingChunk(ctx context.Context, part, total int, text string) error {
	return f.dispatch(ctx, payload{
		title:   fmt.Sprintf("animesync - Current Data (%d/%d)", part, total),
		message: text,
		tags:    []string{"animesync", "listing"},
	})
}

func (f *fanout) TestNotification(ctx context.Context) error {
	return f.dispatch(ctx, payload{
		title:    "animesync - Test",
		message:  "Notification system test",
		tags:     []string{"animesync", "test"},
		priority: "low",
	})
}

// dispatch delivers to every sink; one failing sink does not stop the others.
func (f *fanout) dispatch(ctx context.Context, data payload) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.send(ctx, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func reasonText(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "unknown error"
	}
	return reason
}

// writerSink prints messages, one per line, to a terminal or log writer.
type writerSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *writerSink) send(_ context.Context, data payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintln(s.w, data.message); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

type ntfySink struct {
	endpoint string
	client   *http.Client
	progress bool
}

func (n *ntfySink) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if data.progress && !n.progress {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyItemUpdated(context.Context, string, string) error        { return nil }
func (noopService) NotifyItemFailed(context.Context, string, string, string) error { return nil }
func (noopService) NotifyProviderFailed(context.Context, string, string) error     { return nil }
func (noopService) NotifyPublished(context.Context, string, int) error             { return nil }
func (noopService) NotifyNothingToUpdate(context.Context) error                    { return nil }
func (noopService) NotifyDryRun(context.Context, int) error                        { return nil }
func (noopService) NotifyRunAborted(context.Context, string) error                 { return nil }
func (noopService) NotifyConfigProblems(context.Context, []string) error           { return nil }
func (noopService) NotifyListingChunk(context.Context, int, int, string) error     { return nil }
func (noopService) TestNotification(context.Context) error                         { return nil }
