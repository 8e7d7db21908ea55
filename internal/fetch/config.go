package fetch

import (
	"log/slog"

	"animesync/internal/config"
)

// NewFromConfig builds a client tuned by the [fetch] section. Extra options
// are applied last.
func NewFromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) *Client {
	settings := cfg.FetchSettings()
	base := []Option{
		WithTimeout(settings.RequestTimeout),
		WithMaxRetries(settings.MaxRetries),
		WithMaxRateLimitWaits(settings.MaxRateLimitWaits),
		WithBaseDelay(settings.BaseDelay),
		WithRateLimitDelay(settings.RateLimitDelay),
		WithLogger(logger),
	}
	return NewClient(append(base, opts...)...)
}
