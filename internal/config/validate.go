package config

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// Validate ensures the configuration is internally consistent. Missing
// credentials and endpoints are reported separately by CheckRequired.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateDisplay(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	if c.Store.Path != "" && strings.Contains(c.Store.Path, "..") {
		return fmt.Errorf("store.path %q must not contain '..'", c.Store.Path)
	}
	if _, err := template.New("commit").Parse(c.Store.CommitMessage); err != nil {
		return fmt.Errorf("store.commit_message: %w", err)
	}
	return ensurePositiveMap(map[string]int{
		"store.request_timeout":         c.Store.RequestTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateFetch() error {
	if c.Fetch.MaxRetries < 0 {
		return errors.New("fetch.max_retries must be >= 0")
	}
	if c.Fetch.MaxRateLimitWaits < 0 {
		return errors.New("fetch.max_rate_limit_waits must be >= 0")
	}
	if c.Fetch.BaseDelayMS < 0 {
		return errors.New("fetch.base_delay_ms must be >= 0")
	}
	if c.Fetch.RateLimitDelayMS < 0 {
		return errors.New("fetch.rate_limit_delay_ms must be >= 0")
	}
	if c.Fetch.RequestTimeout <= 0 {
		return errors.New("fetch.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Concurrency < 1 {
		return errors.New("pipeline.concurrency must be >= 1")
	}
	return nil
}

func (c *Config) validateDisplay() error {
	if c.Display.ChunkSize <= 0 {
		return errors.New("display.chunk_size must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
