package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProviders()
	c.normalizeStore()
	c.normalizeLookup()
	c.normalizeFetch()
	c.normalizePipeline()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeProviders() {
	c.Providers.MixDropURL = envFallback(c.Providers.MixDropURL, "MIXDROP_URL")
	c.Providers.FilemoonURL = envFallback(c.Providers.FilemoonURL, "FILEMOON_URL")
	c.Providers.VidHideURL = envFallback(c.Providers.VidHideURL, "VIDHIDE_URL")
	c.Providers.StreamWishURL = envFallback(c.Providers.StreamWishURL, "STREAMWISH_URL")
	c.Providers.DoodStreamURL = envFallback(c.Providers.DoodStreamURL, "DOODSTREAM_URL")
}

func (c *Config) normalizeStore() {
	c.Store.Owner = strings.TrimSpace(c.Store.Owner)
	c.Store.Repo = strings.TrimSpace(c.Store.Repo)
	c.Store.Path = strings.Trim(strings.TrimSpace(c.Store.Path), "/")
	c.Store.Branch = strings.TrimSpace(c.Store.Branch)
	if c.Store.Branch == "" {
		c.Store.Branch = defaultStoreBranch
	}
	c.Store.Token = envFallback(c.Store.Token, "GITHUB_TOKEN", "GIT_TOKEN")
	c.Store.CommitMessage = strings.TrimSpace(c.Store.CommitMessage)
	if c.Store.CommitMessage == "" {
		c.Store.CommitMessage = defaultCommitMessage
	}
	c.Store.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Store.APIBaseURL), "/")
	if c.Store.APIBaseURL == "" {
		c.Store.APIBaseURL = defaultStoreAPIBaseURL
	}
	c.Store.RawBaseURL = strings.TrimRight(strings.TrimSpace(c.Store.RawBaseURL), "/")
	if c.Store.RawBaseURL == "" {
		c.Store.RawBaseURL = defaultStoreRawBaseURL
	}
	if c.Store.RequestTimeout <= 0 {
		c.Store.RequestTimeout = defaultStoreRequestTimeout
	}
}

func (c *Config) normalizeLookup() {
	c.Lookup.BaseURL = strings.TrimRight(strings.TrimSpace(c.Lookup.BaseURL), "/")
	if c.Lookup.BaseURL == "" {
		c.Lookup.BaseURL = defaultLookupBaseURL
	}
}

func (c *Config) normalizeFetch() {
	if c.Fetch.RequestTimeout <= 0 {
		c.Fetch.RequestTimeout = defaultFetchRequestTimeout
	}
	if c.Fetch.RateLimitDelayMS <= 0 {
		c.Fetch.RateLimitDelayMS = c.Fetch.BaseDelayMS
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = defaultPipelineConcurrency
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = envFallback(c.Notifications.NtfyTopic, "NTFY_TOPIC")
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// envFallback returns the trimmed value, or the first non-empty environment
// variable among keys when value is empty.
func envFallback(value string, keys ...string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	for _, key := range keys {
		if env, ok := os.LookupEnv(key); ok && strings.TrimSpace(env) != "" {
			return strings.TrimSpace(env)
		}
	}
	return ""
}
