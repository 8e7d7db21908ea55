package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Providers holds one listing endpoint per hosting provider. Each URL embeds the
// provider access key as its `key` query parameter.
type Providers struct {
	MixDropURL    string `toml:"mixdrop_url"`
	FilemoonURL   string `toml:"filemoon_url"`
	VidHideURL    string `toml:"vidhide_url"`
	StreamWishURL string `toml:"streamwish_url"`
	DoodStreamURL string `toml:"doodstream_url"`
}

// Store describes the GitHub repository file that receives the catalog document.
type Store struct {
	Owner          string `toml:"owner"`
	Repo           string `toml:"repo"`
	Path           string `toml:"path"`
	Branch         string `toml:"branch"`
	Token          string `toml:"token"`
	CommitMessage  string `toml:"commit_message"`
	APIBaseURL     string `toml:"api_base_url"`
	RawBaseURL     string `toml:"raw_base_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Lookup configures the anime metadata search service.
type Lookup struct {
	BaseURL string `toml:"base_url"`
}

// Fetch tunes the resilient HTTP fetcher shared by provider and lookup calls.
type Fetch struct {
	MaxRetries        int `toml:"max_retries"`
	MaxRateLimitWaits int `toml:"max_rate_limit_waits"`
	BaseDelayMS       int `toml:"base_delay_ms"`
	RateLimitDelayMS  int `toml:"rate_limit_delay_ms"`
	RequestTimeout    int `toml:"request_timeout"`
}

// Pipeline controls aggregation behaviour.
type Pipeline struct {
	// Concurrency bounds how many providers are processed at once. 1 keeps the
	// run strictly sequential.
	Concurrency int `toml:"concurrency"`
	// KeepUnmatched persists folders the lookup service has no match for, with
	// empty metadata.
	KeepUnmatched bool `toml:"keep_unmatched"`
}

// Notifications contains configuration for ntfy progress notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Progress       bool   `toml:"progress"`
}

// Display configures how stored documents are rendered back to the terminal.
type Display struct {
	ChunkSize int `toml:"chunk_size"`
}

// Paths contains local directories used by the CLI.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for animesync.
//
// Configuration sections by subsystem:
//   - Providers: hosting provider listing endpoints (access key embedded)
//   - Store: GitHub repository, file path and credential for the document
//   - Lookup: anime metadata search service
//   - Fetch: retry and rate-limit budgets for upstream calls
//   - Pipeline: aggregation fan-out and unmatched-folder policy
//   - Notifications: ntfy progress notifications
//   - Display: chunking of rendered documents
//   - Paths: state (history database, run lock) and log directories
//   - Logging: log format and level
type Config struct {
	Providers     Providers     `toml:"providers"`
	Store         Store         `toml:"store"`
	Lookup        Lookup        `toml:"lookup"`
	Fetch         Fetch         `toml:"fetch"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Notifications Notifications `toml:"notifications"`
	Display       Display       `toml:"display"`
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Missing credentials and endpoints are not an
// error here; callers that talk to upstreams check them with CheckRequired.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("animesync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the location of the run history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the location of the host-local run lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "run.lock")
}

// FetchSettings converts the [fetch] section into durations.
type FetchSettings struct {
	MaxRetries        int
	MaxRateLimitWaits int
	BaseDelay         time.Duration
	RateLimitDelay    time.Duration
	RequestTimeout    time.Duration
}

// FetchSettings returns the fetcher tuning with millisecond and second fields
// converted to durations.
func (c *Config) FetchSettings() FetchSettings {
	return FetchSettings{
		MaxRetries:        c.Fetch.MaxRetries,
		MaxRateLimitWaits: c.Fetch.MaxRateLimitWaits,
		BaseDelay:         time.Duration(c.Fetch.BaseDelayMS) * time.Millisecond,
		RateLimitDelay:    time.Duration(c.Fetch.RateLimitDelayMS) * time.Millisecond,
		RequestTimeout:    time.Duration(c.Fetch.RequestTimeout) * time.Second,
	}
}

// StoreTimeout returns the document store request timeout.
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.Store.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
