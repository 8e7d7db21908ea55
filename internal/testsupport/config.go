package testsupport

import (
	"path/filepath"
	"testing"

	"animesync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a complete config seeded with unique temp directories per
// test. Provider endpoints point at unroutable placeholders until overridden.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Store.Owner = "owner"
	cfgVal.Store.Repo = "repo"
	cfgVal.Store.Token = "test-token"
	cfgVal.Providers = config.Providers{
		MixDropURL:    "http://127.0.0.1:1/mixdrop?key=mix-key",
		FilemoonURL:   "http://127.0.0.1:1/filemoon?key=moon-key",
		VidHideURL:    "http://127.0.0.1:1/vidhide?key=hide-key",
		StreamWishURL: "http://127.0.0.1:1/streamwish?key=wish-key",
		DoodStreamURL: "http://127.0.0.1:1/doodstream?key=dood-key",
	}
	cfgVal.Fetch.BaseDelayMS = 0
	cfgVal.Fetch.RateLimitDelayMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithStoreBaseURLs points the document store at a test server.
func WithStoreBaseURLs(apiBase, rawBase string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.APIBaseURL = apiBase
		b.cfg.Store.RawBaseURL = rawBase
	}
}

// WithLookupBaseURL points the metadata lookup at a test server.
func WithLookupBaseURL(base string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Lookup.BaseURL = base
	}
}

// WithProviders replaces every provider endpoint.
func WithProviders(providers config.Providers) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Providers = providers
	}
}

// WithToken sets the store credential.
func WithToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Token = token
	}
}
