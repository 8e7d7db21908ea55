package config

const (
	defaultConfigPath           = "~/.config/animesync/config.toml"
	defaultStateDir             = "~/.local/share/animesync"
	defaultLogDir               = "~/.local/share/animesync/logs"
	defaultStoreBranch          = "main"
	defaultStorePath            = "anime_data.json"
	defaultCommitMessage        = "Update anime data ({{.Count}} entries)"
	defaultStoreAPIBaseURL      = "https://api.github.com"
	defaultStoreRawBaseURL      = "https://raw.githubusercontent.com"
	defaultStoreRequestTimeout  = 30
	defaultLookupBaseURL        = "https://api.jikan.moe/v4"
	defaultFetchMaxRetries      = 3
	defaultFetchRateLimitWaits  = 10
	defaultFetchBaseDelayMS     = 1000
	defaultFetchRequestTimeout  = 30
	defaultPipelineConcurrency  = 1
	defaultNotifyRequestTimeout = 10
	defaultDisplayChunkSize     = 4096
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Store: Store{
			Path:           defaultStorePath,
			Branch:         defaultStoreBranch,
			CommitMessage:  defaultCommitMessage,
			APIBaseURL:     defaultStoreAPIBaseURL,
			RawBaseURL:     defaultStoreRawBaseURL,
			RequestTimeout: defaultStoreRequestTimeout,
		},
		Lookup: Lookup{
			BaseURL: defaultLookupBaseURL,
		},
		Fetch: Fetch{
			MaxRetries:        defaultFetchMaxRetries,
			MaxRateLimitWaits: defaultFetchRateLimitWaits,
			BaseDelayMS:       defaultFetchBaseDelayMS,
			RateLimitDelayMS:  defaultFetchBaseDelayMS,
			RequestTimeout:    defaultFetchRequestTimeout,
		},
		Pipeline: Pipeline{
			Concurrency:   defaultPipelineConcurrency,
			KeepUnmatched: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Progress:       true,
		},
		Display: Display{
			ChunkSize: defaultDisplayChunkSize,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
