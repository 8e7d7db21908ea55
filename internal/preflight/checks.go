package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"animesync/internal/config"
	"animesync/internal/docstore"
	"animesync/internal/fetch"
	"animesync/internal/jikan"
	"animesync/internal/providers"
)

const (
	networkCheckTimeout = 10 * time.Second
	lookupCheckTitle    = "Cowboy Bebop"
)

// CheckConfiguration reports every missing credential and endpoint.
func CheckConfiguration(cfg *config.Config) Result {
	const name = "Configuration"
	err := cfg.CheckRequired()
	if err == nil {
		return Result{Name: name, Passed: true, Detail: "complete"}
	}
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return Result{Name: name, Detail: fmt.Sprintf("%d problem(s): %s", len(cfgErr.Problems), strings.Join(cfgErr.Messages(), "; "))}
	}
	return Result{Name: name, Detail: err.Error()}
}

// CheckProviders reports, per provider, whether an endpoint with an access key
// is configured. It performs no network activity.
func CheckProviders(cfg *config.Config) []Result {
	endpoints := cfg.ProviderEndpoints()
	results := make([]Result, 0, len(endpoints))
	for _, endpoint := range endpoints {
		name := endpoint.Provider.String()
		if strings.TrimSpace(endpoint.URL) == "" {
			results = append(results, Result{Name: name, Detail: fmt.Sprintf("missing %s (or %s)", endpoint.Field, endpoint.Env)})
			continue
		}
		key, err := providers.AccessKey(endpoint.URL)
		if err != nil {
			results = append(results, Result{Name: name, Detail: "endpoint has no key parameter"})
			continue
		}
		results = append(results, Result{Name: name, Passed: true, Detail: "key " + providers.MaskKey(key)})
	}
	return results
}

// CheckStoreToken verifies the document store credential and reports the
// account it belongs to.
func CheckStoreToken(ctx context.Context, cfg *config.Config) Result {
	const name = "GitHub token"
	if strings.TrimSpace(cfg.Store.Token) == "" {
		return Result{Name: name, Detail: "token missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, networkCheckTimeout)
	defer cancel()

	settings := docstore.SettingsFromConfig(cfg)
	settings.Timeout = networkCheckTimeout
	login, err := docstore.NewClient(settings).CheckToken(checkCtx)
	if err != nil {
		if errors.Is(err, docstore.ErrUnauthorized) {
			return Result{Name: name, Detail: "token rejected"}
		}
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("authenticated as %s", login)}
}

// CheckLookup verifies that the metadata lookup service answers a search.
func CheckLookup(ctx context.Context, baseURL string) Result {
	const name = "Metadata lookup"

	checkCtx, cancel := context.WithTimeout(ctx, networkCheckTimeout)
	defer cancel()

	client := fetch.NewClient(
		fetch.WithTimeout(networkCheckTimeout),
		fetch.WithMaxRetries(0),
		fetch.WithMaxRateLimitWaits(0),
	)
	if _, err := jikan.NewClient(baseURL, client).Enrich(checkCtx, lookupCheckTitle); err != nil {
		if errors.Is(err, fetch.ErrRateLimitExhausted) {
			return Result{Name: name, Passed: true, Detail: "reachable (rate limited)"}
		}
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (service unreachable)"
	}
	return err.Error()
}
