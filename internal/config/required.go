package config

import (
	"fmt"
	"strings"

	"animesync/internal/providers"
)

// ProblemKind classifies a configuration item that blocks a run.
type ProblemKind string

const (
	ProblemMissingCredential ProblemKind = "missing_credential"
	ProblemMissingEndpoint   ProblemKind = "missing_endpoint"
)

// Problem names one missing configuration item.
type Problem struct {
	Kind ProblemKind
	// Field is the TOML key, for example "providers.mixdrop_url".
	Field string
	// Env is the environment variable that can supply the value instead.
	Env string
}

func (p Problem) String() string {
	switch p.Kind {
	case ProblemMissingCredential:
		if p.Env != "" {
			return fmt.Sprintf("%s is missing a credential (set %s or edit the config file)", p.Field, p.Env)
		}
		return fmt.Sprintf("%s is missing a credential", p.Field)
	default:
		if p.Env != "" {
			return fmt.Sprintf("%s is not set (set %s or edit the config file)", p.Field, p.Env)
		}
		return fmt.Sprintf("%s is not set", p.Field)
	}
}

// Error lists every missing configuration item found by CheckRequired.
type Error struct {
	Problems []Problem
}

// Messages returns one human-readable line per problem.
func (e *Error) Messages() []string {
	out := make([]string, 0, len(e.Problems))
	for _, problem := range e.Problems {
		out = append(out, problem.String())
	}
	return out
}

func (e *Error) Error() string {
	lines := make([]string, 0, len(e.Problems)+1)
	lines = append(lines, "The following errors were detected:")
	for _, problem := range e.Problems {
		lines = append(lines, "- "+problem.String())
	}
	return strings.Join(lines, "\n")
}

// ProviderEndpoint pairs a provider with its configured listing URL.
type ProviderEndpoint struct {
	Provider providers.Provider
	Field    string
	Env      string
	URL      string
}

// ProviderEndpoints returns one endpoint per supported provider, in
// configuration order. Unset URLs are returned empty.
func (c *Config) ProviderEndpoints() []ProviderEndpoint {
	byProvider := map[providers.Provider]ProviderEndpoint{
		providers.MixDrop:    {Field: "providers.mixdrop_url", Env: "MIXDROP_URL", URL: c.Providers.MixDropURL},
		providers.Filemoon:   {Field: "providers.filemoon_url", Env: "FILEMOON_URL", URL: c.Providers.FilemoonURL},
		providers.VidHide:    {Field: "providers.vidhide_url", Env: "VIDHIDE_URL", URL: c.Providers.VidHideURL},
		providers.StreamWish: {Field: "providers.streamwish_url", Env: "STREAMWISH_URL", URL: c.Providers.StreamWishURL},
		providers.DoodStream: {Field: "providers.doodstream_url", Env: "DOODSTREAM_URL", URL: c.Providers.DoodStreamURL},
	}
	all := providers.All()
	out := make([]ProviderEndpoint, 0, len(all))
	for _, p := range all {
		endpoint := byProvider[p]
		endpoint.Provider = p
		out = append(out, endpoint)
	}
	return out
}

// CheckRequired reports every credential and endpoint a run needs but the
// configuration lacks. It performs no network activity and returns nil when the
// configuration is complete.
func (c *Config) CheckRequired() error {
	var problems []Problem

	if strings.TrimSpace(c.Store.Token) == "" {
		problems = append(problems, Problem{Kind: ProblemMissingCredential, Field: "store.token", Env: "GITHUB_TOKEN"})
	}
	for _, item := range []struct {
		field string
		value string
	}{
		{"store.owner", c.Store.Owner},
		{"store.repo", c.Store.Repo},
		{"store.path", c.Store.Path},
	} {
		if strings.TrimSpace(item.value) == "" {
			problems = append(problems, Problem{Kind: ProblemMissingEndpoint, Field: item.field})
		}
	}

	for _, endpoint := range c.ProviderEndpoints() {
		if strings.TrimSpace(endpoint.URL) == "" {
			problems = append(problems, Problem{Kind: ProblemMissingEndpoint, Field: endpoint.Field, Env: endpoint.Env})
			continue
		}
		if _, err := providers.AccessKey(endpoint.URL); err != nil {
			problems = append(problems, Problem{Kind: ProblemMissingCredential, Field: endpoint.Field, Env: endpoint.Env})
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &Error{Problems: problems}
}
