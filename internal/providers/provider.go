package providers

import (
	"errors"
	"fmt"
	"strings"
)

// Provider identifies an upstream hosting service exposing a folder listing API.
type Provider string

// Supported providers, in configuration order.
const (
	MixDrop    Provider = "MixDrop"
	Filemoon   Provider = "Filemoon"
	VidHide    Provider = "VidHide"
	StreamWish Provider = "StreamWish"
	DoodStream Provider = "DoodStream"
)

// layout selects how a provider nests its folder listing.
type layout int

const (
	layoutUnknown layout = iota
	// layoutMixDrop: {"success":true,"result":{"folders":[{"id","title"}], ...}} only.
	layoutMixDrop
	// layoutFileServer covers the XFS family: {"result":{"folders":[{"fld_id","name"}]}}
	// or {"result":[...]}.
	layoutFileServer
)

// registry is the closed set of supported providers. Adding a provider means
// adding a row here and, if its payload is shaped differently, a layout.
var registry = []struct {
	provider Provider
	layout   layout
}{
	{MixDrop, layoutMixDrop},
	{Filemoon, layoutFileServer},
	{VidHide, layoutFileServer},
	{StreamWish, layoutFileServer},
	{DoodStream, layoutFileServer},
}

// ErrUnsupportedProvider reports a provider identifier outside the configured set.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// NormalizeError wraps normalization failures with the offending provider.
type NormalizeError struct {
	Provider Provider
	Err      error
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("normalize %s: %v", e.Provider, e.Err)
}

func (e *NormalizeError) Unwrap() error {
	return e.Err
}

// All returns every supported provider in configuration order.
func All() []Provider {
	out := make([]Provider, 0, len(registry))
	for _, entry := range registry {
		out = append(out, entry.provider)
	}
	return out
}

// Parse resolves a case-insensitive provider name.
func Parse(value string) (Provider, error) {
	value = strings.TrimSpace(value)
	for _, entry := range registry {
		if strings.EqualFold(string(entry.provider), value) {
			return entry.provider, nil
		}
	}
	return "", &NormalizeError{Provider: Provider(value), Err: ErrUnsupportedProvider}
}

func (p Provider) String() string {
	return string(p)
}

func layoutFor(p Provider) layout {
	for _, entry := range registry {
		if entry.provider == p {
			return entry.layout
		}
	}
	return layoutUnknown
}
