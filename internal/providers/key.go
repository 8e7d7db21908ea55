package providers

import (
	"errors"
	"net/url"
	"strings"
)

// ErrMissingAccessKey reports an endpoint URL without a `key` query parameter.
var ErrMissingAccessKey = errors.New("endpoint has no key parameter")

// AccessKey extracts the access key embedded in a provider endpoint URL as its
// `key` query parameter. It performs no network activity.
func AccessKey(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", ErrMissingAccessKey
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(parsed.Query().Get("key"))
	if key == "" {
		return "", ErrMissingAccessKey
	}
	return key, nil
}

// MaskKey shortens an access key for display, keeping only its last four characters.
func MaskKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

// Redact replaces every occurrence of key in text with a masked form, so error
// messages that echo endpoint URLs do not leak the credential.
func Redact(text, key string) string {
	key = strings.TrimSpace(key)
	if key == "" || text == "" {
		return text
	}
	return strings.ReplaceAll(text, key, MaskKey(key))
}
