package jikan

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"animesync/internal/fetch"
)

const defaultBaseURL = "https://api.jikan.moe/v4"

// Fetcher is the subset of fetch.Client used by the enricher.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, header http.Header) (fetch.Response, error)
}

// Metadata is the descriptive record attached to a folder.
type Metadata struct {
	Genres        []string
	Type          string
	TotalEpisodes int
	// Score is nil when the service reports no score.
	Score  *float64
	Status string
	Rating string
}

// GenreList joins the genre names the way the published document stores them.
func (m *Metadata) GenreList() string {
	if m == nil {
		return ""
	}
	return strings.Join(m.Genres, ", ")
}

// Client looks up anime metadata by title.
type Client struct {
	baseURL string
	fetcher Fetcher
}

// NewClient constructs a lookup client. An empty baseURL selects the public API.
func NewClient(baseURL string, fetcher Fetcher) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{baseURL: baseURL, fetcher: fetcher}
}

type searchResponse struct {
	Data []animeRecord `json:"data"`
}

type animeRecord struct {
	Type     *string  `json:"type"`
	Episodes *int     `json:"episodes"`
	Score    *float64 `json:"score"`
	Status   *string  `json:"status"`
	Rating   *string  `json:"rating"`
	Genres   []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

// SearchURL returns the lookup URL for name.
func (c *Client) SearchURL(name string) string {
	query := url.Values{}
	query.Set("q", name)
	query.Set("limit", "1")
	return c.baseURL + "/anime?" + query.Encode()
}

// Enrich returns metadata for the top match of name, or nil when the service
// has no match. The top match is accepted without any similarity check.
func (c *Client) Enrich(ctx context.Context, name string) (*Metadata, error) {
	resp, err := c.fetcher.Fetch(ctx, c.SearchURL(name), nil)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", name, err)
	}
	var payload searchResponse
	if err := resp.Decode(&payload); err != nil {
		return nil, fmt.Errorf("lookup %q: %w", name, err)
	}
	if len(payload.Data) == 0 {
		return nil, nil
	}
	record := payload.Data[0]
	meta := &Metadata{
		Type:   deref(record.Type),
		Status: deref(record.Status),
		Rating: deref(record.Rating),
		Score:  record.Score,
	}
	if record.Episodes != nil {
		meta.TotalEpisodes = *record.Episodes
	}
	for _, genre := range record.Genres {
		if name := strings.TrimSpace(genre.Name); name != "" {
			meta.Genres = append(meta.Genres, name)
		}
	}
	return meta, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
