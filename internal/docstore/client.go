package docstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"animesync/internal/config"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	apiVersion         = "2022-11-28"
	userAgent          = "animesync/1.0"
	maxErrorBody       = 4096
)

// Settings locate the document and carry the store credential.
type Settings struct {
	Owner      string
	Repo       string
	Path       string
	Branch     string
	Token      string
	APIBaseURL string
	RawBaseURL string
	Timeout    time.Duration
}

// SettingsFromConfig extracts the [store] section.
func SettingsFromConfig(cfg *config.Config) Settings {
	if cfg == nil {
		return Settings{}
	}
	return Settings{
		Owner:      cfg.Store.Owner,
		Repo:       cfg.Store.Repo,
		Path:       cfg.Store.Path,
		Branch:     cfg.Store.Branch,
		Token:      cfg.Store.Token,
		APIBaseURL: cfg.Store.APIBaseURL,
		RawBaseURL: cfg.Store.RawBaseURL,
		Timeout:    cfg.StoreTimeout(),
	}
}

// Document is the stored file and its version token. Content is nil when the
// store omits the body of a large file.
type Document struct {
	SHA     string
	Content []byte
}

// WriteResult reports the new version token and the commit that carries it.
type WriteResult struct {
	ContentSHA string
	CommitSHA  string
}

// Client talks to one repository file.
type Client struct {
	settings   Settings
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a store client.
func NewClient(settings Settings, opts ...Option) *Client {
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	settings.APIBaseURL = strings.TrimRight(strings.TrimSpace(settings.APIBaseURL), "/")
	settings.RawBaseURL = strings.TrimRight(strings.TrimSpace(settings.RawBaseURL), "/")
	settings.Path = strings.Trim(strings.TrimSpace(settings.Path), "/")
	settings.Token = strings.TrimSpace(settings.Token)
	client := &Client{
		settings:   settings,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Path returns the repository-relative document path.
func (c *Client) Path() string {
	return c.settings.Path
}

type contentsResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Read fetches the current document and its version token.
func (c *Client) Read(ctx context.Context) (Document, error) {
	const op = "read"
	endpoint := c.contentsURL() + "?ref=" + url.QueryEscape(c.settings.Branch)
	resp, err := c.do(ctx, op, http.MethodGet, endpoint, nil, true)
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()

	var payload contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Document{}, &Error{Kind: KindNetwork, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	switch payload.Encoding {
	case "", "base64":
	case "none":
		// Files over 1 MB come back without a body; the sha is all a write needs.
		return Document{SHA: payload.SHA}, nil
	default:
		return Document{}, &Error{Kind: KindNetwork, Op: op, StatusCode: resp.StatusCode, Message: fmt.Sprintf("unsupported content encoding %q", payload.Encoding)}
	}
	content, err := base64.StdEncoding.DecodeString(strings.NewReplacer("\n", "", "\r", "").Replace(payload.Content))
	if err != nil {
		return Document{}, &Error{Kind: KindNetwork, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode content: %w", err)}
	}
	return Document{SHA: payload.SHA, Content: content}, nil
}

type writeRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

type writeResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// Write replaces the document only if its current version token equals sha.
// An empty sha creates the file.
func (c *Client) Write(ctx context.Context, content []byte, sha, message string) (WriteResult, error) {
	const op = "write"
	body, err := json.Marshal(writeRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     strings.TrimSpace(sha),
		Branch:  c.settings.Branch,
	})
	if err != nil {
		return WriteResult{}, &Error{Kind: KindNetwork, Op: op, Err: fmt.Errorf("encode request: %w", err)}
	}
	resp, err := c.do(ctx, op, http.MethodPut, c.contentsURL(), body, true)
	if err != nil {
		return WriteResult{}, err
	}
	defer resp.Body.Close()

	var payload writeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return WriteResult{}, &Error{Kind: KindNetwork, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return WriteResult{ContentSHA: payload.Content.SHA, CommitSHA: payload.Commit.SHA}, nil
}

// ReadRaw fetches the document from the unauthenticated raw mirror. The mirror
// may lag behind the contents API by a few minutes.
func (c *Client) ReadRaw(ctx context.Context) ([]byte, error) {
	const op = "read raw"
	endpoint := strings.Join([]string{
		c.settings.RawBaseURL,
		url.PathEscape(c.settings.Owner),
		url.PathEscape(c.settings.Repo),
		url.PathEscape(c.settings.Branch),
		escapePath(c.settings.Path),
	}, "/")
	resp, err := c.do(ctx, op, http.MethodGet, endpoint, nil, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}

// CheckToken verifies the credential and returns the account login it
// belongs to.
func (c *Client) CheckToken(ctx context.Context) (string, error) {
	const op = "check token"
	resp, err := c.do(ctx, op, http.MethodGet, c.settings.APIBaseURL+"/user", nil, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var payload struct {
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &Error{Kind: KindNetwork, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return payload.Login, nil
}

func (c *Client) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.settings.APIBaseURL,
		url.PathEscape(c.settings.Owner),
		url.PathEscape(c.settings.Repo),
		escapePath(c.settings.Path),
	)
}

func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

// do issues one request and maps non-2xx statuses to *Error. The caller
// closes the body of a successful response.
func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte, auth bool) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("User-Agent", userAgent)
	if auth {
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", apiVersion)
		if c.settings.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.settings.Token)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	message := errorMessage(raw)
	return nil, &Error{Kind: classify(resp.StatusCode, message), Op: op, StatusCode: resp.StatusCode, Message: message}
}

func classify(status int, message string) Kind {
	switch status {
	case http.StatusConflict, http.StatusPreconditionFailed:
		return KindConflict
	case http.StatusUnprocessableEntity:
		// GitHub answers a stale or missing sha with 422 "... does not match".
		if strings.Contains(strings.ToLower(message), "sha") {
			return KindConflict
		}
		return KindNetwork
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	default:
		return KindNetwork
	}
}

func errorMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && strings.TrimSpace(payload.Message) != "" {
		return strings.TrimSpace(payload.Message)
	}
	text := strings.TrimSpace(string(raw))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}
