package aggregate_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"animesync/internal/aggregate"
	"animesync/internal/fetch"
	"animesync/internal/jikan"
	"animesync/internal/notifications"
	"animesync/internal/providers"
)

type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]any
	errs      map[string]error
	delays    map[string]time.Duration
	calls     []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string, _ http.Header) (fetch.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	delay := f.delays[rawURL]
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fetch.Response{}, ctx.Err()
		}
	}
	if err := f.errs[rawURL]; err != nil {
		return fetch.Response{}, err
	}
	return fetch.Response{StatusCode: http.StatusOK, Value: f.responses[rawURL]}, nil
}

type fakeEnricher struct {
	mu      sync.Mutex
	results map[string]*jikan.Metadata
	errs    map[string]error
	names   []string
	hook    func(name string)
}

func (f *fakeEnricher) Enrich(_ context.Context, name string) (*jikan.Metadata, error) {
	f.mu.Lock()
	f.names = append(f.names, name)
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(name)
	}
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	return f.results[name], nil
}

func folders(items ...map[string]any) map[string]any {
	list := make([]any, 0, len(items))
	for _, item := range items {
		list = append(list, item)
	}
	return map[string]any{"result": map[string]any{"folders": list}}
}

func lines(buf *bytes.Buffer) []string {
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestRunEndToEndContainsProviderFailure(t *testing.T) {
	mixdrop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"result":{"folders":[{"id":"1","title":"Demo"}]}}`))
	}))
	defer mixdrop.Close()

	var filemoonHits atomic.Int32
	filemoon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filemoonHits.Add(1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer filemoon.Close()

	lookup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "Demo" {
			t.Errorf("unexpected lookup query %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"data":[{"type":"TV","episodes":12,"score":8.1,"status":"Finished Airing","rating":"PG-13","genres":[{"name":"Action"},{"name":"Drama"}]}]}`))
	}))
	defer lookup.Close()

	client := fetch.NewClient(fetch.WithMaxRetries(3), fetch.WithSleeper(func(time.Duration) {}))
	var out bytes.Buffer
	assembler := aggregate.NewAssembler(client, jikan.NewClient(lookup.URL, client), notifications.NewService(nil, &out))

	run, err := assembler.Run(context.Background(), []aggregate.Source{
		{Provider: providers.MixDrop, Endpoint: mixdrop.URL + "/folderlist?key=mix-secret"},
		{Provider: providers.Filemoon, Endpoint: filemoon.URL + "/api/folder/list?key=moon-secret"},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(run.Entries) != 1 {
		t.Fatalf("expected one entry, got %#v", run.Entries)
	}
	entry := run.Entries[0]
	if entry.ID != "1" || entry.Name != "Demo" || entry.Cloud != "MixDrop" || entry.StartingLetter != "D" {
		t.Fatalf("unexpected entry identity: %#v", entry)
	}
	if entry.Genres != "Action, Drama" || entry.Type != "TV" || entry.TotalEpisodes != 12 || entry.PGRating != "PG-13" {
		t.Fatalf("unexpected entry metadata: %#v", entry)
	}
	if entry.Score == nil || *entry.Score != 8.1 {
		t.Fatalf("unexpected score: %v", entry.Score)
	}

	if got := filemoonHits.Load(); got != 4 {
		t.Fatalf("expected 4 attempts against failing provider, got %d", got)
	}
	if len(run.ProviderFailures) != 1 || run.ProviderFailures[0].Provider != providers.Filemoon {
		t.Fatalf("unexpected provider failures: %#v", run.ProviderFailures)
	}

	messages := lines(&out)
	if len(messages) != 2 {
		t.Fatalf("expected two progress messages, got %q", messages)
	}
	if messages[0] != "Successfully updated Demo from MixDrop" {
		t.Fatalf("unexpected first message %q", messages[0])
	}
	if !strings.HasPrefix(messages[1], "Failed to update Filemoon: ") {
		t.Fatalf("unexpected second message %q", messages[1])
	}
	if strings.Contains(out.String(), "moon-secret") || strings.Contains(run.ProviderFailures[0].Reason, "moon-secret") {
		t.Fatalf("access key leaked: %q", out.String())
	}
}

func TestRunDropsIncompleteFoldersBeforeLookup(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]any{
		"https://p.test/list?key=k": folders(
			map[string]any{"fld_id": "1", "name": "  "},
			map[string]any{"fld_id": "", "name": "Orphan"},
			map[string]any{"fld_id": "3", "name": " Bleach "},
		),
	}}
	enricher := &fakeEnricher{}
	assembler := aggregate.NewAssembler(fetcher, enricher, nil)

	run, err := assembler.Run(context.Background(), []aggregate.Source{{Provider: providers.Filemoon, Endpoint: "https://p.test/list?key=k"}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(enricher.names) != 1 || enricher.names[0] != "Bleach" {
		t.Fatalf("expected only the complete folder looked up, got %q", enricher.names)
	}
	if len(run.Entries) != 1 || run.Entries[0].Name != "Bleach" || run.Entries[0].Genres != "" {
		t.Fatalf("unexpected entries: %#v", run.Entries)
	}
	if run.Unmatched != 1 {
		t.Fatalf("expected one unmatched folder, got %d", run.Unmatched)
	}
}

func TestRunContainsItemFailures(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]any{
		"https://p.test/list?key=k": folders(
			map[string]any{"fld_id": "1", "name": "Alpha"},
			map[string]any{"fld_id": "2", "name": "Beta"},
		),
	}}
	enricher := &fakeEnricher{
		errs:    map[string]error{"Alpha": errors.New("lookup \"Alpha\": fetch: upstream unreachable")},
		results: map[string]*jikan.Metadata{"Beta": {Type: "Movie"}},
	}
	var out bytes.Buffer
	assembler := aggregate.NewAssembler(fetcher, enricher, notifications.NewService(nil, &out))

	run, err := assembler.Run(context.Background(), []aggregate.Source{{Provider: providers.VidHide, Endpoint: "https://p.test/list?key=k"}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(run.Entries) != 1 || run.Entries[0].Name != "Beta" || run.Entries[0].Type != "Movie" {
		t.Fatalf("unexpected entries: %#v", run.Entries)
	}
	if len(run.ItemFailures) != 1 || run.ItemFailures[0].Item != "Alpha" {
		t.Fatalf("unexpected item failures: %#v", run.ItemFailures)
	}
	messages := lines(&out)
	if len(messages) != 2 || !strings.HasPrefix(messages[0], "Failed to update Alpha from VidHide: ") || messages[1] != "Successfully updated Beta from VidHide" {
		t.Fatalf("unexpected messages %q", messages)
	}
}

func TestRunSkipsUnmatchedWhenConfigured(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string]any{
		"https://p.test/list?key=k": folders(map[string]any{"fld_id": "1", "name": "Unknown Show"}),
	}}
	assembler := aggregate.NewAssembler(fetcher, &fakeEnricher{}, nil, aggregate.WithKeepUnmatched(false))

	run, err := assembler.Run(context.Background(), []aggregate.Source{{Provider: providers.StreamWish, Endpoint: "https://p.test/list?key=k"}})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !run.Empty() || run.Unmatched != 1 {
		t.Fatalf("expected unmatched folder skipped, got %#v", run)
	}
	if run.Entries == nil {
		t.Fatal("expected empty, non-nil entries")
	}
}

func TestRunMissingKeyIsProviderFailure(t *testing.T) {
	fetcher := &fakeFetcher{}
	var out bytes.Buffer
	assembler := aggregate.NewAssembler(fetcher, &fakeEnricher{}, notifications.NewService(nil, &out))

	run, err := assembler.Run(context.Background(), []aggregate.Source{
		{Provider: providers.MixDrop, Endpoint: "https://p.test/list?email=a@b.c"},
		{Provider: providers.DoodStream, Endpoint: ""},
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(fetcher.calls) != 0 {
		t.Fatalf("expected no fetches, got %q", fetcher.calls)
	}
	if len(run.ProviderFailures) != 2 {
		t.Fatalf("expected two provider failures, got %#v", run.ProviderFailures)
	}
	if len(lines(&out)) != 2 {
		t.Fatalf("expected one message per failed provider, got %q", out.String())
	}
}

func TestRunKeepsConfigurationOrderUnderConcurrency(t *testing.T) {
	sources := []aggregate.Source{
		{Provider: providers.MixDrop, Endpoint: "https://a.test/?key=a"},
		{Provider: providers.Filemoon, Endpoint: "https://b.test/?key=b"},
		{Provider: providers.VidHide, Endpoint: "https://c.test/?key=c"},
	}
	fetcher := &fakeFetcher{
		responses: map[string]any{
			sources[0].Endpoint: folders(map[string]any{"id": "a1", "title": "First"}),
			sources[1].Endpoint: folders(map[string]any{"fld_id": "b1", "name": "Second"}),
			sources[2].Endpoint: folders(map[string]any{"fld_id": "c1", "name": "Third"}),
		},
		delays: map[string]time.Duration{
			sources[0].Endpoint: 60 * time.Millisecond,
			sources[1].Endpoint: 30 * time.Millisecond,
		},
	}
	assembler := aggregate.NewAssembler(fetcher, &fakeEnricher{}, nil, aggregate.WithConcurrency(3))

	run, err := assembler.Run(context.Background(), sources)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	var names []string
	for _, entry := range run.Entries {
		names = append(names, entry.Name)
	}
	if strings.Join(names, ",") != "First,Second,Third" {
		t.Fatalf("expected configuration order, got %q", names)
	}
}

func TestRunCancellationDiscardsEntries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := &fakeFetcher{responses: map[string]any{
		"https://p.test/list?key=k": folders(
			map[string]any{"fld_id": "1", "name": "Alpha"},
			map[string]any{"fld_id": "2", "name": "Beta"},
		),
	}}
	enricher := &fakeEnricher{hook: func(name string) {
		if name == "Beta" {
			cancel()
		}
	}}
	assembler := aggregate.NewAssembler(fetcher, enricher, nil)

	run, err := assembler.Run(ctx, []aggregate.Source{{Provider: providers.Filemoon, Endpoint: "https://p.test/list?key=k"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if run != nil {
		t.Fatalf("expected no run on cancellation, got %#v", run)
	}
}
