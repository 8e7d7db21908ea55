package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"animesync/internal/catalog"
	"animesync/internal/testsupport"
)

const publishedFixture = `[
    {"id": "a1", "name": "Naruto", "genres": "Action", "type": "TV", "starting_letter": "N", "cloud": "MixDrop", "pg_rating": "PG-13", "score": 8.0, "status": "Finished Airing", "total_episodes": 220},
    {"id": "b2", "name": "Bleach", "genres": "", "type": "", "starting_letter": "B", "cloud": "Filemoon", "pg_rating": "", "score": null, "status": "", "total_episodes": 0}
]
`

func rawServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/owner/repo/main/anime_data.json" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("raw read must not send credentials")
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestShowListsEntries(t *testing.T) {
	raw := rawServer(t, http.StatusOK, publishedFixture)
	env := setupCLITestEnv(t, testsupport.WithStoreBaseURLs(raw.URL, raw.URL))

	out, _, err := runCLI(t, []string{"show"}, env.configPath)
	if err != nil {
		t.Fatalf("show returned error: %v", err)
	}
	want := "Current Anime Data:\n1. Naruto (ID: a1)\n2. Bleach (ID: b2)\n"
	if out != want {
		t.Fatalf("unexpected listing:\n%q\nwant\n%q", out, want)
	}
}

func TestShowEmptyDocument(t *testing.T) {
	for name, srv := range map[string]*httptest.Server{
		"empty array": rawServer(t, http.StatusOK, "[]\n"),
		"missing":     rawServer(t, http.StatusNotFound, "404: Not Found"),
	} {
		t.Run(name, func(t *testing.T) {
			env := setupCLITestEnv(t, testsupport.WithStoreBaseURLs(srv.URL, srv.URL))
			out, _, err := runCLI(t, []string{"show"}, env.configPath)
			if err != nil {
				t.Fatalf("show returned error: %v", err)
			}
			if out != "No data found.\n" {
				t.Fatalf("unexpected output %q", out)
			}
		})
	}
}

func TestShowJSONAndTable(t *testing.T) {
	raw := rawServer(t, http.StatusOK, publishedFixture)
	env := setupCLITestEnv(t, testsupport.WithStoreBaseURLs(raw.URL, raw.URL))

	out, _, err := runCLI(t, []string{"show", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("show --json returned error: %v", err)
	}
	var entries []catalog.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode json output: %v", err)
	}
	if len(entries) != 2 || entries[1].Score != nil || *entries[0].Score != 8.0 {
		t.Fatalf("unexpected entries %#v", entries)
	}

	out, _, err = runCLI(t, []string{"show", "--table"}, env.configPath)
	if err != nil {
		t.Fatalf("show --table returned error: %v", err)
	}
	requireContains(t, out, "Naruto")
	requireContains(t, out, "Filemoon")
	requireNotContains(t, out, "Current Anime Data:")
}

func TestShowSendDeliversChunks(t *testing.T) {
	raw := rawServer(t, http.StatusOK, publishedFixture)

	var (
		mu     sync.Mutex
		bodies []string
		titles []string
	)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		titles = append(titles, r.Header.Get("Title"))
		mu.Unlock()
	}))
	defer ntfy.Close()

	env := setupCLITestEnv(t, testsupport.WithStoreBaseURLs(raw.URL, raw.URL))
	env.cfg.Notifications.NtfyTopic = ntfy.URL
	env.cfg.Display.ChunkSize = 20
	env.write(t)

	out, stderr, err := runCLI(t, []string{"show", "--send"}, env.configPath)
	if err != nil {
		t.Fatalf("show --send returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	listing := strings.TrimSuffix(out, "\n")
	wantParts := (len(listing) + 19) / 20
	if len(bodies) != wantParts {
		t.Fatalf("expected %d parts, got %d", wantParts, len(bodies))
	}
	if strings.Join(bodies, "") != listing {
		t.Fatalf("chunks do not reassemble the listing: %q", bodies)
	}
	for _, body := range bodies {
		if len(body) > 20 {
			t.Fatalf("chunk exceeds size: %q", body)
		}
	}
	requireContains(t, titles[0], "(1/")
	requireContains(t, stderr, "Sent listing in")
}

func TestShowSendRequiresTopic(t *testing.T) {
	raw := rawServer(t, http.StatusOK, publishedFixture)
	env := setupCLITestEnv(t, testsupport.WithStoreBaseURLs(raw.URL, raw.URL))

	_, _, err := runCLI(t, []string{"show", "--send"}, env.configPath)
	if err == nil {
		t.Fatal("expected error without an ntfy topic")
	}
	requireContains(t, err.Error(), "ntfy_topic")
}

func TestFormatListing(t *testing.T) {
	if got := formatListing(nil); got != "No data found." {
		t.Fatalf("unexpected empty listing %q", got)
	}
	got := formatListing([]catalog.Entry{{ID: "7", Name: "Mushishi"}})
	if got != "Current Anime Data:\n1. Mushishi (ID: 7)" {
		t.Fatalf("unexpected listing %q", got)
	}
}
