package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"animesync/internal/testsupport"
)

func fakeUpstreams(t *testing.T) (provider, lookup *httptest.Server) {
	t.Helper()
	provider = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"result":{"folders":[{"id":"1","title":"Demo"}]}}`))
	}))
	t.Cleanup(provider.Close)
	lookup = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"type":"TV","episodes":12,"score":7.9,"status":"Finished Airing","rating":"PG-13","genres":[{"name":"Action"}]}]}`))
	}))
	t.Cleanup(lookup.Close)
	return provider, lookup
}

func TestRunDryRunPrintsDocumentAndRecordsHistory(t *testing.T) {
	provider, lookup := fakeUpstreams(t)
	env := setupCLITestEnv(t, testsupport.WithLookupBaseURL(lookup.URL))
	env.cfg.Providers.MixDropURL = provider.URL + "/folderlist?key=mix-key"
	env.cfg.Fetch.MaxRetries = 0
	env.write(t)

	out, _, err := runCLI(t, []string{"run", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("run --dry-run returned error: %v", err)
	}
	requireContains(t, out, "Successfully updated Demo from MixDrop")
	requireContains(t, out, "dry_run")
	requireContains(t, out, `"name": "Demo"`)
	requireContains(t, out, `"cloud": "MixDrop"`)
	requireContains(t, out, "Failed to update Filemoon")
	requireNotContains(t, out, "moon-key")

	out, _, err = runCLI(t, []string{"history", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history returned error: %v", err)
	}
	var runs []runJSON
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != "dry_run" || runs[0].Entries != 1 || runs[0].ProviderFailures != 4 {
		t.Fatalf("unexpected history %#v", runs)
	}

	out, _, err = runCLI(t, []string{"history", "show", runs[0].ID}, env.configPath)
	if err != nil {
		t.Fatalf("history show returned error: %v", err)
	}
	requireContains(t, out, "Run "+runs[0].ID)
	requireContains(t, out, "DoodStream")
	requireNotContains(t, out, "dood-key")

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history table returned error: %v", err)
	}
	requireContains(t, out, runs[0].ID)
	requireContains(t, out, "4/0")
}

func TestRunReportsMissingConfiguration(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Store.Token = ""
	env.cfg.Providers.MixDropURL = ""
	env.write(t)

	out, _, err := runCLI(t, []string{"run"}, env.configPath)
	if err == nil {
		t.Fatal("expected run to fail with missing configuration")
	}
	requireContains(t, out, "The following errors were detected:")
	requireContains(t, out, "- providers.mixdrop_url is not set")
	requireContains(t, out, "config_error")

	out, _, err = runCLI(t, []string{"history", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history returned error: %v", err)
	}
	if !strings.Contains(out, `"status": "config_error"`) {
		t.Fatalf("expected config_error run in history, got %s", out)
	}
}

func TestHistoryEmptyAndUnknownRun(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history returned error: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	if _, _, err := runCLI(t, []string{"history", "show", "missing"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestLogsReplaysRun(t *testing.T) {
	provider, lookup := fakeUpstreams(t)
	env := setupCLITestEnv(t, testsupport.WithLookupBaseURL(lookup.URL))
	env.cfg.Providers.MixDropURL = provider.URL + "/folderlist?key=mix-key"
	env.cfg.Fetch.MaxRetries = 0
	env.write(t)

	if _, _, err := runCLI(t, []string{"run", "--dry-run"}, env.configPath); err != nil {
		t.Fatalf("run --dry-run returned error: %v", err)
	}
	out, _, err := runCLI(t, []string{"history", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history returned error: %v", err)
	}
	var runs []runJSON
	if err := json.Unmarshal([]byte(out), &runs); err != nil || len(runs) != 1 {
		t.Fatalf("decode history: %v %s", err, out)
	}

	out, _, err = runCLI(t, []string{"logs", "--run", runs[0].ID}, env.configPath)
	if err != nil {
		t.Fatalf("logs returned error: %v", err)
	}
	requireContains(t, out, "run started")
	requireContains(t, out, "run finished")
	requireNotContains(t, out, "mix-key")

	out, _, err = runCLI(t, []string{"logs", "--run", "unknown"}, env.configPath)
	if err != nil {
		t.Fatalf("logs returned error: %v", err)
	}
	if out != "" {
		t.Fatalf("expected no records for unknown run, got %q", out)
	}
}
