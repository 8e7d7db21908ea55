package workflow_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"animesync/internal/aggregate"
	"animesync/internal/catalog"
	"animesync/internal/config"
	"animesync/internal/docstore"
	"animesync/internal/history"
	"animesync/internal/notifications"
	"animesync/internal/providers"
	"animesync/internal/publish"
	"animesync/internal/services"
	"animesync/internal/testsupport"
	"animesync/internal/workflow"
)

type stubAssembler struct {
	run     *aggregate.Run
	err     error
	calls   int
	sources []aggregate.Source
}

func (s *stubAssembler) Run(_ context.Context, sources []aggregate.Source) (*aggregate.Run, error) {
	s.calls++
	s.sources = sources
	return s.run, s.err
}

type stubPublisher struct {
	result publish.Result
	err    error
	calls  int
}

func (s *stubPublisher) Publish(_ context.Context, entries []catalog.Entry) (publish.Result, error) {
	s.calls++
	result := s.result
	result.Entries = len(entries)
	return result, s.err
}

type fixture struct {
	cfg       *config.Config
	store     *history.Store
	out       *bytes.Buffer
	assembler *stubAssembler
	publisher *stubPublisher
	runner    *workflow.Runner
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	if cfg == nil {
		cfg = testsupport.NewConfig(t)
	}
	f := &fixture{
		cfg:       cfg,
		store:     testsupport.MustOpenHistory(t, cfg),
		out:       &bytes.Buffer{},
		assembler: &stubAssembler{run: &aggregate.Run{Entries: []catalog.Entry{}}},
		publisher: &stubPublisher{result: publish.Result{Path: "anime_data.json", SHA: "new-sha", PreviousSHA: "old-sha"}},
	}
	runner, err := workflow.NewRunner(cfg, workflow.Dependencies{
		Assembler: f.assembler,
		Publisher: f.publisher,
		History:   f.store,
		Notifier:  notifications.NewService(nil, f.out),
	}, nil, workflow.WithIDGenerator(func() string { return "run-" + t.Name() }))
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	f.runner = runner
	return f
}

func (f *fixture) recorded(t *testing.T, id string) *history.Run {
	t.Helper()
	run, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("history Get: %v", err)
	}
	return run
}

func demoEntry() catalog.Entry {
	return catalog.Entry{ID: "1", Name: "Demo", StartingLetter: "D", Cloud: "MixDrop"}
}

func TestRunPublishesAndRecordsHistory(t *testing.T) {
	f := newFixture(t, nil)
	f.assembler.run = &aggregate.Run{
		Entries:          []catalog.Entry{demoEntry()},
		ProviderFailures: []aggregate.Failure{{Provider: providers.VidHide, Reason: "fetch: upstream unreachable"}},
	}

	outcome, err := f.runner.Run(context.Background(), workflow.Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.Status != history.StatusPublished || outcome.Publish == nil || outcome.Publish.SHA != "new-sha" {
		t.Fatalf("unexpected outcome %#v", outcome)
	}
	if len(f.assembler.sources) != 5 || f.assembler.sources[0].Provider != providers.MixDrop {
		t.Fatalf("expected every configured provider in order, got %#v", f.assembler.sources)
	}
	if !strings.HasSuffix(strings.TrimSpace(f.out.String()), "Successfully updated anime_data.json on GitHub.") {
		t.Fatalf("unexpected notifications %q", f.out.String())
	}

	run := f.recorded(t, outcome.RunID)
	if run.Status != history.StatusPublished || run.Entries != 1 || run.ProviderFailures != 1 || run.SHA != "new-sha" {
		t.Fatalf("unexpected history row %+v", run)
	}
	if len(run.Failures) != 1 || run.Failures[0].Scope != history.ScopeProvider || run.Failures[0].Provider != "VidHide" {
		t.Fatalf("unexpected failures %+v", run.Failures)
	}
}

func TestRunNothingToUpdate(t *testing.T) {
	f := newFixture(t, nil)

	outcome, err := f.runner.Run(context.Background(), workflow.Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.Status != history.StatusNothingToUpdate {
		t.Fatalf("unexpected status %q", outcome.Status)
	}
	if f.publisher.calls != 0 {
		t.Fatal("empty run must not publish")
	}
	if strings.TrimSpace(f.out.String()) != "No anime data to update." {
		t.Fatalf("unexpected notifications %q", f.out.String())
	}
}

func TestRunConfigProblemsAbortBeforeWork(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithToken(""))
	cfg.Providers.FilemoonURL = ""
	f := newFixture(t, cfg)

	outcome, err := f.runner.Run(context.Background(), workflow.Options{})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	var cfgErr *config.Error
	if !errors.As(err, &cfgErr) || len(cfgErr.Problems) != 2 {
		t.Fatalf("expected both problems reported, got %v", err)
	}
	if f.assembler.calls != 0 || f.publisher.calls != 0 {
		t.Fatal("no work may start with incomplete configuration")
	}
	if !strings.HasPrefix(f.out.String(), "The following errors were detected:\n- store.token") {
		t.Fatalf("unexpected notification %q", f.out.String())
	}
	if run := f.recorded(t, outcome.RunID); run.Status != history.StatusConfigError {
		t.Fatalf("unexpected history status %q", run.Status)
	}
}

func TestRunDryRunSkipsStore(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithToken(""))
	f := newFixture(t, cfg)
	f.assembler.run = &aggregate.Run{Entries: []catalog.Entry{demoEntry()}}

	outcome, err := f.runner.Run(context.Background(), workflow.Options{DryRun: true})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if f.publisher.calls != 0 {
		t.Fatal("dry run must not publish")
	}
	if outcome.Status != history.StatusDryRun {
		t.Fatalf("unexpected status %q", outcome.Status)
	}
	if err := catalog.Validate(outcome.Document); err != nil {
		t.Fatalf("dry run document invalid: %v", err)
	}
}

func TestRunConflictAborts(t *testing.T) {
	f := newFixture(t, nil)
	f.assembler.run = &aggregate.Run{Entries: []catalog.Entry{demoEntry()}}
	f.publisher.err = services.Wrap(services.ErrConflict, "publish", "write", "", &docstore.Error{Kind: docstore.KindConflict, Op: "write", StatusCode: 409})

	outcome, err := f.runner.Run(context.Background(), workflow.Options{})
	if !errors.Is(err, docstore.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if f.publisher.calls != 1 {
		t.Fatalf("conflict must not be retried, got %d publishes", f.publisher.calls)
	}
	if outcome.Status != history.StatusConflict {
		t.Fatalf("unexpected status %q", outcome.Status)
	}
	if !strings.HasPrefix(strings.TrimSpace(f.out.String()), "Update aborted: the document was changed") {
		t.Fatalf("unexpected notification %q", f.out.String())
	}
	if run := f.recorded(t, outcome.RunID); run.Status != history.StatusConflict || run.SHA != "" {
		t.Fatalf("unexpected history row %+v", run)
	}
}

func TestRunCancelledAssemblyAborts(t *testing.T) {
	f := newFixture(t, nil)
	f.assembler.run = nil
	f.assembler.err = context.Canceled

	outcome, err := f.runner.Run(context.Background(), workflow.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if outcome.Status != history.StatusAborted || outcome.Assembly != nil {
		t.Fatalf("unexpected outcome %#v", outcome)
	}
	if strings.TrimSpace(f.out.String()) != "Update aborted: run cancelled" {
		t.Fatalf("unexpected notification %q", f.out.String())
	}
}

func TestRunRefusesWhenLockHeld(t *testing.T) {
	f := newFixture(t, nil)
	lock := workflow.NewRunLock(f.cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer lock.Unlock()

	_, err = f.runner.Run(context.Background(), workflow.Options{})
	if !errors.Is(err, workflow.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if f.assembler.calls != 0 {
		t.Fatal("assembly started without the run lock")
	}
}

// TestRunEndToEnd drives the production wiring against fake upstreams: one
// provider answers, the other four are unreachable.
func TestRunEndToEnd(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"result":{"folders":[{"id":"1","title":"Demo"}]}}`))
	}))
	defer provider.Close()

	lookup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"type":"TV","episodes":12,"score":7.9,"status":"Finished Airing","rating":"PG-13","genres":[{"name":"Action"}]}]}`))
	}))
	defer lookup.Close()

	var (
		mu       sync.Mutex
		putBody  map[string]string
		putCount int
	)
	github := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]string{
				"sha":      "old-sha",
				"content":  base64.StdEncoding.EncodeToString([]byte("[]\n")),
				"encoding": "base64",
			})
		case http.MethodPut:
			mu.Lock()
			putCount++
			_ = json.NewDecoder(r.Body).Decode(&putBody)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"content":{"sha":"new-sha"},"commit":{"sha":"commit-sha"}}`))
		}
	}))
	defer github.Close()

	cfg := testsupport.NewConfig(t,
		testsupport.WithStoreBaseURLs(github.URL, github.URL),
		testsupport.WithLookupBaseURL(lookup.URL),
	)
	cfg.Providers.MixDropURL = provider.URL + "/folderlist?key=mix-key"
	cfg.Fetch.MaxRetries = 1
	store := testsupport.MustOpenHistory(t, cfg)

	var out bytes.Buffer
	runner, err := workflow.NewFromConfig(cfg, store, &out, nil)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	outcome, err := runner.Run(context.Background(), workflow.Options{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if outcome.Status != history.StatusPublished || outcome.Publish.SHA != "new-sha" {
		t.Fatalf("unexpected outcome %#v", outcome)
	}

	mu.Lock()
	defer mu.Unlock()
	if putCount != 1 || putBody["sha"] != "old-sha" {
		t.Fatalf("expected one conditional write, got %d %v", putCount, putBody)
	}
	content, err := base64.StdEncoding.DecodeString(putBody["content"])
	if err != nil {
		t.Fatalf("decode written content: %v", err)
	}
	entries, err := catalog.Decode(content)
	if err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Demo" || entries[0].Genres != "Action" || entries[0].Cloud != "MixDrop" {
		t.Fatalf("unexpected published entries %#v", entries)
	}

	messages := strings.Split(strings.TrimSpace(out.String()), "\n")
	if messages[0] != "Successfully updated Demo from MixDrop" {
		t.Fatalf("unexpected first message %q", messages[0])
	}
	if messages[len(messages)-1] != "Successfully updated anime_data.json on GitHub." {
		t.Fatalf("unexpected final message %q", messages[len(messages)-1])
	}
	failed := 0
	for _, message := range messages {
		if strings.HasPrefix(message, "Failed to update ") {
			failed++
		}
		if strings.Contains(message, "-key") {
			t.Fatalf("access key leaked in %q", message)
		}
	}
	if failed != 4 {
		t.Fatalf("expected four provider failures, got %d in %q", failed, messages)
	}

	run, err := store.Get(context.Background(), outcome.RunID)
	if err != nil {
		t.Fatalf("history Get: %v", err)
	}
	if run.Entries != 1 || run.ProviderFailures != 4 || run.Status != history.StatusPublished {
		t.Fatalf("unexpected history row %+v", run)
	}
}
