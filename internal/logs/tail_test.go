package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"animesync/internal/logs"
)

const sampleLog = `{"ts":"2026-01-02T03:04:05Z","level":"info","msg":"run started","run_id":"r1","dry_run":false}
{"ts":"2026-01-02T03:04:06Z","level":"warn","msg":"provider skipped","run_id":"r1","component":"aggregate","provider":"MixDrop","event_type":"provider_failed"}
{"ts":"2026-01-02T03:05:00Z","level":"info","msg":"run started","run_id":"r2"}
not json at all
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "animesync.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastRecords(t *testing.T) {
	path := writeLog(t, sampleLog)

	records, offset, err := logs.Tail(path, 2, logs.Filter{})
	if err != nil {
		t.Fatalf("Tail returned error: %v", err)
	}
	if len(records) != 2 || records[0].RunID != "r2" || records[1].Message != "not json at all" {
		t.Fatalf("unexpected records %#v", records)
	}
	if offset != int64(len(sampleLog)) {
		t.Fatalf("offset = %d, want %d", offset, len(sampleLog))
	}
}

func TestTailFiltersByRunAndLevel(t *testing.T) {
	path := writeLog(t, sampleLog)

	records, _, err := logs.Tail(path, 10, logs.Filter{RunID: "r1"})
	if err != nil {
		t.Fatalf("Tail returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected two r1 records, got %#v", records)
	}

	records, _, err = logs.Tail(path, 10, logs.Filter{MinLevel: "warn"})
	if err != nil {
		t.Fatalf("Tail returned error: %v", err)
	}
	if len(records) != 1 || records[0].Provider != "MixDrop" {
		t.Fatalf("unexpected warn records %#v", records)
	}
}

func TestTailMissingFile(t *testing.T) {
	records, offset, err := logs.Tail(filepath.Join(t.TempDir(), "absent.log"), 5, logs.Filter{})
	if err != nil || len(records) != 0 || offset != 0 {
		t.Fatalf("expected empty result, got %#v %d %v", records, offset, err)
	}
}

func TestFormatMatchesConsoleLayout(t *testing.T) {
	rec := logs.Parse(`{"ts":"2026-01-02T03:04:06Z","level":"warn","msg":"provider skipped","component":"aggregate","provider":"MixDrop","reason":"http 500","attempts":3}`)
	got := logs.Format(rec)
	want := `2026-01-02T03:04:06Z WARN aggregate/MixDrop: provider skipped attempts=3 reason="http 500"`
	if got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}

func TestFollowEmitsAppendedRecords(t *testing.T) {
	path := writeLog(t, sampleLog)
	_, offset, err := logs.Tail(path, 0, logs.Filter{})
	if err != nil {
		t.Fatalf("Tail returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		seen []string
	)
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 20*time.Millisecond, logs.Filter{RunID: "r3"}, func(rec logs.Record) error {
			mu.Lock()
			seen = append(seen, rec.Message)
			mu.Unlock()
			cancel()
			return nil
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	lines := `{"level":"info","msg":"other","run_id":"r2"}` + "\n" + `{"level":"info","msg":"later","run_id":"r3"}` + "\n"
	if _, err := f.WriteString(lines); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Follow returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not return")
	}
	mu.Lock()
	defer mu.Unlock()
	if strings.Join(seen, ",") != "later" {
		t.Fatalf("unexpected records %v", seen)
	}
}
