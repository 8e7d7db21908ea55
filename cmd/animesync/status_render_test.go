package main

import (
	"bytes"
	"strings"
	"testing"

	"animesync/internal/preflight"
)

func TestRenderStatusLinePlain(t *testing.T) {
	line := renderStatusLine("GitHub token", statusOK, "authenticated as octo", false)
	if line != "  GitHub token:      [OK] authenticated as octo" {
		t.Fatalf("unexpected line %q", line)
	}
	if got := renderStatusLine("Summary", statusWarn, "", false); !strings.HasSuffix(got, "[WARN]") {
		t.Fatalf("expected bare status, got %q", got)
	}
}

func TestRenderStatusLineColor(t *testing.T) {
	line := renderStatusLine("Lookup", statusError, "timeout", true)
	if !strings.HasPrefix(line, ansiRed) || !strings.HasSuffix(line, ansiReset) {
		t.Fatalf("expected red line, got %q", line)
	}
}

func TestCheckLinesSummary(t *testing.T) {
	lines := checkLines([]preflight.Result{
		{Name: "MixDrop", Passed: true, Detail: "key ***-key"},
		{Name: "GitHub token", Detail: "token missing"},
	}, false)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "[ERROR] token missing") {
		t.Fatalf("unexpected failure line %q", lines[1])
	}
	if !strings.Contains(lines[2], "1 of 2 checks failed") {
		t.Fatalf("unexpected summary %q", lines[2])
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"only"}}, []columnAlignment{alignLeft, alignRight})
	if !strings.Contains(out, "only") || strings.Count(out, "\n") < 4 {
		t.Fatalf("unexpected table %q", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}
