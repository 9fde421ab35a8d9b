package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogWritesOpsFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger error: %v", err)
	}
	defer logger.Close()

	if err := logger.Info(CategoryGit, "pull", "pulled 3 commits", map[string]any{"commit": "abc123"}); err != nil {
		t.Fatalf("Info error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "ops.jsonl"))
	if err != nil {
		t.Fatalf("reading ops log: %v", err)
	}
	if !strings.Contains(string(data), `"category":"git"`) {
		t.Fatalf("ops log missing category: %s", data)
	}
	if !strings.Contains(string(data), "abc123") {
		t.Fatalf("ops log missing details: %s", data)
	}
}

func TestErrorEventsDuplicatedToErrorLog(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger error: %v", err)
	}
	defer logger.Close()

	if err := logger.Error(CategoryScheduler, "pull_failed", "fetch timed out", nil); err != nil {
		t.Fatalf("Error error: %v", err)
	}
	if err := logger.Info(CategoryScheduler, "pull_ok", "up to date", nil); err != nil {
		t.Fatalf("Info error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "errors.jsonl"))
	if err != nil {
		t.Fatalf("reading error log: %v", err)
	}
	if !strings.Contains(string(data), "pull_failed") {
		t.Fatalf("error log missing error event: %s", data)
	}
	if strings.Contains(string(data), "pull_ok") {
		t.Fatalf("error log should not contain info events: %s", data)
	}
}

func TestMinLevelFiltersDebug(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger error: %v", err)
	}
	defer logger.Close()

	if err := logger.Debug(CategoryFiles, "resolve", "resolved path", nil); err != nil {
		t.Fatalf("Debug error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "ops.jsonl"))
	if err != nil {
		t.Fatalf("reading ops log: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("debug event should be filtered at default level, got %s", data)
	}
}

func TestReadRecentEventsFiltersAndLimits(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir)
	if err != nil {
		t.Fatalf("NewLogger error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := logger.Info(CategoryGit, "pull", "ok", nil); err != nil {
			t.Fatalf("Info error: %v", err)
		}
	}
	if err := logger.Info(CategoryThemes, "save", "ok", nil); err != nil {
		t.Fatalf("Info error: %v", err)
	}
	logger.Close()

	events, err := ReadRecentEvents(filepath.Join(dir, "ops.jsonl"), CategoryGit, 3)
	if err != nil {
		t.Fatalf("ReadRecentEvents error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Category != CategoryGit {
			t.Fatalf("unexpected category %s", ev.Category)
		}
	}
}

func TestReadRecentEventsMissingFile(t *testing.T) {
	events, err := ReadRecentEvents(filepath.Join(t.TempDir(), "absent.jsonl"), "", 10)
	if err != nil {
		t.Fatalf("missing log should not error: %v", err)
	}
	if events != nil {
		t.Fatalf("expected no events, got %v", events)
	}
}
