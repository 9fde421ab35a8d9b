package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	events := []AuditEvent{
		{Actor: "admin", Action: "file.write", Target: "index.html", Success: true},
		{Actor: "admin", Action: "git.pull", Success: false, Detail: "dirty tree"},
		{Actor: "scheduler", Action: "git.auto_pull", Success: true},
	}
	for _, ev := range events {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent returned %d events, want 3", len(got))
	}
	// newest first
	if got[0].Action != "git.auto_pull" || got[2].Action != "file.write" {
		t.Errorf("unexpected order: %s, %s, %s", got[0].Action, got[1].Action, got[2].Action)
	}
	if got[1].Success || got[1].Detail != "dirty tree" {
		t.Errorf("failure event mangled: %+v", got[1])
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func TestRecentLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := store.Record(ctx, AuditEvent{Actor: "admin", Action: "file.delete", Success: true}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}
	got, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Recent(2) returned %d events", len(got))
	}
}

func TestRecentEmpty(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no events, got %d", len(got))
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := store.Record(context.Background(), AuditEvent{Actor: "admin", Action: "git.setup", Success: true}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 1 || got[0].Action != "git.setup" {
		t.Errorf("persisted events = %+v", got)
	}
}
