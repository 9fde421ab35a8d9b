package fsops

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/sitekeeper/sitekeeper/pkg/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(newTestRoot(t))
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	content := []byte("<html>hello</html>")
	if err := store.Write("pages/about.html", content); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := store.Read("pages/about.html")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("Read = %q, want %q", got, content)
	}
}

func TestWriteOverDirectoryConflicts(t *testing.T) {
	store := newTestStore(t)
	if err := os.MkdirAll(filepath.Join(store.root.Path(), "assets"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	err := store.Write("assets", []byte("x"))
	if !apperrors.IsCode(err, apperrors.ErrCodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestReadDirectoryIsNotFound(t *testing.T) {
	store := newTestStore(t)
	if err := os.MkdirAll(filepath.Join(store.root.Path(), "docs"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := store.Read("docs"); !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestListSortsDirectoriesFirst(t *testing.T) {
	store := newTestStore(t)
	root := store.root.Path()
	for _, d := range []string{"zeta", "alpha"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	for _, f := range []string{"b.txt", "a.txt"} {
		if err := os.WriteFile(filepath.Join(root, f), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	entries, err := store.List("")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	want := "alpha,zeta,a.txt,b.txt"
	if got := strings.Join(paths, ","); got != want {
		t.Errorf("List order = %s, want %s", got, want)
	}
	if !entries[0].IsDir || entries[2].IsDir {
		t.Errorf("IsDir flags wrong: %+v", entries)
	}
}

func TestListNestedDirectoryPathsAreRootRelative(t *testing.T) {
	store := newTestStore(t)
	if err := store.Write("img/logo.png", []byte("png")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Write("img/icons/x.svg", []byte("svg")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries, err := store.List("img")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var paths []string
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	want := "img/icons,img/logo.png"
	if got := strings.Join(paths, ","); got != want {
		t.Errorf("List paths = %s, want %s", got, want)
	}

	// trailing slash on the listed directory must not double the separator
	entries, err = store.List("img/icons/")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "img/icons/x.svg" {
		t.Errorf("nested List = %+v", entries)
	}
}

func TestListMissingDirectoryIsEmpty(t *testing.T) {
	store := newTestStore(t)
	entries, err := store.List("no/such/dir")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty list, got %+v", entries)
	}
}

func TestListInvalidPathFails(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.List("../outside"); !apperrors.IsCode(err, apperrors.ErrCodePathInvalid) {
		t.Fatalf("expected PATH_INVALID, got %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	if err := store.Write("tmp/file.txt", []byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Delete("tmp/file.txt"); err != nil {
		t.Fatalf("first Delete failed: %v", err)
	}
	if err := store.Delete("tmp/file.txt"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if err := store.Delete("never/existed.txt"); err != nil {
		t.Fatalf("Delete of missing path failed: %v", err)
	}
}

func TestDeleteDirectoryTree(t *testing.T) {
	store := newTestStore(t)
	if err := store.Write("old/sub/a.txt", []byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Delete("old"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.root.Path(), "old")); !os.IsNotExist(err) {
		t.Errorf("directory still present after delete")
	}
}

func TestMoveRenamesAndCreatesParents(t *testing.T) {
	store := newTestStore(t)
	if err := store.Write("drafts/post.md", []byte("content")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Move("drafts/post.md", "published/2026/post.md"); err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	got, err := store.Read("published/2026/post.md")
	if err != nil {
		t.Fatalf("Read after move failed: %v", err)
	}
	if string(got) != "content" {
		t.Errorf("moved content = %q", got)
	}
	if _, err := store.Read("drafts/post.md"); !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("source still readable after move: %v", err)
	}
}

func TestMoveDirectoryIntoItselfConflicts(t *testing.T) {
	store := newTestStore(t)
	if err := store.Write("site/index.html", []byte("x")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	err := store.Move("site", "site/nested")
	if !apperrors.IsCode(err, apperrors.ErrCodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
	if err := store.Move("site", "site"); !apperrors.IsCode(err, apperrors.ErrCodeConflict) {
		t.Fatalf("move onto itself: expected CONFLICT, got %v", err)
	}
}

func TestMoveMissingSourceIsNotFound(t *testing.T) {
	store := newTestStore(t)
	if err := store.Move("ghost.txt", "dst.txt"); !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestUploadBatch(t *testing.T) {
	store := newTestStore(t)
	files := []UploadFile{
		{Name: "style.css", Reader: strings.NewReader("body{}")},
		{Name: "img/logo.svg", Reader: strings.NewReader("<svg/>")},
	}
	n, err := store.Upload("assets", files)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Upload wrote %d files, want 2", n)
	}
	got, err := store.Read("assets/img/logo.svg")
	if err != nil {
		t.Fatalf("Read uploaded file: %v", err)
	}
	if string(got) != "<svg/>" {
		t.Errorf("uploaded content = %q", got)
	}
}

func TestUploadStopsAtFirstInvalidName(t *testing.T) {
	store := newTestStore(t)
	files := []UploadFile{
		{Name: "ok.txt", Reader: strings.NewReader("1")},
		{Name: "../evil.txt", Reader: strings.NewReader("2")},
		{Name: "after.txt", Reader: strings.NewReader("3")},
	}
	n, err := store.Upload("", files)
	if !apperrors.IsCode(err, apperrors.ErrCodePathInvalid) {
		t.Fatalf("expected PATH_INVALID, got %v", err)
	}
	if n != 1 {
		t.Errorf("Upload wrote %d files before failing, want 1", n)
	}
	if _, err := store.Read("ok.txt"); err != nil {
		t.Errorf("earlier file should remain: %v", err)
	}
	if _, err := store.Read("after.txt"); !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("later file should not exist: %v", err)
	}
}

func TestUploadSkipsUnnamedParts(t *testing.T) {
	store := newTestStore(t)
	files := []UploadFile{
		{Name: "", Reader: strings.NewReader("ignored")},
		{Name: "kept.txt", Reader: strings.NewReader("kept")},
	}
	n, err := store.Upload("", files)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Upload wrote %d files, want 1", n)
	}
}
