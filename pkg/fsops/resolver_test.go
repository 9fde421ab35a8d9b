package fsops

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/sitekeeper/sitekeeper/pkg/errors"
)

func newTestRoot(t *testing.T) *Root {
	t.Helper()
	root, err := NewRoot(t.TempDir())
	if err != nil {
		t.Fatalf("NewRoot failed: %v", err)
	}
	return root
}

func TestCleanDecodesAndNormalizes(t *testing.T) {
	cases := map[string]string{
		"/index.html":        "index.html",
		"docs%2Fguide.md":    "docs/guide.md",
		"a\\b\\c.txt":        "a/b/c.txt",
		"hello%20world.txt":  "hello world.txt",
		"bad%zzescape":       "bad%zzescape",
		"/already/clean.txt": "already/clean.txt",
	}
	for raw, want := range cases {
		if got := Clean(raw); got != want {
			t.Errorf("Clean(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestResolveExistingConfinement(t *testing.T) {
	root := newTestRoot(t)
	if err := os.WriteFile(filepath.Join(root.Path(), "index.html"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	resolved, err := root.ResolveExisting("index.html")
	if err != nil {
		t.Fatalf("ResolveExisting failed: %v", err)
	}
	if filepath.Base(resolved) != "index.html" {
		t.Errorf("unexpected resolved path %q", resolved)
	}

	escapes := []string{
		"../outside.txt",
		"a/../../outside.txt",
		"%2e%2e%2fetc/passwd",
		"..%2F..%2Fetc%2Fpasswd",
		"/../../etc/passwd",
		"nul\x00byte",
	}
	for _, p := range escapes {
		if _, err := root.ResolveExisting(p); !apperrors.IsCode(err, apperrors.ErrCodePathInvalid) {
			t.Errorf("ResolveExisting(%q): expected PATH_INVALID, got %v", p, err)
		}
	}
}

func TestResolveExistingMissingIsNotFound(t *testing.T) {
	root := newTestRoot(t)
	_, err := root.ResolveExisting("missing.txt")
	if !apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestResolveExistingSymlinkEscape(t *testing.T) {
	root := newTestRoot(t)
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed outside file: %v", err)
	}
	link := filepath.Join(root.Path(), "sneaky")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if _, err := root.ResolveExisting("sneaky/secret.txt"); !apperrors.IsCode(err, apperrors.ErrCodePathInvalid) {
		t.Fatalf("expected PATH_INVALID for symlink escape, got %v", err)
	}
}

func TestResolveDestinationMissingParents(t *testing.T) {
	root := newTestRoot(t)
	dst, err := root.ResolveDestination("new/deep/dir/file.txt")
	if err != nil {
		t.Fatalf("ResolveDestination failed: %v", err)
	}
	if !strings.HasPrefix(dst, root.Path()) {
		t.Errorf("destination %q not under root %q", dst, root.Path())
	}
	if filepath.Base(dst) != "file.txt" {
		t.Errorf("unexpected destination %q", dst)
	}
}

func TestResolveDestinationRejectsTraversal(t *testing.T) {
	root := newTestRoot(t)
	for _, p := range []string{"../evil.txt", "ok/../../evil.txt", "%2e%2e/evil.txt"} {
		if _, err := root.ResolveDestination(p); !apperrors.IsCode(err, apperrors.ErrCodePathInvalid) {
			t.Errorf("ResolveDestination(%q): expected PATH_INVALID, got %v", p, err)
		}
	}
}

func TestSanitizeUploadName(t *testing.T) {
	good := map[string]string{
		"photo.jpg":           "photo.jpg",
		"assets/css/site.css": "assets/css/site.css",
		"dir\\file.txt":       "dir/file.txt",
	}
	for in, want := range good {
		got, err := SanitizeUploadName(in)
		if err != nil {
			t.Errorf("SanitizeUploadName(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("SanitizeUploadName(%q) = %q, want %q", in, got, want)
		}
	}
	bad := []string{
		"",
		"con<fig>.txt",
		"what?.txt",
		"pipe|name",
		"quote\"name",
		"../escape.txt",
		"/absolute.txt",
		"nul\x00.txt",
		"a:b.txt",
	}
	for _, in := range bad {
		if _, err := SanitizeUploadName(in); !apperrors.IsCode(err, apperrors.ErrCodePathInvalid) {
			t.Errorf("SanitizeUploadName(%q): expected PATH_INVALID, got %v", in, err)
		}
	}
}
