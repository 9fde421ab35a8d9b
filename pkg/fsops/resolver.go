// Package fsops implements root-confined filesystem operations for the
// managed site directory. Every user-supplied path is normalized, validated,
// and canonicalized against the root before any I/O happens.
package fsops

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/sitekeeper/sitekeeper/pkg/errors"
)

// Root confines relative paths to a fixed directory. The canonical form is
// captured once at construction so later prefix checks are stable even when
// the root itself is reached through a symlink.
type Root struct {
	path  string
	canon string
}

// NewRoot creates the directory if needed and resolves its canonical form.
func NewRoot(path string) (*Root, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apperrors.New(apperrors.ErrCodePathInvalid, "root path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodePathInvalid, "resolving root path")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "creating root directory")
	}
	canon, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "canonicalizing root directory")
	}
	return &Root{path: abs, canon: canon}, nil
}

// Path returns the absolute (non-canonicalized) root directory.
func (r *Root) Path() string { return r.path }

// Clean percent-decodes a raw relative path, normalizes separators, and
// strips a single leading slash. Decode failures fall back to the raw
// string; a request is never failed solely because decoding failed.
func Clean(raw string) string {
	trimmed := strings.TrimPrefix(raw, "/")
	decoded, err := url.PathUnescape(trimmed)
	if err != nil {
		decoded = trimmed
	}
	return strings.ReplaceAll(decoded, "\\", "/")
}

// uploadDisallowed are characters rejected in upload-supplied names.
var uploadDisallowed = "<>:\"|?*"

// validateRel applies the lexical rejection rules shared by every
// resolution mode. It never touches the filesystem.
func validateRel(rel string) error {
	if strings.TrimSpace(rel) == "" {
		return apperrors.New(apperrors.ErrCodePathInvalid, "empty path")
	}
	if strings.ContainsRune(rel, 0) {
		return apperrors.New(apperrors.ErrCodePathInvalid, "path contains NUL byte")
	}
	if strings.HasPrefix(rel, "/") || filepath.IsAbs(rel) {
		return apperrors.Newf(apperrors.ErrCodePathInvalid, "absolute path not allowed: %s", rel)
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == ".." {
			return apperrors.Newf(apperrors.ErrCodePathInvalid, "parent traversal not allowed: %s", rel)
		}
	}
	return nil
}

// SanitizeUploadName validates a client-declared upload file name, which may
// itself encode subdirectories. It applies the stricter upload character
// set on top of the usual rules and returns the normalized relative name.
func SanitizeUploadName(name string) (string, error) {
	if strings.ContainsRune(name, 0) {
		return "", apperrors.New(apperrors.ErrCodePathInvalid, "upload name contains NUL byte")
	}
	if strings.ContainsAny(name, uploadDisallowed) {
		return "", apperrors.Newf(apperrors.ErrCodePathInvalid, "upload name contains disallowed characters: %s", name)
	}
	normalized := strings.ReplaceAll(name, "\\", "/")
	if err := validateRel(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ResolveExisting resolves a raw relative path to a canonical filesystem
// path that is guaranteed to exist under the root. Used for reads, deletes,
// and move sources.
func (r *Root) ResolveExisting(raw string) (string, error) {
	rel := Clean(raw)
	if err := validateRel(rel); err != nil {
		return "", err
	}
	joined := filepath.Join(r.path, filepath.FromSlash(rel))
	canon, err := filepath.EvalSymlinks(joined)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.Newf(apperrors.ErrCodeNotFound, "no such path: %s", rel)
		}
		return "", apperrors.Wrap(err, apperrors.ErrCodePathInvalid, "canonicalizing path").WithContext("path", rel)
	}
	if !r.contains(canon) {
		return "", apperrors.Newf(apperrors.ErrCodePathInvalid, "path escapes root: %s", rel)
	}
	return canon, nil
}

// ResolveDestination resolves a raw relative path for a target that need
// not exist yet. The nearest existing ancestor directory is canonicalized
// and checked against the root; the not-yet-existing remainder was already
// lexically validated, so it cannot reintroduce an escape.
func (r *Root) ResolveDestination(raw string) (string, error) {
	rel := Clean(raw)
	if err := validateRel(rel); err != nil {
		return "", err
	}
	joined := filepath.Join(r.path, filepath.FromSlash(rel))

	ancestor := filepath.Dir(joined)
	var pending []string
	for {
		canon, err := filepath.EvalSymlinks(ancestor)
		if err == nil {
			if !r.contains(canon) {
				return "", apperrors.Newf(apperrors.ErrCodePathInvalid, "path escapes root: %s", rel)
			}
			parts := append([]string{canon}, pending...)
			parts = append(parts, filepath.Base(joined))
			return filepath.Join(parts...), nil
		}
		if !os.IsNotExist(err) {
			return "", apperrors.Wrap(err, apperrors.ErrCodePathInvalid, "canonicalizing parent").WithContext("path", rel)
		}
		next := filepath.Dir(ancestor)
		if next == ancestor {
			return "", apperrors.Newf(apperrors.ErrCodePathInvalid, "path escapes root: %s", rel)
		}
		pending = append([]string{filepath.Base(ancestor)}, pending...)
		ancestor = next
	}
}

// contains reports whether canon equals the canonical root or lies below it.
func (r *Root) contains(canon string) bool {
	if canon == r.canon {
		return true
	}
	return strings.HasPrefix(canon, r.canon+string(filepath.Separator))
}
