package fsops

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/sitekeeper/sitekeeper/pkg/errors"
)

// FileEntry describes one directory member as returned by List. Path is
// always relative to the root, not to the listed directory.
type FileEntry struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// UploadFile pairs a client-declared name with its content stream.
type UploadFile struct {
	Name   string
	Reader io.Reader
}

// Store provides the file operations exposed by the API, all confined to a
// single Root.
type Store struct {
	root *Root
}

// NewStore returns a Store over the given root.
func NewStore(root *Root) *Store {
	return &Store{root: root}
}

// List returns the immediate members of dir, sorted directories-first then
// by path. Entry paths are relative to the root, so listing "img" yields
// "img/logo.png". A directory that cannot be resolved or read yields an
// empty list rather than an error; only lexically invalid paths fail.
func (s *Store) List(dir string) ([]FileEntry, error) {
	rel := strings.TrimSuffix(Clean(dir), "/")
	if rel != "" && rel != "." {
		if err := validateRel(rel); err != nil {
			return nil, err
		}
	}
	target := s.root.path
	prefix := ""
	if rel != "" && rel != "." {
		resolved, err := s.root.ResolveExisting(rel)
		if err != nil {
			if apperrors.IsCode(err, apperrors.ErrCodePathInvalid) {
				return nil, err
			}
			return []FileEntry{}, nil
		}
		target = resolved
		prefix = rel + "/"
	}
	dirents, err := os.ReadDir(target)
	if err != nil {
		return []FileEntry{}, nil
	}
	entries := make([]FileEntry, 0, len(dirents))
	for _, de := range dirents {
		entry := FileEntry{Path: prefix + de.Name(), IsDir: de.IsDir()}
		if info, err := de.Info(); err == nil && !de.IsDir() {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// Read returns the content of a regular file. Directories are not readable
// and report not-found, matching how the API treats them.
func (s *Store) Read(path string) ([]byte, error) {
	resolved, err := s.root.ResolveExisting(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "stat file")
	}
	if info.IsDir() {
		return nil, apperrors.Newf(apperrors.ErrCodeNotFound, "not a file: %s", Clean(path))
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "reading file")
	}
	return data, nil
}

// Write stores content at path, creating missing parent directories. An
// existing directory at the target is a conflict.
func (s *Store) Write(path string, content []byte) error {
	resolved, err := s.root.ResolveDestination(path)
	if err != nil {
		return err
	}
	if info, err := os.Stat(resolved); err == nil && info.IsDir() {
		return apperrors.Newf(apperrors.ErrCodeConflict, "target is a directory: %s", Clean(path))
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "creating parent directories")
	}
	if err := os.WriteFile(resolved, content, 0o644); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "writing file")
	}
	return nil
}

// Delete removes a file or directory tree. Deleting a path that does not
// exist succeeds, so the operation is idempotent.
func (s *Store) Delete(path string) error {
	resolved, err := s.root.ResolveExisting(path)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeNotFound) {
			return nil
		}
		return err
	}
	if resolved == s.root.canon {
		return apperrors.New(apperrors.ErrCodePathInvalid, "cannot delete root")
	}
	// Removal failures are deliberately swallowed: delete is best-effort and
	// reports success even when the filesystem refuses.
	_ = os.RemoveAll(resolved)
	return nil
}

// Move renames from to to. Moving a directory into itself or one of its own
// descendants is rejected as a conflict.
func (s *Store) Move(from, to string) error {
	src, err := s.root.ResolveExisting(from)
	if err != nil {
		return err
	}
	dst, err := s.root.ResolveDestination(to)
	if err != nil {
		return err
	}
	if info, err := os.Stat(src); err == nil && info.IsDir() {
		if dst == src || strings.HasPrefix(dst, src+string(filepath.Separator)) {
			return apperrors.Newf(apperrors.ErrCodeConflict, "cannot move a directory into itself: %s", Clean(from))
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "creating destination parent")
	}
	if err := os.Rename(src, dst); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "moving path")
	}
	return nil
}

// Upload writes a batch of files under basePath, creating directories as
// needed. Processing stops at the first invalid name or write failure;
// files already written stay in place.
func (s *Store) Upload(basePath string, files []UploadFile) (int, error) {
	baseRel := Clean(basePath)
	if baseRel != "" && baseRel != "." {
		if err := validateRel(baseRel); err != nil {
			return 0, err
		}
	}
	written := 0
	for _, f := range files {
		if f.Name == "" {
			continue
		}
		name, err := SanitizeUploadName(f.Name)
		if err != nil {
			return written, err
		}
		relPath := name
		if baseRel != "" && baseRel != "." {
			relPath = baseRel + "/" + name
		}
		dst, err := s.root.ResolveDestination(relPath)
		if err != nil {
			return written, err
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return written, apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "creating upload directory")
		}
		out, err := os.Create(dst)
		if err != nil {
			return written, apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "creating upload file")
		}
		if _, err := io.Copy(out, f.Reader); err != nil {
			out.Close()
			return written, apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "writing upload file")
		}
		if err := out.Close(); err != nil {
			return written, apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "closing upload file")
		}
		written++
	}
	return written, nil
}
