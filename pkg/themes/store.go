// Package themes persists site color themes as JSON files in a directory
// outside the managed site root, so theme state survives git resets.
package themes

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/sitekeeper/sitekeeper/pkg/errors"
	"github.com/sitekeeper/sitekeeper/pkg/logging"
)

const themeExt = ".json"

// validName guards against path injection: the theme name is used directly
// as a filename.
var validName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Theme is a named set of color assignments.
type Theme struct {
	Name   string            `json:"name"`
	Colors map[string]string `json:"colors"`
}

// Store manages the themes directory.
type Store struct {
	dir        string
	legacyDir  string
	logger     *logging.Logger
	migrateOne sync.Once
}

// NewStore returns a theme store rooted at dir. legacyDir, if non-empty,
// names an old in-site themes directory whose contents are migrated on
// first access.
func NewStore(dir, legacyDir string, logger *logging.Logger) *Store {
	return &Store{dir: dir, legacyDir: legacyDir, logger: logger}
}

// ensureDir creates the themes directory and runs the legacy migration once.
func (s *Store) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "creating themes directory")
	}
	// best-effort, failures only logged
	s.migrateOne.Do(s.migrateLegacy)
	return nil
}

// migrateLegacy copies *.json themes from the old in-site location and
// removes it. Any failure is swallowed; the legacy directory simply stays.
func (s *Store) migrateLegacy() {
	if s.legacyDir == "" {
		return
	}
	entries, err := os.ReadDir(s.legacyDir)
	if err != nil {
		return
	}
	moved := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), themeExt) {
			continue
		}
		if err := copyFile(filepath.Join(s.legacyDir, e.Name()), filepath.Join(s.dir, e.Name())); err == nil {
			moved++
		}
	}
	if err := os.RemoveAll(s.legacyDir); err == nil && moved > 0 {
		s.logger.Info(logging.CategoryThemes, "migrate", "migrated legacy themes", map[string]any{
			"count": moved,
		})
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// List returns all theme names, sorted.
func (s *Store) List() ([]string, error) {
	if err := s.ensureDir(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "reading themes directory")
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), themeExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), themeExt))
	}
	sort.Strings(names)
	return names, nil
}

// Get loads a theme by name. A missing theme and a malformed theme file are
// distinct failures.
func (s *Store) Get(name string) (*Theme, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := s.ensureDir(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.themePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.ErrCodeNotFound, "theme not found: %s", name)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "reading theme")
	}
	var theme Theme
	if err := json.Unmarshal(data, &theme); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "theme file is malformed").WithContext("theme", name)
	}
	if theme.Name == "" {
		theme.Name = name
	}
	return &theme, nil
}

// Save writes a theme, overwriting any existing file of the same name.
func (s *Store) Save(theme *Theme) error {
	if err := validateName(theme.Name); err != nil {
		return err
	}
	if err := s.ensureDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(theme, "", "  ")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "serializing theme")
	}
	if err := os.WriteFile(s.themePath(theme.Name), data, 0o644); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "writing theme")
	}
	s.logger.Info(logging.CategoryThemes, "save", "theme saved", map[string]any{"theme": theme.Name})
	return nil
}

// Delete removes a theme; a missing theme is NotFound.
func (s *Store) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := s.ensureDir(); err != nil {
		return err
	}
	path := s.themePath(name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return apperrors.Newf(apperrors.ErrCodeNotFound, "theme not found: %s", name)
		}
		return apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "checking theme")
	}
	if err := os.Remove(path); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeIOFailure, "deleting theme")
	}
	s.logger.Info(logging.CategoryThemes, "delete", "theme deleted", map[string]any{"theme": name})
	return nil
}

func (s *Store) themePath(name string) string {
	return filepath.Join(s.dir, name+themeExt)
}

func validateName(name string) error {
	if name == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "theme name cannot be empty")
	}
	if !validName.MatchString(name) {
		return apperrors.Newf(apperrors.ErrCodeInvalidInput, "theme name may only contain letters, digits, hyphen, underscore: %s", name)
	}
	return nil
}
