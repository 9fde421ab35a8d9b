package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration values exported for documentation and validation
const (
	DefaultBind           = "127.0.0.1:8000"
	DefaultSiteRoot       = "/public_site"
	DefaultDataDir        = "/app/data"
	DefaultGitTimeout     = 60 * time.Second
	DefaultSessionTTL     = 24 * time.Hour
	DefaultDefaultBranch  = "main"
	DefaultCommitAuthor   = "Sitekeeper"
	DefaultCommitEmail    = "noreply@sitekeeper.local"
	DefaultUploadMaxBytes = 64 << 20

	// MinTokenLength is the minimum recommended length for admin tokens
	MinTokenLength = 16
)

// Config represents the complete sitekeeper configuration
type Config struct {
	Server ServerConfig `yaml:"server"`
	Site   SiteConfig   `yaml:"site"`
	Git    GitConfig    `yaml:"git"`
	Auth   AuthConfig   `yaml:"auth"`
}

// ServerConfig controls the HTTP listener
type ServerConfig struct {
	Bind           string   `yaml:"bind"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	UploadMaxBytes int64    `yaml:"upload_max_bytes"`
	ServeSite      bool     `yaml:"serve_site"` // mount the managed root at /
}

// SiteConfig locates the managed site root and the out-of-root data directory
type SiteConfig struct {
	Root    string `yaml:"root"`     // git working copy, all file operations confined here
	DataDir string `yaml:"data_dir"` // themes, auto-pull config, logs, audit db; never inside Root
}

// GitConfig controls repository synchronization behavior
type GitConfig struct {
	DefaultBranch  string        `yaml:"default_branch"`
	NetworkTimeout time.Duration `yaml:"network_timeout"`
	CommitAuthor   string        `yaml:"commit_author"`
	CommitEmail    string        `yaml:"commit_email"`
}

// AuthConfig controls admin authentication
type AuthConfig struct {
	AdminToken string        `yaml:"admin_token"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// Default returns a config populated with defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Bind:           DefaultBind,
			AllowedOrigins: []string{"http://localhost", "http://127.0.0.1"},
			UploadMaxBytes: DefaultUploadMaxBytes,
			ServeSite:      true,
		},
		Site: SiteConfig{
			Root:    DefaultSiteRoot,
			DataDir: DefaultDataDir,
		},
		Git: GitConfig{
			DefaultBranch:  DefaultDefaultBranch,
			NetworkTimeout: DefaultGitTimeout,
			CommitAuthor:   DefaultCommitAuthor,
			CommitEmail:    DefaultCommitEmail,
		},
		Auth: AuthConfig{
			SessionTTL: DefaultSessionTTL,
		},
	}
}

// Load reads configuration from path (optional), applies environment
// overrides, and validates the result. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets secrets come from the environment instead of the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SITEKEEPER_ADMIN_TOKEN"); v != "" {
		cfg.Auth.AdminToken = v
	}
	if v := os.Getenv("SITEKEEPER_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("SITEKEEPER_SITE_ROOT"); v != "" {
		cfg.Site.Root = v
	}
	if v := os.Getenv("SITEKEEPER_DATA_DIR"); v != "" {
		cfg.Site.DataDir = v
	}
	if v := os.Getenv("SITEKEEPER_BIND"); v != "" {
		cfg.Server.Bind = v
	}
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(cfg *Config) {
	if cfg.Server.Bind == "" {
		cfg.Server.Bind = DefaultBind
	}
	if cfg.Server.UploadMaxBytes <= 0 {
		cfg.Server.UploadMaxBytes = DefaultUploadMaxBytes
	}
	if cfg.Site.Root == "" {
		cfg.Site.Root = DefaultSiteRoot
	}
	if cfg.Site.DataDir == "" {
		cfg.Site.DataDir = DefaultDataDir
	}
	if cfg.Git.DefaultBranch == "" {
		cfg.Git.DefaultBranch = DefaultDefaultBranch
	}
	if cfg.Git.NetworkTimeout <= 0 {
		cfg.Git.NetworkTimeout = DefaultGitTimeout
	}
	if cfg.Git.CommitAuthor == "" {
		cfg.Git.CommitAuthor = DefaultCommitAuthor
	}
	if cfg.Git.CommitEmail == "" {
		cfg.Git.CommitEmail = DefaultCommitEmail
	}
	if cfg.Auth.SessionTTL <= 0 {
		cfg.Auth.SessionTTL = DefaultSessionTTL
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = cfg.Auth.AdminToken
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Site.Root) == "" {
		return fmt.Errorf("site.root must be set")
	}
	if strings.TrimSpace(c.Site.DataDir) == "" {
		return fmt.Errorf("site.data_dir must be set")
	}
	rootAbs, err := filepath.Abs(c.Site.Root)
	if err != nil {
		return fmt.Errorf("site.root: %w", err)
	}
	dataAbs, err := filepath.Abs(c.Site.DataDir)
	if err != nil {
		return fmt.Errorf("site.data_dir: %w", err)
	}
	// The data dir holds state that must survive force pulls, so it can
	// never live inside the synchronized root.
	if dataAbs == rootAbs || strings.HasPrefix(dataAbs, rootAbs+string(filepath.Separator)) {
		return fmt.Errorf("site.data_dir must be outside site.root")
	}
	if c.Auth.AdminToken != "" && len(c.Auth.AdminToken) < MinTokenLength {
		return fmt.Errorf("auth.admin_token must be at least %d characters", MinTokenLength)
	}
	return nil
}

// ThemesDir returns the on-disk location for theme files.
func (c *Config) ThemesDir() string {
	return filepath.Join(c.Site.DataDir, "themes")
}

// LogsDir returns the on-disk location for structured operation logs.
func (c *Config) LogsDir() string {
	return filepath.Join(c.Site.DataDir, "logs")
}

// AutoPullConfigPath returns the persisted auto-pull configuration file.
func (c *Config) AutoPullConfigPath() string {
	return filepath.Join(c.Site.DataDir, "auto_pull_config.json")
}

// AuditDBPath returns the sqlite database holding the admin audit trail.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.Site.DataDir, "audit.db")
}
