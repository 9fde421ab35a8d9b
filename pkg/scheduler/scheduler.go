// Package scheduler owns the recurring auto-pull job. At most one job is
// registered at any time; configuration changes replace the job atomically
// and persist across restarts.
package scheduler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sitekeeper/sitekeeper/pkg/gitrepo"
	"github.com/sitekeeper/sitekeeper/pkg/logging"
)

// Config is the persisted auto-pull configuration.
type Config struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"interval_minutes"`
}

// DefaultConfig is used when no config file exists or it cannot be parsed.
func DefaultConfig() Config {
	return Config{Enabled: false, IntervalMinutes: 30}
}

// Puller is the single operation the scheduler invokes. Satisfied by
// gitrepo.Controller.
type Puller interface {
	PullInternal() gitrepo.Result
}

type job struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler runs PullInternal on a fixed period when enabled.
type Scheduler struct {
	mu     sync.RWMutex
	path   string
	puller Puller
	logger *logging.Logger
	config Config
	job    *job

	// interval translates config to a tick period; replaced in tests.
	interval func(Config) time.Duration
}

// New returns a stopped scheduler. Call Start to load persisted config and
// register the job if enabled.
func New(configPath string, puller Puller, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		path:   configPath,
		puller: puller,
		logger: logger,
		config: DefaultConfig(),
		interval: func(cfg Config) time.Duration {
			return time.Duration(cfg.IntervalMinutes) * time.Minute
		},
	}
}

// Start loads the persisted config and registers the recurring job when
// enabled. Missing or corrupt config files fall back to the default.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config = s.load()
	if s.config.Enabled {
		s.addJobLocked()
	}
	s.logger.Info(logging.CategoryScheduler, "start", "scheduler started", map[string]any{
		"enabled":          s.config.Enabled,
		"interval_minutes": s.config.IntervalMinutes,
	})
}

// Stop removes any registered job and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeJobLocked()
}

// Config returns the current configuration.
func (s *Scheduler) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// UpdateConfig removes any current job, persists the new configuration, and
// registers a fresh job when enabled. The remove-persist-add order keeps at
// most one job alive and makes the new interval effective immediately.
func (s *Scheduler) UpdateConfig(cfg Config) error {
	if cfg.IntervalMinutes < 1 {
		cfg.IntervalMinutes = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeJobLocked()
	if err := s.persist(cfg); err != nil {
		return err
	}
	s.config = cfg
	if cfg.Enabled {
		s.addJobLocked()
	}
	s.logger.Info(logging.CategoryScheduler, "config_updated", "auto-pull config updated", map[string]any{
		"enabled":          cfg.Enabled,
		"interval_minutes": cfg.IntervalMinutes,
	})
	return nil
}

func (s *Scheduler) load() Config {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return DefaultConfig()
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		s.logger.Warn(logging.CategoryScheduler, "config_corrupt", "auto-pull config unreadable, using defaults", map[string]any{
			"error": err.Error(),
		})
		return DefaultConfig()
	}
	if cfg.IntervalMinutes < 1 {
		cfg.IntervalMinutes = DefaultConfig().IntervalMinutes
	}
	return cfg
}

func (s *Scheduler) persist(cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// addJobLocked registers the recurring job. Caller holds mu.
func (s *Scheduler) addJobLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.job = j
	period := s.interval(s.config)
	go s.run(ctx, j, period)
}

// removeJobLocked cancels and waits out the current job, if any. Caller
// holds mu.
func (s *Scheduler) removeJobLocked() {
	if s.job == nil {
		return
	}
	s.job.cancel()
	<-s.job.done
	s.job = nil
}

func (s *Scheduler) run(ctx context.Context, j *job, period time.Duration) {
	defer close(j.done)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := s.puller.PullInternal()
			if res.Success {
				s.logger.Info(logging.CategoryScheduler, "auto_pull", res.Message, map[string]any{
					"job_id": j.id,
					"commit": res.CommitHash,
				})
			} else {
				s.logger.Error(logging.CategoryScheduler, "auto_pull", res.Message, map[string]any{
					"job_id": j.id,
				})
			}
		}
	}
}
