package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sitekeeper/sitekeeper/pkg/config"
	"github.com/sitekeeper/sitekeeper/pkg/fsops"
	"github.com/sitekeeper/sitekeeper/pkg/gitrepo"
	"github.com/sitekeeper/sitekeeper/pkg/logging"
	"github.com/sitekeeper/sitekeeper/pkg/scheduler"
	"github.com/sitekeeper/sitekeeper/pkg/server"
	"github.com/sitekeeper/sitekeeper/pkg/storage"
	"github.com/sitekeeper/sitekeeper/pkg/themes"
)

// Version information - set via ldflags during build
var (
	version = "1.0.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "path to YAML config file")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("sitekeeper %s (%s)\n", version, commit)
		return
	}

	stdlog := log.New(os.Stderr, "[sitekeeper] ", log.LstdFlags)
	if err := run(*configPath, stdlog); err != nil {
		stdlog.Fatalf("fatal: %v", err)
	}
}

func run(configPath string, stdlog *log.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.LogsDir())
	if err != nil {
		return fmt.Errorf("opening logs: %w", err)
	}
	defer logger.Close()

	root, err := fsops.NewRoot(cfg.Site.Root)
	if err != nil {
		return fmt.Errorf("preparing site root: %w", err)
	}
	files := fsops.NewStore(root)

	audit, err := storage.New(cfg.AuditDBPath())
	if err != nil {
		return fmt.Errorf("opening audit store: %w", err)
	}
	defer audit.Close()

	git := gitrepo.NewController(gitrepo.Options{
		Root:          cfg.Site.Root,
		SettingsPath:  filepath.Join(cfg.Site.DataDir, "git_settings.json"),
		DefaultBranch: cfg.Git.DefaultBranch,
		Author:        cfg.Git.CommitAuthor,
		Email:         cfg.Git.CommitEmail,
		Timeout:       cfg.Git.NetworkTimeout,
		Logger:        logger,
	})

	sched := scheduler.New(cfg.AutoPullConfigPath(), git, logger)
	sched.Start()
	defer sched.Stop()

	themeStore := themes.NewStore(cfg.ThemesDir(), filepath.Join(cfg.Site.Root, ".themes"), logger)

	srv := server.New(server.Deps{
		Config: cfg,
		Files:  files,
		Git:    git,
		Sched:  sched,
		Themes: themeStore,
		Audit:  audit,
		Logger: logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stdlog.Printf("listening on %s (site root %s)", cfg.Server.Bind, cfg.Site.Root)
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		stdlog.Println("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
