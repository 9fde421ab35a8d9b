// Package server exposes the admin HTTP API over chi.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sitekeeper/sitekeeper/pkg/config"
	"github.com/sitekeeper/sitekeeper/pkg/fsops"
	"github.com/sitekeeper/sitekeeper/pkg/gitrepo"
	"github.com/sitekeeper/sitekeeper/pkg/logging"
	"github.com/sitekeeper/sitekeeper/pkg/scheduler"
	"github.com/sitekeeper/sitekeeper/pkg/storage"
	"github.com/sitekeeper/sitekeeper/pkg/themes"
)

// Deps bundles the collaborators the server routes requests into.
type Deps struct {
	Config *config.Config
	Files  *fsops.Store
	Git    *gitrepo.Controller
	Sched  *scheduler.Scheduler
	Themes *themes.Store
	Audit  *storage.Store
	Logger *logging.Logger
}

// Server is the admin API server.
type Server struct {
	cfg    *config.Config
	files  *fsops.Store
	git    *gitrepo.Controller
	sched  *scheduler.Scheduler
	themes *themes.Store
	audit  *storage.Store
	logger *logging.Logger
	tokens *TokenManager
	http   *http.Server
}

// New assembles the server and its router.
func New(deps Deps) *Server {
	s := &Server{
		cfg:    deps.Config,
		files:  deps.Files,
		git:    deps.Git,
		sched:  deps.Sched,
		themes: deps.Themes,
		audit:  deps.Audit,
		logger: deps.Logger,
		tokens: NewTokenManager(deps.Config.Auth.JWTSecret, deps.Config.Auth.SessionTTL),
	}
	s.http = &http.Server{
		Addr:              deps.Config.Server.Bind,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the chi router. Exposed separately so tests can drive the
// handler stack without binding a socket.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.metricsMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.securityHeadersMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/api/auth/login", s.handleLogin)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAdmin)

		r.Get("/files", s.handleListFiles)
		r.Post("/files/move", s.handleMoveFile)
		r.Post("/files/upload", s.handleUpload)
		r.Get("/file", s.handleReadFile)
		r.Post("/file", s.handleWriteFile)
		r.Delete("/file", s.handleDeleteFile)

		r.Route("/git", func(r chi.Router) {
			r.Post("/setup", s.handleGitSetup)
			r.Post("/test", s.handleGitTest)
			r.Post("/pull", s.handleGitPull)
			r.Post("/force-pull", s.handleGitForcePull)
			r.Post("/push", s.handleGitPush)
			r.Post("/commit", s.handleGitCommit)
			r.Get("/status", s.handleGitStatus)
			r.Get("/history", s.handleGitHistory)
			r.Get("/auto-pull", s.handleGetAutoPull)
			r.Post("/auto-pull", s.handleSetAutoPull)
		})

		r.Route("/themes", func(r chi.Router) {
			r.Get("/", s.handleListThemes)
			r.Post("/", s.handleSaveTheme)
			r.Get("/{name}", s.handleGetTheme)
			r.Delete("/{name}", s.handleDeleteTheme)
		})

		r.Get("/audit", s.handleAudit)
		r.Get("/metrics", s.handleMetrics)
	})

	if s.cfg.Server.ServeSite {
		s.mountSite(r)
	}
	return r
}

// mountSite serves the managed site read-only at the root path.
func (s *Server) mountSite(r chi.Router) {
	fileServer := http.FileServer(http.Dir(s.cfg.Site.Root))
	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		fileServer.ServeHTTP(w, req)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Start runs the HTTP server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info(logging.CategoryServer, "start", "listening", map[string]any{"bind": s.cfg.Server.Bind})
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// recordAudit writes one audit row; failures are logged, never surfaced.
func (s *Server) recordAudit(r *http.Request, action, target string, success bool, detail string) {
	if s.audit == nil {
		return
	}
	actor := "admin"
	if r != nil && r.RemoteAddr != "" {
		actor = "admin@" + r.RemoteAddr
	}
	ev := storage.AuditEvent{Actor: actor, Action: action, Target: target, Success: success, Detail: detail}
	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
	}
	if err := s.audit.Record(ctx, ev); err != nil {
		s.logger.Warn(logging.CategoryServer, "audit_failed", "failed to record audit event", map[string]any{
			"action": action,
			"error":  err.Error(),
		})
	}
}
