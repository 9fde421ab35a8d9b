package server

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/sitekeeper/sitekeeper/pkg/gitrepo"
	"github.com/sitekeeper/sitekeeper/pkg/logging"
	"github.com/sitekeeper/sitekeeper/pkg/scheduler"
)

type gitSetupRequest struct {
	URL      string `json:"url"`
	Branch   string `json:"branch,omitempty"`
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`
}

func (req *gitSetupRequest) credentials() *gitrepo.Credentials {
	if req.Token == "" {
		return nil
	}
	return &gitrepo.Credentials{Username: req.Username, Token: req.Token}
}

// Git operation outcomes are reported in the body and clients branch on the
// success flag; the HTTP status stays 200 except for network timeouts,
// which surface as 504 so unattended callers can back off.
func (s *Server) respondGitResult(w http.ResponseWriter, r *http.Request, operation string, res gitrepo.Result) {
	observeGitResult(operation, res.Success)
	s.recordAudit(r, "git."+operation, "", res.Success, res.Message)
	status := http.StatusOK
	if res.TimedOut() {
		status = http.StatusGatewayTimeout
	}
	respondJSON(w, status, res)
}

func (s *Server) handleGitSetup(w http.ResponseWriter, r *http.Request) {
	var req gitSetupRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondStatusError(w, status, err.Error())
		return
	}
	res := s.git.Setup(req.URL, req.Branch, req.credentials())
	s.respondGitResult(w, r, "setup", res)
}

func (s *Server) handleGitTest(w http.ResponseWriter, r *http.Request) {
	var req gitSetupRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondStatusError(w, status, err.Error())
		return
	}
	res := s.git.TestConnection(req.URL, req.credentials())
	s.respondGitResult(w, r, "test_connection", res)
}

func (s *Server) handleGitPull(w http.ResponseWriter, r *http.Request) {
	s.respondGitResult(w, r, "pull", s.git.Pull())
}

func (s *Server) handleGitForcePull(w http.ResponseWriter, r *http.Request) {
	s.respondGitResult(w, r, "force_pull", s.git.ForcePull())
}

func (s *Server) handleGitPush(w http.ResponseWriter, r *http.Request) {
	s.respondGitResult(w, r, "push", s.git.Push())
}

type commitRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleGitCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if status, err := decodeJSONBody(w, r, &req, maxBodyBytesTiny); err != nil {
		respondStatusError(w, status, err.Error())
		return
	}
	s.respondGitResult(w, r, "commit", s.git.Commit(req.Message))
}

func (s *Server) handleGitStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.git.Status()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// handleGitHistory returns recent git events from the operations log.
func (s *Server) handleGitHistory(w http.ResponseWriter, r *http.Request) {
	count := parseIntDefault(r.URL.Query().Get("count"), 50)
	logPath := filepath.Join(s.cfg.LogsDir(), "ops.jsonl")
	events, err := logging.ReadRecentEvents(logPath, logging.CategoryGit, count)
	if err != nil {
		respondStatusError(w, http.StatusInternalServerError, "failed to read history: "+err.Error())
		return
	}
	if events == nil {
		events = []logging.Event{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleGetAutoPull(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.sched.Config())
}

func (s *Server) handleSetAutoPull(w http.ResponseWriter, r *http.Request) {
	var cfg scheduler.Config
	if status, err := decodeJSONBody(w, r, &cfg, maxBodyBytesTiny); err != nil {
		respondStatusError(w, status, err.Error())
		return
	}
	if err := s.sched.UpdateConfig(cfg); err != nil {
		respondStatusError(w, http.StatusInternalServerError, "failed to update auto-pull config: "+err.Error())
		return
	}
	s.recordAudit(r, "git.auto_pull_config", "", true, "")
	respondJSON(w, http.StatusOK, s.sched.Config())
}

func parseIntDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return def
}
