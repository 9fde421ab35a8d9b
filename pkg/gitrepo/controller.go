// Package gitrepo controls the git working copy that backs the managed site.
// All operations are serialized behind a single mutex because git's on-disk
// index is not safe under concurrent writers; network calls run under a
// bounded timeout so unattended pulls cannot hang forever.
package gitrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	apperrors "github.com/sitekeeper/sitekeeper/pkg/errors"
	"github.com/sitekeeper/sitekeeper/pkg/logging"
)

// Credentials carries optional username/token auth for HTTPS remotes. A nil
// pointer means the remote is accessed anonymously.
type Credentials struct {
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Settings is the persisted remote configuration established by Setup.
type Settings struct {
	URL         string       `json:"url"`
	Branch      string       `json:"branch"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

// Result is the uniform outcome of every mutating git operation. Callers
// branch on Success; Message is human-readable and always set. Code
// classifies failures so programmatic callers can tell a network timeout
// from a generic git failure.
type Result struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	CommitHash string             `json:"commit_hash,omitempty"`
	Code       apperrors.ErrorCode `json:"code,omitempty"`
}

// TimedOut reports whether the operation failed on the network deadline.
func (r Result) TimedOut() bool {
	return r.Code == apperrors.ErrCodeGitTimeout
}

// Options configures a Controller.
type Options struct {
	Root          string
	SettingsPath  string
	DefaultBranch string
	Author        string
	Email         string
	Timeout       time.Duration
	Logger        *logging.Logger
}

// Controller owns the working copy at Root.
type Controller struct {
	mu       sync.Mutex
	root     string
	path     string // settings file
	branch   string
	author   string
	email    string
	timeout  time.Duration
	logger   *logging.Logger
	settings *Settings
}

// NewController loads any persisted settings and returns a ready controller.
// A missing or corrupt settings file is not an error; setup simply has not
// happened yet.
func NewController(opts Options) *Controller {
	c := &Controller{
		root:    opts.Root,
		path:    opts.SettingsPath,
		branch:  opts.DefaultBranch,
		author:  opts.Author,
		email:   opts.Email,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
	if c.branch == "" {
		c.branch = "main"
	}
	if c.timeout <= 0 {
		c.timeout = 60 * time.Second
	}
	if data, err := os.ReadFile(c.path); err == nil {
		var s Settings
		if json.Unmarshal(data, &s) == nil && s.URL != "" {
			c.settings = &s
		}
	}
	return c
}

// Branch returns the branch the controller tracks.
func (c *Controller) Branch() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentBranch()
}

func (c *Controller) currentBranch() string {
	if c.settings != nil && c.settings.Branch != "" {
		return c.settings.Branch
	}
	return c.branch
}

func (c *Controller) auth() *githttp.BasicAuth {
	if c.settings == nil {
		return nil
	}
	return basicAuth(c.settings.Credentials)
}

func basicAuth(creds *Credentials) *githttp.BasicAuth {
	if creds == nil || creds.Token == "" {
		return nil
	}
	user := creds.Username
	if user == "" {
		user = "git"
	}
	return &githttp.BasicAuth{Username: user, Password: creds.Token}
}

func (c *Controller) netContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// failure builds a failed Result, folding the underlying error into the
// message. A deadline error carries the timeout code so callers can treat
// it differently from a generic git failure.
func (c *Controller) failure(op, msg string, err error) Result {
	full := msg
	code := apperrors.ErrCodeGitOperation
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			full = fmt.Sprintf("%s: timed out after %s", msg, c.timeout)
			code = apperrors.ErrCodeGitTimeout
		} else {
			full = fmt.Sprintf("%s: %v", msg, err)
			if appErr := apperrors.GetCode(err); appErr == apperrors.ErrCodeNotFound {
				code = apperrors.ErrCodeNotFound
			}
		}
	}
	c.logger.Error(logging.CategoryGit, op, full, map[string]any{"code": string(code)})
	return Result{Success: false, Message: full, Code: code}
}

func (c *Controller) success(op, msg, hash string) Result {
	details := map[string]any{}
	if hash != "" {
		details["commit"] = hash
	}
	c.logger.Info(logging.CategoryGit, op, msg, details)
	return Result{Success: true, Message: msg, CommitHash: hash}
}

func (c *Controller) saveSettings(s *Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

// open returns the repository at Root, or an error if setup never happened.
func (c *Controller) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(c.root)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, apperrors.New(apperrors.ErrCodeNotFound, "no git repository configured")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeGitOperation, "opening repository")
	}
	return repo, nil
}

// Setup clones the remote into Root, or reconciles the origin URL when Root
// already holds a repository. A non-empty Root without a .git directory is
// refused rather than overwritten.
func (c *Controller) Setup(url, branch string, creds *Credentials) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if url == "" {
		return c.failure("setup", "repository URL is required", nil)
	}
	if branch == "" {
		branch = c.branch
	}
	settings := &Settings{URL: url, Branch: branch, Credentials: creds}

	if repo, err := git.PlainOpen(c.root); err == nil {
		if err := reconcileOrigin(repo, url); err != nil {
			return c.failure("setup", "updating origin remote", err)
		}
		c.settings = settings
		if err := c.saveSettings(settings); err != nil {
			return c.failure("setup", "saving git settings", err)
		}
		return c.success("setup", "Repository already present; origin remote updated", headHash(repo))
	}

	entries, err := os.ReadDir(c.root)
	if err != nil && !os.IsNotExist(err) {
		return c.failure("setup", "inspecting site directory", err)
	}
	if len(entries) > 0 {
		return c.failure("setup", "Directory exists but is not a Git repository", nil)
	}

	ctx, cancel := c.netContext()
	defer cancel()
	repo, err := git.PlainCloneContext(ctx, c.root, false, &git.CloneOptions{
		URL:           url,
		Auth:          basicAuth(creds),
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
	})
	if err != nil {
		return c.failure("setup", "cloning repository", err)
	}
	c.settings = settings
	if err := c.saveSettings(settings); err != nil {
		return c.failure("setup", "saving git settings", err)
	}
	return c.success("setup", "Repository cloned", headHash(repo))
}

func reconcileOrigin(repo *git.Repository, url string) error {
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err == nil {
		urls := remote.Config().URLs
		if len(urls) > 0 && urls[0] == url {
			return nil
		}
		if err := repo.DeleteRemote(git.DefaultRemoteName); err != nil {
			return err
		}
	}
	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{url},
	})
	return err
}

// TestConnection checks that the remote is reachable with the given
// credentials. It lists remote refs against in-memory storage and never
// touches the working copy.
func (c *Controller) TestConnection(url string, creds *Credentials) Result {
	if url == "" {
		return c.failure("test_connection", "repository URL is required", nil)
	}
	ctx, cancel := c.netContext()
	defer cancel()
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{url},
	})
	if _, err := remote.ListContext(ctx, &git.ListOptions{Auth: basicAuth(creds)}); err != nil {
		return c.failure("test_connection", "connection failed", err)
	}
	return c.success("test_connection", "Connection successful", "")
}

// Commit stages every working-tree change and commits it with the configured
// synthetic author. A clean tree reports failure with a "nothing to commit"
// message rather than creating an empty commit.
func (c *Controller) Commit(message string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	repo, err := c.open()
	if err != nil {
		return c.failure("commit", "opening repository", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return c.failure("commit", "opening worktree", err)
	}
	status, err := wt.Status()
	if err != nil {
		return c.failure("commit", "reading status", err)
	}
	if status.IsClean() {
		return Result{Success: false, Message: "Nothing to commit"}
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return c.failure("commit", "staging changes", err)
	}
	if message == "" {
		message = "Update site content"
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: c.author, Email: c.email, When: time.Now()},
	})
	if err != nil {
		return c.failure("commit", "creating commit", err)
	}
	return c.success("commit", "Changes committed", hash.String())
}

// Push uploads the local branch to origin under the same name. Uncommitted
// changes block the push, matching the interactive pull safety rule.
func (c *Controller) Push() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	repo, err := c.open()
	if err != nil {
		return c.failure("push", "opening repository", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return c.failure("push", "opening worktree", err)
	}
	status, err := wt.Status()
	if err != nil {
		return c.failure("push", "reading status", err)
	}
	if !status.IsClean() {
		return Result{Success: false, Message: "Uncommitted changes present; commit or discard them before pushing"}
	}

	branch := c.currentBranch()
	refspec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	ctx, cancel := c.netContext()
	defer cancel()
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: git.DefaultRemoteName,
		RefSpecs:   []gitconfig.RefSpec{refspec},
		Auth:       c.auth(),
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return c.success("push", "Already up to date", headHash(repo))
	}
	if err != nil {
		return c.failure("push", "pushing to origin", err)
	}
	return c.success("push", "Pushed to origin/"+branch, headHash(repo))
}

func headHash(repo *git.Repository) string {
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}
