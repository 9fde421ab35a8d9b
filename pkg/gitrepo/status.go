package gitrepo

import (
	git "github.com/go-git/go-git/v5"
	apperrors "github.com/sitekeeper/sitekeeper/pkg/errors"
)

// FileChange pairs a path with its change kind.
type FileChange struct {
	Path   string `json:"path"`
	Status string `json:"status"`
}

// RepoStatus is a read-only snapshot of the working copy.
type RepoStatus struct {
	Branch       string       `json:"branch"`
	Commit       string       `json:"commit"`
	RemoteCommit string       `json:"remote_commit,omitempty"`
	RemoteURL    string       `json:"remote_url,omitempty"`
	Ahead        int          `json:"ahead"`
	Behind       int          `json:"behind"`
	HasChanges   bool         `json:"has_changes"`
	Staged       []FileChange `json:"staged"`
	Unstaged     []FileChange `json:"unstaged"`
	Untracked    []string     `json:"untracked"`
}

// Status inspects the repository without mutating it. Ahead/behind counts
// are computed against the last fetched origin/<branch>; a missing remote
// ref (nothing fetched yet) leaves them at zero.
func (c *Controller) Status() (*RepoStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	repo, err := c.open()
	if err != nil {
		return nil, err
	}
	st := &RepoStatus{
		Branch:    c.currentBranch(),
		Staged:    []FileChange{},
		Unstaged:  []FileChange{},
		Untracked: []string{},
	}
	if c.settings != nil {
		st.RemoteURL = c.settings.URL
	}
	if head, err := repo.Head(); err == nil {
		st.Commit = head.Hash().String()
		if head.Name().IsBranch() {
			st.Branch = head.Name().Short()
		}
	}
	if remoteHash, err := remoteTip(repo, st.Branch); err == nil {
		st.RemoteCommit = remoteHash.String()
		if ahead, behind, err := aheadBehind(repo, st.Branch); err == nil {
			st.Ahead = ahead
			st.Behind = behind
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeGitOperation, "opening worktree")
	}
	status, err := wt.Status()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeGitOperation, "reading worktree status")
	}
	st.HasChanges = !status.IsClean()
	for path, fs := range status {
		if fs.Worktree == git.Untracked {
			st.Untracked = append(st.Untracked, path)
			continue
		}
		if kind := stagingKind(fs.Staging); kind != "" {
			st.Staged = append(st.Staged, FileChange{Path: path, Status: kind})
		}
		if kind := worktreeKind(fs.Worktree); kind != "" {
			st.Unstaged = append(st.Unstaged, FileChange{Path: path, Status: kind})
		}
	}
	return st, nil
}

func stagingKind(code git.StatusCode) string {
	switch code {
	case git.Added:
		return "new"
	case git.Modified:
		return "modified"
	case git.Deleted:
		return "deleted"
	case git.Renamed:
		return "renamed"
	default:
		return ""
	}
}

func worktreeKind(code git.StatusCode) string {
	switch code {
	case git.Modified:
		return "modified"
	case git.Deleted:
		return "deleted"
	case git.Renamed:
		return "renamed"
	default:
		return ""
	}
}
