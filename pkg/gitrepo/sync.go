package gitrepo

import (
	"errors"
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Pull is the interactive, safe path: it refuses on a dirty tree, fetches,
// and fast-forwards only. Local commits that origin does not have block the
// pull; the operator must push first or use ForcePull.
func (c *Controller) Pull() Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	repo, err := c.open()
	if err != nil {
		return c.failure("pull", "opening repository", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return c.failure("pull", "opening worktree", err)
	}
	status, err := wt.Status()
	if err != nil {
		return c.failure("pull", "reading status", err)
	}
	if !status.IsClean() {
		return Result{Success: false, Message: "Uncommitted changes present; commit or discard them before pulling"}
	}

	if err := c.fetch(repo); err != nil {
		return c.failure("pull", "fetching from origin", err)
	}

	branch := c.currentBranch()
	remoteHash, err := remoteTip(repo, branch)
	if err != nil {
		return c.failure("pull", "resolving origin/"+branch, err)
	}
	ahead, behind, err := aheadBehind(repo, branch)
	if err != nil {
		return c.failure("pull", "comparing with origin/"+branch, err)
	}
	if ahead == 0 && behind == 0 {
		return c.success("pull", "Already up to date", headHash(repo))
	}
	if ahead > 0 {
		return Result{Success: false, Message: fmt.Sprintf(
			"Local branch is %d commit(s) ahead of origin/%s; push first or use force pull", ahead, branch)}
	}

	branchRef := plumbing.NewBranchReferenceName(branch)
	if err := repo.Storer.SetReference(plumbing.NewHashReference(branchRef, remoteHash)); err != nil {
		return c.failure("pull", "moving branch reference", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: branchRef, Force: true}); err != nil {
		return c.failure("pull", "checking out "+branch, err)
	}
	return c.success("pull", fmt.Sprintf("Fast-forwarded %d commit(s)", behind), remoteHash.String())
}

// ForcePull hard-resets the working tree to origin/<branch>, discarding any
// local commits and uncommitted changes. Confirmation is the caller's job.
func (c *Controller) ForcePull() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetToOrigin("force_pull")
}

// PullInternal is the scheduler path. It shares ForcePull's hard-reset
// semantics so unattended pulls never wedge on a dirty tree.
func (c *Controller) PullInternal() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetToOrigin("auto_pull")
}

// resetToOrigin fetches and hard-resets to origin/<branch>. Callers hold mu.
func (c *Controller) resetToOrigin(op string) Result {
	repo, err := c.open()
	if err != nil {
		return c.failure(op, "opening repository", err)
	}
	if err := c.fetch(repo); err != nil {
		return c.failure(op, "fetching from origin", err)
	}
	branch := c.currentBranch()
	remoteHash, err := remoteTip(repo, branch)
	if err != nil {
		return c.failure(op, "resolving origin/"+branch, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return c.failure(op, "opening worktree", err)
	}
	if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: remoteHash}); err != nil {
		return c.failure(op, "resetting to origin/"+branch, err)
	}
	return c.success(op, "Working tree reset to origin/"+branch, remoteHash.String())
}

// fetch updates remote-tracking refs from origin. Already-up-to-date is not
// an error.
func (c *Controller) fetch(repo *git.Repository) error {
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return err
	}
	ctx, cancel := c.netContext()
	defer cancel()
	err = remote.FetchContext(ctx, &git.FetchOptions{
		Auth:  c.auth(),
		Force: true,
	})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil
	}
	return err
}

func remoteTip(repo *git.Repository, branch string) (plumbing.Hash, error) {
	ref, err := repo.Reference(plumbing.NewRemoteReferenceName(git.DefaultRemoteName, branch), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("origin/%s not found: %w", branch, err)
	}
	return ref.Hash(), nil
}

// aheadBehind counts commits unique to the local branch (ahead) and unique
// to origin/<branch> (behind), relative to their merge base.
func aheadBehind(repo *git.Repository, branch string) (int, int, error) {
	head, err := repo.Head()
	if err != nil {
		return 0, 0, err
	}
	localHash := head.Hash()
	remoteHash, err := remoteTip(repo, branch)
	if err != nil {
		return 0, 0, err
	}
	if localHash == remoteHash {
		return 0, 0, nil
	}
	local, err := repo.CommitObject(localHash)
	if err != nil {
		return 0, 0, err
	}
	remote, err := repo.CommitObject(remoteHash)
	if err != nil {
		return 0, 0, err
	}
	bases, err := local.MergeBase(remote)
	if err != nil {
		return 0, 0, err
	}
	stop := make(map[plumbing.Hash]bool, len(bases))
	for _, b := range bases {
		stop[b.Hash] = true
	}
	ahead, err := countExclusive(repo, localHash, stop)
	if err != nil {
		return 0, 0, err
	}
	behind, err := countExclusive(repo, remoteHash, stop)
	if err != nil {
		return 0, 0, err
	}
	return ahead, behind, nil
}

// countExclusive walks parents from tip, counting commits until the walk
// reaches a stop hash (the merge base set).
func countExclusive(repo *git.Repository, tip plumbing.Hash, stop map[plumbing.Hash]bool) (int, error) {
	seen := map[plumbing.Hash]bool{}
	queue := []plumbing.Hash{tip}
	count := 0
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if seen[h] || stop[h] {
			continue
		}
		seen[h] = true
		count++
		commit, err := repo.CommitObject(h)
		if err != nil {
			return 0, err
		}
		queue = append(queue, commit.ParentHashes...)
	}
	return count, nil
}
