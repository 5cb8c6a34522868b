package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gitlab.com/k00mi/lfs-pack/internal/command"
)

// IsRepositoryRoot reports whether dir is the top level of a git working
// tree. It requires a `.git` entry so that running from a subdirectory of
// a repository is rejected too.
func IsRepositoryRoot(ctx context.Context, dir string) (bool, error) {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	topLevel, err := Output(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return false, err
	}

	resolvedDir, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return false, err
	}

	resolvedTop, err := filepath.EvalSymlinks(topLevel)
	if err != nil {
		return false, err
	}

	return resolvedDir == resolvedTop, nil
}

// CurrentBranch returns the branch HEAD points at.
func CurrentBranch(ctx context.Context, dir string) (string, error) {
	return Output(ctx, dir, "symbolic-ref", "--short", "HEAD")
}

// BranchExists reports whether a local branch of the given name exists.
func BranchExists(ctx context.Context, dir, branch string) (bool, error) {
	err := Run(ctx, dir, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	if err == nil {
		return true, nil
	}

	// show-ref exits with 1 when the ref does not exist
	if status, ok := command.ExitStatus(err); ok && status == 1 {
		return false, nil
	}

	return false, err
}

// CheckoutOrphan switches to a new orphan branch. The working tree and the
// index are carried over; the caller decides what to commit. Git refuses
// to create the branch if it already exists; see DeleteBranch.
func CheckoutOrphan(ctx context.Context, dir, branch string) error {
	return Run(ctx, dir, "checkout", "--orphan", branch)
}

// DeleteBranch removes a local branch regardless of its merge state. The
// branch must not be checked out.
func DeleteBranch(ctx context.Context, dir, branch string) error {
	return Run(ctx, dir, "branch", "-D", branch)
}

// UnstageAll removes every entry from the index without touching the
// working tree.
func UnstageAll(ctx context.Context, dir string) error {
	return Run(ctx, dir, "rm", "-r", "--cached", "--quiet", ".")
}

// Add stages the given paths.
func Add(ctx context.Context, dir string, paths ...string) error {
	return Run(ctx, dir, append([]string{"add", "--"}, paths...)...)
}

// Commit records the staged changes.
func Commit(ctx context.Context, dir, message string) error {
	return Run(ctx, dir, "commit", "--quiet", "-m", message)
}

// Push publishes branch to remote, setting the upstream. A forced push is
// needed when the branch replaces an earlier packed branch, since the
// remote ref will not fast-forward.
func Push(ctx context.Context, dir, remote, branch string, force bool) error {
	args := []string{"push", "--set-upstream"}
	if force {
		args = append(args, "--force")
	}

	return Run(ctx, dir, append(args, remote, fmt.Sprintf("%s:%s", branch, branch))...)
}

// Checkout force-switches the working tree to branch.
func Checkout(ctx context.Context, dir, branch string) error {
	return Run(ctx, dir, "checkout", "-f", branch)
}
