package git

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/k00mi/lfs-pack/internal/testhelper"
)

func initTestRepo(t *testing.T, ctx context.Context) (string, func()) {
	dir, cleanup := testhelper.TempDir(t, t.Name())

	require.NoError(t, Run(ctx, dir, "init", "--quiet"))
	require.NoError(t, Run(ctx, dir, "config", "user.name", "lfs-pack tests"))
	require.NoError(t, Run(ctx, dir, "config", "user.email", "lfs-pack@example.com"))

	testhelper.MustWriteFile(t, filepath.Join(dir, "README"), []byte("test repo\n"))
	require.NoError(t, Run(ctx, dir, "add", "README"))
	require.NoError(t, Run(ctx, dir, "commit", "--quiet", "-m", "initial"))

	return dir, cleanup
}

func TestBranchExists(t *testing.T) {
	ctx, cancel := testhelper.Context()
	defer cancel()

	dir, cleanup := initTestRepo(t, ctx)
	defer cleanup()

	branch, err := CurrentBranch(ctx, dir)
	require.NoError(t, err)

	exists, err := BranchExists(ctx, dir, branch)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = BranchExists(ctx, dir, "no-such-branch")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestIsRepositoryRoot(t *testing.T) {
	ctx, cancel := testhelper.Context()
	defer cancel()

	dir, cleanup := initTestRepo(t, ctx)
	defer cleanup()

	isRoot, err := IsRepositoryRoot(ctx, dir)
	require.NoError(t, err)
	require.True(t, isRoot)

	plainDir, cleanupPlain := testhelper.TempDir(t, t.Name()+"-plain")
	defer cleanupPlain()

	isRoot, err = IsRepositoryRoot(ctx, plainDir)
	require.NoError(t, err)
	require.False(t, isRoot)
}

func TestOrphanCheckoutOfExistingBranch(t *testing.T) {
	ctx, cancel := testhelper.Context()
	defer cancel()

	dir, cleanup := initTestRepo(t, ctx)
	defer cleanup()

	original, err := CurrentBranch(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, Run(ctx, dir, "branch", "existing-pack"))

	// git refuses to recreate an existing branch as an orphan; a forced
	// re-pack has to delete the stale branch first.
	require.Error(t, CheckoutOrphan(ctx, dir, "existing-pack"))

	require.NoError(t, DeleteBranch(ctx, dir, "existing-pack"))
	require.NoError(t, CheckoutOrphan(ctx, dir, "existing-pack"))

	require.NoError(t, UnstageAll(ctx, dir))

	testhelper.MustWriteFile(t, filepath.Join(dir, "artifact"), []byte("payload"))
	require.NoError(t, Add(ctx, dir, "artifact"))
	require.NoError(t, Commit(ctx, dir, "packed"))

	exists, err := BranchExists(ctx, dir, "existing-pack")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, Checkout(ctx, dir, original))

	back, err := CurrentBranch(ctx, dir)
	require.NoError(t, err)
	require.Equal(t, original, back)
}

func TestPushForce(t *testing.T) {
	ctx, cancel := testhelper.Context()
	defer cancel()

	dir, cleanup := initTestRepo(t, ctx)
	defer cleanup()

	remoteDir, cleanupRemote := testhelper.TempDir(t, t.Name()+"-remote")
	defer cleanupRemote()

	require.NoError(t, Run(ctx, remoteDir, "init", "--bare", "--quiet"))
	require.NoError(t, Run(ctx, dir, "remote", "add", "origin", remoteDir))

	branch, err := CurrentBranch(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, Push(ctx, dir, "origin", branch, false))

	exists, err := BranchExists(ctx, remoteDir, branch)
	require.NoError(t, err)
	require.True(t, exists)

	// Rewriting the branch makes the remote ref non-fast-forward.
	require.NoError(t, Run(ctx, dir, "commit", "--quiet", "--amend", "-m", "rewritten"))

	require.Error(t, Push(ctx, dir, "origin", branch, false))
	require.NoError(t, Push(ctx, dir, "origin", branch, true))
}
