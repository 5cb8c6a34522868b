package git

import "context"

// LFSPull fetches the LFS objects referenced by the current checkout and
// replaces pointer files with their content.
func LFSPull(ctx context.Context, dir string) error {
	return Run(ctx, dir, "lfs", "pull")
}

// LFSPrune drops local LFS objects that no current reference needs.
func LFSPrune(ctx context.Context, dir string) error {
	return Run(ctx, dir, "lfs", "prune")
}

// LFSCheckout replaces pointer files in the working tree with objects from
// the local store.
func LFSCheckout(ctx context.Context, dir string) error {
	return Run(ctx, dir, "lfs", "checkout")
}
