package repack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gitlab.com/k00mi/lfs-pack/internal/bootscript"
	"gitlab.com/k00mi/lfs-pack/internal/config"
	"gitlab.com/k00mi/lfs-pack/internal/git"
	"gitlab.com/k00mi/lfs-pack/internal/lfs"
	"gitlab.com/k00mi/lfs-pack/internal/log"
	"gitlab.com/k00mi/lfs-pack/internal/packer"
)

// Run packs the repository in the current working directory onto the
// configured orphan branch. Every step is fatal on failure; a failed run
// leaves no transactional rollback and is recovered by cleaning up and
// retrying from scratch.
func Run(cfg config.Cfg) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := log.Default().WithField("run_id", uuid.New().String())

	repoRoot, err := os.Getwd()
	if err != nil {
		return err
	}

	if err := checkPreconditions(ctx, repoRoot, cfg); err != nil {
		return err
	}

	originalBranch, err := git.CurrentBranch(ctx, repoRoot)
	if err != nil {
		return errors.Wrap(err, "determining current branch")
	}

	logger = logger.WithFields(logrus.Fields{
		"branch":        originalBranch,
		"packed_branch": cfg.Pack.Branch,
	})

	logger.Info("pulling LFS objects")
	if err := git.LFSPull(ctx, repoRoot); err != nil {
		return errors.Wrap(err, "git lfs pull")
	}

	logger.Info("pruning unreferenced LFS objects")
	if err := git.LFSPrune(ctx, repoRoot); err != nil {
		return errors.Wrap(err, "git lfs prune")
	}

	if pointers, err := git.ScanPointers(repoRoot); err != nil {
		return errors.Wrap(err, "scanning for stale pointers")
	} else if len(pointers) > 0 {
		logger.WithField("pointers", len(pointers)).Warn(
			"working tree still contains LFS pointer files; their objects were not fetched and will not be packed")
	}

	store := lfs.NewStore(filepath.Join(repoRoot, lfs.ObjectsDir))

	objects, err := store.Objects()
	if err != nil {
		return err
	}

	logger.WithField("objects", len(objects)).Info("packing object store")

	archives, packCount, err := packer.Pack(store, objects, packer.Options{
		Dir:         repoRoot,
		Prefix:      cfg.Pack.Prefix,
		MaxBinBytes: cfg.Pack.MaxBinBytes,
	})
	if err != nil {
		return err
	}

	params := bootscript.Params{
		Branch:      originalBranch,
		PackCount:   packCount,
		ArchiveGlob: cfg.Pack.Prefix + "-*.tar.gz",
		StoreDir:    ".git/lfs/objects",
	}
	if err := bootscript.Render(repoRoot, params); err != nil {
		return err
	}

	artifacts := []string{bootscript.ShellScript, bootscript.BatchScript}
	for _, a := range archives {
		artifacts = append(artifacts, a.Name)
	}

	if err := publish(ctx, repoRoot, originalBranch, cfg, artifacts, packCount, len(archives)); err != nil {
		return err
	}

	// The artifacts are committed on the packed branch; drop them from
	// the restored working tree.
	for _, name := range artifacts {
		if err := os.Remove(filepath.Join(repoRoot, name)); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "removing %q", name)
		}
	}

	printSummary(archives, packCount)

	logger.WithFields(logrus.Fields{
		"archives":   len(archives),
		"pack_count": packCount,
	}).Info("repack complete")

	return nil
}

func checkPreconditions(ctx context.Context, repoRoot string, cfg config.Cfg) error {
	isRoot, err := git.IsRepositoryRoot(ctx, repoRoot)
	if err != nil {
		return err
	}
	if !isRoot {
		return fmt.Errorf("%q is not the root of a git repository", repoRoot)
	}

	exists, err := git.BranchExists(ctx, repoRoot, cfg.Pack.Branch)
	if err != nil {
		return err
	}
	if exists && !cfg.Pack.Force {
		return fmt.Errorf("branch %q already exists; set LFS_PACK_PACK_FORCE=true to pack anyway", cfg.Pack.Branch)
	}

	return nil
}

// publish commits the archives and boot scripts to the orphan branch,
// pushes it, and returns to the original branch.
func publish(ctx context.Context, repoRoot, originalBranch string, cfg config.Cfg, artifacts []string, packCount, archiveCount int) error {
	// The precondition check only lets an existing packed branch through
	// when the force override is set. `git checkout --orphan` refuses to
	// create an existing branch, so the stale one has to go first.
	exists, err := git.BranchExists(ctx, repoRoot, cfg.Pack.Branch)
	if err != nil {
		return err
	}
	if exists {
		if err := git.DeleteBranch(ctx, repoRoot, cfg.Pack.Branch); err != nil {
			return errors.Wrap(err, "deleting stale packed branch")
		}
	}

	if err := git.CheckoutOrphan(ctx, repoRoot, cfg.Pack.Branch); err != nil {
		return errors.Wrap(err, "creating orphan branch")
	}

	if err := git.UnstageAll(ctx, repoRoot); err != nil {
		return errors.Wrap(err, "clearing index")
	}

	if err := git.Add(ctx, repoRoot, artifacts...); err != nil {
		return errors.Wrap(err, "staging archives")
	}

	message := fmt.Sprintf("Pack %d LFS objects into %d archives", packCount, archiveCount)
	if err := git.Commit(ctx, repoRoot, message); err != nil {
		return errors.Wrap(err, "committing archives")
	}

	if !cfg.Pack.SkipPush {
		if err := git.Push(ctx, repoRoot, cfg.Pack.Remote, cfg.Pack.Branch, cfg.Pack.Force); err != nil {
			return errors.Wrap(err, "pushing packed branch")
		}
	}

	return errors.Wrap(git.Checkout(ctx, repoRoot, originalBranch), "restoring original branch")
}

func printSummary(archives []packer.Archive, packCount int) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Archive", "Objects", "Payload Bytes"})

	for _, a := range archives {
		table.Append([]string{a.Name, strconv.Itoa(a.Objects), strconv.FormatInt(a.Size, 10)})
	}

	table.SetFooter([]string{"total", strconv.Itoa(packCount), ""})
	table.Render()
}
