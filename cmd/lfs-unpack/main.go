package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gitlab.com/k00mi/lfs-pack/internal/config"
	"gitlab.com/k00mi/lfs-pack/internal/git"
	"gitlab.com/k00mi/lfs-pack/internal/lfs"
	"gitlab.com/k00mi/lfs-pack/internal/log"
	"gitlab.com/k00mi/lfs-pack/internal/unpacker"
	"gitlab.com/k00mi/lfs-pack/internal/version"
)

var (
	flagConfig  = flag.String("config", "", "Location of an optional config.toml")
	flagDir     = flag.String("dir", ".", "Repository root holding the packed archives")
	flagGlob    = flag.String("glob", config.DefaultArchivePrefix+"-*.tar.gz", "Pattern matching the archive files")
	flagBranch  = flag.String("branch", "", "Branch to check out after unpacking (skipped when empty)")
	flagVersion = flag.Bool("version", false, "Print version and exit")
)

func flagUsage() {
	fmt.Println(version.GetVersionString())
	fmt.Printf("Usage: %v [OPTIONS]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = flagUsage
	flag.Parse()

	// If invoked with -version
	if *flagVersion {
		fmt.Println(version.GetVersionString())
		os.Exit(0)
	}

	if flag.NArg() > 0 {
		flag.Usage()
		os.Exit(1)
	}

	if err := loadConfig(*flagConfig); err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log.Configure(config.Config.Logging.Format, config.Config.Logging.Level)

	if err := run(*flagDir, *flagGlob, *flagBranch); err != nil {
		logrus.WithError(err).Fatal("unpack failed")
	}
}

func loadConfig(path string) error {
	if path == "" {
		if err := config.Load(nil); err != nil {
			return err
		}
		return config.Validate()
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := config.Load(file); err != nil {
		return err
	}

	return config.Validate()
}

func run(dir, glob, branch string) error {
	store := lfs.NewStore(filepath.Join(dir, lfs.ObjectsDir))

	restored, err := unpacker.Unpack(dir, glob, store)
	if err != nil {
		return err
	}

	log.Default().WithField("objects", restored).Info("object store restored")

	if branch == "" {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := config.SetGitPath(); err != nil {
		return err
	}

	if err := git.Checkout(ctx, dir, branch); err != nil {
		return err
	}

	return git.LFSCheckout(ctx, dir)
}
