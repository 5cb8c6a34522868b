package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gitlab.com/k00mi/lfs-pack/internal/config"
	"gitlab.com/k00mi/lfs-pack/internal/log"
	"gitlab.com/k00mi/lfs-pack/internal/repack"
	"gitlab.com/k00mi/lfs-pack/internal/version"
)

var (
	flagConfig  = flag.String("config", "", "Location of an optional config.toml")
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
	config.ConfigureSentry(version.GetVersion())

	if err := config.SetGitPath(); err != nil {
		logrus.WithError(err).Fatal("git binary not found")
	}

	if err := repack.Run(config.Config); err != nil {
		config.CaptureError(err)
		logrus.WithError(err).Fatal("repack failed")
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
