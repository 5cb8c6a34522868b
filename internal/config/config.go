package config

import (
	"fmt"
	"io"
	"os/exec"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultMaxBinBytes is the archive size bound applied when the
	// config does not override it.
	DefaultMaxBinBytes = 256 * 1024 * 1024

	// DefaultBranch is the orphan branch that receives the packed
	// archives.
	DefaultBranch = "lfs-pack"

	// DefaultArchivePrefix is the basename prefix of emitted archives.
	DefaultArchivePrefix = "lfs-pack"
)

// Config stores the global configuration
var Config Cfg

// Cfg is a container for all config derived from the config file and the
// environment.
type Cfg struct {
	Git     Git     `toml:"git" envconfig:"git"`
	Pack    Pack    `toml:"pack" envconfig:"pack"`
	Logging Logging `toml:"logging" envconfig:"logging"`
}

// Git contains the settings for the Git executable
type Git struct {
	BinPath string `toml:"bin_path" split_words:"true"`
}

// Pack contains the settings steering archive creation and publication.
type Pack struct {
	Branch      string `toml:"branch"`
	Remote      string `toml:"remote"`
	Prefix      string `toml:"prefix"`
	MaxBinBytes int64  `toml:"max_bin_bytes" split_words:"true"`
	SkipPush    bool   `toml:"skip_push" split_words:"true"`

	// Force bypasses the refusal to run when the packed branch already
	// exists. Usually set from the environment: LFS_PACK_PACK_FORCE=true.
	Force bool `toml:"force"`
}

// Logging contains the logging configuration
type Logging struct {
	Format    string `toml:"format"`
	Level     string `toml:"level"`
	SentryDSN string `toml:"sentry_dsn" envconfig:"sentry_dsn"`
}

// Load initializes the Config variable from file and the environment.
// Environment variables take precedence over the file.
func Load(file io.Reader) error {
	Config = Cfg{}

	if file != nil {
		if _, err := toml.DecodeReader(file, &Config); err != nil {
			return fmt.Errorf("load toml: %v", err)
		}
	}

	if err := envconfig.Process("lfs_pack", &Config); err != nil {
		return fmt.Errorf("envconfig: %v", err)
	}

	Config.setDefaults()

	return nil
}

// Validate checks the loaded Config for obvious mistakes.
func Validate() error {
	if Config.Pack.MaxBinBytes <= 0 {
		return fmt.Errorf("pack.max_bin_bytes must be positive, got %d", Config.Pack.MaxBinBytes)
	}

	if Config.Pack.Branch == "" {
		return fmt.Errorf("pack.branch is empty")
	}

	return nil
}

func (c *Cfg) setDefaults() {
	if c.Pack.Branch == "" {
		c.Pack.Branch = DefaultBranch
	}

	if c.Pack.Remote == "" {
		c.Pack.Remote = "origin"
	}

	if c.Pack.Prefix == "" {
		c.Pack.Prefix = DefaultArchivePrefix
	}

	if c.Pack.MaxBinBytes == 0 {
		c.Pack.MaxBinBytes = DefaultMaxBinBytes
	}
}

// SetGitPath populates the variable GitPath with the path to the `git`
// binary. It warns if no path was specified in the configuration.
func SetGitPath() error {
	if Config.Git.BinPath != "" {
		return nil
	}

	resolvedPath, err := exec.LookPath("git")
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"resolvedPath": resolvedPath,
	}).Warn("git path not configured. Using default path resolution")

	Config.Git.BinPath = resolvedPath

	return nil
}
