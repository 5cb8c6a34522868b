package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/k00mi/lfs-pack/internal/config"
	"gitlab.com/k00mi/lfs-pack/internal/testhelper"
)

func TestLoadConfigFile(t *testing.T) {
	dir, cleanup := testhelper.TempDir(t, t.Name())
	defer cleanup()

	path := filepath.Join(dir, "config.toml")
	testhelper.MustWriteFile(t, path, []byte(`
[git]
bin_path = "/usr/local/bin/git"

[logging]
level = "debug"
`))

	require.NoError(t, loadConfig(path))

	require.Equal(t, "/usr/local/bin/git", config.Config.Git.BinPath)
	require.Equal(t, "debug", config.Config.Logging.Level)
}

func TestLoadConfigWithoutFile(t *testing.T) {
	require.NoError(t, loadConfig(""))
	require.Equal(t, config.DefaultBranch, config.Config.Pack.Branch)
}

func TestLoadConfigMissingFile(t *testing.T) {
	require.Error(t, loadConfig("/no/such/config.toml"))
}
