package testhelper

import (
	"context"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// TempDir creates a throwaway directory together with a cleanup function.
func TempDir(t *testing.T, prefix string) (string, func()) {
	dir, err := ioutil.TempDir("", prefix)
	require.NoError(t, err)

	return dir, func() { os.RemoveAll(dir) }
}

// Context returns a cancellable context.
func Context() (context.Context, func()) {
	return context.WithCancel(context.Background())
}

// ContextWithoutDone returns a context that can never be cancelled, for
// tests exercising guards against such contexts.
func ContextWithoutDone() context.Context {
	return context.Background()
}

// MustReadFile returns the content of a file or fails at once.
func MustReadFile(t *testing.T, filename string) []byte {
	content, err := ioutil.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}

	return content
}

// MustWriteFile writes content to filename or fails at once.
func MustWriteFile(t *testing.T, filename string, content []byte) {
	require.NoError(t, ioutil.WriteFile(filename, content, 0644))
}

// AssertFileNotExists asserts that there is nothing at path.
func AssertFileNotExists(t *testing.T, path string) {
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "file %q should not exist", path)
}
