package lfs

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/k00mi/lfs-pack/internal/testhelper"
)

func TestObjectsStableOrder(t *testing.T) {
	dir, cleanup := testhelper.TempDir(t, t.Name())
	defer cleanup()

	store := NewStore(dir)

	for _, rel := range []string{"ff/ee/object3", "aa/bb/object1", "aa/cc/object2"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, filepath.Dir(rel)), 0755))
		testhelper.MustWriteFile(t, filepath.Join(dir, rel), []byte(rel))
	}

	objects, err := store.Objects()
	require.NoError(t, err)

	require.Equal(t, []Object{
		{Path: "aa/bb/object1", Size: int64(len("aa/bb/object1"))},
		{Path: "aa/cc/object2", Size: int64(len("aa/cc/object2"))},
		{Path: "ff/ee/object3", Size: int64(len("ff/ee/object3"))},
	}, objects)
}

func TestObjectsMissingStore(t *testing.T) {
	dir, cleanup := testhelper.TempDir(t, t.Name())
	defer cleanup()

	store := NewStore(filepath.Join(dir, "does", "not", "exist"))

	objects, err := store.Objects()
	require.NoError(t, err)
	require.Empty(t, objects)
}

func TestCreateIsAtomic(t *testing.T) {
	dir, cleanup := testhelper.TempDir(t, t.Name())
	defer cleanup()

	store := NewStore(dir)

	w, err := store.Create("ab/cd/newobject")
	require.NoError(t, err)

	_, err = io.Copy(w, strings.NewReader("object bytes"))
	require.NoError(t, err)

	require.False(t, store.Has("ab/cd/newobject"))
	require.NoError(t, w.Commit())
	require.True(t, store.Has("ab/cd/newobject"))

	require.Equal(t, "object bytes", string(testhelper.MustReadFile(t, store.Path("ab/cd/newobject"))))
}
