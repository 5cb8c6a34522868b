package packer

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gitlab.com/k00mi/lfs-pack/internal/archive"
	"gitlab.com/k00mi/lfs-pack/internal/lfs"
	"gitlab.com/k00mi/lfs-pack/internal/testhelper"
)

func testStore(t *testing.T, sizes map[string]int) (*lfs.Store, func()) {
	dir, cleanup := testhelper.TempDir(t, t.Name())

	for rel, size := range sizes {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, filepath.Dir(rel)), 0755))
		testhelper.MustWriteFile(t, filepath.Join(dir, rel), bytes.Repeat([]byte{'x'}, size))
	}

	return lfs.NewStore(dir), cleanup
}

func testOptions(t *testing.T, maxBinBytes int64) (Options, func()) {
	dir, cleanup := testhelper.TempDir(t, t.Name()+"-archives")

	return Options{Dir: dir, Prefix: "lfs-pack", MaxBinBytes: maxBinBytes}, cleanup
}

func TestPackGreedyBinning(t *testing.T) {
	// Sizes from the reference scenario, scaled from MB to bytes: with a
	// bound of 256, [100 100 100 300 50] packs to bins of 200 and 150,
	// the 300 is skipped.
	store, cleanup := testStore(t, map[string]int{
		"aa/00/obj-a": 100,
		"bb/00/obj-b": 100,
		"cc/00/obj-c": 100,
		"dd/00/obj-d": 300,
		"ee/00/obj-e": 50,
	})
	defer cleanup()

	opts, cleanupOpts := testOptions(t, 256)
	defer cleanupOpts()

	objects, err := store.Objects()
	require.NoError(t, err)

	archives, packCount, err := Pack(store, objects, opts)
	require.NoError(t, err)

	require.Equal(t, 4, packCount)
	require.Len(t, archives, 2)

	require.Equal(t, "lfs-pack-0001.tar.gz", archives[0].Name)
	require.Equal(t, 2, archives[0].Objects)
	require.Equal(t, int64(200), archives[0].Size)

	require.Equal(t, "lfs-pack-0002.tar.gz", archives[1].Name)
	require.Equal(t, 2, archives[1].Objects)
	require.Equal(t, int64(150), archives[1].Size)

	// The oversized object stays in the store, untouched
	require.True(t, store.Has("dd/00/obj-d"))

	// The intermediate tar files are gone
	entries, err := filepath.Glob(filepath.Join(opts.Dir, "*.tar"))
	require.NoError(t, err)
	require.Empty(t, entries)

	require.Equal(t, [][]string{
		{"aa/00/obj-a", "bb/00/obj-b"},
		{"cc/00/obj-c", "ee/00/obj-e"},
	}, archiveContents(t, opts, archives))
}

func TestPackSingleObject(t *testing.T) {
	store, cleanup := testStore(t, map[string]int{"aa/00/only": 10})
	defer cleanup()

	opts, cleanupOpts := testOptions(t, 256)
	defer cleanupOpts()

	objects, err := store.Objects()
	require.NoError(t, err)

	archives, packCount, err := Pack(store, objects, opts)
	require.NoError(t, err)

	require.Equal(t, 1, packCount)
	require.Len(t, archives, 1)
	require.Equal(t, 1, archives[0].Objects)
	require.Equal(t, int64(10), archives[0].Size)
}

func TestPackEmptyInput(t *testing.T) {
	store, cleanup := testStore(t, nil)
	defer cleanup()

	opts, cleanupOpts := testOptions(t, 256)
	defer cleanupOpts()

	archives, packCount, err := Pack(store, nil, opts)
	require.NoError(t, err)

	require.Empty(t, archives)
	require.Equal(t, 0, packCount)

	entries, err := filepath.Glob(filepath.Join(opts.Dir, "*"))
	require.NoError(t, err)
	require.Empty(t, entries, "no archive files may be created for empty input")
}

func TestPackBoundaryEqualIsSkipped(t *testing.T) {
	store, cleanup := testStore(t, map[string]int{
		"aa/00/exact": 256,
		"bb/00/under": 255,
	})
	defer cleanup()

	opts, cleanupOpts := testOptions(t, 256)
	defer cleanupOpts()

	objects, err := store.Objects()
	require.NoError(t, err)

	archives, packCount, err := Pack(store, objects, opts)
	require.NoError(t, err)

	require.Equal(t, 1, packCount)
	require.Len(t, archives, 1)
	require.Equal(t, int64(255), archives[0].Size)
}

func TestPackSizeProperties(t *testing.T) {
	sizes := map[string]int{
		"aa/00/o1": 90,
		"aa/01/o2": 40,
		"aa/02/o3": 100,
		"aa/03/o4": 10,
		"aa/04/o5": 128,
		"aa/05/o6": 300,
		"aa/06/o7": 1,
	}

	store, cleanup := testStore(t, sizes)
	defer cleanup()

	const max = int64(128)
	opts, cleanupOpts := testOptions(t, max)
	defer cleanupOpts()

	objects, err := store.Objects()
	require.NoError(t, err)

	archives, packCount, err := Pack(store, objects, opts)
	require.NoError(t, err)

	var wantTotal int64
	wantCount := 0
	for _, size := range sizes {
		if int64(size) < max {
			wantTotal += int64(size)
			wantCount++
		}
	}

	var gotTotal int64
	gotCount := 0
	for _, a := range archives {
		require.LessOrEqual(t, a.Size, max, "archive payload exceeds bound")
		gotTotal += a.Size
		gotCount += a.Objects
	}

	require.Equal(t, wantTotal, gotTotal, "archives must hold exactly the non-skipped bytes")
	require.Equal(t, wantCount, gotCount)
	require.Equal(t, wantCount, packCount)
}

// archiveContents returns the entry lists of the emitted archives, in
// archive order.
func archiveContents(t *testing.T, opts Options, archives []Archive) [][]string {
	var contents [][]string

	for _, a := range archives {
		f, err := os.Open(filepath.Join(opts.Dir, a.Name))
		require.NoError(t, err)

		zr, err := gzip.NewReader(f)
		require.NoError(t, err)

		entries, err := archive.TarEntries(zr)
		require.NoError(t, err)

		require.NoError(t, zr.Close())
		require.NoError(t, f.Close())

		contents = append(contents, entries)
	}

	return contents
}
