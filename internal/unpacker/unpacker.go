package unpacker

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gitlab.com/k00mi/lfs-pack/internal/lfs"
	"gitlab.com/k00mi/lfs-pack/internal/log"
)

// Unpack extracts every archive in dir matching glob into the store. Each
// object is written atomically, so a failed or interrupted run never
// leaves a partially written object behind and can simply be retried.
// Objects already present in the store are skipped; running Unpack twice
// leaves the store identical to running it once.
//
// A corrupt or truncated archive aborts the run, but objects restored
// from archives processed before it stay valid.
func Unpack(dir, glob string, store *lfs.Store) (int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return 0, errors.Wrapf(err, "bad archive pattern %q", glob)
	}

	// Correctness does not depend on order since the store is
	// content-addressed; lexical order keeps logs reproducible.
	sort.Strings(paths)

	restored := 0
	for _, path := range paths {
		n, err := unpackArchive(path, store)
		restored += n
		if err != nil {
			return restored, err
		}
	}

	return restored, nil
}

func unpackArchive(path string, store *lfs.Store) (int, error) {
	logger := log.Default().WithField("archive", filepath.Base(path))

	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "opening archive %q", path)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrapf(err, "decompressing archive %q", path)
	}
	defer zr.Close()

	restored := 0
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return restored, errors.Wrapf(err, "reading archive %q", path)
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		if !entryWithinStore(hdr.Name) {
			return restored, errors.Errorf("archive %q: entry %q escapes the object store", path, hdr.Name)
		}

		if store.Has(hdr.Name) {
			logger.WithField("object", hdr.Name).Debug("object already present, skipping")
			restored++
			continue
		}

		if err := extractObject(store, hdr, tr); err != nil {
			return restored, errors.Wrapf(err, "extracting %q from archive %q", hdr.Name, path)
		}

		restored++
	}

	logger.WithField("objects", restored).Info("unpacked archive")

	return restored, nil
}

// entryWithinStore reports whether an archive entry name stays inside the
// store root when joined to it. Archives are self-produced with relative
// paths, so anything absolute or climbing out via `..` is rejected.
func entryWithinStore(name string) bool {
	if name == "" || filepath.IsAbs(name) {
		return false
	}

	cleaned := filepath.Clean(name)

	return cleaned != ".." && !strings.HasPrefix(cleaned, ".."+string(os.PathSeparator))
}

func extractObject(store *lfs.Store, hdr *tar.Header, r io.Reader) error {
	w, err := store.Create(hdr.Name)
	if err != nil {
		return err
	}

	if _, err := io.CopyN(w, r, hdr.Size); err != nil {
		w.Close()
		return err
	}

	return w.Commit()
}
