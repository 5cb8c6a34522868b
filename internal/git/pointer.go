package git

import (
	"os"
	"path/filepath"

	"github.com/git-lfs/git-lfs/lfs"
)

// blobSizeCutoff is the maximum size of an LFS pointer blob; anything
// larger cannot be a pointer. Matches the cutoff used by git-lfs itself.
const blobSizeCutoff = 1024

// Pointer is an LFS pointer file found in the working tree. Its presence
// after `git lfs pull` means the object it references was not fetched and
// will not end up in any archive.
type Pointer struct {
	Path string
	Oid  string
	Size int64
}

// ScanPointers walks the working tree at root and returns every file that
// still decodes as an LFS pointer. The .git directory is skipped.
func ScanPointers(root string) ([]Pointer, error) {
	var pointers []Pointer

	err := filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if fi.IsDir() {
			if fi.Name() == ".git" && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		if !fi.Mode().IsRegular() || fi.Size() > blobSizeCutoff {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}

		ptr, _, err := lfs.DecodeFrom(f)
		f.Close()
		if err != nil {
			// Not a pointer, just a small file
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		pointers = append(pointers, Pointer{Path: rel, Oid: ptr.Oid, Size: ptr.Size})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return pointers, nil
}
