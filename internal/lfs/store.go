package lfs

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gitlab.com/k00mi/lfs-pack/internal/safe"
)

// ObjectsDir is the location of the LFS object store relative to the
// repository root.
var ObjectsDir = filepath.Join(".git", "lfs", "objects")

// Object is a single content-addressed file in the store. Path is relative
// to the store root and doubles as the object's identity: git-lfs lays
// objects out as <first two oid bytes>/<next two>/<oid>.
type Object struct {
	Path string
	Size int64
}

// Store is a directory of content-addressed objects.
type Store struct {
	root string
}

// NewStore returns a Store rooted at root. The directory does not have to
// exist yet; it is created lazily on the first Create call.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the absolute path of the object at rel.
func (s *Store) Path(rel string) string {
	return filepath.Join(s.root, rel)
}

// Has reports whether an object already exists at rel.
func (s *Store) Has(rel string) bool {
	fi, err := os.Stat(s.Path(rel))
	return err == nil && fi.Mode().IsRegular()
}

// Objects enumerates every regular file in the store. filepath.Walk visits
// in lexical order, so the result is stable across runs on the same store.
func (s *Store) Objects() ([]Object, error) {
	var objects []Object

	err := filepath.Walk(s.root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.root {
				// A repository without LFS content has no store directory.
				return nil
			}
			return err
		}

		// Anything that is not a regular file is not an object
		if !fi.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}

		objects = append(objects, Object{Path: rel, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scanning object store %q", s.root)
	}

	return objects, nil
}

// Create returns an atomic writer for the object at rel, creating parent
// directories as needed. The object only becomes visible on Commit.
func (s *Store) Create(rel string) (*safe.FileWriter, error) {
	path := s.Path(rel)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "creating object directory for %q", rel)
	}

	return safe.CreateFileWriter(path)
}
