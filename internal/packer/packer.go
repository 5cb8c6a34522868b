package packer

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gitlab.com/k00mi/lfs-pack/internal/archive"
	"gitlab.com/k00mi/lfs-pack/internal/lfs"
	"gitlab.com/k00mi/lfs-pack/internal/log"
	"gitlab.com/k00mi/lfs-pack/internal/safe"
)

// Options steer a single Pack run.
type Options struct {
	// Dir is the directory archives are written to.
	Dir string
	// Prefix is the basename prefix of emitted archives.
	Prefix string
	// MaxBinBytes bounds the pre-compression payload of each archive.
	MaxBinBytes int64
}

// Archive describes one emitted archive after the gzip pass.
type Archive struct {
	// Name is the archive's filename within Options.Dir.
	Name string
	// Objects is the number of objects stored in the archive.
	Objects int
	// Size is the total payload in bytes, before tar framing and
	// compression.
	Size int64
}

// bin accumulates objects into one tar file until it would overflow.
type bin struct {
	fw      *safe.FileWriter
	tb      *archive.TarBuilder
	tarPath string
	objects int
	size    int64
}

func openBin(store *lfs.Store, opts Options, seq int) (*bin, error) {
	tarPath := filepath.Join(opts.Dir, fmt.Sprintf("%s-%04d.tar", opts.Prefix, seq))

	fw, err := safe.CreateFileWriter(tarPath)
	if err != nil {
		return nil, errors.Wrapf(err, "creating archive %q", tarPath)
	}

	return &bin{fw: fw, tb: archive.NewTarBuilder(store.Root(), fw), tarPath: tarPath}, nil
}

func (b *bin) add(o lfs.Object) error {
	if err := b.tb.File(o.Path); err != nil {
		return errors.Wrapf(err, "archiving object %q", o.Path)
	}

	b.objects++
	b.size += o.Size
	return nil
}

func (b *bin) close() error {
	if err := b.tb.Close(); err != nil {
		b.fw.Close()
		return errors.Wrapf(err, "finalizing archive %q", b.tarPath)
	}

	return errors.Wrapf(b.fw.Commit(), "committing archive %q", b.tarPath)
}

// Pack groups objects into archives of at most opts.MaxBinBytes payload
// each, in encounter order, using greedy first-fit accumulation: a new bin
// is opened whenever the next object would overflow the current one. The
// policy is deliberately not an optimal bin-packing solver; its output is
// predictable and reproducible for a given object enumeration.
//
// An object whose size is greater than or equal to the bound is skipped
// entirely (boundary equality counts as oversized). It stays in the store
// for individual retrieval and is not counted.
//
// Archives are numbered from 1 in the order their bins were closed. After
// all bins are closed, every archive is gzip-compressed in an independent
// pass and the intermediate tar file is removed.
//
// The returned count is the number of objects placed into archives. Any
// error aborts the run; partially written archives are not cleaned up.
func Pack(store *lfs.Store, objects []lfs.Object, opts Options) ([]Archive, int, error) {
	var (
		archives  []Archive
		current   *bin
		packCount int
	)

	closeCurrent := func() error {
		if err := current.close(); err != nil {
			return err
		}

		archives = append(archives, Archive{
			Name:    filepath.Base(current.tarPath),
			Objects: current.objects,
			Size:    current.size,
		})
		current = nil
		return nil
	}

	for _, o := range objects {
		if o.Size >= opts.MaxBinBytes {
			log.Default().WithFields(map[string]interface{}{
				"object":    o.Path,
				"size":      o.Size,
				"max_bytes": opts.MaxBinBytes,
			}).Warn("object exceeds archive size bound, left unpacked")
			continue
		}

		if current != nil && current.size+o.Size > opts.MaxBinBytes {
			if err := closeCurrent(); err != nil {
				return nil, 0, err
			}
		}

		if current == nil {
			var err error
			if current, err = openBin(store, opts, len(archives)+1); err != nil {
				return nil, 0, err
			}
		}

		if err := current.add(o); err != nil {
			current.fw.Close()
			return nil, 0, err
		}

		packCount++
	}

	if current != nil {
		if err := closeCurrent(); err != nil {
			return nil, 0, err
		}
	}

	for i := range archives {
		compressed, err := compress(filepath.Join(opts.Dir, archives[i].Name))
		if err != nil {
			return nil, 0, err
		}
		archives[i].Name = filepath.Base(compressed)
	}

	return archives, packCount, nil
}

// compress gzips path into path.gz and removes the original. Compression
// is idempotent with respect to archive content: decompressing yields the
// exact tar bytes that were written.
func compress(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening archive %q", path)
	}
	defer src.Close()

	gzPath := path + ".gz"
	fw, err := safe.CreateFileWriter(gzPath)
	if err != nil {
		return "", errors.Wrapf(err, "creating compressed archive %q", gzPath)
	}

	zw := gzip.NewWriter(fw)
	if _, err := io.Copy(zw, src); err != nil {
		fw.Close()
		return "", errors.Wrapf(err, "compressing archive %q", path)
	}

	if err := zw.Close(); err != nil {
		fw.Close()
		return "", errors.Wrapf(err, "flushing compressed archive %q", gzPath)
	}

	if err := fw.Commit(); err != nil {
		return "", errors.Wrapf(err, "committing compressed archive %q", gzPath)
	}

	return gzPath, errors.Wrapf(os.Remove(path), "removing intermediate archive %q", path)
}
