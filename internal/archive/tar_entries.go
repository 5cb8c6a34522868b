package archive

import (
	"archive/tar"
	"io"
)

// TarEntries lists the entry names of the tar archive read from r, in
// archive order. Tests use it to assert on emitted archive contents
// without extracting them.
func TarEntries(r io.Reader) ([]string, error) {
	var entries []string

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}

		entries = append(entries, hdr.Name)
	}
}
