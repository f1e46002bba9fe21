// Package archive assembles a finalized manifest's raw objects into a
// single per-version POSIX tar, the bundle's "master archive".
package archive

import (
	"archive/tar"
	"io"

	"github.com/pkg/errors"

	"github.com/amrox/zinc/format"
	"github.com/amrox/zinc/manifest"
	"github.com/amrox/zinc/pathmap"
	"github.com/amrox/zinc/storage"
	"github.com/amrox/zinc/zerr"
)

// Write streams a tar of m's files into w. Entries are named by logical
// path, contain the raw object's bytes, and are written in sorted order for
// determinism; every entry's mtime/uid/gid is zeroed. A missing raw object
// is fatal.
func Write(w io.Writer, m *manifest.Manifest, backend storage.Backend) error {
	tw := tar.NewWriter(w)

	for _, path := range m.Paths() {
		entry := m.Files[path]

		objPath := pathmap.ObjectPath(entry.Sha, format.Raw)
		r, err := backend.Get(objPath)
		if err != nil {
			return errors.Wrapf(err, "could not read object for %s", path)
		}
		if r == nil {
			return zerr.Newf(zerr.StorageInconsistent, "raw object for %s (sha %s) is missing", path, entry.Sha)
		}

		size := int64(entry.Formats[format.Raw].Size)

		err = func() error {
			defer r.Close()

			if err := tw.WriteHeader(&tar.Header{
				Name:     path,
				Typeflag: tar.TypeReg,
				Mode:     0644,
				Size:     size,
			}); err != nil {
				return errors.Wrapf(err, "could not write tar header for %s", path)
			}

			if _, err := io.Copy(tw, r); err != nil {
				return errors.Wrapf(err, "could not write tar content for %s", path)
			}
			return nil
		}()
		if err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return errors.Wrap(err, "could not finalize master archive")
	}
	return nil
}
