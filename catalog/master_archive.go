package catalog

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/amrox/zinc/archive"
	"github.com/amrox/zinc/manifest"
	"github.com/amrox/zinc/pathmap"
	"github.com/amrox/zinc/zerr"
)

// writeMasterArchive assembles and uploads m's tar, per spec §4.H. Its
// failure is non-fatal: the caller logs it as a soft warning and the
// published version remains valid.
func (c *Catalog) writeMasterArchive(m *manifest.Manifest) error {
	var buf bytes.Buffer
	if err := archive.Write(&buf, m, c.Storage); err != nil {
		return errors.Wrap(err, "could not assemble master archive")
	}

	path := pathmap.ArchivePath(m.BundleName, m.Version)
	if err := c.Storage.Put(path, &buf, 0); err != nil {
		return zerr.New(zerr.StorageError, errors.Wrap(err, "could not upload master archive"))
	}
	return nil
}
