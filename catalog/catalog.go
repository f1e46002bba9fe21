// Package catalog implements the facade that binds a per-catalog index,
// object storage, and lock coordinator together, plus the write pipeline
// (BundleUpdateTask) and read-side verification that make up zinc's core.
package catalog

import (
	"bytes"
	"io"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/amrox/zinc/coordinator"
	"github.com/amrox/zinc/index"
	"github.com/amrox/zinc/manifest"
	"github.com/amrox/zinc/pathmap"
	"github.com/amrox/zinc/storage"
	"github.com/amrox/zinc/zerr"
)

var log = logrus.WithField("pkg", "catalog")

// DefaultLockTimeout bounds how long a publish waits to acquire the
// catalog's bundle lock before failing with Kind LockUnavailable.
const DefaultLockTimeout = 30 * time.Second

// Catalog binds an Index to a StorageBackend rooted at the catalog's
// prefix, and a Coordinator used to serialize writes.
type Catalog struct {
	ID          string
	Storage     storage.Backend
	Coordinator coordinator.Coordinator
	LockTimeout time.Duration
}

// Open binds a Catalog to the given catalog id, a storage backend already
// bound to the catalog's prefix, and a coordinator.
func Open(id string, backend storage.Backend, coord coordinator.Coordinator) *Catalog {
	return &Catalog{ID: id, Storage: backend, Coordinator: coord, LockTimeout: DefaultLockTimeout}
}

// Create initializes a brand new, empty catalog index and writes it.
func Create(id string, backend storage.Backend, coord coordinator.Coordinator) (*Catalog, error) {
	c := Open(id, backend, coord)
	idx := index.New(id)
	if err := c.writeIndex(idx); err != nil {
		return nil, errors.Wrapf(err, "could not initialize catalog %s", id)
	}
	return c, nil
}

// Format returns the index format version, reading it from storage.
func (c *Catalog) Format() (int, error) {
	idx, err := c.readIndex()
	if err != nil {
		return 0, err
	}
	return idx.FormatVersion, nil
}

// BundleNames returns the sorted set of bundle names known to the catalog.
func (c *Catalog) BundleNames() ([]string, error) {
	idx, err := c.readIndex()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(idx.Bundles))
	for name := range idx.Bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// VersionsForBundle returns the sorted versions known for bundle.
func (c *Catalog) VersionsForBundle(bundle string) ([]int, error) {
	idx, err := c.readIndex()
	if err != nil {
		return nil, err
	}
	return idx.VersionsForBundle(bundle), nil
}

// ManifestForBundle reads and parses the manifest for (bundle, version).
func (c *Catalog) ManifestForBundle(bundle string, version int) (*manifest.Manifest, error) {
	return c.readManifest(bundle, version)
}

// UpdateDistribution acquires the catalog's bundle lock and updates distro
// to point at version, recording the prior value under its prev: name.
func (c *Catalog) UpdateDistribution(distro, bundle string, version int) error {
	return c.withIndexLock(bundle, func(idx *index.Index) error {
		return idx.UpdateDistribution(distro, bundle, version)
	})
}

// DeleteDistribution acquires the catalog's bundle lock and removes distro.
func (c *Catalog) DeleteDistribution(distro, bundle string) error {
	return c.withIndexLock(bundle, func(idx *index.Index) error {
		idx.DeleteDistribution(distro, bundle)
		return nil
	})
}

// DeleteVersion acquires the catalog's bundle lock and removes version from
// bundle, failing with Kind InUse if a distribution still targets it.
func (c *Catalog) DeleteVersion(bundle string, version int) error {
	return c.withIndexLock(bundle, func(idx *index.Index) error {
		return idx.DelVersionForBundle(bundle, version)
	})
}

// withIndexLock acquires the lock for bundle, re-reads the index, applies
// mutate, and commits the result, releasing the lock on every exit path.
func (c *Catalog) withIndexLock(bundle string, mutate func(*index.Index) error) (err error) {
	lock, err := c.Coordinator.GetIndexLock(BundleID(c.ID, bundle), c.lockTimeout())
	if err != nil {
		return zerr.New(zerr.LockUnavailable, err)
	}
	if err := lock.Acquire(); err != nil {
		return zerr.New(zerr.LockUnavailable, err)
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil && err == nil {
			err = errors.Wrap(releaseErr, "could not release lock")
		}
	}()

	idx, err := c.readIndex()
	if err != nil {
		return err
	}

	if err := mutate(idx); err != nil {
		return err
	}

	return c.writeIndex(idx)
}

func (c *Catalog) lockTimeout() time.Duration {
	if c.LockTimeout <= 0 {
		return DefaultLockTimeout
	}
	return c.LockTimeout
}

// BundleID computes the fully qualified bundle_id from a catalog id and a
// bundle name.
func BundleID(catalogID, bundleName string) string {
	return catalogID + "." + bundleName
}

func (c *Catalog) readIndex() (*index.Index, error) {
	r, err := c.Storage.Get(pathmap.IndexPath)
	if err != nil {
		return nil, zerr.New(zerr.StorageError, err)
	}
	if r == nil {
		return nil, zerr.Newf(zerr.UsageError, "catalog %s has no index; has it been created?", c.ID)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, zerr.New(zerr.StorageError, err)
	}

	return index.Deserialize(b)
}

func (c *Catalog) writeIndex(idx *index.Index) error {
	b, err := idx.Serialize()
	if err != nil {
		return err
	}
	if err := c.Storage.Put(pathmap.IndexPath, bytes.NewReader(b), 0); err != nil {
		return zerr.New(zerr.StorageError, err)
	}
	return nil
}

func (c *Catalog) readManifest(bundle string, version int) (*manifest.Manifest, error) {
	p := pathmap.ManifestPath(bundle, version)

	r, err := c.Storage.Get(p)
	if err != nil {
		return nil, zerr.New(zerr.StorageError, err)
	}
	if r == nil {
		return nil, zerr.Newf(zerr.ManifestInvalid, "no manifest at %s", p)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, zerr.New(zerr.StorageError, err)
	}

	return manifest.Deserialize(b)
}
