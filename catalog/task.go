package catalog

import (
	"bytes"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/amrox/zinc/format"
	"github.com/amrox/zinc/hash"
	"github.com/amrox/zinc/manifest"
	"github.com/amrox/zinc/pathmap"
	"github.com/amrox/zinc/zerr"
)

// UpdateOptions configures one BundleUpdateTask run.
type UpdateOptions struct {
	// FlavorSpec, if non-nil, is evaluated against every scanned file to
	// attach flavor tags to its manifest entry.
	FlavorSpec manifest.FlavorSpec

	// SkipMasterArchive disables tar assembly after a successful publish.
	SkipMasterArchive bool

	// Force skips the dedup equality check and always produces a new
	// version, even if it would be identical to the latest one.
	Force bool

	// CompressionPolicy controls when the gzip variant is kept.
	// The zero value is format.CompressIfSmaller.
	CompressionPolicy format.Policy

	// Concurrency bounds how many files are hashed/uploaded in parallel.
	// The zero value (or any value below 1) means 8.
	Concurrency int
}

// UpdateResult reports the outcome of a successful CreateBundleVersion.
type UpdateResult struct {
	// Version is the version now current for the bundle: either a freshly
	// published version, or the pre-existing version dedup matched.
	Version int

	// Deduped is true if Version was not a new publish, but an existing
	// version whose contents were byte-for-byte equivalent.
	Deduped bool

	// ArchiveWarning holds the error from a failed (non-fatal) master
	// archive assembly, or nil if archiving succeeded or was skipped.
	ArchiveWarning error
}

// CreateBundleVersion runs the catalog write pipeline (spec §4.I): scan
// srcDir, acquire the bundle's lock, hash and dedup against the latest
// version, and — if the content differs — upload new objects, write a new
// manifest, and commit the index under the same lock.
func (c *Catalog) CreateBundleVersion(bundleName, srcDir string, opts UpdateOptions) (*UpdateResult, error) {
	files, err := scan(srcDir)
	if err != nil {
		return nil, zerr.New(zerr.UsageError, err)
	}

	lock, err := c.Coordinator.GetIndexLock(BundleID(c.ID, bundleName), c.lockTimeout())
	if err != nil {
		return nil, zerr.New(zerr.LockUnavailable, err)
	}
	if err := lock.Acquire(); err != nil {
		return nil, zerr.New(zerr.LockUnavailable, err)
	}
	defer lock.Release()

	return c.runUpdate(bundleName, files, opts)
}

// runUpdate executes steps 3-13 of spec §4.I under a held lock.
func (c *Catalog) runUpdate(bundleName string, files []scannedFile, opts UpdateOptions) (*UpdateResult, error) {
	idx, err := c.readIndex()
	if err != nil {
		return nil, err
	}

	candidate := manifest.New(c.ID, bundleName, idx.NextVersionForBundle(bundleName))

	if err := c.hashFiles(candidate, files, opts); err != nil {
		return nil, err
	}

	if opts.FlavorSpec != nil {
		for _, f := range files {
			candidate.SetFlavors(f.relPath, opts.FlavorSpec.Assign(f.relPath))
		}
	}

	versions := idx.VersionsForBundle(bundleName)
	if !opts.Force && len(versions) > 0 {
		vPrev := versions[len(versions)-1]
		prevManifest, err := c.readManifest(bundleName, vPrev)
		if err == nil && candidate.Equivalent(prevManifest) {
			log.WithField("bundle", bundleName).Infof("content unchanged, keeping version %d", vPrev)
			return &UpdateResult{Version: vPrev, Deduped: true}, nil
		}
		if err != nil && zerr.KindOf(err) != zerr.ManifestInvalid {
			return nil, err
		}
	}

	vNew := idx.NextVersionForBundle(bundleName)
	candidate.Version = vNew

	if err := c.uploadVariants(candidate, files, opts); err != nil {
		return nil, err
	}

	manifestPath := pathmap.ManifestPath(bundleName, vNew)
	manifestBytes, err := candidate.Serialize()
	if err != nil {
		return nil, err
	}
	if err := c.Storage.Put(manifestPath, bytes.NewReader(manifestBytes), 0); err != nil {
		return nil, zerr.New(zerr.StorageError, err)
	}

	if err := c.verifyObjectsPresent(candidate); err != nil {
		_ = c.Storage.Delete(manifestPath)
		return nil, err
	}

	idx.AddVersionForBundle(bundleName, vNew)
	if err := c.writeIndex(idx); err != nil {
		return nil, zerr.New(zerr.StorageError, errors.Wrap(err, "index commit failed; manifest is orphaned and needs a verify/repair pass"))
	}

	result := &UpdateResult{Version: vNew}

	if !opts.SkipMasterArchive {
		if err := c.writeMasterArchive(candidate); err != nil {
			log.WithError(err).Warnf("master archive assembly failed for %s-%d", bundleName, vNew)
			result.ArchiveWarning = err
		}
	}

	return result, nil
}

// hashFiles computes the raw sha of every scanned file and records it (with
// raw format/size) on candidate. Hashing fans out across files.
func (c *Catalog) hashFiles(candidate *manifest.Manifest, files []scannedFile, opts UpdateOptions) error {
	type hashed struct {
		relPath string
		sha     string
		size    int64
	}

	results := make([]hashed, len(files))

	g := new(errgroup.Group)
	g.SetLimit(concurrencyLimit(opts.Concurrency))

	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			fh, err := os.Open(f.absPath)
			if err != nil {
				return errors.Wrapf(err, "could not open %s", f.absPath)
			}
			defer fh.Close()

			sum, err := hash.Sum(fh)
			if err != nil {
				return errors.Wrapf(err, "could not hash %s", f.relPath)
			}

			results[i] = hashed{relPath: f.relPath, sha: sum, size: f.size}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return zerr.New(zerr.UsageError, err)
	}

	for _, r := range results {
		if err := candidate.AddFile(r.relPath, r.sha, format.Raw, uint64(r.size)); err != nil {
			return err
		}
	}

	return nil
}

// uploadVariants uploads the raw (and, when worthwhile, gz) object for
// every file not already present in storage, fanning out across files.
func (c *Catalog) uploadVariants(candidate *manifest.Manifest, files []scannedFile, opts UpdateOptions) error {
	policy := opts.CompressionPolicy
	if policy == (format.Policy{}) {
		policy = format.CompressIfSmaller
	}

	g := new(errgroup.Group)
	g.SetLimit(concurrencyLimit(opts.Concurrency))

	type gzResult struct {
		relPath string
		size    uint64
	}
	gzResults := make([]gzResult, len(files))

	for i, f := range files {
		i, f := i, f
		entry := candidate.Files[f.relPath]
		g.Go(func() error {
			content, err := os.ReadFile(f.absPath)
			if err != nil {
				return errors.Wrapf(err, "could not read %s", f.absPath)
			}

			if err := c.putIfAbsent(pathmap.ObjectPath(entry.Sha, format.Raw), content); err != nil {
				return err
			}

			gzBytes, err := format.EncodeGzip(content)
			if err != nil {
				return errors.Wrapf(err, "could not gzip-encode %s", f.relPath)
			}
			if !policy.Worthwhile(int64(len(content)), int64(len(gzBytes))) {
				return nil
			}

			if err := c.putIfAbsent(pathmap.ObjectPath(entry.Sha, format.Gzip), gzBytes); err != nil {
				return err
			}
			gzResults[i] = gzResult{relPath: f.relPath, size: uint64(len(gzBytes))}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return zerr.New(zerr.StorageError, err)
	}

	for _, r := range gzResults {
		if r.relPath == "" {
			continue
		}
		if err := candidate.AddFile(r.relPath, candidate.Files[r.relPath].Sha, format.Gzip, r.size); err != nil {
			return err
		}
	}

	return nil
}

func (c *Catalog) putIfAbsent(subpath string, content []byte) error {
	meta, err := c.Storage.GetMeta(subpath)
	if err != nil {
		return zerr.New(zerr.StorageError, err)
	}
	if meta != nil {
		return nil
	}
	if err := c.Storage.Put(subpath, bytes.NewReader(content), 0); err != nil {
		return zerr.New(zerr.StorageError, err)
	}
	return nil
}

// verifyObjectsPresent confirms every (sha, format) in m is reachable in
// storage, per spec §4.I step 10.
func (c *Catalog) verifyObjectsPresent(m *manifest.Manifest) error {
	for path, entry := range m.Files {
		for f := range entry.Formats {
			subpath := pathmap.ObjectPath(entry.Sha, f)
			meta, err := c.Storage.GetMeta(subpath)
			if err != nil {
				return zerr.New(zerr.StorageError, err)
			}
			if meta == nil {
				return zerr.Newf(zerr.StorageInconsistent, "object %s for %s is missing after upload", subpath, path)
			}
		}
	}
	return nil
}

func concurrencyLimit(n int) int {
	if n <= 0 {
		return 8
	}
	return n
}

// leaseHeartbeat is a lease-renewal period for held locks. Nothing reads it:
// no code in this package or in the coordinator drivers renews a lock's
// lease while an update is in flight.
const leaseHeartbeat = 10 * time.Second
