// Package pathmap implements the contractual subpath conventions that map
// zinc entities (objects, manifests, the index, archives) onto the flat
// key space exposed by a storage.Backend. These paths are part of the wire
// contract: consumers read objects and manifests directly at these paths.
package pathmap

import (
	"fmt"

	"github.com/amrox/zinc/format"
	"github.com/amrox/zinc/fspath"
)

// IndexPath is the catalog-root-relative path of the mutable index.
const IndexPath = "index.json"

// ShardGenerator computes the directory prefix under which an object's sha
// is sharded, to keep any one directory from accumulating too many entries.
// It is a fspath.Generator: any sha-to-path mapping can be substituted,
// including a no-op for backends (like S3) that don't benefit from sharding.
var ShardGenerator fspath.Generator = fspath.GeneratorFunc(pairShard)

// pairShard is the default ShardGenerator: the first four hex characters of
// the sha, split into two two-character directories, e.g. "ab/cd" for a sha
// beginning "abcd...".
func pairShard(sha string) string {
	if len(sha) < 4 {
		return sha
	}
	return fmt.Sprintf("%s/%s", sha[0:2], sha[2:4])
}

// ObjectPath returns the subpath of the object with the given sha under the
// given format, e.g. "objects/ab/cd/abcd...ef" for raw, or with a ".gz"
// suffix for the gzip variant.
//
// Per the catalog's on-disk compatibility tradeoff, variants are always
// keyed by the file's raw sha, never by the sha of the encoded bytes: a
// consumer holding a raw sha can discover the gzip form by probing the
// ".gz" suffix at a known path.
func ObjectPath(sha string, f format.Name) string {
	base := fmt.Sprintf("objects/%s/%s", ShardGenerator.Generate(sha), sha)
	if ext := format.Extension(f); ext != "" {
		return base + "." + ext
	}
	return base
}

// ManifestPath returns the subpath of a bundle version's manifest.
func ManifestPath(bundleName string, version int) string {
	return fmt.Sprintf("manifests/%s/%d.json", bundleName, version)
}

// ArchivePath returns the subpath of a bundle version's master archive.
func ArchivePath(bundleName string, version int) string {
	return fmt.Sprintf("archives/%s-%d.tar", bundleName, version)
}

// ManifestPrefix returns the storage prefix under which every manifest for
// bundleName lives, useful for a full listing sweep.
func ManifestPrefix(bundleName string) string {
	return fmt.Sprintf("manifests/%s/", bundleName)
}
