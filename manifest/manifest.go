// Package manifest defines the per-(bundle,version) file inventory: the
// immutable record of which logical paths map to which content-addressed
// files, in which encodings, and (optionally) which flavors they belong to.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/amrox/zinc/format"
	"github.com/amrox/zinc/zerr"
)

// FormatEntry records the size of one encoded variant of a file.
type FormatEntry struct {
	Size uint64 `json:"size"`
}

// FileEntry is a single logical-path entry in a manifest.
type FileEntry struct {
	Flavors []string                    `json:"flavors,omitempty"`
	Formats map[format.Name]FormatEntry `json:"formats"`
	Sha     string                      `json:"sha"`
}

// Manifest is the immutable file inventory for one (bundle_name, version).
type Manifest struct {
	BundleName string               `json:"bundle_name"`
	CatalogID  string               `json:"catalog_id"`
	Files      map[string]FileEntry `json:"files"`
	Flavors    []string             `json:"flavors,omitempty"`
	Version    int                  `json:"version"`
}

// New creates an empty manifest for (bundleName, version).
func New(catalogID, bundleName string, version int) *Manifest {
	return &Manifest{
		CatalogID:  catalogID,
		BundleName: bundleName,
		Version:    version,
		Files:      make(map[string]FileEntry),
	}
}

// AddFile records path as having the given sha, adding or updating one
// format entry for it. Calling AddFile again for the same path with the
// same sha merges in additional format variants (e.g. first raw, then gz).
func (m *Manifest) AddFile(path, sha string, f format.Name, size uint64) error {
	if !format.Allowed(f) {
		return zerr.Newf(zerr.ManifestInvalid, "unrecognized format %q for %s", f, path)
	}

	entry, ok := m.Files[path]
	if ok && entry.Sha != sha {
		return zerr.Newf(zerr.ManifestInvalid, "conflicting sha for %s: have %s, got %s", path, entry.Sha, sha)
	}

	if !ok {
		entry = FileEntry{Sha: sha, Formats: make(map[format.Name]FormatEntry)}
	}
	entry.Formats[f] = FormatEntry{Size: size}
	m.Files[path] = entry
	return nil
}

// SetFlavors attaches the matching flavor tags to path's entry.
func (m *Manifest) SetFlavors(path string, flavors []string) {
	entry, ok := m.Files[path]
	if !ok {
		return
	}
	sorted := append([]string(nil), flavors...)
	sort.Strings(sorted)
	entry.Flavors = sorted
	m.Files[path] = entry
}

// Paths returns the sorted list of logical paths in the manifest.
func (m *Manifest) Paths() []string {
	paths := make([]string, 0, len(m.Files))
	for p := range m.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Equivalent implements the version-equality relation used by dedup
// (spec §4.I step 6): two manifests are equivalent iff they cover the same
// set of logical paths, and for each path the raw sha, raw size, and sorted
// flavor set match. Format variants beyond raw (e.g. gz) and per-version
// metadata (catalog_id, version number) do not affect equivalence.
func (m *Manifest) Equivalent(other *Manifest) bool {
	if other == nil {
		return false
	}
	if len(m.Files) != len(other.Files) {
		return false
	}

	for path, entry := range m.Files {
		otherEntry, ok := other.Files[path]
		if !ok {
			return false
		}
		if entry.Sha != otherEntry.Sha {
			return false
		}

		rawA, okA := entry.Formats[format.Raw]
		rawB, okB := otherEntry.Formats[format.Raw]
		if okA != okB {
			return false
		}
		if okA && rawA.Size != rawB.Size {
			return false
		}

		if !stringsEqual(entry.Flavors, otherEntry.Flavors) {
			return false
		}
	}

	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Serialize writes the manifest as canonical JSON: sorted object keys
// (guaranteed for map[string]... by encoding/json), four-space indent, and
// a trailing newline.
func (m *Manifest) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, errors.Wrap(err, "could not serialize manifest")
	}
	return buf.Bytes(), nil
}

// Deserialize parses manifest JSON, rejecting missing required fields and
// any format name outside the allowed set.
func Deserialize(b []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, zerr.New(zerr.ManifestInvalid, errors.Wrap(err, "could not parse manifest"))
	}

	if m.CatalogID == "" || m.BundleName == "" || m.Version <= 0 {
		return nil, zerr.Newf(zerr.ManifestInvalid, "manifest missing required fields (catalog_id/bundle_name/version)")
	}

	for path, entry := range m.Files {
		if entry.Sha == "" {
			return nil, zerr.Newf(zerr.ManifestInvalid, "entry %s missing sha", path)
		}
		if _, ok := entry.Formats[format.Raw]; !ok {
			return nil, zerr.Newf(zerr.ManifestInvalid, "entry %s missing required raw format", path)
		}
		for f := range entry.Formats {
			if !format.Allowed(f) {
				return nil, zerr.Newf(zerr.ManifestInvalid, "entry %s has unrecognized format %q", path, f)
			}
		}
	}

	return &m, nil
}

// String renders a short human summary, useful for CLI/log output.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s-%d (%d files)", m.BundleName, m.Version, len(m.Files))
}
