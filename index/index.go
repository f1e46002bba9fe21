// Package index implements the single mutable per-catalog registry of
// bundles, their versions, and the distributions pointing at them.
package index

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/amrox/zinc/zerr"
)

// Format is the only index format this package understands. A mismatch on
// load is fatal (spec §4.G format migration).
const Format = 1

// PrevDistroPrefix prefixes the name under which the previous value of a
// distribution is recorded when it is overwritten.
const PrevDistroPrefix = "prev:"

// Index is the per-catalog registry of bundles, versions, and
// distributions.
type Index struct {
	Bundles       map[string][]int              `json:"bundles"`
	Distributions map[string]map[string]int     `json:"distributions"`
	FormatVersion int                          `json:"format"`
	ID            string                        `json:"id"`
}

// New creates an empty index for catalogID.
func New(catalogID string) *Index {
	return &Index{
		FormatVersion: Format,
		ID:            catalogID,
		Bundles:       make(map[string][]int),
		Distributions: make(map[string]map[string]int),
	}
}

// PreviousDistroName returns the name under which the prior value of distro
// is recorded once it has been overwritten once (spec §9,
// helpers.previous_name_for_distro).
func PreviousDistroName(distro string) string {
	return PrevDistroPrefix + distro
}

// VersionsForBundle returns the sorted versions known for bundle, or an
// empty (never nil-panicking) slice if bundle is unknown.
func (idx *Index) VersionsForBundle(bundle string) []int {
	versions := append([]int(nil), idx.Bundles[bundle]...)
	sort.Ints(versions)
	return versions
}

// NextVersionForBundle returns max(existing)+1, or 1 if bundle has no
// versions yet.
func (idx *Index) NextVersionForBundle(bundle string) int {
	versions := idx.Bundles[bundle]
	if len(versions) == 0 {
		return 1
	}
	max := versions[0]
	for _, v := range versions[1:] {
		if v > max {
			max = v
		}
	}
	return max + 1
}

// AddVersionForBundle adds version to bundle's version set. Idempotent.
func (idx *Index) AddVersionForBundle(bundle string, version int) {
	for _, v := range idx.Bundles[bundle] {
		if v == version {
			return
		}
	}
	idx.Bundles[bundle] = append(idx.Bundles[bundle], version)
	sort.Ints(idx.Bundles[bundle])
}

// DelVersionForBundle removes version from bundle's version set. A no-op if
// (bundle, version) is absent. Fails with Kind InUse if any distribution
// currently targets that version.
func (idx *Index) DelVersionForBundle(bundle string, version int) error {
	versions := idx.Bundles[bundle]
	pos := -1
	for i, v := range versions {
		if v == version {
			pos = i
			break
		}
	}
	if pos == -1 {
		return nil
	}

	for distro, target := range idx.Distributions[bundle] {
		if isPrevName(distro) {
			continue
		}
		if target == version {
			return zerr.Newf(zerr.InUse, "version %d of %s is targeted by distribution %q", version, bundle, distro)
		}
	}

	idx.Bundles[bundle] = append(versions[:pos], versions[pos+1:]...)
	return nil
}

func isPrevName(distro string) bool {
	return len(distro) > len(PrevDistroPrefix) && distro[:len(PrevDistroPrefix)] == PrevDistroPrefix
}

// UpdateDistribution points distro at version for bundle. Fails with Kind
// UnknownBundle if bundle has no versions; UnknownVersion if version isn't
// among them. On success, the prior value of distro (if any) is preserved
// under PreviousDistroName(distro), overwriting any older prev: value.
func (idx *Index) UpdateDistribution(distro, bundle string, version int) error {
	versions, ok := idx.Bundles[bundle]
	if !ok || len(versions) == 0 {
		return zerr.Newf(zerr.UnknownBundle, "unknown bundle %q", bundle)
	}

	found := false
	for _, v := range versions {
		if v == version {
			found = true
			break
		}
	}
	if !found {
		return zerr.Newf(zerr.UnknownVersion, "version %d not present in bundle %q", version, bundle)
	}

	if idx.Distributions[bundle] == nil {
		idx.Distributions[bundle] = make(map[string]int)
	}

	if prev, ok := idx.Distributions[bundle][distro]; ok {
		idx.Distributions[bundle][PreviousDistroName(distro)] = prev
	}
	idx.Distributions[bundle][distro] = version

	return nil
}

// DeleteDistribution removes distro's entry for bundle, leaving its
// prev: counterpart (if any) intact.
func (idx *Index) DeleteDistribution(distro, bundle string) {
	if idx.Distributions[bundle] == nil {
		return
	}
	delete(idx.Distributions[bundle], distro)
}

// Serialize writes the index as canonical JSON (sorted keys, four-space
// indent, trailing newline).
func (idx *Index) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(idx); err != nil {
		return nil, errors.Wrap(err, "could not serialize index")
	}
	return buf.Bytes(), nil
}

// Deserialize parses index JSON. It fails with Kind UnsupportedIndex if the
// format field is not Format.
func Deserialize(b []byte) (*Index, error) {
	var idx Index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, zerr.New(zerr.ManifestInvalid, errors.Wrap(err, "could not parse index"))
	}

	if idx.FormatVersion != Format {
		return nil, zerr.Newf(zerr.UnsupportedIndex, "index format %d is not supported (want %d)", idx.FormatVersion, Format)
	}

	if idx.Bundles == nil {
		idx.Bundles = make(map[string][]int)
	}
	if idx.Distributions == nil {
		idx.Distributions = make(map[string]map[string]int)
	}

	return &idx, nil
}
