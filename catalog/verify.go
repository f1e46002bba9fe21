package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/amrox/zinc/index"
	"github.com/amrox/zinc/pathmap"
)

// FindingKind classifies a single discrepancy surfaced by Verify.
type FindingKind string

// Recognized finding kinds (spec §4.J).
const (
	MissingObject    FindingKind = "MissingObject"
	MissingManifest  FindingKind = "MissingManifest"
	OrphanedManifest FindingKind = "OrphanedManifest"
	OrphanedObject   FindingKind = "OrphanedObject"
)

// Finding is one discrepancy discovered by Verify.
type Finding struct {
	Kind    FindingKind
	Bundle  string
	Version int
	Path    string // logical file path, when applicable
	Subpath string // storage subpath, when applicable
	Detail  string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: bundle=%s version=%d path=%q subpath=%q: %s",
		f.Kind, f.Bundle, f.Version, f.Path, f.Subpath, f.Detail)
}

// VerifyOptions configures a verify pass.
type VerifyOptions struct {
	// FullSweep enables listing the entire object store to additionally
	// detect OrphanedObject findings (objects present but unreferenced by
	// any live manifest). It is more expensive than the default pass,
	// which only checks forward from the index.
	FullSweep bool
}

// Verify walks the index and reports every discrepancy between it and the
// storage backend, without mutating anything (spec §4.J).
func (c *Catalog) Verify(opts VerifyOptions) ([]Finding, error) {
	idx, err := c.readIndex()
	if err != nil {
		return nil, err
	}

	var findings []Finding
	referenced := make(map[string]struct{})

	for bundle, versions := range idx.Bundles {
		for _, version := range versions {
			manifestPath := pathmap.ManifestPath(bundle, version)
			referenced[manifestPath] = struct{}{}

			m, err := c.readManifest(bundle, version)
			if err != nil {
				findings = append(findings, Finding{
					Kind:    MissingManifest,
					Bundle:  bundle,
					Version: version,
					Subpath: manifestPath,
					Detail:  err.Error(),
				})
				continue
			}

			for path, entry := range m.Files {
				for f := range entry.Formats {
					subpath := pathmap.ObjectPath(entry.Sha, f)
					referenced[subpath] = struct{}{}

					meta, err := c.Storage.GetMeta(subpath)
					if err != nil {
						findings = append(findings, Finding{
							Kind: MissingObject, Bundle: bundle, Version: version,
							Path: path, Subpath: subpath, Detail: err.Error(),
						})
						continue
					}
					if meta == nil {
						findings = append(findings, Finding{
							Kind: MissingObject, Bundle: bundle, Version: version,
							Path: path, Subpath: subpath, Detail: "object not present in storage",
						})
					}
				}
			}
		}
	}

	orphans, err := c.findOrphanedManifests(idx)
	if err != nil {
		return nil, err
	}
	findings = append(findings, orphans...)

	if opts.FullSweep {
		orphanObjs, err := c.findOrphanedObjects(referenced)
		if err != nil {
			return nil, err
		}
		findings = append(findings, orphanObjs...)
	}

	return findings, nil
}

// findOrphanedManifests lists every manifest subpath under manifests/ and
// reports any whose (bundle, version) is not present in the index (spec
// §4.J OrphanedManifest) — the signature of step 11's failure mode, where
// a manifest was written but the index commit never happened.
func (c *Catalog) findOrphanedManifests(idx *index.Index) ([]Finding, error) {
	subpaths, err := c.Storage.List("manifests/")
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, subpath := range subpaths {
		bundle, version, ok := parseManifestSubpath(subpath)
		if !ok {
			continue
		}

		known := false
		for _, v := range idx.Bundles[bundle] {
			if v == version {
				known = true
				break
			}
		}
		if !known {
			findings = append(findings, Finding{
				Kind: OrphanedManifest, Bundle: bundle, Version: version, Subpath: subpath,
				Detail: "manifest exists but is not listed in the index",
			})
		}
	}
	return findings, nil
}

// parseManifestSubpath reverses pathmap.ManifestPath.
func parseManifestSubpath(subpath string) (bundle string, version int, ok bool) {
	trimmed := strings.TrimPrefix(subpath, "manifests/")
	if trimmed == subpath {
		return "", 0, false
	}
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return "", 0, false
	}
	bundle = trimmed[:idx]
	rest := strings.TrimSuffix(trimmed[idx+1:], ".json")
	v, err := strconv.Atoi(rest)
	if err != nil {
		return "", 0, false
	}
	return bundle, v, true
}

func (c *Catalog) findOrphanedObjects(referenced map[string]struct{}) ([]Finding, error) {
	subpaths, err := c.Storage.List("objects/")
	if err != nil {
		return nil, err
	}

	var findings []Finding
	for _, subpath := range subpaths {
		if _, ok := referenced[subpath]; !ok {
			findings = append(findings, Finding{
				Kind:    OrphanedObject,
				Subpath: subpath,
				Detail:  "object present in storage but not referenced by any live manifest",
			})
		}
	}
	return findings, nil
}
