package catalog_test

import (
	"bytes"
	"os"
	"testing"

	"github.com/amrox/zinc/catalog"
	"github.com/amrox/zinc/format"
	"github.com/amrox/zinc/pathmap"
)

func TestVerifyCleanCatalogHasNoFindings(t *testing.T) {
	c, teardown := newTestCatalog(t)
	defer teardown()

	src := writeSourceTree(t, map[string]string{"a.txt": "aaa"})
	defer os.RemoveAll(src)

	if _, err := c.CreateBundleVersion("widgets", src, catalog.UpdateOptions{SkipMasterArchive: true}); err != nil {
		t.Fatalf("could not create version: %s", err)
	}

	findings, err := c.Verify(catalog.VerifyOptions{FullSweep: true})
	if err != nil {
		t.Fatalf("verify failed: %s", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected no findings, got %+v", findings)
	}
}

func TestVerifyDetectsMissingObject(t *testing.T) {
	c, teardown := newTestCatalog(t)
	defer teardown()

	src := writeSourceTree(t, map[string]string{"a.txt": "aaa"})
	defer os.RemoveAll(src)

	if _, err := c.CreateBundleVersion("widgets", src, catalog.UpdateOptions{SkipMasterArchive: true}); err != nil {
		t.Fatalf("could not create version: %s", err)
	}

	m, err := c.ManifestForBundle("widgets", 1)
	if err != nil {
		t.Fatalf("could not read manifest: %s", err)
	}
	entry := m.Files["a.txt"]
	if err := c.Storage.Delete(pathmap.ObjectPath(entry.Sha, format.Raw)); err != nil {
		t.Fatalf("could not delete object: %s", err)
	}

	findings, err := c.Verify(catalog.VerifyOptions{})
	if err != nil {
		t.Fatalf("verify failed: %s", err)
	}
	if len(findings) != 1 || findings[0].Kind != catalog.MissingObject {
		t.Fatalf("expected a single MissingObject finding, got %+v", findings)
	}
}

func TestVerifyDetectsOrphanedManifest(t *testing.T) {
	c, teardown := newTestCatalog(t)
	defer teardown()

	m := bytes.NewBufferString(`{"catalog_id":"cat","bundle_name":"ghost","version":1,"files":{}}`)
	if err := c.Storage.Put(pathmap.ManifestPath("ghost", 1), m, 0); err != nil {
		t.Fatalf("could not seed orphan manifest: %s", err)
	}

	findings, err := c.Verify(catalog.VerifyOptions{})
	if err != nil {
		t.Fatalf("verify failed: %s", err)
	}

	found := false
	for _, f := range findings {
		if f.Kind == catalog.OrphanedManifest && f.Bundle == "ghost" && f.Version == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an OrphanedManifest finding for ghost-1, got %+v", findings)
	}
}

func TestVerifyFullSweepDetectsOrphanedObject(t *testing.T) {
	c, teardown := newTestCatalog(t)
	defer teardown()

	src := writeSourceTree(t, map[string]string{"a.txt": "aaa"})
	defer os.RemoveAll(src)
	if _, err := c.CreateBundleVersion("widgets", src, catalog.UpdateOptions{SkipMasterArchive: true}); err != nil {
		t.Fatalf("could not create version: %s", err)
	}

	if err := c.Storage.Put(pathmap.ObjectPath("deadbeef", format.Raw), bytes.NewBufferString("orphan"), 0); err != nil {
		t.Fatalf("could not seed orphan object: %s", err)
	}

	findings, err := c.Verify(catalog.VerifyOptions{FullSweep: true})
	if err != nil {
		t.Fatalf("verify failed: %s", err)
	}

	found := false
	for _, f := range findings {
		if f.Kind == catalog.OrphanedObject {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an OrphanedObject finding, got %+v", findings)
	}
}
