package catalog_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/amrox/zinc/catalog"
	"github.com/amrox/zinc/drivers/filelock"
	"github.com/amrox/zinc/drivers/fs"
	"github.com/amrox/zinc/zerr"
)

// newTestCatalog wires a fresh fs-backed, filelock-coordinated catalog
// rooted at a temp directory, plus a teardown func.
func newTestCatalog(t *testing.T) (*catalog.Catalog, func()) {
	t.Helper()

	storeDir, err := ioutil.TempDir("", "zinc_catalog_store")
	if err != nil {
		t.Fatalf("could not create storage tempdir: %s", err)
	}
	lockDir, err := ioutil.TempDir("", "zinc_catalog_locks")
	if err != nil {
		t.Fatalf("could not create lock tempdir: %s", err)
	}

	backend, err := fs.Open("file://" + storeDir)
	if err != nil {
		t.Fatalf("could not open storage backend: %s", err)
	}
	bound := backend.BindToCatalog("cat")

	coord, err := filelock.Open("filelock://" + lockDir)
	if err != nil {
		t.Fatalf("could not open coordinator: %s", err)
	}

	c, err := catalog.Create("cat", bound, coord)
	if err != nil {
		t.Fatalf("could not create catalog: %s", err)
	}

	return c, func() {
		os.RemoveAll(storeDir)
		os.RemoveAll(lockDir)
	}
}

func writeSourceTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "zinc_catalog_src")
	if err != nil {
		t.Fatalf("could not create source tempdir: %s", err)
	}
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("could not create dir for %s: %s", rel, err)
		}
		if err := ioutil.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatalf("could not write %s: %s", rel, err)
		}
	}
	return dir
}

func TestCreateBundleVersionPublishesFirstVersion(t *testing.T) {
	c, teardown := newTestCatalog(t)
	defer teardown()

	src := writeSourceTree(t, map[string]string{"a.txt": "aaa", "b/c.txt": "ccc"})
	defer os.RemoveAll(src)

	result, err := c.CreateBundleVersion("widgets", src, catalog.UpdateOptions{SkipMasterArchive: true})
	if err != nil {
		t.Fatalf("could not create bundle version: %s", err)
	}
	if result.Version != 1 || result.Deduped {
		t.Fatalf("expected fresh version 1, got %+v", result)
	}

	versions, err := c.VersionsForBundle("widgets")
	if err != nil {
		t.Fatalf("could not list versions: %s", err)
	}
	if len(versions) != 1 || versions[0] != 1 {
		t.Fatalf("expected [1], got %v", versions)
	}

	m, err := c.ManifestForBundle("widgets", 1)
	if err != nil {
		t.Fatalf("could not read manifest: %s", err)
	}
	if len(m.Files) != 2 {
		t.Fatalf("expected 2 files in manifest, got %d", len(m.Files))
	}
}

func TestCreateBundleVersionDedupsIdenticalContent(t *testing.T) {
	c, teardown := newTestCatalog(t)
	defer teardown()

	src := writeSourceTree(t, map[string]string{"a.txt": "aaa"})
	defer os.RemoveAll(src)

	opts := catalog.UpdateOptions{SkipMasterArchive: true}
	first, err := c.CreateBundleVersion("widgets", src, opts)
	if err != nil {
		t.Fatalf("could not create first version: %s", err)
	}

	second, err := c.CreateBundleVersion("widgets", src, opts)
	if err != nil {
		t.Fatalf("could not create second version: %s", err)
	}
	if !second.Deduped || second.Version != first.Version {
		t.Fatalf("expected dedup against version %d, got %+v", first.Version, second)
	}

	versions, _ := c.VersionsForBundle("widgets")
	if len(versions) != 1 {
		t.Fatalf("expected no new version to be recorded, got %v", versions)
	}
}

func TestCreateBundleVersionPublishesNewVersionOnChange(t *testing.T) {
	c, teardown := newTestCatalog(t)
	defer teardown()

	opts := catalog.UpdateOptions{SkipMasterArchive: true}

	src1 := writeSourceTree(t, map[string]string{"a.txt": "aaa"})
	defer os.RemoveAll(src1)
	if _, err := c.CreateBundleVersion("widgets", src1, opts); err != nil {
		t.Fatalf("could not create first version: %s", err)
	}

	src2 := writeSourceTree(t, map[string]string{"a.txt": "changed"})
	defer os.RemoveAll(src2)
	second, err := c.CreateBundleVersion("widgets", src2, opts)
	if err != nil {
		t.Fatalf("could not create second version: %s", err)
	}
	if second.Deduped || second.Version != 2 {
		t.Fatalf("expected a fresh version 2, got %+v", second)
	}
}

func TestCreateBundleVersionForceSkipsDedup(t *testing.T) {
	c, teardown := newTestCatalog(t)
	defer teardown()

	src := writeSourceTree(t, map[string]string{"a.txt": "aaa"})
	defer os.RemoveAll(src)

	if _, err := c.CreateBundleVersion("widgets", src, catalog.UpdateOptions{SkipMasterArchive: true}); err != nil {
		t.Fatalf("could not create first version: %s", err)
	}

	forced, err := c.CreateBundleVersion("widgets", src, catalog.UpdateOptions{SkipMasterArchive: true, Force: true})
	if err != nil {
		t.Fatalf("could not force a new version: %s", err)
	}
	if forced.Deduped || forced.Version != 2 {
		t.Fatalf("expected Force to produce a fresh version 2, got %+v", forced)
	}
}

func TestUpdateDistributionAndDeleteVersionInUse(t *testing.T) {
	c, teardown := newTestCatalog(t)
	defer teardown()

	src := writeSourceTree(t, map[string]string{"a.txt": "aaa"})
	defer os.RemoveAll(src)

	if _, err := c.CreateBundleVersion("widgets", src, catalog.UpdateOptions{SkipMasterArchive: true}); err != nil {
		t.Fatalf("could not create version: %s", err)
	}

	if err := c.UpdateDistribution("prod", "widgets", 1); err != nil {
		t.Fatalf("could not update distribution: %s", err)
	}

	err := c.DeleteVersion("widgets", 1)
	if zerr.KindOf(err) != zerr.InUse {
		t.Fatalf("expected InUse deleting a distributed version, got %v", err)
	}

	if err := c.DeleteDistribution("prod", "widgets"); err != nil {
		t.Fatalf("could not delete distribution: %s", err)
	}
	if err := c.DeleteVersion("widgets", 1); err != nil {
		t.Fatalf("expected version deletable once undistributed: %s", err)
	}
}

func TestBundleIDNamespacesByCatalog(t *testing.T) {
	if got := catalog.BundleID("cat", "widgets"); got != "cat.widgets" {
		t.Errorf("got %q, want cat.widgets", got)
	}
}
