// Package fs adapts a local directory tree into a zinc storage.Backend:
// subpaths map directly onto relative filesystem paths rooted at Dir, with
// writes going through the atomic-rename helpers in utils.go.
package fs

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/amrox/zinc/storage"
)

func init() {
	storage.Register("fs", ValidURL, func(u string) (storage.Backend, error) {
		return Open(u)
	})
}

// Scheme is the URL scheme this backend claims: file:// URLs, and bare
// filesystem paths (anything without a "://").
const Scheme = "file"

// ValidURL reports whether u names a local path this backend can open:
// either a file:// URL, or a string with no scheme at all.
func ValidURL(u string) bool {
	if strings.HasPrefix(u, Scheme+"://") {
		return true
	}
	return !strings.Contains(u, "://")
}

// Backend stores objects as plain files under Dir.
type Backend struct {
	Dir string
}

// Open constructs a Backend rooted at the directory named by u (a file://
// URL or a bare path), creating it if it does not already exist.
func Open(u string) (*Backend, error) {
	dir := u
	if strings.HasPrefix(u, Scheme+"://") {
		parsed, err := url.Parse(u)
		if err != nil {
			return nil, errors.Wrapf(err, "could not parse storage url %s", u)
		}
		dir = parsed.Path
	}

	if err := EnsureDir(dir); err != nil {
		return nil, errors.Wrapf(err, "could not initialize fs storage root %s", dir)
	}

	return &Backend{Dir: dir}, nil
}

func (b *Backend) path(subpath string) string {
	return filepath.Join(b.Dir, filepath.FromSlash(subpath))
}

// Get returns a reader for subpath, or nil if it does not exist.
func (b *Backend) Get(subpath string) (io.ReadCloser, error) {
	f, err := os.Open(b.path(subpath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", subpath)
	}
	return f, nil
}

// GetMeta returns metadata for subpath, or nil if it does not exist.
func (b *Backend) GetMeta(subpath string) (*storage.Meta, error) {
	fi, err := os.Stat(b.path(subpath))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "could not stat %s", subpath)
	}
	return &storage.Meta{Size: fi.Size()}, nil
}

// Put overwrites-or-creates subpath with the contents of r. maxAge has no
// effect on a local filesystem backend; it is meaningful only for backends
// that serve content over HTTP.
func (b *Backend) Put(subpath string, r io.Reader, maxAge int) error {
	dest := b.path(subpath)
	if err := EnsureDir(filepath.Dir(dest)); err != nil {
		return errors.Wrapf(err, "could not create parent directory for %s", subpath)
	}

	w, err := AtomicWrite(dest)
	if err != nil {
		return errors.Wrapf(err, "could not open %s for write", subpath)
	}
	defer func() {
		if rbErr := w.Rollback(); rbErr != nil && !os.IsNotExist(errors.Cause(rbErr)) {
			err = errors.Wrapf(err, "rollback also failed: %s", rbErr)
		}
	}()

	if _, err = io.Copy(w, r); err != nil {
		return errors.Wrapf(err, "could not write %s", subpath)
	}

	return w.Close()
}

// List returns every regular-file subpath under prefix.
func (b *Backend) List(prefix string) ([]string, error) {
	root := b.path(prefix)

	var subpaths []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), AtomicPrefix) {
			return nil
		}

		rel, err := filepath.Rel(b.Dir, p)
		if err != nil {
			return err
		}
		subpaths = append(subpaths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not list %s", prefix)
	}
	return subpaths, nil
}

// Delete removes subpath. Deleting an absent subpath is not an error.
func (b *Backend) Delete(subpath string) error {
	err := os.Remove(b.path(subpath))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "could not delete %s", subpath)
	}
	return nil
}

// BindToCatalog returns a Backend scoped to a subdirectory named id.
func (b *Backend) BindToCatalog(id string) storage.Backend {
	return &Backend{Dir: filepath.Join(b.Dir, id)}
}
