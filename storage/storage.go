// Package storage defines the pluggable object-store contract zinc writes
// and reads against: a flat, subpath-keyed blob store with get/put/list/
// delete and no further structure imposed by the backend.
package storage

import (
	"io"

	"github.com/pkg/errors"

	"github.com/amrox/zinc/zerr"
)

// Meta describes an object without fetching its bytes.
type Meta struct {
	Size int64
}

// Backend is the storage contract a catalog is built on. Every method may
// fail with an error; Get/GetMeta return (nil, nil) when the subpath is
// simply absent, which is not itself an error.
type Backend interface {
	// Get returns a reader for subpath, or nil if it does not exist.
	Get(subpath string) (io.ReadCloser, error)

	// GetMeta returns metadata for subpath, or nil if it does not exist.
	GetMeta(subpath string) (*Meta, error)

	// Put overwrites-or-creates subpath with the contents of r. maxAge, if
	// nonzero, is a cache-control hint for backends that serve content over
	// HTTP. Put is durable on return.
	Put(subpath string, r io.Reader, maxAge int) error

	// List returns every subpath under prefix, excluding synthetic
	// directory markers.
	List(prefix string) ([]string, error)

	// Delete removes subpath. It is idempotent: deleting an absent subpath
	// is not an error.
	Delete(subpath string) error

	// BindToCatalog returns a view of this backend whose subpaths are
	// implicitly prefixed by id + "/".
	BindToCatalog(id string) Backend
}

// URLProber is implemented by backend constructors that can claim a URL
// scheme for the registry in Open.
type URLProber interface {
	ValidURL(url string) bool
}

// Factory constructs a Backend from a catalog reference URL.
type Factory func(url string) (Backend, error)

var registry = map[string]registration{}

type registration struct {
	valid   func(string) bool
	factory Factory
}

// Register adds a backend implementation to the URL-scheme registry. valid
// is the implementation's class-level URL scheme probe (spec §6
// valid_url); factory constructs a bound instance from a URL that passes
// it.
func Register(name string, valid func(string) bool, factory Factory) {
	registry[name] = registration{valid: valid, factory: factory}
}

// Open finds a registered backend whose ValidURL probe accepts url, and
// constructs it. If several probes accept url, which one is used is not
// defined.
func Open(url string) (Backend, error) {
	for _, reg := range registry {
		if reg.valid(url) {
			return reg.factory(url)
		}
	}
	return nil, zerr.New(zerr.UsageError, errors.Errorf("no storage backend registered for url %q", url))
}
