// Package coordinator defines the named mutual-exclusion lock contract that
// keeps concurrent publishers on the same catalog safe.
package coordinator

import (
	"time"

	"github.com/pkg/errors"

	"github.com/amrox/zinc/zerr"
)

// Lock is a handle on a single named lock. Acquiring again through the same
// handle is a no-op; two handles for the same domain exclude each other, even
// within one process.
type Lock interface {
	// Acquire blocks until the lock is held or the coordinator's timeout
	// elapses, in which case it returns a *zerr.E of Kind LockUnavailable.
	// Acquire is idempotent: calling it while already held is a no-op.
	Acquire() error

	// Release gives up the lock. Idempotent.
	Release() error

	// IsLocked reports whether this handle currently holds the lock.
	IsLocked() bool
}

// Coordinator grants locks scoped to a domain (a bundle_id).
type Coordinator interface {
	// GetIndexLock returns a Lock for domain. timeout bounds Acquire; zero
	// means the coordinator's default.
	GetIndexLock(domain string, timeout time.Duration) (Lock, error)
}

// URLProber is implemented by coordinator constructors that can claim a URL
// scheme for the registry in Open.
type URLProber interface {
	ValidURL(url string) bool
}

// Factory constructs a Coordinator from a catalog reference URL.
type Factory func(url string) (Coordinator, error)

var registry = map[string]registration{}

type registration struct {
	valid   func(string) bool
	factory Factory
}

// Register adds a coordinator implementation to the URL-scheme registry.
func Register(name string, valid func(string) bool, factory Factory) {
	registry[name] = registration{valid: valid, factory: factory}
}

// Open finds a registered coordinator whose ValidURL probe accepts url, and
// constructs it. If several probes accept url, which one is used is not
// defined.
func Open(url string) (Coordinator, error) {
	for _, reg := range registry {
		if reg.valid(url) {
			return reg.factory(url)
		}
	}
	return nil, zerr.New(zerr.UsageError, errors.Errorf("no coordinator registered for url %q", url))
}
