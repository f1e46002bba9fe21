// Package filelock implements a zinc coordinator.Coordinator backed by
// advisory file locks (github.com/gofrs/flock), suitable for a zinc
// deployment where every writer shares a filesystem.
package filelock

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/amrox/zinc/coordinator"
	"github.com/amrox/zinc/drivers/fs"
	"github.com/amrox/zinc/zerr"
)

func init() {
	coordinator.Register("filelock", ValidURL, func(u string) (coordinator.Coordinator, error) {
		return Open(u)
	})
}

// Scheme is the URL scheme this coordinator claims.
const Scheme = "filelock"

// retryDelay is how often Acquire polls for the lock while blocked.
const retryDelay = 50 * time.Millisecond

// ValidURL reports whether u names a filelock:// directory.
func ValidURL(u string) bool {
	return strings.HasPrefix(u, Scheme+"://")
}

// Coordinator grants locks as files under Dir, one per domain.
type Coordinator struct {
	Dir string
}

// Open constructs a Coordinator rooted at the directory named by u.
func Open(u string) (*Coordinator, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse coordinator url %s", u)
	}

	if err := fs.EnsureDir(parsed.Path); err != nil {
		return nil, errors.Wrapf(err, "could not initialize lock directory %s", parsed.Path)
	}

	return &Coordinator{Dir: parsed.Path}, nil
}

// GetIndexLock returns a Lock for domain. timeout bounds Acquire; zero means
// block indefinitely.
func (c *Coordinator) GetIndexLock(domain string, timeout time.Duration) (coordinator.Lock, error) {
	sum := sha1.Sum([]byte(domain))
	path := filepath.Join(c.Dir, hex.EncodeToString(sum[:])+".lock")

	return &Lock{fl: flock.New(path), timeout: timeout}, nil
}

// Lock is a single domain's advisory file lock handle.
type Lock struct {
	fl      *flock.Flock
	timeout time.Duration
}

// Acquire blocks until the lock is held or timeout elapses.
func (l *Lock) Acquire() error {
	if l.fl.Locked() {
		return nil
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if l.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	ok, err := l.fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		return zerr.New(zerr.LockUnavailable, errors.Wrapf(err, "could not acquire lock %s", l.fl.Path()))
	}
	if !ok {
		return zerr.Newf(zerr.LockUnavailable, "timed out acquiring lock %s", l.fl.Path())
	}
	return nil
}

// Release gives up the lock. Idempotent.
func (l *Lock) Release() error {
	if !l.fl.Locked() {
		return nil
	}
	if err := l.fl.Unlock(); err != nil {
		return errors.Wrapf(err, "could not release lock %s", l.fl.Path())
	}
	return nil
}

// IsLocked reports whether this handle currently holds the lock.
func (l *Lock) IsLocked() bool {
	return l.fl.Locked()
}
