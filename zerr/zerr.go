// Package zerr defines the error taxonomy shared by every zinc package.
package zerr

import "fmt"

// Kind identifies a class of error a caller may want to branch on.
type Kind int

// Error kinds surfaced by the catalog write pipeline and its collaborators.
const (
	Unknown Kind = iota
	UsageError
	LockUnavailable
	StorageError
	StorageInconsistent
	UnsupportedIndex
	UnknownBundle
	UnknownVersion
	InUse
	ManifestInvalid
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case UsageError:
		return "UsageError"
	case LockUnavailable:
		return "LockUnavailable"
	case StorageError:
		return "StorageError"
	case StorageInconsistent:
		return "StorageInconsistent"
	case UnsupportedIndex:
		return "UnsupportedIndex"
	case UnknownBundle:
		return "UnknownBundle"
	case UnknownVersion:
		return "UnknownVersion"
	case InUse:
		return "InUse"
	case ManifestInvalid:
		return "ManifestInvalid"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// E is a typed zinc error. It wraps an underlying cause (often already
// decorated via github.com/pkg/errors) with a Kind a caller can switch on,
// and, for StorageError, whether the failure is safe to retry.
type E struct {
	Kind      Kind
	Retryable bool
	Cause     error
}

func (e *E) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *E) Unwrap() error {
	return e.Cause
}

// New builds an *E of the given kind wrapping cause.
func New(k Kind, cause error) *E {
	return &E{Kind: k, Cause: cause}
}

// Newf builds an *E of the given kind with a formatted message.
func Newf(k Kind, format string, args ...interface{}) *E {
	return &E{Kind: k, Cause: fmt.Errorf(format, args...)}
}

// Retry marks a StorageError as retryable.
func Retry(k Kind, cause error) *E {
	return &E{Kind: k, Cause: cause, Retryable: true}
}

// KindOf returns the Kind of err if it (or something it wraps) is an *E,
// otherwise Unknown.
func KindOf(err error) Kind {
	type causer interface {
		Cause() error
	}
	for err != nil {
		if e, ok := err.(*E); ok {
			return e.Kind
		}
		if u, ok := err.(interface{ Unwrap() error }); ok {
			err = u.Unwrap()
			continue
		}
		if c, ok := err.(causer); ok {
			err = c.Cause()
			continue
		}
		break
	}
	return Unknown
}

// Is reports whether err carries the given Kind.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
