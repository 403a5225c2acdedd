// Package apperr classifies the error taxonomy shared by the recency index,
// the backing store, and the composite store: BadArgument, NotFound,
// Storage, NotOpen, and Corrupt.
package apperr

import (
	"errors"
	"fmt"

	jujuerrors "github.com/juju/errors"
)

// ErrCorrupt is wrapped by every fatal internal-invariant violation. It has
// no juju/errors counterpart because, unlike BadArgument/NotFound/NotOpen,
// it is never a condition a caller can recover from — the collection that
// raises it must be considered unusable.
var ErrCorrupt = errors.New("corrupt")

// BadArgument reports that a caller passed a value of the wrong shape, e.g.
// a write input that is neither a single pair nor a mapping.
func BadArgument(format string, args ...interface{}) error {
	return jujuerrors.BadRequestf(format, args...)
}

// IsBadArgument reports whether err is (or wraps) a BadArgument error.
func IsBadArgument(err error) bool {
	return jujuerrors.IsBadRequest(err)
}

// NotFound reports that a get-style operation found no value for a key.
func NotFound(format string, args ...interface{}) error {
	return jujuerrors.NotFoundf(format, args...)
}

// IsNotFound reports whether err is (or wraps) a NotFound error.
func IsNotFound(err error) bool {
	return jujuerrors.IsNotFound(err)
}

// NotOpen reports that an operation was issued against a collection that is
// not in the open state.
func NotOpen(format string, args ...interface{}) error {
	return jujuerrors.NotValidf(format+" (not open)", args...)
}

// IsNotOpen reports whether err is (or wraps) a NotOpen error.
func IsNotOpen(err error) bool {
	return jujuerrors.IsNotValid(err)
}

// Corrupt wraps ErrCorrupt with context identifying the violated invariant.
func Corrupt(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

// IsCorrupt reports whether err is (or wraps) ErrCorrupt.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}

// Storage annotates a durable-engine failure with the operation that
// triggered it, preserving the original error as the cause.
func Storage(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return jujuerrors.Annotatef(err, format, args...)
}
