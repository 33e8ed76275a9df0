package metacache

import (
	"errors"
	"fmt"
)

// ErrCacheCorrupt indicates a metadata file could not be decoded even after a
// fresh fetch.
var ErrCacheCorrupt = errors.New("cached metadata is corrupt")

// CorruptError identifies the offending file and the decode failure.
type CorruptError struct {
	Remote string
	Path   string
	Err    error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("%s (%s): %v", ErrCacheCorrupt, e.Remote, e.Err)
}

func (e *CorruptError) Unwrap() []error {
	return []error{ErrCacheCorrupt, e.Err}
}

// decodeError marks a local file whose content is unusable.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }
