package nscache

import (
	"errors"
	"fmt"
)

var (
	ErrNilProvider    = errors.New("nscache: provider is required")
	ErrEmptyPrefix    = errors.New("nscache: prefix is required")
	ErrEmptyKey       = errors.New("nscache: key must not be empty")
	ErrInvalidTTL     = errors.New("nscache: ttl must be at least one second")
	ErrNilCompute     = errors.New("nscache: compute function is nil")
	ErrNilDestination = errors.New("nscache: destination must be a non-nil pointer")
	ErrDeltaRange     = errors.New("nscache: decrement delta out of range")
)

// EncodeError reports a value the codec refused to marshal.
type EncodeError struct {
	Key   string
	Codec string
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("nscache: encode %q with %s: %v", e.Key, e.Codec, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports a stored value that could not be decoded into the
// destination passed to GetInto.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("nscache: decode %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
