package source

import (
	"errors"
	"fmt"
)

// ErrFetch is the single error kind reported by ranking and catalog sources.
var ErrFetch = errors.New("fetch failed")

// FetchError describes a failed backend read.
type FetchError struct {
	Source string // adapter name, e.g. "postgrest"
	Op     string // read that failed, e.g. "observations"
	Err    error
}

// NewFetchError wraps err as a FetchError.
func NewFetchError(source, op string, err error) *FetchError {
	return &FetchError{Source: source, Op: op, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrFetch, e.Source, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports ErrFetch so callers can match any FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }
