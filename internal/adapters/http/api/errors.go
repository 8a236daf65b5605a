package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest    = errors.New("bad request")
	ErrLimitExceeded = errors.New("limit exceeded")
	ErrRender        = errors.New("render failed")
)

// wrap annotates err with the handler operation that produced it.
func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
