package postgrest

import "errors"

// Sentinel kinds for backend responses. Both surface wrapped in a source.FetchError.
var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrMalformedBody    = errors.New("malformed response body")
	ErrMalformedRow     = errors.New("malformed row")
)
