package tiktok

import "errors"

var (
	// ErrNotFound means no source returned a usable account or video.
	ErrNotFound = errors.New("tiktok: not found")
	// ErrUnavailable means a source could not be reached or answered
	// with a server error. Triggers the fallback hop.
	ErrUnavailable = errors.New("tiktok: upstream unavailable")
	// ErrInvalidResponse means a source answered with a body we could
	// not interpret.
	ErrInvalidResponse = errors.New("tiktok: invalid response")
)
