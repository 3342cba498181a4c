package monitor

import "errors"

var (
	// ErrRootUnavailable is returned by Track when the watch root is missing
	// or is not a directory. Tracking for that root does not proceed.
	ErrRootUnavailable = errors.New("watch root unavailable")

	// ErrRootIgnored is returned by Track when the root itself matches the
	// ignore rules.
	ErrRootIgnored = errors.New("watch root matches ignore rules")
)
