package push

import "errors"

// Errors returned by backends.
//
// Check them with errors.Is; the classifiers below group them by how the
// dispatcher reports them.
var (
	// ErrDestinationConflict is returned by Update when the destination is
	// not older than the source. The push is skipped.
	ErrDestinationConflict = errors.New("destination is not older than source")

	// ErrDestinationExists is returned by Add when something already lives
	// at the destination.
	ErrDestinationExists = errors.New("destination already exists")

	// ErrSourceMissing is returned when the source vanished before it could
	// be pushed.
	ErrSourceMissing = errors.New("source no longer exists")

	// ErrOutsideSource is returned for paths that are not below the source
	// root.
	ErrOutsideSource = errors.New("path is outside the source root")

	// ErrUnknownBackend is returned by Open for an unregistered kind.
	ErrUnknownBackend = errors.New("unknown push backend")

	// ErrWorkerStopped is returned when an event is handed to a stopped
	// worker.
	ErrWorkerStopped = errors.New("push worker stopped")
)

// IsSkip returns true if the error means the push was deliberately not
// performed and nothing is wrong.
func IsSkip(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrDestinationConflict) || errors.Is(err, ErrSourceMissing)
}
