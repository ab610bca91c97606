package domain

import "errors"

// Error taxonomy for the workflow core. NotFound, AlreadyDecided and
// InvalidDecision are recovered at the supervisor boundary; UpstreamFailure
// and PersistenceFailure inside a node abort the run.
var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyDecided     = errors.New("approval already decided")
	ErrInvalidDecision    = errors.New("invalid decision")
	ErrUpstreamFailure    = errors.New("upstream failure")
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrStaleParent means a checkpoint Put lost the race against a
	// concurrent writer on the same thread.
	ErrStaleParent = errors.New("checkpoint parent is not latest")
)
