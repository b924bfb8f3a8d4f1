package stages

import "errors"

var (
	ErrNotStarted    = errors.New("match not started")
	ErrNotAllReady   = errors.New("not every player is ready")
	ErrMatchFinished = errors.New("match already finished")
	ErrWrongStage    = errors.New("action not allowed in the current stage")
	ErrInvalidTarget = errors.New("vote target is not a member of this room")

	// compare-and-set on the state version lost, retried internally
	errVersionConflict = errors.New("state version conflict")
)
