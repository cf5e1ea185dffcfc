package engine

import "errors"

var (
	ErrMatchEnded       = errors.New("match has ended")
	ErrInvalidPhase     = errors.New("command not allowed in current phase")
	ErrNotSeated        = errors.New("caller is not seated in this match")
	ErrDeadPlayer       = errors.New("dead players cannot act")
	ErrForbiddenRole    = errors.New("caller's role cannot perform this action")
	ErrAlreadySubmitted = errors.New("action already recorded for this phase")
	ErrInvalidTarget    = errors.New("invalid target")
	ErrInvalidArgs      = errors.New("invalid arguments")
	ErrMatchNotFound    = errors.New("match not found")
	ErrQueueNotFound    = errors.New("queue not found")
	ErrForbidden        = errors.New("forbidden")
)
