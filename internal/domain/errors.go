package domain

import "errors"

// Error categories surfaced to callers. Services wrap these with
// fmt.Errorf("%w: ...") so handlers can map them with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrAlreadyDecided   = errors.New("match already decided")
	ErrOverlap          = errors.New("season windows overlap")
	ErrSeasonBoundary   = errors.New("no season covers the played-at instant")
	ErrRecalcInProgress = errors.New("recalculation already in progress for season")
)
