package service

import "errors"

// Domain errors. Handlers map these to stable response codes with errors.Is,
// so every error returned by a service wraps exactly one of them.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("conflict")
	ErrInvalidDuration  = errors.New("invalid duration")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrEmptyQuiz        = errors.New("question set has no questions")
	ErrInactive         = errors.New("exam session is inactive")
	ErrNotOpen          = errors.New("exam session is not currently open")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
	ErrTimeExpired      = errors.New("attempt time budget exhausted")
	ErrStorageFailure   = errors.New("storage failure")
)
