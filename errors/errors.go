package errors

import (
	"errors"
	"fmt"
)

// Is and As are re-exported so callers never need a second errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Join(errs ...error) error { return errors.Join(errs...) }

var (
	// ErrGenerationFailure covers capability timeouts, transport errors and
	// non-conforming responses. Retryable; no state was mutated.
	ErrGenerationFailure = fmt.Errorf("distillation generation failure")

	// ErrStaleVersion is returned to the loser of a concurrent refine/approve
	// race. Retryable after re-fetching the current version.
	ErrStaleVersion = fmt.Errorf("stale version conflict")

	// ErrNotAuthorized is terminal: the actor is not the participant this
	// action is scoped to.
	ErrNotAuthorized = fmt.Errorf("not authorized")

	// ErrTurnConflict is terminal: the actor does not hold the floor.
	ErrTurnConflict = fmt.Errorf("floor not held")

	// ErrPartialPublishEffect marks a publish whose trailing effects (whisper
	// dispatch, floor release) did not all complete. The publish itself is
	// final; the effects are retried independently.
	ErrPartialPublishEffect = fmt.Errorf("partial publish effect")

	ErrInvalidTransition    = fmt.Errorf("invalid message transition")
	ErrValidation           = fmt.Errorf("validation failed")
	ErrAlreadyPublished     = fmt.Errorf("message already published")
	ErrAlreadyRequested     = fmt.Errorf("speaker request already pending")
	ErrDistillationInFlight = fmt.Errorf("distillation already in flight")
	ErrNotFound             = fmt.Errorf("not found")

	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")

	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
)
