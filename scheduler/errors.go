package scheduler

import "errors"

// Error taxonomy surfaced by the scheduler (spec.md §7). Store-level
// uniqueness collisions are not modeled as errors here — they feed the
// admit decision directly and are only ever observed as one of these named
// kinds by the caller.
var (
	ErrJobNotRegistered      = errors.New("scheduler: job not registered")
	ErrJobAlreadyQueued      = errors.New("scheduler: job already queued")
	ErrJobAlreadyRunning     = errors.New("scheduler: job already running")
	ErrJobExecutionNotNeeded = errors.New("scheduler: job execution not necessary")
	ErrJobExecutionDisabled  = errors.New("scheduler: job execution disabled")
	ErrJobServiceNotActive   = errors.New("scheduler: job service not active")
	ErrJobNotAbortable       = errors.New("scheduler: job is not abortable")
	ErrRunningRecordNotFound = errors.New("scheduler: no running record with that id")
)
