package httpapi

import (
	"errors"
	"net/http"

	"oss.nandlabs.io/jobexec/remote/transport"
	"oss.nandlabs.io/jobexec/scheduler"
)

// statusFor maps the scheduler/transport error taxonomy (spec.md §7) to the
// HTTP status codes named in spec.md §6.1. Unrecognized errors (store-level
// failures) map to 500.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, scheduler.ErrJobNotRegistered), errors.Is(err, scheduler.ErrRunningRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, scheduler.ErrJobAlreadyQueued), errors.Is(err, scheduler.ErrJobAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, scheduler.ErrJobExecutionNotNeeded), errors.Is(err, scheduler.ErrJobExecutionDisabled):
		return http.StatusPreconditionFailed
	case errors.Is(err, scheduler.ErrJobNotAbortable):
		return http.StatusForbidden
	case errors.Is(err, scheduler.ErrJobServiceNotActive):
		return http.StatusPreconditionFailed
	case errors.Is(err, transport.ErrRemoteJobNotRunning):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
