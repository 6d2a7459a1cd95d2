package transport

import "errors"

// ErrRemoteJobNotRunning is returned by Stop when the remote executor
// reports 403 for a job URI — spec.md §4.3.1's "a 403 from the remote maps
// to 'not running' (no-op)".
var ErrRemoteJobNotRunning = errors.New("transport: remote job is not running")

// ErrJobExecutionException is the generic remote-executor failure kind
// named in spec.md §7 for any start response outside the documented
// 200/201/303 family.
var ErrJobExecutionException = errors.New("transport: remote executor rejected the job")

// AlreadyRunningError carries the resumed job URI, per spec.md §7's
// "RemoteJobAlreadyRunning (carries the resumed URI)".
type AlreadyRunningError struct {
	URI string
}

func (e *AlreadyRunningError) Error() string {
	return "transport: remote job already running at " + e.URI
}
