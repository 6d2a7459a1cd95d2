// Package store provides the durable, concurrency-safe repository of job
// records and job definitions that the rest of the engine builds on.
//
// All cross-process exclusion rests on the conditional primitives exposed
// here (createUnique and the atomic state transitions) — no application
// level locks are used anywhere above this package.
package store

import (
	"time"

	"oss.nandlabs.io/jobexec/collections"
)

// RunningState is the coarse state of a JobRecord.
type RunningState int

const (
	// Running means the record currently owns the unique RUNNING slot for its name.
	Running RunningState = iota
	// Queued means the record currently owns the unique QUEUED slot for its name.
	Queued
	// Finished means the record has reached a terminal state; ResultCode is set.
	Finished
)

func (s RunningState) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Queued:
		return "QUEUED"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// ExecutionPriority is the admission priority requested for a job.
type ExecutionPriority int

const (
	// CheckPreconditions is the normal admission priority: it is rejected by
	// an equal-or-higher priority record already occupying the name.
	CheckPreconditions ExecutionPriority = iota
	// ForceExecution bypasses precondition-style rejections and can displace
	// a lower-priority queued record for the same name.
	ForceExecution
)

func (p ExecutionPriority) String() string {
	if p == ForceExecution {
		return "FORCE_EXECUTION"
	}
	return "CHECK_PRECONDITIONS"
}

// GreaterOrEqual reports whether p is an equal-or-higher admission priority than other.
func (p ExecutionPriority) GreaterOrEqual(other ExecutionPriority) bool {
	return p >= other
}

// ResultCode is the terminal outcome of a finished job record.
type ResultCode int

const (
	// NoResult is the zero value, only valid while a record is not FINISHED.
	NoResult ResultCode = iota
	Successful
	Failed
	NotExecuted
	TimedOut
	Aborted
)

func (r ResultCode) String() string {
	switch r {
	case Successful:
		return "SUCCESSFUL"
	case Failed:
		return "FAILED"
	case NotExecuted:
		return "NOT_EXECUTED"
	case TimedOut:
		return "TIMED_OUT"
	case Aborted:
		return "ABORTED"
	default:
		return ""
	}
}

// Reserved additionalData keys (spec.md §3.1).
const (
	KeyRemoteJobURI             = "remoteJobUri"
	KeyExitCode                 = "exitCode"
	KeyResumedAlreadyRunningJob = "resumedAlreadyRunningJob"
	KeyAborted                  = "aborted"
)

// LifecycleTopic is the messaging topic every successful state transition is
// published on (SPEC_FULL.md §4.3 wiring note). It lives here rather than in
// package scheduler or messaging so that subscribers (housekeeper, httpapi)
// can depend on it without importing the scheduler that publishes it.
const LifecycleTopic = "job.lifecycle"

// LogLine is one timestamped entry in a JobRecord's log.
type LogLine struct {
	Timestamp time.Time `json:"timestamp" xml:"timestamp"`
	Text      string    `json:"text" xml:"text"`
}

// DefaultMaxLogLines is the cap on a RUNNING record's log lines; the most
// recent lines win (spec.md §4.1, §8 round-trip law).
const DefaultMaxLogLines = 100

// JobRecord is one execution attempt, durably held by the store.
//
// JobRecord is never mutated by callers directly — all transitions go
// through Store methods so that lastModifiedAt bookkeeping and the
// uniqueness/immutability invariants (I1–I7) stay enforced in one place.
type JobRecord struct {
	ID                string
	Name              string
	Host              string
	Thread            string
	State             RunningState
	Priority          ExecutionPriority
	Parameters        *collections.OrderedMap[string]
	ResultCode        ResultCode
	ResultMessage     string
	StatusMessage     string
	CreatedAt         time.Time
	StartedAt         time.Time
	FinishedAt        time.Time
	LastModifiedAt    time.Time
	MaxExecutionMs    int64
	MaxIdleMs         int64
	LogLines          []LogLine
	AdditionalData    *collections.OrderedMap[string]
	AbortRequested    bool
}

// Clone returns a deep copy so callers can never mutate store-owned state
// through a record returned by a query.
func (r *JobRecord) Clone() *JobRecord {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Parameters != nil {
		cp.Parameters = r.Parameters.Clone()
	}
	if r.AdditionalData != nil {
		cp.AdditionalData = r.AdditionalData.Clone()
	}
	cp.LogLines = make([]LogLine, len(r.LogLines))
	copy(cp.LogLines, r.LogLines)
	return &cp
}

// JobDefinition is the stored, per-name metadata and policy flags (spec.md §3.1).
type JobDefinition struct {
	Name              string
	Disabled          bool
	LastNotExecutedAt time.Time
	MaxExecutionMs    int64
	MaxIdleMs         int64
	PollingIntervalMs int64
	Remote            bool
	Abortable         bool
}

func (d *JobDefinition) Clone() *JobDefinition {
	if d == nil {
		return nil
	}
	cp := *d
	return &cp
}
