package store

import (
	"time"

	"oss.nandlabs.io/jobexec/collections"
)

// Store provides conditional, linearizable-enough primitives on JobRecord
// such that at most one process ever wins a race to insert or to transition
// a record (spec.md §4.1). createUnique returning a zero id (not an error)
// is how the uniqueness constraint rejects an insert — storage unavailability
// is the only thing that propagates as an error.
type Store interface {
	// CreateUnique inserts a new record for name in state (Running or Queued)
	// only if no record for name currently occupies that state. Returns "" if
	// the uniqueness constraint rejected the insert.
	CreateUnique(name string, maxExecutionMs int64, state RunningState, priority ExecutionPriority, params *collections.OrderedMap[string]) (id string, err error)

	FindByNameAndState(name string, state RunningState) (*JobRecord, error)
	FindByID(id string) (*JobRecord, error)
	// FindByName returns the most recent limit records for name, newest first.
	FindByName(name string, limit int) ([]*JobRecord, error)
	// FindByNameAndTimeRange returns records for name created within [from, to],
	// optionally filtered to the given result codes (ignored when empty).
	FindByNameAndTimeRange(name string, from, to time.Time, resultCodes ...ResultCode) ([]*JobRecord, error)
	// FindQueuedSortedAscByCreation returns every QUEUED record across all
	// names, oldest first.
	FindQueuedSortedAscByCreation() ([]*JobRecord, error)
	HasJob(name string, state RunningState) (bool, error)
	// ListDefinitions returns every distinct registered job name's definition.
	ListDefinitions() ([]*JobDefinition, error)

	Remove(id string) error

	// UpsertDefinition inserts or replaces the definition for name.
	UpsertDefinition(def *JobDefinition) error
	GetDefinition(name string) (*JobDefinition, error)
	SetDefinitionDisabled(name string, disabled bool) error

	// MarkQueuedAsNotExecuted transitions the unique QUEUED record for name to
	// FINISHED:NOT_EXECUTED. Returns whether a queued record existed.
	MarkQueuedAsNotExecuted(name string) (bool, error)
	// ActivateQueuedJob atomically flips the unique QUEUED record to RUNNING,
	// stamping StartedAt. Returns false if no such record remains.
	ActivateQueuedJob(name string) (bool, error)
	MarkRunningAsFinished(name string, resultCode ResultCode, message string) error
	MarkRunningAsFinishedSuccessfully(name string) error
	// UpdateHostThread stamps the current host/thread on the RUNNING record for name.
	UpdateHostThread(name, host, thread string) error

	// AppendLogLine appends one line to the RUNNING record for name, capping
	// at maxLines (the most recent lines win).
	AppendLogLine(name string, line LogLine, maxLines int) error
	// SetLogLines bulk-replaces the RUNNING record's log lines for name,
	// capping at maxLines (the most recent lines win).
	SetLogLines(name string, lines []LogLine, maxLines int) error

	// InsertAdditionalData sets key only if it is not already present on the
	// RUNNING record for name (first-insert-wins).
	InsertAdditionalData(name, key, value string) error
	// AddAdditionalData sets key unconditionally, overwriting any prior value.
	AddAdditionalData(name, key, value string) error

	// SetAbortRequested marks the RUNNING record for name as abort-requested.
	SetAbortRequested(name string) error

	// SetStatusMessage sets the RUNNING record's dedicated StatusMessage
	// field for name (spec.md §3.1's StatusMessage, distinct from
	// additionalData).
	SetStatusMessage(name, message string) error
}
