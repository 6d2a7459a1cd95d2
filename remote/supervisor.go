// Package remote implements the remote-job supervisor: it polls each
// RUNNING remote job's status from its remote executor and reconciles the
// store accordingly (spec.md §4.4).
package remote

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"oss.nandlabs.io/jobexec/chrono"
	"oss.nandlabs.io/jobexec/l3"
	"oss.nandlabs.io/jobexec/lifecycle"
	"oss.nandlabs.io/jobexec/remote/transport"
	"oss.nandlabs.io/jobexec/runnable"
	"oss.nandlabs.io/jobexec/store"
)

var logger = l3.Get()

const (
	pollJobID   = "remote-poll"
	pollJobName = "remote-poll-cycle"
)

// DefaultPollInterval is the check.md "tick" cadence Supervisor's own
// chrono interval job runs at; each remote Runnable's own PollingIntervalMs
// additionally gates whether a given job is actually queried on a given
// tick (spec.md §4.4's "skip unless lastModifiedAt is older than
// now-pollingInterval").
const DefaultPollInterval = 1 * time.Second

// Supervisor is the poll-cycle component of spec.md §4.4.
type Supervisor struct {
	*lifecycle.SimpleComponent

	store    store.Store
	registry *runnable.Registry

	executionEnabled *atomic.Bool // shared with scheduler.Scheduler
	chronoSch        chrono.Scheduler
	tickInterval     time.Duration

	mu            sync.Mutex
	lastLineCount map[string]int // name -> count-based log de-dup bookkeeping (spec.md §9 Open Question)
}

// New creates a Supervisor. executionEnabled is the same atomic flag the
// scheduler flips via SetExecutionEnabled, so pollRemoteJobs is a genuine
// no-op under global disable rather than a second source of truth.
func New(st store.Store, registry *runnable.Registry, executionEnabled *atomic.Bool, tickInterval time.Duration) *Supervisor {
	if tickInterval <= 0 {
		tickInterval = DefaultPollInterval
	}
	s := &Supervisor{
		store:            st,
		registry:         registry,
		executionEnabled: executionEnabled,
		tickInterval:     tickInterval,
		lastLineCount:    make(map[string]int),
	}
	s.chronoSch = chrono.New(chrono.WithInstanceID("remote-supervisor"))
	s.SimpleComponent = &lifecycle.SimpleComponent{
		CompId: "remote-supervisor",
		StartFunc: func() error {
			if err := s.chronoSch.Start(); err != nil {
				return err
			}
			return s.chronoSch.AddIntervalJob(pollJobID, pollJobName, func(ctx context.Context) error {
				s.PollRemoteJobs(ctx)
				return nil
			}, s.tickInterval)
		},
		StopFunc: func() error {
			return s.chronoSch.Stop()
		},
	}
	return s
}

// PollRemoteJobs is spec.md §4.4's pollRemoteJobs: a no-op under global
// disable, otherwise reconciles every remote-registered job's RUNNING
// record against its remote executor's reported status.
func (s *Supervisor) PollRemoteJobs(ctx context.Context) {
	if !s.executionEnabled.Load() {
		return
	}
	for _, r := range s.registry.All() {
		if !r.IsRemote() {
			continue
		}
		rr, ok := r.(*Runnable)
		if !ok {
			continue
		}
		s.pollOne(ctx, rr)
	}
}

func (s *Supervisor) pollOne(ctx context.Context, r *Runnable) {
	rec, err := s.store.FindByNameAndState(r.Name(), store.Running)
	if err != nil || rec == nil {
		return
	}
	interval := time.Duration(r.PollingIntervalMs()) * time.Millisecond
	if interval > 0 && time.Since(rec.LastModifiedAt) < interval {
		return
	}
	jobURI, ok := additionalDataValue(rec, store.KeyRemoteJobURI)
	if !ok || jobURI == "" {
		return
	}

	status, err := r.poster.Status(ctx, r.BaseURI(), jobURI)
	if err != nil {
		// Transient remote errors are swallowed per cycle (spec.md §4.4);
		// the housekeeper eventually times the record out.
		logger.TraceF("remote: polling %s: %v", r.Name(), err)
		return
	}

	switch status.State {
	case "RUNNING":
		s.applyRunningStatus(r.Name(), status)
	case "FINISHED":
		s.applyFinishedStatus(r.Name(), status)
	}
}

// applyRunningStatus appends the newly-reported log lines to the record
// and sets statusMessage (spec.md §4.4). Log-line
// de-duplication is count-based and preserved verbatim per spec.md §9's
// Open Question: only lines beyond the last-seen count are appended, which
// reproduces the spec's documented failure mode (a remote that truncates
// and restarts its own log produces duplicate or missing lines here).
func (s *Supervisor) applyRunningStatus(name string, status *transport.RemoteJobStatus) {
	s.mu.Lock()
	seen := s.lastLineCount[name]
	total := len(status.LogLines)
	if seen > total {
		seen = 0 // remote log was truncated/restarted; re-append from scratch
	}
	newLines := status.LogLines[seen:]
	s.lastLineCount[name] = total
	s.mu.Unlock()

	for _, line := range newLines {
		if err := s.store.AppendLogLine(name, store.LogLine{Timestamp: time.Now(), Text: line}, store.DefaultMaxLogLines); err != nil {
			logger.WarnF("remote: appending log line for %s: %v", name, err)
		}
	}
	if status.Message != "" {
		if err := s.store.SetStatusMessage(name, status.Message); err != nil {
			logger.WarnF("remote: setting statusMessage for %s: %v", name, err)
		}
	}
}

// applyFinishedStatus maps a FINISHED remote status to its store terminal
// transition (spec.md §4.4).
func (s *Supervisor) applyFinishedStatus(name string, status *transport.RemoteJobStatus) {
	s.mu.Lock()
	delete(s.lastLineCount, name)
	s.mu.Unlock()

	if status.Result == nil {
		logger.WarnF("remote: FINISHED status for %s carried no result", name)
		return
	}
	if status.Result.Ok {
		if err := s.store.MarkRunningAsFinishedSuccessfully(name); err != nil {
			logger.WarnF("remote: finishing %s successfully: %v", name, err)
		}
		return
	}
	if err := s.store.AddAdditionalData(name, store.KeyExitCode, strconv.Itoa(status.Result.ExitCode)); err != nil {
		logger.WarnF("remote: recording exit code for %s: %v", name, err)
	}
	if err := s.store.MarkRunningAsFinished(name, store.Failed, status.Result.Message); err != nil {
		logger.WarnF("remote: finishing %s as failed: %v", name, err)
	}
}

func additionalDataValue(rec *store.JobRecord, key string) (string, bool) {
	if rec.AdditionalData == nil {
		return "", false
	}
	return rec.AdditionalData.Get(key)
}
