// Package scheduler is the job lifecycle engine: it owns the admit/queue/run
// decision, queue drain, running-constraint checks, and worker dispatch
// described in spec.md §4.3/§4.3.1.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"oss.nandlabs.io/jobexec/chrono"
	"oss.nandlabs.io/jobexec/collections"
	"oss.nandlabs.io/jobexec/constraint"
	"oss.nandlabs.io/jobexec/l3"
	"oss.nandlabs.io/jobexec/lifecycle"
	"oss.nandlabs.io/jobexec/pool"
	"oss.nandlabs.io/jobexec/runnable"
	"oss.nandlabs.io/jobexec/store"
)

var logger = l3.Get()

const (
	drainJobID  = "scheduler-queue-drain"
	drainJobName = "queue-drain"
)

// Scheduler is the job lifecycle engine described in spec.md §4.3. It embeds
// *lifecycle.SimpleComponent so process wiring (cmd/jobexecd) can start and
// stop it like every other component in the service.
type Scheduler struct {
	*lifecycle.SimpleComponent

	store       store.Store
	registry    *runnable.Registry
	constraints *constraint.Set
	options     Options

	executionEnabled atomic.Bool

	workers   pool.Pool[*localWorker]
	chronoSch chrono.Scheduler

	mu            sync.Mutex
	runningAborts map[string]context.CancelFunc // job name -> cancel for its local worker
}

// New creates a Scheduler bound to store and registry. Call Start to begin
// the queue-drain loop; the scheduler accepts executeJob calls even before
// Start (spec.md does not gate admission on the drain loop running).
func New(st store.Store, registry *runnable.Registry, opts Options) *Scheduler {
	opts = opts.withDefaults()
	if opts.Host == "" {
		if h, err := os.Hostname(); err == nil {
			opts.Host = h
		} else {
			opts.Host = "unknown-host"
		}
	}

	s := &Scheduler{
		store:         st,
		registry:      registry,
		constraints:   constraint.NewSet(),
		options:       opts,
		runningAborts: make(map[string]context.CancelFunc),
	}
	s.executionEnabled.Store(true)

	workers, err := pool.NewPool[*localWorker](
		func() (*localWorker, error) { return &localWorker{}, nil },
		nil,
		0,
		opts.MaxLocalWorkers,
		0,
	)
	if err != nil {
		// MaxLocalWorkers is always > 0 via withDefaults, so NewPool only
		// fails here on a programming error.
		panic(fmt.Errorf("scheduler: building worker pool: %w", err))
	}
	s.workers = workers
	s.chronoSch = chrono.New(chrono.WithInstanceID("scheduler-" + opts.Host))

	s.SimpleComponent = &lifecycle.SimpleComponent{
		CompId: "scheduler",
		StartFunc: func() error {
			if err := s.workers.Start(); err != nil {
				return err
			}
			if err := s.chronoSch.Start(); err != nil {
				return err
			}
			return s.chronoSch.AddIntervalJob(drainJobID, drainJobName, func(ctx context.Context) error {
				s.ExecuteQueuedJobs()
				return nil
			}, opts.QueueDrainInterval)
		},
		StopFunc: func() error {
			_ = s.chronoSch.Stop()
			return s.workers.Close()
		},
	}
	return s
}

// RegisterJob registers runnable under its own name (spec.md §4.3's
// registerJob). Returns false if the name is already registered.
func (s *Scheduler) RegisterJob(r runnable.Runnable) bool {
	if err := s.registry.Register(r); err != nil {
		return false
	}
	def := &store.JobDefinition{
		Name:              r.Name(),
		MaxExecutionMs:    r.MaxExecutionMs(),
		MaxIdleMs:         r.MaxIdleMs(),
		PollingIntervalMs: r.PollingIntervalMs(),
		Remote:            r.IsRemote(),
		Abortable:         r.IsAbortable(),
	}
	if err := s.store.UpsertDefinition(def); err != nil {
		logger.ErrorF("scheduler: persisting definition for %s: %v", r.Name(), err)
	}
	return true
}

// AddRunningConstraint registers a mutual-exclusion group. Fails
// ErrJobNotRegistered if any member is unknown (spec.md §4.3).
func (s *Scheduler) AddRunningConstraint(names ...string) error {
	for _, n := range names {
		if !s.registry.IsRegistered(n) {
			return ErrJobNotRegistered
		}
	}
	s.constraints.Add(constraint.NewGroup(names...))
	return nil
}

// SetExecutionEnabled flips the global execution gate (spec.md §4.3, §5's
// atomic.Bool).
func (s *Scheduler) SetExecutionEnabled(enabled bool) {
	s.executionEnabled.Store(enabled)
}

// ExecutionEnabledFlag exposes the scheduler's global execution gate so the
// remote supervisor can honor the same enabled/disabled state (spec.md §4.4
// "no-op while globally disabled") without duplicating it.
func (s *Scheduler) ExecutionEnabledFlag() *atomic.Bool {
	return &s.executionEnabled
}

// SetJobExecutionEnabled persists the per-job disabled flag on the
// definition (spec.md §4.3).
func (s *Scheduler) SetJobExecutionEnabled(name string, enabled bool) error {
	return s.store.SetDefinitionDisabled(name, !enabled)
}

// RemoveJobFromQueue removes the unique QUEUED record for name, if any.
func (s *Scheduler) RemoveJobFromQueue(name string) (bool, error) {
	return s.store.MarkQueuedAsNotExecuted(name)
}

func (s *Scheduler) jobDisabled(name string) bool {
	def, err := s.store.GetDefinition(name)
	if err != nil || def == nil {
		return false
	}
	return def.Disabled
}

// ExecuteJob is the admit/queue/run decision of spec.md §4.3, steps 1-5.
func (s *Scheduler) ExecuteJob(name string, priority store.ExecutionPriority, params *collections.OrderedMap[string]) (string, error) {
	r := s.registry.Get(name)
	if r == nil {
		return "", ErrJobNotRegistered
	}
	if !s.executionEnabled.Load() {
		return "", ErrJobExecutionDisabled
	}
	if s.jobDisabled(name) {
		return "", ErrJobExecutionDisabled
	}
	if params == nil {
		params = collections.NewOrderedMap[string]()
	}

	queued, err := s.store.FindByNameAndState(name, store.Queued)
	if err != nil {
		return "", err
	}

	if queued != nil {
		if queued.Priority.GreaterOrEqual(priority) {
			return "", ErrJobAlreadyQueued
		}
		// Requested priority is strictly higher: displace the queued record
		// and re-attempt admission at the new priority (spec.md §4.3 step 3).
		if err := s.store.Remove(queued.ID); err != nil {
			return "", err
		}
		id, err := s.admitNoQueued(r, name, priority, params, true)
		return id, err
	}

	return s.admitNoQueued(r, name, priority, params, false)
}

// admitNoQueued implements spec.md §4.3 steps 4-5, reached either directly
// (no queued record existed) or after a displacement.
func (s *Scheduler) admitNoQueued(r runnable.Runnable, name string, priority store.ExecutionPriority, params *collections.OrderedMap[string], displaced bool) (string, error) {
	running, err := s.store.FindByNameAndState(name, store.Running)
	if err != nil {
		return "", err
	}

	// A constraint-blocked candidate is treated as if a RUNNING record for
	// it already existed (spec.md §4.3 "Constraint check", §8 scenario 2):
	// route straight to QUEUED rather than letting CreateUnique admit it to
	// RUNNING just because no record under its own name is running yet.
	if running == nil && s.constraints.Blocks(name, s.isRunning) {
		id, err := s.store.CreateUnique(name, r.MaxExecutionMs(), store.Queued, priority, params)
		if err != nil {
			return "", err
		}
		if id == "" {
			return "", ErrJobAlreadyQueued
		}
		if displaced {
			_ = s.store.AddAdditionalData(name, store.KeyResumedAlreadyRunningJob, "true")
		}
		s.publishTransition(name, id, store.Queued)
		return id, nil
	}

	if running == nil {
		id, err := s.store.CreateUnique(name, r.MaxExecutionMs(), store.Running, priority, params)
		if err != nil {
			return "", err
		}
		if id == "" {
			return "", ErrJobAlreadyRunning
		}
		if displaced {
			_ = s.store.AddAdditionalData(name, store.KeyResumedAlreadyRunningJob, "true")
		}
		if err := s.store.UpdateHostThread(name, s.options.Host, id); err != nil {
			logger.WarnF("scheduler: stamping host/thread for %s: %v", name, err)
		}
		s.publishTransition(name, id, store.Running)
		s.dispatch(r, name, id)
		return id, nil
	}

	if running.Priority.GreaterOrEqual(priority) {
		return "", ErrJobExecutionNotNeeded
	}

	id, err := s.store.CreateUnique(name, r.MaxExecutionMs(), store.Queued, priority, params)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrJobAlreadyQueued
	}
	if displaced {
		_ = s.store.AddAdditionalData(name, store.KeyResumedAlreadyRunningJob, "true")
	}
	s.publishTransition(name, id, store.Queued)
	return id, nil
}

// ExecuteQueuedJobs drains the queue oldest-first, promoting QUEUED
// records to RUNNING when permitted (spec.md §4.3 "Queue drain").
func (s *Scheduler) ExecuteQueuedJobs() {
	if !s.executionEnabled.Load() {
		return
	}
	queued, err := s.store.FindQueuedSortedAscByCreation()
	if err != nil {
		logger.ErrorF("scheduler: listing queued jobs: %v", err)
		return
	}
	for _, rec := range queued {
		s.tryActivate(rec)
	}
}

func (s *Scheduler) tryActivate(rec *store.JobRecord) {
	r := s.registry.Get(rec.Name)
	if r == nil {
		return
	}
	running, err := s.store.FindByNameAndState(rec.Name, store.Running)
	if err != nil {
		return
	}
	if running != nil {
		return
	}
	if s.constraints.Blocks(rec.Name, s.isRunning) {
		return
	}
	activated, err := s.store.ActivateQueuedJob(rec.Name)
	if err != nil || !activated {
		return
	}
	if err := s.store.UpdateHostThread(rec.Name, s.options.Host, rec.ID); err != nil {
		logger.WarnF("scheduler: stamping host/thread for %s: %v", rec.Name, err)
	}
	s.publishTransition(rec.Name, rec.ID, store.Running)
	s.dispatch(r, rec.Name, rec.ID)
}

// isRunning is the constraint.Blocker backing the running-constraint check.
func (s *Scheduler) isRunning(name string) bool {
	rec, err := s.store.FindByNameAndState(name, store.Running)
	return err == nil && rec != nil
}

// AbortJob sets abortRequested=true on the RUNNING record id of name,
// rejecting non-abortable definitions and a stale/mismatched/nonexistent id
// (spec.md §4.3, §6.1's 404 for a bad {id}).
func (s *Scheduler) AbortJob(name, id string) error {
	r := s.registry.Get(name)
	if r == nil {
		return ErrJobNotRegistered
	}
	if !r.IsAbortable() {
		return ErrJobNotAbortable
	}
	running, err := s.store.FindByNameAndState(name, store.Running)
	if err != nil {
		return err
	}
	if running == nil || running.ID != id {
		return ErrRunningRecordNotFound
	}
	if err := s.store.SetAbortRequested(name); err != nil {
		return err
	}
	s.mu.Lock()
	cancel := s.runningAborts[name]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// ShutdownJobs terminates every local job RUNNING and owned by this host,
// marking it FINISHED:FAILED (spec.md §4.3 "shutdownJobs").
func (s *Scheduler) ShutdownJobs() {
	s.mu.Lock()
	cancels := make(map[string]context.CancelFunc, len(s.runningAborts))
	for name, cancel := range s.runningAborts {
		cancels[name] = cancel
	}
	s.mu.Unlock()

	for name, cancel := range cancels {
		cancel()
		if err := s.store.MarkRunningAsFinished(name, store.Failed, "shutdownJobs called from executing host"); err != nil {
			logger.WarnF("scheduler: shutdownJobs finishing %s: %v", name, err)
		}
	}
}

// Now is overridable in tests; production always uses wall-clock time.
var Now = time.Now
