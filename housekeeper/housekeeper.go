// Package housekeeper periodically sweeps RUNNING records for timeouts and
// prunes aged FINISHED records (spec.md §4.5).
package housekeeper

import (
	"context"
	"net/url"
	"time"

	"oss.nandlabs.io/jobexec/chrono"
	"oss.nandlabs.io/jobexec/l3"
	"oss.nandlabs.io/jobexec/lifecycle"
	"oss.nandlabs.io/jobexec/messaging"
	"oss.nandlabs.io/jobexec/runnable"
	"oss.nandlabs.io/jobexec/store"
)

var logger = l3.Get()

const (
	sweepJobID   = "housekeeper-sweep"
	sweepJobName = "housekeeper-sweep-cycle"
)

// LocalWorkerCanceller is the one capability the housekeeper needs from the
// scheduler: force-cancel a local job's in-flight worker on timeout
// (spec.md §4.5 "cancel local worker if local"). Modeled as a narrow
// interface (the same style as constraint.Blocker) so housekeeper does not
// need the whole Scheduler surface.
type LocalWorkerCanceller interface {
	CancelLocalWorker(name string)
}

// Options configures retention and sweep cadence.
type Options struct {
	// SweepInterval is how often the timeout/retention sweep runs.
	SweepInterval time.Duration
	// RetentionAge is how long a FINISHED record is kept before pruning.
	RetentionAge time.Duration
}

// DefaultSweepInterval is used when Options.SweepInterval is unset.
const DefaultSweepInterval = 10 * time.Second

// DefaultRetentionAge is used when Options.RetentionAge is unset.
const DefaultRetentionAge = 30 * 24 * time.Hour

func (o Options) withDefaults() Options {
	if o.SweepInterval <= 0 {
		o.SweepInterval = DefaultSweepInterval
	}
	if o.RetentionAge <= 0 {
		o.RetentionAge = DefaultRetentionAge
	}
	return o
}

// Housekeeper is the timeout/retention component of spec.md §4.5.
type Housekeeper struct {
	*lifecycle.SimpleComponent

	store     store.Store
	registry  *runnable.Registry
	canceller LocalWorkerCanceller
	options   Options
	chronoSch chrono.Scheduler
}

// New creates a Housekeeper. canceller may be nil if local-job cancellation
// is not desired (e.g. a read-only diagnostic instance).
func New(st store.Store, registry *runnable.Registry, canceller LocalWorkerCanceller, opts Options) *Housekeeper {
	opts = opts.withDefaults()
	h := &Housekeeper{
		store:     st,
		registry:  registry,
		canceller: canceller,
		options:   opts,
	}
	h.chronoSch = chrono.New(chrono.WithInstanceID("housekeeper"))
	h.SimpleComponent = &lifecycle.SimpleComponent{
		CompId: "housekeeper",
		StartFunc: func() error {
			if err := messaging.Get().AddListener(lifecycleURL(), h.logTransition); err != nil {
				logger.WarnF("housekeeper: subscribing to %s: %v", store.LifecycleTopic, err)
			}
			if err := h.chronoSch.Start(); err != nil {
				return err
			}
			return h.chronoSch.AddIntervalJob(sweepJobID, sweepJobName, func(ctx context.Context) error {
				h.Sweep()
				return nil
			}, opts.SweepInterval)
		},
		StopFunc: func() error {
			return h.chronoSch.Stop()
		},
	}
	return h
}

func lifecycleURL() *url.URL {
	return &url.URL{Scheme: messaging.LocalMsgScheme, Host: store.LifecycleTopic}
}

// logTransition is the lifecycle-topic subscriber (SPEC_FULL.md §4.3 wiring
// note): it never learns about the scheduler directly, only the published
// event, and logs it for operational visibility alongside the sweep's own
// timeout/retention log lines.
func (h *Housekeeper) logTransition(msg messaging.Message) {
	name, _ := msg.GetStrHeader("name")
	id, _ := msg.GetStrHeader("id")
	state, _ := msg.GetStrHeader("state")
	logger.TraceF("housekeeper: observed %s %s -> %s", name, id, state)
}

// Sweep applies the max-execution timeout, max-idle timeout, and retention
// rules of spec.md §4.5 across every registered job.
func (h *Housekeeper) Sweep() {
	now := time.Now()
	for _, r := range h.registry.All() {
		h.sweepRunning(r, now)
		h.pruneFinished(r.Name(), now)
	}
}

func (h *Housekeeper) sweepRunning(r runnable.Runnable, now time.Time) {
	rec, err := h.store.FindByNameAndState(r.Name(), store.Running)
	if err != nil || rec == nil {
		return
	}

	timedOut := false
	if maxExec := r.MaxExecutionMs(); maxExec > 0 && !rec.StartedAt.IsZero() {
		if now.Sub(rec.StartedAt) > time.Duration(maxExec)*time.Millisecond {
			timedOut = true
		}
	}
	if !timedOut {
		if maxIdle := r.MaxIdleMs(); maxIdle > 0 && !rec.LastModifiedAt.IsZero() {
			if now.Sub(rec.LastModifiedAt) > time.Duration(maxIdle)*time.Millisecond {
				timedOut = true
			}
		}
	}
	if !timedOut {
		return
	}

	if !r.IsRemote() && h.canceller != nil {
		h.canceller.CancelLocalWorker(r.Name())
	}
	if err := h.store.MarkRunningAsFinished(r.Name(), store.TimedOut, "exceeded maxExecutionMs or maxIdleMs"); err != nil {
		logger.WarnF("housekeeper: timing out %s: %v", r.Name(), err)
	}
}

func (h *Housekeeper) pruneFinished(name string, now time.Time) {
	cutoff := now.Add(-h.options.RetentionAge)
	records, err := h.store.FindByNameAndTimeRange(name, time.Time{}, cutoff)
	if err != nil {
		logger.WarnF("housekeeper: listing aged records for %s: %v", name, err)
		return
	}
	for _, rec := range records {
		if rec.State != store.Finished {
			continue
		}
		if err := h.store.Remove(rec.ID); err != nil {
			logger.WarnF("housekeeper: pruning record %s for %s: %v", rec.ID, name, err)
		}
	}
}
