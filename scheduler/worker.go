package scheduler

import (
	"context"

	"oss.nandlabs.io/jobexec/runnable"
	"oss.nandlabs.io/jobexec/store"
)

// localWorker is the pool.Pool[T] element type backing the bounded worker
// concurrency described in SPEC_FULL.md §4.3 wiring. It carries no state of
// its own — dispatch's closure over name/id/runnable is what actually does
// the work — it exists only so Checkout/Checkin can bound how many workers
// run concurrently.
type localWorker struct{}

// dispatch runs runnable r for (name, id) asynchronously on its own
// goroutine, following the checkout-run-checkin discipline against
// s.workers so MaxLocalWorkers bounds concurrent dispatch (spec.md §4.3.1,
// SPEC_FULL.md's "bounded worker pool" wiring note).
func (s *Scheduler) dispatch(r runnable.Runnable, name, id string) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.runningAborts[name] = cancel
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.runningAborts, name)
			s.mu.Unlock()
			cancel()
		}()

		w, err := s.workers.Checkout()
		if err != nil {
			logger.ErrorF("scheduler: checking out worker for %s: %v", name, err)
			s.finishFailed(name, "could not obtain a worker slot: "+err.Error())
			return
		}
		defer s.workers.Checkin(w)

		s.runWorker(ctx, r, name, id)
	}()
}

// runWorker implements spec.md §4.3.1: prepare -> execute -> afterExecution,
// with every phase's error routed through onException, and the remote-job
// carve-out that leaves the terminal transition to the remote supervisor.
func (s *Scheduler) runWorker(ctx context.Context, r runnable.Runnable, name, id string) {
	proceed, err := r.Prepare(ctx)
	if err != nil {
		if outcome := r.OnException(ctx, err, runnable.PhasePrepare); !outcome.HasRecovered() {
			s.finishAfter(ctx, r, name, outcome.DoThrow())
			return
		}
		proceed = false
	}

	var execErr error
	if proceed {
		execErr = r.Execute(ctx)
		if execErr != nil {
			outcome := r.OnException(ctx, execErr, runnable.PhaseExecute)
			if outcome.HasRecovered() {
				execErr = nil
			} else {
				execErr = outcome.DoThrow()
			}
		}
	}

	s.finishAfter(ctx, r, name, execErr)
}

// finishAfter always runs AfterExecution, then resolves the terminal state
// for local jobs (remote jobs are left RUNNING for the remote supervisor).
func (s *Scheduler) finishAfter(ctx context.Context, r runnable.Runnable, name string, execErr error) {
	afterErr := r.AfterExecution(ctx)
	if afterErr != nil {
		outcome := r.OnException(ctx, afterErr, runnable.PhaseAfterExecution)
		if !outcome.HasRecovered() && execErr == nil {
			execErr = outcome.DoThrow()
		}
	}

	if r.IsRemote() {
		// Ownership of the terminal transition passes to the remote
		// supervisor once Execute has posted the job and recorded its URI
		// (spec.md §4.3.1, §4.4).
		return
	}

	if aborted, abortErr := s.abortedDuringRun(name); abortErr == nil && aborted {
		s.finishOutcome(name, store.Aborted, "")
		return
	}

	if execErr != nil {
		s.finishOutcome(name, store.Failed, execErr.Error())
		return
	}

	if err := s.store.MarkRunningAsFinishedSuccessfully(name); err != nil {
		logger.WarnF("scheduler: finishing %s successfully: %v", name, err)
		return
	}
	s.publishTransition(name, "", store.Finished)
}

// CancelLocalWorker cancels name's in-flight local worker context, if any.
// Unlike AbortJob this does not consult the abortable flag or set
// abortRequested — it is the forced cancellation the housekeeper issues on
// a max-execution/max-idle timeout (spec.md §4.5), not a cooperative abort.
func (s *Scheduler) CancelLocalWorker(name string) {
	s.mu.Lock()
	cancel := s.runningAborts[name]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Scheduler) abortedDuringRun(name string) (bool, error) {
	rec, err := s.store.FindByNameAndState(name, store.Running)
	if err != nil || rec == nil {
		return false, err
	}
	return rec.AbortRequested, nil
}

func (s *Scheduler) finishOutcome(name string, code store.ResultCode, message string) {
	if err := s.store.MarkRunningAsFinished(name, code, message); err != nil {
		logger.WarnF("scheduler: finishing %s as %s: %v", name, code, err)
		return
	}
	s.publishTransition(name, "", store.Finished)
}

func (s *Scheduler) finishFailed(name, message string) {
	s.finishOutcome(name, store.Failed, message)
}
