package remote

import (
	"context"
	"fmt"

	"oss.nandlabs.io/jobexec/remote/transport"
	"oss.nandlabs.io/jobexec/runnable"
	"oss.nandlabs.io/jobexec/store"
)

// ScriptSource supplies the files to package and upload for one execution of
// a remote job (spec.md §6.2's "scripts" part). Kept as an interface rather
// than a fixed map so a runnable can read its scripts from vfs, a git
// checkout, or wherever it likes.
type ScriptSource interface {
	Scripts(ctx context.Context) (map[string][]byte, error)
}

// StaticScripts is a ScriptSource backed by an in-memory map, useful for
// jobs whose scripts never change at runtime.
type StaticScripts map[string][]byte

func (s StaticScripts) Scripts(context.Context) (map[string][]byte, error) { return s, nil }

// Runnable is the runnable.Runnable implementation for remote jobs
// (spec.md §4.3.1's "For remote jobs, execute posts to the remote executor
// ... then returns; the record stays RUNNING"). Terminal resolution is
// owned entirely by Supervisor's poll cycle, so AfterExecution/OnException
// here only run at upload time, never at job completion.
type Runnable struct {
	runnable.BaseRunnable

	name              string
	baseURI           string
	maxExecutionMs    int64
	maxIdleMs         int64
	pollingIntervalMs int64
	abortable         bool

	scripts ScriptSource
	poster  *transport.Poster
	store   store.Store
}

// NewRunnable builds a remote Runnable. pollingIntervalMs governs how often
// Supervisor polls this job's remote status once RUNNING.
func NewRunnable(name, baseURI string, maxExecutionMs, maxIdleMs, pollingIntervalMs int64, abortable bool, scripts ScriptSource, poster *transport.Poster, st store.Store) *Runnable {
	return &Runnable{
		name:              name,
		baseURI:           baseURI,
		maxExecutionMs:    maxExecutionMs,
		maxIdleMs:         maxIdleMs,
		pollingIntervalMs: pollingIntervalMs,
		abortable:         abortable,
		scripts:           scripts,
		poster:            poster,
		store:             st,
	}
}

func (r *Runnable) Name() string              { return r.name }
func (r *Runnable) MaxExecutionMs() int64      { return r.maxExecutionMs }
func (r *Runnable) MaxIdleMs() int64           { return r.maxIdleMs }
func (r *Runnable) PollingIntervalMs() int64   { return r.pollingIntervalMs }
func (r *Runnable) IsRemote() bool             { return true }
func (r *Runnable) IsAbortable() bool          { return r.abortable }

// BaseURI returns the remote executor's base URI, used by Supervisor to
// build status/stop requests relative to this job.
func (r *Runnable) BaseURI() string { return r.baseURI }

func (r *Runnable) Prepare(context.Context) (bool, error) { return true, nil }

// Execute uploads the job's scripts and stores the returned job URI under
// additionalData[remoteJobUri] (spec.md §4.3.1/§6.2). It never blocks on
// completion: ownership of the terminal transition passes to Supervisor.
func (r *Runnable) Execute(ctx context.Context) error {
	rec, err := r.store.FindByNameAndState(r.name, store.Running)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("remote: no RUNNING record for %s at execute time", r.name)
	}

	scripts, err := r.scripts.Scripts(ctx)
	if err != nil {
		return err
	}

	jobURI, resumed, err := r.poster.Start(ctx, r.baseURI, r.name, rec.ID, scripts, rec.Parameters)
	if err != nil {
		return err
	}

	if err := r.store.AddAdditionalData(r.name, store.KeyRemoteJobURI, jobURI); err != nil {
		return err
	}
	if resumed {
		if err := r.store.AddAdditionalData(r.name, store.KeyResumedAlreadyRunningJob, "true"); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runnable) AfterExecution(context.Context) error { return nil }
