// Package runnable holds the per-process capability set that binds a
// registered job name to its behavior and policy metadata (spec.md §4.2).
package runnable

import (
	"context"
	"errors"

	"oss.nandlabs.io/jobexec/managers"
)

// ErrAlreadyRegistered is returned when Register is called twice for the
// same name; registration is idempotent-rejecting, not idempotent-replacing
// (spec.md §4.2: "re-registration under the same name is rejected").
var ErrAlreadyRegistered = errors.New("runnable: name already registered")

// Phase identifies which lifecycle hook an exception was raised from.
type Phase int

const (
	PhasePrepare Phase = iota
	PhaseExecute
	PhaseAfterExecution
)

func (p Phase) String() string {
	switch p {
	case PhasePrepare:
		return "prepare"
	case PhaseExecute:
		return "execute"
	case PhaseAfterExecution:
		return "afterExecution"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of onException: either the task recovered
// and execution should continue, or it is terminal with the given error.
// Modeling it this way (spec.md §9) avoids a callback-with-mutation
// "recovery capable object".
type Outcome struct {
	recovered bool
	err       error
}

// Recovered reports that the exception was handled and the worker should
// continue as if nothing terminal happened.
func Recovered() Outcome { return Outcome{recovered: true} }

// Terminal reports that the exception is fatal; err becomes the record's
// FAILED result message.
func Terminal(err error) Outcome { return Outcome{err: err} }

// HasRecovered mirrors the capability named in spec.md §4.3.1.
func (o Outcome) HasRecovered() bool { return o.recovered }

// DoThrow mirrors the capability named in spec.md §4.3.1: the error to
// surface as a terminal failure, or nil if the outcome recovered.
func (o Outcome) DoThrow() error { return o.err }

// Runnable is the in-process embodiment of a job's behavior: a flat
// record-of-functions rather than a class hierarchy (spec.md §9's
// "dynamic dispatch on runnable" note).
type Runnable interface {
	Name() string
	MaxExecutionMs() int64
	MaxIdleMs() int64
	PollingIntervalMs() int64
	IsRemote() bool
	IsAbortable() bool

	// Prepare runs first; returning false skips Execute but still runs
	// AfterExecution (spec.md §4.3.1).
	Prepare(ctx context.Context) (bool, error)
	// Execute performs the job's work. For a remote runnable, Execute posts
	// to the remote executor and returns promptly; the remote supervisor
	// owns the terminal transition (spec.md §4.3.1).
	Execute(ctx context.Context) error
	// AfterExecution always runs, regardless of how Prepare/Execute ended.
	AfterExecution(ctx context.Context) error
	// OnException is consulted whenever Prepare, Execute, or AfterExecution
	// return an error; the default behavior is to rethrow (Terminal, not
	// recovered) per spec.md §4.3.1.
	OnException(ctx context.Context, err error, phase Phase) Outcome
}

// BaseRunnable provides the spec's default OnException behavior
// ("rethrows and reports hasRecovered()=false") so concrete runnables only
// need to override it when they actually want to recover.
type BaseRunnable struct{}

func (BaseRunnable) OnException(_ context.Context, err error, _ Phase) Outcome {
	return Terminal(err)
}

// Registration is the entry a Registry stores for one registered Runnable.
type Registration struct {
	Runnable Runnable
}

// Registry is the per-process mapping from job name to its Runnable
// registration, wrapping managers.ItemManager[*Registration] with the
// idempotent-rejection semantics spec.md §4.2 requires (ItemManager.Register
// itself silently overwrites, which the spec explicitly disallows).
type Registry struct {
	items managers.ItemManager[*Registration]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{items: managers.NewItemManager[*Registration]()}
}

// Register adds r under r.Name(). Returns ErrAlreadyRegistered if the name
// is already registered.
func (reg *Registry) Register(r Runnable) error {
	if reg.items.Get(r.Name()) != nil {
		return ErrAlreadyRegistered
	}
	reg.items.Register(r.Name(), &Registration{Runnable: r})
	return nil
}

// Unregister removes the registration for name, if any.
func (reg *Registry) Unregister(name string) {
	reg.items.Unregister(name)
}

// Get returns the Runnable registered under name, or nil if none exists.
func (reg *Registry) Get(name string) Runnable {
	r := reg.items.Get(name)
	if r == nil {
		return nil
	}
	return r.Runnable
}

// IsRegistered reports whether name has a registration.
func (reg *Registry) IsRegistered(name string) bool {
	return reg.items.Get(name) != nil
}

// All returns every registered Runnable.
func (reg *Registry) All() []Runnable {
	regs := reg.items.Items()
	out := make([]Runnable, 0, len(regs))
	for _, r := range regs {
		if r != nil {
			out = append(out, r.Runnable)
		}
	}
	return out
}
