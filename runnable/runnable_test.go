package runnable

import (
	"context"
	"errors"
	"testing"
)

type fakeRunnable struct {
	BaseRunnable
	name string
}

func (f *fakeRunnable) Name() string               { return f.name }
func (f *fakeRunnable) MaxExecutionMs() int64       { return 1000 }
func (f *fakeRunnable) MaxIdleMs() int64            { return 1000 }
func (f *fakeRunnable) PollingIntervalMs() int64    { return 1000 }
func (f *fakeRunnable) IsRemote() bool              { return false }
func (f *fakeRunnable) IsAbortable() bool           { return false }
func (f *fakeRunnable) Prepare(context.Context) (bool, error) { return true, nil }
func (f *fakeRunnable) Execute(context.Context) error         { return nil }
func (f *fakeRunnable) AfterExecution(context.Context) error  { return nil }

func TestRegistry_RejectsDuplicateRegistration(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(&fakeRunnable{name: "J1"}); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	err := reg.Register(&fakeRunnable{name: "J1"})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second Register for same name = %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegistry_GetUnknownReturnsNil(t *testing.T) {
	reg := NewRegistry()
	if reg.Get("nope") != nil {
		t.Fatal("Get on unregistered name should return nil")
	}
	if reg.IsRegistered("nope") {
		t.Fatal("IsRegistered on unregistered name should be false")
	}
}

func TestRegistry_UnregisterAllowsReRegistration(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeRunnable{name: "J1"})
	reg.Unregister("J1")
	if err := reg.Register(&fakeRunnable{name: "J1"}); err != nil {
		t.Fatalf("Register after Unregister should succeed: %v", err)
	}
}

func TestBaseRunnable_DefaultOnExceptionIsTerminalNotRecovered(t *testing.T) {
	r := &fakeRunnable{name: "J1"}
	cause := errors.New("boom")
	outcome := r.OnException(context.Background(), cause, PhaseExecute)
	if outcome.HasRecovered() {
		t.Fatal("default OnException should not report recovered")
	}
	if !errors.Is(outcome.DoThrow(), cause) {
		t.Fatalf("DoThrow() = %v, want %v", outcome.DoThrow(), cause)
	}
}
