package housekeeper

import (
	"context"
	"testing"
	"time"

	"oss.nandlabs.io/jobexec/runnable"
	"oss.nandlabs.io/jobexec/store"
)

type fakeRunnable struct {
	runnable.BaseRunnable
	name      string
	remote    bool
	maxExecMs int64
	maxIdleMs int64
}

func (f *fakeRunnable) Name() string                          { return f.name }
func (f *fakeRunnable) MaxExecutionMs() int64                  { return f.maxExecMs }
func (f *fakeRunnable) MaxIdleMs() int64                       { return f.maxIdleMs }
func (f *fakeRunnable) PollingIntervalMs() int64               { return 1000 }
func (f *fakeRunnable) IsRemote() bool                         { return f.remote }
func (f *fakeRunnable) IsAbortable() bool                      { return false }
func (f *fakeRunnable) Prepare(context.Context) (bool, error)  { return true, nil }
func (f *fakeRunnable) Execute(context.Context) error          { return nil }
func (f *fakeRunnable) AfterExecution(context.Context) error   { return nil }

type fakeCanceller struct {
	cancelled []string
}

func (c *fakeCanceller) CancelLocalWorker(name string) {
	c.cancelled = append(c.cancelled, name)
}

func TestSweep_TimesOutOnMaxExecution(t *testing.T) {
	st := store.NewInMemoryStore()
	registry := runnable.NewRegistry()
	r := &fakeRunnable{name: "J1", maxExecMs: 1}
	if err := registry.Register(r); err != nil {
		t.Fatal(err)
	}

	id, err := st.CreateUnique("J1", r.maxExecMs, store.Running, store.CheckPreconditions, nil)
	if err != nil || id == "" {
		t.Fatalf("CreateUnique: %q, %v", id, err)
	}
	time.Sleep(5 * time.Millisecond)

	canceller := &fakeCanceller{}
	hk := New(st, registry, canceller, Options{})
	hk.Sweep()

	rec, err := st.FindByID(id)
	if err != nil || rec == nil {
		t.Fatalf("FindByID: %v, %v", rec, err)
	}
	if rec.State != store.Finished || rec.ResultCode != store.TimedOut {
		t.Fatalf("swept record = state %v resultCode %v, want Finished/TimedOut", rec.State, rec.ResultCode)
	}
	if len(canceller.cancelled) != 1 || canceller.cancelled[0] != "J1" {
		t.Fatalf("expected local worker cancellation for J1, got %v", canceller.cancelled)
	}
}

func TestSweep_RemoteJobDoesNotCancelLocalWorker(t *testing.T) {
	st := store.NewInMemoryStore()
	registry := runnable.NewRegistry()
	r := &fakeRunnable{name: "J1", remote: true, maxExecMs: 1}
	if err := registry.Register(r); err != nil {
		t.Fatal(err)
	}
	if _, err := st.CreateUnique("J1", r.maxExecMs, store.Running, store.CheckPreconditions, nil); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	canceller := &fakeCanceller{}
	hk := New(st, registry, canceller, Options{})
	hk.Sweep()

	if len(canceller.cancelled) != 0 {
		t.Fatalf("remote job timeout should not cancel a local worker, got %v", canceller.cancelled)
	}
}

func TestSweep_LeavesFreshRunningRecordAlone(t *testing.T) {
	st := store.NewInMemoryStore()
	registry := runnable.NewRegistry()
	r := &fakeRunnable{name: "J1", maxExecMs: 60000}
	if err := registry.Register(r); err != nil {
		t.Fatal(err)
	}
	id, err := st.CreateUnique("J1", r.maxExecMs, store.Running, store.CheckPreconditions, nil)
	if err != nil {
		t.Fatal(err)
	}

	hk := New(st, registry, nil, Options{})
	hk.Sweep()

	rec, err := st.FindByID(id)
	if err != nil || rec == nil || rec.State != store.Running {
		t.Fatalf("fresh running record should be untouched, got %v, %v", rec, err)
	}
}

func TestSweep_PrunesAgedFinishedRecords(t *testing.T) {
	st := store.NewInMemoryStore()
	registry := runnable.NewRegistry()
	r := &fakeRunnable{name: "J1"}
	if err := registry.Register(r); err != nil {
		t.Fatal(err)
	}

	id, err := st.CreateUnique("J1", 0, store.Running, store.CheckPreconditions, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.MarkRunningAsFinishedSuccessfully("J1"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	hk := New(st, registry, nil, Options{RetentionAge: time.Millisecond})
	hk.Sweep()

	rec, err := st.FindByID(id)
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Fatalf("finished record older than retention should have been pruned, got %v", rec)
	}
}

func TestSweep_KeepsFinishedRecordsWithinRetention(t *testing.T) {
	st := store.NewInMemoryStore()
	registry := runnable.NewRegistry()
	r := &fakeRunnable{name: "J1"}
	if err := registry.Register(r); err != nil {
		t.Fatal(err)
	}

	id, err := st.CreateUnique("J1", 0, store.Running, store.CheckPreconditions, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.MarkRunningAsFinishedSuccessfully("J1"); err != nil {
		t.Fatal(err)
	}

	hk := New(st, registry, nil, Options{RetentionAge: time.Hour})
	hk.Sweep()

	rec, err := st.FindByID(id)
	if err != nil || rec == nil {
		t.Fatalf("finished record within retention should survive, got %v, %v", rec, err)
	}
}
