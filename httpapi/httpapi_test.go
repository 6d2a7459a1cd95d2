package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"oss.nandlabs.io/jobexec/rest"
	"oss.nandlabs.io/jobexec/runnable"
	"oss.nandlabs.io/jobexec/scheduler"
	"oss.nandlabs.io/jobexec/store"
)

type testRunnable struct {
	runnable.BaseRunnable
	name      string
	abortable bool
}

func (r *testRunnable) Name() string                         { return r.name }
func (r *testRunnable) MaxExecutionMs() int64                 { return 60000 }
func (r *testRunnable) MaxIdleMs() int64                      { return 60000 }
func (r *testRunnable) PollingIntervalMs() int64              { return 1000 }
func (r *testRunnable) IsRemote() bool                        { return false }
func (r *testRunnable) IsAbortable() bool                     { return r.abortable }
func (r *testRunnable) Prepare(context.Context) (bool, error) { return true, nil }
func (r *testRunnable) Execute(context.Context) error         { return nil }
func (r *testRunnable) AfterExecution(context.Context) error  { return nil }

func newTestAPI(t *testing.T) (*api, store.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	registry := runnable.NewRegistry()
	sched := scheduler.New(st, registry, scheduler.Options{})

	r := &testRunnable{name: "J1", abortable: true}
	if !sched.RegisterJob(r) {
		t.Fatal("RegisterJob failed")
	}
	return &api{scheduler: sched, store: st, registry: registry}, st
}

func doRequest(a *api, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	srv, err := rest.NewServer(&rest.Options{Id: "httpapi-test", ListenHost: "localhost", ListenPort: 8090})
	if err != nil {
		panic(err)
	}
	restAPI := &api{scheduler: a.scheduler, store: a.store, registry: a.registry}
	if err := restAPI.registerRoutes(srv); err != nil {
		panic(err)
	}
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestListJobs_JSON(t *testing.T) {
	a, _ := newTestAPI(t)
	rec := doRequest(a, http.MethodGet, "/jobs", map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /jobs = %d, want 200", rec.Code)
	}
	var names []string
	if err := json.Unmarshal(rec.Body.Bytes(), &names); err != nil {
		t.Fatalf("unmarshal: %v, body=%s", err, rec.Body.String())
	}
	if len(names) != 1 || names[0] != "J1" {
		t.Fatalf("names = %v, want [J1]", names)
	}
}

func TestListJobs_AtomByDefault(t *testing.T) {
	a, _ := newTestAPI(t)
	rec := doRequest(a, http.MethodGet, "/jobs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /jobs = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != atomContentType {
		t.Fatalf("Content-Type = %q, want %q", ct, atomContentType)
	}
}

func TestExecuteJob_Success(t *testing.T) {
	a, st := newTestAPI(t)
	rec := doRequest(a, http.MethodPost, "/jobs/J1?env=prod", map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /jobs/J1 = %d, want 201, body=%s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc == "" {
		t.Fatalf("expected a Location header")
	}
	defs, err := st.ListDefinitions()
	if err != nil || len(defs) != 1 {
		t.Fatalf("ListDefinitions = %v, %v", defs, err)
	}
}

func TestExecuteJob_MultiValuedQueryParamIsBadRequest(t *testing.T) {
	a, _ := newTestAPI(t)
	rec := doRequest(a, http.MethodPost, "/jobs/J1?env=prod&env=staging", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("POST with multi-valued param = %d, want 400", rec.Code)
	}
}

func TestExecuteJob_UnknownJobIsNotFound(t *testing.T) {
	a, _ := newTestAPI(t)
	rec := doRequest(a, http.MethodPost, "/jobs/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("POST unknown job = %d, want 404", rec.Code)
	}
}

func TestGlobalEnableDisable_RoutesAreReachableAlongsideVariableRoute(t *testing.T) {
	// Regression test for the turbo literal-vs-variable precedence bug:
	// /jobs/enable must not be swallowed by the /jobs/{name} route.
	a, _ := newTestAPI(t)

	rec := doRequest(a, http.MethodPost, "/jobs/disable", map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /jobs/disable = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var status globalStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if status.Status != "disabled" {
		t.Fatalf("status = %+v, want disabled", status)
	}

	rec = doRequest(a, http.MethodPost, "/jobs/enable", map[string]string{"Accept": "application/json"})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /jobs/enable = %d, want 200", rec.Code)
	}
}

func TestAbortJob_RejectsNonAbortable(t *testing.T) {
	st := store.NewInMemoryStore()
	registry := runnable.NewRegistry()
	sched := scheduler.New(st, registry, scheduler.Options{})
	r := &testRunnable{name: "J1", abortable: false}
	if !sched.RegisterJob(r) {
		t.Fatal("RegisterJob failed")
	}
	a := &api{scheduler: sched, store: st, registry: registry}

	rec := doRequest(a, http.MethodPost, "/jobs/J1/some-id/abort", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("abort on non-abortable job = %d, want 403, body=%s", rec.Code, rec.Body.String())
	}
}

func TestAbortJob_RejectsMismatchedID(t *testing.T) {
	a, st := newTestAPI(t)
	// Put J1 RUNNING directly so the record's real id is known and stable,
	// rather than racing the test runnable's instant Execute to completion.
	id, err := st.CreateUnique("J1", 60000, store.Running, store.CheckPreconditions, nil)
	if err != nil || id == "" {
		t.Fatalf("CreateUnique: %q, %v", id, err)
	}

	rec := doRequest(a, http.MethodPost, "/jobs/J1/not-the-running-id/abort", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("abort with mismatched id = %d, want 404, body=%s", rec.Code, rec.Body.String())
	}
}

func TestGetRecord_NotFound(t *testing.T) {
	a, _ := newTestAPI(t)
	rec := doRequest(a, http.MethodGet, "/jobs/J1/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET nonexistent record = %d, want 404", rec.Code)
	}
}
