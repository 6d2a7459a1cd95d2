package store

import (
	"sync"
	"testing"
	"time"

	"oss.nandlabs.io/jobexec/collections"
)

func params(pairs ...string) *collections.OrderedMap[string] {
	m := collections.NewOrderedMap[string]()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Put(pairs[i], pairs[i+1])
	}
	return m
}

func TestCreateUnique_RejectsSecondRunningRecord(t *testing.T) {
	s := NewInMemoryStore()

	id1, err := s.CreateUnique("J1", 1000, Running, CheckPreconditions, nil)
	if err != nil || id1 == "" {
		t.Fatalf("first CreateUnique failed: id=%q err=%v", id1, err)
	}

	id2, err := s.CreateUnique("J1", 1000, Running, CheckPreconditions, nil)
	if err != nil {
		t.Fatalf("second CreateUnique returned error: %v", err)
	}
	if id2 != "" {
		t.Fatalf("second CreateUnique for an occupied RUNNING slot returned id %q, want \"\"", id2)
	}
}

func TestCreateUnique_RunningAndQueuedAreIndependentSlots(t *testing.T) {
	s := NewInMemoryStore()

	if _, err := s.CreateUnique("J1", 0, Running, CheckPreconditions, nil); err != nil {
		t.Fatal(err)
	}
	qID, err := s.CreateUnique("J1", 0, Queued, CheckPreconditions, nil)
	if err != nil || qID == "" {
		t.Fatalf("queueing alongside a RUNNING record should succeed: id=%q err=%v", qID, err)
	}
}

func TestActivateQueuedJob(t *testing.T) {
	s := NewInMemoryStore()

	qID, _ := s.CreateUnique("J1", 0, Queued, CheckPreconditions, nil)
	ok, err := s.ActivateQueuedJob("J1")
	if err != nil || !ok {
		t.Fatalf("ActivateQueuedJob = %v, %v, want true, nil", ok, err)
	}

	rec, _ := s.FindByID(qID)
	if rec.State != Running {
		t.Fatalf("activated record state = %v, want Running", rec.State)
	}
	if rec.StartedAt.IsZero() {
		t.Fatal("StartedAt not stamped on activation")
	}

	hasQueued, _ := s.HasJob("J1", Queued)
	if hasQueued {
		t.Fatal("queued slot still occupied after activation")
	}

	// No queued record left, activation is a no-op.
	ok, _ = s.ActivateQueuedJob("J1")
	if ok {
		t.Fatal("ActivateQueuedJob succeeded with no queued record")
	}
}

func TestActivateQueuedJob_BlockedWhileAlreadyRunning(t *testing.T) {
	s := NewInMemoryStore()
	s.CreateUnique("J1", 0, Running, CheckPreconditions, nil)
	s.CreateUnique("J1", 0, Queued, CheckPreconditions, nil)

	ok, err := s.ActivateQueuedJob("J1")
	if err != nil || ok {
		t.Fatalf("ActivateQueuedJob should refuse while a RUNNING record exists, got %v, %v", ok, err)
	}
}

func TestMarkRunningAsFinished_FreesRunningSlot(t *testing.T) {
	s := NewInMemoryStore()
	id, _ := s.CreateUnique("J1", 0, Running, CheckPreconditions, nil)

	if err := s.MarkRunningAsFinished("J1", Failed, "boom"); err != nil {
		t.Fatal(err)
	}

	rec, _ := s.FindByID(id)
	if rec.State != Finished || rec.ResultCode != Failed || rec.ResultMessage != "boom" {
		t.Fatalf("unexpected finished record: %+v", rec)
	}
	if rec.FinishedAt.IsZero() {
		t.Fatal("FinishedAt not stamped")
	}

	// The RUNNING slot is free again.
	id2, err := s.CreateUnique("J1", 0, Running, CheckPreconditions, nil)
	if err != nil || id2 == "" {
		t.Fatalf("RUNNING slot should be free after finishing: id=%q err=%v", id2, err)
	}
}

func TestMarkQueuedAsNotExecuted(t *testing.T) {
	s := NewInMemoryStore()
	id, _ := s.CreateUnique("J1", 0, Queued, CheckPreconditions, nil)

	ok, err := s.MarkQueuedAsNotExecuted("J1")
	if err != nil || !ok {
		t.Fatalf("MarkQueuedAsNotExecuted = %v, %v, want true, nil", ok, err)
	}
	rec, _ := s.FindByID(id)
	if rec.State != Finished || rec.ResultCode != NotExecuted {
		t.Fatalf("unexpected record after displacement: %+v", rec)
	}

	ok, _ = s.MarkQueuedAsNotExecuted("J1")
	if ok {
		t.Fatal("MarkQueuedAsNotExecuted succeeded with no queued record")
	}
}

func TestFindQueuedSortedAscByCreation(t *testing.T) {
	s := NewInMemoryStore()
	id1, _ := s.CreateUnique("J1", 0, Queued, CheckPreconditions, nil)
	time.Sleep(time.Millisecond)
	id2, _ := s.CreateUnique("J2", 0, Queued, CheckPreconditions, nil)

	queued, err := s.FindQueuedSortedAscByCreation()
	if err != nil {
		t.Fatal(err)
	}
	if len(queued) != 2 || queued[0].ID != id1 || queued[1].ID != id2 {
		t.Fatalf("FindQueuedSortedAscByCreation order wrong: %+v", queued)
	}
}

func TestAppendLogLine_CapsAtMaxLines(t *testing.T) {
	s := NewInMemoryStore()
	s.CreateUnique("J1", 0, Running, CheckPreconditions, nil)

	for i := 0; i < 150; i++ {
		if err := s.AppendLogLine("J1", LogLine{Text: "line"}, 100); err != nil {
			t.Fatal(err)
		}
	}

	rec, _ := s.FindByNameAndState("J1", Running)
	if len(rec.LogLines) != 100 {
		t.Fatalf("LogLines len = %d, want 100 (cap)", len(rec.LogLines))
	}
}

func TestAdditionalData_InsertVsAddSemantics(t *testing.T) {
	s := NewInMemoryStore()
	s.CreateUnique("J1", 0, Running, CheckPreconditions, nil)

	s.InsertAdditionalData("J1", KeyRemoteJobURI, "first")
	s.InsertAdditionalData("J1", KeyRemoteJobURI, "second")

	rec, _ := s.FindByNameAndState("J1", Running)
	v, _ := rec.AdditionalData.Get(KeyRemoteJobURI)
	if v != "first" {
		t.Fatalf("InsertAdditionalData overwrote existing key: got %q, want \"first\"", v)
	}

	s.AddAdditionalData("J1", KeyRemoteJobURI, "overwritten")
	rec, _ = s.FindByNameAndState("J1", Running)
	v, _ = rec.AdditionalData.Get(KeyRemoteJobURI)
	if v != "overwritten" {
		t.Fatalf("AddAdditionalData did not overwrite: got %q", v)
	}
}

func TestParameters_PreserveInsertionOrderAndUniqueness(t *testing.T) {
	s := NewInMemoryStore()
	p := params("b", "2", "a", "1", "b", "3")
	id, _ := s.CreateUnique("J1", 0, Running, CheckPreconditions, p)

	rec, _ := s.FindByID(id)
	keys := rec.Parameters.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Fatalf("Parameters keys = %v, want [b a] (insertion order, unique)", keys)
	}
	v, _ := rec.Parameters.Get("b")
	if v != "3" {
		t.Fatalf("Parameters[b] = %q, want 3 (last write wins before insert)", v)
	}
}

func TestClone_IsIsolatedFromStoreState(t *testing.T) {
	s := NewInMemoryStore()
	id, _ := s.CreateUnique("J1", 0, Running, CheckPreconditions, params("k", "v"))

	rec, _ := s.FindByID(id)
	rec.Parameters.Put("k", "mutated")
	rec.Name = "mutated-name"

	rec2, _ := s.FindByID(id)
	if rec2.Name != "J1" {
		t.Fatalf("store state leaked through clone: Name = %q", rec2.Name)
	}
	v, _ := rec2.Parameters.Get("k")
	if v != "v" {
		t.Fatalf("store parameters leaked through clone: got %q, want v", v)
	}
}

func TestDefinitionDisabledFlag(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.UpsertDefinition(&JobDefinition{Name: "J1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SetDefinitionDisabled("J1", true); err != nil {
		t.Fatal(err)
	}
	def, err := s.GetDefinition("J1")
	if err != nil {
		t.Fatal(err)
	}
	if !def.Disabled {
		t.Fatal("definition not marked disabled")
	}
	if def.LastNotExecutedAt.IsZero() {
		t.Fatal("LastNotExecutedAt not stamped when disabling")
	}
}

// TestCreateUnique_ConcurrentRunningInsertsStayUnique exercises P1 ("for all
// name N, at most one RUNNING record exists at any point") and P3
// ("CreateUnique returns an id iff it inserted exactly one record") under
// genuine concurrency: many goroutines race CreateUnique for the same name
// and the same RUNNING slot, and the mutex-protected check-and-set in
// CreateUnique must let exactly one of them win.
func TestCreateUnique_ConcurrentRunningInsertsStayUnique(t *testing.T) {
	s := NewInMemoryStore()
	const attempts = 200

	var wg sync.WaitGroup
	ids := make([]string, attempts)
	errs := make([]error, attempts)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.CreateUnique("J1", 1000, Running, CheckPreconditions, nil)
		}(i)
	}
	wg.Wait()

	won := 0
	for i := 0; i < attempts; i++ {
		if errs[i] != nil {
			t.Fatalf("CreateUnique[%d] returned an error: %v", i, errs[i])
		}
		if ids[i] != "" {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("exactly one concurrent CreateUnique for the same (name, RUNNING) should win, got %d", won)
	}

	recs, err := s.FindByName("J1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("store holds %d records for J1 after the race, want exactly 1", len(recs))
	}
}

// TestCreateUnique_ConcurrentRunningAndQueuedBothSucceedExactlyOnce extends
// the same race across both independent slots a name can occupy: one
// goroutine pool races for the RUNNING slot, another for the QUEUED slot,
// and each slot independently admits exactly one winner.
func TestCreateUnique_ConcurrentRunningAndQueuedBothSucceedExactlyOnce(t *testing.T) {
	s := NewInMemoryStore()
	const attempts = 100

	var wg sync.WaitGroup
	runningIDs := make([]string, attempts)
	queuedIDs := make([]string, attempts)
	wg.Add(attempts * 2)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			runningIDs[i], _ = s.CreateUnique("J1", 1000, Running, CheckPreconditions, nil)
		}(i)
		go func(i int) {
			defer wg.Done()
			queuedIDs[i], _ = s.CreateUnique("J1", 1000, Queued, CheckPreconditions, nil)
		}(i)
	}
	wg.Wait()

	countWins := func(ids []string) int {
		n := 0
		for _, id := range ids {
			if id != "" {
				n++
			}
		}
		return n
	}
	if n := countWins(runningIDs); n != 1 {
		t.Fatalf("RUNNING slot should admit exactly one winner, got %d", n)
	}
	if n := countWins(queuedIDs); n != 1 {
		t.Fatalf("QUEUED slot should admit exactly one winner, got %d", n)
	}
}
