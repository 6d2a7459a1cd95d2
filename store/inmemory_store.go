package store

import (
	"sort"
	"sync"
	"time"

	"oss.nandlabs.io/jobexec/collections"
	"oss.nandlabs.io/jobexec/l3"
	"oss.nandlabs.io/jobexec/uuid"
)

var logger = l3.Get()

// InMemoryStore is an in-memory Store, suitable for a single process or for
// tests. A clustered deployment swaps this for an implementation backed by a
// shared database that honors the same conditional-write contract.
type InMemoryStore struct {
	mu          sync.Mutex
	records     map[string]*JobRecord // by id
	byNameState map[string]string     // "name\x00state" -> id, for Running and Queued only
	definitions map[string]*JobDefinition
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records:     make(map[string]*JobRecord),
		byNameState: make(map[string]string),
		definitions: make(map[string]*JobDefinition),
	}
}

func nameStateKey(name string, state RunningState) string {
	return name + "\x00" + state.String()
}

func newID() string {
	id, err := uuid.V4()
	if err != nil {
		// uuid.V4 only fails if the system RNG is broken; fall back to a
		// timestamp-derived id rather than leaving the record unaddressable.
		return time.Now().UTC().Format("20060102T150405.000000000")
	}
	return id.String()
}

// CreateUnique implements Store.
func (s *InMemoryStore) CreateUnique(name string, maxExecutionMs int64, state RunningState, priority ExecutionPriority, params *collections.OrderedMap[string]) (string, error) {
	if state != Running && state != Queued {
		state = Running
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nameStateKey(name, state)
	if _, exists := s.byNameState[key]; exists {
		return "", nil
	}

	now := time.Now()
	id := newID()
	rec := &JobRecord{
		ID:             id,
		Name:           name,
		State:          state,
		Priority:       priority,
		Parameters:     cloneOrEmpty(params),
		CreatedAt:      now,
		LastModifiedAt: now,
		MaxExecutionMs: maxExecutionMs,
		AdditionalData: collections.NewOrderedMap[string](),
	}
	if state == Running {
		rec.StartedAt = now
	}
	s.records[id] = rec
	s.byNameState[key] = id
	return id, nil
}

func cloneOrEmpty(m *collections.OrderedMap[string]) *collections.OrderedMap[string] {
	if m == nil {
		return collections.NewOrderedMap[string]()
	}
	return m.Clone()
}

// FindByNameAndState implements Store.
func (s *InMemoryStore) FindByNameAndState(name string, state RunningState) (*JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findByNameAndStateLocked(name, state), nil
}

func (s *InMemoryStore) findByNameAndStateLocked(name string, state RunningState) *JobRecord {
	id, ok := s.byNameState[nameStateKey(name, state)]
	if !ok {
		return nil
	}
	return s.records[id].Clone()
}

// FindByID implements Store.
func (s *InMemoryStore) FindByID(id string) (*JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

// FindByName implements Store.
func (s *InMemoryStore) FindByName(name string, limit int) ([]*JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*JobRecord
	for _, rec := range s.records {
		if rec.Name == name {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*JobRecord, len(matched))
	for i, rec := range matched {
		out[i] = rec.Clone()
	}
	return out, nil
}

// FindByNameAndTimeRange implements Store.
func (s *InMemoryStore) FindByNameAndTimeRange(name string, from, to time.Time, resultCodes ...ResultCode) ([]*JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[ResultCode]bool, len(resultCodes))
	for _, rc := range resultCodes {
		wanted[rc] = true
	}

	var matched []*JobRecord
	for _, rec := range s.records {
		if rec.Name != name {
			continue
		}
		if rec.CreatedAt.Before(from) || rec.CreatedAt.After(to) {
			continue
		}
		if len(wanted) > 0 {
			if rec.State != Finished || !wanted[rec.ResultCode] {
				continue
			}
		}
		matched = append(matched, rec)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	out := make([]*JobRecord, len(matched))
	for i, rec := range matched {
		out[i] = rec.Clone()
	}
	return out, nil
}

// FindQueuedSortedAscByCreation implements Store.
func (s *InMemoryStore) FindQueuedSortedAscByCreation() ([]*JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queued []*JobRecord
	for _, rec := range s.records {
		if rec.State == Queued {
			queued = append(queued, rec)
		}
	}
	sort.Slice(queued, func(i, j int) bool { return queued[i].CreatedAt.Before(queued[j].CreatedAt) })
	out := make([]*JobRecord, len(queued))
	for i, rec := range queued {
		out[i] = rec.Clone()
	}
	return out, nil
}

// HasJob implements Store.
func (s *InMemoryStore) HasJob(name string, state RunningState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byNameState[nameStateKey(name, state)]
	return ok, nil
}

// ListDefinitions implements Store.
func (s *InMemoryStore) ListDefinitions() ([]*JobDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*JobDefinition, 0, len(s.definitions))
	for _, def := range s.definitions {
		out = append(out, def.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Remove implements Store.
func (s *InMemoryStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	delete(s.records, id)
	if rec.State == Running || rec.State == Queued {
		key := nameStateKey(rec.Name, rec.State)
		if s.byNameState[key] == id {
			delete(s.byNameState, key)
		}
	}
	return nil
}

// UpsertDefinition implements Store.
func (s *InMemoryStore) UpsertDefinition(def *JobDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.definitions[def.Name] = def.Clone()
	return nil
}

// GetDefinition implements Store.
func (s *InMemoryStore) GetDefinition(name string) (*JobDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.definitions[name]
	if !ok {
		return nil, ErrDefinitionNotFound
	}
	return def.Clone(), nil
}

// SetDefinitionDisabled implements Store.
func (s *InMemoryStore) SetDefinitionDisabled(name string, disabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.definitions[name]
	if !ok {
		return ErrDefinitionNotFound
	}
	def.Disabled = disabled
	if disabled {
		def.LastNotExecutedAt = time.Now()
	}
	return nil
}

// MarkQueuedAsNotExecuted implements Store.
func (s *InMemoryStore) MarkQueuedAsNotExecuted(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := nameStateKey(name, Queued)
	id, ok := s.byNameState[key]
	if !ok {
		return false, nil
	}
	rec := s.records[id]
	s.finishLocked(rec, NotExecuted, "")
	delete(s.byNameState, key)
	return true, nil
}

// ActivateQueuedJob implements Store.
func (s *InMemoryStore) ActivateQueuedJob(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	qKey := nameStateKey(name, Queued)
	id, ok := s.byNameState[qKey]
	if !ok {
		return false, nil
	}
	rKey := nameStateKey(name, Running)
	if _, running := s.byNameState[rKey]; running {
		return false, nil
	}

	rec := s.records[id]
	rec.State = Running
	now := time.Now()
	rec.StartedAt = now
	rec.LastModifiedAt = now
	delete(s.byNameState, qKey)
	s.byNameState[rKey] = id
	return true, nil
}

// MarkRunningAsFinished implements Store.
func (s *InMemoryStore) MarkRunningAsFinished(name string, resultCode ResultCode, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := nameStateKey(name, Running)
	id, ok := s.byNameState[key]
	if !ok {
		return nil
	}
	s.finishLocked(s.records[id], resultCode, message)
	delete(s.byNameState, key)
	return nil
}

// MarkRunningAsFinishedSuccessfully implements Store.
func (s *InMemoryStore) MarkRunningAsFinishedSuccessfully(name string) error {
	return s.MarkRunningAsFinished(name, Successful, "")
}

// finishLocked must be called with s.mu held.
func (s *InMemoryStore) finishLocked(rec *JobRecord, resultCode ResultCode, message string) {
	now := time.Now()
	rec.State = Finished
	rec.ResultCode = resultCode
	rec.ResultMessage = message
	rec.FinishedAt = now
	rec.LastModifiedAt = now
}

// UpdateHostThread implements Store.
func (s *InMemoryStore) UpdateHostThread(name, host, thread string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.findRunningLocked(name)
	if rec == nil {
		return nil
	}
	rec.Host = host
	rec.Thread = thread
	rec.LastModifiedAt = time.Now()
	return nil
}

func (s *InMemoryStore) findRunningLocked(name string) *JobRecord {
	id, ok := s.byNameState[nameStateKey(name, Running)]
	if !ok {
		return nil
	}
	return s.records[id]
}

// AppendLogLine implements Store.
func (s *InMemoryStore) AppendLogLine(name string, line LogLine, maxLines int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.findRunningLocked(name)
	if rec == nil {
		return nil
	}
	rec.LogLines = append(rec.LogLines, line)
	capLogLines(rec, maxLines)
	rec.LastModifiedAt = time.Now()
	return nil
}

// SetLogLines implements Store.
func (s *InMemoryStore) SetLogLines(name string, lines []LogLine, maxLines int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.findRunningLocked(name)
	if rec == nil {
		return nil
	}
	rec.LogLines = append([]LogLine(nil), lines...)
	capLogLines(rec, maxLines)
	rec.LastModifiedAt = time.Now()
	return nil
}

func capLogLines(rec *JobRecord, maxLines int) {
	if maxLines <= 0 {
		maxLines = DefaultMaxLogLines
	}
	if len(rec.LogLines) > maxLines {
		rec.LogLines = rec.LogLines[len(rec.LogLines)-maxLines:]
	}
}

// InsertAdditionalData implements Store.
func (s *InMemoryStore) InsertAdditionalData(name, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.findRunningLocked(name)
	if rec == nil {
		return nil
	}
	if rec.AdditionalData == nil {
		rec.AdditionalData = collections.NewOrderedMap[string]()
	}
	rec.AdditionalData.PutIfAbsent(key, value)
	rec.LastModifiedAt = time.Now()
	return nil
}

// AddAdditionalData implements Store.
func (s *InMemoryStore) AddAdditionalData(name, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.findRunningLocked(name)
	if rec == nil {
		return nil
	}
	if rec.AdditionalData == nil {
		rec.AdditionalData = collections.NewOrderedMap[string]()
	}
	rec.AdditionalData.Put(key, value)
	rec.LastModifiedAt = time.Now()
	return nil
}

// SetAbortRequested implements Store.
func (s *InMemoryStore) SetAbortRequested(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.findRunningLocked(name)
	if rec == nil {
		return nil
	}
	rec.AbortRequested = true
	rec.LastModifiedAt = time.Now()
	return nil
}

// SetStatusMessage implements Store.
func (s *InMemoryStore) SetStatusMessage(name, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.findRunningLocked(name)
	if rec == nil {
		return nil
	}
	rec.StatusMessage = message
	rec.LastModifiedAt = time.Now()
	return nil
}

var _ Store = (*InMemoryStore)(nil)
