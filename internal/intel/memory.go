package intel

import (
	"sort"
	"sync"
)

// MemoryStore is the in-process store backing: a mutex-guarded map.
// Entries are never evicted; bounded lifetime is an operational concern
// handled by the sqlite backing or by process restarts.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Record)}
}

func (s *MemoryStore) getOrCreateLocked(sessionID string) *Record {
	rec, ok := s.sessions[sessionID]
	if !ok {
		rec = &Record{SessionID: sessionID, Callback: CallbackPending}
		s.sessions[sessionID] = rec
	}
	return rec
}

func (s *MemoryStore) GetOrCreate(sessionID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(sessionID).clone(), nil
}

func (s *MemoryStore) Merge(sessionID string, d Delta) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.getOrCreateLocked(sessionID)
	rec.apply(d)
	return rec.clone(), nil
}

func (s *MemoryStore) TrySend(sessionID string) (bool, error) {
	return s.transition(sessionID, CallbackSent)
}

func (s *MemoryStore) Suppress(sessionID string) (bool, error) {
	return s.transition(sessionID, CallbackSuppressed)
}

func (s *MemoryStore) transition(sessionID string, to CallbackState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return false, ErrUnknownSession
	}
	if rec.Callback != CallbackPending {
		return false, nil
	}
	rec.Callback = to
	return true, nil
}

func (s *MemoryStore) Get(sessionID string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return Record{}, false, nil
	}
	return rec.clone(), true, nil
}

func (s *MemoryStore) List() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.sessions))
	for _, rec := range s.sessions {
		out = append(out, rec.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
