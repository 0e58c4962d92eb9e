package session

import (
	"container/list"
	"context"
	"sync"
	"time"

	"voiceagent/core"
)

// MemoryStore keeps sessions in process memory, bounded by an LRU list.
type MemoryStore struct {
	mu          sync.Mutex
	maxSessions int
	order       *list.List // front = most recently used
	entries     map[string]*list.Element
}

type memoryEntry struct {
	key     string
	session *Session
}

func NewMemoryStore(maxSessions int) *MemoryStore {
	return &MemoryStore{
		maxSessions: maxSessions,
		order:       list.New(),
		entries:     make(map[string]*list.Element),
	}
}

// GetOrCreate implements Store.
func (s *MemoryStore) GetOrCreate(ctx context.Context, key string) (*Session, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touch(key, true).clone(), nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (*Session, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.touch(key, false)
	if sess == nil {
		return nil, nil
	}
	return sess.clone(), nil
}

// AppendTurn implements Store.
func (s *MemoryStore) AppendTurn(ctx context.Context, key string, turn core.Turn) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.touch(key, true)
	sess.Turns = append(sess.Turns, turn)
	sess.Version++
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(ctx context.Context, key string) (string, error) {
	return NewKey(), nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error { return nil }

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order.Init()
	s.entries = make(map[string]*list.Element)
	return nil
}

// Len returns the number of sessions held.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// touch marks key as most recently used, optionally creating it. Must hold mu.
func (s *MemoryStore) touch(key string, create bool) *Session {
	if el, ok := s.entries[key]; ok {
		s.order.MoveToFront(el)
		return el.Value.(*memoryEntry).session
	}
	if !create {
		return nil
	}
	sess := newSession(key)
	s.entries[key] = s.order.PushFront(&memoryEntry{key: key, session: sess})
	for s.maxSessions > 0 && s.order.Len() > s.maxSessions {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(*memoryEntry).key)
	}
	return sess
}
