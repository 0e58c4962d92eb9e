package audiostore

import (
	"container/list"
	"context"
	"sync"
	"time"
)

const (
	defaultMaxClips = 512
	defaultClipTTL  = time.Hour
)

// MemoryStore holds clips in memory. Unpinned clips expire after ttl and
// the oldest are dropped once maxClips is reached.
type MemoryStore struct {
	mu       sync.Mutex
	maxClips int
	ttl      time.Duration
	order    *list.List // insertion order of unpinned ids
	clips    map[string]*memoryClip
	now      func() time.Time
}

type memoryClip struct {
	clip    Clip
	pinned  bool
	element *list.Element
}

func NewMemoryStore(maxClips int, ttl time.Duration) *MemoryStore {
	if maxClips <= 0 {
		maxClips = defaultMaxClips
	}
	if ttl <= 0 {
		ttl = defaultClipTTL
	}
	return &MemoryStore{
		maxClips: maxClips,
		ttl:      ttl,
		order:    list.New(),
		clips:    make(map[string]*memoryClip),
		now:      time.Now,
	}
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, data []byte, mimeType string) (string, error) {
	id := NewID()
	s.mu.Lock()
	defer s.mu.Unlock()

	mc := &memoryClip{clip: Clip{ID: id, Data: data, MimeType: mimeType, CreatedAt: s.now()}}
	mc.element = s.order.PushBack(id)
	s.clips[id] = mc
	for s.order.Len() > s.maxClips {
		s.removeLocked(s.order.Front().Value.(string))
	}
	return id, nil
}

// Pin implements Store.
func (s *MemoryStore) Pin(ctx context.Context, id string, data []byte, mimeType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
	s.clips[id] = &memoryClip{
		clip:   Clip{ID: id, Data: data, MimeType: mimeType, CreatedAt: s.now()},
		pinned: true,
	}
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mc, ok := s.clips[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !mc.pinned && s.now().Sub(mc.clip.CreatedAt) > s.ttl {
		s.removeLocked(id)
		return nil, ErrNotFound
	}
	c := mc.clip
	return &c, nil
}

// Len returns the number of stored clips, pinned included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clips)
}

func (s *MemoryStore) removeLocked(id string) {
	mc, ok := s.clips[id]
	if !ok {
		return
	}
	if mc.element != nil {
		s.order.Remove(mc.element)
	}
	delete(s.clips, id)
}
