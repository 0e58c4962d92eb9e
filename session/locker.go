package session

import (
	"context"
	"sync"
)

// KeyedLocker is a FIFO mutex per key. Waiters are granted the lock in the
// order they asked for it, and waiting can be abandoned through the context.
type KeyedLocker struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

type keyLock struct {
	waiters []chan struct{}
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{keys: make(map[string]*keyLock)}
}

// Lock blocks until key is free or ctx is done. The returned func releases
// the lock and is safe to call more than once.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, held := l.keys[key]
	if !held {
		l.keys[key] = &keyLock{}
		l.mu.Unlock()
		return l.unlocker(key), nil
	}
	ch := make(chan struct{})
	kl.waiters = append(kl.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return l.unlocker(key), nil
	case <-ctx.Done():
	}

	l.mu.Lock()
	select {
	case <-ch:
		// Granted while giving up; pass it on.
		l.mu.Unlock()
		l.release(key)
		return nil, ctx.Err()
	default:
	}
	for i, w := range kl.waiters {
		if w == ch {
			kl.waiters = append(kl.waiters[:i], kl.waiters[i+1:]...)
			break
		}
	}
	l.mu.Unlock()
	return nil, ctx.Err()
}

// Waiting returns how many callers are queued behind the holder of key.
func (l *KeyedLocker) Waiting(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if kl, ok := l.keys[key]; ok {
		return len(kl.waiters)
	}
	return 0
}

// Len returns the number of keys currently held.
func (l *KeyedLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}

func (l *KeyedLocker) unlocker(key string) func() {
	var once sync.Once
	return func() { once.Do(func() { l.release(key) }) }
}

func (l *KeyedLocker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.keys[key]
	if !ok {
		return
	}
	if len(kl.waiters) > 0 {
		next := kl.waiters[0]
		kl.waiters = kl.waiters[1:]
		close(next)
		return
	}
	delete(l.keys, key)
}
