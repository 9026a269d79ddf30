package lock

import (
	"context"
	"sync"
)

// Locker serializes work on a key. The returned function releases the lock.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex is an in-process Locker with one mutex per key.
// Entries are removed once no caller holds or waits for them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: map[string]*keyedEntry{}}
}

// Lock blocks until key is free or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &keyedEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	locked := make(chan struct{})
	go func() {
		entry.mu.Lock()
		close(locked)
	}()

	select {
	case <-locked:
		return func() { k.release(key, entry) }, nil
	case <-ctx.Done():
		// The goroutine still acquires the mutex eventually and must hand it back.
		go func() {
			<-locked
			k.release(key, entry)
		}()
		return nil, ctx.Err()
	}
}

func (k *KeyedMutex) release(key string, entry *keyedEntry) {
	entry.mu.Unlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.entries, key)
	}
}

// Len returns the number of keys currently held or waited on.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
