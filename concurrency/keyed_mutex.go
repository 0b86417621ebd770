// Package concurrency provides small synchronization helpers shared by the
// repositories and services.
package concurrency

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyedMutex serializes critical sections per key. It backs the two places
// the engine requires cross-request mutual exclusion: floor read-then-write
// per conversation, and version append per message. Entries are reference
// counted and removed when the last holder unlocks, so the map does not grow
// with the number of conversations ever seen.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*entry)}
}

func (k *KeyedMutex) Lock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

func (k *KeyedMutex) Unlock(key string) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		k.mu.Unlock()
		panic("concurrency: unlock of unheld keyed mutex " + key)
	}
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}
