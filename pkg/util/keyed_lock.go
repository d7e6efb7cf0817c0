package util

import "sync"

// KeyedMutex serializes work per key. Callers holding different keys
// proceed in parallel; there is no global lock.
type KeyedMutex struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{m: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns it for unlocking.
func (k *KeyedMutex) Lock(key string) *sync.Mutex {
	k.mu.Lock()
	l, ok := k.m[key]
	if !ok {
		l = &sync.Mutex{}
		k.m[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l
}
