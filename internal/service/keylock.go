package service

import (
	"hash/fnv"
	"sync"
)

const lockStripes = 64

// KeyLock serializes store transitions per MAC without a global lock.
// One instance is shared by every service mutating sessions, so login,
// logout and renewal on the same MAC never interleave their store
// transitions. It must never be held across enforcement I/O.
type KeyLock struct {
	stripes [lockStripes]sync.Mutex
}

// NewKeyLock builds the lock table.
func NewKeyLock() *KeyLock {
	return &KeyLock{}
}

func (k *KeyLock) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &k.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}
