// Package idempotency remembers which order a client-supplied
// Idempotency-Key produced so a retried request does not create a second one.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInFlight means another request holding the same key has not finished.
var ErrInFlight = errors.New("idempotency key in flight")

// Store reserves keys for a single creator.
//
// Reserve returns uuid.Nil when the caller now owns key, the remembered order
// id when an earlier request completed, or ErrInFlight.
type Store interface {
	Reserve(ctx context.Context, key string) (uuid.UUID, error)
	Complete(ctx context.Context, key string, orderID uuid.UUID) error
	Release(ctx context.Context, key string) error
}

type entry struct {
	orderID uuid.UUID
	expires time.Time
}

// MemoryStore keeps keys in process with the same lifetimes as RedisStore.
// Expired keys are swept at most once per pendingKeyTTL.
type MemoryStore struct {
	mu        sync.Mutex
	keys      map[string]entry
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]entry), now: time.Now}
}

func (m *MemoryStore) sweep(now time.Time) {
	if now.Sub(m.lastSweep) < pendingKeyTTL {
		return
	}
	for k, e := range m.keys {
		if !now.Before(e.expires) {
			delete(m.keys, k)
		}
	}
	m.lastSweep = now
}

func (m *MemoryStore) Reserve(_ context.Context, key string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.sweep(now)

	e, ok := m.keys[key]
	if !ok || !now.Before(e.expires) {
		m.keys[key] = entry{expires: now.Add(pendingKeyTTL)}
		return uuid.Nil, nil
	}
	if e.orderID == uuid.Nil {
		return uuid.Nil, ErrInFlight
	}
	return e.orderID, nil
}

func (m *MemoryStore) Complete(_ context.Context, key string, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = entry{orderID: orderID, expires: m.now().Add(completedKeyTTL)}
	return nil
}

func (m *MemoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

// size reports how many keys are held, expired ones included until the next sweep.
func (m *MemoryStore) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}
