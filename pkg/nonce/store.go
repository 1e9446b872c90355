package nonce

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var (
	// ErrNotFound is returned for operations that were never stored, or whose
	// nonces were evicted.
	ErrNotFound = errors.New("nonce: no nonces for operation")
	// ErrAlreadyConsumed is returned when the nonces of an operation were
	// already handed out or discarded.
	ErrAlreadyConsumed = errors.New("nonce: nonces already consumed")
	// ErrOperationReused is returned when storing nonces under an operation id
	// that is live or was used before.
	ErrOperationReused = errors.New("nonce: operation id already used")
)

const (
	// DefaultTTL is the lifetime of unconsumed nonces.
	DefaultTTL = 5 * time.Minute
	// DefaultCapacity bounds the number of live operations.
	DefaultCapacity = 1024
)

type entry struct {
	mtx     sync.Mutex
	nonces  *SigningNonces
	taken   bool
	evicted bool
}

// take marks the entry as handed out, unless eviction zeroized it first.
func (e *entry) take() bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if e.evicted {
		return false
	}
	e.taken = true
	return true
}

func (e *entry) evict() {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if !e.taken {
		e.nonces.Zeroize()
		e.evicted = true
	}
}

// Store holds the nonces of in-flight signing operations.
//
// Each operation id can be stored once and consumed once. Entries that are
// not consumed within the TTL, or that are pushed out when the store is full,
// are evicted and their nonces zeroized.
type Store struct {
	mtx      sync.Mutex
	live     *expirable.LRU[string, *entry]
	consumed *expirable.LRU[string, struct{}]
}

// StoreOption configures a Store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	ttl      time.Duration
	capacity int
}

// WithTTL sets how long unconsumed nonces are kept.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) { c.ttl = ttl }
}

// WithCapacity sets the maximum number of live operations.
func WithCapacity(capacity int) StoreOption {
	return func(c *storeConfig) { c.capacity = capacity }
}

// NewStore returns an empty Store.
func NewStore(opts ...StoreOption) *Store {
	cfg := storeConfig{ttl: DefaultTTL, capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store{
		live: expirable.NewLRU[string, *entry](cfg.capacity, func(_ string, e *entry) { e.evict() }, cfg.ttl),
		// consumed ids are remembered for longer, so late retries get a precise error
		consumed: expirable.NewLRU[string, struct{}](4*cfg.capacity, nil, 4*cfg.ttl),
	}
}

// Put stores nonces under opID.
func (s *Store) Put(opID string, nonces *SigningNonces) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.live.Contains(opID) || s.consumed.Contains(opID) {
		return ErrOperationReused
	}
	s.live.Add(opID, &entry{nonces: nonces})
	return nil
}

// GetAndConsume returns the nonces of opID and removes them from the store.
// The caller becomes responsible for zeroizing them.
func (s *Store) GetAndConsume(opID string) (*SigningNonces, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	e, ok := s.live.Get(opID)
	if !ok || !e.take() {
		if s.consumed.Contains(opID) {
			return nil, ErrAlreadyConsumed
		}
		return nil, ErrNotFound
	}
	s.live.Remove(opID)
	s.consumed.Add(opID, struct{}{})
	return e.nonces, nil
}

// Discard zeroizes and removes the nonces of opID, if any.
func (s *Store) Discard(opID string) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if e, ok := s.live.Peek(opID); ok {
		e.evict()
		s.live.Remove(opID)
	}
	s.consumed.Add(opID, struct{}{})
}

// Contains reports whether unconsumed nonces are stored for opID.
func (s *Store) Contains(opID string) bool {
	return s.live.Contains(opID)
}

// Len returns the number of live operations.
func (s *Store) Len() int {
	return s.live.Len()
}
