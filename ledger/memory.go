package ledger

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory Store. It backs tests and ephemeral runs.
type MemStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	clock  Clock
	sink   EventSink
	closed bool
}

// MemOption configures a MemStore
type MemOption func(*MemStore)

// WithClock sets the clock used as transaction time
func WithClock(c Clock) MemOption {
	return func(m *MemStore) { m.clock = c }
}

// WithEventSink sets the receiver of committed events
func WithEventSink(s EventSink) MemOption {
	return func(m *MemStore) { m.sink = s }
}

// NewMemStore initializes an empty store
func NewMemStore(opts ...MemOption) *MemStore {
	m := &MemStore{
		data:  make(map[string][]byte),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Update implements Store
func (m *MemStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	events, err := m.commit(fn)
	if err != nil {
		return err
	}
	if m.sink != nil {
		for _, ev := range events {
			m.sink(ev)
		}
	}
	return nil
}

// commit runs fn under the writer lock and applies its writes. Events are
// returned so the sink runs without the lock held.
func (m *MemStore) commit(fn func(Tx) error) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	tx := newBufferedTx(memReader{m}, m.clock(), false)
	if err := fn(tx); err != nil {
		return nil, err
	}
	for k, v := range tx.writes {
		m.data[k] = v
	}
	return tx.events, nil
}

// View implements Store
func (m *MemStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return fn(newBufferedTx(memReader{m}, m.clock(), true))
}

// Close implements Store
func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Len returns the number of stored keys
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// memReader reads committed state; callers hold the store lock
type memReader struct {
	m *MemStore
}

func (r memReader) get(key string) ([]byte, error) {
	return cloneBytes(r.m.data[key]), nil
}

func (r memReader) scan(prefix string) ([]KV, error) {
	matched := make(map[string][]byte)
	for k, v := range r.m.data {
		if strings.HasPrefix(k, prefix) {
			matched[k] = cloneBytes(v)
		}
	}
	return sortedKVs(matched), nil
}
