// Package ledger provides the keyed state the consent engine runs against.
//
// A Tx is one atomic unit of work: everything written through it becomes
// visible together or not at all. On Fabric the peer provides that guarantee
// for the chaincode stub; the local stores provide it with a single writer
// lock and buffered commits.
package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by a store after Close
var ErrClosed = errors.New("ledger: store closed")

// ErrReadOnly is returned when writing through a read-only transaction
var ErrReadOnly = errors.New("ledger: read-only transaction")

// KV is one key/value pair returned by a scan
type KV struct {
	Key   string
	Value []byte
}

// Tx is the state handle passed into every engine operation.
// Get returns nil without error for missing keys. Scan returns every pair
// whose key starts with prefix, in ascending key order.
type Tx interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Scan(prefix string) ([]KV, error)
	TxID() string
	Now() (time.Time, error)
	Emit(name string, payload []byte) error
}

// Store runs transactions against a local state substrate
type Store interface {
	// Update runs fn in a read-write transaction and commits its writes only
	// if fn returns nil. Updates are serialized.
	Update(ctx context.Context, fn func(Tx) error) error
	// View runs fn in a read-only transaction
	View(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Event is a chaincode-style event emitted by a committed transaction
type Event struct {
	TxID    string
	Name    string
	Payload []byte
}

// Clock returns the current time; local stores use it as the transaction time
type Clock func() time.Time

// EventSink receives events of committed local transactions
type EventSink func(Event)
