// Package ledgertest provides an in-memory Fabric chaincode stub for tests.
package ledgertest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang/protobuf/ptypes/timestamp"
	"github.com/hyperledger/fabric-chaincode-go/shim"
	"github.com/hyperledger/fabric-protos-go/ledger/queryresult"
)

// Stub implements the parts of shim.ChaincodeStubInterface the consent
// chaincode uses. Like a peer it does not show a proposal its own writes:
// PutState lands in a pending set that Commit applies to world state and
// key history. Calling any other stub method panics.
type Stub struct {
	shim.ChaincodeStubInterface

	mu      sync.Mutex
	state   map[string][]byte
	pending map[string][]byte
	history map[string][]*queryresult.KeyModification
	txID    string
	txTime  time.Time
	txCount int

	Events []Event
}

// Event is one SetEvent call
type Event struct {
	TxID    string
	Name    string
	Payload []byte
}

// NewStub creates an empty stub whose first transaction runs at now
func NewStub(now time.Time) *Stub {
	s := &Stub{
		state:   make(map[string][]byte),
		history: make(map[string][]*queryresult.KeyModification),
	}
	s.Begin(now)
	return s
}

// Begin starts a new proposal at now
func (s *Stub) Begin(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++
	s.txID = fmt.Sprintf("tx-%d", s.txCount)
	s.txTime = now
	s.pending = make(map[string][]byte)
}

// Commit applies pending writes to world state
func (s *Stub) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.pending {
		s.state[k] = v
		s.history[k] = append(s.history[k], &queryresult.KeyModification{
			TxId:      s.txID,
			Value:     v,
			Timestamp: toTimestamp(s.txTime),
		})
	}
	s.pending = make(map[string][]byte)
}

// Discard drops pending writes, as an invalidated transaction would
func (s *Stub) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string][]byte)
}

// Len returns the number of committed keys
func (s *Stub) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state)
}

// LastEvent returns the last event emitted, if any
func (s *Stub) LastEvent() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Events) == 0 {
		return Event{}, false
	}
	return s.Events[len(s.Events)-1], true
}

func (s *Stub) GetState(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state[key], nil
}

func (s *Stub) PutState(key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[key] = append([]byte(nil), value...)
	return nil
}

func (s *Stub) GetStateByRange(startKey, endKey string) (shim.StateQueryIteratorInterface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kvs []*queryresult.KV
	for k, v := range s.state {
		if k >= startKey && (endKey == "" || k < endKey) {
			kvs = append(kvs, &queryresult.KV{Key: k, Value: v})
		}
	}
	sort.Slice(kvs, func(i, j int) bool { return kvs[i].Key < kvs[j].Key })
	return &iterator{kvs: kvs}, nil
}

func (s *Stub) GetTxID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txID
}

func (s *Stub) GetTxTimestamp() (*timestamp.Timestamp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return toTimestamp(s.txTime), nil
}

func (s *Stub) GetHistoryForKey(key string) (shim.HistoryQueryIteratorInterface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mods := append([]*queryresult.KeyModification(nil), s.history[key]...)
	return &historyIterator{mods: mods}, nil
}

func (s *Stub) SetEvent(name string, payload []byte) error {
	if name == "" {
		return fmt.Errorf("event name can not be empty string")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, Event{TxID: s.txID, Name: name, Payload: payload})
	return nil
}

type iterator struct {
	kvs []*queryresult.KV
	pos int
}

func (it *iterator) HasNext() bool {
	return it.pos < len(it.kvs)
}

func (it *iterator) Next() (*queryresult.KV, error) {
	if !it.HasNext() {
		return nil, fmt.Errorf("iterator exhausted")
	}
	kv := it.kvs[it.pos]
	it.pos++
	return kv, nil
}

func (it *iterator) Close() error {
	return nil
}

type historyIterator struct {
	mods []*queryresult.KeyModification
	pos  int
}

func (it *historyIterator) HasNext() bool {
	return it.pos < len(it.mods)
}

func (it *historyIterator) Next() (*queryresult.KeyModification, error) {
	if !it.HasNext() {
		return nil, fmt.Errorf("iterator exhausted")
	}
	mod := it.mods[it.pos]
	it.pos++
	return mod, nil
}

func (it *historyIterator) Close() error {
	return nil
}

func toTimestamp(t time.Time) *timestamp.Timestamp {
	return &timestamp.Timestamp{Seconds: t.Unix(), Nanos: int32(t.Nanosecond())}
}
