package ledger

import (
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// reader is the committed state a buffered transaction reads through
type reader interface {
	get(key string) ([]byte, error)
	scan(prefix string) ([]KV, error)
}

// bufferedTx collects writes and events in memory until the store commits
// them. Reads observe the transaction's own writes.
type bufferedTx struct {
	base     reader
	txID     string
	now      time.Time
	readOnly bool
	writes   map[string][]byte
	events   []Event
}

func newBufferedTx(base reader, now time.Time, readOnly bool) *bufferedTx {
	return &bufferedTx{
		base:     base,
		txID:     ulid.Make().String(),
		now:      now,
		readOnly: readOnly,
		writes:   make(map[string][]byte),
	}
}

func (t *bufferedTx) Get(key string) ([]byte, error) {
	if v, ok := t.writes[key]; ok {
		return cloneBytes(v), nil
	}
	return t.base.get(key)
}

func (t *bufferedTx) Put(key string, value []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.writes[key] = cloneBytes(value)
	return nil
}

func (t *bufferedTx) Scan(prefix string) ([]KV, error) {
	committed, err := t.base.scan(prefix)
	if err != nil {
		return nil, err
	}
	if len(t.writes) == 0 {
		return committed, nil
	}

	merged := make(map[string][]byte, len(committed))
	for _, kv := range committed {
		merged[kv.Key] = kv.Value
	}
	for k, v := range t.writes {
		if strings.HasPrefix(k, prefix) {
			merged[k] = cloneBytes(v)
		}
	}
	return sortedKVs(merged), nil
}

func (t *bufferedTx) TxID() string {
	return t.txID
}

func (t *bufferedTx) Now() (time.Time, error) {
	return t.now, nil
}

func (t *bufferedTx) Emit(name string, payload []byte) error {
	if t.readOnly {
		return ErrReadOnly
	}
	t.events = append(t.events, Event{TxID: t.txID, Name: name, Payload: cloneBytes(payload)})
	return nil
}

func sortedKVs(m map[string][]byte) []KV {
	out := make([]KV, 0, len(m))
	for k, v := range m {
		out = append(out, KV{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
