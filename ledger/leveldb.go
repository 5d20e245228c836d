package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelStore is a Store persisted in a LevelDB directory. Commits are
// written as one synced batch.
type LevelStore struct {
	mu    sync.Mutex
	db    *leveldb.DB
	clock Clock
	sink  EventSink
}

// OpenLevelStore opens (or creates) a LevelDB ledger at path
func OpenLevelStore(path string, clock Clock, sink EventSink) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger at %s: %w", path, err)
	}
	if clock == nil {
		clock = time.Now
	}
	return &LevelStore{db: db, clock: clock, sink: sink}, nil
}

// Update implements Store
func (l *LevelStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return ErrClosed
	}

	tx := newBufferedTx(levelReader{l.db}, l.clock(), false)
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.writes) > 0 {
		batch := new(leveldb.Batch)
		for k, v := range tx.writes {
			batch.Put([]byte(k), v)
		}
		if err := l.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
			return fmt.Errorf("failed to commit transaction %s: %w", tx.txID, err)
		}
	}

	if l.sink != nil {
		for _, ev := range tx.events {
			l.sink(ev)
		}
	}
	return nil
}

// View implements Store. It reads from a snapshot.
func (l *LevelStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	db := l.db
	l.mu.Unlock()
	if db == nil {
		return ErrClosed
	}

	snap, err := db.GetSnapshot()
	if err != nil {
		return fmt.Errorf("failed to take ledger snapshot: %w", err)
	}
	defer snap.Release()

	return fn(newBufferedTx(levelReader{snap}, l.clock(), true))
}

// Close implements Store
func (l *LevelStore) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.db == nil {
		return nil
	}
	err := l.db.Close()
	l.db = nil
	return err
}

// levelSource is satisfied by both *leveldb.DB and *leveldb.Snapshot
type levelSource interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

type levelReader struct {
	src levelSource
}

func (r levelReader) get(key string) ([]byte, error) {
	v, err := r.src.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}

func (r levelReader) scan(prefix string) ([]KV, error) {
	iter := r.src.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()

	var out []KV
	for iter.Next() {
		out = append(out, KV{
			Key:   string(iter.Key()),
			Value: cloneBytes(iter.Value()),
		})
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", prefix, err)
	}
	return out, nil
}
