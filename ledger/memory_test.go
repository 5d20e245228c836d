package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixed }

func TestMemStoreCommitsOnSuccess(t *testing.T) {
	var events []Event
	m := NewMemStore(WithClock(fixedClock), WithEventSink(func(ev Event) { events = append(events, ev) }))
	ctx := context.Background()

	var txID string
	err := m.Update(ctx, func(tx Tx) error {
		txID = tx.TxID()
		require.NoError(t, tx.Put("a~1", []byte("one")))
		require.NoError(t, tx.Put("a~2", []byte("two")))

		v, err := tx.Get("a~1")
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), v, "reads see own writes")

		now, err := tx.Now()
		require.NoError(t, err)
		assert.Equal(t, fixed, now)
		return tx.Emit("Written", []byte(`{"n":2}`))
	})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	require.Len(t, events, 1)
	assert.Equal(t, "Written", events[0].Name)
	assert.Equal(t, txID, events[0].TxID)
	assert.NotEmpty(t, txID)
}

func TestMemStoreRollsBackOnError(t *testing.T) {
	var events []Event
	m := NewMemStore(WithEventSink(func(ev Event) { events = append(events, ev) }))
	ctx := context.Background()
	require.NoError(t, m.Update(ctx, func(tx Tx) error { return tx.Put("k", []byte("v1")) }))

	boom := errors.New("boom")
	err := m.Update(ctx, func(tx Tx) error {
		require.NoError(t, tx.Put("k", []byte("v2")))
		require.NoError(t, tx.Put("other", []byte("x")))
		require.NoError(t, tx.Emit("Lost", nil))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.Len())
	assert.Empty(t, events)

	require.NoError(t, m.View(ctx, func(tx Tx) error {
		v, err := tx.Get("k")
		assert.Equal(t, []byte("v1"), v)
		return err
	}))
}

func TestMemStoreReleasesLockAfterPanic(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = m.Update(ctx, func(tx Tx) error {
			require.NoError(t, tx.Put("k", []byte("half")))
			panic("handler bug")
		})
	})

	done := make(chan error, 1)
	go func() {
		done <- m.Update(ctx, func(tx Tx) error { return tx.Put("k", []byte("v1")) })
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("store still locked after a panicking update")
	}
	assert.Equal(t, 1, m.Len())
}

func TestMemStoreScan(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()
	require.NoError(t, m.Update(ctx, func(tx Tx) error {
		for _, k := range []string{"p~3", "p~1", "q~1"} {
			if err := tx.Put(k, []byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, m.Update(ctx, func(tx Tx) error {
		require.NoError(t, tx.Put("p~2", []byte("p~2")))
		kvs, err := tx.Scan("p~")
		require.NoError(t, err)
		require.Len(t, kvs, 3)
		assert.Equal(t, "p~1", kvs[0].Key)
		assert.Equal(t, "p~2", kvs[1].Key)
		assert.Equal(t, "p~3", kvs[2].Key)
		return nil
	}))
}

func TestMemStoreViewIsReadOnly(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()

	err := m.View(ctx, func(tx Tx) error {
		v, err := tx.Get("missing")
		require.NoError(t, err)
		assert.Nil(t, v)
		return tx.Put("k", []byte("v"))
	})
	require.ErrorIs(t, err, ErrReadOnly)

	err = m.View(ctx, func(tx Tx) error { return tx.Emit("E", nil) })
	require.ErrorIs(t, err, ErrReadOnly)
	assert.Zero(t, m.Len())
}

func TestMemStoreClosedAndCanceled(t *testing.T) {
	m := NewMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Update(ctx, func(Tx) error { return nil }), context.Canceled)

	require.NoError(t, m.Close())
	require.ErrorIs(t, m.Update(context.Background(), func(Tx) error { return nil }), ErrClosed)
	require.ErrorIs(t, m.View(context.Background(), func(Tx) error { return nil }), ErrClosed)
}

func TestCommittedValuesAreCopied(t *testing.T) {
	m := NewMemStore()
	ctx := context.Background()
	buf := []byte("orig")
	require.NoError(t, m.Update(ctx, func(tx Tx) error { return tx.Put("k", buf) }))
	buf[0] = 'X'

	require.NoError(t, m.View(ctx, func(tx Tx) error {
		v, err := tx.Get("k")
		assert.Equal(t, []byte("orig"), v)
		return err
	}))
}
