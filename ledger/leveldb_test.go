package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelStorePersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ledger")
	ctx := context.Background()

	var events []Event
	l, err := OpenLevelStore(dir, fixedClock, func(ev Event) { events = append(events, ev) })
	require.NoError(t, err)

	require.NoError(t, l.Update(ctx, func(tx Tx) error {
		if err := tx.Put("GRANT~1", []byte("g1")); err != nil {
			return err
		}
		if err := tx.Put("GRANT~2", []byte("g2")); err != nil {
			return err
		}
		return tx.Emit("ConsentGranted", []byte("g2"))
	}))
	require.Len(t, events, 1)

	err = l.Update(ctx, func(tx Tx) error {
		require.NoError(t, tx.Put("GRANT~3", []byte("g3")))
		return errors.New("abort")
	})
	require.Error(t, err)
	require.NoError(t, l.Close())

	l, err = OpenLevelStore(dir, fixedClock, nil)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.View(ctx, func(tx Tx) error {
		kvs, err := tx.Scan("GRANT~")
		require.NoError(t, err)
		require.Len(t, kvs, 2)
		assert.Equal(t, "GRANT~1", kvs[0].Key)
		assert.Equal(t, []byte("g2"), kvs[1].Value)

		missing, err := tx.Get("GRANT~3")
		require.NoError(t, err)
		assert.Nil(t, missing, "aborted writes are never committed")
		return nil
	}))
}

func TestLevelStoreClosed(t *testing.T) {
	l, err := OpenLevelStore(t.TempDir(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	require.ErrorIs(t, l.Update(context.Background(), func(Tx) error { return nil }), ErrClosed)
	require.ErrorIs(t, l.View(context.Background(), func(Tx) error { return nil }), ErrClosed)
}
