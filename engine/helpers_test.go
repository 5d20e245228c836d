package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haven-health-passport/chaincode/consent/engine"
	"github.com/haven-health-passport/chaincode/consent/ledger"
	"github.com/haven-health-passport/chaincode/consent/models"
	"github.com/haven-health-passport/chaincode/consent/utils"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

var (
	patient  = utils.AddressFromIdentity("patient")
	doctor   = utils.AddressFromIdentity("doctor")
	doctor2  = utils.AddressFromIdentity("doctor-2")
	stranger = utils.AddressFromIdentity("stranger")
)

const recordHash = "sha256:9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

// fakeClock is a settable clock shared by the store and the test
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   *engine.Service
	store *ledger.MemStore
	clock *fakeClock
	ctx   context.Context
}

func newFixture(t *testing.T, opts ...engine.Option) *fixture {
	t.Helper()
	clock := newFakeClock(t0)
	store := ledger.NewMemStore(ledger.WithClock(clock.Now))
	t.Cleanup(func() { store.Close() })
	return &fixture{
		svc:   engine.NewService(engine.New(opts...), store),
		store: store,
		clock: clock,
		ctx:   context.Background(),
	}
}

// seed registers keys for patient and both doctors and a record r1
func (f *fixture) seed(t *testing.T) {
	t.Helper()
	for _, p := range []string{patient, doctor, doctor2} {
		_, err := f.svc.RegisterKey(f.ctx, p, p, "pk-"+p)
		require.NoError(t, err)
	}
	_, err := f.svc.RegisterRecord(f.ctx, patient, "r1", "sha256:blob-r1", recordHash)
	require.NoError(t, err)
}

func (f *fixture) grant(t *testing.T, doc string, d time.Duration) *models.ConsentGrant {
	t.Helper()
	g, err := f.svc.GrantConsent(f.ctx, patient, "r1", doc, "E-"+doc, d)
	require.NoError(t, err)
	return g
}

func (f *fixture) transitions(t *testing.T) []*models.Transition {
	t.Helper()
	ts, err := f.svc.Transitions(f.ctx, 0)
	require.NoError(t, err)
	return ts
}
