package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coefcalc/internal/config"
	"coefcalc/internal/shared/testutil"
	"coefcalc/pkg/contracts/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore(t *testing.T, ttl time.Duration, capacity int) (*SessionStore, *fakeClock) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewSessionStore(config.CalculationConfig{SessionTTL: ttl, MaxSessions: capacity}, nil, logger)
	store.now = clock.now
	return store, clock
}

func result(id string) *domain.CalculationResult {
	return &domain.CalculationResult{ID: id}
}

func TestSessionStore_PutGetDelete(t *testing.T) {
	store, _ := newTestStore(t, time.Hour, 4)
	ctx := context.Background()

	store.Put(ctx, result("a"))
	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCalculationNotFound)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCalculationNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "a"), ErrCalculationNotFound)
}

func TestSessionStore_Expiry(t *testing.T) {
	store, clock := newTestStore(t, time.Minute, 4)
	ctx := context.Background()

	store.Put(ctx, result("a"))
	clock.advance(30 * time.Second)
	store.Put(ctx, result("b"))

	clock.advance(45 * time.Second)
	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCalculationNotFound)
	_, err = store.Get(ctx, "b")
	assert.NoError(t, err)
	assert.Equal(t, []string{"b"}, store.List())

	assert.Equal(t, 1, store.Cleanup(ctx))
	stats := store.Stats()
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, int64(1), stats.Expired)
}

func TestSessionStore_EvictsOldestWhenFull(t *testing.T) {
	store, clock := newTestStore(t, time.Hour, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		store.Put(ctx, result(fmt.Sprintf("calc-%d", i)))
		clock.advance(time.Second)
	}

	assert.Equal(t, []string{"calc-4", "calc-3", "calc-2"}, store.List())
	_, err := store.Get(ctx, "calc-0")
	assert.ErrorIs(t, err, ErrCalculationNotFound)

	stats := store.Stats()
	assert.Equal(t, 3, stats.Active)
	assert.Equal(t, 3, stats.Capacity)
	assert.Equal(t, int64(2), stats.Evicted)
}

func TestSessionStore_PutReplacesWithoutEviction(t *testing.T) {
	store, _ := newTestStore(t, time.Hour, 1)
	ctx := context.Background()

	store.Put(ctx, &domain.CalculationResult{ID: "a", Summary: domain.CalculationSummary{Products: 1}})
	store.Put(ctx, &domain.CalculationResult{ID: "a", Summary: domain.CalculationSummary{Products: 2}})

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Summary.Products)
	assert.Equal(t, int64(0), store.Stats().Evicted)
}

func TestSessionStore_RunStopsWithContext(t *testing.T) {
	store, _ := newTestStore(t, time.Hour, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		store.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
