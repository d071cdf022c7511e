// ABOUTME: Unit tests for MockStore to ensure behavior matches the persistent backends
// ABOUTME: Focuses on copy semantics, expiry, failure injection and call counting

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_RoundTripCopiesValues(t *testing.T) {
	m := NewMockStore(0)
	ctx := context.Background()

	h := sampleHistory()
	require.NoError(t, m.Save(ctx, "k", h))
	h[1].Content = "mutated after save"

	got, err := m.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, sampleHistory(), got)

	got[0].Content = "mutated after load"
	again, err := m.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, sampleHistory(), again)
}

func TestMockStore_Expiry(t *testing.T) {
	m := NewMockStore(time.Minute)
	ctx := context.Background()

	base := time.Now()
	m.Now = func() time.Time { return base }
	require.NoError(t, m.Save(ctx, "k", sampleHistory()))

	m.Now = func() time.Time { return base.Add(time.Minute) }
	got, err := m.Load(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMockStore_FailureInjection(t *testing.T) {
	m := NewMockStore(0)
	ctx := context.Background()
	m.Err = errors.New("boom")
	m.FailOps = []string{"save"}

	_, err := m.Load(ctx, "k")
	assert.NoError(t, err)

	err = m.Save(ctx, "k", sampleHistory())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorContains(t, err, "boom")

	m.FailOps = nil
	assert.ErrorIs(t, m.Clear(ctx, "k"), ErrStoreUnavailable)
	assert.ErrorIs(t, m.Ping(ctx), ErrStoreUnavailable)
}

func TestMockStore_Counts(t *testing.T) {
	m := NewMockStore(0)
	ctx := context.Background()

	_, _ = m.Load(ctx, "k")
	_ = m.Save(ctx, "k", sampleHistory())
	_ = m.Save(ctx, "k", sampleHistory())
	_ = m.Clear(ctx, "k")

	assert.Equal(t, 1, m.LoadCount())
	assert.Equal(t, 2, m.SaveCount())
	assert.Equal(t, 1, m.ClearCount())
}

func TestMockStore_CancelledContext(t *testing.T) {
	m := NewMockStore(0)
	require.NoError(t, m.Save(context.Background(), "k", sampleHistory()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Clear(ctx, "k"), ErrStoreUnavailable)
	assert.ErrorIs(t, m.Save(ctx, "k", nil), ErrStoreUnavailable)
	_, err := m.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	got, err := m.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, sampleHistory(), got, "cancelled clear must leave the entry")
}
