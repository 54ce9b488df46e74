package payments_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agricapital/agricapital/internal/pkg/cache/cachetest"
	"github.com/agricapital/agricapital/internal/pkg/payments"
)

func TestRedisSnapshotStore(t *testing.T) {
	client := cachetest.NewIsolatedClient(t, 13)
	store := payments.NewRedisSnapshotStore(client)
	ctx := context.Background()

	_, err := store.Load(ctx, "unknown")
	assert.ErrorIs(t, err, payments.ErrSessionNotFound)

	snap := payments.Snapshot{
		Session:       "0b6f3a3e-2c3f-4d4c-9a55-5b2f6f1f3f10",
		State:         payments.ReturnAwaiting,
		AutoChecks:    4,
		MaxAutoChecks: 10,
		Params:        payments.ReturnParams{Reference: "REF-005", Provider: payments.ProviderAuto},
		UpdatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Save(ctx, snap, time.Minute))

	got, err := store.Load(ctx, snap.Session)
	require.NoError(t, err)
	assert.Equal(t, snap.State, got.State)
	assert.Equal(t, 4, got.AutoChecks)
	assert.Equal(t, "REF-005", got.Params.Reference)
	assert.True(t, snap.UpdatedAt.Equal(got.UpdatedAt))

	ttl, err := client.TTL(ctx, "payment:return:"+snap.Session).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
