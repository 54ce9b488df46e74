package counter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agricapital/agricapital/internal/pkg/cache/cachetest"
)

func TestReconciliation_IncrAndStats(t *testing.T) {
	r := NewReconciliation(cachetest.NewIsolatedClient(t, 12))
	ctx := context.Background()

	stats, err := r.Stats(ctx)
	require.NoError(t, err)
	assert.Empty(t, stats)

	require.NoError(t, r.Incr(ctx, "webhook:fedapay:approved"))
	require.NoError(t, r.Incr(ctx, "webhook:fedapay:approved"))
	require.NoError(t, r.Incr(ctx, "settle:return:declined"))

	stats, err = r.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats["webhook:fedapay:approved"])
	assert.Equal(t, int64(1), stats["settle:return:declined"])

	require.NoError(t, r.Reset(ctx))
	stats, err = r.Stats(ctx)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestReconciliation_IncrIgnoresCanceledContext(t *testing.T) {
	r := NewReconciliation(cachetest.NewIsolatedClient(t, 12))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, r.Incr(ctx, "webhook:kkiapay:other"))
	stats, err := r.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["webhook:kkiapay:other"])
}
