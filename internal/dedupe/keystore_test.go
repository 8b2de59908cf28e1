package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKeyStore(t *testing.T) {
	ctx := context.Background()
	ks := NewMemoryKeyStore()

	seen, err := ks.Has(ctx, "fp1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, ks.Add(ctx, "fp1", time.Hour))

	seen, err = ks.Has(ctx, "fp1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = ks.Has(ctx, "fp2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemoryKeyStore_AddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ks := NewMemoryKeyStore()

	require.NoError(t, ks.Add(ctx, "fp1", 0))
	require.NoError(t, ks.Add(ctx, "fp1", 0))

	seen, err := ks.Has(ctx, "fp1")
	require.NoError(t, err)
	assert.True(t, seen)
}
