package clickhouse

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/pkg/errors"
)

type flushRecorder struct {
	mu      sync.Mutex
	batches [][]interface{}
	err     error
}

func (r *flushRecorder) flush(_ context.Context, batch []interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.batches = append(r.batches, batch)
	return nil
}

func (r *flushRecorder) batchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestBatchWriter_FlushesWhenFull(t *testing.T) {
	rec := &flushRecorder{}
	bw := NewBatchWriter(BatchWriterConfig{
		FlushFunc:    rec.flush,
		TableName:    "test_table",
		MaxBatchSize: 3,
		MaxAge:       time.Hour,
	})

	ctx := context.Background()
	require.NoError(t, bw.Add(ctx, 1))
	require.NoError(t, bw.Add(ctx, 2))
	assert.Zero(t, rec.batchCount())

	require.NoError(t, bw.Add(ctx, 3))
	require.Equal(t, 1, rec.batchCount())
	assert.Equal(t, []interface{}{1, 2, 3}, rec.batches[0])
	assert.Zero(t, bw.BufferSize())
}

func TestBatchWriter_StopFlushesRemainder(t *testing.T) {
	rec := &flushRecorder{}
	bw := NewBatchWriter(BatchWriterConfig{
		FlushFunc:    rec.flush,
		TableName:    "test_table",
		MaxBatchSize: 100,
		MaxAge:       time.Hour,
	})

	ctx := context.Background()
	bw.Start(ctx)
	require.NoError(t, bw.Add(ctx, "a"))
	require.NoError(t, bw.Add(ctx, "b"))

	require.NoError(t, bw.Stop(ctx))
	require.Equal(t, 1, rec.batchCount())
	assert.Len(t, rec.batches[0], 2)
}

func TestBatchWriter_PeriodicFlush(t *testing.T) {
	rec := &flushRecorder{}
	bw := NewBatchWriter(BatchWriterConfig{
		FlushFunc:    rec.flush,
		TableName:    "test_table",
		MaxBatchSize: 100,
		MaxAge:       20 * time.Millisecond,
	})

	ctx := context.Background()
	bw.Start(ctx)
	defer bw.Stop(ctx)

	require.NoError(t, bw.Add(ctx, "a"))
	assert.Eventually(t, func() bool {
		return rec.batchCount() == 1 && bw.BufferSize() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestBatchWriter_FlushErrorPropagates(t *testing.T) {
	rec := &flushRecorder{err: errors.New("insert failed")}
	bw := NewBatchWriter(BatchWriterConfig{
		FlushFunc:    rec.flush,
		TableName:    "test_table",
		MaxBatchSize: 1,
		MaxAge:       time.Hour,
	})

	err := bw.Add(context.Background(), "a")
	require.Error(t, err)
}

func TestBatchWriter_EmptyFlushIsNoop(t *testing.T) {
	rec := &flushRecorder{}
	bw := NewBatchWriter(BatchWriterConfig{
		FlushFunc: rec.flush,
		TableName: "test_table",
	})

	require.NoError(t, bw.Flush(context.Background()))
	assert.Zero(t, rec.batchCount())
}
