package worker

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"firehose-forwarder/internal/metrics"
	"firehose-forwarder/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatcher_CountThreshold(t *testing.T) {
	sink := &recordingSink{}
	b := NewBatcher(sink, nil)
	ctx := context.Background()

	for i := 0; i < MaxBatchRecords; i++ {
		_, flushed, err := b.Add(ctx, []byte("x"))
		require.NoError(t, err)
		require.False(t, flushed, "record %d", i)
	}

	res, flushed, err := b.Add(ctx, []byte("x"))
	require.NoError(t, err)
	assert.True(t, flushed)
	assert.Equal(t, MaxBatchRecords+1, res.Records)
	assert.Equal(t, []int{201}, sink.sizes())
	assert.Zero(t, b.Len())
	assert.Zero(t, b.Size())
}

func TestBatcher_SizeThreshold(t *testing.T) {
	sink := &recordingSink{}
	b := NewBatcher(sink, nil)
	ctx := context.Background()

	big := bytes.Repeat([]byte("a"), MaxBatchBytes/2)
	_, flushed, err := b.Add(ctx, big)
	require.NoError(t, err)
	assert.False(t, flushed)

	// exactly at the limit is not over it
	_, flushed, err = b.Add(ctx, big)
	require.NoError(t, err)
	assert.False(t, flushed)

	res, flushed, err := b.Add(ctx, []byte("b"))
	require.NoError(t, err)
	assert.True(t, flushed)
	assert.Equal(t, 3, res.Records)
	assert.Equal(t, MaxBatchBytes+1, res.Bytes)
	assert.Zero(t, b.Size())
}

func TestBatcher_FinalFlush(t *testing.T) {
	sink := &recordingSink{}
	m := metrics.New()
	b := NewBatcher(sink, m)
	ctx := context.Background()

	res, err := b.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Records)
	assert.Empty(t, sink.sizes(), "empty flush must not call the sink")

	_, _, _ = b.Add(ctx, []byte("one"))
	_, _, _ = b.Add(ctx, []byte("two"))
	res, err = b.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, []int{2}, sink.sizes())

	assert.EqualValues(t, 1, m.BatchesSentTotal)
	assert.EqualValues(t, 2, m.RecordsSentTotal)
	assert.EqualValues(t, 6, m.BytesSentTotal)
}

func TestBatcher_PartialFailure(t *testing.T) {
	sink := &recordingSink{failed: 1}
	m := metrics.New()
	b := NewBatcher(sink, m)

	_, _, _ = b.Add(context.Background(), []byte("x"))
	res, err := b.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "ServiceUnavailableException: slow down", res.FirstError)
	assert.EqualValues(t, 1, m.RecordsFailedTotal)
}

func TestBatcher_SinkErrorStillClears(t *testing.T) {
	sink := &recordingSink{err: errors.New("boom")}
	b := NewBatcher(sink, nil)

	_, _, _ = b.Add(context.Background(), []byte("x"))
	res, err := b.Flush(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDeliveryFailed)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, b.Len())
	assert.Zero(t, b.Size())
}
