package worker

import (
	"context"
	"sync/atomic"

	"firehose-forwarder/internal/logger"
	"firehose-forwarder/internal/metrics"

	"github.com/rs/zerolog"
)

// 한 batch 의 상한. 둘 중 하나를 넘으면 즉시 flush 한다.
// (Firehose PutRecordBatch 의 500건 / 4MiB 제한 아래에서 여유를 둔 값)
const (
	MaxBatchRecords = 200
	MaxBatchBytes   = 2_000_000
)

// FlushResult 는 flush 한 번의 결과.
type FlushResult struct {
	Records    int
	Bytes      int
	Failed     int
	FirstError string // "<code>: <message>", 실패가 없으면 빈 값
}

// Batcher
// ------------------------------------------------------------
// envelope 를 모아 두었다가 Sink 로 보낸다.
//   - 레코드 수 > MaxBatchRecords 또는 payload 합 > MaxBatchBytes 이면 Add 가 flush
//   - 객체 처리 끝에 Flush 로 남은 것을 보낸다
//   - flush 후에는 sink 결과와 관계없이 항상 비어 있다
//
// goroutine 하나가 소유한다. 동시에 쓰지 않는다.
type Batcher struct {
	sink    Sink
	metrics *metrics.Metrics
	log     zerolog.Logger

	records [][]byte
	bytes   int
}

func NewBatcher(sink Sink, m *metrics.Metrics) *Batcher {
	return &Batcher{
		sink:    sink,
		metrics: m,
		log:     logger.Component("batcher"),
		records: make([][]byte, 0, MaxBatchRecords+1),
	}
}

// Len 은 아직 보내지 않은 레코드 수.
func (b *Batcher) Len() int { return len(b.records) }

// Size 는 아직 보내지 않은 payload 바이트 합.
func (b *Batcher) Size() int { return b.bytes }

// Add 는 payload 를 쌓고, 상한을 넘었으면 flush 한다.
// flushed 가 true 일 때만 FlushResult 가 의미 있다.
func (b *Batcher) Add(ctx context.Context, payload []byte) (res FlushResult, flushed bool, err error) {
	b.records = append(b.records, payload)
	b.bytes += len(payload)

	if len(b.records) > MaxBatchRecords || b.bytes > MaxBatchBytes {
		res, err = b.flush(ctx)
		return res, true, err
	}
	return FlushResult{}, false, nil
}

// Flush 는 남은 레코드를 보낸다. 비어 있으면 sink 를 부르지 않는다.
func (b *Batcher) Flush(ctx context.Context) (FlushResult, error) {
	if len(b.records) == 0 {
		return FlushResult{}, nil
	}
	return b.flush(ctx)
}

func (b *Batcher) flush(ctx context.Context) (FlushResult, error) {
	res := FlushResult{Records: len(b.records), Bytes: b.bytes}
	records := b.records

	// sink 결과와 관계없이 비운다. 재시도는 하지 않는다.
	b.records = make([][]byte, 0, MaxBatchRecords+1)
	b.bytes = 0

	rep, err := b.sink.Deliver(ctx, records)

	if b.metrics != nil {
		atomic.AddInt64(&b.metrics.BatchesSentTotal, 1)
		atomic.AddInt64(&b.metrics.RecordsSentTotal, int64(res.Records))
		atomic.AddInt64(&b.metrics.BytesSentTotal, int64(res.Bytes))
	}

	if err != nil {
		res.Failed = res.Records
		res.FirstError = err.Error()
		if b.metrics != nil {
			atomic.AddInt64(&b.metrics.RecordsFailedTotal, int64(res.Records))
		}
		return res, err
	}

	if rep.Failed > 0 {
		res.Failed = rep.Failed
		res.FirstError = rep.FirstErrorCode + ": " + rep.FirstErrorMessage
		if b.metrics != nil {
			atomic.AddInt64(&b.metrics.RecordsFailedTotal, int64(rep.Failed))
		}
		b.log.Warn().
			Int("records", res.Records).
			Int("failed", res.Failed).
			Str("first_error", res.FirstError).
			Msg("partial delivery failure")
	}
	return res, nil
}
