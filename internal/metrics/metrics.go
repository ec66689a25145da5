package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Metrics 는 파이프라인 상태를 나타내는 카운터 모음이다.
// 모든 필드는 atomic 으로만 접근한다.
type Metrics struct {
	// ======================
	// 객체(S3 object) 단위
	// ======================

	// ObjectsReceivedTotal
	// - 큐에서 꺼낸 메시지 수. 파싱 성공 여부와 관계없이 증가한다.
	ObjectsReceivedTotal int64

	// ObjectsProcessedTotal
	// - 마지막 flush 까지 끝난 객체 수 (이벤트 0건 포함).
	ObjectsProcessedTotal int64

	// ObjectsSkippedTotal
	// - 어느 단계에서든 실패해서 건너뛴 객체 수.
	// - 단계별 원인은 아래 Skipped* 카운터로 나뉜다.
	ObjectsSkippedTotal int64

	SkippedMalformedTotal   int64 // 큐 메시지에 S3 좌표가 없음
	SkippedRetrievalTotal   int64 // S3 GetObject 실패
	SkippedFileTypeTotal    int64 // allow/deny list 에 걸림
	SkippedUncompressTotal  int64 // gzip/zstd/parquet 변환 실패
	SkippedReadTotal        int64 // 정규화된 파일 읽기 실패
	SkippedFormatTotal      int64 // split 불가 포맷
	SkippedDeliveryErrTotal int64 // sink 호출 자체가 실패

	// ======================
	// 이벤트 단위
	// ======================

	// EventsSplitTotal
	// - Splitter 가 만들어낸 이벤트 수.
	EventsSplitTotal int64

	// TimestampFallbackTotal
	// - timestamp 추출에 실패해서 현재 시각으로 대체한 이벤트 수.
	// - 이 값이 EventsSplitTotal 에 가까우면 SPLUNK_TIME_* 설정이 데이터와 맞지 않는 것.
	TimestampFallbackTotal int64

	// ======================
	// sink (Firehose) 단위
	// ======================

	// BatchesSentTotal
	// - PutRecordBatch 호출 횟수.
	BatchesSentTotal int64

	// RecordsSentTotal
	// - sink 로 보낸 레코드 수 (실패 포함).
	RecordsSentTotal int64

	// RecordsFailedTotal
	// - sink 가 실패로 보고한 레코드 수. 재시도하지 않는다.
	RecordsFailedTotal int64

	// BytesSentTotal
	// - sink 로 보낸 payload 바이트 합.
	BytesSentTotal int64
}

func New() *Metrics {
	return &Metrics{}
}

// counters 는 출력 순서대로 이름과 카운터를 나열한다.
func (m *Metrics) counters() []struct {
	name string
	v    *int64
} {
	return []struct {
		name string
		v    *int64
	}{
		{"objects_received_total", &m.ObjectsReceivedTotal},
		{"objects_processed_total", &m.ObjectsProcessedTotal},
		{"objects_skipped_total", &m.ObjectsSkippedTotal},
		{"skipped_malformed_total", &m.SkippedMalformedTotal},
		{"skipped_retrieval_total", &m.SkippedRetrievalTotal},
		{"skipped_file_type_total", &m.SkippedFileTypeTotal},
		{"skipped_uncompress_total", &m.SkippedUncompressTotal},
		{"skipped_read_total", &m.SkippedReadTotal},
		{"skipped_format_total", &m.SkippedFormatTotal},
		{"skipped_delivery_total", &m.SkippedDeliveryErrTotal},
		{"events_split_total", &m.EventsSplitTotal},
		{"timestamp_fallback_total", &m.TimestampFallbackTotal},
		{"batches_sent_total", &m.BatchesSentTotal},
		{"records_sent_total", &m.RecordsSentTotal},
		{"records_failed_total", &m.RecordsFailedTotal},
		{"bytes_sent_total", &m.BytesSentTotal},
	}
}

// String 은 /metrics 응답용 key=value 줄 목록.
func (m *Metrics) String() string {
	var sb strings.Builder
	sb.Grow(512)

	for _, c := range m.counters() {
		fmt.Fprintf(&sb, "%s=%d\n", c.name, atomic.LoadInt64(c.v))
	}
	return sb.String()
}

// MarshalZerologObject 로 Lambda invocation 종료 로그에 카운터를 싣는다.
//
//	log.Info().Object("metrics", m).Msg("invocation done")
func (m *Metrics) MarshalZerologObject(e *zerolog.Event) {
	for _, c := range m.counters() {
		e.Int64(c.name, atomic.LoadInt64(c.v))
	}
}
