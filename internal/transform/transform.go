// Package transform implements Firehose data-transformation handlers that
// rewrite CloudWatch Logs subscription records and CloudWatch metric stream
// records into delivery envelopes.
package transform

import (
	"bytes"
	"context"

	"firehose-forwarder/internal/logger"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
)

// recordFunc 는 Firehose 레코드 하나의 data 를 envelope 묶음으로 바꾼다.
// 빈 결과와 nil 에러는 "버려도 되는 레코드"(예: CONTROL_MESSAGE) 를 뜻한다.
type recordFunc func(data []byte) ([][]byte, error)

// handler 는 레코드마다 recordFunc 를 적용해 Firehose 응답을 만든다.
//   - 성공: Ok, envelope 들을 줄바꿈으로 이어 붙인 data
//   - 버림: Dropped
//   - 실패: ProcessingFailed, 원본 data 그대로 (Firehose 가 error 버킷으로 보낸다)
type handler struct {
	name string
	fn   recordFunc
	log  zerolog.Logger
}

func newHandler(name string, fn recordFunc) handler {
	return handler{name: name, fn: fn, log: logger.Component(name)}
}

func (h handler) handle(_ context.Context, in events.KinesisFirehoseEvent) events.KinesisFirehoseResponse {
	resp := events.KinesisFirehoseResponse{
		Records: make([]events.KinesisFirehoseResponseRecord, 0, len(in.Records)),
	}

	var ok, dropped, failed int
	for _, rec := range in.Records {
		out := events.KinesisFirehoseResponseRecord{RecordID: rec.RecordID}

		envs, err := h.fn(rec.Data)
		switch {
		case err != nil:
			failed++
			h.log.Warn().Err(err).Str("record_id", rec.RecordID).Msg("transform failed")
			out.Result = events.KinesisFirehoseTransformedStateProcessingFailed
			out.Data = rec.Data
		case len(envs) == 0:
			dropped++
			out.Result = events.KinesisFirehoseTransformedStateDropped
		default:
			ok++
			out.Result = events.KinesisFirehoseTransformedStateOk
			out.Data = join(envs)
		}
		resp.Records = append(resp.Records, out)
	}

	h.log.Info().
		Str("stream", in.DeliveryStreamArn).
		Int("ok", ok).
		Int("dropped", dropped).
		Int("failed", failed).
		Msg("transformed")
	return resp
}

// join 은 envelope 들을 줄바꿈으로 잇는다. 마지막에도 줄바꿈을 붙인다.
func join(envs [][]byte) []byte {
	n := 0
	for _, e := range envs {
		n += len(e) + 1
	}
	var buf bytes.Buffer
	buf.Grow(n)
	for _, e := range envs {
		buf.Write(e)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}
