package worker

import (
	"context"
	"fmt"
	"io"
	"math"
	"sync"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/model"
	"firehose-forwarder/internal/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	"github.com/aws/aws-sdk-go-v2/service/firehose/types"
	"golang.org/x/time/rate"
)

// DeliveryReport 는 sink 호출 한 번의 결과.
// 호출 자체는 성공했지만 일부 레코드가 거부된 경우를 표현한다.
type DeliveryReport struct {
	Failed            int
	FirstErrorCode    string
	FirstErrorMessage string
}

// Sink 는 envelope 묶음을 downstream 으로 보낸다.
// 반환 에러는 호출 자체의 실패이고 model.ErrDeliveryFailed 를 감싼다.
type Sink interface {
	Deliver(ctx context.Context, records [][]byte) (DeliveryReport, error)
}

// PutRecordBatchAPI 는 FirehoseSink 가 쓰는 Firehose client 메서드.
type PutRecordBatchAPI interface {
	PutRecordBatch(ctx context.Context, in *firehose.PutRecordBatchInput, optFns ...func(*firehose.Options)) (*firehose.PutRecordBatchOutput, error)
}

// FirehoseSink
// ------------------------------------------------------------
// PutRecordBatch 로 envelope 를 delivery stream 에 넣는다.
//   - 재시도하지 않는다 (실패한 레코드는 report 로만 돌려준다)
//   - FIREHOSE_MAX_BATCHES_PER_SEC > 0 이면 호출 전 limiter 를 기다린다
type FirehoseSink struct {
	stream  string
	client  PutRecordBatchAPI
	limiter *rate.Limiter
}

// NewFirehoseSink 는 기본 AWS 설정으로 client 를 만든다.
func NewFirehoseSink(ctx context.Context, cfg config.Config) (*FirehoseSink, error) {
	awsCfg, err := storage.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewFirehoseSinkWithClient(cfg, firehose.NewFromConfig(awsCfg)), nil
}

func NewFirehoseSinkWithClient(cfg config.Config, client PutRecordBatchAPI) *FirehoseSink {
	s := &FirehoseSink{
		stream: cfg.DeliveryStream,
		client: client,
	}
	if cfg.FirehoseMaxBatchesPerSec > 0 {
		burst := int(math.Ceil(cfg.FirehoseMaxBatchesPerSec))
		s.limiter = rate.NewLimiter(rate.Limit(cfg.FirehoseMaxBatchesPerSec), burst)
	}
	return s
}

func (s *FirehoseSink) Deliver(ctx context.Context, records [][]byte) (DeliveryReport, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return DeliveryReport{}, fmt.Errorf("%w: rate limiter: %v", model.ErrDeliveryFailed, err)
		}
	}

	in := &firehose.PutRecordBatchInput{
		DeliveryStreamName: aws.String(s.stream),
		Records:            make([]types.Record, len(records)),
	}
	for i, r := range records {
		in.Records[i] = types.Record{Data: r}
	}

	out, err := s.client.PutRecordBatch(ctx, in)
	if err != nil {
		return DeliveryReport{}, fmt.Errorf("%w: PutRecordBatch %s: %v", model.ErrDeliveryFailed, s.stream, err)
	}

	var rep DeliveryReport
	if out.FailedPutCount != nil {
		rep.Failed = int(*out.FailedPutCount)
	}
	if rep.Failed > 0 {
		for _, e := range out.RequestResponses {
			if e.ErrorCode != nil {
				rep.FirstErrorCode = aws.ToString(e.ErrorCode)
				rep.FirstErrorMessage = aws.ToString(e.ErrorMessage)
				break
			}
		}
	}
	return rep, nil
}

var newline = []byte{'\n'}

// WriterSink 는 envelope 를 한 줄씩 w 에 쓴다.
// file 모드의 --dry-run 에서 Firehose 대신 쓴다.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Deliver(_ context.Context, records [][]byte) (DeliveryReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if _, err := s.w.Write(r); err != nil {
			return DeliveryReport{}, fmt.Errorf("%w: %v", model.ErrDeliveryFailed, err)
		}
		if _, err := s.w.Write(newline); err != nil {
			return DeliveryReport{}, fmt.Errorf("%w: %v", model.ErrDeliveryFailed, err)
		}
	}
	return DeliveryReport{}, nil
}
