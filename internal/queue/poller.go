// Package queue consumes S3 notifications from an SQS queue by long polling.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/logger"
	"firehose-forwarder/internal/storage"
	"firehose-forwarder/internal/worker"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"
)

// API 는 Poller 가 쓰는 SQS client 메서드.
type API interface {
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, in *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// Handler 는 메시지 body 묶음을 처리하고 같은 순서로 결과를 돌려준다.
// worker.Processor 가 구현한다.
type Handler interface {
	ProcessAll(ctx context.Context, bodies []string) []worker.Outcome
}

// receive 실패 시 backoff 범위.
const (
	minBackoff = 200 * time.Millisecond
	maxBackoff = 5 * time.Second
)

// Poller
// ------------------------------------------------------------
// Lambda 대신 상시 프로세스(ECS 등)로 돌릴 때의 입력 루프.
//
//	ReceiveMessage(long poll) → Handler.ProcessAll → DeleteMessageBatch
//
// Retryable 결과(일시적인 S3 실패)는 지우지 않는다.
// visibility timeout 이 지나면 SQS 가 다시 전달하고, redrive policy 가
// 있으면 결국 DLQ 로 간다. 그 외 결과(처리 완료 / 영구 실패)는 모두 지운다.
type Poller struct {
	cfg     config.Config
	client  API
	handler Handler
	log     zerolog.Logger
}

func NewPoller(ctx context.Context, cfg config.Config, h Handler) (*Poller, error) {
	awsCfg, err := storage.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewPollerWithClient(cfg, sqs.NewFromConfig(awsCfg), h), nil
}

func NewPollerWithClient(cfg config.Config, client API, h Handler) *Poller {
	return &Poller{
		cfg:     cfg,
		client:  client,
		handler: h,
		log:     logger.Component("poller"),
	}
}

// Run 은 ctx 가 취소될 때까지 poll 한다.
// 처리 중이던 묶음은 끝까지 처리하고 지운 뒤 돌아온다.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info().Str("queue", p.cfg.QueueURL).Msg("polling started")

	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			p.log.Info().Msg("polling stopped")
			return nil
		}

		_, err := p.PollOnce(ctx)
		if err == nil {
			backoff = minBackoff
			continue
		}
		if errors.Is(err, context.Canceled) {
			continue
		}

		p.log.Error().Err(err).Dur("backoff", backoff).Msg("receive failed")
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// PollOnce 는 한 번 receive 해서 처리하고, 받은 메시지 수를 돌려준다.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	out, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(p.cfg.QueueURL),
		MaxNumberOfMessages: int32(p.cfg.SQSMaxMessages),
		WaitTimeSeconds:     int32(p.cfg.SQSWaitTime / time.Second),
	})
	if err != nil {
		return 0, fmt.Errorf("receive %s: %w", p.cfg.QueueURL, err)
	}
	if len(out.Messages) == 0 {
		return 0, nil
	}

	bodies := make([]string, len(out.Messages))
	for i, msg := range out.Messages {
		bodies[i] = aws.ToString(msg.Body)
	}

	// 받은 묶음은 종료 신호와 관계없이 끝까지 처리한다.
	outcomes := p.handler.ProcessAll(context.WithoutCancel(ctx), bodies)

	var entries []types.DeleteMessageBatchRequestEntry
	for i, o := range outcomes {
		if o.Retryable {
			continue
		}
		entries = append(entries, types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(strconv.Itoa(i)),
			ReceiptHandle: out.Messages[i].ReceiptHandle,
		})
	}
	if len(entries) == 0 {
		return len(out.Messages), nil
	}

	del, err := p.client.DeleteMessageBatch(context.WithoutCancel(ctx), &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(p.cfg.QueueURL),
		Entries:  entries,
	})
	if err != nil {
		// 지우지 못한 메시지는 다시 전달된다 (at-least-once).
		p.log.Error().Err(err).Int("messages", len(entries)).Msg("delete failed")
		return len(out.Messages), nil
	}
	for _, f := range del.Failed {
		p.log.Warn().
			Str("id", aws.ToString(f.Id)).
			Str("code", aws.ToString(f.Code)).
			Str("message", aws.ToString(f.Message)).
			Msg("delete entry failed")
	}
	return len(out.Messages), nil
}
