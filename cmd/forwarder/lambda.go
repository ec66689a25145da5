package main

import (
	"context"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/logger"
	"firehose-forwarder/internal/metrics"
	"firehose-forwarder/internal/storage"
	"firehose-forwarder/internal/transform"
	"firehose-forwarder/internal/worker"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// batchProcessor 는 SQS 메시지 body 묶음을 처리한다.
type batchProcessor interface {
	ProcessAll(ctx context.Context, bodies []string) []worker.Outcome
}

func newLambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Run as an SQS-triggered Lambda function",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger.Init(cfg)
			config.Must("FIREHOSE_DELIVERY_STREAM", cfg.DeliveryStream)

			m := metrics.New()
			proc, err := newS3Processor(cmd.Context(), cfg, m)
			if err != nil {
				return err
			}

			lambda.Start(sqsHandler(proc, m))
			return nil
		},
	}
}

// newS3Processor 는 S3 retriever 와 Firehose sink 로 Processor 를 만든다.
func newS3Processor(ctx context.Context, cfg config.Config, m *metrics.Metrics) (*worker.Processor, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	retriever, err := storage.NewS3Retriever(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sink, err := worker.NewFirehoseSink(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return worker.NewProcessor(cfg, retriever, sink, m)
}

// sqsHandler
//
// invocation 하나 = SQS 메시지 묶음 하나.
// Retryable 결과만 batch item failure 로 돌려준다.
// (event source mapping 에 ReportBatchItemFailures 가 켜져 있어야 한다.
// 꺼져 있으면 응답이 무시되고 묶음 전체가 성공으로 처리된다.)
// 그 외 실패는 로그로만 남기고 메시지를 지운다.
func sqsHandler(p batchProcessor, m *metrics.Metrics) func(context.Context, events.SQSEvent) (events.SQSEventResponse, error) {
	return func(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
		bodies := make([]string, len(ev.Records))
		for i, r := range ev.Records {
			bodies[i] = r.Body
		}

		outcomes := p.ProcessAll(ctx, bodies)

		var resp events.SQSEventResponse
		skipped := 0
		for i, o := range outcomes {
			if o.Skipped() {
				skipped++
			}
			if o.Retryable {
				resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
					ItemIdentifier: ev.Records[i].MessageId,
				})
			}
		}

		zlog.Info().
			Int("messages", len(ev.Records)).
			Int("skipped", skipped).
			Int("retry", len(resp.BatchItemFailures)).
			Object("metrics", m).
			Msg("invocation done")
		return resp, nil
	}
}

func newTransformLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transform-logs",
		Short: "Run as a Firehose transformation Lambda for CloudWatch Logs subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger.Init(cfg)

			lambda.Start(transform.NewLogs(cfg).Handle)
			return nil
		},
	}
}

func newTransformMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transform-metrics",
		Short: "Run as a Firehose transformation Lambda for CloudWatch metric streams",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger.Init(cfg)

			t, err := transform.NewMetrics(cfg)
			if err != nil {
				return err
			}
			lambda.Start(t.Handle)
			return nil
		},
	}
}
