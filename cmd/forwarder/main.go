package main

import (
	"os"

	"github.com/spf13/cobra"
)

// forwarder
//
// 하나의 바이너리로 다섯 가지 실행 모드를 제공한다.
//
//	lambda            SQS → Lambda 트리거. S3 객체를 정규화해 Firehose 로 보낸다
//	poll              같은 파이프라인을 상시 프로세스로 (SQS long polling + /metrics)
//	file              로컬 파일을 같은 파이프라인으로 처리 (backfill, 설정 검증)
//	transform-logs    Firehose 변환 Lambda: CloudWatch Logs 구독 레코드
//	transform-metrics Firehose 변환 Lambda: CloudWatch metric stream 레코드
//
// 모든 모드의 설정은 환경 변수로만 받는다 (internal/config).
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "forwarder",
		Short:         "Normalize S3 log objects and forward them to Firehose",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newLambdaCmd(),
		newPollCmd(),
		newFileCmd(),
		newTransformLogsCmd(),
		newTransformMetricsCmd(),
	)
	return root
}
