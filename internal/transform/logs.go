package transform

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/envelope"
	"firehose-forwarder/internal/pool"

	"github.com/aws/aws-lambda-go/events"
	json "github.com/goccy/go-json"
)

// CloudWatch Logs subscription payload (gzip 압축된 JSON).
type logsData struct {
	MessageType string     `json:"messageType"`
	LogGroup    string     `json:"logGroup"`
	LogStream   string     `json:"logStream"`
	LogEvents   []logEvent `json:"logEvents"`
}

type logEvent struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"` // epoch ms
	Message   string `json:"message"`
}

// 구독 생성 시 CloudWatch Logs 가 보내는 확인용 메시지. 전달하지 않는다.
const controlMessage = "CONTROL_MESSAGE"

// Logs 는 CloudWatch Logs → Firehose 레코드를 envelope 로 바꾼다.
type Logs struct {
	handler
	builder envelope.Builder
}

func NewLogs(cfg config.Config) *Logs {
	l := &Logs{builder: envelope.NewBuilder(cfg)}
	l.handler = newHandler("transform-logs", l.record)
	return l
}

// Handle 은 Lambda handler 로 그대로 등록한다.
func (l *Logs) Handle(ctx context.Context, in events.KinesisFirehoseEvent) (events.KinesisFirehoseResponse, error) {
	return l.handle(ctx, in), nil
}

// record
//
// logEvent 하나당 envelope 하나:
//   - time: logEvent 의 timestamp (ms → 초)
//   - event: message 의 연속 공백을 공백 하나로 줄인 문자열
func (l *Logs) record(data []byte) ([][]byte, error) {
	raw, err := gunzip(data)
	if err != nil {
		return nil, fmt.Errorf("gunzip: %w", err)
	}

	var d logsData
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode logs payload: %w", err)
	}
	if d.MessageType == controlMessage {
		return nil, nil
	}

	out := make([][]byte, 0, len(d.LogEvents))
	for _, ev := range d.LogEvents {
		msg := strings.Join(strings.Fields(ev.Message), " ")
		b, err := l.builder.Event(msg, float64(ev.Timestamp)/1000)
		if err != nil {
			return nil, fmt.Errorf("log event %s: %w", ev.ID, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := pool.GetGzipReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer pool.PutGzipReader(zr)
	return io.ReadAll(zr)
}
