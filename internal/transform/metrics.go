package transform

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/envelope"

	"github.com/aws/aws-lambda-go/events"
	json "github.com/goccy/go-json"
)

// SPLUNK_EVENT_TYPE 값.
const (
	EventTypeEvent  = "event"
	EventTypeMetric = "metric"
)

// metric 스트림 레코드의 sourcetype.
const (
	SourceTypeEvent  = "aws:cloudwatch"
	SourceTypeMetric = "aws:cloudwatch:metric"
)

// CloudWatch metric stream (JSON 출력 형식) 한 줄.
type metricRecord struct {
	MetricStreamName string            `json:"metric_stream_name"`
	AccountID        string            `json:"account_id"`
	Region           string            `json:"region"`
	Namespace        string            `json:"namespace"`
	MetricName       string            `json:"metric_name"`
	Dimensions       map[string]string `json:"dimensions"`
	Timestamp        int64             `json:"timestamp"` // epoch ms
	Value            struct {
		Max   float64 `json:"max"`
		Min   float64 `json:"min"`
		Sum   float64 `json:"sum"`
		Count float64 `json:"count"`
	} `json:"value"`
	Unit string `json:"unit"`
}

func (r metricRecord) average() float64 {
	if r.Value.Count == 0 {
		return 0
	}
	return r.Value.Sum / r.Value.Count
}

// event 모드의 event 본문. 필드 순서를 고정하려고 struct 로 둔다.
type metricEvent struct {
	Average          float64 `json:"Average"`
	Maximum          float64 `json:"Maximum"`
	Minimum          float64 `json:"Minimum"`
	SampleCount      float64 `json:"SampleCount"`
	Sum              float64 `json:"Sum"`
	Unit             string  `json:"Unit"`
	AccountID        string  `json:"account_id"`
	MetricName       string  `json:"metric_name"`
	Namespace        string  `json:"Namespace"`
	Timestamp        string  `json:"timestamp"`
	MetricDimensions string  `json:"metric_dimensions"`
}

// Metrics 는 metric stream → Firehose 레코드를 envelope 로 바꾼다.
//   - event  : 통계값을 담은 event envelope (sourcetype aws:cloudwatch)
//   - metric : "event":"metric" + fields 블록 (sourcetype aws:cloudwatch:metric)
type Metrics struct {
	handler
	eventType string
	builder   envelope.Builder
}

func NewMetrics(cfg config.Config) (*Metrics, error) {
	m := &Metrics{eventType: cfg.EventType}

	switch cfg.EventType {
	case EventTypeEvent:
		m.builder = envelope.NewBuilder(cfg).WithSourceType(SourceTypeEvent)
	case EventTypeMetric:
		m.builder = envelope.NewBuilder(cfg).WithSourceType(SourceTypeMetric)
	default:
		return nil, fmt.Errorf("SPLUNK_EVENT_TYPE must be %q or %q, got %q", EventTypeEvent, EventTypeMetric, cfg.EventType)
	}

	m.handler = newHandler("transform-metrics", m.record)
	return m, nil
}

func (m *Metrics) Handle(ctx context.Context, in events.KinesisFirehoseEvent) (events.KinesisFirehoseResponse, error) {
	return m.handle(ctx, in), nil
}

// record 는 NDJSON 한 줄당 envelope 하나. 한 줄이라도 깨지면 레코드 전체가 실패한다.
func (m *Metrics) record(data []byte) ([][]byte, error) {
	var out [][]byte

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	for n := 1; sc.Scan(); n++ {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var r metricRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}

		b, err := m.envelope(r)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		out = append(out, b)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Metrics) envelope(r metricRecord) ([]byte, error) {
	t := float64(r.Timestamp) / 1000

	if m.eventType == EventTypeEvent {
		return m.builder.Event(metricEvent{
			Average:          r.average(),
			Maximum:          r.Value.Max,
			Minimum:          r.Value.Min,
			SampleCount:      r.Value.Count,
			Sum:              r.Value.Sum,
			Unit:             r.Unit,
			AccountID:        r.AccountID,
			MetricName:       r.MetricName,
			Namespace:        r.Namespace,
			Timestamp:        time.UnixMilli(r.Timestamp).UTC().Format("2006-01-02T15:04:05.999999") + "Z",
			MetricDimensions: dimensionString(r.Dimensions),
		}, t)
	}

	prefix := "metric_name:" + r.Namespace + "." + r.MetricName + "."
	fields := map[string]any{
		"AccountID":            r.AccountID,
		"MetricName":           r.MetricName,
		"Namespace":            r.Namespace,
		"Unit":                 r.Unit,
		"Region":               r.Region,
		prefix + "Average":     r.average(),
		prefix + "Maximum":     r.Value.Max,
		prefix + "Minimum":     r.Value.Min,
		prefix + "SampleCount": r.Value.Count,
		prefix + "Sum":         r.Value.Sum,
	}
	for k, v := range r.Dimensions {
		fields[k] = v
	}
	return m.builder.Metric(t, fields)
}

// dimensionString 은 "k=[v],k2=[v2]" 형태. 키 이름 순으로 정렬한다.
func dimensionString(dims map[string]string) string {
	keys := make([]string, 0, len(dims))
	for k := range dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=[" + dims[k] + "]"
	}
	return strings.Join(parts, ",")
}
