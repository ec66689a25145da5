// Package envelope wraps events with static metadata for the delivery sink.
package envelope

import (
	"bytes"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/model"
	"firehose-forwarder/internal/pool"

	json "github.com/goccy/go-json"
)

// MetricEvent 는 metric envelope 의 event 값.
const MetricEvent = "metric"

// Builder 는 설정의 host/source/sourcetype/index 를 envelope 에 채운다.
// 값 타입이라 WithSourceType 으로 복사본을 만들어 써도 원본에 영향이 없다.
type Builder struct {
	host       string
	source     string
	sourceType string
	index      string
}

func NewBuilder(cfg config.Config) Builder {
	return Builder{
		host:       cfg.Host,
		source:     cfg.Source,
		sourceType: cfg.SourceType,
		index:      cfg.Index,
	}
}

// WithSourceType 은 sourcetype 만 바꾼 Builder.
func (b Builder) WithSourceType(st string) Builder {
	b.sourceType = st
	return b
}

func (b Builder) envelope(event any, t float64) model.Envelope {
	return model.Envelope{
		Time:       t,
		Host:       b.host,
		Source:     b.source,
		SourceType: b.sourceType,
		Index:      b.index,
		Event:      event,
	}
}

// Event 는 이벤트 한 건의 envelope JSON. 끝에 줄바꿈을 붙이지 않는다.
func (b Builder) Event(ev any, t float64) ([]byte, error) {
	return Marshal(b.envelope(ev, t))
}

// Metric 은 "event":"metric" 과 fields 블록을 가진 envelope JSON.
func (b Builder) Metric(t float64, fields map[string]any) ([]byte, error) {
	env := b.envelope(MetricEvent, t)
	env.Fields = fields
	return Marshal(env)
}

// Marshal
//
// pool 버퍼에 직렬화한 뒤 결과만 새 slice 로 복사한다.
// 반환값은 batch 에 오래 머무르므로 pool 버퍼를 그대로 넘기면 안 된다.
func Marshal(env model.Envelope) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		return nil, err
	}

	out := bytes.TrimSuffix(buf.Bytes(), []byte{'\n'})
	return append([]byte(nil), out...), nil
}
