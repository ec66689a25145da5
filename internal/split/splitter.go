// Package split partitions normalized text into events and optionally
// converts tabular rows into ordered key/value records.
package split

import (
	"fmt"
	"strings"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/model"
	"firehose-forwarder/internal/normalize"

	json "github.com/goccy/go-json"
)

// Splitter 는 Logical 형태와 설정에 따라 이벤트를 나눈다.
type Splitter struct {
	cfg config.Config
}

func NewSplitter(cfg config.Config) *Splitter {
	return &Splitter{cfg: cfg}
}

// Split
//
//   - csv / log (또는 라인 sourcetype): 줄 단위, 마지막 빈 줄 제거, 설정 시 첫 줄 제거
//     (csv 를 key/value 로 변환할 때는 헤더가 필요하므로 첫 줄을 남긴다)
//   - json + eventsInRecords: 전체를 파싱해 records 키 아래 배열을 돌려준다
//   - json + ndjson, ndjson: 줄 단위, 마지막 빈 줄 제거 (헤더 제거 없음)
//
// 그 외에는 model.ErrUnsupportedFormat.
func (s *Splitter) Split(content string, logical normalize.Logical) ([]model.RawEvent, error) {
	if logical == normalize.LogicalCSV || logical == normalize.LogicalLog || s.cfg.IsLineSourceType() {
		return Lines(content, s.DropsHeader(logical)), nil
	}

	switch logical {
	case normalize.LogicalJSON:
		switch s.cfg.JSONFormat {
		case config.JSONEventsInRecords:
			return records(content, s.cfg.JSONRecordsKey)
		case config.JSONNDJSON:
			return Lines(content, false), nil
		default:
			return nil, fmt.Errorf("%w: json framing %q", model.ErrUnsupportedFormat, s.cfg.JSONFormat)
		}
	case normalize.LogicalNDJSON:
		return Lines(content, false), nil
	}
	return nil, fmt.Errorf("%w: %q", model.ErrUnsupportedFormat, string(logical))
}

// DropsHeader 는 라인 포맷에서 Split 이 첫 줄을 버리는지 알려준다.
// 버린 경우 CleanHeader 를 적용할 헤더가 남아 있지 않다.
func (s *Splitter) DropsHeader(logical normalize.Logical) bool {
	return s.cfg.IgnoreFirstLine && !(logical == normalize.LogicalCSV && s.cfg.CSVToJSON)
}

// Lines 는 content 를 줄 단위로 자른다.
// 마지막 줄바꿈이 만드는 빈 줄 하나만 버리고, CRLF 의 '\r' 은 떼어낸다.
func Lines(content string, dropFirst bool) []model.RawEvent {
	parts := strings.Split(content, "\n")
	if n := len(parts); n > 0 && parts[n-1] == "" {
		parts = parts[:n-1]
	}
	if dropFirst && len(parts) > 0 {
		parts = parts[1:]
	}

	out := make([]model.RawEvent, 0, len(parts))
	for _, p := range parts {
		out = append(out, model.Line(strings.TrimSuffix(p, "\r")))
	}
	return out
}

// records 는 {"<key>": [ ... ]} 문서에서 배열 원소를 하나씩 꺼낸다.
// 원소는 다시 직렬화하지 않고 원본 바이트 그대로 Record 로 만든다.
func records(content, key string) ([]model.RawEvent, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("%w: json document: %v", model.ErrUnsupportedFormat, err)
	}
	raw, ok := doc[key]
	if !ok {
		return nil, fmt.Errorf("%w: json document has no %q key", model.ErrUnsupportedFormat, key)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %q is not an array: %v", model.ErrUnsupportedFormat, key, err)
	}

	out := make([]model.RawEvent, 0, len(items))
	for _, it := range items {
		out = append(out, model.Record(it))
	}
	return out, nil
}
