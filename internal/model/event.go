package model

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
)

// ObjectReference
// ------------------------------------------------------------
// 큐 메시지 하나에서 추출한 S3 객체 좌표.
// 메시지당 한 번만 만들어지고 이후 변경되지 않는다.
type ObjectReference struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// String 은 로그용 s3://bucket/key 표기.
func (r ObjectReference) String() string {
	return "s3://" + r.Bucket + "/" + r.Key
}

// RawEvent
// ------------------------------------------------------------
// Splitter 가 만들어내는 이벤트 한 건.
// 세 가지 형태 중 하나다:
//   - Line   : 텍스트 한 줄 (log/csv/ndjson)
//   - Record : JSON 값 하나 (records 키 아래 배열의 원소)
//   - Row    : 헤더 순서를 유지하는 컬럼→값 매핑 (CSV → JSON 변환 결과)
//
// String() 은 timestamp 추출 시 사용하는 문자열 표현이다.
type RawEvent interface {
	String() string
}

// Line 은 텍스트 한 줄 이벤트. JSON 으로는 문자열로 직렬화된다.
type Line string

func (l Line) String() string { return string(l) }

// Record 는 원본 바이트를 그대로 유지하는 JSON 값.
// map 으로 decode 하지 않으므로 원본 필드 순서가 보존된다.
type Record []byte

func (r Record) String() string { return string(r) }

// MarshalJSON 은 원본 JSON 을 그대로 내보낸다.
func (r Record) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// Field 는 Row 의 컬럼 하나.
type Field struct {
	Name  string
	Value string
}

// Row
// ------------------------------------------------------------
// CSV 한 행을 헤더 순서대로 담은 매핑.
// Go map 은 순서를 보장하지 않으므로 slice 로 보관하고
// MarshalJSON 에서 헤더 순서 그대로 object 를 만든다.
type Row []Field

// Get 은 컬럼 값을 찾는다.
func (r Row) Get(name string) (string, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

func (r Row) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return fmt.Sprint([]Field(r))
	}
	return string(b)
}

// MarshalJSON 은 {"col":"val",...} 형태로 헤더 순서를 지켜 직렬화한다.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Envelope
// ------------------------------------------------------------
// downstream sink(Firehose → Splunk HEC)로 보내는 이벤트 단위.
// 필드 순서는 sink 가 기대하는 그대로 time, host, source, sourcetype,
// index, event, fields 이다.
//
// metric 형태는 Event 에 "metric" 고정값을 넣고 Fields 를 채운다.
type Envelope struct {
	Time       float64        `json:"time"`       // epoch seconds (소수점 허용)
	Host       string         `json:"host"`       // 설정값
	Source     string         `json:"source"`     // 설정값
	SourceType string         `json:"sourcetype"` // 설정값
	Index      string         `json:"index"`      // 설정값
	Event      any            `json:"event"`      // Line / Record / Row / map
	Fields     map[string]any `json:"fields,omitempty"`
}
