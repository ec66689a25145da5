// Package timestamp derives an event time in epoch seconds.
package timestamp

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"firehose-forwarder/internal/model"

	"github.com/itchyny/timefmt-go"
)

// Strategy 는 이벤트 문자열에서 epoch 초를 꺼낸다.
// 실패하면 model.ErrTimestampExtraction 을 감싼 에러를 돌려준다.
type Strategy interface {
	Extract(event string) (float64, error)
}

// isoPattern 은 YYYY-MM-DDTHH:MM:SS[.fraction]Z.
const isoPattern = `\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?Z`

// prefix 와 timestamp 사이 허용되는 filler 문자 수.
const maxFiller = 5

func fail(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrTimestampExtraction, fmt.Sprintf(format, args...))
}

// ---------------------------------------------------------------
// prefix-*
// ---------------------------------------------------------------

// PrefixISO8601 은 prefix 뒤 최대 5 문자 안에 나오는 ISO-8601 값을 찾는다.
// 예: prefix `"eventTime"` → `"eventTime":"2024-01-02T03:04:05Z"`
type PrefixISO8601 struct {
	re *regexp.Regexp
}

func NewPrefixISO8601(prefix string) *PrefixISO8601 {
	return &PrefixISO8601{
		re: regexp.MustCompile(regexp.QuoteMeta(prefix) + fmt.Sprintf(`.{0,%d}?(%s)`, maxFiller, isoPattern)),
	}
}

func (s *PrefixISO8601) Extract(event string) (float64, error) {
	m := s.re.FindStringSubmatch(event)
	if m == nil {
		return 0, fail("no ISO-8601 value after prefix")
	}
	return parseISO(m[1])
}

// PrefixEpoch 는 prefix 뒤의 10~13 자리 정수를 찾는다.
// 13 자리는 밀리초로 본다.
type PrefixEpoch struct {
	re *regexp.Regexp
}

func NewPrefixEpoch(prefix string) *PrefixEpoch {
	return &PrefixEpoch{
		re: regexp.MustCompile(regexp.QuoteMeta(prefix) + fmt.Sprintf(`\D{0,%d}?(\d{10,13})(?:\D|$)`, maxFiller)),
	}
}

func (s *PrefixEpoch) Extract(event string) (float64, error) {
	m := s.re.FindStringSubmatch(event)
	if m == nil {
		return 0, fail("no epoch value after prefix")
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fail("epoch %q: %v", m[1], err)
	}
	if len(m[1]) == 13 {
		return float64(n) / 1000, nil
	}
	return float64(n), nil
}

// ---------------------------------------------------------------
// delineated-*
// ---------------------------------------------------------------

// Field 는 delimiter 로 나눈 이벤트의 index 번째 필드 위치.
type Field struct {
	Delimiter string
	Index     int
}

func (f Field) pick(event string) (string, error) {
	parts := strings.Split(event, f.Delimiter)
	if f.Index < 0 || f.Index >= len(parts) {
		return "", fail("field %d out of range (%d fields)", f.Index, len(parts))
	}
	return strings.TrimSpace(parts[f.Index]), nil
}

// DelineatedEpoch 는 필드 값을 epoch 초(소수 허용)로 읽는다.
type DelineatedEpoch struct{ Field }

func (s DelineatedEpoch) Extract(event string) (float64, error) {
	v, err := s.pick(event)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fail("epoch %q is not a number", v)
	}
	return f, nil
}

// DelineatedISO8601 은 필드 값을 ISO-8601 로 읽는다.
type DelineatedISO8601 struct{ Field }

func (s DelineatedISO8601) Extract(event string) (float64, error) {
	v, err := s.pick(event)
	if err != nil {
		return 0, err
	}
	return parseISO(v)
}

// DelineatedStrftime 은 필드 값을 strftime 패턴으로 읽는다.
// 패턴에 zone 이 없으면 UTC 로 해석한다.
type DelineatedStrftime struct {
	Field
	Format string
}

func (s DelineatedStrftime) Extract(event string) (float64, error) {
	v, err := s.pick(event)
	if err != nil {
		return 0, err
	}
	t, err := timefmt.Parse(v, s.Format)
	if err != nil {
		return 0, fail("strftime %q with %q: %v", v, s.Format, err)
	}
	return epoch(t), nil
}

// ---------------------------------------------------------------

// isoLayouts 는 위에서부터 차례로 시도한다.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func parseISO(v string) (float64, error) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return epoch(t), nil
		}
	}
	return 0, fail("%q is not ISO-8601", v)
}

func epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
