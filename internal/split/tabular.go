package split

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"firehose-forwarder/internal/model"
)

// CleanHeader
//
// 첫 행의 컬럼명마다 첫 번째 path segment 를 떼어낸다.
// 예: "lineItem/UsageStartDate" → "UsageStartDate", "a/b/c" → "b/c".
// '/' 가 없는 컬럼은 그대로 둔다. 나머지 행은 건드리지 않는다.
func CleanHeader(events []model.RawEvent) []model.RawEvent {
	if len(events) == 0 {
		return events
	}

	cols := strings.Split(events[0].String(), ",")
	for i, c := range cols {
		if idx := strings.IndexByte(c, '/'); idx >= 0 {
			cols[i] = c[idx+1:]
		}
	}

	out := make([]model.RawEvent, len(events))
	copy(out, events)
	out[0] = model.Line(strings.Join(cols, ","))
	return out
}

// ToRows
//
// events[0] 을 헤더로 보고 나머지 행을 헤더 위치 기준 key/value 로 바꾼다.
//   - 짧은 행: 빠진 뒤쪽 컬럼은 "" 로 채운다
//   - 헤더보다 긴 행: 넘치는 값은 버린다
//   - 완전히 빈 행: 건너뛴다
//   - 중복 헤더: 첫 위치에 마지막 값
//
// removeEmpty 면 값 길이가 0 인 필드를 뺀다.
func ToRows(events []model.RawEvent, removeEmpty bool) ([]model.RawEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	header, err := parseCSVLine(events[0].String())
	if err != nil {
		return nil, fmt.Errorf("%w: csv header: %v", model.ErrUnsupportedFormat, err)
	}

	// 중복 컬럼명은 첫 위치 하나로 합친다.
	position := make(map[string]int, len(header))
	names := make([]string, 0, len(header))
	for _, h := range header {
		if _, dup := position[h]; !dup {
			position[h] = len(names)
			names = append(names, h)
		}
	}

	out := make([]model.RawEvent, 0, len(events)-1)
	for n, ev := range events[1:] {
		values, err := parseCSVLine(ev.String())
		if err != nil {
			return nil, fmt.Errorf("%w: csv row %d: %v", model.ErrUnsupportedFormat, n+1, err)
		}
		if values == nil {
			continue
		}

		row := make(model.Row, len(names))
		for i, name := range names {
			row[i].Name = name
		}
		for i, h := range header {
			if i < len(values) {
				row[position[h]].Value = values[i]
			}
		}

		if removeEmpty {
			row = dropEmpty(row)
		}
		out = append(out, row)
	}
	return out, nil
}

// parseCSVLine 은 한 줄을 CSV 규칙(따옴표 포함)으로 나눈다.
// 빈 줄이면 nil 을 돌려준다.
func parseCSVLine(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rec, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	return rec, err
}

func dropEmpty(row model.Row) model.Row {
	kept := row[:0]
	for _, f := range row {
		if len(f.Value) > 0 {
			kept = append(kept, f)
		}
	}
	return kept
}
