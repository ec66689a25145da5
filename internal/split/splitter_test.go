package split

import (
	"testing"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/model"
	"firehose-forwarder/internal/normalize"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strs(events []model.RawEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.String()
	}
	return out
}

func TestSplit_Lines(t *testing.T) {
	s := NewSplitter(config.Config{})
	got, err := s.Split("a\nb\n", normalize.LogicalLog)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, strs(got))
}

func TestSplit_LinesIgnoreFirst(t *testing.T) {
	s := NewSplitter(config.Config{IgnoreFirstLine: true})
	got, err := s.Split("a\nb\n", normalize.LogicalCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, strs(got))
}

func TestSplit_OnlyTrailingBlankDropped(t *testing.T) {
	s := NewSplitter(config.Config{})
	got, err := s.Split("a\n\nb\r\n", normalize.LogicalLog)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "", "b"}, strs(got))
}

func TestSplit_EventsInRecords(t *testing.T) {
	s := NewSplitter(config.Config{JSONFormat: config.JSONEventsInRecords, JSONRecordsKey: "Records"})
	got, err := s.Split(`{"Records":[{"eventName":"A"},{"eventName":"B","n":2}]}`, normalize.LogicalJSON)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.IsType(t, model.Record(nil), got[0])
	assert.JSONEq(t, `{"eventName":"A"}`, got[0].String())
	assert.JSONEq(t, `{"eventName":"B","n":2}`, got[1].String())
}

func TestSplit_EventsInRecordsErrors(t *testing.T) {
	s := NewSplitter(config.Config{JSONFormat: config.JSONEventsInRecords, JSONRecordsKey: "Records"})

	for _, body := range []string{`not json`, `{"Other":[]}`, `{"Records":{"a":1}}`} {
		_, err := s.Split(body, normalize.LogicalJSON)
		assert.ErrorIs(t, err, model.ErrUnsupportedFormat, body)
	}
}

func TestSplit_JSONAsNDJSON(t *testing.T) {
	s := NewSplitter(config.Config{JSONFormat: config.JSONNDJSON, IgnoreFirstLine: true})
	got, err := s.Split("{\"a\":1}\n{\"a\":2}\n", normalize.LogicalJSON)
	require.NoError(t, err)
	// header skipping never applies to JSON lines
	assert.Equal(t, []string{`{"a":1}`, `{"a":2}`}, strs(got))
}

func TestSplit_NDJSON(t *testing.T) {
	s := NewSplitter(config.Config{JSONFormat: config.JSONEventsInRecords})
	got, err := s.Split("{\"a\":1}\n", normalize.LogicalNDJSON)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"a":1}`}, strs(got))
}

func TestSplit_LineSourceTypeOverride(t *testing.T) {
	cfg := config.Config{
		SourceType:      "aws:cloudtrail",
		LineSourceTypes: []string{"aws:cloudtrail"},
		JSONFormat:      config.JSONEventsInRecords,
		JSONRecordsKey:  "Records",
	}
	got, err := NewSplitter(cfg).Split("{\"Records\":[]}\nsecond\n", normalize.LogicalJSON)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSplit_Unsupported(t *testing.T) {
	_, err := NewSplitter(config.Config{}).Split("x", normalize.Logical("xml"))
	assert.ErrorIs(t, err, model.ErrUnsupportedFormat)
}

func TestSplit_CSVToJSONKeepsHeader(t *testing.T) {
	s := NewSplitter(config.Config{IgnoreFirstLine: true, CSVToJSON: true})
	got, err := s.Split("a,b\n1,2\n", normalize.LogicalCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"a,b", "1,2"}, strs(got))

	// other line formats still drop the first line
	got, err = s.Split("hdr\nx\n", normalize.LogicalLog)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, strs(got))
}

func TestSplitter_DropsHeader(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		logical normalize.Logical
		want    bool
	}{
		{"off", config.Config{}, normalize.LogicalCSV, false},
		{"csv", config.Config{IgnoreFirstLine: true}, normalize.LogicalCSV, true},
		{"csv converted", config.Config{IgnoreFirstLine: true, CSVToJSON: true}, normalize.LogicalCSV, false},
		{"log with conversion flag", config.Config{IgnoreFirstLine: true, CSVToJSON: true}, normalize.LogicalLog, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewSplitter(tt.cfg).DropsHeader(tt.logical))
		})
	}
}
