package timestamp

import (
	"testing"
	"time"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/metrics"
	"firehose-forwarder/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		event    string
		want     float64
	}{
		{
			name:     "prefix iso",
			strategy: NewPrefixISO8601(`"eventTime"`),
			event:    `{"eventVersion":"1.08","eventTime":"2023-11-14T22:13:20Z","eventName":"GetObject"}`,
			want:     1700000000,
		},
		{
			name:     "prefix iso fraction",
			strategy: NewPrefixISO8601("time="),
			event:    "level=info time=2023-11-14T22:13:20.250Z msg=ok",
			want:     1700000000.25,
		},
		{
			name:     "prefix epoch seconds",
			strategy: NewPrefixEpoch(`"start":`),
			event:    `{"start":1700000000,"end":1700000060}`,
			want:     1700000000,
		},
		{
			name:     "prefix epoch millis",
			strategy: NewPrefixEpoch(`"timestamp": `),
			event:    `{"timestamp": 1700000000500}`,
			want:     1700000000.5,
		},
		{
			name:     "delineated epoch",
			strategy: DelineatedEpoch{Field{Delimiter: " ", Index: 2}},
			event:    "2 123456789012 1700000000.75 eni-abc",
			want:     1700000000.75,
		},
		{
			name:     "delineated iso",
			strategy: DelineatedISO8601{Field{Delimiter: " ", Index: 1}},
			event:    "https 2023-11-14T22:13:20.000000Z app/my-lb/50dc6c495c0c9188",
			want:     1700000000,
		},
		{
			name:     "delineated iso offset",
			strategy: DelineatedISO8601{Field{Delimiter: ",", Index: 0}},
			event:    "2023-11-15T07:13:20+09:00,x",
			want:     1700000000,
		},
		{
			name:     "delineated strftime",
			strategy: DelineatedStrftime{Field: Field{Delimiter: "\t", Index: 0}, Format: "%d/%b/%Y:%H:%M:%S"},
			event:    "14/Nov/2023:22:13:20\tGET /",
			want:     1700000000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.strategy.Extract(tt.event)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-3)
		})
	}
}

func TestStrategies_Failures(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
		event    string
	}{
		{"iso prefix missing", NewPrefixISO8601("eventTime"), `{"other":"2023-11-14T22:13:20Z"}`},
		{"iso too far from prefix", NewPrefixISO8601("t"), `t=......2023-11-14T22:13:20Z`},
		{"epoch too long", NewPrefixEpoch("ts="), "ts=17000000000000"},
		{"epoch too short", NewPrefixEpoch("ts="), "ts=170000"},
		{"field out of range", DelineatedEpoch{Field{Delimiter: " ", Index: 5}}, "a b"},
		{"not a number", DelineatedEpoch{Field{Delimiter: " ", Index: 0}}, "abc def"},
		{"bad iso", DelineatedISO8601{Field{Delimiter: " ", Index: 0}}, "2023-13-45T99:00:00Z"},
		{"bad strftime", DelineatedStrftime{Field: Field{Delimiter: " ", Index: 0}, Format: "%Y-%m-%d"}, "yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.strategy.Extract(tt.event)
			assert.ErrorIs(t, err, model.ErrTimestampExtraction)
		})
	}
}

func TestStrategyFor(t *testing.T) {
	s, err := StrategyFor(config.Config{TimeFormat: config.TimeNone})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = StrategyFor(config.Config{TimeFormat: config.TimeDelineatedEpoch, EventDelimiter: " ", TimeField: 1})
	require.NoError(t, err)
	assert.Equal(t, DelineatedEpoch{Field{Delimiter: " ", Index: 1}}, s)

	_, err = StrategyFor(config.Config{TimeFormat: "rfc822"})
	assert.Error(t, err)
}

func TestExtractor_FallbackToNow(t *testing.T) {
	m := metrics.New()
	x, err := New(config.Config{TimeFormat: config.TimeDelineatedEpoch, EventDelimiter: " ", TimeField: 0}, m)
	require.NoError(t, err)

	before := float64(time.Now().UnixNano()) / 1e9
	got := x.Time(model.Line("not-a-number 10.0.0.1 GET"))

	assert.InDelta(t, before, got, 5)
	assert.EqualValues(t, 1, m.TimestampFallbackTotal)
}

func TestExtractor_FixedClock(t *testing.T) {
	now := time.Unix(1700000000, 0)
	x, err := New(config.Config{TimeFormat: config.TimePrefixEpoch, TimePrefix: "ts="}, nil)
	require.NoError(t, err)
	x.WithClock(func() time.Time { return now })

	assert.Equal(t, 1700000000.0, x.Time(model.Line("nothing here")))
	assert.Equal(t, 1600000000.0, x.Time(model.Line("ts=1600000000 ok")))
}

func TestExtractor_RowIsStringifiedAsJSON(t *testing.T) {
	x, err := New(config.Config{TimeFormat: config.TimePrefixISO8601, TimePrefix: `"start"`}, nil)
	require.NoError(t, err)

	row := model.Row{{Name: "id", Value: "1"}, {Name: "start", Value: "2023-11-14T22:13:20Z"}}
	assert.Equal(t, 1700000000.0, x.Time(row))
}
