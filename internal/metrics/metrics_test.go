package metrics

import (
	"bytes"
	"strings"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	m := New()
	atomic.AddInt64(&m.ObjectsReceivedTotal, 3)
	atomic.AddInt64(&m.RecordsFailedTotal, 1)

	out := m.String()
	assert.True(t, strings.HasPrefix(out, "objects_received_total=3\n"))
	assert.Contains(t, out, "records_failed_total=1\n")
	assert.Equal(t, 16, strings.Count(out, "\n"))
}

func TestMarshalZerologObject(t *testing.T) {
	m := New()
	atomic.AddInt64(&m.BatchesSentTotal, 2)

	var buf bytes.Buffer
	l := zerolog.New(&buf)
	l.Info().Object("metrics", m).Msg("done")

	var line struct {
		Metrics map[string]int64 `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.EqualValues(t, 2, line.Metrics["batches_sent_total"])
	assert.Len(t, line.Metrics, 16)
}
