package worker

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/firehose"
	"github.com/aws/aws-sdk-go-v2/service/firehose/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFirehose struct {
	in  *firehose.PutRecordBatchInput
	out *firehose.PutRecordBatchOutput
	err error
}

func (f *fakeFirehose) PutRecordBatch(_ context.Context, in *firehose.PutRecordBatchInput, _ ...func(*firehose.Options)) (*firehose.PutRecordBatchOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func TestFirehoseSink_Deliver(t *testing.T) {
	fh := &fakeFirehose{out: &firehose.PutRecordBatchOutput{FailedPutCount: aws.Int32(0)}}
	s := NewFirehoseSinkWithClient(config.Config{DeliveryStream: "splunk"}, fh)

	rep, err := s.Deliver(context.Background(), [][]byte{[]byte(`{"a":1}`), []byte(`{"a":2}`)})
	require.NoError(t, err)
	assert.Zero(t, rep.Failed)

	assert.Equal(t, "splunk", aws.ToString(fh.in.DeliveryStreamName))
	require.Len(t, fh.in.Records, 2)
	assert.Equal(t, `{"a":2}`, string(fh.in.Records[1].Data))
}

func TestFirehoseSink_PartialFailure(t *testing.T) {
	fh := &fakeFirehose{out: &firehose.PutRecordBatchOutput{
		FailedPutCount: aws.Int32(1),
		RequestResponses: []types.PutRecordBatchResponseEntry{
			{RecordId: aws.String("r1")},
			{ErrorCode: aws.String("ServiceUnavailableException"), ErrorMessage: aws.String("Slow down.")},
		},
	}}
	s := NewFirehoseSinkWithClient(config.Config{DeliveryStream: "splunk", FirehoseMaxBatchesPerSec: 100}, fh)

	rep, err := s.Deliver(context.Background(), [][]byte{[]byte("a"), []byte("b")})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, "ServiceUnavailableException", rep.FirstErrorCode)
	assert.Equal(t, "Slow down.", rep.FirstErrorMessage)
}

func TestFirehoseSink_CallError(t *testing.T) {
	fh := &fakeFirehose{err: errors.New("ResourceNotFoundException")}
	s := NewFirehoseSinkWithClient(config.Config{DeliveryStream: "missing"}, fh)

	_, err := s.Deliver(context.Background(), [][]byte{[]byte("a")})
	assert.ErrorIs(t, err, model.ErrDeliveryFailed)
}

func TestFirehoseSink_LimiterHonoursContext(t *testing.T) {
	fh := &fakeFirehose{out: &firehose.PutRecordBatchOutput{}}
	s := NewFirehoseSinkWithClient(config.Config{FirehoseMaxBatchesPerSec: 0.001}, fh)

	// first call consumes the single burst token
	_, err := s.Deliver(context.Background(), [][]byte{[]byte("a")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Deliver(ctx, [][]byte{[]byte("b")})
	assert.ErrorIs(t, err, model.ErrDeliveryFailed)
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)

	rep, err := s.Deliver(context.Background(), [][]byte{[]byte(`{"a":1}`), []byte(`{"a":2}`)})
	require.NoError(t, err)
	assert.Zero(t, rep.Failed)
	assert.Equal(t, "{\"a\":1}\n{\"a\":2}\n", buf.String())
}
