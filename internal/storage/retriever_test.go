package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGetter struct {
	body string
	err  error
	in   *s3.GetObjectInput
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

var ref = model.ObjectReference{Bucket: "b", Key: "dir/file.log"}

func TestS3Retriever_Fetch(t *testing.T) {
	fake := &fakeGetter{body: "line1\nline2\n"}
	r := NewS3RetrieverWithClient(config.Config{}, fake)
	dst := filepath.Join(t.TempDir(), "out.log")

	require.NoError(t, r.Fetch(context.Background(), ref, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", string(got))
	assert.Equal(t, "b", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "dir/file.log", aws.ToString(fake.in.Key))
}

func TestS3Retriever_Errors(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		r := NewS3RetrieverWithClient(config.Config{}, &fakeGetter{err: &types.NoSuchKey{}})
		err := r.Fetch(context.Background(), ref, filepath.Join(t.TempDir(), "x"))
		assert.ErrorIs(t, err, model.ErrRetrievalFailed)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Transient", func(t *testing.T) {
		r := NewS3RetrieverWithClient(config.Config{}, &fakeGetter{err: errors.New("connection reset")})
		err := r.Fetch(context.Background(), ref, filepath.Join(t.TempDir(), "x"))
		assert.ErrorIs(t, err, model.ErrRetrievalFailed)
		assert.ErrorIs(t, err, ErrTransient)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestLocalRetriever(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,b\n1,2\n"), 0o600))

	dst := filepath.Join(dir, "dst.csv")
	require.NoError(t, LocalRetriever{}.Fetch(context.Background(), model.ObjectReference{Key: src}, dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(got))

	err = LocalRetriever{}.Fetch(context.Background(), model.ObjectReference{Key: filepath.Join(dir, "missing")}, dst)
	assert.ErrorIs(t, err, ErrNotFound)
}
