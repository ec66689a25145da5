package worker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"firehose-forwarder/internal/model"
	"firehose-forwarder/internal/storage"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// recordingSink 는 Deliver 호출마다 받은 레코드를 복사해 둔다.
type recordingSink struct {
	mu      sync.Mutex
	batches [][][]byte
	failed  int   // 매 호출마다 거부로 보고할 레코드 수
	err     error // non-nil 이면 호출 자체를 실패시킨다
}

func (s *recordingSink) Deliver(_ context.Context, records [][]byte) (DeliveryReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([][]byte, len(records))
	copy(cp, records)
	s.batches = append(s.batches, cp)

	if s.err != nil {
		return DeliveryReport{}, fmt.Errorf("%w: %v", model.ErrDeliveryFailed, s.err)
	}
	if s.failed > 0 {
		return DeliveryReport{Failed: s.failed, FirstErrorCode: "ServiceUnavailableException", FirstErrorMessage: "slow down"}, nil
	}
	return DeliveryReport{}, nil
}

func (s *recordingSink) sizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.batches))
	for i, b := range s.batches {
		out[i] = len(b)
	}
	return out
}

func (s *recordingSink) all() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out [][]byte
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

// mapRetriever 는 key → 내용 으로 객체를 돌려준다.
type mapRetriever struct {
	mu      sync.Mutex
	objects map[string][]byte
	errs    map[string]error
	calls   int
}

func (r *mapRetriever) Fetch(_ context.Context, ref model.ObjectReference, dst string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++

	if err, ok := r.errs[ref.Key]; ok {
		return err
	}
	body, ok := r.objects[ref.Key]
	if !ok {
		return fmt.Errorf("%w: %w: %s", model.ErrRetrievalFailed, storage.ErrNotFound, ref)
	}
	return os.WriteFile(dst, body, 0o600)
}

func gz(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func notification(bucket, key string) string {
	return fmt.Sprintf(`{"Records":[{"eventSource":"aws:s3","s3":{"bucket":{"name":%q},"object":{"key":%q,"size":1}}}]}`, bucket, key)
}
