package pool

import (
	"bytes"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// ---------------------------------------------------------------
// Pool 구성 목적
//
// 객체 하나에 이벤트가 수만 건씩 들어있는 경우가 흔하고,
// 이벤트마다 envelope JSON 버퍼를 새로 만들면 GC 부담이 커진다.
// 압축 해제용 gzip.Reader 도 내부 버퍼가 커서 재사용한다.
// ---------------------------------------------------------------

var (
	// BufferPool:
	//   - envelope 직렬화용 임시 버퍼
	//   - 초기 용량 4KB (대부분의 로그 한 줄은 여기에 수용됨)
	BufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 4*1024))
		},
	}

	// gzipReaderPool:
	//   - gzip.Reader 는 생성 시 header 를 읽어야 하므로 New 에서 만들 수 없다.
	//   - 비어 있으면 GetGzipReader 가 새로 만든다.
	gzipReaderPool sync.Pool
)

// 풀에 되돌려줄 최대 버퍼 용량.
// 이보다 큰 버퍼(초대형 이벤트)는 GC 에 맡긴다.
const MaxBufferCap = 1 * 1024 * 1024 // 1MB

// GetBuffer 는 비워진 버퍼를 꺼낸다.
func GetBuffer() *bytes.Buffer {
	buf := BufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer:
//   - 1MB 이하이면 풀에 재사용
//   - 그 이상은 반환하지 않음 → 메모리 안정화 목적
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= MaxBufferCap {
		buf.Reset()
		BufferPool.Put(buf)
	}
}

// GetGzipReader 는 r 을 읽는 gzip.Reader 를 풀에서 꺼내거나 새로 만든다.
// 사용 후 PutGzipReader 로 반환한다.
func GetGzipReader(r io.Reader) (*gzip.Reader, error) {
	if v := gzipReaderPool.Get(); v != nil {
		zr := v.(*gzip.Reader)
		if err := zr.Reset(r); err != nil {
			gzipReaderPool.Put(zr)
			return nil, err
		}
		return zr, nil
	}
	return gzip.NewReader(r)
}

// PutGzipReader 는 reader 를 닫고 풀에 반환한다.
func PutGzipReader(zr *gzip.Reader) {
	_ = zr.Close()
	gzipReaderPool.Put(zr)
}
