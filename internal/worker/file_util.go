// internal/worker/file_util.go
package worker

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// file_util.go
// ------------------------------------------------------------
// 객체를 내려받을 로컬 working file 이름 규칙.
//
// 파일명 규칙:
//
//	<unix>_<instance>_<counter>_<basename>
//
// 예:
//
//	1764721594_i-0abc_000042_app.log.gz
//
// basename 을 유지하는 이유는 normalize 가 확장자 체인(.log.gz)으로
// 형식을 판단하기 때문이다. 앞쪽 세 토큰은 동시에 처리 중인 같은 이름의
// 객체(다른 bucket/prefix)가 서로 덮어쓰지 않게 한다.
var globalCounter uint64

// NextCounter
// ------------------------------------------------------------
// 원자적 증가 값으로 여러 goroutine에서 충돌 없이
// 순차 번호를 생성한다.
// 1,000,000에서 다시 0으로 돌아간다. timestamp·instance 조합과 함께 쓰므로
// 같은 초 안에 백만 개를 만들지 않는 한 겹치지 않는다.
func NextCounter() uint64 {
	return atomic.AddUint64(&globalCounter, 1) % 1_000_000
}

// WorkFilename 은 object key 로 working file 이름을 만든다.
func WorkFilename(instanceID, key string) string {
	base := path.Base(key)
	// path.Base 는 빈 key 에 "." 을 돌려준다.
	if base == "." || base == "/" {
		base = "object"
	}
	base = strings.ReplaceAll(base, string(filepath.Separator), "_")
	return fmt.Sprintf("%d_%s_%06d_%s", Unix(), instanceID, NextCounter(), base)
}

// WorkPath 는 dir 아래 working file 의 전체 경로.
func WorkPath(dir, instanceID, key string) string {
	return filepath.Join(dir, WorkFilename(instanceID, key))
}
