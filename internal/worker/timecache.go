// internal/worker/timecache.go
package worker

import (
	"sync"
	"sync/atomic"
	"time"
)

//
// timecache.go
// ------------------------------------------------------------
// working file 이름에 들어가는 UTC epoch seconds 를 1초 단위로 캐싱한다.
//
// 객체 하나당 한 번 호출되므로 비용 자체는 크지 않지만,
// 동시에 처리 중인 파일 이름이 같은 초 값을 공유하게 되어
// 디렉토리를 정렬하면 곧 처리 시작 순서가 된다.
//
// ticker goroutine 은 처음 Unix() 를 부를 때 시작한다.
// (transform-* 처럼 파일을 쓰지 않는 실행 모드에서는 띄우지 않는다)
// ------------------------------------------------------------

var (
	unixSec   atomic.Int64
	startOnce sync.Once
)

func startClock() {
	unixSec.Store(time.Now().Unix())

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for now := range ticker.C {
			unixSec.Store(now.Unix())
		}
	}()
}

// Unix returns current UTC epoch seconds (cached, 1-second precision).
func Unix() int64 {
	startOnce.Do(startClock)
	return unixSec.Load()
}
