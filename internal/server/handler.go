package server

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"firehose-forwarder/internal/metrics"
	"firehose-forwarder/internal/pool"
	"firehose-forwarder/internal/worker"

	json "github.com/goccy/go-json"
)

// MaxNotifyBody 는 /notify 요청 body 상한.
// S3 notification 하나는 수 KB 이므로 넉넉하다.
const MaxNotifyBody = 256 * 1024

// Processor 는 /notify 가 넘기는 메시지 하나를 처리한다.
type Processor interface {
	Process(ctx context.Context, body string) worker.Outcome
}

type Handler struct {
	metrics   *metrics.Metrics
	processor Processor

	// ready 는 poll 루프가 돌고 있는 동안 1.
	ready atomic.Bool
}

func NewHandler(m *metrics.Metrics, p Processor) *Handler {
	h := &Handler{metrics: m, processor: p}
	h.ready.Store(true)
	return h
}

// SetReady 는 종료 시작 시 false 로 바꿔 health check 를 떨어뜨린다.
func (h *Handler) SetReady(v bool) { h.ready.Store(v) }

// Routes 는 poll 모드의 운영 엔드포인트.
//   - /metrics : 파이프라인 카운터
//   - /health  : 로드밸런서 / ECS health check
//   - /notify  : S3 notification 을 직접 POST (SNS HTTP 구독, 수동 재처리)
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", h.HandleMetrics)
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/notify", h.HandleNotify)
	return mux
}

// HandleNotify
//
// body 하나를 큐 메시지 하나로 보고 동기적으로 처리한다.
//   - 처리 완료: 200
//   - 일시적 실패(Retryable): 503 → 호출 측이 다시 보내면 된다
//   - 그 외 건너뜀: 422
//
// 응답 body 는 {"object","stage","events","failed","error"} JSON.
func (h *Handler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// --------------------------------------------------------------------
	// 요청 Body 최대 크기 강제 제한
	// --------------------------------------------------------------------
	r.Body = http.MaxBytesReader(w, r.Body, MaxNotifyBody)
	defer r.Body.Close()

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	if _, err := io.Copy(buf, r.Body); err != nil {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	out := h.processor.Process(r.Context(), buf.String())

	status := http.StatusOK
	switch {
	case out.Retryable:
		status = http.StatusServiceUnavailable
	case out.Skipped():
		status = http.StatusUnprocessableEntity
	}

	resp := notifyResponse{
		Stage:  string(out.Stage),
		Events: out.Events,
		Failed: out.Failed,
	}
	if out.Ref.Key != "" {
		resp.Object = out.Ref.String()
	}
	if out.Err != nil {
		resp.Error = out.Err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

type notifyResponse struct {
	Object string `json:"object,omitempty"`
	Stage  string `json:"stage"`
	Events int    `json:"events"`
	Failed int    `json:"failed"`
	Error  string `json:"error,omitempty"`
}

// HandleMetrics
//
// 파이프라인 카운터 값들을 key=value 줄 단위로 출력한다.
func (h *Handler) HandleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, h.metrics.String())
}

// HandleHealth 는 종료 중이면 503.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("shutting down"))
		return
	}
	_, _ = w.Write([]byte("ok"))
}
