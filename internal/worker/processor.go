// internal/worker/processor.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/envelope"
	"firehose-forwarder/internal/locator"
	"firehose-forwarder/internal/logger"
	"firehose-forwarder/internal/metrics"
	"firehose-forwarder/internal/model"
	"firehose-forwarder/internal/normalize"
	"firehose-forwarder/internal/split"
	"firehose-forwarder/internal/storage"
	"firehose-forwarder/internal/timestamp"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Stage 는 객체 처리가 멈춘(또는 끝난) 단계.
type Stage string

const (
	StageLocate    Stage = "locate"
	StageValidate  Stage = "validate"
	StageRetrieve  Stage = "retrieve"
	StageNormalize Stage = "normalize"
	StageRead      Stage = "read"
	StageSplit     Stage = "split"
	StageConvert   Stage = "convert"
	StageEnvelope  Stage = "envelope"
	StageDeliver   Stage = "deliver"
	StageDone      Stage = "done"
)

// Outcome 은 큐 메시지 하나의 처리 결과.
type Outcome struct {
	Ref       model.ObjectReference
	Stage     Stage
	Events    int   // envelope 로 만들어 batch 에 넣은 이벤트 수
	Failed    int   // sink 가 거부한 레코드 수
	Err       error // nil 이면 processed
	Retryable bool  // 큐 재전달로 다시 시도할 가치가 있는 실패
}

func (o Outcome) Skipped() bool { return o.Err != nil }

// Retriever 는 객체를 dst 로 내려받는다.
type Retriever interface {
	Fetch(ctx context.Context, ref model.ObjectReference, dst string) error
}

// Processor
// ------------------------------------------------------------
// 큐 메시지 하나를 끝까지 처리하는 파이프라인.
//
//	locate → validate → retrieve → normalize → read → split
//	  → (clean header) → (csv → json) → envelope + batch → flush → cleanup
//
// 어느 단계든 실패하면 그 객체만 건너뛰고 다음 메시지로 넘어간다.
// timestamp 추출 실패는 이벤트 단위로 현재 시각으로 대체되므로 여기까지 오지 않는다.
//
// working file 은 성공/실패와 관계없이 반환 전에 지운다.
type Processor struct {
	cfg       config.Config
	retriever Retriever
	sink      Sink
	splitter  *split.Splitter
	extractor *timestamp.Extractor
	builder   envelope.Builder
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func NewProcessor(cfg config.Config, r Retriever, sink Sink, m *metrics.Metrics) (*Processor, error) {
	if m == nil {
		m = metrics.New()
	}
	x, err := timestamp.New(cfg, m)
	if err != nil {
		return nil, err
	}
	return &Processor{
		cfg:       cfg,
		retriever: r,
		sink:      sink,
		splitter:  split.NewSplitter(cfg),
		extractor: x,
		builder:   envelope.NewBuilder(cfg),
		metrics:   m,
		log:       logger.Component("processor"),
	}, nil
}

// Extractor 는 테스트에서 시계를 고정할 때 쓴다.
func (p *Processor) Extractor() *timestamp.Extractor { return p.extractor }

// Process 는 메시지 하나를 처리한다.
func (p *Processor) Process(ctx context.Context, body string) Outcome {
	return p.process(ctx, body, p.log)
}

// ProcessAll
// ------------------------------------------------------------
// 한 번의 호출(Lambda invocation / SQS receive)에 들어온 메시지들을 처리한다.
// 결과는 bodies 와 같은 순서.
//
// WORKERS=1 이면 순서대로, 그 이상이면 errgroup 으로 동시에 처리한다.
// 객체마다 Batcher 를 따로 두므로 worker 간 공유 상태는 metrics 뿐이다.
func (p *Processor) ProcessAll(ctx context.Context, bodies []string) []Outcome {
	runID := uuid.NewString()
	log := p.log.With().Str("run_id", runID).Logger()
	outcomes := make([]Outcome, len(bodies))

	if p.cfg.Workers <= 1 {
		for i, body := range bodies {
			outcomes[i] = p.process(ctx, body, log)
		}
		return outcomes
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, body := range bodies {
		g.Go(func() error {
			outcomes[i] = p.process(gctx, body, log)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (p *Processor) process(ctx context.Context, body string, log zerolog.Logger) Outcome {
	p.count(&p.metrics.ObjectsReceivedTotal)

	var out Outcome
	if ref, err := locator.Parse(body); err != nil {
		out = Outcome{Stage: StageLocate, Err: err}
	} else {
		out = p.object(ctx, ref, log)
	}

	p.finish(log, out)
	return out
}

// ProcessObject 는 큐 메시지 없이 객체 좌표로 바로 처리한다 (file 모드).
func (p *Processor) ProcessObject(ctx context.Context, ref model.ObjectReference) Outcome {
	p.count(&p.metrics.ObjectsReceivedTotal)
	out := p.object(ctx, ref, p.log)
	p.finish(p.log, out)
	return out
}

func (p *Processor) object(ctx context.Context, ref model.ObjectReference, log zerolog.Logger) Outcome {
	// --- validate ---
	if _, err := normalize.Validate(ref.Key); err != nil {
		return Outcome{Ref: ref, Stage: StageValidate, Err: err}
	}

	// working file 은 단계가 진행되며 이름이 바뀐다 (x.log.gz → x.log).
	// 마지막 경로를 지우면 된다. normalize 는 성공한 중간 파일을 스스로 지운다.
	current := WorkPath(p.cfg.WorkDir, p.cfg.InstanceID, ref.Key)
	defer func() {
		if err := os.Remove(current); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", current).Msg("working file cleanup failed")
		}
	}()

	// --- retrieve ---
	if err := p.retriever.Fetch(ctx, ref, current); err != nil {
		return Outcome{Ref: ref, Stage: StageRetrieve, Err: err, Retryable: errors.Is(err, storage.ErrTransient)}
	}

	// --- normalize ---
	res, err := normalize.Normalize(current)
	current = res.Path
	if err != nil {
		return Outcome{Ref: ref, Stage: StageNormalize, Err: err}
	}

	// --- read ---
	content, err := os.ReadFile(res.Path)
	if err != nil {
		return Outcome{Ref: ref, Stage: StageRead, Err: fmt.Errorf("%w: %s: %v", model.ErrReadFailed, ref, err)}
	}

	// --- split ---
	events, err := p.splitter.Split(string(content), res.Logical)
	if err != nil {
		return Outcome{Ref: ref, Stage: StageSplit, Err: err}
	}
	atomic.AddInt64(&p.metrics.EventsSplitTotal, int64(len(events)))

	// --- tabular ---
	if res.Logical == normalize.LogicalCSV {
		// 헤더가 이미 빠졌으면 첫 행은 데이터다.
		if p.cfg.CleanCSVHeaders && !p.splitter.DropsHeader(res.Logical) {
			events = split.CleanHeader(events)
		}
		if p.cfg.CSVToJSON {
			if events, err = split.ToRows(events, p.cfg.RemoveEmptyFields); err != nil {
				return Outcome{Ref: ref, Stage: StageConvert, Err: err}
			}
		}
	}

	// --- envelope + batch ---
	batcher := NewBatcher(p.sink, p.metrics)
	failed := 0
	for i, ev := range events {
		payload, err := p.builder.Event(ev, p.extractor.Time(ev))
		if err != nil {
			return Outcome{Ref: ref, Stage: StageEnvelope, Events: i, Failed: failed,
				Err: fmt.Errorf("%w: event %d: %v", model.ErrUnsupportedFormat, i, err)}
		}
		// 다 쓴 이벤트는 바로 놓아 준다.
		events[i] = nil

		r, flushed, err := batcher.Add(ctx, payload)
		if flushed {
			failed += r.Failed
		}
		if err != nil {
			return Outcome{Ref: ref, Stage: StageDeliver, Events: i + 1, Failed: failed, Err: err}
		}
	}

	// --- final flush ---
	r, err := batcher.Flush(ctx)
	failed += r.Failed
	if err != nil {
		return Outcome{Ref: ref, Stage: StageDeliver, Events: len(events), Failed: failed, Err: err}
	}

	return Outcome{Ref: ref, Stage: StageDone, Events: len(events), Failed: failed}
}

// finish 는 객체당 한 줄의 terminal status 로그와 카운터를 남긴다.
func (p *Processor) finish(log zerolog.Logger, o Outcome) {
	if !o.Skipped() {
		p.count(&p.metrics.ObjectsProcessedTotal)
		log.Info().
			Str("object", o.Ref.String()).
			Int("events", o.Events).
			Int("failed", o.Failed).
			Msg("processed")
		return
	}

	p.count(&p.metrics.ObjectsSkippedTotal)
	p.count(p.skipCounter(o.Err))

	ev := log.Warn()
	if o.Ref.Key != "" {
		ev = ev.Str("object", o.Ref.String())
	}
	ev.Str("stage", string(o.Stage)).
		Bool("retryable", o.Retryable).
		Err(o.Err).
		Msg("skipped")
}

func (p *Processor) skipCounter(err error) *int64 {
	switch {
	case errors.Is(err, model.ErrMalformedReference):
		return &p.metrics.SkippedMalformedTotal
	case errors.Is(err, model.ErrUnsupportedFileType):
		return &p.metrics.SkippedFileTypeTotal
	case errors.Is(err, model.ErrRetrievalFailed):
		return &p.metrics.SkippedRetrievalTotal
	case errors.Is(err, model.ErrUncompressFailed):
		return &p.metrics.SkippedUncompressTotal
	case errors.Is(err, model.ErrReadFailed):
		return &p.metrics.SkippedReadTotal
	case errors.Is(err, model.ErrUnsupportedFormat):
		return &p.metrics.SkippedFormatTotal
	case errors.Is(err, model.ErrDeliveryFailed):
		return &p.metrics.SkippedDeliveryErrTotal
	}
	return nil
}

func (p *Processor) count(c *int64) {
	if c != nil {
		atomic.AddInt64(c, 1)
	}
}
