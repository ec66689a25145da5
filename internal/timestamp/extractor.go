package timestamp

import (
	"fmt"
	"sync/atomic"
	"time"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/logger"
	"firehose-forwarder/internal/metrics"
	"firehose-forwarder/internal/model"

	"github.com/rs/zerolog"
)

// Extractor
//
// 설정된 Strategy 로 이벤트 시각을 구한다.
// 실패하면 현재 시각으로 대체하고 warn 로그를 남길 뿐, 에러를 돌려주지 않는다.
// (timestamp 하나 때문에 이벤트가 버려지거나 객체 처리가 멈추면 안 된다.)
type Extractor struct {
	strategy Strategy // nil 이면 항상 현재 시각
	clock    func() time.Time
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// New 는 cfg.TimeFormat 에 맞는 Strategy 를 고른다.
func New(cfg config.Config, m *metrics.Metrics) (*Extractor, error) {
	s, err := StrategyFor(cfg)
	if err != nil {
		return nil, err
	}
	return &Extractor{
		strategy: s,
		clock:    time.Now,
		metrics:  m,
		log:      logger.Component("timestamp"),
	}, nil
}

// StrategyFor 는 none 이면 (nil, nil).
func StrategyFor(cfg config.Config) (Strategy, error) {
	field := Field{Delimiter: cfg.EventDelimiter, Index: cfg.TimeField}

	switch cfg.TimeFormat {
	case config.TimeNone, "":
		return nil, nil
	case config.TimePrefixISO8601:
		return NewPrefixISO8601(cfg.TimePrefix), nil
	case config.TimePrefixEpoch:
		return NewPrefixEpoch(cfg.TimePrefix), nil
	case config.TimeDelineatedEpoch:
		return DelineatedEpoch{field}, nil
	case config.TimeDelineatedISO8601:
		return DelineatedISO8601{field}, nil
	case config.TimeDelineatedStrftime:
		return DelineatedStrftime{Field: field, Format: cfg.StrftimeFormat}, nil
	}
	return nil, fmt.Errorf("unknown time format %q", cfg.TimeFormat)
}

// WithClock 는 테스트용으로 시계를 바꾼다.
func (x *Extractor) WithClock(clock func() time.Time) *Extractor {
	x.clock = clock
	return x
}

// Time 은 ev 의 epoch 초. 항상 값을 돌려준다.
func (x *Extractor) Time(ev model.RawEvent) float64 {
	if x.strategy == nil {
		return epoch(x.clock())
	}

	t, err := x.strategy.Extract(ev.String())
	if err == nil {
		return t
	}

	if x.metrics != nil {
		atomic.AddInt64(&x.metrics.TimestampFallbackTotal, 1)
	}
	x.log.Warn().Err(err).Msg("timestamp fallback to current time")
	return epoch(x.clock())
}
