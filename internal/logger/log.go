// internal/logger/log.go
package logger

import (
	"io"
	"os"
	"strings"

	"firehose-forwarder/internal/config"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init
//
// 프로세스 시작 시 한 번 호출되는 전역 로거 초기화.
//
//  1. 포맷: LOG_PRETTY=true 면 ConsoleWriter, 아니면 JSON (CloudWatch Logs 검색용)
//  2. 공통 필드: service, instance
//  3. 샘플링: Debug/Info 만 1/N 기록, Warn/Error 는 항상 기록
//
// 객체별 terminal status 라인은 Info 레벨이므로
// 운영에서 LOG_SAMPLE_N 을 올리면 일부만 남는다는 점에 주의.
func Init(cfg config.Config) {
	Setup(cfg, os.Stdout)
}

// Setup 은 출력 대상을 지정할 수 있는 Init. 테스트에서 버퍼를 넘긴다.
func Setup(cfg config.Config, out io.Writer) {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel))); err == nil && l != zerolog.NoLevel {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	// epoch 초 단위 숫자보다 사람이 읽을 수 있는 RFC3339 를 쓴다.
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000Z07:00"

	w := out
	if cfg.LogPretty {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		}
	}

	base := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Logger()

	logger := base
	if cfg.LogSampleN > 1 {
		logger = base.Sample(&zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: cfg.LogSampleN},
			InfoSampler:  &zerolog.BasicSampler{N: cfg.LogSampleN},
		})
	}

	zlog.Logger = logger

	// 표준 log 패키지(SDK 내부 등) 출력도 zerolog 로 보낸다.
	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}

// Component 는 component 필드가 붙은 하위 로거를 만든다.
func Component(name string) zerolog.Logger {
	return zlog.Logger.With().Str("component", name).Logger()
}
