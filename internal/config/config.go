// internal/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// TimeFormat 은 timestamp 추출 전략 이름이다.
type TimeFormat string

const (
	TimeNone               TimeFormat = "none"
	TimePrefixISO8601      TimeFormat = "prefix-ISO8601"
	TimePrefixEpoch        TimeFormat = "prefix-epoch"
	TimeDelineatedEpoch    TimeFormat = "delineated-epoch"
	TimeDelineatedISO8601  TimeFormat = "delineated-ISO8601"
	TimeDelineatedStrftime TimeFormat = "delineated-strftime"
)

// JSON framing 모드.
const (
	JSONEventsInRecords = "eventsInRecords"
	JSONNDJSON          = "ndjson"
)

// Config
//
// 프로세스 시작 시 Load() 로 한 번 만들어지고 이후 변경되지 않는
// read-only 설정값 모음. 각 컴포넌트 생성자에 값으로 전달된다.
type Config struct {

	// ---------------------------
	// AWS
	// ---------------------------

	AWSRegion      string // 비어 있으면 SDK 기본 resolution 사용
	DeliveryStream string // Firehose delivery stream 이름

	// ---------------------------
	// envelope 정적 메타데이터
	// ---------------------------

	Index      string
	Source     string
	Host       string
	SourceType string

	// ---------------------------
	// timestamp 추출
	// ---------------------------

	TimeFormat     TimeFormat
	TimePrefix     string // prefix-* 전략에서 찾을 문자열
	EventDelimiter string // 심볼 이름이 해석된 실제 구분 문자
	TimeField      int    // delineated-* 전략의 필드 index (0-based)
	StrftimeFormat string // delineated-strftime 패턴

	// ---------------------------
	// 이벤트 분리 / 변환
	// ---------------------------

	JSONFormat        string   // eventsInRecords | ndjson
	JSONRecordsKey    string   // eventsInRecords 모드에서 배열이 들어있는 키
	IgnoreFirstLine   bool     // 라인 포맷의 첫 줄(헤더) 제거
	CSVToJSON         bool     // CSV → key/value 변환
	RemoveEmptyFields bool     // 변환 후 빈 값 필드 제거
	CleanCSVHeaders   bool     // 헤더 컬럼명의 path prefix 제거
	LineSourceTypes   []string // 확장자와 무관하게 라인 단위로 자르는 sourcetype

	// ---------------------------
	// 실행 환경
	// ---------------------------

	InstanceID string        // working file 이름에 들어가는 프로세스 식별자
	WorkDir    string        // 객체를 내려받는 로컬 디렉토리
	Workers    int           // 동시에 처리할 객체 수 (기본 1 = 순차 처리)
	S3Timeout  time.Duration // GetObject 1회 timeout

	FirehoseMaxBatchesPerSec float64 // PutRecordBatch 호출 제한 (0 = 무제한)

	// ---------------------------
	// poll 모드 (SQS long polling)
	// ---------------------------

	QueueURL       string
	SQSWaitTime    time.Duration
	SQSMaxMessages int
	HTTPAddr       string

	// ---------------------------
	// metric transform
	// ---------------------------

	EventType string // event | metric

	// ---------------------------
	// 로깅
	// ---------------------------

	ServiceName string
	LogLevel    string
	LogPretty   bool
	LogSampleN  uint32
}

// Load
//
// 환경 변수 기반으로 Config 값을 초기화한다.
// 형식이 잘못된 값이 하나라도 있으면 즉시 프로세스를 종료(fail-fast).
func Load() Config {
	cfg, err := FromLookup(os.LookupEnv)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	return cfg
}

// FromLookup 은 Load 와 같지만 lookup 함수를 받고 에러를 반환한다.
// 테스트에서 합성 환경을 넘길 때 사용한다.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	e := env{lookup: lookup}

	cfg := Config{
		AWSRegion:      e.str("AWS_REGION", ""),
		DeliveryStream: e.str("FIREHOSE_DELIVERY_STREAM", ""),

		Index:      e.str("SPLUNK_INDEX", "main"),
		Source:     e.str("SPLUNK_SOURCE", ""),
		Host:       e.str("SPLUNK_HOST", ""),
		SourceType: e.str("SPLUNK_SOURCETYPE", ""),

		TimeFormat:     TimeFormat(e.str("SPLUNK_TIME_FORMAT", string(TimeNone))),
		TimePrefix:     e.str("SPLUNK_TIME_PREFIX", ""),
		EventDelimiter: ResolveDelimiter(e.str("SPLUNK_EVENT_DELIMITER", "space")),
		TimeField:      e.int("SPLUNK_TIME_DELINEATED_FIELD", 0),
		StrftimeFormat: e.str("SPLUNK_STRFTIME_FORMAT", ""),

		JSONFormat:        e.str("SPLUNK_JSON_FORMAT", JSONEventsInRecords),
		JSONRecordsKey:    e.str("SPLUNK_JSON_RECORDS_KEY", "Records"),
		IgnoreFirstLine:   e.bool("SPLUNK_IGNORE_FIRST_LINE", false),
		CSVToJSON:         e.bool("SPLUNK_CSV_TO_JSON", false),
		RemoveEmptyFields: e.bool("SPLUNK_REMOVE_EMPTY_CSV_TO_JSON_FIELDS", false),
		CleanCSVHeaders:   e.bool("SPLUNK_CSV_CLEAN_HEADERS", false),
		LineSourceTypes: e.list("SPLUNK_LINE_SOURCETYPES",
			"aws:elb:accesslogs,aws:cloudfront:accesslogs,aws:s3:accesslogs"),

		InstanceID: e.str("INSTANCE_ID", fallbackInstanceID()),
		WorkDir:    e.str("WORK_DIR", os.TempDir()),
		Workers:    e.int("WORKERS", 1),
		S3Timeout:  e.dur("S3_TIMEOUT", 60*time.Second),

		FirehoseMaxBatchesPerSec: e.float("FIREHOSE_MAX_BATCHES_PER_SEC", 0),

		QueueURL:       e.str("SQS_QUEUE_URL", ""),
		SQSWaitTime:    e.dur("SQS_WAIT_TIME", 20*time.Second),
		SQSMaxMessages: e.int("SQS_MAX_MESSAGES", 10),
		HTTPAddr:       e.str("HTTP_ADDR", ":8080"),

		EventType: e.str("SPLUNK_EVENT_TYPE", "metric"),

		ServiceName: e.str("SERVICE_NAME", "firehose-forwarder"),
		LogLevel:    e.str("LOG_LEVEL", "info"),
		LogPretty:   e.bool("LOG_PRETTY", false),
		LogSampleN:  uint32(e.int("LOG_SAMPLE_N", 1)),
	}

	if e.err != nil {
		return Config{}, e.err
	}

	switch cfg.TimeFormat {
	case TimeNone, TimePrefixISO8601, TimePrefixEpoch,
		TimeDelineatedEpoch, TimeDelineatedISO8601, TimeDelineatedStrftime:
	default:
		return Config{}, fmt.Errorf("SPLUNK_TIME_FORMAT: unknown strategy %q", cfg.TimeFormat)
	}
	if cfg.TimeFormat == TimeDelineatedStrftime && cfg.StrftimeFormat == "" {
		return Config{}, fmt.Errorf("SPLUNK_STRFTIME_FORMAT is required for %s", cfg.TimeFormat)
	}
	if cfg.TimeField < 0 {
		return Config{}, fmt.Errorf("SPLUNK_TIME_DELINEATED_FIELD must be >= 0, got %d", cfg.TimeField)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.SQSMaxMessages < 1 || cfg.SQSMaxMessages > 10 {
		return Config{}, fmt.Errorf("SQS_MAX_MESSAGES must be within 1..10, got %d", cfg.SQSMaxMessages)
	}
	if cfg.LogSampleN < 1 {
		cfg.LogSampleN = 1
	}

	return cfg, nil
}

// Must
//
// 실행 모드마다 필수인 값(FIREHOSE_DELIVERY_STREAM, SQS_QUEUE_URL 등)을 확인한다.
// 비어 있으면 즉시 종료(fail-fast).
func Must(key, value string) {
	if value == "" {
		log.Fatalf("missing required env: %s", key)
	}
}

// ResolveDelimiter
//
// 심볼 이름(space/tab/comma/semicolon)을 실제 문자로 바꾼다.
// 그 외의 값은 그대로 구분자로 사용한다.
func ResolveDelimiter(name string) string {
	switch name {
	case "space":
		return " "
	case "tab":
		return "\t"
	case "comma":
		return ","
	case "semicolon":
		return ";"
	default:
		return name
	}
}

// IsLineSourceType 은 sourcetype 이 raw access log 처럼
// 확장자와 무관하게 라인 단위로 처리해야 하는지 알려준다.
func (c Config) IsLineSourceType() bool {
	for _, st := range c.LineSourceTypes {
		if st == c.SourceType {
			return true
		}
	}
	return false
}

// env / str / int / bool / dur
//
// 공통 패턴.
// 값이 없으면 기본값, 형식이 잘못되면 첫 번째 에러를 기록한다.
// Load() 에서 그 에러로 즉시 종료(fail-fast)한다.
type env struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e *env) fail(key, v string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid env %s=%q: %w", key, v, err)
	}
}

func (e *env) int(key string, def int) int {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return f
}

func (e *env) bool(key string, def bool) bool {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return b
}

func (e *env) dur(key string, def time.Duration) time.Duration {
	v := e.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

func (e *env) list(key, def string) []string {
	var out []string
	for _, s := range strings.Split(e.str(key, def), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// fallbackInstanceID
//
// working file 이름에 쓰는 프로세스 식별자.
//   - 기본: hostname (Lambda 에서는 sandbox 마다 고유)
//   - fallback: 12자리 랜덤 hex
func fallbackInstanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
