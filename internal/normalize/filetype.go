package normalize

import (
	"fmt"
	"path"
	"strings"

	"firehose-forwarder/internal/model"
)

// Format 은 working file 의 컨테이너 형태. 각 값이 자신의 decode 함수를 가진다.
type Format int

const (
	Plain   Format = iota // 그대로 읽는 텍스트
	Gzip                  // .gz / .gzip
	Zstd                  // .zst
	Parquet               // 컬럼형 바이너리 → NDJSON 변환
)

func (f Format) String() string {
	switch f {
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case Parquet:
		return "parquet"
	default:
		return "plain"
	}
}

// Logical 은 정규화 이후의 내용 형태. Splitter 는 원본 확장자가 아니라 이 값을 본다.
type Logical string

const (
	LogicalCSV    Logical = "csv"
	LogicalLog    Logical = "log"
	LogicalJSON   Logical = "json"
	LogicalNDJSON Logical = "ndjson"
)

// allowed 는 처리 가능한 마지막 확장자 목록.
var allowed = map[string]Format{
	"gz":      Gzip,
	"gzip":    Gzip,
	"zst":     Zstd,
	"parquet": Parquet,
	"json":    Plain,
	"ndjson":  Plain,
	"jsonl":   Plain,
	"csv":     Plain,
	"log":     Plain,
	"txt":     Plain,
}

// denied 는 allow-list 보다 먼저 검사하는 파일명 부분 문자열.
// CloudTrail digest, S3 inventory manifest 처럼 로그가 아닌 부속 파일들이다.
var denied = []string{
	"CloudTrail-Digest",
	"manifest.json",
	"manifest.checksum",
}

// deniedSuffixes 는 key 끝에서만 검사한다. (서명 파일)
var deniedSuffixes = []string{
	".sig",
}

// Validate 는 key 가 처리 대상인지 판단하고 컨테이너 형태를 돌려준다.
// deny-list 가 allow-list 보다 우선한다.
func Validate(key string) (Format, error) {
	for _, d := range denied {
		if strings.Contains(key, d) {
			return Plain, fmt.Errorf("%w: %s matches deny-list entry %q", model.ErrUnsupportedFileType, key, d)
		}
	}
	for _, d := range deniedSuffixes {
		if strings.HasSuffix(key, d) {
			return Plain, fmt.Errorf("%w: %s matches deny-list entry %q", model.ErrUnsupportedFileType, key, d)
		}
	}
	ext := Ext(key)
	f, ok := allowed[ext]
	if !ok {
		return Plain, fmt.Errorf("%w: extension %q of %s", model.ErrUnsupportedFileType, ext, key)
	}
	return f, nil
}

// Ext 는 마지막 확장자를 '.' 없이 소문자로 돌려준다.
func Ext(p string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

// logicalFor 는 평문 확장자에 대응하는 Logical 을 돌려준다.
// 확장자가 없으면(예: "access.gz" 를 푼 결과) 라인 텍스트로 본다.
func logicalFor(ext string) Logical {
	switch ext {
	case "csv":
		return LogicalCSV
	case "log", "txt", "":
		return LogicalLog
	case "json":
		return LogicalJSON
	case "ndjson", "jsonl":
		return LogicalNDJSON
	default:
		return Logical(ext)
	}
}
