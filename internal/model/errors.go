package model

import "errors"

// 파이프라인 단계별 실패 분류.
//
// 각 단계는 이 sentinel 을 fmt.Errorf("%w: ...") 로 감싸서 반환하고,
// orchestrator 는 errors.Is 로 어느 단계에서 실패했는지 판단한다.
// TimestampExtraction 만 예외로, extractor 내부에서 현재 시각으로
// 대체되고 밖으로 나오지 않는다.
var (
	ErrMalformedReference  = errors.New("malformed object reference")
	ErrRetrievalFailed     = errors.New("retrieval failed")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrUncompressFailed    = errors.New("uncompress failed")
	ErrReadFailed          = errors.New("read failed")
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrTimestampExtraction = errors.New("timestamp extraction failed")
	ErrDeliveryFailed      = errors.New("delivery failed")
)
