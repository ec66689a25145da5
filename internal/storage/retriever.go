// internal/storage/retriever.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"firehose-forwarder/internal/config"
	"firehose-forwarder/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfgLib "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Retriever 실패 종류.
// 둘 다 model.ErrRetrievalFailed 로도 매칭된다.
var (
	ErrNotFound  = errors.New("object not found")
	ErrTransient = errors.New("transient retrieval error")
)

// ObjectGetter 는 S3Retriever 가 사용하는 S3 API 부분집합.
// 테스트에서는 fake 를 넣는다.
type ObjectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Retriever 는 S3 객체를 로컬 working file 로 내려받는다.
//   - 각 GetObject 호출은 S3Timeout 으로 제한된다
//   - 재시도는 SDK 기본 정책에 맡기고 애플리케이션 레벨 재시도는 하지 않는다
//     (실패한 객체는 큐 재전달로 복구)
type S3Retriever struct {
	cfg    config.Config
	client ObjectGetter
}

// NewS3Retriever 는 AWS SDK Config 를 로드하고 S3 client 를 만든다.
func NewS3Retriever(ctx context.Context, cfg config.Config) (*S3Retriever, error) {
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewS3RetrieverWithClient(cfg, s3.NewFromConfig(awsCfg)), nil
}

// NewS3RetrieverWithClient 는 이미 만들어진 client 로 Retriever 를 구성한다.
func NewS3RetrieverWithClient(cfg config.Config, client ObjectGetter) *S3Retriever {
	return &S3Retriever{cfg: cfg, client: client}
}

// LoadAWSConfig 는 region 이 지정되어 있으면 적용해서 기본 설정을 로드한다.
// S3 / Firehose / SQS client 가 모두 이 설정을 공유한다.
func LoadAWSConfig(ctx context.Context, cfg config.Config) (aws.Config, error) {
	var opts []func(*awsCfgLib.LoadOptions) error
	if cfg.AWSRegion != "" {
		opts = append(opts, awsCfgLib.WithRegion(cfg.AWSRegion))
	}
	awsCfg, err := awsCfgLib.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	return awsCfg, nil
}

// Fetch
// -----
// ref 객체를 dst 경로에 저장한다.
// 중간에 실패하면 dst 에 남은 부분 파일을 지운다.
func (r *S3Retriever) Fetch(ctx context.Context, ref model.ObjectReference, dst string) error {
	if r.cfg.S3Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.S3Timeout)
		defer cancel()
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return classify(ref, err)
	}
	defer out.Body.Close()

	if err := writeFile(dst, out.Body); err != nil {
		return fmt.Errorf("%w: %w: %s: %v", model.ErrRetrievalFailed, ErrTransient, ref, err)
	}
	return nil
}

// classify 는 SDK 에러를 NotFound / Transient 로 나눈다.
func classify(ref model.ObjectReference, err error) error {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return fmt.Errorf("%w: %w: %s", model.ErrRetrievalFailed, ErrNotFound, ref)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket", "AccessDenied":
			return fmt.Errorf("%w: %w: %s: %s", model.ErrRetrievalFailed, ErrNotFound, ref, apiErr.ErrorCode())
		}
	}
	return fmt.Errorf("%w: %w: %s: %v", model.ErrRetrievalFailed, ErrTransient, ref, err)
}

// LocalRetriever 는 S3 대신 로컬 파일을 복사한다.
// ref.Bucket 은 무시하고 ref.Key 를 로컬 경로로 사용한다 (`file` 서브커맨드 용).
type LocalRetriever struct{}

func (LocalRetriever) Fetch(_ context.Context, ref model.ObjectReference, dst string) error {
	src, err := os.Open(ref.Key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %w: %s", model.ErrRetrievalFailed, ErrNotFound, ref.Key)
		}
		return fmt.Errorf("%w: %w: %v", model.ErrRetrievalFailed, ErrTransient, err)
	}
	defer src.Close()

	if err := writeFile(dst, src); err != nil {
		return fmt.Errorf("%w: %w: %v", model.ErrRetrievalFailed, ErrTransient, err)
	}
	return nil
}

func writeFile(dst string, body io.Reader) error {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}
