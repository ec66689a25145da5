// Package normalize turns a downloaded object into line or record oriented text.
//
// Compressed containers are decompressed to a sibling file with the
// compression suffix stripped and the original is removed. Columnar input is
// rewritten as newline-delimited JSON. Every failure wraps
// model.ErrUncompressFailed.
package normalize

import (
	"fmt"
	"io"
	"os"
	"strings"

	"firehose-forwarder/internal/model"
	"firehose-forwarder/internal/pool"

	"github.com/klauspost/compress/zstd"
)

// maxNesting bounds container chains such as x.json.gz.
const maxNesting = 3

// Result is the normalized working file.
type Result struct {
	Path       string   // file holding the normalized text
	Extensions []string // extension chain, outermost first (e.g. ["gz", "log"])
	Logical    Logical
}

// Normalize decodes the file at p until a plain text file remains.
// On error the caller still owns whatever file is left at p or its siblings;
// the returned Result.Path names the last file written so it can be removed.
func Normalize(p string) (Result, error) {
	res := Result{Path: p}

	for i := 0; ; i++ {
		ext := Ext(res.Path)
		res.Extensions = append(res.Extensions, ext)

		f, ok := allowed[ext]
		if !ok {
			f = Plain
		}
		if f == Plain {
			res.Logical = logicalFor(ext)
			return res, nil
		}
		if i >= maxNesting {
			return res, fmt.Errorf("%w: too many nested containers in %s", model.ErrUncompressFailed, p)
		}

		next, logical, err := decoders[f](res.Path)
		if err != nil {
			return res, fmt.Errorf("%w: %s %s: %v", model.ErrUncompressFailed, f, res.Path, err)
		}
		// 변환에 성공한 원본은 바로 지워 /tmp 사용량을 줄인다.
		_ = os.Remove(res.Path)
		res.Path = next

		if logical != "" {
			res.Extensions = append(res.Extensions, Ext(next))
			res.Logical = logical
			return res, nil
		}
	}
}

// decoder 는 src 를 변환해 새 파일 경로를 돌려준다.
// logical 이 비어 있지 않으면 결과 형태가 확정된 것이다 (parquet → ndjson).
type decoder func(src string) (dst string, logical Logical, err error)

var decoders = map[Format]decoder{
	Gzip:    gunzip,
	Zstd:    unzstd,
	Parquet: parquetToNDJSON,
}

// stripExt 는 마지막 확장자를 떼어낸 경로.
func stripExt(p string) string {
	if i := strings.LastIndexByte(p, '.'); i > strings.LastIndexByte(p, '/') {
		return p[:i]
	}
	return p
}

func gunzip(src string) (string, Logical, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", "", err
	}
	defer in.Close()

	zr, err := pool.GetGzipReader(in)
	if err != nil {
		return "", "", err
	}
	defer pool.PutGzipReader(zr)

	dst := stripExt(src)
	return dst, "", copyTo(dst, zr)
}

func unzstd(src string) (string, Logical, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", "", err
	}
	defer in.Close()

	zr, err := zstd.NewReader(in, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return "", "", err
	}
	defer zr.Close()

	dst := stripExt(src)
	return dst, "", copyTo(dst, zr)
}

// copyTo 는 r 을 dst 에 쓴다. 실패하면 부분 파일을 지운다.
func copyTo(dst string, r io.Reader) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}
