package normalize

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"reflect"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/schema"
)

// parquetReadBatch 는 한 번에 메모리로 올리는 row 수.
const parquetReadBatch = 1000

// parquetToNDJSON 은 parquet 파일의 모든 row 를 한 줄에 하나씩 JSON 으로 쓴다.
// 스키마는 파일 footer 에서 읽으므로 미리 정의한 struct 가 필요 없다.
// reader 가 돌려주는 dynamic struct 의 필드 이름은 Go 식으로 바뀐 InName 이라
// 파일에 기록된 컬럼 이름(ExName)으로 되돌려서 쓴다.
func parquetToNDJSON(src string) (string, Logical, error) {
	fr, err := local.NewLocalFileReader(src)
	if err != nil {
		return "", "", err
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 1)
	if err != nil {
		return "", "", fmt.Errorf("open parquet: %w", err)
	}
	defer pr.ReadStop()

	dst := stripExt(src) + ".json"
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", "", err
	}

	if err := writeRows(pr, bufio.NewWriter(out)); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return "", "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return "", "", err
	}
	return dst, LogicalNDJSON, nil
}

func writeRows(pr *reader.ParquetReader, w *bufio.Writer) error {
	names := columnNames(pr.SchemaHandler)
	var buf bytes.Buffer

	total := int(pr.GetNumRows())
	for read := 0; read < total; {
		n := parquetReadBatch
		if total-read < n {
			n = total - read
		}
		rows, err := pr.ReadByNumber(n)
		if err != nil {
			return fmt.Errorf("read rows %d..%d: %w", read, read+n, err)
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			buf.Reset()
			if err := writeValue(&buf, reflect.ValueOf(row), names); err != nil {
				return fmt.Errorf("encode row: %w", err)
			}
			buf.WriteByte('\n')
			w.Write(buf.Bytes())
		}
		read += len(rows)
	}
	return w.Flush()
}

// columnNames 는 InName → ExName 표.
func columnNames(sh *schema.SchemaHandler) map[string]string {
	names := make(map[string]string, len(sh.Infos))
	for _, info := range sh.Infos {
		if info != nil {
			names[info.InName] = info.ExName
		}
	}
	return names
}

// writeValue 는 v 를 JSON 으로 쓴다. struct 필드는 선언 순서(= 컬럼 순서)를 지킨다.
func writeValue(buf *bytes.Buffer, v reflect.Value, names map[string]string) error {
	switch v.Kind() {
	case reflect.Invalid:
		buf.WriteString("null")
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			buf.WriteString("null")
			return nil
		}
		return writeValue(buf, v.Elem(), names)
	case reflect.Struct:
		t := v.Type()
		buf.WriteByte('{')
		for i := 0; i < v.NumField(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			name := t.Field(i).Name
			if ex, ok := names[name]; ok {
				name = ex
			}
			if err := writeKey(buf, name); err != nil {
				return err
			}
			if err := writeValue(buf, v.Field(i), names); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case reflect.Slice:
		if v.IsNil() {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('[')
		for i := 0; i < v.Len(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, v.Index(i), names); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case reflect.Map:
		if v.IsNil() {
			buf.WriteString("null")
			return nil
		}
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(buf, fmt.Sprint(k.Interface())); err != nil {
				return err
			}
			if err := writeValue(buf, v.MapIndex(k), names); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		b, err := json.Marshal(v.Interface())
		if err != nil {
			return err
		}
		buf.Write(b)
	}
	return nil
}

func writeKey(buf *bytes.Buffer, name string) error {
	b, err := json.Marshal(name)
	if err != nil {
		return err
	}
	buf.Write(b)
	buf.WriteByte(':')
	return nil
}
