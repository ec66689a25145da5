package worker

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkFilename(t *testing.T) {
	a := WorkFilename("i-1", "AWSLogs/123/app.log.gz")
	b := WorkFilename("i-1", "other/prefix/app.log.gz")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, "_app.log.gz"), a)
	assert.Contains(t, a, "_i-1_")
	assert.NotContains(t, a, "/")
}

func TestWorkPath(t *testing.T) {
	p := WorkPath("/tmp/work", "i-1", "")
	assert.Equal(t, "/tmp/work", filepath.Dir(p))
	assert.True(t, strings.HasSuffix(p, "_object"), p)
}
