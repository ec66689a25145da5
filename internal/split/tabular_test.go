package split

import (
	"testing"

	"firehose-forwarder/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(s ...string) []model.RawEvent {
	out := make([]model.RawEvent, len(s))
	for i, v := range s {
		out[i] = model.Line(v)
	}
	return out
}

func TestCleanHeader(t *testing.T) {
	got := CleanHeader(lines("identity/LineItemId,lineItem/UsageStartDate,plain,a/b/c", "1,2,3,4"))
	assert.Equal(t, []string{"LineItemId,UsageStartDate,plain,b/c", "1,2,3,4"}, strs(got))
}

func TestCleanHeader_Empty(t *testing.T) {
	assert.Empty(t, CleanHeader(nil))
}

func TestToRows(t *testing.T) {
	got, err := ToRows(lines("a,b", "1,"), false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"a":"1","b":""}`, got[0].String())
}

func TestToRows_RemoveEmpty(t *testing.T) {
	got, err := ToRows(lines("a,b", "1,"), true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `{"a":"1"}`, got[0].String())
}

func TestToRows_Shapes(t *testing.T) {
	got, err := ToRows(lines(
		"a,b,c",
		"1",              // short row
		"1,2,3,4",        // extra column dropped
		"",               // blank row skipped
		`"x,y",2,"q""t"`, // quoted fields
	), false)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, `{"a":"1","b":"","c":""}`, got[0].String())
	assert.Equal(t, `{"a":"1","b":"2","c":"3"}`, got[1].String())

	row := got[2].(model.Row)
	v, _ := row.Get("a")
	assert.Equal(t, "x,y", v)
	v, _ = row.Get("c")
	assert.Equal(t, `q"t`, v)
}

func TestToRows_DuplicateHeader(t *testing.T) {
	got, err := ToRows(lines("a,b,a", "1,2,3"), false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `{"a":"3","b":"2"}`, got[0].String())
}

func TestToRows_HeaderOnly(t *testing.T) {
	got, err := ToRows(lines("a,b"), false)
	require.NoError(t, err)
	assert.Empty(t, got)
}
