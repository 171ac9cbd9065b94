package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObjectFromProse(t *testing.T) {
	raw, ok := Extract(`blah {"a":1} blah`)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestExtractNoJSON(t *testing.T) {
	_, ok := Extract("no json here")
	assert.False(t, ok)
}

func TestExtractNestedArrayBoundary(t *testing.T) {
	raw, ok := Extract("[1,[2,3],4] trailing")
	require.True(t, ok)
	assert.JSONEq(t, `[1,[2,3],4]`, string(raw))
}

func TestExtractBracketsInsideStrings(t *testing.T) {
	raw, ok := Extract(`result: {"note":"a } inside","n":2} done`)
	require.True(t, ok)
	assert.JSONEq(t, `{"note":"a } inside","n":2}`, string(raw))
}

func TestExtractArrayBeforeObject(t *testing.T) {
	raw, ok := Extract(`[1,2] and later {"a":1}`)
	require.True(t, ok)
	assert.JSONEq(t, `[1,2]`, string(raw))
}

func TestExtractMarkdownFence(t *testing.T) {
	text := "Here is the grade:\n```json\n{\"scores\": [{\"name\": \"Clarity\", \"score\": 3}]}\n```\nLet me know."
	raw, ok := Extract(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"scores": [{"name": "Clarity", "score": 3}]}`, string(raw))
}

func TestExtractRepairsTruncatedJSON(t *testing.T) {
	// Model output cut off mid-object; the repair pass closes it.
	raw, ok := Extract(`{"scores": [{"name": "Clarity", "score": 3`)
	require.True(t, ok)

	var v struct {
		Scores []struct {
			Name  string `json:"name"`
			Score int    `json:"score"`
		} `json:"scores"`
	}
	require.True(t, ExtractInto(string(raw), &v))
	require.Len(t, v.Scores, 1)
	assert.Equal(t, "Clarity", v.Scores[0].Name)
}

func TestExtractEmptyInput(t *testing.T) {
	_, ok := Extract("")
	assert.False(t, ok)
}

func TestExtractIntoTargetShape(t *testing.T) {
	var v map[string]int
	require.True(t, ExtractInto(`noise {"a": 1, "b": 2} noise`, &v))
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, v)
}

func TestExtractIntoFailure(t *testing.T) {
	var v map[string]int
	assert.False(t, ExtractInto("nothing structured", &v))
}
