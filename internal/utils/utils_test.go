package utils

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	tmpl, err := ParseTemplate("key", "media/{{.ID}}{{.Ext}}")
	require.NoError(t, err)

	out, err := RenderTemplate(tmpl, map[string]any{"ID": "abc", "Ext": ".png"})
	require.NoError(t, err)
	assert.Equal(t, "media/abc.png", out)

	out, err = RenderTemplate(tmpl, map[string]any{"ID": "abc"})
	require.NoError(t, err)
	assert.Equal(t, "media/abc", out)

	out, err = RenderTemplate(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = ParseTemplate("broken", "{{.ID")
	assert.Error(t, err)
}

func TestTemplateFuncs(t *testing.T) {
	tmpl, err := ParseTemplate("funcs", `{{upper .a}} {{json .b}} {{join ", " .c}}`)
	require.NoError(t, err)

	out, err := RenderTemplate(tmpl, map[string]any{
		"a": "x",
		"b": map[string]any{"k": 1},
		"c": []any{"one", 2},
	})
	require.NoError(t, err)
	assert.Equal(t, `X {"k":1} one, 2`, out)
}

func TestNewBrowserRequest(t *testing.T) {
	req, err := NewBrowserRequest(context.Background(), "https://example.com/a", "", map[string]string{"Accept": "application/json"})
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, req.Header.Get("User-Agent"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))

	req, err = NewBrowserRequest(context.Background(), "https://example.com/a", "herald/1.0", nil)
	require.NoError(t, err)
	assert.Equal(t, "herald/1.0", req.Header.Get("User-Agent"))

	for _, bad := range []string{"", "/relative", "://bad"} {
		_, err := NewBrowserRequest(context.Background(), bad, "", nil)
		assert.Error(t, err, bad)
	}
}

func TestReadLimited(t *testing.T) {
	data, err := ReadLimited(strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = ReadLimited(strings.NewReader("hello!"), 5)
	assert.Error(t, err)

	data, err = ReadLimited(strings.NewReader("unbounded"), 0)
	require.NoError(t, err)
	assert.Equal(t, "unbounded", string(data))
}

func TestIsSuccess(t *testing.T) {
	assert.True(t, IsSuccess(200))
	assert.True(t, IsSuccess(204))
	assert.False(t, IsSuccess(199))
	assert.False(t, IsSuccess(301))
	assert.False(t, IsSuccess(503))
}

func TestFilter(t *testing.T) {
	even := Filter([]int{1, 2, 3, 4}, func(i int) bool { return i%2 == 0 })
	assert.Equal(t, []int{2, 4}, even)
	assert.Empty(t, Filter([]int{1}, func(int) bool { return false }))
	assert.NotNil(t, Filter[int](nil, func(int) bool { return true }))
}

func TestHashURI(t *testing.T) {
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", HashURI("hello"))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "a & b", StripHTML("<p>a &amp; b</p>", 0))
	assert.Equal(t, "one two", StripHTML("one\n\n  two", 10))
	assert.Equal(t, "héll…", StripHTML("héllo wörld", 5))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab…", Truncate("abcd", 3))
	assert.Equal(t, "abcd", Truncate("abcd", 0))
}
