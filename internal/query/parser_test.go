package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func parse(raw string) map[string]string {
	params := make(map[string]string)
	Parse(raw, params)
	return params
}

func TestParse(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		require.Empty(t, parse(""))
		require.Empty(t, parse("&&&"))
	})

	t.Run("single pair", func(t *testing.T) {
		require.Equal(t, map[string]string{"hello": "world"}, parse("hello=world"))
	})

	t.Run("last value wins", func(t *testing.T) {
		require.Equal(t, map[string]string{"a": "3", "b": ""}, parse("a=1&a=2&b&a=3"))
	})

	t.Run("flag without value", func(t *testing.T) {
		require.Equal(t, map[string]string{"a": "1", "b": ""}, parse("a=1&b"))
	})

	t.Run("empty segments", func(t *testing.T) {
		require.Equal(t, map[string]string{"a": "1", "b": "2"}, parse("&a=1&&b=2&"))
	})

	t.Run("value with equal sign", func(t *testing.T) {
		require.Equal(t, map[string]string{"expr": "1+1=2"}, parse("expr=1%2B1=2"))
	})

	t.Run("decoding", func(t *testing.T) {
		got := parse("q=hello+world&path=%2Fvar%2Fwww&broken=%zz")
		require.Equal(t, map[string]string{
			"q":      "hello world",
			"path":   "/var/www",
			"broken": "%zz",
		}, got)
	})
}
