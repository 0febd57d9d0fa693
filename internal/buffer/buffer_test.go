package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuffer(t *testing.T) {
	t.Run("segments survive growth", func(t *testing.T) {
		buff := New(4, 64)
		require.True(t, buff.Append([]byte("Hello")))
		first := buff.Commit()
		require.True(t, buff.Append([]byte(", World!")))
		second := buff.Commit()

		require.Equal(t, "Hello", string(first))
		require.Equal(t, ", World!", string(second))
	})

	t.Run("limit", func(t *testing.T) {
		buff := New(4, 8)
		require.True(t, buff.Append([]byte("1234567")))
		require.True(t, buff.AppendByte('8'))
		require.False(t, buff.AppendByte('9'))
		require.False(t, buff.Append([]byte("9")))
		require.Equal(t, "12345678", string(buff.Commit()))
	})

	t.Run("trim and drop", func(t *testing.T) {
		buff := New(4, 64)
		require.True(t, buff.Append([]byte("key")))
		buff.Commit()
		require.True(t, buff.Append([]byte("value\r")))
		buff.TrimTail(1)
		require.Equal(t, "value", string(buff.Peek()))
		buff.TrimTail(100)
		require.Zero(t, buff.Len())

		require.True(t, buff.Append([]byte("garbage")))
		buff.Drop()
		require.Zero(t, buff.Len())
		require.True(t, buff.Append([]byte("ok")))
		require.Equal(t, "ok", string(buff.Commit()))
	})

	t.Run("reset", func(t *testing.T) {
		buff := New(4, 8)
		require.True(t, buff.Append([]byte("12345678")))
		buff.Commit()
		buff.Reset()
		require.True(t, buff.Append([]byte("abcdefgh")))
	})
}
