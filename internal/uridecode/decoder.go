package uridecode

import (
	"bytes"
	"strings"

	"github.com/lingdar-web/lingdar/http/status"
)

// hexTable holds nibble value + 1 for every valid hex digit, so zero means invalid.
var hexTable = func() (table [256]byte) {
	for c := byte('0'); c <= '9'; c++ {
		table[c] = c - '0' + 1
	}
	for c := byte('a'); c <= 'f'; c++ {
		table[c] = c - 'a' + 11
		table[c-'a'+'A'] = c - 'a' + 11
	}

	return table
}()

func unhex(hi, lo byte) (byte, bool) {
	h, l := hexTable[hi], hexTable[lo]
	if h == 0 || l == 0 {
		return 0, false
	}

	return (h-1)<<4 | (l - 1), true
}

// Decode normalizes the URI by translating escaped characters into their true form. Any
// incomplete or non-hex sequence results in status.ErrURIDecoding. If src has nothing to
// decode, it's returned as is and buff stays untouched.
func Decode(src, buff []byte) ([]byte, error) {
	for i := bytes.IndexByte(src, '%'); i != -1; i = bytes.IndexByte(src, '%') {
		if i >= len(src)-2 {
			return nil, status.ErrURIDecoding
		}

		char, ok := unhex(src[i+1], src[i+2])
		if !ok {
			return nil, status.ErrURIDecoding
		}

		buff = append(buff, src[:i]...)
		buff = append(buff, char)
		src = src[i+3:]
	}

	if len(buff) == 0 {
		return src, nil
	}

	return append(buff, src...), nil
}

// Lenient decodes form-urlencoded values: plus is a space, broken escapes are kept raw
// instead of being rejected.
func Lenient(src string) string {
	if strings.IndexByte(src, '%') == -1 && strings.IndexByte(src, '+') == -1 {
		return src
	}

	var b strings.Builder
	b.Grow(len(src))

	for i := 0; i < len(src); i++ {
		switch c := src[i]; c {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 < len(src) {
				if char, ok := unhex(src[i+1], src[i+2]); ok {
					b.WriteByte(char)
					i += 2
					continue
				}
			}

			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}
