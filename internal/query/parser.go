package query

import (
	"strings"

	"github.com/lingdar-web/lingdar/internal/uridecode"
)

// Parse splits the raw query by ampersands and fills the params. Empty segments are
// skipped, a segment without the equal sign is a key with an empty value. Both keys and
// values are decoded leniently. Repeating keys override previous values.
func Parse(raw string, params map[string]string) {
	for len(raw) > 0 {
		var segment string
		segment, raw, _ = strings.Cut(raw, "&")
		if len(segment) == 0 {
			continue
		}

		key, value, _ := strings.Cut(segment, "=")
		params[uridecode.Lenient(key)] = uridecode.Lenient(value)
	}
}
