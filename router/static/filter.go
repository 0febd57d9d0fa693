package static

import (
	"io"
	"iter"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/lingdar-web/lingdar/http"
)

// Transform re-encodes the file contents on their way into the response.
type Transform struct {
	// Encoding is the Content-Encoding value.
	Encoding string
	Wrap     func(io.Writer) io.WriteCloser
}

// Filter decides whether a transform must be applied to the file.
type Filter func(path string, request *http.Request) (Transform, bool)

// Gzip compresses files with given extensions (all of them, if none are passed) when the
// client accepts it. Invalid levels fall back to the default one.
func Gzip(level int, extensions ...string) Filter {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}

	transform := Transform{
		Encoding: "gzip",
		Wrap: func(w io.Writer) io.WriteCloser {
			writer, _ := gzip.NewWriterLevel(w, level)
			return writer
		},
	}

	return func(path string, request *http.Request) (Transform, bool) {
		if !acceptsGzip(request.Headers.Values("Accept-Encoding")) {
			return Transform{}, false
		}

		if len(extensions) == 0 {
			return transform, true
		}

		ext := filepath.Ext(path)
		for _, e := range extensions {
			if strings.EqualFold(e, ext) {
				return transform, true
			}
		}

		return Transform{}, false
	}
}

func acceptsGzip(values iter.Seq[string]) bool {
	for value := range values {
		for _, token := range strings.Split(value, ",") {
			coding, params, _ := strings.Cut(strings.TrimSpace(token), ";")
			if !strings.EqualFold(strings.TrimSpace(coding), "gzip") {
				continue
			}

			// q=0 explicitly refuses the coding
			key, q, found := strings.Cut(params, "=")
			if found && strings.TrimSpace(key) == "q" {
				weight, err := strconv.ParseFloat(strings.TrimSpace(q), 64)
				return err == nil && weight > 0
			}

			return true
		}
	}

	return false
}
