package formdata

import (
	"bytes"
	"errors"
	"iter"
	"strings"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
)

var ErrMalformed = errors.New("malformed multipart body")

// Part is a single entry of the multipart form. For text fields Filename is empty. Data
// references the original body, no copying is done.
type Part struct {
	Name        string
	Filename    string
	ContentType string
	Data        []byte
}

// Boundary extracts the boundary parameter out of the Content-Type value. The second value
// is false if the content type isn't multipart/form-data or the boundary is missing.
func Boundary(contentType string) (string, bool) {
	mime, params, _ := strings.Cut(contentType, ";")
	if !strcomp.EqualFold(strings.TrimSpace(mime), "multipart/form-data") {
		return "", false
	}

	for key, value := range walkParams(params) {
		if strcomp.EqualFold(key, "boundary") && len(value) > 0 {
			return value, true
		}
	}

	return "", false
}

// ParseMultipart splits the body by the boundary. Everything before the first delimiter is
// a preamble and is ignored, as is everything after the closing one. Part bodies are never
// decoded, so binary content survives intact.
func ParseMultipart(data []byte, boundary string) ([]Part, error) {
	delimiter := []byte("--" + boundary)

	start := bytes.Index(data, delimiter)
	if start == -1 {
		return nil, ErrMalformed
	}

	data = data[start+len(delimiter):]
	var parts []Part

	for {
		if bytes.HasPrefix(data, []byte("--")) {
			return parts, nil
		}

		var ok bool
		if data, ok = consumeNewline(data); !ok {
			return nil, ErrMalformed
		}

		end := bytes.Index(data, delimiter)
		if end == -1 {
			return nil, ErrMalformed
		}

		part, err := parsePart(rstripCRLF(data[:end]))
		if err != nil {
			return nil, err
		}

		if len(part.Name) > 0 {
			parts = append(parts, part)
		}

		data = data[end+len(delimiter):]
	}
}

func parsePart(raw []byte) (Part, error) {
	head, body, found := bytes.Cut(raw, []byte("\r\n\r\n"))
	if !found {
		head, body, found = bytes.Cut(raw, []byte("\n\n"))
		if !found {
			return Part{}, ErrMalformed
		}
	}

	var part Part

	for _, line := range strings.Split(uf.B2S(head), "\n") {
		key, value, ok := strings.Cut(strings.TrimSuffix(line, "\r"), ":")
		if !ok {
			continue
		}

		switch value = strings.TrimSpace(value); {
		case strcomp.EqualFold(strings.TrimSpace(key), "Content-Disposition"):
			_, params, _ := strings.Cut(value, ";")
			for param, paramValue := range walkParams(params) {
				switch strings.ToLower(param) {
				case "name":
					part.Name = paramValue
				case "filename":
					part.Filename = paramValue
				}
			}
		case strcomp.EqualFold(strings.TrimSpace(key), "Content-Type"):
			part.ContentType = value
		}
	}

	part.Data = body
	return part, nil
}

// walkParams iterates over semicolon-separated key=value pairs, unquoting values.
func walkParams(params string) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for len(params) > 0 {
			var param string
			param, params, _ = strings.Cut(params, ";")
			key, value, _ := strings.Cut(strings.TrimSpace(param), "=")
			if len(key) == 0 {
				continue
			}

			if !yield(strings.TrimSpace(key), unquote(strings.TrimSpace(value))) {
				return
			}
		}
	}
}

func unquote(value string) string {
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}

	return value
}

func consumeNewline(data []byte) ([]byte, bool) {
	switch {
	case bytes.HasPrefix(data, []byte("\r\n")):
		return data[2:], true
	case bytes.HasPrefix(data, []byte("\n")):
		return data[1:], true
	default:
		return data, false
	}
}

func rstripCRLF(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]

		if len(data) > 0 && data[len(data)-1] == '\r' {
			data = data[:len(data)-1]
		}
	}

	return data
}
