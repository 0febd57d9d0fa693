package mime

import (
	"path/filepath"
	"strings"
)

type MIME = string

const (
	OctetStream    MIME = "application/octet-stream"
	Plain          MIME = "text/plain"
	HTML           MIME = "text/html"
	XML            MIME = "text/xml"
	CSS            MIME = "text/css"
	JS             MIME = "text/javascript"
	JSON           MIME = "application/json"
	PDF            MIME = "application/pdf"
	WASM           MIME = "application/wasm"
	ZIP            MIME = "application/zip"
	GZIP           MIME = "application/gzip"
	Multipart      MIME = "multipart/form-data"
	FormURLEncoded MIME = "application/x-www-form-urlencoded"
	AVIF           MIME = "image/avif"
	GIF            MIME = "image/gif"
	JPEG           MIME = "image/jpeg"
	PNG            MIME = "image/png"
	SVG            MIME = "image/svg+xml"
	ICO            MIME = "image/vnd.microsoft.icon"
	WEBP           MIME = "image/webp"
	MP4            MIME = "video/mp4"
	WEBM           MIME = "video/webm"
	MP3            MIME = "audio/mpeg"
	WOFF           MIME = "font/woff"
	WOFF2          MIME = "font/woff2"
)

// Extension maps lower-cased file extensions, including the leading dot, to their MIMEs.
var Extension = map[string]MIME{
	".avif":  AVIF,
	".css":   CSS,
	".gif":   GIF,
	".htm":   HTML,
	".html":  HTML,
	".jpeg":  JPEG,
	".jpg":   JPEG,
	".js":    JS,
	".mjs":   JS,
	".json":  JSON,
	".pdf":   PDF,
	".png":   PNG,
	".svg":   SVG,
	".wasm":  WASM,
	".webp":  WEBP,
	".xml":   XML,
	".txt":   Plain,
	".gz":    GZIP,
	".zip":   ZIP,
	".ico":   ICO,
	".mp4":   MP4,
	".webm":  WEBM,
	".mp3":   MP3,
	".woff":  WOFF,
	".woff2": WOFF2,
}

// DefaultCharset defines charsets appended to textual MIMEs.
var DefaultCharset = map[MIME]string{
	CSS:   "utf-8",
	HTML:  "utf-8",
	JS:    "utf-8",
	XML:   "utf-8",
	Plain: "utf-8",
	JSON:  "utf-8",
}

// ByFilename returns a Content-Type value suitable for the file, including the charset if
// one is defined. Unknown extensions yield OctetStream.
func ByFilename(name string) string {
	mime, found := Extension[strings.ToLower(filepath.Ext(name))]
	if !found {
		return OctetStream
	}

	if charset, ok := DefaultCharset[mime]; ok {
		return mime + "; charset=" + charset
	}

	return mime
}

// Complies returns whether two MIMEs are compatible. Empty MIME is
// considered compatible with any other MIME
func Complies(mime MIME, with string) bool {
	// get rid of parameters if any
	with, _, _ = strings.Cut(with, ";")
	with = strings.TrimSpace(with)
	return len(with) == 0 || strings.EqualFold(with, mime)
}
