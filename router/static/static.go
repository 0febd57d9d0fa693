// Package static serves files out of a directory, optionally through the file cache, with
// client-side caching negotiated by one of the strategies.
package static

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lingdar-web/lingdar/cache/filecache"
	"github.com/lingdar-web/lingdar/config"
	"github.com/lingdar-web/lingdar/http"
	"github.com/lingdar-web/lingdar/http/mime"
	"github.com/lingdar-web/lingdar/http/status"
	"github.com/lingdar-web/lingdar/router"
)

// Priority is the default priority of the static router.
const Priority = 1

const indexFile = "index.html"

// httpDate is the IMF-fixdate layout of If-Modified-Since.
const httpDate = "Mon, 02 Jan 2006 15:04:05 GMT"

type Strategy uint8

const (
	// Auto picks MaxAge for files bigger than the limited size and LastModified otherwise.
	// The choice is made per request.
	Auto Strategy = iota
	// None reads the file every time and sends no caching headers.
	None
	// LastModified sends the modification time in unix milliseconds and answers 304 if the
	// client already has the same version.
	LastModified
	// MaxAge lets the client cache the file for the configured amount of seconds.
	MaxAge
)

func (s Strategy) String() string {
	switch s {
	case Auto:
		return "auto"
	case None:
		return "none"
	case LastModified:
		return "last-modified"
	case MaxAge:
		return "max-age"
	default:
		return "unknown"
	}
}

// Router serves GET requests with files found under the root. The resolved path, left by
// the pattern, is treated as relative to the root. Anything that can't be served, including
// paths escaping the root, is passed further.
type Router struct {
	router.Base
	root        string
	filter      Filter
	files       *filecache.Cache
	strategy    Strategy
	maxAge      int
	limitedSize int64
	noMIME      bool
}

func New(pattern, root string) *Router {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}

	defaults := config.Default().Static

	return &Router{
		Base:        router.NewBase(pattern, Priority),
		root:        abs,
		strategy:    Auto,
		maxAge:      defaults.MaxAge,
		limitedSize: defaults.LimitedSize,
	}
}

// Configure applies the max age and the limited size from the config.
func (r *Router) Configure(cfg config.Static) *Router {
	return r.MaxAge(cfg.MaxAge).LimitedSize(cfg.LimitedSize)
}

func (r *Router) Filter(filter Filter) *Router {
	r.filter = filter
	return r
}

// FileCache makes the router read files through the cache. The root is added to the
// cache's allow-list.
func (r *Router) FileCache(cache *filecache.Cache) *Router {
	r.files = cache
	if cache != nil {
		cache.Allow(r.root)
	}

	return r
}

func (r *Router) Strategy(strategy Strategy) *Router {
	r.strategy = strategy
	return r
}

// MaxAge sets the Cache-Control max-age, in seconds.
func (r *Router) MaxAge(seconds int) *Router {
	r.maxAge = seconds
	return r
}

// LimitedSize sets the threshold the Auto strategy chooses by, in bytes.
func (r *Router) LimitedSize(size int64) *Router {
	r.limitedSize = size
	return r
}

// NoMIME disables the Content-Type detection by the file extension.
func (r *Router) NoMIME() *Router {
	r.noMIME = true
	return r
}

func (r *Router) Root() string {
	return r.root
}

func (r *Router) Get(request *http.Request, response *http.Response, next router.Next) {
	path, ok := r.resolve(request.ResolvedPath)
	if !ok {
		next()
		return
	}

	stat, err := os.Stat(path)
	if err != nil || stat.IsDir() {
		next()
		return
	}

	strategy := r.strategy
	if strategy == Auto {
		strategy = LastModified
		if stat.Size() > r.limitedSize {
			strategy = MaxAge
		}
	}

	modTime := stat.ModTime()

	switch strategy {
	case LastModified:
		if notModified(request.Headers.Value("If-Modified-Since"), modTime) {
			_ = response.Code(status.NotModified).End()
			return
		}
	case None:
		// reading bypasses the cache, so fresh content is guaranteed
		modTime = time.Time{}
	}

	transform, encoded := Transform{}, false
	if r.filter != nil {
		transform, encoded = r.filter(path, request)
	}

	if err = r.serve(path, response, modTime, transform, encoded); err != nil {
		response.DiscardBody()
		next()
		return
	}

	if !r.noMIME {
		response.SetHeader("Content-Type", mime.ByFilename(path))
	}

	if encoded {
		response.SetHeader("Content-Encoding", transform.Encoding)
		response.Header("Vary", "Accept-Encoding")
	}

	switch strategy {
	case LastModified:
		response.SetHeader("Last-Modified", strconv.FormatInt(stat.ModTime().UnixMilli(), 10))
	case MaxAge:
		response.SetHeader("Cache-Control", "public, max-age="+strconv.Itoa(r.maxAge))
	}

	_ = response.End()
}

// resolve joins the relative path with the root. The second return value is false if the
// result is outside the root.
func (r *Router) resolve(relative string) (string, bool) {
	if len(relative) == 0 || strings.HasSuffix(relative, "/") {
		relative += indexFile
	}

	path := filepath.Join(r.root, filepath.FromSlash(relative))
	if path != r.root && !strings.HasPrefix(path, r.root+string(filepath.Separator)) {
		return "", false
	}

	return path, true
}

// serve writes the file into the response. Zero known version means the file must be read
// from the disk bypassing the cache.
func (r *Router) serve(
	path string, response *http.Response, known time.Time, transform Transform, encoded bool,
) error {
	var sink io.Writer = response
	var closer io.Closer
	if encoded {
		wrapped := transform.Wrap(response)
		sink, closer = wrapped, wrapped
	}

	var err error
	if r.files != nil && !known.IsZero() {
		_, err = r.files.RequestFile(path, sink, known)
	} else {
		err = copyFile(path, sink)
	}

	if closer != nil {
		if closeErr := closer.Close(); err == nil {
			err = closeErr
		}
	}

	return err
}

func copyFile(path string, sink io.Writer) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	_, err = sink.Write(content)
	return err
}

// notModified compares the If-Modified-Since value with the modification time. Unix
// milliseconds, as sent by the LastModified strategy, must match exactly. HTTP-dates are
// compared at second precision.
func notModified(since string, modTime time.Time) bool {
	if len(since) == 0 {
		return false
	}

	if millis, err := strconv.ParseInt(since, 10, 64); err == nil {
		return millis == modTime.UnixMilli()
	}

	date, err := time.Parse(httpDate, since)
	if err != nil {
		return false
	}

	return !modTime.Truncate(time.Second).After(date)
}
