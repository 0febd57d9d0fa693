package config

import (
	"os"
	"path/filepath"
	"time"
)

type (
	HeadersNumber struct {
		Default, Maximal int
	}

	HeadersSpace struct {
		Default, Maximal int
	}

	URIRequestLineSize struct {
		Default, Maximal int
	}
)

type (
	URI struct {
		// RequestLineSize limits the method, the raw request target and the protocol altogether.
		// The request target is stored undecoded, decoding happens later, when the request is
		// already received.
		RequestLineSize URIRequestLineSize
		// QueryPrealloc is the initial capacity of the http.Request.Query map.
		QueryPrealloc int
	}

	Headers struct {
		// Number is responsible for headers storage size.
		// Default value is an initial size of allocated headers storage.
		// Maximal value is maximum number of headers allowed to be presented
		Number HeadersNumber
		// Space limits the amount of memory occupied by request headers.
		Space HeadersSpace
		// Security headers are included into every response, unless a router overrides them.
		Security map[string]string
	}

	Body struct {
		// MaxSize is the upper bound of Content-Length. Requests declaring more will be
		// dropped without any response before a single byte of the body is read. The same
		// limit applies to chunked bodies while accumulating them.
		MaxSize int
		// PersistUploads makes multipart file parts go into the persistent tier of the object
		// store instead of the temporary one.
		PersistUploads bool `test:"nullable"`
	}

	NET struct {
		// ReadBufferSize is a size of buffer in bytes which will be used to read from
		// socket
		ReadBufferSize int
		// ReadTimeout controls the maximal lifetime of IDLE connections. If no data was
		// received in this period of time, it'll be closed. It also bounds the time a client
		// is given to send the request head.
		ReadTimeout time.Duration
		// AcceptLoopInterruptPeriod controls how often will the Accept() call be interrupted
		// in order to check whether it's time to stop.
		AcceptLoopInterruptPeriod time.Duration
		// WriteBufferSize is the initial capacity of the buffer the response is rendered into.
		WriteBufferSize int
	}

	FileCache struct {
		// CheckInterval is a period between two sweeps. Zero disables the background sweeper.
		CheckInterval time.Duration
		// MaxMemoryMB is the budget for cached file contents, in megabytes.
		MaxMemoryMB float64
		// Lifetime is how long the cache survives without any hit. Every hit restores it,
		// every sweep decreases it by CheckInterval. Once it's exhausted, the whole cache is
		// cleared.
		Lifetime time.Duration
	}

	ObjectStore struct {
		TempDir       string
		PersistentDir string
		// IndexFile is where the persistent index is stored. Defaults to persistents.json
		// inside the PersistentDir.
		IndexFile string
		// SweepInterval is a period between two temp tier checks. Zero disables the background
		// sweeper.
		SweepInterval time.Duration
		// TempMaxSize is the budget of the temp tier on disk, in bytes.
		TempMaxSize int64
	}

	Static struct {
		// MaxAge is used for the Cache-Control header, in seconds.
		MaxAge int
		// LimitedSize is the threshold the Auto strategy chooses between MaxAge (bigger files)
		// and LastModified (smaller files) by.
		LimitedSize int64
	}

	Log struct {
		Level string
		// Format is either json or text.
		Format string
		// File is the path to log into. Empty means stdout.
		File       string `test:"nullable"`
		MaxSizeMB  int
		MaxBackups int
		Compress   bool
	}
)

// Config holds settings used across various parts of lingdar, mainly restrictions, limitations,
// caching budgets and pre-allocations.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	URI         URI
	Headers     Headers
	Body        Body
	NET         NET
	FileCache   FileCache
	ObjectStore ObjectStore
	Static      Static
	Log         Log
}

// Default returns default config.
func Default() *Config {
	cacheRoot := filepath.Join(os.TempDir(), "lingdar")

	return &Config{
		URI: URI{
			RequestLineSize: URIRequestLineSize{
				Default: 2 * 1024,
				Maximal: 16 * 1024,
			},
			QueryPrealloc: 5,
		},
		Headers: Headers{
			Number: HeadersNumber{
				Default: 10,
				Maximal: 50,
			},
			Space: HeadersSpace{
				Default: 1 * 1024,  // 1kb for headers must be fairly enough in most cases.
				Maximal: 16 * 1024, // However, there also might be extremely long cookies.
			},
			Security: map[string]string{
				"X-Frame-Options": "SAMEORIGIN",
				"Content-Security-Policy": "img-src *; script-src 'self'; " +
					"style-src 'self' 'unsafe-inline'; frame-ancestors 'self'",
			},
		},
		Body: Body{
			MaxSize: 20 * 1024 * 1024,
		},
		NET: NET{
			ReadBufferSize:            4 * 1024,
			ReadTimeout:               90 * time.Second,
			AcceptLoopInterruptPeriod: 5 * time.Second,
			WriteBufferSize:           2 * 1024,
		},
		FileCache: FileCache{
			CheckInterval: 10 * time.Second,
			MaxMemoryMB:   512,
			Lifetime:      60 * time.Second,
		},
		ObjectStore: ObjectStore{
			TempDir:       filepath.Join(cacheRoot, "temp"),
			PersistentDir: cacheRoot,
			IndexFile:     filepath.Join(cacheRoot, "persistents.json"),
			SweepInterval: 30 * time.Second,
			TempMaxSize:   256 * 1024 * 1024,
		},
		Static: Static{
			MaxAge:      86400,
			LimitedSize: 128 * 1024,
		},
		Log: Log{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 10,
			Compress:   true,
		},
	}
}
