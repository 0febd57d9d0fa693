package http

import (
	"maps"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/lingdar-web/lingdar/cache/objstore"
	"github.com/lingdar-web/lingdar/config"
	"github.com/lingdar-web/lingdar/http"
	"github.com/lingdar-web/lingdar/http/method"
	"github.com/lingdar-web/lingdar/http/status"
	"github.com/lingdar-web/lingdar/internal/metrics"
	"github.com/lingdar-web/lingdar/router"
	"github.com/lingdar-web/lingdar/transport/dummy"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func newServer(cfg *config.Config, routers ...router.Router) *Server {
	log, _ := test.NewNullLogger()
	return New(cfg, routers, nil, log, nil)
}

func run(s *Server, requests ...string) *dummy.Client {
	client := dummy.NewMockClient(dummy.Split(strings.Join(requests, ""), 7)...)
	s.Run(client)

	return client
}

func reply(body string) router.Handler {
	return func(_ *http.Request, response *http.Response, _ router.Next) {
		_ = response.EndWith(status.OK, body)
	}
}

func TestPipeline(t *testing.T) {
	cfg := config.Default()

	t.Run("simple response", func(t *testing.T) {
		s := newServer(cfg, router.New("/*", 0, reply("Hello"), nil))
		client := run(s, "GET / HTTP/1.1\r\n\r\n")

		written := client.Written()
		require.True(t, strings.HasPrefix(written, "HTTP/1.1 200 OK\r\n"), written)
		require.Contains(t, written, "X-Frame-Options: SAMEORIGIN\r\n")
		require.Contains(t, written, "Content-Security-Policy: img-src *; script-src 'self'; "+
			"style-src 'self' 'unsafe-inline'; frame-ancestors 'self'\r\n")
		require.True(t, strings.HasSuffix(written, "\r\n\r\nHello"), written)
		require.True(t, client.Closed())
	})

	t.Run("keep-alive", func(t *testing.T) {
		s := newServer(cfg, router.New("/*", 0, reply("ok"), reply("posted")))
		client := run(s,
			"GET /a HTTP/1.1\r\n\r\n",
			"POST /b HTTP/1.1\r\nContent-Length: 4\r\n\r\nbody",
			"GET /c HTTP/1.1\r\nConnection: close\r\n\r\n",
			"GET /never HTTP/1.1\r\n\r\n",
		)

		written := client.Written()
		require.Equal(t, 3, strings.Count(written, "HTTP/1.1 200 OK\r\n"))
		require.Contains(t, written, "posted")
		require.True(t, strings.HasSuffix(written, "Connection: close\r\n\r\nok"))
	})

	t.Run("not found", func(t *testing.T) {
		s := newServer(cfg, router.New("/api/*", 0, reply("api"), nil))
		written := run(s, "GET /other HTTP/1.1\r\n\r\n").Written()
		require.True(t, strings.HasPrefix(written, "HTTP/1.1 404 Not Found\r\n"), written)
		require.Contains(t, written, "X-Frame-Options: SAMEORIGIN\r\n")
		require.Contains(t, written, "Content-Length: 0\r\n")
	})

	t.Run("no routers", func(t *testing.T) {
		written := run(newServer(cfg), "GET / HTTP/1.1\r\n\r\n").Written()
		require.True(t, strings.HasPrefix(written, "HTTP/1.1 404 Not Found\r\n"), written)
	})

	t.Run("unsupported method", func(t *testing.T) {
		s := newServer(cfg, router.New("/*", 0, reply("get"), reply("post")))
		for _, m := range []string{"PUT", "DELETE", "BREW"} {
			written := run(s, m+" / HTTP/1.1\r\n\r\n").Written()
			require.True(t, strings.HasPrefix(written, "HTTP/1.1 404 Not Found\r\n"), m)
		}
	})

	t.Run("HEAD is served by GET handlers", func(t *testing.T) {
		s := newServer(cfg, router.New("/*", 0, reply("Hello"), nil))
		written := run(s, "HEAD / HTTP/1.1\r\n\r\n").Written()
		require.True(t, strings.HasPrefix(written, "HTTP/1.1 200 OK\r\n"), written)
		require.Contains(t, written, "Content-Length: 5\r\n")
		require.True(t, strings.HasSuffix(written, "\r\n\r\n"))
	})

	t.Run("protocol errors close without response", func(t *testing.T) {
		cfg := config.Default()
		cfg.Body.MaxSize = 4
		s := newServer(cfg, router.New("/*", 0, reply("must not run"), reply("must not run")))

		for _, raw := range []string{
			"GET /%zz HTTP/1.1\r\n\r\n",
			"POST / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello",
			"GET / HTTP/2.0\r\n\r\n",
			"GET / HTTP/1.1\r\nContent-Length: x\r\n\r\n",
		} {
			client := run(s, raw)
			require.Empty(t, client.Written(), raw)
			require.True(t, client.Closed(), raw)
		}
	})

	t.Run("HTTP/1.0 closes by default", func(t *testing.T) {
		s := newServer(cfg, router.New("/*", 0, reply("old"), nil))
		written := run(s, "GET / HTTP/1.0\r\n\r\n", "GET / HTTP/1.0\r\n\r\n").Written()
		require.Equal(t, 1, strings.Count(written, "HTTP/1.0 200 OK\r\n"))
		require.Contains(t, written, "Connection: close\r\n")
	})
}

func TestDispatch(t *testing.T) {
	cfg := config.Default()
	newRequest := func(path string) *http.Request {
		request := http.NewRequest(cfg, nil)
		request.Method = method.GET
		request.Path, request.ResolvedPath = path, path

		return request
	}

	t.Run("priority order", func(t *testing.T) {
		var order []int
		mark := func(priority int) router.Router {
			return router.New("/*", priority, func(_ *http.Request, _ *http.Response, next router.Next) {
				order = append(order, priority)
				next()
			}, nil)
		}

		s := newServer(cfg, mark(2), mark(0), mark(-1))
		response := http.NewResponse()
		s.Dispatch(newRequest("/"), response)

		require.Equal(t, []int{-1, 0, 2}, order)
		require.Equal(t, status.NotFound, response.Status())
	})

	t.Run("chain stops without next", func(t *testing.T) {
		called := false
		s := newServer(cfg,
			router.New("/*", 0, func(_ *http.Request, response *http.Response, _ router.Next) {
				_, _ = response.Write([]byte("partial"))
			}, nil),
			router.New("/*", 1, func(_ *http.Request, _ *http.Response, next router.Next) {
				called = true
				next()
			}, nil),
		)

		response := http.NewResponse()
		s.Dispatch(newRequest("/"), response)
		require.False(t, called)
		require.True(t, response.Ended())
		require.Equal(t, status.OK, response.Status())
		require.Equal(t, "partial", string(response.Body()))
	})

	t.Run("side effects are visible down the chain", func(t *testing.T) {
		s := newServer(cfg,
			router.New("/*", 0, func(_ *http.Request, response *http.Response, next router.Next) {
				response.SetHeader("X-Seen", "yes")
				next()
			}, nil),
			router.New("/*", 1, func(_ *http.Request, response *http.Response, _ router.Next) {
				_ = response.EndWith(status.OK, response.Headers().Value("X-Seen"))
			}, nil),
		)

		response := http.NewResponse()
		s.Dispatch(newRequest("/"), response)
		require.Equal(t, "yes", string(response.Body()))
	})

	t.Run("resolved path is rewritten", func(t *testing.T) {
		var resolved []string

		s := newServer(cfg,
			router.New("/*", 0, func(request *http.Request, _ *http.Response, next router.Next) {
				resolved = append(resolved, request.ResolvedPath)
				next()
			}, nil),
			router.New("/static/*", 1, func(request *http.Request, response *http.Response, _ router.Next) {
				resolved = append(resolved, request.ResolvedPath)
				_ = response.End()
			}, nil),
		)

		request := newRequest("/static/css/main.css")
		s.Dispatch(request, http.NewResponse())
		require.Equal(t, []string{"/static/css/main.css", "/css/main.css"}, resolved)
		require.Equal(t, "/static/css/main.css", request.Path)
	})

	t.Run("many routers don't grow the stack", func(t *testing.T) {
		routers := make([]router.Router, 10000)
		for i := range routers {
			routers[i] = router.New("/*", i, func(_ *http.Request, _ *http.Response, next router.Next) {
				next()
			}, nil)
		}

		response := http.NewResponse()
		newServer(cfg, routers...).Dispatch(newRequest("/"), response)
		require.Equal(t, status.NotFound, response.Status())
	})

	t.Run("body of the exhausted chain is discarded", func(t *testing.T) {
		s := newServer(cfg, router.New("/*", 0, func(_ *http.Request, response *http.Response, next router.Next) {
			_, _ = response.Write([]byte("garbage"))
			response.SetHeader("X-Kept", "1")
			next()
		}, nil))

		response := http.NewResponse()
		s.Dispatch(newRequest("/"), response)
		require.Equal(t, status.NotFound, response.Status())
		require.Empty(t, response.Body())
		require.Equal(t, "1", response.Headers().Value("X-Kept"))
	})

	t.Run("panic", func(t *testing.T) {
		s := newServer(cfg, router.New("/*", 0, func(*http.Request, *http.Response, router.Next) {
			panic("boom")
		}, nil))

		response := http.NewResponse()
		s.Dispatch(newRequest("/"), response)
		require.Equal(t, status.InternalServerError, response.Status())
		require.Equal(t, "SAMEORIGIN", response.Headers().Value("X-Frame-Options"))
	})

	t.Run("routers are copied", func(t *testing.T) {
		routers := []router.Router{
			router.New("/*", 1, reply("one"), nil),
			router.New("/*", 0, reply("zero"), nil),
		}
		s := newServer(cfg, routers...)
		require.Equal(t, 1, routers[0].Priority())

		response := http.NewResponse()
		s.Dispatch(newRequest("/"), response)
		require.Equal(t, "zero", string(response.Body()))
	})
}

func TestMultipartUpload(t *testing.T) {
	root := t.TempDir()
	storeCfg := config.Default().ObjectStore
	storeCfg.TempDir = filepath.Join(root, "temp")
	storeCfg.PersistentDir = filepath.Join(root, "persistent")
	storeCfg.IndexFile = ""
	storeCfg.SweepInterval = 0

	log, _ := test.NewNullLogger()
	store, err := objstore.New(storeCfg, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Destroy()
	})

	var files map[string]objstore.Object
	var form map[string]string
	m := metrics.New()
	s := New(config.Default(), []router.Router{
		router.New("/upload", 0, nil, func(request *http.Request, response *http.Response, _ router.Next) {
			// the request is reset once the response is written
			files, form = maps.Clone(request.Files), maps.Clone(request.FormParams)
			_ = response.EndWith(status.OK, "uploaded")
		}),
	}, store, log, m)

	body := "--XYZ\r\n" +
		"Content-Disposition: form-data; name=\"title\"\r\n\r\n" +
		"hello\r\n" +
		"--XYZ\r\n" +
		"Content-Disposition: form-data; name=\"doc\"; filename=\"doc.txt\"\r\n\r\n" +
		"file content\r\n" +
		"--XYZ--\r\n"

	client := dummy.NewMockClient([]byte(
		"POST /upload HTTP/1.1\r\n" +
			"Content-Type: multipart/form-data; boundary=XYZ\r\n" +
			"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body,
	))
	s.Run(client)

	require.Contains(t, client.Written(), "uploaded")
	require.Equal(t, "hello", form["title"])

	content, err := store.Read(files["doc"])
	require.NoError(t, err)
	require.Equal(t, "file content", string(content))

	var exposition strings.Builder
	require.NoError(t, m.WriteText(&exposition))
	require.Contains(t, exposition.String(), `lingdar_requests_total{code="200",method="POST"} 1`)
}
