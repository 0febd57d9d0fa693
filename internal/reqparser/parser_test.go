package reqparser

import (
	"path/filepath"
	"testing"

	"github.com/lingdar-web/lingdar/cache/objstore"
	"github.com/lingdar-web/lingdar/config"
	"github.com/lingdar-web/lingdar/http"
	"github.com/lingdar-web/lingdar/http/method"
	"github.com/lingdar-web/lingdar/http/status"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func getStore(t *testing.T) *objstore.Store {
	root := t.TempDir()
	cfg := config.Default().ObjectStore
	cfg.TempDir = filepath.Join(root, "temp")
	cfg.PersistentDir = filepath.Join(root, "persistent")
	cfg.IndexFile = ""
	cfg.SweepInterval = 0

	log, _ := test.NewNullLogger()
	store, err := objstore.New(cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Destroy()
	})

	return store
}

func newRequest(cfg *config.Config, m method.Method, target, contentType string) *http.Request {
	request := http.NewRequest(cfg, nil)
	request.Method = m
	request.RawPath = target
	request.ContentType = contentType

	return request
}

func TestTarget(t *testing.T) {
	cfg := config.Default()
	log, _ := test.NewNullLogger()
	parser := New(cfg, nil, log)

	t.Run("path and query", func(t *testing.T) {
		request := newRequest(cfg, method.GET, "/hello%20world/?a=1&b=&c&&a=2&name=John+Doe&bad=%zz", "")
		require.NoError(t, parser.Parse(request, nil))
		require.Equal(t, "/hello world/", request.Path)
		require.Equal(t, request.Path, request.ResolvedPath)
		require.Equal(t, map[string]string{
			"a":    "2",
			"b":    "",
			"c":    "",
			"name": "John Doe",
			"bad":  "%zz",
		}, request.Query)
	})

	t.Run("no query", func(t *testing.T) {
		request := newRequest(cfg, method.GET, "/static/index.html", "")
		require.NoError(t, parser.Parse(request, nil))
		require.Equal(t, "/static/index.html", request.Path)
		require.Empty(t, request.Query)
	})

	t.Run("malformed path", func(t *testing.T) {
		for _, target := range []string{"/%", "/%2", "/%zz", "/a%2g?x=1"} {
			request := newRequest(cfg, method.GET, target, "")
			require.ErrorIs(t, parser.Parse(request, nil), status.ErrURIDecoding, target)
		}
	})
}

func TestBody(t *testing.T) {
	cfg := config.Default()
	log, _ := test.NewNullLogger()

	t.Run("JSON object", func(t *testing.T) {
		parser := New(cfg, nil, log)
		request := newRequest(cfg, method.POST, "/", "application/json")
		require.NoError(t, parser.Parse(request, []byte(`{"user": "admin", "age": 42, "tags": ["a"]}`)))
		require.Equal(t, "admin", request.PostParams["user"])
		require.Equal(t, float64(42), request.PostParams["age"])
		require.Equal(t, []any{"a"}, request.PostParams["tags"])
	})

	t.Run("not a JSON object", func(t *testing.T) {
		parser := New(cfg, nil, log)
		for _, body := range []string{"", "null", "[1, 2]", "42", "{broken", `"string"`} {
			request := newRequest(cfg, method.POST, "/", "")
			require.NoError(t, parser.Parse(request, []byte(body)), body)
			require.NotNil(t, request.PostParams)
			require.Empty(t, request.PostParams, body)
		}
	})

	t.Run("GET body is ignored", func(t *testing.T) {
		parser := New(cfg, nil, log)
		request := newRequest(cfg, method.GET, "/", "")
		require.NoError(t, parser.Parse(request, []byte(`{"a": 1}`)))
		require.Empty(t, request.PostParams)
	})

	t.Run("urlencoded", func(t *testing.T) {
		parser := New(cfg, nil, log)
		request := newRequest(cfg, method.POST, "/", "application/x-www-form-urlencoded")
		require.NoError(t, parser.Parse(request, []byte("login=admin&password=p%40ss")))
		require.Equal(t, map[string]string{"login": "admin", "password": "p@ss"}, request.FormParams)
		require.Empty(t, request.PostParams)
	})

	const boundary = "----lingdar"
	binary := []byte{0x00, 0xff, '\r', '\n', '-', '-', 0x89, 'P', 'N', 'G'}
	form := "preamble\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"title\"\r\n\r\n" +
		"My picture\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"picture\"; filename=\"cat.png\"\r\n" +
		"Content-Type: image/png\r\n\r\n" +
		string(binary) + "\r\n" +
		"--" + boundary + "--\r\n"

	t.Run("multipart", func(t *testing.T) {
		store := getStore(t)
		parser := New(cfg, store, log)
		request := newRequest(cfg, method.POST, "/upload", "multipart/form-data; boundary="+boundary)
		require.NoError(t, parser.Parse(request, []byte(form)))

		require.Equal(t, map[string]string{"title": "My picture"}, request.FormParams)
		require.Contains(t, request.Files, "picture")

		obj := request.Files["picture"]
		require.Equal(t, objstore.Temp, obj.Tier)
		require.Equal(t, ".png", filepath.Ext(obj.Name))

		content, err := store.Read(obj)
		require.NoError(t, err)
		require.Equal(t, binary, content)
	})

	t.Run("multipart into the persistent tier", func(t *testing.T) {
		cfg := config.Default()
		cfg.Body.PersistUploads = true
		parser := New(cfg, getStore(t), log)
		request := newRequest(cfg, method.POST, "/upload", "multipart/form-data; boundary="+boundary)
		require.NoError(t, parser.Parse(request, []byte(form)))
		require.Equal(t, objstore.Persistent, request.Files["picture"].Tier)
	})

	t.Run("multipart without a store", func(t *testing.T) {
		parser := New(cfg, nil, log)
		request := newRequest(cfg, method.POST, "/upload", "multipart/form-data; boundary="+boundary)
		require.NoError(t, parser.Parse(request, []byte(form)))
		require.Equal(t, "My picture", request.FormParams["title"])
		require.Empty(t, request.Files)
	})

	t.Run("malformed multipart", func(t *testing.T) {
		parser := New(cfg, nil, log)
		request := newRequest(cfg, method.POST, "/upload", "multipart/form-data; boundary="+boundary)
		require.NoError(t, parser.Parse(request, []byte("no delimiters at all")))
		require.Empty(t, request.FormParams)
		require.Empty(t, request.Files)
		require.Empty(t, request.PostParams)
	})
}
