package recorder

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"github.com/lingdar-web/lingdar/cache/objstore"
	"github.com/lingdar-web/lingdar/config"
	"github.com/lingdar-web/lingdar/http"
	"github.com/lingdar-web/lingdar/http/method"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID     string            `json:"id"`
	IP     string            `json:"ip"`
	Method string            `json:"method"`
	Path   string            `json:"path"`
	Query  map[string]string `json:"query"`
	Post   map[string]any    `json:"post"`
	Form   map[string]string `json:"form"`
	Files  map[string]string `json:"files"`
	Msg    string            `json:"msg"`
}

func TestRecorder(t *testing.T) {
	t.Run("record", func(t *testing.T) {
		var out bytes.Buffer
		r := New(&out)
		require.Equal(t, Priority, r.Priority())

		request := http.NewRequest(config.Default(), nil)
		request.Method = method.POST
		request.Path = "/upload"
		request.Address = "10.0.0.1"
		request.Query["lang"] = "en"
		request.FormParams["title"] = "cat"
		request.Files["picture"] = objstore.Object{Name: "0123456789abcdef.png"}

		response := http.NewResponse()
		passed := false
		r.Post(request, response, func() { passed = true })
		require.True(t, passed)

		var rec record
		require.NoError(t, json.Unmarshal(out.Bytes(), &rec))
		require.Equal(t, "request", rec.Msg)
		require.Equal(t, "10.0.0.1", rec.IP)
		require.Equal(t, "POST", rec.Method)
		require.Equal(t, "/upload", rec.Path)
		require.Equal(t, map[string]string{"lang": "en"}, rec.Query)
		require.Equal(t, map[string]string{"title": "cat"}, rec.Form)
		require.Equal(t, map[string]string{"picture": "0123456789abcdef.png"}, rec.Files)

		_, err := uuid.Parse(rec.ID)
		require.NoError(t, err)
		require.Equal(t, rec.ID, response.Headers().Value(RequestIDHeader))
	})

	t.Run("unique ids", func(t *testing.T) {
		var out bytes.Buffer
		r := New(&out)
		request := http.NewRequest(config.Default(), nil)
		first, second := http.NewResponse(), http.NewResponse()
		r.Get(request, first, func() {})
		r.Get(request, second, func() {})
		require.NotEqual(t, first.Headers().Value(RequestIDHeader), second.Headers().Value(RequestIDHeader))
	})

	t.Run("file", func(t *testing.T) {
		cfg := config.Default().Log
		cfg.File = filepath.Join(t.TempDir(), "requests.log")
		r, err := NewFile(cfg)
		require.NoError(t, err)

		request := http.NewRequest(config.Default(), nil)
		request.Method = method.GET
		request.Path = "/"
		r.Get(request, http.NewResponse(), func() {})
		require.NoError(t, r.Close())

		content, err := os.ReadFile(cfg.File)
		require.NoError(t, err)
		require.Contains(t, string(content), `"path":"/"`)
	})
}
