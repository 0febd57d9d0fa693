package http

import (
	"context"
	"net"

	"github.com/indigo-web/utils/strcomp"
	"github.com/lingdar-web/lingdar/cache/objstore"
	"github.com/lingdar-web/lingdar/config"
	"github.com/lingdar-web/lingdar/http/method"
	"github.com/lingdar-web/lingdar/kv"
	"github.com/lingdar-web/lingdar/transport"
)

var zeroContext = context.Background()

type Headers = *kv.Storage

// Request represents HTTP request
type Request struct {
	// Method is an enum representing the request method.
	Method method.Method
	// RawPath is the request target exactly as it was received, including the query.
	RawPath string
	// Path is the decoded RawPath without the query.
	Path string
	// ResolvedPath is what is left of the Path after the last matched route pattern consumed
	// its prefix. Before routing, it equals Path.
	ResolvedPath string
	// Protocol is either HTTP/1.1 or HTTP/1.0.
	Protocol string
	// Query holds the decoded query parameters. If a key is repeated, the last value wins.
	Query map[string]string
	// PostParams are filled when the POST body is a JSON object.
	PostParams map[string]any
	// FormParams are text fields of a multipart form.
	FormParams map[string]string
	// Files are file fields of a multipart form, already put into the object store.
	Files map[string]objstore.Object
	// Headers holds non-normalized header pairs, even though lookup is case-insensitive.
	Headers Headers
	// ContentLength obtains the value from Content-Length header. It holds the value of 0
	// if isn't presented.
	ContentLength int
	// ContentType obtains Content-Type header value
	ContentType string
	// Chunked tells whether the body is transferred using chunked encoding.
	Chunked bool
	// Connection holds the Connection header value. It isn't normalized, so can be anything
	// and in any case.
	Connection string
	// Body is the full request body. It's valid only until the handler returns.
	Body []byte
	// Remote holds the remote address. Please note that this is generally not a good parameter to identify
	// a user, because there might be proxies in the middle.
	Remote net.Addr
	// Address is the remote IP without the port.
	Address string
	// Ctx is user-managed context which lives as long as the request does.
	Ctx      context.Context
	client   transport.Client
	hijacked bool
}

func NewRequest(cfg *config.Config, client transport.Client) *Request {
	request := &Request{
		Method:     method.Unknown,
		Query:      make(map[string]string, cfg.URI.QueryPrealloc),
		PostParams: make(map[string]any),
		FormParams: make(map[string]string),
		Files:      make(map[string]objstore.Object),
		Headers:    kv.NewPrealloc(cfg.Headers.Number.Default),
		Ctx:        zeroContext,
		client:     client,
	}

	if client != nil {
		request.Remote = client.Remote()
		request.Address = addressOf(request.Remote)
	}

	return request
}

func addressOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}

	return host
}

// Hijack the connection. The request body is already read by the time any handler runs.
// After handler exits, the connection will be closed, so the connection can be hijacked at
// most once
func (r *Request) Hijack() (transport.Client, error) {
	if r.hijacked {
		return nil, ErrHijacked
	}

	r.hijacked = true

	return r.client, nil
}

// Hijacked tells whether the connection was hijacked or not
func (r *Request) Hijacked() bool {
	return r.hijacked
}

// KeepAlive reports whether the connection may serve the next request after this one.
func (r *Request) KeepAlive() bool {
	switch r.Protocol {
	case "HTTP/1.0":
		return strcomp.EqualFold(r.Connection, "keep-alive")
	default:
		return !strcomp.EqualFold(r.Connection, "close")
	}
}

// Reset the request, so it can be re-used for the next one on the same connection.
func (r *Request) Reset() {
	r.Method = method.Unknown
	r.RawPath, r.Path, r.ResolvedPath, r.Protocol = "", "", "", ""
	clear(r.Query)
	clear(r.PostParams)
	clear(r.FormParams)
	clear(r.Files)
	r.Headers.Clear()
	r.ContentLength = 0
	r.ContentType = ""
	r.Chunked = false
	r.Connection = ""
	r.Body = nil
	r.Ctx = zeroContext
}
