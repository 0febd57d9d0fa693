package http

import (
	"errors"

	"github.com/indigo-web/utils/uf"
	json "github.com/json-iterator/go"
	"github.com/lingdar-web/lingdar/http/mime"
	"github.com/lingdar-web/lingdar/http/status"
	"github.com/lingdar-web/lingdar/kv"
)

var (
	ErrResponseEnded = errors.New("response is already ended")
	ErrHijacked      = errors.New("connection is already hijacked")
)

// DefaultContentType is used unless the handler sets one.
const DefaultContentType = mime.HTML + "; charset=utf-8"

// why 7? Security headers, content-type and a couple more set by routers usually fit.
const preallocRespHeaders = 7

// Response accumulates the status, headers and body. Nothing is sent until the routing
// is over, so every router in the chain may alter what the previous one did, unless the
// response is ended.
type Response struct {
	code    status.Code
	headers *kv.Storage
	body    []byte
	ended   bool
}

// NewResponse returns a new instance of the Response object with status code set to 200 OK
// and text/html content-type.
func NewResponse() *Response {
	return &Response{
		code:    status.OK,
		headers: kv.NewPrealloc(preallocRespHeaders),
	}
}

// Code sets the status code. In case of unknown code, "Unknown Status Code" will be
// used as a reason phrase.
func (r *Response) Code(code status.Code) *Response {
	r.code = code
	return r
}

// Status returns the currently set status code.
func (r *Response) Status() status.Code {
	return r.code
}

// Header adds the header. Already presented values of the same key are kept.
func (r *Response) Header(key, value string) *Response {
	r.headers.Add(key, value)
	return r
}

// SetHeader replaces all the values of the key by the passed one.
func (r *Response) SetHeader(key, value string) *Response {
	r.headers.Set(key, value)
	return r
}

// Headers exposes the response headers. Content-Type is included only if it was set
// explicitly.
func (r *Response) Headers() *kv.Storage {
	return r.headers
}

// ContentType returns the Content-Type header value, falling back to DefaultContentType.
func (r *Response) ContentType() string {
	return r.headers.ValueOr("content-type", DefaultContentType)
}

// Write implements io.Writer. The data is appended to the body.
func (r *Response) Write(b []byte) (n int, err error) {
	if r.ended {
		return 0, ErrResponseEnded
	}

	r.body = append(r.body, b...)
	return len(b), nil
}

// WriteObject appends the object to the body. Strings and byte slices are written as is,
// anything else is encoded as JSON and the content type is set correspondingly.
func (r *Response) WriteObject(obj any) error {
	switch v := obj.(type) {
	case nil:
		return nil
	case []byte:
		_, err := r.Write(v)
		return err
	case string:
		_, err := r.Write(uf.S2B(v))
		return err
	}

	if r.ended {
		return ErrResponseEnded
	}

	data, err := json.ConfigCompatibleWithStandardLibrary.Marshal(obj)
	if err != nil {
		return err
	}

	r.SetHeader("Content-Type", mime.JSON)
	_, err = r.Write(data)
	return err
}

// End finalizes the response. Any further write fails with ErrResponseEnded.
func (r *Response) End() error {
	if r.ended {
		return ErrResponseEnded
	}

	r.ended = true
	return nil
}

// EndWith sets the code, writes the body (if not nil) and ends the response.
func (r *Response) EndWith(code status.Code, body any) error {
	if r.ended {
		return ErrResponseEnded
	}

	if err := r.Code(code).WriteObject(body); err != nil {
		return err
	}

	return r.End()
}

// Redirect ends the response with 302 Found pointing to the url.
func (r *Response) Redirect(url string) error {
	if r.ended {
		return ErrResponseEnded
	}

	r.SetHeader("Location", url)
	return r.EndWith(status.Found, nil)
}

func (r *Response) Ended() bool {
	return r.ended
}

// Body returns the accumulated body.
func (r *Response) Body() []byte {
	return r.body
}

// DiscardBody drops everything written so far, keeping the headers and the code.
func (r *Response) DiscardBody() *Response {
	r.body = r.body[:0]
	return r
}

// Reset discards everything was done with Response object before
func (r *Response) Reset() *Response {
	r.code = status.OK
	r.headers.Clear()
	r.body = r.body[:0]
	r.ended = false
	return r
}
