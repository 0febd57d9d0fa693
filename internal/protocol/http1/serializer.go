package http1

import (
	"strconv"

	"github.com/indigo-web/utils/strcomp"
	"github.com/lingdar-web/lingdar/http"
	"github.com/lingdar-web/lingdar/http/method"
	"github.com/lingdar-web/lingdar/http/status"
	"github.com/lingdar-web/lingdar/transport"
)

// Serializer renders the whole response into a single buffer and flushes it at once.
type Serializer struct {
	client transport.Client
	buff   []byte
}

func NewSerializer(client transport.Client, buffSize int) *Serializer {
	return &Serializer{
		client: client,
		buff:   make([]byte, 0, buffSize),
	}
}

// Write sends the response to the request. Content-Length is always calculated from the
// body, so a value set by a handler is ignored. HEAD requests get the headers only.
func (s *Serializer) Write(request *http.Request, response *http.Response, keepAlive bool) error {
	s.appendStatus(request.Protocol, response.Status())

	contentTypeSet := false
	for key, value := range response.Headers().Pairs() {
		switch {
		case strcomp.EqualFold(key, "Content-Length"), strcomp.EqualFold(key, "Connection"):
			continue
		case strcomp.EqualFold(key, "Content-Type"):
			contentTypeSet = true
		}

		s.appendHeader(key, value)
	}

	body := response.Body()
	if isBodyless(response.Status()) {
		body = nil
	} else {
		if !contentTypeSet {
			s.appendHeader("Content-Type", http.DefaultContentType)
		}

		s.buff = append(s.buff, "Content-Length: "...)
		s.buff = strconv.AppendInt(s.buff, int64(len(body)), 10)
		s.crlf()
	}

	switch {
	case !keepAlive:
		s.appendHeader("Connection", "close")
	case request.Protocol == "HTTP/1.0":
		s.appendHeader("Connection", "keep-alive")
	}

	s.crlf()
	if request.Method != method.HEAD {
		s.buff = append(s.buff, body...)
	}

	_, err := s.client.Write(s.buff)
	s.buff = s.buff[:0]

	return err
}

func (s *Serializer) appendStatus(protocol string, code status.Code) {
	if protocol != "HTTP/1.0" {
		s.buff = append(s.buff, status.Line(code)...)
		return
	}

	s.buff = append(s.buff, "HTTP/1.0 "...)
	s.buff = strconv.AppendUint(s.buff, uint64(code), 10)
	s.buff = append(s.buff, ' ')
	s.buff = append(s.buff, string(status.Text(code))...)
	s.crlf()
}

func (s *Serializer) appendHeader(key, value string) {
	s.buff = append(s.buff, key...)
	s.buff = append(s.buff, ": "...)
	s.buff = append(s.buff, value...)
	s.crlf()
}

func (s *Serializer) crlf() {
	s.buff = append(s.buff, '\r', '\n')
}

// isBodyless reports whether the code forbids the message body.
func isBodyless(code status.Code) bool {
	return code < 200 || code == status.NoContent || code == status.NotModified
}
