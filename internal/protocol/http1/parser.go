package http1

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
	"github.com/lingdar-web/lingdar/config"
	"github.com/lingdar-web/lingdar/http"
	"github.com/lingdar-web/lingdar/http/method"
	"github.com/lingdar-web/lingdar/http/status"
	"github.com/lingdar-web/lingdar/internal/buffer"
)

type parserState uint8

const (
	eMethod parserState = iota + 1
	eTarget
	eProtocol
	eHeaderKey
	eHeaderValue
	eHeaderValueCRLFCR
	eContentLength
	eContentLengthCR
)

// maxContentLength protects the accumulator from overflowing. Real limits are enforced
// later, by the body reader.
const maxContentLength = 1 << 40

// Parser is a stream-based parser of the request head. It doesn't decode the request target,
// it's stored in Request.RawPath as is.
type Parser struct {
	state               parserState
	metContentLength    bool
	contentLengthDigits int
	headersNumber       int
	contentLength       int64
	cfg                 *config.Config
	request             *http.Request
	requestLine         *buffer.Buffer
	headers             *buffer.Buffer
	key                 string
}

func NewParser(cfg *config.Config, request *http.Request) *Parser {
	return &Parser{
		cfg:         cfg,
		state:       eMethod,
		request:     request,
		requestLine: buffer.New(cfg.URI.RequestLineSize.Default, cfg.URI.RequestLineSize.Maximal),
		headers:     buffer.New(cfg.Headers.Space.Default, cfg.Headers.Space.Maximal),
	}
}

// Parse feeds the data into the parser. Done is true when either the head is complete or
// an error occurred. Extra holds the bytes following the head, they belong to the body or
// to the next request.
func (p *Parser) Parse(data []byte) (done bool, extra []byte, err error) {
	request := p.request
	requestLine := p.requestLine
	headers := p.headers

	switch p.state {
	case eMethod:
		goto method
	case eTarget:
		goto target
	case eProtocol:
		goto protocol
	case eHeaderKey:
		goto headerKey
	case eHeaderValue:
		goto headerValue
	case eHeaderValueCRLFCR:
		goto headerValueCRLFCR
	case eContentLength:
		goto contentLength
	case eContentLengthCR:
		goto contentLengthCR
	default:
		panic("unreachable code")
	}

method:
	if requestLine.Len() == 0 {
		// empty lines preceding the request line must be ignored
		data = bytes.TrimLeft(data, "\r\n")
	}

	for i := 0; i < len(data); i++ {
		if data[i] == ' ' {
			if !requestLine.Append(data[:i]) {
				return true, nil, status.ErrTooLongRequestLine
			}

			token := requestLine.Peek()
			if len(token) == 0 {
				return true, nil, status.ErrBadRequest
			}

			// unknown methods aren't rejected here. Having no handler, they end up in 404
			request.Method = method.Parse(uf.B2S(token))
			requestLine.Drop()
			data = data[i+1:]
			goto target
		}
	}

	if !requestLine.Append(data) {
		return true, nil, status.ErrTooLongRequestLine
	}

	p.state = eMethod
	return false, nil, nil

target:
	for i := 0; i < len(data); i++ {
		switch char := data[i]; char {
		case ' ':
			if !requestLine.Append(data[:i]) {
				return true, nil, status.ErrTooLongRequestLine
			}

			request.RawPath = uf.B2S(requestLine.Commit())
			if len(request.RawPath) == 0 {
				return true, nil, status.ErrBadRequest
			}

			data = data[i+1:]
			goto protocol
		default:
			if isProhibitedChar(char) {
				return true, nil, status.ErrBadRequest
			}
		}
	}

	if !requestLine.Append(data) {
		return true, nil, status.ErrTooLongRequestLine
	}

	p.state = eTarget
	return false, nil, nil

protocol:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if !requestLine.Append(data) {
				return true, nil, status.ErrTooLongRequestLine
			}

			p.state = eProtocol
			return false, nil, nil
		}

		if !requestLine.Append(data[:lf]) {
			return true, nil, status.ErrTooLongRequestLine
		}

		switch proto := uf.B2S(stripCR(requestLine.Commit())); proto {
		case "HTTP/1.1":
			request.Protocol = "HTTP/1.1"
		case "HTTP/1.0":
			request.Protocol = "HTTP/1.0"
		default:
			return true, nil, status.ErrUnsupportedProtocol
		}

		data = data[lf+1:]
		// fallthrough to headerKey
	}

headerKey:
	{
		if len(data) == 0 {
			p.state = eHeaderKey
			return false, nil, nil
		}

		if headers.Len() == 0 {
			switch data[0] {
			case '\n':
				p.cleanup()

				return true, data[1:], nil
			case '\r':
				data = data[1:]
				goto headerValueCRLFCR
			}
		}

		colon := bytes.IndexByte(data, ':')
		if colon == -1 {
			if !headers.Append(data) {
				return true, nil, status.ErrHeaderFieldsTooLarge
			}

			p.state = eHeaderKey
			return false, nil, nil
		}

		if !headers.Append(data[:colon]) {
			return true, nil, status.ErrHeaderFieldsTooLarge
		}

		key := uf.B2S(headers.Commit())
		if len(key) == 0 || bytes.IndexByte(uf.S2B(key), '\n') != -1 {
			return true, nil, status.ErrBadRequest
		}

		p.key = key
		data = data[colon+1:]

		if p.headersNumber++; p.headersNumber > p.cfg.Headers.Number.Maximal {
			return true, nil, status.ErrTooManyHeaders
		}

		if strcomp.EqualFold(key, "Content-Length") {
			if p.metContentLength {
				return true, nil, status.ErrBadRequest
			}

			p.metContentLength = true
			goto contentLength
		}

		// fallthrough to headerValue
	}

headerValue:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			if !headers.Append(data) {
				return true, nil, status.ErrHeaderFieldsTooLarge
			}

			p.state = eHeaderValue
			return false, nil, nil
		}

		if !headers.Append(data[:lf]) {
			return true, nil, status.ErrHeaderFieldsTooLarge
		}

		if segment := headers.Peek(); len(segment) > 0 && segment[len(segment)-1] == '\r' {
			headers.TrimTail(1)
		}

		data = data[lf+1:]
		value := uf.B2S(bytes.TrimSpace(headers.Commit()))
		key := p.key
		request.Headers.Add(key, value)

		switch len(key) {
		case 10:
			if strcomp.EqualFold(key, "Connection") {
				request.Connection = value
			}
		case 12:
			if strcomp.EqualFold(key, "Content-Type") {
				request.ContentType = value
			}
		case 17:
			if strcomp.EqualFold(key, "Transfer-Encoding") {
				if !isChunked(value) {
					return true, nil, status.ErrBadRequest
				}

				request.Chunked = true
			}
		}

		goto headerKey
	}

headerValueCRLFCR:
	if len(data) == 0 {
		p.state = eHeaderValueCRLFCR
		return false, nil, nil
	}

	if data[0] == '\n' {
		p.cleanup()

		return true, data[1:], nil
	}

	return true, nil, status.ErrBadRequest

contentLength:
	for i, char := range data {
		if char == ' ' || char == '\t' {
			if p.contentLengthDigits > 0 {
				data = data[i:]
				goto contentLengthEnd
			}

			continue
		}

		if char < '0' || char > '9' {
			data = data[i:]
			goto contentLengthEnd
		}

		p.contentLength = p.contentLength*10 + int64(char-'0')
		if p.contentLength > maxContentLength {
			return true, nil, status.ErrBodyTooLarge
		}

		p.contentLengthDigits++
	}

	p.state = eContentLength
	return false, nil, nil

contentLengthEnd:
	// guaranteed, that data at this point contains AT LEAST 1 byte, as this code is
	// reachable only if the loop has met a non-digit character
	if p.contentLengthDigits == 0 {
		return true, nil, status.ErrBadRequest
	}

	request.ContentLength = int(p.contentLength)
	request.Headers.Add(p.key, strconv.FormatInt(p.contentLength, 10))
	data = bytes.TrimLeft(data, " \t")
	if len(data) == 0 {
		p.state = eContentLengthCR
		return false, nil, nil
	}

	switch data[0] {
	case '\r':
		data = data[1:]
		goto contentLengthCR
	case '\n':
		data = data[1:]
		goto headerKey
	default:
		return true, nil, status.ErrBadRequest
	}

contentLengthCR:
	if len(data) == 0 {
		p.state = eContentLengthCR
		return false, nil, nil
	}

	switch data[0] {
	case ' ', '\t', '\r':
		data = data[1:]
		goto contentLengthCR
	case '\n':
		data = data[1:]
		goto headerKey
	default:
		return true, nil, status.ErrBadRequest
	}
}

// Reset brings the parser to its initial state, e.g. after an error.
func (p *Parser) Reset() {
	p.cleanup()
}

func (p *Parser) cleanup() {
	p.metContentLength = false
	p.contentLengthDigits = 0
	p.headersNumber = 0
	p.requestLine.Reset()
	p.headers.Reset()
	p.contentLength = 0
	p.state = eMethod
}

// isChunked reports whether the chunked coding is the last one applied. Other codings
// aren't supported.
func isChunked(value string) bool {
	for len(value) > 0 {
		var token string
		token, value, _ = strings.Cut(value, ",")
		if token = strings.TrimSpace(token); !strcomp.EqualFold(token, "chunked") {
			return false
		}
	}

	return true
}

func stripCR(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] == '\r' {
		return b[:len(b)-1]
	}

	return b
}

func isProhibitedChar(c byte) bool {
	return c < 0x21 || c > 0x7e
}
