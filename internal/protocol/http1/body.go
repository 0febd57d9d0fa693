package http1

import (
	"io"

	"github.com/indigo-web/chunkedbody"
	"github.com/lingdar-web/lingdar/config"
	"github.com/lingdar-web/lingdar/http"
	"github.com/lingdar-web/lingdar/http/status"
	"github.com/lingdar-web/lingdar/transport"
)

// Body reads the whole request body, either plain or chunked. The returned slice is reused
// by the next request, so it's valid only while the current one is being processed.
type Body struct {
	client  transport.Client
	chunked *chunkedbody.Parser
	maxSize int
	buff    []byte
}

func NewBody(client transport.Client, cfg config.Body) *Body {
	return &Body{
		client:  client,
		chunked: chunkedbody.NewParser(chunkedbody.DefaultSettings()),
		maxSize: cfg.MaxSize,
	}
}

// Read consumes the body of the request. Bytes following it are pushed back to the client.
// For plain bodies, the declared length is checked against the limit before a single byte
// is read.
func (b *Body) Read(request *http.Request) ([]byte, error) {
	b.buff = b.buff[:0]

	if request.Chunked {
		return b.readChunked()
	}

	return b.readPlain(request.ContentLength)
}

func (b *Body) readPlain(length int) ([]byte, error) {
	if length > b.maxSize {
		return nil, status.ErrBodyTooLarge
	}

	for left := length; left > 0; {
		data, err := b.client.Read()
		if len(data) > left {
			b.buff = append(b.buff, data[:left]...)
			b.client.Pushback(data[left:])
			break
		}

		b.buff = append(b.buff, data...)
		if left -= len(data); left > 0 && err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}

			return nil, err
		}
	}

	return b.buff, nil
}

func (b *Body) readChunked() ([]byte, error) {
	for {
		data, err := b.client.Read()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}

			return nil, err
		}

		for len(data) > 0 {
			chunk, extra, err := b.chunked.Parse(data, false)
			switch err {
			case nil:
			case io.EOF:
				if len(b.buff)+len(chunk) > b.maxSize {
					return nil, status.ErrBodyTooLarge
				}

				b.buff = append(b.buff, chunk...)
				b.client.Pushback(extra)
				return b.buff, nil
			default:
				return nil, status.ErrBadChunk
			}

			if len(b.buff)+len(chunk) > b.maxSize {
				return nil, status.ErrBodyTooLarge
			}

			b.buff = append(b.buff, chunk...)
			data = extra
		}
	}
}
