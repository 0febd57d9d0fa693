package dummy

import (
	"io"
	"net"

	"github.com/lingdar-web/lingdar/transport"
)

var _ transport.Client = new(Client)

// Client returns the pieces of data it was initialised with one by one, reporting io.EOF
// once they're over. Unless set to loop, which makes it start over. Everything written is
// journaled.
type Client struct {
	closed  bool
	loop    bool
	pointer int
	tmp     []byte
	written []byte
	data    [][]byte
	remote  net.Addr
}

func NewMockClient(data ...[]byte) *Client {
	return &Client{
		data:   data,
		remote: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 54321},
	}
}

// Split cuts the string into pieces of n bytes each, so it's delivered by multiple reads.
func Split(data string, n int) [][]byte {
	var pieces [][]byte
	for len(data) > n {
		pieces = append(pieces, []byte(data[:n]))
		data = data[n:]
	}

	return append(pieces, []byte(data))
}

func (c *Client) Read() (data []byte, err error) {
	if c.closed {
		return nil, io.EOF
	}

	if len(c.tmp) > 0 {
		data, c.tmp = c.tmp, nil

		return data, nil
	}

	if c.pointer >= len(c.data) {
		if !c.loop || len(c.data) == 0 {
			return nil, io.EOF
		}

		c.pointer = 0
	}

	piece := c.data[c.pointer]
	c.pointer++

	return piece, nil
}

func (c *Client) Pushback(takeback []byte) {
	c.tmp = takeback
}

func (c *Client) Write(p []byte) (int, error) {
	if c.closed {
		return 0, net.ErrClosed
	}

	c.written = append(c.written, p...)
	return len(p), nil
}

func (c *Client) Conn() net.Conn {
	return nil
}

func (c *Client) Remote() net.Addr {
	return c.remote
}

func (c *Client) Close() error {
	c.closed = true
	return nil
}

func (c *Client) Closed() bool {
	return c.closed
}

// Loop makes the client start over once the data is over.
func (c *Client) Loop() *Client {
	c.loop = true
	return c
}

func (c *Client) Written() string {
	return string(c.written)
}
