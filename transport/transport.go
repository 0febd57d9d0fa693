package transport

import (
	"net"

	"github.com/lingdar-web/lingdar/config"
)

type Transport interface {
	Bind(addr string) error
	Listen(cfg config.NET, cb func(conn net.Conn)) error
	// Stop makes the Listen return after its current accept attempt.
	Stop()
	// Close closes the listener immediately.
	Close()
	// Wait blocks until every connection callback returns.
	Wait()
	Addr() net.Addr
}
