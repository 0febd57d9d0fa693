package transport

import (
	"net"
	"sync"

	"github.com/lingdar-web/lingdar/config"
)

// Supervisor runs multiple bound transports at once, e.g. plain HTTP alongside HTTPS.
type Supervisor struct {
	mu sync.Mutex
	ts []boundTransport
}

type boundTransport struct {
	cb func(conn net.Conn)
	t  Transport
}

// Add binds the transport. If binding fails, every transport added before is closed.
func (s *Supervisor) Add(addr string, transport Transport, cb func(net.Conn)) error {
	if err := transport.Bind(addr); err != nil {
		s.Stop(false)
		return err
	}

	s.mu.Lock()
	s.ts = append(s.ts, boundTransport{cb: cb, t: transport})
	s.mu.Unlock()

	return nil
}

// Addrs returns addresses the transports are actually bound to, in order they were added.
func (s *Supervisor) Addrs() (addrs []net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.ts {
		addrs = append(addrs, t.t.Addr())
	}

	return addrs
}

// Run blocks until all the transports are stopped. The first failure stops the rest and
// is returned.
func (s *Supervisor) Run(cfg config.NET) (err error) {
	s.mu.Lock()
	ts := s.ts
	s.mu.Unlock()

	errch := make(chan error, len(ts))
	for _, t := range ts {
		go func(t boundTransport) {
			errch <- t.t.Listen(cfg, t.cb)
		}(t)
	}

	for range ts {
		if listenErr := <-errch; listenErr != nil && err == nil {
			err = listenErr
			s.Stop(false)
		}
	}

	return err
}

// Stop closes all the listeners. Graceful stop also waits for every running connection
// callback to return.
func (s *Supervisor) Stop(graceful bool) {
	s.mu.Lock()
	ts := s.ts
	s.mu.Unlock()

	for _, t := range ts {
		t.t.Close()
	}

	if graceful {
		for _, t := range ts {
			t.t.Wait()
		}
	}
}
