package http

import (
	"errors"
	"io"
	"maps"
	"net"
	"os"
	"slices"
	"time"

	"github.com/lingdar-web/lingdar/cache/objstore"
	"github.com/lingdar-web/lingdar/config"
	"github.com/lingdar-web/lingdar/http"
	"github.com/lingdar-web/lingdar/http/method"
	"github.com/lingdar-web/lingdar/http/status"
	"github.com/lingdar-web/lingdar/internal/metrics"
	"github.com/lingdar-web/lingdar/internal/protocol/http1"
	"github.com/lingdar-web/lingdar/internal/reqparser"
	"github.com/lingdar-web/lingdar/router"
	"github.com/lingdar-web/lingdar/transport"
	"github.com/sirupsen/logrus"
)

// Server runs the routers against requests coming from connections. A single Server is
// shared by all the connections, per-connection state lives in the Run call.
type Server struct {
	cfg      *config.Config
	routers  []router.Router
	store    *objstore.Store
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	security []string
}

// New sorts the routers by priority. The slice is copied, so the caller is free to modify
// it afterward.
func New(
	cfg *config.Config, routers []router.Router, store *objstore.Store,
	log logrus.FieldLogger, m *metrics.Metrics,
) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}

	sorted := slices.Clone(routers)
	router.Sort(sorted)

	return &Server{
		cfg:      cfg,
		routers:  sorted,
		store:    store,
		log:      log,
		metrics:  m,
		security: slices.Sorted(maps.Keys(cfg.Headers.Security)),
	}
}

// Serve is the transport callback.
func (s *Server) Serve(conn net.Conn) {
	cfg := s.cfg.NET
	s.Run(transport.NewClient(conn, cfg.ReadTimeout, make([]byte, cfg.ReadBufferSize)))
}

// Run processes requests coming from the client one by one, until either the client goes
// away, a protocol error occurs or the keep-alive is over. The client is closed afterward.
func (s *Server) Run(client transport.Client) {
	request := http.NewRequest(s.cfg, client)
	conn := &connection{
		server:     s,
		client:     client,
		request:    request,
		response:   http.NewResponse(),
		parser:     http1.NewParser(s.cfg, request),
		body:       http1.NewBody(client, s.cfg.Body),
		serializer: http1.NewSerializer(client, s.cfg.NET.WriteBufferSize),
		reqparser:  reqparser.New(s.cfg, s.store, s.log),
	}

	for conn.HandleRequest() {
	}

	_ = client.Close()
}

type connection struct {
	server     *Server
	client     transport.Client
	request    *http.Request
	response   *http.Response
	parser     *http1.Parser
	body       *http1.Body
	serializer *http1.Serializer
	reqparser  *reqparser.Parser
}

// HandleRequest reads, processes and answers a single request. False is returned when the
// connection must be closed.
func (c *connection) HandleRequest() (ok bool) {
	request := c.request

	for {
		data, err := c.client.Read()
		if err != nil {
			c.readError(err)
			return false
		}

		done, extra, err := c.parser.Parse(data)
		if err != nil {
			c.reject(err)
			return false
		}

		if done {
			c.client.Pushback(extra)
			break
		}
	}

	start := time.Now()

	body, err := c.body.Read(request)
	if err != nil {
		c.reject(err)
		return false
	}

	if err = c.reqparser.Parse(request, body); err != nil {
		c.reject(err)
		return false
	}

	request.Body = body
	response := c.response.Reset()
	c.server.Dispatch(request, response)

	if request.Hijacked() {
		return false
	}

	keepAlive := request.KeepAlive()
	if err = c.serializer.Write(request, response, keepAlive); err != nil {
		c.server.log.WithFields(logrus.Fields{
			"action": "write",
			"remote": request.Address,
		}).WithError(err).Debug("cannot write the response")
		return false
	}

	c.server.metrics.Request(request.Method.String(), int(response.Status()), time.Since(start))
	c.server.log.WithFields(logrus.Fields{
		"action": "respond",
		"remote": request.Address,
		"path":   request.Path,
		"status": int(response.Status()),
	}).Debug(request.Method.String())

	request.Reset()

	return keepAlive
}

func (c *connection) readError(err error) {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return
	}

	action := "read"
	if errors.Is(err, os.ErrDeadlineExceeded) {
		action = "timeout"
	}

	c.server.log.WithFields(logrus.Fields{
		"action": action,
		"remote": c.request.Address,
	}).WithError(err).Debug("closing the connection")
}

// reject drops the connection without answering, as protocol violations don't deserve one.
func (c *connection) reject(err error) {
	c.parser.Reset()

	code := status.CloseConnection
	var httpErr status.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
	}

	c.server.log.WithFields(logrus.Fields{
		"action": "reject",
		"remote": c.request.Address,
		"status": int(code),
	}).WithError(err).Debug("protocol error")
}

// Dispatch runs the routers matching the request path, in priority order. The chain goes
// on while routers call next. It stops once a router returns without doing so, and its
// response is final. If no router took the request, 404 Not Found is the answer.
func (s *Server) Dispatch(request *http.Request, response *http.Response) {
	s.applySecurity(response)

	handler := handlerOf(request.Method)
	if handler == nil {
		s.notFound(response)
		return
	}

	for _, r := range s.routers {
		remainder, ok := r.Pattern().Match(request.ResolvedPath)
		if !ok {
			continue
		}

		request.ResolvedPath = remainder

		var next bool
		if !s.invoke(handler, r, request, response, &next) {
			response.Reset()
			s.applySecurity(response)
			_ = response.EndWith(status.InternalServerError, nil)
			return
		}

		if !next || response.Ended() {
			// the final response was produced, even if the router forgot to end it
			_ = response.End()
			return
		}
	}

	s.notFound(response)
}

type handlerFunc func(r router.Router, request *http.Request, response *http.Response, next router.Next)

func handlerOf(m method.Method) handlerFunc {
	switch m {
	case method.GET, method.HEAD:
		return router.Router.Get
	case method.POST:
		return router.Router.Post
	default:
		return nil
	}
}

// invoke returns false if the handler panicked.
func (s *Server) invoke(
	handler handlerFunc, r router.Router, request *http.Request, response *http.Response, next *bool,
) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			s.log.WithFields(logrus.Fields{
				"action": "dispatch",
				"path":   request.Path,
				"remote": request.Address,
			}).Errorf("router panicked: %v", rec)
			ok = false
		}
	}()

	handler(r, request, response, func() {
		*next = true
	})

	return true
}

func (s *Server) notFound(response *http.Response) {
	if response.Ended() {
		return
	}

	_ = response.DiscardBody().Code(status.NotFound).End()
}

func (s *Server) applySecurity(response *http.Response) {
	for _, key := range s.security {
		response.SetHeader(key, s.cfg.Headers.Security[key])
	}
}
