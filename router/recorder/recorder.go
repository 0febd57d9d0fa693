// Package recorder writes a structured record per request, before any content is produced.
package recorder

import (
	"io"
	"maps"
	"os"

	"github.com/google/uuid"
	"github.com/lingdar-web/lingdar/config"
	"github.com/lingdar-web/lingdar/http"
	"github.com/lingdar-web/lingdar/internal/logging"
	"github.com/lingdar-web/lingdar/router"
	"github.com/sirupsen/logrus"
)

const Priority = -3

// RequestIDHeader carries the id of the record back to the client.
const RequestIDHeader = "X-Request-Id"

type Router struct {
	router.Base
	log *logrus.Logger
	out io.Writer
}

// New records every request into the writer, as JSON lines.
func New(out io.Writer) *Router {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.JSONFormatter{})

	return &Router{
		Base: router.NewBase("/*", Priority),
		log:  log,
		out:  out,
	}
}

// NewFile records into a rotating file, configured the same way as the main log.
func NewFile(cfg config.Log) (*Router, error) {
	out, err := logging.Output(cfg)
	if err != nil {
		return nil, err
	}

	return New(out), nil
}

func (r *Router) Get(request *http.Request, response *http.Response, next router.Next) {
	r.record(request, response)
	next()
}

func (r *Router) Post(request *http.Request, response *http.Response, next router.Next) {
	r.record(request, response)
	next()
}

func (r *Router) record(request *http.Request, response *http.Response) {
	id := uuid.NewString()
	response.SetHeader(RequestIDHeader, id)

	files := make(map[string]string, len(request.Files))
	for field, obj := range request.Files {
		files[field] = obj.Name
	}

	r.log.WithFields(logrus.Fields{
		"id":     id,
		"ip":     request.Address,
		"method": request.Method.String(),
		"path":   request.Path,
		"query":  maps.Clone(request.Query),
		"post":   maps.Clone(request.PostParams),
		"form":   maps.Clone(request.FormParams),
		"files":  files,
	}).Info("request")
}

// Close closes the output, if it's closable. Standard streams are left open.
func (r *Router) Close() error {
	if r.out == os.Stdout || r.out == os.Stderr {
		return nil
	}

	if closer, ok := r.out.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}
