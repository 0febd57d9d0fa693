// Package metrics exposes the collected metrics in the Prometheus text format.
package metrics

import (
	"github.com/lingdar-web/lingdar/http"
	"github.com/lingdar-web/lingdar/http/status"
	"github.com/lingdar-web/lingdar/internal/metrics"
	"github.com/lingdar-web/lingdar/router"
	"github.com/sirupsen/logrus"
)

const Priority = -1

// contentType is the version 0.0.4 of the text exposition format.
const contentType = "text/plain; version=0.0.4; charset=utf-8"

type Router struct {
	router.Base
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

// New serves the metrics on the exact path, e.g. /metrics.
func New(path string, m *metrics.Metrics, log logrus.FieldLogger) *Router {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Router{
		Base:    router.NewRawBase(router.Exact(path), Priority),
		metrics: m,
		log:     log,
	}
}

func (r *Router) Get(_ *http.Request, response *http.Response, next router.Next) {
	if r.metrics == nil {
		next()
		return
	}

	if err := r.metrics.WriteText(response); err != nil {
		r.log.WithField("action", "metrics").WithError(err).Error("cannot render metrics")
		_ = response.DiscardBody().EndWith(status.InternalServerError, nil)
		return
	}

	response.SetHeader("Content-Type", contentType)
	_ = response.End()
}
