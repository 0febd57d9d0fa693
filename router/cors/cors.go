// Package cors marks every response as allowed to be read cross-origin. Real deployments
// most likely want their own policy instead.
package cors

import (
	"github.com/lingdar-web/lingdar/http"
	"github.com/lingdar-web/lingdar/router"
)

// Priority is low enough to run before the routers producing the content.
const Priority = -2

type Router struct {
	router.Base
	origin string
}

// New returns the router allowing any origin on every path.
func New() *Router {
	return &Router{
		Base:   router.NewBase("/*", Priority),
		origin: "*",
	}
}

// Origin restricts the allowed origin.
func (r *Router) Origin(origin string) *Router {
	r.origin = origin
	return r
}

func (r *Router) Get(_ *http.Request, response *http.Response, next router.Next) {
	r.apply(response)
	next()
}

func (r *Router) Post(_ *http.Request, response *http.Response, next router.Next) {
	r.apply(response)
	next()
}

func (r *Router) apply(response *http.Response) {
	response.
		SetHeader("Access-Control-Allow-Origin", r.origin).
		SetHeader("Referrer-Policy", "no-referrer")
}
