// Package router defines what the dispatch pipeline runs: routers bound to a path pattern
// and ordered by their priority.
package router

import (
	"cmp"
	"slices"

	"github.com/lingdar-web/lingdar/http"
)

// Next continues the chain. If a handler returns without calling it, the response is
// considered final and no further routers are run.
type Next func()

type Handler func(request *http.Request, response *http.Response, next Next)

// Router handles requests whose path matches the pattern. Routers with lower priority
// run earlier.
type Router interface {
	Pattern() Pattern
	Priority() int
	Get(request *http.Request, response *http.Response, next Next)
	Post(request *http.Request, response *http.Response, next Next)
}

// Base is meant to be embedded. It passes every request further, so only overridden
// methods do something.
type Base struct {
	pattern  Pattern
	priority int
}

func NewBase(pattern string, priority int) Base {
	return Base{pattern: Compile(pattern), priority: priority}
}

// NewRawBase is NewBase for already compiled patterns.
func NewRawBase(pattern Pattern, priority int) Base {
	return Base{pattern: pattern, priority: priority}
}

func (b Base) Pattern() Pattern {
	return b.pattern
}

func (b Base) Priority() int {
	return b.priority
}

func (Base) Get(_ *http.Request, _ *http.Response, next Next) {
	next()
}

func (Base) Post(_ *http.Request, _ *http.Response, next Next) {
	next()
}

// Funcs turns plain functions into a router. Nil handlers pass the request further.
type Funcs struct {
	Base
	OnGet, OnPost Handler
}

func New(pattern string, priority int, onGet, onPost Handler) *Funcs {
	return &Funcs{
		Base:   NewBase(pattern, priority),
		OnGet:  onGet,
		OnPost: onPost,
	}
}

func (f *Funcs) Get(request *http.Request, response *http.Response, next Next) {
	if f.OnGet == nil {
		next()
		return
	}

	f.OnGet(request, response, next)
}

func (f *Funcs) Post(request *http.Request, response *http.Response, next Next) {
	if f.OnPost == nil {
		next()
		return
	}

	f.OnPost(request, response, next)
}

// Sort orders routers by priority. Routers of equal priority keep the registration order.
func Sort(routers []Router) {
	slices.SortStableFunc(routers, func(a, b Router) int {
		return cmp.Compare(a.Priority(), b.Priority())
	})
}
