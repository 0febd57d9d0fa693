// Package limiter throttles clients with a token bucket per address.
package limiter

import (
	"strconv"
	"sync"
	"time"

	"github.com/lingdar-web/lingdar/cache/lru"
	"github.com/lingdar-web/lingdar/http"
	"github.com/lingdar-web/lingdar/http/status"
	"github.com/lingdar-web/lingdar/router"
	"golang.org/x/time/rate"
)

// Priority makes the limiter run before anything else is done to the request.
const Priority = -4

const (
	defaultRPS   = 5
	defaultBurst = 10
	// maxClients bounds the number of tracked addresses. The least recently seen ones are
	// forgotten first, so they start over with a full bucket.
	maxClients = 10000
)

type Router struct {
	router.Base
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	rps      rate.Limit
	burst    int
}

// New returns the limiter allowing rps requests per second with given burst. Non-positive
// values are replaced by defaults.
func New(pattern string, rps float64, burst int) *Router {
	if rps <= 0 {
		rps = defaultRPS
	}

	if burst <= 0 {
		burst = defaultBurst
	}

	return &Router{
		Base:     router.NewBase(pattern, Priority),
		limiters: lru.New[string, *rate.Limiter](maxClients),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (r *Router) Get(request *http.Request, response *http.Response, next router.Next) {
	r.handle(request, response, next)
}

func (r *Router) Post(request *http.Request, response *http.Response, next router.Next) {
	r.handle(request, response, next)
}

func (r *Router) handle(request *http.Request, response *http.Response, next router.Next) {
	limiter := r.get(request.Address)
	reservation := limiter.Reserve()
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		seconds := int(delay / time.Second)
		if delay%time.Second != 0 {
			seconds++
		}

		response.SetHeader("Retry-After", strconv.Itoa(seconds))
		_ = response.EndWith(status.TooManyRequests, status.ErrTooManyRequests.Error())
		return
	}

	next()
}

func (r *Router) get(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, found := r.limiters.Get(key); found {
		return limiter
	}

	limiter := rate.NewLimiter(r.rps, r.burst)
	r.limiters.Set(key, limiter)

	return limiter
}

func (r *Router) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.limiters.Size()
}
