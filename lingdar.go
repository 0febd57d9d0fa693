// Package lingdar is an HTTP/1.1 server built straight over sockets, with routers chained
// by priority and a caching subsystem for static and uploaded files.
package lingdar

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/lingdar-web/lingdar/cache/filecache"
	"github.com/lingdar-web/lingdar/cache/objstore"
	"github.com/lingdar-web/lingdar/config"
	"github.com/lingdar-web/lingdar/internal/metrics"
	"github.com/lingdar-web/lingdar/internal/server/http"
	"github.com/lingdar-web/lingdar/router"
	routermetrics "github.com/lingdar-web/lingdar/router/metrics"
	"github.com/lingdar-web/lingdar/transport"
	"github.com/sirupsen/logrus"
)

var ErrAlreadyRunning = errors.New("lingdar: the app is already running")

type (
	// Predicate decides whether the deferred router belongs to the app.
	Predicate func(app *App) bool
	// Constructor builds the router once the app is known.
	Constructor func(app *App) router.Router
)

type deferredRouter struct {
	predicate   Predicate
	constructor Constructor
}

type listener struct {
	addr string
	tls  func() (*tls.Config, error)
}

// App owns the routers and the caches. It's configured by chained calls and started by
// Serve.
type App struct {
	addr      string
	cfg       *config.Config
	log       logrus.FieldLogger
	routers   []router.Router
	deferred  []deferredRouter
	listeners []listener
	hooks     hooks

	mu         sync.Mutex
	files      *filecache.Cache
	store      *objstore.Store
	metrics    *metrics.Metrics
	supervisor transport.Supervisor
	running    atomic.Bool
	graceful   atomic.Bool
}

type hooks struct {
	OnBind, OnStop func()
}

// New returns an app serving plain HTTP on the address, e.g. "localhost:8080" or ":80".
func New(addr string) *App {
	return &App{
		addr:    addr,
		cfg:     config.Default(),
		log:     logrus.StandardLogger(),
		metrics: metrics.New(),
	}
}

// Tune replaces the default config. Must be called before the caches are requested.
func (a *App) Tune(cfg *config.Config) *App {
	a.cfg = cfg
	return a
}

func (a *App) Config() *config.Config {
	return a.cfg
}

func (a *App) Logger(log logrus.FieldLogger) *App {
	a.log = log
	return a
}

func (a *App) Addr() string {
	return a.addr
}

// Route registers routers. The order of registration matters only for routers of equal
// priority.
func (a *App) Route(routers ...router.Router) *App {
	a.routers = append(a.routers, routers...)
	return a
}

// RouteIf defers the router construction until Serve. The router is built and registered
// only if the predicate approves the app. Nil predicate approves any app.
func (a *App) RouteIf(predicate Predicate, constructor Constructor) *App {
	a.deferred = append(a.deferred, deferredRouter{
		predicate:   predicate,
		constructor: constructor,
	})

	return a
}

// ExposeMetrics serves the Prometheus metrics of the app on the path.
func (a *App) ExposeMetrics(path string) *App {
	return a.Route(routermetrics.New(path, a.metrics, a.log))
}

// FileCache returns the file cache of the app, creating it on the first call.
func (a *App) FileCache() *filecache.Cache {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.files == nil {
		a.files = filecache.New(a.cfg.FileCache, a.log).SetMetrics(a.metrics)
	}

	return a.files
}

// ObjectStore returns the object store of the app, creating it on the first call. Uploaded
// files are put into it as well.
func (a *App) ObjectStore() (*objstore.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store == nil {
		store, err := objstore.New(a.cfg.ObjectStore, a.log)
		if err != nil {
			return nil, err
		}

		a.store = store.SetMetrics(a.metrics)
	}

	return a.store, nil
}

// NotifyOnBind calls the callback as soon as every listener is bound, so Addrs already
// returns actual addresses.
func (a *App) NotifyOnBind(cb func()) *App {
	a.hooks.OnBind = cb
	return a
}

// NotifyOnStop calls the callback after all the listeners are closed and the caches are
// released.
func (a *App) NotifyOnStop(cb func()) *App {
	a.hooks.OnStop = cb
	return a
}

// Serve binds all the listeners and blocks until the app is stopped.
func (a *App) Serve() error {
	if a.running.Swap(true) {
		return ErrAlreadyRunning
	}
	defer a.running.Store(false)

	routers := a.collectRouters()

	a.mu.Lock()
	store := a.store
	a.mu.Unlock()

	server := http.New(a.cfg, routers, store, a.log, a.metrics)

	if err := a.supervisor.Add(a.addr, transport.NewTCP(), server.Serve); err != nil {
		a.release()
		return fmt.Errorf("bind %s: %w", a.addr, err)
	}

	for _, l := range a.listeners {
		tlsCfg, err := l.tls()
		if err != nil {
			a.supervisor.Stop(false)
			a.release()
			return fmt.Errorf("tls %s: %w", l.addr, err)
		}

		if err = a.supervisor.Add(l.addr, transport.NewTLS(tlsCfg), server.Serve); err != nil {
			a.release()
			return fmt.Errorf("bind %s: %w", l.addr, err)
		}
	}

	a.log.WithFields(logrus.Fields{
		"action":  "serve",
		"addrs":   fmt.Sprint(a.supervisor.Addrs()),
		"routers": len(routers),
	}).Info("listening")
	callIfNotNil(a.hooks.OnBind)

	err := a.supervisor.Run(a.cfg.NET)
	if a.graceful.Swap(false) {
		a.supervisor.Stop(true)
	}

	a.release()
	callIfNotNil(a.hooks.OnStop)

	return err
}

func (a *App) collectRouters() []router.Router {
	routers := append([]router.Router(nil), a.routers...)
	for _, d := range a.deferred {
		if d.predicate != nil && !d.predicate(a) {
			continue
		}

		if r := d.constructor(a); r != nil {
			routers = append(routers, r)
		}
	}

	return routers
}

func (a *App) release() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.files != nil {
		a.files.Close()
	}

	if a.store != nil {
		if err := a.store.Destroy(); err != nil {
			a.log.WithField("action", "release").WithError(err).Warn("cannot flush the object store")
		}
	}
}

// Addrs returns the addresses the app is actually bound to. Empty until bound.
func (a *App) Addrs() []net.Addr {
	return a.supervisor.Addrs()
}

// Stop closes every listener and returns immediately. Serve returns as soon as the listeners
// are done, without waiting for open connections.
func (a *App) Stop() {
	a.supervisor.Stop(false)
}

// GracefulStop closes every listener too, but Serve waits until every open connection is
// done.
func (a *App) GracefulStop() {
	a.graceful.Store(true)
	a.supervisor.Stop(false)
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}
