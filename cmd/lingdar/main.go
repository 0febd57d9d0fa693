// Command lingdar serves a directory of static files, accepts multipart uploads and exposes
// the metrics, wired the way a typical deployment does it.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/klauspost/compress/gzip"
	"github.com/lingdar-web/lingdar"
	"github.com/lingdar-web/lingdar/config"
	"github.com/lingdar-web/lingdar/internal/logging"
	"github.com/lingdar-web/lingdar/router"
	"github.com/lingdar-web/lingdar/router/cors"
	"github.com/lingdar-web/lingdar/router/limiter"
	"github.com/lingdar-web/lingdar/router/recorder"
	"github.com/lingdar-web/lingdar/router/static"
	"github.com/lingdar-web/lingdar/router/upload"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load(".env")

	var (
		addr       = flag.String("addr", envOr("LINGDAR_ADDR", "localhost:8080"), "address to listen on")
		cfgPath    = flag.String("config", os.Getenv("LINGDAR_CONFIG"), "path to the config file")
		root       = flag.String("root", envOr("LINGDAR_ROOT", "./static"), "directory to serve")
		httpsPort  = flag.Uint("https", 0, "serve HTTPS on the port with an auto-obtained certificate")
		rps        = flag.Float64("rps", 20, "requests per second allowed per client, 0 disables limiting")
		recordFile = flag.String("record", "", "file to record requests into, stdout if empty")
	)
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("cannot load the config")
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		logrus.WithError(err).Fatal("cannot set up the logger")
	}

	recordCfg := cfg.Log
	recordCfg.File = *recordFile
	rec, err := recorder.NewFile(recordCfg)
	if err != nil {
		log.WithError(err).Fatal("cannot open the records file")
	}
	defer func() {
		_ = rec.Close()
	}()

	app := lingdar.New(*addr).Tune(cfg).Logger(log)
	store, err := app.ObjectStore()
	if err != nil {
		log.WithError(err).Fatal("cannot open the object store")
	}

	app.Route(
		cors.New(),
		rec,
		static.New("/*", *root).
			Configure(cfg.Static).
			FileCache(app.FileCache()).
			Filter(static.Gzip(gzip.DefaultCompression, ".html", ".css", ".js", ".json", ".svg", ".txt")),
		upload.New("/upload", store, log),
	).ExposeMetrics("/metrics")

	app.RouteIf(func(*lingdar.App) bool {
		return *rps > 0
	}, func(*lingdar.App) router.Router {
		return limiter.New("/*", *rps, int(*rps*2))
	})

	if *httpsPort != 0 {
		app.AutoHTTPS(uint16(*httpsPort))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Info("shutting down")
		app.GracefulStop()
	}()

	if err = app.Serve(); err != nil {
		log.WithError(err).Fatal("stopped unexpectedly")
	}
}

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}
