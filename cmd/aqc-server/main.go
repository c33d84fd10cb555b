package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/navikt/asset-query-converter/pkg/config"
	"github.com/navikt/asset-query-converter/pkg/converter"
	"github.com/navikt/asset-query-converter/pkg/handlers"
	"github.com/navikt/asset-query-converter/pkg/requestlogger"
	"github.com/navikt/asset-query-converter/pkg/routes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

var (
	configFilePath = flag.String("config", "", "path to config file, defaults are used when empty")
	printRoutes    = flag.Bool("print-routes", false, "print the routes and exit")
)

const shutdownTimeout = 5 * time.Second

func main() {
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	var name, path string

	if *configFilePath != "" {
		fileParts, err := config.ProcessConfigPath(*configFilePath)
		if err != nil {
			log.Fatal().Err(err).Msg("processing config path")
		}

		name, path = fileParts.FileName, fileParts.Path
	}

	cfg, err := config.NewFileSystemLoader().Load(name, path, "AQC", config.NewDefaultEnvBinder())
	if err != nil {
		log.Fatal().Err(err).Msg("loading config")
	}

	err = cfg.Validate()
	if err != nil {
		log.Fatal().Err(err).Msg("validating config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("parsing log level")
	}

	log = log.Level(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	metrics := handlers.NewMetrics()
	h := handlers.NewHandlers(converter.New(converter.WireRegistry()), metrics)

	router := chi.NewRouter()
	router.Use(requestlogger.Middleware(log, "/internal/metrics", "/internal/health"))

	routes.Add(router,
		routes.NewConvertRoutes(routes.NewConvertEndpoints(log, h.ConvertHandler)),
		routes.NewHealthRoutes(routes.NewHealthEndpoints(log, h.HealthHandler)),
		routes.NewMetricsRoutes(routes.NewMetricsEndpoints(prom(metrics.Collectors()...))),
	)

	if *printRoutes {
		err = routes.Print(router, os.Stdout)
		if err != nil {
			log.Fatal().Err(err).Msg("printing routes")
		}

		return
	}

	server := http.Server{
		Addr:              cfg.Server.ListenAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msgf("Listening on %s", server.Addr)

		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("serving")
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	err = server.Shutdown(shutdownCtx)
	if err != nil {
		log.Warn().Err(err).Msg("Shutdown error")
	}
}

func prom(cols ...prometheus.Collector) *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewGoCollector())
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(cols...)

	return r
}
