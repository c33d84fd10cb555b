package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/bigquery-emulator/server"
	"github.com/navikt/asset-query-converter/pkg/bq/emulator"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
)

var (
	projectID = flag.String("project", "test", "project id")
	dataYAML  = flag.String("data", "", "data yaml file")
	port      = flag.String("port", "9050", "http port")
	grpcPort  = flag.String("grpc-port", "9060", "grpc port")
	debug     = flag.Bool("debug", false, "dump every request to the log")
)

func main() {
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if *dataYAML == "" {
		log.Fatal().Msg("--data is required")
	}

	log.Info().Msg("Starting big query emulator")

	e, err := emulator.New(log)
	if err != nil {
		log.Fatal().Err(err).Msg("creating big query emulator")
	}
	defer e.Cleanup()

	err = e.WithSource(*projectID, server.YAMLSource(*dataYAML))
	if err != nil {
		log.Fatal().Err(err).Msg("loading data")
	}

	e.EnableMock(*debug)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		log.Info().Msgf("Big query emulator started on %s", *port)

		err := e.Serve(ctx, "0.0.0.0:"+*port, "0.0.0.0:"+*grpcPort)
		if err != nil {
			log.Error().Err(err).Msg("serving big query emulator")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down big query emulator")
}
