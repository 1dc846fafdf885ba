package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cometbft/cometbft/abci/server"
	"github.com/rs/zerolog"

	"tablechain/internal/app"
)

func main() {
	var (
		home      = flag.String("home", ".tablechain", "app home directory (state will be stored under <home>/app)")
		addr      = flag.String("addr", "tcp://127.0.0.1:26658", "ABCI listen address")
		transport = flag.String("transport", "socket", "ABCI transport (socket|grpc)")
		pretty    = flag.Bool("pretty", false, "human-readable log output")
	)
	flag.Parse()

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if *pretty {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	a, err := app.New(*home)
	if err != nil {
		log.Fatal().Err(err).Str("home", *home).Msg("init app")
	}

	srv, err := server.NewServer(*addr, *transport, a)
	if err != nil {
		log.Fatal().Err(err).Str("addr", *addr).Msg("create abci server")
	}
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("start abci server")
	}
	defer func() { _ = srv.Stop() }()

	log.Info().Str("addr", *addr).Str("transport", *transport).Str("home", *home).Msg("tablechain node up")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")
}
