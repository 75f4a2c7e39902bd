package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/skeptomenos/portfolio-prism-engine/internal/application"
	"github.com/skeptomenos/portfolio-prism-engine/internal/config"
	"github.com/skeptomenos/portfolio-prism-engine/internal/transport"
)

// runServe wires every dependency and runs the command loop until an
// interrupt signal arrives or the transport itself fails.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	brokerBin, _ := cmd.Flags().GetString("broker-bin")
	if brokerBin == "" {
		brokerBin = cfg.BrokerBinary
	}
	if brokerBin == "" {
		return fmt.Errorf("no broker binary configured: set PRISM_BROKER_BIN or pass --broker-bin")
	}

	w, err := wireDependencies(cfg, brokerBin)
	if err != nil {
		return fmt.Errorf("wire dependencies: %w", err)
	}
	defer func() {
		if err := w.store.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	table := application.NewTable(w.deps)

	useHTTP, _ := cmd.Flags().GetBool("http")
	bindAll, _ := cmd.Flags().GetBool("bind-all")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErr := make(chan error, 1)

	if useHTTP {
		httpCfg := transport.DefaultHTTPConfig(cfg.EchoToken)
		httpCfg.BindAll = bindAll
		server, err := transport.NewHTTP(httpCfg, table, w.events, w.pool.Handler())
		if err != nil {
			return fmt.Errorf("start http transport: %w", err)
		}
		log.Info().Str("addr", server.Addr()).Msg("serving command channel over HTTP/SSE")
		go func() {
			if err := server.Serve(ctx); err != nil {
				serverErr <- err
			}
		}()
	} else {
		stdio := transport.NewStdio(os.Stdin, os.Stdout, table)
		log.Info().Msg("serving command channel over stdio")
		go func() {
			if err := stdio.Run(ctx); err != nil {
				serverErr <- err
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		cancel()
		return fmt.Errorf("transport error: %w", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := w.deps.Registry.Pool().Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("worker pool shutdown")
	}
	if !useHTTP {
		log.Info().Interface("metrics", w.pool.Snapshot()).Msg("telemetry counters at shutdown")
	}

	log.Info().Msg("engine shutdown complete")
	return nil
}
