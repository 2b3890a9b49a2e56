package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ortelius/ms-dep-pkg-cud/deppkg"
	"github.com/ortelius/ms-dep-pkg-cud/importer/safetydb"
	"github.com/ortelius/ms-dep-pkg-cud/server"
	"github.com/ortelius/ms-dep-pkg-cud/worker"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the BOM ingest endpoints",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	config := App().Config

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enricher, err := newEnricher(config, App().DB)
	if err != nil {
		return err
	}

	loader, err := safetydb.NewLoader(
		config.SafetyDB.Source,
		config.SafetyDB.URL,
		config.SafetyDB.Remote,
		config.SafetyDB.RepoPath,
		config.SafetyDB.Timeout.Duration,
	)
	if err != nil {
		return err
	}

	pool := worker.NewPool(ctx, config.Enrichment.Workers)
	srv := &server.Server{
		DB:        App().DB,
		Writer:    deppkg.NewWriter(App().DB, deppkg.NewRetryPolicy(config.Retry)),
		Auth:      server.ValidateUser{URL: config.ValidateUserURL},
		Snapshots: safetydb.NewCache(loader),
		Enricher:  enricher,
		Scheduler: pool,
	}

	httpServer := &http.Server{
		Addr:              config.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Listening", "addr", config.Listen, "service", deppkg.ServiceName)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = httpServer.Shutdown(shutdownCtx)
	if poolErr := pool.Shutdown(shutdownCtx); poolErr != nil {
		slog.Warn("background tasks cancelled", "err", poolErr)
	}
	return err
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
