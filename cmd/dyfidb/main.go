// Command dyfidb builds the DYFI Induced Events Database: the collated event
// list and the aggregated intensity products of each event.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/dyfi-induced-db/internal/adapter/http"
	"github.com/couchcryptid/dyfi-induced-db/internal/config"
	"github.com/couchcryptid/dyfi-induced-db/internal/observability"
	"github.com/couchcryptid/dyfi-induced-db/internal/pipeline"
)

// app carries what every subcommand needs once config is loaded.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
}

// processMetrics registers the collectors once per process.
var processMetrics = sync.OnceValue(observability.NewMetrics)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("dyfidb failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "dyfidb",
		Short:         "Build the DYFI Induced Events Database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	root.AddCommand(
		newEventsCmd(a),
		newAggregatedCmd(a),
		newXYCmd(a),
		newCountCmd(a),
		newValidateCmd(a),
		newGenmockCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = observability.NewLogger(cfg)
	a.metrics = processMetrics()
	return nil
}

func (a *app) settings() pipeline.Settings {
	return pipeline.Settings{
		Tolerances:      a.cfg.Tolerances,
		Workers:         a.cfg.Workers,
		ProgressEvery:   a.cfg.ProgressEvery,
		MalformedPolicy: a.cfg.MalformedPolicy,
	}
}

// serve runs fn with the health/metrics server up when HTTP_ADDR is set, and
// drains the server afterwards.
func (a *app) serve(ctx context.Context, p *pipeline.Pipeline, fn func(context.Context) error) error {
	if a.cfg.HTTPAddr == "" {
		return fn(ctx)
	}

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, p, p, a.logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()

	runErr := fn(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", "error", err)
	}
	return runErr
}
