package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/knograph/knograph/pkg/knograph"
	"github.com/knograph/knograph/pkg/metrics"
	"github.com/knograph/knograph/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the knograph HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()

		collector := metrics.NewDefault()
		engine, cfg, err := buildEngine(logger, knograph.WithMetrics(collector))
		if err != nil {
			return err
		}
		defer engine.Close()

		// /metrics is exposed only when the metrics build tag selected the
		// Prometheus collector.
		promCollector, _ := collector.(*metrics.MetricsCollector)
		srv := &http.Server{
			Addr:    cfg.ListenAddr(),
			Handler: server.New(engine, version, promCollector),
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info("listening", slog.String("addr", srv.Addr))
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		}
	},
}
