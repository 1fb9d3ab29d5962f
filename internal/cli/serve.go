package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/florakb/florakb/pkg/api"
)

// shutdownTimeout bounds how long in-flight requests may run after SIGINT.
const shutdownTimeout = 10 * time.Second

// newServeCmd creates the serve command, which runs the HTTP API.
func newServeCmd(cfgPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the checklist over HTTP",
		Long: `Starts the REST API backed by the local database. Search and tree reads
go through the configured response cache; POST /import re-runs the full
import pipeline. Basic auth is enabled when api.user is set in the config.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			logger := loggerFromContext(ctx)

			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.API.Addr = addr
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			respCache := newCache(ctx, cfg, logger)
			defer respCache.Close()

			srv := api.NewServer(st, newRunner(cfg, st, logger), api.Options{
				Cache:    respCache,
				CacheTTL: cfg.Cache.TTL.Duration,
				User:     cfg.API.User,
				Password: cfg.API.Password,
				Logger:   logger,
			})

			httpSrv := &http.Server{
				Addr:              cfg.API.Addr,
				Handler:           srv,
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Infof("Listening on %s", cfg.API.Addr)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("Shutting down")
			shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpSrv.Shutdown(shutCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config, default :8000)")

	return cmd
}
