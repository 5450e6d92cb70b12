package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ahrav/shinise-scout/infrastructure/server"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if err := a.requirePlaces(); err != nil {
				return err
			}

			srv := server.New(server.Config{
				AllowedOrigins:      cfg.Server.AllowedOrigins,
				KeepAliveInterval:   cfg.Server.KeepAliveInterval,
				DispatchConcurrency: cfg.Dispatcher.Concurrency,
			}, server.Deps{
				Agents:   a.agents,
				Search:   a.pipeline,
				Shops:    a.shops,
				Reviews:  a.reviews,
				Course:   a.course,
				Photos:   a.places,
				Gatherer: a.registry,
				Log:      log,
				Metrics:  a.metrics,
			})

			errc := make(chan error, 1)
			go func() { errc <- srv.Start(cfg.Server.Address) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			log.Info("shutting down", map[string]any{"timeout": cfg.Server.ShutdownTimeout.String()})
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	return cmd
}
