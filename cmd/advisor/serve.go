// cmd/advisor/serve.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"immigration-advisor/internal/common/auth"
	"immigration-advisor/internal/common/config"
	"immigration-advisor/internal/server"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the advisor HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	tokens, err := auth.NewValidator(a.cfg.Auth)
	if err != nil {
		return err
	}

	srv := server.New(a.cfg.Server, version, a.advisor, tokens, a.checks, a.log)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("advisor API listening", map[string]interface{}{"addr": a.cfg.Server.Addr()})
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.log.Info("shutdown signal received", map[string]interface{}{"signal": sig.String()})
	case err, ok := <-errCh:
		if ok && err != nil {
			a.log.Error("server failed", map[string]interface{}{"error": err.Error()})
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(a.cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
		return err
	}
	a.log.Info("advisor API stopped", nil)
	return nil
}
