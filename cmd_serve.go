package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"wingspan/pkg/config"
	"wingspan/pkg/handlers"
	"wingspan/pkg/services"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the public site and the editor backend",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.CheckSessionSecret(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	nav, err := config.LoadNavigation()
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	media, err := newMediaStore(ctx, cfg.Media)
	if err != nil {
		return err
	}

	srv := &handlers.Server{
		Config:   cfg,
		Nav:      nav,
		Articles: a.articles,
		Users:    a.users,
		Theme:    a.theme,
		Home:     a.home,
		Media:    media,
		Logger:   logger,
	}
	if cfg.GitHubEnabled() {
		srv.OAuth = cfg.OAuth()
	} else {
		logger.Info("GitHub login disabled")
	}

	router, err := handlers.NewRouter(srv)
	if err != nil {
		return err
	}

	scheduler := services.NewScheduler(a.home, cfg.Cache.RefreshCron, logger)
	if err := scheduler.Start(); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", httpServer.Addr), zap.String("app_url", cfg.AppURL))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			scheduler.Stop(context.Background())
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
		return err
	}
	return nil
}
