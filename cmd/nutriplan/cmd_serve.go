package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nutriplan/internal/api"
	"nutriplan/internal/metrics"
	"nutriplan/internal/telegram"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		e, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer e.Close()
		warmUp(ctx, e)

		health := func() metrics.SysHealth { return metrics.GetSysHealth(cfg.DatabasePath) }
		srv := api.NewServer(api.NewHandler(e.app, e.metrics, health, cfg.DefaultDays, logger), logger)

		errCh := make(chan error, 1)
		go func() {
			logger.Info("API listening", zap.String("addr", cfg.HTTPAddr))
			if err := srv.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot",
	Long: `Runs the Telegram bot. With TELEGRAM_WEBHOOK_URL set it serves the
webhook on HTTP_ADDR; otherwise it long-polls.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		e, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer e.Close()
		warmUp(ctx, e)

		health := func() metrics.SysHealth { return metrics.GetSysHealth(cfg.DatabasePath) }
		bot, err := telegram.NewBot(cfg, e.app, e.metrics, health, logger)
		if err != nil {
			return err
		}

		if cfg.TelegramWebhookURL == "" {
			logger.Info("Bot polling for updates")
			bot.Poll(ctx)
			return nil
		}

		go bot.SweepSessions(ctx, telegram.SessionSweepInterval)

		mux := http.NewServeMux()
		bot.RegisterHandlers(mux)
		srv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("Telegram webhook listening", zap.String("addr", cfg.HTTPAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
		bot.Wait()
		return err
	},
}

// warmUp refreshes the catalogue and history; failures leave cached state.
func warmUp(ctx context.Context, e *env) {
	if _, err := e.app.SyncCatalogue(ctx); err != nil {
		logger.Warn("Initial catalogue sync failed, serving cached dishes",
			zap.Int("cached", len(e.app.Catalogue())),
			zap.Error(err))
	}
	_, _ = e.app.RefreshHistory(ctx)
}
