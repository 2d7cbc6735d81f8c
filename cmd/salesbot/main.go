package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"golang.org/x/sync/errgroup"

	"github.com/salesbot/salesbot/internal/api"
	"github.com/salesbot/salesbot/internal/config"
	"github.com/salesbot/salesbot/internal/observability"
	"github.com/salesbot/salesbot/internal/slackbot"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv("salesbot")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)
	if err := cfg.Slack.Credentials(); err != nil {
		logger.Error("invalid slack credentials", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open sales store", slog.String("driver", cfg.Store.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()
	logger.Info("sales store connected", slog.String("driver", cfg.Store.Driver))

	pipeline, err := buildPipeline(cfg, store.Executor, logger)
	if err != nil {
		logger.Error("failed to build conversation pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	// Questions outlive the signal context so in-flight answers can finish
	// during shutdown.
	workCtx, cancelWork := context.WithCancel(context.Background())
	defer cancelWork()

	var (
		bot          *slackbot.Bot
		socketClient *socketmode.Client
		slackEvents  http.Handler
	)
	if cfg.Slack.Mode != config.SlackModeOff {
		client := slack.New(cfg.Slack.BotToken, slack.OptionAppLevelToken(cfg.Slack.AppToken))
		authCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		identity, err := client.AuthTestContext(authCtx)
		cancel()
		if err != nil {
			logger.Error("slack auth test failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("slack identity resolved", slog.String("bot_user_id", identity.UserID), slog.String("team", identity.Team))

		bot = slackbot.New(client, pipeline.Handler, slackbot.Options{
			BotUserID:          identity.UserID,
			HealthCommand:      cfg.Slack.HealthCommand,
			RateLimitPerMinute: cfg.Slack.RateLimitPerMinute,
			DedupTTL:           cfg.Slack.DedupTTL,
			Logger:             logger,
		})
		bot.Start(workCtx)

		switch cfg.Slack.Mode {
		case config.SlackModeSocket:
			socketClient = socketmode.New(client)
		case config.SlackModeHTTP:
			slackEvents = bot.HTTPHandler(cfg.Slack.SigningSecret)
		}
	}

	server := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: api.NewHandler(cfg, api.Dependencies{
			Logger:            logger,
			Readiness:         api.CombineReadinessChecks(api.CheckStoreDSN(cfg), api.CheckObjectStoreConfig(cfg), store.Executor.Ping),
			DependencyTimeout: 2 * time.Second,
			Answerer:          pipeline.Handler,
			History:           pipeline.History,
			SlackEvents:       slackEvents,
		}),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting admin server", slog.String("addr", cfg.HTTP.Address), slog.String("slack_mode", cfg.Slack.Mode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if socketClient != nil {
		group.Go(func() error {
			if err := bot.RunSocketMode(groupCtx, socketClient); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Slack.ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down")
		if bot != nil {
			if err := bot.Shutdown(shutdownCtx); err != nil {
				logger.Warn("slack bot shutdown incomplete", slog.Any("error", err))
			}
		}
		cancelWork()
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("salesbot stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("salesbot stopped")
}
