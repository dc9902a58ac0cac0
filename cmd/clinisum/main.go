package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"clinisum/internal/bot"
	"clinisum/internal/config"
	"clinisum/internal/health"
	"clinisum/internal/provider"
	"clinisum/internal/reference"
	"clinisum/internal/server"
	"clinisum/internal/summarizer"
	"clinisum/internal/tokens"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.WarnContext(ctx, "Failed to load .env file",
			"error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)

	counter, err := tokens.NewCounter(cfg.TokenizerFiles)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize token counter",
			"error", err,
			"tokenizerFilesCount", len(cfg.TokenizerFiles))

		return
	}

	// Probe the tokenizer once so an unsupported model fails at startup.
	if _, err = counter.Count("", cfg.CompletionModel); err != nil {
		log.ErrorContext(ctx, "Completion model has no tokenizer",
			"error", err,
			"model", cfg.CompletionModel)

		return
	}
	log.InfoContext(ctx, "Token counter is initialized",
		"model", cfg.CompletionModel)

	client, err := provider.NewOpenAI(provider.Config{
		APIKey:          cfg.OpenAIAPIKey,
		BaseURL:         cfg.OpenAIBaseURL,
		CompletionModel: cfg.CompletionModel,
		EmbeddingModel:  cfg.EmbeddingModel,
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize provider",
			"error", err)

		return
	}
	log.InfoContext(ctx, "Provider is initialized",
		"completionModel", cfg.CompletionModel,
		"embeddingModel", cfg.EmbeddingModel,
		"customBaseURL", cfg.OpenAIBaseURL != "")

	pipeline := summarizer.NewPipeline(
		client,
		counter,
		reference.NewMatcher(client, log),
		summarizer.Options{
			Model:           cfg.CompletionModel,
			MaxModelContext: cfg.MaxModelContext,
			SafetyBuffer:    cfg.TokenSafetyBuffer,
			MinOutputTokens: cfg.MinOutputTokens,
			Temperature:     cfg.Temperature,
			Threshold:       cfg.ReferenceThreshold,
		},
		log,
	)

	monitor := health.New(ctx, client, cfg.HealthCheckSpec, log)
	if err = monitor.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start health monitor",
			"error", err,
			"spec", cfg.HealthCheckSpec)

		return
	}
	defer monitor.Stop()
	log.InfoContext(ctx, "Health monitor is started",
		"spec", cfg.HealthCheckSpec)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.New(pipeline, monitor.Status, cfg.RequestTimeout, log).Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.RequestTimeout + readHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()
	log.InfoContext(ctx, "HTTP server is started",
		"addr", cfg.HTTPAddr,
		"requestTimeoutSeconds", cfg.RequestTimeout.Seconds())

	var botInst *bot.Bot
	if cfg.TelegramToken != "" {
		botInst, err = bot.New(cfg.TelegramToken, pipeline, cfg.AllowedUsers, log)
		if err != nil {
			log.ErrorContext(ctx, "Failed to initialize bot",
				"error", err,
				"allowedUsersCount", len(cfg.AllowedUsers))

			return
		}

		go botInst.Start(ctx)
		log.InfoContext(ctx, "Bot is started",
			"allowedUsersCount", len(cfg.AllowedUsers),
			"updateTimeoutSeconds", bot.BotUpdateTimeout)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case err = <-serverErr:
		log.ErrorContext(ctx, "HTTP server is stopped unexpectedly",
			"error", err,
			"addr", cfg.HTTPAddr)
	}
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err = srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorContext(shutdownCtx, "Failed to shut down HTTP server",
			"error", err)
	}
	log.InfoContext(ctx, "HTTP server is stopped",
		"uptimeSeconds", time.Since(start).Seconds())

	if botInst != nil {
		botInst.Stop()
		log.InfoContext(ctx, "Bot is stopped",
			"uptimeSeconds", time.Since(start).Seconds())
	}
}
