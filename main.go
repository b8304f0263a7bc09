package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	sentry "github.com/getsentry/sentry-go"
	telego "github.com/mymmrac/telego"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"tgallery/internal/auth"
	"tgallery/internal/config"
	"tgallery/internal/ingest"
	"tgallery/internal/locales"
	"tgallery/internal/media"
	"tgallery/internal/moderation"
	"tgallery/internal/storage"
	"tgallery/internal/sweep"
	"tgallery/internal/web"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize localization bundle
	locales.Init(cfg.DefaultLanguage)

	// Initialize Sentry (if DSN is provided)
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.Version,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Open SQLite storage and run migrations
	store, err := storage.Open(filepath.Join(cfg.DataDir, "gallery.db"), logger)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing storage: %v", err)
		}
	}()

	// Creating context for application lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Bot Initialization ---
	var bot *telego.Bot
	if cfg.Debug {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	}
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create telego bot: %v", err)
	}

	adminChecker, err := auth.NewAdminChecker(bot, cfg.ChannelID)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create admin checker: %v", err)
	}

	fetcher, err := media.NewFetcher(bot, filepath.Join(cfg.DataDir, "uploads"), logger)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create media fetcher: %v", err)
	}

	manager, err := moderation.NewManager(moderation.Deps{
		Bot:            bot,
		Posts:          store.Posts,
		Settings:       store.Settings,
		Blacklist:      store.Blacklist,
		AdminChecker:   adminChecker,
		ChannelID:      cfg.ChannelID,
		AdminChatID:    cfg.AdminChatID,
		ResyncPageSize: cfg.ResyncPageSize,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create moderation manager: %v", err)
	}

	processor, err := ingest.NewProcessor(store.Posts, store.Blacklist, fetcher, manager, cfg.ChannelID)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create ingest processor: %v", err)
	}
	manager.SetIngestor(processor)

	dispatcher, err := ingest.NewDispatcher(processor, manager, cfg.ChannelID)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create update dispatcher: %v", err)
	}

	server, err := web.NewServer(web.Deps{
		Store:      store,
		Dispatcher: dispatcher,
		Logger:     logger,
		AdminKey:   cfg.AdminKey,
		UploadDir:  filepath.Join(cfg.DataDir, "uploads"),
		Debug:      cfg.Debug,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create HTTP server: %v", err)
	}

	registerBotCommands(ctx, bot)
	registerWebhook(ctx, bot, cfg.BaseURL)

	// Periodic origin sweep
	sweeper, err := sweep.NewSweeper(bot, store.Posts, cfg.ChannelID, cfg.AdminChatID, logger)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create sweeper: %v", err)
	}
	scheduler := cron.New()
	scheduler.Schedule(cron.Every(cfg.SweepInterval), cron.FuncJob(func() {
		if _, err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Origin sweep failed", zap.Error(err))
			sentry.CaptureException(err)
		}
	}))
	scheduler.Start()
	defer scheduler.Stop()

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Handler(),
	}
	go func() {
		log.Printf("HTTP server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sentry.CaptureException(err)
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for context cancellation (e.g., SIGINT, SIGTERM)
	<-ctx.Done()

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	log.Println("Shutdown complete.")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// registerBotCommands publishes the slash-command menu. Best effort.
func registerBotCommands(ctx context.Context, bot *telego.Bot) {
	err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: []telego.BotCommand{
			{Command: "start", Description: "About this bot"},
			{Command: "help", Description: "How to submit content"},
			{Command: "notice", Description: "Set the gallery notice banner (admin)"},
			{Command: "annotate", Description: "Annotate a post (admin)"},
			{Command: "delete", Description: "Delete a post (admin)"},
			{Command: "block", Description: "Block a submitter (admin)"},
			{Command: "resync", Description: "Re-sync recent channel history (admin)"},
		},
	})
	if err != nil {
		log.Printf("Failed to register bot commands: %v", err)
	}
}

// registerWebhook points the provider at our public webhook endpoint. Skipped
// when no public base URL is configured (e.g. local development behind a
// manually registered tunnel).
func registerWebhook(ctx context.Context, bot *telego.Bot, baseURL string) {
	if baseURL == "" {
		return
	}
	err := bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:                strings.TrimRight(baseURL, "/") + "/webhook",
		AllowedUpdates:     []string{"message", "edited_message", "channel_post", "edited_channel_post", "callback_query"},
		DropPendingUpdates: false,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Printf("Failed to register webhook: %v", err)
	}
}
