package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Kerhoff/wishfund/internal/api"
	"github.com/Kerhoff/wishfund/internal/config"
	"github.com/Kerhoff/wishfund/internal/handlers"
	"github.com/Kerhoff/wishfund/internal/identity"
	"github.com/Kerhoff/wishfund/internal/idempotency"
	"github.com/Kerhoff/wishfund/internal/models"
	"github.com/Kerhoff/wishfund/internal/notify"
	"github.com/Kerhoff/wishfund/internal/realtime"
	"github.com/Kerhoff/wishfund/internal/repository"
	"github.com/Kerhoff/wishfund/internal/repository/memory"
	"github.com/Kerhoff/wishfund/internal/repository/postgres"
	"github.com/Kerhoff/wishfund/internal/service"
	"github.com/Kerhoff/wishfund/internal/telegram"
	"github.com/Kerhoff/wishfund/pkg/logger"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("demo", false, "Seed a demo wishlist into the memory store")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the realtime hub and the Telegram bot",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	demo, _ := cmd.Flags().GetBool("demo")

	l := logger.New(cfg.LogLevel)
	l.Info("Starting wishfund...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := realtime.NewHub(l)

	// Storage
	var (
		users      repository.UserRepository
		wishlists  repository.WishlistRepository
		activity   repository.ActivityRepository
		ledgerRepo repository.LedgerRepository
	)
	switch cfg.StoreDriver {
	case config.StoreMemory:
		store := memory.New()
		if demo {
			seedDemo(store, l)
		}
		users, wishlists, activity, ledgerRepo = store.Users(), store.Wishlists(), store.Activity(), store.Ledger()
		l.Warn("Using the in-memory store; data is lost on exit")
	default:
		db, err := config.NewDatabase(cfg.DatabaseURL, l)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if err := db.Migrate(cfg.MigrationsPath); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		users = postgres.NewUserRepository(db.DB)
		wishlists = postgres.NewWishlistRepository(db.DB)
		activity = postgres.NewActivityRepository(db.DB)
		ledgerRepo = postgres.NewLedgerRepository(db.DB, l)
	}

	// Idempotency keys
	var idem idempotency.Store = idempotency.NewMemoryStore()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		idem = idempotency.NewRedisStore(client)
		l.WithField("addr", cfg.RedisAddr).Info("Idempotency keys stored in redis")
	}

	// Notifications and the Telegram bot
	channels := notify.Fanout{notify.NewLogDispatcher(l)}
	var bot *telegram.Bot
	if cfg.TelegramToken != "" {
		bot, err = telegram.NewBot(cfg.TelegramToken, l)
		if err != nil {
			return fmt.Errorf("failed to create Telegram bot: %w", err)
		}
		channels = append(channels, notify.NewTelegramDispatcher(bot, users, cfg.PublicBaseURL))
	} else {
		l.Warn("TELEGRAM_TOKEN is not set; the bot is disabled")
	}
	queue := notify.NewQueue(channels, cfg.NotifyQueueSize, l)

	svc := service.New(l, users, wishlists, activity, ledgerRepo, queue, hub)
	if bot != nil {
		registerCommands(bot, svc, l)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		queue.Run(ctx)
	}()

	if bot != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot.Start(ctx); err != nil {
				l.Errorf("Bot error: %v", err)
			}
		}()
	}

	// HTTP servers
	resolver := identity.NewResolver(cfg.JWTSecret)
	apiServer := api.NewServer(svc, resolver, hub, idem, cfg.IdempotencyTTL, l)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.PrometheusPort,
		Handler:           metricsRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 2)
	for _, srv := range []*http.Server{httpServer, metricsServer} {
		go func(srv *http.Server) {
			l.Infof("HTTP server listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- fmt.Errorf("server on %s: %w", srv.Addr, err)
			}
		}(srv)
	}

	l.Info("wishfund started successfully")

	var runErr error
	select {
	case <-ctx.Done():
		l.Info("Received shutdown signal...")
	case runErr = <-serveErr:
		l.WithError(runErr).Error("HTTP server failed")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	l.Info("Shutting down HTTP servers...")
	for _, srv := range []*http.Server{httpServer, metricsServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			l.WithError(err).Warn("Graceful shutdown failed")
		}
	}

	wg.Wait()
	l.Info("wishfund stopped")
	return runErr
}

func registerCommands(bot *telegram.Bot, svc *service.Service, l *logrus.Logger) {
	bot.RegisterCommand("start", handlers.NewStartHandler(l))
	bot.RegisterCommand("help", handlers.NewHelpHandler(l))

	bot.RegisterCommand("newlist", handlers.NewNewListHandler(svc, l))
	bot.RegisterCommand("wishlist", handlers.NewWishlistHandler(svc, l))
	bot.RegisterCommand("fund", handlers.NewFundHandler(svc, l))
	bot.RegisterCommand("remove", handlers.NewRemoveHandler(svc, l))
	bot.RegisterCommand("reserve", handlers.NewReserveHandler(svc, l))
	bot.RegisterCommand("unreserve", handlers.NewUnreserveHandler(svc, l))
	bot.RegisterCommand("take", handlers.NewTakeHandler(svc, l))
	bot.RegisterCommand("release", handlers.NewReleaseHandler(svc, l))
	bot.RegisterCommand("activity", handlers.NewActivityHandler(svc, l))
}

// seedDemo fills an empty memory store with a public wishlist
func seedDemo(store *memory.Store, l *logrus.Logger) {
	owner := store.AddUser(models.User{Username: "demo", DisplayName: "Demo"})
	list := store.AddWishlist(models.Wishlist{OwnerID: owner.ID, Title: "Demo birthday", Slug: "demo", IsPublic: true})
	for _, item := range []struct {
		title    string
		target   int64
		priority models.Priority
	}{
		{"Bicycle", 30000, models.PriorityHigh},
		{"Headphones", 12000, models.PriorityMedium},
		{"Book", 1500, models.PriorityLow},
	} {
		store.AddItem(models.WishlistItem{
			WishlistID:  list.ID,
			Title:       item.title,
			ProductURL:  "https://example.com/" + item.title,
			TargetPrice: decimal.NewFromInt(item.target),
			Priority:    item.priority,
		})
	}
	l.WithFields(logrus.Fields{"slug": list.Slug, "owner_id": owner.ID}).Info("Seeded demo wishlist")
}
