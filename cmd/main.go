package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pelusa-v/finder-chat/internal/auth"
	"github.com/pelusa-v/finder-chat/internal/chat"
	"github.com/pelusa-v/finder-chat/internal/config"
	"github.com/pelusa-v/finder-chat/internal/database"
	"github.com/pelusa-v/finder-chat/internal/handlers"
	"github.com/pelusa-v/finder-chat/internal/history"
	"github.com/pelusa-v/finder-chat/internal/item"
	"github.com/pelusa-v/finder-chat/internal/logger"
	"github.com/pelusa-v/finder-chat/internal/observability"
	"github.com/pelusa-v/finder-chat/internal/store"
)

type backends struct {
	items    item.Lookup
	messages store.Store
	ready    func(ctx context.Context) error
	close    func()
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("open backends")
	}
	defer b.close()

	messages := store.NewInstrumentedStore(b.messages)
	historyService := history.NewService(auth.NewVerifier(), b.items, messages, log)

	registry := chat.NewRegistry(log)

	var broadcaster chat.Broadcaster = registry
	if cfg.RelayEnabled() {
		relay, closeRelay, err := openRelay(ctx, cfg, registry, log)
		if err != nil {
			log.Fatal().Err(err).Msg("connect redis relay")
		}
		defer closeRelay()
		broadcaster = relay
	}

	engine := chat.NewEngine(registry, broadcaster, messages, historyService, chat.Options{
		MaxContentLength: cfg.MaxContentLength,
		RequireJoinAuth:  cfg.RequireJoinAuth,
	}, log)

	app := handlers.NewApp(handlers.Deps{
		Config:  cfg,
		Log:     log,
		Chat:    handlers.NewChatHandler(engine, registry, cfg.SendBufferSize),
		History: handlers.NewHistoryHandler(historyService, log),
		Ready:   b.ready,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Context cancelled, shutting down HTTP server")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}

	registry.Close()
	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout); err != nil {
		log.Error().Err(err).Msg("shutdown HTTP server")
	}
	log.Info().Msg("application exited cleanly")
}

func openBackends(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backends, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn().Msg("using in-memory stores; messages are lost on restart")
		return &backends{
			items:    item.NewInMemoryRepository(),
			messages: store.NewInMemoryStore(),
			close:    func() {},
		}, nil
	}

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		return nil, err
	}
	if err := store.AutoMigrate(ctx, db, log); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	return &backends{
		items:    item.NewPostgresRepository(db),
		messages: store.NewPostgresStore(db),
		ready: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		},
		close: func() {
			if err := database.Close(db); err != nil {
				log.Error().Err(err).Msg("close database")
			}
		},
	}, nil
}

func openRelay(ctx context.Context, cfg *config.Config, registry *chat.Registry, log zerolog.Logger) (*chat.RedisRelay, func(), error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	relay := chat.NewRedisRelay(client, cfg.RedisChannelPrefix, registry, log)
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error().Err(err).Msg("redis relay stopped")
		}
	}()
	return relay, func() { _ = client.Close() }, nil
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
