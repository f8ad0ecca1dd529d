package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/cheese-chess-web/internal/adapter/chesspresenter"
	"github.com/park285/cheese-chess-web/internal/archive"
	appcfg "github.com/park285/cheese-chess-web/internal/config"
	"github.com/park285/cheese-chess-web/internal/domain"
	"github.com/park285/cheese-chess-web/internal/httpapi"
	"github.com/park285/cheese-chess-web/internal/msgcat"
	"github.com/park285/cheese-chess-web/internal/obslog"
	"github.com/park285/cheese-chess-web/internal/opponent"
	"github.com/park285/cheese-chess-web/internal/opponent/uci"
	"github.com/park285/cheese-chess-web/internal/render"
	"github.com/park285/cheese-chess-web/internal/rules"
	"github.com/park285/cheese-chess-web/internal/session"
	"github.com/park285/cheese-chess-web/internal/settings"
)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("chess_web_exit", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *appcfg.AppConfig, logger *zap.Logger) error {
	if cfg.MessagesDir != "" {
		cat, err := msgcat.New(cfg.MessagesDir)
		if err != nil {
			return fmt.Errorf("load messages: %w", err)
		}
		chesspresenter.UseCatalog(cat)
	}

	engine := rules.NewEngine(logger.Named("rules"))

	opp, closeOpponent, err := buildOpponent(cfg, logger)
	if err != nil {
		return err
	}
	defer closeOpponent()

	store, rdb, err := buildSettingsStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	repo, db, err := buildArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() { _ = db.Close() }()
	}
	archiver := archive.NewArchiver(repo, logger.Named("archive"))

	sessionLogger := logger.Named("session")
	registry, err := session.NewRegistry(session.RegistryConfig{
		Factory: func(playerID string, s domain.Settings) (*session.Controller, error) {
			return session.NewController(session.Config{
				PlayerID:        playerID,
				Rules:           engine,
				Opponent:        opp,
				Recorder:        archiver,
				Logger:          sessionLogger.With(zap.String("player", playerID)),
				OpponentTimeout: cfg.OpponentTimeout,
			}, s)
		},
		Settings: store,
		TTL:      cfg.SessionTTL,
		Max:      cfg.MaxSessions,
		Logger:   sessionLogger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = registry.Close() }()
	go registry.Run(ctx, sweepInterval)

	handler, err := httpapi.NewHandler(httpapi.Config{
		Sessions:     registry,
		Settings:     store,
		Archive:      archiver,
		Presenter:    chesspresenter.NewPresenter(render.NewRenderer(cfg.BoardSquareSize), logger.Named("presenter")),
		Logger:       logger.Named("http"),
		StaticDir:    cfg.StaticDir,
		SecureCookie: cfg.SecureCookie,
	})
	if err != nil {
		return err
	}
	srv, err := httpapi.NewServer(cfg.HTTPAddr, handler, logger.Named("http"))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	logger.Info("chess_web_started",
		zap.String("addr", srv.Addr()),
		zap.String("opponent_mode", cfg.OpponentMode),
		zap.Bool("redis", rdb != nil),
		zap.Bool("postgres", db != nil),
	)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("chess_web_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func buildOpponent(cfg *appcfg.AppConfig, logger *zap.Logger) (opponent.Client, func(), error) {
	if cfg.OpponentMode != appcfg.OpponentModeUCI {
		headers := func() map[string]string {
			h := map[string]string{}
			if cfg.OpponentAPIKey != "" {
				h["X-API-Key"] = cfg.OpponentAPIKey
			}
			return h
		}
		client := opponent.NewHTTPClient(cfg.OpponentURL,
			opponent.WithTimeout(cfg.OpponentTimeout),
			opponent.WithRetry(cfg.OpponentRetry),
			opponent.WithHeaderProvider(headers),
			opponent.WithLogger(logger.Named("opponent")),
		)
		return client, func() {}, nil
	}

	pool, err := uci.NewPool(uci.PoolConfig{
		BinaryPath:         cfg.StockfishPath,
		PerOptionsCapacity: cfg.StockfishPoolSize,
		Logger:             logger.Named("uci"),
	})
	if err != nil {
		return nil, nil, err
	}
	opts := []opponent.LocalOption{opponent.WithLocalLogger(logger.Named("opponent"))}
	if cfg.PolyglotBookPath != "" {
		book, err := opponent.LoadBook(cfg.PolyglotBookPath)
		if err != nil {
			logger.Warn("opening_book_unavailable", zap.String("path", cfg.PolyglotBookPath), zap.Error(err))
		} else {
			opts = append(opts, opponent.WithBook(book))
		}
	}
	client, err := opponent.NewLocalClient(pool, opts...)
	if err != nil {
		_ = pool.Close()
		return nil, nil, err
	}
	return client, func() { _ = pool.Close() }, nil
}

func buildSettingsStore(ctx context.Context, cfg *appcfg.AppConfig, logger *zap.Logger) (settings.Store, *redis.Client, error) {
	if cfg.RedisURL == "" {
		logger.Info("settings_store_memory")
		return settings.NewMemoryStore(cfg.DefaultSettings), nil, nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rdb, err := settings.NewClient(pingCtx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return settings.NewRedisStore(rdb, cfg.DefaultSettings, 0, logger.Named("settings")), rdb, nil
}

func buildArchive(ctx context.Context, cfg *appcfg.AppConfig, logger *zap.Logger) (archive.Repository, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("archive_store_memory")
		return archive.NewMemoryRepository(), nil, nil
	}
	db, err := archive.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := archive.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("archive migrate: %w", err)
	}
	return archive.NewPostgresRepository(db), db, nil
}
