package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/library-lending/internal/config"
	"github.com/iliyamo/library-lending/internal/database"
	"github.com/iliyamo/library-lending/internal/handler"
	"github.com/iliyamo/library-lending/internal/lending"
	"github.com/iliyamo/library-lending/internal/middleware"
	"github.com/iliyamo/library-lending/internal/queue"
	"github.com/iliyamo/library-lending/internal/repository"
	"github.com/iliyamo/library-lending/internal/router"
	queue_publisher "github.com/iliyamo/library-lending/internal/service"
	"github.com/iliyamo/library-lending/internal/utils"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogFormat)
	slog.SetDefault(logger)

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("schema: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting and catalog cache disabled")
	} else {
		defer rdb.Close()
	}

	pub := queue_publisher.New(cfg.RabbitURL, logger)
	engine := lending.NewEngine(db, lending.WithPublisher(pub), lending.WithLogger(logger))
	catalog := lending.NewCatalog(db, engine.Ledger())
	history := lending.NewHistory(db, lending.SystemClock{})
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = utils.JSONSerializer{}
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLog(logger))
	e.Use(echomw.Secure())
	e.Use(echomw.Gzip())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	cacheCfg := config.LoadCacheConfig()
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)
	router.RegisterCatalog(e, handler.NewCatalogHandler(catalog), cfg.JWTSecret, cacheCfg, rdb)
	router.RegisterLending(e, handler.NewLendingHandler(engine), cfg.JWTSecret, cacheCfg, rdb)
	router.RegisterHistory(e, handler.NewHistoryHandler(history), cfg.JWTSecret)
	router.RegisterAdmin(e, handler.NewExportHandler(catalog, history), handler.NewUsersHandler(users, tokens), cfg.JWTSecret)

	if cfg.RabbitURL != "" {
		consumer := &queue.Consumer{URL: cfg.RabbitURL, LogDir: cfg.LogDir, Log: logger}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("loan-consumer stopped", "error", err)
			}
		}()
	} else {
		logger.Info("RABBITMQ_URL not set; loan events disabled")
	}

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "db", cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

// newLogger picks the slog handler named by LOG_FORMAT.
func newLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
