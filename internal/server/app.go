// Package server wires the listing service together: database, object
// storage, URL signing, optional cache and event broker, and the HTTP
// endpoint, with graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/swapwithus/listing-service/internal/logging"
	"github.com/swapwithus/listing-service/internal/server/cache"
	"github.com/swapwithus/listing-service/internal/server/config"
	"github.com/swapwithus/listing-service/internal/server/events"
	"github.com/swapwithus/listing-service/internal/server/httpapi"
	"github.com/swapwithus/listing-service/internal/server/repositories/repomanager"
	"github.com/swapwithus/listing-service/internal/server/services"
	"github.com/swapwithus/listing-service/internal/signing"
	"github.com/swapwithus/listing-service/internal/storage"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger

	db     *sql.DB
	rm     repomanager.RepositoryManager
	router *echo.Echo
	broker *events.Publisher
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger()

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	// A bad signing key must stop the process here: a feed served without
	// working signatures would be a feed of dead image links.
	signer, err := signing.New(c.CDNKeyName, c.CDNKeySecret)
	if err != nil {
		return nil, fmt.Errorf("cdn signing init error: %w", err)
	}

	store, err := storage.NewGateway(ctx, storage.Options{
		Region:       c.S3Region,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		Bucket:       c.S3Bucket,
		BaseEndpoint: c.S3BaseEndpoint,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("object storage init error: %w", err)
	}

	var browseCache *cache.BrowseCache
	if c.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		browseCache = cache.NewBrowseCache(rdb, cache.DefaultTTL, logger)
	}

	var broker *events.Publisher
	if c.NATSURL != "" {
		broker, err = events.NewPublisher(c.NATSURL, logger)
		if err != nil {
			// events are best-effort end to end, a dead broker at boot
			// only costs the notifications
			logger.Warn(ctx, "event broker unavailable, lifecycle events disabled", "error", err)
			broker = nil
		}
	}

	// interface-typed nils must stay nil interfaces
	var sink services.EventSink
	if broker != nil {
		sink = broker
	}
	var invalidator services.FeedInvalidator
	var pageCache services.PageCache
	if browseCache != nil {
		invalidator = browseCache
		pageCache = browseCache
	}

	listingSvc := services.NewListingService(db, rm, store, sink, invalidator, logger)
	userSvc := services.NewUserService(db, rm, store, sink, logger)
	feedSvc := services.NewFeedService(db, rm, signer, c.CDNBaseURL, c.SignTTL, pageCache, logger)

	handler := httpapi.NewHandler(listingSvc, feedSvc, userSvc, logger)
	router := httpapi.NewRouter(handler, c.JWTSecret)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		rm:     rm,
		router: router,
		broker: broker,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app", "addr", app.config.HTTPAddr)

	if err := app.rm.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	errCh := make(chan error, 1)
	go func() {
		if err := app.router.Start(app.config.HTTPAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.router.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "http shutdown error", "error", err)
	}
	if app.broker != nil {
		app.broker.Close()
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
	return nil
}
