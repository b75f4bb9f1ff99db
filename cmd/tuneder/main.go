package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tuneder/tuneder/internal/app"
	"github.com/tuneder/tuneder/internal/artists"
	"github.com/tuneder/tuneder/internal/auth"
	"github.com/tuneder/tuneder/internal/avatars"
	"github.com/tuneder/tuneder/internal/favorites"
	"github.com/tuneder/tuneder/internal/observability"
	"github.com/tuneder/tuneder/internal/platform/cache"
	"github.com/tuneder/tuneder/internal/platform/db"
	"github.com/tuneder/tuneder/internal/platform/docstore"
	"github.com/tuneder/tuneder/internal/quiz"
	"github.com/tuneder/tuneder/internal/shared"
	"github.com/tuneder/tuneder/internal/users"
	"github.com/tuneder/tuneder/internal/view"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	repo, closeStore, err := openRepository(ctx, cfg)
	if err != nil {
		logger.Error("open credential store", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	avatarStore, uploads, imageOrigins, err := openAvatars(ctx, cfg)
	if err != nil {
		logger.Error("open avatar store", slog.String("backend", cfg.AvatarBackend), slog.Any("error", err))
		os.Exit(1)
	}

	sessionManager := shared.NewSessionManager(redisClient, "tuneder_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	metrics.Registerer().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	artistClient := artists.NewClient(logger, artists.Config{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
		TokenURL:     cfg.SpotifyTokenURL,
		APIURL:       cfg.SpotifyAPIURL,
		RateLimit:    cfg.SpotifyRateLimit,
		Timeout:      cfg.SpotifyTimeout,
	}, metrics)

	favoritesService := favorites.NewService(logger, repo, artistClient, metrics)
	favoritesHandler := favorites.NewHandler(favorites.HandlerParams{
		Logger:    logger,
		Service:   favoritesService,
		Templates: templates,
		Sessions:  sessionManager,
		CSRF:      csrfManager,
		Avatars:   avatarStore,
	})

	authService := auth.NewService(repo, 0)
	authHandler := auth.NewHandler(auth.HandlerParams{
		Logger:    logger,
		Service:   authService,
		Templates: templates,
		Sessions:  sessionManager,
		CSRF:      csrfManager,
		Avatars:   avatarStore,
		Profiles:  favoritesHandler,
		Metrics:   metrics,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		FavoritesHandler: favoritesHandler,
		QuizHandler:      quiz.NewHandler(logger, templates, csrfManager, repo),
		ArtistsHandler:   artists.NewHandler(logger, artistClient),
		Metrics:          metrics,
		Uploads:          uploads,
		ImageOrigins:     imageOrigins,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// openRepository connects the configured credential store. The returned
// func releases the connection.
func openRepository(ctx context.Context, cfg *app.Config) (users.Repository, func(), error) {
	switch cfg.StoreDriver {
	case app.StorePostgres:
		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return users.NewPGRepository(pool), pool.Close, nil
	case app.StoreMongo:
		client, err := docstore.New(ctx, cfg.MongoURI())
		if err != nil {
			return nil, nil, err
		}
		repo := users.NewMongoRepository(client.Database(cfg.DBDatabase).Collection(cfg.DBCollection))
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// openAvatars builds the avatar store. Disk storage also returns the handler
// serving /upload/; bucket storage returns the origin pages load images from.
func openAvatars(ctx context.Context, cfg *app.Config) (avatars.Store, http.Handler, []string, error) {
	if cfg.AvatarBackend == app.AvatarS3 {
		store, err := avatars.NewS3Store(ctx, avatars.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, []string{origin(store.URL("probe"))}, nil
	}
	store, err := avatars.NewDiskStore(cfg.UploadDir)
	if err != nil {
		return nil, nil, nil, err
	}
	return store, store.Handler(), nil, nil
}

func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
