package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/accounthub/internal/auth"
	"github.com/geocoder89/accounthub/internal/cache"
	"github.com/geocoder89/accounthub/internal/config"
	"github.com/geocoder89/accounthub/internal/db"
	httpx "github.com/geocoder89/accounthub/internal/http"
	"github.com/geocoder89/accounthub/internal/media"
	"github.com/geocoder89/accounthub/internal/observability"
	"github.com/geocoder89/accounthub/internal/repo/postgres"
	"github.com/geocoder89/accounthub/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	// the request logger reads the default logger
	slog.SetDefault(log)

	// tracing is optional; without an endpoint we run untraced
	if cfg.OTLPEndpoint != "" {
		ctx, cancel := config.WithTimeout(5 * time.Second)

		shutdownTracer, err := observability.InitTracer(ctx, "accounthub", cfg.OTLPEndpoint)

		cancel()

		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				ctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdownTracer(ctx)
			}()
		}
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	startupCtx, cancel := config.WithTimeout(10 * time.Second)

	if err := db.EnsureSchema(startupCtx, pool); err != nil {
		cancel()
		log.Error("schema bootstrap failed", "err", err)
		os.Exit(1)
	}

	if err := db.EnsureAdminUser(startupCtx, pool, cfg); err != nil {
		log.Error("admin seed failed", "err", err)
	}

	cancel()

	// redis backs the sanitized-user cache; the app works without it
	redisClient := cache.NewRedis(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	defer func() { _ = redisClient.Close() }()

	var rdb *redis.Client

	pingCtx, pingCancel := config.WithTimeout(2 * time.Second)

	if err := redisClient.Ping(pingCtx); err != nil {
		log.Warn("redis unavailable, user cache degraded", "err", err)
	} else {
		rdb = redisClient.Raw()
	}

	pingCancel()

	promReg := prometheus.NewRegistry()
	prom := observability.NewProm(promReg)

	jwtManager := auth.NewManager(
		cfg.AccessTokenSecret,
		cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
	)

	usersRepo := postgres.NewUsersRepo(pool).WithObserver(prom.ObserveDB)

	uploader, err := media.NewS3Uploader(context.Background(), media.S3Config{
		Endpoint:      cfg.MediaEndpoint,
		Region:        cfg.MediaRegion,
		Bucket:        cfg.MediaBucket,
		AccessKey:     cfg.MediaAccessKey,
		SecretKey:     cfg.MediaSecretKey,
		PublicBaseURL: cfg.MediaPublicBaseURL,
		Timeout:       cfg.MediaUploadTimeout,
	})

	if err != nil {
		log.Error("media uploader init failed", "err", err)
		os.Exit(1)
	}

	userCache := cache.NewUsers(rdb, 60*time.Second, log)

	sessions := service.NewSessionService(usersRepo, jwtManager, log)
	profiles := service.NewProfileService(
		usersRepo,
		media.Instrument(uploader, prom),
		userCache,
		cfg.UploadTempDir,
		log,
	)

	router := httpx.NewRouter(httpx.Deps{
		Cfg:      cfg,
		JWT:      jwtManager,
		Sessions: sessions,
		Profiles: profiles,
		Prom:     prom,
		PromReg:  promReg,
		Pings: map[string]func() error{
			"db": func() error {
				ctx, cancel := config.WithTimeout(1 * time.Second)
				defer cancel()
				return pool.Ping(ctx)
			},
			"redis": func() error {
				if rdb == nil {
					return nil
				}
				ctx, cancel := config.WithTimeout(1 * time.Second)
				defer cancel()
				return rdb.Ping(ctx).Err()
			},
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second, // uploads
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		err := srv.Shutdown(ctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)

			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
