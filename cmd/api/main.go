package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/grimoire/internal/auth"
	"github.com/abduss/grimoire/internal/config"
	"github.com/abduss/grimoire/internal/dnd5"
	"github.com/abduss/grimoire/internal/logger"
	"github.com/abduss/grimoire/internal/security"
	"github.com/abduss/grimoire/internal/server"
	"github.com/abduss/grimoire/internal/storage"
	"github.com/abduss/grimoire/internal/store"
	"github.com/abduss/grimoire/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logg, err := logger.Init()
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer logg.Sync()

	cfg, err := config.Load()
	if err != nil {
		logg.Fatal("load config", zap.Error(err))
	}
	logg, err = logger.New(cfg.Log.Level, cfg.Env)
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer logg.Sync()
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := server.Dependencies{Config: cfg}

	var entities *store.Store[user.User]
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logg.Warn("using in-memory user store; data is lost on restart")
		entities, err = store.NewMemory(user.Schema)
		if err != nil {
			logg.Fatal("build memory store", zap.Error(err))
		}
	default:
		if cfg.Storage.MigrateOnStart {
			if err := storage.Migrate(cfg.Postgres.DSN(), storage.DirectionUp); err != nil {
				logg.Fatal("migrate postgres", zap.Error(err))
			}
			logg.Info("database schema is up to date")
		}

		dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			logg.Fatal("connect postgres", zap.Error(err))
		}
		defer dbPool.Close()
		deps.DB = dbPool

		entities, err = store.NewPostgres(dbPool, user.Schema)
		if err != nil {
			logg.Fatal("build postgres store", zap.Error(err))
		}
	}

	hasher := security.NewHasher(cfg.Auth.BcryptCost)
	users := user.NewStore(entities, hasher)
	deps.Users = users

	if cfg.Bootstrap.Enabled() {
		created, err := user.EnsureSuperuser(ctx, users, user.CreateInput{
			Username: cfg.Bootstrap.Username,
			Email:    cfg.Bootstrap.Email,
			Password: cfg.Bootstrap.Password,
		})
		if err != nil {
			logg.Fatal("bootstrap superuser", zap.Error(err))
		}
		if created {
			logg.Info("bootstrap superuser created", zap.String("username", cfg.Bootstrap.Username))
		}
	}

	tokens, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		logg.Fatal("build token service", zap.Error(err))
	}
	deps.AuthService = auth.NewService(users, tokens)

	var cache dnd5.Cache = dnd5.NopCache{}
	if cfg.MinIO.Enabled {
		minioClient, err := storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			logg.Fatal("connect minio", zap.Error(err))
		}
		if err := storage.PrepareCacheBucket(ctx, minioClient, cfg.MinIO, dnd5.ObjectPrefix); err != nil {
			logg.Fatal("prepare reference cache bucket", zap.Error(err))
		}
		cache = dnd5.NewMinIOCache(minioClient, cfg.MinIO.Bucket, cfg.MinIO.CacheTTL)
		deps.ObjectStore = minioClient
	}
	deps.Reference = dnd5.NewClient(cfg.Reference, cache)

	router, err := server.NewRouter(deps)
	if err != nil {
		logg.Fatal("build router", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logg.Info("Grimoire API listening",
			zap.String("address", cfg.Server.Address()),
			zap.String("storage", cfg.Storage.Driver),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logg.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logg.Error("shutdown error", zap.Error(err))
	}
}
