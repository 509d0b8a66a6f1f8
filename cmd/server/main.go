package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"warungku/backend/internal/backup"
	"warungku/backend/internal/bus"
	"warungku/backend/internal/cache"
	"warungku/backend/internal/config"
	"warungku/backend/internal/httpapi"
	"warungku/backend/internal/kv"
	"warungku/backend/internal/kv/bolt"
	"warungku/backend/internal/service"
	"warungku/backend/internal/store/kvstore"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	var db kv.Store
	if cfg.DataPath != "" {
		boltDB, err := bolt.Open(cfg.DataPath)
		if err != nil {
			logger.Fatal("open data file", zap.String("path", cfg.DataPath), zap.Error(err))
		}
		db = boltDB
		closers = append(closers, boltDB.Close)
		logger.Info("store: bbolt", zap.String("path", cfg.DataPath))
	} else {
		db = kv.NewMemory()
		logger.Info("store: in-memory")
	}

	events := bus.New()
	repo, err := kvstore.New(db, events)
	if err != nil {
		logger.Fatal("init repository", zap.Error(err))
	}

	summaryCache := cache.SummaryCache(cache.NoopSummaryCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSummaryCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using noop cache", zap.Error(err))
		} else {
			summaryCache = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	}

	svc := service.New(repo, summaryCache, logger)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger)

	scheduler := backup.NewScheduler(repo, cfg.BackupDir, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("start backup scheduler", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("warungku backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	scheduler.Stop()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

// buildLogger configures zap: console output always, plus a rotating JSON
// file when LOG_FILE is set.
func buildLogger(cfg config.Config) (*zap.Logger, error) {
	level := zap.InfoLevel
	if cfg.LogDebug {
		level = zap.DebugLevel
	}

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		level,
	)

	if cfg.LogFile == "" {
		return zap.New(consoleCore, zap.AddCaller()), nil
	}

	fileLogger := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    64,
		MaxBackups: 7,
		MaxAge:     7,
	}
	core := zapcore.NewTee(
		consoleCore,
		zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(fileLogger),
			level,
		),
	)
	return zap.New(core, zap.AddCaller()), nil
}
