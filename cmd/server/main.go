package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vendoro/order-fanout/internal/adapter/commerce"
	"github.com/vendoro/order-fanout/internal/adapter/event"
	"github.com/vendoro/order-fanout/internal/adapter/handler"
	"github.com/vendoro/order-fanout/internal/adapter/storage"
	"github.com/vendoro/order-fanout/internal/config"
	"github.com/vendoro/order-fanout/internal/core/service"
	"github.com/vendoro/order-fanout/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logging.Sync(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	// Adapters
	store := storage.NewMySQLAdapter(db)
	guard := storage.NewRedisAdapter(rdb)
	client := commerce.NewShopifyClient(cfg.SubmitTimeout)

	// Core
	policy := service.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.SubmitMaxAttempts
	policy.BaseDelay = cfg.SubmitBaseDelay

	submitter := service.NewSubmitter(client, store, policy, cfg.SubmitTimeout, logger)
	coordinator := service.NewCoordinator(store, store, store, guard, submitter, logger)

	// Payment confirmation intake
	consumer := event.NewPaymentConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopic, coordinator, logger)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		if err := consumer.Start(ctx); err != nil {
			logger.Error("consumer stopped with error", zap.Error(err))
		}
	}()

	// Diagnostics HTTP surface
	httpHandler := handler.NewHTTPHandler(store, store, coordinator, logger)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	// Graceful shutdown: stop intake first, let in-flight submission
	// attempts finish, then close connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("http server stopped")

	cancel()
	consumer.Close()
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
		logger.Warn("consumer did not stop in time")
	}
	logger.Info("consumer stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}
