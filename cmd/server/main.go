package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/tradestream/cmd/server/internal/feed"
	"github.com/shubham-shewale/tradestream/cmd/server/internal/handler"
	"github.com/shubham-shewale/tradestream/cmd/server/internal/hub"
	"github.com/shubham-shewale/tradestream/cmd/server/internal/journal"
	"github.com/shubham-shewale/tradestream/cmd/server/internal/ledger"
	"github.com/shubham-shewale/tradestream/cmd/server/internal/market"
	"github.com/shubham-shewale/tradestream/cmd/server/internal/repository"
	"github.com/shubham-shewale/tradestream/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Postgres
	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		logger.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer pool.Close()

	store := repository.NewPostgres(pool)
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("Failed to run schema migration", zap.Error(err))
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	barCache := repository.NewBarCache(rdb)

	// Trade journal (optional)
	var tradeJournal ledger.Journal
	if len(cfg.Kafka.Brokers) > 0 {
		kj := journal.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		defer kj.Close()
		tradeJournal = kj
		logger.Info("trade journal enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	ledgerSvc := ledger.New(store, tradeJournal, logger)
	wsHub := hub.NewHub(logger)
	feedMgr := feed.NewManager(cfg.Feed, wsHub, barCache, feed.GorillaDialer, logger)
	go feedMgr.Run(ctx)

	mkt := market.NewAlpaca(cfg.Feed, barCache, logger)

	router := handler.NewRouter(
		handler.NewTradeHandler(ledgerSvc),
		handler.NewUserHandler(store),
		handler.NewStreamHandler(feedMgr, wsHub, barCache, mkt, logger),
		logger,
	)

	srv := &http.Server{Addr: cfg.App.Port, Handler: router}

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	// Cancel the feed context first so reconnect timers die with us.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	if err := barCache.Close(); err != nil {
		logger.Error("Redis close error", zap.Error(err))
	}
	logger.Info("Shutdown Complete")
}
