// Package auditor tails the trade journal topic and maintains a live
// audit view in Redis: the last trade per user, plus a pub/sub channel
// audit consumers can follow.
package auditor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/tradestream/pkg/config"
	"github.com/shubham-shewale/tradestream/pkg/models"
)

type Auditor struct {
	cfg        *config.Config
	logger     Logger
	rdb        RedisClient
	reader     KafkaReader
	numWorkers int
}

func New(cfg *config.Config, logger Logger, rdb RedisClient, reader KafkaReader) *Auditor {
	return &Auditor{
		cfg:        cfg,
		logger:     logger,
		rdb:        rdb,
		reader:     reader,
		numWorkers: cfg.Kafka.Workers,
	}
}

func (a *Auditor) Run(ctx context.Context) error {
	workerChans := make([]chan []byte, a.numWorkers)
	var wg sync.WaitGroup

	for i := 0; i < a.numWorkers; i++ {
		workerChans[i] = make(chan []byte, 100)
		wg.Add(1)
		go a.worker(i, workerChans[i], &wg)
	}

	go func() {
		a.logger.Info("Auditor started", zap.Int("workers", a.numWorkers))
		for {
			m, err := a.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				a.logger.Error("Kafka read error", zap.Error(err))
				continue
			}

			// Journal messages are keyed by user id; hashing the key pins
			// each user to one worker so their trades apply in order.
			workerID := getWorkerID(m.Key, a.numWorkers)

			// Unlike a price tick, a journal record must not be dropped;
			// the send blocks until the worker has room.
			select {
			case workerChans[workerID] <- m.Value:
			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()
	a.logger.Info("Shutdown signal received, stopping auditor...")

	for _, ch := range workerChans {
		close(ch)
	}
	a.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

func (a *Auditor) worker(id int, msgs <-chan []byte, wg *sync.WaitGroup) {
	defer wg.Done()
	ctx := context.Background()

	// The journal delivers at least once; tracking the last trade id per
	// user catches immediate redeliveries (works because of sharding).
	lastTrade := make(map[string]string)

	for payload := range msgs {
		var trade models.Trade
		if err := json.Unmarshal(payload, &trade); err != nil {
			a.logger.Error("JSON unmarshal error", zap.Error(err))
			continue
		}
		if trade.UserID == "" || trade.ID == "" {
			a.logger.Warn("Skipping malformed journal record")
			continue
		}

		if trade.ID == lastTrade[trade.UserID] {
			a.logger.Debug("Skipping redelivered trade",
				zap.String("user_id", trade.UserID), zap.String("trade_id", trade.ID))
			continue
		}

		key := fmt.Sprintf("audit:last:%s", trade.UserID)
		channel := fmt.Sprintf("audit.%s", trade.UserID)

		pipe := a.rdb.Pipeline()
		pipe.Set(ctx, key, payload, 24*time.Hour)
		pipe.Publish(ctx, channel, payload)

		if _, err := pipe.Exec(ctx); err != nil {
			a.logger.Error("Redis pipeline error", zap.Error(err), zap.String("user_id", trade.UserID))
		} else {
			a.logger.Debug("Audited",
				zap.String("user_id", trade.UserID),
				zap.String("trade_id", trade.ID),
				zap.Int("worker_id", id))
			lastTrade[trade.UserID] = trade.ID
		}
	}
}

func getWorkerID(key []byte, numWorkers int) int {
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32()) % numWorkers
}
