package auditor_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/tradestream/cmd/auditor/internal/auditor"
	"github.com/shubham-shewale/tradestream/cmd/auditor/internal/testutils"
	"github.com/shubham-shewale/tradestream/pkg/config"
	"github.com/shubham-shewale/tradestream/pkg/models"
)

func journalMessages(trades ...models.Trade) []kafka.Message {
	var msgs []kafka.Message
	for _, tr := range trades {
		val, _ := json.Marshal(tr)
		msgs = append(msgs, kafka.Message{
			Key:   []byte(tr.UserID),
			Value: val,
		})
	}
	return msgs
}

func runAuditor(t *testing.T, workers int, msgs []kafka.Message) *testutils.MockRedisClient {
	t.Helper()
	mockReader := &testutils.MockKafkaReader{Messages: msgs}
	mockRedis := testutils.NewMockRedisClient()

	cfg := &config.Config{}
	cfg.Kafka.Workers = workers

	a := auditor.New(cfg, zap.NewNop(), mockRedis, mockReader)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := a.Run(ctx); err != nil {
		t.Logf("Auditor stopped: %v", err)
	}
	return mockRedis
}

func TestAuditor_WritesLastTradePerUser(t *testing.T) {
	msgs := journalMessages(
		models.Trade{ID: "t1", UserID: "u1", Symbol: "AAPL", Quantity: 10, Price: 150, Side: models.SideBuy},
		models.Trade{ID: "t2", UserID: "u2", Symbol: "TSLA", Quantity: 5, Price: 200, Side: models.SideBuy},
	)

	mockRedis := runAuditor(t, 2, msgs)

	pipeline := mockRedis.PipelineSpy
	if pipeline.ExecCount != 2 {
		t.Errorf("Expected 2 pipeline executions, got %d", pipeline.ExecCount)
	}

	hasU1, hasU2, hasChannel := false, false, false
	for _, cmd := range pipeline.Commands() {
		switch cmd {
		case "SET audit:last:u1":
			hasU1 = true
		case "SET audit:last:u2":
			hasU2 = true
		case "PUBLISH audit.u1":
			hasChannel = true
		}
	}
	if !hasU1 || !hasU2 {
		t.Errorf("Missing SET for a user, commands: %v", pipeline.Commands())
	}
	if !hasChannel {
		t.Errorf("Missing audit channel publish, commands: %v", pipeline.Commands())
	}
}

func TestAuditor_SkipsRedeliveredTrade(t *testing.T) {
	tr := models.Trade{ID: "t1", UserID: "u1", Symbol: "AAPL", Quantity: 10, Price: 150, Side: models.SideBuy}
	msgs := journalMessages(tr, tr, // immediate redelivery
		models.Trade{ID: "t2", UserID: "u1", Symbol: "AAPL", Quantity: 5, Price: 151, Side: models.SideSell})

	mockRedis := runAuditor(t, 1, msgs)

	if got := mockRedis.PipelineSpy.ExecCount; got != 2 {
		t.Errorf("Redelivered trade should be skipped, expected 2 executions, got %d", got)
	}
}

func TestAuditor_InvalidJSON(t *testing.T) {
	msgs := []kafka.Message{
		{Key: []byte("u1"), Value: []byte("{broken-json")},
		{Key: []byte("u1"), Value: []byte(`{"id":"","userId":""}`)},
	}

	mockRedis := runAuditor(t, 1, msgs)

	if mockRedis.PipelineSpy.ExecCount > 0 {
		t.Error("Should not execute Redis commands for malformed journal records")
	}
}
