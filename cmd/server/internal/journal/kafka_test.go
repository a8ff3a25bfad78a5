package journal_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/tradestream/cmd/server/internal/journal"
	"github.com/shubham-shewale/tradestream/pkg/models"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleTrade() *models.Trade {
	return &models.Trade{
		ID:        "t-1",
		UserID:    "u1",
		Symbol:    "AAPL",
		Quantity:  10,
		Price:     150,
		Side:      models.SideBuy,
		Timestamp: time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC),
	}
}

func TestPublish_KeyedByUser(t *testing.T) {
	w := &fakeWriter{}
	j := journal.NewKafkaWithWriter(w, zap.NewNop())

	if err := j.Publish(context.Background(), sampleTrade()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "u1" {
		t.Errorf("Messages must be keyed by user id, got %s", msg.Key)
	}
	if !strings.Contains(string(msg.Value), `"symbol":"AAPL"`) {
		t.Errorf("Unexpected payload: %s", msg.Value)
	}
}

func TestPublish_SurfacesWriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	j := journal.NewKafkaWithWriter(w, zap.NewNop())

	if err := j.Publish(context.Background(), sampleTrade()); err == nil {
		t.Fatal("Expected the writer error to surface")
	}
}

func TestClose_ClosesWriter(t *testing.T) {
	w := &fakeWriter{}
	j := journal.NewKafkaWithWriter(w, zap.NewNop())

	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !w.closed {
		t.Error("Close should close the underlying writer")
	}
}
