package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/shubham-shewale/tradestream/cmd/server/internal/repository"
)

func newCache(t *testing.T) (*repository.BarCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := repository.NewBarCache(client)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestBarCache_LatestRoundTrip(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	bar := []byte(`{"S":"AAPL","o":1,"h":2,"l":0.5,"c":1.5,"v":100,"t":"2025-01-02T15:04:05Z"}`)
	if err := cache.SetLatest(ctx, "AAPL", bar); err != nil {
		t.Fatalf("SetLatest failed: %v", err)
	}

	got, err := cache.Latest(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if string(got) != string(bar) {
		t.Errorf("Expected bar bytes back verbatim, got %s", got)
	}
}

func TestBarCache_LatestMissIsNilNil(t *testing.T) {
	cache, _ := newCache(t)

	got, err := cache.Latest(context.Background(), "MSFT")
	if err != nil {
		t.Fatalf("A cache miss must not error: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil on a miss, got %s", got)
	}
}

func TestBarCache_LatestOverwrites(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	cache.SetLatest(ctx, "AAPL", []byte(`{"c":1}`))
	cache.SetLatest(ctx, "AAPL", []byte(`{"c":2}`))

	got, err := cache.Latest(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if string(got) != `{"c":2}` {
		t.Errorf("Latest should hold the most recent bar, got %s", got)
	}
}

func TestBarCache_LatestExpires(t *testing.T) {
	cache, mr := newCache(t)
	ctx := context.Background()

	cache.SetLatest(ctx, "AAPL", []byte(`{"c":1}`))
	mr.FastForward(2 * time.Hour)

	got, err := cache.Latest(ctx, "AAPL")
	if err != nil || got != nil {
		t.Errorf("Expected an expired entry to read as a miss, got %s, %v", got, err)
	}
}

func TestBarCache_HistoryRoundTrip(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	payload := []byte(`{"symbol":"AAPL","bars":[{"c":1},{"c":2}]}`)
	if err := cache.SetHistory(ctx, "AAPL", payload); err != nil {
		t.Fatalf("SetHistory failed: %v", err)
	}

	got, err := cache.History(ctx, "AAPL")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Expected payload back verbatim, got %s", got)
	}

	if got, err := cache.History(ctx, "TSLA"); err != nil || got != nil {
		t.Errorf("Expected nil,nil for an uncached symbol, got %s, %v", got, err)
	}
}

func TestBarCache_KeysAreSymbolScoped(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()

	cache.SetLatest(ctx, "AAPL", []byte(`{"S":"AAPL"}`))
	cache.SetLatest(ctx, "TSLA", []byte(`{"S":"TSLA"}`))

	got, _ := cache.Latest(ctx, "AAPL")
	if string(got) != `{"S":"AAPL"}` {
		t.Errorf("Symbols must not overwrite each other, got %s", got)
	}
}
