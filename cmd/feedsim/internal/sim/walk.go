package sim

import (
	"sync"
	"time"

	"github.com/shubham-shewale/tradestream/pkg/models"
)

// Walker produces a random-walk bar series per symbol. Unknown symbols
// start from the default base price.
type Walker struct {
	mu         sync.Mutex
	lastClose  map[string]float64
	basePrices map[string]float64
	rand       Rand
	clock      Clock
}

const defaultBasePrice = 100.0

func NewWalker(basePrices map[string]float64, rnd Rand, clock Clock) *Walker {
	return &Walker{
		lastClose:  make(map[string]float64),
		basePrices: basePrices,
		rand:       rnd,
		clock:      clock,
	}
}

// Next returns the next bar for a symbol, continuing its walk.
func (w *Walker) Next(symbol string) models.Bar {
	w.mu.Lock()
	defer w.mu.Unlock()

	open, ok := w.lastClose[symbol]
	if !ok {
		open = w.basePrices[symbol]
		if open == 0 {
			open = defaultBasePrice
		}
	}

	fluctuation := (w.rand.Float64() * 10) - 5
	close := open + fluctuation
	if close < 1 {
		close = 1
	}

	high := open
	if close > high {
		high = close
	}
	high += w.rand.Float64()

	low := open
	if close < low {
		low = close
	}
	low -= w.rand.Float64()
	if low < 0.5 {
		low = 0.5
	}

	w.lastClose[symbol] = close

	return models.Bar{
		Symbol:    symbol,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    int64(w.rand.Intn(10000) + 100),
		Timestamp: w.clock.Now().Truncate(time.Second),
	}
}
