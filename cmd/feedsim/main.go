package main

import (
	"context"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/tradestream/cmd/feedsim/internal/sim"
)

var basePrices = map[string]float64{
	"AAPL": 150.0, "GOOG": 2800.0, "TSLA": 700.0, "AMZN": 3400.0,
}

func main() {
	listenAddr := flag.String("listen", ":9100", "websocket listen address")
	tickMs := flag.Int("tick-ms", 1000, "bar emit interval in ms")
	tickers := flag.String("tickers", "AAPL,GOOG,TSLA,AMZN", "symbols with tuned base prices")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	prices := make(map[string]float64)
	for _, sym := range strings.Split(*tickers, ",") {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		prices[sym] = basePrices[sym]
	}

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	walker := sim.NewWalker(prices, r, sim.RealClock())
	server := sim.NewServer(walker, time.Duration(*tickMs)*time.Millisecond, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/", server.HandleUpgrade)

	srv := &http.Server{Addr: *listenAddr, Handler: mux}

	go func() {
		logger.Info("Feed Simulator Started", zap.String("addr", *listenAddr))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	srv.Shutdown(context.Background())
	logger.Info("Shutdown Complete")
}
