// quotecheck fetches a one-shot set of quotes and prints the circuit
// limits to the console. Useful for verifying credentials and eyeballing
// the raw API payload before running the collector.
//
// Usage: go run ./cmd/quotecheck --config configs/collector.local.yaml NFO:NIFTY25SEP24800CE ...
//
// With no instrument arguments it fetches the spot index quote only.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/tradewatch/circuit-data/internal/config"
)

func main() {
	configPath := flag.String("config", "configs/collector.local.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full quote JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	kc := kiteconnect.New(cfg.Kite.APIKey)
	kc.SetAccessToken(cfg.Kite.AccessToken)
	if cfg.Kite.BaseURL != "" {
		kc.SetBaseURI(cfg.Kite.BaseURL)
	}
	if cfg.Kite.Timeout > 0 {
		kc.SetTimeout(cfg.Kite.Timeout)
	}

	ids := flag.Args()
	if len(ids) == 0 {
		ids = []string{"NSE:" + cfg.Market.SpotSymbol}
	}

	start := time.Now()
	quotes, err := kc.GetQuote(ids...)
	if err != nil {
		logger.Error("quote fetch failed", "error", err)
		os.Exit(1)
	}
	logger.Info("quotes fetched",
		"requested", len(ids),
		"received", len(quotes),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	for id, q := range quotes {
		if *verbose {
			data, _ := json.MarshalIndent(q, "", "  ")
			fmt.Printf("[%s] %s\n", id, data)
			continue
		}
		fmt.Printf("[%s] last=%.2f lower=%.2f upper=%.2f ltt=%s ohlc=%.2f/%.2f/%.2f/%.2f\n",
			id, q.LastPrice, q.LowerCircuitLimit, q.UpperCircuitLimit,
			q.LastTradeTime.Time.Format(time.RFC3339),
			q.OHLC.Open, q.OHLC.High, q.OHLC.Low, q.OHLC.Close)
	}

	// Unanswered ids are silently absent from the response; flag them so
	// a typo'd symbol doesn't look like success.
	for _, id := range ids {
		if _, ok := quotes[id]; !ok {
			fmt.Printf("[%s] no quote returned\n", id)
		}
	}
}
