// Command debug-leads polls the lead endpoint and reports what the map would
// see: counts per priority, id churn and failure rates.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/dwc-systems/lead-map/pkg/config"
	"github.com/dwc-systems/lead-map/pkg/leads"
)

func main() {
	_ = config.LoadDotEnv(zap.NewNop())
	var cli config.Debug
	kctx, err := config.Parse(&cli, os.Args[1:],
		kong.Name("debug-leads"),
		kong.Description("Monitor the lead endpoint."))
	if err != nil {
		if kctx != nil {
			kctx.FatalIfErrorf(err)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := cli.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if cli.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cli.Timeout)
		defer cancel()
	}

	log.Info("polling lead endpoint", zap.String("endpoint", cli.Endpoint), zap.Duration("interval", cli.Interval))
	fetcher := leads.NewHTTPFetcher(cli.Endpoint, cli.FetchTimeout)
	fetcher.Log = log
	stats := NewStats(time.Now())

	poll := func() {
		records, err := fetcher.Fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		stats.Record(records, err, time.Now())
		if !cli.JSON {
			stats.Report(os.Stdout, time.Now())
			return
		}
		if err != nil {
			log.Warn("fetch failed", zap.Error(err))
			return
		}
		out, _ := json.MarshalIndent(records, "", "  ")
		fmt.Printf("%s\n\n", out)
	}

	poll()
	ticker := time.NewTicker(cli.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			poll()
		case <-ctx.Done():
			log.Info("exiting")
			if !cli.JSON {
				stats.Report(os.Stdout, time.Now())
			}
			return
		}
	}
}
