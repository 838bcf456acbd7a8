// Command leadmap-server renders the live lead map headlessly and serves the
// frames, markers and summary over HTTP and websocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dwc-systems/lead-map/pkg/config"
	"github.com/dwc-systems/lead-map/pkg/feed"
	"github.com/dwc-systems/lead-map/pkg/livemap"
	"github.com/dwc-systems/lead-map/pkg/maphost"
)

func main() {
	boot := zap.NewNop()
	if err := config.LoadDotEnv(boot); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	var cli config.Server
	kctx, err := config.Parse(&cli, os.Args[1:],
		kong.Name("leadmap-server"),
		kong.Description("Headless live lead map with an HTTP and websocket feed."))
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

	if err := run(cli, log); err != nil {
		log.Error("leadmap-server exited", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cli config.Server, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	frames := maphost.NewMemorySurface(cli.Width, cli.Height)
	var surface maphost.Surface = frames
	if cli.CaptureDir != "" {
		surface = maphost.Tee{frames, maphost.NewCaptureSurface(cli.CaptureDir, cli.Width, cli.Height, log)}
	}

	hubOpts := []feed.HubOption{feed.WithLogger(log)}
	if cli.AnyOrigin {
		hubOpts = append(hubOpts, feed.WithCheckOrigin(func(*http.Request) bool { return true }))
	}
	hub := feed.NewHub(hubOpts...)

	ctrl, closeStore, err := livemap.Setup(cli.Map, surface, log, livemap.WithObserver(hub))
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("closing snapshot store", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Addr:              cli.Listen,
		Handler:           feed.NewHandler(hub, frames, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("serving feed", zap.String("addr", cli.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := ctrl.Initialize(ctx)
		if err == nil {
			<-ctx.Done()
			log.Info("shutting down")
		} else {
			err = fmt.Errorf("initialize map: %w", err)
		}

		ctrl.Destroy()
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(err, srv.Shutdown(shutdownCtx))
	})
	return g.Wait()
}
