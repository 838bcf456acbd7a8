// Command leadmap-viewer shows the live lead map in a desktop window.
//
// Keys: 1, 2 and 3 toggle the high, medium and low priority layers, F focuses
// on high value leads and R refreshes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/hajimehoshi/ebiten/v2"
	_ "github.com/silbinarywolf/preferdiscretegpu"
	"go.uber.org/zap"

	"github.com/dwc-systems/lead-map/pkg/config"
	"github.com/dwc-systems/lead-map/pkg/livemap"
	"github.com/dwc-systems/lead-map/pkg/viewer"
)

func main() {
	if err := config.LoadDotEnv(zap.NewNop()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	var cli config.Viewer
	kctx, err := config.Parse(&cli, os.Args[1:],
		kong.Name("leadmap-viewer"),
		kong.Description("Live lead map viewer."))
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
		log.Error("leadmap-viewer exited", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cli config.Viewer, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	window := viewer.New(ctx, cli.Width, cli.Height, viewer.WithLogger(log))
	ctrl, closeStore, err := livemap.Setup(cli.Map, window, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn("closing snapshot store", zap.Error(err))
		}
	}()
	defer ctrl.Destroy()
	window.SetControls(ctrl)

	go func() {
		if err := ctrl.Initialize(ctx); err != nil {
			log.Error("initialize map", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		ctrl.Destroy()
	}()

	ebiten.SetTPS(cli.TPS)
	ebiten.SetWindowSize(cli.Width, cli.Height)
	ebiten.SetWindowTitle("Live Lead Map")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetFullscreen(cli.Fullscreen)
	return ebiten.RunGame(window)
}
