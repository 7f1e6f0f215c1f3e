package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"runtime"

	"github.com/alecthomas/kong"

	"github.com/FabianRolfMatthiasNoll/gbfront/internal/config"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/emuloop"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/engine/libretro"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/logger"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/save"
	"github.com/FabianRolfMatthiasNoll/gbfront/internal/ui"
)

type CLI struct {
	ROM string `arg:"" type:"existingfile" help:"Game Boy ROM to run (.gb, .gbc, or an archive holding one)"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("gbfront"),
		kong.Description("Game Boy front-end for libretro cores. Keys: WASD d-pad, J=A, K=B, Enter=Start, Left Shift=Select, F12 screenshot."),
		kong.UsageOnError(),
	)

	if err := run(cli.ROM); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(romPath string) error {
	cfg, err := config.FromEnv(nil)
	if err != nil {
		return err
	}
	_, thisFile, _, _ := runtime.Caller(0)
	log, err := logger.Setup(cfg.LogLevel, cfg.LogFormat, path.Dir(path.Dir(path.Dir(thisFile))))
	if err != nil {
		return err
	}

	corePath := cfg.CorePath
	if corePath == "" {
		corePath, err = libretro.FindCore(libretro.SearchDirs(), libretro.DefaultCoreNames, libretro.LibraryExt())
		if err != nil {
			return fmt.Errorf("%w (set GBFRONT_CORE)", err)
		}
	}
	core, err := libretro.Load(corePath, log.With("component", "core"))
	if err != nil {
		return err
	}
	info := core.Info()
	log.Info("loaded libretro core", "path", corePath, "name", info.Name,
		"version", info.Version, "extensions", info.Extensions)

	ctx, stop := signal.NotifyContext(context.Background(), interruptSignals...)
	defer stop()

	loop := emuloop.New(core, save.NewStore(log.With("component", "save")), romPath, emuloop.WithLogger(log))
	app := ui.NewApp(ctx, ui.Config{
		Title:         cfg.Title,
		Width:         cfg.Width,
		Height:        cfg.Height,
		ScreenshotDir: cfg.ScreenshotDir,
	}, loop, log)

	runErr := app.Run()
	// A fatal loop error leaves the session Running; save what the core has.
	if err := errors.Join(runErr, loop.Shutdown()); err != nil {
		return err
	}
	slog.Info("bye", "rom", romPath)
	return nil
}
