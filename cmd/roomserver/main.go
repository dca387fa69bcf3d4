// Package main provides the room server binary: the public HTTP/WebSocket
// surface, the local administrative socket, and the room maintenance
// sweeper, all run under one lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/cardhaus/cardhaus/internal/admin"
	"github.com/cardhaus/cardhaus/internal/config"
	"github.com/cardhaus/cardhaus/internal/game/minigame"
	"github.com/cardhaus/cardhaus/internal/manager"
	"github.com/cardhaus/cardhaus/internal/observability"
	"github.com/cardhaus/cardhaus/internal/room"
	"github.com/cardhaus/cardhaus/internal/server"
	"github.com/cardhaus/cardhaus/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file; empty uses built-in defaults")
	flag.Parse()

	cfg := config.Defaults()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	var presets map[string]config.Preset
	if cfg.Rooms.PresetsPath != "" {
		presets, err = config.LoadPresets(cfg.Rooms.PresetsPath)
		if err != nil {
			logger.Fatal("loading presets", zap.Error(err))
		}
		logger.Info("presets loaded",
			zap.String("path", cfg.Rooms.PresetsPath),
			zap.Int("count", len(presets)),
		)
	}

	var gen manager.IDGenerator
	switch cfg.Rooms.IDScheme {
	case "random":
		gen = manager.RandomGenerator{}
	default:
		gen = manager.NewSequenceGenerator()
	}

	// Games available to create rooms for, selected at composition time.
	factories := map[string]room.Factory{
		"minigame": minigame.New,
	}

	mgr := manager.New(gen, factories, room.Config{
		ProbeGrace:   cfg.Liveness.ProbeGrace,
		ProbeTimeout: cfg.Liveness.ProbeTimeout,
	}, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("web", web.NewServer(cfg.Server, mgr, presets, logger))
	lifecycle.Add("admin", admin.NewServer(cfg.Admin.Socket, mgr.ProcessRequest, logger))
	lifecycle.Add("sweeper", manager.NewSweeper(mgr, cfg.Rooms.SweepInterval, logger))

	logger.Info("starting room server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("admin_socket", cfg.Admin.Socket),
		zap.String("id_scheme", cfg.Rooms.IDScheme),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Error("lifecycle ended with error", zap.Error(err))
		os.Exit(1)
	}
}
