package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/mcsci/internal/config"
	"github.com/danmuck/mcsci/internal/extension"
	"github.com/danmuck/mcsci/internal/extension/seedcrack"
	"github.com/danmuck/mcsci/internal/logging"
	"github.com/danmuck/mcsci/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to a server config.toml")
	initConfig := flag.String("init-config", "", "write a starter config to this path and exit")
	listen := flag.String("listen", "", "listen address override")
	stdio := flag.Bool("stdio", false, "serve one session over stdin/stdout")
	flag.Parse()

	logger := logging.ConfigureRuntime()

	if *initConfig != "" {
		if err := config.WriteServerTemplate(*initConfig); err != nil {
			log.Fatal().Err(err).Msg("failed to write config template")
		}
		logger.Info().Str("path", *initConfig).Msg("wrote config template")
		return
	}

	cfg := config.DefaultServerConfig()
	if *configPath != "" {
		loaded, err := config.LoadServerConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load server config")
		}
		cfg = loaded
		logger.Info().Str("path", *configPath).Msg("loaded server config")
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *stdio {
		cfg.Stdio = true
	}
	if cfg.LogLevel != "" {
		leveled, err := logging.SetLevel(cfg.LogLevel)
		if err != nil {
			log.Fatal().Err(err).Msg("bad log_level in config")
		}
		logger = leveled
	}

	exts := extension.NewRegistry()
	if cfg.ExtensionEnabled("seedcrack") {
		exts.Register(seedcrack.New(logger))
	}

	srv := server.New(cfg, exts, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if cfg.Stdio {
		err = srv.ServeStdio(ctx)
	} else {
		err = srv.ListenAndServe(ctx)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
