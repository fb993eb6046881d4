package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/timzifer/xarecover/config"
	"github.com/timzifer/xarecover/drivers/pgxa"
	"github.com/timzifer/xarecover/internal/logging"
	"github.com/timzifer/xarecover/internal/reload"
	"github.com/timzifer/xarecover/xa"
)

func main() {
	cfgPath := flag.String("config", "xarecover.yaml", "Path to configuration file")
	configCheck := flag.Bool("config-check", false, "Validate configuration and exit")
	timeout := flag.Duration("timeout", 30*time.Second, "Time limit for scanning a single resource")
	interval := flag.Duration("interval", 0, "Rescan interval; zero scans once and exits")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if *configCheck {
		fmt.Printf("Configuration OK: %d resource(s)\n", len(cfg.Resources))
		os.Exit(0)
	}

	logger, cleanup, err := logging.Setup(cfg.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup logger")
	}
	log.Logger = logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if *interval <= 0 {
		failed := scanAll(ctx, cfg, logger, *timeout, openFactory, os.Stdout)
		cancel()
		cleanup()
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	watcher, err := reload.NewWatcher(*cfgPath, ".env")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to watch configuration")
	}
	w := &watchLoop{
		path:        *cfgPath,
		cfg:         cfg,
		watcher:     watcher,
		logger:      logger,
		cleanup:     cleanup,
		setupLogger: logging.Setup,
		timeout:     *timeout,
		interval:    *interval,
		open:        openFactory,
		out:         os.Stdout,
	}
	w.run(ctx)
	cancel()
	w.close()
}

func openFactory(res config.ResourceConfig, logger zerolog.Logger) (xa.XAConnectionFactory, error) {
	switch res.Driver {
	case pgxa.DriverName:
		factory, err := pgxa.NewFactoryFromConfig(res, logger)
		if err != nil {
			return nil, err
		}
		return factory, nil
	default:
		return nil, fmt.Errorf("resource %s: no factory registered for driver %s", res.Name, res.Driver)
	}
}
