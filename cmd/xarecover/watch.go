package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/timzifer/xarecover/config"
	"github.com/timzifer/xarecover/internal/reload"
)

type loggerSetup func(cfg config.LoggingConfig) (zerolog.Logger, func(), error)

// watchLoop rescans all resources on a fixed interval and picks up
// configuration changes between scans. A reload also rebuilds the logger
// when setupLogger is set.
type watchLoop struct {
	path        string
	cfg         *config.Config
	watcher     *reload.Watcher
	logger      zerolog.Logger
	cleanup     func()
	setupLogger loggerSetup
	timeout     time.Duration
	interval    time.Duration
	open        factoryOpener
	out         io.Writer
	load        func(path string) (*config.Config, error)
}

// close releases the logger currently in use.
func (w *watchLoop) close() {
	if w.cleanup != nil {
		w.cleanup()
		w.cleanup = nil
	}
}

func (w *watchLoop) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.scan(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *watchLoop) scan(ctx context.Context) int {
	w.reloadIfChanged()
	failed := scanAll(ctx, w.cfg, w.logger, w.timeout, w.open, w.out)
	if failed > 0 {
		w.logger.Warn().Int("failed", failed).Msg("scan completed with failures")
	}
	return failed
}

// reloadIfChanged swaps in a new configuration when a tracked file changed.
// An invalid configuration keeps the previous one active.
func (w *watchLoop) reloadIfChanged() {
	changed, err := w.watcher.Check()
	if err != nil {
		w.logger.Warn().Err(err).Msg("failed to check configuration files")
		return
	}
	if len(changed) == 0 {
		return
	}
	if err := godotenv.Overload(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.logger.Warn().Err(err).Msg("failed to reload .env file")
	}
	load := w.load
	if load == nil {
		load = config.Load
	}
	cfg, err := load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Strs("files", changed).Msg("configuration reload failed; keeping previous configuration")
	} else {
		w.cfg = cfg
		w.applyLogging(cfg.Logging)
		w.logger.Info().Strs("files", changed).Int("resources", len(cfg.Resources)).Msg("configuration reloaded")
	}
	if err := w.watcher.Update(w.path, ".env"); err != nil {
		w.logger.Warn().Err(err).Msg("failed to refresh watched files")
	}
}

// applyLogging swaps in a logger built from the reloaded settings. The
// previous logger stays active when the new settings are invalid.
func (w *watchLoop) applyLogging(cfg config.LoggingConfig) {
	if w.setupLogger == nil {
		return
	}
	logger, cleanup, err := w.setupLogger(cfg)
	if err != nil {
		w.logger.Error().Err(err).Msg("logging reload failed; keeping previous logger")
		return
	}
	w.close()
	w.logger = logger
	w.cleanup = cleanup
	log.Logger = logger
}
