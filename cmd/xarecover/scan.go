package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/timzifer/xarecover/config"
	"github.com/timzifer/xarecover/recovery"
	"github.com/timzifer/xarecover/xa"
)

type factoryOpener func(res config.ResourceConfig, logger zerolog.Logger) (xa.XAConnectionFactory, error)

// scanAll lists the in-doubt branches of every configured resource and
// returns the number of resources that could not be scanned.
func scanAll(ctx context.Context, cfg *config.Config, logger zerolog.Logger, timeout time.Duration, open factoryOpener, out io.Writer) int {
	failed := 0
	for _, res := range cfg.Resources {
		resLogger := logger.With().Str("resource", res.Name).Logger()
		enabled, err := recovery.ConditionHolds(res.Condition, res.Name)
		if err != nil {
			resLogger.Error().Err(err).Msg("invalid resource condition")
			fmt.Fprintf(out, "%s: error: %v\n", res.Name, err)
			failed++
			continue
		}
		if !enabled {
			fmt.Fprintf(out, "%s: skipped by condition\n", res.Name)
			continue
		}
		xids, err := scanResource(ctx, res, logger, timeout, open)
		if err != nil {
			resLogger.Error().Err(err).Msg("failed to scan resource")
			fmt.Fprintf(out, "%s: error: %v\n", res.Name, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "%s: %d in-doubt branch(es)\n", res.Name, len(xids))
		for _, xid := range xids {
			fmt.Fprintf(out, "  %s\n", xid)
		}
	}
	return failed
}

func scanResource(ctx context.Context, res config.ResourceConfig, logger zerolog.Logger, timeout time.Duration, open factoryOpener) ([]xa.Xid, error) {
	connFactory, err := open(res, logger)
	if err != nil {
		return nil, err
	}
	factory, err := recovery.NewNamedResourceFactory(res.Name, connFactory, recovery.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	named, err := factory.NamedResource(scanCtx)
	if err != nil {
		return nil, err
	}
	defer factory.ReturnNamedResource(named)

	xids, err := named.Recover(scanCtx, xa.StartRScan|xa.EndRScan)
	if err != nil {
		return nil, fmt.Errorf("recover: %w", err)
	}
	return xids, nil
}
