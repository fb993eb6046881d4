// Package pgxa provides an XA-capable connection factory on top of
// PostgreSQL two-phase commit.
//
// Each connection is a dedicated pgx connection. Branches are prepared with
// PREPARE TRANSACTION and listed for recovery from pg_prepared_xacts, so a
// coordinator can complete them from any new connection after a restart.
// The server must run with max_prepared_transactions > 0.
package pgxa

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/timzifer/xarecover/config"
	"github.com/timzifer/xarecover/xa"
)

// DriverName is the config driver identifier served by this package.
const DriverName = "postgres"

// Settings describe how to reach the PostgreSQL server.
type Settings struct {
	DSN             string
	ConnectTimeout  time.Duration
	ApplicationName string
}

// Factory opens PostgreSQL connections usable as XA resources.
type Factory struct {
	config *pgx.ConnConfig
	logger zerolog.Logger
}

var (
	_ xa.ConnectionFactory   = (*Factory)(nil)
	_ xa.XAConnectionFactory = (*Factory)(nil)
)

// NewFactory validates the settings and returns a factory. No connection is
// opened until CreateXAConnection is called.
func NewFactory(settings Settings, logger zerolog.Logger) (*Factory, error) {
	if settings.DSN == "" {
		return nil, fmt.Errorf("pgxa: dsn is required")
	}
	cfg, err := pgx.ParseConfig(settings.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxa: parse dsn: %w", err)
	}
	if settings.ConnectTimeout > 0 {
		cfg.ConnectTimeout = settings.ConnectTimeout
	}
	if settings.ApplicationName != "" {
		cfg.RuntimeParams["application_name"] = settings.ApplicationName
	}
	return &Factory{config: cfg, logger: logger}, nil
}

// NewFactoryFromConfig builds a factory for a configured resource.
func NewFactoryFromConfig(res config.ResourceConfig, logger zerolog.Logger) (*Factory, error) {
	if res.Driver != DriverName {
		return nil, fmt.Errorf("pgxa: resource %s: unsupported driver %q", res.Name, res.Driver)
	}
	factory, err := NewFactory(Settings{
		DSN:             res.DSN,
		ConnectTimeout:  res.ConnectTimeoutOrDefault(),
		ApplicationName: "xarecover:" + res.Name,
	}, logger.With().Str("resource", res.Name).Logger())
	if err != nil {
		return nil, fmt.Errorf("resource %s: %w", res.Name, err)
	}
	return factory, nil
}

// CreateConnection opens a plain connection.
func (f *Factory) CreateConnection(ctx context.Context) (xa.Connection, error) {
	conn, err := f.connect(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// CreateXAConnection opens a connection able to host XA sessions.
func (f *Factory) CreateXAConnection(ctx context.Context) (xa.XAConnection, error) {
	conn, err := f.connect(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (f *Factory) connect(ctx context.Context) (*Conn, error) {
	pg, err := pgx.ConnectConfig(ctx, f.config.Copy())
	if err != nil {
		return nil, fmt.Errorf("pgxa: connect: %w", err)
	}
	f.logger.Debug().Uint32("pid", pg.PgConn().PID()).Msg("pgxa: connection opened")
	return &Conn{pg: pg, logger: f.logger}, nil
}
