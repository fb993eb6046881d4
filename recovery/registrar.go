package recovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/timzifer/xarecover/telemetry"
	"github.com/timzifer/xarecover/xa"
)

// Recover registers a named resource factory for m with its transaction
// manager. It returns false without side effects when m is not recoverable.
// No connection is opened here; the coordinator asks for resources later.
func Recover(m *Manager) (bool, error) {
	if !IsRecoverable(m) {
		return false, nil
	}
	connFactory := m.ConnectionFactory.(xa.XAConnectionFactory)
	tm := m.TransactionManager.(xa.RecoverableTransactionManager)

	factory := newNamedResourceFactory(m.ResourceName, connFactory, m.settings)
	if err := tm.RegisterNamedResourceFactory(factory); err != nil {
		return false, fmt.Errorf("register named resource factory %s: %w", m.ResourceName, err)
	}
	return true, nil
}

// NamedResourceFactory hands out XA resources backed by fresh connections.
// It holds no mutable state and may be called concurrently.
type NamedResourceFactory struct {
	name      string
	factory   xa.XAConnectionFactory
	logger    zerolog.Logger
	collector telemetry.Collector
	tracer    trace.Tracer
}

var _ xa.NamedResourceFactory = (*NamedResourceFactory)(nil)

// NewNamedResourceFactory builds a factory for the named resource manager
// without registering it anywhere.
func NewNamedResourceFactory(name string, factory xa.XAConnectionFactory, opts ...Option) (*NamedResourceFactory, error) {
	if name == "" {
		return nil, errors.New("recovery: resource name is required")
	}
	if factory == nil {
		return nil, errors.New("recovery: xa connection factory is required")
	}
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return newNamedResourceFactory(name, factory, cfg), nil
}

func newNamedResourceFactory(name string, factory xa.XAConnectionFactory, cfg settings) *NamedResourceFactory {
	collector := cfg.collector
	if collector == nil {
		collector = telemetry.Noop()
	}
	tracers := cfg.tracers
	if tracers == nil {
		tracers = defaultSettings().tracers
	}
	return &NamedResourceFactory{
		name:      name,
		factory:   factory,
		logger:    cfg.logger.With().Str("resource", name).Logger(),
		collector: collector,
		tracer:    tracers.Tracer(tracerName),
	}
}

// Name returns the resource manager name the factory was registered under.
func (f *NamedResourceFactory) Name() string {
	return f.name
}

// NamedResource opens a connection and session, starts the connection and
// returns the session's XA resource. Failures are reported as *xa.SystemError.
func (f *NamedResourceFactory) NamedResource(ctx context.Context) (xa.NamedResource, error) {
	ctx, span := f.tracer.Start(ctx, "xa.named_resource.create",
		trace.WithAttributes(attribute.String("xa.resource", f.name)))
	defer span.End()

	res, err := f.open(ctx)
	if err != nil {
		sysErr := &xa.SystemError{Resource: f.name, Err: err}
		span.RecordError(sysErr)
		span.SetStatus(codes.Error, "create named resource")
		f.collector.IncResourceCreateFailed(f.name)
		f.logger.Error().Err(sysErr).Msg("failed to create named XA resource")
		return nil, sysErr
	}
	f.collector.IncResourceCreated(f.name)
	return res, nil
}

func (f *NamedResourceFactory) open(ctx context.Context) (*ConnectionResource, error) {
	conn, err := f.factory.CreateXAConnection(ctx)
	if err != nil {
		return nil, fmt.Errorf("create connection: %w", err)
	}
	if conn == nil {
		return nil, errors.New("create connection: factory returned no connection")
	}
	session, err := conn.CreateXASession(ctx)
	if err != nil {
		f.discard(conn)
		return nil, fmt.Errorf("create session: %w", err)
	}
	if session == nil {
		f.discard(conn)
		return nil, errors.New("create session: connection returned no session")
	}
	if err := conn.Start(ctx); err != nil {
		f.discardSession(session, conn)
		return nil, fmt.Errorf("start connection: %w", err)
	}
	res, err := session.XAResource()
	if err != nil {
		f.discardSession(session, conn)
		return nil, fmt.Errorf("get xa resource: %w", err)
	}
	if res == nil {
		f.discardSession(session, conn)
		return nil, errors.New("get xa resource: session returned no resource")
	}
	f.logger.Debug().Msg("opened connection for named XA resource")
	return newConnectionResource(res, f.name, conn, f), nil
}

func (f *NamedResourceFactory) discardSession(session xa.XASession, conn xa.XAConnection) {
	if err := session.Close(); err != nil {
		f.logger.Debug().Err(err).Msg("failed to close session after create failure")
	}
	f.discard(conn)
}

// discard closes a connection whose resource never reached the coordinator.
func (f *NamedResourceFactory) discard(conn xa.XAConnection) {
	if err := conn.Close(); err != nil {
		f.logger.Debug().Err(err).Msg("failed to close connection after create failure")
	}
}

// ReturnNamedResource closes the connection owned by a resource this factory
// produced. Resources from elsewhere are ignored and close failures are only
// logged.
func (f *NamedResourceFactory) ReturnNamedResource(res xa.NamedResource) {
	owned, ok := res.(*ConnectionResource)
	if !ok || owned == nil || owned.factory != f || owned.conn == nil {
		return
	}
	f.collector.IncResourceReturned(f.name)
	defer func() {
		if r := recover(); r != nil {
			f.collector.IncResourceCloseFailed(f.name)
			f.logger.Debug().Interface("panic", r).Msg("failed to close returned named XA resource")
		}
	}()
	f.logger.Debug().Msg("closing returned named XA resource connection")
	if err := owned.conn.Close(); err != nil {
		f.collector.IncResourceCloseFailed(f.name)
		f.logger.Debug().Err(err).Msg("failed to close returned named XA resource")
	}
}
