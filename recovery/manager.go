// Package recovery wires an XA-capable messaging connection factory into a
// recoverable transaction manager so in-doubt branches can be completed
// after a restart.
//
// A Manager is configured with a resource name, a connection factory and a
// transaction manager. RecoverResource is meant to run once during startup:
// when both collaborators support recovery it registers a
// NamedResourceFactory with the transaction manager, otherwise it logs why
// recovery is unavailable and carries on. It never fails startup.
package recovery

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/timzifer/xarecover/xa"
)

// Outcome describes where a Manager stands in its recovery lifecycle.
type Outcome int

const (
	// OutcomeUninitialized means RecoverResource has not run yet.
	OutcomeUninitialized Outcome = iota
	// OutcomeUnrecoverable means the collaborators do not support recovery.
	OutcomeUnrecoverable
	// OutcomeMissingDependency means the dependency probe found a collaborator absent.
	OutcomeMissingDependency
	// OutcomeSkipped means the activation condition excluded this process.
	OutcomeSkipped
	// OutcomeFailed means registration was attempted and failed.
	OutcomeFailed
	// OutcomeRegistered means the factory is registered with the transaction manager.
	OutcomeRegistered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUninitialized:
		return "uninitialized"
	case OutcomeUnrecoverable:
		return "unrecoverable"
	case OutcomeMissingDependency:
		return "missing_dependency"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeRegistered:
		return "registered"
	default:
		return "unknown"
	}
}

// Manager holds the collaborators of one XA resource manager. The exported
// fields may be set until RecoverResource runs and must not change afterwards.
type Manager struct {
	ResourceName       string
	ConnectionFactory  xa.ConnectionFactory
	TransactionManager xa.TransactionManager

	settings settings

	mu    sync.Mutex
	state Outcome
}

// NewManager builds a Manager for the given collaborators.
func NewManager(name string, factory xa.ConnectionFactory, tm xa.TransactionManager, opts ...Option) (*Manager, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Manager{
		ResourceName:       name,
		ConnectionFactory:  factory,
		TransactionManager: tm,
		settings:           cfg,
	}, nil
}

// State returns the outcome of the last RecoverResource call.
func (m *Manager) State() Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RecoverResource registers the resource manager for recovery when possible.
// Every failure is logged and folded into the returned Outcome. Later calls
// return the first outcome without registering again.
func (m *Manager) RecoverResource(ctx context.Context) Outcome {
	if m == nil {
		return OutcomeUnrecoverable
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	logger := m.settings.logger.With().Str("resource", m.ResourceName).Logger()
	if m.state != OutcomeUninitialized {
		logger.Debug().Stringer("outcome", m.state).Msg("resource manager recovery already attempted")
		return m.state
	}
	m.state = m.recoverResource(ctx, logger)
	m.recordOutcome(logger)
	return m.state
}

func (m *Manager) recordOutcome(logger zerolog.Logger) {
	if m.settings.collector == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn().Interface("panic", r).Msg("failed to record recovery outcome")
		}
	}()
	m.settings.collector.IncRecovery(m.ResourceName, m.state.String())
}

func (m *Manager) recoverResource(ctx context.Context, logger zerolog.Logger) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn().Interface("panic", r).Msg("error while recovering resource manager")
			outcome = OutcomeFailed
		}
	}()

	if cond := m.settings.condition; cond != nil {
		ok, err := cond.evaluate(m.ResourceName)
		if err != nil {
			logger.Warn().Err(err).Msg("error while recovering resource manager")
			return OutcomeFailed
		}
		if !ok {
			logger.Info().Str("condition", cond.source).Msg("resource manager recovery disabled by condition")
			return OutcomeSkipped
		}
	}

	if probe := m.settings.probe; probe != nil {
		if err := probe(ctx); err != nil {
			if errors.Is(err, xa.ErrMissingDependency) {
				logger.Info().Err(err).Msg("resource manager is unrecoverable due to missing dependencies")
				return OutcomeMissingDependency
			}
			logger.Warn().Err(err).Msg("error while recovering resource manager")
			return OutcomeFailed
		}
	}

	ok, err := Recover(m)
	if err != nil {
		logger.Warn().Err(err).Msg("error while recovering resource manager")
		return OutcomeFailed
	}
	if !ok {
		caps := Capabilities(m)
		logger.Info().
			Bool("xa_connection_factory", caps.XAConnectionFactory).
			Bool("recoverable_transaction_manager", caps.RecoverableTransactionManager).
			Bool("resource_name", caps.ResourceName).
			Msg("resource manager is unrecoverable")
		return OutcomeUnrecoverable
	}
	logger.Info().Msg("resource manager registered for recovery")
	return OutcomeRegistered
}
