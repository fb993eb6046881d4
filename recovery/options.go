package recovery

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/timzifer/xarecover/telemetry"
)

const tracerName = "github.com/timzifer/xarecover/recovery"

// Option customises a Manager or a NamedResourceFactory.
type Option func(cfg *settings) error

// DependencyProbe reports whether the collaborators needed for recovery are
// present. Returning an error wrapping xa.ErrMissingDependency marks the
// resource manager as unrecoverable for this run; any other error is treated
// as a failed recovery.
type DependencyProbe func(ctx context.Context) error

type settings struct {
	logger    zerolog.Logger
	collector telemetry.Collector
	tracers   trace.TracerProvider
	probe     DependencyProbe
	condition *condition
}

func defaultSettings() settings {
	return settings{
		logger:    zerolog.Nop(),
		collector: telemetry.Noop(),
		tracers:   otel.GetTracerProvider(),
	}
}

func applyOptions(opts []Option) (settings, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return settings{}, err
		}
	}
	return cfg, nil
}

// WithLogger provides the logger used for recovery diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.logger = logger
		return nil
	}
}

// WithCollector records recovery outcomes and handle lifecycle events.
func WithCollector(collector telemetry.Collector) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		if collector == nil {
			collector = telemetry.Noop()
		}
		cfg.collector = collector
		return nil
	}
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		if provider == nil {
			return fmt.Errorf("recovery: tracer provider must not be nil")
		}
		cfg.tracers = provider
		return nil
	}
}

// WithDependencyProbe installs a feature-detection hook run before registration.
func WithDependencyProbe(probe DependencyProbe) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cfg.probe = probe
		return nil
	}
}

// WithCondition restricts recovery to processes where the boolean
// expression holds. The expression sees name, hostname and env.
func WithCondition(expression string) Option {
	return func(cfg *settings) error {
		if cfg == nil {
			return nil
		}
		cond, err := compileCondition(expression)
		if err != nil {
			return err
		}
		cfg.condition = cond
		return nil
	}
}
