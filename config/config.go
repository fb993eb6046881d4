package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// EnvPrefix prefixes every environment variable that overrides configuration.
const EnvPrefix = "XARECOVER_"

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "5s" or "1m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return fmt.Errorf("duration value node is nil")
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// LokiConfig configures optional Loki integration for logging.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled" env:"ENABLED"`
	URL     string            `yaml:"url" env:"URL"`
	Labels  map[string]string `yaml:"labels"`
}

// LoggingConfig encapsulates runtime logging options.
type LoggingConfig struct {
	Level  string     `yaml:"level" env:"LOG_LEVEL"`
	Format string     `yaml:"format" env:"LOG_FORMAT"`
	Loki   LokiConfig `yaml:"loki" envPrefix:"LOKI_"`
}

// ResourceConfig describes one XA resource manager to recover.
type ResourceConfig struct {
	Name           string   `yaml:"name"`
	Driver         string   `yaml:"driver"`
	DSN            string   `yaml:"dsn"`
	ConnectTimeout Duration `yaml:"connect_timeout,omitempty"`
	Condition      string   `yaml:"condition,omitempty"`
}

// Config is the root configuration structure for the recovery tool.
type Config struct {
	Logging   LoggingConfig    `yaml:"logging"`
	Resources []ResourceConfig `yaml:"resources"`
}

// Load reads the configuration file, validates it against the schema and
// applies environment overrides. ${VAR} references in the file are expanded
// before parsing; any other $ is kept as written.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := expandEnv(raw)
	if err := validate(path, expanded); err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := env.ParseWithOptions(&cfg.Logging, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("apply environment overrides: %w", err)
	}
	seen := make(map[string]struct{}, len(cfg.Resources))
	for _, res := range cfg.Resources {
		if _, dup := seen[res.Name]; dup {
			return nil, fmt.Errorf("resource %s: duplicate name", res.Name)
		}
		seen[res.Name] = struct{}{}
	}
	return &cfg, nil
}

var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${NAME} with the value of the environment variable.
// Unset variables expand to the empty string.
func expandEnv(raw []byte) []byte {
	return envReference.ReplaceAllFunc(raw, func(ref []byte) []byte {
		name := envReference.FindSubmatch(ref)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func validate(path string, data []byte) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	value := ctx.BuildFile(file)
	if err := value.Err(); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// ConnectTimeoutOrDefault returns the configured connect timeout or 10s.
func (r ResourceConfig) ConnectTimeoutOrDefault() time.Duration {
	if r.ConnectTimeout.Duration <= 0 {
		return 10 * time.Second
	}
	return r.ConnectTimeout.Duration
}
