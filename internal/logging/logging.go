package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/grafana/loki-client-go/loki"
	"github.com/prometheus/common/model"
	"github.com/rs/zerolog"

	"github.com/timzifer/xarecover/config"
)

const appName = "xarecover"

// Setup creates a zerolog logger according to the provided configuration.
// The returned cleanup stops the Loki client when one is enabled and may be
// called more than once.
func Setup(cfg config.LoggingConfig) (zerolog.Logger, func(), error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = ""
	}
	return setup(cfg, os.Stdout, hostname, newLokiClient)
}

type pushClient interface {
	Handle(labels model.LabelSet, ts time.Time, line string) error
	Stop()
}

type clientFactory func(url string) (pushClient, error)

func newLokiClient(url string) (pushClient, error) {
	lokiCfg, err := loki.NewDefaultConfig(url)
	if err != nil {
		return nil, fmt.Errorf("prepare loki config: %w", err)
	}
	client, err := loki.New(lokiCfg)
	if err != nil {
		return nil, fmt.Errorf("create loki client: %w", err)
	}
	return client, nil
}

func setup(cfg config.LoggingConfig, out io.Writer, hostname string, newClient clientFactory) (zerolog.Logger, func(), error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	writers := []io.Writer{consoleWriter(cfg.Format, out)}
	cleanup := func() {}
	if cfg.Loki.Enabled {
		if cfg.Loki.URL == "" {
			return zerolog.Logger{}, nil, fmt.Errorf("loki url is required")
		}
		client, err := newClient(cfg.Loki.URL)
		if err != nil {
			return zerolog.Logger{}, nil, err
		}
		writers = append(writers, &lokiWriter{client: client, labels: streamLabels(cfg.Loki.Labels, hostname)})
		var once sync.Once
		cleanup = func() { once.Do(client.Stop) }
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger().Level(level)
	return logger, cleanup, nil
}

func parseLevel(raw string) (zerolog.Level, error) {
	if raw == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}

func consoleWriter(format string, out io.Writer) io.Writer {
	if strings.EqualFold(format, "text") {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return out
}

// streamLabels identifies the process in Loki. Every node runs its own
// recovery scan, so app and host are always set unless configured otherwise.
func streamLabels(configured map[string]string, hostname string) model.LabelSet {
	labels := model.LabelSet{"app": appName}
	if hostname != "" {
		labels["host"] = model.LabelValue(hostname)
	}
	for k, v := range configured {
		labels[model.LabelName(k)] = model.LabelValue(v)
	}
	return labels
}

type lokiWriter struct {
	client pushClient
	labels model.LabelSet
}

func (l *lokiWriter) Write(p []byte) (int, error) {
	entry := strings.TrimSpace(string(p))
	if entry == "" {
		return len(p), nil
	}
	err := l.client.Handle(l.labels, time.Now(), entry)
	return len(p), err
}
