package logging

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/common/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/timzifer/xarecover/config"
)

type recordingClient struct {
	mu      sync.Mutex
	labels  []model.LabelSet
	lines   []string
	stopped int
}

func (c *recordingClient) Handle(labels model.LabelSet, _ time.Time, line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels = append(c.labels, labels)
	c.lines = append(c.lines, line)
	return nil
}

func (c *recordingClient) Stop() {
	c.mu.Lock()
	c.stopped++
	c.mu.Unlock()
}

func noClient(string) (pushClient, error) {
	return nil, errors.New("loki disabled in test")
}

func TestSetupDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := setup(config.LoggingConfig{}, &buf, "node-1", noClient)
	require.NoError(t, err)
	defer cleanup()

	require.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	logger.Debug().Msg("hidden")
	logger.Info().Str("resource", "broker1").Msg("visible")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"resource":"broker1"`)
}

func TestSetupTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := setup(config.LoggingConfig{Level: "DEBUG", Format: "text"}, &buf, "node-1", noClient)
	require.NoError(t, err)
	defer cleanup()

	logger.Debug().Msg("console line")
	require.Contains(t, buf.String(), "console line")
	require.NotContains(t, buf.String(), `"message"`)
}

func TestSetupRejectsInvalidLevel(t *testing.T) {
	_, _, err := setup(config.LoggingConfig{Level: "verbose"}, &bytes.Buffer{}, "node-1", noClient)
	require.Error(t, err)
}

func TestSetupRequiresLokiURL(t *testing.T) {
	_, _, err := setup(config.LoggingConfig{Loki: config.LokiConfig{Enabled: true}}, &bytes.Buffer{}, "node-1", noClient)
	require.Error(t, err)
}

func TestSetupPropagatesLokiClientError(t *testing.T) {
	cfg := config.LoggingConfig{Loki: config.LokiConfig{Enabled: true, URL: "http://loki:3100/loki/api/v1/push"}}
	_, _, err := setup(cfg, &bytes.Buffer{}, "node-1", noClient)
	require.ErrorContains(t, err, "loki disabled in test")
}

func TestSetupPushesToLokiWithStreamLabels(t *testing.T) {
	client := &recordingClient{}
	var requestedURL string
	newClient := func(url string) (pushClient, error) {
		requestedURL = url
		return client, nil
	}
	cfg := config.LoggingConfig{Loki: config.LokiConfig{
		Enabled: true,
		URL:     "http://loki:3100/loki/api/v1/push",
		Labels:  map[string]string{"env": "prod"},
	}}

	var buf bytes.Buffer
	logger, cleanup, err := setup(cfg, &buf, "node-1", newClient)
	require.NoError(t, err)
	require.Equal(t, cfg.Loki.URL, requestedURL)

	logger.Info().Str("resource", "broker1").Msg("resource manager registered for recovery")
	require.Len(t, client.lines, 1)
	require.Contains(t, client.lines[0], "resource manager registered for recovery")
	require.Equal(t, model.LabelSet{"app": "xarecover", "host": "node-1", "env": "prod"}, client.labels[0])
	require.Contains(t, buf.String(), "resource manager registered for recovery")

	cleanup()
	cleanup()
	require.Equal(t, 1, client.stopped)
}

func TestStreamLabels(t *testing.T) {
	require.Equal(t, model.LabelSet{"app": "xarecover"}, streamLabels(nil, ""))
	require.Equal(t,
		model.LabelSet{"app": "billing", "host": "node-2"},
		streamLabels(map[string]string{"app": "billing"}, "node-2"))
}
