package posegraph

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")
	t.Setenv("FGSP_ROBOT_NAME", "")
	path := writeConfig(t, "robotName: r1\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ModeMultiscale, cfg.Mode)
	assert.Equal(t, DefaultUpdateRate, cfg.UpdateRate)
	assert.Equal(t, DefaultScales, cfg.Wavelet.Scales)
	assert.Equal(t, DefaultBands, cfg.Wavelet.Bands)
	assert.Equal(t, ClassifierThreshold, cfg.Classifier.Type)
	assert.Equal(t, ThresholdConfig{Low: 0.5, Mid: 0.21, High: 0.11}, cfg.Classifier.Thresholds)
	assert.Equal(t, DefaultTopK, cfg.Classifier.TopK)
	assert.Equal(t, TierConfig{Small: 1, Mid: 3, Large: 5}, cfg.Tiers)
	assert.Equal(t, DefaultSyncTolerance, cfg.SyncTolerance)
	assert.Equal(t, DefaultTopics(), cfg.Topics)
	assert.Equal(t, DefaultHTTPPort, cfg.HTTP.Port)
	assert.Equal(t, DefaultStateCachePath, cfg.StateCache)
}

func TestLoadConfig_Values(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")
	t.Setenv("FGSP_ROBOT_NAME", "")
	path := writeConfig(t, `
robotName: cerberus
mode: euclidean
updateRate: 0.5
degenerateWindow: 4
syncTolerance: 50ms
mqtt:
  broker: tcp://broker:1883
  qos: 1
enable:
  anchorConstraints: true
  relativeConstraints: true
topics:
  optGraph: fleet/graph
classifier:
  type: top
  topK: 3
wavelet:
  scales: 5
  bands:
    low: [0, 1]
    mid: [1, 3]
    high: [3, 5]
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "cerberus", cfg.RobotName)
	assert.Equal(t, ModeEuclidean, cfg.Mode)
	assert.Equal(t, 0.5, cfg.UpdateRate)
	assert.Equal(t, 4, cfg.DegenerateWindow)
	assert.Equal(t, 50*time.Millisecond, cfg.SyncTolerance)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.True(t, cfg.Enable.AnchorConstraints)
	assert.Equal(t, "fleet/graph", cfg.Topics.OptGraph)
	assert.Equal(t, DefaultTopics().OptTraj, cfg.Topics.OptTraj, "unset topics keep their default")
	assert.Equal(t, 3, cfg.Classifier.TopK)
	assert.Equal(t, [2]int{3, 5}, cfg.Wavelet.Bands.High)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://env:1883")
	t.Setenv("MQTT_CLIENT_ID", "env-client")
	t.Setenv("FGSP_ROBOT_NAME", "env-robot")
	path := writeConfig(t, "robotName: r1\nmqtt:\n  broker: tcp://file:1883\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://env:1883", cfg.MQTT.Broker)
	assert.Equal(t, "env-client", cfg.MQTT.ClientID)
	assert.Equal(t, "env-robot", cfg.RobotName)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Setenv("FGSP_ROBOT_NAME", "")

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing robot", "mode: multiscale\n", "robotName is required"},
		{"unknown mode", "robotName: r1\nmode: psychic\n", "mode"},
		{"bad qos", "robotName: r1\nmqtt:\n  qos: 3\n", "qos"},
		{"negative window", "robotName: r1\ndegenerateWindow: -2\n", "degenerateWindow"},
		{"negative radius", "robotName: r1\ngraph:\n  proximityRadius: -1\n", "proximityRadius"},
		{"unknown classifier", "robotName: r1\nclassifier:\n  type: svm\n", "classifier.type"},
		{"band past scales", "robotName: r1\nwavelet:\n  scales: 4\n", "wavelet.bands.high"},
		{"invalid yaml", "robotName: [unclosed\n", "parsing config YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should mention %q", err, tt.wantErr)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")
	t.Setenv("FGSP_ROBOT_NAME", "")
	cfg := testConfig(t, ModeAbsolute)
	path := filepath.Join(t.TempDir(), "saved.yaml")

	require.NoError(t, SaveConfig(path, cfg))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
