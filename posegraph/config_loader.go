package posegraph

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Configuration defaults
const (
	DefaultUpdateRate       = 1.0 // Hz
	DefaultDegenerateWindow = 10
	DefaultMinNodeCount     = 10
	DefaultSubmapThreshold  = 0.1
	DefaultHTTPPort         = 8080
)

// DefaultTopics returns the topic layout used when a topic is not configured
func DefaultTopics() TopicConfig {
	return TopicConfig{
		OptGraph:          "fgsp/graph",
		OptTraj:           "fgsp/trajectory/optimized",
		EstTraj:           "fgsp/trajectory/estimated",
		EstTrajPath:       "fgsp/path/estimated",
		SubmapConstraint:  "fgsp/submap_constraints",
		ClientUpdate:      "fgsp/client_update",
		IntraConstraint:   "fgsp/constraints/intra",
		RelativeNode:      "fgsp/constraints/relative",
		AnchorNode:        "fgsp/constraints/anchor",
		DegenerateAnchors: "fgsp/constraints/degenerate_anchor",
		Verification:      "fgsp/verification",
		MonitorGraphOut:   "fgsp/monitor/graph",
		MonitorTrajOut:    "fgsp/monitor/trajectory",
	}
}

// LoadConfig loads the configuration from a YAML file, applies environment
// overrides and defaults, and validates the result
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	config.applyEnv()
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("MQTT_CLIENT_ID"); v != "" {
		c.MQTT.ClientID = v
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		c.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		c.MQTT.Password = v
	}
	if v := os.Getenv("FGSP_ROBOT_NAME"); v != "" {
		c.RobotName = v
	}
}

// ApplyDefaults fills every unset field with its default
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeMultiscale
	}
	if c.UpdateRate <= 0 {
		c.UpdateRate = DefaultUpdateRate
	}
	if c.DegenerateWindow == 0 {
		c.DegenerateWindow = DefaultDegenerateWindow
	}
	if c.MinNodeCount <= 0 {
		c.MinNodeCount = DefaultMinNodeCount
	}
	if c.SyncTolerance <= 0 {
		c.SyncTolerance = DefaultSyncTolerance
	}
	if c.Wavelet.Scales <= 0 {
		c.Wavelet.Scales = DefaultScales
	}
	if c.Wavelet.Bands == (BandConfig{}) {
		c.Wavelet.Bands = DefaultBands
	}

	if c.Classifier.Type == "" {
		c.Classifier.Type = ClassifierThreshold
	}
	if c.Classifier.TopK <= 0 {
		c.Classifier.TopK = DefaultTopK
	}
	if c.Classifier.Thresholds == (ThresholdConfig{}) {
		c.Classifier.Thresholds = ThresholdConfig{
			Low:  DefaultLowThreshold,
			Mid:  DefaultMidThreshold,
			High: DefaultHighThreshold,
		}
	}
	if c.Classifier.DistanceBound <= 0 {
		c.Classifier.DistanceBound = DefaultDistanceBound
	}

	if c.Tiers.Small <= 0 {
		c.Tiers.Small = DefaultSmallOffset
	}
	if c.Tiers.Mid <= 0 {
		c.Tiers.Mid = DefaultMidOffset
	}
	if c.Tiers.Large <= 0 {
		c.Tiers.Large = DefaultLargeOffset
	}
	if c.SubmapThreshold <= 0 {
		c.SubmapThreshold = DefaultSubmapThreshold
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = DefaultPublishInterval
	}
	if c.DataRoot == "" {
		c.DataRoot = "."
	}
	if c.StateCache == "" {
		c.StateCache = DefaultStateCachePath
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}

	def := DefaultTopics()
	setDefault := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	setDefault(&c.Topics.OptGraph, def.OptGraph)
	setDefault(&c.Topics.OptTraj, def.OptTraj)
	setDefault(&c.Topics.EstTraj, def.EstTraj)
	setDefault(&c.Topics.EstTrajPath, def.EstTrajPath)
	setDefault(&c.Topics.SubmapConstraint, def.SubmapConstraint)
	setDefault(&c.Topics.ClientUpdate, def.ClientUpdate)
	setDefault(&c.Topics.IntraConstraint, def.IntraConstraint)
	setDefault(&c.Topics.RelativeNode, def.RelativeNode)
	setDefault(&c.Topics.AnchorNode, def.AnchorNode)
	setDefault(&c.Topics.DegenerateAnchors, def.DegenerateAnchors)
	setDefault(&c.Topics.Verification, def.Verification)
	setDefault(&c.Topics.MonitorGraphOut, def.MonitorGraphOut)
	setDefault(&c.Topics.MonitorTrajOut, def.MonitorTrajOut)
}

// Validate checks the configuration for values the pipeline cannot run with
func (c *Config) Validate() error {
	if c.RobotName == "" {
		return fmt.Errorf("robotName is required")
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("mode %q is not one of multiscale, euclidean, always, absolute", c.Mode)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.DegenerateWindow < 0 {
		return fmt.Errorf("degenerateWindow must not be negative, got %d", c.DegenerateWindow)
	}
	if c.Graph.ProximityRadius < 0 {
		return fmt.Errorf("graph.proximityRadius must not be negative")
	}
	switch c.Classifier.Type {
	case ClassifierThreshold, ClassifierTop, ClassifierDistance:
	default:
		return fmt.Errorf("classifier.type %q is not one of threshold, top, distance", c.Classifier.Type)
	}

	bands := []struct {
		name string
		b    [2]int
	}{
		{"low", c.Wavelet.Bands.Low},
		{"mid", c.Wavelet.Bands.Mid},
		{"high", c.Wavelet.Bands.High},
	}
	for _, band := range bands {
		name, b := band.name, band.b
		if b[0] < 0 || b[0] >= b[1] || b[1] > c.Wavelet.Scales {
			return fmt.Errorf("wavelet.bands.%s [%d, %d) must be a non-empty range within %d scales",
				name, b[0], b[1], c.Wavelet.Scales)
		}
	}
	return nil
}
