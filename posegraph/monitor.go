package posegraph

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// GraphMonitor relays the optimized graph and trajectories to the clients
// once the graph is large enough to be worth analyzing.
type GraphMonitor struct {
	config    *Config
	logger    *zap.Logger
	publisher MessagePublisher

	graph     *PoseGraph
	optimized *SignalStore
	published int
	mu        sync.Mutex
}

// MonitorStatus is a point-in-time view of the monitor
type MonitorStatus struct {
	GraphNodes    int      `json:"graphNodes"`
	GraphRevision uint64   `json:"graphRevision"`
	OptimizedKeys []string `json:"optimizedKeys"`
	Published     int      `json:"published"`
}

// NewGraphMonitor creates a monitor publishing with publisher
func NewGraphMonitor(cfg *Config, publisher MessagePublisher, logger *zap.Logger) *GraphMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphMonitor{
		config:    cfg,
		logger:    logger.Named("monitor"),
		publisher: publisher,
		graph:     NewPoseGraph(cfg.Graph.ProximityRadius),
		optimized: NewSignalStore(),
	}
}

// OnGraph rebuilds the graph when msg carries updates
func (m *GraphMonitor) OnGraph(msg *GraphMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.graph.ContainsUpdates(msg) {
		return nil
	}
	if err := m.graph.BuildFromMessage(msg); err != nil {
		return err
	}
	m.logger.Info("graph rebuilt", zap.Int("nodes", m.graph.Size()), zap.Uint64("revision", m.graph.Revision()))
	return nil
}

// OnOptimizedTrajectory stores the optimized trajectories of msg
func (m *GraphMonitor) OnOptimizedTrajectory(msg *TrajectoryMessage) error {
	keys, err := m.optimized.ConvertTrajectory(msg)
	if err != nil {
		return err
	}
	m.logger.Info("received optimized trajectory", zap.Strings("keys", keys))
	return nil
}

// Subscriptions returns the MQTT subscriptions that feed the monitor
func (m *GraphMonitor) Subscriptions() []Subscription {
	return []Subscription{
		{Topic: m.config.Topics.OptGraph, Stream: "graph", Handler: bind(m.logger, "graph", ParseGraphMessage, m.OnGraph)},
		{Topic: m.config.Topics.OptTraj, Stream: "opt_traj", Handler: bind(m.logger, "opt_traj", ParseTrajectoryMessage, m.OnOptimizedTrajectory)},
	}
}

// Update publishes the graph and every known optimized trajectory. Nothing
// is published before the graph has MinNodeCount nodes. It reports whether
// anything was published.
func (m *GraphMonitor) Update() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.graph.IsBuilt() {
		return false
	}
	if n := m.graph.Size(); n < m.config.MinNodeCount {
		m.logger.Info("not enough nodes", zap.Int("nodes", n), zap.Int("min", m.config.MinNodeCount))
		return false
	}
	if m.publisher == nil {
		return false
	}

	if err := m.publisher.Publish(m.config.Topics.MonitorGraphOut, m.graph.ToGraphMessage()); err != nil {
		m.logger.Warn("graph not relayed", zap.Error(err))
	} else {
		m.published++
	}
	for _, key := range m.optimized.Keys() {
		if err := m.publisher.Publish(m.config.Topics.MonitorTrajOut, m.optimized.ToTrajectoryMessage(key)); err != nil {
			m.logger.Warn("trajectory not relayed", zap.String("key", key), zap.Error(err))
			continue
		}
		m.published++
	}
	return true
}

// Run relays at the configured rate until ctx is done
func (m *GraphMonitor) Run(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / m.config.UpdateRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	m.logger.Info("graph monitor running", zap.Duration("interval", interval), zap.Int("min_nodes", m.config.MinNodeCount))

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("graph monitor stopped")
			return nil
		case <-ticker.C:
			m.Update()
		}
	}
}

// Status returns the current monitor status
func (m *GraphMonitor) Status() MonitorStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MonitorStatus{
		GraphNodes:    m.graph.Size(),
		GraphRevision: m.graph.Revision(),
		OptimizedKeys: m.optimized.Keys(),
		Published:     m.published,
	}
}
