package posegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphMonitor_MinNodeGate(t *testing.T) {
	cfg := testConfig(t, ModeMultiscale)
	cfg.MinNodeCount = 5
	pub := &recordingPublisher{}
	m := NewGraphMonitor(cfg, pub, nil)

	assert.False(t, m.Update(), "nothing to relay before the first graph")

	require.NoError(t, m.OnGraph(chainGraphMessage(1, lineNodes(4))))
	assert.False(t, m.Update(), "four nodes are below the minimum")
	assert.Empty(t, pub.msgs)

	require.NoError(t, m.OnGraph(chainGraphMessage(2, lineNodes(5))))
	require.NoError(t, m.OnOptimizedTrajectory(trajectoryMessage("r1", lineNodes(5))))
	require.NoError(t, m.OnOptimizedTrajectory(trajectoryMessage("r2", lineNodes(3))))
	assert.True(t, m.Update())

	graphs := pub.on(cfg.Topics.MonitorGraphOut)
	require.Len(t, graphs, 1)
	assert.Len(t, graphs[0].Msg.(*GraphMessage).Coords, 5)
	assert.Len(t, pub.on(cfg.Topics.MonitorTrajOut), 2)

	st := m.Status()
	assert.Equal(t, 5, st.GraphNodes)
	assert.Equal(t, []string{"r1", "r2"}, st.OptimizedKeys)
	assert.Equal(t, 3, st.Published)
}

func TestGraphMonitor_IgnoresRepeatedGraph(t *testing.T) {
	cfg := testConfig(t, ModeMultiscale)
	m := NewGraphMonitor(cfg, &recordingPublisher{}, nil)

	msg := chainGraphMessage(1, lineNodes(3))
	require.NoError(t, m.OnGraph(msg))
	require.NoError(t, m.OnGraph(msg))
	assert.Equal(t, uint64(1), m.Status().GraphRevision)

	assert.Error(t, m.OnOptimizedTrajectory(&TrajectoryMessage{}))
	assert.Len(t, m.Subscriptions(), 2)
}
