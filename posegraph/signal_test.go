package posegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalStore_MergesByTimestamp(t *testing.T) {
	s := NewSignalStore()
	s.Store("r1", []PoseNode{
		{Timestamp: 20, Position: [3]float64{2, 0, 0}},
		{Timestamp: 10, Position: [3]float64{1, 0, 0}},
	})
	s.Store("r1", []PoseNode{
		{Timestamp: 20, Position: [3]float64{2.5, 0, 0}},
		{Timestamp: 30, Position: [3]float64{3, 0, 0}},
	})

	nodes := s.Nodes("r1")
	require.Len(t, nodes, 3)
	for i, n := range nodes {
		assert.Equal(t, i, n.Index)
		assert.Equal(t, "r1", n.RobotName)
	}
	assert.Equal(t, []int64{10, 20, 30}, []int64{nodes[0].Timestamp, nodes[1].Timestamp, nodes[2].Timestamp})
	assert.Equal(t, 2.5, nodes[1].Position[0], "a known timestamp takes the newer pose")
}

func TestSignalStore_NodesIsACopy(t *testing.T) {
	s := NewSignalStore()
	s.Store("r1", lineNodes(2))

	nodes := s.Nodes("r1")
	nodes[0].Position[0] = 99
	assert.Equal(t, 0.0, s.Nodes("r1")[0].Position[0])
}

func TestSignalStore_ConvertTrajectory(t *testing.T) {
	s := NewSignalStore()
	msg := &TrajectoryMessage{Nodes: []TrajectoryNodeMessage{
		{RobotName: "r2", ID: 0, Pose: PoseStamped{Stamp: 1}},
		{RobotName: "r1", ID: 0, Pose: PoseStamped{Stamp: 1}},
		{RobotName: "", ID: 5, Pose: PoseStamped{Stamp: 9}},
		{RobotName: "r2", ID: 1, Pose: PoseStamped{Stamp: 2}, Degenerate: true},
	}}

	keys, err := s.ConvertTrajectory(msg)
	require.NoError(t, err)
	assert.Equal(t, []string{"r2", "r1"}, keys)
	assert.Equal(t, []string{"r1", "r2"}, s.Keys())
	assert.Len(t, s.Nodes("r2"), 2)
	assert.True(t, s.Nodes("r2")[1].Degenerate)
	assert.False(t, s.HasKey(""))
}

func TestSignalStore_ConvertErrors(t *testing.T) {
	s := NewSignalStore()

	_, err := s.ConvertTrajectory(nil)
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = s.ConvertTrajectory(&TrajectoryMessage{Nodes: []TrajectoryNodeMessage{{ID: 1}}})
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = s.ConvertPath(&PathMessage{}, "r1")
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = s.ConvertPath(pathMessage(lineNodes(2)), "")
	assert.ErrorIs(t, err, ErrMalformedInput)

	assert.Empty(t, s.Keys())
}

func TestSignalStore_ToTrajectoryMessage(t *testing.T) {
	s := NewSignalStore()
	key, err := s.ConvertPath(pathMessage(lineNodes(3)), "r1")
	require.NoError(t, err)

	msg := s.ToTrajectoryMessage(key)
	require.Len(t, msg.Nodes, 3)
	assert.Equal(t, "r1", msg.Nodes[2].RobotName)
	assert.Equal(t, 2, msg.Nodes[2].ID)
	assert.Equal(t, [3]float64{2, 0, 0}, msg.Nodes[2].Pose.Position)
}

func TestComputeArrays(t *testing.T) {
	nodes := []PoseNode{{
		Timestamp:   42,
		Position:    [3]float64{1, 2, 3},
		Orientation: [4]float64{0.5, 0.1, 0.2, 0.3},
	}}

	x := ComputeSignal(nodes)
	r, c := x.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 3.0, x.At(0, 2))

	q := ComputeOrientations(nodes)
	assert.Equal(t, 0.3, q.At(0, 3))

	traj := ComputeTrajectory(nodes)
	assert.Equal(t, 42.0, traj.At(0, 0), "trajectory starts with the timestamp")
	assert.Equal(t, 1.0, traj.At(0, 1))
	assert.Equal(t, 0.5, traj.At(0, 4))

	poses := ComputePoses(nodes)
	assert.Equal(t, 1.0, poses.At(0, 0), "poses start with the position")
	assert.Equal(t, 0.5, poses.At(0, 3))
	assert.Equal(t, 42.0, poses.At(0, 7))

	assert.Equal(t, []float64{42}, ComputeTimestamps(nodes))
	assert.Nil(t, ComputeSignal(nil))
}
