package posegraph

import (
	"fmt"
	"slices"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// SignalStore accumulates pose sequences keyed by source robot. Incoming
// nodes are merged by timestamp: unseen timestamps are appended, known ones
// are replaced with the newer pose.
type SignalStore struct {
	signals map[string][]PoseNode
	mu      sync.RWMutex
}

// NewSignalStore creates an empty store
func NewSignalStore() *SignalStore {
	return &SignalStore{
		signals: make(map[string][]PoseNode),
	}
}

// Store merges nodes into the signal for key
func (s *SignalStore) Store(key string, nodes []PoseNode) {
	if key == "" || len(nodes) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byStamp := make(map[int64]PoseNode, len(s.signals[key])+len(nodes))
	for _, n := range s.signals[key] {
		byStamp[n.Timestamp] = n
	}
	for _, n := range nodes {
		n.RobotName = key
		byStamp[n.Timestamp] = n
	}

	merged := make([]PoseNode, 0, len(byStamp))
	for _, n := range byStamp {
		merged = append(merged, n)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })
	for i := range merged {
		merged[i].Index = i
	}
	s.signals[key] = merged
}

// ConvertTrajectory stores every robot contained in msg and returns the keys
// that were updated.
func (s *SignalStore) ConvertTrajectory(msg *TrajectoryMessage) ([]string, error) {
	if msg == nil || len(msg.Nodes) == 0 {
		return nil, fmt.Errorf("converting trajectory: %w: no nodes", ErrMalformedInput)
	}

	grouped := make(map[string][]PoseNode)
	var keys []string
	for _, tn := range msg.Nodes {
		if tn.RobotName == "" {
			continue
		}
		if _, ok := grouped[tn.RobotName]; !ok {
			keys = append(keys, tn.RobotName)
		}
		grouped[tn.RobotName] = append(grouped[tn.RobotName], PoseNode{
			Index:       tn.ID,
			Timestamp:   tn.Pose.Stamp,
			Position:    tn.Pose.Position,
			Orientation: tn.Pose.Orientation,
			Degenerate:  tn.Degenerate || tn.Pose.Degenerate,
			RobotName:   tn.RobotName,
		})
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("converting trajectory: %w: nodes carry no robot name", ErrMalformedInput)
	}

	for _, key := range keys {
		s.Store(key, grouped[key])
	}
	return keys, nil
}

// ConvertPath stores the poses of an estimated path under robot
func (s *SignalStore) ConvertPath(msg *PathMessage, robot string) (string, error) {
	if msg == nil || len(msg.Poses) == 0 {
		return "", fmt.Errorf("converting path: %w: no poses", ErrMalformedInput)
	}
	if robot == "" {
		return "", fmt.Errorf("converting path: %w: no robot name", ErrMalformedInput)
	}

	nodes := make([]PoseNode, len(msg.Poses))
	for i, p := range msg.Poses {
		nodes[i] = PoseNode{
			Index:       i,
			Timestamp:   p.Stamp,
			Position:    p.Position,
			Orientation: p.Orientation,
			Degenerate:  p.Degenerate,
			RobotName:   robot,
		}
	}
	s.Store(robot, nodes)
	return robot, nil
}

// HasKey reports whether a signal exists for key
func (s *SignalStore) HasKey(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.signals[key]
	return ok
}

// Keys returns all keys in sorted order
func (s *SignalStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.signals))
	for k := range s.signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Nodes returns a copy of the ordered node sequence for key
func (s *SignalStore) Nodes(key string) []PoseNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.signals[key])
}

// ToTrajectoryMessage serializes the signal for key
func (s *SignalStore) ToTrajectoryMessage(key string) *TrajectoryMessage {
	nodes := s.Nodes(key)
	msg := &TrajectoryMessage{Nodes: make([]TrajectoryNodeMessage, len(nodes))}
	for i, n := range nodes {
		msg.Nodes[i] = TrajectoryNodeMessage{
			RobotName:  key,
			ID:         n.Index,
			Pose:       poseFromNode(n),
			Degenerate: n.Degenerate,
		}
	}
	return msg
}

// ComputeSignal returns the N×3 position matrix
func ComputeSignal(nodes []PoseNode) *mat.Dense {
	if len(nodes) == 0 {
		return nil
	}
	x := mat.NewDense(len(nodes), 3, nil)
	for i, n := range nodes {
		x.SetRow(i, n.Position[:])
	}
	return x
}

// ComputeOrientations returns the N×4 orientation matrix (w, x, y, z)
func ComputeOrientations(nodes []PoseNode) *mat.Dense {
	if len(nodes) == 0 {
		return nil
	}
	q := mat.NewDense(len(nodes), 4, nil)
	for i, n := range nodes {
		q.SetRow(i, n.Orientation[:])
	}
	return q
}

// ComputeTimestamps returns the node timestamps in nanoseconds
func ComputeTimestamps(nodes []PoseNode) []float64 {
	ts := make([]float64, len(nodes))
	for i, n := range nodes {
		ts[i] = float64(n.Timestamp)
	}
	return ts
}

// ComputeTrajectory returns the N×8 array (ts, x, y, z, qw, qx, qy, qz)
func ComputeTrajectory(nodes []PoseNode) *mat.Dense {
	if len(nodes) == 0 {
		return nil
	}
	t := mat.NewDense(len(nodes), 8, nil)
	for i, n := range nodes {
		t.Set(i, 0, float64(n.Timestamp))
		for k := 0; k < 3; k++ {
			t.Set(i, 1+k, n.Position[k])
		}
		for k := 0; k < 4; k++ {
			t.Set(i, 4+k, n.Orientation[k])
		}
	}
	return t
}

// ComputePoses returns the N×8 array consumed by PoseGraph.Build
// (x, y, z, qw, qx, qy, qz, ts).
func ComputePoses(nodes []PoseNode) *mat.Dense {
	if len(nodes) == 0 {
		return nil
	}
	p := mat.NewDense(len(nodes), 8, nil)
	for i, n := range nodes {
		for k := 0; k < 3; k++ {
			p.Set(i, k, n.Position[k])
		}
		for k := 0; k < 4; k++ {
			p.Set(i, 3+k, n.Orientation[k])
		}
		p.Set(i, 7, float64(n.Timestamp))
	}
	return p
}

func poseFromNode(n PoseNode) PoseStamped {
	return PoseStamped{
		Stamp:       n.Timestamp,
		Position:    n.Position,
		Orientation: n.Orientation,
		Degenerate:  n.Degenerate,
	}
}
