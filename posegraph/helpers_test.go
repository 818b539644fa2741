package posegraph

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// publishedMessage is one call recorded by recordingPublisher
type publishedMessage struct {
	Topic string
	Msg   any
}

// recordingPublisher keeps every published message in memory
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []publishedMessage
	err  error
}

func (p *recordingPublisher) Publish(topic string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, publishedMessage{Topic: topic, Msg: v})
	return nil
}

func (p *recordingPublisher) on(topic string) []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedMessage
	for _, m := range p.msgs {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// lineNodes returns n nodes one unit apart along x, one second apart in time
func lineNodes(n int) []PoseNode {
	nodes := make([]PoseNode, n)
	for i := range nodes {
		nodes[i] = PoseNode{
			Index:       i,
			Timestamp:   int64(i) * int64(time.Second),
			Position:    [3]float64{float64(i), 0, 0},
			Orientation: [4]float64{1, 0, 0, 0},
		}
	}
	return nodes
}

func trajectoryMessage(robot string, nodes []PoseNode) *TrajectoryMessage {
	msg := &TrajectoryMessage{Nodes: make([]TrajectoryNodeMessage, len(nodes))}
	for i, n := range nodes {
		msg.Nodes[i] = TrajectoryNodeMessage{
			RobotName:  robot,
			ID:         i,
			Pose:       poseFromNode(n),
			Degenerate: n.Degenerate,
		}
	}
	return msg
}

func pathMessage(nodes []PoseNode) *PathMessage {
	msg := &PathMessage{Poses: make([]PoseStamped, len(nodes))}
	for i, n := range nodes {
		msg.Poses[i] = poseFromNode(n)
	}
	return msg
}

// chainGraphMessage connects the positions of nodes in sequence
func chainGraphMessage(seq uint64, nodes []PoseNode) *GraphMessage {
	msg := &GraphMessage{Header: Header{Seq: seq}}
	for i, n := range nodes {
		msg.Coords = append(msg.Coords, n.Position)
		if i > 0 {
			msg.Edges = append(msg.Edges, [2]int{i - 1, i})
		}
	}
	return msg
}

// testConfig returns a validated config for robot r1 with both constraint
// kinds enabled and the state cache inside a temporary directory
func testConfig(t *testing.T, mode Mode) *Config {
	t.Helper()
	cfg := &Config{
		RobotName: "r1",
		Mode:      mode,
		Enable: EnableConfig{
			AnchorConstraints:   true,
			RelativeConstraints: true,
		},
		StateCache: filepath.Join(t.TempDir(), "state.json"),
		DataRoot:   t.TempDir(),
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}
