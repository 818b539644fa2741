package posegraph

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Default counterpart offsets of relative constraints
const (
	DefaultSmallOffset = 1
	DefaultMidOffset   = 3
	DefaultLargeOffset = 5

	// DefaultPublishInterval paces consecutive relative constraints
	DefaultPublishInterval = time.Millisecond
)

// CommandPost turns labels into relative constraints and degeneracies into
// anchor constraints. It owns the label history, the degenerate-index set,
// the per-cycle counters and the pending verification batch.
type CommandPost struct {
	publisher MessagePublisher
	topics    TopicConfig
	tiers     TierConfig
	limiter   *rate.Limiter
	logger    *zap.Logger

	history      map[int]LabelSet
	degenerate   []int
	degenerateAt map[int]struct{}
	counters     ConstraintCounters
	verification *VerificationBatch
	seq          uint64
	mu           sync.Mutex
}

// NewCommandPost creates a command post publishing on the given topics.
// Zero tier offsets select the defaults.
func NewCommandPost(publisher MessagePublisher, topics TopicConfig, tiers TierConfig, interval time.Duration, logger *zap.Logger) *CommandPost {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tiers.Small <= 0 {
		tiers.Small = DefaultSmallOffset
	}
	if tiers.Mid <= 0 {
		tiers.Mid = DefaultMidOffset
	}
	if tiers.Large <= 0 {
		tiers.Large = DefaultLargeOffset
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &CommandPost{
		publisher:    publisher,
		topics:       topics,
		tiers:        tiers,
		limiter:      rate.NewLimiter(limit, 1),
		logger:       logger.Named("command_post"),
		history:      make(map[int]LabelSet),
		degenerateAt: make(map[int]struct{}),
		verification: NewVerificationBatch(),
	}
}

// ResetCycle clears the counters and the pending verification batch
func (c *CommandPost) ResetCycle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = ConstraintCounters{}
	c.verification.Reset()
}

// EvaluateLabelsPerNode merges each node's labels with its history, stores
// the result and publishes one relative constraint path for every node whose
// merged set is non-empty. Publishing is attempted for every such node
// regardless of earlier outcomes.
func (c *CommandPost) EvaluateLabelsPerNode(ctx context.Context, nodes []PoseNode, labels []LabelSet) []RelativeConstraint {
	n := min(len(nodes), len(labels))
	var emitted []RelativeConstraint
	for i := 0; i < n; i++ {
		c.mu.Lock()
		merged := MergeLabels(labels[i], c.history[i])
		if !merged.IsEmpty() {
			c.history[i] = merged
		}
		c.mu.Unlock()
		if merged.IsEmpty() {
			continue
		}

		path := PathMessage{Poses: []PoseStamped{poseFromNode(nodes[i])}}
		var constraints []RelativeConstraint
		for _, s := range merged.Severities() {
			counterpart, ok := c.counterpart(i, n, s)
			if !ok {
				continue
			}
			path.Poses = append(path.Poses, poseFromNode(nodes[counterpart]))
			constraints = append(constraints, RelativeConstraint{Node: i, Counterpart: counterpart, Tier: s})
		}
		if len(constraints) == 0 {
			continue
		}

		if err := c.limiter.Wait(ctx); err != nil {
			c.logger.Warn("relative constraint pacing interrupted", zap.Error(err))
		}
		c.publish(c.topics.RelativeNode, &path)

		c.mu.Lock()
		for _, rc := range constraints {
			switch rc.Tier {
			case SeverityLow:
				c.counters.Small++
			case SeverityMid:
				c.counters.Mid++
			case SeverityHigh:
				c.counters.Large++
			}
			constraintsEmitted.WithLabelValues(rc.Tier.String()).Inc()
		}
		c.mu.Unlock()
		emitted = append(emitted, constraints...)
	}
	return emitted
}

// counterpart picks the node paired with node i for tier s: the tier offset
// backwards, or forwards when that would leave the sequence.
func (c *CommandPost) counterpart(i, n int, s Severity) (int, bool) {
	offset := c.tiers.Small
	switch s {
	case SeverityMid:
		offset = c.tiers.Mid
	case SeverityHigh:
		offset = c.tiers.Large
	}
	if j := i - offset; j >= 0 {
		return j, true
	}
	if j := i + offset; j < n {
		return j, true
	}
	return 0, false
}

// SendAnchors publishes one anchor path for nodes[begin:end], records every
// index in the degenerate set and adds the range length to the anchor
// counter. Invalid ranges are ignored.
func (c *CommandPost) SendAnchors(nodes []PoseNode, begin, end int) {
	if begin < 0 || end > len(nodes) || begin >= end {
		c.logger.Warn("ignoring invalid anchor range",
			zap.Int("begin", begin), zap.Int("end", end), zap.Int("nodes", len(nodes)))
		return
	}
	c.logger.Error("sending degenerate anchors", zap.Int("begin", begin), zap.Int("end", end))

	path := PathMessage{Poses: make([]PoseStamped, 0, end-begin)}
	c.mu.Lock()
	for i := begin; i < end; i++ {
		path.Poses = append(path.Poses, poseFromNode(nodes[i]))
		if _, ok := c.degenerateAt[i]; !ok {
			c.degenerateAt[i] = struct{}{}
			c.degenerate = append(c.degenerate, i)
		}
	}
	c.counters.Anchor += end - begin
	degenerateIndices.Set(float64(len(c.degenerate)))
	c.mu.Unlock()

	anchorsEmitted.Add(float64(end - begin))
	c.publish(c.topics.AnchorNode, &path)
}

// UpdateDegenerateAnchors re-publishes the anchors of every recorded
// degenerate index using the refreshed nodes. It returns the number of
// anchors sent.
func (c *CommandPost) UpdateDegenerateAnchors(nodes []PoseNode) int {
	c.mu.Lock()
	indices := slices.Clone(c.degenerate)
	c.mu.Unlock()
	if len(indices) == 0 {
		return 0
	}

	path := PathMessage{}
	for _, i := range indices {
		if i < len(nodes) {
			path.Poses = append(path.Poses, poseFromNode(nodes[i]))
		}
	}
	if len(path.Poses) == 0 {
		return 0
	}
	c.logger.Error("sending degenerate anchor update", zap.Ints("indices", indices))
	c.publish(c.topics.DegenerateAnchors, &path)
	return len(path.Poses)
}

// SendIntraConstraint publishes one path over the nodes of a submap whose
// coefficients disagree. Indices outside nodes are skipped. The published
// poses are counted as large constraints; the count is returned.
func (c *CommandPost) SendIntraConstraint(nodes []PoseNode, indices []int) int {
	path := PathMessage{}
	for _, i := range indices {
		if i >= 0 && i < len(nodes) {
			path.Poses = append(path.Poses, poseFromNode(nodes[i]))
		}
	}
	if len(path.Poses) == 0 {
		return 0
	}
	c.publish(c.topics.IntraConstraint, &path)
	c.AddToConstraintCounter(0, 0, len(path.Poses))
	constraintsEmitted.WithLabelValues(SeverityHigh.String()).Add(float64(len(path.Poses)))
	return len(path.Poses)
}

// AddToConstraintCounter adds externally emitted constraints to the counters
func (c *CommandPost) AddToConstraintCounter(small, mid, large int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters.Small += small
	c.counters.Mid += mid
	c.counters.Large += large
}

// AppendVerification adds submap ids to the pending verification batch
func (c *CommandPost) AppendVerification(robot string, ids ...int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verification.Append(robot, ids...)
}

// PendingVerification returns the robot and ids of the pending batch
func (c *CommandPost) PendingVerification() (string, []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verification.RobotName(), c.verification.SubmapIDs()
}

// SendVerificationRequest publishes the pending batch. Empty batches are
// never published. It reports whether a request was sent.
func (c *CommandPost) SendVerificationRequest() bool {
	c.mu.Lock()
	if c.verification.IsEmpty() {
		c.mu.Unlock()
		return false
	}
	req := VerificationRequest{
		Header:    Header{Stamp: time.Now().UnixNano()},
		RequestID: uuid.NewString(),
		RobotName: c.verification.RobotName(),
		SubmapIDs: c.verification.SubmapIDs(),
	}
	c.mu.Unlock()

	c.logger.Info("requesting verification",
		zap.String("robot", req.RobotName), zap.Ints("submaps", req.SubmapIDs), zap.String("request_id", req.RequestID))
	c.publish(c.topics.Verification, &req)
	return true
}

// Counters returns the counters of the current cycle
func (c *CommandPost) Counters() ConstraintCounters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters
}

// TotalConstraints returns the number of relative constraints of the cycle
func (c *CommandPost) TotalConstraints() int {
	return c.Counters().Relative()
}

// History returns the accumulated labels of node i
func (c *CommandPost) History(i int) LabelSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history[i]
}

// DegenerateIndices returns the degenerate-index set in insertion order
func (c *CommandPost) DegenerateIndices() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.degenerate)
}

// Snapshot captures the state that survives restarts
func (c *CommandPost) Snapshot() EmitterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	history := make(map[int]LabelSet, len(c.history))
	for k, v := range c.history {
		history[k] = v
	}
	return EmitterState{History: history, DegenerateIndices: slices.Clone(c.degenerate)}
}

// Restore merges a previously saved state into the command post
func (c *CommandPost) Restore(state *EmitterState) {
	if state == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range state.History {
		c.history[k] = MergeLabels(v, c.history[k])
	}
	for _, i := range state.DegenerateIndices {
		if _, ok := c.degenerateAt[i]; ok || i < 0 {
			continue
		}
		c.degenerateAt[i] = struct{}{}
		c.degenerate = append(c.degenerate, i)
	}
	degenerateIndices.Set(float64(len(c.degenerate)))
}

func (c *CommandPost) publish(topic string, msg any) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	switch m := msg.(type) {
	case *PathMessage:
		m.Header.Seq = seq
		m.Header.Stamp = time.Now().UnixNano()
	case *VerificationRequest:
		m.Header.Seq = seq
	}
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(topic, msg); err != nil {
		c.logger.Warn("publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

// DegenerateWindow returns the half-open anchor range around a degenerate
// node i for a sequence of n nodes.
func DegenerateWindow(i, window, n int) (begin, end int) {
	pivot := window / 2
	return max(i-pivot, 0), min(i+(window-pivot), n)
}
