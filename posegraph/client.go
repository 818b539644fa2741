package posegraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TickResult is the outcome of one GraphClient.Update call
type TickResult string

const (
	TickCompleted TickResult = "completed"
	TickAborted   TickResult = "aborted"
	TickSkipped   TickResult = "skipped"
)

// GraphClient compares the estimated trajectory of one robot with its
// optimized counterpart on every tick and feeds corrections back as relative
// and anchor constraints.
//
// Handler state is guarded by mu. The comparison graphs and their analyzers
// belong to the running tick and are used without it. Submap constraints
// have their own lock inside SubmapConstraintStore.
type GraphClient struct {
	config       *Config
	logger       *zap.Logger
	publisher    MessagePublisher
	commander    *CommandPost
	classifier   Classifier
	synchronizer *Synchronizer
	recorder     *Recorder
	renderer     *TrajectoryRenderer

	globalGraph *PoseGraph
	optGraph    *PoseGraph
	robotGraph  *PoseGraph
	eval        *WaveletAnalyzer
	robotEval   *WaveletAnalyzer
	signal      *SignalStore
	optimized   *SignalStore
	constraints *SubmapConstraintStore

	latestPath       *PathMessage
	latestGraph      *GraphMessage
	optimizedUpdated bool
	overlay          *TrajectoryOverlay

	isUpdating    bool
	lastUpdateSeq uint64
	lastResult    TickResult
	lastTick      time.Time
	mu            sync.Mutex
}

// ClientStatus is a point-in-time view of the client for the status endpoint
type ClientStatus struct {
	RobotName         string             `json:"robotName"`
	Mode              Mode               `json:"mode"`
	IsUpdating        bool               `json:"isUpdating"`
	LastUpdateSeq     uint64             `json:"lastUpdateSeq"`
	LastResult        TickResult         `json:"lastResult,omitempty"`
	LastTick          time.Time          `json:"lastTick,omitzero"`
	GraphRevision     uint64             `json:"graphRevision"`
	GraphNodes        int                `json:"graphNodes"`
	EstimatedKeys     []string           `json:"estimatedKeys"`
	OptimizedKeys     []string           `json:"optimizedKeys"`
	Submaps           int                `json:"submaps"`
	Counters          ConstraintCounters `json:"counters"`
	DegenerateIndices []int              `json:"degenerateIndices"`
}

// NewGraphClient wires the pipeline for cfg. Recording directories are
// created when signal or trajectory recording is enabled.
func NewGraphClient(cfg *Config, publisher MessagePublisher, logger *zap.Logger) (*GraphClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("graph client: no configuration")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	classifier, err := NewClassifier(cfg.Mode, cfg.Classifier)
	if err != nil {
		return nil, fmt.Errorf("graph client: %w", err)
	}

	c := &GraphClient{
		config:       cfg,
		logger:       logger.Named("client"),
		publisher:    publisher,
		commander:    NewCommandPost(publisher, cfg.Topics, cfg.Tiers, cfg.PublishInterval, logger),
		classifier:   classifier,
		synchronizer: NewSynchronizer(cfg.SyncTolerance),
		renderer:     NewTrajectoryRenderer(cfg.Render),
		globalGraph:  NewPoseGraph(cfg.Graph.ProximityRadius),
		optGraph:     NewPoseGraph(cfg.Graph.ProximityRadius),
		robotGraph:   NewPoseGraph(cfg.Graph.ProximityRadius),
		eval:         NewWaveletAnalyzer(cfg.Wavelet.Scales, logger.Named("eval")),
		robotEval:    NewWaveletAnalyzer(cfg.Wavelet.Scales, logger.Named("robot_eval")),
		signal:       NewSignalStore(),
		optimized:    NewSignalStore(),
		constraints:  NewSubmapConstraintStore(),
	}

	if cfg.Enable.SignalRecording || cfg.Enable.TrajectoryRecording {
		rec, err := NewRecorder(cfg.DataRoot, cfg.RobotName, logger)
		if err != nil {
			return nil, fmt.Errorf("graph client: %w", err)
		}
		c.recorder = rec
	}
	return c, nil
}

func (c *GraphClient) constraintsEnabled() bool {
	return c.config.Enable.AnchorConstraints || c.config.Enable.RelativeConstraints
}

// OnGlobalGraph rebuilds the global graph when msg carries updates. The
// global graph gates multiscale ticks and is relayed as client update; the
// wavelet basis is taken from the synchronized poses on every tick.
func (c *GraphClient) OnGlobalGraph(msg *GraphMessage) error {
	if !c.constraintsEnabled() {
		return nil
	}
	if msg == nil {
		return fmt.Errorf("graph: %w: empty message", ErrMalformedInput)
	}
	c.logger.Info("received graph", zap.String("frame", msg.Header.FrameID), zap.Uint64("seq", msg.Header.Seq))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestGraph = msg
	if c.config.Mode != ModeMultiscale || !c.globalGraph.ContainsUpdates(msg) {
		return nil
	}
	if err := c.rebuildGlobalGraph(msg); err != nil {
		return err
	}
	if c.recorder != nil && c.config.Enable.SignalRecording {
		if err := c.recorder.RecordGraph("opt", c.globalGraph); err != nil {
			c.logger.Warn("recording graph failed", zap.Error(err))
		}
	}
	return nil
}

// OnClientUpdate handles a graph relayed by another client. It rebuilds like
// OnGlobalGraph but is never recorded.
func (c *GraphClient) OnClientUpdate(msg *GraphMessage) error {
	if !c.constraintsEnabled() {
		return nil
	}
	if msg == nil {
		return fmt.Errorf("client update: %w: empty message", ErrMalformedInput)
	}
	c.logger.Info("received client update", zap.Uint64("seq", msg.Header.Seq))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.config.Mode != ModeMultiscale || !c.globalGraph.ContainsUpdates(msg) {
		return nil
	}
	return c.rebuildGlobalGraph(msg)
}

// rebuildGlobalGraph must be called with mu held
func (c *GraphClient) rebuildGlobalGraph(msg *GraphMessage) error {
	if err := c.globalGraph.BuildFromMessage(msg); err != nil {
		return err
	}
	graphRevision.Set(float64(c.globalGraph.Revision()))
	return nil
}

// OnOptimizedTrajectory stores the optimized trajectories of msg
func (c *GraphClient) OnOptimizedTrajectory(msg *TrajectoryMessage) error {
	if !c.constraintsEnabled() {
		return nil
	}
	keys, err := c.optimized.ConvertTrajectory(msg)
	if err != nil {
		return err
	}
	c.logger.Info("received optimized trajectory", zap.Strings("keys", keys))
	for _, k := range keys {
		if k == c.config.RobotName {
			c.mu.Lock()
			c.optimizedUpdated = true
			c.mu.Unlock()
			break
		}
	}
	return nil
}

// OnEstimatedTrajectory stores the estimated trajectories of msg
func (c *GraphClient) OnEstimatedTrajectory(msg *TrajectoryMessage) error {
	keys, err := c.signal.ConvertTrajectory(msg)
	if err != nil {
		return err
	}
	c.logger.Debug("received estimated trajectory", zap.Strings("keys", keys))
	return nil
}

// OnEstimatedPath keeps the latest estimated path of this robot. It is
// converted on the next tick.
func (c *GraphClient) OnEstimatedPath(msg *PathMessage) error {
	if !c.constraintsEnabled() {
		return nil
	}
	if msg == nil || len(msg.Poses) == 0 {
		return fmt.Errorf("estimated path: %w: no poses", ErrMalformedInput)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latestPath = msg
	return nil
}

// OnSubmapConstraint merges submap constraints under the submap lock only
func (c *GraphClient) OnSubmapConstraint(msg *SubmapConstraintMessage) error {
	if !c.config.Enable.SubmapConstraints {
		c.logger.Debug("ignoring submap constraints, disabled")
		return nil
	}
	n, err := c.constraints.Add(msg)
	if err != nil {
		return err
	}
	c.logger.Info("received submap constraints", zap.Int("submaps", n))
	return nil
}

// Subscriptions returns the MQTT subscriptions that feed the client
func (c *GraphClient) Subscriptions() []Subscription {
	t := c.config.Topics
	subs := []Subscription{
		{Topic: t.OptGraph, Stream: "graph", Handler: bind(c.logger, "graph", ParseGraphMessage, c.OnGlobalGraph)},
		{Topic: t.OptTraj, Stream: "opt_traj", Handler: bind(c.logger, "opt_traj", ParseTrajectoryMessage, c.OnOptimizedTrajectory)},
		{Topic: t.EstTraj, Stream: "est_traj", Handler: bind(c.logger, "est_traj", ParseTrajectoryMessage, c.OnEstimatedTrajectory)},
		{Topic: t.EstTrajPath, Stream: "est_path", Handler: bind(c.logger, "est_path", ParsePathMessage, c.OnEstimatedPath)},
	}
	if c.config.Enable.SubmapConstraints {
		subs = append(subs, Subscription{
			Topic: t.SubmapConstraint, Stream: "submap_constraints",
			Handler: bind(c.logger, "submap_constraints", ParseSubmapConstraintMessage, c.OnSubmapConstraint),
		})
	}
	if c.config.Enable.ClientUpdate {
		subs = append(subs, Subscription{
			Topic: t.ClientUpdate, Stream: "client_update",
			Handler: bind(c.logger, "client_update", ParseGraphMessage, c.OnClientUpdate),
		})
	}
	return subs
}

// bind adapts a typed handler to a raw MQTT payload handler. Malformed
// payloads are logged and dropped.
func bind[T any](logger *zap.Logger, stream string, parse func([]byte) (*T, error), fn func(*T) error) MessageHandler {
	return func(payload []byte) {
		msg, err := parse(payload)
		if err == nil {
			err = fn(msg)
		}
		if err != nil {
			messagesReceived.WithLabelValues(stream, "error").Inc()
			logger.Warn("dropping message", zap.String("stream", stream), zap.Error(err))
			return
		}
		messagesReceived.WithLabelValues(stream, "ok").Inc()
	}
}

// Bootstrap seeds the optimized trajectory of this robot from the configured
// HTTP endpoint. Nodes of other robots in the snapshot are not stored.
func (c *GraphClient) Bootstrap(ctx context.Context, opts ...FetchOption) error {
	if c.config.BootstrapURL == "" {
		return nil
	}
	msg, err := FetchRobotSnapshot(ctx, c.config.BootstrapURL, c.config.RobotName, opts...)
	if err != nil {
		return err
	}
	c.logger.Info("bootstrapped optimized trajectory", zap.Int("nodes", len(msg.Nodes)))
	return c.OnOptimizedTrajectory(msg)
}

// Update runs one tick. A tick triggered while another is in flight is
// dropped. Pipeline errors abort the tick and are logged, never returned.
func (c *GraphClient) Update(ctx context.Context) TickResult {
	c.mu.Lock()
	if c.isUpdating {
		c.mu.Unlock()
		ticksTotal.WithLabelValues(string(TickSkipped)).Inc()
		c.logger.Debug("tick in progress, dropping trigger")
		return TickSkipped
	}
	c.isUpdating = true
	c.mu.Unlock()

	start := time.Now()
	result := c.runTick(ctx)

	c.mu.Lock()
	c.isUpdating = false
	c.lastResult = result
	c.lastTick = start
	if result == TickCompleted {
		c.lastUpdateSeq = c.globalGraph.Revision()
	}
	c.mu.Unlock()

	ticksTotal.WithLabelValues(string(result)).Inc()
	if result == TickCompleted {
		tickDuration.Observe(time.Since(start).Seconds())
		c.saveState()
	}
	return result
}

func (c *GraphClient) runTick(ctx context.Context) TickResult {
	c.logger.Info("updating")
	c.commander.ResetCycle()
	c.refreshDegenerateAnchors()

	if err := c.processLatestRobotData(); err != nil {
		c.logger.Warn("unable to process latest robot data", zap.Error(err))
		return TickAborted
	}

	if err := c.compareEstimations(ctx); err != nil {
		switch {
		case errors.Is(err, ErrSynchronization):
			c.logger.Error("synchronization failed", zap.Error(err))
		default:
			c.logger.Warn("comparison aborted", zap.Error(err))
		}
		return TickAborted
	}

	c.commander.SendVerificationRequest()
	c.publishClientUpdate()

	counters := c.commander.Counters()
	if counters.Relative() > 0 || counters.Anchor > 0 {
		c.logger.Info("update completed",
			zap.Int("constraints", counters.Relative()),
			zap.Int("small", counters.Small),
			zap.Int("mid", counters.Mid),
			zap.Int("large", counters.Large),
			zap.Int("anchors", counters.Anchor))
	}
	return TickCompleted
}

// refreshDegenerateAnchors re-sends stored anchors after the optimized
// trajectory of this robot changed
func (c *GraphClient) refreshDegenerateAnchors() {
	c.mu.Lock()
	updated := c.optimizedUpdated
	c.optimizedUpdated = false
	c.mu.Unlock()
	if !updated || !c.config.Enable.AnchorConstraints {
		return
	}
	nodes := c.optimized.Nodes(c.config.RobotName)
	if len(nodes) == 0 {
		return
	}
	c.commander.UpdateDegenerateAnchors(nodes)
}

func (c *GraphClient) processLatestRobotData() error {
	c.mu.Lock()
	path := c.latestPath
	c.mu.Unlock()

	if path == nil {
		if c.signal.HasKey(c.config.RobotName) {
			return nil
		}
		return fmt.Errorf("%w: no estimated path received yet", ErrGraphNotReady)
	}
	_, err := c.signal.ConvertPath(path, c.config.RobotName)
	return err
}

// compareEstimations holds mu only to check readiness and to publish the
// overlay, so handlers keep running while the tick computes and emits.
func (c *GraphClient) compareEstimations(ctx context.Context) error {
	if !c.constraintsEnabled() {
		return nil
	}
	key := c.config.RobotName

	c.mu.Lock()
	ready := c.config.Mode != ModeMultiscale || c.globalGraph.IsBuilt()
	c.mu.Unlock()
	if !ready {
		return fmt.Errorf("%w: optimized graph not built yet", ErrGraphNotReady)
	}
	if !c.optimized.HasKey(key) {
		return fmt.Errorf("%w: no optimized trajectory for %s", ErrGraphNotReady, key)
	}

	overlay, err := c.compareStoredSignals(ctx, key)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.overlay = overlay
	c.mu.Unlock()
	return nil
}

// evaluation carries the per-tick comparison results
type evaluation struct {
	labels   []LabelSet
	features []FeatureVector
	coeffOpt *mat.Dense
	coeffEst *mat.Dense
}

// compareStoredSignals works on copies taken from the signal stores. Both
// comparison graphs are rebuilt from the synchronized poses so the two bases
// share one topology.
func (c *GraphClient) compareStoredSignals(ctx context.Context, key string) (*TrajectoryOverlay, error) {
	est := c.signal.Nodes(key)
	opt := c.optimized.Nodes(key)
	c.logger.Info("comparing signals", zap.String("key", key), zap.Int("estimated", len(est)), zap.Int("optimized", len(opt)))

	if c.recorder != nil && c.config.Enable.TrajectoryRecording && len(est) > 0 {
		c.record(c.recorder.RecordRawTrajectory("est", ComputeTrajectory(est)))
	}

	opt, est, _, _ = c.synchronizer.Synchronize(opt, est)
	if len(est) == 0 {
		return nil, fmt.Errorf("comparing %s: %w", key, ErrSynchronization)
	}
	if c.config.Mode == ModeMultiscale {
		if err := c.optGraph.BuildFromNodes(opt); err != nil {
			return nil, err
		}
		if err := c.robotGraph.BuildFromNodes(est); err != nil {
			return nil, err
		}
	}

	ev, err := c.computeLabels(opt, est)
	if err != nil {
		return nil, err
	}
	if c.config.Enable.RelativeConstraints && len(ev.labels) > 0 {
		c.commander.EvaluateLabelsPerNode(ctx, opt, ev.labels)
	}
	c.checkForDegeneracy(opt, est)
	c.checkForSubmapConstraints(ev, opt)

	return &TrajectoryOverlay{
		RobotName: key,
		Estimated: est,
		Optimized: opt,
		Labels:    ev.labels,
		Anchors:   c.commander.DegenerateIndices(),
	}, nil
}

func (c *GraphClient) computeLabels(opt, est []PoseNode) (*evaluation, error) {
	switch c.config.Mode {
	case ModeMultiscale:
		return c.multiscaleEvaluation(opt, est)
	case ModeEuclidean:
		features := positionalFeatures(opt, est)
		return &evaluation{labels: c.classifier.Classify(features), features: features}, nil
	case ModeAlways:
		labels := make([]LabelSet, len(opt))
		for i := range labels {
			labels[i] = NewLabelSet(SeverityLow)
		}
		return &evaluation{labels: labels}, nil
	case ModeAbsolute:
		if c.config.Enable.AnchorConstraints {
			c.commander.SendAnchors(opt, 0, len(opt))
		}
		return &evaluation{}, nil
	}
	return nil, fmt.Errorf("unknown mode %q", c.config.Mode)
}

func (c *GraphClient) multiscaleEvaluation(opt, est []PoseNode) (*evaluation, error) {
	xEst := ComputeSignal(est)
	xOpt := ComputeSignal(opt)
	if c.recorder != nil {
		if c.config.Enable.SignalRecording {
			c.record(c.recorder.RecordSignal("est", xEst))
			c.record(c.recorder.RecordSignal("opt", xOpt))
		}
		if c.config.Enable.TrajectoryRecording {
			c.record(c.recorder.RecordTrajectory("est", ComputeTrajectory(est)))
			c.record(c.recorder.RecordTrajectory("opt", ComputeTrajectory(opt)))
		}
	}

	basis, err := matchedBasis(c.eval, c.optGraph, opt, c.logger)
	if err != nil {
		return nil, fmt.Errorf("optimized basis: %w", err)
	}
	robotBasis, err := matchedBasis(c.robotEval, c.robotGraph, est, c.logger)
	if err != nil {
		return nil, fmt.Errorf("robot basis: %w", err)
	}
	if robotBasis.N != basis.N || robotBasis.Scales() != basis.Scales() {
		return nil, fmt.Errorf("robot basis: %w: %d×%d vs %d×%d",
			ErrDimensionMismatch, robotBasis.N, robotBasis.Scales(), basis.N, basis.Scales())
	}

	coeffEst, err := Project(robotBasis, xEst)
	if err != nil {
		return nil, err
	}
	coeffOpt, err := Project(basis, xOpt)
	if err != nil {
		return nil, err
	}
	features, err := Features(coeffOpt, coeffEst, c.config.Wavelet.Bands)
	if err != nil {
		return nil, err
	}
	for i := range features {
		features[i].Distance = positionDistance(opt[i], est[i])
	}
	if c.recorder != nil && c.config.Enable.SignalRecording {
		c.record(c.recorder.RecordFeatures(features))
	}

	return &evaluation{
		labels:   c.classifier.Classify(features),
		features: features,
		coeffOpt: coeffOpt,
		coeffEst: coeffEst,
	}, nil
}

// matchedBasis returns the basis of g when it spans len(nodes) vertices.
// Otherwise g is rebuilt once from nodes and the basis recomputed; a basis
// that still disagrees is ErrDimensionMismatch.
func matchedBasis(eval *WaveletAnalyzer, g *PoseGraph, nodes []PoseNode, logger *zap.Logger) (*WaveletBasis, error) {
	basis, err := eval.ComputeBasis(g)
	if err != nil {
		return nil, err
	}
	if basis.N == len(nodes) {
		return basis, nil
	}
	logger.Warn("basis does not match the synchronized signal, rebuilding from positions",
		zap.Int("basis", basis.N), zap.Int("signal", len(nodes)))
	if err := g.BuildFromNodes(nodes); err != nil {
		return nil, err
	}
	if basis, err = eval.ComputeBasis(g); err != nil {
		return nil, err
	}
	if basis.N != len(nodes) {
		return nil, fmt.Errorf("%w: %d vs %d nodes", ErrDimensionMismatch, basis.N, len(nodes))
	}
	return basis, nil
}

// checkForDegeneracy anchors the window around every degenerate estimated node
func (c *GraphClient) checkForDegeneracy(opt, est []PoseNode) {
	if !c.config.Enable.AnchorConstraints {
		return
	}
	n := len(opt)
	for i := 0; i < n && i < len(est); i++ {
		if !est[i].Degenerate {
			continue
		}
		begin, end := DegenerateWindow(i, c.config.DegenerateWindow, n)
		c.commander.SendAnchors(opt, begin, end)
	}
}

// checkForSubmapConstraints publishes intra-submap constraints for every
// submap of this robot whose coefficients disagree and queues it for
// verification
func (c *GraphClient) checkForSubmapConstraints(ev *evaluation, opt []PoseNode) {
	if !c.config.Enable.SubmapConstraints || ev.coeffOpt == nil {
		return
	}
	for _, sm := range c.constraints.ForRobot(c.config.RobotName) {
		state, err := CheckSubmap(ev.coeffOpt, ev.coeffEst, sm.NodeIndices, c.config.Wavelet.Bands, c.config.SubmapThreshold)
		if err != nil {
			c.logger.Warn("submap check failed", zap.Int("submap", sm.ID), zap.Error(err))
			continue
		}
		if state == SubmapAllGood {
			continue
		}
		c.logger.Info("submap disagrees", zap.Int("submap", sm.ID), zap.Stringer("state", state))
		if c.commander.SendIntraConstraint(opt, sm.NodeIndices) == 0 {
			continue
		}
		if err := c.commander.AppendVerification(sm.RobotName, sm.ID); err != nil {
			c.logger.Warn("submap not queued for verification", zap.Int("submap", sm.ID), zap.Error(err))
		}
	}
}

func (c *GraphClient) publishClientUpdate() {
	if !(c.config.Enable.AnchorConstraints && c.config.Enable.ClientUpdate) || c.publisher == nil {
		return
	}
	c.mu.Lock()
	msg := c.latestGraph
	built := c.globalGraph.IsBuilt()
	c.mu.Unlock()
	if msg == nil || !built {
		return
	}
	if err := c.publisher.Publish(c.config.Topics.ClientUpdate, msg); err != nil {
		c.logger.Warn("client update not published", zap.Error(err))
	}
}

func (c *GraphClient) record(err error) {
	if err != nil {
		c.logger.Warn("recording failed", zap.Error(err))
	}
}

// Run ticks at the configured rate until ctx is done. Ticks run in their own
// goroutine so that an overrunning tick makes the next trigger a no-op; an
// in-flight tick is allowed to finish on shutdown.
func (c *GraphClient) Run(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / c.config.UpdateRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.logger.Info("graph client running",
		zap.String("robot", c.config.RobotName),
		zap.String("mode", string(c.config.Mode)),
		zap.Duration("interval", interval))

	tickCtx := context.WithoutCancel(ctx)
	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			c.logger.Info("graph client stopped")
			return nil
		case <-ticker.C:
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Update(tickCtx)
			}()
		}
	}
}

// RestoreState loads the label history and the degenerate indices saved by
// a previous run
func (c *GraphClient) RestoreState() error {
	if c.config.StateCache == "" {
		return nil
	}
	state, err := LoadEmitterState(c.config.StateCache)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}
	if state.RobotName != "" && state.RobotName != c.config.RobotName {
		c.logger.Warn("ignoring state of another robot", zap.String("robot", state.RobotName))
		return nil
	}
	c.commander.Restore(state)
	c.logger.Info("restored emitter state",
		zap.Int("history", len(state.History)),
		zap.Int("degenerate", len(state.DegenerateIndices)))
	return nil
}

func (c *GraphClient) saveState() {
	if c.config.StateCache == "" {
		return
	}
	state := c.commander.Snapshot()
	state.RobotName = c.config.RobotName
	if err := SaveEmitterState(c.config.StateCache, &state); err != nil {
		c.logger.Warn("saving emitter state failed", zap.Error(err))
	}
}

// Status returns the current client status
func (c *GraphClient) Status() ClientStatus {
	c.mu.Lock()
	st := ClientStatus{
		RobotName:     c.config.RobotName,
		Mode:          c.config.Mode,
		IsUpdating:    c.isUpdating,
		LastUpdateSeq: c.lastUpdateSeq,
		LastResult:    c.lastResult,
		LastTick:      c.lastTick,
		GraphRevision: c.globalGraph.Revision(),
		GraphNodes:    c.globalGraph.Size(),
	}
	c.mu.Unlock()

	st.EstimatedKeys = c.signal.Keys()
	st.OptimizedKeys = c.optimized.Keys()
	st.Submaps = c.constraints.Len()
	st.Counters = c.commander.Counters()
	st.DegenerateIndices = c.commander.DegenerateIndices()
	return st
}

// LastUpdateSeq returns the graph revision of the last completed tick
func (c *GraphClient) LastUpdateSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdateSeq
}

// CommandPost exposes the constraint emitter
func (c *GraphClient) CommandPost() *CommandPost {
	return c.commander
}

// RenderTrajectory draws the last compared trajectories as SVG or PNG
func (c *GraphClient) RenderTrajectory(w io.Writer, format string) error {
	c.mu.Lock()
	overlay := c.overlay
	c.mu.Unlock()
	if overlay == nil {
		return fmt.Errorf("rendering trajectory: %w: no comparison yet", ErrGraphNotReady)
	}
	if format == "png" {
		return c.renderer.RenderToPNG(w, overlay)
	}
	return c.renderer.RenderToSVG(w, overlay)
}

// positionalFeatures builds features that only carry the positional distance
func positionalFeatures(opt, est []PoseNode) []FeatureVector {
	n := min(len(opt), len(est))
	features := make([]FeatureVector, n)
	for i := 0; i < n; i++ {
		features[i] = FeatureVector{Node: i, Distance: positionDistance(opt[i], est[i])}
	}
	return features
}

func positionDistance(a, b PoseNode) float64 {
	return floats.Distance(a.Position[:], b.Position[:], 2)
}
