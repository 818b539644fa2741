package posegraph

import "time"

// PoseNode is a single robot pose in a trajectory. Values are never mutated
// after construction; stores hand out copies.
type PoseNode struct {
	Index       int               `json:"index"`
	Timestamp   int64             `json:"timestamp"` // nanoseconds
	Position    [3]float64        `json:"position"`
	Orientation [4]float64        `json:"orientation"` // w, x, y, z
	Degenerate  bool              `json:"degenerate,omitempty"`
	RobotName   string            `json:"robotName,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Time returns the node timestamp as a time.Time.
func (n PoseNode) Time() time.Time {
	return time.Unix(0, n.Timestamp)
}

// Header is carried by every wire message
type Header struct {
	Seq     uint64 `json:"seq"`
	Stamp   int64  `json:"stamp"`
	FrameID string `json:"frameId,omitempty"`
}

// PoseStamped is one pose inside a PathMessage
type PoseStamped struct {
	Stamp       int64      `json:"stamp"`
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
	Degenerate  bool       `json:"degenerate,omitempty"`
}

// PathMessage is the path-shaped payload used for estimated paths on ingest
// and for relative, anchor and intra-submap constraints on egress.
type PathMessage struct {
	Header Header        `json:"header"`
	Poses  []PoseStamped `json:"poses"`
}

// TrajectoryNodeMessage is one node of a TrajectoryMessage
type TrajectoryNodeMessage struct {
	RobotName  string      `json:"robotName"`
	ID         int         `json:"id"`
	Pose       PoseStamped `json:"pose"`
	Degenerate bool        `json:"degenerate,omitempty"`
}

// TrajectoryMessage carries optimized or estimated trajectories, possibly
// for several robots at once.
type TrajectoryMessage struct {
	Header Header                  `json:"header"`
	Nodes  []TrajectoryNodeMessage `json:"nodes"`
}

// GraphMessage is a graph-topology update. Adjacency is row-major N*N; when
// it is empty, Edges is used instead.
type GraphMessage struct {
	Header    Header       `json:"header"`
	NodeIDs   []int        `json:"nodeIds,omitempty"`
	Coords    [][3]float64 `json:"coords"`
	Adjacency []float64    `json:"adjacency,omitempty"`
	Edges     [][2]int     `json:"edges,omitempty"`
}

// SubmapMessage describes one submap inside a SubmapConstraintMessage
type SubmapMessage struct {
	ID          int    `json:"id"`
	RobotName   string `json:"robotName"`
	NodeIndices []int  `json:"nodeIndices"`
}

// SubmapConstraintMessage is an externally computed batch of submap constraints
type SubmapConstraintMessage struct {
	Header  Header          `json:"header"`
	Submaps []SubmapMessage `json:"submaps"`
}

// VerificationRequest asks the verification service to re-check submaps of
// a single robot.
type VerificationRequest struct {
	Header    Header `json:"header"`
	RequestID string `json:"requestId"`
	RobotName string `json:"robotName"`
	SubmapIDs []int  `json:"submapIds"`
}

// ConstraintCounters counts constraints emitted during one update cycle
type ConstraintCounters struct {
	Small  int `json:"small"`
	Mid    int `json:"mid"`
	Large  int `json:"large"`
	Anchor int `json:"anchor"`
}

// Relative returns the number of relative constraints
func (c ConstraintCounters) Relative() int {
	return c.Small + c.Mid + c.Large
}

// RelativeConstraint pairs a node with a counterpart for one severity tier
type RelativeConstraint struct {
	Node        int      `json:"node"`
	Counterpart int      `json:"counterpart"`
	Tier        Severity `json:"tier"`
}

// AnchorConstraint ties a node to its optimized (absolute) pose
type AnchorConstraint struct {
	Node int `json:"node"`
}

// Mode selects how the client compares estimated and optimized trajectories
type Mode string

const (
	ModeMultiscale Mode = "multiscale"
	ModeEuclidean  Mode = "euclidean"
	ModeAlways     Mode = "always"
	ModeAbsolute   Mode = "absolute"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	switch m {
	case ModeMultiscale, ModeEuclidean, ModeAlways, ModeAbsolute:
		return true
	}
	return false
}

// Config represents the full configuration file
type Config struct {
	MQTT             MQTTConfig       `yaml:"mqtt" json:"mqtt"`
	RobotName        string           `yaml:"robotName" json:"robotName"`
	Mode             Mode             `yaml:"mode" json:"mode"`
	Enable           EnableConfig     `yaml:"enable" json:"enable"`
	Topics           TopicConfig      `yaml:"topics" json:"topics"`
	UpdateRate       float64          `yaml:"updateRate" json:"updateRate"` // Hz
	DegenerateWindow int              `yaml:"degenerateWindow" json:"degenerateWindow"`
	MinNodeCount     int              `yaml:"minNodeCount" json:"minNodeCount"`
	SyncTolerance    time.Duration    `yaml:"syncTolerance" json:"syncTolerance"`
	Wavelet          WaveletConfig    `yaml:"wavelet" json:"wavelet"`
	Classifier       ClassifierConfig `yaml:"classifier" json:"classifier"`
	Graph            GraphConfig      `yaml:"graph" json:"graph"`
	Tiers            TierConfig       `yaml:"tiers" json:"tiers"`
	SubmapThreshold  float64          `yaml:"submapThreshold" json:"submapThreshold"`
	PublishInterval  time.Duration    `yaml:"publishInterval" json:"publishInterval"`
	DataRoot         string           `yaml:"dataRoot,omitempty" json:"dataRoot,omitempty"`
	BootstrapURL     string           `yaml:"bootstrapUrl,omitempty" json:"bootstrapUrl,omitempty"`
	StateCache       string           `yaml:"stateCache,omitempty" json:"stateCache,omitempty"`
	Render           RenderConfig     `yaml:"render" json:"render"`
	HTTP             HTTPConfig       `yaml:"http" json:"http"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker   string `yaml:"broker" json:"broker"`
	ClientID string `yaml:"clientId" json:"clientId"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	QoS      byte   `yaml:"qos" json:"qos"`
}

// EnableConfig toggles optional pipeline stages
type EnableConfig struct {
	AnchorConstraints   bool `yaml:"anchorConstraints" json:"anchorConstraints"`
	RelativeConstraints bool `yaml:"relativeConstraints" json:"relativeConstraints"`
	SubmapConstraints   bool `yaml:"submapConstraints" json:"submapConstraints"`
	ClientUpdate        bool `yaml:"clientUpdate" json:"clientUpdate"`
	SignalRecording     bool `yaml:"signalRecording" json:"signalRecording"`
	TrajectoryRecording bool `yaml:"trajectoryRecording" json:"trajectoryRecording"`
}

// TopicConfig binds logical streams to MQTT topics
type TopicConfig struct {
	OptGraph          string `yaml:"optGraph" json:"optGraph"`
	OptTraj           string `yaml:"optTraj" json:"optTraj"`
	EstTraj           string `yaml:"estTraj" json:"estTraj"`
	EstTrajPath       string `yaml:"estTrajPath" json:"estTrajPath"`
	SubmapConstraint  string `yaml:"submapConstraint" json:"submapConstraint"`
	ClientUpdate      string `yaml:"clientUpdate" json:"clientUpdate"`
	IntraConstraint   string `yaml:"intraConstraint" json:"intraConstraint"`
	RelativeNode      string `yaml:"relativeNode" json:"relativeNode"`
	AnchorNode        string `yaml:"anchorNode" json:"anchorNode"`
	DegenerateAnchors string `yaml:"degenerateAnchors" json:"degenerateAnchors"`
	Verification      string `yaml:"verification" json:"verification"`
	MonitorGraphOut   string `yaml:"monitorGraphOut" json:"monitorGraphOut"`
	MonitorTrajOut    string `yaml:"monitorTrajOut" json:"monitorTrajOut"`
}

// WaveletConfig configures the filter bank and the scale bands
type WaveletConfig struct {
	Scales int        `yaml:"scales" json:"scales"`
	Bands  BandConfig `yaml:"bands" json:"bands"`
}

// BandConfig groups scales into half-open [from, to) bands
type BandConfig struct {
	Low  [2]int `yaml:"low" json:"low"`
	Mid  [2]int `yaml:"mid" json:"mid"`
	High [2]int `yaml:"high" json:"high"`
}

// ClassifierConfig selects and parameterizes the discrepancy classifier
type ClassifierConfig struct {
	Type          string          `yaml:"type" json:"type"` // threshold, top, distance
	TopK          int             `yaml:"topK" json:"topK"`
	Thresholds    ThresholdConfig `yaml:"thresholds" json:"thresholds"`
	DistanceBound float64         `yaml:"distanceBound" json:"distanceBound"`
}

// ThresholdConfig holds per-band thresholds
type ThresholdConfig struct {
	Low  float64 `yaml:"low" json:"low"`
	Mid  float64 `yaml:"mid" json:"mid"`
	High float64 `yaml:"high" json:"high"`
}

// GraphConfig configures pose graph construction
type GraphConfig struct {
	ProximityRadius float64 `yaml:"proximityRadius" json:"proximityRadius"`
}

// TierConfig holds the backward node offsets used to pick the counterpart
// of a relative constraint for each severity.
type TierConfig struct {
	Small int `yaml:"small" json:"small"`
	Mid   int `yaml:"mid" json:"mid"`
	Large int `yaml:"large" json:"large"`
}

// RenderConfig configures the trajectory overlay
type RenderConfig struct {
	Width             float64 `yaml:"width" json:"width"`   // mm
	Height            float64 `yaml:"height" json:"height"` // mm
	SimplifyTolerance float64 `yaml:"simplifyTolerance" json:"simplifyTolerance"`
}

// HTTPConfig configures the status server
type HTTPConfig struct {
	Port int `yaml:"port" json:"port"`
}
