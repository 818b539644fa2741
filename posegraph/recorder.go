package posegraph

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Recorder writes numeric arrays of one run to disk, one file per
// (stream, source). Files hold gonum's binary matrix encoding.
type Recorder struct {
	dir    string
	runID  string
	logger *zap.Logger
}

// NewRecorder creates <root>/data/<robot>_<runID>/data
func NewRecorder(root, robot string, logger *zap.Logger) (*Recorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if root == "" {
		root = "."
	}
	runID := uuid.NewString()
	dir := filepath.Join(root, "data", fmt.Sprintf("%s_%s", robot, runID), "data")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating recording directory: %w", err)
	}
	logger.Named("recorder").Warn("recording run data", zap.String("dir", dir))
	return &Recorder{dir: dir, runID: runID, logger: logger.Named("recorder")}, nil
}

// Dir returns the directory files are written to
func (r *Recorder) Dir() string {
	return r.dir
}

// RunID identifies the run
func (r *Recorder) RunID() string {
	return r.runID
}

// RecordSignal writes a position signal for src (est or opt)
func (r *Recorder) RecordSignal(src string, x *mat.Dense) error {
	return r.write(fmt.Sprintf("signal_%s.bin", src), x)
}

// RecordTrajectory writes a synchronized trajectory for src
func (r *Recorder) RecordTrajectory(src string, traj *mat.Dense) error {
	return r.write(fmt.Sprintf("trajectory_%s.bin", src), traj)
}

// RecordRawTrajectory writes an unsynchronized trajectory for src
func (r *Recorder) RecordRawTrajectory(src string, traj *mat.Dense) error {
	return r.write(fmt.Sprintf("trajectory_raw_%s.bin", src), traj)
}

// RecordGraph writes the coordinates and the adjacency of g, plus a GeoJSON
// snapshot next to them
func (r *Recorder) RecordGraph(src string, g *PoseGraph) error {
	if g == nil || !g.IsBuilt() {
		return fmt.Errorf("recording graph %s: %w: graph not built", src, ErrMalformedInput)
	}
	if err := r.write(fmt.Sprintf("graph_coords_%s.bin", src), g.Coords()); err != nil {
		return err
	}
	adj := mat.DenseCopyOf(g.Adjacency())
	if err := r.write(fmt.Sprintf("graph_adj_%s.bin", src), adj); err != nil {
		return err
	}
	return WriteGraphSnapshot(filepath.Join(r.dir, fmt.Sprintf("graph_%s.geojson", src)), g)
}

// RecordFeatures writes an N×13 array: node followed by the low, mid and high
// bands of the Euclidean, correlation, Manhattan and Chebyshev metrics
func (r *Recorder) RecordFeatures(features []FeatureVector) error {
	if len(features) == 0 {
		return nil
	}
	m := mat.NewDense(len(features), 13, nil)
	for i, f := range features {
		m.SetRow(i, []float64{
			float64(f.Node),
			f.Euclidean.Low, f.Euclidean.Mid, f.Euclidean.High,
			f.Correlation.Low, f.Correlation.Mid, f.Correlation.High,
			f.Manhattan.Low, f.Manhattan.Mid, f.Manhattan.High,
			f.Chebyshev.Low, f.Chebyshev.Mid, f.Chebyshev.High,
		})
	}
	return r.write("features.bin", m)
}

func (r *Recorder) write(name string, m *mat.Dense) error {
	if m == nil || m.IsEmpty() {
		return fmt.Errorf("recording %s: %w: empty array", name, ErrMalformedInput)
	}
	path := filepath.Join(r.dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := m.MarshalBinaryTo(f); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	r.logger.Debug("recorded array", zap.String("file", name))
	return nil
}

// ReadArray reads a file written by Recorder
func ReadArray(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var m mat.Dense
	if _, err := m.UnmarshalBinaryFrom(f); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return &m, nil
}
