package posegraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRecorder_RecordSignal(t *testing.T) {
	r, err := NewRecorder(t.TempDir(), "r1", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, r.RunID())
	assert.Contains(t, r.Dir(), "r1_"+r.RunID())

	signal := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, r.RecordSignal("est", signal))

	got, err := ReadArray(filepath.Join(r.Dir(), "signal_est.bin"))
	require.NoError(t, err)
	assert.True(t, mat.Equal(signal, got))

	assert.ErrorIs(t, r.RecordTrajectory("opt", &mat.Dense{}), ErrMalformedInput)
	assert.ErrorIs(t, r.RecordTrajectory("opt", nil), ErrMalformedInput)

	_, err = ReadArray(filepath.Join(r.Dir(), "missing.bin"))
	assert.Error(t, err)
}

func TestRecorder_RecordGraph(t *testing.T) {
	r, err := NewRecorder(t.TempDir(), "r1", nil)
	require.NoError(t, err)

	assert.ErrorIs(t, r.RecordGraph("opt", NewPoseGraph(0)), ErrMalformedInput)

	g := NewPoseGraph(0)
	require.NoError(t, g.BuildFromNodes(lineNodes(4)))
	require.NoError(t, r.RecordGraph("opt", g))

	for _, name := range []string{"graph_coords_opt.bin", "graph_adj_opt.bin", "graph_opt.geojson"} {
		_, err := os.Stat(filepath.Join(r.Dir(), name))
		assert.NoError(t, err, name)
	}

	adj, err := ReadArray(filepath.Join(r.Dir(), "graph_adj_opt.bin"))
	require.NoError(t, err)
	assert.Equal(t, 1.0, adj.At(1, 2))
	assert.Equal(t, 0.0, adj.At(0, 3))
}

func TestRecorder_RecordFeatures(t *testing.T) {
	r, err := NewRecorder(t.TempDir(), "r1", nil)
	require.NoError(t, err)

	require.NoError(t, r.RecordFeatures(nil))
	_, err = os.Stat(filepath.Join(r.Dir(), "features.bin"))
	assert.True(t, os.IsNotExist(err), "no file for an empty feature set")

	require.NoError(t, r.RecordFeatures([]FeatureVector{
		{Node: 4, Euclidean: Bands{Low: 1, Mid: 2, High: 3}, Chebyshev: Bands{High: 9}},
	}))
	got, err := ReadArray(filepath.Join(r.Dir(), "features.bin"))
	require.NoError(t, err)

	rows, cols := got.Dims()
	assert.Equal(t, 1, rows)
	assert.Equal(t, 13, cols)
	assert.Equal(t, 4.0, got.At(0, 0))
	assert.Equal(t, 2.0, got.At(0, 2))
	assert.Equal(t, 9.0, got.At(0, 12))
}
