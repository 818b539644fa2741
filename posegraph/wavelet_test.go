package posegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func builtGraph(t *testing.T, n int) *PoseGraph {
	t.Helper()
	g := NewPoseGraph(0)
	require.NoError(t, g.BuildFromNodes(lineNodes(n)))
	return g
}

func TestMeyerFilterBank(t *testing.T) {
	bank := MeyerFilterBank(DefaultScales, 4)
	require.Len(t, bank, DefaultScales)

	assert.Equal(t, 1.0, bank[0](0), "the scaling function passes the DC component")
	for k := 1; k < len(bank); k++ {
		assert.Equal(t, 0.0, bank[k](0), "wavelet %d rejects the DC component", k)
	}
	for k, g := range bank {
		for _, x := range []float64{0, 0.01, 0.1, 0.5, 1, 2, 3, 4} {
			v := g(x)
			assert.GreaterOrEqual(t, v, 0.0, "kernel %d at %v", k, x)
			assert.LessOrEqual(t, v, 1.0, "kernel %d at %v", k, x)
		}
	}
}

func TestWaveletAnalyzer_ComputeBasis(t *testing.T) {
	g := builtGraph(t, 6)
	w := NewWaveletAnalyzer(DefaultScales, nil)

	basis, err := w.ComputeBasis(g)
	require.NoError(t, err)
	assert.Equal(t, 6, basis.N)
	assert.Equal(t, DefaultScales, basis.Scales())
	assert.Equal(t, g.Revision(), basis.Revision)
	for _, atom := range basis.Atoms {
		r, c := atom.Dims()
		assert.Equal(t, 6, r)
		assert.Equal(t, 6, c)
	}

	cached, err := w.ComputeBasis(g)
	require.NoError(t, err)
	assert.Same(t, basis, cached, "same revision reuses the basis")

	require.NoError(t, g.BuildFromNodes(lineNodes(6)))
	rebuilt, err := w.ComputeBasis(g)
	require.NoError(t, err)
	assert.NotSame(t, basis, rebuilt)
	assert.Equal(t, g.Revision(), rebuilt.Revision)
}

func TestWaveletAnalyzer_Deterministic(t *testing.T) {
	a, err := NewWaveletAnalyzer(DefaultScales, nil).ComputeBasis(builtGraph(t, 8))
	require.NoError(t, err)
	b, err := NewWaveletAnalyzer(DefaultScales, nil).ComputeBasis(builtGraph(t, 8))
	require.NoError(t, err)

	for k := range a.Atoms {
		assert.True(t, mat.EqualApprox(a.Atoms[k], b.Atoms[k], 1e-12), "atoms of scale %d differ", k)
	}
}

func TestWaveletAnalyzer_RejectsUnbuiltGraph(t *testing.T) {
	w := NewWaveletAnalyzer(DefaultScales, nil)
	_, err := w.ComputeBasis(NewPoseGraph(0))
	assert.ErrorIs(t, err, ErrMalformedInput)
	assert.Nil(t, w.Basis())
}

func TestProject_ConstantSignal(t *testing.T) {
	basis, err := NewWaveletAnalyzer(DefaultScales, nil).ComputeBasis(builtGraph(t, 6))
	require.NoError(t, err)

	signal := mat.NewDense(6, 3, nil)
	for i := 0; i < 6; i++ {
		signal.SetRow(i, []float64{1, 2, 3})
	}

	coeffs, err := Project(basis, signal)
	require.NoError(t, err)
	r, c := coeffs.Dims()
	require.Equal(t, 6, r)
	require.Equal(t, DefaultScales, c)

	for i := 0; i < r; i++ {
		// The scaling function keeps the mean of the dimensions, wavelets see nothing.
		assert.InDelta(t, 2.0, coeffs.At(i, 0), 1e-9)
		for k := 1; k < c; k++ {
			assert.InDelta(t, 0.0, coeffs.At(i, k), 1e-9, "node %d scale %d", i, k)
		}
	}
}

func TestProject_DimensionMismatch(t *testing.T) {
	basis, err := NewWaveletAnalyzer(DefaultScales, nil).ComputeBasis(builtGraph(t, 4))
	require.NoError(t, err)

	_, err = Project(basis, ComputeSignal(lineNodes(5)))
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Project(nil, ComputeSignal(lineNodes(4)))
	assert.ErrorIs(t, err, ErrMalformedInput)
}
