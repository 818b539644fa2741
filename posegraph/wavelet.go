package posegraph

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// DefaultScales is the size of the Meyer filter bank: one scaling function
// followed by six wavelets.
const DefaultScales = 7

// Meyer kernel breakpoints
const (
	meyerL1 = 2.0 / 3.0
	meyerL2 = 4.0 / 3.0
	meyerL3 = 8.0 / 3.0
)

// WaveletBasis holds one N×N atom matrix per scale. Atoms[k].At(i, n) is the
// value at vertex n of the wavelet centered at node i for scale k. A basis is
// valid only for the graph revision it was computed from.
type WaveletBasis struct {
	Revision uint64
	N        int
	Atoms    []*mat.Dense
}

// Scales returns the number of scales in the basis
func (b *WaveletBasis) Scales() int {
	return len(b.Atoms)
}

// WaveletAnalyzer computes spectral graph wavelets over a PoseGraph. The
// last basis is cached and reused while the graph revision is unchanged.
type WaveletAnalyzer struct {
	scales int
	logger *zap.Logger

	graph *PoseGraph
	basis *WaveletBasis
}

// NewWaveletAnalyzer creates an analyzer with the given number of scales
func NewWaveletAnalyzer(scales int, logger *zap.Logger) *WaveletAnalyzer {
	if scales < 2 {
		scales = DefaultScales
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WaveletAnalyzer{scales: scales, logger: logger}
}

// Scales returns the configured filter bank size
func (w *WaveletAnalyzer) Scales() int {
	return w.scales
}

// Basis returns the last computed basis, or nil
func (w *WaveletAnalyzer) Basis() *WaveletBasis {
	return w.basis
}

// ComputeBasis eigendecomposes the graph Laplacian and synthesizes one atom
// per (node, scale). Calling it again for the same graph revision returns the
// cached basis.
func (w *WaveletAnalyzer) ComputeBasis(g *PoseGraph) (*WaveletBasis, error) {
	if g == nil || !g.IsBuilt() || g.Size() == 0 {
		return nil, fmt.Errorf("computing wavelets: %w: graph not built", ErrMalformedInput)
	}
	if w.basis != nil && w.graph == g && w.basis.Revision == g.Revision() {
		return w.basis, nil
	}

	start := time.Now()
	n := g.Size()
	var es mat.EigenSym
	if ok := es.Factorize(g.Laplacian(), true); !ok {
		return nil, fmt.Errorf("computing wavelets: eigendecomposition of %d×%d Laplacian did not converge", n, n)
	}
	eigenvalues := es.Values(nil)
	var u mat.Dense
	es.VectorsTo(&u)

	lmax := 0.0
	for _, e := range eigenvalues {
		lmax = math.Max(lmax, e)
	}
	if lmax <= 0 {
		lmax = 1
	}

	filters := MeyerFilterBank(w.scales, lmax)
	atoms := make([]*mat.Dense, len(filters))
	scaled := mat.NewDense(n, n, nil)
	for k, filter := range filters {
		scaled.Copy(&u)
		for col, e := range eigenvalues {
			gain := filter(e)
			for row := 0; row < n; row++ {
				scaled.Set(row, col, scaled.At(row, col)*gain)
			}
		}
		atom := mat.NewDense(n, n, nil)
		atom.Mul(scaled, u.T())
		atoms[k] = atom
	}

	w.graph = g
	w.basis = &WaveletBasis{Revision: g.Revision(), N: n, Atoms: atoms}
	basisComputeDuration.Observe(time.Since(start).Seconds())
	w.logger.Info("computed wavelet basis",
		zap.Int("nodes", n),
		zap.Int("scales", w.scales),
		zap.Uint64("revision", g.Revision()),
		zap.Duration("elapsed", time.Since(start)))
	return w.basis, nil
}

// Project computes coefficients[node, scale] as the inner product of each
// signal column with every atom, averaged over the signal columns.
func Project(basis *WaveletBasis, signal *mat.Dense) (*mat.Dense, error) {
	if basis == nil || signal == nil {
		return nil, fmt.Errorf("projecting signal: %w: missing basis or signal", ErrMalformedInput)
	}
	rows, dims := signal.Dims()
	if rows != basis.N {
		return nil, fmt.Errorf("projecting signal: %w: basis has %d nodes, signal has %d rows", ErrDimensionMismatch, basis.N, rows)
	}

	coeffs := mat.NewDense(basis.N, basis.Scales(), nil)
	var perDim mat.Dense
	for k, atom := range basis.Atoms {
		perDim.Reset()
		perDim.Mul(atom, signal)
		for i := 0; i < basis.N; i++ {
			coeffs.Set(i, k, mat.Sum(perDim.RowView(i))/float64(dims))
		}
	}
	return coeffs, nil
}

// MeyerFilterBank returns nf spectral kernels: a scaling function followed
// by nf-1 wavelets at dyadic scales 4/(3·lmax)·2^(nf-2), ..., 4/(3·lmax).
func MeyerFilterBank(nf int, lmax float64) []func(float64) float64 {
	scales := make([]float64, nf-1)
	for i := range scales {
		scales[i] = 4.0 / (3.0 * lmax) * math.Pow(2, float64(nf-2-i))
	}

	bank := make([]func(float64) float64, 0, nf)
	bank = append(bank, func(x float64) float64 { return meyerScaling(scales[0] * x) })
	for _, s := range scales {
		bank = append(bank, func(x float64) float64 { return meyerWavelet(s * x) })
	}
	return bank
}

func meyerV(x float64) float64 {
	return x * x * x * x * (35 - 84*x + 70*x*x - 20*x*x*x)
}

func meyerScaling(x float64) float64 {
	x = math.Abs(x)
	switch {
	case x < meyerL1:
		return 1
	case x < meyerL2:
		return math.Cos(math.Pi / 2 * meyerV(x/meyerL1-1))
	}
	return 0
}

func meyerWavelet(x float64) float64 {
	x = math.Abs(x)
	switch {
	case x < meyerL1:
		return 0
	case x < meyerL2:
		return math.Sin(math.Pi / 2 * meyerV(x/meyerL1-1))
	case x < meyerL3:
		return math.Cos(math.Pi / 2 * meyerV(x/meyerL2-1))
	}
	return 0
}
