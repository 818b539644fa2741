package posegraph

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultBands groups seven scales into low [0,2), mid [2,4) and high [5,7).
// Scale 4 belongs to no band.
var DefaultBands = BandConfig{
	Low:  [2]int{0, 2},
	Mid:  [2]int{2, 4},
	High: [2]int{5, 7},
}

// Bands holds one aggregated value per scale band
type Bands struct {
	Low  float64 `json:"low"`
	Mid  float64 `json:"mid"`
	High float64 `json:"high"`
}

// Get returns the value for the band of severity s
func (b Bands) Get(s Severity) float64 {
	switch s {
	case SeverityLow:
		return b.Low
	case SeverityMid:
		return b.Mid
	case SeverityHigh:
		return b.High
	}
	return 0
}

// FeatureVector holds the per-band distances of one node. Distance is the raw
// positional distance between both trajectories at that node.
type FeatureVector struct {
	Node        int     `json:"node"`
	Euclidean   Bands   `json:"euclidean"`
	Correlation Bands   `json:"correlation"`
	Manhattan   Bands   `json:"manhattan"`
	Chebyshev   Bands   `json:"chebyshev"`
	Distance    float64 `json:"distance"`
}

// SubmapState is the outcome of CheckSubmap
type SubmapState int

const (
	SubmapAllGood SubmapState = iota + 1
	SubmapLowGood
	SubmapHighGood
	SubmapNoGood
)

func (s SubmapState) String() string {
	switch s {
	case SubmapAllGood:
		return "ALL_GOOD"
	case SubmapLowGood:
		return "LOW_GOOD"
	case SubmapHighGood:
		return "HIGH_GOOD"
	case SubmapNoGood:
		return "NO_GOOD"
	}
	return "UNKNOWN"
}

// Features compares two coefficient matrices node by node. For every scale
// the four metrics are computed between the coefficients of that scale and
// summed over each band. NaN and Inf are replaced with zero.
func Features(coeffsA, coeffsB *mat.Dense, bands BandConfig) ([]FeatureVector, error) {
	if coeffsA == nil || coeffsB == nil {
		return nil, fmt.Errorf("computing features: %w: missing coefficients", ErrMalformedInput)
	}
	ra, ca := coeffsA.Dims()
	rb, cb := coeffsB.Dims()
	if ra != rb || ca != cb {
		return nil, fmt.Errorf("computing features: %w: %d×%d vs %d×%d", ErrDimensionMismatch, ra, ca, rb, cb)
	}

	features := make([]FeatureVector, ra)
	euclid := make([]float64, ca)
	corr := make([]float64, ca)
	manhattan := make([]float64, ca)
	cheb := make([]float64, ca)
	for i := 0; i < ra; i++ {
		for j := 0; j < ca; j++ {
			a := []float64{coeffsA.At(i, j)}
			b := []float64{coeffsB.At(i, j)}
			euclid[j] = sanitize(floats.Distance(a, b, 2))
			corr[j] = sanitize(correlationDistance(a, b))
			manhattan[j] = sanitize(floats.Distance(a, b, 1))
			cheb[j] = sanitize(floats.Distance(a, b, math.Inf(1)))
		}
		features[i] = FeatureVector{
			Node:        i,
			Euclidean:   sumBands(euclid, bands),
			Correlation: sumBands(corr, bands),
			Manhattan:   sumBands(manhattan, bands),
			Chebyshev:   sumBands(cheb, bands),
		}
	}
	return features, nil
}

// FeaturesForSubmap computes features restricted to the given node ids.
// Ids outside the coefficient range are ignored.
func FeaturesForSubmap(coeffsA, coeffsB *mat.Dense, ids []int, bands BandConfig) ([]FeatureVector, error) {
	subA, subB, valid, err := submapRows(coeffsA, coeffsB, ids)
	if err != nil || len(valid) == 0 {
		return nil, err
	}
	features, err := Features(subA, subB, bands)
	if err != nil {
		return nil, err
	}
	for i := range features {
		features[i].Node = valid[i]
	}
	return features, nil
}

// CheckSubmap computes the cosine distance between both coefficient sets per
// scale over the submap rows and compares the low and high band sums against
// a single threshold.
func CheckSubmap(coeffsA, coeffsB *mat.Dense, ids []int, bands BandConfig, threshold float64) (SubmapState, error) {
	subA, subB, valid, err := submapRows(coeffsA, coeffsB, ids)
	if err != nil {
		return SubmapNoGood, err
	}
	if len(valid) == 0 {
		return SubmapAllGood, nil
	}

	_, scales := subA.Dims()
	dist := make([]float64, scales)
	for j := 0; j < scales; j++ {
		a := mat.Col(nil, j, subA)
		b := mat.Col(nil, j, subB)
		dist[j] = sanitize(cosineDistance(a, b))
	}
	sums := sumBands(dist, bands)

	lowGood := sums.Low <= threshold
	highGood := sums.High <= threshold
	switch {
	case lowGood && highGood:
		return SubmapAllGood, nil
	case lowGood:
		return SubmapLowGood, nil
	case highGood:
		return SubmapHighGood, nil
	}
	return SubmapNoGood, nil
}

func submapRows(coeffsA, coeffsB *mat.Dense, ids []int) (*mat.Dense, *mat.Dense, []int, error) {
	if coeffsA == nil || coeffsB == nil {
		return nil, nil, nil, fmt.Errorf("selecting submap: %w: missing coefficients", ErrMalformedInput)
	}
	ra, ca := coeffsA.Dims()
	rb, cb := coeffsB.Dims()
	if ca != cb {
		return nil, nil, nil, fmt.Errorf("selecting submap: %w: %d vs %d scales", ErrDimensionMismatch, ca, cb)
	}
	limit := min(ra, rb)

	var valid []int
	for _, id := range ids {
		if id >= 0 && id < limit {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil, nil, nil
	}

	subA := mat.NewDense(len(valid), ca, nil)
	subB := mat.NewDense(len(valid), cb, nil)
	for r, id := range valid {
		subA.SetRow(r, coeffsA.RawRowView(id))
		subB.SetRow(r, coeffsB.RawRowView(id))
	}
	return subA, subB, valid, nil
}

func sumBands(values []float64, bands BandConfig) Bands {
	return Bands{
		Low:  bandSum(values, bands.Low),
		Mid:  bandSum(values, bands.Mid),
		High: bandSum(values, bands.High),
	}
}

func bandSum(values []float64, band [2]int) float64 {
	from := max(band[0], 0)
	to := min(band[1], len(values))
	if from >= to {
		return 0
	}
	return floats.Sum(values[from:to])
}

// correlationDistance is 1 - Pearson correlation. It is NaN for constant
// inputs, which includes every single-element input.
func correlationDistance(a, b []float64) float64 {
	return 1 - stat.Correlation(a, b, nil)
}

func cosineDistance(a, b []float64) float64 {
	return 1 - floats.Dot(a, b)/(floats.Norm(a, 2)*floats.Norm(b, 2))
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
