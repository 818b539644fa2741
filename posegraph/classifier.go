package posegraph

import (
	"fmt"
	"sort"
)

// Classifier maps per-node features to per-node label sets
type Classifier interface {
	Classify(features []FeatureVector) []LabelSet
}

// Classifier types
const (
	ClassifierThreshold = "threshold"
	ClassifierTop       = "top"
	ClassifierDistance  = "distance"
)

// Default classifier parameters
const (
	DefaultLowThreshold  = 0.5
	DefaultMidThreshold  = 0.21
	DefaultHighThreshold = 0.11
	DefaultTopK          = 10
	DefaultDistanceBound = 1.0
)

// ThresholdClassifier sets a band's bit when its aggregated Euclidean
// distance is strictly greater than the band threshold.
type ThresholdClassifier struct {
	Low  float64
	Mid  float64
	High float64
}

// Classify implements Classifier
func (c ThresholdClassifier) Classify(features []FeatureVector) []LabelSet {
	labels := make([]LabelSet, len(features))
	for i, f := range features {
		if f.Euclidean.Low > c.Low {
			labels[i] = labels[i].Add(SeverityLow)
		}
		if f.Euclidean.Mid > c.Mid {
			labels[i] = labels[i].Add(SeverityMid)
		}
		if f.Euclidean.High > c.High {
			labels[i] = labels[i].Add(SeverityHigh)
		}
	}
	return labels
}

// TopClassifier keeps, per band, the K nodes with the highest positive
// Euclidean score. Ties go to the lower node index.
type TopClassifier struct {
	K int
}

// Classify implements Classifier
func (c TopClassifier) Classify(features []FeatureVector) []LabelSet {
	labels := make([]LabelSet, len(features))
	if c.K <= 0 {
		return labels
	}
	order := make([]int, len(features))
	for _, s := range allSeverities {
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(x, y int) bool {
			return features[order[x]].Euclidean.Get(s) > features[order[y]].Euclidean.Get(s)
		})
		for _, idx := range order[:min(c.K, len(order))] {
			if features[idx].Euclidean.Get(s) <= 0 {
				break
			}
			labels[idx] = labels[idx].Add(s)
		}
	}
	return labels
}

// DistanceClassifier ignores the spectral bands and flags LOW when the raw
// positional distance exceeds Bound.
type DistanceClassifier struct {
	Bound float64
}

// Classify implements Classifier
func (c DistanceClassifier) Classify(features []FeatureVector) []LabelSet {
	labels := make([]LabelSet, len(features))
	for i, f := range features {
		if f.Distance > c.Bound {
			labels[i] = labels[i].Add(SeverityLow)
		}
	}
	return labels
}

// NewClassifier selects the classifier for cfg. The euclidean mode always
// compares raw distances.
func NewClassifier(mode Mode, cfg ClassifierConfig) (Classifier, error) {
	if mode == ModeEuclidean {
		return DistanceClassifier{Bound: cfg.DistanceBound}, nil
	}
	switch cfg.Type {
	case "", ClassifierThreshold:
		return ThresholdClassifier{
			Low:  cfg.Thresholds.Low,
			Mid:  cfg.Thresholds.Mid,
			High: cfg.Thresholds.High,
		}, nil
	case ClassifierTop:
		return TopClassifier{K: cfg.TopK}, nil
	case ClassifierDistance:
		return DistanceClassifier{Bound: cfg.DistanceBound}, nil
	}
	return nil, fmt.Errorf("unknown classifier type %q", cfg.Type)
}
