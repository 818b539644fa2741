package posegraph

import (
	"sort"
	"time"
)

// DefaultSyncTolerance is the maximum timestamp delta of an aligned pair
const DefaultSyncTolerance = 100 * time.Millisecond

// Synchronizer aligns two independently sampled node sequences into
// index-correspondent pairs.
type Synchronizer struct {
	Tolerance time.Duration
}

// NewSynchronizer creates a synchronizer; a non-positive tolerance selects
// DefaultSyncTolerance.
func NewSynchronizer(tolerance time.Duration) *Synchronizer {
	if tolerance <= 0 {
		tolerance = DefaultSyncTolerance
	}
	return &Synchronizer{Tolerance: tolerance}
}

// Synchronize pairs nodes of a and b whose timestamps differ by at most the
// tolerance. Each node is used at most once and the output is monotone in
// time. idxA and idxB index into the caller's slices. All four results have
// the same length; empty results mean no pair could be formed.
func (s *Synchronizer) Synchronize(a, b []PoseNode) (alignedA, alignedB []PoseNode, idxA, idxB []int) {
	orderA := sortedByTime(a)
	orderB := sortedByTime(b)
	tol := s.Tolerance.Nanoseconds()

	i, j := 0, 0
	for i < len(orderA) && j < len(orderB) {
		ta := a[orderA[i]].Timestamp

		// Move j to the B node closest to ta.
		for j+1 < len(orderB) && absDelta(b[orderB[j+1]].Timestamp, ta) < absDelta(b[orderB[j]].Timestamp, ta) {
			j++
		}
		tb := b[orderB[j]].Timestamp

		// A later A node fits b_j better; let it claim b_j.
		if i+1 < len(orderA) && absDelta(a[orderA[i+1]].Timestamp, tb) < absDelta(ta, tb) {
			i++
			continue
		}

		if absDelta(ta, tb) <= tol {
			alignedA = append(alignedA, a[orderA[i]])
			alignedB = append(alignedB, b[orderB[j]])
			idxA = append(idxA, orderA[i])
			idxB = append(idxB, orderB[j])
			i++
			j++
			continue
		}

		if ta < tb {
			i++
		} else {
			j++
		}
	}
	return alignedA, alignedB, idxA, idxB
}

func sortedByTime(nodes []PoseNode) []int {
	order := make([]int, len(nodes))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		return nodes[order[x]].Timestamp < nodes[order[y]].Timestamp
	})
	return order
}

func absDelta(x, y int64) int64 {
	if x > y {
		return x - y
	}
	return y - x
}
