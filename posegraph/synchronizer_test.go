package posegraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func stamped(ms ...int64) []PoseNode {
	nodes := make([]PoseNode, len(ms))
	for i, m := range ms {
		nodes[i] = PoseNode{Index: i, Timestamp: m * int64(time.Millisecond)}
	}
	return nodes
}

func TestSynchronizer(t *testing.T) {
	tests := []struct {
		name  string
		a, b  []PoseNode
		wantA []int
		wantB []int
	}{
		{
			name:  "identical timestamps",
			a:     stamped(0, 1000, 2000),
			b:     stamped(0, 1000, 2000),
			wantA: []int{0, 1, 2},
			wantB: []int{0, 1, 2},
		},
		{
			name:  "offset within tolerance",
			a:     stamped(0, 1000, 2000),
			b:     stamped(50, 1050, 2050),
			wantA: []int{0, 1, 2},
			wantB: []int{0, 1, 2},
		},
		{
			name: "offset beyond tolerance",
			a:    stamped(0, 1000),
			b:    stamped(500, 1500),
		},
		{
			name:  "closer later node claims the match",
			a:     stamped(0, 100, 200),
			b:     stamped(95),
			wantA: []int{1},
			wantB: []int{0},
		},
		{
			name:  "unsorted input indexes the caller's slice",
			a:     stamped(2000, 0, 1000),
			b:     stamped(0, 1000, 2000),
			wantA: []int{1, 2, 0},
			wantB: []int{0, 1, 2},
		},
		{
			name: "empty side",
			a:    stamped(0, 1000),
			b:    nil,
		},
	}

	s := NewSynchronizer(0)
	assert.Equal(t, DefaultSyncTolerance, s.Tolerance)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alignedA, alignedB, idxA, idxB := s.Synchronize(tt.a, tt.b)
			assert.Equal(t, tt.wantA, idxA)
			assert.Equal(t, tt.wantB, idxB)
			assert.Len(t, alignedA, len(idxA))
			assert.Len(t, alignedB, len(idxB))

			for i := range alignedA {
				delta := alignedA[i].Timestamp - alignedB[i].Timestamp
				assert.LessOrEqual(t, max(delta, -delta), s.Tolerance.Nanoseconds())
				if i > 0 {
					assert.Greater(t, alignedA[i].Timestamp, alignedA[i-1].Timestamp, "output is monotone in time")
				}
			}
		})
	}
}
