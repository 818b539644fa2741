package posegraph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoseGraph_Snapshot(t *testing.T) {
	assert.Empty(t, NewPoseGraph(0).Snapshot().Features)

	g := NewPoseGraph(0)
	require.NoError(t, g.BuildFromNodes(lineNodes(4)))
	fc := g.Snapshot()
	assert.Equal(t, "FeatureCollection", fc.Type)

	kinds := map[string]int{}
	for _, f := range fc.Features {
		kinds[f.Properties["kind"].(string)]++
	}
	assert.Equal(t, map[string]int{"node": 4, "edge": 3, "trajectory": 1}, kinds)

	traj := fc.Features[len(fc.Features)-1]
	assert.Equal(t, GeometryLineString, traj.Geometry.Type)
	assert.InDelta(t, 3.0, traj.Properties["length"].(float64), 1e-12)

	var coords [3]float64
	require.NoError(t, json.Unmarshal(fc.Features[2].Geometry.Coordinates, &coords))
	assert.Equal(t, [3]float64{2, 0, 0}, coords)
}

func TestTrajectoryLine(t *testing.T) {
	nodes := lineNodes(6)

	tests := []struct {
		name      string
		tolerance float64
		wantLen   int
	}{
		{"no simplification", 0, 6},
		{"collinear points collapse", 0.1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := TrajectoryLine(nodes, tt.tolerance)
			assert.Len(t, line, tt.wantLen)
			assert.Equal(t, 0.0, line[0][0])
			assert.Equal(t, 5.0, line[len(line)-1][0])
		})
	}

	assert.Empty(t, TrajectoryLine(nil, 0.1))
}

func TestWriteGraphSnapshot(t *testing.T) {
	g := NewPoseGraph(0)
	require.NoError(t, g.BuildFromNodes(lineNodes(3)))

	path := filepath.Join(t.TempDir(), "nested", "graph.geojson")
	require.NoError(t, WriteGraphSnapshot(path, g))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var fc FeatureCollection
	require.NoError(t, json.Unmarshal(data, &fc))
	assert.Len(t, fc.Features, 3+2+1)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
