package posegraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// GeometryType represents the GeoJSON geometry type
type GeometryType string

const (
	GeometryPoint      GeometryType = "Point"
	GeometryLineString GeometryType = "LineString"
)

// Geometry represents a GeoJSON geometry object
type Geometry struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Feature represents a GeoJSON feature with geometry and properties
type Feature struct {
	Type       string         `json:"type"`
	Geometry   *Geometry      `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// FeatureCollection represents a GeoJSON FeatureCollection
type FeatureCollection struct {
	Type     string     `json:"type"`
	Features []*Feature `json:"features"`
}

func newFeature(typ GeometryType, coords any, props map[string]any) *Feature {
	raw, _ := json.Marshal(coords)
	return &Feature{
		Type:       "Feature",
		Geometry:   &Geometry{Type: typ, Coordinates: raw},
		Properties: props,
	}
}

// Snapshot exports the graph as GeoJSON: one Point per node, one LineString
// per edge, and the node sequence as a planar trajectory line.
func (g *PoseGraph) Snapshot() *FeatureCollection {
	fc := &FeatureCollection{Type: "FeatureCollection", Features: make([]*Feature, 0)}
	n := g.Size()
	if n == 0 {
		return fc
	}

	point := func(i int) [3]float64 {
		return [3]float64{g.coords.At(i, 0), g.coords.At(i, 1), g.coords.At(i, 2)}
	}
	for i := 0; i < n; i++ {
		fc.Features = append(fc.Features, newFeature(GeometryPoint, point(i), map[string]any{
			"kind":  "node",
			"index": i,
			"id":    g.nodeIDs[i],
		}))
	}
	for _, e := range g.Edges() {
		fc.Features = append(fc.Features, newFeature(GeometryLineString, [][3]float64{point(e[0]), point(e[1])}, map[string]any{
			"kind":   "edge",
			"from":   e[0],
			"to":     e[1],
			"weight": g.adjacency.At(e[0], e[1]),
		}))
	}

	line := g.planarLine()
	fc.Features = append(fc.Features, newFeature(GeometryLineString, line, map[string]any{
		"kind":     "trajectory",
		"length":   planar.Length(line),
		"revision": g.revision,
	}))
	return fc
}

// planarLine returns the node sequence projected onto the XY plane
func (g *PoseGraph) planarLine() orb.LineString {
	n := g.Size()
	line := make(orb.LineString, n)
	for i := 0; i < n; i++ {
		line[i] = orb.Point{g.coords.At(i, 0), g.coords.At(i, 1)}
	}
	return line
}

// TrajectoryLine projects nodes onto the XY plane. A positive tolerance
// simplifies the line with Douglas-Peucker.
func TrajectoryLine(nodes []PoseNode, tolerance float64) orb.LineString {
	line := make(orb.LineString, len(nodes))
	for i, n := range nodes {
		line[i] = orb.Point{n.Position[0], n.Position[1]}
	}
	if tolerance > 0 && len(line) > 2 {
		return simplify.DouglasPeucker(tolerance).LineString(line.Clone())
	}
	return line
}

// WriteGraphSnapshot writes the GeoJSON snapshot of g to path atomically
func WriteGraphSnapshot(path string, g *PoseGraph) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	data, err := json.Marshal(g.Snapshot())
	if err != nil {
		return fmt.Errorf("marshaling graph snapshot: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing graph snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing graph snapshot: %w", err)
	}
	return nil
}
