package posegraph

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// PoseGraph is a graph over an ordered pose sequence. It is rebuilt wholesale
// on every update and never mutated in place; a rebuild bumps the revision.
type PoseGraph struct {
	proximityRadius float64

	coords    *mat.Dense
	adjacency *mat.SymDense
	nodeIDs   []int
	revision  uint64
	sourceSeq uint64
	built     bool
}

// NewPoseGraph creates an unbuilt graph. A positive proximityRadius adds
// edges between non-consecutive nodes closer than the radius.
func NewPoseGraph(proximityRadius float64) *PoseGraph {
	return &PoseGraph{proximityRadius: proximityRadius}
}

// Build constructs the graph from an N×8 pose array (x, y, z, qw, qx, qy,
// qz, timestamp). Arrays with only the three position columns are accepted.
func (g *PoseGraph) Build(poses *mat.Dense) error {
	if poses == nil || poses.IsEmpty() {
		return fmt.Errorf("building graph: %w: no poses", ErrMalformedInput)
	}
	n, c := poses.Dims()
	if c < 3 {
		return fmt.Errorf("building graph: %w: %d columns, need at least 3", ErrMalformedInput, c)
	}

	coords := mat.NewDense(n, 3, nil)
	coords.Copy(poses.Slice(0, n, 0, 3))

	adj := mat.NewSymDense(n, nil)
	for i := 0; i+1 < n; i++ {
		adj.SetSym(i, i+1, 1)
	}
	if g.proximityRadius > 0 {
		for i := 0; i < n; i++ {
			for j := i + 2; j < n; j++ {
				if floats.Distance(coords.RawRowView(i), coords.RawRowView(j), 2) < g.proximityRadius {
					adj.SetSym(i, j, 1)
				}
			}
		}
	}

	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	g.commit(coords, adj, ids, g.sourceSeq)
	return nil
}

// BuildFromNodes builds the graph from pose nodes
func (g *PoseGraph) BuildFromNodes(nodes []PoseNode) error {
	if len(nodes) == 0 {
		return fmt.Errorf("building graph: %w: no nodes", ErrMalformedInput)
	}
	return g.Build(ComputePoses(nodes))
}

// BuildFromMessage builds the graph from an explicit topology message
func (g *PoseGraph) BuildFromMessage(msg *GraphMessage) error {
	if msg == nil || len(msg.Coords) == 0 {
		return fmt.Errorf("building graph from message: %w: no coordinates", ErrMalformedInput)
	}
	n := len(msg.Coords)
	if len(msg.NodeIDs) != 0 && len(msg.NodeIDs) != n {
		return fmt.Errorf("building graph from message: %w: %d ids for %d nodes", ErrMalformedInput, len(msg.NodeIDs), n)
	}

	coords := mat.NewDense(n, 3, nil)
	for i, c := range msg.Coords {
		coords.SetRow(i, c[:])
	}

	adj := mat.NewSymDense(n, nil)
	switch {
	case len(msg.Adjacency) == n*n:
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				w := max(msg.Adjacency[i*n+j], msg.Adjacency[j*n+i])
				adj.SetSym(i, j, w)
			}
		}
	case len(msg.Adjacency) != 0:
		return fmt.Errorf("building graph from message: %w: adjacency has %d entries, want %d", ErrMalformedInput, len(msg.Adjacency), n*n)
	default:
		for _, e := range msg.Edges {
			if e[0] < 0 || e[1] < 0 || e[0] >= n || e[1] >= n || e[0] == e[1] {
				return fmt.Errorf("building graph from message: %w: invalid edge %v", ErrMalformedInput, e)
			}
			adj.SetSym(e[0], e[1], 1)
		}
	}

	ids := msg.NodeIDs
	if len(ids) == 0 {
		ids = make([]int, n)
		for i := range ids {
			ids[i] = i
		}
	}
	g.commit(coords, adj, slices.Clone(ids), msg.Header.Seq)
	return nil
}

func (g *PoseGraph) commit(coords *mat.Dense, adj *mat.SymDense, ids []int, seq uint64) {
	g.coords = coords
	g.adjacency = adj
	g.nodeIDs = ids
	g.sourceSeq = seq
	g.revision++
	g.built = true
}

// ContainsUpdates reports whether msg carries information the graph does not
// have yet, i.e. whether a rebuild is warranted.
func (g *PoseGraph) ContainsUpdates(msg *GraphMessage) bool {
	if msg == nil || len(msg.Coords) == 0 {
		return false
	}
	if !g.built {
		return true
	}
	if msg.Header.Seq != g.sourceSeq || len(msg.Coords) != g.Size() {
		return true
	}
	return len(msg.NodeIDs) != 0 && !slices.Equal(msg.NodeIDs, g.nodeIDs)
}

// Laplacian returns the combinatorial Laplacian L = D - A
func (g *PoseGraph) Laplacian() *mat.SymDense {
	n := g.Size()
	if n == 0 {
		return nil
	}
	l := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		deg := 0.0
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			w := g.adjacency.At(i, j)
			deg += w
			if j > i {
				l.SetSym(i, j, -w)
			}
		}
		l.SetSym(i, i, deg)
	}
	return l
}

// Size returns the number of nodes
func (g *PoseGraph) Size() int {
	if g.coords == nil {
		return 0
	}
	n, _ := g.coords.Dims()
	return n
}

// IsBuilt reports whether the graph has been built at least once
func (g *PoseGraph) IsBuilt() bool {
	return g.built
}

// Revision increases strictly on every rebuild
func (g *PoseGraph) Revision() uint64 {
	return g.revision
}

// SourceSeq is the sequence number of the last topology message
func (g *PoseGraph) SourceSeq() uint64 {
	return g.sourceSeq
}

// Coords returns a copy of the N×3 node coordinates
func (g *PoseGraph) Coords() *mat.Dense {
	if g.coords == nil {
		return nil
	}
	return mat.DenseCopyOf(g.coords)
}

// Adjacency returns a copy of the adjacency matrix
func (g *PoseGraph) Adjacency() *mat.SymDense {
	if g.adjacency == nil {
		return nil
	}
	n := g.adjacency.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	out.CopySym(g.adjacency)
	return out
}

// Edges lists every edge once as (i, j) with i < j
func (g *PoseGraph) Edges() [][2]int {
	n := g.Size()
	var edges [][2]int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if g.adjacency.At(i, j) != 0 {
				edges = append(edges, [2]int{i, j})
			}
		}
	}
	return edges
}

// ToGraphMessage serializes the graph for relaying
func (g *PoseGraph) ToGraphMessage() *GraphMessage {
	n := g.Size()
	msg := &GraphMessage{
		Header:    Header{Seq: g.sourceSeq},
		NodeIDs:   slices.Clone(g.nodeIDs),
		Coords:    make([][3]float64, n),
		Adjacency: make([]float64, n*n),
	}
	for i := 0; i < n; i++ {
		msg.Coords[i] = [3]float64{g.coords.At(i, 0), g.coords.At(i, 1), g.coords.At(i, 2)}
		for j := 0; j < n; j++ {
			msg.Adjacency[i*n+j] = g.adjacency.At(i, j)
		}
	}
	return msg
}
