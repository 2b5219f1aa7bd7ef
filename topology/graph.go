package topology

import (
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// Every link weighs 1, so a shortest path minimises the hop count.

// connGraph converts the topology to a gonum weighted directed graph
func (t *Topology) connGraph() *simple.WeightedDirectedGraph {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for _, node := range t.nodeOrder {
		g.AddNode(simple.Node(int64(node)))
	}
	for _, link := range t.linkOrder {
		g.SetWeightedEdge(simple.WeightedEdge{
			F: simple.Node(int64(link.Src)),
			T: simple.Node(int64(link.Dst)),
			W: 1.0,
		})
	}
	return g
}

func convertNodeSeq(nodes []graph.Node) []int {
	seq := make([]int, 0, len(nodes))
	for _, n := range nodes {
		seq = append(seq, int(n.ID()))
	}
	return seq
}

// ShortestPath returns a minimum-hop node sequence from src to dst, or
// false when dst is unreachable.
func (t *Topology) ShortestPath(src, dst int) ([]int, bool) {
	if !t.HasNode(src) || !t.HasNode(dst) {
		return nil, false
	}
	if src == dst {
		return []int{src}, true
	}

	g := t.connGraph()
	spTree := path.DijkstraFrom(simple.Node(int64(src)), g)
	nodeSeq, weight := spTree.To(int64(dst))
	if len(nodeSeq) == 0 || math.IsInf(weight, 1) {
		return nil, false
	}
	return convertNodeSeq(nodeSeq), true
}

// ShortestPaths computes one minimum-hop path per pair using a single
// shortest-path tree per distinct source.
func (t *Topology) ShortestPaths(pairs [][2]int) map[[2]int][]int {
	g := t.connGraph()
	trees := make(map[int]path.Shortest)

	result := make(map[[2]int][]int, len(pairs))
	for _, pair := range pairs {
		src, dst := pair[0], pair[1]
		if g.Node(int64(src)) == nil || g.Node(int64(dst)) == nil {
			continue
		}
		if src == dst {
			result[pair] = []int{src}
			continue
		}
		spTree, present := trees[src]
		if !present {
			spTree = path.DijkstraFrom(simple.Node(int64(src)), g)
			trees[src] = spTree
		}
		nodeSeq, weight := spTree.To(int64(dst))
		if len(nodeSeq) == 0 || math.IsInf(weight, 1) {
			continue
		}
		result[pair] = convertNodeSeq(nodeSeq)
	}
	return result
}

// Diameter returns the largest hop distance between any two nodes that
// are connected. Unreachable pairs are ignored.
func (t *Topology) Diameter() int {
	g := t.connGraph()
	nodes := t.Nodes()

	diameter := 0
	for _, src := range nodes {
		spTree := path.DijkstraFrom(simple.Node(int64(src)), g)
		for _, dst := range nodes {
			if src == dst {
				continue
			}
			w := spTree.WeightTo(int64(dst))
			if math.IsInf(w, 1) {
				continue
			}
			if int(w) > diameter {
				diameter = int(w)
			}
		}
	}
	return diameter
}
