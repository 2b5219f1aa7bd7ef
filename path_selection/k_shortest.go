package path_selection

import (
	"github.com/knodir/SOL/topology"
)

// network is an adjacency matrix over dense node indexes. links[i][j] is
// the hop cost from i to j, -1 when there is no link.
type network struct {
	nodes []int
	index map[int]int
	links [][]int
}

func newNetwork(topo *topology.Topology) *network {
	nodes := topo.Nodes()
	net := &network{
		nodes: nodes,
		index: make(map[int]int, len(nodes)),
		links: make([][]int, len(nodes)),
	}
	for i, node := range nodes {
		net.index[node] = i
	}
	for i := range nodes {
		net.links[i] = make([]int, len(nodes))
		for j := range net.links[i] {
			net.links[i][j] = -1
		}
	}
	for _, link := range topo.Links() {
		net.links[net.index[link.Src]][net.index[link.Dst]] = 1
	}
	return net
}

// clone copies the adjacency matrix so spur searches can cut links
func (net *network) clone() *network {
	c := &network{nodes: net.nodes, index: net.index, links: make([][]int, len(net.links))}
	for i := range net.links {
		c.links[i] = append([]int(nil), net.links[i]...)
	}
	return c
}

// toNodes maps a sequence of indexes back to node ids
func (net *network) toNodes(seq []int) []int {
	nodes := make([]int, len(seq))
	for i, idx := range seq {
		nodes[i] = net.nodes[idx]
	}
	return nodes
}

type candidate struct {
	nodes []int // dense indexes
	cost  int
}

// dijkstra returns one minimum-cost path from source to dest, preferring the
// lowest node index on ties, or false when dest is unreachable
func dijkstra(net *network, source, dest int) (candidate, bool) {
	n := len(net.nodes)

	costs := make([]int, n) // cost from source to every node, -1 unreachable
	for i := 0; i < n; i++ {
		costs[i] = net.links[source][i]
	}
	costs[source] = 0

	predecessors := make([]int, n)
	for i := 0; i < n; i++ {
		predecessors[i] = source
	}
	predecessors[source] = -1

	visited := make([]bool, n)
	visited[source] = true

	for count := 0; count < n-1; count++ {
		minNode := -1
		for i := 0; i < n; i++ {
			if visited[i] || costs[i] < 0 {
				continue
			}
			if minNode < 0 || costs[i] < costs[minNode] {
				minNode = i
			}
		}
		if minNode == -1 {
			break
		}
		visited[minNode] = true
		if minNode == dest {
			break
		}

		for i := 0; i < n; i++ {
			if visited[i] || net.links[minNode][i] < 0 {
				continue
			}
			if costs[i] < 0 || costs[i] > costs[minNode]+net.links[minNode][i] {
				costs[i] = costs[minNode] + net.links[minNode][i]
				predecessors[i] = minNode
			}
		}
	}

	if source != dest && (!visited[dest] || costs[dest] < 0) {
		return candidate{}, false
	}

	var reversed []int
	for node := dest; node != -1; node = predecessors[node] {
		reversed = append(reversed, node)
	}
	seq := make([]int, len(reversed))
	for i, node := range reversed {
		seq[len(reversed)-1-i] = node
	}
	return candidate{nodes: seq, cost: costs[dest]}, true
}

// kShortest lists up to k loop-free paths from source to dest in order of
// cost (Yen's algorithm). Paths with more than maxHops hops are never
// returned; maxHops <= 0 disables the cutoff. Node ids in, node ids out.
func kShortest(base *network, src, dst, k, maxHops int) [][]int {
	source, okSrc := base.index[src]
	dest, okDst := base.index[dst]
	if k <= 0 || !okSrc || !okDst {
		return nil
	}
	within := func(c candidate) bool {
		return maxHops <= 0 || len(c.nodes)-1 <= maxHops
	}

	first, ok := dijkstra(base, source, dest)
	if !ok || !within(first) {
		return nil
	}

	net := base.clone()
	A := []candidate{first}
	var B pathHeap
	for len(A) < k {
		prevPath := A[len(A)-1].nodes
		// The spur node ranges from the first node to the next to last node in the previous path.
		for i := 0; i < len(prevPath)-1; i++ {
			spurNode := prevPath[i]
			rootPath := prevPath[:i+1]
			deletedLinks := make(map[[2]int]int) // tail, head -> cost

			// Remove the links that are part of previous shortest paths sharing the same root path.
			for _, a := range A {
				if len(a.nodes) > i+1 && sliceEqual(a.nodes[:i+1], rootPath) {
					edge := [2]int{a.nodes[i], a.nodes[i+1]}
					if _, exist := deletedLinks[edge]; !exist {
						deletedLinks[edge] = net.links[edge[0]][edge[1]]
						net.links[edge[0]][edge[1]] = -1
					}
				}
			}
			// Make the root path nodes except the spur node unreachable.
			for j := 0; j < len(rootPath)-1; j++ {
				for head := 0; head < len(net.nodes); head++ {
					edge := [2]int{head, rootPath[j]}
					if _, exist := deletedLinks[edge]; !exist {
						deletedLinks[edge] = net.links[head][rootPath[j]]
						net.links[head][rootPath[j]] = -1
					}
				}
			}

			spur, found := dijkstra(net, spurNode, dest)

			// Add back the links and nodes that were removed.
			for edge, cost := range deletedLinks {
				net.links[edge[0]][edge[1]] = cost
			}

			if !found {
				continue
			}
			total := append(append([]int(nil), rootPath[:len(rootPath)-1]...), spur.nodes...)
			cost := 0
			for j := 0; j < len(total)-1; j++ {
				cost += net.links[total[j]][total[j+1]]
			}
			c := candidate{nodes: total, cost: cost}
			if within(c) && !B.contain(c) && !containsPath(A, c) {
				B.insert(c)
			}
		}
		if len(B) == 0 {
			break
		}
		// the heap keeps the lowest cost path at B[0]
		A = append(A, B[0])
		B.pop()
	}

	result := make([][]int, 0, len(A))
	for _, a := range A {
		result = append(result, base.toNodes(a.nodes))
	}
	return result
}

func sliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsPath(list []candidate, c candidate) bool {
	for _, p := range list {
		if sliceEqual(p.nodes, c.nodes) {
			return true
		}
	}
	return false
}

// minHeap of candidates
type pathHeap []candidate

// adjust minHeap from up to down
func (h pathHeap) shiftDown(start, end int) {
	dad := start
	son := dad*2 + 1

	for son <= end {
		if son+1 <= end && pathLess(h[son+1], h[son]) { // choose the smaller son
			son++
		}
		if !pathLess(h[son], h[dad]) {
			break
		}
		h[dad], h[son] = h[son], h[dad]
		dad = son
		son = dad*2 + 1
	}
}

// adjust minHeap from down to up
func (h pathHeap) shiftUp(start int) {
	son := start
	dad := (son - 1) / 2
	for son > 0 {
		if !pathLess(h[son], h[dad]) {
			break
		}
		h[dad], h[son] = h[son], h[dad]
		son = dad
		dad = (son - 1) / 2
	}
}

func (h *pathHeap) insert(c candidate) {
	*h = append(*h, c)
	h.shiftUp(len(*h) - 1)
}

// remove the minimum element
func (h *pathHeap) pop() {
	(*h)[0] = (*h)[len(*h)-1]
	*h = (*h)[:len(*h)-1]
	h.shiftDown(0, len(*h)-1)
}

func (h pathHeap) contain(c candidate) bool {
	return containsPath(h, c)
}

// pathLess orders by cost, then length, then node indexes
func pathLess(p1, p2 candidate) bool {
	if p1.cost != p2.cost {
		return p1.cost < p2.cost
	}
	if len(p1.nodes) != len(p2.nodes) {
		return len(p1.nodes) < len(p2.nodes)
	}
	for i := range p1.nodes {
		if p1.nodes[i] != p2.nodes[i] {
			return p1.nodes[i] < p2.nodes[i]
		}
	}
	return false
}
