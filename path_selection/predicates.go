package path_selection

import (
	"github.com/knodir/SOL/paths"
	"github.com/knodir/SOL/topology"
)

// Predicate decides whether a candidate path is admissible
type Predicate func(p paths.Routable, topo *topology.Topology) bool

// NullPredicate admits every path
func NullPredicate(paths.Routable, *topology.Topology) bool {
	return true
}

// HasMboxPredicate admits middlebox paths that use at least one box, and
// plain paths that traverse at least one middlebox node
func HasMboxPredicate(p paths.Routable, topo *topology.Topology) bool {
	if mp, ok := p.(*paths.PathWithMbox); ok {
		return len(mp.UseMBoxes()) > 0
	}
	for node := range p.All() {
		if topo.IsMbox(node) {
			return true
		}
	}
	return false
}

// ServiceChainPredicate admits middlebox paths whose boxes, in order, can
// serve the given chain: box i must offer service chain[i]. The number of
// boxes must match the chain length.
func ServiceChainPredicate(chain ...string) Predicate {
	return func(p paths.Routable, topo *topology.Topology) bool {
		mp, ok := p.(*paths.PathWithMbox)
		if !ok {
			return false
		}
		boxes := mp.UseMBoxes()
		if len(boxes) != len(chain) {
			return false
		}
		for i, box := range boxes {
			if !offers(topo.ServiceTypes(box), chain[i]) {
				return false
			}
		}
		return true
	}
}

func offers(services []string, service string) bool {
	for _, s := range services {
		if s == service {
			return true
		}
	}
	return false
}

// Modifier expands one plain candidate into zero or more routable paths
type Modifier func(p *paths.Path, topo *topology.Topology) ([]paths.Routable, error)

// UseMboxModifier turns a path into one PathWithMbox per ordered selection
// of chainLength distinct middlebox nodes along it
func UseMboxModifier(chainLength int) Modifier {
	return func(p *paths.Path, topo *topology.Topology) ([]paths.Routable, error) {
		var boxes []int
		for node := range p.All() {
			if topo.IsMbox(node) {
				boxes = append(boxes, node)
			}
		}

		var result []paths.Routable
		for _, chain := range combinations(boxes, chainLength) {
			mp, err := paths.NewWithMbox(p.ID(), p.Nodes(), chain)
			if err != nil {
				return nil, err
			}
			result = append(result, mp)
		}
		return result, nil
	}
}

// combinations lists every size-k subsequence of items, keeping item order
func combinations(items []int, k int) [][]int {
	if k < 0 || k > len(items) {
		return nil
	}
	var result [][]int
	chosen := make([]int, 0, k)
	var pick func(start int)
	pick = func(start int) {
		if len(chosen) == k {
			result = append(result, append([]int(nil), chosen...))
			return
		}
		for i := start; i <= len(items)-(k-len(chosen)); i++ {
			chosen = append(chosen, items[i])
			pick(i + 1)
			chosen = chosen[:len(chosen)-1]
		}
	}
	pick(0)
	return result
}
