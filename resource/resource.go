package resource

import (
	"sort"

	"github.com/knodir/SOL/common"
	"github.com/knodir/SOL/paths"
)

// Kind distinguishes single-element resources from shared pools
type Kind int

const (
	// Plain resources are accounted on each element separately
	Plain Kind = iota
	// Compound resources are one capacity pool spanning a set of nodes and links
	Compound
)

func (k Kind) String() string {
	if k == Compound {
		return "compound"
	}
	return "plain"
}

// Table exposes per-element resource tables (resource name -> capacity).
// *topology.Topology satisfies it.
type Table interface {
	Resources(e common.Element) map[string]float64
}

// Resource is a named capacity dimension. Build it with New or NewCompound.
type Resource struct {
	name  string
	kind  Kind
	nodes map[int]struct{}
	links map[common.Link]struct{}
}

// New returns a plain resource
func New(name string) Resource {
	return Resource{name: name, kind: Plain}
}

// NewCompound returns a resource whose scope is the given nodes and links
func NewCompound(name string, nodes []int, links []common.Link) Resource {
	r := Resource{
		name:  name,
		kind:  Compound,
		nodes: make(map[int]struct{}, len(nodes)),
		links: make(map[common.Link]struct{}, len(links)),
	}
	for _, n := range nodes {
		r.nodes[n] = struct{}{}
	}
	for _, l := range links {
		r.links[l] = struct{}{}
	}
	return r
}

func (r Resource) Name() string { return r.name }

func (r Resource) Kind() Kind { return r.kind }

// Nodes returns the node scope of a compound resource, sorted
func (r Resource) Nodes() []int {
	nodes := make([]int, 0, len(r.nodes))
	for n := range r.nodes {
		nodes = append(nodes, n)
	}
	sort.Ints(nodes)
	return nodes
}

// Links returns the link scope of a compound resource, sorted
func (r Resource) Links() []common.Link {
	links := make([]common.Link, 0, len(r.links))
	for l := range r.links {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return common.LinkLess(links[i], links[j]) })
	return links
}

// Scope lists the elements a compound resource spans, nodes first
func (r Resource) Scope() []common.Element {
	var elems []common.Element
	for _, n := range r.Nodes() {
		elems = append(elems, common.NodeElem(n))
	}
	for _, l := range r.Links() {
		elems = append(elems, common.LinkElem(l))
	}
	return elems
}

// Covers reports whether e is inside the resource's scope. Plain resources
// cover every element.
func (r Resource) Covers(e common.Element) bool {
	switch r.kind {
	case Compound:
		if e.IsLink() {
			_, ok := r.links[e.Link]
			return ok
		}
		_, ok := r.nodes[e.Node]
		return ok
	default:
		return true
	}
}

// candidates yields the path's elements inside the resource scope until
// visit returns false
func (r Resource) candidates(p paths.Routable, visit func(common.Element) bool) {
	for node := range p.All() {
		e := common.NodeElem(node)
		if r.Covers(e) && !visit(e) {
			return
		}
	}
	for _, link := range p.Links() {
		e := common.LinkElem(link)
		if r.Covers(e) && !visit(e) {
			return
		}
	}
}

func declares(t Table, e common.Element, name string) bool {
	_, ok := t.Resources(e)[name]
	return ok
}

// HasResource reports whether path p touches resource r: some node or link
// of p, restricted to r's scope for compound resources, declares r's name
// in its resource table.
func HasResource(p paths.Routable, r Resource, t Table) bool {
	found := false
	r.candidates(p, func(e common.Element) bool {
		if declares(t, e, r.name) {
			found = true
			return false
		}
		return true
	})
	return found
}

// Elements returns every element of p that is in r's scope and declares r
func Elements(p paths.Routable, r Resource, t Table) []common.Element {
	var elems []common.Element
	r.candidates(p, func(e common.Element) bool {
		if declares(t, e, r.name) {
			elems = append(elems, e)
		}
		return true
	})
	return elems
}
