package paths

import (
	"fmt"
	"iter"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"

	"github.com/knodir/SOL/common"
)

var (
	ErrEmptyPath     = errors.New("[paths] - path has no nodes")
	ErrMboxNotOnPath = errors.New("[paths] - middlebox node is not on the path")
	ErrIncomparable  = errors.New("[paths] - paths of different kinds cannot be ordered")
	ErrMalformedPath = errors.New("[paths] - malformed path record")
)

// Routable is the capability set shared by every path variant. Paths are
// immutable once built; solver results are kept apart in a FlowTable.
type Routable interface {
	// ID is unique within one run
	ID() int
	// Nodes returns a copy of the node sequence
	Nodes() []int
	// Links returns the adjacent node pairs, computed at construction
	Links() []common.Link
	All() iter.Seq[int]
	Ingress() int
	Egress() int
	IEPair() common.IEPair
	// Len is the number of nodes
	Len() int
	Contains(node int) bool
	HasLink(link common.Link) bool
	Equal(other Routable) bool
	Encode(numFlows float64) map[string]interface{}
	String() string
}

// Path is a plain route: an ordered node sequence
type Path struct {
	id    int
	nodes []int
	links []common.Link
}

var _ Routable = (*Path)(nil)

// New builds a path from a non-empty node sequence. The slice is copied.
func New(id int, nodes []int) (*Path, error) {
	if len(nodes) == 0 {
		return nil, errors.Wrapf(ErrEmptyPath, "path %d", id)
	}

	p := &Path{
		id:    id,
		nodes: slices.Clone(nodes),
		links: make([]common.Link, 0, len(nodes)-1),
	}
	for i := 0; i < len(nodes)-1; i++ {
		p.links = append(p.links, common.NewLink(nodes[i], nodes[i+1]))
	}
	return p, nil
}

func (p *Path) ID() int { return p.id }

func (p *Path) Nodes() []int { return slices.Clone(p.nodes) }

func (p *Path) Links() []common.Link { return slices.Clone(p.links) }

// All yields the nodes in order
func (p *Path) All() iter.Seq[int] {
	return func(yield func(int) bool) {
		for _, node := range p.nodes {
			if !yield(node) {
				return
			}
		}
	}
}

func (p *Path) Ingress() int { return p.nodes[0] }

func (p *Path) Egress() int { return p.nodes[len(p.nodes)-1] }

func (p *Path) IEPair() common.IEPair {
	return common.IEPair{Ingress: p.Ingress(), Egress: p.Egress()}
}

func (p *Path) Len() int { return len(p.nodes) }

func (p *Path) Contains(node int) bool { return slices.Contains(p.nodes, node) }

func (p *Path) HasLink(link common.Link) bool { return slices.Contains(p.links, link) }

// Equal compares node sequences only; ids do not matter. A Path never
// equals a PathWithMbox.
func (p *Path) Equal(other Routable) bool {
	o, ok := other.(*Path)
	if !ok || o == nil {
		return false
	}
	return slices.Equal(p.nodes, o.nodes)
}

func (p *Path) Encode(numFlows float64) map[string]interface{} {
	return map[string]interface{}{
		"nodes":    slices.Clone(p.nodes),
		"numFlows": numFlows,
	}
}

func (p *Path) String() string {
	return fmt.Sprintf("Path(id=%d, nodes=%s)", p.id, formatNodes(p.nodes))
}

func formatNodes(nodes []int) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = fmt.Sprint(n)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// WithID returns a copy of p carrying a different id
func WithID(p Routable, id int) Routable {
	switch v := p.(type) {
	case *Path:
		return &Path{id: id, nodes: v.nodes, links: v.links}
	case *PathWithMbox:
		return &PathWithMbox{route: &Path{id: id, nodes: v.route.nodes, links: v.route.links}, useMBoxes: v.useMBoxes}
	}
	return p
}

// Compare orders two paths of the same kind: shorter first (full length
// for middlebox paths), then lexicographically by nodes, then by
// middlebox nodes. Paths of different kinds are not ordered.
func Compare(a, b Routable) (int, error) {
	switch x := a.(type) {
	case *Path:
		y, ok := b.(*Path)
		if !ok {
			return 0, errors.Wrapf(ErrIncomparable, "%s vs %s", a, b)
		}
		if c := compareInt(x.Len(), y.Len()); c != 0 {
			return c, nil
		}
		return slices.Compare(x.nodes, y.nodes), nil
	case *PathWithMbox:
		y, ok := b.(*PathWithMbox)
		if !ok {
			return 0, errors.Wrapf(ErrIncomparable, "%s vs %s", a, b)
		}
		if c := compareInt(x.FullLength(), y.FullLength()); c != 0 {
			return c, nil
		}
		if c := slices.Compare(x.route.nodes, y.route.nodes); c != 0 {
			return c, nil
		}
		return slices.Compare(x.useMBoxes, y.useMBoxes), nil
	}
	return 0, errors.Wrapf(ErrIncomparable, "unknown path type %T", a)
}

// Less reports whether a orders before b
func Less(a, b Routable) (bool, error) {
	c, err := Compare(a, b)
	if err != nil {
		return false, err
	}
	return c < 0, nil
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
