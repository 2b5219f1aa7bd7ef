package paths

import (
	"fmt"
	"iter"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slices"

	"github.com/knodir/SOL/common"
)

// PathWithMbox is a route that also records the nodes where a middlebox
// function is applied. Middlebox processing counts as extra path length.
type PathWithMbox struct {
	route     *Path
	useMBoxes []int
}

var _ Routable = (*PathWithMbox)(nil)

// NewWithMbox builds a middlebox path. Every middlebox node must be on the path.
func NewWithMbox(id int, nodes []int, useMBoxes []int) (*PathWithMbox, error) {
	route, err := New(id, nodes)
	if err != nil {
		return nil, err
	}

	for _, box := range useMBoxes {
		if !route.Contains(box) {
			return nil, errors.Wrapf(ErrMboxNotOnPath, "node %d on %s", box, route)
		}
	}

	return &PathWithMbox{route: route, useMBoxes: slices.Clone(useMBoxes)}, nil
}

// UseMBoxes returns the middlebox nodes in order
func (p *PathWithMbox) UseMBoxes() []int { return slices.Clone(p.useMBoxes) }

// UsesBox reports whether the middlebox at node is used by this path
func (p *PathWithMbox) UsesBox(node int) bool { return slices.Contains(p.useMBoxes, node) }

// FullLength is the number of nodes plus the number of middleboxes used
func (p *PathWithMbox) FullLength() int { return len(p.route.nodes) + len(p.useMBoxes) }

func (p *PathWithMbox) ID() int { return p.route.ID() }

func (p *PathWithMbox) Nodes() []int { return p.route.Nodes() }

func (p *PathWithMbox) Links() []common.Link { return p.route.Links() }

func (p *PathWithMbox) All() iter.Seq[int] { return p.route.All() }

func (p *PathWithMbox) Ingress() int { return p.route.Ingress() }

func (p *PathWithMbox) Egress() int { return p.route.Egress() }

func (p *PathWithMbox) IEPair() common.IEPair { return p.route.IEPair() }

func (p *PathWithMbox) Len() int { return p.route.Len() }

func (p *PathWithMbox) Contains(node int) bool { return p.route.Contains(node) }

func (p *PathWithMbox) HasLink(link common.Link) bool { return p.route.HasLink(link) }

// Equal requires equal node sequences and equal middlebox sequences
func (p *PathWithMbox) Equal(other Routable) bool {
	o, ok := other.(*PathWithMbox)
	if !ok || o == nil {
		return false
	}
	return slices.Equal(p.route.nodes, o.route.nodes) && slices.Equal(p.useMBoxes, o.useMBoxes)
}

func (p *PathWithMbox) Encode(numFlows float64) map[string]interface{} {
	m := p.route.Encode(numFlows)
	m["useMBoxes"] = slices.Clone(p.useMBoxes)
	m[mboxDiscriminator] = true
	return m
}

func (p *PathWithMbox) String() string {
	return fmt.Sprintf("PathWithMbox(id=%d, nodes=%s, useMBoxes=%s)",
		p.route.id, formatNodes(p.route.nodes), formatNodes(p.useMBoxes))
}
