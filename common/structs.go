package common

import "fmt"

// Link is a directed link between two nodes. Node identifiers are
// non-negative integers, as in the topology files.
type Link struct {
	Src int `json:"src" yaml:"src"`
	Dst int `json:"dst" yaml:"dst"`
}

func NewLink(src, dst int) Link {
	return Link{Src: src, Dst: dst}
}

// Reverse returns the link in the opposite direction
func (l Link) Reverse() Link {
	return Link{Src: l.Dst, Dst: l.Src}
}

func (l Link) String() string {
	return fmt.Sprintf("%d->%d", l.Src, l.Dst)
}

// LinkLess orders links by source then destination
func LinkLess(a, b Link) bool {
	if a.Src != b.Src {
		return a.Src < b.Src
	}
	return a.Dst < b.Dst
}

// IEPair is an ingress-egress pair, the key traffic classes are grouped by
type IEPair struct {
	Ingress int `json:"ingress" yaml:"ingress"`
	Egress  int `json:"egress" yaml:"egress"`
}

func (p IEPair) String() string {
	return fmt.Sprintf("%d-%d", p.Ingress, p.Egress)
}

// ElementKind tells whether an Element is a node or a link
type ElementKind int

const (
	NodeElement ElementKind = iota
	LinkElement
)

// Element is a network element that can carry resources: either a node or a link.
type Element struct {
	Kind ElementKind
	Node int
	Link Link
}

func NodeElem(node int) Element {
	return Element{Kind: NodeElement, Node: node}
}

func LinkElem(link Link) Element {
	return Element{Kind: LinkElement, Link: link}
}

func (e Element) IsNode() bool { return e.Kind == NodeElement }

func (e Element) IsLink() bool { return e.Kind == LinkElement }

// Key returns a compact identifier usable inside solver variable names:
// "n3" for node 3, "l3_4" for link 3->4.
func (e Element) Key() string {
	if e.Kind == LinkElement {
		return fmt.Sprintf("l%d_%d", e.Link.Src, e.Link.Dst)
	}
	return fmt.Sprintf("n%d", e.Node)
}

func (e Element) String() string {
	if e.Kind == LinkElement {
		return "link " + e.Link.String()
	}
	return fmt.Sprintf("node %d", e.Node)
}
