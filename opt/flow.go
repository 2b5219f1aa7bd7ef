package opt

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/knodir/SOL/common"
	"github.com/knodir/SOL/traffic"
)

// BinaryKind selects a family of binary variables
type BinaryKind string

const (
	BinPath BinaryKind = "path"
	BinNode BinaryKind = "node"
	BinLink BinaryKind = "link"
)

// AllocateFlow defines x_tc_p in [0, 1] for every path and a_tc in [0, 1]
// for every class, with a_tc = sum_p x_tc_p
func (o *Optimization) AllocateFlow(pptc *traffic.PPTC) error {
	if err := checkPPTC(pptc); err != nil {
		return errors.Wrap(err, "allocate flow")
	}
	var pending []pendingConstraint
	for tc, routes := range pptc.All() {
		expr := NewLinExpr().Add(allocVarName(tc), 1)
		for _, p := range routes {
			expr.Add(pathVarName(tc, p), -1)
		}
		pending = append(pending, pendingConstraint{
			name:  fmt.Sprintf("alloc_%d", tc.ID),
			expr:  expr,
			sense: Equal,
		})
	}
	if err := o.checkNames(pending); err != nil {
		return errors.Wrap(err, "allocate flow")
	}

	if err := o.ensurePathVars(pptc); err != nil {
		return err
	}
	for _, tc := range pptc.Classes() {
		if _, err := o.model.EnsureVar(allocVarName(tc), Continuous, 0, 1); err != nil {
			return err
		}
	}
	return o.commit(pending)
}

// RouteAll forces every class to be fully routed: a_tc = 1.
// AllocateFlow must run first.
func (o *Optimization) RouteAll(pptc *traffic.PPTC) error {
	var pending []pendingConstraint
	for _, tc := range pptc.Classes() {
		alloc := allocVarName(tc)
		if _, ok := o.model.Var(alloc); !ok {
			return errors.Wrapf(ErrUnknownVar, "%s, allocate flow first", alloc)
		}
		pending = append(pending, pendingConstraint{
			name:  fmt.Sprintf("routeall_%d", tc.ID),
			expr:  NewLinExpr().Add(alloc, 1),
			sense: Equal,
			rhs:   1,
		})
	}
	return o.commit(pending)
}

// AddBinaryVars defines the requested binary families:
//
//	path: binpath_tc_p >= x_tc_p, so a used path has binpath = 1
//	node: binnode_n >= binpath_tc_p for every path through n
//	link: binlink_l >= binpath_tc_p for every path over l
//
// Node and link binaries imply path binaries.
func (o *Optimization) AddBinaryVars(pptc *traffic.PPTC, kinds ...BinaryKind) error {
	want := make(map[BinaryKind]bool, len(kinds))
	for _, k := range kinds {
		switch k {
		case BinPath, BinNode, BinLink:
			want[k] = true
		default:
			return errors.Newf("[opt] - unknown binary variable kind %q", k)
		}
	}
	if want[BinNode] || want[BinLink] {
		want[BinPath] = true
	}
	if err := checkPPTC(pptc); err != nil {
		return errors.Wrap(err, "binary variables")
	}

	if err := o.ensurePathVars(pptc); err != nil {
		return err
	}

	var pending []pendingConstraint
	for tc, routes := range pptc.All() {
		for _, p := range routes {
			bin := binPathVarName(tc, p)
			if _, exists := o.model.Var(bin); exists {
				continue
			}
			if _, err := o.model.AddVar(bin, Binary, 0, 1); err != nil {
				return err
			}
			pending = append(pending, pendingConstraint{
				name:  fmt.Sprintf("binpathdef_%d_%d", tc.ID, p.ID()),
				expr:  NewLinExpr().Add(pathVarName(tc, p), 1).Add(bin, -1),
				sense: LessEqual,
			})
		}
	}

	if want[BinNode] {
		for _, node := range o.topo.Nodes() {
			v := binNodeVarName(node)
			if _, err := o.model.EnsureVar(v, Binary, 0, 1); err != nil {
				return err
			}
			e := common.NodeElem(node)
			for tc, routes := range pptc.All() {
				for _, p := range routes {
					if traverses(p, e) {
						pending = append(pending, pendingConstraint{
							name:  fmt.Sprintf("binnodedef_%d_%d_%d", node, tc.ID, p.ID()),
							expr:  NewLinExpr().Add(binPathVarName(tc, p), 1).Add(v, -1),
							sense: LessEqual,
						})
					}
				}
			}
		}
	}

	if want[BinLink] {
		for _, link := range o.topo.Links() {
			v := binLinkVarName(link)
			if _, err := o.model.EnsureVar(v, Binary, 0, 1); err != nil {
				return err
			}
			e := common.LinkElem(link)
			for tc, routes := range pptc.All() {
				for _, p := range routes {
					if traverses(p, e) {
						pending = append(pending, pendingConstraint{
							name:  fmt.Sprintf("binlinkdef_%d_%d_%d_%d", link.Src, link.Dst, tc.ID, p.ID()),
							expr:  NewLinExpr().Add(binPathVarName(tc, p), 1).Add(v, -1),
							sense: LessEqual,
						})
					}
				}
			}
		}
	}
	return o.commit(pending)
}

// SinglePath allows each class at most one used path. Path binaries are
// added when missing.
func (o *Optimization) SinglePath(pptc *traffic.PPTC) error {
	if err := o.AddBinaryVars(pptc, BinPath); err != nil {
		return err
	}
	var pending []pendingConstraint
	for tc, routes := range pptc.All() {
		expr := NewLinExpr()
		for _, p := range routes {
			expr.Add(binPathVarName(tc, p), 1)
		}
		pending = append(pending, pendingConstraint{
			name:  fmt.Sprintf("singlepath_%d", tc.ID),
			expr:  expr,
			sense: LessEqual,
			rhs:   1,
		})
	}
	return o.commit(pending)
}
