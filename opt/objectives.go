package opt

import (
	"fmt"
	"math"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/knodir/SOL/common"
	"github.com/knodir/SOL/traffic"
)

// Objective names an objective function; Resource is used by the load
// objectives
type Objective struct {
	Name     string `toml:"name" json:"name" yaml:"name"`
	Resource string `toml:"resource" json:"resource,omitempty" yaml:"resource,omitempty"`
}

const (
	ObjMinNodeLoad = "minnodeload"
	ObjMinLinkLoad = "minlinkload"
	ObjMaxAllFlow  = "maxallflow"
	ObjMinLatency  = "minlatency"
)

func normalizeObjective(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "")
}

// objectiveExpr builds the expression and sense of obj without installing it
func (o *Optimization) objectiveExpr(pptc *traffic.PPTC, obj Objective) (*LinExpr, ObjectiveSense, error) {
	switch normalizeObjective(obj.Name) {
	case ObjMinNodeLoad:
		v, err := o.maxLoadVar(obj.Resource, common.NodeElement)
		if err != nil {
			return nil, Minimize, err
		}
		return NewLinExpr().Add(v, 1), Minimize, nil
	case ObjMinLinkLoad:
		v, err := o.maxLoadVar(obj.Resource, common.LinkElement)
		if err != nil {
			return nil, Minimize, err
		}
		return NewLinExpr().Add(v, 1), Minimize, nil
	case ObjMaxAllFlow:
		expr := NewLinExpr()
		for _, tc := range pptc.Classes() {
			alloc := allocVarName(tc)
			if _, ok := o.model.Var(alloc); !ok {
				return nil, Maximize, errors.Wrapf(ErrUnknownVar, "%s, allocate flow first", alloc)
			}
			expr.Add(alloc, tc.VolFlows)
		}
		return expr, Maximize, nil
	case ObjMinLatency:
		if err := o.ensurePathVars(pptc); err != nil {
			return nil, Minimize, err
		}
		expr := NewLinExpr()
		for tc, routes := range pptc.All() {
			for _, p := range routes {
				expr.Add(pathVarName(tc, p), tc.VolFlows*float64(p.Len()-1))
			}
		}
		return expr, Minimize, nil
	}
	return nil, Minimize, errors.Wrapf(ErrUnknownObjective, "%q", obj.Name)
}

// maxLoadVar defines maxload_<kind>_<res>, bounded below by every load
// variable of res on elements of that kind, and returns its name
func (o *Optimization) maxLoadVar(res string, kind common.ElementKind) (string, error) {
	prefix := "node"
	if kind == common.LinkElement {
		prefix = "link"
	}
	name := fmt.Sprintf("maxload_%s_%s", prefix, sanitize(res))
	if _, ok := o.model.Var(name); ok {
		return name, nil
	}

	nodeCaps := make(map[int]float64)
	linkCaps := make(map[common.Link]float64)
	for e := range o.loads[res] {
		if e.Kind != kind {
			continue
		}
		if e.IsLink() {
			linkCaps[e.Link] = 0
		} else {
			nodeCaps[e.Node] = 0
		}
	}
	elems := elementsOf(nodeCaps, linkCaps)
	if len(elems) == 0 {
		return "", errors.Wrapf(ErrNoLoad, "%s on %s elements, cap them first", res, prefix)
	}

	var pending []pendingConstraint
	for _, e := range elems {
		pending = append(pending, pendingConstraint{
			name:  fmt.Sprintf("%s_%s", name, e.Key()),
			expr:  NewLinExpr().Add(o.loads[res][e], 1).Add(name, -1),
			sense: LessEqual,
		})
	}
	if err := o.checkNames(pending); err != nil {
		return "", err
	}
	if _, err := o.model.AddVar(name, Continuous, 0, math.Inf(1)); err != nil {
		return "", err
	}
	return name, o.commit(pending)
}

// SetObjective installs obj as the model objective
func (o *Optimization) SetObjective(pptc *traffic.PPTC, obj Objective) error {
	expr, sense, err := o.objectiveExpr(pptc, obj)
	if err != nil {
		return err
	}
	return o.model.SetObjective(expr, sense)
}

// MinNodeLoad minimizes the largest node load of res (see CapNodes)
func (o *Optimization) MinNodeLoad(pptc *traffic.PPTC, res string) error {
	return o.SetObjective(pptc, Objective{Name: ObjMinNodeLoad, Resource: res})
}

// MinLinkLoad minimizes the largest link load of res (see CapLinks)
func (o *Optimization) MinLinkLoad(pptc *traffic.PPTC, res string) error {
	return o.SetObjective(pptc, Objective{Name: ObjMinLinkLoad, Resource: res})
}

// MaxAllFlow maximizes the routed volume, sum a_tc * volFlows
func (o *Optimization) MaxAllFlow(pptc *traffic.PPTC) error {
	return o.SetObjective(pptc, Objective{Name: ObjMaxAllFlow})
}

// MinLatency minimizes the flow-weighted hop count
func (o *Optimization) MinLatency(pptc *traffic.PPTC) error {
	return o.SetObjective(pptc, Objective{Name: ObjMinLatency})
}
