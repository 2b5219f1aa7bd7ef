package opt

import (
	"fmt"
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"github.com/knodir/SOL/common"
	"github.com/knodir/SOL/resource"
	"github.com/knodir/SOL/traffic"
)

type pendingConstraint struct {
	name  string
	expr  *LinExpr
	sense Sense
	rhs   float64
}

func (o *Optimization) checkNames(pending []pendingConstraint) error {
	for _, c := range pending {
		if _, dup := o.model.Constraint(c.name); dup {
			return errors.Wrapf(ErrDuplicateConstraint, "%s", c.name)
		}
	}
	return nil
}

// commit registers constraints prepared by a builder. Names are checked
// before anything is added.
func (o *Optimization) commit(pending []pendingConstraint) error {
	if err := o.checkNames(pending); err != nil {
		return err
	}
	for _, c := range pending {
		if _, err := o.model.AddConstraint(c.name, c.expr, c.sense, c.rhs); err != nil {
			return err
		}
	}
	return nil
}

func checkCost(c float64, resource string, e common.Element, tc *traffic.TrafficClass) error {
	if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
		return errors.Wrapf(ErrNegativeCost, "%s on %s for %s: %g", resource, e, tc, c)
	}
	return nil
}

// Consume adds one capacity constraint per element of nodeCaps and
// linkCaps:
//
//	sum over (tc, p) with p through e of x_tc_p * tc.VolFlows * cost(tc, p, e) <= capacity(e)
//
// The capacity maps are expected to hold only elements that carry the
// resource. An element absent from the topology fails with
// ErrUnknownElement before any constraint is added.
func (o *Optimization) Consume(pptc *traffic.PPTC, resource string, cost CostFunc, nodeCaps map[int]float64, linkCaps map[common.Link]float64) error {
	if err := checkPPTC(pptc); err != nil {
		return errors.Wrapf(err, "consume %s", resource)
	}
	if err := o.checkNodes(nodeCaps); err != nil {
		return errors.Wrapf(err, "consume %s", resource)
	}
	if err := o.checkLinks(linkCaps); err != nil {
		return errors.Wrapf(err, "consume %s", resource)
	}

	var pending []pendingConstraint
	for _, e := range elementsOf(nodeCaps, linkCaps) {
		expr := NewLinExpr()
		for tc, routes := range pptc.All() {
			for _, p := range routes {
				if !traverses(p, e) {
					continue
				}
				c := cost(tc, p, e)
				if err := checkCost(c, resource, e, tc); err != nil {
					return err
				}
				expr.Add(pathVarName(tc, p), tc.VolFlows*c)
			}
		}
		pending = append(pending, pendingConstraint{
			name:  capConsName(resource, e),
			expr:  expr,
			sense: LessEqual,
			rhs:   capacityOf(e, nodeCaps, linkCaps),
		})
	}

	if err := o.ensurePathVars(pptc); err != nil {
		return err
	}
	if err := o.commit(pending); err != nil {
		return errors.Wrapf(err, "consume %s", resource)
	}
	log.Debugf("Consume: %s, %d capacity constraints", resource, len(pending))
	return nil
}

// ConsumeTopology is Consume with the capacities declared in the topology
// resource tables
func (o *Optimization) ConsumeTopology(pptc *traffic.PPTC, resource string, cost CostFunc) error {
	return o.Consume(pptc, resource, cost, o.topo.NodeCapacities(resource), o.topo.LinkCapacities(resource))
}

// ConsumeCompound adds a single constraint for a compound resource: every
// path touching the resource pays, for each element of the scope it
// crosses, volFlows * cost, and the total is bounded by capacity.
func (o *Optimization) ConsumeCompound(pptc *traffic.PPTC, r resource.Resource, cost CostFunc, capacity float64) error {
	if r.Kind() != resource.Compound {
		return errors.Newf("[opt] - %s is a %s resource, use Consume", r.Name(), r.Kind())
	}
	if err := checkPPTC(pptc); err != nil {
		return errors.Wrapf(err, "compound %s", r.Name())
	}
	if capacity < 0 || math.IsNaN(capacity) || math.IsInf(capacity, 0) {
		return errors.Wrapf(ErrBadCapacity, "compound %s: %g", r.Name(), capacity)
	}
	for _, e := range r.Scope() {
		if !o.topo.HasElement(e) {
			return errors.Wrapf(ErrUnknownElement, "compound %s: %s", r.Name(), e)
		}
	}

	expr := NewLinExpr()
	for tc, routes := range pptc.All() {
		for _, p := range routes {
			if !resource.HasResource(p, r, o.topo) {
				continue
			}
			total := 0.0
			for _, e := range resource.Elements(p, r, o.topo) {
				c := cost(tc, p, e)
				if err := checkCost(c, r.Name(), e, tc); err != nil {
					return err
				}
				total += c
			}
			expr.Add(pathVarName(tc, p), tc.VolFlows*total)
		}
	}

	if err := o.ensurePathVars(pptc); err != nil {
		return err
	}
	return o.commit([]pendingConstraint{{
		name:  fmt.Sprintf("capc_%s", sanitize(r.Name())),
		expr:  expr,
		sense: LessEqual,
		rhs:   capacity,
	}})
}

// capLoads defines, per element, a load variable bounded by the element's
// capacity and equal to sum x_tc_p * cost(tc, p, e). The cost is the whole
// contribution of the path, usually already normalized by capacity.
func (o *Optimization) capLoads(pptc *traffic.PPTC, res string, elems []common.Element, caps func(common.Element) float64, cost CostFunc) error {
	if err := checkPPTC(pptc); err != nil {
		return errors.Wrapf(err, "load %s", res)
	}
	var pending []pendingConstraint
	for _, e := range elems {
		loadVar := loadVarName(res, e)
		if _, exists := o.model.Var(loadVar); exists {
			return errors.Wrapf(ErrDuplicateVar, "%s", loadVar)
		}
		expr := NewLinExpr().Add(loadVar, 1)
		for tc, routes := range pptc.All() {
			for _, p := range routes {
				if !traverses(p, e) {
					continue
				}
				c := cost(tc, p, e)
				if err := checkCost(c, res, e, tc); err != nil {
					return err
				}
				expr.Add(pathVarName(tc, p), -c)
			}
		}
		pending = append(pending, pendingConstraint{
			name:  fmt.Sprintf("loaddef_%s_%s", sanitize(res), e.Key()),
			expr:  expr,
			sense: Equal,
		})
	}

	if err := o.checkNames(pending); err != nil {
		return err
	}
	if err := o.ensurePathVars(pptc); err != nil {
		return err
	}
	if o.loads[res] == nil {
		o.loads[res] = make(map[common.Element]string)
	}
	for _, e := range elems {
		loadVar := loadVarName(res, e)
		if _, err := o.model.AddVar(loadVar, Continuous, 0, caps(e)); err != nil {
			return err
		}
		o.loads[res][e] = loadVar
	}
	return o.commit(pending)
}

// CapLinks bounds the load of res on each link by linkCaps
func (o *Optimization) CapLinks(pptc *traffic.PPTC, res string, linkCaps map[common.Link]float64, cost CostFunc) error {
	if err := o.checkLinks(linkCaps); err != nil {
		return errors.Wrapf(err, "cap links %s", res)
	}
	return o.capLoads(pptc, res, elementsOf(nil, linkCaps), func(e common.Element) float64 {
		return linkCaps[e.Link]
	}, cost)
}

// CapNodes bounds the load of res on each node by nodeCaps
func (o *Optimization) CapNodes(pptc *traffic.PPTC, res string, nodeCaps map[int]float64, cost CostFunc) error {
	if err := o.checkNodes(nodeCaps); err != nil {
		return errors.Wrapf(err, "cap nodes %s", res)
	}
	return o.capLoads(pptc, res, elementsOf(nodeCaps, nil), func(e common.Element) float64 {
		return nodeCaps[e.Node]
	}, cost)
}

// CapNodesPathResource bounds a per-path node resource, such as rule space,
// that is consumed whenever a path is used at all, regardless of its share:
//
//	sum over (tc, p) through n of binpath_tc_p * cost(tc, p, n) <= nodeCaps[n]
//
// Path binaries must exist (AddBinaryVars with BinPath).
func (o *Optimization) CapNodesPathResource(pptc *traffic.PPTC, res string, nodeCaps map[int]float64, cost CostFunc) error {
	if err := checkPPTC(pptc); err != nil {
		return errors.Wrapf(err, "path resource %s", res)
	}
	if err := o.checkNodes(nodeCaps); err != nil {
		return errors.Wrapf(err, "path resource %s", res)
	}

	var pending []pendingConstraint
	for _, e := range elementsOf(nodeCaps, nil) {
		expr := NewLinExpr()
		for tc, routes := range pptc.All() {
			for _, p := range routes {
				if !traverses(p, e) {
					continue
				}
				bin := binPathVarName(tc, p)
				if _, ok := o.model.Var(bin); !ok {
					return errors.Wrapf(ErrUnknownVar, "%s, add path binaries first", bin)
				}
				c := cost(tc, p, e)
				if err := checkCost(c, res, e, tc); err != nil {
					return err
				}
				expr.Add(bin, c)
			}
		}
		pending = append(pending, pendingConstraint{
			name:  fmt.Sprintf("pathcap_%s_%s", sanitize(res), e.Key()),
			expr:  expr,
			sense: LessEqual,
			rhs:   nodeCaps[e.Node],
		})
	}
	return o.commit(pending)
}

// LoadVars returns the load variables CapLinks/CapNodes defined for res
func (o *Optimization) LoadVars(res string) map[common.Element]string {
	result := make(map[common.Element]string, len(o.loads[res]))
	for e, v := range o.loads[res] {
		result[e] = v
	}
	return result
}

// LoadResources lists, sorted, the resources that have load variables
func (o *Optimization) LoadResources() []string {
	return sortedKeys(o.loads)
}

func sortedNodes(m map[int]float64) []int {
	nodes := make([]int, 0, len(m))
	for n := range m {
		nodes = append(nodes, n)
	}
	sort.Ints(nodes)
	return nodes
}

func sortedLinks(m map[common.Link]float64) []common.Link {
	links := make([]common.Link, 0, len(m))
	for l := range m {
		links = append(links, l)
	}
	sort.Slice(links, func(i, j int) bool { return common.LinkLess(links[i], links[j]) })
	return links
}
