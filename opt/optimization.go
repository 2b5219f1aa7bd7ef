package opt

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"github.com/knodir/SOL/common"
	"github.com/knodir/SOL/paths"
	"github.com/knodir/SOL/topology"
	"github.com/knodir/SOL/traffic"
)

var (
	ErrUnknownElement    = errors.New("[opt] - element is not part of the topology")
	ErrNegativeCost      = errors.New("[opt] - resource cost must be finite and non-negative")
	ErrUnknownConstraint = errors.New("[opt] - unknown named constraint")
	ErrUnknownObjective  = errors.New("[opt] - unknown objective")
	ErrNoLoad            = errors.New("[opt] - no load variables for resource")
	ErrNoSolution        = errors.New("[opt] - no solution available")
	ErrBadCapacity       = errors.New("[opt] - capacity must be finite and non-negative")
)

// CostFunc is the per-unit cost a path of a traffic class puts on one
// element for one resource
type CostFunc func(tc *traffic.TrafficClass, p paths.Routable, e common.Element) float64

// ConstantCost charges the same cost everywhere
func ConstantCost(cost float64) CostFunc {
	return func(*traffic.TrafficClass, paths.Routable, common.Element) float64 {
		return cost
	}
}

// AttrCost charges the traffic class attribute attr, e.g. "cpuCost"
func AttrCost(attr string) CostFunc {
	return func(tc *traffic.TrafficClass, _ paths.Routable, _ common.Element) float64 {
		return tc.Attr(attr)
	}
}

// Optimization builds one model over a topology and hands it to the
// selected solver. Not safe for concurrent use.
type Optimization struct {
	topo     *topology.Topology
	model    *Model
	solver   Solver
	loads    map[string]map[common.Element]string // resource -> element -> load variable
	solution *Solution
}

func newOptimization(topo *topology.Topology, solver Solver) *Optimization {
	return &Optimization{
		topo:   topo,
		model:  NewModel(),
		solver: solver,
		loads:  make(map[string]map[common.Element]string),
	}
}

func (o *Optimization) Topology() *topology.Topology { return o.topo }

func (o *Optimization) Model() *Model { return o.model }

// Backend is the name of the solver adapter
func (o *Optimization) Backend() string { return o.solver.Name() }

// WriteModel renders the model in the solver's input format
func (o *Optimization) WriteModel(w io.Writer) error {
	return o.solver.Write(w, o.model)
}

// Solve runs the solver. A solve that ends without an assignment returns
// ErrNoSolution; the solution is still kept for inspection.
func (o *Optimization) Solve(ctx context.Context) (*Solution, error) {
	log.Infof("Solve: %s with %d variables, %d constraints", o.solver.Name(), o.model.NumVars(), o.model.NumConstraints())
	sol, err := o.solver.Solve(ctx, o.model)
	if err != nil {
		return nil, errors.Wrapf(err, "%s solve", o.solver.Name())
	}
	o.solution = sol
	if !sol.HasValues() {
		return sol, errors.Wrapf(ErrNoSolution, "status %s", sol.Status)
	}
	log.Infof("Solve: status %s, objective %g", sol.Status, sol.Objective)
	return sol, nil
}

// Solution returns the last solve result, or ErrNoSolution
func (o *Optimization) Solution() (*Solution, error) {
	if !o.solution.HasValues() {
		return nil, ErrNoSolution
	}
	return o.solution, nil
}

// SolvedObjective returns the objective value of the last solve
func (o *Optimization) SolvedObjective() (float64, error) {
	sol, err := o.Solution()
	if err != nil {
		return 0, err
	}
	return sol.Objective, nil
}

// PathFractions returns the solved share of each class on each path
func (o *Optimization) PathFractions(pptc *traffic.PPTC) (map[int][]PathFlow, error) {
	sol, err := o.Solution()
	if err != nil {
		return nil, err
	}
	return sol.PathFractions(pptc), nil
}

// Variable and constraint naming. Names only carry [A-Za-z0-9_].

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, name)
}

func pathVarName(tc *traffic.TrafficClass, p paths.Routable) string {
	return fmt.Sprintf("x_%d_%d", tc.ID, p.ID())
}

func allocVarName(tc *traffic.TrafficClass) string {
	return fmt.Sprintf("a_%d", tc.ID)
}

func binPathVarName(tc *traffic.TrafficClass, p paths.Routable) string {
	return fmt.Sprintf("binpath_%d_%d", tc.ID, p.ID())
}

func binNodeVarName(node int) string {
	return fmt.Sprintf("binnode_%d", node)
}

func binLinkVarName(link common.Link) string {
	return fmt.Sprintf("binlink_%d_%d", link.Src, link.Dst)
}

func loadVarName(resource string, e common.Element) string {
	return fmt.Sprintf("load_%s_%s", sanitize(resource), e.Key())
}

func capConsName(resource string, e common.Element) string {
	return fmt.Sprintf("cap_%s_%s", sanitize(resource), e.Key())
}

// PathVar returns the name of the decision variable of p in tc
func PathVar(tc *traffic.TrafficClass, p paths.Routable) string {
	return pathVarName(tc, p)
}

// AllocVar returns the name of the allocation variable of tc
func AllocVar(tc *traffic.TrafficClass) string {
	return allocVarName(tc)
}

// CapConstraint returns the name of the capacity constraint Consume
// registers for resource on e
func CapConstraint(resource string, e common.Element) string {
	return capConsName(resource, e)
}

// ensurePathVars defines the fraction variable of every path, in [0, 1]
func (o *Optimization) ensurePathVars(pptc *traffic.PPTC) error {
	for tc, routes := range pptc.All() {
		for _, p := range routes {
			if _, err := o.model.EnsureVar(pathVarName(tc, p), Continuous, 0, 1); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkPPTC rejects paths that do not join their class's endpoints and
// path ids repeated within a class, which would share one variable
func checkPPTC(pptc *traffic.PPTC) error {
	if err := pptc.Validate(); err != nil {
		return errors.Wrap(err, "paths per traffic class")
	}
	return nil
}

func checkCapacity(e common.Element, c float64) error {
	if c < 0 || math.IsNaN(c) || math.IsInf(c, 0) {
		return errors.Wrapf(ErrBadCapacity, "%s: %g", e, c)
	}
	return nil
}

// checkNodes fails with ErrUnknownElement on the first node missing from
// the topology and with ErrBadCapacity on a capacity that is not a finite
// non-negative number
func (o *Optimization) checkNodes(nodes map[int]float64) error {
	for node, c := range nodes {
		e := common.NodeElem(node)
		if !o.topo.HasNode(node) {
			return errors.Wrapf(ErrUnknownElement, "%s", e)
		}
		if err := checkCapacity(e, c); err != nil {
			return err
		}
	}
	return nil
}

func (o *Optimization) checkLinks(links map[common.Link]float64) error {
	for link, c := range links {
		e := common.LinkElem(link)
		if !o.topo.HasLink(link) {
			return errors.Wrapf(ErrUnknownElement, "%s", e)
		}
		if err := checkCapacity(e, c); err != nil {
			return err
		}
	}
	return nil
}

// elementsOf lists the elements of both capacity maps, nodes first, sorted
func elementsOf(nodeCaps map[int]float64, linkCaps map[common.Link]float64) []common.Element {
	elems := make([]common.Element, 0, len(nodeCaps)+len(linkCaps))
	for _, node := range sortedNodes(nodeCaps) {
		elems = append(elems, common.NodeElem(node))
	}
	for _, link := range sortedLinks(linkCaps) {
		elems = append(elems, common.LinkElem(link))
	}
	return elems
}

func capacityOf(e common.Element, nodeCaps map[int]float64, linkCaps map[common.Link]float64) float64 {
	if e.IsLink() {
		return linkCaps[e.Link]
	}
	return nodeCaps[e.Node]
}

// traverses reports whether p goes through e
func traverses(p paths.Routable, e common.Element) bool {
	if e.IsLink() {
		return p.HasLink(e.Link)
	}
	return p.Contains(e.Node)
}
