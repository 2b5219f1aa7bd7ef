package opt

import (
	"github.com/knodir/SOL/paths"
	"github.com/knodir/SOL/traffic"
)

// Status of a solve
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusFeasible   Status = "feasible"
	StatusInfeasible Status = "infeasible"
	StatusUnknown    Status = "unknown"
)

// fractions below this are reported as unused
const fractionEpsilon = 1e-6

// Solution holds the variable values returned by a solver
type Solution struct {
	Status    Status
	Objective float64
	Values    map[string]float64
}

// HasValues reports whether the solver produced an assignment
func (s *Solution) HasValues() bool {
	return s != nil && (s.Status == StatusOptimal || s.Status == StatusFeasible)
}

// Value returns a variable's value, 0 when the solver omitted it
func (s *Solution) Value(name string) float64 {
	return s.Values[name]
}

// PathFlow is a path together with the share of its class routed on it
type PathFlow struct {
	Path     paths.Routable
	Fraction float64
}

// PathFractions returns, per traffic class id, the paths carrying a
// non-zero share of the class
func (s *Solution) PathFractions(pptc *traffic.PPTC) map[int][]PathFlow {
	result := make(map[int][]PathFlow, pptc.Len())
	for tc, routes := range pptc.All() {
		var flows []PathFlow
		for _, p := range routes {
			f := s.Value(pathVarName(tc, p))
			if f > fractionEpsilon {
				flows = append(flows, PathFlow{Path: p, Fraction: f})
			}
		}
		result[tc.ID] = flows
	}
	return result
}

// ApplyFlows converts the fractions into flow counts per path: fraction *
// volFlows of the class. The result is keyed by traffic class id.
func (s *Solution) ApplyFlows(pptc *traffic.PPTC) map[int]paths.FlowTable {
	tables := make(map[int]paths.FlowTable, pptc.Len())
	for tc, routes := range pptc.All() {
		ft := paths.NewFlowTable()
		for _, p := range routes {
			ft.Set(p.ID(), s.Value(pathVarName(tc, p))*tc.VolFlows)
		}
		tables[tc.ID] = ft
	}
	return tables
}
