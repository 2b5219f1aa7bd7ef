package opt

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"github.com/knodir/SOL/common"
	"github.com/knodir/SOL/path_selection"
	"github.com/knodir/SOL/topology"
	"github.com/knodir/SOL/traffic"
)

var (
	// ErrUnsupportedBackend is a configuration error: the name was never a backend.
	ErrUnsupportedBackend = errors.New("[opt] - unsupported solver backend")
	// ErrBackendRemoved marks a backend that existed but has been withdrawn.
	ErrBackendRemoved = errors.New("[opt] - solver backend is no longer supported")
)

// Solver is a concrete solver adapter
type Solver interface {
	Name() string
	// Write renders the model in the solver's input format
	Write(w io.Writer, m *Model) error
	// Solve blocks until the solver finishes or ctx is done
	Solve(ctx context.Context, m *Model) (*Solution, error)
}

// SolverFactory creates a solver adapter for one optimization
type SolverFactory func() (Solver, error)

var backends = common.NewRegistry[SolverFactory]("solver backend")

func init() {
	backends.MarkRemoved("cplex", "CPLEX support was removed, use gurobi")
}

// RegisterBackend makes a solver adapter selectable by name. Adapters call
// it from their package init.
func RegisterBackend(name string, factory SolverFactory) error {
	return backends.Register(name, factory)
}

// Backends lists the registered backend names
func Backends() []string {
	return backends.List()
}

// GetOptimization resolves a backend name (case-insensitive) and returns an
// empty optimization bound to it. Removed backends fail with
// ErrBackendRemoved, unknown names with ErrUnsupportedBackend.
func GetOptimization(backend string, topo *topology.Topology) (*Optimization, error) {
	factory, err := backends.Get(backend)
	switch {
	case errors.Is(err, common.ErrRemoved):
		return nil, errors.Wrapf(ErrBackendRemoved, "%v", err)
	case err != nil:
		return nil, errors.Wrapf(ErrUnsupportedBackend, "%q (available: %v)", backend, Backends())
	}
	if topo == nil {
		return nil, errors.New("[opt] - optimization needs a topology")
	}

	solver, err := factory()
	if err != nil {
		return nil, errors.Wrapf(err, "create %s solver", backend)
	}
	log.Debugf("GetOptimization: backend %s selected", solver.Name())
	return newOptimization(topo, solver), nil
}

// InitOptimization selects the backend, then generates the admissible
// paths of every traffic class. The backend is checked first so that a bad
// name fails before any path work.
func InitOptimization(topo *topology.Topology, tcs []*traffic.TrafficClass, config path_selection.Config, backend string) (*Optimization, *traffic.PPTC, error) {
	o, err := GetOptimization(backend, topo)
	if err != nil {
		return nil, nil, err
	}
	pptc, err := path_selection.GeneratePathsPerTrafficClass(topo, tcs, config)
	if err != nil {
		return nil, nil, err
	}
	return o, pptc, nil
}
