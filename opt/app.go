package opt

import (
	"fmt"
	"math"
	"sort"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"github.com/knodir/SOL/common"
	"github.com/knodir/SOL/paths"
	"github.com/knodir/SOL/resource"
	"github.com/knodir/SOL/traffic"
)

// Named constraints an App can request
const (
	ConsAllocateFlow = "allocate_flow"
	ConsRouteAll     = "route_all"
	ConsSinglePath   = "single_path"
)

// CompoundDemand is a compound resource an App consumes
type CompoundDemand struct {
	Resource resource.Resource
	Cost     CostFunc
	Capacity float64
}

// App is one tenant of a model: its traffic, the resources it consumes,
// its objective and the extra constraints it needs
type App struct {
	Name string
	PPTC *traffic.PPTC
	// ResourceCost maps a plain resource name to its per-unit cost;
	// capacities come from the topology tables
	ResourceCost map[string]CostFunc
	Compound     []CompoundDemand
	Objective    Objective
	Constraints  []string
}

func (a *App) String() string {
	return fmt.Sprintf("App(%s, %d classes)", a.Name, a.PPTC.Len())
}

func objVarName(app *App) string {
	return "obj_" + sanitize(app.Name)
}

// AddNamedConstraints adds the constraints the app names. Names are
// validated before any constraint is added.
func (o *Optimization) AddNamedConstraints(app *App) error {
	for _, name := range app.Constraints {
		switch name {
		case ConsAllocateFlow, ConsRouteAll, ConsSinglePath:
		default:
			return errors.Wrapf(ErrUnknownConstraint, "%q in %s", name, app)
		}
	}

	for _, name := range app.Constraints {
		var err error
		switch name {
		case ConsAllocateFlow:
			err = o.AllocateFlow(app.PPTC)
		case ConsRouteAll:
			err = o.RouteAll(app.PPTC)
		case ConsSinglePath:
			err = o.SinglePath(app.PPTC)
		}
		if err != nil {
			return errors.Wrapf(err, "%s for %s", name, app)
		}
	}
	return nil
}

// AddObjVar defines obj_<app> equal to the app's objective and adds
// weight * obj_<app> to the model objective. The first call sets the model
// sense; later apps whose sense differs enter with a negated weight.
func (o *Optimization) AddObjVar(app *App, weight float64) error {
	expr, sense, err := o.objectiveExpr(app.PPTC, app.Objective)
	if err != nil {
		return errors.Wrapf(err, "objective of %s", app)
	}

	name := objVarName(app)
	def := NewLinExpr().Add(name, 1).AddExpr(expr, -1)
	pending := []pendingConstraint{{name: "objdef_" + sanitize(app.Name), expr: def, sense: Equal}}
	if err := o.checkNames(pending); err != nil {
		return err
	}
	if _, err := o.model.AddVar(name, Continuous, math.Inf(-1), math.Inf(1)); err != nil {
		return err
	}
	if err := o.commit(pending); err != nil {
		return err
	}

	if o.model.objective.Len() == 0 {
		o.model.SetSense(sense)
	} else if o.model.Sense() != sense {
		weight = -weight
	}
	return o.model.AddObjectiveTerm(name, weight)
}

// ConsumeResources consumes the app's resources alone. Apps sharing a
// resource in one model go through Compose instead.
func (o *Optimization) ConsumeResources(app *App) error {
	for _, name := range sortedKeys(app.ResourceCost) {
		if err := o.ConsumeTopology(app.PPTC, name, app.ResourceCost[name]); err != nil {
			return errors.Wrapf(err, "%s", app)
		}
	}
	for _, d := range app.Compound {
		if err := o.ConsumeCompound(app.PPTC, d.Resource, d.Cost, d.Capacity); err != nil {
			return errors.Wrapf(err, "%s", app)
		}
	}
	return nil
}

// Compose puts several apps into the model: named constraints per app,
// one capacity constraint per element and shared resource (the demands of
// all apps summed), and one weighted objective variable per app. Missing
// weights default to 1/len(apps). A traffic class may belong to one app
// only; a class id seen in two apps fails with traffic.ErrDuplicateClass.
func (o *Optimization) Compose(apps []*App, weights map[string]float64) error {
	if len(apps) == 0 {
		return errors.New("[opt] - nothing to compose")
	}
	seen := make(map[string]struct{}, len(apps))
	for _, app := range apps {
		if _, dup := seen[app.Name]; dup {
			return errors.Newf("[opt] - app %q composed twice", app.Name)
		}
		seen[app.Name] = struct{}{}
	}
	// a class belongs to one app, or its demand would be counted per app
	owner := make(map[int]string)
	for _, app := range apps {
		for _, tc := range app.PPTC.Classes() {
			if other, ok := owner[tc.ID]; ok {
				return errors.Wrapf(traffic.ErrDuplicateClass, "tcID=%d in apps %q and %q", tc.ID, other, app.Name)
			}
			owner[tc.ID] = app.Name
		}
	}

	for _, app := range apps {
		if err := o.AddNamedConstraints(app); err != nil {
			return err
		}
	}

	// resource name -> apps using it, in app order
	users := make(map[string][]*App)
	for _, app := range apps {
		for name := range app.ResourceCost {
			users[name] = append(users[name], app)
		}
	}
	for _, name := range sortedKeys(users) {
		merged := traffic.NewPPTC()
		costs := make(map[int]CostFunc)
		for _, app := range users[name] {
			var err error
			merged, err = merged.Merge(app.PPTC)
			if err != nil {
				return errors.Wrapf(err, "resource %s", name)
			}
			for _, tc := range app.PPTC.Classes() {
				costs[tc.ID] = app.ResourceCost[name]
			}
		}
		dispatch := func(tc *traffic.TrafficClass, p paths.Routable, e common.Element) float64 {
			return costs[tc.ID](tc, p, e)
		}
		if err := o.ConsumeTopology(merged, name, dispatch); err != nil {
			return err
		}
	}
	for _, app := range apps {
		for _, d := range app.Compound {
			if err := o.ConsumeCompound(app.PPTC, d.Resource, d.Cost, d.Capacity); err != nil {
				return errors.Wrapf(err, "%s", app)
			}
		}
	}

	for _, app := range apps {
		w, ok := weights[app.Name]
		if !ok {
			w = 1 / float64(len(apps))
		}
		if err := o.AddObjVar(app, w); err != nil {
			return err
		}
	}
	log.Infof("Compose: %d apps, %d shared resources, %d constraints", len(apps), len(users), o.model.NumConstraints())
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
