package main

import (
	"context"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"github.com/knodir/SOL/common"
	"github.com/knodir/SOL/etcd"
	"github.com/knodir/SOL/opt"
	"github.com/knodir/SOL/path_selection"
	"github.com/knodir/SOL/paths"
	"github.com/knodir/SOL/report"
	"github.com/knodir/SOL/topology"
	"github.com/knodir/SOL/traffic"
)

const (
	resCPU  = "cpu"
	resTCAM = "tcam"
	resBW   = "bw"

	attrCPUCost = "cpuCost"
	appName     = "servicechaining"

	linkModeLoad    = "load"
	linkModeConsume = "consume"
)

// pipeline is a built service chaining model
type pipeline struct {
	topo *topology.Topology
	tcs  []*traffic.TrafficClass
	o    *opt.Optimization
	pptc *traffic.PPTC
	app  *opt.App
}

func loadInputs(cfg *SolConfig) (*topology.Topology, []*traffic.TrafficClass, error) {
	topo, err := topology.Load(cfg.Topology.File)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Topology.AllMbox {
		for _, n := range topo.Nodes() {
			if err := topo.SetMbox(n, true); err != nil {
				return nil, nil, err
			}
			if err := topo.SetServiceTypes(n, cfg.Topology.MboxServices); err != nil {
				return nil, nil, err
			}
		}
	}

	m, err := traffic.LoadMatrix(cfg.Traffic.Matrix)
	if err != nil {
		return nil, nil, err
	}
	tcs := traffic.GenerateTrafficClasses(m.Pairs(), m, cfg.Traffic.Classes, cfg.Traffic.ClassBytes)
	if len(tcs) == 0 {
		return nil, nil, errors.Newf("[sol] - traffic matrix %s yields no traffic classes", cfg.Traffic.Matrix)
	}
	for _, tc := range tcs {
		tc.SetAttr(attrCPUCost, cfg.Traffic.CPUCost)
	}
	log.Infof("loaded %d traffic classes over %d ingress-egress pairs", len(tcs), len(m))
	return topo, tcs, nil
}

// provision sizes cpu and tcam on middlebox nodes and bandwidth on links
func provision(cfg *SolConfig, topo *topology.Topology, tcs []*traffic.TrafficClass) error {
	costs := make(map[int]float64, len(tcs))
	for _, tc := range tcs {
		costs[tc.ID] = tc.Attr(attrCPUCost)
	}
	cpuCap := traffic.ComputeMaxIngressLoad(tcs, costs) * cfg.Capacity.CPUFactor
	if cpuCap <= 0 {
		return errors.New("[sol] - no cpu load to provision for")
	}
	for _, n := range topo.MboxNodes() {
		if err := topo.SetNodeResource(n, resCPU, cpuCap); err != nil {
			return err
		}
		if err := topo.SetNodeResource(n, resTCAM, cfg.Capacity.TCAM); err != nil {
			return err
		}
	}

	linkCaps, err := traffic.ProvisionLinks(topo, tcs, cfg.Capacity.LinkFactor)
	if err != nil {
		return err
	}
	for link, c := range linkCaps {
		if c <= 0 {
			return errors.Newf("[sol] - no bandwidth to provision on %s", link)
		}
		if err := topo.SetLinkResource(link, resBW, c); err != nil {
			return err
		}
	}
	return nil
}

func pathConfig(cfg *SolConfig) path_selection.Config {
	config := path_selection.Config{
		Chooser:       cfg.Paths.Chooser,
		NumPaths:      cfg.Paths.NumPaths,
		MaxCandidates: cfg.Paths.MaxCandidates,
		CutoffFactor:  cfg.Paths.CutoffFactor,
		Seed:          cfg.Paths.Seed,
		Workers:       cfg.Paths.Workers,
	}
	if chain := cfg.Paths.ServiceChain; len(chain) > 0 {
		config.Predicate = path_selection.ServiceChainPredicate(chain...)
		config.Modifier = path_selection.UseMboxModifier(len(chain))
	}
	return config
}

// cpuCost charges a class on the boxes it uses, normalized by node capacity
func cpuCost(caps map[int]float64) opt.CostFunc {
	return func(tc *traffic.TrafficClass, p paths.Routable, e common.Element) float64 {
		if mp, ok := p.(*paths.PathWithMbox); ok && !mp.UsesBox(e.Node) {
			return 0
		}
		return tc.VolFlows * tc.Attr(attrCPUCost) / caps[e.Node]
	}
}

func bwCost(caps map[common.Link]float64) opt.CostFunc {
	return func(tc *traffic.TrafficClass, _ paths.Routable, e common.Element) float64 {
		return tc.VolBytes / caps[e.Link]
	}
}

// bytesPerFlow is the bandwidth one flow of a class takes; Consume scales
// it by the class's flow count
func bytesPerFlow(tc *traffic.TrafficClass, _ paths.Routable, _ common.Element) float64 {
	if tc.VolFlows == 0 {
		return 0
	}
	return tc.VolBytes / tc.VolFlows
}

// buildServiceChaining loads the inputs and builds the model: every class
// fully routed over paths that traverse the service chain, rule space
// bounded per node, link and node loads capped, max node cpu load minimized
func buildServiceChaining(cfg *SolConfig) (*pipeline, error) {
	if err := cfg.checkInputs(); err != nil {
		return nil, err
	}
	topo, tcs, err := loadInputs(cfg)
	if err != nil {
		return nil, err
	}
	if err := provision(cfg, topo, tcs); err != nil {
		return nil, err
	}

	o, pptc, err := opt.InitOptimization(topo, tcs, pathConfig(cfg), cfg.Solver.Backend)
	if err != nil {
		return nil, err
	}
	log.Infof("generated %d paths for %d traffic classes", pptc.TotalPaths(), pptc.Len())

	app := &opt.App{
		Name:        appName,
		PPTC:        pptc,
		Objective:   opt.Objective{Name: opt.ObjMinNodeLoad, Resource: resCPU},
		Constraints: []string{opt.ConsAllocateFlow, opt.ConsRouteAll},
	}
	if err := o.AddNamedConstraints(app); err != nil {
		return nil, err
	}
	if err := o.AddBinaryVars(pptc, opt.BinPath, opt.BinNode); err != nil {
		return nil, err
	}
	if err := o.CapNodesPathResource(pptc, resTCAM, topo.NodeCapacities(resTCAM), opt.ConstantCost(cfg.Capacity.TCAMCost)); err != nil {
		return nil, err
	}
	switch cfg.Capacity.LinkMode {
	case linkModeConsume:
		app.ResourceCost = map[string]opt.CostFunc{resBW: bytesPerFlow}
		if err := o.ConsumeResources(app); err != nil {
			return nil, err
		}
	default:
		linkCaps := topo.LinkCapacities(resBW)
		if err := o.CapLinks(pptc, resBW, linkCaps, bwCost(linkCaps)); err != nil {
			return nil, err
		}
	}
	nodeCaps := topo.NodeCapacities(resCPU)
	if err := o.CapNodes(pptc, resCPU, nodeCaps, cpuCost(nodeCaps)); err != nil {
		return nil, err
	}
	if err := o.AddObjVar(app, 1); err != nil {
		return nil, err
	}
	log.Infof("model built: %d variables, %d constraints", o.Model().NumVars(), o.Model().NumConstraints())

	return &pipeline{topo: topo, tcs: tcs, o: o, pptc: pptc, app: app}, nil
}

func (p *pipeline) writeModel(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "create %s", filename)
	}
	if err := p.o.WriteModel(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", filename)
	}
	log.Infof("model written to %s", filename)
	return nil
}

// solve runs the solver, logs the path fractions, writes the report and
// publishes the routes when etcd is configured
func (p *pipeline) solve(ctx context.Context, cfg *SolConfig) (*report.Report, error) {
	start := time.Now()
	sol, err := p.o.Solve(ctx)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	fractions := sol.PathFractions(p.pptc)
	for _, tc := range p.pptc.Classes() {
		for _, pf := range fractions[tc.ID] {
			log.Infof("%s: %s carries %.4f", tc, pf.Path, pf.Fraction)
		}
	}

	rep := report.New(p.o, p.pptc, sol, elapsed).WithSysInfo()
	if key, load := rep.MaxLoad(resCPU); key != "" {
		log.Infof("max cpu load %.4f on %s", load, key)
	}
	if cfg.Output.Report != "" {
		if err := rep.WriteToFile(cfg.Output.Report); err != nil {
			return nil, err
		}
	}

	if etcdCfg, ok := cfg.etcdConfig(); ok {
		publisher, err := etcd.NewRoutePublisher(etcdCfg)
		if err != nil {
			return nil, err
		}
		defer publisher.Close()
		if cfg.Etcd.ClearStale {
			if _, err := publisher.Clear(ctx); err != nil {
				return nil, err
			}
		}
		if err := publisher.Publish(ctx, p.pptc, sol.ApplyFlows(p.pptc)); err != nil {
			return nil, err
		}
	}
	return rep, nil
}
