package main

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"github.com/knodir/SOL/etcd"
	"github.com/knodir/SOL/opt/gurobi"
	"github.com/knodir/SOL/path_selection"
)

// SolConfig holds the configuration read from the toml file
type SolConfig struct {
	Log      LogConfig      `toml:"log"`
	Topology TopologyConfig `toml:"topology"`
	Traffic  TrafficConfig  `toml:"traffic"`
	Paths    PathsConfig    `toml:"paths"`
	Capacity CapacityConfig `toml:"capacity"`
	Solver   SolverConfig   `toml:"solver"`
	Etcd     EtcdConfig     `toml:"etcd"`
	Output   OutputConfig   `toml:"output"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type TopologyConfig struct {
	File string `toml:"file"`
	// AllMbox turns every node into a middlebox offering MboxServices
	AllMbox      bool     `toml:"all_mbox"`
	MboxServices []string `toml:"mbox_services"`
}

type TrafficConfig struct {
	Matrix     string             `toml:"matrix"`
	Classes    map[string]float64 `toml:"classes"`
	ClassBytes map[string]float64 `toml:"class_bytes"`
	CPUCost    float64            `toml:"cpu_cost"`
}

type PathsConfig struct {
	Chooser       string   `toml:"chooser"`
	NumPaths      int      `toml:"num_paths"`
	MaxCandidates int      `toml:"max_candidates"`
	CutoffFactor  float64  `toml:"cutoff_factor"`
	ServiceChain  []string `toml:"service_chain"`
	Seed          int64    `toml:"seed"`
	Workers       int      `toml:"workers"`
}

type CapacityConfig struct {
	// LinkMode is "load" (normalized link load variables) or "consume"
	// (absolute byte capacity constraints)
	LinkMode   string  `toml:"link_mode"`
	LinkFactor float64 `toml:"link_factor"`
	CPUFactor  float64 `toml:"cpu_factor"`
	TCAM       float64 `toml:"tcam"`
	TCAMCost   float64 `toml:"tcam_cost"`
}

type SolverConfig struct {
	Backend   string            `toml:"backend"`
	Binary    string            `toml:"binary"`
	WorkDir   string            `toml:"work_dir"`
	Timeout   string            `toml:"timeout"`
	KeepFiles bool              `toml:"keep_files"`
	Params    map[string]string `toml:"params"`
}

type EtcdConfig struct {
	Endpoints   []string `toml:"endpoints"`
	DialTimeout string   `toml:"dial_timeout"`
	Prefix      string   `toml:"prefix"`
	// ClearStale removes the routes of an earlier solve before publishing
	ClearStale  bool     `toml:"clear_stale"`
}

type OutputConfig struct {
	Report string `toml:"report"`
	Model  string `toml:"model"`
}

func loadConfig(path string) (*SolConfig, error) {
	var config SolConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, errors.Wrapf(err, "failed to load config file %s", path)
	}
	if err := config.applyDefaults(); err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}
	return &config, nil
}

func (c *SolConfig) applyDefaults() error {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log level")
	}
	if len(c.Traffic.Classes) == 0 {
		log.Warningf("Traffic classes not specified, using allTraffic")
		c.Traffic.Classes = map[string]float64{"allTraffic": 1}
	}
	if len(c.Traffic.ClassBytes) == 0 {
		log.Warningf("Traffic class bytes not specified, using 2000 per flow")
		c.Traffic.ClassBytes = map[string]float64{}
		for name := range c.Traffic.Classes {
			c.Traffic.ClassBytes[name] = 2000
		}
	}
	if c.Traffic.CPUCost <= 0 {
		log.Warningf("Traffic cpu_cost not specified, using 10")
		c.Traffic.CPUCost = 10
	}
	if c.Paths.Chooser == "" {
		c.Paths.Chooser = path_selection.DefaultChooser
	}
	if c.Paths.NumPaths <= 0 {
		log.Warningf("Paths num_paths not specified, using 5")
		c.Paths.NumPaths = 5
	}
	switch c.Capacity.LinkMode {
	case "":
		c.Capacity.LinkMode = linkModeLoad
	case linkModeLoad, linkModeConsume:
	default:
		return errors.Newf("[config] - unknown capacity link_mode %q", c.Capacity.LinkMode)
	}
	if c.Capacity.LinkFactor <= 0 {
		log.Warningf("Capacity link_factor not specified, using 3")
		c.Capacity.LinkFactor = 3
	}
	if c.Capacity.CPUFactor <= 0 {
		log.Warningf("Capacity cpu_factor not specified, using 2")
		c.Capacity.CPUFactor = 2
	}
	if c.Capacity.TCAM <= 0 {
		log.Warningf("Capacity tcam not specified, using 1000")
		c.Capacity.TCAM = 1000
	}
	if c.Capacity.TCAMCost <= 0 {
		c.Capacity.TCAMCost = 2
	}
	if c.Solver.Backend == "" {
		log.Warningf("Solver backend not specified, using gurobi")
		c.Solver.Backend = "gurobi"
	}
	if _, err := parseDuration(c.Solver.Timeout); err != nil {
		return errors.Wrap(err, "solver timeout")
	}
	if _, err := parseDuration(c.Etcd.DialTimeout); err != nil {
		return errors.Wrap(err, "etcd dial_timeout")
	}
	if c.Etcd.Prefix == "" {
		c.Etcd.Prefix = etcd.DefaultRoutePrefix
	}
	return nil
}

// checkInputs reports missing model inputs; only build and solve need them
func (c *SolConfig) checkInputs() error {
	if c.Topology.File == "" {
		return errors.New("[config] - topology file not specified")
	}
	if c.Traffic.Matrix == "" {
		return errors.New("[config] - traffic matrix not specified")
	}
	return nil
}

// parseDuration treats an empty string as zero
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func (c *SolConfig) gurobiConfig() gurobi.Config {
	timeout, _ := parseDuration(c.Solver.Timeout)
	return gurobi.Config{
		Binary:    c.Solver.Binary,
		WorkDir:   c.Solver.WorkDir,
		Timeout:   timeout,
		Params:    c.Solver.Params,
		KeepFiles: c.Solver.KeepFiles,
	}
}

// etcdConfig returns false when publishing is disabled
func (c *SolConfig) etcdConfig() (etcd.EtcdConfig, bool) {
	if len(c.Etcd.Endpoints) == 0 {
		return etcd.EtcdConfig{}, false
	}
	config := etcd.DefaultEtcdConfig()
	config.Endpoints = c.Etcd.Endpoints
	config.Prefix = c.Etcd.Prefix
	if d, _ := parseDuration(c.Etcd.DialTimeout); d > 0 {
		config.DialTimeout = d
	}
	return config, true
}
