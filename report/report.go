package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/knodir/SOL/opt"
	"github.com/knodir/SOL/paths"
	"github.com/knodir/SOL/traffic"
)

// PathReport is a used path with the share of its class it carries
type PathReport struct {
	paths.Record `yaml:",inline"`
	Fraction     float64 `json:"fraction" yaml:"fraction"`
}

type ClassReport struct {
	ID         int          `json:"tcID" yaml:"tcID"`
	Name       string       `json:"name" yaml:"name"`
	Src        int          `json:"src" yaml:"src"`
	Dst        int          `json:"dst" yaml:"dst"`
	VolFlows   float64      `json:"volFlows" yaml:"volFlows"`
	Allocation float64      `json:"allocation" yaml:"allocation"`
	Paths      []PathReport `json:"paths" yaml:"paths"`
}

// Report summarizes one solved optimization
type Report struct {
	Topology       string                        `json:"topology" yaml:"topology"`
	Backend        string                        `json:"backend" yaml:"backend"`
	Status         opt.Status                    `json:"status" yaml:"status"`
	Objective      float64                       `json:"objective" yaml:"objective"`
	NumVars        int                           `json:"numVars" yaml:"numVars"`
	NumConstraints int                           `json:"numConstraints" yaml:"numConstraints"`
	SolveTime      string                        `json:"solveTime" yaml:"solveTime"`
	Classes        []ClassReport                 `json:"classes" yaml:"classes"`
	Loads          map[string]map[string]float64 `json:"loads,omitempty" yaml:"loads,omitempty"`
	Sys            *SysInfo                      `json:"sys,omitempty" yaml:"sys,omitempty"`
	CreatedAt      time.Time                     `json:"createdAt" yaml:"createdAt"`
}

// New builds the report of sol for the classes in pptc. Element loads are
// reported for every resource capped with CapLinks or CapNodes.
func New(o *opt.Optimization, pptc *traffic.PPTC, sol *opt.Solution, solveTime time.Duration) *Report {
	r := &Report{
		Topology:       o.Topology().Name,
		Backend:        o.Backend(),
		Status:         sol.Status,
		Objective:      sol.Objective,
		NumVars:        o.Model().NumVars(),
		NumConstraints: o.Model().NumConstraints(),
		SolveTime:      solveTime.String(),
		CreatedAt:      time.Now().UTC(),
	}

	fractions := sol.PathFractions(pptc)
	for _, tc := range pptc.Classes() {
		cr := ClassReport{
			ID:         tc.ID,
			Name:       tc.Name,
			Src:        tc.Src,
			Dst:        tc.Dst,
			VolFlows:   tc.VolFlows,
			Allocation: sol.Value(opt.AllocVar(tc)),
			Paths:      []PathReport{},
		}
		for _, pf := range fractions[tc.ID] {
			cr.Paths = append(cr.Paths, PathReport{
				Record:   paths.NewRecord(pf.Path, pf.Fraction*tc.VolFlows),
				Fraction: pf.Fraction,
			})
		}
		r.Classes = append(r.Classes, cr)
	}

	for _, res := range o.LoadResources() {
		loads := make(map[string]float64)
		for e, v := range o.LoadVars(res) {
			loads[e.Key()] = sol.Value(v)
		}
		if r.Loads == nil {
			r.Loads = make(map[string]map[string]float64)
		}
		r.Loads[res] = loads
	}
	return r
}

// WithSysInfo attaches a description of the current machine
func (r *Report) WithSysInfo() *Report {
	info := CollectSysInfo()
	r.Sys = &info
	return r
}

// MaxLoad returns the highest element load reported for res
func (r *Report) MaxLoad(res string) (string, float64) {
	var key string
	best := 0.0
	for k, v := range r.Loads[res] {
		if key == "" || v > best || (v == best && k < key) {
			key, best = k, v
		}
	}
	return key, best
}

// Marshal encodes the report as yaml for .yaml and .yml names, JSON
// otherwise
func (r *Report) Marshal(filename string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err := yaml.Marshal(r)
		return data, errors.Wrap(err, "marshal report")
	default:
		data, err := json.MarshalIndent(r, "", "  ")
		return data, errors.Wrap(err, "marshal report")
	}
}

func (r *Report) WriteToFile(filename string) error {
	data, err := r.Marshal(filename)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrapf(err, "write report %s", filename)
	}
	log.Infof("Report written to %s", filename)
	return nil
}

// ReadFromFile loads a report written by WriteToFile
func ReadFromFile(filename string) (*Report, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "read report %s", filename)
	}
	var r Report
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &r)
	default:
		err = json.Unmarshal(data, &r)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode report %s", filename)
	}
	return &r, nil
}
