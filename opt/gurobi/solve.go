package gurobi

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"github.com/knodir/SOL/opt"
)

const (
	DefaultBinary  = "gurobi_cl"
	DefaultTimeout = 10 * time.Minute
)

// Config tells the adapter how to run Gurobi
type Config struct {
	// Binary is the command line solver, looked up in PATH
	Binary string
	// WorkDir holds model and result files, the system temp dir when empty
	WorkDir string
	Timeout time.Duration
	// Params are passed as Name=Value, e.g. MIPGap=0.01
	Params map[string]string
	// KeepFiles leaves the model and result files behind for inspection
	KeepFiles bool
}

func (c Config) withDefaults() Config {
	if c.Binary == "" {
		c.Binary = DefaultBinary
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Solver runs gurobi_cl on an LP file and reads back the .sol file
type Solver struct {
	config Config
}

var _ opt.Solver = (*Solver)(nil)

func New(config Config) *Solver {
	return &Solver{config: config.withDefaults()}
}

func (s *Solver) Name() string { return "gurobi" }

func (s *Solver) Write(w io.Writer, m *opt.Model) error {
	return WriteLP(w, m)
}

func (s *Solver) args(lpFile, solFile string) []string {
	args := []string{"ResultFile=" + solFile}
	names := make([]string, 0, len(s.config.Params))
	for name := range s.config.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, name+"="+s.config.Params[name])
	}
	return append(args, lpFile)
}

// Solve writes the model, runs the solver and parses its result. The run
// is bounded by both ctx and the configured timeout.
func (s *Solver) Solve(ctx context.Context, m *opt.Model) (*opt.Solution, error) {
	dir, err := os.MkdirTemp(s.config.WorkDir, "sol-gurobi-")
	if err != nil {
		return nil, errors.Wrap(err, "create work dir")
	}
	if s.config.KeepFiles {
		log.Infof("gurobi: model files kept in %s", dir)
	} else {
		defer os.RemoveAll(dir)
	}

	lpFile := filepath.Join(dir, "model.lp")
	solFile := filepath.Join(dir, "model.sol")
	f, err := os.Create(lpFile)
	if err != nil {
		return nil, errors.Wrap(err, "create lp file")
	}
	if err := WriteLP(f, m); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, "close lp file")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, s.config.Binary, s.args(lpFile, solFile)...)
	output, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return nil, errors.Wrapf(ctx.Err(), "%s interrupted after %v", s.config.Binary, time.Since(start))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "%s failed: %s", s.config.Binary, lastLines(string(output), 5))
	}
	log.Debugf("gurobi: finished in %v", time.Since(start))

	status := statusFromLog(string(output))
	sf, err := os.Open(solFile)
	if os.IsNotExist(err) {
		if status == opt.StatusOptimal || status == opt.StatusFeasible {
			status = opt.StatusUnknown
		}
		log.Warnf("gurobi: no result file, status %s", status)
		return &opt.Solution{Status: status, Values: map[string]float64{}}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open result file")
	}
	defer sf.Close()

	sol, err := ParseSolution(sf)
	if err != nil {
		return nil, err
	}
	sol.Status = status
	if status == opt.StatusUnknown {
		sol.Status = opt.StatusFeasible
	}
	return sol, nil
}

// statusFromLog reads the final status out of the gurobi_cl log
func statusFromLog(out string) opt.Status {
	lower := strings.ToLower(out)
	switch {
	case strings.Contains(lower, "optimal solution found"):
		return opt.StatusOptimal
	case strings.Contains(lower, "infeasible"):
		return opt.StatusInfeasible
	case strings.Contains(lower, "limit reached"):
		return opt.StatusFeasible
	}
	return opt.StatusUnknown
}

// ParseSolution reads a Gurobi .sol file: comment lines starting with '#',
// one of them carrying the objective value, and "name value" lines
func ParseSolution(r io.Reader) (*opt.Solution, error) {
	sol := &opt.Solution{Status: opt.StatusUnknown, Values: make(map[string]float64)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if _, value, found := strings.Cut(line, "Objective value ="); found {
				obj, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
				if err != nil {
					return nil, errors.Wrapf(err, "line %d: objective", lineNo)
				}
				sol.Objective = obj
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.Newf("[gurobi] - line %d: expected name and value, got %q", lineNo, line)
		}
		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d: value of %s", lineNo, fields[0])
		}
		sol.Values[fields[0]] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read solution")
	}
	return sol, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
