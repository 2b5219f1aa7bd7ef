package gurobi

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knodir/SOL/opt"
	"github.com/knodir/SOL/topology"
)

func smallModel(t *testing.T) *opt.Model {
	m := opt.NewModel()
	_, err := m.AddVar("x", opt.Continuous, 0, 1)
	require.NoError(t, err)
	_, err = m.AddVar("y", opt.Binary, 0, 0)
	require.NoError(t, err)
	_, err = m.AddVar("z", opt.Continuous, math.Inf(-1), math.Inf(1))
	require.NoError(t, err)
	_, err = m.AddVar("w", opt.Continuous, 0, math.Inf(1))
	require.NoError(t, err)

	_, err = m.AddConstraint("c1", opt.NewLinExpr().Add("x", 1).Add("y", -1), opt.LessEqual, 3)
	require.NoError(t, err)
	_, err = m.AddConstraint("c2", opt.NewLinExpr().Add("z", 1), opt.GreaterEqual, -1.5)
	require.NoError(t, err)
	_, err = m.AddConstraint("c3", opt.NewLinExpr().Add("w", -2).Add("x", 0.5), opt.Equal, 0)
	require.NoError(t, err)
	require.NoError(t, m.SetObjective(opt.NewLinExpr().Add("x", 1).Add("y", 2), opt.Maximize))
	return m
}

func TestWriteLP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, smallModel(t)))

	want := `\ generated by sol
Maximize
 obj: 1 x + 2 y
Subject To
 c1: 1 x - 1 y <= 3
 c2: 1 z >= -1.5
 c3: - 2 w + 0.5 x = 0
Bounds
 0 <= x <= 1
 z free
Binaries
 y
End
`
	assert.Equal(t, want, buf.String())
}

func TestWriteLPEmptyObjective(t *testing.T) {
	m := opt.NewModel()
	_, err := m.AddVar("a", opt.Continuous, 2, 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, m))
	out := buf.String()
	assert.Contains(t, out, "Minimize\n obj: 0 a\n")
	assert.Contains(t, out, " a = 2\n")
	assert.NotContains(t, out, "Binaries")

	assert.Error(t, WriteLP(&buf, opt.NewModel()))
}

func TestWriteLPWrapsLongRows(t *testing.T) {
	m := opt.NewModel()
	expr := opt.NewLinExpr()
	for i := 0; i < 100; i++ {
		name := "x_0_" + strings.Repeat("9", 3) + string(rune('a'+i%26)) + string(rune('a'+i/26))
		_, err := m.AddVar(name, opt.Continuous, 0, 1)
		require.NoError(t, err)
		expr.Add(name, 1)
	}
	_, err := m.AddConstraint("long", expr, opt.LessEqual, 1)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, m))
	for _, line := range strings.Split(buf.String(), "\n") {
		assert.LessOrEqual(t, len(line), maxLineLength+40)
	}
}

func TestParseSolution(t *testing.T) {
	in := `# Solution for model sol
# Objective value = 1.2500000000000000e+01
x_0_0 0.75
x_0_1 2.5e-01

binpath_0_0 1
`
	sol, err := ParseSolution(strings.NewReader(in))
	require.NoError(t, err)
	assert.InDelta(t, 12.5, sol.Objective, 1e-9)
	assert.Equal(t, map[string]float64{"x_0_0": 0.75, "x_0_1": 0.25, "binpath_0_0": 1}, sol.Values)

	_, err = ParseSolution(strings.NewReader("x_0_0\n"))
	assert.Error(t, err)
	_, err = ParseSolution(strings.NewReader("x_0_0 abc\n"))
	assert.Error(t, err)
}

func TestStatusFromLog(t *testing.T) {
	tests := []struct {
		log  string
		want opt.Status
	}{
		{"Optimal solution found (tolerance 1.00e-04)", opt.StatusOptimal},
		{"Model is infeasible", opt.StatusInfeasible},
		{"Infeasible or unbounded model", opt.StatusInfeasible},
		{"Time limit reached", opt.StatusFeasible},
		{"something else", opt.StatusUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFromLog(tt.log), tt.log)
	}
}

func TestArgs(t *testing.T) {
	s := New(Config{Params: map[string]string{"Threads": "4", "MIPGap": "0.01"}})
	assert.Equal(t, []string{"ResultFile=m.sol", "MIPGap=0.01", "Threads=4", "m.lp"}, s.args("m.lp", "m.sol"))
	assert.Equal(t, DefaultBinary, s.config.Binary)
	assert.Equal(t, DefaultTimeout, s.config.Timeout)
}

func TestBackendSelection(t *testing.T) {
	topo := topology.NewTopology("t")

	o, err := opt.GetOptimization("gurobi", topo)
	require.NoError(t, err)
	assert.Equal(t, "gurobi", o.Backend())

	o, err = opt.GetOptimization("Gurobi", topo)
	require.NoError(t, err)
	assert.Equal(t, "gurobi", o.Backend())

	_, err = opt.GetOptimization("cplex", topo)
	require.Error(t, err)
	assert.True(t, errors.Is(err, opt.ErrBackendRemoved))
	assert.False(t, errors.Is(err, opt.ErrUnsupportedBackend))

	_, err = opt.GetOptimization("nonsense", topo)
	require.Error(t, err)
	assert.True(t, errors.Is(err, opt.ErrUnsupportedBackend))
	assert.False(t, errors.Is(err, opt.ErrBackendRemoved))

	assert.Contains(t, opt.Backends(), "gurobi")
}

func TestSetDefaultConfig(t *testing.T) {
	defer SetDefaultConfig(Config{})
	SetDefaultConfig(Config{Binary: "/opt/gurobi/bin/gurobi_cl", Timeout: time.Minute})
	got := DefaultConfig()
	assert.Equal(t, "/opt/gurobi/bin/gurobi_cl", got.Binary)
	assert.Equal(t, time.Minute, got.Timeout)

	SetDefaultConfig(Config{})
	assert.Equal(t, DefaultBinary, DefaultConfig().Binary)
}

// fakeBinary writes a shell script standing in for gurobi_cl
func fakeBinary(t *testing.T, body string) string {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "gurobi_cl")
	script := "#!/bin/sh\nfor arg in \"$@\"; do\n  case \"$arg\" in\n    ResultFile=*) out=\"${arg#ResultFile=}\" ;;\n  esac\ndone\n" + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestSolveWithFakeBinary(t *testing.T) {
	bin := fakeBinary(t, "printf '# Objective value = 3\\nx 1\\ny 1\\n' > \"$out\"\necho 'Optimal solution found (tolerance 1.00e-04)'\n")
	s := New(Config{Binary: bin, WorkDir: t.TempDir()})

	sol, err := s.Solve(context.Background(), smallModel(t))
	require.NoError(t, err)
	assert.Equal(t, opt.StatusOptimal, sol.Status)
	assert.Equal(t, 3.0, sol.Objective)
	assert.Equal(t, 1.0, sol.Value("x"))
	assert.True(t, sol.HasValues())
}

func TestSolveInfeasible(t *testing.T) {
	bin := fakeBinary(t, "echo 'Model is infeasible'\n")
	s := New(Config{Binary: bin, WorkDir: t.TempDir()})

	sol, err := s.Solve(context.Background(), smallModel(t))
	require.NoError(t, err)
	assert.Equal(t, opt.StatusInfeasible, sol.Status)
	assert.False(t, sol.HasValues())
}

func TestSolveFailure(t *testing.T) {
	bin := fakeBinary(t, "echo 'ERROR 10009: No Gurobi license found'\nexit 1\n")
	s := New(Config{Binary: bin, WorkDir: t.TempDir()})

	_, err := s.Solve(context.Background(), smallModel(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No Gurobi license found")
}
