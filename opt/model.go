package opt

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrDuplicateVar        = errors.New("[opt] - variable defined twice")
	ErrUnknownVar          = errors.New("[opt] - variable not defined")
	ErrDuplicateConstraint = errors.New("[opt] - constraint name used twice")
	ErrBadBounds           = errors.New("[opt] - lower bound exceeds upper bound")
)

// VarType is the domain of a decision variable
type VarType int

const (
	Continuous VarType = iota
	Binary
)

func (t VarType) String() string {
	if t == Binary {
		return "binary"
	}
	return "continuous"
}

// Var is a decision variable. Upper may be +Inf.
type Var struct {
	Name  string
	Type  VarType
	Lower float64
	Upper float64
}

// Term is one coefficient * variable product
type Term struct {
	Var   string
	Coeff float64
}

// LinExpr is a linear expression. Terms on the same variable are merged
// and keep the position of their first appearance.
type LinExpr struct {
	terms    []Term
	index    map[string]int
	Constant float64
}

func NewLinExpr() *LinExpr {
	return &LinExpr{index: make(map[string]int)}
}

// Add adds coeff * v and returns the expression for chaining
func (e *LinExpr) Add(v string, coeff float64) *LinExpr {
	if e.index == nil {
		e.index = make(map[string]int)
	}
	if i, ok := e.index[v]; ok {
		e.terms[i].Coeff += coeff
		return e
	}
	e.index[v] = len(e.terms)
	e.terms = append(e.terms, Term{Var: v, Coeff: coeff})
	return e
}

// AddExpr adds scale * other
func (e *LinExpr) AddExpr(other *LinExpr, scale float64) *LinExpr {
	for _, t := range other.terms {
		e.Add(t.Var, t.Coeff*scale)
	}
	e.Constant += other.Constant * scale
	return e
}

func (e *LinExpr) Terms() []Term {
	return append([]Term(nil), e.terms...)
}

// Coeff returns the coefficient of v, 0 when absent
func (e *LinExpr) Coeff(v string) float64 {
	if i, ok := e.index[v]; ok {
		return e.terms[i].Coeff
	}
	return 0
}

func (e *LinExpr) Has(v string) bool {
	_, ok := e.index[v]
	return ok
}

// Vars lists the variables in term order
func (e *LinExpr) Vars() []string {
	vars := make([]string, len(e.terms))
	for i, t := range e.terms {
		vars[i] = t.Var
	}
	return vars
}

func (e *LinExpr) Len() int { return len(e.terms) }

// Sense is the relation of a constraint
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case GreaterEqual:
		return ">="
	case Equal:
		return "="
	default:
		return "<="
	}
}

// Constraint is Expr <sense> RHS
type Constraint struct {
	Name  string
	Expr  *LinExpr
	Sense Sense
	RHS   float64
}

func (c *Constraint) String() string {
	return fmt.Sprintf("%s: %d terms %s %g", c.Name, c.Expr.Len(), c.Sense, c.RHS)
}

// ObjectiveSense says whether the objective is minimized or maximized
type ObjectiveSense int

const (
	Minimize ObjectiveSense = iota
	Maximize
)

func (s ObjectiveSense) String() string {
	if s == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Model is a solver-agnostic linear (mixed integer) program. It has a
// single writer; build separate models for concurrent problems.
type Model struct {
	vars        []*Var
	varIndex    map[string]*Var
	constraints []*Constraint
	consIndex   map[string]*Constraint
	objective   *LinExpr
	sense       ObjectiveSense
}

func NewModel() *Model {
	return &Model{
		varIndex:  make(map[string]*Var),
		consIndex: make(map[string]*Constraint),
		objective: NewLinExpr(),
	}
}

// AddVar defines a variable. Binary variables get bounds [0, 1].
func (m *Model) AddVar(name string, typ VarType, lower, upper float64) (*Var, error) {
	if _, ok := m.varIndex[name]; ok {
		return nil, errors.Wrapf(ErrDuplicateVar, "%s", name)
	}
	if typ == Binary {
		lower, upper = 0, 1
	}
	if lower > upper || math.IsNaN(lower) || math.IsNaN(upper) {
		return nil, errors.Wrapf(ErrBadBounds, "%s [%g, %g]", name, lower, upper)
	}
	v := &Var{Name: name, Type: typ, Lower: lower, Upper: upper}
	m.vars = append(m.vars, v)
	m.varIndex[name] = v
	return v, nil
}

// EnsureVar returns the named variable, defining it first if needed
func (m *Model) EnsureVar(name string, typ VarType, lower, upper float64) (*Var, error) {
	if v, ok := m.varIndex[name]; ok {
		return v, nil
	}
	return m.AddVar(name, typ, lower, upper)
}

func (m *Model) Var(name string) (*Var, bool) {
	v, ok := m.varIndex[name]
	return v, ok
}

// Vars returns the variables in definition order
func (m *Model) Vars() []*Var {
	return append([]*Var(nil), m.vars...)
}

func (m *Model) NumVars() int { return len(m.vars) }

func (m *Model) checkExpr(e *LinExpr) error {
	for _, t := range e.terms {
		if _, ok := m.varIndex[t.Var]; !ok {
			return errors.Wrapf(ErrUnknownVar, "%s", t.Var)
		}
	}
	return nil
}

// AddConstraint registers expr <sense> rhs. The expression constant is
// moved to the right-hand side.
func (m *Model) AddConstraint(name string, expr *LinExpr, sense Sense, rhs float64) (*Constraint, error) {
	if _, ok := m.consIndex[name]; ok {
		return nil, errors.Wrapf(ErrDuplicateConstraint, "%s", name)
	}
	if err := m.checkExpr(expr); err != nil {
		return nil, errors.Wrapf(err, "constraint %s", name)
	}

	lhs := NewLinExpr().AddExpr(expr, 1)
	lhs.Constant = 0
	c := &Constraint{Name: name, Expr: lhs, Sense: sense, RHS: rhs - expr.Constant}
	m.constraints = append(m.constraints, c)
	m.consIndex[name] = c
	return c, nil
}

func (m *Model) Constraint(name string) (*Constraint, bool) {
	c, ok := m.consIndex[name]
	return c, ok
}

// Constraints returns the constraints in registration order
func (m *Model) Constraints() []*Constraint {
	return append([]*Constraint(nil), m.constraints...)
}

func (m *Model) NumConstraints() int { return len(m.constraints) }

// ConstraintsWithPrefix returns constraint names starting with prefix, sorted
func (m *Model) ConstraintsWithPrefix(prefix string) []string {
	var names []string
	for name := range m.consIndex {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Objective returns a copy of the objective expression
func (m *Model) Objective() *LinExpr {
	return NewLinExpr().AddExpr(m.objective, 1)
}

func (m *Model) Sense() ObjectiveSense { return m.sense }

func (m *Model) SetSense(s ObjectiveSense) { m.sense = s }

// SetObjective replaces the objective
func (m *Model) SetObjective(expr *LinExpr, sense ObjectiveSense) error {
	if err := m.checkExpr(expr); err != nil {
		return errors.Wrap(err, "objective")
	}
	m.objective = NewLinExpr().AddExpr(expr, 1)
	m.sense = sense
	return nil
}

// AddObjectiveTerm adds coeff * v to the objective
func (m *Model) AddObjectiveTerm(v string, coeff float64) error {
	if _, ok := m.varIndex[v]; !ok {
		return errors.Wrapf(ErrUnknownVar, "objective term %s", v)
	}
	m.objective.Add(v, coeff)
	return nil
}
