package gurobi

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/knodir/SOL/opt"
)

// lines longer than this are continued on the next line
const maxLineLength = 200

func formatNumber(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// lpWriter keeps track of the current line length for wrapping
type lpWriter struct {
	w       *bufio.Writer
	lineLen int
}

func (lw *lpWriter) write(s string) {
	lw.w.WriteString(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		lw.lineLen = len(s) - i - 1
	} else {
		lw.lineLen += len(s)
	}
}

// writeExpr writes the terms of e; fallback is used when e has none, since
// LP rows need at least one variable
func (lw *lpWriter) writeExpr(e *opt.LinExpr, fallback string) {
	terms := e.Terms()
	if len(terms) == 0 {
		lw.write(" 0 " + fallback)
		return
	}
	for i, t := range terms {
		if lw.lineLen > maxLineLength {
			lw.write("\n  ")
		}
		coeff := t.Coeff
		sign := "+"
		if coeff < 0 {
			sign = "-"
			coeff = -coeff
		}
		if i == 0 && sign == "+" {
			lw.write(" " + formatNumber(coeff) + " " + t.Var)
			continue
		}
		lw.write(" " + sign + " " + formatNumber(coeff) + " " + t.Var)
	}
}

func senseToken(s opt.Sense) string {
	switch s {
	case opt.GreaterEqual:
		return ">="
	case opt.Equal:
		return "="
	default:
		return "<="
	}
}

// WriteLP renders m in the LP file format read by gurobi_cl
func WriteLP(w io.Writer, m *opt.Model) error {
	vars := m.Vars()
	if len(vars) == 0 {
		return errors.New("[gurobi] - model has no variables")
	}
	fallback := vars[0].Name

	lw := &lpWriter{w: bufio.NewWriter(w)}
	lw.write("\\ generated by sol\n")
	if m.Sense() == opt.Maximize {
		lw.write("Maximize\n")
	} else {
		lw.write("Minimize\n")
	}
	lw.write(" obj:")
	lw.writeExpr(m.Objective(), fallback)
	lw.write("\nSubject To\n")

	for _, c := range m.Constraints() {
		lw.write(" " + c.Name + ":")
		lw.writeExpr(c.Expr, fallback)
		lw.write(" " + senseToken(c.Sense) + " " + formatNumber(c.RHS) + "\n")
	}

	lw.write("Bounds\n")
	var binaries []string
	for _, v := range vars {
		if v.Type == opt.Binary {
			binaries = append(binaries, v.Name)
			continue
		}
		switch {
		case math.IsInf(v.Lower, -1) && math.IsInf(v.Upper, 1):
			lw.write(" " + v.Name + " free\n")
		case v.Lower == v.Upper:
			lw.write(" " + v.Name + " = " + formatNumber(v.Lower) + "\n")
		case v.Lower == 0 && math.IsInf(v.Upper, 1):
			// LP default
		default:
			lw.write(" " + formatNumber(v.Lower) + " <= " + v.Name + " <= " + formatNumber(v.Upper) + "\n")
		}
	}

	if len(binaries) > 0 {
		lw.write("Binaries\n")
		for _, name := range binaries {
			lw.write(" " + name + "\n")
		}
	}
	lw.write("End\n")
	return errors.Wrap(lw.w.Flush(), "write lp")
}
