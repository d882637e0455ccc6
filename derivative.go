package symgo

import (
	"math/big"
	"strings"
)

// ============================================================
// Derivative — unevaluated d/dx nodes and the Diff builder
// ============================================================

// Derivative is an unevaluated derivative of expr with respect to an ordered
// list of variables. A variable appearing k times means the k-th derivative
// in that variable. Nodes are built only through Diff/NewDerivative, which
// normalize the request; as a result a Derivative never directly wraps
// another Derivative.
type Derivative struct {
	expr Expr
	vars []*Sym
}

func (d *Derivative) Expr() Expr   { return d.expr }
func (d *Derivative) Vars() []*Sym { return append([]*Sym(nil), d.vars...) }
func (d *Derivative) kind() string { return "derivative" }

// newRawDerivative wraps expr without running the builder. Callers must
// guarantee the node is already in normal form.
func newRawDerivative(e Expr, vars []*Sym) Expr {
	return &Derivative{expr: e, vars: vars}
}

// Diff differentiates expr. The spec is a sequence of variables, each given
// as a *Sym or a string name and optionally followed by an int repeat count:
//
//	Diff(e, x)          first derivative in x
//	Diff(e, "x", 2)     second derivative in x
//	Diff(e, x, 2, y)    d^3 e / dx^2 dy
//
// An empty spec is allowed only when expr has exactly one free symbol.
func Diff(expr Expr, spec ...any) Expr {
	return NewDerivative(expr, true, spec...)
}

// NewDerivative is Diff with an explicit evaluate flag. With evaluate=false
// the normalized node is returned unevaluated.
func NewDerivative(expr Expr, evaluate bool, spec ...any) Expr {
	expr = expr.Simplify()
	counts := parseDiffSpec(expr, spec)

	total := 0
	for _, vc := range counts {
		total += vc.count
	}
	if total == 0 {
		return expr
	}

	// Differentiating in a variable the expression does not contain gives
	// zero immediately, before any work on the other variables.
	for _, vc := range counts {
		if vc.count > 0 && !containsVar(expr, vc.sym.Key()) {
			logger().Debugw("derivative short-circuit", "var", vc.sym.Key())
			return N(0)
		}
	}

	if inner, ok := expr.(*Derivative); ok {
		// Flatten: fold the new variables into the inner node's list.
		merged := append(append([]*Sym(nil), inner.vars...), expandCounts(counts)...)
		if !evaluate {
			return &Derivative{expr: inner.expr, vars: merged}
		}
		return evalDerivative(inner.expr, merged)
	}

	flat := expandCounts(counts)
	if !evaluate {
		return &Derivative{expr: expr, vars: flat}
	}
	return evalDerivative(expr, flat)
}

type varCount struct {
	sym   *Sym
	count int
}

// parseDiffSpec normalizes the variadic differentiation request into
// (symbol, count) pairs. Malformed requests are programmer errors.
func parseDiffSpec(expr Expr, spec []any) []varCount {
	var counts []varCount
	i := 0
	for i < len(spec) {
		var s *Sym
		switch v := spec[i].(type) {
		case *Sym:
			s = v
		case string:
			s = mustSymForKey(expr, v)
		case Expr:
			argPanic("Diff", "can only differentiate with respect to a symbol, got %s", v.String())
		default:
			argPanic("Diff", "invalid differentiation spec entry %v", v)
		}
		i++
		count := 1
		if i < len(spec) {
			if c, ok := spec[i].(int); ok {
				if c < 0 {
					argPanic("Diff", "negative derivative count %d", c)
				}
				count = c
				i++
			}
		}
		counts = append(counts, varCount{sym: s, count: count})
	}

	if len(counts) == 0 {
		free := FreeSymbols(expr)
		if len(free) != 1 {
			argPanic("Diff", "the variable of differentiation must be supplied: expression has %d free symbols", len(free))
		}
		for _, s := range free {
			counts = append(counts, varCount{sym: s, count: 1})
		}
	}
	return counts
}

func expandCounts(counts []varCount) []*Sym {
	var out []*Sym
	for _, vc := range counts {
		for k := 0; k < vc.count; k++ {
			out = append(out, vc.sym)
		}
	}
	return out
}

// evalDerivative consumes the variable list left to right, applying each
// node's incremental rule. Consumption is lazy: the moment a step yields
// zero, the remaining variables are discarded. If a step has no rule the
// remaining variables stay symbolic on an unevaluated node.
func evalDerivative(expr Expr, vars []*Sym) Expr {
	cur := expr
	for i, v := range vars {
		d, ok := cur.(differentiable)
		if !ok {
			return (&Derivative{expr: cur, vars: vars[i:]}).Simplify()
		}
		r := d.deriv(v.Key())
		if r == nil {
			return (&Derivative{expr: cur, vars: vars[i:]}).Simplify()
		}
		cur = r.Simplify()
		if n, ok := cur.(*Num); ok && n.IsZero() {
			return N(0)
		}
	}
	return cur
}

func (d *Derivative) Simplify() Expr {
	e := d.expr.Simplify()
	if n, ok := e.(*Num); ok && n.IsZero() {
		return N(0)
	}
	if inner, ok := e.(*Derivative); ok {
		return &Derivative{expr: inner.expr, vars: append(append([]*Sym(nil), inner.vars...), d.vars...)}
	}
	if !e.Equal(d.expr) {
		return &Derivative{expr: e, vars: d.vars}
	}
	return d
}

func (d *Derivative) String() string {
	groups := groupVars(d.vars)
	parts := make([]string, len(groups))
	for i, g := range groups {
		if g.count == 1 {
			parts[i] = g.sym.String()
		} else {
			parts[i] = g.sym.String() + ", " + itoa(g.count)
		}
	}
	return "Derivative(" + d.expr.String() + ", " + strings.Join(parts, ", ") + ")"
}

func itoa(n int) string {
	return new(big.Int).SetInt64(int64(n)).String()
}

// groupVars collapses adjacent repeats of the same variable for printing and
// serialization.
func groupVars(vars []*Sym) []varCount {
	var groups []varCount
	for _, v := range vars {
		if len(groups) > 0 && groups[len(groups)-1].sym.Key() == v.Key() {
			groups[len(groups)-1].count++
			continue
		}
		groups = append(groups, varCount{sym: v, count: 1})
	}
	return groups
}

// Sub substitutes into the wrapped expression and re-runs the builder, so a
// substitution that unblocks differentiation is carried out. Substituting
// one of the differentiation variables themselves is refused.
func (d *Derivative) Sub(varKey string, value Expr) Expr {
	for _, v := range d.vars {
		if v.Key() == varKey {
			if _, ok := value.(*Sym); !ok {
				argPanic("Sub", "cannot substitute %s into a derivative taken with respect to it", varKey)
			}
		}
	}
	newVars := make([]*Sym, len(d.vars))
	for i, v := range d.vars {
		if v.Key() == varKey {
			newVars[i] = value.(*Sym)
		} else {
			newVars[i] = v
		}
	}
	spec := make([]any, 0, len(newVars))
	for _, v := range newVars {
		spec = append(spec, v)
	}
	return NewDerivative(d.expr.Sub(varKey, value), true, spec...)
}

func (d *Derivative) Eval() (*Num, bool) { return nil, false }

func (d *Derivative) Equal(other Expr) bool {
	o, ok := other.(*Derivative)
	if !ok || len(d.vars) != len(o.vars) || !d.expr.Equal(o.expr) {
		return false
	}
	for i := range d.vars {
		if d.vars[i].Key() != o.vars[i].Key() {
			return false
		}
	}
	return true
}

func (d *Derivative) toJSON() map[string]any {
	vars := make([]map[string]any, len(d.vars))
	for i, v := range d.vars {
		vars[i] = v.toJSON()
	}
	return map[string]any{"type": "derivative", "expr": d.expr.toJSON(), "vars": vars}
}

// deriv differentiates the unevaluated node once more. If the variable is
// already in the list the node just grows; otherwise the expression is
// differentiated in the new variable first and the result re-wrapped, which
// keeps mixed partials in a single flat node.
func (d *Derivative) deriv(varKey string) Expr {
	for _, v := range d.vars {
		if v.Key() == varKey {
			return &Derivative{expr: d.expr, vars: append(append([]*Sym(nil), d.vars...), v)}
		}
	}
	inner := derivOf(d.expr, varKey).Simplify()
	if n, ok := inner.(*Num); ok && n.IsZero() {
		return N(0)
	}
	// Rewrap without re-running the builder; re-evaluating here would
	// bounce between variable orders forever on opaque functions.
	if innerD, ok := inner.(*Derivative); ok {
		vars := append(append([]*Sym(nil), innerD.vars...), d.vars...)
		return &Derivative{expr: innerD.expr, vars: vars}
	}
	return &Derivative{expr: inner, vars: append([]*Sym(nil), d.vars...)}
}

// Doit retries evaluation of the pending derivatives, useful after the
// wrapped expression has been rewritten by substitution or expansion.
func (d *Derivative) Doit() Expr {
	return evalDerivative(d.expr.Simplify(), d.vars)
}

// nseries expands the wrapped expression to the requested order and
// differentiates it term by term, reattaching the remainder in the
// de-facto "differentiated order term" form O(x^n)/x.
func (d *Derivative) nseries(varKey string, n int, logx Expr) (Expr, error) {
	inner, err := NSeries(d.expr, varKey, n)
	if err != nil {
		return nil, err
	}
	order, rest := splitOrder(inner, varKey)
	spec := make([]any, 0, len(d.vars))
	for _, v := range d.vars {
		spec = append(spec, v)
	}
	terms := []Expr{}
	for _, t := range addTerms(rest) {
		dt := NewDerivative(t, true, spec...)
		if num, ok := dt.(*Num); ok && num.IsZero() {
			continue
		}
		terms = append(terms, dt)
	}
	if order != nil {
		terms = append(terms, OrderOf(MulOf(order.expr, PowOf(S(varKey), N(-1))), varKey))
	}
	return AddOf(terms...), nil
}

func addTerms(e Expr) []Expr {
	if a, ok := e.(*Add); ok {
		return a.terms
	}
	return []Expr{e}
}
