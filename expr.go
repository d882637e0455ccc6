// Package symgo implements the symbolic-function core of a computer-algebra
// engine: canonicalized, memoized function application, a chain-rule
// differentiation engine with flat unevaluated derivative nodes, truncated
// local series expansion with pole detection and logarithmic fallback, a
// hint-driven expand dispatcher, and anonymous functions with currying.
//
// Expressions are immutable trees built from exact rationals (math/big.Rat),
// symbols, n-ary sums and products, powers, applied functions, derivative
// nodes, lambdas, and series remainder terms. All construction goes through
// canonicalizing constructors; nodes are never mutated after construction.
package symgo

import (
	"math"
	"math/big"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Expr is an immutable symbolic expression node.
type Expr interface {
	// Simplify returns the canonical form of the node.
	Simplify() Expr
	String() string
	// Sub substitutes value for the symbol whose key matches varKey.
	// Plain symbols are keyed by their name; dummy symbols carry a
	// unique key (see Dummy) so substitution never captures them by name.
	Sub(varKey string, value Expr) Expr
	// Eval folds the expression to an approximate numeric value when it
	// contains no free symbols. It is a fast float64-backed fold used by
	// limit classification and tests; EvalF is the precise evaluator.
	Eval() (*Num, bool)
	Equal(other Expr) bool
	kind() string
	toJSON() map[string]any
}

// differentiable is the incremental-differentiation capability: deriv returns
// the derivative with respect to one plain symbol, or nil when the node has
// no rule (the derivative builder then keeps an unevaluated node).
type differentiable interface {
	deriv(varKey string) Expr
}

// ============================================================
// Num — exact rational number
// ============================================================

// Num is an exact rational. approx marks values that entered the system as
// floating-point literals; function applications with approx arguments are
// forced through numeric evaluation (see Apply).
type Num struct {
	val    *big.Rat
	approx bool
}

func N(n int64) *Num { return &Num{val: new(big.Rat).SetInt64(n)} }
func F(p, q int64) *Num {
	if q == 0 {
		argPanic("F", "denominator is zero")
	}
	return &Num{val: new(big.Rat).SetFrac(big.NewInt(p), big.NewInt(q))}
}

// NFloat wraps a float64 literal. The result is marked approximate, which
// triggers automatic numeric evaluation in Apply.
func NFloat(f float64) *Num { return &Num{val: new(big.Rat).SetFloat64(f), approx: true} }

func (n *Num) Simplify() Expr        { return n }
func (n *Num) Sub(string, Expr) Expr { return n }
func (n *Num) deriv(string) Expr     { return N(0) }
func (n *Num) Eval() (*Num, bool)    { return n, true }
func (n *Num) Equal(other Expr) bool { o, ok := other.(*Num); return ok && n.val.Cmp(o.val) == 0 }
func (n *Num) kind() string          { return "num" }

func (n *Num) Float64() float64 { f, _ := n.val.Float64(); return f }
func (n *Num) IsZero() bool     { return n.val.Sign() == 0 }
func (n *Num) IsOne() bool      { return n.val.Cmp(ratOne) == 0 }
func (n *Num) IsNegOne() bool   { return n.val.Cmp(ratNegOne) == 0 }
func (n *Num) IsInteger() bool  { return n.val.IsInt() }
func (n *Num) IsPositive() bool { return n.val.Sign() > 0 }
func (n *Num) IsNegative() bool { return n.val.Sign() < 0 }
func (n *Num) IsApprox() bool   { return n.approx }
func (n *Num) Rat() *big.Rat    { return new(big.Rat).Set(n.val) }

var (
	ratOne    = new(big.Rat).SetInt64(1)
	ratNegOne = new(big.Rat).SetInt64(-1)
)

func (n *Num) String() string {
	if n.val.IsInt() {
		return n.val.Num().String()
	}
	return n.val.RatString()
}

func (n *Num) toJSON() map[string]any {
	m := map[string]any{"type": "num", "value": n.val.RatString()}
	if n.approx {
		m["approx"] = true
	}
	return m
}

func numAdd(a, b *Num) *Num {
	return &Num{val: new(big.Rat).Add(a.val, b.val), approx: a.approx || b.approx}
}
func numMul(a, b *Num) *Num {
	return &Num{val: new(big.Rat).Mul(a.val, b.val), approx: a.approx || b.approx}
}
func numNeg(a *Num) *Num { return &Num{val: new(big.Rat).Neg(a.val), approx: a.approx} }
func numRecip(a *Num) *Num {
	if a.IsZero() {
		argPanic("numRecip", "division by zero")
	}
	return &Num{val: new(big.Rat).Inv(a.val), approx: a.approx}
}
func numDiv(a, b *Num) *Num { return numMul(a, numRecip(b)) }
func numCmp(a, b *Num) int  { return a.val.Cmp(b.val) }

// ============================================================
// Sym — symbolic variable (and Dummy placeholders)
// ============================================================

// Sym is a symbolic variable. Dummy symbols additionally carry a unique id so
// that freshly introduced placeholders never collide with user symbols or
// with each other, no matter how they print.
type Sym struct {
	name string
	id   string
}

func S(name string) *Sym { return &Sym{name: name} }

// Dummy returns a fresh placeholder symbol. Each call yields a distinct
// symbol even for equal names.
func Dummy(name string) *Sym { return &Sym{name: name, id: uuid.NewString()} }

// Key returns the substitution key of the symbol: the bare name for plain
// symbols, a unique qualified key for dummies.
func (s *Sym) Key() string {
	if s.id == "" {
		return s.name
	}
	return "_" + s.name + "." + s.id
}

func (s *Sym) IsDummy() bool   { return s.id != "" }
func (s *Sym) Name() string    { return s.name }
func (s *Sym) Simplify() Expr  { return s }
func (s *Sym) kind() string    { return "sym" }
func (s *Sym) Eval() (*Num, bool) { return nil, false }

func (s *Sym) String() string {
	if s.id != "" {
		return "_" + s.name
	}
	return s.name
}

func (s *Sym) Equal(other Expr) bool {
	o, ok := other.(*Sym)
	return ok && s.name == o.name && s.id == o.id
}

func (s *Sym) Sub(varKey string, value Expr) Expr {
	if s.Key() == varKey {
		return value
	}
	return s
}

func (s *Sym) deriv(varKey string) Expr {
	if s.Key() == varKey {
		return N(1)
	}
	return N(0)
}

func (s *Sym) toJSON() map[string]any {
	m := map[string]any{"type": "sym", "name": s.name}
	if s.id != "" {
		m["id"] = s.id
	}
	return m
}

// ============================================================
// Inf / NaN — limit markers
// ============================================================

// Inf is an unbounded limit value: sign +1 is +oo, -1 is -oo, and 0 is the
// directionless complex infinity produced by division by zero.
type Inf struct{ sign int }

var (
	PosInf     = &Inf{sign: 1}
	NegInf     = &Inf{sign: -1}
	ComplexInf = &Inf{sign: 0}
)

func (i *Inf) Simplify() Expr        { return i }
func (i *Inf) Sub(string, Expr) Expr { return i }
func (i *Inf) Eval() (*Num, bool)    { return nil, false }
func (i *Inf) deriv(string) Expr     { return N(0) }
func (i *Inf) kind() string          { return "inf" }
func (i *Inf) Sign() int             { return i.sign }

func (i *Inf) String() string {
	switch i.sign {
	case 1:
		return "oo"
	case -1:
		return "-oo"
	}
	return "zoo"
}

func (i *Inf) Equal(other Expr) bool {
	o, ok := other.(*Inf)
	return ok && i.sign == o.sign
}

func (i *Inf) toJSON() map[string]any {
	return map[string]any{"type": "inf", "sign": i.sign}
}

// NaN is the indeterminate marker (0*oo, oo-oo, failed limits).
type NaN struct{}

var NaNValue = &NaN{}

func (n *NaN) Simplify() Expr        { return n }
func (n *NaN) Sub(string, Expr) Expr { return n }
func (n *NaN) Eval() (*Num, bool)    { return nil, false }
func (n *NaN) deriv(string) Expr     { return n }
func (n *NaN) String() string        { return "nan" }
func (n *NaN) kind() string          { return "nan" }
func (n *NaN) Equal(other Expr) bool { _, ok := other.(*NaN); return ok }
func (n *NaN) toJSON() map[string]any {
	return map[string]any{"type": "nan"}
}

func isNaN(e Expr) bool { _, ok := e.(*NaN); return ok }
func isInf(e Expr) bool { _, ok := e.(*Inf); return ok }

// hasUnbounded reports whether e contains an infinity or indeterminate
// marker anywhere in its tree.
func hasUnbounded(e Expr) bool {
	if isInf(e) || isNaN(e) {
		return true
	}
	for _, c := range children(e) {
		if hasUnbounded(c) {
			return true
		}
	}
	return false
}

// ============================================================
// Add — sum of terms
// ============================================================

type Add struct{ terms []Expr }

func AddOf(terms ...Expr) Expr { return (&Add{terms: terms}).Simplify() }

// Simplify flattens nested sums, absorbs infinities, and combines
// structurally equal terms by their rational coefficients. Terms are ordered
// numeric constant first, then monomials by power-aware key, remainder
// (Order) terms last, so a truncated series reads in ascending powers.
func (a *Add) Simplify() Expr {
	flat := make([]Expr, 0, len(a.terms))
	for _, t := range a.terms {
		s := t.Simplify()
		if inner, ok := s.(*Add); ok {
			flat = append(flat, inner.terms...)
		} else {
			flat = append(flat, s)
		}
	}

	posInf, negInf, cplxInf := false, false, false
	for _, t := range flat {
		if isNaN(t) {
			return NaNValue
		}
		if inf, ok := t.(*Inf); ok {
			switch inf.sign {
			case 1:
				posInf = true
			case -1:
				negInf = true
			default:
				cplxInf = true
			}
		}
	}
	if posInf && negInf || cplxInf && (posInf || negInf) {
		return NaNValue
	}
	if cplxInf {
		return ComplexInf
	}
	if posInf {
		return PosInf
	}
	if negInf {
		return NegInf
	}

	type bucket struct {
		rest  Expr
		coeff *Num
	}
	numAccum := N(0)
	buckets := map[string]*bucket{}
	orderKeys := []string{}
	var orders []Expr
	for _, t := range flat {
		switch v := t.(type) {
		case *Num:
			numAccum = numAdd(numAccum, v)
		case *Order:
			orders = append(orders, v)
		default:
			coeff, rest := splitCoeff(t)
			key := sortStr(rest)
			if b, seen := buckets[key]; seen {
				b.coeff = numAdd(b.coeff, coeff)
			} else {
				buckets[key] = &bucket{rest: rest, coeff: coeff}
				orderKeys = append(orderKeys, key)
			}
		}
	}

	sort.Slice(orderKeys, func(i, j int) bool {
		return monomialLess(buckets[orderKeys[i]].rest, buckets[orderKeys[j]].rest)
	})

	result := []Expr{}
	if !numAccum.IsZero() {
		result = append(result, numAccum)
	}
	for _, key := range orderKeys {
		b := buckets[key]
		if b.coeff.IsZero() {
			continue
		}
		if b.coeff.IsOne() {
			result = append(result, b.rest)
		} else {
			result = append(result, MulOf(b.coeff, b.rest))
		}
	}
	if len(orders) > 0 {
		result = append(result, dedupeOrders(orders)...)
	}
	if len(result) == 0 {
		return N(0)
	}
	if len(result) == 1 {
		return result[0]
	}
	return &Add{terms: result}
}

func (a *Add) String() string {
	if len(a.terms) == 0 {
		return "0"
	}
	parts := make([]string, len(a.terms))
	for i, t := range a.terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " + ")
}

func (a *Add) Sub(varKey string, value Expr) Expr {
	newTerms := make([]Expr, len(a.terms))
	for i, t := range a.terms {
		newTerms[i] = t.Sub(varKey, value)
	}
	return AddOf(newTerms...)
}

func (a *Add) deriv(varKey string) Expr {
	dTerms := make([]Expr, len(a.terms))
	for i, t := range a.terms {
		dTerms[i] = derivOf(t, varKey)
	}
	return AddOf(dTerms...)
}

func (a *Add) Eval() (*Num, bool) {
	acc := N(0)
	for _, t := range a.terms {
		v, ok := t.Eval()
		if !ok {
			return nil, false
		}
		acc = numAdd(acc, v)
	}
	return acc, true
}

func (a *Add) Equal(other Expr) bool {
	o, ok := other.(*Add)
	if !ok || len(a.terms) != len(o.terms) {
		return false
	}
	for i := range a.terms {
		if !a.terms[i].Equal(o.terms[i]) {
			return false
		}
	}
	return true
}

func (a *Add) kind() string  { return "add" }
func (a *Add) Terms() []Expr { return a.terms }

func (a *Add) toJSON() map[string]any {
	ts := make([]map[string]any, len(a.terms))
	for i, t := range a.terms {
		ts[i] = t.toJSON()
	}
	return map[string]any{"type": "add", "terms": ts}
}

// ============================================================
// Mul — product of factors
// ============================================================

type Mul struct{ factors []Expr }

func MulOf(factors ...Expr) Expr { return (&Mul{factors: factors}).Simplify() }

// Simplify flattens nested products, folds the numeric coefficient, merges
// equal bases into powers, and sorts the symbolic factors.
func (m *Mul) Simplify() Expr {
	flat := make([]Expr, 0, len(m.factors))
	for _, f := range m.factors {
		s := f.Simplify()
		if inner, ok := s.(*Mul); ok {
			flat = append(flat, inner.factors...)
		} else {
			flat = append(flat, s)
		}
	}

	coeff := N(1)
	infSign := 1
	haveInf := false
	others := []Expr{}
	for _, f := range flat {
		if isNaN(f) {
			return NaNValue
		}
		switch v := f.(type) {
		case *Num:
			coeff = numMul(coeff, v)
		case *Inf:
			haveInf = true
			infSign *= v.sign
		default:
			others = append(others, f)
		}
	}
	if haveInf {
		if coeff.IsZero() {
			return NaNValue
		}
		if coeff.IsNegative() {
			infSign = -infSign
		}
		inf := ComplexInf
		if infSign > 0 {
			inf = PosInf
		} else if infSign < 0 {
			inf = NegInf
		}
		if len(others) == 0 {
			return inf
		}
		others = append(others, inf)
		return &Mul{factors: others}
	}
	if coeff.IsZero() {
		return N(0)
	}

	// Merge equal bases: x * x^2 -> x^3.
	type entry struct {
		base Expr
		exp  Expr
	}
	merged := map[string]*entry{}
	keys := []string{}
	for _, f := range others {
		base, exp := asBaseExp(f)
		key := sortStr(base)
		if e, ok := merged[key]; ok {
			e.exp = AddOf(e.exp, exp)
		} else {
			merged[key] = &entry{base: base, exp: exp}
			keys = append(keys, key)
		}
	}
	rebuilt := make([]Expr, 0, len(keys))
	for _, key := range keys {
		e := merged[key]
		p := PowOf(e.base, e.exp)
		if n, ok := p.(*Num); ok {
			coeff = numMul(coeff, n)
			continue
		}
		if isNaN(p) {
			return NaNValue
		}
		rebuilt = append(rebuilt, p)
	}
	others = rebuilt
	if coeff.IsZero() {
		return N(0)
	}
	if len(others) == 0 {
		return coeff
	}

	sort.Slice(others, func(i, j int) bool { return sortStr(others[i]) < sortStr(others[j]) })

	if coeff.IsOne() {
		if len(others) == 1 {
			return others[0]
		}
		return &Mul{factors: others}
	}
	return &Mul{factors: append([]Expr{coeff}, others...)}
}

func (m *Mul) String() string {
	if len(m.factors) == 0 {
		return "1"
	}
	parts := make([]string, len(m.factors))
	for i, f := range m.factors {
		if _, isAdd := f.(*Add); isAdd {
			parts[i] = "(" + f.String() + ")"
		} else {
			parts[i] = f.String()
		}
	}
	return strings.Join(parts, "*")
}

func (m *Mul) Sub(varKey string, value Expr) Expr {
	newFactors := make([]Expr, len(m.factors))
	for i, f := range m.factors {
		newFactors[i] = f.Sub(varKey, value)
	}
	return MulOf(newFactors...)
}

// deriv applies the product rule.
func (m *Mul) deriv(varKey string) Expr {
	terms := make([]Expr, len(m.factors))
	for i, fi := range m.factors {
		dfi := derivOf(fi, varKey)
		others := make([]Expr, 0, len(m.factors))
		others = append(others, dfi)
		for j, fj := range m.factors {
			if j != i {
				others = append(others, fj)
			}
		}
		terms[i] = MulOf(others...)
	}
	return AddOf(terms...)
}

func (m *Mul) Eval() (*Num, bool) {
	acc := N(1)
	for _, f := range m.factors {
		v, ok := f.Eval()
		if !ok {
			return nil, false
		}
		acc = numMul(acc, v)
	}
	return acc, true
}

func (m *Mul) Equal(other Expr) bool {
	o, ok := other.(*Mul)
	if !ok || len(m.factors) != len(o.factors) {
		return false
	}
	for i := range m.factors {
		if !m.factors[i].Equal(o.factors[i]) {
			return false
		}
	}
	return true
}

func (m *Mul) kind() string    { return "mul" }
func (m *Mul) Factors() []Expr { return m.factors }

func (m *Mul) toJSON() map[string]any {
	fs := make([]map[string]any, len(m.factors))
	for i, f := range m.factors {
		fs[i] = f.toJSON()
	}
	return map[string]any{"type": "mul", "factors": fs}
}

// ============================================================
// Pow — base^exponent
// ============================================================

type Pow struct{ base, exp Expr }

func PowOf(base, exp Expr) Expr { return (&Pow{base: base, exp: exp}).Simplify() }

func (p *Pow) Simplify() Expr {
	base := p.base.Simplify()
	exp := p.exp.Simplify()

	if isNaN(base) || isNaN(exp) {
		return NaNValue
	}
	if en, ok := exp.(*Num); ok {
		if en.IsZero() {
			return N(1)
		}
		if en.IsOne() {
			return base
		}
	}
	if bn, ok := base.(*Num); ok && bn.IsZero() {
		if en, ok2 := exp.(*Num); ok2 {
			if en.IsNegative() {
				// 1/0 has no direction.
				return ComplexInf
			}
			return N(0)
		}
		return &Pow{base: base, exp: exp}
	}
	if bn, ok := base.(*Num); ok && bn.IsOne() && !bn.approx {
		return N(1)
	}
	if bi, ok := base.(*Inf); ok {
		if en, ok2 := exp.(*Num); ok2 {
			if en.IsNegative() {
				return N(0)
			}
			if bi.sign == 1 {
				return PosInf
			}
			if bi.sign == -1 && en.IsInteger() {
				if new(big.Int).Mod(en.val.Num(), big.NewInt(2)).Sign() == 0 {
					return PosInf
				}
				return NegInf
			}
			return ComplexInf
		}
		return &Pow{base: base, exp: exp}
	}
	if bn, ok := base.(*Num); ok {
		if en, ok2 := exp.(*Num); ok2 && en.IsInteger() {
			e := en.val.Num().Int64()
			if e >= 0 && e <= 64 {
				result := N(1)
				for i := int64(0); i < e; i++ {
					result = numMul(result, bn)
				}
				return result
			}
			if e < 0 && e >= -64 {
				result := N(1)
				for i := int64(0); i < -e; i++ {
					result = numMul(result, bn)
				}
				return numRecip(result)
			}
		}
	}
	if inner, ok := base.(*Pow); ok {
		return PowOf(inner.base, MulOf(inner.exp, exp))
	}
	return &Pow{base: base, exp: exp}
}

func (p *Pow) String() string {
	baseStr := p.base.String()
	switch p.base.(type) {
	case *Add, *Mul, *Pow:
		baseStr = "(" + baseStr + ")"
	case *Num:
		if strings.ContainsAny(baseStr, "/-") {
			baseStr = "(" + baseStr + ")"
		}
	}
	expStr := p.exp.String()
	switch p.exp.(type) {
	case *Add, *Mul, *Pow:
		expStr = "(" + expStr + ")"
	case *Num:
		if strings.ContainsAny(expStr, "/-") {
			expStr = "(" + expStr + ")"
		}
	}
	return baseStr + "^" + expStr
}

func (p *Pow) Sub(varKey string, value Expr) Expr {
	return PowOf(p.base.Sub(varKey, value), p.exp.Sub(varKey, value))
}

func (p *Pow) deriv(varKey string) Expr {
	du := derivOf(p.base, varKey)
	dv := derivOf(p.exp, varKey)
	if _, expIsNum := p.exp.(*Num); expIsNum {
		return MulOf(p.exp, PowOf(p.base, AddOf(p.exp, N(-1))), du)
	}
	if _, baseIsNum := p.base.(*Num); baseIsNum {
		return MulOf(PowOf(p.base, p.exp), Log(p.base), dv)
	}
	logTerm := MulOf(dv, Log(p.base))
	divTerm := MulOf(p.exp, du, PowOf(p.base, N(-1)))
	return MulOf(PowOf(p.base, p.exp), AddOf(logTerm, divTerm))
}

func (p *Pow) Eval() (*Num, bool) {
	b, ok1 := p.base.Eval()
	e, ok2 := p.exp.Eval()
	if !ok1 || !ok2 {
		return nil, false
	}
	pf := math.Pow(b.Float64(), e.Float64())
	if math.IsNaN(pf) || math.IsInf(pf, 0) {
		return nil, false
	}
	return NFloat(pf), true
}

func (p *Pow) Equal(other Expr) bool {
	o, ok := other.(*Pow)
	return ok && p.base.Equal(o.base) && p.exp.Equal(o.exp)
}

func (p *Pow) kind() string { return "pow" }
func (p *Pow) Base() Expr   { return p.base }
func (p *Pow) Exp() Expr    { return p.exp }

func (p *Pow) toJSON() map[string]any {
	return map[string]any{"type": "pow", "base": p.base.toJSON(), "exp": p.exp.toJSON()}
}

// ============================================================
// Structural helpers
// ============================================================

// children returns the ordered child expressions of a node; atoms return nil.
func children(e Expr) []Expr {
	switch v := e.(type) {
	case *Add:
		return v.terms
	case *Mul:
		return v.factors
	case *Pow:
		return []Expr{v.base, v.exp}
	case *AppliedFunc:
		return v.args
	case *Derivative:
		out := make([]Expr, 0, 1+len(v.vars))
		out = append(out, v.expr)
		for _, s := range v.vars {
			out = append(out, s)
		}
		return out
	case *Lambda:
		out := make([]Expr, 0, 1+len(v.vars))
		for _, s := range v.vars {
			out = append(out, s)
		}
		return append(out, v.body)
	case *Order:
		return []Expr{v.expr}
	}
	return nil
}

// derivOf applies a node's incremental differentiation rule, panicking only
// for nodes that opted out entirely (none of the core nodes do).
func derivOf(e Expr, varKey string) Expr {
	d, ok := e.(differentiable)
	if !ok {
		argPanic("deriv", "%s node does not support differentiation", e.kind())
	}
	r := d.deriv(varKey)
	if r == nil {
		// No rule: the derivative stays unevaluated.
		return newRawDerivative(e, []*Sym{mustSymForKey(e, varKey)})
	}
	return r
}

// splitCoeff splits a term into its leading rational coefficient and the
// remaining factor.
func splitCoeff(e Expr) (*Num, Expr) {
	if m, ok := e.(*Mul); ok && len(m.factors) >= 2 {
		if c, ok2 := m.factors[0].(*Num); ok2 {
			rest := m.factors[1:]
			if len(rest) == 1 {
				return c, rest[0]
			}
			return c, &Mul{factors: rest}
		}
	}
	return N(1), e
}

// asBaseExp views an expression as base^exp (exp 1 for non-powers).
func asBaseExp(e Expr) (Expr, Expr) {
	if p, ok := e.(*Pow); ok {
		return p.base, p.exp
	}
	return e, N(1)
}

// sortStr is the deterministic ordering key of an expression. Dummy symbols
// sort by their unique key so that same-named placeholders keep a stable
// relative order.
func sortStr(e Expr) string {
	if s, ok := e.(*Sym); ok {
		return s.Key()
	}
	return e.String()
}

// monomialLess orders sum terms: plain powers of the same symbol ascend by
// exponent, everything else falls back to string order.
func monomialLess(a, b Expr) bool {
	an, ae := monomialKey(a)
	bn, be := monomialKey(b)
	if an != bn {
		return an < bn
	}
	if ae != be {
		return ae < be
	}
	return sortStr(a) < sortStr(b)
}

func monomialKey(e Expr) (string, float64) {
	switch v := e.(type) {
	case *Sym:
		return v.Key(), 1
	case *Pow:
		if s, ok := v.base.(*Sym); ok {
			if n, ok2 := v.exp.(*Num); ok2 {
				return s.Key(), n.Float64()
			}
		}
	case *Mul:
		// Order products like 2*x^3 by their non-numeric part.
		if len(v.factors) > 1 {
			if _, isNum := v.factors[0].(*Num); isNum {
				return monomialKey(MulRaw(v.factors[1:]...))
			}
		}
	}
	return sortStr(e), 0
}

// MulRaw builds a product node without canonicalizing. Internal helper for
// ordering and printing paths that must not recurse into Simplify.
func MulRaw(factors ...Expr) Expr {
	if len(factors) == 1 {
		return factors[0]
	}
	return &Mul{factors: factors}
}

// AddRaw builds a sum node without canonicalizing.
func AddRaw(terms ...Expr) Expr {
	if len(terms) == 1 {
		return terms[0]
	}
	return &Add{terms: terms}
}

func mustSymForKey(e Expr, varKey string) *Sym {
	for _, s := range FreeSymbols(e) {
		if s.Key() == varKey {
			return s
		}
	}
	return S(varKey)
}

// FreeSymbols returns the free symbols of an expression keyed by symbol key.
// Bound Lambda variables are excluded; Derivative variables are included
// through the wrapped expression only.
func FreeSymbols(e Expr) map[string]*Sym {
	out := map[string]*Sym{}
	collectSymbols(e, out)
	return out
}

func collectSymbols(e Expr, out map[string]*Sym) {
	switch v := e.(type) {
	case *Sym:
		out[v.Key()] = v
	case *Lambda:
		inner := map[string]*Sym{}
		collectSymbols(v.body, inner)
		for _, b := range v.vars {
			delete(inner, b.Key())
		}
		for k, s := range inner {
			out[k] = s
		}
	case *Derivative:
		collectSymbols(v.expr, out)
	default:
		for _, c := range children(e) {
			collectSymbols(c, out)
		}
	}
}

// hasPendingDerivative reports whether e contains an unevaluated derivative
// taken with respect to the symbol with the given key. Such expressions
// cannot be specialized at a point by substitution.
func hasPendingDerivative(e Expr, varKey string) bool {
	if d, ok := e.(*Derivative); ok {
		for _, v := range d.vars {
			if v.Key() == varKey {
				return true
			}
		}
		return hasPendingDerivative(d.expr, varKey)
	}
	for _, c := range children(e) {
		if hasPendingDerivative(c, varKey) {
			return true
		}
	}
	return false
}

// containsVar reports whether the symbol with the given key occurs free in e.
func containsVar(e Expr, varKey string) bool {
	_, ok := FreeSymbols(e)[varKey]
	return ok
}

// xOrder computes the power of the symbol x carried by a monomial-shaped
// expression (x^3 -> 3, 1/x -> -1, sin(y) -> 0). The second result is false
// for shapes that are not a plain power product in x.
func xOrder(e Expr, varKey string) (*big.Rat, bool) {
	switch v := e.(type) {
	case *Num:
		return new(big.Rat), true
	case *Sym:
		if v.Key() == varKey {
			return new(big.Rat).SetInt64(1), true
		}
		return new(big.Rat), true
	case *Pow:
		if containsVar(v.exp, varKey) {
			return nil, false
		}
		bo, ok := xOrder(v.base, varKey)
		if !ok {
			return nil, false
		}
		if bo.Sign() == 0 {
			return new(big.Rat), true
		}
		en, ok2 := v.exp.(*Num)
		if !ok2 {
			return nil, false
		}
		return new(big.Rat).Mul(bo, en.val), true
	case *Mul:
		total := new(big.Rat)
		for _, f := range v.factors {
			fo, ok := xOrder(f, varKey)
			if !ok {
				return nil, false
			}
			total.Add(total, fo)
		}
		return total, true
	case *Order:
		return xOrder(v.expr, varKey)
	default:
		if !containsVar(e, varKey) {
			return new(big.Rat), true
		}
		return nil, false
	}
}

func fmtRat(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	return r.RatString()
}
