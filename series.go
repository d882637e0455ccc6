package symgo

import (
	"math/big"
)

// ============================================================
// Order — truncated-series remainder terms
// ============================================================

// Order is the remainder marker of a truncated series: O(x^4), O(x*log(x)).
// The payload records the growth class, the variable names the expansion
// variable the bound refers to.
type Order struct {
	expr    Expr
	varName string
}

// OrderOf builds a normalized remainder term.
func OrderOf(expr Expr, varName string) Expr {
	return (&Order{expr: expr, varName: varName}).Simplify()
}

func orderX(varName string, n int) Expr {
	return OrderOf(PowOf(S(varName), N(int64(n))), varName)
}

func (o *Order) kind() string { return "order" }

// Simplify normalizes the payload: zero payloads collapse the whole term,
// sums reduce to their lowest-order member, and numeric coefficients are
// dropped (O(3*x^2) is O(x^2)).
func (o *Order) Simplify() Expr {
	e := o.expr.Simplify()
	if inner, ok := e.(*Order); ok {
		e = inner.expr
	}
	if n, ok := e.(*Num); ok {
		if n.IsZero() {
			return N(0)
		}
		return &Order{expr: N(1), varName: o.varName}
	}
	if a, ok := e.(*Add); ok {
		if low, lok := lowestOrderPart(a, o.varName); lok {
			e = low
		}
	}
	_, rest := splitCoeff(e)
	if n, ok := rest.(*Num); ok {
		if n.IsZero() {
			return N(0)
		}
		rest = N(1)
	}
	if rest.Equal(o.expr) {
		return o
	}
	return &Order{expr: rest, varName: o.varName}
}

func (o *Order) String() string { return "O(" + o.expr.String() + ")" }

func (o *Order) Sub(varKey string, value Expr) Expr {
	name := o.varName
	if varKey == o.varName {
		if s, ok := value.(*Sym); ok {
			name = s.Key()
		}
	}
	return (&Order{expr: o.expr.Sub(varKey, value), varName: name}).Simplify()
}

func (o *Order) Eval() (*Num, bool) { return nil, false }

func (o *Order) Equal(other Expr) bool {
	ot, ok := other.(*Order)
	return ok && o.varName == ot.varName && o.expr.Equal(ot.expr)
}

func (o *Order) toJSON() map[string]any {
	return map[string]any{"type": "order", "expr": o.expr.toJSON(), "var": o.varName}
}

func (o *Order) deriv(varKey string) Expr {
	if varKey != o.varName {
		return N(0)
	}
	return (&Order{
		expr:    MulOf(o.expr, PowOf(S(o.varName), N(-1))),
		varName: o.varName,
	}).Simplify()
}

// dedupeOrders keeps, per expansion variable, only the dominant (lowest
// order) remainder among comparable ones.
func dedupeOrders(orders []Expr) []Expr {
	best := map[string]*Order{}
	var keep []Expr
	var names []string
	for _, e := range orders {
		o, ok := e.(*Order)
		if !ok {
			keep = append(keep, e)
			continue
		}
		cur, seen := best[o.varName]
		if !seen {
			best[o.varName] = o
			names = append(names, o.varName)
			continue
		}
		oq, ook := xOrder(o.expr, o.varName)
		cq, cok := xOrder(cur.expr, cur.varName)
		if ook && cok {
			if oq.Cmp(cq) < 0 {
				best[o.varName] = o
			}
		} else if !o.Equal(cur) {
			keep = append(keep, o)
		}
	}
	for _, name := range names {
		keep = append(keep, best[name])
	}
	return keep
}

// splitOrder separates a series result into its remainder term and the
// polynomial part.
func splitOrder(e Expr, varKey string) (*Order, Expr) {
	switch v := e.(type) {
	case *Order:
		if v.varName == varKey {
			return v, N(0)
		}
	case *Add:
		var order *Order
		rest := make([]Expr, 0, len(v.terms))
		for _, t := range v.terms {
			if o, ok := t.(*Order); ok && o.varName == varKey {
				order = o
				continue
			}
			rest = append(rest, t)
		}
		return order, AddOf(rest...)
	}
	return nil, e
}

// RemoveOrder strips the remainder term from a series result.
func RemoveOrder(e Expr, varName string) Expr {
	_, rest := splitOrder(e, varName)
	return rest
}

// lowestOrderPart returns the sum of the terms sharing the minimal power of
// the variable, failing when any term's power cannot be determined.
func lowestOrderPart(e Expr, varKey string) (Expr, bool) {
	terms := addTerms(e)
	var minQ *big.Rat
	var picked []Expr
	for _, t := range terms {
		if _, isOrder := t.(*Order); isOrder {
			continue
		}
		q, ok := xOrder(t, varKey)
		if !ok {
			return nil, false
		}
		switch {
		case minQ == nil || q.Cmp(minQ) < 0:
			minQ = q
			picked = []Expr{t}
		case q.Cmp(minQ) == 0:
			picked = append(picked, t)
		}
	}
	if minQ == nil {
		return nil, false
	}
	return AddOf(picked...), true
}

// trimToOrder absorbs polynomial terms at or above the remainder's order
// into the remainder.
func trimToOrder(e Expr, varKey string) Expr {
	a, ok := e.(*Add)
	if !ok {
		return e
	}
	var cutoff *big.Rat
	for _, t := range a.terms {
		if o, isOrder := t.(*Order); isOrder && o.varName == varKey {
			if q, qok := xOrder(o.expr, varKey); qok {
				if cutoff == nil || q.Cmp(cutoff) < 0 {
					cutoff = q
				}
			}
		}
	}
	if cutoff == nil {
		return e
	}
	kept := make([]Expr, 0, len(a.terms))
	for _, t := range a.terms {
		if _, isOrder := t.(*Order); !isOrder {
			if q, qok := xOrder(t, varKey); qok && q.Cmp(cutoff) >= 0 {
				continue
			}
		}
		kept = append(kept, t)
	}
	return AddOf(kept...)
}

// ============================================================
// NSeries — truncated expansion around the origin
// ============================================================

// NSeries expands expr around varName = 0 up to (but excluding) order n,
// returning the truncated series with an explicit remainder term when the
// expansion is inexact. Expansions whose leading behavior is a negative
// power of the variable are poles, reported as *PoleError; shapes the
// engine cannot handle are reported as *NotImplementedError.
func NSeries(expr Expr, varName string, n int) (Expr, error) {
	if n < 0 {
		argPanic("NSeries", "negative expansion order %d", n)
	}
	e := expr.Simplify()
	if !containsVar(e, varName) {
		return e, nil
	}
	lx := Dummy("logx")
	logger().Debugw("series expansion", "expr", e.String(), "var", varName, "order", n)
	s, err := nseries(e, varName, n, lx)
	if err != nil {
		return nil, err
	}
	s = trimToOrder(s.Simplify(), varName)

	// A negative leading power means the expression blows up at the
	// expansion point; that is a pole, not a series.
	if q, ok := minKnownOrder(s, varName); ok && q.Sign() < 0 {
		return nil, newPoleError(expr)
	}
	return s.Sub(lx.Key(), Log(S(varName))).Simplify(), nil
}

func minKnownOrder(e Expr, varKey string) (*big.Rat, bool) {
	var minQ *big.Rat
	for _, t := range addTerms(e) {
		q, ok := xOrder(t, varKey)
		if !ok {
			continue
		}
		if minQ == nil || q.Cmp(minQ) < 0 {
			minQ = q
		}
	}
	return minQ, minQ != nil
}

// nseries is the recursive engine. Laurent terms are allowed internally so
// that quotients like sin(x)/x can cancel; the top-level caller rejects
// results that stay unbounded.
func nseries(e Expr, varKey string, n int, logx Expr) (Expr, error) {
	e = e.Simplify()
	if !containsVar(e, varKey) {
		return e, nil
	}
	switch v := e.(type) {
	case *Sym:
		return v, nil
	case *Add:
		out := make([]Expr, 0, len(v.terms))
		for _, t := range v.terms {
			ts, err := nseries(t, varKey, n, logx)
			if err != nil {
				return nil, err
			}
			out = append(out, ts)
		}
		sum := AddOf(out...)
		// A sum that already carries a remainder is re-truncated to the
		// requested order, so re-expanding a series result to a smaller
		// order yields a prefix of the original.
		if o, _ := splitOrder(sum, varKey); o != nil {
			sum = AddOf(sum, orderX(varKey, n))
		}
		return trimToOrder(sum, varKey), nil
	case *Mul:
		return mulNSeries(v, varKey, n, logx)
	case *Pow:
		return powNSeries(v, varKey, n, logx)
	case *AppliedFunc:
		return functionNSeries(v, varKey, n, logx)
	case *Derivative:
		return v.nseries(varKey, n, logx)
	case *Order:
		return v, nil
	}
	return nil, notImplemented("cannot expand %s in a series", e.String())
}

// ============================================================
// Products and powers
// ============================================================

// distributeMul multiplies two order-free polynomials term by term.
func distributeMul(a, b Expr) Expr {
	var out []Expr
	for _, ta := range addTerms(a) {
		for _, tb := range addTerms(b) {
			out = append(out, MulOf(ta, tb))
		}
	}
	return AddOf(out...)
}

// mulSeriesPair multiplies two series results, propagating remainder terms
// at their combined orders.
func mulSeriesPair(s1, s2 Expr, varKey string) Expr {
	o1, p1 := splitOrder(s1.Simplify(), varKey)
	o2, p2 := splitOrder(s2.Simplify(), varKey)
	out := []Expr{distributeMul(p1, p2)}
	if o1 != nil {
		if low, ok := lowestOrderPart(p2, varKey); ok {
			out = append(out, OrderOf(MulOf(o1.expr, low), varKey))
		} else if !isZeroNum(p2) {
			out = append(out, OrderOf(o1.expr, varKey))
		}
	}
	if o2 != nil {
		if low, ok := lowestOrderPart(p1, varKey); ok {
			out = append(out, OrderOf(MulOf(o2.expr, low), varKey))
		} else if !isZeroNum(p1) {
			out = append(out, OrderOf(o2.expr, varKey))
		}
	}
	if o1 != nil && o2 != nil {
		out = append(out, OrderOf(MulOf(o1.expr, o2.expr), varKey))
	}
	return trimToOrder(AddOf(out...), varKey)
}

func mulNSeries(m *Mul, varKey string, n int, logx Expr) (Expr, error) {
	// Each factor is expanded to the target order adjusted by the leading
	// powers of the other factors, so cancellation against negative powers
	// keeps enough terms.
	qs := make([]*big.Rat, len(m.factors))
	total := new(big.Rat)
	for i, f := range m.factors {
		if _, q, ok := leadingPower(f, varKey); ok {
			qs[i] = q
			total.Add(total, q)
		} else {
			qs[i] = new(big.Rat)
		}
	}
	result := Expr(N(1))
	for i, f := range m.factors {
		rest := new(big.Rat).Sub(total, qs[i])
		ni := n - floorRat(rest)
		if ni < 1 {
			ni = 1
		}
		fs, err := nseries(f, varKey, ni, logx)
		if err != nil {
			return nil, err
		}
		result = mulSeriesPair(result, fs, varKey)
	}
	return trimToOrder(result.Simplify(), varKey), nil
}

func powNSeries(p *Pow, varKey string, n int, logx Expr) (Expr, error) {
	en, isNum := p.exp.(*Num)
	if !isNum {
		// Symbolic exponent: a^b = exp(b*log(a)).
		return nseries(Exp(MulOf(p.exp, Log(p.base))).Simplify(), varKey, n, logx)
	}

	if en.IsInteger() && en.IsPositive() {
		bs, err := nseries(p.base, varKey, n, logx)
		if err != nil {
			return nil, err
		}
		k := en.val.Num().Int64()
		result := bs
		for i := int64(1); i < k; i++ {
			result = mulSeriesPair(result, bs, varKey)
		}
		return trimToOrder(result.Simplify(), varKey), nil
	}

	// Negative or fractional exponent: factor the base's leading power,
	// base = c*x^q*(1 + t), and expand (1+t)^e binomially.
	bs, err := nseries(p.base, varKey, n+2, logx)
	if err != nil {
		return nil, err
	}
	ob, pb := splitOrder(bs.Simplify(), varKey)
	c, q, ok := leadingPower(pb, varKey)
	if !ok {
		return nil, notImplemented("cannot determine the leading behavior of %s", p.base.String())
	}
	qe := new(big.Rat).Mul(q, en.val)
	prefix := MulOf(PowOf(c, en), PowOf(S(varKey), numFromRat(qe)))

	scale := MulOf(PowOf(c, N(-1)), PowOf(S(varKey), numFromRat(new(big.Rat).Neg(q))))
	t := AddOf(distributeMul(pb, scale), N(-1)).Simplify()
	if ob != nil {
		t = AddOf(t, OrderOf(MulOf(ob.expr, scale), varKey)).Simplify()
	}

	// Inner order needed so that prefix * inner reaches x^n.
	need := new(big.Rat).Sub(new(big.Rat).SetInt64(int64(n)), qe)
	inner, exact, err := binomialSeries(en, t, varKey, need)
	if err != nil {
		return nil, err
	}
	out := distributeSeries(inner, prefix, varKey)
	if !exact {
		out = AddOf(out, orderX(varKey, n))
	}
	return trimToOrder(out.Simplify(), varKey), nil
}

// distributeSeries multiplies a series by an order-free monomial factor,
// scaling the remainder term along with the polynomial part.
func distributeSeries(s Expr, factor Expr, varKey string) Expr {
	o, poly := splitOrder(s.Simplify(), varKey)
	out := []Expr{distributeMul(poly, factor)}
	if o != nil {
		out = append(out, OrderOf(MulOf(o.expr, factor), varKey))
	}
	return AddOf(out...)
}

// binomialSeries expands (1+t)^e for a series t with positive leading order,
// keeping terms below the requested order. The exact flag is set when t is
// identically zero and the expansion terminates.
func binomialSeries(e *Num, t Expr, varKey string, need *big.Rat) (Expr, bool, error) {
	if z, ok := t.(*Num); ok && z.IsZero() {
		return N(1), true, nil
	}
	_, pt := splitOrder(t, varKey)
	if isZeroNum(pt) {
		return N(1), false, nil
	}
	_, qt, ok := leadingPower(pt, varKey)
	if !ok || qt.Sign() <= 0 {
		return nil, false, newPoleError(t)
	}
	steps := ceilRat(new(big.Rat).Quo(maxRat(need, new(big.Rat)), qt)) + 1
	terms := []Expr{N(1)}
	tp := Expr(N(1))
	coeff := N(1)
	for j := 1; j <= steps; j++ {
		// binom(e, j) = binom(e, j-1) * (e - j + 1) / j
		coeff = numMul(coeff, numDiv(numAdd(e, N(int64(1-j))), N(int64(j))))
		tp = mulSeriesPair(tp, t, varKey)
		terms = append(terms, distributeSeries(tp, coeff, varKey))
	}
	return AddOf(terms...), false, nil
}

// ============================================================
// Function expansion
// ============================================================

func functionNSeries(f *AppliedFunc, varKey string, n int, logx Expr) (Expr, error) {
	if f.def.Series != nil {
		if r, handled, err := f.def.Series(f, varKey, n, logx); handled {
			return r, err
		}
	}
	if f.def.NArgs < 0 {
		return nil, notImplemented("series expansion of user-defined function %s is not supported", f.def.Name)
	}

	args := f.args
	args0 := make([]Expr, len(args))
	for i, a := range args {
		v, ok := limitAtZero(a, varKey)
		if !ok {
			return nil, notImplemented("cannot compute the limit of %s", a.String())
		}
		args0[i] = v
	}

	for _, a0 := range args0 {
		if hasUnbounded(a0) || isNaN(a0) {
			return unboundedArgNSeries(f, args0, varKey, n, logx)
		}
	}

	if len(args) != 1 || !isZeroNum(args0[0]) {
		return taylorAtPointNSeries(f, varKey, n, logx)
	}
	return taylorAtZeroNSeries(f, varKey, n, logx)
}

// unboundedArgNSeries handles arguments that blow up at the origin. If the
// divergence is a power of the variable the asymptotic fallback decides the
// outcome; a merely logarithmic divergence is expanded around the
// logarithmic part through a placeholder.
func unboundedArgNSeries(f *AppliedFunc, args0 []Expr, varKey string, n int, logx Expr) (Expr, error) {
	lead := make([]Expr, len(f.args))
	lead0 := make([]Expr, len(f.args))
	argSeries := make([]Expr, len(f.args))
	for i, a := range f.args {
		s, err := nseries(a, varKey, n, logx)
		if err != nil {
			return nil, err
		}
		argSeries[i] = RemoveOrder(s.Simplify(), varKey)
		low, ok := lowestOrderPart(argSeries[i], varKey)
		if !ok {
			return nil, notImplemented("cannot determine the leading behavior of %s", a.String())
		}
		lead[i] = low
		v, ok := limitAtZero(low, varKey)
		if !ok {
			return nil, notImplemented("cannot compute the limit of %s", low.String())
		}
		lead0[i] = v
	}

	for _, l0 := range lead0 {
		if hasUnbounded(l0) || isNaN(l0) {
			logger().Debugw("series fallback", "strategy", "asymptotic", "expr", f.String())
			r, err := f.aseries(n, args0, varKey, logx)
			if err != nil {
				return nil, err
			}
			return nseries(r, varKey, n, logx)
		}
	}

	// The arguments diverge only logarithmically: expand around the
	// logarithmic part. Exactly one argument may depend on the variable
	// beyond its limit.
	logger().Debugw("series fallback", "strategy", "logarithmic", "expr", f.String())
	var v *Sym
	var zv Expr
	q := make([]Expr, len(f.args))
	for i := range f.args {
		z := AddOf(argSeries[i], MulOf(N(-1), lead0[i])).Simplify()
		if containsVar(z, varKey) {
			if v != nil {
				return nil, notImplemented("multiple logarithmic placeholders in %s", f.String())
			}
			v = Dummy("v")
			zv = z
			q[i] = AddOf(lead0[i], v)
		} else {
			q[i] = lead0[i]
		}
	}
	e1 := Apply(f.def, q...)
	if v == nil {
		return e1, nil
	}
	s, err := nseries(e1, v.Key(), n, logx)
	if err != nil {
		return nil, err
	}
	o, rest := splitOrder(s.Simplify(), v.Key())
	out := []Expr{rest.Sub(v.Key(), zv).Simplify()}
	if o != nil {
		out = append(out, OrderOf(o.expr.Sub(v.Key(), zv), varKey))
	}
	return trimToOrder(AddOf(out...), varKey), nil
}

// taylorAtPointNSeries expands around a nonzero argument value (or a
// multi-argument application) by direct differentiation at the origin,
// after first trying a structural expansion.
func taylorAtPointNSeries(f *AppliedFunc, varKey string, n int, logx Expr) (Expr, error) {
	e1 := Expand(f, DefaultHints())
	if !e1.Equal(f) {
		return nseries(e1, varKey, n, logx)
	}

	term := f.Sub(varKey, N(0)).Simplify()
	if hasUnbounded(term) || isNaN(term) {
		return nil, newPoleError(f)
	}
	series := []Expr{term}
	fact := N(1)
	e := Expr(f)
	for i := 1; i < n; i++ {
		fact = numMul(fact, N(int64(i)))
		e = Diff(e, varKey).Simplify()
		if hasPendingDerivative(e, varKey) {
			return nil, notImplemented("series of %s needs derivative values at the expansion point", f.String())
		}
		sub := e.Sub(varKey, N(0)).Simplify()
		if isNaN(sub) {
			lr := Limit(e, varKey, N(0))
			if !lr.Success {
				return nil, newPoleError(f)
			}
			sub = lr.Value
		}
		if hasUnbounded(sub) {
			return nil, newPoleError(f)
		}
		series = append(series, MulOf(sub, PowOf(S(varKey), N(int64(i))), PowOf(fact, N(-1))))
	}
	series = append(series, orderX(varKey, n))
	return trimToOrder(AddOf(series...), varKey), nil
}

// taylorAtZeroNSeries expands a single-argument application whose argument
// vanishes at the origin through the function's Taylor-term recurrence,
// re-expanding each generated term so composite arguments stay truncated.
func taylorAtZeroNSeries(f *AppliedFunc, varKey string, n int, logx Expr) (Expr, error) {
	arg := f.args[0]
	terms := []Expr{}
	var g Expr
	for i := 0; i <= n+1; i++ {
		g = f.taylorTerm(i, arg, terms)
		if g == nil {
			return nil, notImplemented("series of %s needs derivative values at the expansion point", f.String())
		}
		gs, err := nseries(g.Simplify(), varKey, n, logx)
		if err != nil {
			return nil, err
		}
		terms = append(terms, gs)
	}
	terms = append(terms, orderX(varKey, n))
	return trimToOrder(AddOf(terms...), varKey), nil
}

func (f *AppliedFunc) aseries(n int, args0 []Expr, varKey string, logx Expr) (Expr, error) {
	if f.def.Aseries != nil {
		return f.def.Aseries(f, n, args0, varKey, logx)
	}
	return nil, newPoleError(f)
}

// ============================================================
// Logarithm series
// ============================================================

// logSeriesRule expands log around a vanishing or diverging argument by
// factoring the argument's leading power: log(c*x^q*(1+t)) splits into
// log(c) + q*log(x) + log(1+t), with log(x) carried by the placeholder.
func logSeriesRule(f *AppliedFunc, varKey string, n int, logx Expr) (Expr, bool, error) {
	arg := f.args[0]
	if !containsVar(arg, varKey) {
		return f, true, nil
	}
	if v, ok := limitAtZero(arg, varKey); ok && !hasUnbounded(v) && !isNaN(v) {
		if nv, isNum := v.(*Num); !isNum || !nv.IsZero() {
			// Finite nonzero argument value: the generic algorithm works.
			return nil, false, nil
		}
	}

	bs, err := nseries(arg, varKey, n+2, logx)
	if err != nil {
		return nil, true, err
	}
	ob, pb := splitOrder(bs.Simplify(), varKey)
	c, q, ok := leadingPower(pb, varKey)
	if !ok {
		return nil, true, notImplemented("cannot determine the leading behavior of %s", arg.String())
	}
	if q.Sign() == 0 {
		return nil, false, nil
	}
	if logx == nil {
		return nil, true, newPoleError(f)
	}

	scale := MulOf(PowOf(c, N(-1)), PowOf(S(varKey), numFromRat(new(big.Rat).Neg(q))))
	t := AddOf(distributeMul(pb, scale), N(-1)).Simplify()
	if ob != nil {
		t = AddOf(t, OrderOf(MulOf(ob.expr, scale), varKey)).Simplify()
	}

	head := AddOf(Log(c), MulOf(numFromRat(q), logx))
	tail, exact, err := log1pSeries(t, varKey, n)
	if err != nil {
		return nil, true, err
	}
	out := AddOf(head, tail)
	if !exact {
		out = AddOf(out, orderX(varKey, n))
	}
	return trimToOrder(out.Simplify(), varKey), true, nil
}

// log1pSeries expands log(1+t) for a series t vanishing at the origin.
func log1pSeries(t Expr, varKey string, n int) (Expr, bool, error) {
	if z, ok := t.(*Num); ok && z.IsZero() {
		return N(0), true, nil
	}
	_, pt := splitOrder(t, varKey)
	if isZeroNum(pt) {
		return N(0), false, nil
	}
	_, qt, ok := leadingPower(pt, varKey)
	if !ok || qt.Sign() <= 0 {
		return nil, false, newPoleError(t)
	}
	steps := ceilRat(new(big.Rat).Quo(new(big.Rat).SetInt64(int64(n)), qt)) + 1
	terms := []Expr{}
	tp := Expr(N(1))
	for j := 1; j <= steps; j++ {
		tp = mulSeriesPair(tp, t, varKey)
		coeff := numDiv(N(1), N(int64(j)))
		if j%2 == 0 {
			coeff = numNeg(coeff)
		}
		terms = append(terms, distributeSeries(tp, coeff, varKey))
	}
	return AddOf(terms...), false, nil
}

// ============================================================
// Rational helpers
// ============================================================

func numFromRat(r *big.Rat) *Num {
	return &Num{val: new(big.Rat).Set(r)}
}

func floorRat(r *big.Rat) int {
	q := new(big.Int).Quo(r.Num(), r.Denom())
	if r.Sign() < 0 && !r.IsInt() {
		q.Sub(q, big.NewInt(1))
	}
	return int(q.Int64())
}

func ceilRat(r *big.Rat) int {
	if r.IsInt() {
		return int(new(big.Int).Quo(r.Num(), r.Denom()).Int64())
	}
	return floorRat(r) + 1
}

func maxRat(a, b *big.Rat) *big.Rat {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
