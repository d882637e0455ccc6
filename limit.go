package symgo

import (
	"math"
	"math/big"
)

// ============================================================
// Limits
// ============================================================

type LimitResult struct {
	Value   Expr
	Success bool
	Error   string
}

// Limit computes the limit of expr as varName approaches point. Infinite
// limits are reported as Inf values rather than failures.
func Limit(expr Expr, varName string, point Expr) LimitResult {
	return limitRecursive(expr, varName, point, 5)
}

func limitRecursive(expr Expr, varName string, point Expr, maxLhopital int) LimitResult {
	expr = expr.Simplify()
	subbed := expr.Sub(varName, point).Simplify()
	if v, ok := subbed.Eval(); ok {
		f := v.Float64()
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			return LimitResult{Value: subbed, Success: true}
		}
	}
	if isInf(subbed) {
		return LimitResult{Value: subbed, Success: true}
	}
	if _, hasVar := FreeSymbols(subbed)[varName]; !hasVar && !isNaN(subbed) {
		return LimitResult{Value: subbed, Success: true}
	}

	// 0/0 quotients go through L'Hopital.
	if maxLhopital > 0 {
		if num, denom, ok := extractQuotient(expr); ok {
			numAtPoint := num.Sub(varName, point).Simplify()
			denAtPoint := denom.Sub(varName, point).Simplify()
			nv, nok := numAtPoint.Eval()
			dv, dok := denAtPoint.Eval()
			if nok && dok && nv.IsZero() && dv.IsZero() {
				dNum := Diff(num, varName)
				dDen := Diff(denom, varName)
				return limitRecursive(MulOf(dNum, PowOf(dDen, N(-1))), varName, point, maxLhopital-1)
			}
		}
	}

	// Around a finite point, leading-power analysis of the shifted
	// expression decides between a finite value and a signed infinity.
	if pn, ok := point.(*Num); ok {
		shifted := expr
		if !pn.IsZero() {
			shifted = expr.Sub(varName, AddOf(S(varName), pn)).Simplify()
		}
		if v, ok2 := limitAtZero(shifted, varName); ok2 {
			return LimitResult{Value: v, Success: true}
		}
	}

	return LimitResult{
		Error:   "limit could not be determined: " + expr.String() + " as " + varName + " -> " + point.String(),
		Success: false,
	}
}

func extractQuotient(e Expr) (num, denom Expr, ok bool) {
	m, isMul := e.(*Mul)
	if !isMul {
		return nil, nil, false
	}
	var numFactors, denomFactors []Expr
	for _, f := range m.factors {
		if p, isPow := f.(*Pow); isPow {
			if en, isNum := p.exp.(*Num); isNum && en.IsNegOne() {
				denomFactors = append(denomFactors, p.base)
				continue
			}
		}
		numFactors = append(numFactors, f)
	}
	if len(denomFactors) == 0 {
		return nil, nil, false
	}
	return MulOf(numFactors...), MulOf(denomFactors...), true
}

// ============================================================
// Leading-power analysis at the origin
// ============================================================

// leadingPower writes e ~ coeff * x^q as x -> 0+ when e has a clean
// power-law leading behavior. It reports ok=false on cancellation, on log
// terms, and on anything it cannot classify; callers fall back to series in
// that case.
func leadingPower(e Expr, varKey string) (coeff Expr, q *big.Rat, ok bool) {
	switch v := e.(type) {
	case *Num:
		if v.IsZero() {
			return nil, nil, false
		}
		return v, new(big.Rat), true
	case *Sym:
		if v.Key() == varKey {
			return N(1), big.NewRat(1, 1), true
		}
		return v, new(big.Rat), true
	case *Inf, *NaN:
		return v, new(big.Rat), true
	case *Pow:
		en, isNum := v.exp.(*Num)
		if !isNum || containsVar(v.exp, varKey) {
			return nil, nil, false
		}
		bc, bq, bok := leadingPower(v.base, varKey)
		if !bok {
			return nil, nil, false
		}
		return PowOf(bc, en).Simplify(), new(big.Rat).Mul(bq, en.val), true
	case *Mul:
		totalQ := new(big.Rat)
		parts := make([]Expr, 0, len(v.factors))
		for _, f := range v.factors {
			fc, fq, fok := leadingPower(f, varKey)
			if !fok {
				return nil, nil, false
			}
			parts = append(parts, fc)
			totalQ.Add(totalQ, fq)
		}
		return MulOf(parts...), totalQ, true
	case *Add:
		var minQ *big.Rat
		var minCoeffs []Expr
		for _, t := range v.terms {
			if _, isOrder := t.(*Order); isOrder {
				continue
			}
			tc, tq, tok := leadingPower(t, varKey)
			if !tok {
				return nil, nil, false
			}
			switch {
			case minQ == nil || tq.Cmp(minQ) < 0:
				minQ = tq
				minCoeffs = []Expr{tc}
			case tq.Cmp(minQ) == 0:
				minCoeffs = append(minCoeffs, tc)
			}
		}
		if minQ == nil {
			return nil, nil, false
		}
		c := AddOf(minCoeffs...).Simplify()
		if n, isNum := c.(*Num); isNum && n.IsZero() {
			// Leading terms cancelled; the true order is higher.
			return nil, nil, false
		}
		return c, minQ, true
	case *AppliedFunc:
		return leadingPowerFunc(v, varKey)
	}
	return nil, nil, false
}

func leadingPowerFunc(f *AppliedFunc, varKey string) (Expr, *big.Rat, bool) {
	if len(f.args) != 1 {
		return nil, nil, false
	}
	arg := f.args[0]
	if !containsVar(arg, varKey) {
		return f, new(big.Rat), true
	}
	ac, aq, aok := leadingPower(arg, varKey)
	if !aok {
		return nil, nil, false
	}
	switch {
	case aq.Sign() > 0:
		// Argument vanishes. f(arg) ~ f(0) when that is finite and
		// nonzero; otherwise f(arg) ~ f'(0)*arg for simple zeros.
		at0 := Apply(f.def, N(0)).Simplify()
		if n, isNum := at0.(*Num); isNum {
			if !n.IsZero() {
				return at0, new(big.Rat), true
			}
			dAt0 := f.Fdiff(1).Sub(varKey, N(0)).Simplify()
			if dn, isNum2 := dAt0.(*Num); isNum2 && !dn.IsZero() {
				return MulOf(dn, ac).Simplify(), aq, true
			}
		}
		return nil, nil, false
	case aq.Sign() == 0:
		val := Apply(f.def, ac).Simplify()
		if !containsVar(val, varKey) {
			return val, new(big.Rat), true
		}
		return nil, nil, false
	default:
		// Argument blows up; no power-law leading behavior in general.
		return nil, nil, false
	}
}

// limitAtZero computes lim_{x->0+} e via direct substitution, falling back
// to leading-power analysis when substitution yields an indeterminate form.
func limitAtZero(e Expr, varKey string) (Expr, bool) {
	e = e.Simplify()
	if !containsVar(e, varKey) {
		return e, true
	}
	subbed := e.Sub(varKey, N(0)).Simplify()
	if !isNaN(subbed) && !containsVar(subbed, varKey) {
		if inf, ok := subbed.(*Inf); ok && inf.sign == 0 {
			// 0-denominators substitute to complex infinity; recover the
			// sign from the approach direction.
			if c, q, ok2 := leadingPower(e, varKey); ok2 && q.Sign() < 0 {
				return infFromSign(signOf(c)), true
			}
		}
		return subbed, true
	}
	c, q, ok := leadingPower(e, varKey)
	if !ok {
		return nil, false
	}
	switch {
	case q.Sign() > 0:
		return N(0), true
	case q.Sign() == 0:
		if !containsVar(c, varKey) {
			return c, true
		}
		return nil, false
	default:
		return infFromSign(signOf(c)), true
	}
}

func signOf(e Expr) int {
	if n, ok := e.(*Num); ok {
		return n.val.Sign()
	}
	if v, ok := e.Eval(); ok {
		return v.val.Sign()
	}
	return 0
}

func infFromSign(sign int) Expr {
	switch {
	case sign > 0:
		return PosInf
	case sign < 0:
		return NegInf
	}
	return ComplexInf
}
