package symgo

import "math/big"

// ============================================================
// Expand — hint-driven structural expansion
// ============================================================

// Hints selects which rewrites Expand performs. The zero value disables
// everything; DefaultHints enables the standard set.
//
// Hints are applied in a fixed internal order and are not commutative:
// distributing products first (mul) can hide factored shapes from the log
// and power_base rewrites in the same pass. This mirrors long-standing
// behavior and is deliberate; callers needing a specific interleaving
// should call Expand repeatedly with one hint at a time.
type Hints struct {
	Mul         bool // distribute products over sums
	Log         bool // split logarithms of products and powers
	Multinomial bool // expand integer powers of sums
	PowerBase   bool // (a*b)^e -> a^e * b^e
	PowerExp    bool // a^(b+c) -> a^b * a^c
	Basic       bool // rebuild composite nodes from expanded children
	Trig        bool // angle-addition rewrites for sin and cos
	Func        bool // per-function rewrites via the definition hook
	Complex     bool // rewrite in terms of real and imaginary parts
	Deep        bool // recurse into function arguments and subtrees

	// Modulus, when positive, reduces integer coefficients of the expanded
	// result modulo this value.
	Modulus int64
}

// DefaultHints is the standard expansion: everything except the opt-in
// trig and func rewrites.
func DefaultHints() Hints {
	return Hints{
		Mul:         true,
		Log:         true,
		Multinomial: true,
		PowerBase:   true,
		PowerExp:    true,
		Basic:       true,
		Deep:        true,
	}
}

// Expand rewrites e according to the enabled hints, repeating until the
// expression stops changing.
func Expand(e Expr, h Hints) Expr {
	cur := e.Simplify()
	for i := 0; i < 16; i++ {
		next := expandPass(cur, h).Simplify()
		if next.Equal(cur) {
			cur = next
			break
		}
		cur = next
	}
	if h.Modulus > 1 {
		cur = reduceModulus(cur, h.Modulus).Simplify()
	}
	return cur
}

// ExpandMul distributes products over sums and nothing else.
func ExpandMul(e Expr) Expr { return Expand(e, Hints{Mul: true, Deep: true}) }

// ExpandLog splits logarithms of products and powers.
func ExpandLog(e Expr) Expr { return Expand(e, Hints{Log: true, Deep: true}) }

// ExpandMultinomial expands integer powers of sums without distributing
// other products.
func ExpandMultinomial(e Expr) Expr { return Expand(e, Hints{Multinomial: true, Deep: true}) }

// ExpandTrig applies the angle-addition formulas.
func ExpandTrig(e Expr) Expr { return Expand(e, Hints{Trig: true, Deep: true}) }

// ExpandFunc applies each function definition's expansion hook.
func ExpandFunc(e Expr) Expr { return Expand(e, Hints{Func: true, Deep: true}) }

// ExpandComplex rewrites in terms of real and imaginary parts. The node set
// carries no complex decomposition yet, so the hint recurses structurally
// and returns the canonical form unchanged.
func ExpandComplex(e Expr) Expr { return Expand(e, Hints{Complex: true, Deep: true}) }

// ExpandAll applies every rewrite including the opt-in ones.
func ExpandAll(e Expr) Expr {
	h := DefaultHints()
	h.Trig = true
	h.Func = true
	h.Complex = true
	return Expand(e, h)
}

func expandPass(e Expr, h Hints) Expr {
	switch v := e.(type) {
	case *Add:
		terms := make([]Expr, len(v.terms))
		for i, t := range v.terms {
			terms[i] = expandPass(t, h)
		}
		return AddOf(terms...)

	case *Mul:
		factors := make([]Expr, len(v.factors))
		for i, f := range v.factors {
			factors[i] = expandPass(f, h)
		}
		if h.Mul {
			if r, changed := distributeFactors(factors); changed {
				return expandPass(r, h)
			}
		}
		return MulOf(factors...)

	case *Pow:
		return expandPow(v, h)

	case *AppliedFunc:
		return expandApplied(v, h)

	case *Derivative:
		if h.Deep && h.Basic {
			return (&Derivative{expr: expandPass(v.expr, h), vars: v.vars}).Simplify()
		}
		return v

	case *Lambda:
		if h.Deep && h.Basic {
			return NewLambda(v.vars, expandPass(v.body, h))
		}
		return v
	}
	return e
}

// distributeFactors multiplies out the first sum found among the factors.
func distributeFactors(factors []Expr) (Expr, bool) {
	for i, f := range factors {
		a, ok := f.(*Add)
		if !ok {
			continue
		}
		rest := make([]Expr, 0, len(factors)-1)
		rest = append(rest, factors[:i]...)
		rest = append(rest, factors[i+1:]...)
		terms := make([]Expr, len(a.terms))
		for k, t := range a.terms {
			terms[k] = MulOf(append([]Expr{t}, rest...)...)
		}
		return AddOf(terms...), true
	}
	return nil, false
}

// mulTermwise multiplies a by the sum b term by term, so no factored sum
// survives in the result. Sum terms are themselves sum-free (Add flattens),
// which keeps the invariant across repeated calls.
func mulTermwise(a Expr, b *Add) Expr {
	left := []Expr{a}
	if s, ok := a.(*Add); ok {
		left = s.terms
	}
	terms := make([]Expr, 0, len(left)*len(b.terms))
	for _, ta := range left {
		for _, tb := range b.terms {
			terms = append(terms, MulOf(ta, tb))
		}
	}
	return AddOf(terms...).Simplify()
}

func expandPow(p *Pow, h Hints) Expr {
	base := p.base
	exp := p.exp
	if h.Deep {
		base = expandPass(base, h)
		exp = expandPass(exp, h)
	}

	// a^(b+c) -> a^b * a^c
	if h.PowerExp {
		if sum, ok := exp.(*Add); ok {
			factors := make([]Expr, len(sum.terms))
			for i, t := range sum.terms {
				factors[i] = PowOf(base, t)
			}
			// Canonicalization merges equal bases straight back; recursing
			// on the unchanged node would never terminate.
			if split := MulOf(factors...); !split.Equal(PowOf(base, exp)) {
				return expandPass(split, h)
			}
		}
	}

	// (a*b)^e -> a^e * b^e
	if h.PowerBase {
		if prod, ok := base.(*Mul); ok {
			factors := make([]Expr, len(prod.factors))
			for i, f := range prod.factors {
				factors[i] = PowOf(f, exp)
			}
			return expandPass(MulOf(factors...), h)
		}
	}

	// (a+b)^k for integer k > 1
	if h.Multinomial {
		if sum, ok := base.(*Add); ok {
			if n, ok2 := exp.(*Num); ok2 && n.IsInteger() && n.IsPositive() {
				k := n.val.Num().Int64()
				if k > 1 && k <= 64 {
					result := Expr(sum)
					for i := int64(1); i < k; i++ {
						result = mulTermwise(result, sum)
					}
					return result
				}
			}
		}
	}
	return PowOf(base, exp)
}

func expandApplied(f *AppliedFunc, h Hints) Expr {
	args := f.args
	if h.Deep && h.Basic {
		expanded := make([]Expr, len(args))
		for i, a := range args {
			expanded[i] = expandPass(a, h)
		}
		args = expanded
	}
	cur := Apply(f.def, args...)
	g, ok := cur.(*AppliedFunc)
	if !ok {
		return expandPass(cur, h)
	}

	if h.Log && g.def.Name == "log" {
		if r := expandLogArg(g.args[0]); r != nil {
			return expandPass(r, h)
		}
	}
	if h.Trig {
		if r := expandTrigNode(g); r != nil {
			return expandPass(r, h)
		}
	}
	if h.Func && g.def.ExpandFunc != nil {
		if r := g.def.ExpandFunc(g, h); r != nil {
			return expandPass(r, h)
		}
	}
	return g
}

// expandLogArg splits log(a*b) and log(a^k). The rewrite is unconditional;
// the tree carries no positivity assumptions.
func expandLogArg(arg Expr) Expr {
	switch v := arg.(type) {
	case *Mul:
		terms := make([]Expr, len(v.factors))
		for i, f := range v.factors {
			terms[i] = Log(f)
		}
		return AddOf(terms...)
	case *Pow:
		return MulOf(v.exp, Log(v.base))
	}
	return nil
}

// expandTrigNode applies the angle-addition formulas to sin and cos of
// sums. Other trigonometric shapes are left alone.
func expandTrigNode(f *AppliedFunc) Expr {
	if len(f.args) != 1 {
		return nil
	}
	sum, ok := f.args[0].(*Add)
	if !ok || len(sum.terms) < 2 {
		return nil
	}
	a := sum.terms[0]
	b := AddOf(sum.terms[1:]...)
	switch f.def.Name {
	case "sin":
		return AddOf(MulOf(Sin(a), Cos(b)), MulOf(Cos(a), Sin(b)))
	case "cos":
		return AddOf(MulOf(Cos(a), Cos(b)), MulOf(N(-1), Sin(a), Sin(b)))
	}
	return nil
}

// reduceModulus maps every rational-integer coefficient into [0, m).
func reduceModulus(e Expr, m int64) Expr {
	mod := big.NewInt(m)
	switch v := e.(type) {
	case *Num:
		if v.IsInteger() && !v.approx {
			r := new(big.Int).Mod(v.val.Num(), mod)
			return &Num{val: new(big.Rat).SetInt(r)}
		}
		return v
	case *Add:
		terms := make([]Expr, len(v.terms))
		for i, t := range v.terms {
			terms[i] = reduceModulus(t, m)
		}
		return AddOf(terms...)
	case *Mul:
		factors := make([]Expr, len(v.factors))
		for i, f := range v.factors {
			factors[i] = reduceModulus(f, m)
		}
		return MulOf(factors...)
	}
	return e
}
