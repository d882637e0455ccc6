package symgo

import (
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/cockroachdb/apd/v3"
)

// ============================================================
// EvalF — arbitrary-precision numeric evaluation
// ============================================================

const defaultPrecision = 34

var currentPrecision atomic.Uint32

func init() { currentPrecision.Store(defaultPrecision) }

// DefaultPrecision returns the decimal precision used when an expression is
// forced through numeric evaluation.
func DefaultPrecision() uint32 { return currentPrecision.Load() }

// SetDefaultPrecision changes the process-wide evaluation precision.
func SetDefaultPrecision(digits uint32) {
	if digits < 1 {
		argPanic("SetDefaultPrecision", "precision must be at least 1 digit")
	}
	currentPrecision.Store(digits)
}

// EvalF evaluates an expression with no free symbols to a floating-point
// literal with the given number of significant decimal digits. The result
// carries the approximate flag, so further arithmetic stays numeric.
func EvalF(e Expr, digits uint32) (*Num, error) {
	return evalFCanonical(e.Simplify(), digits)
}

// evalFCanonical evaluates an expression that is already in canonical form.
// The construction pipeline calls it directly when a float argument forces
// numeric evaluation: simplifying there would re-enter the very construction
// being completed.
func evalFCanonical(e Expr, digits uint32) (*Num, error) {
	// Guard digits absorb rounding in intermediate steps.
	ctx := apd.BaseContext.WithPrecision(digits + 4)
	d, err := evalDecimal(e, ctx)
	if err != nil {
		return nil, err
	}
	rounded := new(apd.Decimal)
	if _, err := apd.BaseContext.WithPrecision(digits).Round(rounded, d); err != nil {
		return nil, err
	}
	r, ok := new(big.Rat).SetString(rounded.Text('f'))
	if !ok {
		return nil, fmt.Errorf("symgo: cannot convert %s to a rational", rounded.Text('f'))
	}
	return &Num{val: r, approx: true}, nil
}

func evalDecimal(e Expr, ctx *apd.Context) (*apd.Decimal, error) {
	switch v := e.(type) {
	case *Num:
		num, _, err := apd.NewFromString(v.val.Num().String())
		if err != nil {
			return nil, err
		}
		den, _, err := apd.NewFromString(v.val.Denom().String())
		if err != nil {
			return nil, err
		}
		out := new(apd.Decimal)
		if _, err := ctx.Quo(out, num, den); err != nil {
			return nil, err
		}
		return out, nil

	case *Add:
		sum := new(apd.Decimal)
		for _, t := range v.terms {
			d, err := evalDecimal(t, ctx)
			if err != nil {
				return nil, err
			}
			if _, err := ctx.Add(sum, sum, d); err != nil {
				return nil, err
			}
		}
		return sum, nil

	case *Mul:
		prod := apd.New(1, 0)
		for _, f := range v.factors {
			d, err := evalDecimal(f, ctx)
			if err != nil {
				return nil, err
			}
			if _, err := ctx.Mul(prod, prod, d); err != nil {
				return nil, err
			}
		}
		return prod, nil

	case *Pow:
		base, err := evalDecimal(v.base, ctx)
		if err != nil {
			return nil, err
		}
		exp, err := evalDecimal(v.exp, ctx)
		if err != nil {
			return nil, err
		}
		out := new(apd.Decimal)
		if _, err := ctx.Pow(out, base, exp); err != nil {
			return nil, err
		}
		return out, nil

	case *AppliedFunc:
		return evalDecimalFunc(v, ctx)

	case *Sym:
		return nil, fmt.Errorf("symgo: cannot numerically evaluate free symbol %s", v.String())
	}
	return nil, fmt.Errorf("symgo: cannot numerically evaluate %s", e.String())
}

func evalDecimalFunc(f *AppliedFunc, ctx *apd.Context) (*apd.Decimal, error) {
	if len(f.args) != 1 {
		return nil, fmt.Errorf("symgo: cannot numerically evaluate %s", f.String())
	}
	x, err := evalDecimal(f.args[0], ctx)
	if err != nil {
		return nil, err
	}
	out := new(apd.Decimal)
	switch f.def.Name {
	case "exp":
		_, err = ctx.Exp(out, x)
	case "log":
		_, err = ctx.Ln(out, x)
	case "sin":
		return decimalSin(x, ctx)
	case "cos":
		return decimalCos(x, ctx)
	case "tan":
		s, serr := decimalSin(x, ctx)
		if serr != nil {
			return nil, serr
		}
		c, cerr := decimalCos(x, ctx)
		if cerr != nil {
			return nil, cerr
		}
		_, err = ctx.Quo(out, s, c)
	case "sinh":
		return decimalExpCombine(x, ctx, -1)
	case "cosh":
		return decimalExpCombine(x, ctx, 1)
	case "tanh":
		s, serr := decimalExpCombine(x, ctx, -1)
		if serr != nil {
			return nil, serr
		}
		c, cerr := decimalExpCombine(x, ctx, 1)
		if cerr != nil {
			return nil, cerr
		}
		_, err = ctx.Quo(out, s, c)
	case "atan":
		return decimalAtan(x, ctx)
	case "asin":
		return decimalAsin(x, ctx)
	case "acos":
		a, aerr := decimalAsin(x, ctx)
		if aerr != nil {
			return nil, aerr
		}
		pi, perr := decimalPi(ctx)
		if perr != nil {
			return nil, perr
		}
		half := new(apd.Decimal)
		if _, err := ctx.Quo(half, pi, apd.New(2, 0)); err != nil {
			return nil, err
		}
		_, err = ctx.Sub(out, half, a)
	default:
		return nil, fmt.Errorf("symgo: no numeric evaluation for %s", f.def.Name)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// decimalSin computes sin by Taylor series after reducing the argument
// modulo 2*pi.
func decimalSin(x *apd.Decimal, ctx *apd.Context) (*apd.Decimal, error) {
	r, err := reduceAngle(x, ctx)
	if err != nil {
		return nil, err
	}
	return taylorLoop(r, ctx, true)
}

func decimalCos(x *apd.Decimal, ctx *apd.Context) (*apd.Decimal, error) {
	r, err := reduceAngle(x, ctx)
	if err != nil {
		return nil, err
	}
	return taylorLoop(r, ctx, false)
}

// taylorLoop sums the sine (odd) or cosine (even) series until the running
// term drops below the context precision.
func taylorLoop(x *apd.Decimal, ctx *apd.Context, odd bool) (*apd.Decimal, error) {
	x2 := new(apd.Decimal)
	if _, err := ctx.Mul(x2, x, x); err != nil {
		return nil, err
	}
	term := apd.New(1, 0)
	k := int64(0)
	if odd {
		term.Set(x)
		k = 1
	}
	sum := new(apd.Decimal).Set(term)
	for i := 0; i < 4*int(ctx.Precision)+16; i++ {
		// term *= -x^2 / ((k+1)(k+2))
		if _, err := ctx.Mul(term, term, x2); err != nil {
			return nil, err
		}
		if _, err := ctx.Quo(term, term, apd.New(-(k+1)*(k+2), 0)); err != nil {
			return nil, err
		}
		k += 2
		if _, err := ctx.Add(sum, sum, term); err != nil {
			return nil, err
		}
		if termNegligible(term, sum, ctx) {
			return sum, nil
		}
	}
	return sum, nil
}

func termNegligible(term, sum *apd.Decimal, ctx *apd.Context) bool {
	if term.IsZero() {
		return true
	}
	mag := int64(term.Exponent) + term.NumDigits()
	ref := int64(sum.Exponent) + sum.NumDigits()
	if sum.IsZero() {
		ref = 0
	}
	return mag < ref-int64(ctx.Precision)-2
}

// reduceAngle maps x into (-pi, pi] by subtracting the nearest multiple of
// 2*pi.
func reduceAngle(x *apd.Decimal, ctx *apd.Context) (*apd.Decimal, error) {
	pi, err := decimalPi(ctx)
	if err != nil {
		return nil, err
	}
	twoPi := new(apd.Decimal)
	if _, err := ctx.Mul(twoPi, pi, apd.New(2, 0)); err != nil {
		return nil, err
	}
	q := new(apd.Decimal)
	if _, err := ctx.Quo(q, x, twoPi); err != nil {
		return nil, err
	}
	n := new(apd.Decimal)
	if _, err := ctx.RoundToIntegralValue(n, q); err != nil {
		return nil, err
	}
	shift := new(apd.Decimal)
	if _, err := ctx.Mul(shift, n, twoPi); err != nil {
		return nil, err
	}
	out := new(apd.Decimal)
	if _, err := ctx.Sub(out, x, shift); err != nil {
		return nil, err
	}
	return out, nil
}

// decimalPi computes pi with Machin's formula,
// pi = 16*atan(1/5) - 4*atan(1/239).
func decimalPi(ctx *apd.Context) (*apd.Decimal, error) {
	inner := apd.BaseContext.WithPrecision(ctx.Precision + 6)
	a5, err := atanInverse(5, inner)
	if err != nil {
		return nil, err
	}
	a239, err := atanInverse(239, inner)
	if err != nil {
		return nil, err
	}
	out := new(apd.Decimal)
	if _, err := inner.Mul(a5, a5, apd.New(16, 0)); err != nil {
		return nil, err
	}
	if _, err := inner.Mul(a239, a239, apd.New(4, 0)); err != nil {
		return nil, err
	}
	if _, err := ctx.Sub(out, a5, a239); err != nil {
		return nil, err
	}
	return out, nil
}

// atanInverse computes atan(1/m) by the alternating series; it converges
// quickly for m >= 2.
func atanInverse(m int64, ctx *apd.Context) (*apd.Decimal, error) {
	x := new(apd.Decimal)
	if _, err := ctx.Quo(x, apd.New(1, 0), apd.New(m, 0)); err != nil {
		return nil, err
	}
	return atanSeries(x, ctx)
}

func atanSeries(x *apd.Decimal, ctx *apd.Context) (*apd.Decimal, error) {
	x2 := new(apd.Decimal)
	if _, err := ctx.Mul(x2, x, x); err != nil {
		return nil, err
	}
	pow := new(apd.Decimal).Set(x)
	sum := new(apd.Decimal).Set(x)
	term := new(apd.Decimal)
	for k := int64(1); k < 8*int64(ctx.Precision)+32; k++ {
		if _, err := ctx.Mul(pow, pow, x2); err != nil {
			return nil, err
		}
		if _, err := ctx.Quo(term, pow, apd.New(2*k+1, 0)); err != nil {
			return nil, err
		}
		if k%2 == 1 {
			if _, err := ctx.Sub(sum, sum, term); err != nil {
				return nil, err
			}
		} else {
			if _, err := ctx.Add(sum, sum, term); err != nil {
				return nil, err
			}
		}
		if termNegligible(term, sum, ctx) {
			return sum, nil
		}
	}
	return sum, nil
}

// decimalAtan reduces |x| below 1/2 with atan(x) = 2*atan(x/(1+sqrt(1+x^2)))
// and then sums the series.
func decimalAtan(x *apd.Decimal, ctx *apd.Context) (*apd.Decimal, error) {
	half := apd.New(5, -1)
	doublings := int64(0)
	cur := new(apd.Decimal).Set(x)
	abs := new(apd.Decimal)
	for i := 0; i < 64; i++ {
		abs.Abs(cur)
		if abs.Cmp(half) <= 0 {
			break
		}
		x2 := new(apd.Decimal)
		if _, err := ctx.Mul(x2, cur, cur); err != nil {
			return nil, err
		}
		if _, err := ctx.Add(x2, x2, apd.New(1, 0)); err != nil {
			return nil, err
		}
		root := new(apd.Decimal)
		if _, err := ctx.Sqrt(root, x2); err != nil {
			return nil, err
		}
		if _, err := ctx.Add(root, root, apd.New(1, 0)); err != nil {
			return nil, err
		}
		if _, err := ctx.Quo(cur, cur, root); err != nil {
			return nil, err
		}
		doublings++
	}
	sum, err := atanSeries(cur, ctx)
	if err != nil {
		return nil, err
	}
	for ; doublings > 0; doublings-- {
		if _, err := ctx.Mul(sum, sum, apd.New(2, 0)); err != nil {
			return nil, err
		}
	}
	return sum, nil
}

// decimalAsin uses asin(x) = atan(x / sqrt(1 - x^2)).
func decimalAsin(x *apd.Decimal, ctx *apd.Context) (*apd.Decimal, error) {
	x2 := new(apd.Decimal)
	if _, err := ctx.Mul(x2, x, x); err != nil {
		return nil, err
	}
	if _, err := ctx.Sub(x2, apd.New(1, 0), x2); err != nil {
		return nil, err
	}
	if x2.Sign() < 0 {
		return nil, fmt.Errorf("symgo: asin argument out of range")
	}
	root := new(apd.Decimal)
	if _, err := ctx.Sqrt(root, x2); err != nil {
		return nil, err
	}
	if root.IsZero() {
		pi, err := decimalPi(ctx)
		if err != nil {
			return nil, err
		}
		out := new(apd.Decimal)
		if _, err := ctx.Quo(out, pi, apd.New(2, 0)); err != nil {
			return nil, err
		}
		if x.Sign() < 0 {
			out.Neg(out)
		}
		return out, nil
	}
	q := new(apd.Decimal)
	if _, err := ctx.Quo(q, x, root); err != nil {
		return nil, err
	}
	return decimalAtan(q, ctx)
}

// decimalExpCombine computes (e^x + sign*e^-x) / 2.
func decimalExpCombine(x *apd.Decimal, ctx *apd.Context, sign int64) (*apd.Decimal, error) {
	up := new(apd.Decimal)
	if _, err := ctx.Exp(up, x); err != nil {
		return nil, err
	}
	neg := new(apd.Decimal).Neg(x)
	down := new(apd.Decimal)
	if _, err := ctx.Exp(down, neg); err != nil {
		return nil, err
	}
	if _, err := ctx.Mul(down, down, apd.New(sign, 0)); err != nil {
		return nil, err
	}
	out := new(apd.Decimal)
	if _, err := ctx.Add(out, up, down); err != nil {
		return nil, err
	}
	if _, err := ctx.Quo(out, out, apd.New(2, 0)); err != nil {
		return nil, err
	}
	return out, nil
}
