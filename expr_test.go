package symgo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	symgo "github.com/njchilds90/symgo"
)

// ============================================================
// Num tests
// ============================================================

func TestNum_Integer(t *testing.T) {
	assert.Equal(t, "42", symgo.N(42).String())
}

func TestNum_Rational(t *testing.T) {
	assert.Equal(t, "1/3", symgo.F(1, 3).String())
}

func TestNum_DiffIsZero(t *testing.T) {
	assert.Equal(t, "0", symgo.Diff(symgo.N(5), "x").String())
}

func TestNum_ApproxPropagates(t *testing.T) {
	sum := symgo.AddOf(symgo.NFloat(0.5), symgo.F(1, 2))
	n, ok := sum.(*symgo.Num)
	require.True(t, ok)
	assert.True(t, n.IsApprox())
}

// ============================================================
// Sym tests
// ============================================================

func TestSym_String(t *testing.T) {
	assert.Equal(t, "x", symgo.S("x").String())
}

func TestSym_DummiesAreDistinct(t *testing.T) {
	a := symgo.Dummy("u")
	b := symgo.Dummy("u")
	assert.NotEqual(t, a.Key(), b.Key())
	assert.False(t, a.Equal(b))
}

func TestSym_DummySubstitutionNoCapture(t *testing.T) {
	d := symgo.Dummy("x")
	expr := symgo.AddOf(symgo.S("x"), d)
	subbed := expr.Sub("x", symgo.N(3)).Simplify()
	// Only the plain symbol is replaced; the dummy survives.
	assert.Equal(t, "3 + _x", subbed.String())
}

// ============================================================
// Add tests
// ============================================================

func TestAdd_CombinesLikeTerms(t *testing.T) {
	x := symgo.S("x")
	expr := symgo.AddOf(x, x, x, symgo.N(2))
	assert.Equal(t, "2 + 3*x", expr.String())
}

func TestAdd_OrdersByAscendingPower(t *testing.T) {
	x := symgo.S("x")
	expr := symgo.AddOf(symgo.PowOf(x, symgo.N(3)), symgo.N(1), x)
	assert.Equal(t, "1 + x + x^3", expr.String())
}

func TestAdd_CancellationToZero(t *testing.T) {
	x := symgo.S("x")
	expr := symgo.AddOf(x, symgo.MulOf(symgo.N(-1), x))
	assert.Equal(t, "0", expr.String())
}

func TestAdd_OppositeInfinitiesAreIndeterminate(t *testing.T) {
	assert.Equal(t, "nan", symgo.AddOf(symgo.PosInf, symgo.NegInf).String())
}

func TestAdd_InfinityAbsorbs(t *testing.T) {
	assert.Equal(t, "oo", symgo.AddOf(symgo.PosInf, symgo.N(5), symgo.S("x")).String())
}

// ============================================================
// Mul tests
// ============================================================

func TestMul_FoldsCoefficient(t *testing.T) {
	x := symgo.S("x")
	expr := symgo.MulOf(symgo.N(2), x, symgo.N(3))
	assert.Equal(t, "6*x", expr.String())
}

func TestMul_MergesBasesIntoPowers(t *testing.T) {
	x := symgo.S("x")
	expr := symgo.MulOf(x, x, symgo.PowOf(x, symgo.N(2)))
	assert.Equal(t, "x^4", expr.String())
}

func TestMul_ZeroTimesInfinityIsIndeterminate(t *testing.T) {
	assert.Equal(t, "nan", symgo.MulOf(symgo.N(0), symgo.PosInf).String())
}

func TestMul_NegativeTimesInfinity(t *testing.T) {
	assert.Equal(t, "-oo", symgo.MulOf(symgo.N(-2), symgo.PosInf).String())
}

// ============================================================
// Pow tests
// ============================================================

func TestPow_ZeroExponent(t *testing.T) {
	assert.Equal(t, "1", symgo.PowOf(symgo.S("x"), symgo.N(0)).String())
}

func TestPow_ZeroBaseNegativeExponent(t *testing.T) {
	assert.Equal(t, "zoo", symgo.PowOf(symgo.N(0), symgo.N(-1)).String())
}

func TestPow_IntegerFold(t *testing.T) {
	assert.Equal(t, "8", symgo.PowOf(symgo.N(2), symgo.N(3)).String())
	assert.Equal(t, "1/9", symgo.PowOf(symgo.N(3), symgo.N(-2)).String())
}

func TestPow_NestedExponentsCombine(t *testing.T) {
	x := symgo.S("x")
	expr := symgo.PowOf(symgo.PowOf(x, symgo.N(2)), symgo.N(3))
	assert.Equal(t, "x^6", expr.String())
}

func TestPow_DerivativeOfSymbolicExponent(t *testing.T) {
	x := symgo.S("x")
	d := symgo.Diff(symgo.PowOf(symgo.N(2), x), "x")
	assert.Equal(t, "2^x*log(2)", d.String())
}

// ============================================================
// Structural helpers
// ============================================================

func TestFreeSymbols_ExcludesLambdaBound(t *testing.T) {
	x := symgo.S("x")
	y := symgo.S("y")
	l := symgo.LambdaOf(x, symgo.AddOf(x, y))
	free := symgo.FreeSymbols(l)
	_, hasY := free["y"]
	assert.True(t, hasY)
	assert.Len(t, free, 1)
}

func TestSub_ReplacesEverywhere(t *testing.T) {
	x := symgo.S("x")
	expr := symgo.AddOf(symgo.PowOf(x, symgo.N(2)), symgo.MulOf(symgo.N(2), x))
	assert.Equal(t, "15", expr.Sub("x", symgo.N(3)).Simplify().String())
}
