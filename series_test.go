package symgo_test

import (
	"bytes"
	"fmt"
	"math"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	symgo "github.com/njchilds90/symgo"
)

// ============================================================
// Order nodes
// ============================================================

func TestOrder_DropsNumericCoefficient(t *testing.T) {
	x := symgo.S("x")
	o := symgo.OrderOf(symgo.MulOf(symgo.N(3), symgo.PowOf(x, symgo.N(2))), "x")
	assert.Equal(t, "O(x^2)", o.String())
}

func TestOrder_ZeroPayloadCollapses(t *testing.T) {
	assert.Equal(t, "0", symgo.OrderOf(symgo.N(0), "x").String())
}

func TestOrder_SumKeepsDominantTerm(t *testing.T) {
	x := symgo.S("x")
	o := symgo.OrderOf(symgo.AddOf(x, symgo.PowOf(x, symgo.N(3))), "x")
	assert.Equal(t, "O(x)", o.String())
}

func TestOrder_RemoveOrderStripsRemainder(t *testing.T) {
	x := symgo.S("x")
	s, err := symgo.NSeries(symgo.Sin(x), "x", 4)
	require.NoError(t, err)
	assert.Equal(t, "x + -1/6*x^3", symgo.RemoveOrder(s, "x").String())
}

// ============================================================
// Taylor expansion around the origin
// ============================================================

func TestNSeries_Sin(t *testing.T) {
	x := symgo.S("x")
	s4, err := symgo.NSeries(symgo.Sin(x), "x", 4)
	require.NoError(t, err)
	assert.Equal(t, "x + -1/6*x^3 + O(x^4)", s4.String())

	s6, err := symgo.NSeries(symgo.Sin(x), "x", 6)
	require.NoError(t, err)
	assert.Equal(t, "x + -1/6*x^3 + 1/120*x^5 + O(x^6)", s6.String())
}

func TestNSeries_GenericRecurrence(t *testing.T) {
	// tan has no explicit term recurrence; its series comes from repeated
	// symbolic differentiation.
	s, err := symgo.NSeries(symgo.Tan(symgo.S("x")), "x", 5)
	require.NoError(t, err)
	assert.Equal(t, "x + 1/3*x^3 + O(x^5)", s.String())
}

func TestNSeries_ExactPolynomialHasNoRemainder(t *testing.T) {
	x := symgo.S("x")
	e := symgo.AddOf(symgo.N(1), x, symgo.PowOf(x, symgo.N(2)))
	s, err := symgo.NSeries(e, "x", 5)
	require.NoError(t, err)
	assert.Equal(t, "1 + x + x^2", s.String())
}

func TestNSeries_VariableFreeExpressionPassesThrough(t *testing.T) {
	s, err := symgo.NSeries(symgo.Sin(symgo.S("y")), "x", 3)
	require.NoError(t, err)
	assert.Equal(t, "sin(y)", s.String())
}

func TestNSeries_CompositeArgument(t *testing.T) {
	x := symgo.S("x")
	s, err := symgo.NSeries(symgo.Exp(symgo.Sin(x)), "x", 3)
	require.NoError(t, err)
	assert.Equal(t, "1 + x + 1/2*x^2 + O(x^3)", s.String())
}

func TestNSeries_NonzeroArgumentValue(t *testing.T) {
	x := symgo.S("x")
	s, err := symgo.NSeries(symgo.Cos(symgo.AddOf(x, symgo.N(1))), "x", 2)
	require.NoError(t, err)
	assert.Equal(t, "cos(1) + -1*sin(1)*x + O(x^2)", s.String())
}

func TestNSeries_RemainderBoundsTruncationError(t *testing.T) {
	x := symgo.S("x")
	s, err := symgo.NSeries(symgo.Sin(x), "x", 6)
	require.NoError(t, err)
	poly := symgo.RemoveOrder(s, "x").Sub("x", symgo.F(1, 10)).Simplify()
	v, ok := poly.Eval()
	require.True(t, ok)
	assert.InDelta(t, math.Sin(0.1), v.Float64(), 1e-9)
}

func TestNSeries_ReexpansionYieldsPrefix(t *testing.T) {
	x := symgo.S("x")
	s6, err := symgo.NSeries(symgo.Sin(x), "x", 6)
	require.NoError(t, err)
	s4, err := symgo.NSeries(s6, "x", 4)
	require.NoError(t, err)
	direct, err := symgo.NSeries(symgo.Sin(x), "x", 4)
	require.NoError(t, err)
	assert.Equal(t, direct.String(), s4.String())
}

// ============================================================
// Quotients and internal cancellation
// ============================================================

func TestNSeries_SinOverX(t *testing.T) {
	x := symgo.S("x")
	e := symgo.MulOf(symgo.Sin(x), symgo.PowOf(x, symgo.N(-1)))
	s, err := symgo.NSeries(e, "x", 4)
	require.NoError(t, err)
	assert.Equal(t, "1 + -1/6*x^2 + O(x^4)", s.String())
}

func TestNSeries_GeometricInverse(t *testing.T) {
	x := symgo.S("x")
	e := symgo.PowOf(symgo.AddOf(symgo.N(1), x), symgo.N(-1))
	s, err := symgo.NSeries(e, "x", 3)
	require.NoError(t, err)
	assert.Equal(t, "1 + -1*x + x^2 + O(x^3)", s.String())
}

// ============================================================
// Poles and unsupported shapes
// ============================================================

func TestNSeries_SimplePoleIsRejected(t *testing.T) {
	_, err := symgo.NSeries(symgo.PowOf(symgo.S("x"), symgo.N(-1)), "x", 4)
	require.Error(t, err)
	assert.True(t, symgo.IsPoleError(err))
}

func TestNSeries_EssentialSingularityIsRejected(t *testing.T) {
	x := symgo.S("x")
	_, err := symgo.NSeries(symgo.Exp(symgo.PowOf(x, symgo.N(-1))), "x", 2)
	require.Error(t, err)
	assert.True(t, symgo.IsPoleError(err))
}

func TestNSeries_UnrestrictedArityIsNotImplemented(t *testing.T) {
	f := symgo.UndefinedFunc("fser")
	_, err := symgo.NSeries(symgo.Apply(f, symgo.S("x")), "x", 2)
	require.Error(t, err)
	assert.True(t, symgo.IsNotImplementedError(err))
}

func TestNSeries_OpaqueDerivativesAreNotImplemented(t *testing.T) {
	g := symgo.UndefinedFuncN("gser", 1)
	_, err := symgo.NSeries(symgo.Apply(g, symgo.S("x")), "x", 3)
	require.Error(t, err)
	assert.True(t, symgo.IsNotImplementedError(err))
}

func TestNSeries_NegativeOrderPanics(t *testing.T) {
	assert.Panics(t, func() { _, _ = symgo.NSeries(symgo.Sin(symgo.S("x")), "x", -1) })
}

// ============================================================
// Logarithmic singularities
// ============================================================

func TestNSeries_LogOfVariableIsExact(t *testing.T) {
	s, err := symgo.NSeries(symgo.Log(symgo.S("x")), "x", 4)
	require.NoError(t, err)
	assert.Equal(t, "log(x)", s.String())
}

func TestNSeries_LogOfInverseVariable(t *testing.T) {
	x := symgo.S("x")
	s, err := symgo.NSeries(symgo.Log(symgo.PowOf(x, symgo.N(-1))), "x", 3)
	require.NoError(t, err)
	assert.Equal(t, "-1*log(x)", s.String())
}

func TestNSeries_LogarithmicArgumentStaysWrapped(t *testing.T) {
	x := symgo.S("x")
	s, err := symgo.NSeries(symgo.Cos(symgo.Log(x)), "x", 2)
	require.NoError(t, err)
	assert.Equal(t, "cos(log(x))", s.String())
}

// ============================================================
// Derivative nodes
// ============================================================

func TestNSeries_OfUnevaluatedDerivative(t *testing.T) {
	x := symgo.S("x")
	d := symgo.NewDerivative(symgo.Sin(x), false, x)
	s, err := symgo.NSeries(d, "x", 4)
	require.NoError(t, err)
	assert.Equal(t, "1 + -1/2*x^2 + O(x^3)", s.String())
}

// ============================================================
// Golden catalog
// ============================================================

func TestNSeries_Catalog(t *testing.T) {
	x := symgo.S("x")
	cases := []struct {
		expr symgo.Expr
		n    int
	}{
		{symgo.Sin(x), 6},
		{symgo.Cos(x), 4},
		{symgo.Exp(x), 3},
		{symgo.Log(symgo.AddOf(symgo.N(1), x)), 3},
		{symgo.MulOf(symgo.Sin(x), symgo.PowOf(x, symgo.N(-1))), 4},
		{symgo.PowOf(symgo.AddOf(symgo.N(1), x), symgo.N(-1)), 3},
		{symgo.Log(symgo.PowOf(x, symgo.N(-1))), 3},
		{symgo.Cos(symgo.Log(x)), 2},
	}

	var buf bytes.Buffer
	for _, c := range cases {
		s, err := symgo.NSeries(c.expr, "x", c.n)
		require.NoError(t, err, "expanding %s", c.expr)
		fmt.Fprintf(&buf, "%s @ %d: %s\n", c.expr, c.n, s)
	}

	g := goldie.New(t)
	g.Assert(t, "series_catalog", buf.Bytes())
}
