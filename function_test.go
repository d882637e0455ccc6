package symgo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	symgo "github.com/njchilds90/symgo"
)

// ============================================================
// Canonical-form rules
// ============================================================

func TestFunc_SpecialValues(t *testing.T) {
	assert.Equal(t, "0", symgo.Sin(symgo.N(0)).String())
	assert.Equal(t, "1", symgo.Cos(symgo.N(0)).String())
	assert.Equal(t, "0", symgo.Tan(symgo.N(0)).String())
	assert.Equal(t, "1", symgo.Exp(symgo.N(0)).String())
	assert.Equal(t, "0", symgo.Log(symgo.N(1)).String())
	assert.Equal(t, "1", symgo.Cosh(symgo.N(0)).String())
}

func TestFunc_LogOfZeroIsComplexInfinity(t *testing.T) {
	assert.Equal(t, "zoo", symgo.Log(symgo.N(0)).String())
}

func TestFunc_LogExpCancellation(t *testing.T) {
	x := symgo.S("x")
	assert.Equal(t, "x", symgo.Log(symgo.Exp(x)).String())
	assert.Equal(t, "x", symgo.Exp(symgo.Log(x)).String())
}

func TestFunc_ExpAtInfinity(t *testing.T) {
	assert.Equal(t, "oo", symgo.Exp(symgo.PosInf).String())
	assert.Equal(t, "0", symgo.Exp(symgo.NegInf).String())
}

func TestFunc_OddReflection(t *testing.T) {
	x := symgo.S("x")
	assert.Equal(t, "-1*sin(3*x)", symgo.Sin(symgo.MulOf(symgo.N(-3), x)).String())
	assert.Equal(t, "-1*sin(2)", symgo.Sin(symgo.N(-2)).String())
	assert.Equal(t, "-1*tanh(x)", symgo.Tanh(symgo.MulOf(symgo.N(-1), x)).String())
}

func TestFunc_EvenReflection(t *testing.T) {
	x := symgo.S("x")
	assert.Equal(t, "cos(x)", symgo.Cos(symgo.MulOf(symgo.N(-1), x)).String())
	assert.Equal(t, "cosh(5*x)", symgo.Cosh(symgo.MulOf(symgo.N(-5), x)).String())
}

func TestFunc_SymbolicArgumentStands(t *testing.T) {
	assert.Equal(t, "sin(x)", symgo.Sin(symgo.S("x")).String())
	assert.Equal(t, "log(1 + x)", symgo.Log(symgo.AddOf(symgo.S("x"), symgo.N(1))).String())
}

// ============================================================
// Arity and registry
// ============================================================

func TestFunc_ArityMismatchPanics(t *testing.T) {
	h := symgo.UndefinedFuncN("arity2", 2)
	assert.PanicsWithError(t,
		"symgo: Apply: arity2 expects 2 argument(s), got 1",
		func() { symgo.Apply(h, symgo.S("x")) })
}

func TestFunc_DuplicateRegistrationPanics(t *testing.T) {
	symgo.RegisterFunc(&symgo.FuncDef{Name: "dupcheck", NArgs: 1})
	assert.Panics(t, func() {
		symgo.RegisterFunc(&symgo.FuncDef{Name: "dupcheck", NArgs: 1})
	})
}

func TestFunc_UndefinedFuncIsStable(t *testing.T) {
	a := symgo.UndefinedFunc("stable")
	b := symgo.UndefinedFunc("stable")
	assert.Same(t, a, b)
}

func TestFunc_RegistryContainsBuiltins(t *testing.T) {
	names := symgo.RegisteredFunctions()
	for _, want := range []string{
		"sin", "cos", "tan", "exp", "log",
		"sinh", "cosh", "tanh", "asin", "acos", "atan",
	} {
		assert.Contains(t, names, want)
	}
}

func TestFunc_BuiltinWrappersProduceApplications(t *testing.T) {
	x := symgo.S("x")
	for _, e := range []symgo.Expr{
		symgo.Sin(x), symgo.Cos(x), symgo.Tan(x), symgo.Exp(x), symgo.Log(x),
		symgo.Sinh(x), symgo.Cosh(x), symgo.Tanh(x),
		symgo.Asin(x), symgo.Acos(x), symgo.Atan(x),
	} {
		_, ok := e.(*symgo.AppliedFunc)
		assert.True(t, ok, e.String())
	}
}

// ============================================================
// Differentiation rules
// ============================================================

func TestFunc_ClosedFormDerivatives(t *testing.T) {
	x := symgo.S("x")
	assert.Equal(t, "cos(x)", symgo.Diff(symgo.Sin(x), x).String())
	assert.Equal(t, "-1*sin(x)", symgo.Diff(symgo.Cos(x), x).String())
	assert.Equal(t, "1 + tan(x)^2", symgo.Diff(symgo.Tan(x), x).String())
	assert.Equal(t, "exp(x)", symgo.Diff(symgo.Exp(x), x).String())
	assert.Equal(t, "x^(-1)", symgo.Diff(symgo.Log(x), x).String())
	assert.Equal(t, "cosh(x)", symgo.Diff(symgo.Sinh(x), x).String())
}

func TestFunc_ChainRule(t *testing.T) {
	x := symgo.S("x")
	d := symgo.Diff(symgo.Sin(symgo.PowOf(x, symgo.N(2))), x)
	assert.Equal(t, "2*cos(x^2)*x", d.String())
}

func TestFunc_ChainRuleDropsConstantArguments(t *testing.T) {
	x := symgo.S("x")
	g := symgo.UndefinedFuncN("mix2", 2)
	// Only the first argument depends on x; the second contributes nothing.
	d := symgo.Diff(symgo.Apply(g, x, symgo.N(3)), x)
	assert.Equal(t, "Derivative(mix2(x, 3), x)", d.String())
}

func TestFunc_FdiffIndexOutOfRangePanics(t *testing.T) {
	f := symgo.Sin(symgo.S("x")).(*symgo.AppliedFunc)
	assert.Panics(t, func() { f.Fdiff(2) })
	assert.Panics(t, func() { f.Fdiff(0) })
}

func TestFunc_FdiffCompoundArgumentUsesPlaceholder(t *testing.T) {
	x := symgo.S("x")
	g := symgo.UndefinedFuncN("opq1", 1)
	d := symgo.Diff(symgo.Apply(g, symgo.PowOf(x, symgo.N(2))), x)
	assert.Equal(t, "2*Derivative(opq1(_u), _u)*x", d.String())
}

// ============================================================
// Numeric forcing
// ============================================================

func TestFunc_FloatArgumentForcesEvaluation(t *testing.T) {
	r := symgo.Sin(symgo.NFloat(0.5))
	n, ok := r.(*symgo.Num)
	require.True(t, ok)
	assert.True(t, n.IsApprox())
	assert.InDelta(t, math.Sin(0.5), n.Float64(), 1e-12)
}

func TestFunc_FloatInsideSumForcesEvaluation(t *testing.T) {
	arg := symgo.AddOf(symgo.NFloat(0.25), symgo.F(1, 4))
	r := symgo.Cos(arg)
	n, ok := r.(*symgo.Num)
	require.True(t, ok)
	assert.True(t, n.IsApprox())
	assert.InDelta(t, math.Cos(0.5), n.Float64(), 1e-12)
}

func TestFunc_ExactArgumentStaysSymbolic(t *testing.T) {
	r := symgo.Sin(symgo.F(1, 2))
	assert.Equal(t, "sin(1/2)", r.String())
	v, ok := r.Eval()
	require.True(t, ok)
	assert.InDelta(t, math.Sin(0.5), v.Float64(), 1e-12)
}
