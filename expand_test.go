package symgo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	symgo "github.com/njchilds90/symgo"
)

// ============================================================
// Expand tests
// ============================================================

func TestExpand_MulDistributes(t *testing.T) {
	x := symgo.S("x")
	e := symgo.MulOf(
		symgo.AddOf(x, symgo.N(1)),
		symgo.AddOf(x, symgo.N(2)),
	)
	assert.Equal(t, "2 + 3*x + x^2", symgo.ExpandMul(e).String())
}

func TestExpand_MulHintLeavesOtherStructureAlone(t *testing.T) {
	x, y := symgo.S("x"), symgo.S("y")
	logTerm := symgo.Log(symgo.MulOf(x, y))

	// mul distributes the outer product but must not split the logarithm.
	e := symgo.MulOf(symgo.AddOf(x, symgo.N(1)), logTerm)
	assert.Equal(t, "log(x*y) + log(x*y)*x", symgo.ExpandMul(e).String())

	// Untouched entirely without the log hint.
	assert.Equal(t, "log(x*y)", symgo.ExpandMul(logTerm).String())
}

func TestExpand_LogSplitsProductsAndPowers(t *testing.T) {
	x, y := symgo.S("x"), symgo.S("y")
	assert.Equal(t, "log(x) + log(y)", symgo.ExpandLog(symgo.Log(symgo.MulOf(x, y))).String())
	assert.Equal(t, "3*log(x)", symgo.ExpandLog(symgo.Log(symgo.PowOf(x, symgo.N(3)))).String())
}

func TestExpand_Multinomial(t *testing.T) {
	x := symgo.S("x")
	square := symgo.PowOf(symgo.AddOf(x, symgo.N(1)), symgo.N(2))
	assert.Equal(t, "1 + 2*x + x^2", symgo.ExpandMultinomial(square).String())

	// Higher powers distribute fully without needing the mul hint.
	cube := symgo.PowOf(symgo.AddOf(x, symgo.N(1)), symgo.N(3))
	assert.Equal(t, "1 + 3*x + 3*x^2 + x^3", symgo.ExpandMultinomial(cube).String())

	// The multinomial hint alone does not distribute plain products.
	prod := symgo.MulOf(symgo.AddOf(x, symgo.N(1)), symgo.AddOf(x, symgo.N(2)))
	assert.Equal(t, "(1 + x)*(2 + x)", symgo.ExpandMultinomial(prod).String())
}

func TestExpand_PowerBase(t *testing.T) {
	x, y := symgo.S("x"), symgo.S("y")
	e := symgo.PowOf(symgo.MulOf(x, y), symgo.N(2))
	got := symgo.Expand(e, symgo.Hints{PowerBase: true, Deep: true})
	assert.Equal(t, "x^2*y^2", got.String())
}

func TestExpand_PowerExpUndoneByCanonicalization(t *testing.T) {
	x := symgo.S("x")
	a, b := symgo.S("a"), symgo.S("b")
	e := symgo.PowOf(x, symgo.AddOf(a, b))
	// The split x^a*x^b merges straight back; the fixpoint loop must
	// terminate with the canonical form.
	got := symgo.Expand(e, symgo.Hints{PowerExp: true, Deep: true})
	assert.Equal(t, "x^(a + b)", got.String())
}

func TestExpand_TrigIsOptIn(t *testing.T) {
	x, y := symgo.S("x"), symgo.S("y")
	sum := symgo.AddOf(x, y)

	assert.Equal(t, "sin(x + y)", symgo.Expand(symgo.Sin(sum), symgo.DefaultHints()).String())
	assert.Equal(t, "cos(x)*sin(y) + cos(y)*sin(x)", symgo.ExpandTrig(symgo.Sin(sum)).String())
	assert.Equal(t, "cos(x)*cos(y) + -1*sin(x)*sin(y)", symgo.ExpandTrig(symgo.Cos(sum)).String())
}

func TestExpand_FuncHintUsesDefinitionHook(t *testing.T) {
	def := symgo.RegisterFunc(&symgo.FuncDef{
		Name:  "twice",
		NArgs: 1,
		ExpandFunc: func(f *symgo.AppliedFunc, _ symgo.Hints) symgo.Expr {
			return symgo.MulOf(symgo.N(2), f.Args()[0])
		},
	})
	e := symgo.Apply(def, symgo.S("x"))
	assert.Equal(t, "2*x", symgo.ExpandFunc(e).String())
	assert.Equal(t, "twice(x)", symgo.ExpandMul(e).String())
}

func TestExpand_DeepReachesFunctionArguments(t *testing.T) {
	x := symgo.S("x")
	e := symgo.Sin(symgo.MulOf(symgo.AddOf(x, symgo.N(1)), x))
	assert.Equal(t, "sin(x + x^2)", symgo.Expand(e, symgo.DefaultHints()).String())
}

func TestExpand_Modulus(t *testing.T) {
	x := symgo.S("x")
	square := symgo.PowOf(symgo.AddOf(x, symgo.N(1)), symgo.N(2))
	h := symgo.Hints{Multinomial: true, Deep: true, Modulus: 2}
	assert.Equal(t, "1 + x^2", symgo.Expand(square, h).String())
}

func TestExpand_ComplexHintRecursesWithoutRewrites(t *testing.T) {
	x, y := symgo.S("x"), symgo.S("y")
	// No node carries a real/imaginary decomposition; the hint recurses
	// structurally and terminates with the canonical form.
	e := symgo.Sin(symgo.AddOf(x, symgo.MulOf(y, y)))
	assert.Equal(t, "sin(x + y^2)", symgo.ExpandComplex(e).String())
	got := symgo.Expand(symgo.Log(symgo.MulOf(x, y)), symgo.Hints{Complex: true, Deep: true})
	assert.Equal(t, "log(x*y)", got.String())
}

func TestExpand_AllCombinesEverything(t *testing.T) {
	x, y := symgo.S("x"), symgo.S("y")
	e := symgo.MulOf(symgo.N(2), symgo.Log(symgo.MulOf(x, y)))
	assert.Equal(t, "2*log(x) + 2*log(y)", symgo.ExpandAll(e).String())
}
