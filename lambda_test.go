package symgo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	symgo "github.com/njchilds90/symgo"
)

// ============================================================
// Lambda tests
// ============================================================

func TestLambda_String(t *testing.T) {
	x := symgo.S("x")
	l := symgo.LambdaOf(x, symgo.PowOf(x, symgo.N(2)))
	assert.Equal(t, "Lambda(_x, _x^2)", l.String())
}

func TestLambda_Apply(t *testing.T) {
	x := symgo.S("x")
	l := symgo.LambdaOf(x, symgo.PowOf(x, symgo.N(2)))
	assert.Equal(t, "9", l.Apply(symgo.N(3)).String())
	assert.Equal(t, "sin(y)^2", l.Apply(symgo.Sin(symgo.S("y"))).String())
}

func TestLambda_CurryingMatchesFullApplication(t *testing.T) {
	x, y := symgo.S("x"), symgo.S("y")
	l := symgo.LambdaOf(x, y, symgo.AddOf(x, symgo.MulOf(symgo.N(2), y)))

	full := l.Apply(symgo.N(1), symgo.N(3))
	partial := l.Apply(symgo.N(1))
	curried, ok := partial.(*symgo.Lambda)
	require.True(t, ok)
	assert.True(t, full.Equal(curried.Apply(symgo.N(3))))
	assert.Equal(t, "7", full.String())
}

func TestLambda_OverApplicationPanics(t *testing.T) {
	x := symgo.S("x")
	l := symgo.LambdaOf(x, symgo.PowOf(x, symgo.N(2)))
	assert.Panics(t, func() { l.Apply(symgo.N(1), symgo.N(2)) })
}

func TestLambda_AlphaEquivalence(t *testing.T) {
	x, y := symgo.S("x"), symgo.S("y")
	a := symgo.LambdaOf(x, symgo.PowOf(x, symgo.N(2)))
	b := symgo.LambdaOf(y, symgo.PowOf(y, symgo.N(2)))
	c := symgo.LambdaOf(y, symgo.PowOf(y, symgo.N(3)))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestLambda_IsIdentity(t *testing.T) {
	x := symgo.S("x")
	assert.True(t, symgo.LambdaOf(x, x).IsIdentity())
	assert.False(t, symgo.LambdaOf(x, symgo.PowOf(x, symgo.N(2))).IsIdentity())
	assert.False(t, symgo.LambdaOf(x, symgo.S("y"), x).IsIdentity())
}

func TestLambda_BoundVariableImmuneToSub(t *testing.T) {
	x, y := symgo.S("x"), symgo.S("y")
	l := symgo.LambdaOf(x, symgo.AddOf(x, y))

	// The parameter was renamed at construction; an outside "x" no longer
	// refers to it.
	same := l.Sub("x", symgo.N(5))
	assert.True(t, l.Equal(same))

	subbed := l.Sub("y", symgo.N(5)).(*symgo.Lambda)
	assert.Equal(t, "8", subbed.Apply(symgo.N(3)).String())
}

func TestLambda_MalformedConstructionPanics(t *testing.T) {
	x := symgo.S("x")
	assert.Panics(t, func() { symgo.LambdaOf(symgo.PowOf(x, symgo.N(2))) })
	assert.Panics(t, func() { symgo.LambdaOf(symgo.N(1), x) })
	assert.Panics(t, func() { symgo.NewLambda(nil, x) })
}
