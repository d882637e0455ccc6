package symgo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	symgo "github.com/njchilds90/symgo"
)

// ============================================================
// Construction cache tests
// ============================================================

func TestCache_SameArgsSameNode(t *testing.T) {
	symgo.ResetCache()
	a := symgo.Sin(symgo.S("x"))
	b := symgo.Sin(symgo.S("x"))
	assert.Same(t, a, b)
}

func TestCache_StructurallyEqualArgsShareNode(t *testing.T) {
	symgo.ResetCache()
	x := symgo.S("x")
	a := symgo.Sin(symgo.AddOf(x, symgo.N(1)))
	b := symgo.Sin(symgo.AddOf(symgo.N(1), x))
	assert.Same(t, a, b)
}

func TestCache_DifferentArgsDifferentNodes(t *testing.T) {
	symgo.ResetCache()
	a := symgo.Sin(symgo.S("x"))
	b := symgo.Sin(symgo.S("y"))
	assert.NotSame(t, a, b)
}

func TestCache_UnevaluatedKeyedSeparately(t *testing.T) {
	symgo.ResetCache()
	def, ok := symgo.LookupFunc("sin")
	require.True(t, ok)
	evaluated := symgo.Sin(symgo.N(0))
	raw := symgo.ApplyUnevaluated(def, symgo.N(0))
	assert.Equal(t, "0", evaluated.String())
	assert.Equal(t, "sin(0)", raw.String())
}

func TestCache_ResetDropsNodes(t *testing.T) {
	symgo.ResetCache()
	a := symgo.Sin(symgo.S("x"))
	symgo.ResetCache()
	b := symgo.Sin(symgo.S("x"))
	assert.NotSame(t, a, b)
	assert.True(t, a.Equal(b))
}

// evictEverything drops each key right after it is stored.
type evictEverything struct{}

func (evictEverything) OnStore(key string, _ int) []string { return []string{key} }

func TestCache_EvictionPolicyHonored(t *testing.T) {
	symgo.ResetCache()
	symgo.SetCachePolicy(evictEverything{})
	defer symgo.SetCachePolicy(nil)

	a := symgo.Sin(symgo.S("x"))
	b := symgo.Sin(symgo.S("x"))
	assert.NotSame(t, a, b)
	assert.True(t, a.Equal(b))
}

func TestCache_ReentrantRuleGetsRawNode(t *testing.T) {
	symgo.ResetCache()
	var def *symgo.FuncDef
	def = &symgo.FuncDef{
		Name:  "selfnorm",
		NArgs: 1,
		// A rule that rebuilds its own application must not loop; the inner
		// identical request stands unevaluated.
		Eval: func(args []symgo.Expr) symgo.Expr {
			return symgo.Apply(def, args[0])
		},
	}
	symgo.RegisterFunc(def)

	r := symgo.Apply(def, symgo.S("x"))
	require.Equal(t, "selfnorm(x)", r.String())
	assert.Same(t, r, symgo.Apply(def, symgo.S("x")))
}

func TestCache_PanickingRuleLeavesCacheUsable(t *testing.T) {
	symgo.ResetCache()
	calls := 0
	def := &symgo.FuncDef{
		Name:  "flaky",
		NArgs: 1,
		Eval: func(args []symgo.Expr) symgo.Expr {
			calls++
			if calls == 1 {
				panic("transient")
			}
			return symgo.N(7)
		},
	}
	symgo.RegisterFunc(def)

	assert.Panics(t, func() { symgo.Apply(def, symgo.S("x")) })
	// The failed construction must not poison the key: the retry runs the
	// rule again instead of being treated as re-entrant.
	assert.Equal(t, "7", symgo.Apply(def, symgo.S("x")).String())
}
