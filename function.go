package symgo

import (
	"math"
	"sort"
	"strings"
	"sync"
)

// ============================================================
// FuncDef — function identity and per-type hooks
// ============================================================

// FuncDef is the identity and behavior of a symbolic function type. All
// hooks are optional; a zero hook falls back to the generic (slower or
// unevaluated) behavior, mirroring how builtin functions override the base
// class in the reference design.
type FuncDef struct {
	// Name identifies the function in printing, caching and JSON.
	Name string

	// NArgs is the declared arity; -1 means unrestricted (an opaque
	// user-defined function, which the series engine refuses to expand).
	NArgs int

	// Eval is the canonical-form rule: given simplified arguments it
	// returns the canonical node, or nil when the application should stand
	// as written.
	Eval func(args []Expr) Expr

	// Fdiff returns the closed-form partial derivative with respect to the
	// argIndex-th argument (1-based), or nil to fall back to an
	// unevaluated derivative over a placeholder.
	Fdiff func(f *AppliedFunc, argIndex int) Expr

	// TaylorTerm produces the n-th Taylor term in arg around zero, given
	// the previously generated terms. Nil uses the generic n-fold
	// differentiation, which is slow.
	TaylorTerm func(n int, arg Expr, prev []Expr) Expr

	// Aseries is the asymptotic-expansion fallback used when an argument's
	// leading behavior is unbounded. Nil means unsupported: the series
	// engine reports a pole.
	Aseries func(f *AppliedFunc, n int, args0 []Expr, varKey string, logx Expr) (Expr, error)

	// Series takes over the whole series expansion of an application. The
	// second result reports whether the hook handled the request; false
	// falls through to the generic algorithm.
	Series func(f *AppliedFunc, varKey string, n int, logx Expr) (Expr, bool, error)

	// ExpandFunc is the rewrite backing the opt-in "func" expand hint.
	ExpandFunc func(f *AppliedFunc, h Hints) Expr

	// EvalFloat is the float64 evaluation of a single-argument function,
	// used by the approximate Eval fold.
	EvalFloat func(x float64) float64
}

var (
	registryMu sync.Mutex
	registry   = map[string]*FuncDef{}
)

// RegisterFunc adds a function definition to the process-wide registry.
// Registering a name twice panics: redefinition would silently change the
// meaning of cached nodes.
func RegisterFunc(def *FuncDef) *FuncDef {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[def.Name]; dup {
		argPanic("RegisterFunc", "function %q already registered", def.Name)
	}
	registry[def.Name] = def
	return def
}

// LookupFunc returns the registered definition for name.
func LookupFunc(name string) (*FuncDef, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	def, ok := registry[name]
	return def, ok
}

// UndefinedFunc returns the definition of an opaque symbolic function with
// unrestricted arity, creating and registering it on first use. Repeated
// calls with the same name return the same definition.
func UndefinedFunc(name string) *FuncDef {
	registryMu.Lock()
	defer registryMu.Unlock()
	if def, ok := registry[name]; ok {
		return def
	}
	def := &FuncDef{Name: name, NArgs: -1}
	registry[name] = def
	return def
}

// UndefinedFuncN is UndefinedFunc with a declared arity, which makes the
// function eligible for series expansion through its derivative structure.
func UndefinedFuncN(name string, nargs int) *FuncDef {
	registryMu.Lock()
	defer registryMu.Unlock()
	if def, ok := registry[name]; ok {
		return def
	}
	def := &FuncDef{Name: name, NArgs: nargs}
	registry[name] = def
	return def
}

// ============================================================
// Apply — the canonicalization pipeline
// ============================================================

// Apply builds the canonical node for def applied to args: it consults the
// memoization cache, runs the definition's canonical-form rule, and forces
// numeric evaluation when any argument is a float literal. Identical
// requests, including ones issued re-entrantly while a prior identical
// request is still being constructed, yield the same node.
func Apply(def *FuncDef, args ...Expr) Expr {
	return applyPipeline(def, args, true)
}

// ApplyUnevaluated builds the application node without invoking the
// canonical-form rule.
func ApplyUnevaluated(def *FuncDef, args ...Expr) Expr {
	return applyPipeline(def, args, false)
}

func applyPipeline(def *FuncDef, args []Expr, evaluate bool) Expr {
	if def.NArgs >= 0 && len(args) != def.NArgs {
		argPanic("Apply", "%s expects %d argument(s), got %d", def.Name, def.NArgs, len(args))
	}
	simplified := make([]Expr, len(args))
	for i, a := range args {
		simplified[i] = a.Simplify()
	}
	args = simplified

	key := cacheKey(def.Name, args, evaluate)
	cached, reentrant := appCache.lookup(key)
	if cached != nil {
		return cached
	}
	completed := false
	defer func() {
		if !completed {
			appCache.abandon(key)
		}
	}()

	// A re-entrant identical construction means the canonical-form rule is
	// recursing through itself; running it again cannot terminate, so the
	// inner request stands as the raw node.
	if evaluate && !reentrant && def.Eval != nil {
		if r := def.Eval(args); r != nil {
			completed = true
			return appCache.complete(key, r.Simplify())
		}
	}

	node := Expr(&AppliedFunc{def: def, args: args})
	if evaluate && shouldEvalf(args) {
		// The node is canonical already; going through EvalF would simplify
		// it, re-entering this construction and never terminating.
		if v, err := evalFCanonical(node, DefaultPrecision()); err == nil {
			node = v
		}
	}
	completed = true
	return appCache.complete(key, node)
}

// shouldEvalf reports whether any argument is a floating-point literal, or a
// sum containing one, which forces the application through numeric
// evaluation.
func shouldEvalf(args []Expr) bool {
	for _, a := range args {
		if numIsApprox(a) {
			return true
		}
	}
	return false
}

func numIsApprox(e Expr) bool {
	switch v := e.(type) {
	case *Num:
		return v.approx
	case *Add:
		for _, t := range v.terms {
			if numIsApprox(t) {
				return true
			}
		}
	}
	return false
}

// ============================================================
// AppliedFunc — f(a1, ..., an)
// ============================================================

// AppliedFunc is a function applied to an ordered argument list. Nodes are
// created only by Apply/ApplyUnevaluated and are canonical by identity.
type AppliedFunc struct {
	def  *FuncDef
	args []Expr
}

func (f *AppliedFunc) Def() *FuncDef { return f.def }
func (f *AppliedFunc) Args() []Expr  { return f.args }
func (f *AppliedFunc) kind() string  { return "func" }

func (f *AppliedFunc) Simplify() Expr { return Apply(f.def, f.args...) }

func (f *AppliedFunc) String() string {
	parts := make([]string, len(f.args))
	for i, a := range f.args {
		parts[i] = a.String()
	}
	return f.def.Name + "(" + strings.Join(parts, ", ") + ")"
}

func (f *AppliedFunc) Sub(varKey string, value Expr) Expr {
	newArgs := make([]Expr, len(f.args))
	for i, a := range f.args {
		newArgs[i] = a.Sub(varKey, value)
	}
	return Apply(f.def, newArgs...)
}

func (f *AppliedFunc) Eval() (*Num, bool) {
	if f.def.EvalFloat == nil || len(f.args) != 1 {
		return nil, false
	}
	v, ok := f.args[0].Eval()
	if !ok {
		return nil, false
	}
	r := f.def.EvalFloat(v.Float64())
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil, false
	}
	return NFloat(r), true
}

func (f *AppliedFunc) Equal(other Expr) bool {
	o, ok := other.(*AppliedFunc)
	if !ok || f.def.Name != o.def.Name || len(f.args) != len(o.args) {
		return false
	}
	for i := range f.args {
		if !f.args[i].Equal(o.args[i]) {
			return false
		}
	}
	return true
}

func (f *AppliedFunc) toJSON() map[string]any {
	as := make([]map[string]any, len(f.args))
	for i, a := range f.args {
		as[i] = a.toJSON()
	}
	return map[string]any{"type": "func", "name": f.def.Name, "args": as}
}

// Fdiff returns the partial derivative of the application with respect to
// its argIndex-th argument (1-based). Definitions with a closed-form rule
// answer directly; otherwise the result is an unevaluated derivative of the
// function applied to the bare argument variable, or to a fresh placeholder
// when the argument is a compound expression (keeping the derivative node
// sharable across call sites).
func (f *AppliedFunc) Fdiff(argIndex int) Expr {
	max := f.def.NArgs
	if max < 0 {
		max = len(f.args)
	}
	if argIndex < 1 || argIndex > max {
		argPanic("fdiff", "invalid argument index %d for %s", argIndex, f.def.Name)
	}
	if f.def.Fdiff != nil {
		if r := f.def.Fdiff(f, argIndex); r != nil {
			return r
		}
	}
	u := f.args[argIndex-1]
	if s, ok := u.(*Sym); ok {
		return newRawDerivative(f, []*Sym{s})
	}
	d := Dummy("u")
	placeArgs := make([]Expr, len(f.args))
	copy(placeArgs, f.args)
	placeArgs[argIndex-1] = d
	return newRawDerivative(Apply(f.def, placeArgs...), []*Sym{d})
}

// deriv is the chain rule: sum over arguments of the local derivative times
// the argument's derivative, dropping terms whose argument derivative is
// exactly zero before any multiplication happens.
func (f *AppliedFunc) deriv(varKey string) Expr {
	terms := []Expr{}
	for i, a := range f.args {
		da := derivOf(a, varKey)
		if n, ok := da.(*Num); ok && n.IsZero() {
			continue
		}
		terms = append(terms, MulOf(f.Fdiff(i+1), da))
	}
	return AddOf(terms...)
}

// taylorTerm generates the n-th Taylor term of the definition in arg around
// zero. The generic path differentiates n times at a placeholder; known
// functions override it with their recurrence.
func (f *AppliedFunc) taylorTerm(n int, arg Expr, prev []Expr) Expr {
	if f.def.TaylorTerm != nil {
		return f.def.TaylorTerm(n, arg, prev)
	}
	u := Dummy("u")
	dn := Diff(Apply(f.def, u), u, n)
	if hasPendingDerivative(dn, u.Key()) {
		// No closed-form derivative at the expansion point.
		return nil
	}
	at0 := dn.Sub(u.Key(), N(0)).Simplify()
	return MulOf(at0, PowOf(arg, N(int64(n))), PowOf(factorial(n), N(-1)))
}

func factorial(n int) *Num {
	r := N(1)
	for i := int64(2); i <= int64(n); i++ {
		r = numMul(r, N(i))
	}
	return r
}

// ============================================================
// Builtin function definitions
// ============================================================

// oddReflection pulls a negative coefficient out of an odd function's
// argument: f(-3*x) -> -f(3*x).
func oddReflection(apply func(Expr) Expr, arg Expr) Expr {
	coeff, rest := splitCoeff(arg)
	if coeff.IsNegative() {
		return MulOf(N(-1), apply(MulOf(numNeg(coeff), rest)))
	}
	if n, ok := arg.(*Num); ok && n.IsNegative() {
		return MulOf(N(-1), apply(numNeg(n)))
	}
	return nil
}

func evenReflection(apply func(Expr) Expr, arg Expr) Expr {
	coeff, rest := splitCoeff(arg)
	if coeff.IsNegative() {
		return apply(MulOf(numNeg(coeff), rest))
	}
	if n, ok := arg.(*Num); ok && n.IsNegative() {
		return apply(numNeg(n))
	}
	return nil
}

func isZeroNum(e Expr) bool {
	n, ok := e.(*Num)
	return ok && n.IsZero()
}

var (
	sinDef  *FuncDef
	cosDef  *FuncDef
	tanDef  *FuncDef
	expDef  *FuncDef
	logDef  *FuncDef
	sinhDef *FuncDef
	coshDef *FuncDef
	tanhDef *FuncDef
	asinDef *FuncDef
	acosDef *FuncDef
	atanDef *FuncDef
)

// The builtin rules close over the exported wrappers, which read these vars,
// so the definitions are built in init rather than in the declarations.
func init() {
	sinDef = RegisterFunc(&FuncDef{
		Name: "sin", NArgs: 1,
		Eval: func(args []Expr) Expr {
			arg := args[0]
			if isNaN(arg) {
				return NaNValue
			}
			if isZeroNum(arg) {
				return N(0)
			}
			return oddReflection(Sin, arg)
		},
		Fdiff: func(f *AppliedFunc, _ int) Expr { return Cos(f.args[0]) },
		TaylorTerm: func(n int, arg Expr, _ []Expr) Expr {
			if n < 0 || n%2 == 0 {
				return N(0)
			}
			sign := N(1)
			if (n-1)/2%2 == 1 {
				sign = N(-1)
			}
			return MulOf(sign, PowOf(arg, N(int64(n))), PowOf(factorial(n), N(-1)))
		},
		EvalFloat: math.Sin,
	})

	cosDef = RegisterFunc(&FuncDef{
		Name: "cos", NArgs: 1,
		Eval: func(args []Expr) Expr {
			arg := args[0]
			if isNaN(arg) {
				return NaNValue
			}
			if isZeroNum(arg) {
				return N(1)
			}
			return evenReflection(Cos, arg)
		},
		Fdiff: func(f *AppliedFunc, _ int) Expr { return MulOf(N(-1), Sin(f.args[0])) },
		TaylorTerm: func(n int, arg Expr, _ []Expr) Expr {
			if n < 0 || n%2 == 1 {
				return N(0)
			}
			sign := N(1)
			if n/2%2 == 1 {
				sign = N(-1)
			}
			return MulOf(sign, PowOf(arg, N(int64(n))), PowOf(factorial(n), N(-1)))
		},
		EvalFloat: math.Cos,
	})

	tanDef = RegisterFunc(&FuncDef{
		Name: "tan", NArgs: 1,
		Eval: func(args []Expr) Expr {
			arg := args[0]
			if isNaN(arg) {
				return NaNValue
			}
			if isZeroNum(arg) {
				return N(0)
			}
			return oddReflection(Tan, arg)
		},
		Fdiff: func(f *AppliedFunc, _ int) Expr {
			return AddOf(N(1), PowOf(Tan(f.args[0]), N(2)))
		},
		EvalFloat: math.Tan,
	})

	expDef = RegisterFunc(&FuncDef{
		Name: "exp", NArgs: 1,
		Eval: func(args []Expr) Expr {
			arg := args[0]
			if isNaN(arg) {
				return NaNValue
			}
			if isZeroNum(arg) {
				return N(1)
			}
			if inf, ok := arg.(*Inf); ok {
				switch inf.sign {
				case 1:
					return PosInf
				case -1:
					return N(0)
				}
				return NaNValue
			}
			if inner, ok := arg.(*AppliedFunc); ok && inner.def.Name == "log" {
				return inner.args[0]
			}
			return nil
		},
		Fdiff: func(f *AppliedFunc, _ int) Expr { return Exp(f.args[0]) },
		TaylorTerm: func(n int, arg Expr, _ []Expr) Expr {
			if n < 0 {
				return N(0)
			}
			return MulOf(PowOf(arg, N(int64(n))), PowOf(factorial(n), N(-1)))
		},
		EvalFloat: math.Exp,
	})

	logDef = RegisterFunc(&FuncDef{
		Name: "log", NArgs: 1,
		Eval: func(args []Expr) Expr {
			arg := args[0]
			if isNaN(arg) {
				return NaNValue
			}
			if n, ok := arg.(*Num); ok {
				if n.IsZero() {
					return ComplexInf
				}
				if n.IsOne() && !n.approx {
					return N(0)
				}
			}
			if inf, ok := arg.(*Inf); ok && inf.sign == 1 {
				return PosInf
			}
			if inner, ok := arg.(*AppliedFunc); ok && inner.def.Name == "exp" {
				return inner.args[0]
			}
			return nil
		},
		Fdiff:     func(f *AppliedFunc, _ int) Expr { return PowOf(f.args[0], N(-1)) },
		Series:    logSeriesRule,
		EvalFloat: math.Log,
	})

	sinhDef = RegisterFunc(&FuncDef{
		Name: "sinh", NArgs: 1,
		Eval: func(args []Expr) Expr {
			if isZeroNum(args[0]) {
				return N(0)
			}
			return oddReflection(Sinh, args[0])
		},
		Fdiff:     func(f *AppliedFunc, _ int) Expr { return Cosh(f.args[0]) },
		EvalFloat: math.Sinh,
	})

	coshDef = RegisterFunc(&FuncDef{
		Name: "cosh", NArgs: 1,
		Eval: func(args []Expr) Expr {
			if isZeroNum(args[0]) {
				return N(1)
			}
			return evenReflection(Cosh, args[0])
		},
		Fdiff:     func(f *AppliedFunc, _ int) Expr { return Sinh(f.args[0]) },
		EvalFloat: math.Cosh,
	})

	tanhDef = RegisterFunc(&FuncDef{
		Name: "tanh", NArgs: 1,
		Eval: func(args []Expr) Expr {
			if isZeroNum(args[0]) {
				return N(0)
			}
			return oddReflection(Tanh, args[0])
		},
		Fdiff: func(f *AppliedFunc, _ int) Expr {
			return AddOf(N(1), MulOf(N(-1), PowOf(Tanh(f.args[0]), N(2))))
		},
		EvalFloat: math.Tanh,
	})

	asinDef = RegisterFunc(&FuncDef{
		Name: "asin", NArgs: 1,
		Eval: func(args []Expr) Expr {
			if isZeroNum(args[0]) {
				return N(0)
			}
			return oddReflection(Asin, args[0])
		},
		Fdiff: func(f *AppliedFunc, _ int) Expr {
			return PowOf(AddOf(N(1), MulOf(N(-1), PowOf(f.args[0], N(2)))), F(-1, 2))
		},
		EvalFloat: math.Asin,
	})

	acosDef = RegisterFunc(&FuncDef{
		Name: "acos", NArgs: 1,
		Fdiff: func(f *AppliedFunc, _ int) Expr {
			return MulOf(N(-1), PowOf(AddOf(N(1), MulOf(N(-1), PowOf(f.args[0], N(2)))), F(-1, 2)))
		},
		EvalFloat: math.Acos,
	})

	atanDef = RegisterFunc(&FuncDef{
		Name: "atan", NArgs: 1,
		Eval: func(args []Expr) Expr {
			if isZeroNum(args[0]) {
				return N(0)
			}
			return oddReflection(Atan, args[0])
		},
		Fdiff: func(f *AppliedFunc, _ int) Expr {
			return PowOf(AddOf(N(1), PowOf(f.args[0], N(2))), N(-1))
		},
		EvalFloat: math.Atan,
	})
}

func Sin(arg Expr) Expr  { return Apply(sinDef, arg) }
func Cos(arg Expr) Expr  { return Apply(cosDef, arg) }
func Tan(arg Expr) Expr  { return Apply(tanDef, arg) }
func Exp(arg Expr) Expr  { return Apply(expDef, arg) }
func Log(arg Expr) Expr  { return Apply(logDef, arg) }
func Sinh(arg Expr) Expr { return Apply(sinhDef, arg) }
func Cosh(arg Expr) Expr { return Apply(coshDef, arg) }
func Tanh(arg Expr) Expr { return Apply(tanhDef, arg) }
func Asin(arg Expr) Expr { return Apply(asinDef, arg) }
func Acos(arg Expr) Expr { return Apply(acosDef, arg) }
func Atan(arg Expr) Expr { return Apply(atanDef, arg) }
func Sqrt(arg Expr) Expr { return PowOf(arg, F(1, 2)) }

// RegisteredFunctions returns the sorted names of all known functions.
func RegisteredFunctions() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
