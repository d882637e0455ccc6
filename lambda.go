package symgo

import "strings"

// ============================================================
// Lambda — anonymous functions over bound variables
// ============================================================

// Lambda is an anonymous function of one or more variables. Bound variables
// are alpha-renamed to fresh placeholders at construction, so two lambdas
// that differ only in parameter names are equal.
type Lambda struct {
	vars []*Sym
	body Expr
}

// NewLambda binds vars in body. At least one parameter is required.
func NewLambda(vars []*Sym, body Expr) *Lambda {
	if len(vars) == 0 {
		argPanic("Lambda", "at least one parameter and a body are required")
	}
	fresh := make([]*Sym, len(vars))
	b := body.Simplify()
	for i, v := range vars {
		d := Dummy(v.name)
		b = b.Sub(v.Key(), d)
		fresh[i] = d
	}
	return &Lambda{vars: fresh, body: b.Simplify()}
}

// LambdaOf is the variadic form: LambdaOf(x, y, body).
func LambdaOf(parts ...Expr) *Lambda {
	if len(parts) < 2 {
		argPanic("Lambda", "at least one parameter and a body are required")
	}
	vars := make([]*Sym, len(parts)-1)
	for i, p := range parts[:len(parts)-1] {
		s, ok := p.(*Sym)
		if !ok {
			argPanic("Lambda", "parameters must be symbols, got %s", p.String())
		}
		vars[i] = s
	}
	return NewLambda(vars, parts[len(parts)-1])
}

func (l *Lambda) Vars() []*Sym  { return append([]*Sym(nil), l.vars...) }
func (l *Lambda) Body() Expr    { return l.body }
func (l *Lambda) kind() string  { return "lambda" }
func (l *Lambda) Simplify() Expr { return l }

// Apply substitutes the given arguments for the leading parameters.
// Supplying fewer arguments than parameters curries: the result is a lambda
// over the remaining parameters. Supplying more is a programmer error.
func (l *Lambda) Apply(args ...Expr) Expr {
	if len(args) > len(l.vars) {
		argPanic("Lambda.Apply", "called with %d arguments but only %d parameters", len(args), len(l.vars))
	}
	b := l.body
	for i, a := range args {
		b = b.Sub(l.vars[i].Key(), a)
	}
	if len(args) < len(l.vars) {
		return &Lambda{vars: append([]*Sym(nil), l.vars[len(args):]...), body: b.Simplify()}
	}
	return b.Simplify()
}

// IsIdentity reports whether the lambda returns its sole argument.
func (l *Lambda) IsIdentity() bool {
	return len(l.vars) == 1 && l.body.Equal(l.vars[0])
}

func (l *Lambda) String() string {
	names := make([]string, len(l.vars))
	for i, v := range l.vars {
		names[i] = v.String()
	}
	return "Lambda(" + strings.Join(names, ", ") + ", " + l.body.String() + ")"
}

// Sub substitutes into the body only; the bound variables carry unique keys
// and can never be captured by an outside substitution.
func (l *Lambda) Sub(varKey string, value Expr) Expr {
	for _, v := range l.vars {
		if v.Key() == varKey {
			return l
		}
	}
	return &Lambda{vars: l.vars, body: l.body.Sub(varKey, value).Simplify()}
}

func (l *Lambda) Eval() (*Num, bool) { return nil, false }

// Equal is alpha-equivalence: bodies are compared after renaming the other
// lambda's parameters to this one's.
func (l *Lambda) Equal(other Expr) bool {
	o, ok := other.(*Lambda)
	if !ok || len(l.vars) != len(o.vars) {
		return false
	}
	b := o.body
	for i := range o.vars {
		b = b.Sub(o.vars[i].Key(), l.vars[i])
	}
	return l.body.Equal(b.Simplify())
}

func (l *Lambda) toJSON() map[string]any {
	vars := make([]map[string]any, len(l.vars))
	for i, v := range l.vars {
		vars[i] = v.toJSON()
	}
	return map[string]any{"type": "lambda", "vars": vars, "body": l.body.toJSON()}
}
