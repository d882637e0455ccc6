package symgo

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// ============================================================
// JSON Serialization
// ============================================================

// ToJSON serializes an expression tree. Dummy symbols keep their unique
// identity across a round trip.
func ToJSON(e Expr) (string, error) {
	b, err := json.Marshal(e.toJSON())
	return string(b), err
}

// ParseJSON decodes a serialized expression.
func ParseJSON(data []byte) (Expr, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return FromJSON(m)
}

func FromJSON(data map[string]any) (Expr, error) {
	if data == nil {
		return nil, fmt.Errorf("expression must be an object")
	}
	typAny, ok := data["type"]
	if !ok {
		return nil, fmt.Errorf("missing 'type' field")
	}
	typ, ok := typAny.(string)
	if !ok || typ == "" {
		return nil, fmt.Errorf("field 'type' must be a non-empty string")
	}

	subObj := func(field string) (map[string]any, error) {
		v, ok := data[field]
		if !ok {
			return nil, fmt.Errorf("%s: missing %q", typ, field)
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: %q must be an object", typ, field)
		}
		return m, nil
	}

	subObjArray := func(field string) ([]map[string]any, error) {
		v, ok := data[field]
		if !ok {
			return nil, fmt.Errorf("%s: missing %q", typ, field)
		}
		raw, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%s: %q must be an array", typ, field)
		}
		out := make([]map[string]any, len(raw))
		for i, it := range raw {
			m, ok := it.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s: %q[%d] must be an object", typ, field, i)
			}
			out[i] = m
		}
		return out, nil
	}

	subString := func(field string) (string, error) {
		v, ok := data[field]
		if !ok {
			return "", fmt.Errorf("%s: missing %q", typ, field)
		}
		s, ok := v.(string)
		if !ok || s == "" {
			return "", fmt.Errorf("%s: %q must be a non-empty string", typ, field)
		}
		return s, nil
	}

	subSyms := func(field string) ([]*Sym, error) {
		objs, err := subObjArray(field)
		if err != nil {
			return nil, err
		}
		out := make([]*Sym, len(objs))
		for i, o := range objs {
			e, err := FromJSON(o)
			if err != nil {
				return nil, fmt.Errorf("%s: %s[%d]: %w", typ, field, i, err)
			}
			s, ok := e.(*Sym)
			if !ok {
				return nil, fmt.Errorf("%s: %s[%d] must be a symbol", typ, field, i)
			}
			out[i] = s
		}
		return out, nil
	}

	switch typ {
	case "num":
		valAny, ok := data["value"]
		if !ok {
			return nil, fmt.Errorf("num: missing 'value'")
		}
		val, ok := valAny.(string)
		if !ok || val == "" {
			return nil, fmt.Errorf("num: 'value' must be a non-empty string")
		}
		r := new(big.Rat)
		if _, ok := r.SetString(val); !ok {
			return nil, fmt.Errorf("invalid num value: %s", val)
		}
		approx, _ := data["approx"].(bool)
		return &Num{val: r, approx: approx}, nil

	case "sym":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		if id, ok := data["id"].(string); ok && id != "" {
			return &Sym{name: name, id: id}, nil
		}
		return S(name), nil

	case "inf":
		sign, ok := data["sign"].(float64)
		if !ok {
			return nil, fmt.Errorf("inf: missing 'sign'")
		}
		return infFromSign(int(sign)), nil

	case "nan":
		return NaNValue, nil

	case "add":
		objs, err := subObjArray("terms")
		if err != nil {
			return nil, err
		}
		terms := make([]Expr, len(objs))
		for i, o := range objs {
			e, err := FromJSON(o)
			if err != nil {
				return nil, fmt.Errorf("add: terms[%d]: %w", i, err)
			}
			terms[i] = e
		}
		return AddOf(terms...), nil

	case "mul":
		objs, err := subObjArray("factors")
		if err != nil {
			return nil, err
		}
		factors := make([]Expr, len(objs))
		for i, o := range objs {
			e, err := FromJSON(o)
			if err != nil {
				return nil, fmt.Errorf("mul: factors[%d]: %w", i, err)
			}
			factors[i] = e
		}
		return MulOf(factors...), nil

	case "pow":
		baseM, err := subObj("base")
		if err != nil {
			return nil, err
		}
		expM, err := subObj("exp")
		if err != nil {
			return nil, err
		}
		base, err := FromJSON(baseM)
		if err != nil {
			return nil, fmt.Errorf("pow: base: %w", err)
		}
		exp, err := FromJSON(expM)
		if err != nil {
			return nil, fmt.Errorf("pow: exp: %w", err)
		}
		return PowOf(base, exp), nil

	case "func":
		name, err := subString("name")
		if err != nil {
			return nil, err
		}
		objs, err := subObjArray("args")
		if err != nil {
			return nil, err
		}
		args := make([]Expr, len(objs))
		for i, o := range objs {
			e, err := FromJSON(o)
			if err != nil {
				return nil, fmt.Errorf("func: args[%d]: %w", i, err)
			}
			args[i] = e
		}
		def, ok := LookupFunc(name)
		if !ok {
			def = UndefinedFunc(name)
		}
		return Apply(def, args...), nil

	case "derivative":
		exprM, err := subObj("expr")
		if err != nil {
			return nil, err
		}
		inner, err := FromJSON(exprM)
		if err != nil {
			return nil, fmt.Errorf("derivative: expr: %w", err)
		}
		vars, err := subSyms("vars")
		if err != nil {
			return nil, err
		}
		if len(vars) == 0 {
			return nil, fmt.Errorf("derivative: 'vars' must not be empty")
		}
		return newRawDerivative(inner, vars), nil

	case "lambda":
		bodyM, err := subObj("body")
		if err != nil {
			return nil, err
		}
		body, err := FromJSON(bodyM)
		if err != nil {
			return nil, fmt.Errorf("lambda: body: %w", err)
		}
		vars, err := subSyms("vars")
		if err != nil {
			return nil, err
		}
		return NewLambda(vars, body), nil

	case "order":
		exprM, err := subObj("expr")
		if err != nil {
			return nil, err
		}
		inner, err := FromJSON(exprM)
		if err != nil {
			return nil, fmt.Errorf("order: expr: %w", err)
		}
		v, err := subString("var")
		if err != nil {
			return nil, err
		}
		return OrderOf(inner, v), nil
	}
	return nil, fmt.Errorf("unknown expression type: %s", typ)
}
