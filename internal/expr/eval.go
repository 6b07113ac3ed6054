package expr

import (
	"fmt"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// booleanType is the SQL type this package represents truth values as:
// spec.md's closed type set (§3) has no native Boolean, so comparisons and
// boolean connectives evaluate to an Integer 0/1 (NULL-able), the same
// representation tinySQL's evalComparisonBinary/evalLogicalBinary return
// as a bare Go `bool` widened into the value model here.
const booleanType = types.Integer

func boolValue(b bool) types.Value { return types.Value{Type: booleanType, IVal: boolToInt(b)} }
func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
func nullBool() types.Value { return types.Value{Type: booleanType, Null: true} }

// Evaluate computes e's value against env (§4.9's evaluate(env) -> value).
func Evaluate(env *Environment, e Expr) (types.Value, error) {
	switch ex := e.(type) {
	case *Literal:
		return ex.Value, nil
	case *ColumnRef:
		return env.Lookup(ex.Qualifier, ex.Name)
	case *Comparison:
		return evalComparison(env, ex)
	case *Boolean:
		return evalBoolean(env, ex)
	case *Arithmetic:
		return evalArithmetic(env, ex)
	case *FuncCall:
		return evalFuncCall(env, ex)
	default:
		return types.Value{}, fmt.Errorf("%w: unknown expression node %T", storage.ErrInvalidArgument, e)
	}
}

// EvaluatePredicate evaluates e as a boolean condition; NULL propagates as
// false (§4.9).
func EvaluatePredicate(env *Environment, e Expr) (bool, error) {
	v, err := Evaluate(env, e)
	if err != nil {
		return false, err
	}
	if v.Null {
		return false, nil
	}
	return v.IVal != 0, nil
}

func evalComparison(env *Environment, c *Comparison) (types.Value, error) {
	l, err := Evaluate(env, c.Left)
	if err != nil {
		return types.Value{}, err
	}
	r, err := Evaluate(env, c.Right)
	if err != nil {
		return types.Value{}, err
	}
	if l.Null || r.Null {
		return nullBool(), nil
	}
	switch c.Op {
	case Eq:
		return boolValue(l.Equal(r)), nil
	case Ne:
		return boolValue(!l.Equal(r)), nil
	case Lt:
		return boolValue(l.Compare(r) < 0), nil
	case Le:
		return boolValue(l.Compare(r) <= 0), nil
	case Gt:
		return boolValue(l.Compare(r) > 0), nil
	case Ge:
		return boolValue(l.Compare(r) >= 0), nil
	default:
		return types.Value{}, fmt.Errorf("%w: unknown comparison operator %v", storage.ErrInvalidArgument, c.Op)
	}
}

func evalBoolean(env *Environment, b *Boolean) (types.Value, error) {
	if b.Op == Not {
		if len(b.Operands) != 1 {
			return types.Value{}, fmt.Errorf("%w: NOT takes exactly one operand", storage.ErrInvalidArgument)
		}
		v, err := Evaluate(env, b.Operands[0])
		if err != nil {
			return types.Value{}, err
		}
		if v.Null {
			return nullBool(), nil
		}
		return boolValue(v.IVal == 0), nil
	}

	if len(b.Operands) == 0 {
		return types.Value{}, fmt.Errorf("%w: %v takes at least one operand", storage.ErrInvalidArgument, b.Op)
	}
	sawNull := false
	for _, operand := range b.Operands {
		v, err := Evaluate(env, operand)
		if err != nil {
			return types.Value{}, err
		}
		if v.Null {
			sawNull = true
			continue
		}
		truthy := v.IVal != 0
		// Short-circuit only on a definite result: AND on a false operand,
		// OR on a true operand is decisive regardless of NULLs elsewhere.
		if b.Op == And && !truthy {
			return boolValue(false), nil
		}
		if b.Op == Or && truthy {
			return boolValue(true), nil
		}
	}
	if sawNull {
		return nullBool(), nil
	}
	return boolValue(b.Op == And), nil
}

func evalArithmetic(env *Environment, a *Arithmetic) (types.Value, error) {
	l, err := Evaluate(env, a.Left)
	if err != nil {
		return types.Value{}, err
	}
	r, err := Evaluate(env, a.Right)
	if err != nil {
		return types.Value{}, err
	}
	if !l.IsNumeric() || !r.IsNumeric() {
		return types.Value{}, fmt.Errorf("%w: arithmetic on non-numeric operand", storage.ErrExecution)
	}
	resultType := types.Double
	if (l.Type == types.Integer || l.Type == types.BigInt) && (r.Type == types.Integer || r.Type == types.BigInt) {
		resultType = types.Integer
		if l.Type == types.BigInt || r.Type == types.BigInt {
			resultType = types.BigInt
		}
	}
	if l.Null || r.Null {
		return types.Value{Type: resultType, Null: true}, nil
	}

	if resultType == types.Integer || resultType == types.BigInt {
		x, y := l.IVal, r.IVal
		var res int64
		switch a.Op {
		case Add:
			res = x + y
		case Sub:
			res = x - y
		case Mul:
			res = x * y
		case Div:
			if y == 0 {
				return types.Value{}, fmt.Errorf("%w: division by zero", storage.ErrExecution)
			}
			res = x / y
		default:
			return types.Value{}, fmt.Errorf("%w: unknown arithmetic operator %v", storage.ErrInvalidArgument, a.Op)
		}
		return types.Value{Type: resultType, IVal: res}, nil
	}

	x, y := l.Float64(), r.Float64()
	var res float64
	switch a.Op {
	case Add:
		res = x + y
	case Sub:
		res = x - y
	case Mul:
		res = x * y
	case Div:
		res = x / y
	default:
		return types.Value{}, fmt.Errorf("%w: unknown arithmetic operator %v", storage.ErrInvalidArgument, a.Op)
	}
	return types.Value{Type: types.Double, FVal: res}, nil
}
