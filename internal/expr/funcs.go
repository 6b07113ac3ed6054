package expr

import (
	"fmt"
	"strings"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// builtinFunc evaluates an already-evaluated argument list to a result
// value. Grounded on tinySQL's per-function evalUpper/evalLower/evalConcat/
// evalLength/evalTrim/evalCoalesce/evalAbs helpers in engine/exec.go, merged
// here into a name -> handler registry rather than a switch in evalExpr.
type builtinFunc struct {
	minArgs, maxArgs int // maxArgs < 0 means unbounded
	returnType       types.SQLType
	call             func(args []types.Value) (types.Value, error)
}

var builtins = map[string]builtinFunc{
	"UPPER":    {1, 1, types.VarChar, evalUpper},
	"LOWER":    {1, 1, types.VarChar, evalLower},
	"LENGTH":   {1, 1, types.Integer, evalLength},
	"CONCAT":   {1, -1, types.VarChar, evalConcat},
	"COALESCE": {1, -1, types.VarChar, evalCoalesce},
	"TRIM":     {1, 1, types.VarChar, evalTrim},
	"ABS":      {1, 1, types.Double, evalAbs},
}

func evalFuncCall(env *Environment, f *FuncCall) (types.Value, error) {
	name := strings.ToUpper(f.Name)
	fn, ok := builtins[name]
	if !ok {
		return types.Value{}, fmt.Errorf("%w: unknown function %s", storage.ErrInvalidArgument, f.Name)
	}
	if len(f.Args) < fn.minArgs || (fn.maxArgs >= 0 && len(f.Args) > fn.maxArgs) {
		return types.Value{}, fmt.Errorf("%w: %s expects between %d and %d arguments, got %d",
			storage.ErrInvalidArgument, name, fn.minArgs, fn.maxArgs, len(f.Args))
	}
	args := make([]types.Value, len(f.Args))
	for i, a := range f.Args {
		v, err := Evaluate(env, a)
		if err != nil {
			return types.Value{}, err
		}
		args[i] = v
	}
	return fn.call(args)
}

// asString coerces a value to its string form the way tinySQL's helpers do
// with fmt.Sprintf("%v", val) for non-string arguments.
func asString(v types.Value) string {
	switch v.Type {
	case types.VarChar, types.Char:
		return v.SVal
	case types.Integer, types.BigInt:
		return fmt.Sprintf("%d", v.IVal)
	case types.Float, types.Double:
		return fmt.Sprintf("%v", v.FVal)
	case types.UUID:
		return v.UVal.String()
	default:
		return v.SVal
	}
}

func evalUpper(args []types.Value) (types.Value, error) {
	if args[0].Null {
		return types.NullValue(types.VarChar), nil
	}
	return types.Value{Type: types.VarChar, SVal: strings.ToUpper(asString(args[0]))}, nil
}

func evalLower(args []types.Value) (types.Value, error) {
	if args[0].Null {
		return types.NullValue(types.VarChar), nil
	}
	return types.Value{Type: types.VarChar, SVal: strings.ToLower(asString(args[0]))}, nil
}

func evalLength(args []types.Value) (types.Value, error) {
	if args[0].Null {
		return types.NullValue(types.Integer), nil
	}
	return types.Value{Type: types.Integer, IVal: int64(len(asString(args[0])))}, nil
}

func evalConcat(args []types.Value) (types.Value, error) {
	var sb strings.Builder
	for _, v := range args {
		if v.Null {
			continue
		}
		sb.WriteString(asString(v))
	}
	return types.Value{Type: types.VarChar, SVal: sb.String()}, nil
}

func evalCoalesce(args []types.Value) (types.Value, error) {
	for _, v := range args {
		if !v.Null {
			return v, nil
		}
	}
	return types.NullValue(args[len(args)-1].Type), nil
}

func evalTrim(args []types.Value) (types.Value, error) {
	if args[0].Null {
		return types.NullValue(types.VarChar), nil
	}
	return types.Value{Type: types.VarChar, SVal: strings.TrimSpace(asString(args[0]))}, nil
}

func evalAbs(args []types.Value) (types.Value, error) {
	if args[0].Null {
		return types.NullValue(types.Double), nil
	}
	if !args[0].IsNumeric() {
		return types.Value{}, fmt.Errorf("%w: ABS requires a numeric argument", storage.ErrExecution)
	}
	f := args[0].Float64()
	if f < 0 {
		f = -f
	}
	if args[0].Type == types.Integer || args[0].Type == types.BigInt {
		return types.Value{Type: args[0].Type, IVal: int64(f)}, nil
	}
	return types.Value{Type: types.Double, FVal: f}, nil
}
