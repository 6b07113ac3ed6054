package expr

import (
	"fmt"
	"strings"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// ColumnInfo resolves e's column descriptor against env without evaluating
// it (§4.9's getColumnInfo(schema) -> columnDescriptor), the static
// counterpart of Evaluate.
func ColumnInfo(env *Environment, e Expr) (types.ColumnDesc, error) {
	switch ex := e.(type) {
	case *Literal:
		return types.ColumnDesc{Name: "?column?", Type: ex.Value.Type}, nil
	case *ColumnRef:
		return env.ColumnInfo(ex.Qualifier, ex.Name)
	case *Comparison, *Boolean:
		return types.ColumnDesc{Name: "?column?", Type: booleanType}, nil
	case *Arithmetic:
		left, err := ColumnInfo(env, ex.Left)
		if err != nil {
			return types.ColumnDesc{}, err
		}
		right, err := ColumnInfo(env, ex.Right)
		if err != nil {
			return types.ColumnDesc{}, err
		}
		t := types.Double
		if (left.Type == types.Integer || left.Type == types.BigInt) && (right.Type == types.Integer || right.Type == types.BigInt) {
			t = types.Integer
			if left.Type == types.BigInt || right.Type == types.BigInt {
				t = types.BigInt
			}
		}
		return types.ColumnDesc{Name: "?column?", Type: t}, nil
	case *FuncCall:
		fn, ok := builtins[strings.ToUpper(ex.Name)]
		if !ok {
			return types.ColumnDesc{}, fmt.Errorf("%w: unknown function %s", storage.ErrInvalidArgument, ex.Name)
		}
		return types.ColumnDesc{Name: ex.Name, Type: fn.returnType}, nil
	default:
		return types.ColumnDesc{}, fmt.Errorf("%w: unknown expression node %T", storage.ErrInvalidArgument, e)
	}
}
