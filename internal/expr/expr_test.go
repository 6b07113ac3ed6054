package expr

import (
	"testing"

	"nanodb/internal/types"
)

func testEnv(t *testing.T) *Environment {
	t.Helper()
	schema, err := types.NewSchema([]types.ColumnDesc{
		{Name: "id", TableQualifier: "t", Type: types.Integer},
		{Name: "name", TableQualifier: "t", Type: types.VarChar, Length: 32},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	tuple := types.NewTuple(schema, []types.Value{
		types.IntValue(7),
		{Type: types.VarChar, SVal: "alice"},
	})
	env := NewEnvironment()
	env.Push(schema, tuple)
	return env
}

func TestEvaluate_Literal(t *testing.T) {
	env := testEnv(t)
	v, err := Evaluate(env, &Literal{Value: types.IntValue(42)})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.IVal != 42 {
		t.Errorf("got %d, want 42", v.IVal)
	}
}

func TestEvaluate_ColumnRef(t *testing.T) {
	env := testEnv(t)
	v, err := Evaluate(env, &ColumnRef{Qualifier: "t", Name: "name"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.SVal != "alice" {
		t.Errorf("got %q, want alice", v.SVal)
	}

	if _, err := Evaluate(env, &ColumnRef{Name: "missing"}); err == nil {
		t.Error("expected error for unresolved column")
	}
}

func TestEvaluate_Comparison(t *testing.T) {
	env := testEnv(t)
	cmp := &Comparison{Op: Gt, Left: &ColumnRef{Qualifier: "t", Name: "id"}, Right: &Literal{Value: types.IntValue(5)}}
	ok, err := EvaluatePredicate(env, cmp)
	if err != nil {
		t.Fatalf("EvaluatePredicate: %v", err)
	}
	if !ok {
		t.Error("expected id > 5 to be true")
	}

	nullCmp := &Comparison{Op: Eq, Left: &Literal{Value: types.NullValue(types.Integer)}, Right: &Literal{Value: types.IntValue(1)}}
	v, err := Evaluate(env, nullCmp)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !v.Null {
		t.Error("comparison against NULL should evaluate to NULL")
	}
	if predOk, _ := EvaluatePredicate(env, nullCmp); predOk {
		t.Error("NULL predicate should act as false")
	}
}

func TestEvaluate_Boolean(t *testing.T) {
	env := testEnv(t)
	trueLit := &Literal{Value: boolValue(true)}
	falseLit := &Literal{Value: boolValue(false)}
	nullLit := &Literal{Value: nullBool()}

	and := &Boolean{Op: And, Operands: []Expr{trueLit, falseLit}}
	v, _ := Evaluate(env, and)
	if v.IVal != 0 {
		t.Error("true AND false should be false")
	}

	or := &Boolean{Op: Or, Operands: []Expr{falseLit, trueLit}}
	v, _ = Evaluate(env, or)
	if v.IVal != 1 {
		t.Error("false OR true should be true")
	}

	andNull := &Boolean{Op: And, Operands: []Expr{trueLit, nullLit}}
	v, _ = Evaluate(env, andNull)
	if !v.Null {
		t.Error("true AND NULL should be NULL")
	}

	orShortCircuit := &Boolean{Op: Or, Operands: []Expr{trueLit, nullLit}}
	v, _ = Evaluate(env, orShortCircuit)
	if v.Null || v.IVal != 1 {
		t.Error("true OR NULL should be true, not NULL")
	}

	not := &Boolean{Op: Not, Operands: []Expr{falseLit}}
	v, _ = Evaluate(env, not)
	if v.IVal != 1 {
		t.Error("NOT false should be true")
	}
}

func TestEvaluate_Arithmetic(t *testing.T) {
	env := testEnv(t)
	add := &Arithmetic{Op: Add, Left: &Literal{Value: types.IntValue(2)}, Right: &Literal{Value: types.IntValue(3)}}
	v, err := Evaluate(env, add)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Type != types.Integer || v.IVal != 5 {
		t.Errorf("got %+v, want Integer 5", v)
	}

	div := &Arithmetic{Op: Div, Left: &Literal{Value: types.IntValue(1)}, Right: &Literal{Value: types.IntValue(0)}}
	if _, err := Evaluate(env, div); err == nil {
		t.Error("expected division-by-zero error")
	}

	mixed := &Arithmetic{Op: Mul, Left: &Literal{Value: types.IntValue(2)}, Right: &Literal{Value: types.DoubleValue(1.5)}}
	v, err = Evaluate(env, mixed)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.Type != types.Double || v.FVal != 3.0 {
		t.Errorf("got %+v, want Double 3.0", v)
	}
}

func TestEvaluate_FuncCall(t *testing.T) {
	env := testEnv(t)
	call := &FuncCall{Name: "upper", Args: []Expr{&ColumnRef{Qualifier: "t", Name: "name"}}}
	v, err := Evaluate(env, call)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if v.SVal != "ALICE" {
		t.Errorf("got %q, want ALICE", v.SVal)
	}

	if _, err := Evaluate(env, &FuncCall{Name: "nope"}); err == nil {
		t.Error("expected error for unknown function")
	}
}

func TestColumnInfo(t *testing.T) {
	env := testEnv(t)
	desc, err := ColumnInfo(env, &ColumnRef{Qualifier: "t", Name: "id"})
	if err != nil {
		t.Fatalf("ColumnInfo: %v", err)
	}
	if desc.Type != types.Integer {
		t.Errorf("got %v, want Integer", desc.Type)
	}

	desc, err = ColumnInfo(env, &FuncCall{Name: "length", Args: []Expr{&Literal{Value: types.IntValue(1)}}})
	if err != nil {
		t.Fatalf("ColumnInfo: %v", err)
	}
	if desc.Type != types.Integer {
		t.Errorf("LENGTH should report Integer, got %v", desc.Type)
	}
}

func TestCollectSymbols(t *testing.T) {
	e := &Boolean{Op: And, Operands: []Expr{
		&Comparison{Op: Eq, Left: &ColumnRef{Qualifier: "t", Name: "id"}, Right: &Literal{Value: types.IntValue(1)}},
		&Comparison{Op: Eq, Left: &ColumnRef{Name: "name"}, Right: &Literal{Value: types.IntValue(2)}},
	}}
	var out []string
	CollectSymbols(e, &out)
	if len(out) != 2 || out[0] != "t.id" || out[1] != "name" {
		t.Errorf("got %v", out)
	}
}

func TestEqual(t *testing.T) {
	a := &Comparison{Op: Eq, Left: &ColumnRef{Qualifier: "t", Name: "id"}, Right: &Literal{Value: types.IntValue(1)}}
	b := &Comparison{Op: Eq, Left: &ColumnRef{Qualifier: "t", Name: "id"}, Right: &Literal{Value: types.IntValue(1)}}
	c := &Comparison{Op: Eq, Left: &ColumnRef{Qualifier: "t", Name: "id"}, Right: &Literal{Value: types.IntValue(2)}}

	if !Equal(a, b) {
		t.Error("expected a == b")
	}
	if Equal(a, c) {
		t.Error("expected a != c")
	}
}

func TestEnvironment_ShadowsOuterBinding(t *testing.T) {
	outer := testEnv(t)
	innerSchema, err := types.NewSchema([]types.ColumnDesc{
		{Name: "name", TableQualifier: "u", Type: types.VarChar, Length: 32},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	innerTuple := types.NewTuple(innerSchema, []types.Value{{Type: types.VarChar, SVal: "bob"}})
	outer.Push(innerSchema, innerTuple)

	v, err := outer.Lookup("", "name")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if v.SVal != "bob" {
		t.Errorf("expected deepest binding to win, got %q", v.SVal)
	}

	outer.Pop()
	v, err = outer.Lookup("t", "name")
	if err != nil {
		t.Fatalf("Lookup after Pop: %v", err)
	}
	if v.SVal != "alice" {
		t.Errorf("expected outer binding after pop, got %q", v.SVal)
	}
}
