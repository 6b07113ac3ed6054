package expr

// Equal reports whether a and b are structurally identical expressions
// (§4.9's structural-equality operation), used by the planner to recognize
// when two predicates reference the same condition.
func Equal(a, b Expr) bool {
	switch av := a.(type) {
	case *Literal:
		bv, ok := b.(*Literal)
		return ok && av.Value.Equal(bv.Value)
	case *ColumnRef:
		bv, ok := b.(*ColumnRef)
		return ok && av.Qualifier == bv.Qualifier && av.Name == bv.Name
	case *Comparison:
		bv, ok := b.(*Comparison)
		return ok && av.Op == bv.Op && Equal(av.Left, bv.Left) && Equal(av.Right, bv.Right)
	case *Boolean:
		bv, ok := b.(*Boolean)
		if !ok || av.Op != bv.Op || len(av.Operands) != len(bv.Operands) {
			return false
		}
		for i := range av.Operands {
			if !Equal(av.Operands[i], bv.Operands[i]) {
				return false
			}
		}
		return true
	case *Arithmetic:
		bv, ok := b.(*Arithmetic)
		return ok && av.Op == bv.Op && Equal(av.Left, bv.Left) && Equal(av.Right, bv.Right)
	case *FuncCall:
		bv, ok := b.(*FuncCall)
		if !ok || av.Name != bv.Name || len(av.Args) != len(bv.Args) {
			return false
		}
		for i := range av.Args {
			if !Equal(av.Args[i], bv.Args[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
