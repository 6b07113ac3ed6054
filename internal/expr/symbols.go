package expr

// CollectSymbols appends the qualified names of every column reference
// within e to out (§4.9's getAllSymbols(out)), used by the planner to
// determine which relations an expression depends on.
func CollectSymbols(e Expr, out *[]string) {
	switch ex := e.(type) {
	case *Literal:
	case *ColumnRef:
		if ex.Qualifier != "" {
			*out = append(*out, ex.Qualifier+"."+ex.Name)
		} else {
			*out = append(*out, ex.Name)
		}
	case *Comparison:
		CollectSymbols(ex.Left, out)
		CollectSymbols(ex.Right, out)
	case *Boolean:
		for _, operand := range ex.Operands {
			CollectSymbols(operand, out)
		}
	case *Arithmetic:
		CollectSymbols(ex.Left, out)
		CollectSymbols(ex.Right, out)
	case *FuncCall:
		for _, arg := range ex.Args {
			CollectSymbols(arg, out)
		}
	}
}
