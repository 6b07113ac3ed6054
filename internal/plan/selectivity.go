package plan

import "nanodb/internal/expr"

// Selectivity defaults (§4.11): the estimated fraction of input rows a
// predicate passes, used only for cost estimation — never to change
// query results.
const (
	selEquality   = 0.1
	selRange      = 0.25
	selUnknown    = 0.25
	selInequality = 0.333
)

// selectivityOf estimates the fraction of rows e passes. Comparisons are
// classified by operator (equality, inequality, range); boolean
// connectives combine their operands' selectivities (AND = product,
// OR = 1 - Π(1-selᵢ), NOT = 1 - sel); anything else defaults to
// selUnknown.
func selectivityOf(e expr.Expr) float64 {
	switch ex := e.(type) {
	case *expr.Comparison:
		switch ex.Op {
		case expr.Eq:
			return selEquality
		case expr.Ne:
			return selInequality
		case expr.Lt, expr.Le, expr.Gt, expr.Ge:
			return selRange
		default:
			return selUnknown
		}
	case *expr.Boolean:
		switch ex.Op {
		case expr.And:
			product := 1.0
			for _, operand := range ex.Operands {
				product *= selectivityOf(operand)
			}
			return product
		case expr.Or:
			complement := 1.0
			for _, operand := range ex.Operands {
				complement *= 1 - selectivityOf(operand)
			}
			return 1 - complement
		case expr.Not:
			if len(ex.Operands) != 1 {
				return selUnknown
			}
			return 1 - selectivityOf(ex.Operands[0])
		default:
			return selUnknown
		}
	default:
		return selUnknown
	}
}
