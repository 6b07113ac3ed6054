package plan

import (
	"nanodb/internal/expr"
	"nanodb/internal/types"
)

// ProjectionItem is one entry in a Project node's select list: either a
// bare wildcard (`*`), a table-qualified wildcard (`t.*`), or an
// expression with an optional alias. Grounded on tinySQL's SelectItem
// (Expr/Alias/Star), split into an explicit qualifier field to
// distinguish `*` from `t.*` (tinySQL resolves that distinction inside
// its Star-expansion code rather than in the parsed struct).
type ProjectionItem struct {
	Expr              expr.Expr
	Alias             string
	Wildcard          bool
	WildcardQualifier string // empty for a bare `*`
}

// projCol is a resolved output column: its descriptor plus how to compute
// its value from an input tuple.
type projCol struct {
	desc types.ColumnDesc
	// srcIndex >= 0 means "copy Values[srcIndex] from the input tuple"
	// (wildcard expansion); srcIndex < 0 means evaluate expr against env.
	srcIndex int
	expr     expr.Expr
}

// Project evaluates a projection list against its child, expanding bare
// and table-qualified wildcards into the matching input columns (§4.10).
type Project struct {
	Child Node
	Items []ProjectionItem

	schema  *types.Schema
	cost    PlanCost
	env     *expr.Environment
	outCols []projCol
}

func NewProject(child Node, items []ProjectionItem) *Project {
	return &Project{Child: child, Items: items}
}

func (p *Project) Prepare() error {
	if err := p.Child.Prepare(); err != nil {
		return err
	}
	childSchema := p.Child.Schema()

	resolveEnv := expr.NewEnvironment()
	resolveEnv.Push(childSchema, nil)

	var cols []types.ColumnDesc
	var outCols []projCol
	for _, item := range p.Items {
		if item.Wildcard {
			for i, c := range childSchema.Columns {
				if item.WildcardQualifier != "" && c.TableQualifier != item.WildcardQualifier {
					continue
				}
				cols = append(cols, c)
				outCols = append(outCols, projCol{desc: c, srcIndex: i})
			}
			continue
		}
		desc, err := expr.ColumnInfo(resolveEnv, item.Expr)
		if err != nil {
			return err
		}
		if item.Alias != "" {
			desc.Name = item.Alias
			desc.TableQualifier = ""
		}
		cols = append(cols, desc)
		outCols = append(outCols, projCol{desc: desc, srcIndex: -1, expr: item.Expr})
	}

	schema, err := types.NewSchema(cols)
	if err != nil {
		return err
	}
	p.schema = schema
	p.outCols = outCols

	childCost := p.Child.Cost()
	p.cost = PlanCost{
		NumTuples:   childCost.NumTuples,
		TupleSize:   tupleByteEstimate(p.schema),
		CPUCost:     childCost.CPUCost + childCost.NumTuples,
		NumBlockIOs: childCost.NumBlockIOs,
	}
	p.env = expr.NewEnvironment()
	return nil
}

func (p *Project) Initialize() error { return p.Child.Initialize() }

func (p *Project) GetNextTuple() (*types.Tuple, error) {
	in, err := p.Child.GetNextTuple()
	if err != nil || in == nil {
		return in, err
	}
	vals := make([]types.Value, len(p.outCols))
	p.env.Push(p.Child.Schema(), in)
	for i, col := range p.outCols {
		if col.srcIndex >= 0 {
			vals[i] = in.Values[col.srcIndex]
			continue
		}
		v, err := expr.Evaluate(p.env, col.expr)
		if err != nil {
			p.env.Pop()
			return nil, err
		}
		vals[i] = v
	}
	p.env.Pop()
	return types.NewTuple(p.schema, vals), nil
}

func (p *Project) Cleanup() error { return p.Child.Cleanup() }

func (p *Project) Schema() *types.Schema { return p.schema }

func (p *Project) Cost() PlanCost { return p.cost }
