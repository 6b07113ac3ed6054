package plan

import "nanodb/internal/types"

// Rename rewrites its child's output schema with a new table qualifier
// (§4.10), e.g. for a `FROM t AS alias` clause. Leaves tuple values
// untouched — only the schema's TableQualifier column changes.
type Rename struct {
	Child     Node
	Qualifier string

	schema *types.Schema
}

func NewRename(child Node, qualifier string) *Rename {
	return &Rename{Child: child, Qualifier: qualifier}
}

func (r *Rename) Prepare() error {
	if err := r.Child.Prepare(); err != nil {
		return err
	}
	r.schema = r.Child.Schema().WithQualifier(r.Qualifier)
	return nil
}

func (r *Rename) Initialize() error { return r.Child.Initialize() }

func (r *Rename) GetNextTuple() (*types.Tuple, error) {
	t, err := r.Child.GetNextTuple()
	if err != nil || t == nil {
		return t, err
	}
	return &types.Tuple{Schema: r.schema, Values: t.Values, ID: t.ID}, nil
}

func (r *Rename) Cleanup() error { return r.Child.Cleanup() }

func (r *Rename) Schema() *types.Schema { return r.schema }

func (r *Rename) Cost() PlanCost { return r.Child.Cost() }
