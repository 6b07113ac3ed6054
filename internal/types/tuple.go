package types

// TupleID identifies a tuple's storage location: the page it lives on and
// its slot index within that page's slot directory.
type TupleID struct {
	PageNo uint32
	Slot   uint16
}

// Tuple is an ordered sequence of typed values. A Tuple either lives free in
// memory (ID is the zero value) or is a view over a slot inside a page, in
// which case its lifetime is bounded by the pin described in §3 — callers
// that need a Tuple to outlive an unpin must call Clone.
type Tuple struct {
	Schema *Schema
	Values []Value
	ID     TupleID
}

// NewTuple constructs a free-standing tuple (not backed by any page).
func NewTuple(schema *Schema, values []Value) *Tuple {
	return &Tuple{Schema: schema, Values: values}
}

// Clone returns a deep-enough copy that is safe to retain past an unpin.
func (t *Tuple) Clone() *Tuple {
	vals := make([]Value, len(t.Values))
	copy(vals, t.Values)
	return &Tuple{Schema: t.Schema, Values: vals, ID: t.ID}
}

// Concat builds the tuple that results from joining two tuples left to
// right — used by NestedLoopsJoin.
func Concat(schema *Schema, l, r *Tuple) *Tuple {
	vals := make([]Value, 0, len(l.Values)+len(r.Values))
	vals = append(vals, l.Values...)
	vals = append(vals, r.Values...)
	return &Tuple{Schema: schema, Values: vals}
}
