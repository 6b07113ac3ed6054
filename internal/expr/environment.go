package expr

import (
	"fmt"

	"nanodb/internal/storage"
	"nanodb/internal/types"
)

// binding pairs a schema with the tuple currently bound to it — one side
// of a join, for instance, while the other side is still being iterated.
type binding struct {
	schema *types.Schema
	tuple  *types.Tuple
}

// Environment holds a sequence of (schema, tuple) bindings (§4.9). Column
// lookup resolves the deepest (most recently pushed) matching binding,
// the way a NestedLoopsJoin's inner loop shadows its outer loop's columns
// when both sides happen to share a name.
type Environment struct {
	bindings []binding
}

// NewEnvironment returns an empty environment.
func NewEnvironment() *Environment {
	return &Environment{}
}

// Push adds a new, deepest binding.
func (e *Environment) Push(schema *types.Schema, tuple *types.Tuple) {
	e.bindings = append(e.bindings, binding{schema: schema, tuple: tuple})
}

// Pop removes the deepest binding.
func (e *Environment) Pop() {
	if len(e.bindings) == 0 {
		return
	}
	e.bindings = e.bindings[:len(e.bindings)-1]
}

// Lookup resolves (qualifier, name) against the deepest binding that
// contains it.
func (e *Environment) Lookup(qualifier, name string) (types.Value, error) {
	for i := len(e.bindings) - 1; i >= 0; i-- {
		b := e.bindings[i]
		idx, err := b.schema.IndexOf(qualifier, name)
		if err != nil {
			continue
		}
		return b.tuple.Values[idx], nil
	}
	if qualifier != "" {
		return types.Value{}, fmt.Errorf("%w: unresolved column reference %s.%s", storage.ErrSchema, qualifier, name)
	}
	return types.Value{}, fmt.Errorf("%w: unresolved column reference %s", storage.ErrSchema, name)
}

// ColumnInfo resolves (qualifier, name) to its column descriptor, searching
// the same bindings Lookup does.
func (e *Environment) ColumnInfo(qualifier, name string) (types.ColumnDesc, error) {
	for i := len(e.bindings) - 1; i >= 0; i-- {
		b := e.bindings[i]
		idx, err := b.schema.IndexOf(qualifier, name)
		if err != nil {
			continue
		}
		return b.schema.Columns[idx], nil
	}
	if qualifier != "" {
		return types.ColumnDesc{}, fmt.Errorf("%w: unresolved column reference %s.%s", storage.ErrSchema, qualifier, name)
	}
	return types.ColumnDesc{}, fmt.Errorf("%w: unresolved column reference %s", storage.ErrSchema, name)
}
