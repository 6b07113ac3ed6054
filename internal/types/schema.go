package types

import (
	"fmt"

	"nanodb/internal/storage"
)

// ColumnDesc describes one column: its name, the table qualifier it is
// resolved under (empty for an unqualified/synthetic column), its SQL type,
// and — for CHAR/VARCHAR — its declared length.
type ColumnDesc struct {
	Name           string
	TableQualifier string
	Type           SQLType
	Length         int // meaningful only for Char/VarChar
}

// QualifiedName renders "qualifier.name", or just "name" when unqualified.
func (c ColumnDesc) QualifiedName() string {
	if c.TableQualifier == "" {
		return c.Name
	}
	return c.TableQualifier + "." + c.Name
}

// KeyKind enumerates the constraint kinds a column can carry.
type KeyKind uint8

const (
	NoKey KeyKind = iota
	PrimaryKey
	CandidateKey
	ForeignKey
)

// ForeignKeyRef names the table/column a FOREIGN KEY constraint points at.
type ForeignKeyRef struct {
	Table  string
	Column string
}

// KeyInfo attaches constraint metadata to a column index within a Schema.
type KeyInfo struct {
	ColumnIndex int
	Kind        KeyKind
	References  *ForeignKeyRef // set only when Kind == ForeignKey
}

// Schema is an ordered list of column descriptors plus key metadata.
// Invariant: column names are unique within a table qualifier (§3).
type Schema struct {
	Columns []ColumnDesc
	Keys    []KeyInfo
}

// NewSchema builds a Schema and validates the uniqueness invariant.
func NewSchema(cols []ColumnDesc) (*Schema, error) {
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		k := c.TableQualifier + "\x00" + c.Name
		if _, dup := seen[k]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q in qualifier %q", storage.ErrSchema, c.Name, c.TableQualifier)
		}
		seen[k] = struct{}{}
	}
	return &Schema{Columns: append([]ColumnDesc(nil), cols...)}, nil
}

// IndexOf resolves a (qualifier, name) pair to a column index. qualifier may
// be empty to mean "any qualifier" (it is an error if that is ambiguous).
func (s *Schema) IndexOf(qualifier, name string) (int, error) {
	found := -1
	for i, c := range s.Columns {
		if !equalFold(c.Name, name) {
			continue
		}
		if qualifier != "" && !equalFold(c.TableQualifier, qualifier) {
			continue
		}
		if found != -1 {
			return -1, fmt.Errorf("%w: ambiguous column reference %q", storage.ErrSchema, name)
		}
		found = i
	}
	if found == -1 {
		if qualifier != "" {
			return -1, fmt.Errorf("%w: unresolved column reference %s.%s", storage.ErrSchema, qualifier, name)
		}
		return -1, fmt.Errorf("%w: unresolved column reference %s", storage.ErrSchema, name)
	}
	return found, nil
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Concat builds the schema that results from concatenating two schemas left
// to right, as NestedLoopsJoin and the planner's join builder need to do
// when combining child schemas.
func Concat(schemas ...*Schema) *Schema {
	out := &Schema{}
	for _, s := range schemas {
		out.Columns = append(out.Columns, s.Columns...)
	}
	return out
}

// WithQualifier returns a copy of the schema with every column's
// TableQualifier rewritten — used by the Rename plan node (§4.10).
func (s *Schema) WithQualifier(q string) *Schema {
	cols := make([]ColumnDesc, len(s.Columns))
	for i, c := range s.Columns {
		c.TableQualifier = q
		cols[i] = c
	}
	return &Schema{Columns: cols, Keys: s.Keys}
}
