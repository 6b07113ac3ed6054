// Package types defines the value, column, and schema model shared by every
// upper layer: table managers, expressions, plan nodes, and the planner.
package types

import (
	"fmt"

	"github.com/google/uuid"
)

// SQLType enumerates the column types the engine understands.
type SQLType uint8

const (
	Integer SQLType = iota + 1
	BigInt
	Float
	Double
	Char    // fixed-width CHAR(n)
	VarChar // variable-width VARCHAR(n)
	UUID    // optional type, not part of the closed baseline set
)

func (t SQLType) String() string {
	switch t {
	case Integer:
		return "INTEGER"
	case BigInt:
		return "BIGINT"
	case Float:
		return "FLOAT"
	case Double:
		return "DOUBLE"
	case Char:
		return "CHAR"
	case VarChar:
		return "VARCHAR"
	case UUID:
		return "UUID"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// FixedWidth reports whether values of this type occupy a fixed number of
// bytes on disk (ignoring the NULL bitmap), and what that width is.
// CHAR(n) and VARCHAR(n) carry their length out of band via ColumnDesc.Length.
func (t SQLType) FixedWidth() (width int, ok bool) {
	switch t {
	case Integer:
		return 4, true
	case BigInt:
		return 8, true
	case Float:
		return 4, true
	case Double:
		return 8, true
	case UUID:
		return 16, true
	default:
		return 0, false
	}
}

// Value is a single typed datum: either NULL or a concrete Go value matching
// its declared SQLType (int32, int64, float32, float64, string, uuid.UUID).
type Value struct {
	Type  SQLType
	Null  bool
	IVal  int64
	FVal  float64
	SVal  string
	UVal  uuid.UUID
}

// NullValue constructs a NULL value of the given type.
func NullValue(t SQLType) Value { return Value{Type: t, Null: true} }

func IntValue(v int32) Value      { return Value{Type: Integer, IVal: int64(v)} }
func BigIntValue(v int64) Value   { return Value{Type: BigInt, IVal: v} }
func FloatValue(v float32) Value  { return Value{Type: Float, FVal: float64(v)} }
func DoubleValue(v float64) Value { return Value{Type: Double, FVal: v} }
func StringValue(t SQLType, s string) Value {
	return Value{Type: t, SVal: s}
}
func UUIDValue(u uuid.UUID) Value { return Value{Type: UUID, UVal: u} }

// IsNumeric reports whether the value's type participates in arithmetic.
func (v Value) IsNumeric() bool {
	switch v.Type {
	case Integer, BigInt, Float, Double:
		return true
	default:
		return false
	}
}

// Float64 returns the value as a float64, for numeric comparisons/arithmetic.
// The caller must have already checked IsNumeric.
func (v Value) Float64() float64 {
	switch v.Type {
	case Integer, BigInt:
		return float64(v.IVal)
	case Float, Double:
		return v.FVal
	default:
		return 0
	}
}

// Equal reports structural equality between two values, NULL == NULL being
// true here (SQL tri-valued NULL semantics belong to the comparison
// expression, not to this equality check).
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type || v.Null != o.Null {
		return false
	}
	if v.Null {
		return true
	}
	switch v.Type {
	case Integer, BigInt:
		return v.IVal == o.IVal
	case Float, Double:
		return v.FVal == o.FVal
	case Char, VarChar:
		return v.SVal == o.SVal
	case UUID:
		return v.UVal == o.UVal
	default:
		return false
	}
}

// Compare orders two non-NULL values of the same comparable family.
// Returns -1, 0, or 1. Callers must not pass NULL values.
func (v Value) Compare(o Value) int {
	if v.IsNumeric() && o.IsNumeric() {
		a, b := v.Float64(), o.Float64()
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		default:
			return 0
		}
	}
	if v.Type == UUID && o.Type == UUID {
		return compareBytes(v.UVal[:], o.UVal[:])
	}
	return compareBytes([]byte(v.SVal), []byte(o.SVal))
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	switch v.Type {
	case Integer, BigInt:
		return fmt.Sprintf("%d", v.IVal)
	case Float, Double:
		return fmt.Sprintf("%g", v.FVal)
	case UUID:
		return v.UVal.String()
	default:
		return v.SVal
	}
}
