// Package engine wires the storage, transaction, and planning layers
// together behind the abstract command surface of §6: Select, Insert,
// CreateTable, Begin, Commit, Rollback, LoadFile, and Exit. It replaces
// tinySQL's SQL-text engine (lexer, parser, AST interpreter) — out of
// scope here — with a surface that takes already-built commands, the way
// a parser or shell sitting above this package would hand them down.
package engine

import (
	"fmt"
	"strconv"

	"nanodb/internal/storage"
)

// Config holds the recognized configuration options of §6.
type Config struct {
	Transactions bool // nanodb.transactions: stored only; Open engages WAL + recovery whether it is on or off
	BaseDir      string
	PageSize     int
	BufferSize   int64
}

// DefaultConfig mirrors spec.md §3/§4.2's defaults.
func DefaultConfig() Config {
	return Config{
		Transactions: true,
		BaseDir:      ".",
		PageSize:     storage.DefaultPageSize,
	}
}

// ApplyOption sets one "nanodb.*" key from §6's configuration table,
// mirroring tinySQL driver's DSN key=value option parsing.
func (c *Config) ApplyOption(key, value string) error {
	switch key {
	case "nanodb.transactions":
		c.Transactions = value == "on"
	case "nanodb.basedir":
		c.BaseDir = value
	case "nanodb.pagesize":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: nanodb.pagesize must be an integer: %v", storage.ErrInvalidArgument, err)
		}
		c.PageSize = n
	case "nanodb.buffersize":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: nanodb.buffersize must be an integer: %v", storage.ErrInvalidArgument, err)
		}
		c.BufferSize = n
	default:
		return fmt.Errorf("%w: unrecognized configuration key %q", storage.ErrInvalidArgument, key)
	}
	return nil
}
