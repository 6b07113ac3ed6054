package planner

import (
	"sort"
	"strings"

	"nanodb/internal/plan"
)

// component is one entry of the DP table P: a prepared plan.Node covering
// exactly the leaves named in leaves, plus a record of which top-level
// conjuncts have already been folded into it somewhere in its subtree (so
// a later join combining two components never re-applies the same
// conjunct twice).
type component struct {
	leaves  map[string]bool
	node    plan.Node
	applied []bool
}

func singletonLeafSet(name string) map[string]bool {
	return map[string]bool{name: true}
}

func unionLeafSet(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

// leafSetKey canonicalizes a leaf-name set into a DP table key independent
// of insertion order.
func leafSetKey(set map[string]bool) string {
	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, "\x00")
}
