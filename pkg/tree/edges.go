package tree

import (
	"slices"
	"strconv"
	"strings"

	"github.com/florakb/florakb/pkg/errors"
)

// NodeID is the original domain identifier of a node (e.g. a WCVP plant name
// id). The builder assumes nothing beyond equality and ordering.
type NodeID int64

// Edge is a single child→parent relationship.
type Edge struct {
	Child  NodeID
	Parent NodeID
}

// RawRow is one untyped input record keyed by column name. Values typically
// come straight from a CSV reader (strings) or a database scan (integers).
type RawRow map[string]any

// Source is a minimal columnar view over the raw tabular input: the declared
// column set plus the rows. Rows may omit columns; an omitted or nil value is
// treated as a missing parent, not an error.
type Source struct {
	Columns []string
	Rows    []RawRow
}

// HasColumn reports whether the source declares the named column.
func (s Source) HasColumn(name string) bool {
	return slices.Contains(s.Columns, name)
}

// EdgeTable is a validated, deduplicated set of (child, parent) pairs with a
// derived parent→children index. Construct it with NewEdgeTable.
type EdgeTable struct {
	edges    []Edge
	children map[NodeID][]NodeID // per parent, sorted ascending
	maxID    NodeID              // largest id observed on either side of an edge
}

// NewEdgeTable cleans raw rows into an edge table.
//
// Cleaning rules:
//   - MISSING_FIELD if childField or parentField is not a declared column.
//   - Rows where either value is absent or nil are dropped: a node without a
//     recorded parent is not an edge.
//   - Rows where child equals parent are dropped; a self-loop can never be
//     part of a tree.
//   - Exact duplicate (child, parent) pairs are dropped.
//   - Values are coerced to int64; BAD_IDENTIFIER if a value cannot be.
//   - EMPTY_INPUT if no edges survive cleaning.
func NewEdgeTable(src Source, childField, parentField string) (*EdgeTable, error) {
	for _, col := range []string{childField, parentField} {
		if !src.HasColumn(col) {
			return nil, errors.New(errors.ErrCodeMissingField, "column %q not found in input", col)
		}
	}

	t := &EdgeTable{children: make(map[NodeID][]NodeID)}
	seen := make(map[Edge]struct{}, len(src.Rows))

	for _, row := range src.Rows {
		child, ok, err := coerceID(row[childField], childField)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		parent, ok, err := coerceID(row[parentField], parentField)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if child == parent {
			continue
		}

		e := Edge{Child: child, Parent: parent}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		t.edges = append(t.edges, e)
		t.children[parent] = append(t.children[parent], child)
		t.maxID = max(t.maxID, child, parent)
	}

	if len(t.edges) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyInput, "no edges remain after cleaning")
	}

	// Sibling order is not constrained by the source data; sort ascending so
	// repeated builds over permuted input produce identical trees.
	for _, kids := range t.children {
		slices.Sort(kids)
	}

	return t, nil
}

// Edges returns the cleaned, deduplicated edges in first-seen order.
func (t *EdgeTable) Edges() []Edge {
	return t.edges
}

// Children returns the children of id in ascending order, or nil if id is not
// a parent. The returned slice is shared; callers must not modify it.
func (t *EdgeTable) Children(id NodeID) []NodeID {
	return t.children[id]
}

// IsParent reports whether id appears as a parent in the edge set.
func (t *EdgeTable) IsParent(id NodeID) bool {
	_, ok := t.children[id]
	return ok
}

// Len returns the number of cleaned edges.
func (t *EdgeTable) Len() int {
	return len(t.edges)
}

// MaxID returns the largest identifier observed on either side of any edge.
// Used to derive a collision-free synthetic root id.
func (t *EdgeTable) MaxID() NodeID {
	return t.maxID
}

// coerceID converts a raw cell value to a NodeID. The second return value is
// false when the value is absent (nil or blank string), which callers treat
// as "no edge" rather than an error. Integral floats are accepted because the
// upstream CSV layer parses unquoted numerics as float64; fractional values
// are rejected.
func coerceID(v any, field string) (NodeID, bool, error) {
	switch val := v.(type) {
	case nil:
		return 0, false, nil
	case NodeID:
		return val, true, nil
	case int64:
		return NodeID(val), true, nil
	case int:
		return NodeID(val), true, nil
	case int32:
		return NodeID(val), true, nil
	case float64:
		if val != float64(int64(val)) {
			return 0, false, errors.New(errors.ErrCodeBadIdentifier,
				"field %q: value %v is not an integral identifier", field, val)
		}
		return NodeID(val), true, nil
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, false, nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false, errors.New(errors.ErrCodeBadIdentifier,
				"field %q: value %q is not an integer identifier", field, val)
		}
		return NodeID(n), true, nil
	default:
		return 0, false, errors.New(errors.ErrCodeBadIdentifier,
			"field %q: unsupported value type %T", field, v)
	}
}
