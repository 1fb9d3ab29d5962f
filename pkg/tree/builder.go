package tree

import (
	"slices"

	"github.com/florakb/florakb/pkg/errors"
)

// Entry is the nested-set record for one node reachable from the root.
type Entry struct {
	// Position is the 1-based preorder position (dense, no gaps).
	Position int

	// ParentPosition is the Position of the parent entry, nil for the root.
	ParentPosition *int

	// NodeID is the original domain identifier this entry represents.
	NodeID NodeID

	// Depth is 0 for the root, parent depth + 1 otherwise.
	Depth int

	// RightBound closes the subtree range: every descendant position lies in
	// [Position, RightBound). Nil for leaves; consumers needing a closed
	// range for leaves should read a nil bound as Position.
	RightBound *int

	// IsLeaf reports whether the node has no children in the edge set.
	IsLeaf bool
}

// Result is the output of one build: the entry table ordered by position and
// the resolved root identifier, which callers persist alongside the table.
type Result struct {
	Entries []Entry

	// Root is the resolved root id. When the edge set is a forest this is a
	// synthesized id (max observed id + 1) with no corresponding domain
	// record; the persistence layer inserts a placeholder for it.
	Root NodeID

	// SyntheticRoot reports whether Root was synthesized above a forest.
	SyntheticRoot bool
}

// Build runs the full conversion: clean the raw rows into an edge table, then
// encode it. It is a convenience wrapper around NewEdgeTable and BuildTable.
func Build(src Source, childField, parentField string) (*Result, error) {
	t, err := NewEdgeTable(src, childField, parentField)
	if err != nil {
		return nil, err
	}
	return BuildTable(t)
}

// BuildTable encodes a cleaned edge table as a nested set.
//
// The build runs two passes. The first walks the tree depth-first from the
// resolved root with an explicit stack (input hierarchies reach tens of
// thousands of nodes, so recursion depth is not bounded by the data),
// assigning preorder positions, depths and leaf flags. The second derives
// right bounds from sibling positions in a single ascending sweep.
//
// Fails with NO_ROOT when no parent key is free of incoming edges (empty or
// fully cyclic input) and with CYCLE when a node is reachable twice (two
// parents, or a cycle hanging off the tree). All failures are terminal: no
// partial table is returned.
func BuildTable(t *EdgeTable) (*Result, error) {
	root, synthRoots, err := resolveRoot(t)
	if err != nil {
		return nil, err
	}

	// childrenOf covers the synthetic root, which has no entry in the edge
	// table's index. The table itself stays untouched.
	childrenOf := t.Children
	if synthRoots != nil {
		childrenOf = func(id NodeID) []NodeID {
			if id == root {
				return synthRoots
			}
			return t.Children(id)
		}
	}

	entries, err := assignPositions(root, childrenOf)
	if err != nil {
		return nil, err
	}
	setRightBounds(entries)

	return &Result{
		Entries:       entries,
		Root:          root,
		SyntheticRoot: synthRoots != nil,
	}, nil
}

// resolveRoot finds the effective root of the edge set. A root candidate is a
// node that parents others but is nobody's child. With exactly one candidate
// that node is the root; with several, a synthetic root is introduced above
// them and its (sorted) children are returned.
//
// The synthetic id is max(all observed ids) + 1 rather than the historical
// max(parent ids) + 1, which could collide with a leaf id numerically larger
// than every parent.
func resolveRoot(t *EdgeTable) (NodeID, []NodeID, error) {
	isChild := make(map[NodeID]struct{}, t.Len())
	for _, e := range t.Edges() {
		isChild[e.Child] = struct{}{}
	}

	var candidates []NodeID
	for _, e := range t.Edges() {
		if _, ok := isChild[e.Parent]; !ok {
			candidates = append(candidates, e.Parent)
		}
	}
	slices.Sort(candidates)
	candidates = slices.Compact(candidates)

	switch len(candidates) {
	case 0:
		return 0, nil, errors.New(errors.ErrCodeNoRoot,
			"no root candidates: every parent also appears as a child")
	case 1:
		return candidates[0], nil, nil
	default:
		return t.MaxID() + 1, candidates, nil
	}
}

// frame is one pending node of the depth-first walk.
type frame struct {
	id        NodeID
	depth     int
	parentPos int // 0 for the root
}

// assignPositions performs the preorder numbering pass. Children are visited
// in ascending id order; positions come from a single monotonically
// increasing counter, so the result is dense in [1, N].
func assignPositions(root NodeID, childrenOf func(NodeID) []NodeID) ([]Entry, error) {
	var entries []Entry
	visited := make(map[NodeID]struct{})

	stack := []frame{{id: root, depth: 0, parentPos: 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, dup := visited[f.id]; dup {
			return nil, errors.New(errors.ErrCodeCycle,
				"node %d reached twice: multiple parents or a cycle", f.id)
		}
		visited[f.id] = struct{}{}

		children := childrenOf(f.id)
		e := Entry{
			Position: len(entries) + 1,
			NodeID:   f.id,
			Depth:    f.depth,
			IsLeaf:   len(children) == 0,
		}
		if f.parentPos != 0 {
			e.ParentPosition = intp(f.parentPos)
		}
		entries = append(entries, e)

		// Push in reverse so the smallest child is popped, and therefore
		// numbered, first.
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{
				id:        children[i],
				depth:     f.depth + 1,
				parentPos: e.Position,
			})
		}
	}

	return entries, nil
}

// setRightBounds computes the subtree-closing bound for the root and every
// internal node. The entries are already in ascending position order and a
// parent always precedes its children, so a single forward sweep sees every
// parent's bound before it is needed.
//
// Leaves keep a nil bound. This mirrors the checklist table consumers, which
// treat a missing bound as "range of exactly one position".
func setRightBounds(entries []Entry) {
	// Sibling positions per parent position. Appending in sweep order keeps
	// each slice ascending.
	siblings := make(map[int][]int)
	for _, e := range entries {
		if e.ParentPosition != nil {
			siblings[*e.ParentPosition] = append(siblings[*e.ParentPosition], e.Position)
		}
	}

	for i := range entries {
		e := &entries[i]
		switch {
		case e.Position == 1:
			e.RightBound = intp(len(entries) + 1)
		case !e.IsLeaf:
			// First sibling to the right closes this subtree; with no right
			// sibling the parent's own bound does.
			next := 0
			for _, pos := range siblings[*e.ParentPosition] {
				if pos > e.Position {
					next = pos
					break
				}
			}
			if next != 0 {
				e.RightBound = intp(next)
			} else if parent := entries[*e.ParentPosition-1].RightBound; parent != nil {
				e.RightBound = intp(*parent)
			}
		}
	}
}

func intp(v int) *int { return &v }
