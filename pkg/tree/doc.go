// Package tree converts a flat edge list of (child, parent) identifier pairs
// into a nested-set (modified preorder traversal) encoding.
//
// The input is an arbitrarily ordered, possibly duplicated set of parent→child
// pairs covering tens of thousands of nodes, potentially forming a forest with
// several disconnected roots. The output assigns every reachable node a dense
// 1-based preorder position, its depth, a leaf flag, and a right bound that
// closes its subtree range, so that "X is a descendant of Y" reduces to
//
//	Y.Position <= X.Position && X.Position < Y.RightBound
//
// with no recursive parent-chasing.
//
// # Pipeline
//
//  1. NewEdgeTable validates and cleans the raw rows into a deduplicated edge
//     set with a parent→children index (children sorted ascending).
//  2. Build discovers the root (synthesizing one above a forest), walks the
//     tree depth-first assigning preorder positions, then computes right
//     bounds in a second pass.
//
// A build consumes one snapshot of edges and produces one complete entry
// table; there is no incremental renumbering. Any change to the input
// requires a full rebuild. Builds share no state, so concurrent builds over
// independent edge tables are safe.
//
// # Conventions
//
// Children are visited in ascending identifier order. The upstream checklist
// data does not constrain sibling order, so the ascending tie-break is chosen
// to make output reproducible under input row permutation.
//
// Leaves carry no right bound (RightBound is nil). Consumers that need a
// closed range for every node should treat a nil bound as equal to the node's
// own position.
package tree
