// Package viz renders taxonomy subtrees as Graphviz diagrams.
package viz

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/florakb/florakb/pkg/errors"
	"github.com/florakb/florakb/pkg/store"
)

// Options configures DOT generation.
type Options struct {
	// Detailed includes preorder position, depth and right bound in labels.
	// When false, only the taxon name and id are shown.
	Detailed bool
}

// ToDOT converts tree nodes (as returned by store.Subtree) to Graphviz DOT.
// The resulting string can be rendered with [Render].
func ToDOT(nodes []store.TreeNode, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph taxonomy {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	byPosition := make(map[int]store.TreeNode, len(nodes))
	for _, n := range nodes {
		byPosition[n.Position] = n
	}

	for _, n := range nodes {
		fmt.Fprintf(&buf, "  %d [label=%q];\n", n.PlantNameID, fmtLabel(n, opts.Detailed))
	}

	buf.WriteString("\n")
	for _, n := range nodes {
		if n.ParentPosition == nil {
			continue
		}
		parent, ok := byPosition[*n.ParentPosition]
		if !ok {
			// Parent outside the requested subtree window.
			continue
		}
		fmt.Fprintf(&buf, "  %d -> %d;\n", parent.PlantNameID, n.PlantNameID)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n store.TreeNode, detailed bool) string {
	label := fmt.Sprintf("%s\n#%d", n.TaxonName, n.PlantNameID)
	if !detailed {
		return label
	}
	lo, hi := n.Span()
	return label + fmt.Sprintf("\npos %d..%d, depth %d", lo, hi, n.Depth)
}

// Formats supported by Render.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
	FormatPNG = "png"
)

// Render renders DOT source to the requested format using Graphviz. FormatDOT
// returns the source unchanged, so callers can treat all formats uniformly.
func Render(ctx context.Context, dot, format string) ([]byte, error) {
	if format == FormatDOT {
		return []byte(dot), nil
	}

	var layout graphviz.Format
	switch strings.ToLower(format) {
	case FormatSVG:
		layout = graphviz.SVG
	case FormatPNG:
		layout = graphviz.PNG
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported format %q", format)
	}

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, layout, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render %s", format)
	}
	return buf.Bytes(), nil
}
