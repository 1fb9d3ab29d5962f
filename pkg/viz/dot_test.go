package viz

import (
	"context"
	"strings"
	"testing"

	"github.com/florakb/florakb/pkg/errors"
	"github.com/florakb/florakb/pkg/store"
)

func ip(v int) *int { return &v }

func sampleNodes() []store.TreeNode {
	return []store.TreeNode{
		{Position: 1, PlantNameID: 1, Depth: 0, RightBound: ip(4), TaxonName: "Poaceae"},
		{Position: 2, ParentPosition: ip(1), PlantNameID: 2, Depth: 1, RightBound: ip(4), TaxonName: "Poa"},
		{Position: 3, ParentPosition: ip(2), PlantNameID: 3, Depth: 2, IsLeaf: true, TaxonName: "Poa annua"},
	}
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(sampleNodes(), Options{})

	if !strings.HasPrefix(dot, "digraph taxonomy {") {
		t.Errorf("missing digraph header:\n%s", dot)
	}
	for _, want := range []string{
		`1 [label="Poaceae\n#1"]`,
		`3 [label="Poa annua\n#3"]`,
		"1 -> 2;",
		"2 -> 3;",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot := ToDOT(sampleNodes(), Options{Detailed: true})
	if !strings.Contains(dot, "pos 1..4, depth 0") {
		t.Errorf("detailed label missing span:\n%s", dot)
	}
	// Leaf span covers just itself.
	if !strings.Contains(dot, "pos 3..4, depth 2") {
		t.Errorf("leaf label wrong:\n%s", dot)
	}
}

func TestToDOTParentOutsideWindow(t *testing.T) {
	// Subtree queries hand back windows whose root still records a parent
	// position outside the window; no dangling edge may be emitted.
	nodes := sampleNodes()[1:]
	dot := ToDOT(nodes, Options{})
	if strings.Contains(dot, "1 -> 2") {
		t.Errorf("edge to node outside window:\n%s", dot)
	}
	if !strings.Contains(dot, "2 -> 3;") {
		t.Errorf("in-window edge missing:\n%s", dot)
	}
}

func TestRenderDOTPassthrough(t *testing.T) {
	dot := ToDOT(sampleNodes(), Options{})
	out, err := Render(context.Background(), dot, FormatDOT)
	if err != nil {
		t.Fatalf("Render dot: %v", err)
	}
	if string(out) != dot {
		t.Error("dot format must pass through unchanged")
	}
}

func TestRenderUnsupportedFormat(t *testing.T) {
	_, err := Render(context.Background(), "digraph {}", "gif")
	if !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Fatalf("err = %v, want UNSUPPORTED", err)
	}
}
