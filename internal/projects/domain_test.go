package projects

import (
	"errors"
	"testing"
)

func fixtureTree() []Project {
	parent := func(id int64) *int64 { return &id }
	return []Project{
		{ID: 1, Code: "labs", Title: "Research Labs", Active: true, TreeRoot: 1, TreeLeft: 1, TreeRight: 12},
		{ID: 2, Code: "climate", Title: "Climate", Active: true, ParentID: parent(1), TreeRoot: 1, TreeLeft: 2, TreeRight: 7},
		{ID: 3, Code: "climate-ocean", Title: "Ocean Models", Active: true, ParentID: parent(2), TreeRoot: 1, TreeLeft: 3, TreeRight: 4},
		{ID: 4, Code: "climate-atmos", Title: "Atmosphere", Active: true, ParentID: parent(2), TreeRoot: 1, TreeLeft: 5, TreeRight: 6},
		{ID: 5, Code: "genomics", Title: "Genomics", Active: true, ParentID: parent(1), TreeRoot: 1, TreeLeft: 8, TreeRight: 9},
		{ID: 6, Code: "astro", Title: "Astrophysics", Active: true, ParentID: parent(1), TreeRoot: 1, TreeLeft: 10, TreeRight: 11},
	}
}

func byCode(t *testing.T, rows []Project, code string) Project {
	t.Helper()
	for _, p := range rows {
		if p.Code == code {
			return p
		}
	}
	t.Fatalf("fixture missing project %s", code)
	return Project{}
}

func TestNestedSetPredicates(t *testing.T) {
	rows := fixtureTree()
	root := byCode(t, rows, "labs")
	climate := byCode(t, rows, "climate")
	ocean := byCode(t, rows, "climate-ocean")
	genomics := byCode(t, rows, "genomics")

	if !root.IsRoot() || climate.IsRoot() {
		t.Fatalf("root detection wrong")
	}
	if !ocean.IsLeaf() || climate.IsLeaf() {
		t.Fatalf("leaf detection wrong")
	}
	if got := root.SubtreeSize(); got != 5 {
		t.Fatalf("root subtree size = %d, want 5", got)
	}
	if got := climate.SubtreeSize(); got != 2 {
		t.Fatalf("climate subtree size = %d, want 2", got)
	}
	if ocean.SubtreeSize() != 0 {
		t.Fatalf("leaf subtree size must be 0")
	}
	if !root.IsAncestorOf(ocean) || !climate.IsAncestorOf(ocean) {
		t.Fatalf("ancestor detection wrong")
	}
	if climate.IsAncestorOf(genomics) || ocean.IsAncestorOf(climate) {
		t.Fatalf("false ancestor relation")
	}
	if !ocean.IsDescendantOf(climate) || climate.IsDescendantOf(ocean) {
		t.Fatalf("descendant detection wrong")
	}
	if climate.IsAncestorOf(climate) {
		t.Fatalf("a project must not be its own ancestor")
	}
	other := ocean
	other.TreeRoot = 99
	if root.IsAncestorOf(other) {
		t.Fatalf("projects in different trees are unrelated")
	}
}

func TestIsLeafMatchesSubtreeSize(t *testing.T) {
	for _, p := range fixtureTree() {
		if p.IsLeaf() != (p.SubtreeSize() == 0) {
			t.Fatalf("project %s: IsLeaf and SubtreeSize disagree", p.Code)
		}
	}
}

func TestValidateBoundsRejectsInvertedInterval(t *testing.T) {
	p := Project{ID: 7, Code: "broken", TreeRoot: 7, TreeLeft: 5, TreeRight: 5}
	if err := p.ValidateBounds(); !errors.Is(err, ErrTreeCorrupted) {
		t.Fatalf("expected ErrTreeCorrupted, got %v", err)
	}
}

func TestRelativeDepths(t *testing.T) {
	rows := fixtureTree()
	depths, err := relativeDepths(rows)
	if err != nil {
		t.Fatalf("relativeDepths() error = %v", err)
	}
	want := map[int64]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 1, 6: 1}
	for id, d := range want {
		if depths[id] != d {
			t.Fatalf("depth of project %d = %d, want %d", id, depths[id], d)
		}
	}
}

func TestRelativeDepthsDetectsOverlap(t *testing.T) {
	rows := []Project{
		{ID: 1, Code: "a", TreeRoot: 1, TreeLeft: 1, TreeRight: 6},
		{ID: 2, Code: "b", TreeRoot: 1, TreeLeft: 2, TreeRight: 5},
		// Overlaps b without being nested inside it.
		{ID: 3, Code: "c", TreeRoot: 1, TreeLeft: 4, TreeRight: 7},
	}
	if _, err := relativeDepths(rows); !errors.Is(err, ErrTreeCorrupted) {
		t.Fatalf("expected ErrTreeCorrupted, got %v", err)
	}
}

func TestCheckTreeIntegrity(t *testing.T) {
	if v := CheckTreeIntegrity(fixtureTree()); len(v) != 0 {
		t.Fatalf("healthy tree reported violations: %v", v)
	}
	broken := fixtureTree()
	broken[2].TreeRight = broken[2].TreeLeft
	if v := CheckTreeIntegrity(broken); len(v) == 0 {
		t.Fatalf("inverted bounds not reported")
	}
}
