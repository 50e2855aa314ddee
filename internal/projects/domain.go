// Package projects models the research-project hierarchy as a nested set.
package projects

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTreeCorrupted indicates the nested-set bounds violate their invariants.
// It is a fatal data-integrity condition; callers must surface it, never repair it.
var ErrTreeCorrupted = errors.New("projects: tree bounds corrupted")

// Project is one node of the hierarchy. TreeLeft and TreeRight encode the
// node's position: the interval of a node strictly contains the intervals of
// all of its descendants and is disjoint from everything else under the same
// TreeRoot.
type Project struct {
	ID             int64  `json:"id"`
	Code           string `json:"code"`
	Title          string `json:"title"`
	Active         bool   `json:"active"`
	ParentID       *int64 `json:"parent_id,omitempty"`
	TreeRoot       int64  `json:"tree_root"`
	TreeLeft       int64  `json:"tree_left"`
	TreeRight      int64  `json:"tree_right"`
	ChargingExempt bool   `json:"charging_exempt"`
}

// ValidateBounds checks the per-node invariant tree_left < tree_right.
func (p Project) ValidateBounds() error {
	if p.TreeLeft >= p.TreeRight {
		return fmt.Errorf("%w: project %s has bounds [%d,%d]", ErrTreeCorrupted, p.Code, p.TreeLeft, p.TreeRight)
	}
	return nil
}

// IsRoot reports whether the project is the root of its tree.
func (p Project) IsRoot() bool {
	return p.TreeRoot == p.ID
}

// SubtreeSize returns the number of strict descendants.
func (p Project) SubtreeSize() int64 {
	return (p.TreeRight - p.TreeLeft - 1) / 2
}

// IsLeaf reports whether the project has no descendants.
func (p Project) IsLeaf() bool {
	return p.SubtreeSize() == 0
}

// IsAncestorOf reports whether other lies strictly inside p's interval.
// Projects in different trees are never related.
func (p Project) IsAncestorOf(other Project) bool {
	if p.TreeRoot != other.TreeRoot {
		return false
	}
	return p.TreeLeft < other.TreeLeft && other.TreeRight < p.TreeRight
}

// IsDescendantOf is the inverse of IsAncestorOf.
func (p Project) IsDescendantOf(other Project) bool {
	return other.IsAncestorOf(p)
}

// SubtreeBounds captures the interval filter for subtree-scoped queries.
type SubtreeBounds struct {
	TreeRoot  int64
	TreeLeft  int64
	TreeRight int64
}

// Bounds returns the subtree filter rooted at p.
func (p Project) Bounds() SubtreeBounds {
	return SubtreeBounds{TreeRoot: p.TreeRoot, TreeLeft: p.TreeLeft, TreeRight: p.TreeRight}
}

// relativeDepths assigns each node of a subtree its depth relative to the
// subtree root. Rows must be ordered by tree_left and belong to one subtree;
// the walk keeps a stack of open intervals, so a partially overlapping row
// surfaces as corruption.
func relativeDepths(rows []Project) (map[int64]int, error) {
	depths := make(map[int64]int, len(rows))
	var stack []int64
	for _, row := range rows {
		if err := row.ValidateBounds(); err != nil {
			return nil, err
		}
		for len(stack) > 0 && stack[len(stack)-1] < row.TreeRight {
			if stack[len(stack)-1] > row.TreeLeft {
				return nil, fmt.Errorf("%w: project %s overlaps an open interval", ErrTreeCorrupted, row.Code)
			}
			stack = stack[:len(stack)-1]
		}
		depths[row.ID] = len(stack)
		stack = append(stack, row.TreeRight)
	}
	return depths, nil
}

// joinPath renders an ancestor chain as a path string, root first.
func joinPath(chain []Project, separator string) string {
	if separator == "" {
		separator = "/"
	}
	codes := make([]string, len(chain))
	for i, p := range chain {
		codes[i] = p.Code
	}
	return strings.Join(codes, separator)
}
