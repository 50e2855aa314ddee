package projects

import (
	"context"
	"fmt"
)

// Store is the narrow query surface the navigation service relies on.
type Store interface {
	FetchProject(ctx context.Context, code string) (Project, error)
	FetchByID(ctx context.Context, id int64) (Project, error)
	FetchSubtree(ctx context.Context, bounds SubtreeBounds) ([]Project, error)
	FetchAncestors(ctx context.Context, p Project) ([]Project, error)
	FetchChildren(ctx context.Context, parentID int64) ([]Project, error)
}

// Service answers hierarchy questions using interval algebra on the stored bounds.
type Service struct {
	store Store
}

// NewService wires a Store into the navigation service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get resolves a project by code and verifies its bounds.
func (s *Service) Get(ctx context.Context, code string) (Project, error) {
	p, err := s.store.FetchProject(ctx, code)
	if err != nil {
		return Project{}, err
	}
	if err := p.ValidateBounds(); err != nil {
		return Project{}, err
	}
	return p, nil
}

// Ancestors returns the chain from the tree root down to the project,
// excluding the project itself unless includeSelf is set.
func (s *Service) Ancestors(ctx context.Context, p Project, includeSelf bool) ([]Project, error) {
	chain, err := s.store.FetchAncestors(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]Project, 0, len(chain))
	for _, a := range chain {
		if err := a.ValidateBounds(); err != nil {
			return nil, err
		}
		if a.ID == p.ID && !includeSelf {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Descendants returns the subtree under p ordered by tree_left. A maxDepth of
// zero or less means unlimited; depth 1 yields direct children only.
func (s *Service) Descendants(ctx context.Context, p Project, includeSelf bool, maxDepth int) ([]Project, error) {
	rows, err := s.store.FetchSubtree(ctx, p.Bounds())
	if err != nil {
		return nil, err
	}
	depths, err := relativeDepths(rows)
	if err != nil {
		return nil, err
	}
	out := make([]Project, 0, len(rows))
	for _, d := range rows {
		depth := depths[d.ID]
		if depth == 0 && !includeSelf {
			continue
		}
		if maxDepth > 0 && depth > maxDepth {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Children returns the direct children of p.
func (s *Service) Children(ctx context.Context, p Project) ([]Project, error) {
	kids, err := s.store.FetchChildren(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for _, k := range kids {
		if err := k.ValidateBounds(); err != nil {
			return nil, err
		}
	}
	return kids, nil
}

// Siblings returns projects sharing p's parent. A root project has no
// siblings; with includeSelf it yields just itself.
func (s *Service) Siblings(ctx context.Context, p Project, includeSelf bool) ([]Project, error) {
	if p.ParentID == nil {
		if includeSelf {
			return []Project{p}, nil
		}
		return []Project{}, nil
	}
	kids, err := s.store.FetchChildren(ctx, *p.ParentID)
	if err != nil {
		return nil, err
	}
	out := make([]Project, 0, len(kids))
	for _, k := range kids {
		if err := k.ValidateBounds(); err != nil {
			return nil, err
		}
		if k.ID == p.ID && !includeSelf {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

// Root returns the root of p's tree.
func (s *Service) Root(ctx context.Context, p Project) (Project, error) {
	if p.IsRoot() {
		return p, nil
	}
	root, err := s.store.FetchByID(ctx, p.TreeRoot)
	if err != nil {
		return Project{}, err
	}
	if err := root.ValidateBounds(); err != nil {
		return Project{}, err
	}
	if !root.IsRoot() {
		return Project{}, fmt.Errorf("%w: project %s points at non-root %s", ErrTreeCorrupted, p.Code, root.Code)
	}
	return root, nil
}

// Depth counts strict ancestors; a root project has depth zero.
func (s *Service) Depth(ctx context.Context, p Project) (int, error) {
	chain, err := s.Ancestors(ctx, p, false)
	if err != nil {
		return 0, err
	}
	return len(chain), nil
}

// Path renders the project's ancestor chain as a separated string, root first.
func (s *Service) Path(ctx context.Context, p Project, separator string) (string, error) {
	chain, err := s.Ancestors(ctx, p, true)
	if err != nil {
		return "", err
	}
	return joinPath(chain, separator), nil
}
