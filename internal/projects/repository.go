package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrProjectNotFound indicates the requested project code is missing.
var ErrProjectNotFound = errors.New("projects: project not found")

// Repository provides persistence helpers for the project hierarchy.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a project repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const projectColumns = `id, code, title, active, parent_id, tree_root, tree_left, tree_right, charging_exempt`

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Code, &p.Title, &p.Active, &p.ParentID, &p.TreeRoot, &p.TreeLeft, &p.TreeRight, &p.ChargingExempt)
	return p, err
}

func collectProjects(rows pgx.Rows) ([]Project, error) {
	defer rows.Close()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FetchProject resolves a project by its unique code.
func (r *Repository) FetchProject(ctx context.Context, code string) (Project, error) {
	if r == nil || r.pool == nil {
		return Project{}, fmt.Errorf("projects repo not initialised")
	}
	query := `SELECT ` + projectColumns + ` FROM projects WHERE code = $1`
	p, err := scanProject(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrProjectNotFound
		}
		return Project{}, err
	}
	return p, nil
}

// FetchByID resolves a project by identifier.
func (r *Repository) FetchByID(ctx context.Context, id int64) (Project, error) {
	if r == nil || r.pool == nil {
		return Project{}, fmt.Errorf("projects repo not initialised")
	}
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	p, err := scanProject(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrProjectNotFound
		}
		return Project{}, err
	}
	return p, nil
}

// FetchSubtree returns every project inside the given bounds, the subtree
// root included, ordered by tree_left.
func (r *Repository) FetchSubtree(ctx context.Context, bounds SubtreeBounds) ([]Project, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("projects repo not initialised")
	}
	query := `
SELECT ` + projectColumns + `
FROM projects
WHERE tree_root = $1 AND tree_left >= $2 AND tree_right <= $3
ORDER BY tree_left`
	rows, err := r.pool.Query(ctx, query, bounds.TreeRoot, bounds.TreeLeft, bounds.TreeRight)
	if err != nil {
		return nil, err
	}
	return collectProjects(rows)
}

// FetchAncestors returns the chain containing the given project, ordered root
// first and ending at the project itself.
func (r *Repository) FetchAncestors(ctx context.Context, p Project) ([]Project, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("projects repo not initialised")
	}
	query := `
SELECT ` + projectColumns + `
FROM projects
WHERE tree_root = $1 AND tree_left <= $2 AND tree_right >= $3
ORDER BY tree_left`
	rows, err := r.pool.Query(ctx, query, p.TreeRoot, p.TreeLeft, p.TreeRight)
	if err != nil {
		return nil, err
	}
	return collectProjects(rows)
}

// FetchChildren returns the direct children of a project ordered by tree_left.
func (r *Repository) FetchChildren(ctx context.Context, parentID int64) ([]Project, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("projects repo not initialised")
	}
	query := `SELECT ` + projectColumns + ` FROM projects WHERE parent_id = $1 ORDER BY tree_left`
	rows, err := r.pool.Query(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	return collectProjects(rows)
}

// FetchRoots returns every active root project.
func (r *Repository) FetchRoots(ctx context.Context) ([]Project, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("projects repo not initialised")
	}
	query := `SELECT ` + projectColumns + ` FROM projects WHERE tree_root = id AND active ORDER BY code`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return collectProjects(rows)
}

// FetchTree returns every project sharing the given root, ordered by tree_left.
func (r *Repository) FetchTree(ctx context.Context, treeRoot int64) ([]Project, error) {
	if r == nil || r.pool == nil {
		return nil, fmt.Errorf("projects repo not initialised")
	}
	query := `SELECT ` + projectColumns + ` FROM projects WHERE tree_root = $1 ORDER BY tree_left`
	rows, err := r.pool.Query(ctx, query, treeRoot)
	if err != nil {
		return nil, err
	}
	return collectProjects(rows)
}
