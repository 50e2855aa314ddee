package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tallyhq/tally/internal/platform/db"
)

var (
	// ErrDuplicateCode indicates the project code is already taken.
	ErrDuplicateCode = errors.New("projects: duplicate project code")
	// ErrCrossTreeMove indicates a move between different trees.
	ErrCrossTreeMove = errors.New("projects: cannot move between trees")
	// ErrMoveIntoSubtree indicates a move under the node's own descendant.
	ErrMoveIntoSubtree = errors.New("projects: cannot move under own descendant")
)

// Lock class for pg_advisory_xact_lock; paired with the tree root id it
// serializes structural writers per tree.
const treeLockClass = int32(0x7a11)

// TreeWriter performs structural mutations. Every mutation renumbers the
// affected bounds inside one transaction holding the tree's advisory lock;
// a second writer blocks on the lock and re-reads bounds once it is granted,
// so renumberings apply strictly one after another.
type TreeWriter struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTreeWriter constructs a TreeWriter.
func NewTreeWriter(pool *pgxpool.Pool, logger *slog.Logger) *TreeWriter {
	return &TreeWriter{pool: pool, logger: logger}
}

// InsertInput describes a project to be inserted.
type InsertInput struct {
	Code           string
	Title          string
	ParentCode     string
	ChargingExempt bool
}

func lockTree(ctx context.Context, tx pgx.Tx, treeRoot int64) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, treeLockClass, int32(treeRoot))
	return err
}

func fetchForUpdate(ctx context.Context, tx pgx.Tx, code string) (Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE code = $1`
	p, err := scanProject(tx.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrProjectNotFound
		}
		return Project{}, err
	}
	if err := p.ValidateBounds(); err != nil {
		return Project{}, err
	}
	return p, nil
}

func mapInsertErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateCode
	}
	return err
}

// Insert adds a project. With an empty ParentCode a new tree is created;
// otherwise the node becomes the rightmost child of the parent and every
// bound at or beyond the insertion point shifts by two.
func (w *TreeWriter) Insert(ctx context.Context, input InsertInput) (Project, error) {
	var inserted Project
	mutationID := uuid.NewString()

	err := db.WithTx(ctx, w.pool, func(tx pgx.Tx) error {
		if input.ParentCode == "" {
			return insertRoot(ctx, tx, input, &inserted)
		}

		parent, err := fetchForUpdate(ctx, tx, input.ParentCode)
		if err != nil {
			return err
		}
		if err := lockTree(ctx, tx, parent.TreeRoot); err != nil {
			return err
		}
		// Bounds may have shifted while waiting on the lock.
		parent, err = fetchForUpdate(ctx, tx, input.ParentCode)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE projects SET tree_left = tree_left + 2 WHERE tree_root = $1 AND tree_left >= $2`,
			parent.TreeRoot, parent.TreeRight); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE projects SET tree_right = tree_right + 2 WHERE tree_root = $1 AND tree_right >= $2`,
			parent.TreeRoot, parent.TreeRight); err != nil {
			return err
		}

		row := tx.QueryRow(ctx, `
INSERT INTO projects (code, title, active, parent_id, tree_root, tree_left, tree_right, charging_exempt)
VALUES ($1, $2, TRUE, $3, $4, $5, $6, $7)
RETURNING `+projectColumns,
			input.Code, input.Title, parent.ID, parent.TreeRoot, parent.TreeRight, parent.TreeRight+1, input.ChargingExempt)
		p, err := scanProject(row)
		if err != nil {
			return mapInsertErr(err)
		}
		inserted = p
		return nil
	})
	if err != nil {
		return Project{}, err
	}

	if w.logger != nil {
		w.logger.Info("project inserted",
			slog.String("mutation_id", mutationID),
			slog.String("code", inserted.Code),
			slog.Int64("tree_root", inserted.TreeRoot))
	}
	return inserted, nil
}

func insertRoot(ctx context.Context, tx pgx.Tx, input InsertInput, out *Project) error {
	row := tx.QueryRow(ctx, `
INSERT INTO projects (code, title, active, parent_id, tree_root, tree_left, tree_right, charging_exempt)
VALUES ($1, $2, TRUE, NULL, 0, 1, 2, $3)
RETURNING `+projectColumns,
		input.Code, input.Title, input.ChargingExempt)
	p, err := scanProject(row)
	if err != nil {
		return mapInsertErr(err)
	}
	// A root is its own tree_root; the id is only known after insert.
	row = tx.QueryRow(ctx,
		`UPDATE projects SET tree_root = id WHERE id = $1 RETURNING `+projectColumns, p.ID)
	p, err = scanProject(row)
	if err != nil {
		return err
	}
	*out = p
	return nil
}

// Move relocates a subtree under a new parent within the same tree.
func (w *TreeWriter) Move(ctx context.Context, code, newParentCode string) (Project, error) {
	var moved Project
	mutationID := uuid.NewString()

	err := db.WithTx(ctx, w.pool, func(tx pgx.Tx) error {
		node, err := fetchForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}
		if err := lockTree(ctx, tx, node.TreeRoot); err != nil {
			return err
		}
		node, err = fetchForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}
		parent, err := fetchForUpdate(ctx, tx, newParentCode)
		if err != nil {
			return err
		}
		if parent.TreeRoot != node.TreeRoot {
			return ErrCrossTreeMove
		}
		if node.ID == parent.ID || parent.IsDescendantOf(node) {
			return ErrMoveIntoSubtree
		}

		width := node.TreeRight - node.TreeLeft + 1

		// Park the subtree outside the interval space.
		if _, err := tx.Exec(ctx, `
UPDATE projects SET tree_left = -tree_left, tree_right = -tree_right
WHERE tree_root = $1 AND tree_left BETWEEN $2 AND $3`,
			node.TreeRoot, node.TreeLeft, node.TreeRight); err != nil {
			return err
		}
		// Close the gap it left behind.
		if _, err := tx.Exec(ctx,
			`UPDATE projects SET tree_left = tree_left - $2 WHERE tree_root = $1 AND tree_left > $3`,
			node.TreeRoot, width, node.TreeRight); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE projects SET tree_right = tree_right - $2 WHERE tree_root = $1 AND tree_right > $3`,
			node.TreeRoot, width, node.TreeRight); err != nil {
			return err
		}
		// The parent's bounds may have moved when the gap closed.
		parent, err = fetchForUpdate(ctx, tx, newParentCode)
		if err != nil {
			return err
		}
		// Open a gap at the new insertion point.
		if _, err := tx.Exec(ctx,
			`UPDATE projects SET tree_left = tree_left + $2 WHERE tree_root = $1 AND tree_left >= $3`,
			node.TreeRoot, width, parent.TreeRight); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE projects SET tree_right = tree_right + $2 WHERE tree_root = $1 AND tree_right >= $3`,
			node.TreeRoot, width, parent.TreeRight); err != nil {
			return err
		}
		// Land the parked subtree at its new position.
		offset := parent.TreeRight - node.TreeLeft
		if _, err := tx.Exec(ctx, `
UPDATE projects SET tree_left = -tree_left + $2, tree_right = -tree_right + $2
WHERE tree_root = $1 AND tree_left < 0`,
			node.TreeRoot, offset); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE projects SET parent_id = $2 WHERE id = $1`, node.ID, parent.ID); err != nil {
			return err
		}

		moved, err = fetchForUpdate(ctx, tx, code)
		return err
	})
	if err != nil {
		return Project{}, err
	}

	if w.logger != nil {
		w.logger.Info("project moved",
			slog.String("mutation_id", mutationID),
			slog.String("code", moved.Code),
			slog.String("new_parent", newParentCode))
	}
	return moved, nil
}

// Remove deletes a project and its whole subtree, closing the interval gap.
func (w *TreeWriter) Remove(ctx context.Context, code string) error {
	mutationID := uuid.NewString()

	err := db.WithTx(ctx, w.pool, func(tx pgx.Tx) error {
		node, err := fetchForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}
		if err := lockTree(ctx, tx, node.TreeRoot); err != nil {
			return err
		}
		node, err = fetchForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}

		width := node.TreeRight - node.TreeLeft + 1
		if _, err := tx.Exec(ctx,
			`DELETE FROM projects WHERE tree_root = $1 AND tree_left BETWEEN $2 AND $3`,
			node.TreeRoot, node.TreeLeft, node.TreeRight); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE projects SET tree_left = tree_left - $2 WHERE tree_root = $1 AND tree_left > $3`,
			node.TreeRoot, width, node.TreeRight); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE projects SET tree_right = tree_right - $2 WHERE tree_root = $1 AND tree_right > $3`,
			node.TreeRoot, width, node.TreeRight); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	if w.logger != nil {
		w.logger.Info("project removed", slog.String("mutation_id", mutationID), slog.String("code", code))
	}
	return nil
}

// CheckTreeIntegrity walks one tree and returns a description of every
// invariant violation found. It never repairs anything.
func CheckTreeIntegrity(rows []Project) []string {
	var violations []string
	for _, p := range rows {
		if p.TreeLeft >= p.TreeRight {
			violations = append(violations, fmt.Sprintf("project %s: tree_left %d >= tree_right %d", p.Code, p.TreeLeft, p.TreeRight))
		}
	}
	if len(violations) > 0 {
		return violations
	}
	if _, err := relativeDepths(rows); err != nil {
		violations = append(violations, err.Error())
	}
	return violations
}
