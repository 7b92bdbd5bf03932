package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/constructlink/constructlink/internal/model"
)

// CreateProject creates a new project.
func CreateProject(ctx context.Context, db *sql.DB, name, location string) (*model.Project, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO projects (name, location) VALUES (?, ?)`,
		name, location,
	)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting project id: %w", err)
	}

	return GetProject(ctx, db, id)
}

// GetProject returns a project by ID.
func GetProject(ctx context.Context, db *sql.DB, id int64) (*model.Project, error) {
	p := &model.Project{}
	var location sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, location, created_at, deleted_at
		 FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &location, &p.CreatedAt, &p.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}
	p.Location = location.String
	return p, nil
}

// ListProjects returns all non-deleted projects.
func ListProjects(ctx context.Context, db *sql.DB) ([]model.Project, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, location, created_at, deleted_at
		 FROM projects WHERE deleted_at IS NULL ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		var location sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &location, &p.CreatedAt, &p.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		p.Location = location.String
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// UpdateProject updates a project's name and location.
func UpdateProject(ctx context.Context, db *sql.DB, id int64, name, location string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE projects SET name = ?, location = ? WHERE id = ? AND deleted_at IS NULL`,
		name, location, id,
	)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	return nil
}

// DeleteProject soft-deletes a project. Fails while the project still has
// batches that are not closed out.
func DeleteProject(ctx context.Context, db *sql.DB, id int64) error {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM batches
		 WHERE project_id = ? AND status NOT IN ('returned', 'canceled')`, id,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking project batches: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("cannot delete project: %d batches still open", count)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE projects SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return nil
}
