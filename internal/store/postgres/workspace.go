package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/crewdeck/internal/domain"
)

type WorkspaceRepo struct {
	pool *pgxpool.Pool
}

func NewWorkspaceRepo(pool *pgxpool.Pool) *WorkspaceRepo {
	return &WorkspaceRepo{pool: pool}
}

func (r *WorkspaceRepo) Create(ctx context.Context, w *domain.Workspace) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO workspaces (id, name, current_project, created_at)
		 VALUES ($1, $2, $3, $4)`,
		w.ID, w.Name, w.CurrentProject, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("workspaceRepo.Create: %w", err)
	}

	return nil
}

func (r *WorkspaceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	var w domain.Workspace

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, current_project, created_at FROM workspaces WHERE id = $1`,
		id,
	).Scan(&w.ID, &w.Name, &w.CurrentProject, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("workspaceRepo.GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("workspaceRepo.GetByID: %w", err)
	}

	return &w, nil
}

func (r *WorkspaceRepo) List(ctx context.Context) ([]*domain.Workspace, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, current_project, created_at FROM workspaces ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("workspaceRepo.List: %w", err)
	}
	defer rows.Close()

	var workspaces []*domain.Workspace
	for rows.Next() {
		var w domain.Workspace

		err = rows.Scan(&w.ID, &w.Name, &w.CurrentProject, &w.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("workspaceRepo.List: scan: %w", err)
		}
		workspaces = append(workspaces, &w)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("workspaceRepo.List: rows: %w", err)
	}

	return workspaces, nil
}

// CurrentProject reads the live current project directly from the row, so
// the sync coordinator always observes the most recent write.
func (r *WorkspaceRepo) CurrentProject(ctx context.Context, id uuid.UUID) (string, error) {
	var project string

	err := r.pool.QueryRow(ctx,
		`SELECT current_project FROM workspaces WHERE id = $1`,
		id,
	).Scan(&project)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("workspaceRepo.CurrentProject: %w", domain.ErrNotFound)
		}
		return "", fmt.Errorf("workspaceRepo.CurrentProject: %w", err)
	}

	return project, nil
}

func (r *WorkspaceRepo) SetCurrentProject(ctx context.Context, id uuid.UUID, project string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE workspaces SET current_project = $2 WHERE id = $1`,
		id, project,
	)
	if err != nil {
		return fmt.Errorf("workspaceRepo.SetCurrentProject: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workspaceRepo.SetCurrentProject: %w", domain.ErrNotFound)
	}

	return nil
}
