package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/crewdeck/internal/domain"
)

type FeedRepo struct {
	pool *pgxpool.Pool
}

func NewFeedRepo(pool *pgxpool.Pool) *FeedRepo {
	return &FeedRepo{pool: pool}
}

func (r *FeedRepo) Append(ctx context.Context, e *domain.FeedEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO feed_entries (id, workspace_id, project, run_id, message_id, kind, sender_id, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.WorkspaceID, e.Project, e.RunID, e.MessageID, e.Kind, e.SenderID, e.Payload, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("feedRepo.Append: %w", err)
	}

	return nil
}

func (r *FeedRepo) ListByRun(ctx context.Context, workspaceID, runID uuid.UUID, limit, offset int) ([]*domain.FeedEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, workspace_id, project, run_id, message_id, kind, sender_id, payload, created_at
		 FROM feed_entries
		 WHERE workspace_id = $1 AND run_id = $2
		 ORDER BY created_at ASC
		 LIMIT $3 OFFSET $4`,
		workspaceID, runID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("feedRepo.ListByRun: %w", err)
	}
	defer rows.Close()

	var entries []*domain.FeedEntry
	for rows.Next() {
		var e domain.FeedEntry

		err = rows.Scan(&e.ID, &e.WorkspaceID, &e.Project, &e.RunID, &e.MessageID, &e.Kind, &e.SenderID, &e.Payload, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("feedRepo.ListByRun: scan: %w", err)
		}
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("feedRepo.ListByRun: rows: %w", err)
	}

	return entries, nil
}

func (r *FeedRepo) CountByRun(ctx context.Context, workspaceID, runID uuid.UUID) (int64, error) {
	var count int64

	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM feed_entries WHERE workspace_id = $1 AND run_id = $2`,
		workspaceID, runID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("feedRepo.CountByRun: %w", err)
	}

	return count, nil
}
