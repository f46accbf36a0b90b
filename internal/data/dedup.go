package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
)

// dedupRepo implements the dedup audit repository
type dedupRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewDedupRepo creates a new dedup audit repository
func NewDedupRepo(db *sql.DB) repo.DedupRepo {
	return &dedupRepo{db: db, now: time.Now}
}

// SaveMany appends records in one transaction
func (r *dedupRepo) SaveMany(ctx context.Context, records []domain.DedupRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now().Unix()
	for _, rec := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ai_dedup_groups (kept_content, kept_source, removed_content, removed_source, similarity_reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.KeptContent, rec.KeptSource, rec.RemovedContent, rec.RemovedSource, rec.Reason, now)
		if err != nil {
			return fmt.Errorf("failed to insert dedup record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dedup records: %w", err)
	}
	return nil
}

// Recent lists records newest first
func (r *dedupRepo) Recent(ctx context.Context, limit int) ([]domain.DedupRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kept_content, kept_source, removed_content, removed_source, similarity_reason, created_at
		FROM ai_dedup_groups
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query dedup records: %w", err)
	}
	defer rows.Close()

	var records []domain.DedupRecord
	for rows.Next() {
		var rec domain.DedupRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.KeptContent, &rec.KeptSource, &rec.RemovedContent,
			&rec.RemovedSource, &rec.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan dedup record: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountSince counts records created at or after since
func (r *dedupRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ai_dedup_groups WHERE created_at >= ?`, since.Unix()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count dedup records: %w", err)
	}
	return n, nil
}
