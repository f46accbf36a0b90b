package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
	"github.com/devricklin/channel-curator/internal/biz/usecase"
)

// summaryRepo implements the daily summary repository
type summaryRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewSummaryRepo creates a new summary repository
func NewSummaryRepo(db *sql.DB) repo.SummaryRepo {
	return &summaryRepo{db: db, now: time.Now}
}

// Save upserts the summary by date
func (r *summaryRepo) Save(ctx context.Context, s *domain.Summary) error {
	categories, err := json.Marshal(s.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode categories: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO summaries (date, content, categories, msg_count, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			content = excluded.content,
			categories = excluded.categories,
			msg_count = excluded.msg_count,
			created_at = excluded.created_at
	`, s.Date, s.Content, string(categories), s.MsgCount, r.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

// Recent lists summaries, latest date first
func (r *summaryRepo) Recent(ctx context.Context, limit int) ([]domain.Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, date, content, categories, msg_count, created_at
		FROM summaries
		ORDER BY date DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer rows.Close()

	var out []domain.Summary
	for rows.Next() {
		var s domain.Summary
		var categories string
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.Date, &s.Content, &categories, &s.MsgCount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}
		if err := json.Unmarshal([]byte(categories), &s.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode categories: %w", err)
		}
		s.CreatedAt = time.Unix(createdAt, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

// CountAll counts all summaries
func (r *summaryRepo) CountAll(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM summaries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count summaries: %w", err)
	}
	return n, nil
}

// ClearAll deletes all summaries
func (r *summaryRepo) ClearAll(ctx context.Context) (int64, error) {
	return execAffected(ctx, r.db, `DELETE FROM summaries`)
}

// ClearByDate deletes the summary of the day
func (r *summaryRepo) ClearByDate(ctx context.Context, day time.Time) (int64, error) {
	return execAffected(ctx, r.db, `DELETE FROM summaries WHERE date = ?`, usecase.DateKey(day))
}

// ClearBefore deletes summaries of earlier days
func (r *summaryRepo) ClearBefore(ctx context.Context, day time.Time) (int64, error) {
	return execAffected(ctx, r.db, `DELETE FROM summaries WHERE date < ?`, usecase.DateKey(day))
}
