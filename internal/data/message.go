package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/devricklin/channel-curator/internal/biz/domain"
	"github.com/devricklin/channel-curator/internal/biz/repo"
	"github.com/devricklin/channel-curator/internal/biz/usecase"
)

const messageColumns = `id, source, message_id, content, category, category_label, ai_score, url, media_path, posted_at, created_at`

// messageRepo implements the message repository
type messageRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewMessageRepo creates a new message repository
func NewMessageRepo(db *sql.DB) repo.MessageRepo {
	return &messageRepo{db: db, now: time.Now}
}

// Exists checks the content fingerprint
func (r *messageRepo) Exists(ctx context.Context, contentHash string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM messages WHERE content_hash = ? LIMIT 1`, contentHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check message hash: %w", err)
	}
	return true, nil
}

// SaveMany inserts messages in one transaction, ignoring known fingerprints
func (r *messageRepo) SaveMany(ctx context.Context, msgs []domain.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO messages
			(source, message_id, content, content_hash, category, category_label, ai_score, url, media_path, posted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := r.now().Unix()
	inserted := 0
	for _, m := range msgs {
		createdAt := now
		if !m.CreatedAt.IsZero() {
			createdAt = m.CreatedAt.Unix()
		}
		res, err := stmt.ExecContext(ctx,
			m.Source,
			m.MessageID,
			m.Content,
			usecase.Fingerprint(m.Content),
			string(m.Category),
			m.CategoryLabel,
			m.AIScore,
			m.URL,
			m.MediaPath,
			unixOrZero(m.Date),
			createdAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert message: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit messages: %w", err)
	}
	return inserted, nil
}

// GetByID gets a message by row id
func (r *messageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}
	return &m, nil
}

// Recent lists messages newest first
func (r *messageRepo) Recent(ctx context.Context, offset, limit int) ([]domain.Message, error) {
	return r.query(ctx, `SELECT `+messageColumns+` FROM messages ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, offset)
}

// Search finds messages by keywords; an empty keyword list matches nothing
func (r *messageRepo) Search(ctx context.Context, keywords []string, matchAll bool, limit int) ([]domain.Message, error) {
	var conds []string
	var args []any
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw == "" {
			continue
		}
		conds = append(conds, `content LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(kw))
	}
	if len(conds) == 0 {
		return nil, nil
	}

	joiner := " OR "
	if matchAll {
		joiner = " AND "
	}
	args = append(args, limit)
	return r.query(ctx, `SELECT `+messageColumns+` FROM messages WHERE `+strings.Join(conds, joiner)+
		` ORDER BY created_at DESC, id DESC LIMIT ?`, args...)
}

// ListByDate lists the day's messages oldest first
func (r *messageRepo) ListByDate(ctx context.Context, day time.Time) ([]domain.Message, error) {
	start, end := dayBounds(day)
	return r.query(ctx, `SELECT `+messageColumns+` FROM messages WHERE created_at >= ? AND created_at < ? ORDER BY created_at ASC, id ASC`, start, end)
}

// CountByDate counts the day's messages
func (r *messageRepo) CountByDate(ctx context.Context, day time.Time) (int, error) {
	start, end := dayBounds(day)
	return r.count(ctx, `SELECT COUNT(*) FROM messages WHERE created_at >= ? AND created_at < ?`, start, end)
}

// CountAll counts all messages
func (r *messageRepo) CountAll(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM messages`)
}

// ClearAll deletes all messages
func (r *messageRepo) ClearAll(ctx context.Context) (int64, error) {
	return execAffected(ctx, r.db, `DELETE FROM messages`)
}

// ClearByDate deletes the day's messages
func (r *messageRepo) ClearByDate(ctx context.Context, day time.Time) (int64, error) {
	start, end := dayBounds(day)
	return execAffected(ctx, r.db, `DELETE FROM messages WHERE created_at >= ? AND created_at < ?`, start, end)
}

// ClearBefore deletes messages stored before the day starts
func (r *messageRepo) ClearBefore(ctx context.Context, day time.Time) (int64, error) {
	start, _ := dayBounds(day)
	return execAffected(ctx, r.db, `DELETE FROM messages WHERE created_at < ?`, start)
}

func (r *messageRepo) query(ctx context.Context, query string, args ...any) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *messageRepo) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (domain.Message, error) {
	var m domain.Message
	var category string
	var postedAt, createdAt int64
	err := s.Scan(&m.ID, &m.Source, &m.MessageID, &m.Content, &category, &m.CategoryLabel,
		&m.AIScore, &m.URL, &m.MediaPath, &postedAt, &createdAt)
	if err != nil {
		return domain.Message{}, err
	}
	m.Category = domain.Category(category)
	m.Date = timeOrZero(postedAt)
	m.CreatedAt = time.Unix(createdAt, 0)
	return m, nil
}

func execAffected(ctx context.Context, db *sql.DB, query string, args ...any) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rows: %w", err)
	}
	return res.RowsAffected()
}
