package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/IrishDec/heiyuquiz-server/internal/domain"
)

// Backend persists sessions, questions, and submissions in Postgres. It is
// the durable tier behind the in-process session cache: consulted on cache
// miss, written to best-effort on every mutation.
type Backend struct {
	pool *pgxpool.Pool
}

func NewBackend(pool *pgxpool.Pool) *Backend {
	return &Backend{pool: pool}
}

// SaveSession writes the session row and its question rows in one
// transaction. Re-saving an existing id is a no-op.
func (b *Backend) SaveSession(ctx context.Context, sess domain.Session) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO sessions (id, category, topic, country, created_at, closes_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		sess.ID, sess.Category, sess.Topic, sess.Country, sess.CreatedAt, sess.ClosesAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i, q := range sess.Questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options: %w", err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO session_questions (session_id, ordinal, text, options, correct_index)
			 VALUES ($1, $2, $3, $4::jsonb, $5)
			 ON CONFLICT (session_id, ordinal) DO NOTHING`,
			sess.ID, i, q.Text, string(options), q.CorrectIndex)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}
	return tx.Commit(ctx)
}

// LoadSession reads a session and its questions. Absence is not an error.
func (b *Backend) LoadSession(ctx context.Context, id string) (domain.Session, bool, error) {
	var sess domain.Session
	err := b.pool.QueryRow(ctx,
		`SELECT id, category, topic, country, created_at, closes_at FROM sessions WHERE id=$1`, id,
	).Scan(&sess.ID, &sess.Category, &sess.Topic, &sess.Country, &sess.CreatedAt, &sess.ClosesAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, false, nil
	}
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("load session: %w", err)
	}

	rows, err := b.pool.Query(ctx,
		`SELECT text, options, correct_index FROM session_questions WHERE session_id=$1 ORDER BY ordinal`, id)
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var q domain.Question
		var options []byte
		if err := rows.Scan(&q.Text, &options, &q.CorrectIndex); err != nil {
			return domain.Session{}, false, fmt.Errorf("scan question: %w", err)
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return domain.Session{}, false, fmt.Errorf("unmarshal options: %w", err)
		}
		sess.Questions = append(sess.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return domain.Session{}, false, fmt.Errorf("iterate questions: %w", err)
	}
	return sess, true, nil
}

// SaveSubmission upserts on the (session, fingerprint) key, so a concurrent
// duplicate from another process cannot create a second row.
func (b *Backend) SaveSubmission(ctx context.Context, sessionID string, sub domain.Submission) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO session_submissions (session_id, fingerprint, display_name, score, submitted_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (session_id, fingerprint) DO NOTHING`,
		sessionID, sub.Fingerprint, sub.DisplayName, sub.Score, sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// LoadSubmissions returns the ledger for a session in submission order.
func (b *Backend) LoadSubmissions(ctx context.Context, sessionID string) ([]domain.Submission, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT fingerprint, display_name, score, submitted_at
		 FROM session_submissions WHERE session_id=$1 ORDER BY submitted_at`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load submissions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Submission
	for rows.Next() {
		sub := domain.Submission{SessionID: sessionID}
		if err := rows.Scan(&sub.Fingerprint, &sub.DisplayName, &sub.Score, &sub.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return subs, nil
}
