package waitlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct {
	db queryable
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{db: pool}
}

func (r *repoPG) Create(ctx context.Context, s *Signup) (bool, error) {
	s.ID = uuid.New()
	err := r.db.QueryRow(ctx, `
		INSERT INTO waitlist_signups (id, email, source, user_agent)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO NOTHING
		RETURNING created_at`,
		s.ID, s.Email, s.Source, s.UserAgent,
	).Scan(&s.CreatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("insert signup: %w", err)
	}

	err = r.db.QueryRow(ctx,
		`SELECT id, source, created_at FROM waitlist_signups WHERE email = $1`, s.Email,
	).Scan(&s.ID, &s.Source, &s.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("load existing signup: %w", err)
	}
	return false, nil
}

func (r *repoPG) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM waitlist_signups`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count signups: %w", err)
	}
	return n, nil
}
