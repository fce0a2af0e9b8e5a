package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores each session as a JSONB document in research_sessions.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Store, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT state FROM research_sessions WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return decode(data)
}

func (r *PostgresRepository) Save(ctx context.Context, s *Store) error {
	data, err := encode(s)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO research_sessions (id, title, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.pool.Exec(ctx, query, s.ID, s.Title, data, s.CreatedAt, s.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
