package storage

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/example/restaurant-matching/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveSummary(ctx context.Context, sum models.SessionSummary) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO session_history(session_id, location, player_names, mutual_like_ids, candidate_count, created_at, completed_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (session_id) DO NOTHING`,
		sum.SessionID, sum.LocationDescription, pq.Array(sum.PlayerNames), pq.Array(sum.MutualLikeIDs),
		sum.CandidateCount, sum.CreatedAt, sum.CompletedAt)
	return err
}

func (p *PostgresStore) Close() error { return p.db.Close() }
