package repository

import (
	"context"
	"fmt"
	"time"

	"holdings_tracker/internal/entity"
	"holdings_tracker/internal/port"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ port.ScoreStore = (*PostgresScoreStore)(nil)

// PostgresScoreStore keeps scores in the token_scores table.
type PostgresScoreStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

func NewPostgresScoreStore(pool *pgxpool.Pool, ttl time.Duration) *PostgresScoreStore {
	return &PostgresScoreStore{pool: pool, ttl: ttl, now: time.Now}
}

func (s *PostgresScoreStore) Load(ctx context.Context, addresses []string) (map[string]float64, error) {
	out := make(map[string]float64, len(addresses))
	if len(addresses) == 0 {
		return out, nil
	}

	// The zero time keeps every row when scores never expire.
	var cutoff time.Time
	if s.ttl > 0 {
		cutoff = s.now().Add(-s.ttl)
	}

	query := `
		SELECT address, score
		FROM token_scores
		WHERE address = ANY($1) AND fetched_at >= $2
	`
	rows, err := s.pool.Query(ctx, query, addresses, cutoff)
	if err != nil {
		return out, fmt.Errorf("%w: query token scores: %v", entity.ErrCacheUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			addr  string
			score float64
		)
		if err := rows.Scan(&addr, &score); err != nil {
			return out, fmt.Errorf("%w: scan token score: %v", entity.ErrCacheUnavailable, err)
		}
		out[addr] = score
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("%w: iterate token scores: %v", entity.ErrCacheUnavailable, err)
	}
	return out, nil
}

func (s *PostgresScoreStore) Save(ctx context.Context, scores map[string]float64) error {
	if len(scores) == 0 {
		return nil
	}

	query := `
		INSERT INTO token_scores (address, score, fetched_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (address) DO UPDATE
		SET score = EXCLUDED.score, fetched_at = EXCLUDED.fetched_at
	`
	now := s.now().UTC()
	batch := &pgx.Batch{}
	for addr, score := range scores {
		batch.Queue(query, addr, score, now)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range scores {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%w: upsert token score: %v", entity.ErrCacheUnavailable, err)
		}
	}
	return nil
}
