package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apexpool/feetier/internal/domain"
)

// DecisionStore implements domain.DecisionStore using PostgreSQL.
type DecisionStore struct {
	pool *pgxpool.Pool
}

// NewDecisionStore creates a new DecisionStore backed by the given connection
// pool.
func NewDecisionStore(pool *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

// Insert records one fee decision.
func (s *DecisionStore) Insert(ctx context.Context, d domain.FeeDecision) error {
	const query = `
		INSERT INTO fee_decisions (
			id, pool_id, seq, volatility, tier, fee,
			bootstrap, persistent, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		d.ID, d.PoolID, int64(d.Seq), int64(d.Volatility), d.Tier.String(), int64(d.Fee),
		d.Bootstrap, d.Persistent, d.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert decision %s: %w", d.ID, err)
	}
	return nil
}

// ListByPool returns the most recent decisions for a pool, newest first.
func (s *DecisionStore) ListByPool(ctx context.Context, poolID string, limit int) ([]domain.FeeDecision, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
		SELECT id, pool_id, seq, volatility, tier, fee,
		       bootstrap, persistent, evaluated_at
		FROM fee_decisions
		WHERE pool_id = $1
		ORDER BY seq DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, poolID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list decisions for %s: %w", poolID, err)
	}
	defer rows.Close()
	return scanDecisions(rows)
}

// ListBefore returns all decisions evaluated strictly before the cutoff,
// oldest first. Used by the archiver.
func (s *DecisionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.FeeDecision, error) {
	const query = `
		SELECT id, pool_id, seq, volatility, tier, fee,
		       bootstrap, persistent, evaluated_at
		FROM fee_decisions
		WHERE evaluated_at < $1
		ORDER BY evaluated_at`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list decisions before %s: %w", before, err)
	}
	defer rows.Close()
	return scanDecisions(rows)
}

// DeleteBefore removes all decisions evaluated strictly before the cutoff and
// returns the number of rows removed. Called only after an archive upload has
// been verified.
func (s *DecisionStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fee_decisions WHERE evaluated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete decisions before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

// scanDecisions reads all decision rows.
func scanDecisions(rows pgx.Rows) ([]domain.FeeDecision, error) {
	var out []domain.FeeDecision
	for rows.Next() {
		var (
			d                    domain.FeeDecision
			seq, volatility, fee int64
			tier                 string
		)
		if err := rows.Scan(
			&d.ID, &d.PoolID, &seq, &volatility, &tier, &fee,
			&d.Bootstrap, &d.Persistent, &d.EvaluatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan decision: %w", err)
		}
		parsed, err := domain.ParseTier(tier)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan decision: %w", err)
		}
		d.Seq = uint64(seq)
		d.Volatility = uint64(volatility)
		d.Fee = uint64(fee)
		d.Tier = parsed
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: scan decisions: %w", err)
	}
	return out, nil
}
