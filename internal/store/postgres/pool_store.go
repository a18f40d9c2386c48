package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apexpool/feetier/internal/domain"
)

// PoolStore implements domain.PoolStore using PostgreSQL.
type PoolStore struct {
	pool *pgxpool.Pool
}

// NewPoolStore creates a new PoolStore backed by the given connection pool.
func NewPoolStore(pool *pgxpool.Pool) *PoolStore {
	return &PoolStore{pool: pool}
}

// Upsert inserts or updates a single pool configuration.
func (s *PoolStore) Upsert(ctx context.Context, p domain.Pool) error {
	const query = `
		INSERT INTO pools (
			id, address, windows, weights,
			low_trigger, high_trigger, low_fee, regular_fee, high_fee,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			address      = EXCLUDED.address,
			windows      = EXCLUDED.windows,
			weights      = EXCLUDED.weights,
			low_trigger  = EXCLUDED.low_trigger,
			high_trigger = EXCLUDED.high_trigger,
			low_fee      = EXCLUDED.low_fee,
			regular_fee  = EXCLUDED.regular_fee,
			high_fee     = EXCLUDED.high_fee,
			updated_at   = NOW()`

	weights := make([]int64, len(p.Weights))
	for i, w := range p.Weights {
		weights[i] = int64(w)
	}

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.Address, p.Windows, weights,
		int64(p.Tiers.LowTrigger), int64(p.Tiers.HighTrigger),
		int64(p.Tiers.LowFee), int64(p.Tiers.RegularFee), int64(p.Tiers.HighFee),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert pool %s: %w", p.ID, err)
	}
	return nil
}

// Get returns the pool with the given ID, or domain.ErrNotFound.
func (s *PoolStore) Get(ctx context.Context, id string) (domain.Pool, error) {
	const query = `
		SELECT id, address, windows, weights,
		       low_trigger, high_trigger, low_fee, regular_fee, high_fee,
		       created_at, updated_at
		FROM pools WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	p, err := scanPool(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Pool{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Pool{}, fmt.Errorf("postgres: get pool %s: %w", id, err)
	}
	return p, nil
}

// List returns all pool configurations ordered by ID.
func (s *PoolStore) List(ctx context.Context) ([]domain.Pool, error) {
	const query = `
		SELECT id, address, windows, weights,
		       low_trigger, high_trigger, low_fee, regular_fee, high_fee,
		       created_at, updated_at
		FROM pools ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list pools: %w", err)
	}
	defer rows.Close()

	var out []domain.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan pool: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list pools: %w", err)
	}
	return out, nil
}

// scanPool reads one pool row.
func scanPool(row pgx.Row) (domain.Pool, error) {
	var (
		p                              domain.Pool
		weights                        []int64
		lowT, highT, lowF, regF, highF int64
	)
	if err := row.Scan(
		&p.ID, &p.Address, &p.Windows, &weights,
		&lowT, &highT, &lowF, &regF, &highF,
		&p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return domain.Pool{}, err
	}
	p.Weights = make([]uint64, len(weights))
	for i, w := range weights {
		p.Weights[i] = uint64(w)
	}
	p.Tiers = domain.TierConfig{
		LowTrigger:  uint64(lowT),
		HighTrigger: uint64(highT),
		LowFee:      uint64(lowF),
		RegularFee:  uint64(regF),
		HighFee:     uint64(highF),
	}
	return p, nil
}
