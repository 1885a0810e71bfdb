package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"seowibe/rank-service/internal/model"
)

// Snapshots appends to and reads the position_snapshots table. Rows are
// never updated: every check writes a new fact.
type Snapshots struct {
	pool *pgxpool.Pool
}

func NewSnapshots(pool *pgxpool.Pool) *Snapshots {
	return &Snapshots{pool: pool}
}

// Insert appends one snapshot and fills in its ID and timestamp.
func (s *Snapshots) Insert(ctx context.Context, snap *model.PositionSnapshot) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO position_snapshots (account_id, product_id, source, position, keywords)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		snap.AccountID, snap.ProductID, snap.Source, snap.Position, snap.Keywords,
	).Scan(&snap.ID, &snap.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Since returns the account's snapshots taken at or after since, oldest
// first. productID 0 covers the whole account.
func (s *Snapshots) Since(ctx context.Context, accountID, productID int64, since time.Time) ([]model.PositionSnapshot, error) {
	const base = `
		SELECT id, account_id, product_id, source, position,
		       COALESCE(keywords, '{}'), created_at
		FROM position_snapshots
		WHERE account_id = $1 AND created_at >= $2`

	var (
		rows pgx.Rows
		err  error
	)
	if productID != 0 {
		rows, err = s.pool.Query(ctx, base+` AND product_id = $3 ORDER BY created_at`, accountID, since, productID)
	} else {
		rows, err = s.pool.Query(ctx, base+` ORDER BY created_at`, accountID, since)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshots query: %w", err)
	}
	defer rows.Close()

	out := make([]model.PositionSnapshot, 0)
	for rows.Next() {
		var snap model.PositionSnapshot
		if err := rows.Scan(
			&snap.ID, &snap.AccountID, &snap.ProductID, &snap.Source, &snap.Position,
			&snap.Keywords, &snap.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("snapshot scan: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
