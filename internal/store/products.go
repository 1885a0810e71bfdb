// Package store implements the Postgres persistence layer behind the seo
// service's storage interfaces. All queries are account-scoped: a row is
// only visible to the account that owns it.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"seowibe/rank-service/internal/model"
	"seowibe/rank-service/internal/seo"
)

// Products reads and updates the products table.
type Products struct {
	pool *pgxpool.Pool
}

func NewProducts(pool *pgxpool.Pool) *Products {
	return &Products{pool: pool}
}

const productColumns = `
	p.id, p.account_id, p.marketplace, p.article,
	COALESCE(p.external_id, ''), COALESCE(p.barcode, ''),
	p.name, COALESCE(p.description, ''),
	COALESCE(p.target_keywords, '{}'), p.last_known_position,
	p.created_at, p.updated_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (*model.Product, error) {
	var p model.Product
	err := row.Scan(
		&p.ID, &p.AccountID, &p.Marketplace, &p.Article,
		&p.ExternalID, &p.Barcode,
		&p.Name, &p.CurrentDescription,
		&p.TargetKeywords, &p.LastKnownPosition,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ByID returns one product, validating ownership.
func (s *Products) ByID(ctx context.Context, accountID, productID int64) (*model.Product, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+productColumns+`
		 FROM products p
		 WHERE p.id = $1 AND p.account_id = $2`,
		productID, accountID,
	)
	p, err := scanProduct(row)
	if err != nil {
		return nil, seo.ErrNotFound
	}
	return p, nil
}

// IDs returns every product ID the account owns, oldest first.
func (s *Products) IDs(ctx context.Context, accountID int64) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM products WHERE account_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("product ids query: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("product ids scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Products) SetLastPosition(ctx context.Context, productID int64, position int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE products SET last_known_position = $2, updated_at = now() WHERE id = $1`,
		productID, position)
	if err != nil {
		return fmt.Errorf("set last position: %w", err)
	}
	return nil
}

func (s *Products) SetTargetKeywords(ctx context.Context, productID int64, keywords []string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE products SET target_keywords = $2, updated_at = now() WHERE id = $1`,
		productID, keywords)
	if err != nil {
		return fmt.Errorf("set target keywords: %w", err)
	}
	return nil
}

func (s *Products) SetDescription(ctx context.Context, productID int64, description string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE products SET description = $2, updated_at = now() WHERE id = $1`,
		productID, description)
	if err != nil {
		return fmt.Errorf("set description: %w", err)
	}
	return nil
}

func (s *Products) SetExternalID(ctx context.Context, productID int64, externalID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE products SET external_id = $2, updated_at = now() WHERE id = $1`,
		productID, externalID)
	if err != nil {
		return fmt.Errorf("set external id: %w", err)
	}
	return nil
}

func (s *Products) Count(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE account_id = $1`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// CountTopRanked counts products whose last known position is within ceiling.
func (s *Products) CountTopRanked(ctx context.Context, accountID int64, ceiling int) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM products
		 WHERE account_id = $1 AND last_known_position IS NOT NULL AND last_known_position <= $2`,
		accountID, ceiling).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count top ranked: %w", err)
	}
	return n, nil
}
