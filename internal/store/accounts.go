package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Keywords reads the seller-curated keyword list for an account.
type Keywords struct {
	pool *pgxpool.Pool
}

func NewKeywords(pool *pgxpool.Pool) *Keywords {
	return &Keywords{pool: pool}
}

// ForAccount returns the account's saved keywords in priority order.
func (s *Keywords) ForAccount(ctx context.Context, accountID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT keyword FROM account_keywords WHERE account_id = $1 ORDER BY priority DESC, id`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("account keywords query: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, fmt.Errorf("keyword scan: %w", err)
		}
		out = append(out, kw)
	}
	return out, rows.Err()
}

// Credentials reads marketplace API credentials.
type Credentials struct {
	pool *pgxpool.Pool
}

func NewCredentials(pool *pgxpool.Pool) *Credentials {
	return &Credentials{pool: pool}
}

// ActiveAPIKey returns the account's newest active seller-API key, or ""
// when none is configured.
func (s *Credentials) ActiveAPIKey(ctx context.Context, accountID int64) (string, error) {
	var key string
	err := s.pool.QueryRow(ctx,
		`SELECT api_key FROM marketplace_credentials
		 WHERE account_id = $1 AND is_active
		 ORDER BY created_at DESC
		 LIMIT 1`,
		accountID).Scan(&key)
	if err != nil {
		return "", nil
	}
	return key, nil
}

// Modules reads per-account feature module flags.
type Modules struct {
	pool *pgxpool.Pool
}

func NewModules(pool *pgxpool.Pool) *Modules {
	return &Modules{pool: pool}
}

// Enabled reports whether the account has the given module switched on.
// A missing row means disabled.
func (s *Modules) Enabled(ctx context.Context, accountID int64, code string) (bool, error) {
	var enabled bool
	err := s.pool.QueryRow(ctx,
		`SELECT is_enabled FROM account_modules WHERE account_id = $1 AND module_code = $2`,
		accountID, code).Scan(&enabled)
	if err != nil {
		return false, nil
	}
	return enabled, nil
}
