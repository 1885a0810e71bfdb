package seo

import (
	"context"
	"fmt"
	"time"

	"seowibe/rank-service/internal/model"
)

// Module codes gating the paid operations.
const (
	ModuleRankTracking  = "rank_tracking"
	ModuleSeoGeneration = "seo_generation"
	ModuleAutoApply     = "auto_apply"
)

// ErrNotFound is returned when a product or job is missing or does not
// belong to the account.
var ErrNotFound = fmt.Errorf("not found")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// ModuleDisabledError is returned when the account's plan does not include
// the module an operation needs.
type ModuleDisabledError struct{ Code string }

func (e *ModuleDisabledError) Error() string {
	return fmt.Sprintf("module %q is disabled for this account", e.Code)
}

// Storage interfaces are declared here, next to their only consumer; the
// pgx implementations live in internal/store.

type ProductStore interface {
	ByID(ctx context.Context, accountID, productID int64) (*model.Product, error)
	IDs(ctx context.Context, accountID int64) ([]int64, error)
	SetLastPosition(ctx context.Context, productID int64, position int) error
	SetTargetKeywords(ctx context.Context, productID int64, keywords []string) error
	SetDescription(ctx context.Context, productID int64, description string) error
	SetExternalID(ctx context.Context, productID int64, externalID string) error
	Count(ctx context.Context, accountID int64) (int, error)
	CountTopRanked(ctx context.Context, accountID int64, ceiling int) (int, error)
}

type JobStore interface {
	ByIDs(ctx context.Context, accountID int64, ids []int64) ([]model.SeoJob, error)
	List(ctx context.Context, accountID int64) ([]model.SeoJob, error)
	ActiveByProduct(ctx context.Context, accountID, productID int64) ([]model.SeoJob, error)
	DueForAccount(ctx context.Context, accountID int64, now time.Time) ([]model.SeoJob, error)
	DueAll(ctx context.Context, now time.Time) ([]model.SeoJob, error)
	Create(ctx context.Context, job *model.SeoJob) error
	Update(ctx context.Context, job *model.SeoJob) error
	DeleteByIDs(ctx context.Context, accountID int64, ids []int64) (int, error)
	DeleteAll(ctx context.Context, accountID int64) (int, error)
	CountByStatus(ctx context.Context, accountID int64, statuses ...Status) (int, error)
	Count(ctx context.Context, accountID int64) (int, error)
}

type SnapshotStore interface {
	Insert(ctx context.Context, snap *model.PositionSnapshot) error
	// Since returns snapshots newer than the given time, oldest first.
	// productID 0 means all products of the account.
	Since(ctx context.Context, accountID, productID int64, since time.Time) ([]model.PositionSnapshot, error)
}

// KeywordStore serves the account's hand-curated keyword list.
type KeywordStore interface {
	ForAccount(ctx context.Context, accountID int64) ([]string, error)
}

// CredentialStore returns the active marketplace API key, or "" when the
// account has none.
type CredentialStore interface {
	ActiveAPIKey(ctx context.Context, accountID int64) (string, error)
}

type ModuleStore interface {
	Enabled(ctx context.Context, accountID int64, code string) (bool, error)
}
