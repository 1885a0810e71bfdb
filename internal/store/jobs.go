package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"seowibe/rank-service/internal/model"
	"seowibe/rank-service/internal/seo"
)

// Jobs reads and updates the seo_jobs table. The competitor snapshot lives
// in a JSONB column; keywords in a text[] one.
type Jobs struct {
	pool *pgxpool.Pool
}

func NewJobs(pool *pgxpool.Pool) *Jobs {
	return &Jobs{pool: pool}
}

const jobColumns = `
	j.id, j.account_id, j.product_id, j.status,
	COALESCE(j.generated_description, ''),
	COALESCE(j.keywords_snapshot, '{}'), COALESCE(j.competitor_snapshot, '[]'),
	j.target_position, j.current_position, j.next_check_at,
	j.attempt_count, j.created_at, j.updated_at`

func scanJob(row interface{ Scan(dest ...any) error }) (model.SeoJob, error) {
	var (
		j     model.SeoJob
		comps []byte
	)
	err := row.Scan(
		&j.ID, &j.AccountID, &j.ProductID, &j.Status,
		&j.GeneratedDescription,
		&j.KeywordsSnapshot, &comps,
		&j.TargetPosition, &j.CurrentPosition, &j.NextCheckAt,
		&j.AttemptCount, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return j, err
	}
	if err := json.Unmarshal(comps, &j.CompetitorSnapshot); err != nil {
		return j, fmt.Errorf("decode competitor snapshot: %w", err)
	}
	return j, nil
}

func collectJobs(rows pgx.Rows) ([]model.SeoJob, error) {
	defer rows.Close()
	jobs := make([]model.SeoJob, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("job scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ByIDs returns the listed jobs the account owns. Unknown IDs are silently
// dropped.
func (s *Jobs) ByIDs(ctx context.Context, accountID int64, ids []int64) ([]model.SeoJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+`
		 FROM seo_jobs j
		 WHERE j.account_id = $1 AND j.id = ANY($2)
		 ORDER BY j.id`,
		accountID, ids)
	if err != nil {
		return nil, fmt.Errorf("jobs by ids query: %w", err)
	}
	return collectJobs(rows)
}

// List returns the account's jobs, newest first.
func (s *Jobs) List(ctx context.Context, accountID int64) ([]model.SeoJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+`
		 FROM seo_jobs j
		 WHERE j.account_id = $1
		 ORDER BY j.created_at DESC`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("list jobs query: %w", err)
	}
	return collectJobs(rows)
}

// ActiveByProduct returns every job linked to one product.
func (s *Jobs) ActiveByProduct(ctx context.Context, accountID, productID int64) ([]model.SeoJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+`
		 FROM seo_jobs j
		 WHERE j.account_id = $1 AND j.product_id = $2
		 ORDER BY j.id`,
		accountID, productID)
	if err != nil {
		return nil, fmt.Errorf("jobs by product query: %w", err)
	}
	return collectJobs(rows)
}

// DueForAccount returns the account's jobs whose recheck time has come.
func (s *Jobs) DueForAccount(ctx context.Context, accountID int64, now time.Time) ([]model.SeoJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+`
		 FROM seo_jobs j
		 WHERE j.account_id = $1 AND j.next_check_at IS NOT NULL AND j.next_check_at <= $2
		   AND j.status IN ('applied', 'in_progress', 'generated')
		 ORDER BY j.next_check_at`,
		accountID, now)
	if err != nil {
		return nil, fmt.Errorf("due jobs query: %w", err)
	}
	return collectJobs(rows)
}

// DueAll returns due recheckable jobs across every account; the background
// loop drives this.
func (s *Jobs) DueAll(ctx context.Context, now time.Time) ([]model.SeoJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+`
		 FROM seo_jobs j
		 WHERE j.next_check_at IS NOT NULL AND j.next_check_at <= $1
		   AND j.status IN ('applied', 'in_progress')
		 ORDER BY j.next_check_at`,
		now)
	if err != nil {
		return nil, fmt.Errorf("due jobs query: %w", err)
	}
	return collectJobs(rows)
}

// Create inserts the job and fills in its generated ID and timestamps.
func (s *Jobs) Create(ctx context.Context, job *model.SeoJob) error {
	comps, err := json.Marshal(job.CompetitorSnapshot)
	if err != nil {
		return fmt.Errorf("encode competitor snapshot: %w", err)
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO seo_jobs (account_id, product_id, status, generated_description,
		                       keywords_snapshot, competitor_snapshot,
		                       target_position, current_position, next_check_at, attempt_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		job.AccountID, job.ProductID, job.Status, job.GeneratedDescription,
		job.KeywordsSnapshot, comps,
		job.TargetPosition, job.CurrentPosition, job.NextCheckAt, job.AttemptCount,
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// Update persists the job's mutable fields.
func (s *Jobs) Update(ctx context.Context, job *model.SeoJob) error {
	comps, err := json.Marshal(job.CompetitorSnapshot)
	if err != nil {
		return fmt.Errorf("encode competitor snapshot: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE seo_jobs
		 SET status = $3, generated_description = $4, keywords_snapshot = $5,
		     competitor_snapshot = $6, target_position = $7, current_position = $8,
		     next_check_at = $9, attempt_count = $10, updated_at = now()
		 WHERE id = $1 AND account_id = $2`,
		job.ID, job.AccountID,
		job.Status, job.GeneratedDescription, job.KeywordsSnapshot,
		comps, job.TargetPosition, job.CurrentPosition,
		job.NextCheckAt, job.AttemptCount)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return seo.ErrNotFound
	}
	return nil
}

// DeleteByIDs removes the listed jobs and reports how many actually went.
func (s *Jobs) DeleteByIDs(ctx context.Context, accountID int64, ids []int64) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM seo_jobs WHERE account_id = $1 AND id = ANY($2)`, accountID, ids)
	if err != nil {
		return 0, fmt.Errorf("delete jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteAll removes every job the account owns.
func (s *Jobs) DeleteAll(ctx context.Context, accountID int64) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM seo_jobs WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete all jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// CountByStatus counts the account's jobs in any of the given statuses.
func (s *Jobs) CountByStatus(ctx context.Context, accountID int64, statuses ...seo.Status) (int, error) {
	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		names = append(names, string(st))
	}
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM seo_jobs WHERE account_id = $1 AND status = ANY($2)`,
		accountID, names).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count jobs by status: %w", err)
	}
	return n, nil
}

// Count counts every job the account owns.
func (s *Jobs) Count(ctx context.Context, accountID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM seo_jobs WHERE account_id = $1`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count jobs: %w", err)
	}
	return n, nil
}
