package seo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"seowibe/rank-service/internal/keyword"
	"seowibe/rank-service/internal/model"
)

// errModuleDisabled marks a job skipped because the account's rank
// tracking module is off. It is a skip, not a failure, and the job does
// not count as processed.
var errModuleDisabled = errors.New("rank tracking module disabled")

// lockScope and lockTTL guard one account's background recheck pass.
const (
	recheckLockScope = "recheck"
	recheckLockTTL   = 5 * time.Minute
)

// RunDueRechecks is the background pass the scheduler drives. It selects
// every job due at now across all accounts and re-resolves each one. A job
// still missing its target gets a fresh keyword set and description pushed
// straight to the marketplace. Per-job failures are logged and skipped; a
// broken job must not stall the rest of the queue.
func (s *Service) RunDueRechecks(ctx context.Context, now time.Time) (int, error) {
	jobs, err := s.jobs.DueAll(ctx, now)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	byAccount := make(map[int64][]model.SeoJob)
	for _, job := range jobs {
		byAccount[job.AccountID] = append(byAccount[job.AccountID], job)
	}

	processed := 0
	for accountID, accountJobs := range byAccount {
		if s.locks != nil && !s.locks.TryLock(ctx, accountID, recheckLockScope, recheckLockTTL) {
			slog.Info("recheck already running for account, skipping", "account", accountID)
			continue
		}
		for i := range accountJobs {
			if err := ctx.Err(); err != nil {
				if s.locks != nil {
					s.locks.Unlock(ctx, accountID, recheckLockScope)
				}
				return processed, err
			}
			if err := s.recheckDueJob(ctx, &accountJobs[i]); err != nil {
				if errors.Is(err, errModuleDisabled) {
					slog.Info("recheck skipped", "job", accountJobs[i].ID, "reason", "module disabled")
				} else {
					slog.Warn("due recheck failed", "job", accountJobs[i].ID, "err", err)
				}
				continue
			}
			processed++
		}
		if s.locks != nil {
			s.locks.Unlock(ctx, accountID, recheckLockScope)
		}
	}
	return processed, nil
}

func (s *Service) recheckDueJob(ctx context.Context, job *model.SeoJob) error {
	accountID := job.AccountID
	product, err := s.products.ByID(ctx, accountID, job.ProductID)
	if err != nil {
		return err
	}
	s.hydrateExternalID(ctx, accountID, product)

	enabled, err := s.modules.Enabled(ctx, accountID, ModuleRankTracking)
	if err != nil {
		return err
	}
	if !enabled {
		return errModuleDisabled
	}

	apiKey, _ := s.credentials.ActiveAPIKey(ctx, accountID)
	current := s.resolveCurrent(ctx, job, product, apiKey)
	job.CurrentPosition = &current
	if err := s.products.SetLastPosition(ctx, product.ID, current); err != nil {
		slog.Warn("set last position failed", "product", product.ID, "err", err)
	}

	if current <= job.TargetPosition {
		moveStatus(job, StatusTopReached)
	} else {
		moveStatus(job, StatusInProgress)
		// Still outside the target range: refresh the keyword set and
		// description from live competitors and push the new text out.
		if apiKey != "" {
			s.regenerate(ctx, job, product, apiKey)
		}
	}
	next := NextCheck(&current, job.TargetPosition)
	job.NextCheckAt = &next
	job.AttemptCount++
	return s.jobs.Update(ctx, job)
}

func (s *Service) regenerate(ctx context.Context, job *model.SeoJob, product *model.Product, apiKey string) {
	competitors := s.findCompetitors(ctx, product)
	userKeywords, _ := s.keywords.ForAccount(ctx, job.AccountID)
	newKeywords := keyword.Discover(product.Name, product.CurrentDescription, competitors, userKeywords, job.KeywordsSnapshot)
	newDescription := keyword.BuildDescription(product.Name, product.CurrentDescription, newKeywords, competitors)

	job.GeneratedDescription = newDescription
	job.KeywordsSnapshot = newKeywords
	job.CompetitorSnapshot = competitorRefs(competitors)
	if err := s.products.SetDescription(ctx, product.ID, newDescription); err != nil {
		slog.Warn("set product description failed", "product", product.ID, "err", err)
	}
	if err := s.market.UpdateDescription(ctx, apiKey, product.Article, newDescription); err != nil {
		slog.Warn("marketplace description push failed", "product", product.ID, "err", err)
	}
}
