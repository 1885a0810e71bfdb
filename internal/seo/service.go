package seo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"seowibe/rank-service/internal/keyword"
	"seowibe/rank-service/internal/model"
	"seowibe/rank-service/internal/rank"
)

// auditChannel carries fire-and-forget audit events for downstream
// consumers (activity feed, alerting). Publishing is never fatal.
const auditChannel = "EVENT_SEO_AUDIT"

// PositionResolver is the slice of the rank resolver the service needs.
type PositionResolver interface {
	Position(ctx context.Context, req rank.Request, keywords []string) (*int, error)
	PositionsForKeywords(ctx context.Context, req rank.Request, keywords []string) (map[string]*int, error)
}

// Marketplace is the seller-API surface the service writes through.
type Marketplace interface {
	Competitors(ctx context.Context, name, description, excludeExternalID string) ([]model.CompetitorCard, error)
	UpdateDescription(ctx context.Context, apiKey, article, description string) error
	ResolveExternalID(ctx context.Context, apiKey, article, name string) (string, error)
}

// Service encapsulates the SEO job lifecycle: checking positions,
// generating optimized descriptions, applying them to the marketplace and
// rechecking on schedule.
type Service struct {
	products    ProductStore
	jobs        JobStore
	snapshots   SnapshotStore
	keywords    KeywordStore
	credentials CredentialStore
	modules     ModuleStore

	resolver PositionResolver
	market   Marketplace
	rdb      *redis.Client
	locks    Locker
}

// Locker bounds duplicated upstream load when the background loop and a
// manual recheck overlap. Correctness does not depend on it.
type Locker interface {
	TryLock(ctx context.Context, accountID int64, scope string, ttl time.Duration) bool
	Unlock(ctx context.Context, accountID int64, scope string)
}

// Deps lists everything a Service needs. Redis and Locks may be nil: that
// disables audit events and recheck deduplication respectively.
type Deps struct {
	Products    ProductStore
	Jobs        JobStore
	Snapshots   SnapshotStore
	Keywords    KeywordStore
	Credentials CredentialStore
	Modules     ModuleStore
	Resolver    PositionResolver
	Marketplace Marketplace
	Redis       *redis.Client
	Locks       Locker
}

// NewService returns a configured Service.
func NewService(d Deps) *Service {
	return &Service{
		products:    d.Products,
		jobs:        d.Jobs,
		snapshots:   d.Snapshots,
		keywords:    d.Keywords,
		credentials: d.Credentials,
		modules:     d.Modules,
		resolver:    d.Resolver,
		market:      d.Marketplace,
		rdb:         d.Redis,
		locks:       d.Locks,
	}
}

// ─── Requests and results ────────────────────────────────────────────────────

type CheckRequest struct {
	ProductIDs []int64
	ApplyToAll bool
	// Keywords switches the check into explicit mode: exactly these terms
	// are resolved and every one of them gets a reported position.
	Keywords []string
}

// PositionCheck is the per-product outcome of CheckPositions.
type PositionCheck struct {
	ProductID        int64
	Article          string
	Barcode          string
	Name             string
	UsedKeywords     []string
	BestPosition     int
	AvgPosition      int
	KeywordPositions map[string]int
}

// DefaultTargetPosition is the rank a job aims for when the seller does
// not choose one.
const DefaultTargetPosition = 5

type GenerateRequest struct {
	ProductIDs     []int64
	ApplyToAll     bool
	ExtraKeywords  []string
	TargetPosition int // <=0 means DefaultTargetPosition
}

type RecheckRequest struct {
	JobIDs []int64
	AllDue bool
}

type DeleteRequest struct {
	JobIDs    []int64
	DeleteAll bool
}

// TrendPoint is one day of snapshot aggregates.
type TrendPoint struct {
	Date        string
	Checks      int
	AvgPosition float64
	Top5Hits    int
}

// Dashboard carries the headline counters for an account.
type Dashboard struct {
	TotalProducts  int
	TotalJobs      int
	AppliedJobs    int
	InProgressJobs int
	Top5Products   int
}

// ─── Operations ──────────────────────────────────────────────────────────────

// CheckPositions resolves the live position of each requested product. With
// explicit keywords every keyword reports a position (unresolved ones get
// the overflow sentinel); otherwise keywords are discovered and the best of
// them wins. Linked jobs and the product's last known position are updated
// as a side effect.
func (s *Service) CheckPositions(ctx context.Context, accountID int64, req CheckRequest) ([]PositionCheck, error) {
	if err := s.ensureModule(ctx, accountID, ModuleRankTracking); err != nil {
		return nil, err
	}
	productIDs, err := s.targetProducts(ctx, accountID, req.ProductIDs, req.ApplyToAll)
	if err != nil {
		return nil, err
	}
	if len(productIDs) == 0 {
		return nil, &ValidationError{Msg: "no products selected for position check"}
	}

	explicit := dedupKeywords(req.Keywords)
	explicitMode := len(explicit) > 0

	result := make([]PositionCheck, 0, len(productIDs))
	for _, productID := range productIDs {
		product, err := s.products.ByID(ctx, accountID, productID)
		if err != nil {
			continue
		}
		s.hydrateExternalID(ctx, accountID, product)
		apiKey, _ := s.credentials.ActiveAPIKey(ctx, accountID)

		usedKeywords := explicit
		if !explicitMode {
			usedKeywords = s.discoverKeywords(ctx, accountID, product, nil)
			if len(usedKeywords) > 5 {
				usedKeywords = usedKeywords[:5]
			}
		}

		resolved, err := s.resolver.PositionsForKeywords(ctx, resolveRequest(product, apiKey), usedKeywords)
		if err != nil {
			return nil, err
		}
		positions := make(map[string]int, len(usedKeywords))
		for kw, pos := range resolved {
			if pos != nil {
				positions[kw] = *pos
			}
		}
		// In explicit mode every requested keyword must report something.
		if explicitMode {
			for _, kw := range usedKeywords {
				if _, ok := positions[kw]; !ok {
					positions[kw] = model.PositionOverflow
				}
			}
		}

		if len(positions) == 0 {
			result = append(result, s.checkFallback(ctx, accountID, product, usedKeywords))
			continue
		}

		var best int
		if explicitMode {
			best = model.PositionOverflow
			if pos, ok := positions[usedKeywords[0]]; ok {
				best = pos
			}
		} else {
			for _, pos := range positions {
				if best == 0 || pos < best {
					best = pos
				}
			}
		}
		sum := 0
		for _, pos := range positions {
			sum += pos
		}
		avg := int(math.Round(float64(sum) / float64(len(positions))))

		s.applyCheckOutcome(ctx, accountID, product, best, usedKeywords, "manual_check")

		result = append(result, PositionCheck{
			ProductID:        product.ID,
			Article:          product.Article,
			Barcode:          product.Barcode,
			Name:             product.Name,
			UsedKeywords:     usedKeywords,
			BestPosition:     best,
			AvgPosition:      avg,
			KeywordPositions: positions,
		})
	}

	s.publishAudit(ctx, accountID, "positions_checked", fmt.Sprintf("count=%d", len(result)))
	return result, nil
}

// checkFallback handles a product none of whose keywords resolved: reuse
// the last known position, or report the overflow sentinel when keywords
// existed but the product was simply not found.
func (s *Service) checkFallback(ctx context.Context, accountID int64, product *model.Product, usedKeywords []string) PositionCheck {
	fallback := SafeKnownPosition(product.LastKnownPosition)
	if fallback == 0 && len(usedKeywords) > 0 {
		fallback = model.PositionOverflow
	}
	if err := s.products.SetLastPosition(ctx, product.ID, fallback); err != nil {
		slog.Warn("set last position failed", "product", product.ID, "err", err)
	}
	if jobs, err := s.jobs.ActiveByProduct(ctx, accountID, product.ID); err == nil {
		for i := range jobs {
			jobs[i].CurrentPosition = &fallback
			if err := s.jobs.Update(ctx, &jobs[i]); err != nil {
				slog.Warn("update job failed", "job", jobs[i].ID, "err", err)
			}
		}
	}

	positions := make(map[string]int, len(usedKeywords))
	for _, kw := range usedKeywords {
		positions[kw] = fallback
	}
	return PositionCheck{
		ProductID:        product.ID,
		Article:          product.Article,
		Barcode:          product.Barcode,
		Name:             product.Name,
		UsedKeywords:     usedKeywords,
		BestPosition:     fallback,
		AvgPosition:      fallback,
		KeywordPositions: positions,
	}
}

// applyCheckOutcome persists a freshly resolved best position: product,
// linked jobs (with the top_reached / regression rules) and a snapshot.
func (s *Service) applyCheckOutcome(ctx context.Context, accountID int64, product *model.Product, best int, usedKeywords []string, source string) {
	if err := s.products.SetLastPosition(ctx, product.ID, best); err != nil {
		slog.Warn("set last position failed", "product", product.ID, "err", err)
	}
	jobs, err := s.jobs.ActiveByProduct(ctx, accountID, product.ID)
	if err != nil {
		slog.Warn("load linked jobs failed", "product", product.ID, "err", err)
		jobs = nil
	}
	for i := range jobs {
		job := &jobs[i]
		job.CurrentPosition = &best
		if best <= job.TargetPosition {
			moveStatus(job, StatusTopReached)
		} else if job.Status == string(StatusTopReached) {
			moveStatus(job, StatusInProgress)
		}
		next := NextCheck(&best, job.TargetPosition)
		job.NextCheckAt = &next
		if err := s.jobs.Update(ctx, job); err != nil {
			slog.Warn("update job failed", "job", job.ID, "err", err)
		}
	}
	s.insertSnapshot(ctx, accountID, product.ID, source, best, usedKeywords)
}

// Generate builds an optimized description per product and opens a job in
// the generated status with an initial position measurement.
func (s *Service) Generate(ctx context.Context, accountID int64, req GenerateRequest) ([]model.SeoJob, error) {
	if err := s.ensureModule(ctx, accountID, ModuleSeoGeneration); err != nil {
		return nil, err
	}
	productIDs, err := s.targetProducts(ctx, accountID, req.ProductIDs, req.ApplyToAll)
	if err != nil {
		return nil, err
	}
	if len(productIDs) == 0 {
		return nil, &ValidationError{Msg: "no products selected for seo generation"}
	}
	target := req.TargetPosition
	if target <= 0 {
		target = DefaultTargetPosition
	}

	jobs := make([]model.SeoJob, 0, len(productIDs))
	for _, productID := range productIDs {
		product, err := s.products.ByID(ctx, accountID, productID)
		if err != nil {
			continue
		}
		s.hydrateExternalID(ctx, accountID, product)
		apiKey, _ := s.credentials.ActiveAPIKey(ctx, accountID)

		competitors := s.findCompetitors(ctx, product)
		userKeywords, _ := s.keywords.ForAccount(ctx, accountID)
		keywords := keyword.Discover(product.Name, product.CurrentDescription, competitors, userKeywords, req.ExtraKeywords)
		generated := keyword.BuildDescription(product.Name, product.CurrentDescription, keywords, competitors)

		pos, err := s.resolver.Position(ctx, resolveRequest(product, apiKey), keywords)
		if err != nil {
			return nil, err
		}
		var current int
		if pos != nil {
			current = *pos
		} else {
			current = SafeKnownPosition(product.LastKnownPosition)
			if current == 0 && len(keywords) > 0 {
				current = model.PositionOverflow
			}
		}

		if err := s.products.SetTargetKeywords(ctx, product.ID, keywords); err != nil {
			slog.Warn("set target keywords failed", "product", product.ID, "err", err)
		}
		if err := s.products.SetLastPosition(ctx, product.ID, current); err != nil {
			slog.Warn("set last position failed", "product", product.ID, "err", err)
		}
		s.insertSnapshot(ctx, accountID, product.ID, "generate", current, keywords)

		next := NextCheck(&current, target)
		job := model.SeoJob{
			AccountID:            accountID,
			ProductID:            product.ID,
			Status:               string(StatusGenerated),
			GeneratedDescription: generated,
			KeywordsSnapshot:     keywords,
			CompetitorSnapshot:   competitorRefs(competitors),
			TargetPosition:       target,
			CurrentPosition:      &current,
			NextCheckAt:          &next,
		}
		if err := s.jobs.Create(ctx, &job); err != nil {
			return nil, fmt.Errorf("create seo job: %w", err)
		}
		jobs = append(jobs, job)
	}

	s.publishAudit(ctx, accountID, "seo_generated", fmt.Sprintf("count=%d;apply_to_all=%t", len(jobs), req.ApplyToAll))
	return jobs, nil
}

// Apply pushes the generated descriptions of the given jobs to the
// marketplace. A single upstream failure aborts the whole call before any
// local state changes; on success every job moves to applied and is
// rescheduled.
func (s *Service) Apply(ctx context.Context, accountID int64, jobIDs []int64) ([]model.SeoJob, error) {
	if err := s.ensureModule(ctx, accountID, ModuleAutoApply); err != nil {
		return nil, err
	}
	if len(jobIDs) == 0 {
		return nil, &ValidationError{Msg: "select at least one seo job to apply"}
	}
	jobs, err := s.jobs.ByIDs(ctx, accountID, jobIDs)
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil, ErrNotFound
	}

	apiKey, err := s.credentials.ActiveAPIKey(ctx, accountID)
	if err != nil || apiKey == "" {
		return nil, &ValidationError{Msg: "no active marketplace credential"}
	}

	// Marketplace writes happen first; local state is only touched once
	// every write succeeded.
	type pendingApply struct {
		job     model.SeoJob
		product *model.Product
	}
	pending := make([]pendingApply, 0, len(jobs))
	for _, job := range jobs {
		product, err := s.products.ByID(ctx, accountID, job.ProductID)
		if err != nil {
			continue
		}
		s.hydrateExternalID(ctx, accountID, product)
		if err := s.market.UpdateDescription(ctx, apiKey, product.Article, job.GeneratedDescription); err != nil {
			return nil, fmt.Errorf("apply job %d: %w", job.ID, err)
		}
		pending = append(pending, pendingApply{job: job, product: product})
	}

	updated := make([]model.SeoJob, 0, len(pending))
	for _, p := range pending {
		if err := s.products.SetDescription(ctx, p.product.ID, p.job.GeneratedDescription); err != nil {
			slog.Warn("set product description failed", "product", p.product.ID, "err", err)
		}
		job := p.job
		if !moveStatus(&job, StatusApplied) {
			slog.Warn("apply refused by status", "job", job.ID, "status", job.Status)
		}
		next := NextCheck(job.CurrentPosition, job.TargetPosition)
		job.NextCheckAt = &next
		if err := s.jobs.Update(ctx, &job); err != nil {
			return updated, fmt.Errorf("update job %d: %w", job.ID, err)
		}
		updated = append(updated, job)
	}

	s.publishAudit(ctx, accountID, "seo_applied", fmt.Sprintf("count=%d", len(updated)))
	return updated, nil
}

// Recheck re-resolves jobs by their keyword snapshot: explicitly listed
// ones, or everything due for the account.
func (s *Service) Recheck(ctx context.Context, accountID int64, req RecheckRequest) ([]model.SeoJob, error) {
	if err := s.ensureModule(ctx, accountID, ModuleRankTracking); err != nil {
		return nil, err
	}

	var (
		jobs []model.SeoJob
		err  error
	)
	if req.AllDue {
		jobs, err = s.jobs.DueForAccount(ctx, accountID, time.Now().UTC())
	} else {
		jobs, err = s.jobs.ByIDs(ctx, accountID, req.JobIDs)
	}
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	result := make([]model.SeoJob, 0, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		product, err := s.products.ByID(ctx, accountID, job.ProductID)
		if err != nil {
			continue
		}
		apiKey, _ := s.credentials.ActiveAPIKey(ctx, accountID)

		current := s.resolveCurrent(ctx, job, product, apiKey)
		job.CurrentPosition = &current
		if err := s.products.SetLastPosition(ctx, product.ID, current); err != nil {
			slog.Warn("set last position failed", "product", product.ID, "err", err)
		}
		s.insertSnapshot(ctx, accountID, product.ID, "recheck", current, job.KeywordsSnapshot)

		job.AttemptCount++
		if current <= job.TargetPosition {
			moveStatus(job, StatusTopReached)
		} else {
			moveStatus(job, StatusInProgress)
		}
		next := NextCheck(&current, job.TargetPosition)
		job.NextCheckAt = &next
		if err := s.jobs.Update(ctx, job); err != nil {
			slog.Warn("update job failed", "job", job.ID, "err", err)
			continue
		}
		result = append(result, *job)
	}

	s.publishAudit(ctx, accountID, "seo_rechecked", fmt.Sprintf("count=%d", len(result)))
	return result, nil
}

// resolveCurrent re-resolves a job's position from its keyword snapshot,
// falling back to the job's own last value, then the product's, then the
// overflow sentinel.
func (s *Service) resolveCurrent(ctx context.Context, job *model.SeoJob, product *model.Product, apiKey string) int {
	pos, err := s.resolver.Position(ctx, resolveRequest(product, apiKey), job.KeywordsSnapshot)
	if err != nil {
		slog.Warn("position resolution failed", "job", job.ID, "err", err)
	}
	if pos != nil {
		return *pos
	}
	current := SafeKnownPosition(job.CurrentPosition)
	if current == 0 {
		current = SafeKnownPosition(product.LastKnownPosition)
	}
	if current == 0 && len(job.KeywordsSnapshot) > 0 {
		current = model.PositionOverflow
	}
	return current
}

// DeleteJobs removes jobs by ID, or all of them, and reports how many went.
func (s *Service) DeleteJobs(ctx context.Context, accountID int64, req DeleteRequest) (int, error) {
	var (
		deleted int
		err     error
	)
	if req.DeleteAll {
		deleted, err = s.jobs.DeleteAll(ctx, accountID)
	} else {
		if len(req.JobIDs) == 0 {
			return 0, &ValidationError{Msg: "select jobs to delete"}
		}
		deleted, err = s.jobs.DeleteByIDs(ctx, accountID, req.JobIDs)
	}
	if err != nil {
		return 0, fmt.Errorf("delete jobs: %w", err)
	}
	s.publishAudit(ctx, accountID, "seo_deleted", fmt.Sprintf("count=%d;all=%t", deleted, req.DeleteAll))
	return deleted, nil
}

// ListJobs returns the account's jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, accountID int64) ([]model.SeoJob, error) {
	return s.jobs.List(ctx, accountID)
}

// KeywordSuggestions returns the short ranked keyword list for one product.
func (s *Service) KeywordSuggestions(ctx context.Context, accountID, productID int64) ([]string, error) {
	product, err := s.products.ByID(ctx, accountID, productID)
	if err != nil {
		return nil, ErrNotFound
	}
	s.hydrateExternalID(ctx, accountID, product)
	competitors := s.findCompetitors(ctx, product)
	userKeywords, _ := s.keywords.ForAccount(ctx, accountID)
	return keyword.Suggestions(product.Name, product.CurrentDescription, competitors, userKeywords), nil
}

// Trend aggregates position snapshots into per-day buckets: check count,
// average position and top-5 hits. days is clamped to 3..90; productID 0
// covers the whole account.
func (s *Service) Trend(ctx context.Context, accountID, productID int64, days int) ([]TrendPoint, error) {
	if days < 3 {
		days = 3
	}
	if days > 90 {
		days = 90
	}
	since := time.Now().UTC().AddDate(0, 0, -(days - 1)).Truncate(24 * time.Hour)
	snapshots, err := s.snapshots.Since(ctx, accountID, productID, since)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}

	buckets := make(map[string][]int)
	for _, snap := range snapshots {
		day := snap.CreatedAt.UTC().Format("2006-01-02")
		buckets[day] = append(buckets[day], snap.Position)
	}

	points := make([]TrendPoint, 0, days)
	for offset := 0; offset < days; offset++ {
		day := since.AddDate(0, 0, offset).Format("2006-01-02")
		vals := buckets[day]
		point := TrendPoint{Date: day, Checks: len(vals)}
		if len(vals) > 0 {
			sum, top5 := 0, 0
			for _, v := range vals {
				sum += v
				if v <= 5 {
					top5++
				}
			}
			point.AvgPosition = math.Round(float64(sum)/float64(len(vals))*100) / 100
			point.Top5Hits = top5
		}
		points = append(points, point)
	}
	return points, nil
}

// Dashboard returns the account's headline counters.
func (s *Service) Dashboard(ctx context.Context, accountID int64) (Dashboard, error) {
	var (
		d   Dashboard
		err error
	)
	if d.TotalProducts, err = s.products.Count(ctx, accountID); err != nil {
		return d, fmt.Errorf("count products: %w", err)
	}
	if d.TotalJobs, err = s.jobs.Count(ctx, accountID); err != nil {
		return d, fmt.Errorf("count jobs: %w", err)
	}
	if d.AppliedJobs, err = s.jobs.CountByStatus(ctx, accountID, StatusApplied); err != nil {
		return d, fmt.Errorf("count applied jobs: %w", err)
	}
	if d.InProgressJobs, err = s.jobs.CountByStatus(ctx, accountID, StatusInProgress, StatusGenerated); err != nil {
		return d, fmt.Errorf("count in-progress jobs: %w", err)
	}
	if d.Top5Products, err = s.products.CountTopRanked(ctx, accountID, 5); err != nil {
		return d, fmt.Errorf("count top products: %w", err)
	}
	return d, nil
}

// ─── Shared helpers ──────────────────────────────────────────────────────────

// moveStatus moves the job to the target status when the transition table
// allows it and reports whether it did. A refused move leaves the job as
// is; callers never bypass the table by assigning Status directly.
func moveStatus(job *model.SeoJob, to Status) bool {
	from, err := ParseStatus(job.Status)
	if err != nil || !IsTransitionAllowed(from, to) {
		return false
	}
	job.Status = string(to)
	return true
}

func (s *Service) ensureModule(ctx context.Context, accountID int64, code string) error {
	enabled, err := s.modules.Enabled(ctx, accountID, code)
	if err != nil {
		return fmt.Errorf("module check: %w", err)
	}
	if !enabled {
		return &ModuleDisabledError{Code: code}
	}
	return nil
}

func (s *Service) targetProducts(ctx context.Context, accountID int64, ids []int64, all bool) ([]int64, error) {
	if !all {
		return ids, nil
	}
	out, err := s.products.IDs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

// hydrateExternalID resolves and persists a missing listing ID through the
// seller API. Best effort: position checks still run without it, they just
// match on weaker identifiers.
func (s *Service) hydrateExternalID(ctx context.Context, accountID int64, product *model.Product) {
	if product.ExternalID != "" {
		return
	}
	apiKey, err := s.credentials.ActiveAPIKey(ctx, accountID)
	if err != nil || apiKey == "" {
		return
	}
	resolved, err := s.market.ResolveExternalID(ctx, apiKey, product.Article, product.Name)
	if err != nil || resolved == "" {
		return
	}
	product.ExternalID = resolved
	if err := s.products.SetExternalID(ctx, product.ID, resolved); err != nil {
		slog.Warn("persist external id failed", "product", product.ID, "err", err)
	}
}

func (s *Service) findCompetitors(ctx context.Context, product *model.Product) []model.CompetitorCard {
	competitors, err := s.market.Competitors(ctx, product.Name, product.CurrentDescription, product.ExternalID)
	if err != nil {
		slog.Warn("competitor lookup failed", "product", product.ID, "err", err)
		return nil
	}
	return competitors
}

func (s *Service) discoverKeywords(ctx context.Context, accountID int64, product *model.Product, extra []string) []string {
	competitors := s.findCompetitors(ctx, product)
	userKeywords, _ := s.keywords.ForAccount(ctx, accountID)
	return keyword.Discover(product.Name, product.CurrentDescription, competitors, userKeywords, extra)
}

func (s *Service) insertSnapshot(ctx context.Context, accountID, productID int64, source string, position int, keywords []string) {
	snap := model.PositionSnapshot{
		AccountID: accountID,
		ProductID: productID,
		Source:    source,
		Position:  position,
		Keywords:  keywords,
	}
	if err := s.snapshots.Insert(ctx, &snap); err != nil {
		slog.Warn("insert snapshot failed", "product", productID, "source", source, "err", err)
	}
}

// publishAudit emits an audit event (non-fatal).
func (s *Service) publishAudit(ctx context.Context, accountID int64, action, details string) {
	if s.rdb == nil {
		return
	}
	event, _ := json.Marshal(map[string]any{
		"accountId": accountID,
		"action":    action,
		"details":   details,
		"at":        time.Now().UTC().Format(time.RFC3339),
	})
	if err := s.rdb.Publish(ctx, auditChannel, event).Err(); err != nil {
		slog.Warn("publish audit event failed", "action", action, "err", err)
	}
}

func resolveRequest(product *model.Product, apiKey string) rank.Request {
	return rank.Request{
		Identity: rank.NewIdentity(product.Article, product.ExternalID, product.Name),
		APIKey:   apiKey,
	}
}

func competitorRefs(competitors []model.CompetitorCard) []model.CompetitorRef {
	if len(competitors) > 5 {
		competitors = competitors[:5]
	}
	refs := make([]model.CompetitorRef, 0, len(competitors))
	for _, c := range competitors {
		keys := c.Keywords
		if len(keys) > 6 {
			keys = keys[:6]
		}
		refs = append(refs, model.CompetitorRef{
			Name:     c.Name,
			Position: c.Position,
			Keywords: keys,
			URL:      c.URL,
		})
	}
	return refs
}

func dedupKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, raw := range keywords {
		kw := strings.TrimSpace(raw)
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}
