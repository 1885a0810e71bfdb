// rank-service
//
// Resolves live marketplace search positions for seller products and drives
// the SEO job lifecycle:
//   - checkPositions(productIds, keywords) — live rank resolution
//   - generate(productIds, target)        — keyword discovery + description
//   - apply(jobIds)                       — push descriptions to the marketplace
//   - recheck loop                        — cron-driven re-resolution of due jobs
//
// Publishes EVENT_SEO_AUDIT to Redis for downstream activity feeds.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"seowibe/rank-service/internal/cache"
	"seowibe/rank-service/internal/config"
	"seowibe/rank-service/internal/db"
	"seowibe/rank-service/internal/marketplace"
	"seowibe/rank-service/internal/rank"
	"seowibe/rank-service/internal/scheduler"
	"seowibe/rank-service/internal/search"
	"seowibe/rank-service/internal/seo"
	"seowibe/rank-service/internal/store"
)

const version = "1.0.0"

func main() {
	// ── Config ──────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[rank-service] Config error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── PostgreSQL ───────────────────────────────────────────────────────────
	log.Println("[rank-service] Connecting to PostgreSQL…")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[rank-service] PostgreSQL: %v", err)
	}
	defer pool.Close()
	log.Println("[rank-service] PostgreSQL connected ✓")

	// ── Redis ────────────────────────────────────────────────────────────────
	log.Println("[rank-service] Connecting to Redis…")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("[rank-service] Redis: %v", err)
	}
	defer rdb.Close()
	log.Println("[rank-service] Redis connected ✓")

	// ── Resolver chain ───────────────────────────────────────────────────────
	c := cache.New(rdb)
	endpoints := search.DefaultEndpoints()
	analyticsURL := rank.DefaultAnalyticsURL
	if cfg.SearchBaseURL != "" {
		endpoints = search.TestEndpoints(cfg.SearchBaseURL)
		analyticsURL = cfg.SearchBaseURL
	}
	searchClient := search.NewClient(c, endpoints)
	analytics := rank.NewAnalytics(c, analyticsURL)
	var browser *rank.Browser
	if cfg.BrowserFallback {
		browser = rank.NewBrowser(searchClient, endpoints)
	}
	resolver := rank.NewResolver(searchClient, analytics, browser, cfg.ScanBudget)

	// ── Service ──────────────────────────────────────────────────────────────
	market := marketplace.NewClient(searchClient, marketplace.DefaultContentURL)
	service := seo.NewService(seo.Deps{
		Products:    store.NewProducts(pool),
		Jobs:        store.NewJobs(pool),
		Snapshots:   store.NewSnapshots(pool),
		Keywords:    store.NewKeywords(pool),
		Credentials: store.NewCredentials(pool),
		Modules:     store.NewModules(pool),
		Resolver:    resolver,
		Marketplace: market,
		Redis:       rdb,
		Locks:       c,
	})

	// ── Recheck loop ─────────────────────────────────────────────────────────
	sched := scheduler.New(service, cfg.RecheckInterval)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("[rank-service] Scheduler: %v", err)
	}
	defer sched.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[rank-service] v%s listening on :%s", version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[rank-service] HTTP server error: %v", err)
		}
	}()

	// ── Graceful shutdown ────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[rank-service] Shutting down…")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[rank-service] Shutdown error: %v", err)
	}
	log.Println("[rank-service] Stopped.")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"service": "rank-service",
		"version": version,
	})
}
