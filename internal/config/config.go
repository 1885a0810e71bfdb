// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the rank service.
type Config struct {
	Port            string
	DatabaseURL     string
	RedisURL        string
	RecheckInterval time.Duration // how often the recheck loop fires
	ScanBudget      time.Duration // wall-clock budget for one page-scan phase
	BrowserFallback bool          // enable the chromedp last-resort crawl
	SearchBaseURL   string        // override for tests; empty = production endpoints
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	interval := 5 * time.Minute
	if s := os.Getenv("RECHECK_INTERVAL"); s != "" {
		v, err := time.ParseDuration(s)
		if err != nil || v < time.Second {
			return nil, fmt.Errorf("RECHECK_INTERVAL must be a duration of at least 1s, got %q", s)
		}
		interval = v
	}

	scanBudget := 45 * time.Second
	if s := os.Getenv("SCAN_BUDGET"); s != "" {
		v, err := time.ParseDuration(s)
		if err != nil || v < time.Second {
			return nil, fmt.Errorf("SCAN_BUDGET must be a duration of at least 1s, got %q", s)
		}
		scanBudget = v
	}

	browser := true
	if s := os.Getenv("BROWSER_FALLBACK"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("BROWSER_FALLBACK must be a boolean, got %q", s)
		}
		browser = v
	}

	port := os.Getenv("RANK_PORT")
	if port == "" {
		port = "8082"
	}

	return &Config{
		Port:            port,
		DatabaseURL:     dbURL,
		RedisURL:        redisURL,
		RecheckInterval: interval,
		ScanBudget:      scanBudget,
		BrowserFallback: browser,
		SearchBaseURL:   os.Getenv("SEARCH_BASE_URL"),
	}, nil
}
