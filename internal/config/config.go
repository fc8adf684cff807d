// Package config loads the virtual attribute subsystem's runtime tunables
// from environment variables.
package config

import (
	"fmt"
	"os"
)

// Config holds the subsystem's tunable parameters. None of these are part
// of the in-process SPI (spec.md §6 carries no config surface on the
// subsystem's own interfaces) — this is the ambient loader a host process
// or the vaslint CLI uses to construct one.
type Config struct {
	// LoopCeiling bounds dispatcher recursion depth before a request is
	// failed with ErrLoopDetected (spec.md §4.1).
	LoopCeiling int

	// CosTemplateRecursionBound bounds nested COS template resolution
	// (spec.md §4.2).
	CosTemplateRecursionBound int

	// RolesNestedRecursionBound bounds nested-role membership evaluation
	// (spec.md §4.3).
	RolesNestedRecursionBound int

	// EntryCachePolicy is loaded and validated as cache_all or cache_none.
	// The dispatcher does not read it: per-entry caching follows each
	// provider's Cacheable answer whatever its value.
	EntryCachePolicy CachePolicy

	// EntryCacheFastPathSize bounds the per-entry "list types present"
	// fast-path LRU (internal/vattr/entrycache.go).
	EntryCacheFastPathSize int

	// Debug is loaded from the environment; no package in this module
	// reads it, so it changes no logging.
	Debug bool
}

// CachePolicy selects whether the dispatcher caches provider results on the
// entry by default.
type CachePolicy string

const (
	CacheAll  CachePolicy = "cache_all"
	CacheNone CachePolicy = "cache_none"
)

// The COS/Roles updater rebuild-request channel buffer size is fixed at 1
// by design (spec.md §9's channel-driven-worker redesign coalesces any
// number of pending notifications into a single rebuild) and is
// deliberately not configurable.
const UpdaterChannelBufferSize = 1

// Load reads configuration from environment variables with fallback
// defaults.
func Load() (*Config, error) {
	cfg := &Config{
		LoopCeiling:               getEnvInt("VAS_LOOP_CEILING", 50),
		CosTemplateRecursionBound: getEnvInt("VAS_COS_RECURSION_BOUND", 30),
		RolesNestedRecursionBound: getEnvInt("VAS_ROLES_RECURSION_BOUND", 5),
		EntryCachePolicy:          CachePolicy(getEnv("VAS_ENTRY_CACHE_POLICY", string(CacheAll))),
		EntryCacheFastPathSize:    getEnvInt("VAS_ENTRY_CACHE_FASTPATH_SIZE", 4096),
		Debug:                     getEnvBool("VAS_DEBUG", false),
	}

	if cfg.LoopCeiling <= 0 {
		return nil, fmt.Errorf("VAS_LOOP_CEILING must be positive, got %d", cfg.LoopCeiling)
	}
	if cfg.CosTemplateRecursionBound <= 0 {
		return nil, fmt.Errorf("VAS_COS_RECURSION_BOUND must be positive, got %d", cfg.CosTemplateRecursionBound)
	}
	if cfg.RolesNestedRecursionBound <= 0 {
		return nil, fmt.Errorf("VAS_ROLES_RECURSION_BOUND must be positive, got %d", cfg.RolesNestedRecursionBound)
	}
	if cfg.EntryCachePolicy != CacheAll && cfg.EntryCachePolicy != CacheNone {
		return nil, fmt.Errorf("VAS_ENTRY_CACHE_POLICY must be %q or %q, got %q", CacheAll, CacheNone, cfg.EntryCachePolicy)
	}
	if cfg.EntryCacheFastPathSize <= 0 {
		return nil, fmt.Errorf("VAS_ENTRY_CACHE_FASTPATH_SIZE must be positive, got %d", cfg.EntryCacheFastPathSize)
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
