package models

import "time"

// MetricsSnapshot is a point-in-time summary of service and engine counters.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	PlansTotal               uint64    `json:"plans_total"`
	AutoAssignableTotal      uint64    `json:"auto_assignable_total"`
	CommitsTotal             uint64    `json:"commits_total"`
	CommitConflictsTotal     uint64    `json:"commit_conflicts_total"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
