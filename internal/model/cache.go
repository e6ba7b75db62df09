package model

import "time"

// CacheSource indicates how a cache entry was created.
type CacheSource string

// Cache source constants.
const (
	// SourceUserApproved indicates the entry came from an explicit user decision.
	SourceUserApproved CacheSource = "user_approved"
	// SourceHighConfidenceAI indicates the entry came from an oracle result at or above the write-back threshold.
	SourceHighConfidenceAI CacheSource = "high_confidence_ai"
	// SourceFuzzyMatch indicates the entry came from a verified deterministic fuzzy match.
	SourceFuzzyMatch CacheSource = "fuzzy_match"
)

// MatchCacheEntry maps a normalized raw payee string to its canonical
// identity. Unique per (budget, normalized raw payee).
type MatchCacheEntry struct {
	LastUpdated   time.Time
	BudgetID      string
	RawPayeeName  string // stored normalized
	CanonicalID   string
	CanonicalName string
	Source        CacheSource
	Confidence    float64
	HitCount      int
}

// CategoryCacheEntry maps a normalized canonical payee name to its usual
// category. Unique per (budget, normalized payee).
type CategoryCacheEntry struct {
	LastUpdated  time.Time
	BudgetID     string
	PayeeName    string // stored normalized
	CategoryID   string
	CategoryName string
	Source       CacheSource
	Confidence   float64
	HitCount     int
}
