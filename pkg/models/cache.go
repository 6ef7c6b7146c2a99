package models

import "time"

// CacheEntry stores a computed recommendation result.
type CacheEntry struct {
	Key      string    `json:"key"`
	Result   Result    `json:"result"`
	StoredAt time.Time `json:"stored_at"`
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Backend string `json:"backend"`
	Entries int64  `json:"entries"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
}

// HitRate returns hits as a fraction of all lookups.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
