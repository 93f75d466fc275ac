// Package analytics records search activity and aggregates it into query
// statistics, either in process or through a Kafka topic.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventSuggest    EventType = "suggest"
	EventZeroResult EventType = "zero_result"
)

// SearchEvent describes one answered search or suggestion request.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Types     []string  `json:"types,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}
