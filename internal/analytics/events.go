package analytics

import "time"

type EventType string

const (
	EventSearch      EventType = "search"
	EventZeroResult  EventType = "zero_result"
	EventSyntaxError EventType = "syntax_error"
)

// SearchEvent is published once per query served.
type SearchEvent struct {
	Type        EventType `json:"type"`
	Query       string    `json:"query"`
	Terms       []string  `json:"terms"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	TotalHits   int       `json:"total_hits"`
	Returned    int       `json:"returned"`
	TopDocument string    `json:"top_document,omitempty"`
	LatencyMs   int64     `json:"latency_ms"`
	CacheHit    bool      `json:"cache_hit"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}
