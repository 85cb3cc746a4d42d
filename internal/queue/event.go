// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// PerformanceEventType names the program mutation that produced an event.
type PerformanceEventType string

const (
	PerformanceCreated   PerformanceEventType = "performance.created"
	PerformanceUpdated   PerformanceEventType = "performance.updated"
	PerformanceCancelled PerformanceEventType = "performance.cancelled"
	PerformanceDeleted   PerformanceEventType = "performance.deleted"
)

// PerformanceEvent is published after a program write commits.  It carries
// enough information for downstream consumers (notifications, refunds,
// caches) to react without querying the primary database.  Times are UTC
// RFC 3339 strings.
type PerformanceEvent struct {
	MessageID     string               `json:"message_id"`
	Type          PerformanceEventType `json:"type"`
	PerformanceID uint64               `json:"performance_id"`
	FestivalID    uint64               `json:"festival_id"`
	StageID       uint64               `json:"stage_id"`
	StageName     string               `json:"stage_name"`
	ArtistID      uint64               `json:"artist_id"`
	ArtistName    string               `json:"artist_name"`
	StartsAt      string               `json:"starts_at"`
	EndsAt        string               `json:"ends_at"`
	IsCancelled   bool                 `json:"is_cancelled"`
	OccurredAt    string               `json:"occurred_at"`
}

// FormatTime renders t the way PerformanceEvent stores timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
