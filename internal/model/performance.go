package model

import "time"

// Performance is a scheduled appearance of one artist on one stage within
// the half-open range [StartsAt, EndsAt).  Cancelled performances are kept
// for history but no longer occupy their stage or artist.
//
// Fields:
//  ID          – primary key identifier.
//  ArtistID    – performing artist.
//  StageID     – stage the performance takes place on.
//  StartsAt    – inclusive start.
//  EndsAt      – exclusive end (strictly after StartsAt).
//  Description – optional free text.
//  IsCancelled – soft cancellation flag.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Performance struct {
	ID          uint64    `json:"id"`                    // performances.id
	ArtistID    uint64    `json:"artistId"`              // performances.artist_id
	StageID     uint64    `json:"stageId"`               // performances.stage_id
	StartsAt    time.Time `json:"startsAt"`              // performances.starts_at
	EndsAt      time.Time `json:"endsAt"`                // performances.ends_at
	Description *string   `json:"description,omitempty"` // performances.description (nullable)
	IsCancelled bool      `json:"isCancelled"`           // performances.is_cancelled
	CreatedAt   time.Time `json:"createdAt"`             // performances.created_at
	UpdatedAt   time.Time `json:"updatedAt"`             // performances.updated_at
}

// PerformanceDetail is a performance together with the resolved artist and
// stage summaries used for display.
type PerformanceDetail struct {
	Performance
	Artist ArtistSummary `json:"artist"`
	Stage  StageSummary  `json:"stage"`
}
