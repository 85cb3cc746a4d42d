package model

import "time"

// Stage represents a physical stage belonging to exactly one festival.
// Stage names are unique within their festival.
//
// Fields:
//  ID          – primary key identifier.
//  FestivalID  – owning festival.
//  Name        – unique name per festival.
//  Description – optional description.
//  Capacity    – audience capacity (nil if unspecified).
//  Location    – optional physical location string.
//  CreatedAt   – creation timestamp.
type Stage struct {
	ID          uint64    `json:"id"`                    // stages.id
	FestivalID  uint64    `json:"festivalId"`            // stages.festival_id
	Name        string    `json:"name"`                  // stages.name
	Description *string   `json:"description,omitempty"` // stages.description (nullable)
	Capacity    *uint32   `json:"capacity,omitempty"`    // stages.capacity (nullable)
	Location    *string   `json:"location,omitempty"`    // stages.location (nullable)
	CreatedAt   time.Time `json:"createdAt"`             // stages.created_at
}

// StageSummary is the compact form embedded in performance responses.
type StageSummary struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	FestivalID uint64 `json:"festivalId"`
}

// Summary returns the compact representation of the stage.
func (s Stage) Summary() StageSummary {
	return StageSummary{ID: s.ID, Name: s.Name, FestivalID: s.FestivalID}
}
