package model

import "time"

// Festival represents a single edition of a festival.  It owns a set of
// stages and, through them, every performance of its program.  This struct
// corresponds to a row in the `festivals` table.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – display name.
//  Slug      – unique URL-friendly identifier.
//  StartsAt  – beginning of the scheduling window.
//  EndsAt    – end of the scheduling window (after StartsAt).
//  CreatedAt – timestamp when the festival was created.
type Festival struct {
	ID        uint64    `json:"id"`        // festivals.id
	Name      string    `json:"name"`      // festivals.name
	Slug      string    `json:"slug"`      // festivals.slug
	StartsAt  time.Time `json:"startsAt"`  // festivals.starts_at
	EndsAt    time.Time `json:"endsAt"`    // festivals.ends_at
	CreatedAt time.Time `json:"createdAt"` // festivals.created_at
}
