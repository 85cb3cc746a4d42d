package model

import "time"

// Artist is a performer known to the platform.  Artists are not scoped to a
// festival; the same artist may appear in the program of several festivals.
// Links maps a profile label (e.g. "spotify", "website") to its URL.
type Artist struct {
	ID        uint64            `json:"id"`              // artists.id
	Name      string            `json:"name"`            // artists.name
	Genre     *string           `json:"genre,omitempty"` // artists.genre (nullable)
	Bio       *string           `json:"bio,omitempty"`   // artists.bio (nullable)
	ImageURL  *string           `json:"image,omitempty"` // artists.image_url (nullable)
	Links     map[string]string `json:"links,omitempty"` // artists.links (JSON text)
	CreatedAt time.Time         `json:"createdAt"`       // artists.created_at
}

// ArtistSummary is the compact form embedded in performance responses.
type ArtistSummary struct {
	ID    uint64  `json:"id"`
	Name  string  `json:"name"`
	Genre *string `json:"genre,omitempty"`
	Image *string `json:"image,omitempty"`
}

// Summary returns the compact representation of the artist.
func (a Artist) Summary() ArtistSummary {
	return ArtistSummary{ID: a.ID, Name: a.Name, Genre: a.Genre, Image: a.ImageURL}
}
