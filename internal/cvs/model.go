package cvs

import "time"

// CV is a processed CV owned by a user, addressable by its public urlId and
// optionally by a human-readable custom URL name.
type CV struct {
	ID            string
	URLId         string
	CustomURLName string
	UserID        string

	FileName string
	FileSize int64
	FileType string
	FileURL  string
	// StorageKey identifies the original upload in object storage.
	StorageKey string

	StructuredData StructuredCV
	// Degraded marks records whose structured data is the parse fallback.
	Degraded bool

	HTML                 string
	PlaceholderPage      string
	PlaceholderGenerated *time.Time

	ProfilePictureURL string

	UploadDate time.Time
	Views      int
	LastViewed *time.Time

	SectionInteractions []SectionInteraction
}

// SectionInteraction tracks clicks on one expandable section of a CV page.
type SectionInteraction struct {
	SectionID    string    `json:"sectionId"`
	SectionTitle string    `json:"sectionTitle"`
	Clicks       int       `json:"clicks"`
	LastClicked  time.Time `json:"lastClicked"`
}
