package domain

import "strings"

// Status is the canonical commission lifecycle state. Producers spell these
// inconsistently ("On Going", "Canceled"); NormalizeStatus folds every spelling
// into one of the constants below at ingestion boundaries so the rest of the
// core only ever compares canonical values.
type Status string

const (
	StatusPending   Status = "pending"
	StatusOngoing   Status = "ongoing"
	StatusUnclaimed Status = "unclaimed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// NormalizeStatus maps a raw status string onto its canonical Status. The
// second return reports whether the input was recognized; unrecognized input
// comes back as StatusPending.
func NormalizeStatus(raw string) (Status, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	switch s {
	case "pending", "requested", "open":
		return StatusPending, true
	case "ongoing", "inprogress", "active":
		return StatusOngoing, true
	case "unclaimed", "awaitingpayment", "delivered":
		return StatusUnclaimed, true
	case "cancelled", "canceled":
		return StatusCancelled, true
	case "completed", "complete", "done":
		return StatusCompleted, true
	}
	return StatusPending, false
}

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Commission is the core entity: a unit of requested or fulfilled creative
// work. Date is the human-displayed date string carried over from producers;
// CreatedAt is the sortable RFC3339 timestamp stamped by this core.
type Commission struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description,omitempty"`
	Category        string   `json:"category,omitempty"`
	Artist          string   `json:"artist,omitempty"`
	ContactEmail    string   `json:"contactEmail,omitempty"`
	ReferencePhotos []string `json:"referencePhotos,omitempty"`
	Status          Status   `json:"status"`
	Date            string   `json:"date,omitempty"`
	CreatedAt       string   `json:"createdAt,omitempty" format:"date-time"`

	// Lifecycle metadata, present only once the matching transition happened.
	CancellationReason string   `json:"cancellationReason,omitempty"`
	CancelledAt        string   `json:"cancelledAt,omitempty" format:"date-time"`
	CompletionNotes    string   `json:"completionNotes,omitempty"`
	AgreedPrice        *float64 `json:"agreedPrice,omitempty"`
	CompletedAt        string   `json:"completedAt,omitempty" format:"date-time"`
	ProofPhotos        []string `json:"proofPhotos,omitempty"`
}

// Delta is a partial commission produced by one screen and merged by another.
// Only non-nil fields are applied, allowing partial updates of a record.
type Delta struct {
	ID                 string    `json:"id,omitempty"`
	Title              *string   `json:"title,omitempty"`
	Description        *string   `json:"description,omitempty"`
	Category           *string   `json:"category,omitempty"`
	Artist             *string   `json:"artist,omitempty"`
	ContactEmail       *string   `json:"contactEmail,omitempty"`
	ReferencePhotos    *[]string `json:"referencePhotos,omitempty"`
	Status             *string   `json:"status,omitempty"`
	Date               *string   `json:"date,omitempty"`
	CreatedAt          *string   `json:"createdAt,omitempty"`
	CancellationReason *string   `json:"cancellationReason,omitempty"`
	CancelledAt        *string   `json:"cancelledAt,omitempty"`
	CompletionNotes    *string   `json:"completionNotes,omitempty"`
	AgreedPrice        *float64  `json:"agreedPrice,omitempty"`
	CompletedAt        *string   `json:"completedAt,omitempty"`
	ProofPhotos        *[]string `json:"proofPhotos,omitempty"`
}

// Apply shallow-merges the delta over c; delta fields win.
func (d Delta) Apply(c Commission) Commission {
	if d.ID != "" {
		c.ID = d.ID
	}
	if d.Title != nil {
		c.Title = *d.Title
	}
	if d.Description != nil {
		c.Description = *d.Description
	}
	if d.Category != nil {
		c.Category = *d.Category
	}
	if d.Artist != nil {
		c.Artist = *d.Artist
	}
	if d.ContactEmail != nil {
		c.ContactEmail = *d.ContactEmail
	}
	if d.ReferencePhotos != nil {
		c.ReferencePhotos = *d.ReferencePhotos
	}
	if d.Status != nil {
		st, _ := NormalizeStatus(*d.Status)
		c.Status = st
	}
	if d.Date != nil {
		c.Date = *d.Date
	}
	if d.CreatedAt != nil {
		c.CreatedAt = *d.CreatedAt
	}
	if d.CancellationReason != nil {
		c.CancellationReason = *d.CancellationReason
	}
	if d.CancelledAt != nil {
		c.CancelledAt = *d.CancelledAt
	}
	if d.CompletionNotes != nil {
		c.CompletionNotes = *d.CompletionNotes
	}
	if d.AgreedPrice != nil {
		c.AgreedPrice = d.AgreedPrice
	}
	if d.CompletedAt != nil {
		c.CompletedAt = *d.CompletedAt
	}
	if d.ProofPhotos != nil {
		c.ProofPhotos = *d.ProofPhotos
	}
	return c
}

// Skeleton returns a commission seeded from the delta alone, used when a delta
// arrives for a record the store has never seen.
func (d Delta) Skeleton() Commission {
	return d.Apply(Commission{Status: StatusPending})
}
