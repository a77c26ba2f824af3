package server

import "commline/internal/domain"

// Request payloads

type SubmitCommissionRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category,omitempty"`
	Artist          string   `json:"artist,omitempty"`
	ContactEmail    string   `json:"contact_email"`
	Date            string   `json:"date"`
	ReferencePhotos []string `json:"reference_photos,omitempty"`
	Direct          bool     `json:"direct,omitempty"`
	Price           float64  `json:"price,omitempty"`
}

type AcceptCommissionRequest struct {
	Artist string `json:"artist,omitempty"`
}

type CompleteCommissionRequest struct {
	Notes       string   `json:"notes,omitempty"`
	Price       float64  `json:"price,omitempty"`
	ProofPhotos []string `json:"proof_photos,omitempty"`
}

type CancelCommissionRequest struct {
	Reason       string `json:"reason,omitempty"`
	Confirmation string `json:"confirmation"`
}

type SetFollowingRequest struct {
	Following bool `json:"following"`
}

// Response payloads

type CommissionResponse struct {
	domain.Commission
	Identity string `json:"identity"`
	Liked    bool   `json:"liked"`
	Likes    int    `json:"likes"`
}

type LikeResponse struct {
	Identity string `json:"identity"`
	Liked    bool   `json:"liked"`
	Likes    int    `json:"likes"`
}

type FollowingResponse struct {
	Following map[string]bool `json:"following"`
}
