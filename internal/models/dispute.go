package models

import "time"

type DisputeStatus string

const (
	DisputeOpen        DisputeStatus = "open"
	DisputeUnderReview DisputeStatus = "under_review"
	DisputeResolved    DisputeStatus = "resolved"
	DisputeCancelled   DisputeStatus = "cancelled"
)

func (s DisputeStatus) Terminal() bool {
	return s == DisputeResolved || s == DisputeCancelled
}

type DisputeResolution string

const (
	ResolveRefundCustomer DisputeResolution = "refund_customer"
	ResolveReleasePro     DisputeResolution = "release_pro"
	ResolveSplit          DisputeResolution = "split"
	ResolveNoAction       DisputeResolution = "no_action"
	ResolveOther          DisputeResolution = "other"
)

func (r DisputeResolution) Valid() bool {
	switch r {
	case ResolveRefundCustomer, ResolveReleasePro, ResolveSplit, ResolveNoAction, ResolveOther:
		return true
	}
	return false
}

type Evidence struct {
	Type       string    `json:"type"`
	URL        string    `json:"url"`
	Note       string    `json:"note,omitempty"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Dispute freezes settlement for its booking while non-terminal. Resolution
// is set if and only if status is resolved.
type Dispute struct {
	ID             string             `json:"id"`
	BookingID      string             `json:"booking_id"`
	InitiatorID    string             `json:"initiator_id"`
	RespondentID   string             `json:"respondent_id"`
	Reason         string             `json:"reason"`
	Description    string             `json:"description,omitempty"`
	Evidence       []Evidence         `json:"evidence,omitempty"`
	Status         DisputeStatus      `json:"status"`
	Resolution     *DisputeResolution `json:"resolution,omitempty"`
	ResolutionNote string             `json:"resolution_note,omitempty"`
	ResolvedBy     *string            `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time         `json:"resolved_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}
