package feedback

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/capstone/core"
)

// Contribution levels
const (
	ContributionLow    = "low"
	ContributionMedium = "medium"
	ContributionHigh   = "high"
)

// Feedback is a 360 review of a teammate.
type Feedback struct {
	ID                string    `json:"id"`
	ReviewerID        string    `json:"reviewer_user_ref"`
	RevieweeID        string    `json:"reviewee_user_ref"`
	GroupID           string    `json:"group_ref"`
	BatchID           string    `json:"batch_id"`
	IsMemberActive    bool      `json:"is_member_active"`
	ContributionLevel string    `json:"contribution_level"`
	Reason            string    `json:"reason"`
	CreatedAt         time.Time `json:"created_at"`

	// read only
	SubmittedFor string `json:"submitted_for,omitempty"`
	GroupName    string `json:"group_name,omitempty"`
}

// NewFeedback names the reviewee by ID or by source ID.
type NewFeedback struct {
	RevieweeID        string `json:"reviewee_id" validate:"omitempty,uuid"`
	RevieweeSourceID  string `json:"reviewee_source_id" validate:"required_without=RevieweeID"`
	IsMemberActive    *bool  `json:"is_member_active" validate:"required"`
	ContributionLevel string `json:"contribution_level" validate:"required,oneof=low medium high"`
	Reason            string `json:"reason" validate:"max=2000"`
}

func (nf *NewFeedback) Validate(validate *validator.Validate) error {
	nf.RevieweeID = core.CleanString(nf.RevieweeID)
	nf.RevieweeSourceID = core.CleanString(nf.RevieweeSourceID)
	nf.ContributionLevel = core.CleanString(nf.ContributionLevel, true /* lower */)
	nf.Reason = core.SanitizeText(nf.Reason)
	return validate.Struct(nf)
}

// Given is the feedback the reviewer gave a teammate.
type Given struct {
	ContributionLevel string    `json:"contribution_level"`
	Reason            string    `json:"reason"`
	IsMemberActive    bool      `json:"is_member_active"`
	SubmittedAt       time.Time `json:"submitted_at"`
}

// Status statuses
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// TeammateStatus tells whether the user has reviewed a teammate.
type TeammateStatus struct {
	RevieweeID       string `json:"reviewee_id"`
	RevieweeSourceID string `json:"reviewee_source_id"`
	Name             string `json:"name"`
	GroupID          string `json:"group_id"`
	BatchID          string `json:"batch_id"`
	Status           string `json:"status"`
	Feedback         *Given `json:"feedback"`
}

type ExportFilter struct {
	BatchID string
	GroupID string
}

// ExportRow is one feedback line of the admin export.
type ExportRow struct {
	ID                string    `json:"id" boil:"id"`
	CreatedAt         time.Time `json:"created_at" boil:"created_at"`
	BatchID           string    `json:"batch_id" boil:"batch_id"`
	GroupName         string    `json:"group_name" boil:"group_name"`
	ReviewerName      string    `json:"reviewer_name" boil:"reviewer_name"`
	ReviewerEmail     string    `json:"reviewer_email" boil:"reviewer_email"`
	ReviewerSourceID  string    `json:"reviewer_source_id" boil:"reviewer_source_id"`
	RevieweeName      string    `json:"reviewee_name" boil:"reviewee_name"`
	RevieweeEmail     string    `json:"reviewee_email" boil:"reviewee_email"`
	RevieweeSourceID  string    `json:"reviewee_source_id" boil:"reviewee_source_id"`
	IsMemberActive    bool      `json:"is_member_active" boil:"is_member_active"`
	ContributionLevel string    `json:"contribution_level" boil:"contribution_level"`
	Reason            string    `json:"reason" boil:"reason"`
}

var ExportHeader = []string{
	"ID", "Submitted At", "Batch", "Group",
	"Reviewer", "Reviewer Email", "Reviewer ID",
	"Reviewee", "Reviewee Email", "Reviewee ID",
	"Member Active", "Contribution", "Reason",
}

func (r ExportRow) Values() []interface{} {
	return []interface{}{
		r.ID, r.CreatedAt.Format(time.RFC3339), r.BatchID, r.GroupName,
		r.ReviewerName, r.ReviewerEmail, r.ReviewerSourceID,
		r.RevieweeName, r.RevieweeEmail, r.RevieweeSourceID,
		r.IsMemberActive, r.ContributionLevel, r.Reason,
	}
}
