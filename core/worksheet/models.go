package worksheet

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/capstone/core"
)

// Worksheet statuses
const (
	StatusSubmitted     = "submitted"
	StatusSubmittedLate = "submitted_late"
	StatusCompleted     = "completed"
	StatusCompletedLate = "completed_late"
	StatusMissed        = "missed"
)

// ReviewStatuses are the statuses an admin may give a worksheet.
var ReviewStatuses = []string{StatusCompleted, StatusCompletedLate, StatusMissed}

func IsReviewStatus(status string) bool {
	for _, s := range ReviewStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Worksheet is a periodic check-in of a student.
type Worksheet struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_ref"`
	GroupID             string    `json:"group_ref"`
	BatchID             string    `json:"batch_id"`
	ActivityDescription string    `json:"activity_description"`
	ProofURL            string    `json:"proof_url"`
	PeriodStart         core.Date `json:"period_start"`
	PeriodEnd           core.Date `json:"period_end"`
	Status              string    `json:"status"`
	Feedback            string    `json:"feedback"`
	SubmittedAt         time.Time `json:"submitted_at"`
	CreatedAt           time.Time `json:"created_at"`
}

// Row is a worksheet listed to admins with its author and group names.
type Row struct {
	Worksheet
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
	GroupName string `json:"group_name"`
}

type NewWorksheet struct {
	ActivityDescription string    `json:"activity_description" validate:"required,notblank"`
	ProofURL            string    `json:"proof_url" validate:"omitempty,url"`
	PeriodStart         core.Date `json:"period_start"`
	PeriodEnd           core.Date `json:"period_end"`
}

func (nw *NewWorksheet) Validate(validate *validator.Validate) error {
	nw.ActivityDescription = core.SanitizeText(nw.ActivityDescription)
	nw.ProofURL = core.CleanString(nw.ProofURL)
	if err := validate.Struct(nw); err != nil {
		return err
	}

	var fldErrs []core.FieldError
	if nw.PeriodStart.IsZero() {
		fldErrs = append(fldErrs, core.FieldError{Field: "period_start", Error: "this field is required"})
	}
	if nw.PeriodEnd.IsZero() {
		fldErrs = append(fldErrs, core.FieldError{Field: "period_end", Error: "this field is required"})
	} else if nw.PeriodEnd.Before(nw.PeriodStart.Time) {
		fldErrs = append(fldErrs, core.FieldError{Field: "period_end", Error: "period_end cannot be before period_start"})
	}
	if fldErrs != nil {
		return core.NewValidationError(ErrInvalidPeriod, fldErrs...)
	}
	return nil
}

// Review is an admin decision on a worksheet.
type Review struct {
	Status   string `json:"status" validate:"required"`
	Feedback string `json:"feedback" validate:"max=2000"`
}

func (r *Review) Validate(validate *validator.Validate) error {
	r.Status = core.CleanString(r.Status, true /* lower */)
	r.Feedback = core.SanitizeText(r.Feedback)
	return validate.Struct(r)
}

type QueryFilter struct {
	BatchID string
	Status  string
	UserID  string
}

// ReminderResult is returned by SendReminder.
type ReminderResult struct {
	PeriodTitle   string `json:"period_title"`
	RemindedCount int    `json:"reminded_count"`
}
