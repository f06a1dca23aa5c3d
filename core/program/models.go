package program

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/capstone/core"
)

// UseCase is a project brief a team works on.
type UseCase struct {
	ID        string    `json:"id"`
	SourceID  string    `json:"capstone_use_case_source_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type NewUseCase struct {
	SourceID string `json:"capstone_use_case_source_id" validate:"required,notblank"`
	Name     string `json:"name" validate:"required,notblank"`
}

func (nu *NewUseCase) Validate(validate *validator.Validate) error {
	nu.SourceID = core.CleanString(nu.SourceID)
	nu.Name = core.SanitizeText(nu.Name)
	return validate.Struct(nu)
}

// TimelineEntry is a milestone of a batch schedule.
type TimelineEntry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	BatchID     string    `json:"batch_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewTimelineEntry struct {
	Title       string    `json:"title" validate:"required,notblank"`
	Description string    `json:"description"`
	StartAt     time.Time `json:"start_at" validate:"required"`
	EndAt       time.Time `json:"end_at" validate:"required,gtfield=StartAt"`
	BatchID     string    `json:"batch_id"`
}

func (nt *NewTimelineEntry) Validate(validate *validator.Validate) error {
	nt.Title = core.SanitizeText(nt.Title)
	nt.Description = core.SanitizeText(nt.Description)
	nt.BatchID = core.CleanString(nt.BatchID)
	return validate.Struct(nt)
}

// Doc is a reference document shown to students.
type Doc struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	OrderIdx  int       `json:"order_idx"`
	CreatedAt time.Time `json:"created_at"`
}

type NewDoc struct {
	URL      string `json:"url" validate:"required,url"`
	Title    string `json:"title"`
	OrderIdx int    `json:"order_idx" validate:"gte=0"`
}

func (nd *NewDoc) Validate(validate *validator.Validate) error {
	nd.URL = core.CleanString(nd.URL)
	nd.Title = core.SanitizeText(nd.Title)
	return validate.Struct(nd)
}

// Period is a check-in window students submit worksheets for.
type Period struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batch_id"`
	Title     string    `json:"title"`
	StartDate core.Date `json:"start_date"`
	EndDate   core.Date `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
}

type NewPeriod struct {
	BatchID   string    `json:"batch_id" validate:"required,notblank"`
	Title     string    `json:"title" validate:"required,notblank"`
	StartDate core.Date `json:"start_date"`
	EndDate   core.Date `json:"end_date"`
}

func (np *NewPeriod) Validate(validate *validator.Validate) error {
	np.BatchID = core.CleanString(np.BatchID)
	np.Title = core.SanitizeText(np.Title)
	if err := validate.Struct(np); err != nil {
		return err
	}

	var fldErrs []core.FieldError
	if np.StartDate.IsZero() {
		fldErrs = append(fldErrs, core.FieldError{Field: "start_date", Error: "this field is required"})
	}
	if np.EndDate.IsZero() {
		fldErrs = append(fldErrs, core.FieldError{Field: "end_date", Error: "this field is required"})
	} else if np.EndDate.Before(np.StartDate.Time) {
		fldErrs = append(fldErrs, core.FieldError{Field: "end_date", Error: "end_date cannot be before start_date"})
	}
	if fldErrs != nil {
		return core.NewValidationError(ErrInvalidPeriod, fldErrs...)
	}
	return nil
}
