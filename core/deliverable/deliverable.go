package deliverable

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/group"
)

// Document types
const (
	DocProjectPlan       = "PROJECT_PLAN"
	DocFinalReport       = "FINAL_REPORT"
	DocPresentationVideo = "PRESENTATION_VIDEO"
)

const StatusSubmitted = "SUBMITTED"

var DocumentTypes = []string{DocProjectPlan, DocFinalReport, DocPresentationVideo}

func IsDocumentType(t string) bool {
	for _, dt := range DocumentTypes {
		if dt == t {
			return true
		}
	}
	return false
}

var (
	NowFunc = time.Now // mockable

	// errors
	ErrInvalidDocType = core.NewAppError(core.KindInvalid, "INVALID_DOC_TYPE", "invalid document type, use one of: PROJECT_PLAN, FINAL_REPORT or PRESENTATION_VIDEO")
)

type (
	Deliverable struct {
		ID           string    `json:"id"`
		GroupID      string    `json:"group_ref"`
		UseCaseID    string    `json:"use_case_ref,omitempty"`
		SubmittedBy  string    `json:"submitted_by"`
		DocumentType string    `json:"document_type"`
		FilePath     string    `json:"file_path"`
		Description  string    `json:"description"`
		Status       string    `json:"status"`
		SubmittedAt  time.Time `json:"submitted_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}

	// Row is a deliverable listed to admins.
	Row struct {
		Deliverable
		GroupName   string `json:"group_name"`
		UseCaseName string `json:"use_case_name"`
	}

	NewDeliverable struct {
		DocumentType string `json:"document_type" validate:"required"`
		FilePath     string `json:"file_path" validate:"required,notblank"`
		Description  string `json:"description" validate:"max=2000"`
	}

	QueryFilter struct {
		DocumentType string
		UseCaseID    string
	}

	Repository interface {
		CreateDeliverable(ctx context.Context, d Deliverable) (Deliverable, error)
		// ListDeliverables returns the deliverables matching filter, newest first.
		ListDeliverables(ctx context.Context, filter QueryFilter) ([]Row, error)
	}

	Service interface {
		Submit(ctx context.Context, userID string, nd NewDeliverable) (Deliverable, error)
		List(ctx context.Context, filter QueryFilter) ([]Row, error)
	}

	service struct {
		repo   Repository
		grpSvc group.Service
	}
)

var _ Service = (*service)(nil)

func (nd *NewDeliverable) Validate(validate *validator.Validate) error {
	nd.DocumentType = core.CleanString(nd.DocumentType)
	nd.FilePath = core.CleanString(nd.FilePath)
	nd.Description = core.SanitizeText(nd.Description)
	return validate.Struct(nd)
}

func NewService(repo Repository, grpSvc group.Service) Service {
	return &service{repo: repo, grpSvc: grpSvc}
}

// Submit stores a document for the user's active team, tagged with the team's use case.
func (svc *service) Submit(ctx context.Context, userID string, nd NewDeliverable) (Deliverable, error) {
	dtl, err := svc.grpSvc.MyTeam(ctx, userID)
	if err != nil {
		return Deliverable{}, err
	}
	if !IsDocumentType(nd.DocumentType) {
		return Deliverable{}, ErrInvalidDocType
	}

	now := NowFunc().UTC()
	return svc.repo.CreateDeliverable(ctx, Deliverable{
		GroupID:      dtl.ID,
		UseCaseID:    dtl.UseCaseID,
		SubmittedBy:  userID,
		DocumentType: nd.DocumentType,
		FilePath:     nd.FilePath,
		Description:  nd.Description,
		Status:       StatusSubmitted,
		SubmittedAt:  now,
		UpdatedAt:    now,
	})
}

func (svc *service) List(ctx context.Context, filter QueryFilter) ([]Row, error) {
	filter.DocumentType = core.CleanString(filter.DocumentType)
	filter.UseCaseID = core.CleanString(filter.UseCaseID)
	return svc.repo.ListDeliverables(ctx, filter)
}
