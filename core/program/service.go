package program

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrUseCaseNotFound = core.NewAppError(core.KindNotFound, "USE_CASE_NOT_FOUND", "use case not found")
	ErrPeriodNotFound  = core.NewAppError(core.KindNotFound, "PERIOD_NOT_FOUND", "period not found")
	ErrUseCaseExists   = core.NewAppError(core.KindConflict, "USE_CASE_ALREADY_EXISTS", "a use case with this source ID already exists")
	ErrInvalidPeriod   = core.NewAppError(core.KindInvalid, "VALIDATION_FAILED", "invalid period")
)

type (
	UseCaseFilter struct {
		ID       string
		SourceID string
	}

	Repository interface {
		CreateUseCase(ctx context.Context, uc UseCase) (UseCase, error)
		ListUseCases(ctx context.Context) ([]UseCase, error)
		GetUseCase(ctx context.Context, filter UseCaseFilter) (UseCase, error)

		CreateTimelineEntry(ctx context.Context, entry TimelineEntry) (TimelineEntry, error)
		// ListTimeline returns the entries of a batch, newest first. An empty batchID lists everything.
		ListTimeline(ctx context.Context, batchID string) ([]TimelineEntry, error)

		CreateDoc(ctx context.Context, doc Doc) (Doc, error)
		ListDocs(ctx context.Context) ([]Doc, error)

		CreatePeriod(ctx context.Context, period Period) (Period, error)
		// ListPeriods returns the periods of a batch ordered by start date. An empty batchID lists everything.
		ListPeriods(ctx context.Context, batchID string) ([]Period, error)
		GetPeriod(ctx context.Context, id string) (Period, error)
	}

	// Service manages the program catalog: use cases, timeline, reference docs and check-in periods.
	Service interface {
		CreateUseCase(ctx context.Context, nu NewUseCase) (UseCase, error)
		ListUseCases(ctx context.Context) ([]UseCase, error)
		GetUseCase(ctx context.Context, id string) (UseCase, error)
		GetUseCaseBySourceID(ctx context.Context, sourceID string) (UseCase, error)

		CreateTimelineEntry(ctx context.Context, nt NewTimelineEntry) (TimelineEntry, error)
		ListTimeline(ctx context.Context, userID string) ([]TimelineEntry, error)

		CreateDoc(ctx context.Context, nd NewDoc) (Doc, error)
		ListDocs(ctx context.Context) ([]Doc, error)

		CreatePeriod(ctx context.Context, np NewPeriod) (Period, error)
		ListPeriods(ctx context.Context, batchID string) ([]Period, error)
		GetPeriod(ctx context.Context, id string) (Period, error)
	}

	service struct {
		repo   Repository
		usrSvc user.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service) Service {
	return &service{repo: repo, usrSvc: usrSvc}
}

func (svc *service) CreateUseCase(ctx context.Context, nu NewUseCase) (UseCase, error) {
	return svc.repo.CreateUseCase(ctx, UseCase{
		SourceID:  nu.SourceID,
		Name:      nu.Name,
		CreatedAt: NowFunc().UTC(),
	})
}

func (svc *service) ListUseCases(ctx context.Context) ([]UseCase, error) {
	return svc.repo.ListUseCases(ctx)
}

func (svc *service) GetUseCase(ctx context.Context, id string) (UseCase, error) {
	return svc.repo.GetUseCase(ctx, UseCaseFilter{ID: id})
}

func (svc *service) GetUseCaseBySourceID(ctx context.Context, sourceID string) (UseCase, error) {
	return svc.repo.GetUseCase(ctx, UseCaseFilter{SourceID: core.CleanString(sourceID)})
}

func (svc *service) CreateTimelineEntry(ctx context.Context, nt NewTimelineEntry) (TimelineEntry, error) {
	return svc.repo.CreateTimelineEntry(ctx, TimelineEntry{
		Title:       nt.Title,
		Description: nt.Description,
		StartAt:     nt.StartAt.UTC(),
		EndAt:       nt.EndAt.UTC(),
		BatchID:     nt.BatchID,
		CreatedAt:   NowFunc().UTC(),
	})
}

// ListTimeline lists the timeline of the user's batch (the whole timeline when the user has no batch).
func (svc *service) ListTimeline(ctx context.Context, userID string) ([]TimelineEntry, error) {
	usr, err := svc.usrSvc.GetByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "finding user")
	}
	return svc.repo.ListTimeline(ctx, usr.BatchID)
}

func (svc *service) CreateDoc(ctx context.Context, nd NewDoc) (Doc, error) {
	return svc.repo.CreateDoc(ctx, Doc{
		URL:       nd.URL,
		Title:     nd.Title,
		OrderIdx:  nd.OrderIdx,
		CreatedAt: NowFunc().UTC(),
	})
}

func (svc *service) ListDocs(ctx context.Context) ([]Doc, error) {
	return svc.repo.ListDocs(ctx)
}

func (svc *service) CreatePeriod(ctx context.Context, np NewPeriod) (Period, error) {
	return svc.repo.CreatePeriod(ctx, Period{
		BatchID:   np.BatchID,
		Title:     np.Title,
		StartDate: np.StartDate,
		EndDate:   np.EndDate,
		CreatedAt: NowFunc().UTC(),
	})
}

func (svc *service) ListPeriods(ctx context.Context, batchID string) ([]Period, error) {
	return svc.repo.ListPeriods(ctx, core.CleanString(batchID))
}

func (svc *service) GetPeriod(ctx context.Context, id string) (Period, error) {
	return svc.repo.GetPeriod(ctx, id)
}
