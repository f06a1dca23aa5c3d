package worksheet

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound      = core.NewAppError(core.KindNotFound, "WORKSHEET_NOT_FOUND", "worksheet not found")
	ErrInvalidStatus = core.NewAppError(core.KindInvalid, "INVALID_STATUS", "invalid status, use one of: completed, completed_late or missed")
	ErrInvalidPeriod = core.NewAppError(core.KindInvalid, "VALIDATION_FAILED", "invalid worksheet period")
)

type (
	Repository interface {
		CreateWorksheet(ctx context.Context, ws Worksheet) (Worksheet, error)
		GetWorksheet(ctx context.Context, id string) (Worksheet, error)
		// ListWorksheets returns the worksheets matching filter, newest first.
		ListWorksheets(ctx context.Context, filter QueryFilter) ([]Row, error)
		UpdateWorksheet(ctx context.Context, ws Worksheet) (Worksheet, error)
		// SubmittedUserIDs returns the IDs of the users who submitted a worksheet for exactly these period dates.
		SubmittedUserIDs(ctx context.Context, start, end core.Date) ([]string, error)
	}

	Service interface {
		Submit(ctx context.Context, userID string, nw NewWorksheet) (Worksheet, error)
		ListMine(ctx context.Context, userID string) ([]Worksheet, error)
		List(ctx context.Context, filter QueryFilter) ([]Row, error)
		Validate(ctx context.Context, id string, r Review) (Worksheet, error)
		SendReminder(ctx context.Context, periodID string) (ReminderResult, error)
	}

	service struct {
		repo    Repository
		usrSvc  user.Service
		grpSvc  group.Service
		progSvc program.Service
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	usrSvc user.Service,
	grpSvc group.Service,
	progSvc program.Service,
	mailSvc core.EmailService,
) Service {
	return &service{repo: repo, usrSvc: usrSvc, grpSvc: grpSvc, progSvc: progSvc, mailSvc: mailSvc}
}

// Submit records a check-in for the user's team. It is late when submitted after the last instant of PeriodEnd (UTC).
func (svc *service) Submit(ctx context.Context, userID string, nw NewWorksheet) (Worksheet, error) {
	usr, err := svc.usrSvc.GetByID(ctx, userID)
	if err != nil {
		return Worksheet{}, err
	}
	m, err := svc.grpSvc.ActiveMembership(ctx, usr.ID)
	if err != nil {
		return Worksheet{}, err
	}

	now := NowFunc().UTC()
	status := StatusSubmitted
	if now.After(nw.PeriodEnd.EndOfDay()) {
		status = StatusSubmittedLate
	}
	return svc.repo.CreateWorksheet(ctx, Worksheet{
		UserID:              usr.ID,
		GroupID:             m.GroupID,
		BatchID:             usr.BatchID,
		ActivityDescription: nw.ActivityDescription,
		ProofURL:            nw.ProofURL,
		PeriodStart:         nw.PeriodStart,
		PeriodEnd:           nw.PeriodEnd,
		Status:              status,
		SubmittedAt:         now,
		CreatedAt:           now,
	})
}

func (svc *service) ListMine(ctx context.Context, userID string) ([]Worksheet, error) {
	rows, err := svc.repo.ListWorksheets(ctx, QueryFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	worksheets := make([]Worksheet, 0, len(rows))
	for _, r := range rows {
		worksheets = append(worksheets, r.Worksheet)
	}
	return worksheets, nil
}

func (svc *service) List(ctx context.Context, filter QueryFilter) ([]Row, error) {
	filter.BatchID = core.CleanString(filter.BatchID)
	filter.Status = core.CleanString(filter.Status, true /* lower */)
	filter.UserID = core.CleanString(filter.UserID)
	return svc.repo.ListWorksheets(ctx, filter)
}

func (svc *service) Validate(ctx context.Context, id string, r Review) (Worksheet, error) {
	if !IsReviewStatus(r.Status) {
		return Worksheet{}, ErrInvalidStatus
	}
	ws, err := svc.repo.GetWorksheet(ctx, id)
	if err != nil {
		return Worksheet{}, err
	}
	ws.Status = r.Status
	ws.Feedback = r.Feedback
	return svc.repo.UpdateWorksheet(ctx, ws)
}

type reminderMailData struct {
	PeriodTitle string
	Deadline    string
}

// SendReminder emails the students of the period's batch who have not submitted a worksheet for it.
func (svc *service) SendReminder(ctx context.Context, periodID string) (ReminderResult, error) {
	period, err := svc.progSvc.GetPeriod(ctx, periodID)
	if err != nil {
		return ReminderResult{}, err
	}
	students, err := svc.usrSvc.Query(ctx, user.QueryFilter{BatchID: period.BatchID, Role: user.RoleStudent})
	if err != nil {
		return ReminderResult{}, errors.Wrap(err, "listing students")
	}
	submitted, err := svc.repo.SubmittedUserIDs(ctx, period.StartDate, period.EndDate)
	if err != nil {
		return ReminderResult{}, errors.Wrap(err, "listing submissions")
	}

	done := make(map[string]bool, len(submitted))
	for _, id := range submitted {
		done[id] = true
	}
	var msgs []*core.EmailMessage
	for _, s := range students {
		if done[s.ID] || s.Email == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:           []mail.Address{{Name: s.Name, Address: s.Email}},
			Subject:      "Worksheet reminder: " + period.Title,
			TemplateName: "worksheet_reminder",
			TemplateData: reminderMailData{PeriodTitle: period.Title, Deadline: period.EndDate.String()},
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
	return ReminderResult{PeriodTitle: period.Title, RemindedCount: len(msgs)}, nil
}
