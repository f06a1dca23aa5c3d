package feedback

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrSelfReview       = core.NewAppError(core.KindInvalid, "SELF_REVIEW", "you cannot review yourself")
	ErrDifferentTeam    = core.NewAppError(core.KindForbidden, "DIFFERENT_TEAM", "you can only review members of your own team")
	ErrAlreadySubmitted = core.NewAppError(core.KindConflict, "ALREADY_SUBMITTED", "you already reviewed this member")
)

type (
	Repository interface {
		// CreateFeedback returns ErrAlreadySubmitted when the reviewer already reviewed the reviewee.
		CreateFeedback(ctx context.Context, fb Feedback) (Feedback, error)
		// ListGiven returns the feedback written by a reviewer.
		ListGiven(ctx context.Context, reviewerID string) ([]Feedback, error)
		// ExportRows returns the feedback matching filter, newest first.
		ExportRows(ctx context.Context, filter ExportFilter) ([]ExportRow, error)
	}

	Service interface {
		Submit(ctx context.Context, reviewerID string, nf NewFeedback) (Feedback, error)
		Status(ctx context.Context, userID string) ([]TeammateStatus, error)
		Export(ctx context.Context, filter ExportFilter) ([]ExportRow, error)
	}

	service struct {
		repo   Repository
		usrSvc user.Service
		grpSvc group.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, grpSvc group.Service) Service {
	return &service{repo: repo, usrSvc: usrSvc, grpSvc: grpSvc}
}

func (svc *service) reviewee(ctx context.Context, nf NewFeedback) (user.User, error) {
	if nf.RevieweeID != "" {
		return svc.usrSvc.GetByID(ctx, nf.RevieweeID)
	}
	users, err := svc.usrSvc.GetBySourceIDs(ctx, []string{nf.RevieweeSourceID})
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return users[0], nil
}

// Submit records the reviewer's feedback on an active member of the same team. Each pair is reviewed once.
func (svc *service) Submit(ctx context.Context, reviewerID string, nf NewFeedback) (Feedback, error) {
	reviewee, err := svc.reviewee(ctx, nf)
	if err != nil {
		return Feedback{}, err
	}
	if reviewee.ID == reviewerID {
		return Feedback{}, ErrSelfReview
	}

	mine, err := svc.grpSvc.ActiveMembership(ctx, reviewerID)
	if err != nil {
		return Feedback{}, err
	}
	theirs, err := svc.grpSvc.ActiveMembership(ctx, reviewee.ID)
	if err != nil {
		if errors.Is(err, group.ErrNoTeam) {
			return Feedback{}, ErrDifferentTeam
		}
		return Feedback{}, err
	}
	if mine.GroupID != theirs.GroupID {
		return Feedback{}, ErrDifferentTeam
	}

	fb, err := svc.repo.CreateFeedback(ctx, Feedback{
		ReviewerID:        reviewerID,
		RevieweeID:        reviewee.ID,
		GroupID:           mine.GroupID,
		BatchID:           reviewee.BatchID,
		IsMemberActive:    *nf.IsMemberActive,
		ContributionLevel: nf.ContributionLevel,
		Reason:            nf.Reason,
		CreatedAt:         NowFunc().UTC(),
	})
	if err != nil {
		return Feedback{}, err
	}
	fb.SubmittedFor = reviewee.Name
	return fb, nil
}

// Status lists the active teammates of the user and whether they were reviewed.
// A user without a team gets an empty list.
func (svc *service) Status(ctx context.Context, userID string) ([]TeammateStatus, error) {
	statuses := make([]TeammateStatus, 0)
	usr, err := svc.usrSvc.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	mine, err := svc.grpSvc.ActiveMembership(ctx, usr.ID)
	if err != nil {
		if errors.Is(err, group.ErrNoTeam) {
			return statuses, nil
		}
		return nil, err
	}
	members, err := svc.grpSvc.ActiveMembers(ctx, mine.GroupID)
	if err != nil {
		return nil, errors.Wrap(err, "listing members")
	}
	given, err := svc.repo.ListGiven(ctx, usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "listing given feedback")
	}

	byReviewee := make(map[string]Feedback, len(given))
	for _, fb := range given {
		byReviewee[fb.RevieweeID] = fb
	}
	for _, m := range members {
		if m.UserID == usr.ID {
			continue
		}
		st := TeammateStatus{
			RevieweeID:       m.UserID,
			RevieweeSourceID: m.SourceID,
			Name:             m.Name,
			GroupID:          mine.GroupID,
			BatchID:          usr.BatchID,
			Status:           StatusPending,
		}
		if fb, ok := byReviewee[m.UserID]; ok {
			st.Status = StatusCompleted
			st.Feedback = &Given{
				ContributionLevel: fb.ContributionLevel,
				Reason:            fb.Reason,
				IsMemberActive:    fb.IsMemberActive,
				SubmittedAt:       fb.CreatedAt,
			}
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func (svc *service) Export(ctx context.Context, filter ExportFilter) ([]ExportRow, error) {
	filter.BatchID = core.CleanString(filter.BatchID)
	filter.GroupID = core.CleanString(filter.GroupID)
	return svc.repo.ExportRows(ctx, filter)
}
