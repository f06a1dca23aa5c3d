package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/capstone/core/feedback"
)

type feedbackRepository struct {
	db *DB
}

var _ feedback.Repository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(db *DB) *feedbackRepository {
	return &feedbackRepository{db: db}
}

func (repo *feedbackRepository) CreateFeedback(_ context.Context, fb feedback.Feedback) (feedback.Feedback, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.feedback {
		if existing.ReviewerID == fb.ReviewerID && existing.RevieweeID == fb.RevieweeID {
			return feedback.Feedback{}, feedback.ErrAlreadySubmitted
		}
	}
	fb.ID = newID()
	stored := fb
	repo.db.feedback[fb.ID] = &stored
	return fb, nil
}

func (repo *feedbackRepository) ListGiven(_ context.Context, reviewerID string) ([]feedback.Feedback, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	list := make([]feedback.Feedback, 0)
	for _, fb := range repo.db.feedback {
		if fb.ReviewerID != reviewerID {
			continue
		}
		f := *fb
		if usr, ok := repo.db.users[fb.RevieweeID]; ok {
			f.SubmittedFor = usr.Name
		}
		if grp, ok := repo.db.groups[fb.GroupID]; ok {
			f.GroupName = grp.Name
		}
		list = append(list, f)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (repo *feedbackRepository) ExportRows(_ context.Context, filter feedback.ExportFilter) ([]feedback.ExportRow, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rows := make([]feedback.ExportRow, 0)
	for _, fb := range repo.db.feedback {
		if filter.BatchID != "" && fb.BatchID != filter.BatchID {
			continue
		}
		if filter.GroupID != "" && fb.GroupID != filter.GroupID {
			continue
		}
		row := feedback.ExportRow{
			ID:                fb.ID,
			CreatedAt:         fb.CreatedAt,
			BatchID:           fb.BatchID,
			IsMemberActive:    fb.IsMemberActive,
			ContributionLevel: fb.ContributionLevel,
			Reason:            fb.Reason,
		}
		if grp, ok := repo.db.groups[fb.GroupID]; ok {
			row.GroupName = grp.Name
		}
		if rv, ok := repo.db.users[fb.ReviewerID]; ok {
			row.ReviewerName, row.ReviewerEmail, row.ReviewerSourceID = rv.Name, rv.Email, rv.SourceID
		}
		if re, ok := repo.db.users[fb.RevieweeID]; ok {
			row.RevieweeName, row.RevieweeEmail, row.RevieweeSourceID = re.Name, re.Email, re.SourceID
		}
		rows = append(rows, row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, nil
}
