package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/capstone/core/feedback"
	"github.com/trezcool/capstone/storage/database"
)

const feedbackTable = "capstone_360_feedback"

var feedbackColumns = []string{
	"id", "reviewer_user_ref", "reviewee_user_ref", "group_ref", "batch_id",
	"is_member_active", "contribution_level", "reason", "created_at",
}

type feedbackRow struct {
	ID                string      `db:"id"`
	ReviewerID        string      `db:"reviewer_user_ref"`
	RevieweeID        string      `db:"reviewee_user_ref"`
	GroupID           string      `db:"group_ref"`
	BatchID           null.String `db:"batch_id"`
	IsMemberActive    bool        `db:"is_member_active"`
	ContributionLevel string      `db:"contribution_level"`
	Reason            null.String `db:"reason"`
	CreatedAt         time.Time   `db:"created_at"`
	SubmittedFor      string      `db:"submitted_for"`
	GroupName         string      `db:"group_name"`
}

type feedbackRepository struct {
	db *sqlx.DB
}

var _ feedback.Repository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(db *sqlx.DB) *feedbackRepository {
	return &feedbackRepository{db: db}
}

func (repo *feedbackRepository) CreateFeedback(ctx context.Context, fb feedback.Feedback) (feedback.Feedback, error) {
	fb.ID = newID()
	b := psql.Insert(feedbackTable).
		Columns(feedbackColumns...).
		Values(fb.ID, fb.ReviewerID, fb.RevieweeID, fb.GroupID, nullString(fb.BatchID),
			fb.IsMemberActive, fb.ContributionLevel, nullString(fb.Reason), fb.CreatedAt.UTC())
	if _, err := execute(ctx, repo.db, b); err != nil {
		if database.IsUniqueViolation(err) {
			return feedback.Feedback{}, feedback.ErrAlreadySubmitted
		}
		return feedback.Feedback{}, errors.Wrap(err, "inserting feedback")
	}
	return fb, nil
}

func (repo *feedbackRepository) ListGiven(ctx context.Context, reviewerID string) ([]feedback.Feedback, error) {
	if !isUUID(reviewerID) {
		return []feedback.Feedback{}, nil
	}
	b := psql.Select(columns("f", feedbackColumns...)).
		Column("u.name AS submitted_for").
		Column("COALESCE(g.group_name, '') AS group_name").
		From(feedbackTable + " f").
		Join(usersTable + " u ON u.id = f.reviewee_user_ref").
		LeftJoin(groupsTable + " g ON g.id = f.group_ref").
		Where(sq.Eq{"f.reviewer_user_ref": reviewerID}).
		OrderBy("f.created_at DESC")

	var rows []feedbackRow
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "listing given feedback")
	}
	list := make([]feedback.Feedback, 0, len(rows))
	for _, r := range rows {
		list = append(list, feedback.Feedback{
			ID:                r.ID,
			ReviewerID:        r.ReviewerID,
			RevieweeID:        r.RevieweeID,
			GroupID:           r.GroupID,
			BatchID:           r.BatchID.String,
			IsMemberActive:    r.IsMemberActive,
			ContributionLevel: r.ContributionLevel,
			Reason:            r.Reason.String,
			CreatedAt:         r.CreatedAt,
			SubmittedFor:      r.SubmittedFor,
			GroupName:         r.GroupName,
		})
	}
	return list, nil
}

const feedbackExportQuery = `
SELECT f.id::text AS id,
       f.created_at,
       COALESCE(f.batch_id, '') AS batch_id,
       COALESCE(g.group_name, '') AS group_name,
       rv.name AS reviewer_name,
       rv.email AS reviewer_email,
       rv.users_source_id AS reviewer_source_id,
       re.name AS reviewee_name,
       re.email AS reviewee_email,
       re.users_source_id AS reviewee_source_id,
       f.is_member_active,
       f.contribution_level,
       COALESCE(f.reason, '') AS reason
FROM capstone_360_feedback f
JOIN users rv ON rv.id = f.reviewer_user_ref
JOIN users re ON re.id = f.reviewee_user_ref
LEFT JOIN capstone_groups g ON g.id = f.group_ref
WHERE ($1 = '' OR f.batch_id = $1)
  AND ($2 = '' OR f.group_ref::text = $2)
ORDER BY f.created_at DESC`

func (repo *feedbackRepository) ExportRows(ctx context.Context, filter feedback.ExportFilter) ([]feedback.ExportRow, error) {
	rows := make([]feedback.ExportRow, 0)
	if err := queries.Raw(feedbackExportQuery, filter.BatchID, filter.GroupID).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "exporting feedback")
	}
	return rows, nil
}
