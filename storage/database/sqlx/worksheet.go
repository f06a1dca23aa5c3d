package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/worksheet"
)

const worksheetsTable = "capstone_worksheets"

var worksheetColumns = []string{
	"id", "user_ref", "group_ref", "batch_id", "activity_description", "proof_url",
	"period_start", "period_end", "status", "feedback", "submitted_at", "created_at",
}

type worksheetRow struct {
	ID                  string      `db:"id"`
	UserID              string      `db:"user_ref"`
	GroupID             string      `db:"group_ref"`
	BatchID             null.String `db:"batch_id"`
	ActivityDescription string      `db:"activity_description"`
	ProofURL            null.String `db:"proof_url"`
	PeriodStart         core.Date   `db:"period_start"`
	PeriodEnd           core.Date   `db:"period_end"`
	Status              string      `db:"status"`
	Feedback            null.String `db:"feedback"`
	SubmittedAt         time.Time   `db:"submitted_at"`
	CreatedAt           time.Time   `db:"created_at"`
}

func (r worksheetRow) worksheet() worksheet.Worksheet {
	return worksheet.Worksheet{
		ID:                  r.ID,
		UserID:              r.UserID,
		GroupID:             r.GroupID,
		BatchID:             r.BatchID.String,
		ActivityDescription: r.ActivityDescription,
		ProofURL:            r.ProofURL.String,
		PeriodStart:         r.PeriodStart,
		PeriodEnd:           r.PeriodEnd,
		Status:              r.Status,
		Feedback:            r.Feedback.String,
		SubmittedAt:         r.SubmittedAt,
		CreatedAt:           r.CreatedAt,
	}
}

type worksheetListRow struct {
	worksheetRow
	UserName  string `db:"user_name"`
	UserEmail string `db:"user_email"`
	GroupName string `db:"group_name"`
}

type worksheetRepository struct {
	db *sqlx.DB
}

var _ worksheet.Repository = (*worksheetRepository)(nil) // interface compliance check

func NewWorksheetRepository(db *sqlx.DB) *worksheetRepository {
	return &worksheetRepository{db: db}
}

func (repo *worksheetRepository) CreateWorksheet(ctx context.Context, ws worksheet.Worksheet) (worksheet.Worksheet, error) {
	ws.ID = newID()
	b := psql.Insert(worksheetsTable).
		Columns(worksheetColumns...).
		Values(ws.ID, ws.UserID, ws.GroupID, nullString(ws.BatchID), ws.ActivityDescription, nullString(ws.ProofURL),
			ws.PeriodStart, ws.PeriodEnd, ws.Status, nullString(ws.Feedback), ws.SubmittedAt.UTC(), ws.CreatedAt.UTC())
	if _, err := execute(ctx, repo.db, b); err != nil {
		return worksheet.Worksheet{}, errors.Wrap(err, "inserting worksheet")
	}
	return ws, nil
}

func (repo *worksheetRepository) GetWorksheet(ctx context.Context, id string) (worksheet.Worksheet, error) {
	if !isUUID(id) {
		return worksheet.Worksheet{}, worksheet.ErrNotFound
	}
	var row worksheetRow
	b := psql.Select(worksheetColumns...).From(worksheetsTable).Where(sq.Eq{"id": id})
	if err := get(ctx, repo.db, &row, b); err != nil {
		return worksheet.Worksheet{}, trapNoRowsErr(err, worksheet.ErrNotFound, "finding worksheet")
	}
	return row.worksheet(), nil
}

func (repo *worksheetRepository) ListWorksheets(ctx context.Context, filter worksheet.QueryFilter) ([]worksheet.Row, error) {
	b := psql.Select(columns("w", worksheetColumns...)).
		Column("u.name AS user_name").
		Column("u.email AS user_email").
		Column("COALESCE(g.group_name, '') AS group_name").
		From(worksheetsTable + " w").
		Join(usersTable + " u ON u.id = w.user_ref").
		LeftJoin(groupsTable + " g ON g.id = w.group_ref")
	if filter.BatchID != "" {
		b = b.Where(sq.Eq{"w.batch_id": filter.BatchID})
	}
	if filter.Status != "" {
		b = b.Where(sq.Eq{"w.status": filter.Status})
	}
	if filter.UserID != "" {
		if !isUUID(filter.UserID) {
			return []worksheet.Row{}, nil
		}
		b = b.Where(sq.Eq{"w.user_ref": filter.UserID})
	}

	var rows []worksheetListRow
	if err := selectAll(ctx, repo.db, &rows, b.OrderBy("w.submitted_at DESC")); err != nil {
		return nil, errors.Wrap(err, "listing worksheets")
	}
	list := make([]worksheet.Row, 0, len(rows))
	for _, r := range rows {
		list = append(list, worksheet.Row{
			Worksheet: r.worksheet(),
			UserName:  r.UserName,
			UserEmail: r.UserEmail,
			GroupName: r.GroupName,
		})
	}
	return list, nil
}

func (repo *worksheetRepository) UpdateWorksheet(ctx context.Context, ws worksheet.Worksheet) (worksheet.Worksheet, error) {
	b := psql.Update(worksheetsTable).
		Set("status", ws.Status).
		Set("feedback", nullString(ws.Feedback)).
		Where(sq.Eq{"id": ws.ID})
	n, err := execute(ctx, repo.db, b)
	if err != nil {
		return worksheet.Worksheet{}, errors.Wrap(err, "updating worksheet")
	}
	if n == 0 {
		return worksheet.Worksheet{}, worksheet.ErrNotFound
	}
	return ws, nil
}

func (repo *worksheetRepository) SubmittedUserIDs(ctx context.Context, start, end core.Date) ([]string, error) {
	var ids []string
	b := psql.Select("DISTINCT user_ref").
		From(worksheetsTable).
		Where(sq.Eq{"period_start": start, "period_end": end})
	if err := selectAll(ctx, repo.db, &ids, b); err != nil {
		return nil, errors.Wrap(err, "finding submitted users")
	}
	return ids, nil
}
