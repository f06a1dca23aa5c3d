package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/capstone/core/deliverable"
)

const deliverablesTable = "capstone_group_deliverables"

var deliverableColumns = []string{
	"id", "group_ref", "use_case_ref", "submitted_by", "document_type",
	"file_path", "description", "status", "submitted_at", "updated_at",
}

type deliverableRow struct {
	ID           string      `db:"id"`
	GroupID      string      `db:"group_ref"`
	UseCaseID    null.String `db:"use_case_ref"`
	SubmittedBy  null.String `db:"submitted_by"`
	DocumentType string      `db:"document_type"`
	FilePath     string      `db:"file_path"`
	Description  null.String `db:"description"`
	Status       string      `db:"status"`
	SubmittedAt  time.Time   `db:"submitted_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
	GroupName    string      `db:"group_name"`
	UseCaseName  string      `db:"use_case_name"`
}

type deliverableRepository struct {
	db *sqlx.DB
}

var _ deliverable.Repository = (*deliverableRepository)(nil) // interface compliance check

func NewDeliverableRepository(db *sqlx.DB) *deliverableRepository {
	return &deliverableRepository{db: db}
}

func (repo *deliverableRepository) CreateDeliverable(ctx context.Context, d deliverable.Deliverable) (deliverable.Deliverable, error) {
	d.ID = newID()
	b := psql.Insert(deliverablesTable).
		Columns(deliverableColumns...).
		Values(d.ID, d.GroupID, nullString(d.UseCaseID), nullString(d.SubmittedBy), d.DocumentType,
			d.FilePath, nullString(d.Description), d.Status, d.SubmittedAt.UTC(), d.UpdatedAt.UTC())
	if _, err := execute(ctx, repo.db, b); err != nil {
		return deliverable.Deliverable{}, errors.Wrap(err, "inserting deliverable")
	}
	return d, nil
}

func (repo *deliverableRepository) ListDeliverables(ctx context.Context, filter deliverable.QueryFilter) ([]deliverable.Row, error) {
	b := psql.Select(columns("d", deliverableColumns...)).
		Column("g.group_name").
		Column("COALESCE(uc.name, '') AS use_case_name").
		From(deliverablesTable + " d").
		Join(groupsTable + " g ON g.id = d.group_ref").
		LeftJoin(useCasesTable + " uc ON uc.id = d.use_case_ref")
	if filter.DocumentType != "" {
		b = b.Where(sq.Eq{"d.document_type": filter.DocumentType})
	}
	if filter.UseCaseID != "" {
		if !isUUID(filter.UseCaseID) {
			return []deliverable.Row{}, nil
		}
		b = b.Where(sq.Eq{"d.use_case_ref": filter.UseCaseID})
	}

	var rows []deliverableRow
	if err := selectAll(ctx, repo.db, &rows, b.OrderBy("d.submitted_at DESC")); err != nil {
		return nil, errors.Wrap(err, "listing deliverables")
	}
	list := make([]deliverable.Row, 0, len(rows))
	for _, r := range rows {
		list = append(list, deliverable.Row{
			Deliverable: deliverable.Deliverable{
				ID:           r.ID,
				GroupID:      r.GroupID,
				UseCaseID:    r.UseCaseID.String,
				SubmittedBy:  r.SubmittedBy.String,
				DocumentType: r.DocumentType,
				FilePath:     r.FilePath,
				Description:  r.Description.String,
				Status:       r.Status,
				SubmittedAt:  r.SubmittedAt,
				UpdatedAt:    r.UpdatedAt,
			},
			GroupName:   r.GroupName,
			UseCaseName: r.UseCaseName,
		})
	}
	return list, nil
}
