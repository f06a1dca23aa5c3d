package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/storage/database"
)

const (
	useCasesTable = "capstone_use_case"
	timelineTable = "capstone_timeline"
	docsTable     = "capstone_docs"
	periodsTable  = "capstone_periods"
)

type timelineRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description null.String `db:"description"`
	StartAt     time.Time   `db:"start_at"`
	EndAt       time.Time   `db:"end_at"`
	BatchID     null.String `db:"batch_id"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (r timelineRow) entry() program.TimelineEntry {
	return program.TimelineEntry{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description.String,
		StartAt:     r.StartAt,
		EndAt:       r.EndAt,
		BatchID:     r.BatchID.String,
		CreatedAt:   r.CreatedAt,
	}
}

type docRow struct {
	ID        string      `db:"id"`
	URL       string      `db:"url"`
	Title     null.String `db:"title"`
	OrderIdx  int         `db:"order_idx"`
	CreatedAt time.Time   `db:"created_at"`
}

type periodRow struct {
	ID        string    `db:"id"`
	BatchID   string    `db:"batch_id"`
	Title     string    `db:"title"`
	StartDate core.Date `db:"start_date"`
	EndDate   core.Date `db:"end_date"`
	CreatedAt time.Time `db:"created_at"`
}

func (r periodRow) period() program.Period {
	return program.Period{
		ID:        r.ID,
		BatchID:   r.BatchID,
		Title:     r.Title,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		CreatedAt: r.CreatedAt,
	}
}

type programRepository struct {
	db *sqlx.DB
}

var _ program.Repository = (*programRepository)(nil) // interface compliance check

func NewProgramRepository(db *sqlx.DB) *programRepository {
	return &programRepository{db: db}
}

func (repo *programRepository) CreateUseCase(ctx context.Context, uc program.UseCase) (program.UseCase, error) {
	uc.ID = newID()
	b := psql.Insert(useCasesTable).
		Columns("id", "capstone_use_case_source_id", "name", "created_at").
		Values(uc.ID, uc.SourceID, uc.Name, uc.CreatedAt.UTC())
	if _, err := execute(ctx, repo.db, b); err != nil {
		if database.IsUniqueViolation(err) {
			return program.UseCase{}, program.ErrUseCaseExists
		}
		return program.UseCase{}, errors.Wrap(err, "inserting use case")
	}
	return uc, nil
}

func (repo *programRepository) ListUseCases(ctx context.Context) ([]program.UseCase, error) {
	var rows []useCaseRow
	b := psql.Select("id", "capstone_use_case_source_id", "name", "created_at").
		From(useCasesTable).
		OrderBy("capstone_use_case_source_id ASC")
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "listing use cases")
	}
	ucs := make([]program.UseCase, 0, len(rows))
	for _, r := range rows {
		ucs = append(ucs, r.useCase())
	}
	return ucs, nil
}

func (repo *programRepository) GetUseCase(ctx context.Context, filter program.UseCaseFilter) (program.UseCase, error) {
	b := psql.Select("id", "capstone_use_case_source_id", "name", "created_at").From(useCasesTable)
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return program.UseCase{}, program.ErrUseCaseNotFound
		}
		b = b.Where(sq.Eq{"id": filter.ID})
	case filter.SourceID != "":
		b = b.Where(sq.Eq{"capstone_use_case_source_id": filter.SourceID})
	default:
		return program.UseCase{}, program.ErrUseCaseNotFound
	}

	var row useCaseRow
	if err := get(ctx, repo.db, &row, b.Limit(1)); err != nil {
		return program.UseCase{}, trapNoRowsErr(err, program.ErrUseCaseNotFound, "finding use case")
	}
	return row.useCase(), nil
}

func (repo *programRepository) CreateTimelineEntry(ctx context.Context, entry program.TimelineEntry) (program.TimelineEntry, error) {
	entry.ID = newID()
	b := psql.Insert(timelineTable).
		Columns("id", "title", "description", "start_at", "end_at", "batch_id", "created_at").
		Values(entry.ID, entry.Title, nullString(entry.Description), entry.StartAt.UTC(), entry.EndAt.UTC(),
			nullString(entry.BatchID), entry.CreatedAt.UTC())
	if _, err := execute(ctx, repo.db, b); err != nil {
		return program.TimelineEntry{}, errors.Wrap(err, "inserting timeline entry")
	}
	return entry, nil
}

func (repo *programRepository) ListTimeline(ctx context.Context, batchID string) ([]program.TimelineEntry, error) {
	b := psql.Select("id", "title", "description", "start_at", "end_at", "batch_id", "created_at").From(timelineTable)
	if batchID != "" {
		b = b.Where(sq.Eq{"batch_id": batchID})
	}

	var rows []timelineRow
	if err := selectAll(ctx, repo.db, &rows, b.OrderBy("created_at DESC")); err != nil {
		return nil, errors.Wrap(err, "listing timeline")
	}
	entries := make([]program.TimelineEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

func (repo *programRepository) CreateDoc(ctx context.Context, doc program.Doc) (program.Doc, error) {
	doc.ID = newID()
	b := psql.Insert(docsTable).
		Columns("id", "url", "title", "order_idx", "created_at").
		Values(doc.ID, doc.URL, nullString(doc.Title), doc.OrderIdx, doc.CreatedAt.UTC())
	if _, err := execute(ctx, repo.db, b); err != nil {
		return program.Doc{}, errors.Wrap(err, "inserting doc")
	}
	return doc, nil
}

func (repo *programRepository) ListDocs(ctx context.Context) ([]program.Doc, error) {
	var rows []docRow
	b := psql.Select("id", "url", "title", "order_idx", "created_at").From(docsTable).OrderBy("order_idx ASC", "created_at ASC")
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "listing docs")
	}
	docs := make([]program.Doc, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, program.Doc{ID: r.ID, URL: r.URL, Title: r.Title.String, OrderIdx: r.OrderIdx, CreatedAt: r.CreatedAt})
	}
	return docs, nil
}

func (repo *programRepository) CreatePeriod(ctx context.Context, period program.Period) (program.Period, error) {
	period.ID = newID()
	b := psql.Insert(periodsTable).
		Columns("id", "batch_id", "title", "start_date", "end_date", "created_at").
		Values(period.ID, period.BatchID, period.Title, period.StartDate, period.EndDate, period.CreatedAt.UTC())
	if _, err := execute(ctx, repo.db, b); err != nil {
		return program.Period{}, errors.Wrap(err, "inserting period")
	}
	return period, nil
}

func (repo *programRepository) ListPeriods(ctx context.Context, batchID string) ([]program.Period, error) {
	b := psql.Select("id", "batch_id", "title", "start_date", "end_date", "created_at").From(periodsTable)
	if batchID != "" {
		b = b.Where(sq.Eq{"batch_id": batchID})
	}

	var rows []periodRow
	if err := selectAll(ctx, repo.db, &rows, b.OrderBy("start_date ASC")); err != nil {
		return nil, errors.Wrap(err, "listing periods")
	}
	periods := make([]program.Period, 0, len(rows))
	for _, r := range rows {
		periods = append(periods, r.period())
	}
	return periods, nil
}

func (repo *programRepository) GetPeriod(ctx context.Context, id string) (program.Period, error) {
	if !isUUID(id) {
		return program.Period{}, program.ErrPeriodNotFound
	}
	var row periodRow
	b := psql.Select("id", "batch_id", "title", "start_date", "end_date", "created_at").
		From(periodsTable).
		Where(sq.Eq{"id": id})
	if err := get(ctx, repo.db, &row, b); err != nil {
		return program.Period{}, trapNoRowsErr(err, program.ErrPeriodNotFound, "finding period")
	}
	return row.period(), nil
}

type useCaseRow struct {
	ID        string    `db:"id"`
	SourceID  string    `db:"capstone_use_case_source_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

func (r useCaseRow) useCase() program.UseCase {
	return program.UseCase{ID: r.ID, SourceID: r.SourceID, Name: r.Name, CreatedAt: r.CreatedAt}
}
