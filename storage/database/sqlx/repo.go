package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/capstone/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func get(ctx context.Context, exec core.DBExecutor, dest interface{}, b sq.Sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return exec.GetContext(ctx, dest, q, args...)
}

func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, b sq.Sqlizer) error {
	q, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return exec.SelectContext(ctx, dest, q, args...)
}

func execute(ctx context.Context, exec core.DBExecutor, b sq.Sqlizer) (int64, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := exec.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func newID() string {
	return uuid.New().String()
}

// isUUID guards uuid columns against malformed IDs, which postgres would reject with an error.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

func columns(prefix string, cols ...string) string {
	if prefix == "" {
		return strings.Join(cols, ", ")
	}
	prefixed := make([]string, 0, len(cols))
	for _, c := range cols {
		prefixed = append(prefixed, prefix+"."+c)
	}
	return strings.Join(prefixed, ", ")
}

// Repositories holds one repository per domain, all backed by db.
type Repositories struct {
	User        *userRepository
	Program     *programRepository
	Group       *groupRepository
	Worksheet   *worksheetRepository
	Deliverable *deliverableRepository
	Feedback    *feedbackRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Program:     NewProgramRepository(db),
		Group:       NewGroupRepository(db),
		Worksheet:   NewWorksheetRepository(db),
		Deliverable: NewDeliverableRepository(db),
		Feedback:    NewFeedbackRepository(db),
	}
}
