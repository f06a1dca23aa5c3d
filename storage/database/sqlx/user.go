package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/capstone/core/user"
	"github.com/trezcool/capstone/storage/database"
)

const usersTable = "users"

var userColumns = []string{
	"id", "users_source_id", "email", "password", "name", "role",
	"university", "learning_group", "learning_path", "batch_id", "created_at", "updated_at",
}

type userRow struct {
	ID            string      `db:"id"`
	SourceID      string      `db:"users_source_id"`
	Email         string      `db:"email"`
	Password      []byte      `db:"password"`
	Name          string      `db:"name"`
	Role          string      `db:"role"`
	University    null.String `db:"university"`
	LearningGroup null.String `db:"learning_group"`
	LearningPath  null.String `db:"learning_path"`
	BatchID       null.String `db:"batch_id"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:            usr.ID,
		SourceID:      usr.SourceID,
		Email:         usr.Email,
		Password:      usr.PasswordHash,
		Name:          usr.Name,
		Role:          usr.Role,
		University:    nullString(usr.University),
		LearningGroup: nullString(usr.LearningGroup),
		LearningPath:  nullString(usr.LearningPath),
		BatchID:       nullString(usr.BatchID),
		CreatedAt:     usr.CreatedAt.UTC(),
		UpdatedAt:     usr.UpdatedAt.UTC(),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:            r.ID,
		SourceID:      r.SourceID,
		Name:          r.Name,
		Email:         r.Email,
		Role:          r.Role,
		University:    r.University.String,
		LearningGroup: r.LearningGroup.String,
		LearningPath:  r.LearningPath.String,
		BatchID:       r.BatchID.String,
		PasswordHash:  r.Password,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func usersFromRows(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	b := psql.Select("COUNT(*)").From(usersTable).Where(sq.Eq{"email": email})
	if len(excludedIDs) > 0 {
		b = b.Where(sq.NotEq{"id": excludedIDs})
	}
	var count int
	if err := get(ctx, repo.db, &count, b); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = newID()
	row := toUserRow(usr)
	b := psql.Insert(usersTable).SetMap(map[string]interface{}{
		"id":              row.ID,
		"users_source_id": row.SourceID,
		"email":           row.Email,
		"password":        row.Password,
		"name":            row.Name,
		"role":            row.Role,
		"university":      row.University,
		"learning_group":  row.LearningGroup,
		"learning_path":   row.LearningPath,
		"batch_id":        row.BatchID,
		"created_at":      row.CreatedAt,
		"updated_at":      row.UpdatedAt,
	})
	if _, err := execute(ctx, repo.db, b); err != nil {
		if database.IsUniqueViolation(err) {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && strings.Contains(pqErr.Constraint, "source_id") {
				return user.User{}, user.ErrSourceIDTaken
			}
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	b := psql.Select(userColumns...).From(usersTable)
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		b = b.Where(sq.Eq{"id": filter.ID})
	case filter.Email != "":
		b = b.Where(sq.Eq{"email": filter.Email})
	case filter.SourceID != "":
		b = b.Where(sq.Eq{"users_source_id": filter.SourceID})
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := get(ctx, repo.db, &row, b.Limit(1)); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.user(), nil
}

func (repo *userRepository) GetUsersBySourceIDs(ctx context.Context, sourceIDs []string) ([]user.User, error) {
	if len(sourceIDs) == 0 {
		return []user.User{}, nil
	}
	var rows []userRow
	b := psql.Select(userColumns...).From(usersTable).Where(sq.Eq{"users_source_id": sourceIDs})
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "finding users by source IDs")
	}
	return usersFromRows(rows), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	b := psql.Select(userColumns...).From(usersTable)
	if filter.BatchID != "" {
		b = b.Where(sq.Eq{"batch_id": filter.BatchID})
	}
	if filter.Role != "" {
		b = b.Where("LOWER(role) = LOWER(?)", filter.Role)
	}
	if len(filter.Emails) > 0 {
		b = b.Where(sq.Eq{"email": filter.Emails})
	}

	var rows []userRow
	if err := selectAll(ctx, repo.db, &rows, b.OrderBy("users_source_id ASC")); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return usersFromRows(rows), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	row := toUserRow(usr)
	b := psql.Update(usersTable).SetMap(map[string]interface{}{
		"email":          row.Email,
		"password":       row.Password,
		"name":           row.Name,
		"role":           row.Role,
		"university":     row.University,
		"learning_group": row.LearningGroup,
		"learning_path":  row.LearningPath,
		"batch_id":       row.BatchID,
		"updated_at":     row.UpdatedAt,
	}).Where(sq.Eq{"id": row.ID})

	n, err := execute(ctx, repo.db, b)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return row.user(), nil
}

func (repo *userRepository) LastSourceID(ctx context.Context, prefix string) (string, error) {
	var last string
	b := psql.Select("COALESCE(MAX(users_source_id), '')").From(usersTable).Where(sq.Like{"users_source_id": prefix + "%"})
	if err := get(ctx, repo.db, &last, b); err != nil {
		return "", errors.Wrap(err, "finding last source ID")
	}
	return last, nil
}
