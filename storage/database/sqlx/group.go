package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/user"
	"github.com/trezcool/capstone/storage/database"
)

const (
	groupsTable  = "capstone_groups"
	membersTable = "capstone_group_member"
	rulesTable   = "capstone_group_rules"
)

var (
	groupColumns = []string{
		"id", "group_name", "batch_id", "creator_user_ref", "use_case_ref",
		"status", "rejection_reason", "created_at", "updated_at",
	}
	memberColumns = []string{"id", "group_ref", "user_ref", "user_id", "role", "state", "joined_at"}
	ruleColumns   = []string{
		"id", "batch_id", "use_case_ref", "user_attribute", "attribute_value",
		"operator", "value", "is_active", "is_required", "position", "created_at",
	}
)

type groupRow struct {
	ID              string      `db:"id"`
	Name            string      `db:"group_name"`
	BatchID         string      `db:"batch_id"`
	CreatorID       null.String `db:"creator_user_ref"`
	UseCaseID       null.String `db:"use_case_ref"`
	Status          string      `db:"status"`
	RejectionReason null.String `db:"rejection_reason"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r groupRow) group() group.Group {
	return group.Group{
		ID:              r.ID,
		Name:            r.Name,
		BatchID:         r.BatchID,
		CreatorID:       r.CreatorID.String,
		UseCaseID:       r.UseCaseID.String,
		Status:          r.Status,
		RejectionReason: r.RejectionReason.String,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

type summaryRow struct {
	groupRow
	CreatorName string `db:"creator_name"`
	MemberCount int    `db:"member_count"`
}

type memberRow struct {
	ID           string      `db:"id"`
	GroupID      string      `db:"group_ref"`
	UserID       string      `db:"user_ref"`
	SourceID     string      `db:"user_id"`
	Role         string      `db:"role"`
	State        string      `db:"state"`
	JoinedAt     time.Time   `db:"joined_at"`
	Name         string      `db:"name"`
	Email        string      `db:"email"`
	LearningPath null.String `db:"learning_path"`
}

func (r memberRow) member() group.Member {
	return group.Member{
		ID:           r.ID,
		GroupID:      r.GroupID,
		UserID:       r.UserID,
		SourceID:     r.SourceID,
		Role:         r.Role,
		State:        r.State,
		JoinedAt:     r.JoinedAt,
		Name:         r.Name,
		Email:        r.Email,
		LearningPath: r.LearningPath.String,
	}
}

func membersFromRows(rows []memberRow) []group.Member {
	members := make([]group.Member, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.member())
	}
	return members
}

type ruleRow struct {
	ID         string      `db:"id"`
	BatchID    null.String `db:"batch_id"`
	UseCaseID  null.String `db:"use_case_ref"`
	Attribute  string      `db:"user_attribute"`
	Value      string      `db:"attribute_value"`
	Operator   string      `db:"operator"`
	Count      int         `db:"value"`
	IsActive   bool        `db:"is_active"`
	IsRequired bool        `db:"is_required"`
	Position   int         `db:"position"`
	CreatedAt  time.Time   `db:"created_at"`
}

func (r ruleRow) rule() group.Rule {
	return group.Rule{
		ID:         r.ID,
		BatchID:    r.BatchID.String,
		UseCaseID:  r.UseCaseID.String,
		Attribute:  r.Attribute,
		Value:      r.Value,
		Operator:   r.Operator,
		Count:      r.Count,
		IsActive:   r.IsActive,
		IsRequired: r.IsRequired,
		Position:   r.Position,
		CreatedAt:  r.CreatedAt,
	}
}

type groupRepository struct {
	db *sqlx.DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *sqlx.DB) *groupRepository {
	return &groupRepository{db: db}
}

// trapActiveMembershipErr maps a violation of the one-active-membership index to ErrConcurrentAssignment.
func trapActiveMembershipErr(err error, msg string) error {
	if database.IsUniqueViolation(err) {
		return group.ErrConcurrentAssignment
	}
	return errors.Wrap(err, msg)
}

func insertMember(ctx context.Context, exec core.DBExecutor, m group.Member) error {
	b := psql.Insert(membersTable).
		Columns(memberColumns...).
		Values(m.ID, m.GroupID, m.UserID, m.SourceID, m.Role, m.State, m.JoinedAt.UTC())
	_, err := execute(ctx, exec, b)
	return err
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp group.Group, members ...group.Member) (group.Group, []group.Member, error) {
	grp.ID = newID()
	created := make([]group.Member, 0, len(members))

	err := core.RunInTx(ctx, repo.db, func(tx core.DBTransactor) error {
		b := psql.Insert(groupsTable).
			Columns(groupColumns...).
			Values(grp.ID, grp.Name, grp.BatchID, nullString(grp.CreatorID), nullString(grp.UseCaseID),
				grp.Status, nullString(grp.RejectionReason), grp.CreatedAt.UTC(), grp.UpdatedAt.UTC())
		if _, err := execute(ctx, tx, b); err != nil {
			return errors.Wrap(err, "inserting group")
		}

		for _, m := range members {
			m.ID = newID()
			m.GroupID = grp.ID
			if err := insertMember(ctx, tx, m); err != nil {
				return trapActiveMembershipErr(err, "inserting member")
			}
			created = append(created, m)
		}
		return nil
	})
	if err != nil {
		return group.Group{}, nil, err
	}
	return grp, created, nil
}

func (repo *groupRepository) GetGroup(ctx context.Context, id string) (group.Group, error) {
	if !isUUID(id) {
		return group.Group{}, group.ErrNotFound
	}
	var row groupRow
	b := psql.Select(groupColumns...).From(groupsTable).Where(sq.Eq{"id": id})
	if err := get(ctx, repo.db, &row, b); err != nil {
		return group.Group{}, trapNoRowsErr(err, group.ErrNotFound, "finding group")
	}
	return row.group(), nil
}

func (repo *groupRepository) QueryGroups(ctx context.Context, filter group.QueryFilter) ([]group.Summary, error) {
	b := psql.Select(columns("g", groupColumns...)).
		Column("COALESCE(u.name, '') AS creator_name").
		Column("(SELECT COUNT(*) FROM " + membersTable + " m WHERE m.group_ref = g.id AND m.state = 'active') AS member_count").
		From(groupsTable + " g").
		LeftJoin(usersTable + " u ON u.id = g.creator_user_ref")
	if filter.BatchID != "" {
		b = b.Where(sq.Eq{"g.batch_id": filter.BatchID})
	}
	if filter.Status != "" {
		b = b.Where(sq.Eq{"g.status": filter.Status})
	}

	var rows []summaryRow
	if err := selectAll(ctx, repo.db, &rows, b.OrderBy("g.created_at DESC")); err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	summaries := make([]group.Summary, 0, len(rows))
	for _, r := range rows {
		summaries = append(summaries, group.Summary{Group: r.group(), CreatorName: r.CreatorName, MemberCount: r.MemberCount})
	}
	return summaries, nil
}

func updateGroup(ctx context.Context, exec core.DBExecutor, grp group.Group) error {
	b := psql.Update(groupsTable).SetMap(map[string]interface{}{
		"group_name":       grp.Name,
		"batch_id":         grp.BatchID,
		"use_case_ref":     nullString(grp.UseCaseID),
		"status":           grp.Status,
		"rejection_reason": nullString(grp.RejectionReason),
		"updated_at":       grp.UpdatedAt.UTC(),
	}).Where(sq.Eq{"id": grp.ID})

	n, err := execute(ctx, exec, b)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	if n == 0 {
		return group.ErrNotFound
	}
	return nil
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	if err := updateGroup(ctx, repo.db, grp); err != nil {
		return group.Group{}, err
	}
	return grp, nil
}

func (repo *groupRepository) UpdateGroupStatus(ctx context.Context, grp group.Group, deactivate bool) (group.Group, error) {
	err := core.RunInTx(ctx, repo.db, func(tx core.DBTransactor) error {
		if err := updateGroup(ctx, tx, grp); err != nil {
			return err
		}
		if !deactivate {
			return nil
		}
		b := psql.Update(membersTable).
			Set("state", group.StateInactive).
			Where(sq.Eq{"group_ref": grp.ID, "state": group.StateActive})
		_, err := execute(ctx, tx, b)
		return errors.Wrap(err, "deactivating members")
	})
	if err != nil {
		return group.Group{}, err
	}
	return grp, nil
}

func selectMembers() sq.SelectBuilder {
	return psql.Select(columns("m", memberColumns...), "u.name", "u.email", "u.learning_path").
		From(membersTable + " m").
		Join(usersTable + " u ON u.id = m.user_ref").
		Where(sq.Eq{"m.state": group.StateActive})
}

func (repo *groupRepository) ListMembers(ctx context.Context, groupID string) ([]group.Member, error) {
	if !isUUID(groupID) {
		return []group.Member{}, nil
	}
	var rows []memberRow
	b := selectMembers().
		Where(sq.Eq{"m.group_ref": groupID}).
		OrderBy("(m.role = 'leader') DESC", "m.joined_at ASC", "u.name ASC")
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "listing members")
	}
	return membersFromRows(rows), nil
}

func (repo *groupRepository) AddMember(ctx context.Context, m group.Member) (group.Member, error) {
	m.ID = newID()
	if err := insertMember(ctx, repo.db, m); err != nil {
		return group.Member{}, trapActiveMembershipErr(err, "inserting member")
	}
	return m, nil
}

func (repo *groupRepository) DeactivateMember(ctx context.Context, groupID, userID string) error {
	if !isUUID(groupID) || !isUUID(userID) {
		return group.ErrMemberNotFound
	}
	b := psql.Update(membersTable).
		Set("state", group.StateInactive).
		Where(sq.Eq{"group_ref": groupID, "user_ref": userID, "state": group.StateActive})
	n, err := execute(ctx, repo.db, b)
	if err != nil {
		return errors.Wrap(err, "deactivating member")
	}
	if n == 0 {
		return group.ErrMemberNotFound
	}
	return nil
}

func (repo *groupRepository) ActiveMemberships(ctx context.Context, userIDs ...string) ([]group.Member, error) {
	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if isUUID(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []group.Member{}, nil
	}

	var rows []memberRow
	if err := selectAll(ctx, repo.db, &rows, selectMembers().Where(sq.Eq{"m.user_ref": ids})); err != nil {
		return nil, errors.Wrap(err, "finding active memberships")
	}
	return membersFromRows(rows), nil
}

func (repo *groupRepository) ListUnassigned(ctx context.Context, batchID string) ([]user.User, error) {
	b := psql.Select(columns("u", userColumns...)).
		From(usersTable+" u").
		Where(sq.Eq{"u.batch_id": batchID}).
		Where("LOWER(u.role) = ?", user.RoleStudent).
		Where("NOT EXISTS (SELECT 1 FROM "+membersTable+" m WHERE m.user_ref = u.id AND m.state = ?)", group.StateActive).
		OrderBy("u.users_source_id ASC")

	var rows []userRow
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "listing unassigned students")
	}
	return usersFromRows(rows), nil
}

func ruleScope(filter group.RuleFilter) sq.Sqlizer {
	if filter.UseCaseID != "" {
		return sq.Eq{"use_case_ref": filter.UseCaseID}
	}
	return sq.And{sq.Eq{"batch_id": filter.BatchID}, sq.Eq{"use_case_ref": nil}}
}

func (repo *groupRepository) SetRules(ctx context.Context, filter group.RuleFilter, rules []group.Rule) ([]group.Rule, error) {
	if filter.UseCaseID != "" && !isUUID(filter.UseCaseID) {
		return nil, errors.Errorf("invalid use case ID %q", filter.UseCaseID)
	}
	created := make([]group.Rule, 0, len(rules))

	err := core.RunInTx(ctx, repo.db, func(tx core.DBTransactor) error {
		deactivate := psql.Update(rulesTable).
			Set("is_active", false).
			Where(sq.Eq{"is_active": true}).
			Where(ruleScope(filter))
		if _, err := execute(ctx, tx, deactivate); err != nil {
			return errors.Wrap(err, "deactivating rules")
		}

		for _, r := range rules {
			r.ID = newID()
			b := psql.Insert(rulesTable).
				Columns(ruleColumns...).
				Values(r.ID, nullString(r.BatchID), nullString(r.UseCaseID), r.Attribute, r.Value,
					r.Operator, r.Count, r.IsActive, r.IsRequired, r.Position, r.CreatedAt.UTC())
			if _, err := execute(ctx, tx, b); err != nil {
				return errors.Wrap(err, "inserting rule")
			}
			created = append(created, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (repo *groupRepository) ListActiveRules(ctx context.Context, filter group.RuleFilter) ([]group.Rule, error) {
	if filter.UseCaseID != "" && !isUUID(filter.UseCaseID) {
		return []group.Rule{}, nil
	}
	b := psql.Select(ruleColumns...).
		From(rulesTable).
		Where(sq.Eq{"is_active": true}).
		Where(ruleScope(filter)).
		OrderBy("position ASC", "created_at ASC")

	var rows []ruleRow
	if err := selectAll(ctx, repo.db, &rows, b); err != nil {
		return nil, errors.Wrap(err, "listing active rules")
	}
	rules := make([]group.Rule, 0, len(rows))
	for _, r := range rows {
		rules = append(rules, r.rule())
	}
	return rules, nil
}

const groupExportQuery = `
SELECT g.id::text AS group_id,
       g.group_name,
       g.batch_id,
       g.status,
       COALESCE(uc.name, '') AS use_case,
       u.name AS member_name,
       m.user_id AS member_source_id,
       u.email AS member_email,
       COALESCE(u.learning_path, '') AS learning_path,
       COALESCE(u.university, '') AS university,
       m.role
FROM capstone_groups g
JOIN capstone_group_member m ON m.group_ref = g.id AND m.state = 'active'
JOIN users u ON u.id = m.user_ref
LEFT JOIN capstone_use_case uc ON uc.id = g.use_case_ref
WHERE ($1 = '' OR g.batch_id = $1)
ORDER BY g.group_name, (m.role = 'leader') DESC, u.name`

func (repo *groupRepository) ExportRows(ctx context.Context, batchID string) ([]group.ExportRow, error) {
	rows := make([]group.ExportRow, 0)
	if err := queries.Raw(groupExportQuery, batchID).Bind(ctx, repo.db, &rows); err != nil {
		return nil, errors.Wrap(err, "exporting groups")
	}
	return rows, nil
}
