package group

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/core/user"
)

// Member roles
const (
	RoleLeader = "leader"
	RoleMember = "member"
)

// Membership states
const (
	StateActive   = "active"
	StateInactive = "inactive"
)

type Group struct {
	ID              string    `json:"id"`
	Name            string    `json:"group_name"`
	BatchID         string    `json:"batch_id"`
	CreatorID       string    `json:"creator_user_ref,omitempty"`
	UseCaseID       string    `json:"use_case_ref,omitempty"`
	Status          string    `json:"status"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Member is a membership row. Name, Email and LearningPath are read from the user.
type Member struct {
	ID           string    `json:"id"`
	GroupID      string    `json:"group_ref"`
	UserID       string    `json:"user_ref"`
	SourceID     string    `json:"user_id"`
	Role         string    `json:"role"`
	State        string    `json:"state"`
	JoinedAt     time.Time `json:"joined_at"`
	Name         string    `json:"name,omitempty"`
	Email        string    `json:"email,omitempty"`
	LearningPath string    `json:"learning_path,omitempty"`
}

func (m Member) IsActive() bool {
	return m.State == StateActive
}

func (m Member) IsLeader() bool {
	return m.Role == RoleLeader
}

func newMember(usr user.User, role string, joinedAt time.Time) Member {
	return Member{
		UserID:       usr.ID,
		SourceID:     usr.SourceID,
		Role:         role,
		State:        StateActive,
		JoinedAt:     joinedAt,
		Name:         usr.Name,
		Email:        usr.Email,
		LearningPath: usr.LearningPath,
	}
}

// Detail is a group with its use case and active members.
type Detail struct {
	Group
	CreatorName string           `json:"creator_name,omitempty"`
	UseCase     *program.UseCase `json:"use_case"`
	Members     []Member         `json:"members"`
}

// Summary is a group as listed to admins.
type Summary struct {
	Group
	CreatorName string `json:"creator_name"`
	MemberCount int    `json:"member_count"`
}

// NewGroup is an admin created team.
type NewGroup struct {
	Name      string `json:"group_name" validate:"required,notblank,max=100"`
	BatchID   string `json:"batch_id" validate:"required,notblank"`
	LeaderID  string `json:"leader_id" validate:"omitempty,uuid"`
	UseCaseID string `json:"use_case_id" validate:"omitempty,uuid"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.SanitizeText(ng.Name)
	ng.BatchID = core.CleanString(ng.BatchID)
	ng.LeaderID = core.CleanString(ng.LeaderID)
	ng.UseCaseID = core.CleanString(ng.UseCaseID)
	return validate.Struct(ng)
}

// UpdateGroup changes the non-nil fields only.
type UpdateGroup struct {
	Name    *string `json:"group_name" validate:"omitempty,notblank,max=100"`
	BatchID *string `json:"batch_id" validate:"omitempty,notblank"`
	Status  *string `json:"status" validate:"omitempty,groupstatus"`
}

func (ug *UpdateGroup) Validate(validate *validator.Validate) error {
	if ug.Name != nil {
		name := core.SanitizeText(*ug.Name)
		ug.Name = &name
	}
	if ug.BatchID != nil {
		batch := core.CleanString(*ug.BatchID)
		ug.BatchID = &batch
	}
	if ug.Status != nil {
		status := core.CleanString(*ug.Status, true /* lower */)
		ug.Status = &status
	}
	return validate.Struct(ug)
}

// RegisterTeam is a student submitted team.
type RegisterTeam struct {
	Name            string   `json:"group_name" validate:"required,notblank,max=100"`
	UseCaseSourceID string   `json:"use_case_source_id" validate:"required,notblank"`
	MemberSourceIDs []string `json:"member_source_ids" validate:"required,min=1,dive,required"`
}

func (rt *RegisterTeam) Validate(validate *validator.Validate) error {
	rt.Name = core.SanitizeText(rt.Name)
	rt.UseCaseSourceID = core.CleanString(rt.UseCaseSourceID)
	for i, id := range rt.MemberSourceIDs {
		rt.MemberSourceIDs[i] = core.CleanString(id)
	}
	return validate.Struct(rt)
}

// Validation is an admin decision on a pending registration.
type Validation struct {
	Status          string `json:"status" validate:"required,oneof=accepted rejected"`
	RejectionReason string `json:"rejection_reason" validate:"max=500"`
}

func (v *Validation) Validate(validate *validator.Validate) error {
	v.Status = core.CleanString(v.Status, true /* lower */)
	v.RejectionReason = core.SanitizeText(v.RejectionReason)
	return validate.Struct(v)
}

type QueryFilter struct {
	BatchID string
	Status  string
}

// ExportRow is one member line of the groups export.
type ExportRow struct {
	GroupID      string `json:"group_id" boil:"group_id"`
	GroupName    string `json:"group_name" boil:"group_name"`
	BatchID      string `json:"batch_id" boil:"batch_id"`
	Status       string `json:"status" boil:"status"`
	UseCase      string `json:"use_case" boil:"use_case"`
	MemberName   string `json:"member_name" boil:"member_name"`
	MemberID     string `json:"member_source_id" boil:"member_source_id"`
	MemberEmail  string `json:"member_email" boil:"member_email"`
	LearningPath string `json:"learning_path" boil:"learning_path"`
	University   string `json:"university" boil:"university"`
	Role         string `json:"role" boil:"role"`
}

// ExportHeader is the column header of the groups spreadsheet.
var ExportHeader = []string{
	"Group ID", "Group Name", "Batch", "Status", "Use Case",
	"Member Name", "Member ID", "Email", "Learning Path", "University", "Role",
}

func (r ExportRow) Values() []interface{} {
	return []interface{}{
		r.GroupID, r.GroupName, r.BatchID, r.Status, r.UseCase,
		r.MemberName, r.MemberID, r.MemberEmail, r.LearningPath, r.University, r.Role,
	}
}
