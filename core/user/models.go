package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/capstone/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Learning paths
const (
	PathML   = "Machine Learning (ML)"
	PathFEBE = "Front-End Web & Back-End with AI (FEBE)"
	PathREBE = "React & Back-End with AI (REBE)"
)

var LearningPaths = []string{PathML, PathFEBE, PathREBE}

// NormalizeLearningPath maps a short code ("ml", "FEBE", ...) to its learning path. Other values are returned unchanged.
func NormalizeLearningPath(path string) string {
	switch strings.ToUpper(strings.TrimSpace(path)) {
	case "ML":
		return PathML
	case "FEBE":
		return PathFEBE
	case "REBE":
		return PathREBE
	}
	return path
}

func IsLearningPath(path string) bool {
	for _, p := range LearningPaths {
		if p == path {
			return true
		}
	}
	return false
}

type User struct {
	ID            string    `json:"id"`
	SourceID      string    `json:"users_source_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Role          string    `json:"role"`
	University    string    `json:"university"`
	LearningGroup string    `json:"learning_group"`
	LearningPath  string    `json:"learning_path"` // empty: not chosen yet
	BatchID       string    `json:"batch_id"`
	PasswordHash  []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// IsStudent matches the role case-insensitively; older rows hold "Student".
func (u *User) IsStudent() bool {
	return strings.EqualFold(u.Role, RoleStudent)
}

func (u *User) IsAdmin() bool {
	return strings.EqualFold(u.Role, RoleAdmin)
}

// HasCompleteProfile reports whether the user can register a team.
func (u *User) HasCompleteProfile() bool {
	return u.LearningPath != "" && u.University != ""
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	BatchID  string `json:"batch_id"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.BatchID = core.CleanString(nu.BatchID)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(nu.Email)
}

// UpdateProfile defines what information a user may provide to modify their profile.
// Empty fields are left untouched.
type UpdateProfile struct {
	Name          string `json:"name"`
	University    string `json:"university"`
	LearningGroup string `json:"learning_group"`
	LearningPath  string `json:"learning_path"`
}

func (up *UpdateProfile) Clean() {
	up.Name = core.CleanString(up.Name)
	up.University = core.CleanString(up.University)
	up.LearningGroup = core.CleanString(up.LearningGroup)
	up.LearningPath = NormalizeLearningPath(core.CleanString(up.LearningPath))
}

// GetFilter selects a single User. The first non-empty field is used.
type GetFilter struct {
	ID       string
	Email    string
	SourceID string
}

type QueryFilter struct {
	BatchID string
	Role    string // case-insensitive
	Emails  []string
}

// StudentRow is one line of a roster import.
type StudentRow struct {
	Name         string
	Email        string
	University   string
	LearningPath string
	Password     string
}
