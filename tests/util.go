package testutil

import (
	"context"
	"fmt"
	"io/ioutil"
	"log"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/core/user"
	logsvc "github.com/trezcool/capstone/services/logger"
)

// DefaultPassword is the password of the users created by the fixtures.
const DefaultPassword = "Blue!Harbor-42"

// NewLogger returns a logger that discards its output and never reports to Rollbar.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "TEST : ", 0), conf)
	logger.Enable(false)
	return logger
}

// NewValidator returns a validator with every custom tag and translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	group.InitValidators(validate, translator)
	return validate, translator
}

func nextSourceID(t *testing.T, repo user.Repository) string {
	last, err := repo.LastSourceID(context.Background(), "FUI")
	if err != nil {
		t.Fatalf("nextSourceID() failed: %v", err)
	}
	num := 1
	if n, err := strconv.Atoi(strings.TrimPrefix(last, "FUI")); err == nil {
		num = n + 1
	}
	return fmt.Sprintf("FUI%04d", num)
}

func createUser(t *testing.T, repo user.Repository, usr user.User) user.User {
	now := time.Now().UTC()
	usr.SourceID = nextSourceID(t, repo)
	usr.CreatedAt = now
	usr.UpdatedAt = now

	// MinCost keeps the fixtures fast
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	usr.PasswordHash = hash

	usr, err = repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateStudent creates a student of batchID. An empty path leaves the learning path unchosen.
func CreateStudent(t *testing.T, repo user.Repository, name, email, path, batchID string) user.User {
	return createUser(t, repo, user.User{
		Name:         name,
		Email:        email,
		Role:         user.RoleStudent,
		University:   "Universitas Indonesia",
		LearningPath: path,
		BatchID:      batchID,
	})
}

func CreateAdmin(t *testing.T, repo user.Repository, name, email string) user.User {
	return createUser(t, repo, user.User{Name: name, Email: email, Role: user.RoleAdmin})
}

// CreateRoster creates n students of the same learning path named "<prefix> <i>".
func CreateRoster(t *testing.T, repo user.Repository, prefix, path, batchID string, n int) []user.User {
	users := make([]user.User, 0, n)
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("%s %d", prefix, i)
		email := fmt.Sprintf("%s%d@test.id", strings.ToLower(strings.ReplaceAll(prefix, " ", "")), i)
		users = append(users, CreateStudent(t, repo, name, email, path, batchID))
	}
	return users
}

func CreateUseCase(t *testing.T, repo program.Repository, sourceID, name string) program.UseCase {
	uc, err := repo.CreateUseCase(context.Background(), program.UseCase{
		SourceID:  sourceID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateUseCase() failed: %v", err)
	}
	return uc
}

// CreateGroup stores a group of the given status. The first member is its leader.
func CreateGroup(
	t *testing.T,
	repo group.Repository,
	name, batchID, status, useCaseID string,
	members ...user.User,
) (group.Group, []group.Member) {
	now := time.Now().UTC()
	grp := group.Group{
		Name:      name,
		BatchID:   batchID,
		UseCaseID: useCaseID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ms := make([]group.Member, 0, len(members))
	for i, usr := range members {
		role := group.RoleMember
		if i == 0 {
			role = group.RoleLeader
		}
		ms = append(ms, group.Member{
			UserID:       usr.ID,
			SourceID:     usr.SourceID,
			Role:         role,
			State:        group.StateActive,
			JoinedAt:     now,
			Name:         usr.Name,
			Email:        usr.Email,
			LearningPath: usr.LearningPath,
		})
	}
	grp, created, err := repo.CreateGroup(context.Background(), grp, ms...)
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	return grp, created
}

// LearningPathRule returns an active learning path rule.
func LearningPathRule(path, op string, count int) group.Rule {
	return group.Rule{
		Attribute:  group.AttrLearningPath,
		Value:      path,
		Operator:   op,
		Count:      count,
		IsActive:   true,
		IsRequired: true,
	}
}

// SetRules replaces the active rules of a batch, or of a use case when useCaseID is set.
func SetRules(t *testing.T, repo group.Repository, batchID, useCaseID string, rules ...group.Rule) []group.Rule {
	now := time.Now().UTC()
	for i := range rules {
		rules[i].BatchID = batchID
		rules[i].UseCaseID = useCaseID
		rules[i].Position = i
		rules[i].CreatedAt = now
	}
	created, err := repo.SetRules(context.Background(), group.RuleFilter{BatchID: batchID, UseCaseID: useCaseID}, rules)
	if err != nil {
		t.Fatalf("SetRules() failed: %v", err)
	}
	return created
}
