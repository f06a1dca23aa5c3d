package user

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/capstone/core"
)

const (
	sourceIDPrefix   = "FUI"
	sourceIDRetries  = 3
	firstSourceIDNum = 1
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound            = core.NewAppError(core.KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrEmailExists         = core.NewAppError(core.KindConflict, "EMAIL_ALREADY_EXISTS", "a user with this email already exists")
	ErrInvalidCredentials  = core.NewAppError(core.KindUnauthorized, "INVALID_CREDENTIALS", "invalid credentials")
	ErrInvalidLearningPath = core.NewAppError(core.KindInvalid, "INVALID_LEARNING_PATH", "invalid learning path, choose one of: ML, FEBE or REBE")
	ErrLearningPathLocked  = core.NewAppError(core.KindInvalid, "LEARNING_PATH_LOCKED", "the learning path has already been chosen and cannot be changed, contact an admin")
	ErrNoChanges           = core.NewAppError(core.KindInvalid, "NO_CHANGES", "nothing to update")
	ErrBatchNotFound       = core.NewAppError(core.KindNotFound, "USER_BATCH_NOT_FOUND", "the user does not belong to any batch")

	// ErrSourceIDTaken is returned by a Repository when the generated source ID is already in use.
	ErrSourceIDTaken = errors.New("source ID already taken")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error
		// CreateUser stores usr with a new ID. usr.SourceID must be set.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		GetUsersBySourceIDs(ctx context.Context, sourceIDs []string) ([]User, error)
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// LastSourceID returns the greatest source ID with the given prefix ("" if none).
		LastSourceID(ctx context.Context, prefix string) (string, error)
	}

	Service interface {
		CheckEmailUniqueness(email string, excludedIDs ...string) error
		Register(ctx context.Context, nu NewUser) (User, error)
		CreateAdmin(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, email, pwd string) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetBySourceIDs(ctx context.Context, sourceIDs []string) ([]User, error)
		Query(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error)
		SetLearningPath(ctx context.Context, id, path string) (User, error)
		SetPassword(ctx context.Context, email, pwd string) error
		ImportStudents(ctx context.Context, batchID string, rows []StudentRow) (int, error)
	}

	service struct {
		repo Repository
		conf *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, conf *core.Config) Service {
	return &service{repo: repo, conf: conf}
}

func (svc *service) CheckEmailUniqueness(email string, excludedIDs ...string) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, excludedIDs...); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// nextSourceID returns the source ID following `last`: FUI0001, FUI0002, ...
func nextSourceID(last string) string {
	num := firstSourceIDNum
	if strings.HasPrefix(last, sourceIDPrefix) {
		if n, err := strconv.Atoi(strings.TrimPrefix(last, sourceIDPrefix)); err == nil {
			num = n + 1
		}
	}
	return fmt.Sprintf("%s%04d", sourceIDPrefix, num)
}

// defaultBatchID returns the batch new students join when registering without one.
func (svc *service) defaultBatchID() string {
	if NowFunc().Before(svc.conf.Allocation.DefaultBatchCutoff) {
		return svc.conf.Allocation.DefaultBatchID
	}
	return ""
}

func (svc *service) create(ctx context.Context, usr User, pwd string) (User, error) {
	now := NowFunc().UTC()
	usr.CreatedAt = now
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	for attempt := 1; ; attempt++ {
		last, err := svc.repo.LastSourceID(ctx, sourceIDPrefix)
		if err != nil {
			return User{}, errors.Wrap(err, "finding last source ID")
		}
		usr.SourceID = nextSourceID(last)

		created, err := svc.repo.CreateUser(ctx, usr)
		if err == nil {
			return created, nil
		}
		// another registration took the same source ID
		if errors.Cause(err) == ErrSourceIDTaken && attempt < sourceIDRetries {
			continue
		}
		return User{}, errors.Wrap(err, "creating user")
	}
}

func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	batchID := nu.BatchID
	if batchID == "" {
		batchID = svc.defaultBatchID()
	}
	usr := User{
		Name:    nu.Name,
		Email:   nu.Email,
		Role:    RoleStudent,
		BatchID: batchID,
	}
	return svc.create(ctx, usr, nu.Password)
}

func (svc *service) CreateAdmin(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.repo.CheckEmailUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}
	usr := User{
		Name:    nu.Name,
		Email:   nu.Email,
		Role:    RoleAdmin,
		BatchID: nu.BatchID,
	}
	return svc.create(ctx, usr, nu.Password)
}

func (svc *service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// GetBySourceIDs returns the users in the order of sourceIDs. Every ID must resolve.
func (svc *service) GetBySourceIDs(ctx context.Context, sourceIDs []string) ([]User, error) {
	cleaned := make([]string, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		cleaned = append(cleaned, strings.ToUpper(core.CleanString(id)))
	}
	found, err := svc.repo.GetUsersBySourceIDs(ctx, cleaned)
	if err != nil {
		return nil, errors.Wrap(err, "finding users by source IDs")
	}

	bySourceID := make(map[string]User, len(found))
	for _, usr := range found {
		bySourceID[usr.SourceID] = usr
	}
	users := make([]User, 0, len(cleaned))
	var missing []string
	for _, id := range cleaned {
		usr, ok := bySourceID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		users = append(users, usr)
	}
	if len(missing) > 0 {
		return nil, ErrNotFound.WithFields(map[string]interface{}{"missing_ids": missing})
	}
	return users, nil
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter)
}

func (svc *service) UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error) {
	up.Clean()
	if up == (UpdateProfile{}) {
		return User{}, ErrNoChanges
	}

	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	changed := false
	if up.Name != "" && up.Name != usr.Name {
		usr.Name = up.Name
		changed = true
	}
	if up.University != "" && up.University != usr.University {
		usr.University = up.University
		changed = true
	}
	if up.LearningGroup != "" && up.LearningGroup != usr.LearningGroup {
		usr.LearningGroup = up.LearningGroup
		changed = true
	}
	if up.LearningPath != "" {
		if !IsLearningPath(up.LearningPath) {
			return User{}, ErrInvalidLearningPath
		}
		// the learning path is chosen once; re-submitting the same value is allowed
		if usr.LearningPath != "" && usr.LearningPath != up.LearningPath {
			return User{}, ErrLearningPathLocked
		}
		if usr.LearningPath != up.LearningPath {
			usr.LearningPath = up.LearningPath
			changed = true
		}
	}
	if !changed {
		return usr, nil
	}

	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLearningPath(ctx context.Context, id, path string) (User, error) {
	path = core.CleanString(path)
	if !IsLearningPath(path) {
		return User{}, ErrInvalidLearningPath
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.LearningPath = path
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

// ImportStudents registers every row whose email is not taken yet and returns the number of students created.
// Rows without a password get their email as a temporary one.
func (svc *service) ImportStudents(ctx context.Context, batchID string, rows []StudentRow) (int, error) {
	var created int
	for _, row := range rows {
		email := core.CleanString(row.Email, true /* lower */)
		name := core.CleanString(row.Name)
		if email == "" || name == "" {
			continue
		}
		if err := svc.repo.CheckEmailUniqueness(ctx, email); err != nil {
			if errors.Is(err, ErrEmailExists) {
				continue
			}
			return created, errors.Wrap(err, "checking email uniqueness")
		}

		path := NormalizeLearningPath(core.CleanString(row.LearningPath))
		if path != "" && !IsLearningPath(path) {
			return created, ErrInvalidLearningPath.WithMessage(fmt.Sprintf("invalid learning path %q for %s", path, email))
		}
		pwd := row.Password
		if pwd == "" {
			pwd = email
		}

		usr := User{
			Name:         name,
			Email:        email,
			Role:         RoleStudent,
			University:   core.CleanString(row.University),
			LearningPath: path,
			BatchID:      batchID,
		}
		if _, err := svc.create(ctx, usr, pwd); err != nil {
			return created, errors.Wrapf(err, "importing %s", email)
		}
		created++
	}
	return created, nil
}
