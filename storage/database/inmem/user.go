package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/capstone/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) query(match func(usr *user.User) bool) []user.User {
	users := make([]user.User, 0)
	for _, u := range repo.db.users {
		if match == nil || match(u) {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].SourceID < users[j].SourceID })
	return users
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs ...string) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Email == email && !isExcluded(usr.ID, excludedIDs) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, u := range repo.db.users {
		if u.SourceID == usr.SourceID {
			return user.User{}, user.ErrSourceIDTaken
		}
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	usr.ID = newID()
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var match func(usr *user.User) bool
	switch {
	case filter.ID != "":
		match = func(usr *user.User) bool { return usr.ID == filter.ID }
	case filter.Email != "":
		match = func(usr *user.User) bool { return usr.Email == filter.Email }
	case filter.SourceID != "":
		match = func(usr *user.User) bool { return usr.SourceID == filter.SourceID }
	default:
		return user.User{}, user.ErrNotFound
	}
	if users := repo.query(match); len(users) > 0 {
		return users[0], nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUsersBySourceIDs(_ context.Context, sourceIDs []string) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		wanted[id] = true
	}
	return repo.query(func(usr *user.User) bool { return wanted[usr.SourceID] }), nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	return repo.query(func(usr *user.User) bool {
		if filter.BatchID != "" && usr.BatchID != filter.BatchID {
			return false
		}
		if filter.Role != "" && !strings.EqualFold(usr.Role, filter.Role) {
			return false
		}
		if len(filter.Emails) > 0 && !contains(filter.Emails, usr.Email) {
			return false
		}
		return true
	}), nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	for _, u := range repo.db.users {
		if u.ID != usr.ID && u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	// the source ID and creation date never change
	usr.SourceID = orig.SourceID
	usr.CreatedAt = orig.CreatedAt
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) LastSourceID(_ context.Context, prefix string) (string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var last string
	for _, usr := range repo.db.users {
		if strings.HasPrefix(usr.SourceID, prefix) && usr.SourceID > last {
			last = usr.SourceID
		}
	}
	return last, nil
}

func isExcluded(id string, excludedIDs []string) bool {
	return contains(excludedIDs, id)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
