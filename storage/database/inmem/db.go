package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/capstone/core/deliverable"
	"github.com/trezcool/capstone/core/feedback"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/core/user"
	"github.com/trezcool/capstone/core/worksheet"
)

// DB is an in-memory store shared by the repositories of this package.
// One lock guards every table so cross-table invariants hold.
type DB struct {
	mutex sync.RWMutex

	users        map[string]*user.User
	useCases     map[string]*program.UseCase
	timeline     map[string]*program.TimelineEntry
	docs         map[string]*program.Doc
	periods      map[string]*program.Period
	groups       map[string]*group.Group
	members      map[string]*group.Member
	rules        map[string]*group.Rule
	worksheets   map[string]*worksheet.Worksheet
	deliverables map[string]*deliverable.Deliverable
	feedback     map[string]*feedback.Feedback
}

func NewDB() *DB {
	return &DB{
		users:        make(map[string]*user.User),
		useCases:     make(map[string]*program.UseCase),
		timeline:     make(map[string]*program.TimelineEntry),
		docs:         make(map[string]*program.Doc),
		periods:      make(map[string]*program.Period),
		groups:       make(map[string]*group.Group),
		members:      make(map[string]*group.Member),
		rules:        make(map[string]*group.Rule),
		worksheets:   make(map[string]*worksheet.Worksheet),
		deliverables: make(map[string]*deliverable.Deliverable),
		feedback:     make(map[string]*feedback.Feedback),
	}
}

func newID() string {
	return uuid.New().String()
}

// activeMembership returns the active membership of a user. Callers hold the lock.
func (db *DB) activeMembership(userID string) (*group.Member, bool) {
	for _, m := range db.members {
		if m.UserID == userID && m.IsActive() {
			return m, true
		}
	}
	return nil, false
}

// withUser fills the user read fields of a membership. Callers hold the lock.
func (db *DB) withUser(m group.Member) group.Member {
	if usr, ok := db.users[m.UserID]; ok {
		m.Name = usr.Name
		m.Email = usr.Email
		m.LearningPath = usr.LearningPath
	}
	return m
}
