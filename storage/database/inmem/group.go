package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/user"
)

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *DB) *groupRepository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) CreateGroup(_ context.Context, grp group.Group, members ...group.Member) (group.Group, []group.Member, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if _, ok := repo.db.activeMembership(m.UserID); ok || seen[m.UserID] {
			return group.Group{}, nil, group.ErrConcurrentAssignment
		}
		seen[m.UserID] = true
	}

	grp.ID = newID()
	repo.db.groups[grp.ID] = &grp

	created := make([]group.Member, 0, len(members))
	for _, m := range members {
		m.ID = newID()
		m.GroupID = grp.ID
		stored := m
		repo.db.members[m.ID] = &stored
		created = append(created, m)
	}
	return grp, created, nil
}

func (repo *groupRepository) GetGroup(_ context.Context, id string) (group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if grp, ok := repo.db.groups[id]; ok {
		return *grp, nil
	}
	return group.Group{}, group.ErrNotFound
}

func (repo *groupRepository) countActive(groupID string) int {
	var n int
	for _, m := range repo.db.members {
		if m.GroupID == groupID && m.IsActive() {
			n++
		}
	}
	return n
}

func (repo *groupRepository) QueryGroups(_ context.Context, filter group.QueryFilter) ([]group.Summary, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	summaries := make([]group.Summary, 0)
	for _, grp := range repo.db.groups {
		if filter.BatchID != "" && grp.BatchID != filter.BatchID {
			continue
		}
		if filter.Status != "" && grp.Status != filter.Status {
			continue
		}
		s := group.Summary{Group: *grp, MemberCount: repo.countActive(grp.ID)}
		if creator, ok := repo.db.users[grp.CreatorID]; ok {
			s.CreatorName = creator.Name
		}
		summaries = append(summaries, s)
	}
	sort.SliceStable(summaries, func(i, j int) bool { return summaries[i].CreatedAt.After(summaries[j].CreatedAt) })
	return summaries, nil
}

func (repo *groupRepository) UpdateGroup(_ context.Context, grp group.Group) (group.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return repo.update(grp)
}

func (repo *groupRepository) update(grp group.Group) (group.Group, error) {
	orig, ok := repo.db.groups[grp.ID]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	grp.CreatorID = orig.CreatorID
	grp.CreatedAt = orig.CreatedAt
	repo.db.groups[grp.ID] = &grp
	return grp, nil
}

func (repo *groupRepository) UpdateGroupStatus(_ context.Context, grp group.Group, deactivate bool) (group.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	grp, err := repo.update(grp)
	if err != nil {
		return group.Group{}, err
	}
	if deactivate {
		for _, m := range repo.db.members {
			if m.GroupID == grp.ID && m.IsActive() {
				m.State = group.StateInactive
			}
		}
	}
	return grp, nil
}

func (repo *groupRepository) ListMembers(_ context.Context, groupID string) ([]group.Member, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	members := make([]group.Member, 0)
	for _, m := range repo.db.members {
		if m.GroupID == groupID && m.IsActive() {
			members = append(members, repo.db.withUser(*m))
		}
	}
	sortMembers(members)
	return members, nil
}

func sortMembers(members []group.Member) {
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].IsLeader() != members[j].IsLeader() {
			return members[i].IsLeader()
		}
		if !members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].JoinedAt.Before(members[j].JoinedAt)
		}
		return members[i].Name < members[j].Name
	})
}

func (repo *groupRepository) AddMember(_ context.Context, m group.Member) (group.Member, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.activeMembership(m.UserID); ok {
		return group.Member{}, group.ErrConcurrentAssignment
	}
	m.ID = newID()
	stored := m
	repo.db.members[m.ID] = &stored
	return m, nil
}

func (repo *groupRepository) DeactivateMember(_ context.Context, groupID, userID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, m := range repo.db.members {
		if m.GroupID == groupID && m.UserID == userID && m.IsActive() {
			m.State = group.StateInactive
			return nil
		}
	}
	return group.ErrMemberNotFound
}

func (repo *groupRepository) ActiveMemberships(_ context.Context, userIDs ...string) ([]group.Member, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	members := make([]group.Member, 0)
	for _, id := range userIDs {
		if m, ok := repo.db.activeMembership(id); ok {
			members = append(members, repo.db.withUser(*m))
		}
	}
	return members, nil
}

func (repo *groupRepository) ListUnassigned(_ context.Context, batchID string) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0)
	for _, usr := range repo.db.users {
		if usr.BatchID != batchID || !strings.EqualFold(usr.Role, user.RoleStudent) {
			continue
		}
		if _, ok := repo.db.activeMembership(usr.ID); ok {
			continue
		}
		users = append(users, *usr)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].SourceID < users[j].SourceID })
	return users, nil
}

func matchesRule(r *group.Rule, filter group.RuleFilter) bool {
	if filter.UseCaseID != "" {
		return r.UseCaseID == filter.UseCaseID
	}
	return r.UseCaseID == "" && r.BatchID == filter.BatchID
}

func (repo *groupRepository) SetRules(_ context.Context, filter group.RuleFilter, rules []group.Rule) ([]group.Rule, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, r := range repo.db.rules {
		if r.IsActive && matchesRule(r, filter) {
			r.IsActive = false
		}
	}
	created := make([]group.Rule, 0, len(rules))
	for _, r := range rules {
		r.ID = newID()
		stored := r
		repo.db.rules[r.ID] = &stored
		created = append(created, r)
	}
	return created, nil
}

func (repo *groupRepository) ListActiveRules(_ context.Context, filter group.RuleFilter) ([]group.Rule, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	rules := make([]group.Rule, 0)
	for _, r := range repo.db.rules {
		if r.IsActive && matchesRule(r, filter) {
			rules = append(rules, *r)
		}
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Position != rules[j].Position {
			return rules[i].Position < rules[j].Position
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
	return rules, nil
}

func (repo *groupRepository) ExportRows(_ context.Context, batchID string) ([]group.ExportRow, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	type entry struct {
		row    group.ExportRow
		leader bool
	}
	entries := make([]entry, 0)
	for _, m := range repo.db.members {
		grp, ok := repo.db.groups[m.GroupID]
		if !ok || !m.IsActive() || (batchID != "" && grp.BatchID != batchID) {
			continue
		}
		row := group.ExportRow{
			GroupID:   grp.ID,
			GroupName: grp.Name,
			BatchID:   grp.BatchID,
			Status:    grp.Status,
			MemberID:  m.SourceID,
			Role:      m.Role,
		}
		if uc, ok := repo.db.useCases[grp.UseCaseID]; ok {
			row.UseCase = uc.Name
		}
		if usr, ok := repo.db.users[m.UserID]; ok {
			row.MemberName = usr.Name
			row.MemberEmail = usr.Email
			row.LearningPath = usr.LearningPath
			row.University = usr.University
		}
		entries = append(entries, entry{row: row, leader: m.IsLeader()})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.row.GroupName != b.row.GroupName {
			return a.row.GroupName < b.row.GroupName
		}
		if a.leader != b.leader {
			return a.leader
		}
		return a.row.MemberName < b.row.MemberName
	})

	rows := make([]group.ExportRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, e.row)
	}
	return rows, nil
}
