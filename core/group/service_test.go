package group_test

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/core/user"
	emailsvc "github.com/trezcool/capstone/services/email"
	locksvc "github.com/trezcool/capstone/services/lock"
	inmemdb "github.com/trezcool/capstone/storage/database/inmem"
	testutil "github.com/trezcool/capstone/tests"
)

const batch = "asah-batch-1"

type fixture struct {
	usrRepo  user.Repository
	progRepo program.Repository
	grpRepo  group.Repository
	mailSvc  *emailsvc.ConsoleServiceMock
	svc      group.Service
}

func setup(t *testing.T, wrap ...func(group.Repository) group.Repository) fixture {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger(conf)
	core.ParseEmailTemplates(conf, logger)

	db := inmemdb.NewDB()
	f := fixture{
		usrRepo:  inmemdb.NewUserRepository(db),
		progRepo: inmemdb.NewProgramRepository(db),
		grpRepo:  inmemdb.NewGroupRepository(db),
		mailSvc:  emailsvc.NewConsoleServiceMock(conf, logger),
	}
	repo := f.grpRepo
	for _, w := range wrap {
		repo = w(repo)
	}

	usrSvc := user.NewService(f.usrRepo, conf)
	progSvc := program.NewService(f.progRepo, usrSvc)
	f.svc = group.NewService(repo, usrSvc, progSvc, locksvc.NewLocalLocker(), f.mailSvc, logger, conf)

	group.NewRandSource = func() group.RandSource { return rand.New(rand.NewSource(42)) }
	t.Cleanup(func() {
		group.NewRandSource = func() group.RandSource { return rand.New(rand.NewSource(group.NowFunc().UnixNano())) }
	})
	return f
}

func (f fixture) activeMemberships(t *testing.T, users []user.User) map[string]int {
	counts := make(map[string]int)
	for _, usr := range users {
		active, err := f.grpRepo.ActiveMemberships(context.Background(), usr.ID)
		if err != nil {
			t.Fatalf("ActiveMemberships() failed: %v", err)
		}
		counts[usr.ID] = len(active)
	}
	return counts
}

// sevenStudents creates 3 ML, 2 FEBE and 2 REBE students.
func sevenStudents(t *testing.T, repo user.Repository) []user.User {
	var users []user.User
	users = append(users, testutil.CreateRoster(t, repo, "ML", user.PathML, batch, 3)...)
	users = append(users, testutil.CreateRoster(t, repo, "FEBE", user.PathFEBE, batch, 2)...)
	users = append(users, testutil.CreateRoster(t, repo, "REBE", user.PathREBE, batch, 2)...)
	return users
}

func TestService_AutoAssign_emptyRoster(t *testing.T) {
	f := setup(t)
	admin := testutil.CreateAdmin(t, f.usrRepo, "Admin", "admin@test.id")

	report, err := f.svc.AutoAssign(context.Background(), batch, admin.ID, 3)
	if err != nil {
		t.Fatalf("AutoAssign() failed: %v", err)
	}
	assert.Equal(t, 0, report.AssignedCount)
	assert.Equal(t, 0, report.GroupsCreated)
	assert.Empty(t, report.Details)
	assert.NotNil(t, report.Details)

	groups, err := f.svc.List(context.Background(), group.QueryFilter{BatchID: batch})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	assert.Empty(t, groups)
}

func TestService_AutoAssign_batchRequired(t *testing.T) {
	f := setup(t)
	_, err := f.svc.AutoAssign(context.Background(), "  ", "", 3)
	assert.True(t, errors.Is(err, group.ErrBatchRequired))
}

func TestService_AutoAssign(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	admin := testutil.CreateAdmin(t, f.usrRepo, "Admin", "admin@test.id")
	students := sevenStudents(t, f.usrRepo)
	other := testutil.CreateStudent(t, f.usrRepo, "Other Batch", "other@test.id", user.PathML, "asah-batch-2")
	testutil.CreateUseCase(t, f.progRepo, "UC-01", "Smart Farming")
	testutil.SetRules(t, f.grpRepo, batch, "",
		testutil.LearningPathRule(user.PathML, group.OpGTE, 1),
		testutil.LearningPathRule(user.PathFEBE, group.OpGTE, 1),
		testutil.LearningPathRule(user.PathREBE, group.OpGTE, 1),
	)

	report, err := f.svc.AutoAssign(ctx, batch, admin.ID, 3)
	if err != nil {
		t.Fatalf("AutoAssign() failed: %v", err)
	}

	assert.Equal(t, 7, report.AssignedCount)
	assert.Equal(t, 3, report.GroupsCreated)
	assert.Equal(t, 0, report.LeftOver)
	assert.Len(t, report.Details, 7)
	require.Len(t, report.Groups, 3)
	for _, g := range report.Groups {
		assert.Equal(t, "Smart Farming", g.UseCase)
		assert.NotEmpty(t, g.Notes)
	}

	// every student of the batch holds exactly one active membership
	for id, n := range f.activeMemberships(t, students) {
		assert.Equal(t, 1, n, "memberships of %s", id)
	}
	assert.Equal(t, 0, f.activeMemberships(t, []user.User{other})[other.ID])

	groups, err := f.svc.List(ctx, group.QueryFilter{BatchID: batch})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	sizes := make([]int, 0, len(groups))
	for _, g := range groups {
		assert.Equal(t, group.StatusDraft, g.Status)
		assert.Equal(t, "Admin", g.CreatorName)
		sizes = append(sizes, g.MemberCount)

		dtl, err := f.svc.Get(ctx, g.ID)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		var leaders int
		for _, m := range dtl.Members {
			if m.IsLeader() {
				leaders++
			}
		}
		assert.Equal(t, 1, leaders)
		assert.True(t, dtl.Members[0].IsLeader())
	}
	assert.ElementsMatch(t, []int{3, 3, 1}, sizes)
	assert.Len(t, f.mailSvc.Messages(), 7)

	// nobody is left: a second run is a no-op
	report, err = f.svc.AutoAssign(ctx, batch, admin.ID, 3)
	if err != nil {
		t.Fatalf("AutoAssign() failed: %v", err)
	}
	assert.Equal(t, 0, report.AssignedCount)
}

func TestService_AutoAssign_concurrentRuns(t *testing.T) {
	f := setup(t)
	students := sevenStudents(t, f.usrRepo)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		total   int
		created int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := f.svc.AutoAssign(context.Background(), batch, "", 3)
			if err != nil {
				t.Errorf("AutoAssign() failed: %v", err)
				return
			}
			mu.Lock()
			total += report.AssignedCount
			created += report.GroupsCreated
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 7, total)
	assert.Equal(t, 3, created)
	for id, n := range f.activeMemberships(t, students) {
		assert.Equal(t, 1, n, "memberships of %s", id)
	}
}

// staleRoster serves a roster read before some students were placed elsewhere.
type staleRoster struct {
	group.Repository
	roster []user.User
}

func (r staleRoster) ListUnassigned(context.Context, string) ([]user.User, error) {
	return r.roster, nil
}

func TestService_AutoAssign_staleRoster(t *testing.T) {
	var stale *staleRoster
	f := setup(t, func(repo group.Repository) group.Repository {
		stale = &staleRoster{Repository: repo}
		return stale
	})
	students := testutil.CreateRoster(t, f.usrRepo, "ML", user.PathML, batch, 4)
	stale.roster = students

	// another run placed the last student after the roster was read
	testutil.CreateGroup(t, f.grpRepo, "Manual", batch, group.StatusDraft, "", students[3])

	_, err := f.svc.AutoAssign(context.Background(), batch, "", 3)
	if err == nil {
		t.Fatal("AutoAssign() failed: want error, got nil")
	}
	assert.True(t, errors.Is(err, group.ErrConcurrentAssignment), "got %v", err)

	var pfe *group.PartialFailureError
	require.True(t, errors.As(err, &pfe))
	assert.Equal(t, pfe.Report.GroupsCreated, pfe.GroupsCreated)
	assert.Equal(t, 4, pfe.Report.AssignedCount+pfe.Report.LeftOver)

	for id, n := range f.activeMemberships(t, students) {
		assert.LessOrEqual(t, n, 1, "memberships of %s", id)
	}
}

func TestService_RegisterTeam(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	leader := testutil.CreateStudent(t, f.usrRepo, "Lead ML", "lead@test.id", user.PathML, batch)
	febe := testutil.CreateStudent(t, f.usrRepo, "Mate FEBE", "febe@test.id", user.PathFEBE, batch)
	rebe := testutil.CreateStudent(t, f.usrRepo, "Mate REBE", "rebe@test.id", user.PathREBE, batch)
	ml2 := testutil.CreateStudent(t, f.usrRepo, "Mate ML", "ml2@test.id", user.PathML, batch)
	incomplete := testutil.CreateStudent(t, f.usrRepo, "No Path", "nopath@test.id", "", batch)
	taken := testutil.CreateStudent(t, f.usrRepo, "Taken", "taken@test.id", user.PathFEBE, batch)
	testutil.CreateGroup(t, f.grpRepo, "Existing", batch, group.StatusAccepted, "", taken)

	uc := testutil.CreateUseCase(t, f.progRepo, "UC-01", "Smart Farming")
	testutil.CreateUseCase(t, f.progRepo, "UC-02", "No Rules")
	testutil.SetRules(t, f.grpRepo, batch, uc.ID,
		testutil.LearningPathRule(user.PathML, group.OpGTE, 1),
		testutil.LearningPathRule(user.PathFEBE, group.OpGTE, 1),
		testutil.LearningPathRule(user.PathREBE, group.OpGTE, 1),
	)

	register := func(name, ucID string, members ...user.User) group.RegisterTeam {
		ids := make([]string, 0, len(members))
		for _, m := range members {
			ids = append(ids, m.SourceID)
		}
		return group.RegisterTeam{Name: name, UseCaseSourceID: ucID, MemberSourceIDs: ids}
	}

	tests := []struct {
		name    string
		creator user.User
		rt      group.RegisterTeam
		wantErr *core.AppError
	}{
		{"incomplete profile", incomplete, register("T", "UC-01", incomplete, febe, rebe), group.ErrProfileIncomplete},
		{"creator not listed", leader, register("T", "UC-01", febe, rebe), group.ErrInvalidMemberID},
		{"unknown member", leader, group.RegisterTeam{Name: "T", UseCaseSourceID: "UC-01", MemberSourceIDs: []string{leader.SourceID, "FUI9999"}}, group.ErrInvalidMemberID},
		{"unknown use case", leader, register("T", "UC-404", leader, febe, rebe), program.ErrUseCaseNotFound},
		{"member already in a team", leader, register("T", "UC-01", leader, taken, rebe), group.ErrDoubleSubmission},
		{"use case without rules", leader, register("T", "UC-02", leader, febe, rebe), group.ErrRulesNotFound},
		{"composition violated", leader, register("T", "UC-01", leader, ml2, rebe), group.ErrInvalidComposition},
		{"repeated member", leader, register("T", "UC-01", leader, febe, febe, rebe), group.ErrInvalidMemberID},
		{"repeated leader", leader, group.RegisterTeam{Name: "T", UseCaseSourceID: "UC-01", MemberSourceIDs: []string{leader.SourceID, febe.SourceID, rebe.SourceID, strings.ToLower(leader.SourceID)}}, group.ErrInvalidMemberID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RegisterTeam(ctx, tt.creator.ID, tt.rt)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("RegisterTeam() failed: err = %v; want %v", err, tt.wantErr.Code)
			}
		})
	}

	t.Run("registered", func(t *testing.T) {
		f.mailSvc.Reset()
		dtl, err := f.svc.RegisterTeam(ctx, leader.ID, register("Team Tani", "UC-01", febe, leader, rebe))
		if err != nil {
			t.Fatalf("RegisterTeam() failed: %v", err)
		}
		assert.Equal(t, group.StatusPendingValidation, dtl.Status)
		assert.Equal(t, leader.ID, dtl.CreatorID)
		assert.Equal(t, uc.ID, dtl.UseCaseID)
		require.Len(t, dtl.Members, 3)
		assert.Equal(t, leader.ID, dtl.Members[0].UserID)
		assert.True(t, dtl.Members[0].IsLeader())
		assert.Len(t, f.mailSvc.Messages(), 3)

		// the same members cannot register twice
		_, err = f.svc.RegisterTeam(ctx, leader.ID, register("Team Tani 2", "UC-01", leader, febe, rebe))
		assert.True(t, errors.Is(err, group.ErrDoubleSubmission))

		mine, err := f.svc.MyTeam(ctx, rebe.ID)
		if err != nil {
			t.Fatalf("MyTeam() failed: %v", err)
		}
		assert.Equal(t, dtl.ID, mine.ID)
		require.NotNil(t, mine.UseCase)
		assert.Equal(t, "Smart Farming", mine.UseCase.Name)
	})
}

func TestService_ValidateRegistration(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	creator := testutil.CreateStudent(t, f.usrRepo, "Creator", "creator@test.id", user.PathML, batch)
	mate := testutil.CreateStudent(t, f.usrRepo, "Mate", "mate@test.id", user.PathFEBE, batch)

	pending, _ := testutil.CreateGroup(t, f.grpRepo, "Pending", batch, group.StatusPendingValidation, "", creator, mate)

	t.Run("rejection needs a reason", func(t *testing.T) {
		_, err := f.svc.ValidateRegistration(ctx, pending.ID, group.Validation{Status: group.StatusRejected})
		assert.True(t, errors.Is(err, group.ErrReasonRequired), "got %v", err)
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := f.svc.ValidateRegistration(ctx, "missing", group.Validation{Status: group.StatusAccepted})
		assert.True(t, errors.Is(err, group.ErrNotFound))
	})

	t.Run("rejected", func(t *testing.T) {
		grp, err := f.svc.ValidateRegistration(ctx, pending.ID, group.Validation{
			Status:          group.StatusRejected,
			RejectionReason: "missing a REBE member",
		})
		if err != nil {
			t.Fatalf("ValidateRegistration() failed: %v", err)
		}
		assert.Equal(t, group.StatusRejected, grp.Status)
		assert.Equal(t, "missing a REBE member", grp.RejectionReason)

		// members are free again
		free, err := f.svc.ListUnassigned(ctx, batch)
		if err != nil {
			t.Fatalf("ListUnassigned() failed: %v", err)
		}
		assert.Len(t, free, 2)

		// rejected is terminal
		_, err = f.svc.ValidateRegistration(ctx, pending.ID, group.Validation{Status: group.StatusAccepted})
		assert.True(t, errors.Is(err, group.ErrInvalidTransition))
	})

	t.Run("accepted then started", func(t *testing.T) {
		grp, _, err := f.grpRepo.CreateGroup(ctx, group.Group{
			Name:      "Second",
			BatchID:   batch,
			CreatorID: creator.ID,
			Status:    group.StatusPendingValidation,
		})
		if err != nil {
			t.Fatalf("CreateGroup() failed: %v", err)
		}
		f.mailSvc.Reset()

		_, err = f.svc.StartProject(ctx, grp.ID)
		assert.True(t, errors.Is(err, group.ErrInvalidTransition))

		accepted, err := f.svc.ValidateRegistration(ctx, grp.ID, group.Validation{Status: group.StatusAccepted})
		if err != nil {
			t.Fatalf("ValidateRegistration() failed: %v", err)
		}
		assert.Equal(t, group.StatusAccepted, accepted.Status)
		msgs := f.mailSvc.Messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "team_validated", msgs[0].TemplateName)
		assert.Equal(t, creator.Email, msgs[0].To[0].Address)

		started, err := f.svc.StartProject(ctx, grp.ID)
		if err != nil {
			t.Fatalf("StartProject() failed: %v", err)
		}
		assert.Equal(t, group.StatusInProgress, started.Status)
	})
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	grp, _ := testutil.CreateGroup(t, f.grpRepo, "Draft", batch, group.StatusDraft, "")
	str := func(s string) *string { return &s }

	tests := []struct {
		name       string
		ug         group.UpdateGroup
		wantStatus string
		wantErr    *core.AppError
	}{
		{"rename", group.UpdateGroup{Name: str("Renamed")}, group.StatusDraft, nil},
		{"draft to in_progress", group.UpdateGroup{Status: str(group.StatusInProgress)}, "", group.ErrInvalidTransition},
		{"draft to accepted", group.UpdateGroup{Status: str(group.StatusAccepted)}, group.StatusAccepted, nil},
		{"accepted to draft", group.UpdateGroup{Status: str(group.StatusDraft)}, "", group.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, err := f.svc.Update(ctx, grp.ID, tt.ug)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Update() failed: err = %v; want %v", err, tt.wantErr.Code)
				}
				return
			}
			if err != nil {
				t.Fatalf("Update() failed: %v", err)
			}
			assert.Equal(t, tt.wantStatus, updated.Status)
		})
	}
}

func TestService_Members(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := testutil.CreateStudent(t, f.usrRepo, "Alice", "alice@test.id", user.PathML, batch)
	bob := testutil.CreateStudent(t, f.usrRepo, "Bob", "bob@test.id", user.PathFEBE, batch)

	empty, _ := testutil.CreateGroup(t, f.grpRepo, "Empty", batch, group.StatusDraft, "")
	other, _ := testutil.CreateGroup(t, f.grpRepo, "Other", batch, group.StatusDraft, "")

	m, err := f.svc.AddMember(ctx, empty.ID, alice.ID)
	if err != nil {
		t.Fatalf("AddMember() failed: %v", err)
	}
	assert.Equal(t, group.RoleLeader, m.Role)

	m, err = f.svc.AddMember(ctx, empty.ID, bob.ID)
	if err != nil {
		t.Fatalf("AddMember() failed: %v", err)
	}
	assert.Equal(t, group.RoleMember, m.Role)

	_, err = f.svc.AddMember(ctx, other.ID, alice.ID)
	assert.True(t, errors.Is(err, group.ErrAlreadyInTeam))

	if err = f.svc.RemoveMember(ctx, empty.ID, alice.ID); err != nil {
		t.Fatalf("RemoveMember() failed: %v", err)
	}
	err = f.svc.RemoveMember(ctx, empty.ID, alice.ID)
	assert.True(t, errors.Is(err, group.ErrMemberNotFound))

	// a removed member can join another team
	if _, err = f.svc.AddMember(ctx, other.ID, alice.ID); err != nil {
		t.Fatalf("AddMember() failed: %v", err)
	}

	_, err = f.svc.MyTeam(ctx, testutil.CreateStudent(t, f.usrRepo, "Solo", "solo@test.id", user.PathML, batch).ID)
	assert.True(t, errors.Is(err, group.ErrNoTeam))
}

func TestService_CheckComposition(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ml := testutil.CreateRoster(t, f.usrRepo, "ML", user.PathML, batch, 3)
	testutil.SetRules(t, f.grpRepo, batch, "",
		testutil.LearningPathRule(user.PathML, group.OpLTE, 2),
		testutil.LearningPathRule(user.PathFEBE, group.OpGTE, 1),
	)
	ids := []string{ml[0].SourceID, ml[1].SourceID, ml[2].SourceID}

	res, err := f.svc.CheckComposition(ctx, group.CheckComposition{MemberSourceIDs: ids, BatchID: batch})
	if err != nil {
		t.Fatalf("CheckComposition() failed: %v", err)
	}
	assert.False(t, res.Valid)
	assert.Equal(t, map[string]int{user.PathML: 3}, res.Composition)
	require.Len(t, res.Violations, 2)
	assert.Equal(t, 3, res.Violations[0].Count)
	assert.Equal(t, 0, res.Violations[1].Count)

	res, err = f.svc.CheckComposition(ctx, group.CheckComposition{
		MemberSourceIDs: ids,
		Rules:           []group.NewRule{{Attribute: group.AttrLearningPath, Value: user.PathML, Operator: group.OpEQ, Count: 3}},
	})
	if err != nil {
		t.Fatalf("CheckComposition() failed: %v", err)
	}
	assert.True(t, res.Valid)
	assert.Empty(t, res.Violations)

	// repeated IDs count once
	febe := testutil.CreateStudent(t, f.usrRepo, "Mate FEBE", "febe@test.id", user.PathFEBE, batch)
	res, err = f.svc.CheckComposition(ctx, group.CheckComposition{
		MemberSourceIDs: []string{ml[0].SourceID, ml[0].SourceID, febe.SourceID},
		Rules:           []group.NewRule{{Attribute: group.AttrLearningPath, Value: user.PathFEBE, Operator: group.OpLTE, Count: 1}},
	})
	if err != nil {
		t.Fatalf("CheckComposition() failed: %v", err)
	}
	assert.True(t, res.Valid)
	assert.Equal(t, map[string]int{user.PathML: 1, user.PathFEBE: 1}, res.Composition)
	assert.Empty(t, res.Violations)

	_, err = f.svc.CheckComposition(ctx, group.CheckComposition{MemberSourceIDs: []string{"FUI9999"}, BatchID: batch})
	assert.True(t, errors.Is(err, group.ErrInvalidMemberID))

	_, err = f.svc.CheckComposition(ctx, group.CheckComposition{MemberSourceIDs: ids, BatchID: "empty-batch"})
	assert.True(t, errors.Is(err, group.ErrRulesNotFound))
}

func TestService_RulesForUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	student := testutil.CreateStudent(t, f.usrRepo, "Student", "student@test.id", user.PathML, batch)
	noBatch := testutil.CreateStudent(t, f.usrRepo, "No Batch", "nobatch@test.id", user.PathML, "")

	testutil.SetRules(t, f.grpRepo, batch, "", testutil.LearningPathRule(user.PathML, group.OpGTE, 1))
	// replacing the set deactivates the previous rules
	testutil.SetRules(t, f.grpRepo, batch, "",
		testutil.LearningPathRule(user.PathFEBE, group.OpGTE, 1),
		testutil.LearningPathRule(user.PathREBE, group.OpGTE, 1),
	)

	rules, err := f.svc.RulesForUser(ctx, student.ID)
	if err != nil {
		t.Fatalf("RulesForUser() failed: %v", err)
	}
	require.Len(t, rules, 2)
	assert.Equal(t, user.PathFEBE, rules[0].Value)
	assert.Equal(t, user.PathREBE, rules[1].Value)

	_, err = f.svc.RulesForUser(ctx, noBatch.ID)
	assert.True(t, errors.Is(err, user.ErrBatchNotFound))
}
