package group

import (
	"context"
	"math/rand"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/core/user"
)

var (
	NowFunc = time.Now // mockable

	// NewRandSource returns the random source of one AutoAssign run.
	NewRandSource = func() RandSource { // mockable
		return rand.New(rand.NewSource(NowFunc().UnixNano()))
	}
)

type (
	// BatchLocker serializes auto-assignment runs of a batch.
	BatchLocker interface {
		// Lock blocks until the batch lock is held or ctx is done. unlock releases it.
		Lock(ctx context.Context, batchID string) (unlock func(), err error)
	}

	Repository interface {
		// CreateGroup stores grp and its members atomically.
		// It returns ErrConcurrentAssignment if a member already holds an active membership.
		CreateGroup(ctx context.Context, grp Group, members ...Member) (Group, []Member, error)
		GetGroup(ctx context.Context, id string) (Group, error)
		QueryGroups(ctx context.Context, filter QueryFilter) ([]Summary, error)
		UpdateGroup(ctx context.Context, grp Group) (Group, error)
		// UpdateGroupStatus stores grp and, when deactivate is true, deactivates all of its memberships in the same transaction.
		UpdateGroupStatus(ctx context.Context, grp Group, deactivate bool) (Group, error)

		// ListMembers returns the active members of a group, leader first.
		ListMembers(ctx context.Context, groupID string) ([]Member, error)
		// AddMember returns ErrConcurrentAssignment if the user already holds an active membership.
		AddMember(ctx context.Context, m Member) (Member, error)
		DeactivateMember(ctx context.Context, groupID, userID string) error
		// ActiveMemberships returns the active memberships of the given users.
		ActiveMemberships(ctx context.Context, userIDs ...string) ([]Member, error)

		// ListUnassigned returns the students of a batch (role matched case-insensitively) without an active membership.
		ListUnassigned(ctx context.Context, batchID string) ([]user.User, error)

		// SetRules deactivates the active rules matching filter and stores rules, atomically.
		SetRules(ctx context.Context, filter RuleFilter, rules []Rule) ([]Rule, error)
		// ListActiveRules returns the active rules matching filter, ordered by position.
		ListActiveRules(ctx context.Context, filter RuleFilter) ([]Rule, error)

		ExportRows(ctx context.Context, batchID string) ([]ExportRow, error)
	}

	// Service manages teams: auto-assignment, student registration, admin operations and composition rules.
	Service interface {
		AutoAssign(ctx context.Context, batchID, adminID string, teamSize int) (AllocationReport, error)
		RegisterTeam(ctx context.Context, creatorID string, rt RegisterTeam) (Detail, error)

		Create(ctx context.Context, creatorID string, ng NewGroup) (Detail, error)
		Get(ctx context.Context, id string) (Detail, error)
		List(ctx context.Context, filter QueryFilter) ([]Summary, error)
		Update(ctx context.Context, id string, ug UpdateGroup) (Group, error)
		StartProject(ctx context.Context, id string) (Group, error)
		ValidateRegistration(ctx context.Context, id string, v Validation) (Group, error)
		AddMember(ctx context.Context, groupID, userID string) (Member, error)
		RemoveMember(ctx context.Context, groupID, userID string) error
		ListUnassigned(ctx context.Context, batchID string) ([]user.User, error)
		Export(ctx context.Context, batchID string) ([]ExportRow, error)

		SetRules(ctx context.Context, sr SetRules) ([]Rule, error)
		ListActiveRules(ctx context.Context, filter RuleFilter) ([]Rule, error)
		CheckComposition(ctx context.Context, cc CheckComposition) (CompositionResult, error)

		MyTeam(ctx context.Context, userID string) (Detail, error)
		RulesForUser(ctx context.Context, userID string) ([]Rule, error)
		// ActiveMembership returns the user's active membership, or ErrNoTeam.
		ActiveMembership(ctx context.Context, userID string) (Member, error)
		ActiveMembers(ctx context.Context, groupID string) ([]Member, error)
	}

	service struct {
		repo    Repository
		usrSvc  user.Service
		progSvc program.Service
		locker  BatchLocker
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	usrSvc user.Service,
	progSvc program.Service,
	locker BatchLocker,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:    repo,
		usrSvc:  usrSvc,
		progSvc: progSvc,
		locker:  locker,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
	}
}

func autoGroupName() string {
	return "Team " + uuid.New().String()[:8]
}

// AutoAssign places every unassigned student of the batch in a new draft team.
// Runs on the same batch are serialized by the BatchLocker; storage rejects any double assignment left.
// If a team cannot be stored, the teams created so far are kept and a *PartialFailureError is returned.
func (svc *service) AutoAssign(ctx context.Context, batchID, adminID string, teamSize int) (AllocationReport, error) {
	batchID = core.CleanString(batchID)
	if batchID == "" {
		return AllocationReport{}, ErrBatchRequired
	}
	if teamSize <= 0 {
		teamSize = svc.conf.Allocation.TeamSize
	}

	unlock, err := svc.locker.Lock(ctx, batchID)
	if err != nil {
		return AllocationReport{}, errors.Wrapf(err, "locking batch %s", batchID)
	}
	defer unlock()

	report := newAllocationReport()
	pool, err := svc.repo.ListUnassigned(ctx, batchID)
	if err != nil {
		return AllocationReport{}, errors.Wrap(err, "listing unassigned students")
	}
	if len(pool) == 0 {
		return report, nil
	}

	rules, err := svc.repo.ListActiveRules(ctx, RuleFilter{BatchID: batchID})
	if err != nil {
		return AllocationReport{}, errors.Wrap(err, "listing active rules")
	}
	useCases, err := svc.progSvc.ListUseCases(ctx)
	if err != nil {
		return AllocationReport{}, errors.Wrap(err, "listing use cases")
	}

	plans := Allocate(pool, rules, useCases, teamSize, NewRandSource())
	for i, plan := range plans {
		now := NowFunc().UTC()
		grp := Group{
			Name:      autoGroupName(),
			BatchID:   batchID,
			CreatorID: adminID,
			Status:    StatusDraft,
			CreatedAt: now,
			UpdatedAt: now,
		}
		var ucName string
		if plan.UseCase != nil {
			grp.UseCaseID = plan.UseCase.ID
			ucName = plan.UseCase.Name
		}
		members := make([]Member, 0, len(plan.Members))
		for j, usr := range plan.Members {
			role := RoleMember
			if j == 0 {
				role = RoleLeader
			}
			members = append(members, newMember(usr, role, now))
		}

		created, createdMembers, err := svc.repo.CreateGroup(ctx, grp, members...)
		if err != nil {
			report.LeftOver = len(pool) - report.AssignedCount
			return report, &PartialFailureError{
				GroupsCreated: i,
				Report:        report,
				Err:           errors.Wrapf(err, "creating group %d of %d", i+1, len(plans)),
			}
		}
		report.add(created, createdMembers, plan)
		svc.notifyAssigned(created, ucName, createdMembers)
	}
	svc.logger.Info("auto-assign done", report, map[string]interface{}{"batch_id": batchID})
	return report, nil
}

// RegisterTeam creates a pending_validation team submitted by a student, who becomes its leader.
func (svc *service) RegisterTeam(ctx context.Context, creatorID string, rt RegisterTeam) (Detail, error) {
	creator, err := svc.usrSvc.GetByID(ctx, creatorID)
	if err != nil {
		return Detail{}, err
	}
	if !creator.HasCompleteProfile() {
		return Detail{}, ErrProfileIncomplete
	}

	listed := false
	for _, id := range rt.MemberSourceIDs {
		if strings.EqualFold(id, creator.SourceID) {
			listed = true
			break
		}
	}
	if !listed {
		return Detail{}, ErrInvalidMemberID.WithMessage("the team leader must be listed among the members")
	}
	if dups := repeatedIDs(rt.MemberSourceIDs); len(dups) > 0 {
		return Detail{}, ErrInvalidMemberID.
			WithMessage("a member is listed more than once").
			WithFields(map[string]interface{}{"member_ids": dups})
	}

	uc, err := svc.progSvc.GetUseCaseBySourceID(ctx, rt.UseCaseSourceID)
	if err != nil {
		return Detail{}, err
	}

	users, err := svc.usrSvc.GetBySourceIDs(ctx, rt.MemberSourceIDs)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			var appErr *core.AppError
			if errors.As(err, &appErr) {
				return Detail{}, ErrInvalidMemberID.WithFields(appErr.Fields)
			}
			return Detail{}, ErrInvalidMemberID
		}
		return Detail{}, errors.Wrap(err, "resolving members")
	}

	if err = svc.checkNoActiveMembership(ctx, users); err != nil {
		return Detail{}, err
	}

	rules, err := svc.repo.ListActiveRules(ctx, RuleFilter{BatchID: creator.BatchID, UseCaseID: uc.ID})
	if err != nil {
		return Detail{}, errors.Wrap(err, "listing use case rules")
	}
	if len(rules) == 0 {
		return Detail{}, ErrRulesNotFound
	}
	if err = ValidateComposition(users, rules); err != nil {
		var v *Violation
		if errors.As(err, &v) {
			return Detail{}, ErrInvalidComposition.WithMessage(v.Error()).WithFields(map[string]interface{}{
				"rule":  v.Rule,
				"count": v.Count,
			})
		}
		return Detail{}, err
	}

	batchID := creator.BatchID
	if batchID == "" {
		batchID = svc.conf.Allocation.DefaultBatchID
	}
	now := NowFunc().UTC()
	grp := Group{
		Name:      rt.Name,
		BatchID:   batchID,
		CreatorID: creator.ID,
		UseCaseID: uc.ID,
		Status:    StatusPendingValidation,
		CreatedAt: now,
		UpdatedAt: now,
	}
	members := make([]Member, 0, len(users))
	members = append(members, newMember(creator, RoleLeader, now))
	for _, usr := range users {
		if usr.ID != creator.ID {
			members = append(members, newMember(usr, RoleMember, now))
		}
	}

	created, createdMembers, err := svc.repo.CreateGroup(ctx, grp, members...)
	if err != nil {
		if errors.Is(err, ErrConcurrentAssignment) {
			return Detail{}, ErrDoubleSubmission
		}
		return Detail{}, errors.Wrap(err, "creating group")
	}
	svc.notifyRegistered(created, uc.Name, creator.Name, createdMembers)
	return Detail{Group: created, CreatorName: creator.Name, UseCase: &uc, Members: createdMembers}, nil
}

// repeatedIDs returns the source IDs listed more than once, compared case-insensitively.
func repeatedIDs(sourceIDs []string) []string {
	seen := make(map[string]int, len(sourceIDs))
	var dups []string
	for _, id := range sourceIDs {
		id = strings.ToUpper(core.CleanString(id))
		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id)
		}
	}
	return dups
}

// uniqueUsers returns a new slice holding the first occurrence of each user.
func uniqueUsers(users []user.User) []user.User {
	seen := make(map[string]bool, len(users))
	unique := make([]user.User, 0, len(users))
	for _, usr := range users {
		if !seen[usr.ID] {
			seen[usr.ID] = true
			unique = append(unique, usr)
		}
	}
	return unique
}

// checkNoActiveMembership returns ErrDoubleSubmission listing the source IDs of users already in an active team.
func (svc *service) checkNoActiveMembership(ctx context.Context, users []user.User) error {
	ids := make([]string, 0, len(users))
	for _, usr := range users {
		ids = append(ids, usr.ID)
	}
	active, err := svc.repo.ActiveMemberships(ctx, ids...)
	if err != nil {
		return errors.Wrap(err, "checking memberships")
	}
	if len(active) == 0 {
		return nil
	}
	taken := make([]string, 0, len(active))
	for _, m := range active {
		taken = append(taken, m.SourceID)
	}
	return ErrDoubleSubmission.WithFields(map[string]interface{}{"member_ids": taken})
}

// Create creates a draft team. The optional leader must not be in an active team.
func (svc *service) Create(ctx context.Context, creatorID string, ng NewGroup) (Detail, error) {
	now := NowFunc().UTC()
	grp := Group{
		Name:      ng.Name,
		BatchID:   ng.BatchID,
		CreatorID: creatorID,
		UseCaseID: ng.UseCaseID,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var uc *program.UseCase
	if ng.UseCaseID != "" {
		found, err := svc.progSvc.GetUseCase(ctx, ng.UseCaseID)
		if err != nil {
			return Detail{}, err
		}
		uc = &found
	}

	var members []Member
	if ng.LeaderID != "" {
		leader, err := svc.usrSvc.GetByID(ctx, ng.LeaderID)
		if err != nil {
			return Detail{}, err
		}
		if err = svc.checkNoActiveMembership(ctx, []user.User{leader}); err != nil {
			return Detail{}, ErrAlreadyInTeam
		}
		members = append(members, newMember(leader, RoleLeader, now))
	}

	created, createdMembers, err := svc.repo.CreateGroup(ctx, grp, members...)
	if err != nil {
		if errors.Is(err, ErrConcurrentAssignment) {
			return Detail{}, ErrAlreadyInTeam
		}
		return Detail{}, errors.Wrap(err, "creating group")
	}
	if createdMembers == nil {
		createdMembers = make([]Member, 0)
	}
	return Detail{Group: created, UseCase: uc, Members: createdMembers}, nil
}

func (svc *service) Get(ctx context.Context, id string) (Detail, error) {
	grp, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return svc.detail(ctx, grp)
}

func (svc *service) detail(ctx context.Context, grp Group) (Detail, error) {
	dtl := Detail{Group: grp}
	if grp.UseCaseID != "" {
		uc, err := svc.progSvc.GetUseCase(ctx, grp.UseCaseID)
		if err != nil && !errors.Is(err, program.ErrUseCaseNotFound) {
			return Detail{}, errors.Wrap(err, "finding use case")
		}
		if err == nil {
			dtl.UseCase = &uc
		}
	}
	if grp.CreatorID != "" {
		if creator, err := svc.usrSvc.GetByID(ctx, grp.CreatorID); err == nil {
			dtl.CreatorName = creator.Name
		}
	}

	members, err := svc.repo.ListMembers(ctx, grp.ID)
	if err != nil {
		return Detail{}, errors.Wrap(err, "listing members")
	}
	dtl.Members = members
	return dtl, nil
}

func (svc *service) List(ctx context.Context, filter QueryFilter) ([]Summary, error) {
	filter.BatchID = core.CleanString(filter.BatchID)
	filter.Status = core.CleanString(filter.Status, true /* lower */)
	return svc.repo.QueryGroups(ctx, filter)
}

// Update changes the name, batch or status of a group. Status changes follow the group lifecycle.
func (svc *service) Update(ctx context.Context, id string, ug UpdateGroup) (Group, error) {
	grp, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}

	deactivate := false
	if ug.Name != nil {
		grp.Name = *ug.Name
	}
	if ug.BatchID != nil {
		grp.BatchID = *ug.BatchID
	}
	if ug.Status != nil && *ug.Status != grp.Status {
		if err = checkTransition(grp.Status, *ug.Status); err != nil {
			return Group{}, err
		}
		grp.Status = *ug.Status
		deactivate = grp.Status == StatusRejected
	}
	grp.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateGroupStatus(ctx, grp, deactivate)
}

// StartProject moves an accepted group to in_progress.
func (svc *service) StartProject(ctx context.Context, id string) (Group, error) {
	grp, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if err = checkTransition(grp.Status, StatusInProgress); err != nil {
		return Group{}, err
	}
	grp.Status = StatusInProgress
	grp.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateGroup(ctx, grp)
}

// ValidateRegistration accepts or rejects a pending_validation group and emails its creator.
// Rejection frees the members: their memberships are deactivated.
func (svc *service) ValidateRegistration(ctx context.Context, id string, v Validation) (Group, error) {
	if v.Status == StatusRejected && v.RejectionReason == "" {
		return Group{}, core.NewValidationError(ErrReasonRequired, core.FieldError{
			Field: "rejection_reason",
			Error: ErrReasonRequired.Message,
		})
	}

	grp, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if grp.Status != StatusPendingValidation {
		return Group{}, ErrInvalidTransition.WithFields(map[string]interface{}{"from": grp.Status, "to": v.Status})
	}
	if err = checkTransition(grp.Status, v.Status); err != nil {
		return Group{}, err
	}

	grp.Status = v.Status
	grp.RejectionReason = ""
	if v.Status == StatusRejected {
		grp.RejectionReason = v.RejectionReason
	}
	grp.UpdatedAt = NowFunc().UTC()
	updated, err := svc.repo.UpdateGroupStatus(ctx, grp, v.Status == StatusRejected)
	if err != nil {
		return Group{}, errors.Wrap(err, "updating group")
	}

	if updated.CreatorID != "" {
		creator, err := svc.usrSvc.GetByID(ctx, updated.CreatorID)
		if err != nil {
			svc.logger.Error("finding group creator", err, updated)
		} else {
			svc.notifyValidated(updated, mail.Address{Name: creator.Name, Address: creator.Email})
		}
	}
	return updated, nil
}

func (svc *service) AddMember(ctx context.Context, groupID, userID string) (Member, error) {
	grp, err := svc.repo.GetGroup(ctx, groupID)
	if err != nil {
		return Member{}, err
	}
	usr, err := svc.usrSvc.GetByID(ctx, userID)
	if err != nil {
		return Member{}, err
	}
	if err = svc.checkNoActiveMembership(ctx, []user.User{usr}); err != nil {
		if errors.Is(err, ErrDoubleSubmission) {
			return Member{}, ErrAlreadyInTeam
		}
		return Member{}, err
	}

	role := RoleMember
	members, err := svc.repo.ListMembers(ctx, grp.ID)
	if err != nil {
		return Member{}, errors.Wrap(err, "listing members")
	}
	if len(members) == 0 {
		role = RoleLeader
	}

	m := newMember(usr, role, NowFunc().UTC())
	m.GroupID = grp.ID
	added, err := svc.repo.AddMember(ctx, m)
	if err != nil {
		if errors.Is(err, ErrConcurrentAssignment) {
			return Member{}, ErrAlreadyInTeam
		}
		return Member{}, errors.Wrap(err, "adding member")
	}
	return added, nil
}

// RemoveMember deactivates the membership; the row is kept.
func (svc *service) RemoveMember(ctx context.Context, groupID, userID string) error {
	if _, err := svc.repo.GetGroup(ctx, groupID); err != nil {
		return err
	}
	return svc.repo.DeactivateMember(ctx, groupID, userID)
}

func (svc *service) ListUnassigned(ctx context.Context, batchID string) ([]user.User, error) {
	batchID = core.CleanString(batchID)
	if batchID == "" {
		return nil, ErrBatchRequired
	}
	return svc.repo.ListUnassigned(ctx, batchID)
}

func (svc *service) Export(ctx context.Context, batchID string) ([]ExportRow, error) {
	return svc.repo.ExportRows(ctx, core.CleanString(batchID))
}

// SetRules replaces the active rule set of a batch (or of one of its use cases). Previous rules are deactivated, not deleted.
func (svc *service) SetRules(ctx context.Context, sr SetRules) ([]Rule, error) {
	if sr.UseCaseID != "" {
		if _, err := svc.progSvc.GetUseCase(ctx, sr.UseCaseID); err != nil {
			return nil, err
		}
	}
	now := NowFunc().UTC()
	rules := make([]Rule, 0, len(sr.Rules))
	for i, nr := range sr.Rules {
		r := nr.rule()
		r.BatchID = sr.BatchID
		r.UseCaseID = sr.UseCaseID
		r.IsActive = true
		r.IsRequired = true
		r.Position = i
		r.CreatedAt = now
		rules = append(rules, r)
	}
	return svc.repo.SetRules(ctx, RuleFilter{BatchID: sr.BatchID, UseCaseID: sr.UseCaseID}, rules)
}

func (svc *service) ListActiveRules(ctx context.Context, filter RuleFilter) ([]Rule, error) {
	filter.BatchID = core.CleanString(filter.BatchID)
	filter.UseCaseID = core.CleanString(filter.UseCaseID)
	return svc.repo.ListActiveRules(ctx, filter)
}

// CheckComposition validates members against rules without creating anything, reporting every violation.
func (svc *service) CheckComposition(ctx context.Context, cc CheckComposition) (CompositionResult, error) {
	users, err := svc.usrSvc.GetBySourceIDs(ctx, cc.MemberSourceIDs)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			var appErr *core.AppError
			if errors.As(err, &appErr) {
				return CompositionResult{}, ErrInvalidMemberID.WithFields(appErr.Fields)
			}
			return CompositionResult{}, ErrInvalidMemberID
		}
		return CompositionResult{}, errors.Wrap(err, "resolving members")
	}

	var rules []Rule
	if len(cc.Rules) > 0 {
		for i, nr := range cc.Rules {
			r := nr.rule()
			r.Position = i
			rules = append(rules, r)
		}
	} else {
		if rules, err = svc.repo.ListActiveRules(ctx, RuleFilter{BatchID: cc.BatchID, UseCaseID: cc.UseCaseID}); err != nil {
			return CompositionResult{}, errors.Wrap(err, "listing active rules")
		}
		if len(rules) == 0 {
			return CompositionResult{}, ErrRulesNotFound
		}
	}

	users = uniqueUsers(users)
	violations := ValidateCompositionAll(users, rules)
	return CompositionResult{
		Valid:       len(violations) == 0,
		Composition: Frequencies(users),
		Violations:  violations,
	}, nil
}

// MyTeam returns the active team of a user with its use case and members.
func (svc *service) MyTeam(ctx context.Context, userID string) (Detail, error) {
	m, err := svc.ActiveMembership(ctx, userID)
	if err != nil {
		return Detail{}, err
	}
	grp, err := svc.repo.GetGroup(ctx, m.GroupID)
	if err != nil {
		return Detail{}, errors.Wrap(err, "finding group")
	}
	return svc.detail(ctx, grp)
}

// RulesForUser returns the active batch rules of the user's batch.
func (svc *service) RulesForUser(ctx context.Context, userID string) ([]Rule, error) {
	usr, err := svc.usrSvc.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if usr.BatchID == "" {
		return nil, user.ErrBatchNotFound
	}
	return svc.repo.ListActiveRules(ctx, RuleFilter{BatchID: usr.BatchID})
}

func (svc *service) ActiveMembership(ctx context.Context, userID string) (Member, error) {
	active, err := svc.repo.ActiveMemberships(ctx, userID)
	if err != nil {
		return Member{}, errors.Wrap(err, "finding membership")
	}
	if len(active) == 0 {
		return Member{}, ErrNoTeam
	}
	return active[0], nil
}

func (svc *service) ActiveMembers(ctx context.Context, groupID string) ([]Member, error) {
	return svc.repo.ListMembers(ctx, groupID)
}
