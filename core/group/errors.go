package group

import (
	"fmt"

	"github.com/trezcool/capstone/core"
)

var (
	ErrNotFound             = core.NewAppError(core.KindNotFound, "GROUP_NOT_FOUND", "group not found")
	ErrMemberNotFound       = core.NewAppError(core.KindNotFound, "MEMBER_NOT_FOUND", "the user is not an active member of this group")
	ErrNoTeam               = core.NewAppError(core.KindNotFound, "NO_TEAM", "you are not a member of any active team")
	ErrRulesNotFound        = core.NewAppError(core.KindNotFound, "RULES_NOT_FOUND", "no active rules found for this use case")
	ErrAlreadyInTeam        = core.NewAppError(core.KindConflict, "ALREADY_IN_TEAM", "the user is already a member of an active team")
	ErrDoubleSubmission     = core.NewAppError(core.KindConflict, "DOUBLE_SUBMISSION", "some members are already registered in another team")
	ErrConcurrentAssignment = core.NewAppError(core.KindConflict, "CONCURRENT_ASSIGNMENT", "a student was assigned to another team concurrently, retry")
	ErrProfileIncomplete    = core.NewAppError(core.KindInvalid, "PROFILE_INCOMPLETE", "complete your learning path and university before registering a team")
	ErrInvalidMemberID      = core.NewAppError(core.KindInvalid, "INVALID_MEMBER_ID", "one or more member IDs are invalid")
	ErrInvalidComposition   = core.NewAppError(core.KindInvalid, "INVALID_COMPOSITION", "the team composition does not satisfy the rules")
	ErrInvalidTransition    = core.NewAppError(core.KindInvalid, "INVALID_TRANSITION", "the group cannot move to this status")
	ErrReasonRequired       = core.NewAppError(core.KindInvalid, "REJECTION_REASON_REQUIRED", "a rejection reason is required")
	ErrBatchRequired        = core.NewAppError(core.KindInvalid, "BATCH_REQUIRED", "batch_id is required")
)

// PartialFailureError is returned by AutoAssign when persisting a team fails after earlier teams were created.
// The created teams are kept; Report describes them.
type PartialFailureError struct {
	GroupsCreated int
	Report        AllocationReport
	Err           error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("auto-assign stopped after %d group(s): %v", e.GroupsCreated, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
