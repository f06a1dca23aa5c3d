package feedback_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/capstone/core/feedback"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/user"
	testutil "github.com/trezcool/capstone/tests"
)

const batch = "asah-batch-1"

func TestService_Submit(t *testing.T) {
	s := testutil.NewStack()
	ctx := context.Background()
	alice := testutil.CreateStudent(t, s.UsrRepo, "Alice", "alice@test.id", user.PathML, batch)
	bob := testutil.CreateStudent(t, s.UsrRepo, "Bob", "bob@test.id", user.PathFEBE, batch)
	carol := testutil.CreateStudent(t, s.UsrRepo, "Carol", "carol@test.id", user.PathREBE, batch)
	dave := testutil.CreateStudent(t, s.UsrRepo, "Dave", "dave@test.id", user.PathML, batch)
	solo := testutil.CreateStudent(t, s.UsrRepo, "Solo", "solo@test.id", user.PathML, batch)
	grp, _ := testutil.CreateGroup(t, s.GrpRepo, "Team A", batch, group.StatusInProgress, "", alice, bob, carol)
	testutil.CreateGroup(t, s.GrpRepo, "Team B", batch, group.StatusInProgress, "", dave)

	active := true
	review := func(reviewee user.User) feedback.NewFeedback {
		return feedback.NewFeedback{RevieweeSourceID: reviewee.SourceID, IsMemberActive: &active, ContributionLevel: feedback.ContributionHigh, Reason: "reliable"}
	}

	tests := []struct {
		name       string
		reviewerID string
		nf         feedback.NewFeedback
		wantErr    error
	}{
		{"self review", alice.ID, review(alice), feedback.ErrSelfReview},
		{"other team", alice.ID, review(dave), feedback.ErrDifferentTeam},
		{"reviewee without team", alice.ID, review(solo), feedback.ErrDifferentTeam},
		{"reviewer without team", solo.ID, review(alice), group.ErrNoTeam},
		{"unknown reviewee", alice.ID, feedback.NewFeedback{RevieweeSourceID: "FUI9999", IsMemberActive: &active, ContributionLevel: feedback.ContributionLow}, user.ErrNotFound},
		{"by source ID", alice.ID, review(bob), nil},
		{"by ID", alice.ID, feedback.NewFeedback{RevieweeID: carol.ID, IsMemberActive: &active, ContributionLevel: feedback.ContributionMedium}, nil},
		{"twice", alice.ID, review(bob), feedback.ErrAlreadySubmitted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, err := s.FbSvc.Submit(ctx, tt.reviewerID, tt.nf)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			if err != nil {
				t.Fatalf("Submit() failed: %v", err)
			}
			assert.Equal(t, grp.ID, fb.GroupID)
			assert.Equal(t, batch, fb.BatchID)
			assert.NotEmpty(t, fb.SubmittedFor)
		})
	}

	rows, err := s.FbSvc.Export(ctx, feedback.ExportFilter{GroupID: grp.ID})
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, "Alice", row.ReviewerName)
		assert.Equal(t, "Team A", row.GroupName)
		assert.Len(t, row.Values(), len(feedback.ExportHeader))
	}
}

func TestService_Status(t *testing.T) {
	s := testutil.NewStack()
	ctx := context.Background()
	alice := testutil.CreateStudent(t, s.UsrRepo, "Alice", "alice@test.id", user.PathML, batch)
	bob := testutil.CreateStudent(t, s.UsrRepo, "Bob", "bob@test.id", user.PathFEBE, batch)
	carol := testutil.CreateStudent(t, s.UsrRepo, "Carol", "carol@test.id", user.PathREBE, batch)
	solo := testutil.CreateStudent(t, s.UsrRepo, "Solo", "solo@test.id", user.PathML, batch)
	testutil.CreateGroup(t, s.GrpRepo, "Team A", batch, group.StatusInProgress, "", alice, bob, carol)

	statuses, err := s.FbSvc.Status(ctx, solo.ID)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	assert.Empty(t, statuses)
	assert.NotNil(t, statuses)

	active := false
	_, err = s.FbSvc.Submit(ctx, alice.ID, feedback.NewFeedback{RevieweeID: bob.ID, IsMemberActive: &active, ContributionLevel: feedback.ContributionLow, Reason: "absent"})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	statuses, err = s.FbSvc.Status(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Status() failed: %v", err)
	}
	require.Len(t, statuses, 2)
	byName := make(map[string]feedback.TeammateStatus)
	for _, st := range statuses {
		byName[st.Name] = st
	}
	assert.Equal(t, feedback.StatusCompleted, byName["Bob"].Status)
	require.NotNil(t, byName["Bob"].Feedback)
	assert.False(t, byName["Bob"].Feedback.IsMemberActive)
	assert.Equal(t, "absent", byName["Bob"].Feedback.Reason)
	assert.Equal(t, feedback.StatusPending, byName["Carol"].Status)
	assert.Nil(t, byName["Carol"].Feedback)
}

func TestNewFeedback_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()
	active := true

	tests := []struct {
		name    string
		nf      feedback.NewFeedback
		wantErr bool
	}{
		{"valid", feedback.NewFeedback{RevieweeSourceID: "FUI0001", IsMemberActive: &active, ContributionLevel: " HIGH "}, false},
		{"no reviewee", feedback.NewFeedback{IsMemberActive: &active, ContributionLevel: "high"}, true},
		{"reviewee ID is not a uuid", feedback.NewFeedback{RevieweeID: "42", IsMemberActive: &active, ContributionLevel: "high"}, true},
		{"missing activity", feedback.NewFeedback{RevieweeSourceID: "FUI0001", ContributionLevel: "high"}, true},
		{"unknown level", feedback.NewFeedback{RevieweeSourceID: "FUI0001", IsMemberActive: &active, ContributionLevel: "huge"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nf.Validate(validate)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() failed: err = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}
