package worksheet_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/core/user"
	"github.com/trezcool/capstone/core/worksheet"
	testutil "github.com/trezcool/capstone/tests"
)

const batch = "asah-batch-1"

func mockNow(t *testing.T, now time.Time) {
	worksheet.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { worksheet.NowFunc = time.Now })
}

func TestService_Submit(t *testing.T) {
	s := testutil.NewStack()
	ctx := context.Background()
	member := testutil.CreateStudent(t, s.UsrRepo, "Member", "member@test.id", user.PathML, batch)
	solo := testutil.CreateStudent(t, s.UsrRepo, "Solo", "solo@test.id", user.PathML, batch)
	grp, _ := testutil.CreateGroup(t, s.GrpRepo, "Team", batch, group.StatusInProgress, "", member)

	nw := worksheet.NewWorksheet{
		ActivityDescription: "Built the data pipeline",
		PeriodStart:         core.MustParseDate("2026-03-02"),
		PeriodEnd:           core.MustParseDate("2026-03-08"),
	}

	_, err := s.WsSvc.Submit(ctx, solo.ID, nw)
	assert.True(t, errors.Is(err, group.ErrNoTeam), "got %v", err)

	tests := []struct {
		name       string
		now        time.Time
		wantStatus string
	}{
		{"during the period", time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC), worksheet.StatusSubmitted},
		{"last second of the period", time.Date(2026, time.March, 8, 23, 59, 59, 0, time.UTC), worksheet.StatusSubmitted},
		{"after the period", time.Date(2026, time.March, 9, 0, 0, 1, 0, time.UTC), worksheet.StatusSubmittedLate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockNow(t, tt.now)
			ws, err := s.WsSvc.Submit(ctx, member.ID, nw)
			if err != nil {
				t.Fatalf("Submit() failed: %v", err)
			}
			assert.Equal(t, tt.wantStatus, ws.Status)
			assert.Equal(t, grp.ID, ws.GroupID)
			assert.Equal(t, batch, ws.BatchID)
			assert.Equal(t, tt.now, ws.SubmittedAt)
		})
	}

	mine, err := s.WsSvc.ListMine(ctx, member.ID)
	if err != nil {
		t.Fatalf("ListMine() failed: %v", err)
	}
	require.Len(t, mine, 3)
	assert.Equal(t, worksheet.StatusSubmittedLate, mine[0].Status)

	rows, err := s.WsSvc.List(ctx, worksheet.QueryFilter{Status: "Submitted_Late"})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	require.Len(t, rows, 1)
	assert.Equal(t, "Member", rows[0].UserName)
	assert.Equal(t, "Team", rows[0].GroupName)
}

func TestNewWorksheet_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	tests := []struct {
		name    string
		nw      worksheet.NewWorksheet
		wantErr bool
	}{
		{"valid", worksheet.NewWorksheet{ActivityDescription: "<b>Wrote</b> tests", PeriodStart: core.MustParseDate("2026-03-02"), PeriodEnd: core.MustParseDate("2026-03-08")}, false},
		{"one day period", worksheet.NewWorksheet{ActivityDescription: "Review", PeriodStart: core.MustParseDate("2026-03-02"), PeriodEnd: core.MustParseDate("2026-03-02")}, false},
		{"blank description", worksheet.NewWorksheet{ActivityDescription: "   ", PeriodStart: core.MustParseDate("2026-03-02"), PeriodEnd: core.MustParseDate("2026-03-08")}, true},
		{"bad proof url", worksheet.NewWorksheet{ActivityDescription: "Review", ProofURL: "not a url", PeriodStart: core.MustParseDate("2026-03-02"), PeriodEnd: core.MustParseDate("2026-03-08")}, true},
		{"missing dates", worksheet.NewWorksheet{ActivityDescription: "Review"}, true},
		{"end before start", worksheet.NewWorksheet{ActivityDescription: "Review", PeriodStart: core.MustParseDate("2026-03-08"), PeriodEnd: core.MustParseDate("2026-03-02")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nw.Validate(validate)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() failed: err = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}

	nw := worksheet.NewWorksheet{ActivityDescription: "Review", PeriodStart: core.MustParseDate("2026-03-08"), PeriodEnd: core.MustParseDate("2026-03-02")}
	err := nw.Validate(validate)
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "period_end", verr.Fields[0].Field)
	assert.True(t, errors.Is(err, worksheet.ErrInvalidPeriod))
}

func TestService_Validate(t *testing.T) {
	s := testutil.NewStack()
	ctx := context.Background()
	member := testutil.CreateStudent(t, s.UsrRepo, "Member", "member@test.id", user.PathML, batch)
	testutil.CreateGroup(t, s.GrpRepo, "Team", batch, group.StatusInProgress, "", member)

	ws, err := s.WsSvc.Submit(ctx, member.ID, worksheet.NewWorksheet{
		ActivityDescription: "Sprint review",
		PeriodStart:         core.MustParseDate("2026-03-02"),
		PeriodEnd:           core.MustParseDate("2026-03-08"),
	})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	tests := []struct {
		name    string
		id      string
		review  worksheet.Review
		wantErr error
	}{
		{"submitted is not a review status", ws.ID, worksheet.Review{Status: worksheet.StatusSubmitted}, worksheet.ErrInvalidStatus},
		{"unknown worksheet", "missing", worksheet.Review{Status: worksheet.StatusCompleted}, worksheet.ErrNotFound},
		{"completed", ws.ID, worksheet.Review{Status: worksheet.StatusCompleted, Feedback: "Good progress"}, nil},
		{"reviewed again", ws.ID, worksheet.Review{Status: worksheet.StatusMissed}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.WsSvc.Validate(ctx, tt.id, tt.review)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			if err != nil {
				t.Fatalf("Validate() failed: %v", err)
			}
			assert.Equal(t, tt.review.Status, got.Status)
			assert.Equal(t, tt.review.Feedback, got.Feedback)
			assert.Equal(t, "Sprint review", got.ActivityDescription)
		})
	}
}

func TestService_SendReminder(t *testing.T) {
	s := testutil.NewStack()
	ctx := context.Background()
	students := testutil.CreateRoster(t, s.UsrRepo, "ML", user.PathML, batch, 3)
	testutil.CreateStudent(t, s.UsrRepo, "Other Batch", "other@test.id", user.PathML, "asah-batch-2")
	testutil.CreateAdmin(t, s.UsrRepo, "Admin", "admin@test.id")
	testutil.CreateGroup(t, s.GrpRepo, "Team", batch, group.StatusInProgress, "", students...)

	period, err := s.ProgSvc.CreatePeriod(ctx, program.NewPeriod{
		BatchID:   batch,
		Title:     "Week 1",
		StartDate: core.MustParseDate("2026-03-02"),
		EndDate:   core.MustParseDate("2026-03-08"),
	})
	if err != nil {
		t.Fatalf("CreatePeriod() failed: %v", err)
	}

	// a submission for another period does not count
	for _, dates := range [][2]string{{"2026-03-02", "2026-03-08"}, {"2026-03-09", "2026-03-15"}} {
		_, err = s.WsSvc.Submit(ctx, students[0].ID, worksheet.NewWorksheet{
			ActivityDescription: "Done",
			PeriodStart:         core.MustParseDate(dates[0]),
			PeriodEnd:           core.MustParseDate(dates[1]),
		})
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
	}
	_, err = s.WsSvc.Submit(ctx, students[1].ID, worksheet.NewWorksheet{
		ActivityDescription: "Done",
		PeriodStart:         core.MustParseDate("2026-03-09"),
		PeriodEnd:           core.MustParseDate("2026-03-15"),
	})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	res, err := s.WsSvc.SendReminder(ctx, period.ID)
	if err != nil {
		t.Fatalf("SendReminder() failed: %v", err)
	}
	assert.Equal(t, "Week 1", res.PeriodTitle)
	assert.Equal(t, 2, res.RemindedCount)

	msgs := s.MailSvc.Messages()
	require.Len(t, msgs, 2)
	var to []string
	for _, msg := range msgs {
		assert.Equal(t, "worksheet_reminder", msg.TemplateName)
		to = append(to, msg.To[0].Address)
	}
	assert.ElementsMatch(t, []string{students[1].Email, students[2].Email}, to)

	_, err = s.WsSvc.SendReminder(ctx, "missing")
	assert.True(t, errors.Is(err, program.ErrPeriodNotFound))
}
