package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/user"
)

func newTestLogger() (*RollbarLogger, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	logger := NewRollbarLogger(log.New(buf, "", 0), core.NewTestConfig())
	logger.Enable(false)
	return logger, buf
}

func TestRollbarLogger_fields(t *testing.T) {
	grp := group.Group{ID: "g-1", BatchID: "asah-batch-1", Status: group.StatusDraft}
	usr := user.User{ID: "u-1", Name: "Rina", Email: "rina@test.id"}

	tests := []struct {
		name string
		log  func(l *RollbarLogger)
		want string
	}{
		{
			name: "message only",
			log:  func(l *RollbarLogger) { l.Info("server started") },
			want: "INFO server started\n",
		},
		{
			name: "group context",
			log:  func(l *RollbarLogger) { l.Warn("finding group creator", grp) },
			want: "WARN finding group creator batch_id=asah-batch-1 group_id=g-1 group_status=draft\n",
		},
		{
			name: "report and map are merged",
			log: func(l *RollbarLogger) {
				l.Info("auto-assign done",
					group.AllocationReport{AssignedCount: 7, GroupsCreated: 3},
					map[string]interface{}{"batch_id": "asah-batch-1"})
			},
			want: "INFO auto-assign done assigned_count=7 batch_id=asah-batch-1 groups_created=3 left_over=0\n",
		},
		{
			name: "user is the person",
			log:  func(l *RollbarLogger) { l.Debug("profile updated", usr) },
			want: "DEBUG profile updated user_id=u-1\n",
		},
		{
			name: "partial failure",
			log: func(l *RollbarLogger) {
				l.Warn("auto-assign partially failed", &group.PartialFailureError{GroupsCreated: 2, Err: errors.New("boom")})
			},
			want: "WARN auto-assign partially failed: auto-assign stopped after 2 group(s): boom groups_created=2\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newTestLogger()
			tt.log(logger)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRollbarLogger_Error(t *testing.T) {
	logger, buf := newTestLogger()
	logger.Error("creating group", errors.Wrap(errors.New("conn reset"), "inserting"), map[string]interface{}{"batch_id": "b-1"})

	out := buf.String()
	assert.Contains(t, out, "ERROR creating group: inserting: conn reset batch_id=b-1\n")
	// stack of the wrapped error
	assert.Contains(t, out, "rollbar_test.go")
}
