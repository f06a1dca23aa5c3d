package logsvc

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	rberrors "github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/user"
)

// RollbarLogger prints to a standard logger and reports to Rollbar when enabled.
//
// Args may be an error, field maps, a user.User (the Rollbar person), a group.Group or a
// group.AllocationReport. Groups and reports are flattened into fields so that every line
// about a team carries its batch.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(rberrors.StackTracer)
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Wait blocks until the queued Rollbar reports are sent.
func (l RollbarLogger) Wait() {
	rollbar.Wait()
}

type entry struct {
	msg    string
	err    error
	person *user.User
	fields map[string]interface{}
}

func newEntry(msg string, args []interface{}) entry {
	e := entry{msg: msg, fields: make(map[string]interface{})}
	for i, arg := range args {
		switch a := arg.(type) {
		case nil:
		case error:
			if e.err == nil {
				e.err = a
			}
		case user.User:
			if e.person == nil {
				usr := a
				e.person = &usr
			}
		case group.Group:
			e.fields["group_id"] = a.ID
			e.fields["batch_id"] = a.BatchID
			e.fields["group_status"] = a.Status
		case group.AllocationReport:
			e.fields["assigned_count"] = a.AssignedCount
			e.fields["groups_created"] = a.GroupsCreated
			e.fields["left_over"] = a.LeftOver
		case map[string]interface{}:
			for k, v := range a {
				e.fields[k] = v
			}
		default:
			e.fields[fmt.Sprintf("arg%d", i)] = a
		}
	}
	var pfErr *group.PartialFailureError
	if errors.As(e.err, &pfErr) {
		e.fields["groups_created"] = pfErr.GroupsCreated
	}
	return e
}

// rollbarArgs sets the Rollbar person and returns the args of a rollbar report.
func (e entry) rollbarArgs() []interface{} {
	if e.person != nil {
		rollbar.SetPerson(e.person.ID, e.person.Name, e.person.Email)
	} else {
		rollbar.ClearPerson()
	}

	args := []interface{}{e.msg}
	if e.err != nil {
		args = append(args, e.err)
	}
	if len(e.fields) > 0 {
		args = append(args, e.fields)
	}
	return args
}

// String formats the entry as one line: msg: err key=value ... with sorted keys.
func (e entry) String() string {
	var b strings.Builder
	b.WriteString(e.msg)
	if e.err != nil {
		b.WriteString(": ")
		b.WriteString(e.err.Error())
	}
	if e.person != nil {
		fmt.Fprintf(&b, " user_id=%s", e.person.ID)
	}

	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.fields[k])
	}
	return b.String()
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	e := newEntry(msg, args)
	rollbar.Debug(e.rollbarArgs()...)
	l.std.Println("DEBUG", e)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	e := newEntry(msg, args)
	rollbar.Info(e.rollbarArgs()...)
	l.std.Println("INFO", e)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	e := newEntry(msg, args)
	rollbar.Warning(e.rollbarArgs()...)
	l.std.Println("WARN", e)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	e := newEntry(msg, args)
	rollbar.Error(e.rollbarArgs()...)
	l.std.Println("ERROR", e)
	if e.err != nil {
		// keep the stack of wrapped errors in the local output
		l.std.Printf("%+v\n", e.err)
	}
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	e := newEntry(msg, args)
	rollbar.Critical(e.rollbarArgs()...)
	l.std.Println("FATAL", e)
	rollbar.Wait()
	l.std.Fatal(msg)
}
