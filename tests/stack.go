package testutil

import (
	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/deliverable"
	"github.com/trezcool/capstone/core/feedback"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/core/user"
	"github.com/trezcool/capstone/core/worksheet"
	emailsvc "github.com/trezcool/capstone/services/email"
	locksvc "github.com/trezcool/capstone/services/lock"
	inmemdb "github.com/trezcool/capstone/storage/database/inmem"
)

// Stack wires every service over one in-memory database and a recording mailer.
type Stack struct {
	Conf    *core.Config
	Logger  core.Logger
	MailSvc *emailsvc.ConsoleServiceMock

	UsrRepo   user.Repository
	ProgRepo  program.Repository
	GrpRepo   group.Repository
	WsRepo    worksheet.Repository
	DelivRepo deliverable.Repository
	FbRepo    feedback.Repository

	UsrSvc   user.Service
	ProgSvc  program.Service
	GrpSvc   group.Service
	WsSvc    worksheet.Service
	DelivSvc deliverable.Service
	FbSvc    feedback.Service
}

func NewStack() *Stack {
	conf := core.NewTestConfig()
	logger := NewLogger(conf)
	core.ParseEmailTemplates(conf, logger)

	db := inmemdb.NewDB()
	s := &Stack{
		Conf:      conf,
		Logger:    logger,
		MailSvc:   emailsvc.NewConsoleServiceMock(conf, logger),
		UsrRepo:   inmemdb.NewUserRepository(db),
		ProgRepo:  inmemdb.NewProgramRepository(db),
		GrpRepo:   inmemdb.NewGroupRepository(db),
		WsRepo:    inmemdb.NewWorksheetRepository(db),
		DelivRepo: inmemdb.NewDeliverableRepository(db),
		FbRepo:    inmemdb.NewFeedbackRepository(db),
	}
	s.UsrSvc = user.NewService(s.UsrRepo, conf)
	s.ProgSvc = program.NewService(s.ProgRepo, s.UsrSvc)
	s.GrpSvc = group.NewService(s.GrpRepo, s.UsrSvc, s.ProgSvc, locksvc.NewLocalLocker(), s.MailSvc, logger, conf)
	s.WsSvc = worksheet.NewService(s.WsRepo, s.UsrSvc, s.GrpSvc, s.ProgSvc, s.MailSvc)
	s.DelivSvc = deliverable.NewService(s.DelivRepo, s.GrpSvc)
	s.FbSvc = feedback.NewService(s.FbRepo, s.UsrSvc, s.GrpSvc)
	return s
}
