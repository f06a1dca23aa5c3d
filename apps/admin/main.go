package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/capstone/core"
	"github.com/trezcool/capstone/core/group"
	"github.com/trezcool/capstone/core/program"
	"github.com/trezcool/capstone/core/user"
	emailsvc "github.com/trezcool/capstone/services/email"
	locksvc "github.com/trezcool/capstone/services/lock"
	logsvc "github.com/trezcool/capstone/services/logger"
	"github.com/trezcool/capstone/storage/database"
	sqlxrepos "github.com/trezcool/capstone/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal("creating database", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	repos := sqlxrepos.NewRepositories(db)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	core.ParseEmailTemplates(conf, logger)

	var locker group.BatchLocker = locksvc.NewLocalLocker()
	if conf.Redis.Address != "" {
		client, err := locksvc.NewRedisClient(context.Background(), conf.Redis)
		if err != nil {
			logger.Fatal("connecting to redis", err)
		}
		defer client.Close()
		locker = locksvc.NewRedisLocker(client, conf.Redis.LockTTL, logger)
	}

	usrSvc := user.NewService(repos.User, conf)
	progSvc := program.NewService(repos.Program, usrSvc)

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:       db.DB,
		usrSvc:   usrSvc,
		grpSvc:   group.NewService(repos.Group, usrSvc, progSvc, locker, mailSvc, logger, conf),
		validate: validate,
		out:      os.Stdout,
	}
	err = cli.run(os.Args)

	logger.Wait()
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("command failed", err)
		}
		os.Exit(1)
	}
}
