package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/ingest"
	"github.com/trezcool/investiga/core/research"
	"github.com/trezcool/investiga/core/user"
	cachesvc "github.com/trezcool/investiga/services/cache"
	emailsvc "github.com/trezcool/investiga/services/email"
	logsvc "github.com/trezcool/investiga/services/logger"
	"github.com/trezcool/investiga/storage/database"
	sqlxrepos "github.com/trezcool/investiga/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()
	appLogger := logsvc.NewRollbarLogger(logger, conf)

	// set up DB
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	errAndDie(database.CreateIfNotExist(ctx, conf))
	db, err := database.Connect(ctx, conf)
	cancel()
	errAndDie(err)

	translator, _ := ut.New(en.New(), en.New()).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	mailSvc := emailsvc.NewConsoleService(conf, appLogger, log.New(os.Stdout, "MAIL : ", log.LstdFlags))
	usrSvc := user.NewService(
		sqlxrepos.NewUserRepository(db), sqlxrepos.NewRoleRepository(db), cachesvc.NewMemoryCache(), mailSvc, conf,
	)
	researchSvc := research.NewService(sqlxrepos.NewResearchRepository(db))

	// start CLI
	cli := commandLine{
		db:        db.DB,
		usrSvc:    usrSvc,
		ingestSvc: ingest.NewService(usrSvc, researchSvc, validate, translator),
		validate:  validate,
		out:       os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %+v\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatalf("%+v", err)
	}
}
