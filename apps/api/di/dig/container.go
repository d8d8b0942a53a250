package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/investiga/apps/api/echo"
	"github.com/trezcool/investiga/core"
	"github.com/trezcool/investiga/core/announcement"
	"github.com/trezcool/investiga/core/funding"
	"github.com/trezcool/investiga/core/ingest"
	"github.com/trezcool/investiga/core/period"
	"github.com/trezcool/investiga/core/research"
	"github.com/trezcool/investiga/core/role"
	"github.com/trezcool/investiga/core/scholarship"
	"github.com/trezcool/investiga/core/thesis"
	"github.com/trezcool/investiga/core/user"
	cachesvc "github.com/trezcool/investiga/services/cache"
	emailsvc "github.com/trezcool/investiga/services/email"
	logsvc "github.com/trezcool/investiga/services/logger"
	storagesvc "github.com/trezcool/investiga/services/storage"
	"github.com/trezcool/investiga/storage/database"
	sqlxrepos "github.com/trezcool/investiga/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// DepsParam gathers what the API handlers need.
type DepsParam struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Cache      core.Cache
	Storage    core.FileStorage

	UserSvc         *user.Service
	RoleSvc         *role.Service
	ThesisSvc       *thesis.Service
	ResearchSvc     *research.Service
	PeriodSvc       *period.Service
	ScholarshipSvc  *scholarship.Service
	FundingSvc      *funding.Service
	AnnouncementSvc *announcement.Service
	IngestSvc       *ingest.Service
}

func newConfig() *core.Config {
	conf := core.NewConfig()
	core.SetPageSizes(conf.Pagination)
	return conf
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}
		db, err := database.Connect(ctx, conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

// newCache uses redis when configured, a process local cache otherwise.
func newCache(conf *core.Config, logger core.Logger) core.Cache {
	if conf.Redis.Address == "" {
		logger.Warn("redis.address not set, using an in-memory cache")
		return cachesvc.NewMemoryCache()
	}
	c := cachesvc.NewRedisCache(conf)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	return c
}

func newStorage(conf *core.Config, logger core.Logger) core.FileStorage {
	s, err := storagesvc.NewLocalStorage(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}
	return s
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug || conf.SendgridAPIKey == "" {
		return emailsvc.NewConsoleService(conf, logger, log.New(os.Stdout, "MAIL : ", log.LstdFlags))
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

// newRoleService drops the cached role lookups whenever roles change.
func newRoleService(repo role.Repository, users *user.Service) *role.Service {
	svc := role.NewService(repo)
	svc.OnChange(users.InvalidateRoleLookups)
	return svc
}

func newScholarshipService(
	repo scholarship.Repository, periods period.Repository, users *user.Service,
	storage core.FileStorage, mailSvc core.EmailService, logger core.Logger,
) *scholarship.Service {
	return scholarship.NewService(repo, periods, users, storage, mailSvc, logger)
}

func newFundingService(
	repo funding.Repository, users *user.Service, storage core.FileStorage, mailSvc core.EmailService, logger core.Logger,
) *funding.Service {
	return funding.NewService(repo, users, storage, mailSvc, logger)
}

func newDeps(p DepsParam) *echoapi.Deps {
	return &echoapi.Deps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		Validate:        p.Validate,
		Translator:      p.Translator,
		Cache:           p.Cache,
		Storage:         p.Storage,
		UserSvc:         p.UserSvc,
		RoleSvc:         p.RoleSvc,
		ThesisSvc:       p.ThesisSvc,
		ResearchSvc:     p.ResearchSvc,
		PeriodSvc:       p.PeriodSvc,
		ScholarshipSvc:  p.ScholarshipSvc,
		FundingSvc:      p.FundingSvc,
		AnnouncementSvc: p.AnnouncementSvc,
		IngestSvc:       p.IngestSvc,
	}
}

// New returns a new dependency injection dig.Container.
// Providers are lazy, the database is only opened once something asks for it.
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newCache))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(NewTranslator))
	must(c.Provide(NewValidator))

	// repositories
	must(c.Provide(sqlxrepos.NewRoleRepository))
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewThesisRepository))
	must(c.Provide(sqlxrepos.NewResearchRepository))
	must(c.Provide(sqlxrepos.NewPeriodRepository))
	must(c.Provide(sqlxrepos.NewScholarshipRepository))
	must(c.Provide(sqlxrepos.NewFundingRepository))
	must(c.Provide(sqlxrepos.NewAnnouncementRepository))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(newRoleService))
	must(c.Provide(thesis.NewService))
	must(c.Provide(research.NewService))
	must(c.Provide(period.NewService))
	must(c.Provide(newScholarshipService))
	must(c.Provide(newFundingService))
	must(c.Provide(announcement.NewService))
	must(c.Provide(ingest.NewService))

	must(c.Provide(newDeps))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
