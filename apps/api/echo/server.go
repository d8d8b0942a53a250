package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

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
)

type (
	// Deps holds everything the handlers need.
	Deps struct {
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

	Server struct {
		*http.Server
		app      *echo.Echo
		deps     *Deps
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps *Deps) *Server {
	s := &Server{
		app:      echo.New(),
		deps:     deps,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.Server = &http.Server{
		Addr:    deps.Conf.Server.Address,
		Handler: s.app,
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug && !conf.TestMode
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Server.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
	}))
	s.app.Use(middleware.BodyLimit(bodyLimit(conf.Upload.MaxSize)))

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	authn := newAuthenticator(s.deps)
	authed := v1.Group("", authn.jwt(), authn.session)

	registerAuthAPI(v1, authed, authn)
	registerFileAPI(v1, s.deps)
	registerUserAPI(v1, authed, s.deps)
	registerRoleAPI(authed, s.deps)
	registerThesisAPI(authed, s.deps)
	registerResearchAPI(authed, s.deps)
	registerPeriodAPI(authed, s.deps)
	registerScholarshipAPI(authed, s.deps)
	registerFundingAPI(authed, s.deps)
	registerAnnouncementAPI(authed, s.deps)
	registerIngestAPI(authed, s.deps)
}

// Start listens until the server is shut down, failures are sent to Errors.
func (s *Server) Start() {
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the app to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.Server.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Investiga API!")
}
