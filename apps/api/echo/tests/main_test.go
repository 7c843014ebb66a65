package tests

import (
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/MC-tan/school-database-app/apps/api/echo"
	"github.com/MC-tan/school-database-app/core"
	"github.com/MC-tan/school-database-app/core/student"
	"github.com/MC-tan/school-database-app/core/user"
	"github.com/MC-tan/school-database-app/services/email"
	"github.com/MC-tan/school-database-app/services/logger"
	"github.com/MC-tan/school-database-app/storage/database/inmem"
)

var (
	conf        *core.Config
	db          *inmemdb.DB
	app         *echoapi.Server
	usrRepo     user.Repository
	usrSvc      *user.Service
	studentRepo student.Repository
	mailSvc     *emailsvc.ConsoleServiceMock

	// testNow is the clock of the student service and of the exports.
	testNow = time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

func TestMain(m *testing.M) {
	conf = core.NewTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	logger.Enable(false)

	// set up DB & repos
	db = inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	studentRepo = inmemdb.NewStudentRepository(db)

	// set up validators
	validate := validator.New()
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	student.InitValidators(validate, translator, conf.School)

	// set up services
	core.ParseEmailTemplates(conf, logger)
	user.LoadCommonPasswords(logger)
	mailSvc = emailsvc.NewConsoleServiceMock(conf)
	usrSvc = user.NewService(usrRepo, mailSvc, conf)
	studentSvc := student.NewService(studentRepo, validate, logger).WithClock(func() time.Time { return testNow })

	// set up server
	app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		StudentSvc:     studentSvc,
		MailSvc:        mailSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		NowFunc:        func() time.Time { return testNow },
	})

	code := m.Run()
	_ = app.Close()
	os.Exit(code)
}
