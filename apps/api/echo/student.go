package echoapi

import (
	"bytes"
	"mime"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/MC-tan/school-database-app/core"
	"github.com/MC-tan/school-database-app/core/student"
	"github.com/MC-tan/school-database-app/core/user"
	exportsvc "github.com/MC-tan/school-database-app/services/export"
)

var (
	errStudentNotFoundInCtx = errors.New("student object not found in echo.Context")
	errNoEmailAddress       = "your account has no email address"
	errGradeNotANumber      = "grade must be a number"

	rosterSentText = "The roster has been sent to your email address."
)

type studentApi struct {
	conf    *core.Config
	svc     student.ServiceInterface
	usrSvc  user.ServiceInterface
	mailSvc core.EmailService
	nowFunc func() time.Time
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{
		conf:    deps.Conf,
		svc:     deps.StudentSvc,
		usrSvc:  deps.UserSvc,
		mailSvc: deps.MailSvc,
		nowFunc: deps.NowFunc,
	}

	sg := g.Group("/students", jwt, staffMiddleware(api.usrSvc))
	sg.GET("", api.query)
	sg.POST("", api.create)
	sg.DELETE("", api.destroyMultiple, adminMiddleware())
	sg.POST("/validate", api.validate)
	sg.GET("/stats", api.stats)
	sg.GET("/sections", api.sections)
	sg.GET("/grades", api.grades)
	sg.GET("/export", api.export)
	sg.POST("/export/email", api.emailExport)

	// detail endpoints
	dg := sg.Group("/:id", studentObjectMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.GET("/siblings", api.siblings)
	dg.PUT("/siblings", api.replaceSiblings)
}

func (api *studentApi) bindFilter(ctx echo.Context) (*student.QueryFilter, []core.DBOrdering, error) {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return nil, nil, core.NewValidationError(err, core.FieldError{Field: "grade", Error: errGradeNotANumber})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)
	return filter, ordering.Orderings, nil
}

func (api *studentApi) query(ctx echo.Context) error {
	filter, ordering, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}
	students, err := api.svc.Query(ctx.Request().Context(), filter, ordering)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	s, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, s)
}

// validate runs the checks of create, or of update when the `id` query param names the edited student.
func (api *studentApi) validate(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	editingID := null.NewString(ctx.QueryParam("id"), ctx.QueryParam("id") != "")
	if err := api.svc.Validate(ctx.Request().Context(), data, editingID); err != nil {
		return errors.Wrap(err, "validating student")
	}
	return ctx.JSON(http.StatusOK, ValidationResponse{Valid: true})
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *studentApi) update(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	updated, err := api.svc.Update(ctx.Request().Context(), s.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, updated)
}

func (api *studentApi) destroy(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), s.ID); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting students")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *studentApi) siblings(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	siblings, err := api.svc.Siblings(ctx.Request().Context(), s.ID)
	if err != nil {
		return errors.Wrap(err, "querying siblings")
	}
	return ctx.JSON(http.StatusOK, siblings)
}

func (api *studentApi) replaceSiblings(ctx echo.Context) error {
	s, ok := ctx.Get(contextObjectKey).(student.Student)
	if !ok {
		return errors.Wrap(errStudentNotFoundInCtx, "retrieving object from context")
	}
	var data student.NewSiblings
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSiblings")
	}
	siblings, err := api.svc.ReplaceSiblings(ctx.Request().Context(), s.ID, data)
	if err != nil {
		return errors.Wrap(err, "replacing siblings")
	}
	return ctx.JSON(http.StatusOK, siblings)
}

func (api *studentApi) stats(ctx echo.Context) error {
	filter, _, err := api.bindFilter(ctx)
	if err != nil {
		return err
	}
	stats, err := api.svc.Stats(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *studentApi) sections(ctx echo.Context) error {
	var grade int
	if g := ctx.QueryParam("grade"); g != "" {
		var err error
		if grade, err = strconv.Atoi(g); err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "grade", Error: errGradeNotANumber})
		}
	}
	sections, err := api.svc.Sections(ctx.Request().Context(), grade)
	if err != nil {
		return errors.Wrap(err, "querying sections")
	}
	return ctx.JSON(http.StatusOK, sections)
}

func (api *studentApi) grades(ctx echo.Context) error {
	grades, err := api.svc.Grades(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying grades")
	}
	return ctx.JSON(http.StatusOK, grades)
}

// roster writes the filtered roster to a new workbook.
func (api *studentApi) roster(ctx echo.Context) (*bytes.Buffer, string, int, error) {
	filter, ordering, err := api.bindFilter(ctx)
	if err != nil {
		return nil, "", 0, err
	}
	students, err := api.svc.Query(ctx.Request().Context(), filter, ordering)
	if err != nil {
		return nil, "", 0, errors.Wrap(err, "querying students")
	}

	now := api.nowFunc()
	var buf bytes.Buffer
	if err = exportsvc.WriteRoster(&buf, api.conf.School.ExportSheetName, students, now); err != nil {
		return nil, "", 0, errors.Wrap(err, "writing roster")
	}
	return &buf, exportsvc.RosterFilename(*filter, now), len(students), nil
}

func (api *studentApi) export(ctx echo.Context) error {
	buf, filename, _, err := api.roster(ctx)
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(
		echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": filename}),
	)
	return ctx.Blob(http.StatusOK, exportsvc.ContentType, buf.Bytes())
}

// emailExport sends the roster to the logged in user.
func (api *studentApi) emailExport(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctxUsr.Email == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "email", Error: errNoEmailAddress})
	}

	buf, filename, count, err := api.roster(ctx)
	if err != nil {
		return err
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: ctxUsr.Name, Address: ctxUsr.Email}},
		Subject:      "Student roster",
		TemplateName: "roster_export",
		TemplateData: rosterExportData{Name: ctxUsr.Name, Filename: filename, Count: count},
	}
	if err = msg.Attach(buf, filename, exportsvc.ContentType); err != nil {
		return errors.Wrap(err, "attaching roster")
	}
	api.mailSvc.SendMessages(msg)
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: rosterSentText})
}

type (
	ValidationResponse struct {
		Valid bool `json:"valid"`
	}

	rosterExportData struct {
		Name     string
		Filename string
		Count    int
	}
)
