package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/student"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/user"
)

type studentApi struct {
	svc      *student.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := studentApi{
		svc:      deps.StudentSvc,
		validate: deps.Validate,
	}

	sg := g.Group("/students", jwt, staffMiddleware(user.RoleAdmin, user.RoleAdminOwner, user.RoleMentor))

	sg.POST("", api.create)
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve)
	sg.POST("/:id/status", api.setStatus)
	sg.POST("/:id/enrollments", api.enroll)
	sg.GET("/:id/enrollments", api.enrollments)
}

// Handlers

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	st, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := new(student.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []student.Student{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	students, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	st, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) setStatus(ctx echo.Context) error {
	var data StudentStatusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StudentStatusRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	st, err := api.svc.SetStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *studentApi) enroll(ctx echo.Context) error {
	var data student.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	data.StudentID = ctx.Param("id")
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *studentApi) enrollments(ctx echo.Context) error {
	enrs, err := api.svc.Enrollments(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrs == nil {
		enrs = []student.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}

type StudentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}
