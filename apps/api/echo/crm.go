package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/crm"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/user"
)

type crmApi struct {
	svc        *crm.Service
	mover      *crm.Mover
	validate   *validator.Validate
	translator ut.Translator
}

func registerCrmAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := crmApi{
		svc:        deps.CrmSvc,
		mover:      deps.Mover,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	// the whole CRM is staff-only
	cg := g.Group("/crm", jwt, staffMiddleware(user.RoleAdmin, user.RoleAdminOwner, user.RoleMentor))

	cg.GET("/board", api.board)

	lg := cg.Group("/leads")
	lg.POST("", api.createLead)
	lg.GET("", api.queryLeads)
	lg.DELETE("", api.destroyLeads)
	lg.GET("/:id", api.retrieveLead)
	lg.PUT("/:id", api.updateLead)
	lg.POST("/:id/move", api.moveLead)

	pg := cg.Group("/pipelines")
	pg.POST("", api.createPipeline)
	pg.GET("", api.queryPipelines)
	pg.GET("/:id/columns", api.queryColumns)

	colg := cg.Group("/columns")
	colg.POST("", api.createColumn)
	colg.POST("/:id/deactivate", api.deactivateColumn)
}

// Handlers

// board returns the filtered lead list and primes the board snapshot used by
// subsequent movement operations on the same filter.
func (api *crmApi) board(ctx echo.Context) error {
	filter := new(crm.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []crm.Lead{})
	}
	filter.Clean()

	leads, err := api.svc.LoadBoard(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "loading board")
	}
	if leads == nil {
		leads = []crm.Lead{}
	}
	return ctx.JSON(http.StatusOK, leads)
}

func (api *crmApi) createLead(ctx echo.Context) error {
	var data crm.NewLead
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLead")
	}
	if err := data.Validate(api.validate, api.translator); err != nil {
		return err
	}

	lead, err := api.svc.CreateLead(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating lead")
	}
	return ctx.JSON(http.StatusCreated, lead)
}

func (api *crmApi) queryLeads(ctx echo.Context) error {
	filter := new(crm.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []crm.Lead{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	leads, err := api.svc.QueryLeads(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying leads")
	}
	if leads == nil {
		leads = []crm.Lead{}
	}
	return ctx.JSON(http.StatusOK, leads)
}

func (api *crmApi) retrieveLead(ctx echo.Context) error {
	lead, err := api.svc.GetLead(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lead)
}

func (api *crmApi) updateLead(ctx echo.Context) error {
	orig, err := api.svc.GetLead(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	var data crm.UpdateLead
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLead")
	}
	if err := data.Validate(api.validate, orig); err != nil {
		return err
	}

	lead, err := api.svc.UpdateLead(ctx.Request().Context(), orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating lead")
	}
	return ctx.JSON(http.StatusOK, lead)
}

func (api *crmApi) destroyLeads(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.DeleteLeads(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting leads")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// moveLead runs the optimistic movement protocol against the board view the
// caller is currently looking at; the filter fields identify that view.
func (api *crmApi) moveLead(ctx echo.Context) error {
	var data MoveLeadRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MoveLeadRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	sig := crm.FilterSignature{
		PipelineID:    data.PipelineID,
		ResponsibleID: data.ResponsibleID,
		Tags:          data.Tags,
		Search:        data.Search,
		ContactStatus: data.ContactStatus,
	}
	res, err := api.mover.MoveLeadToColumn(ctx.Request().Context(), sig, ctx.Param("id"), data.TargetColumnID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *crmApi) createPipeline(ctx echo.Context) error {
	var data NewPipelineRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPipelineRequest")
	}

	pipeline, err := api.svc.CreatePipeline(ctx.Request().Context(), data.Name)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, pipeline)
}

func (api *crmApi) queryPipelines(ctx echo.Context) error {
	pipelines, err := api.svc.QueryPipelines(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pipelines")
	}
	if pipelines == nil {
		pipelines = []crm.Pipeline{}
	}
	return ctx.JSON(http.StatusOK, pipelines)
}

func (api *crmApi) queryColumns(ctx echo.Context) error {
	columns, err := api.svc.QueryColumns(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying columns")
	}
	if columns == nil {
		columns = []crm.Column{}
	}
	return ctx.JSON(http.StatusOK, columns)
}

func (api *crmApi) createColumn(ctx echo.Context) error {
	var data crm.NewColumn
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewColumn")
	}

	column, err := api.svc.CreateColumn(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, column)
}

func (api *crmApi) deactivateColumn(ctx echo.Context) error {
	column, err := api.svc.DeactivateColumn(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, column)
}

type (
	// MoveLeadRequest carries the movement target plus the filter of the board
	// view the move was initiated from.
	MoveLeadRequest struct {
		TargetColumnID string `json:"target_column_id" validate:"required"`

		PipelineID    string   `json:"pipeline_id"`
		ResponsibleID string   `json:"responsible_id"`
		Tags          []string `json:"tags"`
		Search        string   `json:"search"`
		ContactStatus string   `json:"contact_status"`
	}

	NewPipelineRequest struct {
		Name string `json:"name"`
	}
)
