package crm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
)

var (
	// errors
	ErrLeadNotFound     = errors.New("lead not found")
	ErrPipelineNotFound = errors.New("pipeline not found")
	ErrColumnNotFound   = errors.New("target column not found")
	ErrColumnInactive   = errors.New("target column is inactive")

	// ErrLeadGone signals a conditional update that matched no rows: the lead
	// was deleted concurrently or the caller lacks permission on it.
	ErrLeadGone = errors.New("lead no longer exists or is not accessible")
)

// PipelineMismatchError rejects a cross-pipeline move. It carries the column
// name for error display.
type PipelineMismatchError struct {
	ColumnName string
}

func (e *PipelineMismatchError) Error() string {
	return fmt.Sprintf("column %q belongs to a different pipeline", e.ColumnName)
}

type (
	LeadRepository interface {
		CreateLead(ctx context.Context, lead Lead) (Lead, error)
		GetLeadByID(ctx context.Context, id string) (Lead, error)
		// FilterLeads applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// Lead.Name, Lead.Email or Lead.Phone.
		FilterLeads(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Lead, error)
		UpdateLead(ctx context.Context, lead Lead) (Lead, error)
		// UpdateLeadColumn conditionally sets column_id and updated_at on the
		// row matched by leadID. Zero rows affected yields ErrLeadGone.
		UpdateLeadColumn(ctx context.Context, leadID, columnID string, updatedAt time.Time) (Lead, error)
		DeleteLeadsByID(ctx context.Context, ids ...string) error
	}

	CatalogRepository interface {
		CreatePipeline(ctx context.Context, pipeline Pipeline) (Pipeline, error)
		QueryPipelines(ctx context.Context) ([]Pipeline, error)
		GetPipelineByID(ctx context.Context, id string) (Pipeline, error)
		CreateColumn(ctx context.Context, column Column) (Column, error)
		GetColumnByID(ctx context.Context, id string) (Column, error)
		// QueryColumns returns a pipeline's columns ordered by sort_order.
		QueryColumns(ctx context.Context, pipelineID string) ([]Column, error)
		UpdateColumn(ctx context.Context, column Column) (Column, error)
	}

	Service struct {
		leads    LeadRepository
		catalog  CatalogRepository
		cache    BoardCache
		validate *validator.Validate
	}
)

func NewService(leads LeadRepository, catalog CatalogRepository, cache BoardCache, validate *validator.Validate) *Service {
	return &Service{leads: leads, catalog: catalog, cache: cache, validate: validate}
}

func (svc *Service) Cache() BoardCache { return svc.cache }

// Leads

func (svc *Service) CreateLead(ctx context.Context, nl NewLead) (Lead, error) {
	if nl.ColumnID != "" {
		if _, err := svc.ValidateTarget(ctx, nl.ColumnID, nl.PipelineID); err != nil {
			return Lead{}, err
		}
	}
	now := time.Now().UTC()
	lead := Lead{
		ID:            uuid.NewString(),
		Name:          nl.Name,
		Email:         nl.Email,
		Phone:         nl.Phone,
		Notes:         nl.Notes,
		PipelineID:    nl.PipelineID,
		ColumnID:      nl.ColumnID,
		ResponsibleID: nl.ResponsibleID,
		Tags:          nl.Tags,
		ContactStatus: nl.ContactStatus,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.leads.CreateLead(ctx, lead)
}

func (svc *Service) GetLead(ctx context.Context, id string) (Lead, error) {
	return svc.leads.GetLeadByID(ctx, id)
}

func (svc *Service) QueryLeads(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]Lead, error) {
	return svc.leads.FilterLeads(ctx, *filter, orderings...)
}

func (svc *Service) UpdateLead(ctx context.Context, id string, ul UpdateLead) (Lead, error) {
	orig, err := svc.leads.GetLeadByID(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	orig.Name = ul.Name
	orig.Email = ul.Email
	orig.Phone = ul.Phone
	orig.Notes = ul.Notes
	orig.ResponsibleID = ul.ResponsibleID
	orig.Tags = ul.Tags
	orig.ContactStatus = ul.ContactStatus
	orig.UpdatedAt = time.Now().UTC()
	return svc.leads.UpdateLead(ctx, orig)
}

func (svc *Service) DeleteLeads(ctx context.Context, ids ...string) error {
	if err := svc.leads.DeleteLeadsByID(ctx, ids...); err != nil {
		return err
	}
	svc.cache.InvalidateAll()
	return nil
}

// LoadBoard reads the filtered lead list from the store and seeds the board
// cache snapshot for the filter's signature.
func (svc *Service) LoadBoard(ctx context.Context, filter *QueryFilter) ([]Lead, error) {
	sig := filter.Signature()
	if leads, ok := svc.cache.Snapshot(sig); ok {
		return leads, nil
	}
	leads, err := svc.leads.FilterLeads(ctx, *filter)
	if err != nil {
		return nil, errors.Wrap(err, "loading board")
	}
	svc.cache.Put(sig, leads)
	return leads, nil
}

// Catalog

func (svc *Service) CreatePipeline(ctx context.Context, name string) (Pipeline, error) {
	name = core.CleanString(name)
	if name == "" {
		return Pipeline{}, core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field is required"})
	}
	now := time.Now().UTC()
	return svc.catalog.CreatePipeline(ctx, Pipeline{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now})
}

func (svc *Service) QueryPipelines(ctx context.Context) ([]Pipeline, error) {
	return svc.catalog.QueryPipelines(ctx)
}

func (svc *Service) CreateColumn(ctx context.Context, nc NewColumn) (Column, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Column{}, err
	}
	if _, err := svc.catalog.GetPipelineByID(ctx, nc.PipelineID); err != nil {
		return Column{}, err
	}
	now := time.Now().UTC()
	col := Column{
		ID:         uuid.NewString(),
		Name:       nc.Name,
		Color:      nc.Color,
		PipelineID: nc.PipelineID,
		SortOrder:  nc.SortOrder,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.catalog.CreateColumn(ctx, col)
}

func (svc *Service) QueryColumns(ctx context.Context, pipelineID string) ([]Column, error) {
	return svc.catalog.QueryColumns(ctx, pipelineID)
}

// DeactivateColumn soft-deletes a column; existing leads keep referencing it
// but it stops being a valid movement target.
func (svc *Service) DeactivateColumn(ctx context.Context, id string) (Column, error) {
	col, err := svc.catalog.GetColumnByID(ctx, id)
	if err != nil {
		return Column{}, err
	}
	col.IsActive = false
	col.UpdatedAt = time.Now().UTC()
	return svc.catalog.UpdateColumn(ctx, col)
}
