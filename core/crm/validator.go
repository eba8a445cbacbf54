package crm

import (
	"context"

	"github.com/pkg/errors"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
)

// ValidateTarget decides whether targetColumnID is a legal movement target
// for a lead living in leadPipelineID. Pure read-and-decide, no side effects.
//
// An empty leadPipelineID skips the pipeline-affinity check. No-op moves
// (target equals the lead's current column) are the caller's job to
// short-circuit; they must never reach this method.
func (svc *Service) ValidateTarget(ctx context.Context, targetColumnID, leadPipelineID string) (Column, error) {
	if targetColumnID == "" {
		return Column{}, core.NewValidationError(nil, core.FieldError{Field: "target_column_id", Error: "this field is required"})
	}

	col, err := svc.catalog.GetColumnByID(ctx, targetColumnID)
	if err != nil {
		if errors.Cause(err) == ErrColumnNotFound {
			return Column{}, ErrColumnNotFound
		}
		return Column{}, errors.Wrap(err, "fetching target column")
	}
	if !col.IsActive {
		return Column{}, ErrColumnInactive
	}
	if leadPipelineID != "" && col.PipelineID != leadPipelineID {
		return Column{}, &PipelineMismatchError{ColumnName: col.Name}
	}
	return col, nil
}
