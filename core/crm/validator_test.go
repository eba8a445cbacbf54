package crm

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
)

type fakeCatalog struct {
	CatalogRepository

	columns map[string]Column
}

func (c *fakeCatalog) GetColumnByID(_ context.Context, id string) (Column, error) {
	col, ok := c.columns[id]
	if !ok {
		return Column{}, ErrColumnNotFound
	}
	return col, nil
}

func TestValidateTarget(t *testing.T) {
	catalog := &fakeCatalog{columns: map[string]Column{
		"c1": {ID: "c1", Name: "New", PipelineID: "p1", IsActive: true},
		"c2": {ID: "c2", Name: "Won", PipelineID: "p2", IsActive: true},
		"c3": {ID: "c3", Name: "Archived", PipelineID: "p1", IsActive: false},
	}}
	svc := NewService(nil, catalog, NewBoardCache(), nil)
	ctx := context.Background()

	tests := []struct {
		name         string
		targetID     string
		pipelineID   string
		wantErr      error
		wantMismatch bool
	}{
		{name: "active column in pipeline", targetID: "c1", pipelineID: "p1"},
		{name: "empty pipeline skips affinity check", targetID: "c2", pipelineID: ""},
		{name: "unknown column", targetID: "nope", pipelineID: "p1", wantErr: ErrColumnNotFound},
		{name: "inactive column", targetID: "c3", pipelineID: "p1", wantErr: ErrColumnInactive},
		{name: "cross-pipeline column", targetID: "c2", pipelineID: "p1", wantMismatch: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, err := svc.ValidateTarget(ctx, tt.targetID, tt.pipelineID)
			if tt.wantMismatch {
				var mismatch *PipelineMismatchError
				if !errors.As(err, &mismatch) {
					t.Fatalf("ValidateTarget() error = %v, want PipelineMismatchError", err)
				}
				if mismatch.ColumnName != "Won" {
					t.Errorf("mismatch column = %q, want Won", mismatch.ColumnName)
				}
				return
			}
			if errors.Cause(err) != tt.wantErr {
				t.Fatalf("ValidateTarget() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && col.ID != tt.targetID {
				t.Errorf("column = %+v, want %v", col, tt.targetID)
			}
		})
	}
}

func TestValidateTargetRequiresColumnID(t *testing.T) {
	svc := NewService(nil, &fakeCatalog{}, NewBoardCache(), nil)
	_, err := svc.ValidateTarget(context.Background(), "", "p1")
	if err == nil {
		t.Fatal("ValidateTarget() error = nil, want validation error")
	}
	if _, ok := errors.Cause(err).(*core.ValidationError); !ok {
		t.Errorf("error = %T, want *core.ValidationError", err)
	}
}
