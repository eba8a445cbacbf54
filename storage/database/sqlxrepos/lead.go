package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/crm"
)

type leadRow struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	Email         null.String    `db:"email"`
	Phone         null.String    `db:"phone"`
	Notes         null.String    `db:"notes"`
	PipelineID    string         `db:"pipeline_id"`
	ColumnID      null.String    `db:"column_id"`
	ResponsibleID null.String    `db:"responsible_id"`
	Tags          pq.StringArray `db:"tags"`
	ContactStatus null.String    `db:"contact_status"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func rowFromLead(lead crm.Lead) leadRow {
	return leadRow{
		ID:            lead.ID,
		Name:          lead.Name,
		Email:         null.NewString(lead.Email, lead.Email != ""),
		Phone:         null.NewString(lead.Phone, lead.Phone != ""),
		Notes:         null.NewString(lead.Notes, lead.Notes != ""),
		PipelineID:    lead.PipelineID,
		ColumnID:      null.NewString(lead.ColumnID, lead.ColumnID != ""),
		ResponsibleID: null.NewString(lead.ResponsibleID, lead.ResponsibleID != ""),
		Tags:          lead.Tags,
		ContactStatus: null.NewString(lead.ContactStatus, lead.ContactStatus != ""),
		CreatedAt:     lead.CreatedAt.UTC(),
		UpdatedAt:     lead.UpdatedAt.UTC(),
	}
}

func (r leadRow) lead() crm.Lead {
	return crm.Lead{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email.String,
		Phone:         r.Phone.String,
		Notes:         r.Notes.String,
		PipelineID:    r.PipelineID,
		ColumnID:      r.ColumnID.String,
		ResponsibleID: r.ResponsibleID.String,
		Tags:          r.Tags,
		ContactStatus: r.ContactStatus.String,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type leadRepository struct {
	db *sqlx.DB
}

var _ crm.LeadRepository = (*leadRepository)(nil) // interface compliance check

func NewLeadRepository(db *sqlx.DB) *leadRepository {
	return &leadRepository{db: db}
}

func (repo leadRepository) CreateLead(ctx context.Context, lead crm.Lead) (crm.Lead, error) {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO crm_leads (id, name, email, phone, notes, pipeline_id, column_id, responsible_id, tags, contact_status, created_at, updated_at)
		VALUES (:id, :name, :email, :phone, :notes, :pipeline_id, :column_id, :responsible_id, :tags, :contact_status, :created_at, :updated_at)`,
		rowFromLead(lead))
	if err != nil {
		return crm.Lead{}, errors.Wrap(err, "inserting lead")
	}
	return lead, nil
}

func (repo leadRepository) GetLeadByID(ctx context.Context, id string) (crm.Lead, error) {
	var row leadRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM crm_leads WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return crm.Lead{}, crm.ErrLeadNotFound
		}
		return crm.Lead{}, errors.Wrap(err, "fetching lead")
	}
	return row.lead(), nil
}

func (repo leadRepository) FilterLeads(ctx context.Context, filter crm.QueryFilter, orderings ...core.DBOrdering) ([]crm.Lead, error) {
	query := "SELECT * FROM crm_leads"
	var clauses []string
	var args []interface{}

	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		clauses = append(clauses, fmt.Sprintf("(name ILIKE %[1]s OR email ILIKE %[1]s OR phone ILIKE %[1]s)", p))
	}
	if filter.PipelineID != "" {
		clauses = append(clauses, "pipeline_id = "+arg(filter.PipelineID))
	}
	if filter.ColumnID != "" {
		clauses = append(clauses, "column_id = "+arg(filter.ColumnID))
	}
	if filter.ResponsibleID != "" {
		clauses = append(clauses, "responsible_id = "+arg(filter.ResponsibleID))
	}
	if len(filter.Tags) > 0 {
		clauses = append(clauses, "tags @> "+arg(pq.StringArray(filter.Tags)))
	}
	if filter.ContactStatus != "" {
		clauses = append(clauses, "contact_status = "+arg(filter.ContactStatus))
	}
	if !filter.CreatedFrom.IsZero() {
		clauses = append(clauses, "created_at >= "+arg(filter.CreatedFrom.UTC()))
	}
	if !filter.CreatedTo.IsZero() {
		clauses = append(clauses, "created_at <= "+arg(filter.CreatedTo.UTC()))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	if len(orderings) > 0 {
		ords := make([]string, 0, len(orderings))
		for _, ord := range orderings {
			ords = append(ords, ord.String())
		}
		query += " ORDER BY " + strings.Join(ords, ", ")
	} else {
		query += " ORDER BY created_at DESC"
	}

	var rows []leadRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering leads")
	}
	leads := make([]crm.Lead, 0, len(rows))
	for _, row := range rows {
		leads = append(leads, row.lead())
	}
	return leads, nil
}

func (repo leadRepository) UpdateLead(ctx context.Context, lead crm.Lead) (crm.Lead, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE crm_leads
		SET name = :name, email = :email, phone = :phone, notes = :notes, responsible_id = :responsible_id,
		    tags = :tags, contact_status = :contact_status, updated_at = :updated_at
		WHERE id = :id`,
		rowFromLead(lead))
	if err != nil {
		return crm.Lead{}, errors.Wrap(err, "updating lead")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return crm.Lead{}, crm.ErrLeadNotFound
	}
	return repo.GetLeadByID(ctx, lead.ID)
}

func (repo leadRepository) UpdateLeadColumn(ctx context.Context, leadID, columnID string, updatedAt time.Time) (crm.Lead, error) {
	var row leadRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE crm_leads
		SET column_id = $1, updated_at = $2
		WHERE id = $3
		RETURNING *`,
		columnID, updatedAt.UTC(), leadID)
	if err != nil {
		// zero rows affected signals a permission or concurrent-delete race
		if err == sql.ErrNoRows {
			return crm.Lead{}, crm.ErrLeadGone
		}
		return crm.Lead{}, errors.Wrap(err, "moving lead")
	}
	return row.lead(), nil
}

func (repo leadRepository) DeleteLeadsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM crm_leads WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	_, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	return errors.Wrap(err, "deleting leads")
}
