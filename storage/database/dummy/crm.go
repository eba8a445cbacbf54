package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/crm"
)

type (
	leadRepository struct {
		db *crmTables
	}

	catalogRepository struct {
		db *crmTables
	}
)

var (
	_ crm.LeadRepository    = (*leadRepository)(nil) // interface compliance checks
	_ crm.CatalogRepository = (*catalogRepository)(nil)
)

func NewLeadRepository(db *DB) crm.LeadRepository {
	return &leadRepository{db: db.crm}
}

func NewCatalogRepository(db *DB) crm.CatalogRepository {
	return &catalogRepository{db: db.crm}
}

// Leads

func (repo *leadRepository) query() []crm.Lead {
	leads := make([]crm.Lead, 0, len(repo.db.leads))
	for _, l := range repo.db.leads {
		leads = append(leads, *l)
	}
	return leads
}

func (repo *leadRepository) CreateLead(_ context.Context, lead crm.Lead) (crm.Lead, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.leads[lead.ID] = &lead
	return lead, nil
}

func (repo *leadRepository) GetLeadByID(_ context.Context, id string) (crm.Lead, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if lead, ok := repo.db.leads[id]; ok {
		return *lead, nil
	}
	return crm.Lead{}, crm.ErrLeadNotFound
}

func (repo *leadRepository) FilterLeads(_ context.Context, filter crm.QueryFilter, orderings ...core.DBOrdering) ([]crm.Lead, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	leads := repo.query()

	if filter.Search != "" {
		var filtered []crm.Lead
		search := strings.ToLower(filter.Search)
		for _, l := range leads {
			if strings.Contains(strings.ToLower(l.Name), search) ||
				strings.Contains(strings.ToLower(l.Email), search) ||
				strings.Contains(strings.ToLower(l.Phone), search) {
				filtered = append(filtered, l)
			}
		}
		leads = filtered
	}
	if leads != nil && filter.PipelineID != "" {
		var filtered []crm.Lead
		for _, l := range leads {
			if l.PipelineID == filter.PipelineID {
				filtered = append(filtered, l)
			}
		}
		leads = filtered
	}
	if leads != nil && filter.ColumnID != "" {
		var filtered []crm.Lead
		for _, l := range leads {
			if l.ColumnID == filter.ColumnID {
				filtered = append(filtered, l)
			}
		}
		leads = filtered
	}
	if leads != nil && filter.ResponsibleID != "" {
		var filtered []crm.Lead
		for _, l := range leads {
			if l.ResponsibleID == filter.ResponsibleID {
				filtered = append(filtered, l)
			}
		}
		leads = filtered
	}
	if leads != nil && len(filter.Tags) > 0 {
		var filtered []crm.Lead
		for _, l := range leads {
			if hasAllTags(l.Tags, filter.Tags) {
				filtered = append(filtered, l)
			}
		}
		leads = filtered
	}
	if leads != nil && filter.ContactStatus != "" {
		var filtered []crm.Lead
		for _, l := range leads {
			if l.ContactStatus == filter.ContactStatus {
				filtered = append(filtered, l)
			}
		}
		leads = filtered
	}
	if leads != nil && !filter.CreatedFrom.IsZero() {
		var filtered []crm.Lead
		timeUTC := filter.CreatedFrom.UTC()
		for _, l := range leads {
			if l.CreatedAt.Equal(timeUTC) || l.CreatedAt.After(timeUTC) {
				filtered = append(filtered, l)
			}
		}
		leads = filtered
	}
	if leads != nil && !filter.CreatedTo.IsZero() {
		var filtered []crm.Lead
		timeUTC := filter.CreatedTo.UTC()
		for _, l := range leads {
			if l.CreatedAt.Before(timeUTC) || l.CreatedAt.Equal(timeUTC) {
				filtered = append(filtered, l)
			}
		}
		leads = filtered
	}

	sort.Slice(leads, func(i, j int) bool { return leads[i].CreatedAt.After(leads[j].CreatedAt) })
	return leads, nil
}

func hasAllTags(tags, wanted []string) bool {
	for _, w := range wanted {
		found := false
		for _, t := range tags {
			if t == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (repo *leadRepository) UpdateLead(_ context.Context, lead crm.Lead) (crm.Lead, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.leads[lead.ID]; !ok {
		return crm.Lead{}, crm.ErrLeadNotFound
	}
	repo.db.leads[lead.ID] = &lead
	return lead, nil
}

func (repo *leadRepository) UpdateLeadColumn(_ context.Context, leadID, columnID string, updatedAt time.Time) (crm.Lead, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	lead, ok := repo.db.leads[leadID]
	if !ok {
		return crm.Lead{}, crm.ErrLeadGone
	}
	lead.ColumnID = columnID
	lead.UpdatedAt = updatedAt
	return *lead, nil
}

func (repo *leadRepository) DeleteLeadsByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.leads, id)
	}
	return nil
}

// Catalog

func (repo *catalogRepository) CreatePipeline(_ context.Context, pipeline crm.Pipeline) (crm.Pipeline, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.pipelines[pipeline.ID] = &pipeline
	return pipeline, nil
}

func (repo *catalogRepository) QueryPipelines(_ context.Context) ([]crm.Pipeline, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	pipelines := make([]crm.Pipeline, 0, len(repo.db.pipelines))
	for _, p := range repo.db.pipelines {
		pipelines = append(pipelines, *p)
	}
	sort.Slice(pipelines, func(i, j int) bool { return pipelines[i].Name < pipelines[j].Name })
	return pipelines, nil
}

func (repo *catalogRepository) GetPipelineByID(_ context.Context, id string) (crm.Pipeline, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if pipeline, ok := repo.db.pipelines[id]; ok {
		return *pipeline, nil
	}
	return crm.Pipeline{}, crm.ErrPipelineNotFound
}

func (repo *catalogRepository) CreateColumn(_ context.Context, column crm.Column) (crm.Column, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.columns[column.ID] = &column
	return column, nil
}

func (repo *catalogRepository) GetColumnByID(_ context.Context, id string) (crm.Column, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if column, ok := repo.db.columns[id]; ok {
		return *column, nil
	}
	return crm.Column{}, crm.ErrColumnNotFound
}

func (repo *catalogRepository) QueryColumns(_ context.Context, pipelineID string) ([]crm.Column, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	columns := make([]crm.Column, 0)
	for _, c := range repo.db.columns {
		if c.PipelineID == pipelineID {
			columns = append(columns, *c)
		}
	}
	sort.Slice(columns, func(i, j int) bool { return columns[i].SortOrder < columns[j].SortOrder })
	return columns, nil
}

func (repo *catalogRepository) UpdateColumn(_ context.Context, column crm.Column) (crm.Column, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.columns[column.ID]; !ok {
		return crm.Column{}, crm.ErrColumnNotFound
	}
	repo.db.columns[column.ID] = &column
	return column, nil
}
