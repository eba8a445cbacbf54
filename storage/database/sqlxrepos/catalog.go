package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/crm"
)

type (
	pipelineRow struct {
		ID        string    `db:"id"`
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	columnRow struct {
		ID         string      `db:"id"`
		Name       string      `db:"name"`
		Color      null.String `db:"color"`
		PipelineID string      `db:"pipeline_id"`
		SortOrder  int         `db:"sort_order"`
		IsActive   bool        `db:"is_active"`
		CreatedAt  time.Time   `db:"created_at"`
		UpdatedAt  time.Time   `db:"updated_at"`
	}
)

func (r columnRow) column() crm.Column {
	return crm.Column{
		ID:         r.ID,
		Name:       r.Name,
		Color:      r.Color.String,
		PipelineID: r.PipelineID,
		SortOrder:  r.SortOrder,
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// catalogRepository serves pipeline/column reads through an optional redis
// cache-aside layer. Column writes invalidate the cached entry.
type catalogRepository struct {
	db    *sqlx.DB
	cache *redis.Client // nil disables caching
	ttl   time.Duration
}

var _ crm.CatalogRepository = (*catalogRepository)(nil) // interface compliance check

func NewCatalogRepository(db *sqlx.DB, cache *redis.Client, ttl time.Duration) *catalogRepository {
	return &catalogRepository{db: db, cache: cache, ttl: ttl}
}

func columnCacheKey(id string) string { return "crm:column:" + id }

func (repo catalogRepository) cachedColumn(ctx context.Context, id string) (crm.Column, bool) {
	if repo.cache == nil {
		return crm.Column{}, false
	}
	str, err := repo.cache.Get(ctx, columnCacheKey(id)).Result()
	if err != nil {
		// redis.Nil when the key does not exist
		return crm.Column{}, false
	}
	var col crm.Column
	if err = json.Unmarshal([]byte(str), &col); err != nil {
		return crm.Column{}, false
	}
	return col, true
}

func (repo catalogRepository) cacheColumn(ctx context.Context, col crm.Column) {
	if repo.cache == nil {
		return
	}
	data, err := json.Marshal(col)
	if err != nil {
		return
	}
	_ = repo.cache.Set(ctx, columnCacheKey(col.ID), data, repo.ttl).Err()
}

func (repo catalogRepository) dropColumn(ctx context.Context, id string) {
	if repo.cache == nil {
		return
	}
	_ = repo.cache.Del(ctx, columnCacheKey(id)).Err()
}

func (repo catalogRepository) CreatePipeline(ctx context.Context, pipeline crm.Pipeline) (crm.Pipeline, error) {
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO crm_pipelines (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)",
		pipeline.ID, pipeline.Name, pipeline.CreatedAt.UTC(), pipeline.UpdatedAt.UTC())
	if err != nil {
		return crm.Pipeline{}, errors.Wrap(err, "inserting pipeline")
	}
	return pipeline, nil
}

func (repo catalogRepository) QueryPipelines(ctx context.Context) ([]crm.Pipeline, error) {
	var rows []pipelineRow
	if err := repo.db.SelectContext(ctx, &rows, "SELECT * FROM crm_pipelines ORDER BY name"); err != nil {
		return nil, errors.Wrap(err, "querying pipelines")
	}
	pipelines := make([]crm.Pipeline, 0, len(rows))
	for _, row := range rows {
		pipelines = append(pipelines, crm.Pipeline(row))
	}
	return pipelines, nil
}

func (repo catalogRepository) GetPipelineByID(ctx context.Context, id string) (crm.Pipeline, error) {
	var row pipelineRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM crm_pipelines WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return crm.Pipeline{}, crm.ErrPipelineNotFound
		}
		return crm.Pipeline{}, errors.Wrap(err, "fetching pipeline")
	}
	return crm.Pipeline(row), nil
}

func (repo catalogRepository) CreateColumn(ctx context.Context, column crm.Column) (crm.Column, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO crm_columns (id, name, color, pipeline_id, sort_order, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		column.ID, column.Name, null.NewString(column.Color, column.Color != ""),
		column.PipelineID, column.SortOrder, column.IsActive, column.CreatedAt.UTC(), column.UpdatedAt.UTC())
	if err != nil {
		return crm.Column{}, errors.Wrap(err, "inserting column")
	}
	repo.cacheColumn(ctx, column)
	return column, nil
}

func (repo catalogRepository) GetColumnByID(ctx context.Context, id string) (crm.Column, error) {
	if col, ok := repo.cachedColumn(ctx, id); ok {
		return col, nil
	}

	var row columnRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM crm_columns WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return crm.Column{}, crm.ErrColumnNotFound
		}
		return crm.Column{}, errors.Wrap(err, "fetching column")
	}
	col := row.column()
	repo.cacheColumn(ctx, col)
	return col, nil
}

func (repo catalogRepository) QueryColumns(ctx context.Context, pipelineID string) ([]crm.Column, error) {
	var rows []columnRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT * FROM crm_columns WHERE pipeline_id = $1 ORDER BY sort_order", pipelineID)
	if err != nil {
		return nil, errors.Wrap(err, "querying columns")
	}
	columns := make([]crm.Column, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, row.column())
	}
	return columns, nil
}

func (repo catalogRepository) UpdateColumn(ctx context.Context, column crm.Column) (crm.Column, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE crm_columns
		SET name = $1, color = $2, sort_order = $3, is_active = $4, updated_at = $5
		WHERE id = $6`,
		column.Name, null.NewString(column.Color, column.Color != ""),
		column.SortOrder, column.IsActive, column.UpdatedAt.UTC(), column.ID)
	if err != nil {
		return crm.Column{}, errors.Wrap(err, "updating column")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return crm.Column{}, crm.ErrColumnNotFound
	}
	repo.dropColumn(ctx, column.ID)
	return column, nil
}
