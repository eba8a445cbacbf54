package crm

import (
	"sort"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
)

// Contact statuses a lead can be tagged with.
const (
	ContactStatusPending   = "pending"
	ContactStatusContacted = "contacted"
	ContactStatusNoAnswer  = "no_answer"
)

type Pipeline struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Column is one stage of a pipeline. Inactive columns stay on record for
// history but are invalid movement targets.
type Column struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	PipelineID string    `json:"pipeline_id"`
	SortOrder  int       `json:"sort_order"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

// Lead is a CRM contact tracked through pipeline stages.
// Invariant: a non-empty ColumnID references a column of the lead's pipeline.
type Lead struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Notes         string    `json:"notes"`
	PipelineID    string    `json:"pipeline_id"`
	ColumnID      string    `json:"column_id"`
	ResponsibleID string    `json:"responsible_id"`
	Tags          []string  `json:"tags"`
	ContactStatus string    `json:"contact_status"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

// FilterSignature identifies one filtered board view; it keys board cache
// snapshots.
type FilterSignature struct {
	PipelineID    string
	ResponsibleID string
	Tags          []string
	Search        string
	ContactStatus string
}

// Key returns a stable string encoding of the signature. Tag order is
// normalized so two signatures differing only in tag order share a snapshot.
func (sig FilterSignature) Key() string {
	tags := make([]string, len(sig.Tags))
	copy(tags, sig.Tags)
	sort.Strings(tags)

	var b strings.Builder
	b.WriteString("p=")
	b.WriteString(sig.PipelineID)
	b.WriteString("|r=")
	b.WriteString(sig.ResponsibleID)
	b.WriteString("|t=")
	b.WriteString(strings.Join(tags, ","))
	b.WriteString("|s=")
	b.WriteString(strings.ToLower(strings.TrimSpace(sig.Search)))
	b.WriteString("|c=")
	b.WriteString(sig.ContactStatus)
	return b.String()
}

// NewLead contains information needed to create a new Lead.
type NewLead struct {
	Name          string   `json:"name" validate:"required"`
	Email         string   `json:"email" validate:"omitempty,email"`
	Phone         string   `json:"phone"`
	Notes         string   `json:"notes"`
	PipelineID    string   `json:"pipeline_id" validate:"required"`
	ColumnID      string   `json:"column_id"`
	ResponsibleID string   `json:"responsible_id"`
	Tags          []string `json:"tags"`
	ContactStatus string   `json:"contact_status" validate:"omitempty,oneof=pending contacted no_answer"`
}

func (nl *NewLead) Validate(validate *validator.Validate, _ ut.Translator) error {
	nl.Name = core.CleanString(nl.Name)
	nl.Email = core.CleanString(nl.Email, true /* lower */)
	nl.Phone = core.CleanString(nl.Phone)
	return validate.Struct(nl)
}

// UpdateLead defines what information may be provided to modify an existing Lead.
// Column movement has its own dedicated endpoint and is not accepted here.
type UpdateLead struct {
	Name          string   `json:"name"`
	Email         string   `json:"email" validate:"omitempty,email"`
	Phone         string   `json:"phone"`
	Notes         string   `json:"notes"`
	ResponsibleID string   `json:"responsible_id"`
	Tags          []string `json:"tags"`
	ContactStatus string   `json:"contact_status" validate:"omitempty,oneof=pending contacted no_answer"`
}

func (ul *UpdateLead) Validate(validate *validator.Validate, origLead Lead) error {
	if name := core.CleanString(ul.Name); name != "" {
		ul.Name = name
	} else {
		ul.Name = origLead.Name
	}
	if email := core.CleanString(ul.Email, true /* lower */); email != "" {
		ul.Email = email
	} else {
		ul.Email = origLead.Email
	}
	return validate.Struct(ul)
}

// NewColumn contains information needed to create a new pipeline Column.
type NewColumn struct {
	Name       string `json:"name" validate:"required"`
	Color      string `json:"color"`
	PipelineID string `json:"pipeline_id" validate:"required"`
	SortOrder  int    `json:"sort_order"`
}

func (nc *NewColumn) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

// QueryFilter narrows lead listings. Zero values are skipped.
type QueryFilter struct {
	Search        string    `query:"search"`
	PipelineID    string    `query:"pipeline_id"`
	ColumnID      string    `query:"column_id"`
	ResponsibleID string    `query:"responsible_id"`
	Tags          []string  `query:"tag"`
	ContactStatus string    `query:"contact_status"`
	CreatedFrom   time.Time `query:"created_from"`
	CreatedTo     time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.PipelineID == "" && qf.ColumnID == "" && qf.ResponsibleID == "" &&
		qf.Tags == nil && qf.ContactStatus == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Signature projects the filter onto the board cache key space.
func (qf QueryFilter) Signature() FilterSignature {
	return FilterSignature{
		PipelineID:    qf.PipelineID,
		ResponsibleID: qf.ResponsibleID,
		Tags:          qf.Tags,
		Search:        qf.Search,
		ContactStatus: qf.ContactStatus,
	}
}
