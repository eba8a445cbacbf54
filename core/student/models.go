package student

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
)

// Student statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Enrollment statuses.
const (
	EnrollmentActive    = "active"
	EnrollmentPaused    = "paused"
	EnrollmentCompleted = "completed"
	EnrollmentExpired   = "expired"
)

type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Enrollment ties a student to a mentoring catalog entry and a mentor.
type Enrollment struct {
	ID         string    `json:"id"`
	StudentID  string    `json:"student_id"`
	Mentoring  string    `json:"mentoring"`
	MentorID   string    `json:"mentor_id"`
	Status     string    `json:"status"`
	ExpiresAt  time.Time `json:"expires_at"` // UTC, zero for open-ended
	CreatedAt  time.Time `json:"created_at"` // UTC
	UpdatedAt  time.Time `json:"updated_at"` // UTC
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}

// NewEnrollment contains information needed to enroll a Student.
type NewEnrollment struct {
	StudentID string    `json:"student_id" validate:"required"`
	Mentoring string    `json:"mentoring" validate:"required"`
	MentorID  string    `json:"mentor_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.Mentoring = core.CleanString(ne.Mentoring)
	return validate.Struct(ne)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Status      string    `query:"status"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
