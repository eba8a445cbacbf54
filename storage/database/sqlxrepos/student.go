package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
	"github.com/gavasques/aluno-adm-portal-crm-sub009/core/student"
)

type (
	studentRow struct {
		ID        string      `db:"id"`
		Name      string      `db:"name"`
		Email     string      `db:"email"`
		Phone     null.String `db:"phone"`
		Status    string      `db:"status"`
		CreatedAt time.Time   `db:"created_at"`
		UpdatedAt time.Time   `db:"updated_at"`
	}

	enrollmentRow struct {
		ID        string      `db:"id"`
		StudentID string      `db:"student_id"`
		Mentoring string      `db:"mentoring"`
		MentorID  null.String `db:"mentor_id"`
		Status    string      `db:"status"`
		ExpiresAt null.Time   `db:"expires_at"`
		CreatedAt time.Time   `db:"created_at"`
		UpdatedAt time.Time   `db:"updated_at"`
	}
)

func (r studentRow) student() student.Student {
	return student.Student{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Phone:     r.Phone.String,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r enrollmentRow) enrollment() student.Enrollment {
	return student.Enrollment{
		ID:        r.ID,
		StudentID: r.StudentID,
		Mentoring: r.Mentoring,
		MentorID:  r.MentorID.String,
		Status:    r.Status,
		ExpiresAt: r.ExpiresAt.Time,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) CreateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO students (id, name, email, phone, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		st.ID, st.Name, st.Email, null.NewString(st.Phone, st.Phone != ""),
		st.Status, st.CreatedAt.UTC(), st.UpdatedAt.UTC())
	if err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return st, nil
}

func (repo studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM students WHERE id = $1", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "fetching student")
	}
	return row.student(), nil
}

func (repo studentRepository) GetStudentByEmail(ctx context.Context, email string) (student.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, "SELECT * FROM students WHERE email = $1", email)
	if err != nil {
		if err == sql.ErrNoRows {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "fetching student by email")
	}
	return row.student(), nil
}

func (repo studentRepository) FilterStudents(ctx context.Context, filter student.QueryFilter, orderings ...core.DBOrdering) ([]student.Student, error) {
	query := "SELECT * FROM students"
	var clauses []string
	var args []interface{}

	arg := func(val interface{}) string {
		args = append(args, val)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		clauses = append(clauses, fmt.Sprintf("(name ILIKE %[1]s OR email ILIKE %[1]s)", p))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = "+arg(filter.Status))
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
		query += " ORDER BY name"
	}

	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE students
		SET name = $1, email = $2, phone = $3, status = $4, updated_at = $5
		WHERE id = $6`,
		st.Name, st.Email, null.NewString(st.Phone, st.Phone != ""), st.Status, st.UpdatedAt.UTC(), st.ID)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return st, nil
}

func (repo studentRepository) CreateEnrollment(ctx context.Context, enr student.Enrollment) (student.Enrollment, error) {
	_, err := repo.db.ExecContext(ctx, `
		INSERT INTO enrollments (id, student_id, mentoring, mentor_id, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		enr.ID, enr.StudentID, enr.Mentoring, null.NewString(enr.MentorID, enr.MentorID != ""),
		enr.Status, null.NewTime(enr.ExpiresAt.UTC(), !enr.ExpiresAt.IsZero()),
		enr.CreatedAt.UTC(), enr.UpdatedAt.UTC())
	if err != nil {
		return student.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return enr, nil
}

func (repo studentRepository) QueryEnrollmentsByStudent(ctx context.Context, studentID string) ([]student.Enrollment, error) {
	var rows []enrollmentRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT * FROM enrollments WHERE student_id = $1 ORDER BY created_at DESC", studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrollments := make([]student.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, row.enrollment())
	}
	return enrollments, nil
}

func (repo studentRepository) UpdateEnrollment(ctx context.Context, enr student.Enrollment) (student.Enrollment, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE enrollments
		SET mentoring = $1, mentor_id = $2, status = $3, expires_at = $4, updated_at = $5
		WHERE id = $6`,
		enr.Mentoring, null.NewString(enr.MentorID, enr.MentorID != ""), enr.Status,
		null.NewTime(enr.ExpiresAt.UTC(), !enr.ExpiresAt.IsZero()), enr.UpdatedAt.UTC(), enr.ID)
	if err != nil {
		return student.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.Enrollment{}, student.ErrEnrollmentNotFound
	}
	return enr, nil
}
