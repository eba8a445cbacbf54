package student

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
)

var (
	// errors
	ErrNotFound           = errors.New("student not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrEmailExists        = errors.New("a student with this email already exists")
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, st Student) (Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		GetStudentByEmail(ctx context.Context, email string) (Student, error)
		FilterStudents(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Student, error)
		UpdateStudent(ctx context.Context, st Student) (Student, error)

		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		QueryEnrollmentsByStudent(ctx context.Context, studentID string) ([]Enrollment, error)
		UpdateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		appName string
	}
)

func NewService(repo Repository, mailSvc core.EmailService, appName string) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, appName: appName}
}

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if _, err := svc.repo.GetStudentByEmail(ctx, ns.Email); err == nil {
		return Student{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	} else if errors.Cause(err) != ErrNotFound {
		return Student{}, err
	}

	now := time.Now().UTC()
	st, err := svc.repo.CreateStudent(ctx, Student{
		ID:        uuid.NewString(),
		Name:      ns.Name,
		Email:     ns.Email,
		Phone:     ns.Phone,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Student{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: st.Name, Address: st.Email}},
		Subject: "Welcome",
		TextContent: fmt.Sprintf("Hi %s,\n\nYour %s account has been created. "+
			"Your mentor will reach out with the next steps.", st.Name, svc.appName),
	})
	return st, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, orderings []core.DBOrdering) ([]Student, error) {
	return svc.repo.FilterStudents(ctx, *filter, orderings...)
}

func (svc *Service) SetStatus(ctx context.Context, id, status string) (Student, error) {
	st, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	st.Status = status
	st.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, st)
}

func (svc *Service) Enroll(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	if _, err := svc.repo.GetStudentByID(ctx, ne.StudentID); err != nil {
		return Enrollment{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:        uuid.NewString(),
		StudentID: ne.StudentID,
		Mentoring: ne.Mentoring,
		MentorID:  ne.MentorID,
		Status:    EnrollmentActive,
		ExpiresAt: ne.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) Enrollments(ctx context.Context, studentID string) ([]Enrollment, error) {
	return svc.repo.QueryEnrollmentsByStudent(ctx, studentID)
}

// ExpireEnrollments flips past-due active enrollments to expired; run by the
// admin CLI.
func (svc *Service) ExpireEnrollments(ctx context.Context, studentID string) (int, error) {
	enrs, err := svc.repo.QueryEnrollmentsByStudent(ctx, studentID)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	var expired int
	for _, enr := range enrs {
		if enr.Status != EnrollmentActive || enr.ExpiresAt.IsZero() || enr.ExpiresAt.After(now) {
			continue
		}
		enr.Status = EnrollmentExpired
		enr.UpdatedAt = now
		if _, err = svc.repo.UpdateEnrollment(ctx, enr); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}
