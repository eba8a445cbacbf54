package student

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/gavasques/aluno-adm-portal-crm-sub009/core"
)

type fakeRepository struct {
	Repository

	students    map[string]Student
	enrollments map[string]Enrollment
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		students:    make(map[string]Student),
		enrollments: make(map[string]Enrollment),
	}
}

func (r *fakeRepository) CreateStudent(_ context.Context, st Student) (Student, error) {
	r.students[st.ID] = st
	return st, nil
}

func (r *fakeRepository) GetStudentByID(_ context.Context, id string) (Student, error) {
	st, ok := r.students[id]
	if !ok {
		return Student{}, ErrNotFound
	}
	return st, nil
}

func (r *fakeRepository) GetStudentByEmail(_ context.Context, email string) (Student, error) {
	for _, st := range r.students {
		if st.Email == email {
			return st, nil
		}
	}
	return Student{}, ErrNotFound
}

func (r *fakeRepository) CreateEnrollment(_ context.Context, enr Enrollment) (Enrollment, error) {
	r.enrollments[enr.ID] = enr
	return enr, nil
}

func (r *fakeRepository) QueryEnrollmentsByStudent(_ context.Context, studentID string) ([]Enrollment, error) {
	var enrs []Enrollment
	for _, enr := range r.enrollments {
		if enr.StudentID == studentID {
			enrs = append(enrs, enr)
		}
	}
	return enrs, nil
}

func (r *fakeRepository) UpdateEnrollment(_ context.Context, enr Enrollment) (Enrollment, error) {
	if _, ok := r.enrollments[enr.ID]; !ok {
		return Enrollment{}, ErrEnrollmentNotFound
	}
	r.enrollments[enr.ID] = enr
	return enr, nil
}

type mailServiceStub struct{}

func (mailServiceStub) SendMessages(...*core.EmailMessage) {}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, mailServiceStub{}, "test")
	ctx := context.Background()

	if _, err := svc.Create(ctx, NewStudent{Name: "Ana", Email: "ana@test.test"}); err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if _, err := svc.Create(ctx, NewStudent{Name: "Ana Again", Email: "ana@test.test"}); err == nil {
		t.Error("Create() accepted a duplicate email")
	}
}

func TestEnrollRequiresExistingStudent(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, mailServiceStub{}, "test")

	_, err := svc.Enroll(context.Background(), NewEnrollment{StudentID: "ghost", Mentoring: "FBA Launch"})
	if errors.Cause(err) != ErrNotFound {
		t.Errorf("Enroll() error = %v, want %v", err, ErrNotFound)
	}
}

func TestExpireEnrollments(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, mailServiceStub{}, "test")
	ctx := context.Background()

	st, err := svc.Create(ctx, NewStudent{Name: "Ana", Email: "ana@test.test"})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}

	now := time.Now().UTC()
	seed := []Enrollment{
		{ID: "e1", StudentID: st.ID, Status: EnrollmentActive, ExpiresAt: now.Add(-time.Hour)},
		{ID: "e2", StudentID: st.ID, Status: EnrollmentActive, ExpiresAt: now.Add(time.Hour)},
		{ID: "e3", StudentID: st.ID, Status: EnrollmentActive}, // open-ended
		{ID: "e4", StudentID: st.ID, Status: EnrollmentPaused, ExpiresAt: now.Add(-time.Hour)},
	}
	for _, enr := range seed {
		repo.enrollments[enr.ID] = enr
	}

	expired, err := svc.ExpireEnrollments(ctx, st.ID)
	if err != nil {
		t.Fatalf("ExpireEnrollments(): %v", err)
	}
	if expired != 1 {
		t.Errorf("expired = %d, want 1", expired)
	}
	if got := repo.enrollments["e1"].Status; got != EnrollmentExpired {
		t.Errorf("e1 status = %v, want %v", got, EnrollmentExpired)
	}
	for _, id := range []string{"e2", "e3"} {
		if got := repo.enrollments[id].Status; got != EnrollmentActive {
			t.Errorf("%s status = %v, want %v", id, got, EnrollmentActive)
		}
	}
	if got := repo.enrollments["e4"].Status; got != EnrollmentPaused {
		t.Errorf("e4 status = %v, want %v", got, EnrollmentPaused)
	}
}
